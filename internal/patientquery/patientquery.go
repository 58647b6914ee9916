// Package patientquery implements the Patient Query Runtime (C9): the
// orchestration that turns one patient utterance into a DisplayPacket,
// fanning transcription and retrieval out in parallel the way the teacher's
// clone_service.go fans out profile/trait/context fetches before composing
// a reply.
package patientquery

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/classifier"
	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/history"
	"github.com/forgetmenot/remind/internal/narration"
)

const DefaultTopK = 5
const historyTurnWindow = 6
const recentAgentWindow = 3

// Retriever is the subset of retrieval.Engine this runtime depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error)
}

// Storyteller is the subset of narration.Narrator this runtime depends on.
type Storyteller interface {
	Narrate(ctx context.Context, query string, retrieved []domain.ScoredMemory, historySlice []domain.ConversationTurn, antiRepeatList []string, style string) (string, error)
}

// PersonRegistry is the subset of the Person registry this runtime depends
// on to resolve agent-mode targets.
type PersonRegistry interface {
	List(ctx context.Context) ([]domain.Person, error)
}

// Request is the Patient Query Runtime contract's input.
type Request struct {
	Audio      []byte
	Transcript string
	Topic      string
	PatientID  string
}

// Runtime is the Patient Query Runtime.
type Runtime struct {
	stt       adapters.SpeechToText
	retrieval Retriever
	history   history.Store
	people    PersonRegistry
	llm       adapters.LLM
	narrator  Storyteller
	tts       adapters.TTS
	lipsync   adapters.LipSync
	topK      int
}

func NewRuntime(
	stt adapters.SpeechToText,
	retrieval Retriever,
	historyStore history.Store,
	people PersonRegistry,
	llm adapters.LLM,
	narrator Storyteller,
	tts adapters.TTS,
	lipsync adapters.LipSync,
) *Runtime {
	return &Runtime{
		stt:       stt,
		retrieval: retrieval,
		history:   historyStore,
		people:    people,
		llm:       llm,
		narrator:  narrator,
		tts:       tts,
		lipsync:   lipsync,
		topK:      DefaultTopK,
	}
}

// Query runs the §4.9 sequence: parallel transcribe+retrieve, append the
// patient turn, classify, branch on agent vs. narration+media, append the
// agent turn, and return the packet.
func (r *Runtime) Query(ctx context.Context, req Request) (domain.DisplayPacket, error) {
	topK := r.topK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var transcript string
	var retrievalResult domain.RetrievalResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if strings.TrimSpace(req.Transcript) != "" {
			transcript = req.Transcript
			return nil
		}
		if len(req.Audio) == 0 {
			return apperr.InputError("either audio or transcript is required")
		}
		text, err := r.stt.Transcribe(gctx, req.Audio)
		if err != nil {
			return apperr.ExternalUnavailable("transcribe audio", err)
		}
		transcript = text
		return nil
	})
	g.Go(func() error {
		result, err := r.retrieval.Retrieve(gctx, req.Topic, topK, domain.Filter{})
		if err != nil {
			return err
		}
		retrievalResult = result
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.DisplayPacket{}, err
	}

	_ = r.history.Append(ctx, req.PatientID, req.Topic, domain.RolePatient, transcript)

	people, _ := r.people.List(ctx)
	inventory := mediaInventoryOf(retrievalResult.Memories)
	mode, _ := classifier.Classify(ctx, transcript, inventory, people, r.llm)

	historySlice, _ := r.history.Slice(ctx, req.PatientID, req.Topic, historyTurnWindow)
	recentAgent, _ := r.history.RecentAgent(ctx, req.PatientID, req.Topic, recentAgentWindow)

	var packet domain.DisplayPacket
	var textForHistory string

	if mode == domain.ModeAgent {
		if target, ok := findTargetPerson(transcript, people); ok {
			textDraft, err := r.narrator.Narrate(ctx, transcript, retrievalResult.Memories, historySlice, recentAgent, "")
			if err != nil {
				textDraft = narration.TemplateFallback(req.Topic, topDescription(retrievalResult.Memories))
			}

			audioBytes, err := r.tts.Synthesize(ctx, textDraft, target.VoiceCloneID)
			if err != nil {
				return domain.DisplayPacket{}, apperr.TTSUnavailable("synthesize agent speech", err)
			}
			faceExemplar := ""
			if len(target.FaceExemplars) > 0 {
				faceExemplar = target.FaceExemplars[0]
			}
			videoURL, err := r.lipsync.Generate(ctx, faceExemplar, audioBytes)
			if err != nil {
				return domain.DisplayPacket{}, apperr.LipSyncUnavailable("generate lip-synced video", err)
			}

			packet = domain.DisplayPacket{Topic: req.Topic, Text: nil, DisplayMode: domain.ModeAgent, Media: []string{videoURL}}
			textForHistory = textDraft
		} else {
			mode = classifier.DeterministicNonAgent(inventory)
		}
	}

	if mode != domain.ModeAgent {
		text, err := r.narrator.Narrate(ctx, transcript, retrievalResult.Memories, historySlice, recentAgent, "")
		if err != nil {
			text = narration.TemplateFallback(req.Topic, topDescription(retrievalResult.Memories))
		}
		media := selectMedia(mode, retrievalResult.Memories)
		packet = domain.DisplayPacket{Topic: req.Topic, Text: &text, DisplayMode: mode, Media: media}
		textForHistory = text
	}

	histText := textForHistory
	if histText == "" {
		histText = "<agent mode>"
	}
	_ = r.history.Append(ctx, req.PatientID, req.Topic, domain.RoleAgent, histText)

	return packet, nil
}

func mediaInventoryOf(memories []domain.ScoredMemory) domain.MediaInventory {
	var inv domain.MediaInventory
	for _, m := range memories {
		switch m.FileType {
		case domain.FileTypeImage:
			inv.Images++
		case domain.FileTypeVideo:
			inv.Videos++
			if m.Orientation == "vertical" {
				inv.HasVerticalVideo = true
			}
		}
	}
	return inv
}

// findTargetPerson looks for a name mentioned in transcript among people and
// returns the first mentioned person with a voice clone provisioned; ok is
// false when no mentioned person has one.
func findTargetPerson(transcript string, people []domain.Person) (domain.Person, bool) {
	lower := strings.ToLower(transcript)
	var fallback domain.Person
	found := false
	for _, p := range people {
		if !mentionsName(lower, p) {
			continue
		}
		if p.HasVoiceClone() {
			return p, true
		}
		if !found {
			fallback = p
			found = true
		}
	}
	return fallback, found && fallback.HasVoiceClone()
}

func mentionsName(lowerTranscript string, p domain.Person) bool {
	if p.Name != "" && strings.Contains(lowerTranscript, strings.ToLower(p.Name)) {
		return true
	}
	if p.DisplayName != "" && strings.Contains(lowerTranscript, strings.ToLower(p.DisplayName)) {
		return true
	}
	return false
}

func topDescription(memories []domain.ScoredMemory) string {
	if len(memories) == 0 {
		return ""
	}
	return memories[0].Description
}

// selectMedia picks the top-ranked memories whose file type matches the
// chosen mode's family, up to the mode's arity.
func selectMedia(mode domain.DisplayMode, memories []domain.ScoredMemory) []string {
	var wantType domain.FileType
	switch mode {
	case domain.ModeVideo, domain.ModeVerticalVideo:
		wantType = domain.FileTypeVideo
	default:
		wantType = domain.FileTypeImage
	}

	arity := mode.Arity()
	urls := make([]string, 0, arity)
	for _, m := range memories {
		if m.FileType != wantType {
			continue
		}
		urls = append(urls, m.FileURL)
		if len(urls) >= arity {
			break
		}
	}
	return urls
}
