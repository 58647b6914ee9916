// Package ingestion implements the Ingestion Pipeline (C3): six resumable,
// idempotent stages that turn a raw event folder of photos and videos into
// Person records, voice clones and Vault-upserted MemoryRecords. Orchestration
// follows cmd/cli_chat/main.go's sequential-stage-with-a-loop shape; per-item
// failure tolerance follows analysis_service.go's "log and continue".
package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/email"
)

// PersonStore is the subset of people.Store the pipeline needs to persist
// S2's name mapping and S5's voice-clone provisioning. Persons are owned by
// ingestion output per spec §5; Retrieval/Narration only ever read them.
type PersonStore interface {
	Upsert(ctx context.Context, p domain.Person) error
	SetVoiceCloneID(ctx context.Context, name, voiceCloneID string) error
}

// Pipeline wires together the adapters every ingestion stage depends on.
type Pipeline struct {
	faces       adapters.FaceRecognition
	llm         adapters.LLM
	decoder     adapters.AudioDecoder
	voiceClones adapters.VoiceCloneRegistry
	storage     adapters.ObjectStorage
	vault       VaultUpserter
	people      PersonStore
	mailer      email.Sender
	logger      *zap.Logger
	bucket      string
}

func NewPipeline(
	faces adapters.FaceRecognition,
	llm adapters.LLM,
	decoder adapters.AudioDecoder,
	voiceClones adapters.VoiceCloneRegistry,
	storage adapters.ObjectStorage,
	vault VaultUpserter,
	people PersonStore,
	mailer email.Sender,
	logger *zap.Logger,
	bucket string,
) *Pipeline {
	return &Pipeline{
		faces:       faces,
		llm:         llm,
		decoder:     decoder,
		voiceClones: voiceClones,
		storage:     storage,
		vault:       vault,
		people:      people,
		mailer:      mailer,
		logger:      logger,
		bucket:      bucket,
	}
}

// ExtractEventFaces runs S1 over every file under the event folder prefix.
func (p *Pipeline) ExtractEventFaces(ctx context.Context, eventName string) ([]domain.FaceCluster, error) {
	fileKeys, err := p.eventFileKeys(ctx, eventName)
	if err != nil {
		return nil, err
	}
	return ExtractFaces(ctx, p.faces, p.storage, p.bucket, eventName, fileKeys, p.logger)
}

// ApplyNameMapping runs S2 and persists the resulting Persons to the
// registry, so retrieval/narration/patientquery can read them back
// independently of this process.
func (p *Pipeline) ApplyNameMapping(ctx context.Context, clusters []domain.FaceCluster, mapping NameMapping) ([]domain.Person, error) {
	people, err := ApplyNameMapping(clusters, mapping)
	if err != nil {
		return nil, err
	}
	for _, person := range people {
		if err := p.people.Upsert(ctx, person); err != nil {
			p.logger.Warn("ingestion: person upsert failed", zap.String("person", person.Name), zap.Error(err))
		}
	}
	return people, nil
}

// GenerateEventContext runs S3 and persists context.json back to storage.
func (p *Pipeline) GenerateEventContext(ctx context.Context, eventName string, people []domain.Person, concurrency int) (domain.ContextFile, error) {
	fileKeys, err := p.eventFileKeys(ctx, eventName)
	if err != nil {
		return domain.ContextFile{}, err
	}
	cf, err := GenerateContext(ctx, p.llm, p.storage, p.bucket, eventName, fileKeys, people, concurrency, p.logger)
	if err != nil {
		return domain.ContextFile{}, err
	}
	payload, err := MarshalContextFile(cf)
	if err != nil {
		return domain.ContextFile{}, fmt.Errorf("marshal context file: %w", err)
	}
	if _, err := p.storage.Put(ctx, p.bucket, contextFileKey(eventName), payload, "application/json"); err != nil {
		return domain.ContextFile{}, fmt.Errorf("persist context file: %w", err)
	}
	return cf, nil
}

// LoadEventContext reads back a previously persisted context.json, so S4-S6
// can resume without re-running S3.
func (p *Pipeline) LoadEventContext(ctx context.Context, eventName string) (domain.ContextFile, error) {
	raw, err := p.storage.GetText(ctx, p.bucket, contextFileKey(eventName))
	if err != nil {
		return domain.ContextFile{}, fmt.Errorf("load context file for %s: %w", eventName, err)
	}
	return UnmarshalContextFile([]byte(raw))
}

// ExtractAndProvisionVoices runs S4 then S5 for an event's people, recording
// each provisioned voice_clone_id back to the Person registry.
func (p *Pipeline) ExtractAndProvisionVoices(ctx context.Context, eventName string, roster []domain.Person, ctxFile domain.ContextFile) ([]domain.Person, error) {
	fileKeys, err := p.eventFileKeys(ctx, eventName)
	if err != nil {
		return nil, err
	}
	soloAudio, err := ExtractSoloVoices(ctx, p.decoder, p.storage, p.bucket, eventName, fileKeys, ctxFile, p.logger)
	if err != nil {
		return nil, err
	}
	updated, err := ProvisionVoiceClones(ctx, p.voiceClones, roster, soloAudio, p.logger)
	if err != nil {
		return nil, err
	}
	for _, person := range updated {
		if !person.HasVoiceClone() {
			continue
		}
		if err := p.people.SetVoiceCloneID(ctx, person.Name, person.VoiceCloneID); err != nil {
			p.logger.Warn("ingestion: persisting voice clone id failed", zap.String("person", person.Name), zap.Error(err))
		}
	}
	return updated, nil
}

// UpsertEvent runs S6 and, on success, notifies the caregiver.
func (p *Pipeline) UpsertEvent(ctx context.Context, eventName, caregiverEmail string, ctxFile domain.ContextFile) (int, error) {
	fileKeys, err := p.eventFileKeys(ctx, eventName)
	if err != nil {
		return 0, err
	}
	count, err := UpsertEventFolder(ctx, p.vault, p.storage, p.bucket, eventName, fileKeys, ctxFile, p.logger)
	if err != nil {
		return count, err
	}
	if caregiverEmail != "" {
		if err := p.mailer.SendIngestionComplete(ctx, caregiverEmail, eventName, count); err != nil {
			p.logger.Warn("ingestion: completion email failed", zap.String("event", eventName), zap.Error(err))
		}
	}
	return count, nil
}

func (p *Pipeline) eventFileKeys(ctx context.Context, eventName string) ([]string, error) {
	keys, err := p.storage.List(ctx, p.bucket, eventName+"/")
	if err != nil {
		return nil, fmt.Errorf("list event folder %s: %w", eventName, err)
	}
	filtered := keys[:0]
	for _, k := range keys {
		if k == contextFileKey(eventName) {
			continue
		}
		filtered = append(filtered, k)
	}
	return filtered, nil
}

func contextFileKey(eventName string) string {
	return eventName + "/context.json"
}
