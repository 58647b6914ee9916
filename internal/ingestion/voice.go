package ingestion

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
)

// soloVoiceKey builds the deterministic concatenated-audio object key for a
// Person, per §4.3 S4 ("<Name>_voice.<ext>").
func soloVoiceKey(personName string) string {
	return personName + "_voice.mp3"
}

// voiceCloneName builds the voice-clone registry name per §4.1.
func voiceCloneName(personName string) string {
	return personName + "_voice_forgetmenot"
}

// ExtractSoloVoices runs S4: finds videos among fileKeys whose ContextFile
// entry has a people list of exactly one name, extracts and concatenates
// their audio (sorted by file name for determinism), and writes the result
// back to object storage under each Person's solo-voice key. Returns the set
// of Person names that now have a solo audio track. fileKeys carries the
// real object-storage keys; ctxFile.Files is keyed by normalizeFileKey(key),
// since §3's ContextFile key scheme drops path and extension.
func ExtractSoloVoices(ctx context.Context, decoder adapters.AudioDecoder, storage adapters.ObjectStorage, bucket, eventName string, fileKeys []string, ctxFile domain.ContextFile, logger *zap.Logger) (map[string][]byte, error) {
	soloFilesByPerson := make(map[string][]string)
	for _, fileKey := range fileKeys {
		if !isVideoFile(fileKey) {
			continue
		}
		entry, ok := ctxFile.Files[normalizeFileKey(fileKey)]
		if !ok || len(entry.People) != 1 {
			continue
		}
		name := entry.People[0]
		soloFilesByPerson[name] = append(soloFilesByPerson[name], fileKey)
	}

	result := make(map[string][]byte, len(soloFilesByPerson))
	for name, fileKeys := range soloFilesByPerson {
		sort.Strings(fileKeys)

		var clips [][]byte
		for _, fileKey := range fileKeys {
			videoBytes, err := storage.GetBytes(ctx, bucket, fileKey)
			if err != nil {
				logger.Warn("ingestion: solo voice source unreadable", zap.String("event", eventName), zap.String("file", fileKey), zap.Error(err))
				continue
			}
			audio, err := decoder.ExtractAudio(ctx, videoBytes)
			if err != nil {
				logger.Warn("ingestion: audio extraction failed", zap.String("event", eventName), zap.String("file", fileKey), zap.Error(err))
				continue
			}
			clips = append(clips, audio)
		}
		if len(clips) == 0 {
			continue
		}

		concatenated, err := decoder.Concatenate(ctx, clips)
		if err != nil {
			logger.Warn("ingestion: audio concatenation failed", zap.String("event", eventName), zap.String("person", name), zap.Error(err))
			continue
		}

		key := soloVoiceKey(name)
		if _, err := storage.Put(ctx, bucket, key, concatenated, "audio/mpeg"); err != nil {
			return nil, fmt.Errorf("persist solo voice for %s: %w", name, err)
		}
		result[name] = concatenated
	}
	return result, nil
}

// ProvisionVoiceClones runs S5: for each Person with solo audio, creates the
// voice clone if not already present in the registry, recording the
// returned voice_clone_id on the Person. Already-registered names are
// skipped without re-creating them.
func ProvisionVoiceClones(ctx context.Context, registry adapters.VoiceCloneRegistry, people []domain.Person, soloAudio map[string][]byte, logger *zap.Logger) ([]domain.Person, error) {
	existing, err := registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list voice clones: %w", err)
	}

	out := make([]domain.Person, len(people))
	copy(out, people)

	for i, p := range out {
		audio, ok := soloAudio[p.Name]
		if !ok {
			continue
		}
		name := voiceCloneName(p.Name)
		if id, ok := existing[name]; ok {
			out[i].VoiceCloneID = id
			continue
		}
		id, err := registry.Create(ctx, name, audio)
		if err != nil {
			logger.Warn("ingestion: voice clone provisioning failed", zap.String("person", p.Name), zap.Error(err))
			continue
		}
		out[i].VoiceCloneID = id
	}
	return out, nil
}
