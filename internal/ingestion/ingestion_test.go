package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
)

type fakeStorage struct {
	bytes   map[string][]byte
	texts   map[string]string
	putErr  error
	urls    map[string]string
	written map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		bytes:   make(map[string][]byte),
		texts:   make(map[string]string),
		urls:    make(map[string]string),
		written: make(map[string][]byte),
	}
}

func (f *fakeStorage) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.written[key] = data
	return "https://cdn.example/" + key, nil
}

func (f *fakeStorage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for k := range f.bytes {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeStorage) GetText(ctx context.Context, bucket, key string) (string, error) {
	t, ok := f.texts[key]
	if !ok {
		return "", errors.New("not found")
	}
	return t, nil
}

func (f *fakeStorage) GetBytes(ctx context.Context, bucket, key string) ([]byte, error) {
	b, ok := f.bytes[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (f *fakeStorage) PublicURL(ctx context.Context, bucket, key string) (string, error) {
	if url, ok := f.urls[key]; ok {
		return url, nil
	}
	return "https://cdn.example/" + key, nil
}

type fakeFaces struct {
	detections map[string][]adapters.FaceDetection
	labels     []int
	clusterErr error
}

func (f fakeFaces) LocateAndEncode(ctx context.Context, image []byte) ([]adapters.FaceDetection, error) {
	return f.detections[string(image)], nil
}

func (f fakeFaces) Cluster(ctx context.Context, encodings [][]float32, tolerance float64) ([]int, error) {
	if f.clusterErr != nil {
		return nil, f.clusterErr
	}
	return f.labels, nil
}

func TestExtractFaces_ClustersAcrossFiles(t *testing.T) {
	storage := newFakeStorage()
	storage.bytes["beach/a.jpg"] = []byte("A")
	storage.bytes["beach/b.jpg"] = []byte("B")

	faces := fakeFaces{
		detections: map[string][]adapters.FaceDetection{
			"A": {{Encoding: []float32{1, 0}}},
			"B": {{Encoding: []float32{0, 1}}},
		},
		labels: []int{0, 1},
	}

	clusters, err := ExtractFaces(context.Background(), faces, storage, "bucket", "beach", []string{"beach/a.jpg", "beach/b.jpg"}, zap.NewNop())
	if err != nil {
		t.Fatalf("extract faces: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
}

func TestExtractFaces_SkipsUnreadableFile(t *testing.T) {
	storage := newFakeStorage()
	storage.bytes["beach/a.jpg"] = []byte("A")
	faces := fakeFaces{
		detections: map[string][]adapters.FaceDetection{"A": {{Encoding: []float32{1, 0}}}},
		labels:     []int{0},
	}

	clusters, err := ExtractFaces(context.Background(), faces, storage, "bucket", "beach", []string{"beach/missing.jpg", "beach/a.jpg"}, zap.NewNop())
	if err != nil {
		t.Fatalf("extract faces: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster after skipping missing file, got %d", len(clusters))
	}
}

func TestApplyNameMapping_ForwardMerge(t *testing.T) {
	clusters := []domain.FaceCluster{
		{ClusterID: 0, SampledFaces: []string{"f1.jpg"}},
		{ClusterID: 1, SampledFaces: []string{"f2.jpg"}},
	}
	people, err := ApplyNameMapping(clusters, NameMapping{Forward: map[string]string{"Maria": "0,1"}})
	if err != nil {
		t.Fatalf("apply name mapping: %v", err)
	}
	if len(people) != 1 {
		t.Fatalf("expected 1 merged person, got %d", len(people))
	}
	if people[0].Name != "maria" {
		t.Fatalf("expected lowercase-normalized name, got %q", people[0].Name)
	}
	if len(people[0].FaceExemplars) != 2 {
		t.Fatalf("expected merged exemplars, got %d", len(people[0].FaceExemplars))
	}
}

func TestApplyNameMapping_ReverseDeletesNullEntries(t *testing.T) {
	clusters := []domain.FaceCluster{
		{ClusterID: 0, SampledFaces: []string{"f1.jpg"}},
		{ClusterID: 1, SampledFaces: []string{"f2.jpg"}},
	}
	name := "John"
	people, err := ApplyNameMapping(clusters, NameMapping{Reverse: map[string]*string{
		"0": &name,
		"1": nil,
	}})
	if err != nil {
		t.Fatalf("apply name mapping: %v", err)
	}
	if len(people) != 1 {
		t.Fatalf("expected only cluster 0 mapped, got %d", len(people))
	}
	if people[0].Name != "john" {
		t.Fatalf("unexpected name: %q", people[0].Name)
	}
}

func TestApplyNameMapping_UnmappedClustersDropped(t *testing.T) {
	clusters := []domain.FaceCluster{
		{ClusterID: 0, SampledFaces: []string{"f1.jpg"}},
		{ClusterID: 2, SampledFaces: []string{"f3.jpg"}},
	}
	people, err := ApplyNameMapping(clusters, NameMapping{Forward: map[string]string{"Ana": "0"}})
	if err != nil {
		t.Fatalf("apply name mapping: %v", err)
	}
	if len(people) != 1 {
		t.Fatalf("expected cluster 2 to be dropped unmapped, got %d people", len(people))
	}
}

type fakeLLM struct {
	response string
	err      error
}

func (f fakeLLM) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestGenerateContext_RestrictsPeopleToAnchors(t *testing.T) {
	storage := newFakeStorage()
	storage.bytes["beach/a.jpg"] = []byte("A")
	llm := fakeLLM{response: `{"description": "a sunny day", "people": ["maria", "stranger"]}`}
	people := []domain.Person{{Name: "maria", FaceExemplars: []string{"m1.jpg"}}}

	cf, err := GenerateContext(context.Background(), llm, storage, "bucket", "beach", []string{"beach/a.jpg"}, people, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("generate context: %v", err)
	}
	entry, ok := cf.Files["a"]
	if !ok {
		t.Fatalf("expected entry for normalized key %q", "a")
	}
	if len(entry.People) != 1 || entry.People[0] != "maria" {
		t.Fatalf("expected only anchor name to survive, got %v", entry.People)
	}
	if entry.Description != "a sunny day" {
		t.Fatalf("unexpected description: %q", entry.Description)
	}
}

func TestGenerateContext_ToleratesPerFileLLMFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.bytes["beach/a.jpg"] = []byte("A")
	llm := fakeLLM{err: errors.New("quota exceeded")}

	cf, err := GenerateContext(context.Background(), llm, storage, "bucket", "beach", []string{"beach/a.jpg"}, nil, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("generate context should tolerate per-file failure: %v", err)
	}
	entry := cf.Files["a"]
	if entry.Description != "" {
		t.Fatalf("expected empty description on failure, got %q", entry.Description)
	}
}

type fakeDecoder struct {
	audioByVideo map[string][]byte
	extractErr   error
}

func (f fakeDecoder) ExtractAudio(ctx context.Context, video []byte) ([]byte, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.audioByVideo[string(video)], nil
}

func (f fakeDecoder) Concatenate(ctx context.Context, clips [][]byte) ([]byte, error) {
	var out []byte
	for _, c := range clips {
		out = append(out, c...)
	}
	return out, nil
}

func TestExtractSoloVoices_OnlyConsidersSoloVideos(t *testing.T) {
	storage := newFakeStorage()
	storage.bytes["beach/v1.mp4"] = []byte("video1")
	storage.bytes["beach/v2.mp4"] = []byte("video2")
	decoder := fakeDecoder{audioByVideo: map[string][]byte{
		"video1": []byte("audio1"),
		"video2": []byte("audio2"),
	}}
	ctxFile := domain.ContextFile{Files: map[string]domain.ContextFileEntry{
		"v1": {People: []string{"maria"}},
		"v2": {People: []string{"maria", "john"}},
	}}

	result, err := ExtractSoloVoices(context.Background(), decoder, storage, "bucket", "beach", []string{"beach/v1.mp4", "beach/v2.mp4"}, ctxFile, zap.NewNop())
	if err != nil {
		t.Fatalf("extract solo voices: %v", err)
	}
	if _, ok := result["maria"]; !ok {
		t.Fatalf("expected solo audio for maria")
	}
	if _, ok := result["john"]; ok {
		t.Fatalf("john appears in a multi-person video and should not get solo audio")
	}
	if string(storage.written["maria_voice.mp3"]) != "audio1" {
		t.Fatalf("unexpected persisted solo audio: %q", storage.written["maria_voice.mp3"])
	}
}

type fakeVoiceRegistry struct {
	existing  map[string]string
	createdID string
	createErr error
}

func (f fakeVoiceRegistry) List(ctx context.Context) (map[string]string, error) {
	return f.existing, nil
}

func (f fakeVoiceRegistry) Create(ctx context.Context, name string, audio []byte) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createdID, nil
}

func TestProvisionVoiceClones_SkipsAlreadyRegistered(t *testing.T) {
	registry := fakeVoiceRegistry{existing: map[string]string{"maria_voice_forgetmenot": "vc-existing"}}
	people := []domain.Person{{Name: "maria"}}
	soloAudio := map[string][]byte{"maria": []byte("audio")}

	out, err := ProvisionVoiceClones(context.Background(), registry, people, soloAudio, zap.NewNop())
	if err != nil {
		t.Fatalf("provision voice clones: %v", err)
	}
	if out[0].VoiceCloneID != "vc-existing" {
		t.Fatalf("expected existing voice clone id reused, got %q", out[0].VoiceCloneID)
	}
}

func TestProvisionVoiceClones_CreatesWhenMissing(t *testing.T) {
	registry := fakeVoiceRegistry{existing: map[string]string{}, createdID: "vc-new"}
	people := []domain.Person{{Name: "maria"}}
	soloAudio := map[string][]byte{"maria": []byte("audio")}

	out, err := ProvisionVoiceClones(context.Background(), registry, people, soloAudio, zap.NewNop())
	if err != nil {
		t.Fatalf("provision voice clones: %v", err)
	}
	if out[0].VoiceCloneID != "vc-new" {
		t.Fatalf("expected newly created voice clone id, got %q", out[0].VoiceCloneID)
	}
}

type fakeVault struct {
	upserted []domain.MemoryRecord
	failFor  string
}

func (f *fakeVault) Upsert(ctx context.Context, record domain.MemoryRecord) error {
	if record.FileName == f.failFor {
		return errors.New("embed failed")
	}
	f.upserted = append(f.upserted, record)
	return nil
}

func TestUpsertEventFolder_SkipsFilesMissingFromContext(t *testing.T) {
	storage := newFakeStorage()
	v := &fakeVault{}
	ctxFile := domain.ContextFile{
		MemoryContext: "beach trip",
		Files: map[string]domain.ContextFileEntry{
			"a": {Description: "sunset", People: []string{"maria"}},
		},
	}

	count, err := UpsertEventFolder(context.Background(), v, storage, "bucket", "beach", []string{"beach/a.jpg", "beach/unknown.jpg"}, ctxFile, zap.NewNop())
	if err != nil {
		t.Fatalf("upsert event folder: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 upserted record, got %d", count)
	}
	if v.upserted[0].EventSummary != "beach trip" {
		t.Fatalf("expected event summary propagated, got %q", v.upserted[0].EventSummary)
	}
}

func TestUpsertEventFolder_ToleratesPerRecordFailure(t *testing.T) {
	storage := newFakeStorage()
	v := &fakeVault{failFor: "a.jpg"}
	ctxFile := domain.ContextFile{
		Files: map[string]domain.ContextFileEntry{
			"a": {Description: "sunset"},
			"b": {Description: "swim"},
		},
	}

	count, err := UpsertEventFolder(context.Background(), v, storage, "bucket", "beach", []string{"beach/a.jpg", "beach/b.jpg"}, ctxFile, zap.NewNop())
	if err != nil {
		t.Fatalf("upsert event folder: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 successful upsert after tolerating the failed one, got %d", count)
	}
}

func TestNormalizeFileKey_StripsPathAndExtensionThenLowercases(t *testing.T) {
	normalized := normalizeFileKey("Beach Trip/Dad's Boat.JPG")
	if normalized != "dad's boat" {
		t.Fatalf("unexpected normalization: %q", normalized)
	}
}

func TestNormalizeFileKey_CollapsesNarrowNoBreakSpace(t *testing.T) {
	normalized := normalizeFileKey("Screenshot 2025-10-04 at 3.37.37 PM.png")
	if normalized != "screenshot 2025-10-04 at 3.37.37 pm" {
		t.Fatalf("unexpected normalization: %q", normalized)
	}
}

type fakePersonStore struct {
	upserted      []domain.Person
	voiceCloneIDs map[string]string
}

func newFakePersonStore() *fakePersonStore {
	return &fakePersonStore{voiceCloneIDs: make(map[string]string)}
}

func (f *fakePersonStore) Upsert(ctx context.Context, p domain.Person) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakePersonStore) SetVoiceCloneID(ctx context.Context, name, voiceCloneID string) error {
	f.voiceCloneIDs[name] = voiceCloneID
	return nil
}

func TestPipeline_ApplyNameMapping_PersistsToPersonStore(t *testing.T) {
	personStore := newFakePersonStore()
	p := NewPipeline(nil, nil, nil, nil, newFakeStorage(), nil, personStore, nil, zap.NewNop(), "bucket")

	clusters := []domain.FaceCluster{{ClusterID: 0, SampledFaces: []string{"f1.jpg"}}}
	people, err := p.ApplyNameMapping(context.Background(), clusters, NameMapping{Forward: map[string]string{"Maria": "0"}})
	if err != nil {
		t.Fatalf("apply name mapping: %v", err)
	}
	if len(people) != 1 || len(personStore.upserted) != 1 {
		t.Fatalf("expected the resulting person to be persisted, got %d upserted", len(personStore.upserted))
	}
	if personStore.upserted[0].Name != "maria" {
		t.Fatalf("unexpected persisted name: %q", personStore.upserted[0].Name)
	}
}

func TestPipeline_ExtractAndProvisionVoices_RecordsVoiceCloneID(t *testing.T) {
	storage := newFakeStorage()
	storage.bytes["beach/v1.mp4"] = []byte("video1")
	decoder := fakeDecoder{audioByVideo: map[string][]byte{"video1": []byte("audio1")}}
	registry := fakeVoiceRegistry{existing: map[string]string{}, createdID: "vc-new"}
	personStore := newFakePersonStore()

	p := NewPipeline(nil, nil, decoder, registry, storage, nil, personStore, nil, zap.NewNop(), "bucket")
	ctxFile := domain.ContextFile{Files: map[string]domain.ContextFileEntry{
		"v1": {People: []string{"maria"}},
	}}

	updated, err := p.ExtractAndProvisionVoices(context.Background(), "beach", []domain.Person{{Name: "maria"}}, ctxFile)
	if err != nil {
		t.Fatalf("extract and provision voices: %v", err)
	}
	if updated[0].VoiceCloneID != "vc-new" {
		t.Fatalf("expected provisioned voice clone id, got %q", updated[0].VoiceCloneID)
	}
	if personStore.voiceCloneIDs["maria"] != "vc-new" {
		t.Fatalf("expected voice clone id persisted to person store, got %q", personStore.voiceCloneIDs["maria"])
	}
}

func TestMarshalContextFile_ProducesFlatKeyScheme(t *testing.T) {
	cf := domain.ContextFile{
		MemoryContext: "a day at the beach",
		Files: map[string]domain.ContextFileEntry{
			"a": {Description: "sunset over the water", People: []string{"maria"}},
		},
	}

	raw, err := MarshalContextFile(cf)
	if err != nil {
		t.Fatalf("marshal context file: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("unmarshal raw json: %v", err)
	}
	if _, ok := flat["files"]; ok {
		t.Fatalf("expected no nested \"files\" key, got %v", flat)
	}
	if flat["memory_context"] != "a day at the beach" {
		t.Fatalf("unexpected memory_context: %v", flat["memory_context"])
	}
	if flat["a_context"] != "sunset over the water" {
		t.Fatalf("unexpected a_context: %v", flat["a_context"])
	}
	people, ok := flat["a_people"].([]any)
	if !ok || len(people) != 1 || people[0] != "maria" {
		t.Fatalf("unexpected a_people: %v", flat["a_people"])
	}
}

func TestContextFile_RoundTripsNarrowNoBreakSpaceKey(t *testing.T) {
	// E6: a context.json key with a narrow no-break space before "PM" must
	// still resolve against a real file with an ordinary space.
	raw := []byte(`{
		"memory_context": "screenshots",
		"Screenshot 2025-10-04 at 3.37.37 PM_context": "a phone screenshot",
		"Screenshot 2025-10-04 at 3.37.37 PM_people": ["maria"]
	}`)

	cf, err := UnmarshalContextFile(raw)
	if err != nil {
		t.Fatalf("unmarshal context file: %v", err)
	}

	lookupKey := normalizeFileKey("Screenshot 2025-10-04 at 3.37.37 PM.png")
	entry, ok := cf.Files[lookupKey]
	if !ok {
		t.Fatalf("expected entry for normalized key %q, got %v", lookupKey, cf.Files)
	}
	if entry.Description != "a phone screenshot" {
		t.Fatalf("unexpected description: %q", entry.Description)
	}
	if len(entry.People) != 1 || entry.People[0] != "maria" {
		t.Fatalf("unexpected people: %v", entry.People)
	}

	roundTripped, err := MarshalContextFile(cf)
	if err != nil {
		t.Fatalf("marshal context file: %v", err)
	}
	again, err := UnmarshalContextFile(roundTripped)
	if err != nil {
		t.Fatalf("unmarshal round-tripped context file: %v", err)
	}
	if again.Files[lookupKey].Description != entry.Description {
		t.Fatalf("round trip lost description for %q", lookupKey)
	}
}
