// Package domain holds the plain data structures shared across ReMind's
// packages: Vault rows, Person registry entries, Experience records and the
// wire shapes returned to patients and caregivers.
package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// FileType enumerates the two media kinds a MemoryRecord can carry.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// MemoryRecord is one per-file semantic record in the Memory Vault.
type MemoryRecord struct {
	ID           string          `json:"id"`
	EventName    string          `json:"event_name"`
	FileName     string          `json:"file_name"`
	FileType     FileType        `json:"file_type"`
	Description  string          `json:"description"`
	People       []string        `json:"people"`
	EventSummary string          `json:"event_summary"`
	FileURL      string          `json:"file_url"`
	Orientation  string          `json:"orientation,omitempty"` // "vertical" | "horizontal"; populated at ingestion
	Embedding    pgvector.Vector `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ScoredMemory pairs a MemoryRecord with its cosine similarity to a query.
type ScoredMemory struct {
	MemoryRecord
	Similarity float64 `json:"similarity"`
}

// Person is a canonical named identity produced by ingestion.
type Person struct {
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name"`
	FaceExemplars []string  `json:"face_exemplars"`
	VoiceCloneID  string    `json:"voice_clone_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasVoiceClone reports whether this Person can be used in agent mode.
func (p Person) HasVoiceClone() bool {
	return p.VoiceCloneID != ""
}

// SourceRef records where one face encoding was observed during ingestion.
type SourceRef struct {
	EventName  string `json:"event_name"`
	FileName   string `json:"file_name"`
	SourceType string `json:"source_type"` // "image" | "video_frame"
}

// FaceCluster is an ingestion-internal grouping of face encodings, discarded
// once it has been resolved into a Person (or deleted).
type FaceCluster struct {
	ClusterID int         `json:"cluster_id"`
	Encodings [][]float32 `json:"-"`
	// SampledFaces holds the public URLs of up to 16 randomly chosen,
	// padded-and-cropped face images from this cluster — the caregiver
	// review bundle, not whole-photo filenames.
	SampledFaces     []string    `json:"sampled_faces"`
	SourceRefs       []SourceRef `json:"source_refs"`
	TotalAppearances int         `json:"total_appearances"`
}

// ContextFileEntry is the per-file payload inside a ContextFile.
type ContextFileEntry struct {
	Description string   `json:"description"`
	People      []string `json:"people"`
}

// ContextFile is the per-event-folder artifact produced by ingestion S3.
type ContextFile struct {
	MemoryContext string                       `json:"memory_context"`
	Files         map[string]ContextFileEntry `json:"files"`
}

// Experience is a therapist-composed, read-only bundle of scenes.
type Experience struct {
	ExperienceID     string       `json:"experience_id"`
	Title            string       `json:"title"`
	GeneralContext   string       `json:"general_context"`
	Scenes           []SceneResult `json:"scenes"`
	OverallNarrative string       `json:"overall_narrative"`
	TotalMemories    int          `json:"total_memories"`
	CreatedAt        time.Time    `json:"created_at"`
}

// PatientURL returns the stable patient-facing path for this Experience.
func (e Experience) PatientURL() string {
	return "/patient/experience/" + e.ExperienceID
}

// SceneResult is one scene's retrieval+narration output within an Experience.
type SceneResult struct {
	Scene       string         `json:"scene"`
	Memories    []ScoredMemory `json:"memories"`
	AINarrative string         `json:"ai_narrative"`
}

// TurnRole enumerates who spoke a ConversationTurn.
type TurnRole string

const (
	RolePatient TurnRole = "patient"
	RoleAgent   TurnRole = "agent"
)

// ConversationTurn is one entry in a per-(patient_id, topic) rolling log.
type ConversationTurn struct {
	Timestamp time.Time `json:"timestamp"`
	Role      TurnRole  `json:"role"`
	Message   string    `json:"message"`
	Topic     string    `json:"topic"`
}

// DisplayMode is one of the six labels the patient-facing client renders.
type DisplayMode string

const (
	ModeThreePics     DisplayMode = "three_pics"
	ModeFourPics      DisplayMode = "four_pics"
	ModeFivePics      DisplayMode = "five_pics"
	ModeVideo         DisplayMode = "video"
	ModeVerticalVideo DisplayMode = "vertical_video"
	ModeAgent         DisplayMode = "agent"
)

// Arity returns the number of media URLs this mode requires.
func (m DisplayMode) Arity() int {
	switch m {
	case ModeThreePics:
		return 3
	case ModeFourPics:
		return 4
	case ModeFivePics:
		return 5
	case ModeVideo, ModeVerticalVideo, ModeAgent:
		return 1
	default:
		return 0
	}
}

// DisplayPacket is the response of a patient query.
type DisplayPacket struct {
	Topic       string      `json:"topic"`
	Text        *string     `json:"text"`
	DisplayMode DisplayMode `json:"display_mode"`
	Media       []string    `json:"media"`
}

// CacheEntry is one key's value plus its expiry, checked against a monotonic
// clock rather than wall time so TTLs are immune to clock adjustments.
type CacheEntry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether this entry is stale as of now.
func (c CacheEntry) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// MediaInventory summarizes what's available across a set of candidate
// memories, used by the Intent/Display Classifier.
type MediaInventory struct {
	Images           int
	Videos           int
	HasVerticalVideo bool
}
