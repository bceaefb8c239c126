package catalog

import (
	"strings"
	"time"

	"lingotool/internal/lang"
)

// ArtifactType classifies the physical carrier of translatable content.
type ArtifactType string

const (
	ArtifactArchive   ArtifactType = "archive"
	ArtifactDirectory ArtifactType = "directory"
)

// Artifact is a physical file or directory containing one or more containers.
type Artifact struct {
	ID          string
	Type        ArtifactType
	Path        string
	ContentHash string
	Size        int64
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Container is a logical translatable unit (a mod, a pack module, an overlay)
// inside an Artifact.
type Container struct {
	ID          string
	ArtifactID  string
	Type        string
	ModID       string
	DisplayName string
	Version     string
	Namespace   string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// LanguageFile ties (container, locale, namespace, path) to one content blob.
type LanguageFile struct {
	ID          string
	ContainerID string
	Locale      string
	Namespace   string
	FilePath    string
	ContentHash string
	KeyCount    int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Blob is an immutable content-addressed key to text mapping. The hash is
// the SHA-256 of the canonical serialization; any content change produces a
// new Blob.
type Blob struct {
	Hash          string
	CanonicalJSON string
	Size          int64
	EntryCount    int
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Entries materializes the cached mapping from the canonical serialization.
func (b *Blob) Entries() (lang.Entries, error) {
	return lang.ParseEntries([]byte(b.CanonicalJSON))
}

// BlobSimilarity pairs a blob with its Jaccard key-set similarity to some
// reference blob.
type BlobSimilarity struct {
	Blob       *Blob
	Similarity float64
}

// BlobStats aggregates store-wide dedup figures.
type BlobStats struct {
	TotalBlobs      int
	TotalEntries    int
	TotalSize       int64
	TotalReferences int
	DedupRatio      float64
}

// PatchStatus is the lifecycle of a patch set.
type PatchStatus string

const (
	PatchDraft     PatchStatus = "draft"
	PatchPublished PatchStatus = "published"
	PatchApplied   PatchStatus = "applied"
	PatchArchived  PatchStatus = "archived"
)

// ParsePatchStatus converts a string into a known PatchStatus.
func ParsePatchStatus(value string) (PatchStatus, bool) {
	normalized := PatchStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case PatchDraft, PatchPublished, PatchApplied, PatchArchived:
		return normalized, true
	}
	return "", false
}

// CanTransition reports whether a status change is legal. Archived is
// terminal; applied sets may only be archived.
func (s PatchStatus) CanTransition(next PatchStatus) bool {
	switch s {
	case PatchDraft:
		return next == PatchPublished || next == PatchArchived
	case PatchPublished:
		return next == PatchApplied || next == PatchArchived
	case PatchApplied:
		return next == PatchArchived
	default:
		return false
	}
}

// PatchSetRecord is the persisted form of a patch set.
type PatchSetRecord struct {
	ID          string
	Name        string
	Description string
	Version     string
	Status      PatchStatus
	Signature   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PatchItemRecord is the persisted form of a patch item. Content lives in
// the blob referenced by ExpectedBlobHash.
type PatchItemRecord struct {
	ID                 string
	PatchSetID         string
	TargetContainerID  string
	Namespace          string
	Locale             string
	Policy             string
	ExpectedBlobHash   string
	ExpectedEntryCount int
	TargetMemberPath   string
	UpstreamAnchorBlob string
	CreatedAt          time.Time
}

// PlanStatus is the lifecycle of a writeback plan.
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// CanTransition reports whether a plan status change is legal. Completed
// and failed are terminal; re-executing a finished plan requires a new plan.
func (s PlanStatus) CanTransition(next PlanStatus) bool {
	switch s {
	case PlanPending:
		return next == PlanExecuting
	case PlanExecuting:
		return next == PlanCompleted || next == PlanFailed
	default:
		return false
	}
}

// PlanRecord is the persisted form of a writeback plan.
type PlanRecord struct {
	ID         string
	PatchSetID string
	Status     PlanStatus
	CreatedAt  time.Time
}

// RunStatus is the lifecycle of a single apply run.
type RunStatus string

const (
	RunRunning    RunStatus = "running"
	RunSuccess    RunStatus = "success"
	RunFailed     RunStatus = "failed"
	RunRolledBack RunStatus = "rolled_back"
)

// RunRecord is the audit record for one execution attempt.
type RunRecord struct {
	ID          string
	PlanID      string
	Status      RunStatus
	DryRun      bool
	Force       bool
	StartedAt   time.Time
	CompletedAt *time.Time
}

// ResultStatus is the outcome of applying one patch item.
type ResultStatus string

const (
	ResultSuccess  ResultStatus = "success"
	ResultFailed   ResultStatus = "failed"
	ResultConflict ResultStatus = "conflict"
	ResultSkipped  ResultStatus = "skipped"
)

// RollbackStatus tracks whether a result has been rolled back.
type RollbackStatus string

const (
	RollbackNotNeeded RollbackStatus = "not_needed"
	RollbackSuccess   RollbackStatus = "success"
	RollbackFailed    RollbackStatus = "failed"
)

// ResultRecord is the per-item audit row of an apply run. Completion fields
// are append-only; rows are never rewritten after the run finishes.
type ResultRecord struct {
	ID             string
	RunID          string
	PatchItemID    string
	Status         ResultStatus
	Strategy       string
	TargetPath     string
	BeforeHash     string
	AfterHash      string
	ExpectedHash   string
	BackupPath     string
	ErrorMessage   string
	RollbackStatus RollbackStatus
	CreatedAt      time.Time
}

// QualityCheck is a persisted failing validator result, kept for audit
// regardless of the aggregate gate outcome.
type QualityCheck struct {
	ID          string
	PatchSetID  string
	EntryKey    string
	Validator   string
	Level       string
	Message     string
	DetailsJSON string
	CheckedAt   time.Time
}
