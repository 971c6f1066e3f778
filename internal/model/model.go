// Package model holds the plain data types shared across the filter engine,
// action engine, and Deepfreeze subsystem: indices, snapshots, and the
// actionable list they flow through.
package model

import "time"

// IndexState is the open/closed state of an index.
type IndexState string

const (
	IndexOpen   IndexState = "open"
	IndexClosed IndexState = "closed"
)

// Index is the cluster's view of a single index, as resolved by the filter
// engine's source inventory call.
type Index struct {
	Name                 string
	State                IndexState
	CreationDateEpochMs   int64
	SegmentCountPerShard  int
	DocsCount             int64
	SizeInBytes           int64
	Aliases               map[string]struct{}
	RoutingAllocation     map[string]map[string]string // type -> key -> value, e.g. require -> box_type -> hot
	IsHidden              bool
	ILMPolicyName         string // empty if not ILM-managed
	IsSearchableSnapshot  bool
	IsDataStreamWriteIndex bool
	NumberOfShards        int // primary shard count, from _cat/indices' "pri" column

	// SnapshotRepository/SnapshotName/SnapshotSourceIndex carry a
	// searchable-snapshot index's recovery origin, as reported by
	// index.store.snapshot.* settings. Populated only when
	// IsSearchableSnapshot is true.
	SnapshotRepository  string
	SnapshotName        string
	SnapshotSourceIndex string

	// AgeEpochSeconds is not set by the inventory listing and not read by
	// any filter: the age/period/count/space filters derive an index's age
	// on each call from their own configured source (name, creation_date,
	// field_stats), since filters in one chain may declare different sources.
	AgeEpochSeconds int64
}

// HasAllAliases reports whether the index carries every alias in names.
func (idx Index) HasAllAliases(names []string) bool {
	for _, n := range names {
		if _, ok := idx.Aliases[n]; !ok {
			return false
		}
	}
	return true
}

// SnapshotState is the lifecycle state of a snapshot within a repository.
type SnapshotState string

const (
	SnapshotSuccess    SnapshotState = "SUCCESS"
	SnapshotPartial    SnapshotState = "PARTIAL"
	SnapshotFailed     SnapshotState = "FAILED"
	SnapshotInProgress SnapshotState = "IN_PROGRESS"
)

// Snapshot is identified by (Repository, Name).
type Snapshot struct {
	Repository      string
	Name            string
	StartTimeEpoch  int64
	State           SnapshotState
	Indices         []string
}

// ThawState is the Deepfreeze repository lifecycle state (spec §3).
type ThawState string

const (
	ThawActive  ThawState = "active"
	ThawFrozen  ThawState = "frozen"
	ThawThawing ThawState = "thawing"
	ThawThawed  ThawState = "thawed"
	ThawExpired ThawState = "expired"
)

// IsMounted returns the invariant value of is_mounted implied by state:
// is_mounted ⇔ thaw_state ∈ {active, thawed}.
func (s ThawState) IsMounted() bool {
	return s == ThawActive || s == ThawThawed
}

// Repository is a Deepfreeze-owned snapshot repository record, persisted in
// the status store.
type Repository struct {
	Name            string
	Bucket          string
	BasePath        string
	Suffix          string
	IsMounted       bool
	ThawState       ThawState
	EarliestEpochMs int64
	LatestEpochMs   int64
	Indices         []string
	ExpiresAt       *time.Time

	// SeqNo/PrimaryTerm carry the ES optimistic-concurrency headers for the
	// backing status-index document, used by the status store's CAS save.
	SeqNo        int64
	PrimaryTerm  int64
}

// ThawRequestStatus is the lifecycle state of a thaw request.
type ThawRequestStatus string

const (
	ThawRequestInProgress ThawRequestStatus = "in_progress"
	ThawRequestCompleted  ThawRequestStatus = "completed"
	ThawRequestFailed     ThawRequestStatus = "failed"
	ThawRequestRefrozen   ThawRequestStatus = "refrozen"
)

// RetrievalTier is the Glacier restore speed/cost tier.
type RetrievalTier string

const (
	TierExpedited RetrievalTier = "Expedited"
	TierStandard  RetrievalTier = "Standard"
	TierBulk      RetrievalTier = "Bulk"
)

// ThawRequest tracks one in-flight or historical thaw operation.
type ThawRequest struct {
	RequestID     string
	Repos         []string
	Status        ThawRequestStatus
	CreatedAt     time.Time
	StartDate     *time.Time
	EndDate       *time.Time
	DurationDays  int
	RetrievalTier RetrievalTier

	SeqNo       int64
	PrimaryTerm int64
}

// RotateStyle selects how repository suffixes are generated.
type RotateStyle string

const (
	StyleOneUp RotateStyle = "oneup"
	StyleDate  RotateStyle = "date"
)

// RotateBy selects whether rotation creates a new bucket or a new base path
// within an existing bucket.
type RotateBy string

const (
	RotateByBucket RotateBy = "bucket"
	RotateByPath   RotateBy = "path"
)

// Settings is the single Deepfreeze settings document.
type Settings struct {
	RepoNamePrefix   string
	BucketNamePrefix string
	BasePathPrefix   string
	StorageClass     string
	RotateBy         RotateBy
	LastSuffix       string
	Provider         string
	Style            RotateStyle
	Keep             int

	SeqNo       int64
	PrimaryTerm int64
}
