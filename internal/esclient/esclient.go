// Package esclient is Curator's typed wrapper over the Elasticsearch REST
// API surface the core uses: cluster, indices, ILM, snapshot,
// searchable-snapshots, reindex, tasks, recovery, and cat. It is split into
// narrow per-concern interfaces, in the teacher's narrow-interface-over-
// external-client idiom, so the filter/action/deepfreeze packages can be
// tested against small in-memory fakes without a live cluster.
package esclient

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/model"
)

// ClusterAPI covers cluster-wide inventory and health.
type ClusterAPI interface {
	// ListIndices returns the complete open+closed index inventory,
	// including hidden and data-stream backing indices (callers filter
	// those out per the include_hidden/allow_ilm_indices options).
	ListIndices(ctx context.Context) ([]model.Index, error)
	Health(ctx context.Context) (ClusterHealth, error)
	// IsElectedMaster supports the config file's master_only precondition.
	IsElectedMaster(ctx context.Context) (bool, error)
	// NodeDiskStats supports shrink's shrink_node=DETERMINISTIC resolution:
	// the node with the most free filesystem space, filtered by node
	// attributes.
	NodeDiskStats(ctx context.Context) ([]NodeDisk, error)
}

// NodeDisk is the subset of node stats Curator consults to pick a shrink
// target node: its custom attributes (for node_filters matching) and its
// available disk space.
type NodeDisk struct {
	Name           string
	Attributes     map[string]string
	AvailableBytes int64
}

// ClusterHealth is the subset of the cluster health API Curator consults.
type ClusterHealth struct {
	Status              string // green | yellow | red
	RelocatingShards    int
	InitializingShards  int
	UnassignedShards    int
}

// IndexAPI covers per-index mutation operations.
type IndexAPI interface {
	Create(ctx context.Context, name string, settingsJSON, mappingsJSON []byte) error
	Delete(ctx context.Context, names []string) error
	Open(ctx context.Context, names []string) error
	Close(ctx context.Context, names []string, skipFlush bool) error
	ForceMerge(ctx context.Context, name string, maxNumSegments int) (taskID string, err error)
	UpdateSettings(ctx context.Context, names []string, settingsJSON []byte, preserveExisting bool) error
	Shrink(ctx context.Context, source, target string, settingsJSON []byte) (taskID string, err error)
	Reindex(ctx context.Context, requestBodyJSON []byte, waitForCompletion bool) (taskOrResult string, err error)

	AddAlias(ctx context.Context, index, alias string, extraSettingsJSON []byte) error
	RemoveAlias(ctx context.Context, index, alias string) error
	// UpdateAliases issues a single bulk _aliases call so an add+remove
	// alias swap across indices is atomic: either every action in the
	// batch applies, or none does.
	UpdateAliases(ctx context.Context, add, remove []string, alias string, extraSettingsJSON []byte) error
	RolloverAlias(ctx context.Context, alias string, conditionsJSON []byte, newIndexName string) (rolledOver bool, newIndex string, err error)

	GetFieldStats(ctx context.Context, index, field string) (minEpochMs, maxEpochMs int64, err error)
	RecoveryStatus(ctx context.Context, index string) (done bool, err error)
}

// ILMAPI covers index lifecycle management policy CRUD (spec §4.3.2).
type ILMAPI interface {
	GetLifecycle(ctx context.Context, name string) (*ILMPolicy, error)
	ListLifecycles(ctx context.Context) ([]ILMPolicy, error)
	PutLifecycle(ctx context.Context, policy ILMPolicy) error
	DeleteLifecycle(ctx context.Context, name string) error

	// GetTemplateILMRefs returns, for every composable index template, the
	// template name and the index.lifecycle.name it sets (if any); used by
	// rotate's step 4. Legacy templates are not inspected.
	GetTemplateILMRefs(ctx context.Context) (map[string]string, error)
	SetTemplateILMPolicy(ctx context.Context, templateName, policyName string) error
}

// ILMPolicy mirrors the Elasticsearch ILM policy JSON shape: a map of phase
// name to Phase. Grounded on the terraform-provider-elasticstack reference
// shape (models.Policy/models.Phase/models.Action).
type ILMPolicy struct {
	Name     string
	Metadata map[string]interface{}
	Phases   map[string]ILMPhase
}

type ILMPhase struct {
	MinAge  string
	Actions map[string]map[string]interface{}
}

// SnapshotRepositoryReferences returns the repository name referenced by a
// policy's searchable_snapshot action in its "cold" (or any) phase, if any.
func (p ILMPolicy) SnapshotRepositoryReferences() (repo string, ok bool) {
	for _, phase := range p.Phases {
		action, present := phase.Actions["searchable_snapshot"]
		if !present {
			continue
		}
		if repoVal, present := action["snapshot_repository"]; present {
			if s, isStr := repoVal.(string); isStr {
				return s, true
			}
		}
	}
	return "", false
}

// HasDeleteSearchableSnapshot reports whether the delete phase (if any) has
// delete_searchable_snapshot=true, used for rotate's step 3 warning.
func (p ILMPolicy) HasDeleteSearchableSnapshot() bool {
	phase, ok := p.Phases["delete"]
	if !ok {
		return false
	}
	action, ok := phase.Actions["delete"]
	if !ok {
		return false
	}
	v, ok := action["delete_searchable_snapshot"]
	if !ok {
		return true // ES default is true when the delete action is present
	}
	b, _ := v.(bool)
	return b
}

// SnapshotAPI covers repository and snapshot lifecycle operations.
type SnapshotAPI interface {
	RegisterRepository(ctx context.Context, name, bucket, basePath string, settings map[string]interface{}) error
	UnregisterRepository(ctx context.Context, name string) error
	RepositoryExists(ctx context.Context, name string) (bool, error)

	ListSnapshots(ctx context.Context, repository string) ([]model.Snapshot, error)
	CreateSnapshot(ctx context.Context, repository, name string, indices []string, opts SnapshotOptions) (taskID string, err error)
	RestoreSnapshot(ctx context.Context, repository, name string, opts RestoreOptions) (taskID string, err error)
	DeleteSnapshot(ctx context.Context, repository, name string) error
	SnapshotStatus(ctx context.Context, repository, name string) (done bool, err error)

	// MountSearchableSnapshot mounts an index from a snapshot in the given
	// storage tier ("cold" or "frozen") and returns the mounted index name
	// as reported by the cluster — never hard-coded, per DESIGN.md's Open
	// Question decision.
	MountSearchableSnapshot(ctx context.Context, repository, snapshot, index, tier string) (mountedName string, err error)
}

type SnapshotOptions struct {
	IgnoreUnavailable  bool
	IncludeGlobalState bool
	Partial            bool
	SkipRepoFSCheck    bool
	WaitForCompletion  bool
}

type RestoreOptions struct {
	Indices             []string
	RenamePattern       string
	RenameReplacement   string
	IncludeAliases      bool
	ExtraSettingsJSON   []byte
	WaitForCompletion   bool
}

// TaskAPI polls long-running task handles (reindex, etc).
type TaskAPI interface {
	TaskStatus(ctx context.Context, taskID string) (done bool, err error)
}

// Poll is a small shared helper implementing spec §4.2's wait/poll state
// machine: submitted → polling → done|timed_out|failed. maxWait<0 means no
// deadline.
func Poll(ctx context.Context, waitInterval time.Duration, maxWait time.Duration, probe func(ctx context.Context) (done bool, err error)) error {
	deadline := time.Time{}
	if maxWait >= 0 {
		deadline = time.Now().Add(maxWait)
	}
	for {
		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if maxWait == 0 {
			return errTimeout
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return errTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitInterval):
		}
	}
}

var errTimeout = timeoutSentinel{}

type timeoutSentinel struct{}

func (timeoutSentinel) Error() string { return "poll deadline exceeded" }

// IsTimeout reports whether err is the Poll deadline-exceeded sentinel.
func IsTimeout(err error) bool {
	_, ok := err.(timeoutSentinel)
	return ok
}
