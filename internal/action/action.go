// Package action implements Curator's action engine: the uniform
// Validate/Build/Execute contract (spec §4.2) and the full action
// catalog (delete_indices, close, open, forcemerge, allocation,
// cluster_routing, replicas, rollover, snapshot, restore, shrink,
// reindex, alias, create_index, index_settings, delete_snapshots,
// cold2frozen).
package action

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/filter"
	"github.com/curatorhq/curator/internal/logging"
	"github.com/curatorhq/curator/internal/model"
)

// CommonOptions are the options every action exposes per spec §4.2.
type CommonOptions struct {
	TimeoutOverride     time.Duration
	ContinueIfException bool
	DisableAction       bool
	IgnoreEmptyList     bool
	AllowILMIndices     bool
	IncludeHidden       bool
	WaitForCompletion   bool
	WaitInterval        time.Duration // 1-30s
	MaxWait             time.Duration // -1 = forever
}

// DefaultCommonOptions mirrors the reference defaults.
func DefaultCommonOptions() CommonOptions {
	return CommonOptions{WaitInterval: 9 * time.Second, MaxWait: -1}
}

// Env is the shared execution environment every action receives: the ES
// adapter surfaces it needs, a scoped logger, and the dry-run flag.
type Env struct {
	Cluster  esclient.ClusterAPI
	Index    esclient.IndexAPI
	ILM      esclient.ILMAPI
	Snapshot esclient.SnapshotAPI
	Task     esclient.TaskAPI
	Log      *logging.ContextLogger
	DryRun   bool
}

// Plan is the materialized actionable set an action's Build step produces.
type Plan struct {
	Indices   []model.Index
	Snapshots []model.Snapshot
}

// Action is the uniform contract every catalog entry implements.
type Action interface {
	Kind() string
	Options() CommonOptions
	Validate() error
	Build(ctx context.Context, env *Env) (*Plan, error)
	Execute(ctx context.Context, env *Env, plan *Plan) error
}

// ResolveIndices runs the standard index-resolution pipeline shared by
// every index-based action's Build step: list the cluster inventory,
// drop hidden/ILM-managed indices per the common options, run the filter
// chain, then apply ignore_empty_list policy.
func ResolveIndices(ctx context.Context, env *Env, chain []filter.IndexFilter, opts CommonOptions) ([]model.Index, error) {
	all, err := env.Cluster.ListIndices(ctx)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.Cluster, "listing indices", err)
	}

	candidates := make([]model.Index, 0, len(all))
	for _, idx := range all {
		if idx.IsHidden && !opts.IncludeHidden {
			continue
		}
		if idx.ILMPolicyName != "" && !opts.AllowILMIndices {
			continue
		}
		candidates = append(candidates, idx)
	}

	result, err := filter.ApplyIndexChain(candidates, chain)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		if opts.IgnoreEmptyList {
			env.Log.Infof("filter chain produced an empty actionable list; ignore_empty_list is set, skipping")
			return nil, nil
		}
		return nil, curatorerr.New(curatorerr.EmptyList, "filter chain produced no entities")
	}
	env.Log.Infof("resolved %d indices totaling %s", len(result), humanize.Bytes(totalSize(result)))
	return result, nil
}

func totalSize(indices []model.Index) uint64 {
	var total int64
	for _, idx := range indices {
		total += idx.SizeInBytes
	}
	return uint64(total)
}

// CheckNoDataStreamWriteIndex enforces spec §4.2's "deletion fails if the
// filter chain selects the write-index of a data stream" rule. Callers
// that are not delete_indices may ignore this.
func CheckNoDataStreamWriteIndex(indices []model.Index) error {
	for _, idx := range indices {
		if idx.IsDataStreamWriteIndex {
			return curatorerr.New(curatorerr.Precondition, "refusing to operate on data stream write index "+idx.Name)
		}
	}
	return nil
}

// Poll wraps esclient.Poll using an action's wait options.
func Poll(ctx context.Context, opts CommonOptions, probe func(context.Context) (bool, error)) error {
	if !opts.WaitForCompletion {
		return nil
	}
	interval := opts.WaitInterval
	if interval <= 0 {
		interval = 9 * time.Second
	}
	err := esclient.Poll(ctx, interval, opts.MaxWait, probe)
	if err != nil {
		if esclient.IsTimeout(err) {
			return curatorerr.New(curatorerr.Timeout, "poll deadline exceeded")
		}
		return curatorerr.Wrap(curatorerr.Cluster, "polling for completion", err)
	}
	return nil
}

func indexNames(indices []model.Index) []string {
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = idx.Name
	}
	return names
}
