package action

import (
	"context"
	"strings"
	"time"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
)

// DeleteIndices removes every index the filter chain selects. Refuses a
// data stream's write index per spec §4.2's precondition.
type DeleteIndices struct {
	Common CommonOptions
	Chain  []filter.IndexFilter
}

func (a *DeleteIndices) Kind() string           { return "delete_indices" }
func (a *DeleteIndices) Options() CommonOptions { return a.Common }

func (a *DeleteIndices) Validate() error {
	if len(a.Chain) == 0 {
		return curatorerr.New(curatorerr.ConfigError, "delete_indices requires at least one filter")
	}
	return nil
}

func (a *DeleteIndices) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	if err := CheckNoDataStreamWriteIndex(indices); err != nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

func (a *DeleteIndices) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	names := indexNames(plan.Indices)
	env.Log.Infof("deleting %d indices", len(names))
	if env.DryRun {
		return nil
	}
	if err := env.Index.Delete(ctx, names); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "deleting indices", err)
	}
	return nil
}

// DeleteSnapshots removes every snapshot the filter chain selects from a
// single repository, retrying RetryCount times with RetryInterval between
// attempts when the repository reports a conflicting in-progress
// operation (e.g. a concurrent snapshot-create).
type DeleteSnapshots struct {
	Common        CommonOptions
	Repository    string
	Chain         []filter.SnapshotFilter
	RetryCount    int
	RetryInterval time.Duration
}

func (a *DeleteSnapshots) Kind() string           { return "delete_snapshots" }
func (a *DeleteSnapshots) Options() CommonOptions { return a.Common }

func (a *DeleteSnapshots) Validate() error {
	if a.Repository == "" {
		return curatorerr.New(curatorerr.ConfigError, "delete_snapshots requires a repository")
	}
	if a.RetryCount <= 0 {
		a.RetryCount = 3
	}
	if a.RetryInterval <= 0 {
		a.RetryInterval = 120 * time.Second
	}
	return nil
}

// isSnapshotConflict reports whether err is Elasticsearch's response to
// deleting a snapshot while another snapshot operation holds the
// repository, which clears once the in-progress operation completes.
func isSnapshotConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "ConcurrentSnapshotExecutionException") ||
		strings.Contains(msg, "snapshot_in_progress_exception") ||
		strings.Contains(msg, "in progress")
}

func (a *DeleteSnapshots) Build(ctx context.Context, env *Env) (*Plan, error) {
	all, err := env.Snapshot.ListSnapshots(ctx, a.Repository)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.Cluster, "listing snapshots", err)
	}
	result, err := filter.ApplySnapshotChain(all, a.Chain)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		if a.Common.IgnoreEmptyList {
			return nil, nil
		}
		return nil, curatorerr.New(curatorerr.EmptyList, "filter chain produced no snapshots")
	}
	return &Plan{Snapshots: result}, nil
}

func (a *DeleteSnapshots) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Snapshots) == 0 {
		return nil
	}
	env.Log.Infof("deleting %d snapshots from repository %s", len(plan.Snapshots), a.Repository)
	if env.DryRun {
		return nil
	}
	for _, snap := range plan.Snapshots {
		var lastErr error
		for attempt := 0; attempt <= a.RetryCount; attempt++ {
			if attempt > 0 {
				env.Log.Infof("retrying delete of snapshot %s after conflict (attempt %d/%d)", snap.Name, attempt, a.RetryCount)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(a.RetryInterval):
				}
			}
			lastErr = env.Snapshot.DeleteSnapshot(ctx, a.Repository, snap.Name)
			if lastErr == nil || !isSnapshotConflict(lastErr) {
				break
			}
		}
		if lastErr != nil {
			if a.Common.ContinueIfException {
				env.Log.WithError(lastErr).Warnf("continue_if_exception: failed deleting snapshot %s", snap.Name)
				continue
			}
			return curatorerr.Wrap(curatorerr.Cluster, "deleting snapshot "+snap.Name, lastErr)
		}
	}
	return nil
}
