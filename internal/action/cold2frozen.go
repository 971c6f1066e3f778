package action

import (
	"context"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
)

// Cold2Frozen re-mounts each selected cold-tier searchable-snapshot index
// in the frozen tier, then removes the cold-tier mount. Grounded in spec
// §4.2's action catalog entry of the same name; it is the ILM-independent
// equivalent of an ILM policy's cold→frozen phase transition, usable when
// an index was mounted outside of ILM (e.g. by the deepfreeze subsystem).
type Cold2Frozen struct {
	Common CommonOptions
	Chain  []filter.IndexFilter
}

func (a *Cold2Frozen) Kind() string           { return "cold2frozen" }
func (a *Cold2Frozen) Options() CommonOptions { return a.Common }
func (a *Cold2Frozen) Validate() error        { return nil }

func (a *Cold2Frozen) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	plan := &Plan{}
	for _, idx := range indices {
		if idx.IsSearchableSnapshot {
			plan.Indices = append(plan.Indices, idx)
		}
	}
	if len(plan.Indices) == 0 {
		if a.Common.IgnoreEmptyList {
			return nil, nil
		}
		return nil, curatorerr.New(curatorerr.EmptyList, "no cold-tier searchable snapshot index selected")
	}
	return plan, nil
}

func (a *Cold2Frozen) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	for _, idx := range plan.Indices {
		if env.DryRun {
			env.Log.Infof("dry-run: would remount %s in the frozen tier", idx.Name)
			continue
		}
		if idx.SnapshotRepository == "" || idx.SnapshotName == "" || idx.SnapshotSourceIndex == "" {
			if a.Common.ContinueIfException {
				env.Log.Warnf("continue_if_exception: cannot determine snapshot origin for %s, skipping", idx.Name)
				continue
			}
			return curatorerr.New(curatorerr.Precondition, "cannot determine snapshot origin for "+idx.Name)
		}
		mounted, err := env.Snapshot.MountSearchableSnapshot(ctx, idx.SnapshotRepository, idx.SnapshotName, idx.SnapshotSourceIndex, "frozen")
		if err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "mounting frozen-tier index for "+idx.Name, err)
		}
		if err := env.Index.Delete(ctx, []string{idx.Name}); err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "removing cold-tier mount "+idx.Name, err)
		}
		env.Log.Infof("remounted %s as %s in the frozen tier", idx.Name, mounted)
	}
	return nil
}
