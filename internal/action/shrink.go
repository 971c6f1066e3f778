package action

import (
	"context"
	"fmt"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
)

const shrinkNodeDeterministic = "DETERMINISTIC"

// Shrink reduces each selected index to a smaller primary shard count,
// first forcing a move to a single node via the shrink-prep allocation
// setting, then issuing the shrink API call per index. ShrinkNodeName of
// "DETERMINISTIC" (the default) resolves, at Execute time, to the node
// with the most free disk space among those matching NodeFilters.
type Shrink struct {
	Common         CommonOptions
	Chain          []filter.IndexFilter
	ShrinkNodeName string
	NodeFilters    map[string]string // node attribute key -> required value
	NumberOfShards int
	TargetSuffix   string
	DeleteAfter    bool
}

func (a *Shrink) Kind() string           { return "shrink" }
func (a *Shrink) Options() CommonOptions { return a.Common }

func (a *Shrink) Validate() error {
	if a.NumberOfShards < 1 {
		return curatorerr.New(curatorerr.ConfigError, "shrink requires number_of_shards >= 1")
	}
	if a.TargetSuffix == "" {
		a.TargetSuffix = "-shrink"
	}
	return nil
}

func (a *Shrink) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

// resolveShrinkNode picks the node with the most available disk space among
// those whose attributes satisfy every entry in filters. A node_filters
// entry is an attribute-key -> required-value match, e.g. {"box_type":
// "hot"}; an empty filter set matches every node.
func resolveShrinkNode(ctx context.Context, env *Env, filters map[string]string) (string, error) {
	candidates, err := env.Cluster.NodeDiskStats(ctx)
	if err != nil {
		return "", curatorerr.Wrap(curatorerr.Cluster, "listing node disk stats", err)
	}
	best := ""
	var bestFree int64 = -1
	for _, n := range candidates {
		matches := true
		for k, v := range filters {
			if n.Attributes[k] != v {
				matches = false
				break
			}
		}
		if matches && n.AvailableBytes > bestFree {
			best = n.Name
			bestFree = n.AvailableBytes
		}
	}
	if best == "" {
		return "", curatorerr.New(curatorerr.Precondition, "no node matches shrink's node_filters")
	}
	return best, nil
}

// targetAbsent checks ES for an existing index named target; shrink's
// precondition requires the target to not already exist.
func targetAbsent(ctx context.Context, env *Env, target string) error {
	all, err := env.Cluster.ListIndices(ctx)
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "checking shrink target", err)
	}
	for _, idx := range all {
		if idx.Name == target {
			return curatorerr.New(curatorerr.Precondition, "shrink target "+target+" already exists")
		}
	}
	return nil
}

func (a *Shrink) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	nodeName := a.ShrinkNodeName
	if nodeName == "" || nodeName == shrinkNodeDeterministic {
		resolved, err := resolveShrinkNode(ctx, env, a.NodeFilters)
		if err != nil {
			return err
		}
		nodeName = resolved
	}
	for _, idx := range plan.Indices {
		target := idx.Name + a.TargetSuffix
		if env.DryRun {
			env.Log.Infof("dry-run: would shrink %s into %s with %d shards on node %s", idx.Name, target, a.NumberOfShards, nodeName)
			continue
		}
		if idx.NumberOfShards > 0 && idx.NumberOfShards%a.NumberOfShards != 0 {
			err := curatorerr.New(curatorerr.Precondition, fmt.Sprintf("number_of_shards %d is not a factor of %s's %d shards", a.NumberOfShards, idx.Name, idx.NumberOfShards))
			if a.Common.ContinueIfException {
				env.Log.WithError(err).Warnf("continue_if_exception: skipping %s", idx.Name)
				continue
			}
			return err
		}
		if err := targetAbsent(ctx, env, target); err != nil {
			if a.Common.ContinueIfException {
				env.Log.WithError(err).Warnf("continue_if_exception: skipping %s", idx.Name)
				continue
			}
			return err
		}
		health, err := env.Cluster.Health(ctx)
		if err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "checking cluster health before shrink", err)
		}
		if health.Status != "green" {
			err := curatorerr.New(curatorerr.Precondition, "shrink requires a green cluster, got "+health.Status)
			if a.Common.ContinueIfException {
				env.Log.WithError(err).Warnf("continue_if_exception: skipping %s", idx.Name)
				continue
			}
			return err
		}
		prep := []byte(fmt.Sprintf(`{"index.routing.allocation.require._name":%q,"index.blocks.write":true}`, nodeName))
		if err := env.Index.UpdateSettings(ctx, []string{idx.Name}, prep, false); err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "preparing "+idx.Name+" for shrink", err)
		}
		if err := Poll(ctx, CommonOptions{WaitForCompletion: true, WaitInterval: a.Common.WaitInterval, MaxWait: a.Common.MaxWait}, func(ctx context.Context) (bool, error) {
			return env.Index.RecoveryStatus(ctx, idx.Name)
		}); err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "waiting for "+idx.Name+" to relocate onto "+nodeName, err)
		}
		settings := []byte(fmt.Sprintf(`{"index":{"number_of_shards":%d}}`, a.NumberOfShards))
		if _, err := env.Index.Shrink(ctx, idx.Name, target, settings); err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "shrinking "+idx.Name, err)
		}
		if err := Poll(ctx, a.Common, func(ctx context.Context) (bool, error) {
			return env.Index.RecoveryStatus(ctx, target)
		}); err != nil {
			return err
		}
		if a.DeleteAfter {
			if err := env.Index.Delete(ctx, []string{idx.Name}); err != nil {
				return curatorerr.Wrap(curatorerr.Cluster, "deleting source index after shrink", err)
			}
		} else if err := env.Index.UpdateSettings(ctx, []string{idx.Name}, []byte(`{"index.routing.allocation.require._name":null,"index.blocks.write":false}`), false); err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "lifting read-only marker on "+idx.Name, err)
		}
	}
	return nil
}
