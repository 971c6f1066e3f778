package action

import (
	"context"
	"fmt"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
)

// Close closes every selected index. SkipFlush is passed through to
// IndexAPI.Close; the ES client issues no flush either way.
type Close struct {
	Common    CommonOptions
	Chain     []filter.IndexFilter
	SkipFlush bool
}

func (a *Close) Kind() string           { return "close" }
func (a *Close) Options() CommonOptions { return a.Common }
func (a *Close) Validate() error        { return nil }

func (a *Close) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

func (a *Close) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	names := indexNames(plan.Indices)
	if env.DryRun {
		env.Log.Infof("dry-run: would close %v", names)
		return nil
	}
	if err := env.Index.Close(ctx, names, a.SkipFlush); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "closing indices", err)
	}
	return nil
}

// Open opens every selected index.
type Open struct {
	Common CommonOptions
	Chain  []filter.IndexFilter
}

func (a *Open) Kind() string           { return "open" }
func (a *Open) Options() CommonOptions { return a.Common }
func (a *Open) Validate() error        { return nil }

func (a *Open) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

func (a *Open) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	names := indexNames(plan.Indices)
	if env.DryRun {
		env.Log.Infof("dry-run: would open %v", names)
		return nil
	}
	if err := env.Index.Open(ctx, names); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "opening indices", err)
	}
	return nil
}

// ForceMerge runs a forcemerge against each selected index individually
// (the ES API only accepts one target at a time per shard group), polling
// each task to completion when wait_for_completion is set.
type ForceMerge struct {
	Common         CommonOptions
	Chain          []filter.IndexFilter
	MaxNumSegments int
}

func (a *ForceMerge) Kind() string           { return "forcemerge" }
func (a *ForceMerge) Options() CommonOptions { return a.Common }

func (a *ForceMerge) Validate() error {
	if a.MaxNumSegments < 1 {
		return curatorerr.New(curatorerr.ConfigError, "forcemerge requires max_num_segments >= 1")
	}
	return nil
}

func (a *ForceMerge) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	plan := &Plan{}
	for _, idx := range indices {
		if idx.SegmentCountPerShard > a.MaxNumSegments {
			plan.Indices = append(plan.Indices, idx)
		}
	}
	if len(plan.Indices) == 0 {
		if a.Common.IgnoreEmptyList {
			return nil, nil
		}
		return nil, curatorerr.New(curatorerr.EmptyList, "no index exceeds max_num_segments")
	}
	return plan, nil
}

func (a *ForceMerge) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	if env.DryRun {
		env.Log.Infof("dry-run: would forcemerge %v to %d segments", indexNames(plan.Indices), a.MaxNumSegments)
		return nil
	}
	for _, idx := range plan.Indices {
		taskID, err := env.Index.ForceMerge(ctx, idx.Name, a.MaxNumSegments)
		if err != nil {
			if a.Common.ContinueIfException {
				env.Log.WithError(err).Warnf("continue_if_exception: forcemerge failed for %s", idx.Name)
				continue
			}
			return curatorerr.Wrap(curatorerr.Cluster, "forcemerging "+idx.Name, err)
		}
		err = Poll(ctx, a.Common, func(ctx context.Context) (bool, error) {
			return env.Task.TaskStatus(ctx, taskID)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Replicas sets number_of_replicas on every selected index.
type Replicas struct {
	Common         CommonOptions
	Chain          []filter.IndexFilter
	NumberReplicas int
}

func (a *Replicas) Kind() string           { return "replicas" }
func (a *Replicas) Options() CommonOptions { return a.Common }

func (a *Replicas) Validate() error {
	if a.NumberReplicas < 0 {
		return curatorerr.New(curatorerr.ConfigError, "replicas requires number_of_replicas >= 0")
	}
	return nil
}

func (a *Replicas) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

func (a *Replicas) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	names := indexNames(plan.Indices)
	settings := []byte(fmt.Sprintf(`{"index":{"number_of_replicas":%d}}`, a.NumberReplicas))
	if env.DryRun {
		env.Log.Infof("dry-run: would set replicas=%d on %v", a.NumberReplicas, names)
		return nil
	}
	if err := env.Index.UpdateSettings(ctx, names, settings, false); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "updating replicas", err)
	}
	return nil
}

// Allocation applies (or removes) a shard routing allocation rule.
type Allocation struct {
	Common    CommonOptions
	Chain     []filter.IndexFilter
	Key       string
	Value     string
	AllocType string // require | include | exclude
}

func (a *Allocation) Kind() string           { return "allocation" }
func (a *Allocation) Options() CommonOptions { return a.Common }

func (a *Allocation) Validate() error {
	switch a.AllocType {
	case "require", "include", "exclude":
	default:
		return curatorerr.New(curatorerr.ConfigError, "allocation requires allocation_type in require|include|exclude")
	}
	if a.Key == "" {
		return curatorerr.New(curatorerr.ConfigError, "allocation requires a key")
	}
	return nil
}

func (a *Allocation) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

func (a *Allocation) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	names := indexNames(plan.Indices)
	settings := []byte(fmt.Sprintf(`{"index.routing.allocation.%s.%s":%q}`, a.AllocType, a.Key, a.Value))
	if env.DryRun {
		env.Log.Infof("dry-run: would apply allocation rule %s.%s=%s to %v", a.AllocType, a.Key, a.Value, names)
		return nil
	}
	if err := env.Index.UpdateSettings(ctx, names, settings, false); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "applying allocation rule", err)
	}
	return nil
}

// ClusterRouting toggles cluster-wide shard allocation or rebalancing,
// used around maintenance windows. RoutingType selects which of the two
// settings keys is written; Value is the enable state applied to it.
type ClusterRouting struct {
	Common      CommonOptions
	RoutingType string // allocation | rebalance
	Value       string // all | primaries | none | new_primaries | replicas
	Setting     string // transient | persistent
}

func (a *ClusterRouting) Kind() string           { return "cluster_routing" }
func (a *ClusterRouting) Options() CommonOptions { return a.Common }

func (a *ClusterRouting) Validate() error {
	switch a.RoutingType {
	case "allocation", "rebalance":
	default:
		return curatorerr.New(curatorerr.ConfigError, "cluster_routing requires routing_type in allocation|rebalance")
	}
	switch a.Value {
	case "all", "primaries", "new_primaries", "none", "replicas":
	default:
		return curatorerr.New(curatorerr.ConfigError, "cluster_routing requires a valid value")
	}
	return nil
}

func (a *ClusterRouting) Build(ctx context.Context, env *Env) (*Plan, error) { return &Plan{}, nil }

func (a *ClusterRouting) Execute(ctx context.Context, env *Env, plan *Plan) error {
	scope := a.Setting
	if scope == "" {
		scope = "transient"
	}
	settingKey := fmt.Sprintf("cluster.routing.%s.enable", a.RoutingType)
	body := []byte(fmt.Sprintf(`{%q:{%q:%q}}`, scope, settingKey, a.Value))
	if env.DryRun {
		env.Log.Infof("dry-run: would set %s=%s", settingKey, a.Value)
		return nil
	}
	if err := env.Index.UpdateSettings(ctx, nil, body, false); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "setting cluster routing", err)
	}
	if a.Common.WaitForCompletion {
		return Poll(ctx, a.Common, func(ctx context.Context) (bool, error) {
			health, err := env.Cluster.Health(ctx)
			if err != nil {
				return false, err
			}
			return health.RelocatingShards == 0 && health.InitializingShards == 0, nil
		})
	}
	return nil
}
