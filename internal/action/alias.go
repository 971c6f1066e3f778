package action

import (
	"context"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
	"github.com/curatorhq/curator/internal/model"
)

// Alias adds and/or removes an alias across the selected indices in a
// single batch.
type Alias struct {
	Common            CommonOptions
	AddChain          []filter.IndexFilter
	RemoveChain       []filter.IndexFilter
	Name              string
	ExtraSettingsJSON []byte
}

func (a *Alias) Kind() string           { return "alias" }
func (a *Alias) Options() CommonOptions { return a.Common }

func (a *Alias) Validate() error {
	if a.Name == "" {
		return curatorerr.New(curatorerr.ConfigError, "alias requires a name")
	}
	if len(a.AddChain) == 0 && len(a.RemoveChain) == 0 {
		return curatorerr.New(curatorerr.ConfigError, "alias requires an add or remove filter chain")
	}
	return nil
}

func (a *Alias) Build(ctx context.Context, env *Env) (*Plan, error) {
	plan := &Plan{}
	if len(a.AddChain) > 0 {
		indices, err := ResolveIndices(ctx, env, a.AddChain, CommonOptions{IgnoreEmptyList: true, AllowILMIndices: a.Common.AllowILMIndices, IncludeHidden: a.Common.IncludeHidden})
		if err != nil {
			return nil, err
		}
		plan.Indices = append(plan.Indices, indices...)
	}
	if len(a.RemoveChain) > 0 {
		indices, err := ResolveIndices(ctx, env, a.RemoveChain, CommonOptions{IgnoreEmptyList: true, AllowILMIndices: a.Common.AllowILMIndices, IncludeHidden: a.Common.IncludeHidden})
		if err != nil {
			return nil, err
		}
		plan.Indices = append(plan.Indices, indices...)
	}
	if len(plan.Indices) == 0 && !a.Common.IgnoreEmptyList {
		return nil, curatorerr.New(curatorerr.EmptyList, "alias action selected no indices")
	}
	return plan, nil
}

func (a *Alias) Execute(ctx context.Context, env *Env, plan *Plan) error {
	var addSet, removeSet []model.Index
	if len(a.AddChain) > 0 {
		set, err := ResolveIndices(ctx, env, a.AddChain, CommonOptions{IgnoreEmptyList: true, AllowILMIndices: a.Common.AllowILMIndices, IncludeHidden: a.Common.IncludeHidden})
		if err != nil {
			return err
		}
		addSet = set
	}
	if len(a.RemoveChain) > 0 {
		set, err := ResolveIndices(ctx, env, a.RemoveChain, CommonOptions{IgnoreEmptyList: true, AllowILMIndices: a.Common.AllowILMIndices, IncludeHidden: a.Common.IncludeHidden})
		if err != nil {
			return err
		}
		removeSet = set
	}
	if env.DryRun {
		env.Log.Infof("dry-run: would add alias %s to %v, remove from %v", a.Name, indexNames(addSet), indexNames(removeSet))
		return nil
	}
	if len(addSet) == 0 && len(removeSet) == 0 {
		return nil
	}
	if err := env.Index.UpdateAliases(ctx, indexNames(addSet), indexNames(removeSet), a.Name, a.ExtraSettingsJSON); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "swapping alias "+a.Name, err)
	}
	return nil
}
