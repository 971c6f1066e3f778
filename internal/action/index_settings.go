package action

import (
	"context"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
)

// IndexSettings applies a dynamic settings body to every selected index.
type IndexSettings struct {
	Common           CommonOptions
	Chain            []filter.IndexFilter
	SettingsJSON     []byte
	PreserveExisting bool
}

func (a *IndexSettings) Kind() string           { return "index_settings" }
func (a *IndexSettings) Options() CommonOptions { return a.Common }

func (a *IndexSettings) Validate() error {
	if len(a.SettingsJSON) == 0 {
		return curatorerr.New(curatorerr.ConfigError, "index_settings requires a settings body")
	}
	return nil
}

func (a *IndexSettings) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

func (a *IndexSettings) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	names := indexNames(plan.Indices)
	if env.DryRun {
		env.Log.Infof("dry-run: would apply settings to %v", names)
		return nil
	}
	if err := env.Index.UpdateSettings(ctx, names, a.SettingsJSON, a.PreserveExisting); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "updating index settings", err)
	}
	return nil
}
