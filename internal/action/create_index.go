package action

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
)

// CreateIndex creates a single named index with optional settings and
// mappings bodies; it does not consult the filter chain. Name is required
// and may carry a strftime pattern, expanded against time.Now() in Build.
type CreateIndex struct {
	Common       CommonOptions
	Name         string
	SettingsJSON []byte
	MappingsJSON []byte
}

func (a *CreateIndex) Kind() string           { return "create_index" }
func (a *CreateIndex) Options() CommonOptions { return a.Common }

func (a *CreateIndex) Validate() error {
	if a.Name == "" {
		return curatorerr.New(curatorerr.ConfigError, "create_index requires a name")
	}
	return nil
}

func (a *CreateIndex) Build(ctx context.Context, env *Env) (*Plan, error) {
	expanded, err := filter.FormatTimestring(a.Name, time.Now())
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "expanding create_index name pattern", err)
	}
	a.Name = expanded
	return &Plan{}, nil
}

func (a *CreateIndex) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if env.DryRun {
		env.Log.Infof("dry-run: would create index %s", a.Name)
		return nil
	}
	if err := env.Index.Create(ctx, a.Name, a.SettingsJSON, a.MappingsJSON); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "creating index "+a.Name, err)
	}
	return nil
}
