package action

import (
	"context"
	"fmt"

	"github.com/curatorhq/curator/internal/curatorerr"
)

// Rollover rolls an alias over to a new backing index once any of its
// configured conditions are met. Unlike the other actions, rollover does
// not consult the filter chain: the alias identifies its own target.
type Rollover struct {
	Common           CommonOptions
	Alias            string
	MaxAge           string // e.g. "7d"
	MaxDocs          int64
	MaxSize          string // e.g. "50gb"
	MaxPrimaryShardSize string
	NewIndexName     string // optional explicit name override
}

func (a *Rollover) Kind() string           { return "rollover" }
func (a *Rollover) Options() CommonOptions { return a.Common }

func (a *Rollover) Validate() error {
	if a.Alias == "" {
		return curatorerr.New(curatorerr.ConfigError, "rollover requires an alias")
	}
	if a.MaxAge == "" && a.MaxDocs == 0 && a.MaxSize == "" && a.MaxPrimaryShardSize == "" {
		return curatorerr.New(curatorerr.ConfigError, "rollover requires at least one condition")
	}
	return nil
}

func (a *Rollover) Build(ctx context.Context, env *Env) (*Plan, error) {
	return &Plan{}, nil
}

func (a *Rollover) conditionsJSON() []byte {
	conditions := map[string]interface{}{}
	if a.MaxAge != "" {
		conditions["max_age"] = a.MaxAge
	}
	if a.MaxDocs > 0 {
		conditions["max_docs"] = a.MaxDocs
	}
	if a.MaxSize != "" {
		conditions["max_size"] = a.MaxSize
	}
	if a.MaxPrimaryShardSize != "" {
		conditions["max_primary_shard_size"] = a.MaxPrimaryShardSize
	}
	var buf []byte
	buf = append(buf, '{')
	first := true
	for k, v := range conditions {
		if !first {
			buf = append(buf, ',')
		}
		first = false
		switch val := v.(type) {
		case string:
			buf = append(buf, []byte(fmt.Sprintf("%q:%q", k, val))...)
		case int64:
			buf = append(buf, []byte(fmt.Sprintf("%q:%d", k, val))...)
		}
	}
	buf = append(buf, '}')
	return buf
}

func (a *Rollover) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if env.DryRun {
		env.Log.Infof("dry-run: would evaluate rollover conditions on alias %s", a.Alias)
		return nil
	}
	rolledOver, newIndex, err := env.Index.RolloverAlias(ctx, a.Alias, a.conditionsJSON(), a.NewIndexName)
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "rolling over alias "+a.Alias, err)
	}
	if rolledOver {
		env.Log.Infof("rolled over alias %s to %s", a.Alias, newIndex)
	} else {
		env.Log.Infof("rollover conditions not met for alias %s", a.Alias)
	}
	return nil
}
