package action

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/filter"
)

// Snapshot creates one snapshot covering every selected index.
type Snapshot struct {
	Common        CommonOptions
	Chain         []filter.IndexFilter
	Repository    string
	Name          string // strftime pattern, expanded against time.Now() in Build
	IgnoreUnavailable bool
	IncludeGlobalState bool
	Partial       bool
}

func (a *Snapshot) Kind() string           { return "snapshot" }
func (a *Snapshot) Options() CommonOptions { return a.Common }

func (a *Snapshot) Validate() error {
	if a.Repository == "" || a.Name == "" {
		return curatorerr.New(curatorerr.ConfigError, "snapshot requires a repository and a name")
	}
	return nil
}

func (a *Snapshot) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	expanded, err := filter.FormatTimestring(a.Name, time.Now())
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "expanding snapshot name pattern", err)
	}
	a.Name = expanded
	return &Plan{Indices: indices}, nil
}

func (a *Snapshot) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}
	names := indexNames(plan.Indices)
	if env.DryRun {
		env.Log.Infof("dry-run: would snapshot %v to %s/%s", names, a.Repository, a.Name)
		return nil
	}
	taskID, err := env.Snapshot.CreateSnapshot(ctx, a.Repository, a.Name, names, esclient.SnapshotOptions{
		IgnoreUnavailable:  a.IgnoreUnavailable,
		IncludeGlobalState: a.IncludeGlobalState,
		Partial:            a.Partial,
		WaitForCompletion:  a.Common.WaitForCompletion,
	})
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "creating snapshot "+a.Name, err)
	}
	_ = taskID
	return Poll(ctx, a.Common, func(ctx context.Context) (bool, error) {
		return env.Snapshot.SnapshotStatus(ctx, a.Repository, a.Name)
	})
}

// Restore restores a set of indices from a snapshot within a repository.
type Restore struct {
	Common            CommonOptions
	Repository        string
	SnapshotName       string
	Chain             []filter.SnapshotFilter
	Indices           []string
	RenamePattern     string
	RenameReplacement string
	IncludeAliases    bool
	ExtraSettingsJSON []byte
}

func (a *Restore) Kind() string           { return "restore" }
func (a *Restore) Options() CommonOptions { return a.Common }

func (a *Restore) Validate() error {
	if a.Repository == "" {
		return curatorerr.New(curatorerr.ConfigError, "restore requires a repository")
	}
	return nil
}

func (a *Restore) Build(ctx context.Context, env *Env) (*Plan, error) {
	if a.SnapshotName != "" {
		return &Plan{}, nil
	}
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
		return nil, curatorerr.New(curatorerr.EmptyList, "filter chain selected no snapshot to restore")
	}
	return &Plan{Snapshots: result}, nil
}

func (a *Restore) Execute(ctx context.Context, env *Env, plan *Plan) error {
	name := a.SnapshotName
	if name == "" {
		if plan == nil || len(plan.Snapshots) == 0 {
			return nil
		}
		name = plan.Snapshots[len(plan.Snapshots)-1].Name // most recent match by filter ordering
	}
	if env.DryRun {
		env.Log.Infof("dry-run: would restore snapshot %s from %s", name, a.Repository)
		return nil
	}
	taskID, err := env.Snapshot.RestoreSnapshot(ctx, a.Repository, name, esclient.RestoreOptions{
		Indices:           a.Indices,
		RenamePattern:     a.RenamePattern,
		RenameReplacement: a.RenameReplacement,
		IncludeAliases:    a.IncludeAliases,
		ExtraSettingsJSON: a.ExtraSettingsJSON,
		WaitForCompletion: a.Common.WaitForCompletion,
	})
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "restoring snapshot "+name, err)
	}
	_ = taskID
	return Poll(ctx, a.Common, func(ctx context.Context) (bool, error) {
		for _, idxName := range a.Indices {
			done, err := env.Index.RecoveryStatus(ctx, idxName)
			if err != nil || !done {
				return done, err
			}
		}
		return true, nil
	})
}
