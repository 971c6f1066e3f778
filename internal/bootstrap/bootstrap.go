// Package bootstrap wires a cmd binary's flags/config into a live
// action.Env and deepfreeze.Env, following the teacher's runServer
// initialization sequence (cli/root.go): load configuration, construct
// adapters, hand back a ready-to-run environment.
package bootstrap

import (
	"context"

	"github.com/curatorhq/curator/internal/action"
	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/deepfreeze"
	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/logging"
	"github.com/curatorhq/curator/internal/statestore"
)

// Options carries the flag/config overlay a binary's root command collects
// before dispatching to a subcommand.
type Options struct {
	ConfigFile string
	DryRun     bool
	LogOverride string // --loglevel override, empty = use config file value
}

// Runtime bundles everything a subcommand needs: the parsed config, a
// scoped logger, and an action.Env wired against a live cluster.
type Runtime struct {
	Config config.Config
	Log    *logging.ContextLogger
	Env    *action.Env
}

// NewRuntime loads configuration, builds the ES client, and assembles an
// action.Env. It does not touch the object store or status store, since
// the action-file runner and most curator_cli subcommands never need them.
func NewRuntime(opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:   logging.Level(cfg.Logging.LogLevel),
		Format:  logging.Format(cfg.Logging.LogFormat),
		LogFile: cfg.Logging.LogFile,
	}
	if opts.LogOverride != "" {
		logCfg.Level = logging.Level(opts.LogOverride)
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "initializing logger", err)
	}
	ctxLog := logging.NewContextLogger(logger)

	esClient, err := config.BuildESClient(cfg.Elasticsearch)
	if err != nil {
		return nil, err
	}
	adapter := esclient.New(esClient)

	env := &action.Env{
		Cluster:  adapter,
		Index:    adapter,
		ILM:      adapter,
		Snapshot: adapter,
		Task:     adapter,
		Log:      ctxLog,
		DryRun:   opts.DryRun,
	}

	if cfg.Elasticsearch.MasterOnly {
		if err := checkMasterOnly(adapter); err != nil {
			return nil, err
		}
	}

	return &Runtime{Config: cfg, Log: ctxLog, Env: env}, nil
}

func checkMasterOnly(cluster esclient.ClusterAPI) error {
	elected, err := cluster.IsElectedMaster(context.Background())
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "checking master_only precondition", err)
	}
	if !elected {
		return curatorerr.New(curatorerr.Precondition, "master_only is set and this node is not the elected master")
	}
	return nil
}

// DeepfreezeEnv extends rt's action.Env with the object store and status
// store Deepfreeze subcommands need.
func DeepfreezeEnv(ctx context.Context, rt *Runtime, lockOwner string) (*deepfreeze.Env, error) {
	s3, err := config.BuildS3Store(ctx, rt.Config.S3)
	if err != nil {
		return nil, err
	}
	esClient, err := config.BuildESClient(rt.Config.Elasticsearch)
	if err != nil {
		return nil, err
	}
	store := statestore.New(esClient)
	adapter := esclient.New(esClient)

	return &deepfreeze.Env{
		Cluster:   adapter,
		ILM:       adapter,
		Index:     adapter,
		Snapshot:  adapter,
		S3:        s3,
		Store:     store,
		Log:       rt.Env.Log,
		DryRun:    rt.Env.DryRun,
		LockOwner: lockOwner,
	}, nil
}
