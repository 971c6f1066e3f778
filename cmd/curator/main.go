// Command curator runs a declared action file against an Elasticsearch
// cluster in strict numbered order (spec §6). Exit codes follow
// curatorerr.ExitCode: 0 success, 1 empty-list, 2 action failure,
// 3 configuration error.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/internal/actionfile"
	"github.com/curatorhq/curator/internal/bootstrap"
	"github.com/curatorhq/curator/internal/buildinfo"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/orchestrator"
)

var (
	cfgFile string
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "curator ACTION_FILE",
	Short: "run a Curator action file against an Elasticsearch cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionFile,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.curator/curator.yml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log planned actions without executing them")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print build and version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Get()
			fmt.Printf("curator %s (go %s, revision %s)\n", info.ModuleVersion, info.GoVersion, info.VCSRevision)
			return nil
		},
	})
}

func runActionFile(cmd *cobra.Command, args []string) error {
	entries, err := actionfile.LoadFile(args[0])
	if err != nil {
		return err
	}

	rt, err := bootstrap.NewRuntime(bootstrap.Options{ConfigFile: cfgFile, DryRun: dryRun})
	if err != nil {
		return err
	}

	resolver := fieldStatsResolver{index: rt.Env.Index}
	for _, e := range entries {
		actionfile.WireEntry(e, resolver)
	}

	summary := orchestrator.Run(context.Background(), rt.Env, entries, dryRun)
	for _, r := range summary.Results {
		if r.Skipped {
			rt.Log.Infof("action %d (%s) disabled, skipped", r.ID, r.Kind)
			continue
		}
		if r.Err != nil {
			rt.Log.WithError(r.Err).Errorf("action %d (%s) failed", r.ID, r.Kind)
		}
	}
	return summary.FirstError()
}

type fieldStatsResolver struct {
	index esclient.IndexAPI
}

func (r fieldStatsResolver) FieldStats(indexName, field string) (int64, int64, error) {
	return r.index.GetFieldStats(context.Background(), indexName, field)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(curatorerr.ExitCode(err))
	}
}
