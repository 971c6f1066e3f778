package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/internal/bootstrap"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/deepfreeze"
	"github.com/curatorhq/curator/internal/model"
)

func newDeepfreezeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepfreeze",
		Short: "manage the Deepfreeze cold-storage repository lifecycle",
	}
	cmd.AddCommand(
		newDeepfreezeSetupCommand(),
		newDeepfreezeStatusCommand(),
		newDeepfreezeRotateCommand(),
		newDeepfreezeThawCommand(),
		newDeepfreezeRefreezeCommand(),
		newDeepfreezeCleanupCommand(),
		newDeepfreezeRepairMetadataCommand(),
	)
	return cmd
}

func deepfreezeEnv(ctx context.Context) (*deepfreeze.Env, *bootstrap.Runtime, error) {
	rt, err := bootstrap.NewRuntime(bootstrap.Options{ConfigFile: cfgFile, DryRun: dryRun})
	if err != nil {
		return nil, nil, err
	}
	env, err := bootstrap.DeepfreezeEnv(ctx, rt, "curator_cli-"+uuid.NewString())
	if err != nil {
		return nil, nil, err
	}
	return env, rt, nil
}

func newDeepfreezeSetupCommand() *cobra.Command {
	opts := deepfreeze.SetupOptions{}
	var rotateBy, style string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "one-shot Deepfreeze initialization",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RotateBy = model.RotateBy(rotateBy)
			opts.Style = model.RotateStyle(style)
			env, rt, err := deepfreezeEnv(cmd.Context())
			if err != nil {
				return err
			}
			settings, repo, err := deepfreeze.Setup(cmd.Context(), env, opts)
			if err != nil {
				return err
			}
			rt.Log.Infof("deepfreeze setup complete: repository %s, bucket/path prefix %s", repo.Name, settings.BucketNamePrefix)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.RepoNamePrefix, "repo-name-prefix", "deepfreeze", "repository name prefix")
	cmd.Flags().StringVar(&opts.BucketNamePrefix, "bucket-name-prefix", "deepfreeze", "bucket name prefix")
	cmd.Flags().StringVar(&opts.BasePathPrefix, "base-path-prefix", "deepfreeze", "base path prefix")
	cmd.Flags().StringVar(&opts.StorageClass, "storage-class", "GLACIER", "cold storage class (GLACIER|DEEP_ARCHIVE)")
	cmd.Flags().StringVar(&rotateBy, "rotate-by", "bucket", "rotate by bucket|path")
	cmd.Flags().StringVar(&style, "style", "oneup", "suffix style oneup|date")
	cmd.Flags().StringVar(&opts.Provider, "provider", "aws", "cloud provider")
	cmd.Flags().IntVar(&opts.Keep, "keep", 6, "number of mounted repositories to retain")
	return cmd
}

func newDeepfreezeStatusCommand() *cobra.Command {
	var repoName string
	var all bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "report Deepfreeze repository status",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _, err := deepfreezeEnv(cmd.Context())
			if err != nil {
				return err
			}
			repos, err := env.Store.ListRepositories(cmd.Context())
			if err != nil {
				return curatorerr.Wrap(curatorerr.Cluster, "listing repositories", err)
			}
			for _, r := range repos {
				if !all && repoName != "" && r.Name != repoName {
					continue
				}
				printRepoLine(r)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoName, "repo", "", "report only this repository")
	cmd.Flags().BoolVar(&all, "all", false, "report every repository, ignoring --repo")
	return cmd
}

func printRepoLine(r model.Repository) {
	if porcelain {
		fmt.Printf("REPO\t%s\t%s\t%s\t%s\t%t\n", r.Name, r.Bucket, r.BasePath, r.ThawState, r.IsMounted)
		return
	}
	fmt.Printf("%-30s bucket=%-20s path=%-20s state=%-8s mounted=%t\n", r.Name, r.Bucket, r.BasePath, r.ThawState, r.IsMounted)
}

func newDeepfreezeRotateCommand() *cobra.Command {
	opts := deepfreeze.RotateOptions{}

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "rotate to a new repository and retire the tail beyond --keep",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, rt, err := deepfreezeEnv(cmd.Context())
			if err != nil {
				return err
			}
			result, err := deepfreeze.Rotate(cmd.Context(), env, opts)
			if err != nil {
				return err
			}
			rt.Log.Infof("rotated to %s; unmounted %d, skipped %d", result.NewRepository.Name, len(result.UnmountedRepos), len(result.SkippedRepos))
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Year, "year", 0, "override year for date-style suffixes")
	cmd.Flags().IntVar(&opts.Month, "month", 0, "override month for date-style suffixes")
	cmd.Flags().IntVar(&opts.Keep, "keep", 6, "number of mounted repositories to retain")
	cmd.Flags().StringVar(&opts.NameTimestring, "timestring", "%Y.%m.%d", "strftime-subset pattern for index timestamps")
	return cmd
}

func newDeepfreezeThawCommand() *cobra.Command {
	var startDate, endDate, tier, requestID, timestring string
	var durationDays int
	var sync, checkStatus bool

	cmd := &cobra.Command{
		Use:   "thaw",
		Short: "restore frozen repositories for a date range, or check an in-flight request",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, rt, err := deepfreezeEnv(cmd.Context())
			if err != nil {
				return err
			}
			if checkStatus {
				req, err := deepfreeze.ThawCheckStatus(cmd.Context(), env, requestID, timestring)
				if err != nil {
					return err
				}
				if porcelain {
					repos, _ := env.Store.ListRepositories(cmd.Context())
					fmt.Println(deepfreeze.ThawPorcelain(req, repos))
				} else {
					rt.Log.Infof("thaw request %s: %s", req.RequestID, req.Status)
				}
				return nil
			}

			opts := deepfreeze.ThawCreateOptions{
				DurationDays:   durationDays,
				RetrievalTier:  model.RetrievalTier(tier),
				Sync:           sync,
				NameTimestring: timestring,
			}
			if startDate != "" {
				t, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return curatorerr.Wrap(curatorerr.ConfigError, "parsing --start-date", err)
				}
				opts.StartDate = t
			}
			if endDate != "" {
				t, err := time.Parse("2006-01-02", endDate)
				if err != nil {
					return curatorerr.Wrap(curatorerr.ConfigError, "parsing --end-date", err)
				}
				opts.EndDate = t
			}
			req, err := deepfreeze.ThawCreate(cmd.Context(), env, opts)
			if err != nil {
				return err
			}
			rt.Log.Infof("thaw request %s created for %d repositories", req.RequestID, len(req.Repos))
			return nil
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "range start, YYYY-MM-DD")
	cmd.Flags().StringVar(&endDate, "end-date", "", "range end, YYYY-MM-DD")
	cmd.Flags().IntVar(&durationDays, "duration-days", 7, "days to keep the restore mounted before it expires")
	cmd.Flags().StringVar(&tier, "retrieval-tier", string(model.TierStandard), "Glacier retrieval tier (Expedited|Standard|Bulk)")
	cmd.Flags().BoolVar(&sync, "sync", false, "block until the restore completes")
	cmd.Flags().StringVar(&timestring, "timestring", "%Y.%m.%d", "strftime-subset pattern for index timestamps")
	cmd.Flags().BoolVar(&checkStatus, "check-status", false, "check an existing request instead of creating one")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id to check, with --check-status")
	return cmd
}

func newDeepfreezeRefreezeCommand() *cobra.Command {
	var requestID string
	var all bool

	cmd := &cobra.Command{
		Use:   "refreeze",
		Short: "refreeze a thaw request's repositories ahead of their expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, rt, err := deepfreezeEnv(cmd.Context())
			if err != nil {
				return err
			}
			refrozen, err := deepfreeze.Refreeze(cmd.Context(), env, requestID, all)
			if err != nil {
				return err
			}
			rt.Log.Infof("refroze %d repositories", len(refrozen))
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "thaw request to refreeze")
	cmd.Flags().BoolVar(&all, "all", false, "refreeze every active thaw request")
	return cmd
}

func newDeepfreezeCleanupCommand() *cobra.Command {
	var requestRetention time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "refreeze expired thaws and prune stale thaw-request/policy records",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, rt, err := deepfreezeEnv(cmd.Context())
			if err != nil {
				return err
			}
			result, err := deepfreeze.Cleanup(cmd.Context(), env, deepfreeze.CleanupOptions{RequestRetention: requestRetention})
			if err != nil {
				return err
			}
			rt.Log.Infof("cleanup: %d refrozen, %d requests deleted, %d policies deleted",
				len(result.ExpiredRefrozen), len(result.RequestsDeleted), len(result.PoliciesDeleted))
			return nil
		},
	}
	cmd.Flags().DurationVar(&requestRetention, "request-retention", 30*24*time.Hour, "how long terminal thaw requests are kept before deletion")
	return cmd
}

func newDeepfreezeRepairMetadataCommand() *cobra.Command {
	var timestring string
	var prune bool

	cmd := &cobra.Command{
		Use:   "repair-metadata",
		Short: "reconcile status-index repository records against cluster authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, rt, err := deepfreezeEnv(cmd.Context())
			if err != nil {
				return err
			}
			result, err := deepfreeze.RepairMetadata(cmd.Context(), env, deepfreeze.RepairMetadataOptions{NameTimestring: timestring, Prune: prune})
			if err != nil {
				return err
			}
			rt.Log.Infof("repair-metadata: %d records updated, %d pruned, %d expired locks reaped", len(result.Updated), len(result.Pruned), result.Reaped)
			return nil
		},
	}
	cmd.Flags().StringVar(&timestring, "timestring", "%Y.%m.%d", "strftime-subset pattern for index timestamps")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete repository records whose backing ES repository no longer exists")
	return cmd
}
