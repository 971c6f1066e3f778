package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curatorhq/curator/internal/actionfile"
	"github.com/curatorhq/curator/internal/bootstrap"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/esclient"
)

// actionKinds mirrors the action catalog's Kind() values (spec §4.2); each
// gets an identically-named subcommand.
var actionKinds = []string{
	"delete_indices", "delete_snapshots", "close", "open", "forcemerge",
	"replicas", "allocation", "cluster_routing", "rollover", "snapshot",
	"restore", "shrink", "reindex", "alias", "create_index",
	"index_settings", "cold2frozen",
}

// newActionCommand builds a generic subcommand for kind: repeatable
// --option key=value pairs become the action's options map, repeatable
// --filter/--add-filter/--remove-filter JSON objects become its filter
// chain(s), reusing actionfile.BuildActionFromMap so option/filter
// validation stays identical to the action-file parser's.
func newActionCommand(kind string) *cobra.Command {
	var options []string
	var filters []string
	var addFilters []string
	var removeFilters []string

	cmd := &cobra.Command{
		Use:   kind,
		Short: "run the " + kind + " action once",
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := map[string]interface{}{
				"action":  kind,
				"options": parseOptionPairs(options),
			}
			if chain, err := parseFilterList(filters); err != nil {
				return err
			} else if chain != nil {
				entry["filters"] = chain
			}
			if kind == "alias" {
				if chain, err := parseFilterList(addFilters); err != nil {
					return err
				} else if chain != nil {
					entry["add"] = map[string]interface{}{"filters": chain}
				}
				if chain, err := parseFilterList(removeFilters); err != nil {
					return err
				} else if chain != nil {
					entry["remove"] = map[string]interface{}{"filters": chain}
				}
			}

			act, err := actionfile.BuildActionFromMap(entry)
			if err != nil {
				return err
			}

			rt, err := bootstrap.NewRuntime(bootstrap.Options{ConfigFile: cfgFile, DryRun: dryRun})
			if err != nil {
				return err
			}
			actionfile.WireEntry(actionfile.Entry{Action: act}, fieldStatsResolver{index: rt.Env.Index})

			ctx := context.Background()
			if err := act.Validate(); err != nil {
				return err
			}
			plan, err := act.Build(ctx, rt.Env)
			if err != nil {
				return err
			}
			if plan == nil {
				rt.Log.Infof("%s: filter chain produced no actionable entities; ignore_empty_list suppressed the error", kind)
				return nil
			}
			if rt.Env.DryRun {
				rt.Log.Infof("dry-run: %s would act on %d indices, %d snapshots", kind, len(plan.Indices), len(plan.Snapshots))
				return nil
			}
			return act.Execute(ctx, rt.Env, plan)
		},
	}

	cmd.Flags().StringArrayVar(&options, "option", nil, "action option as key=value, repeatable")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as a JSON object, repeatable")
	if kind == "alias" {
		cmd.Flags().StringArrayVar(&addFilters, "add-filter", nil, "filter (JSON) selecting indices to add the alias to, repeatable")
		cmd.Flags().StringArrayVar(&removeFilters, "remove-filter", nil, "filter (JSON) selecting indices to remove the alias from, repeatable")
	}
	return cmd
}

func parseOptionPairs(pairs []string) map[string]interface{} {
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		out[k] = v
	}
	return out
}

func parseFilterList(raw []string) ([]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]interface{}, 0, len(raw))
	for _, f := range raw {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(f), &m); err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, "parsing --filter JSON", err)
		}
		out = append(out, m)
	}
	return out, nil
}

type fieldStatsResolver struct {
	index esclient.IndexAPI
}

func (r fieldStatsResolver) FieldStats(indexName, field string) (int64, int64, error) {
	return r.index.GetFieldStats(context.Background(), indexName, field)
}
