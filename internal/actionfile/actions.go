package actionfile

import (
	"fmt"
	"time"

	"github.com/curatorhq/curator/internal/action"
	"github.com/curatorhq/curator/internal/curatorerr"
)

func buildCommonOptions(m map[string]interface{}) action.CommonOptions {
	opts := action.DefaultCommonOptions()
	opts.ContinueIfException = getBool(m, "continue_if_exception", opts.ContinueIfException)
	opts.DisableAction = getBool(m, "disable_action", opts.DisableAction)
	opts.IgnoreEmptyList = getBool(m, "ignore_empty_list", opts.IgnoreEmptyList)
	opts.AllowILMIndices = getBool(m, "allow_ilm_indices", opts.AllowILMIndices)
	opts.IncludeHidden = getBool(m, "include_hidden", opts.IncludeHidden)
	opts.WaitForCompletion = getBool(m, "wait_for_completion", opts.WaitForCompletion)
	opts.TimeoutOverride = getDuration(m, "timeout_override", opts.TimeoutOverride)
	opts.WaitInterval = getDuration(m, "wait_interval", opts.WaitInterval)
	opts.MaxWait = getDuration(m, "max_wait", opts.MaxWait)
	return opts
}

// BuildActionFromMap exposes buildAction for callers outside the package
// (curator_cli's per-action subcommands) that assemble an entry map from
// flags instead of parsing it out of an action file.
func BuildActionFromMap(entry map[string]interface{}) (action.Action, error) {
	return buildAction(entry)
}

// buildAction dispatches on entry["action"] and constructs the matching
// action.Action, wiring its filter chain(s) and options from entry's
// `options:`/`filters:` (or `add:`/`remove:` for alias).
func buildAction(entry map[string]interface{}) (action.Action, error) {
	kind := getString(entry, "action", "")
	options := asMap(entry["options"])
	common := buildCommonOptions(options)

	switch kind {
	case "delete_indices":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.DeleteIndices{Common: common, Chain: chain}, nil

	case "delete_snapshots":
		chain, err := buildSnapshotFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		repo, err := requireString(options, "repository", kind)
		if err != nil {
			return nil, err
		}
		return &action.DeleteSnapshots{
			Common:        common,
			Repository:    repo,
			Chain:         chain,
			RetryCount:    getInt(options, "retry_count", 3),
			RetryInterval: getDuration(options, "retry_interval", 120*time.Second),
		}, nil

	case "close":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.Close{Common: common, Chain: chain, SkipFlush: getBool(options, "skip_flush", false)}, nil

	case "open":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.Open{Common: common, Chain: chain}, nil

	case "forcemerge":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.ForceMerge{Common: common, Chain: chain, MaxNumSegments: getInt(options, "max_num_segments", 2)}, nil

	case "replicas":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.Replicas{Common: common, Chain: chain, NumberReplicas: getInt(options, "number_of_replicas", 1)}, nil

	case "allocation":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.Allocation{
			Common:    common,
			Chain:     chain,
			Key:       getString(options, "key", ""),
			Value:     getString(options, "value", ""),
			AllocType: getString(options, "allocation_type", "require"),
		}, nil

	case "cluster_routing":
		return &action.ClusterRouting{
			Common:      common,
			RoutingType: getString(options, "routing_type", "allocation"),
			Value:       getString(options, "value", "all"),
			Setting:     getString(options, "setting", "transient"),
		}, nil

	case "rollover":
		alias, err := requireString(options, "name", kind)
		if err != nil {
			return nil, err
		}
		return &action.Rollover{
			Common:              common,
			Alias:               alias,
			MaxAge:              getString(options, "max_age", ""),
			MaxDocs:             getInt64(options, "max_docs", 0),
			MaxSize:             getString(options, "max_size", ""),
			MaxPrimaryShardSize: getString(options, "max_primary_shard_size", ""),
			NewIndexName:        getString(options, "new_index", ""),
		}, nil

	case "snapshot":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		repo, err := requireString(options, "repository", kind)
		if err != nil {
			return nil, err
		}
		return &action.Snapshot{
			Common:             common,
			Chain:              chain,
			Repository:         repo,
			Name:               getString(options, "name", "curator-%Y%m%d%H%M%S"),
			IgnoreUnavailable:  getBool(options, "ignore_unavailable", false),
			IncludeGlobalState: getBool(options, "include_global_state", true),
			Partial:            getBool(options, "partial", false),
		}, nil

	case "restore":
		chain, err := buildSnapshotFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		repo, err := requireString(options, "repository", kind)
		if err != nil {
			return nil, err
		}
		snap := getString(options, "name", "")
		extraSettings, err := getJSON(options, "extra_settings")
		if err != nil {
			return nil, err
		}
		return &action.Restore{
			Common:            common,
			Repository:        repo,
			SnapshotName:      snap,
			Chain:             chain,
			Indices:           getStringSlice(options, "indices"),
			RenamePattern:     getString(options, "rename_pattern", ""),
			RenameReplacement: getString(options, "rename_replacement", ""),
			IncludeAliases:    getBool(options, "include_aliases", false),
			ExtraSettingsJSON: extraSettings,
		}, nil

	case "shrink":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.Shrink{
			Common:         common,
			Chain:          chain,
			ShrinkNodeName: getString(options, "shrink_node", "DETERMINISTIC"),
			NodeFilters:    getStringMap(options, "node_filters"),
			NumberOfShards: getInt(options, "number_of_shards", 1),
			TargetSuffix:   getString(options, "shrink_suffix", "-shrink"),
			DeleteAfter:    getBool(options, "delete_after", true),
		}, nil

	case "reindex":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		remoteChain, err := buildIndexFilterChain(options["remote_filters"])
		if err != nil {
			return nil, err
		}
		requestBody, err := getJSON(options, "request_body")
		if err != nil {
			return nil, err
		}
		return &action.Reindex{
			Common:            common,
			Chain:             chain,
			RemoteChain:       remoteChain,
			RequestBodyJSON:   requestBody,
			MigrationPrefix:   getString(options, "migration_prefix", ""),
			MigrationSuffix:   getString(options, "migration_suffix", ""),
			Slices:            getInt(options, "slices", 0),
			RequestsPerSecond: getInt(options, "requests_per_second", -1),
		}, nil

	case "alias":
		addChain, err := buildIndexFilterChain(firstOf(entry["add"], "filters"))
		if err != nil {
			return nil, err
		}
		removeChain, err := buildIndexFilterChain(firstOf(entry["remove"], "filters"))
		if err != nil {
			return nil, err
		}
		name, err := requireString(options, "name", kind)
		if err != nil {
			return nil, err
		}
		extraSettings, err := getJSON(options, "extra_settings")
		if err != nil {
			return nil, err
		}
		return &action.Alias{Common: common, AddChain: addChain, RemoveChain: removeChain, Name: name, ExtraSettingsJSON: extraSettings}, nil

	case "create_index":
		name, err := requireString(options, "name", kind)
		if err != nil {
			return nil, err
		}
		extraSettings := asMap(options["extra_settings"])
		settingsJSON, err := getJSON(extraSettings, "settings")
		if err != nil {
			return nil, err
		}
		mappingsJSON, err := getJSON(extraSettings, "mappings")
		if err != nil {
			return nil, err
		}
		return &action.CreateIndex{Common: common, Name: name, SettingsJSON: settingsJSON, MappingsJSON: mappingsJSON}, nil

	case "index_settings":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		settingsJSON, err := getJSON(options, "index_settings")
		if err != nil {
			return nil, err
		}
		return &action.IndexSettings{
			Common:           common,
			Chain:            chain,
			SettingsJSON:     settingsJSON,
			PreserveExisting: getBool(options, "preserve_existing", false),
		}, nil

	case "cold2frozen":
		chain, err := buildIndexFilterChain(entry["filters"])
		if err != nil {
			return nil, err
		}
		return &action.Cold2Frozen{Common: common, Chain: chain}, nil

	default:
		return nil, curatorerr.New(curatorerr.ConfigError, fmt.Sprintf("unknown action kind %q", kind))
	}
}

// firstOf extracts subsection[key] from a decoded add:/remove: block,
// returning nil (an empty chain) when the subsection itself is absent.
func firstOf(subsection interface{}, key string) interface{} {
	m := asMap(subsection)
	if m == nil {
		return nil
	}
	return m[key]
}
