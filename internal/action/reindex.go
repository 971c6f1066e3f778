package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
	"github.com/curatorhq/curator/internal/model"
)

const (
	reindexSelectionSentinel = "REINDEX_SELECTION"
	migrationSentinel        = "MIGRATION"
	maxReindexSlices         = 500
)

// Reindex copies documents between indices via the Elasticsearch _reindex
// API. RequestBodyJSON is passed through mostly as-is; Curator only
// substitutes two sentinel values inside it: a source.index of
// REINDEX_SELECTION becomes the filter-derived source list, and a
// dest.index of MIGRATION triggers one reindex call per source index
// (named MigrationPrefix+source+MigrationSuffix) instead of a single
// combined destination.
type Reindex struct {
	Common            CommonOptions
	Chain             []filter.IndexFilter
	RemoteChain       []filter.IndexFilter // narrows source.remote's index list by name/pattern
	RequestBodyJSON   []byte
	MigrationPrefix   string
	MigrationSuffix   string
	Slices            int // 0 = field omitted; capped at 500
	RequestsPerSecond int // -1 = field omitted (no throttle)
}

func (a *Reindex) Kind() string           { return "reindex" }
func (a *Reindex) Options() CommonOptions { return a.Common }

func (a *Reindex) Validate() error {
	if len(a.RequestBodyJSON) == 0 {
		return curatorerr.New(curatorerr.ConfigError, "reindex requires a request_body")
	}
	var probe map[string]interface{}
	if err := json.Unmarshal(a.RequestBodyJSON, &probe); err != nil {
		return curatorerr.Wrap(curatorerr.ConfigError, "reindex request_body is not valid JSON-representable YAML", err)
	}
	if a.Slices > maxReindexSlices {
		a.Slices = maxReindexSlices
	}
	return nil
}

func (a *Reindex) Build(ctx context.Context, env *Env) (*Plan, error) {
	indices, err := ResolveIndices(ctx, env, a.Chain, a.Common)
	if err != nil || indices == nil {
		return nil, err
	}
	return &Plan{Indices: indices}, nil
}

// destTemplate extracts request_body's dest.index, used to detect the
// MIGRATION sentinel before any per-source override is applied.
func (a *Reindex) destTemplate() string {
	var parsed struct {
		Dest struct {
			Index string `json:"index"`
		} `json:"dest"`
	}
	_ = json.Unmarshal(a.RequestBodyJSON, &parsed)
	return parsed.Dest.Index
}

// applyRemoteFilters narrows a remote source.index list using RemoteChain.
// A live remote cluster isn't available to this client, so only
// name/pattern-family filters (which need no cluster stats) are
// meaningful here; candidates are wrapped as bare-name synthetic indices.
func (a *Reindex) applyRemoteFilters(candidates []string) ([]string, error) {
	if len(a.RemoteChain) == 0 {
		return candidates, nil
	}
	synthetic := make([]model.Index, len(candidates))
	for i, name := range candidates {
		synthetic[i] = model.Index{Name: name}
	}
	result, err := filter.ApplyIndexChain(synthetic, a.RemoteChain)
	if err != nil {
		return nil, err
	}
	return indexNames(result), nil
}

// buildBody renders one _reindex request body from RequestBodyJSON.
// forceSource always overwrites source.index with sourceIndex (the
// one-reindex-per-source MIGRATION path, where a single source is
// mandatory); otherwise source.index is substituted only when the body
// literally set it to the REINDEX_SELECTION sentinel, leaving a literal
// user-supplied source list untouched. destIndex, when non-empty,
// overwrites dest.index.
func (a *Reindex) buildBody(sourceIndex []string, destIndex string, forceSource bool) ([]byte, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(a.RequestBodyJSON, &body); err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "parsing reindex request_body", err)
	}

	source, _ := body["source"].(map[string]interface{})
	if source == nil {
		source = map[string]interface{}{}
	}
	if forceSource {
		source["index"] = sourceIndex
	} else if s, ok := source["index"].(string); ok && s == reindexSelectionSentinel {
		source["index"] = sourceIndex
	}
	if _, remote := source["remote"]; remote {
		if rawIdx, ok := source["index"].([]interface{}); ok {
			names := make([]string, 0, len(rawIdx))
			for _, v := range rawIdx {
				if s, ok := v.(string); ok {
					names = append(names, s)
				}
			}
			filtered, err := a.applyRemoteFilters(names)
			if err != nil {
				return nil, err
			}
			source["index"] = filtered
		}
	}
	body["source"] = source

	if destIndex != "" {
		dest, _ := body["dest"].(map[string]interface{})
		if dest == nil {
			dest = map[string]interface{}{}
		}
		dest["index"] = destIndex
		body["dest"] = dest
	}

	if a.Slices > 0 {
		body["slices"] = a.Slices
	}
	if a.RequestsPerSecond >= 0 {
		body["requests_per_second"] = a.RequestsPerSecond
	}

	return json.Marshal(body)
}

func (a *Reindex) reindexOne(ctx context.Context, env *Env, sources []string, dest string, forceSource bool) error {
	body, err := a.buildBody(sources, dest, forceSource)
	if err != nil {
		return err
	}
	if env.DryRun {
		env.Log.Infof("dry-run: would reindex %v (slices=%d, requests_per_second=%d)", sources, a.Slices, a.RequestsPerSecond)
		return nil
	}
	taskOrResult, err := env.Index.Reindex(ctx, body, false)
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, fmt.Sprintf("reindexing %v", sources), err)
	}
	return Poll(ctx, a.Common, func(ctx context.Context) (bool, error) {
		return env.Task.TaskStatus(ctx, taskOrResult)
	})
}

func (a *Reindex) Execute(ctx context.Context, env *Env, plan *Plan) error {
	if plan == nil || len(plan.Indices) == 0 {
		return nil
	}

	if a.destTemplate() == migrationSentinel {
		for _, idx := range plan.Indices {
			dest := a.MigrationPrefix + idx.Name + a.MigrationSuffix
			if err := a.reindexOne(ctx, env, []string{idx.Name}, dest, true); err != nil {
				if a.Common.ContinueIfException {
					env.Log.WithError(err).Warnf("continue_if_exception: reindex failed for %s", idx.Name)
					continue
				}
				return err
			}
		}
		return nil
	}

	return a.reindexOne(ctx, env, indexNames(plan.Indices), "", false)
}
