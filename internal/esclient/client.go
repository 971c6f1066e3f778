package esclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/curatorhq/curator/internal/model"
)

// Client is the concrete ClusterAPI/IndexAPI/ILMAPI/SnapshotAPI/TaskAPI
// implementation backed by the official Elasticsearch client. Each method
// issues one REST call via esapi and decodes just the fields Curator
// needs; callers depend on the narrow interfaces in esclient.go, not on
// *Client directly, so tests substitute an in-memory fake instead.
type Client struct {
	es *elasticsearch.Client
}

// New wraps an already-configured *elasticsearch.Client. Connection setup
// (hosts/cloud_id/api_key/TLS) lives in internal/config, per spec §6.
func New(es *elasticsearch.Client) *Client {
	return &Client{es: es}
}

func decodeResponse(res *esapi.Response, out interface{}) error {
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: %s", res.String())
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// ListIndices resolves the complete open+closed index inventory via
// _cat/indices (for basic attributes) overlaid with _settings (for
// routing/ILM/alias metadata), mirroring the two-call pattern real Curator
// implementations use since _cat/indices alone omits routing allocation.
func (c *Client) ListIndices(ctx context.Context) ([]model.Index, error) {
	catRes, err := c.es.Cat.Indices(
		c.es.Cat.Indices.WithContext(ctx),
		c.es.Cat.Indices.WithFormat("json"),
		c.es.Cat.Indices.WithH("index,status,docs.count,store.size,creation.date,pri"),
		c.es.Cat.Indices.WithBytes("b"),
	)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Index        string `json:"index"`
		Status       string `json:"status"`
		DocsCount    string `json:"docs.count"`
		StoreSize    string `json:"store.size"`
		CreationDate string `json:"creation.date"`
		Pri          string `json:"pri"`
	}
	if err := decodeResponse(catRes, &rows); err != nil {
		return nil, err
	}

	settingsRes, err := c.es.Indices.GetSettings(
		c.es.Indices.GetSettings.WithContext(ctx),
		c.es.Indices.GetSettings.WithIndex("_all"),
	)
	if err != nil {
		return nil, err
	}
	var settings map[string]struct {
		Settings struct {
			Index struct {
				Hidden  string `json:"hidden"`
				Lifecycle struct {
					Name string `json:"name"`
				} `json:"lifecycle"`
				Routing struct {
					Allocation map[string]map[string]string `json:"allocation"`
				} `json:"routing"`
				Store struct {
					Snapshot struct {
						SnapshotName   string `json:"snapshot_name"`
						RepositoryName string `json:"repository_name"`
						IndexName      string `json:"index_name"`
					} `json:"snapshot"`
				} `json:"store"`
			} `json:"index"`
		} `json:"settings"`
	}
	if err := decodeResponse(settingsRes, &settings); err != nil {
		return nil, err
	}

	aliasRes, err := c.es.Indices.GetAlias(c.es.Indices.GetAlias.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var aliasDoc map[string]struct {
		Aliases map[string]json.RawMessage `json:"aliases"`
	}
	if err := decodeResponse(aliasRes, &aliasDoc); err != nil {
		return nil, err
	}

	out := make([]model.Index, 0, len(rows))
	for _, row := range rows {
		idx := model.Index{
			Name:        row.Index,
			State:       model.IndexOpen,
			Aliases:     map[string]struct{}{},
			RoutingAllocation: map[string]map[string]string{},
		}
		if row.Status == "close" {
			idx.State = model.IndexClosed
		}
		if n, convErr := strconv.ParseInt(row.DocsCount, 10, 64); convErr == nil {
			idx.DocsCount = n
		}
		if n, convErr := strconv.ParseInt(row.StoreSize, 10, 64); convErr == nil {
			idx.SizeInBytes = n
		}
		if n, convErr := strconv.ParseInt(row.CreationDate, 10, 64); convErr == nil {
			idx.CreationDateEpochMs = n
		}
		if n, convErr := strconv.Atoi(row.Pri); convErr == nil {
			idx.NumberOfShards = n
		}
		if s, ok := settings[row.Index]; ok {
			idx.IsHidden = s.Settings.Index.Hidden == "true"
			idx.ILMPolicyName = s.Settings.Index.Lifecycle.Name
			if s.Settings.Index.Routing.Allocation != nil {
				idx.RoutingAllocation = s.Settings.Index.Routing.Allocation
			}
			if snap := s.Settings.Index.Store.Snapshot; snap.SnapshotName != "" {
				idx.IsSearchableSnapshot = true
				idx.SnapshotRepository = snap.RepositoryName
				idx.SnapshotName = snap.SnapshotName
				idx.SnapshotSourceIndex = snap.IndexName
			}
		}
		if a, ok := aliasDoc[row.Index]; ok {
			for alias := range a.Aliases {
				idx.Aliases[alias] = struct{}{}
			}
		}
		out = append(out, idx)
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (ClusterHealth, error) {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return ClusterHealth{}, err
	}
	var body struct {
		Status             string `json:"status"`
		RelocatingShards   int    `json:"relocating_shards"`
		InitializingShards int    `json:"initializing_shards"`
		UnassignedShards   int    `json:"unassigned_shards"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return ClusterHealth{}, err
	}
	return ClusterHealth{
		Status:             body.Status,
		RelocatingShards:   body.RelocatingShards,
		InitializingShards: body.InitializingShards,
		UnassignedShards:   body.UnassignedShards,
	}, nil
}

func (c *Client) IsElectedMaster(ctx context.Context) (bool, error) {
	stateRes, err := c.es.Cluster.State(
		c.es.Cluster.State.WithContext(ctx),
		c.es.Cluster.State.WithMetric("master_node"),
	)
	if err != nil {
		return false, err
	}
	var state struct {
		MasterNode string `json:"master_node"`
	}
	if err := decodeResponse(stateRes, &state); err != nil {
		return false, err
	}
	nodesRes, err := c.es.Nodes.Info(c.es.Nodes.Info.WithContext(ctx), c.es.Nodes.Info.WithNodeID("_local"))
	if err != nil {
		return false, err
	}
	var nodes struct {
		Nodes map[string]interface{} `json:"nodes"`
	}
	if err := decodeResponse(nodesRes, &nodes); err != nil {
		return false, err
	}
	_, isLocalMaster := nodes.Nodes[state.MasterNode]
	return isLocalMaster, nil
}

// NodeDiskStats reports per-node custom attributes and available filesystem
// space via a single _nodes/stats/fs call, mirroring the cat-nodes +
// node-stats disk-threshold pattern used by existing Go Curator
// implementations (check free space, act if a node runs low).
func (c *Client) NodeDiskStats(ctx context.Context) ([]NodeDisk, error) {
	res, err := c.es.Nodes.Stats(
		c.es.Nodes.Stats.WithContext(ctx),
		c.es.Nodes.Stats.WithMetric("fs"),
	)
	if err != nil {
		return nil, err
	}
	var body struct {
		Nodes map[string]struct {
			Name       string            `json:"name"`
			Attributes map[string]string `json:"attributes"`
			FS         struct {
				Total struct {
					AvailableInBytes int64 `json:"available_in_bytes"`
				} `json:"total"`
			} `json:"fs"`
		} `json:"nodes"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return nil, err
	}
	out := make([]NodeDisk, 0, len(body.Nodes))
	for _, n := range body.Nodes {
		out = append(out, NodeDisk{Name: n.Name, Attributes: n.Attributes, AvailableBytes: n.FS.Total.AvailableInBytes})
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, name string, settingsJSON, mappingsJSON []byte) error {
	body := map[string]json.RawMessage{}
	if len(settingsJSON) > 0 {
		body["settings"] = settingsJSON
	}
	if len(mappingsJSON) > 0 {
		body["mappings"] = mappingsJSON
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	res, err := c.es.Indices.Create(name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) Delete(ctx context.Context, names []string) error {
	res, err := c.es.Indices.Delete(names, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) Open(ctx context.Context, names []string) error {
	res, err := c.es.Indices.Open(strings.Join(names, ","), c.es.Indices.Open.WithContext(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) Close(ctx context.Context, names []string, skipFlush bool) error {
	opts := []func(*esapi.IndicesCloseRequest){c.es.Indices.Close.WithContext(ctx)}
	_ = skipFlush // not used: no flush is issued before closing, whether or not skip_flush is set
	res, err := c.es.Indices.Close(strings.Join(names, ","), opts...)
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) ForceMerge(ctx context.Context, name string, maxNumSegments int) (string, error) {
	res, err := c.es.Indices.Forcemerge(
		c.es.Indices.Forcemerge.WithContext(ctx),
		c.es.Indices.Forcemerge.WithIndex(name),
		c.es.Indices.Forcemerge.WithMaxNumSegments(maxNumSegments),
		c.es.Indices.Forcemerge.WithWaitForCompletion(false),
	)
	if err != nil {
		return "", err
	}
	var body struct {
		Task string `json:"task"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return "", err
	}
	return body.Task, nil
}

func (c *Client) UpdateSettings(ctx context.Context, names []string, settingsJSON []byte, preserveExisting bool) error {
	res, err := c.es.Indices.PutSettings(
		bytes.NewReader(settingsJSON),
		c.es.Indices.PutSettings.WithContext(ctx),
		c.es.Indices.PutSettings.WithIndex(strings.Join(names, ",")),
		c.es.Indices.PutSettings.WithPreserveExisting(preserveExisting),
	)
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) Shrink(ctx context.Context, source, target string, settingsJSON []byte) (string, error) {
	res, err := c.es.Indices.Shrink(source, target,
		c.es.Indices.Shrink.WithContext(ctx),
		c.es.Indices.Shrink.WithBody(bytes.NewReader(settingsJSON)),
	)
	if err != nil {
		return "", err
	}
	return "", decodeResponse(res, nil)
}

func (c *Client) Reindex(ctx context.Context, requestBodyJSON []byte, waitForCompletion bool) (string, error) {
	res, err := c.es.Reindex(
		bytes.NewReader(requestBodyJSON),
		c.es.Reindex.WithContext(ctx),
		c.es.Reindex.WithWaitForCompletion(waitForCompletion),
	)
	if err != nil {
		return "", err
	}
	var body struct {
		Task string `json:"task"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return "", err
	}
	return body.Task, nil
}

func (c *Client) AddAlias(ctx context.Context, index, alias string, extraSettingsJSON []byte) error {
	var body io.Reader
	if len(extraSettingsJSON) > 0 {
		body = bytes.NewReader(extraSettingsJSON)
	}
	opts := []func(*esapi.IndicesPutAliasRequest){c.es.Indices.PutAlias.WithContext(ctx)}
	if body != nil {
		opts = append(opts, c.es.Indices.PutAlias.WithBody(body))
	}
	res, err := c.es.Indices.PutAlias([]string{index}, alias, opts...)
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) RemoveAlias(ctx context.Context, index, alias string) error {
	res, err := c.es.Indices.DeleteAlias([]string{index}, []string{alias}, c.es.Indices.DeleteAlias.WithContext(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

// UpdateAliases issues one POST _aliases request containing a remove
// action per index in remove and an add action (carrying extraSettingsJSON,
// if any, as the add body's filter/routing) per index in add, so the swap
// commits atomically instead of as a sequence of per-index calls.
func (c *Client) UpdateAliases(ctx context.Context, add, remove []string, alias string, extraSettingsJSON []byte) error {
	type aliasAction struct {
		Index             string          `json:"index"`
		Alias             string          `json:"alias"`
		Filter            json.RawMessage `json:"filter,omitempty"`
		Routing           json.RawMessage `json:"routing,omitempty"`
		IndexRouting      json.RawMessage `json:"index_routing,omitempty"`
		SearchRouting     json.RawMessage `json:"search_routing,omitempty"`
	}
	var extra map[string]json.RawMessage
	if len(extraSettingsJSON) > 0 {
		if err := json.Unmarshal(extraSettingsJSON, &extra); err != nil {
			return fmt.Errorf("alias extra_settings is not a JSON object: %w", err)
		}
	}
	actions := make([]map[string]aliasAction, 0, len(add)+len(remove))
	for _, idx := range remove {
		actions = append(actions, map[string]aliasAction{"remove": {Index: idx, Alias: alias}})
	}
	for _, idx := range add {
		actions = append(actions, map[string]aliasAction{"add": {
			Index:         idx,
			Alias:         alias,
			Filter:        extra["filter"],
			Routing:       extra["routing"],
			IndexRouting:  extra["index_routing"],
			SearchRouting: extra["search_routing"],
		}})
	}
	payload, err := json.Marshal(map[string]interface{}{"actions": actions})
	if err != nil {
		return err
	}
	res, err := c.es.Indices.UpdateAliases(
		bytes.NewReader(payload),
		c.es.Indices.UpdateAliases.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) RolloverAlias(ctx context.Context, alias string, conditionsJSON []byte, newIndexName string) (bool, string, error) {
	opts := []func(*esapi.IndicesRolloverRequest){
		c.es.Indices.Rollover.WithContext(ctx),
		c.es.Indices.Rollover.WithBody(bytes.NewReader(conditionsJSON)),
	}
	if newIndexName != "" {
		opts = append(opts, c.es.Indices.Rollover.WithNewIndex(newIndexName))
	}
	res, err := c.es.Indices.Rollover(alias, opts...)
	if err != nil {
		return false, "", err
	}
	var body struct {
		RolledOver bool   `json:"rolled_over"`
		NewIndex   string `json:"new_index"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return false, "", err
	}
	return body.RolledOver, body.NewIndex, nil
}

func (c *Client) GetFieldStats(ctx context.Context, index, field string) (int64, int64, error) {
	aggBody, err := json.Marshal(map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"min_value": map[string]interface{}{"min": map[string]string{"field": field}},
			"max_value": map[string]interface{}{"max": map[string]string{"field": field}},
		},
	})
	if err != nil {
		return 0, 0, err
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(aggBody)),
	)
	if err != nil {
		return 0, 0, err
	}
	var body struct {
		Aggregations struct {
			MinValue struct {
				Value float64 `json:"value"`
			} `json:"min_value"`
			MaxValue struct {
				Value float64 `json:"value"`
			} `json:"max_value"`
		} `json:"aggregations"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return 0, 0, err
	}
	return int64(body.Aggregations.MinValue.Value), int64(body.Aggregations.MaxValue.Value), nil
}

func (c *Client) RecoveryStatus(ctx context.Context, index string) (bool, error) {
	res, err := c.es.Indices.Recovery(c.es.Indices.Recovery.WithContext(ctx), c.es.Indices.Recovery.WithIndex(index))
	if err != nil {
		return false, err
	}
	var body map[string]struct {
		Shards []struct {
			Stage string `json:"stage"`
		} `json:"shards"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return false, err
	}
	entry, ok := body[index]
	if !ok {
		return false, nil
	}
	for _, shard := range entry.Shards {
		if shard.Stage != "DONE" {
			return false, nil
		}
	}
	return true, nil
}

func (c *Client) TaskStatus(ctx context.Context, taskID string) (bool, error) {
	res, err := c.es.Tasks.Get(taskID, c.es.Tasks.Get.WithContext(ctx))
	if err != nil {
		return false, err
	}
	var body struct {
		Completed bool `json:"completed"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return false, err
	}
	return body.Completed, nil
}
