package esclient

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/curatorhq/curator/internal/model"
)

func (c *Client) RepositoryExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Snapshot.GetRepository(c.es.Snapshot.GetRepository.WithContext(ctx), c.es.Snapshot.GetRepository.WithRepository([]string{name}))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return false, nil
	}
	return !res.IsError(), nil
}

// RegisterRepository is idempotent: registering an identically-configured
// repository that already exists is a no-op on the ES side, matching
// spec §9's idempotent-mutations design note.
func (c *Client) RegisterRepository(ctx context.Context, name, bucket, basePath string, settings map[string]interface{}) error {
	body := map[string]interface{}{
		"type": "s3",
		"settings": mergeSettings(map[string]interface{}{
			"bucket":    bucket,
			"base_path": basePath,
		}, settings),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	res, err := c.es.Snapshot.CreateRepository(name, bytes.NewReader(payload), c.es.Snapshot.CreateRepository.WithContext(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func mergeSettings(base, overrides map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func (c *Client) UnregisterRepository(ctx context.Context, name string) error {
	res, err := c.es.Snapshot.DeleteRepository([]string{name}, c.es.Snapshot.DeleteRepository.WithContext(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) ListSnapshots(ctx context.Context, repository string) ([]model.Snapshot, error) {
	res, err := c.es.Snapshot.Get(repository, []string{"_all"}, c.es.Snapshot.Get.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var body struct {
		Snapshots []struct {
			Snapshot  string   `json:"snapshot"`
			State     string   `json:"state"`
			StartTime int64    `json:"start_time_in_millis"`
			Indices   []string `json:"indices"`
		} `json:"snapshots"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return nil, err
	}
	out := make([]model.Snapshot, 0, len(body.Snapshots))
	for _, s := range body.Snapshots {
		out = append(out, model.Snapshot{
			Repository:     repository,
			Name:           s.Snapshot,
			StartTimeEpoch: s.StartTime / 1000,
			State:          model.SnapshotState(s.State),
			Indices:        s.Indices,
		})
	}
	return out, nil
}

func (c *Client) CreateSnapshot(ctx context.Context, repository, name string, indices []string, opts SnapshotOptions) (string, error) {
	body := map[string]interface{}{
		"indices":              strings.Join(indices, ","),
		"ignore_unavailable":   opts.IgnoreUnavailable,
		"include_global_state": opts.IncludeGlobalState,
		"partial":              opts.Partial,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	res, err := c.es.Snapshot.Create(repository, name,
		c.es.Snapshot.Create.WithContext(ctx),
		c.es.Snapshot.Create.WithBody(bytes.NewReader(payload)),
		c.es.Snapshot.Create.WithWaitForCompletion(opts.WaitForCompletion),
	)
	if err != nil {
		return "", err
	}
	return "", decodeResponse(res, nil)
}

func (c *Client) RestoreSnapshot(ctx context.Context, repository, name string, opts RestoreOptions) (string, error) {
	body := map[string]interface{}{
		"indices":         strings.Join(opts.Indices, ","),
		"include_aliases": opts.IncludeAliases,
	}
	if opts.RenamePattern != "" {
		body["rename_pattern"] = opts.RenamePattern
		body["rename_replacement"] = opts.RenameReplacement
	}
	if len(opts.ExtraSettingsJSON) > 0 {
		var extra map[string]interface{}
		if err := json.Unmarshal(opts.ExtraSettingsJSON, &extra); err == nil {
			body["index_settings"] = extra
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	res, err := c.es.Snapshot.Restore(repository, name,
		c.es.Snapshot.Restore.WithContext(ctx),
		c.es.Snapshot.Restore.WithBody(bytes.NewReader(payload)),
		c.es.Snapshot.Restore.WithWaitForCompletion(opts.WaitForCompletion),
	)
	if err != nil {
		return "", err
	}
	return "", decodeResponse(res, nil)
}

func (c *Client) DeleteSnapshot(ctx context.Context, repository, name string) error {
	res, err := c.es.Snapshot.Delete(repository, []string{name}, c.es.Snapshot.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(res, nil)
}

func (c *Client) SnapshotStatus(ctx context.Context, repository, name string) (bool, error) {
	res, err := c.es.Snapshot.Status(
		c.es.Snapshot.Status.WithContext(ctx),
		c.es.Snapshot.Status.WithRepository(repository),
		c.es.Snapshot.Status.WithSnapshot([]string{name}),
	)
	if err != nil {
		return false, err
	}
	var body struct {
		Snapshots []struct {
			State string `json:"state"`
		} `json:"snapshots"`
	}
	if err := decodeResponse(res, &body); err != nil {
		return false, err
	}
	for _, s := range body.Snapshots {
		if s.State != "SUCCESS" && s.State != "FAILED" && s.State != "PARTIAL" {
			return false, nil
		}
	}
	return true, nil
}

// MountSearchableSnapshot mounts via the searchable-snapshots API and
// returns the cluster-assigned renamed index, never assuming a literal
// prefix.
func (c *Client) MountSearchableSnapshot(ctx context.Context, repository, snapshot, index, tier string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"index":         index,
		"renamed_index": index, // caller may post-process; cluster may still alter on naming conflicts
	})
	if err != nil {
		return "", err
	}
	res, err := c.es.SearchableSnapshots.Mount(repository, snapshot,
		bytes.NewReader(body),
		c.es.SearchableSnapshots.Mount.WithContext(ctx),
		c.es.SearchableSnapshots.Mount.WithStorage(tier),
		c.es.SearchableSnapshots.Mount.WithWaitForCompletion(true),
	)
	if err != nil {
		return "", err
	}
	var respBody struct {
		Snapshot struct {
			Indices []string `json:"indices"`
		} `json:"snapshot"`
	}
	if err := decodeResponse(res, &respBody); err != nil {
		return "", err
	}
	if len(respBody.Snapshot.Indices) > 0 {
		return respBody.Snapshot.Indices[0], nil
	}
	return index, nil
}
