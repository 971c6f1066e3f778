package deepfreeze

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/logging"
	"github.com/curatorhq/curator/internal/model"
	"github.com/curatorhq/curator/internal/s3store"
)

// fakeObjectStore is an in-memory ObjectStore used by every deepfreeze
// test; it never touches a real bucket.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]string // bucket/prefix key -> object keys
	classes map[string]types.StorageClass
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]string{}, classes: map[string]types.StorageClass{}}
}

func (f *fakeObjectStore) EnsureBucketExists(ctx context.Context, bucket string) error { return nil }

func (f *fakeObjectStore) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.objects[bucket+"/"+prefix]...), nil
}

func (f *fakeObjectStore) HeadObjects(ctx context.Context, bucket string, keys []string) []s3store.HeadResult {
	out := make([]s3store.HeadResult, len(keys))
	for i, k := range keys {
		out[i] = s3store.HeadResult{Key: k, Status: s3store.RestoreRestored}
	}
	return out
}

func (f *fakeObjectStore) RestoreObjects(ctx context.Context, bucket string, keys []string, days int32, tier types.Tier) []error {
	return make([]error, len(keys))
}

func (f *fakeObjectStore) TransitionStorageClass(ctx context.Context, bucket string, keys []string, class types.StorageClass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.classes[bucket+"/"+k] = class
	}
	return nil
}

// fakeStatusStore is an in-memory StatusStore.
type fakeStatusStore struct {
	mu       sync.Mutex
	settings *model.Settings
	repos    map[string]model.Repository
	requests map[string]model.ThawRequest
	locks    map[string]bool
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{repos: map[string]model.Repository{}, requests: map[string]model.ThawRequest{}, locks: map[string]bool{}}
}

func (f *fakeStatusStore) GetSettings(ctx context.Context) (model.Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return model.Settings{}, false, nil
	}
	return *f.settings, true, nil
}

func (f *fakeStatusStore) SaveSettings(ctx context.Context, settings model.Settings, expectExisting bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := settings
	f.settings = &cp
	return nil
}

func (f *fakeStatusStore) GetRepository(ctx context.Context, name string) (model.Repository, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[name]
	return r, ok, nil
}

func (f *fakeStatusStore) SaveRepository(ctx context.Context, r model.Repository, expectExisting bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[r.Name] = r
	return nil
}

func (f *fakeStatusStore) DeleteRepository(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.repos, name)
	return nil
}

func (f *fakeStatusStore) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Repository, 0, len(f.repos))
	for _, r := range f.repos {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStatusStore) ListRepositoriesByThawState(ctx context.Context, state model.ThawState) ([]model.Repository, error) {
	all, _ := f.ListRepositories(ctx)
	var out []model.Repository
	for _, r := range all {
		if r.ThawState == state {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStatusStore) GetThawRequest(ctx context.Context, requestID string) (model.ThawRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[requestID]
	return r, ok, nil
}

func (f *fakeStatusStore) SaveThawRequest(ctx context.Context, r model.ThawRequest, expectExisting bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[r.RequestID] = r
	return nil
}

func (f *fakeStatusStore) DeleteThawRequest(ctx context.Context, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.requests, requestID)
	return nil
}

func (f *fakeStatusStore) ListThawRequests(ctx context.Context, includeTerminal bool) ([]model.ThawRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ThawRequest
	for _, r := range f.requests {
		if !includeTerminal && r.Status != model.ThawRequestInProgress {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStatusStore) AcquireLock(ctx context.Context, repository, owner string, maxWait time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[repository] {
		return nil // tests are single-goroutine; treat re-entrant acquire as granted
	}
	f.locks[repository] = true
	return nil
}

func (f *fakeStatusStore) ReleaseLock(ctx context.Context, repository string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, repository)
	return nil
}

func (f *fakeStatusStore) ReapExpiredLocks(ctx context.Context) error { return nil }

// fakeILM is an in-memory ILMAPI.
type fakeILM struct {
	policies  map[string]esclient.ILMPolicy
	templates map[string]string
}

func newFakeILM() *fakeILM { return &fakeILM{policies: map[string]esclient.ILMPolicy{}, templates: map[string]string{}} }

func (f *fakeILM) GetLifecycle(ctx context.Context, name string) (*esclient.ILMPolicy, error) {
	p, ok := f.policies[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeILM) ListLifecycles(ctx context.Context) ([]esclient.ILMPolicy, error) {
	out := make([]esclient.ILMPolicy, 0, len(f.policies))
	for _, p := range f.policies {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeILM) PutLifecycle(ctx context.Context, policy esclient.ILMPolicy) error {
	f.policies[policy.Name] = policy
	return nil
}

func (f *fakeILM) DeleteLifecycle(ctx context.Context, name string) error {
	delete(f.policies, name)
	return nil
}

func (f *fakeILM) GetTemplateILMRefs(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.templates {
		out[k] = v
	}
	return out, nil
}

func (f *fakeILM) SetTemplateILMPolicy(ctx context.Context, templateName, policyName string) error {
	f.templates[templateName] = policyName
	return nil
}

// fakeSnapshot is an in-memory SnapshotAPI.
type fakeSnapshot struct {
	registered map[string]bool
	snapshots  map[string][]model.Snapshot
}

func newFakeSnapshot() *fakeSnapshot {
	return &fakeSnapshot{registered: map[string]bool{}, snapshots: map[string][]model.Snapshot{}}
}

func (f *fakeSnapshot) RegisterRepository(ctx context.Context, name, bucket, basePath string, settings map[string]interface{}) error {
	f.registered[name] = true
	return nil
}
func (f *fakeSnapshot) UnregisterRepository(ctx context.Context, name string) error {
	delete(f.registered, name)
	return nil
}
func (f *fakeSnapshot) RepositoryExists(ctx context.Context, name string) (bool, error) {
	return f.registered[name], nil
}
func (f *fakeSnapshot) ListSnapshots(ctx context.Context, repository string) ([]model.Snapshot, error) {
	return f.snapshots[repository], nil
}
func (f *fakeSnapshot) CreateSnapshot(ctx context.Context, repository, name string, indices []string, opts esclient.SnapshotOptions) (string, error) {
	return "task", nil
}
func (f *fakeSnapshot) RestoreSnapshot(ctx context.Context, repository, name string, opts esclient.RestoreOptions) (string, error) {
	return "task", nil
}
func (f *fakeSnapshot) DeleteSnapshot(ctx context.Context, repository, name string) error { return nil }
func (f *fakeSnapshot) SnapshotStatus(ctx context.Context, repository, name string) (bool, error) {
	return true, nil
}
func (f *fakeSnapshot) MountSearchableSnapshot(ctx context.Context, repository, snapshot, index, tier string) (string, error) {
	return "partial-" + index, nil
}

type fakeCluster struct{ indices []model.Index }

func (f *fakeCluster) ListIndices(ctx context.Context) ([]model.Index, error) { return f.indices, nil }
func (f *fakeCluster) Health(ctx context.Context) (esclient.ClusterHealth, error) {
	return esclient.ClusterHealth{}, nil
}
func (f *fakeCluster) IsElectedMaster(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeCluster) NodeDiskStats(ctx context.Context) ([]esclient.NodeDisk, error) {
	return nil, nil
}

type fakeIndexAPI struct{ deleted []string }

func (f *fakeIndexAPI) Create(ctx context.Context, name string, settingsJSON, mappingsJSON []byte) error {
	return nil
}
func (f *fakeIndexAPI) Delete(ctx context.Context, names []string) error {
	f.deleted = append(f.deleted, names...)
	return nil
}
func (f *fakeIndexAPI) Open(ctx context.Context, names []string) error { return nil }
func (f *fakeIndexAPI) Close(ctx context.Context, names []string, skipFlush bool) error { return nil }
func (f *fakeIndexAPI) ForceMerge(ctx context.Context, name string, maxNumSegments int) (string, error) {
	return "task", nil
}
func (f *fakeIndexAPI) UpdateSettings(ctx context.Context, names []string, settingsJSON []byte, preserveExisting bool) error {
	return nil
}
func (f *fakeIndexAPI) Shrink(ctx context.Context, source, target string, settingsJSON []byte) (string, error) {
	return "task", nil
}
func (f *fakeIndexAPI) Reindex(ctx context.Context, requestBodyJSON []byte, waitForCompletion bool) (string, error) {
	return "task", nil
}
func (f *fakeIndexAPI) AddAlias(ctx context.Context, index, alias string, extraSettingsJSON []byte) error {
	return nil
}
func (f *fakeIndexAPI) RemoveAlias(ctx context.Context, index, alias string) error { return nil }
func (f *fakeIndexAPI) UpdateAliases(ctx context.Context, add, remove []string, alias string, extraSettingsJSON []byte) error {
	return nil
}
func (f *fakeIndexAPI) RolloverAlias(ctx context.Context, alias string, conditionsJSON []byte, newIndexName string) (bool, string, error) {
	return true, alias + "-000002", nil
}
func (f *fakeIndexAPI) GetFieldStats(ctx context.Context, index, field string) (int64, int64, error) {
	return 0, 0, nil
}
func (f *fakeIndexAPI) RecoveryStatus(ctx context.Context, index string) (bool, error) { return true, nil }

func testEnv() (*Env, *fakeStatusStore, *fakeObjectStore, *fakeILM, *fakeSnapshot, *fakeIndexAPI) {
	logger, _ := logging.New(logging.Config{Level: logging.LevelError})
	store := newFakeStatusStore()
	objStore := newFakeObjectStore()
	ilm := newFakeILM()
	snap := newFakeSnapshot()
	idx := &fakeIndexAPI{}
	env := &Env{
		Cluster: &fakeCluster{}, ILM: ilm, Index: idx, Snapshot: snap,
		S3: objStore, Store: store, Log: logging.NewContextLogger(logger),
		LockOwner: "test",
	}
	return env, store, objStore, ilm, snap, idx
}

func TestRotate_ScenarioC(t *testing.T) {
	env, store, _, ilm, snap, _ := testEnv()

	settings := model.Settings{
		RepoNamePrefix: "df", BucketNamePrefix: "df-bucket", BasePathPrefix: "df-path",
		StorageClass: "GLACIER", RotateBy: model.RotateByPath, LastSuffix: "000006",
		Provider: "aws", Style: model.StyleOneUp, Keep: 6,
	}
	require.NoError(t, store.SaveSettings(context.Background(), settings, false))

	for i := 1; i <= 6; i++ {
		suffix := padSuffix(i)
		store.repos["df-"+suffix] = model.Repository{
			Name: "df-" + suffix, Bucket: "df-bucket-" + suffix, BasePath: "df-path-" + suffix,
			Suffix: suffix, IsMounted: true, ThawState: model.ThawActive,
		}
		snap.registered["df-"+suffix] = true
	}

	ilm.policies["logs-000006"] = esclient.ILMPolicy{
		Name: "logs-000006",
		Phases: map[string]esclient.ILMPhase{
			"cold": {MinAge: "7d", Actions: map[string]map[string]interface{}{
				"searchable_snapshot": {"snapshot_repository": "df-000006"},
			}},
		},
	}
	ilm.templates["logs-tpl"] = "logs-000006"

	result, err := Rotate(context.Background(), env, RotateOptions{Keep: 6})
	require.NoError(t, err)

	assert.Equal(t, "df-000007", result.NewRepository.Name)
	assert.Contains(t, result.NewPolicies, "logs-000007")

	newPolicy, ok := ilm.policies["logs-000007"]
	require.True(t, ok)
	repo, _ := newPolicy.SnapshotRepositoryReferences()
	assert.Equal(t, "df-000007", repo)

	// df-000006's policy is unchanged.
	oldPolicy := ilm.policies["logs-000006"]
	oldRepo, _ := oldPolicy.SnapshotRepositoryReferences()
	assert.Equal(t, "df-000006", oldRepo)

	assert.Equal(t, "logs-000007", ilm.templates["logs-tpl"])

	assert.Contains(t, result.UnmountedRepos, "df-000001")
	assert.False(t, snap.registered["df-000001"])

	newSettings, _, _ := store.GetSettings(context.Background())
	assert.Equal(t, "000007", newSettings.LastSuffix)
}

func TestRotate_SkipsThawingOrThawedRepositories(t *testing.T) {
	env, store, _, ilm, snap, _ := testEnv()
	settings := model.Settings{RepoNamePrefix: "df", BucketNamePrefix: "b", BasePathPrefix: "p", LastSuffix: "000002", Style: model.StyleOneUp, Keep: 1}
	require.NoError(t, store.SaveSettings(context.Background(), settings, false))
	store.repos["df-000001"] = model.Repository{Name: "df-000001", Suffix: "000001", IsMounted: true, ThawState: model.ThawThawed}
	store.repos["df-000002"] = model.Repository{Name: "df-000002", Suffix: "000002", IsMounted: true, ThawState: model.ThawActive}
	snap.registered["df-000001"] = true
	snap.registered["df-000002"] = true
	ilm.policies["logs-000002"] = esclient.ILMPolicy{Name: "logs-000002", Phases: map[string]esclient.ILMPhase{
		"cold": {Actions: map[string]map[string]interface{}{"searchable_snapshot": {"snapshot_repository": "df-000002"}}},
	}}

	result, err := Rotate(context.Background(), env, RotateOptions{Keep: 1})
	require.NoError(t, err)
	assert.Contains(t, result.SkippedRepos, "df-000001")
	assert.NotContains(t, result.UnmountedRepos, "df-000001")
	assert.True(t, snap.registered["df-000001"])
}

func TestCleanup_ScenarioE(t *testing.T) {
	env, store, _, _, snap, idx := testEnv()
	past := time.Now().Add(-1 * time.Hour)
	store.repos["df-000004"] = model.Repository{
		Name: "df-000004", Bucket: "bucket", BasePath: "path", ThawState: model.ThawThawed,
		IsMounted: true, ExpiresAt: &past, Indices: []string{"restored-idx-1"},
	}
	snap.registered["df-000004"] = true
	store.requests["req-1"] = model.ThawRequest{RequestID: "req-1", Repos: []string{"df-000004"}, Status: model.ThawRequestInProgress, CreatedAt: past}

	result, err := Cleanup(context.Background(), env, CleanupOptions{})
	require.NoError(t, err)
	assert.Contains(t, result.ExpiredRefrozen, "df-000004")

	repo, _, _ := store.GetRepository(context.Background(), "df-000004")
	assert.Equal(t, model.ThawFrozen, repo.ThawState)
	assert.False(t, repo.IsMounted)
	assert.Nil(t, repo.ExpiresAt)
	assert.False(t, snap.registered["df-000004"])
	assert.Contains(t, idx.deleted, "restored-idx-1")

	req, _, _ := store.GetThawRequest(context.Background(), "req-1")
	assert.Equal(t, model.ThawRequestRefrozen, req.Status)
}

func padSuffix(n int) string {
	s := "000000"
	digits := []byte(s)
	for i := 0; n > 0; i++ {
		digits[len(digits)-1-i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}
