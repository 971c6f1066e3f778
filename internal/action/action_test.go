package action

import (
	"context"
	"testing"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/logging"
	"github.com/curatorhq/curator/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.ContextLogger {
	logger, _ := logging.New(logging.Config{Level: logging.LevelError})
	return logging.NewContextLogger(logger)
}

type stubCluster struct {
	indices []model.Index
}

func (s *stubCluster) ListIndices(ctx context.Context) ([]model.Index, error) { return s.indices, nil }
func (s *stubCluster) Health(ctx context.Context) (esclient.ClusterHealth, error) {
	return esclient.ClusterHealth{}, nil
}
func (s *stubCluster) IsElectedMaster(ctx context.Context) (bool, error) { return true, nil }
func (s *stubCluster) NodeDiskStats(ctx context.Context) ([]esclient.NodeDisk, error) {
	return nil, nil
}

type stubIndexAPI struct {
	deleted [][]string
}

func (f *stubIndexAPI) Create(ctx context.Context, name string, settingsJSON, mappingsJSON []byte) error {
	return nil
}
func (f *stubIndexAPI) Delete(ctx context.Context, names []string) error {
	f.deleted = append(f.deleted, names)
	return nil
}
func (f *stubIndexAPI) Open(ctx context.Context, names []string) error { return nil }
func (f *stubIndexAPI) Close(ctx context.Context, names []string, skipFlush bool) error {
	return nil
}
func (f *stubIndexAPI) ForceMerge(ctx context.Context, name string, maxNumSegments int) (string, error) {
	return "task-1", nil
}
func (f *stubIndexAPI) UpdateSettings(ctx context.Context, names []string, settingsJSON []byte, preserveExisting bool) error {
	return nil
}
func (f *stubIndexAPI) Shrink(ctx context.Context, source, target string, settingsJSON []byte) (string, error) {
	return "task-2", nil
}
func (f *stubIndexAPI) Reindex(ctx context.Context, requestBodyJSON []byte, waitForCompletion bool) (string, error) {
	return "task-3", nil
}
func (f *stubIndexAPI) AddAlias(ctx context.Context, index, alias string, extraSettingsJSON []byte) error {
	return nil
}
func (f *stubIndexAPI) RemoveAlias(ctx context.Context, index, alias string) error { return nil }
func (f *stubIndexAPI) UpdateAliases(ctx context.Context, add, remove []string, alias string, extraSettingsJSON []byte) error {
	return nil
}
func (f *stubIndexAPI) RolloverAlias(ctx context.Context, alias string, conditionsJSON []byte, newIndexName string) (bool, string, error) {
	return true, alias + "-000002", nil
}
func (f *stubIndexAPI) GetFieldStats(ctx context.Context, index, field string) (int64, int64, error) {
	return 0, 0, nil
}
func (f *stubIndexAPI) RecoveryStatus(ctx context.Context, index string) (bool, error) {
	return true, nil
}

func TestDeleteIndices_BuildRejectsDataStreamWriteIndex(t *testing.T) {
	idx := model.Index{Name: "ds-write-000001", IsDataStreamWriteIndex: true}
	err := CheckNoDataStreamWriteIndex([]model.Index{idx})
	require.Error(t, err)
	assert.True(t, curatorerr.Is(err, curatorerr.Precondition))
}

func TestDeleteIndices_ExecuteDryRunDoesNotDelete(t *testing.T) {
	idxAPI := &stubIndexAPI{}
	a := &DeleteIndices{}
	plan := &Plan{Indices: []model.Index{{Name: "a"}, {Name: "b"}}}
	env := &Env{Index: idxAPI, Log: testLogger(), DryRun: true}
	err := a.Execute(context.Background(), env, plan)
	require.NoError(t, err)
	assert.Empty(t, idxAPI.deleted)
}

func TestDeleteIndices_ExecuteDeletesWhenNotDryRun(t *testing.T) {
	idxAPI := &stubIndexAPI{}
	a := &DeleteIndices{}
	plan := &Plan{Indices: []model.Index{{Name: "a"}, {Name: "b"}}}
	env := &Env{Index: idxAPI, Log: testLogger()}
	err := a.Execute(context.Background(), env, plan)
	require.NoError(t, err)
	require.Len(t, idxAPI.deleted, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, idxAPI.deleted[0])
}

func TestForceMerge_ValidateRequiresPositiveSegments(t *testing.T) {
	a := &ForceMerge{MaxNumSegments: 0}
	require.Error(t, a.Validate())
}

func TestForceMerge_BuildFiltersAlreadyMerged(t *testing.T) {
	a := &ForceMerge{Common: CommonOptions{IgnoreEmptyList: true}, MaxNumSegments: 1}
	env := &Env{Cluster: &stubCluster{indices: []model.Index{
		{Name: "over", SegmentCountPerShard: 5},
		{Name: "already", SegmentCountPerShard: 1},
	}}, Log: testLogger()}
	plan, err := a.Build(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, plan.Indices, 1)
	assert.Equal(t, "over", plan.Indices[0].Name)
}

func TestResolveIndices_EmptyListWithoutIgnoreReturnsEmptyListError(t *testing.T) {
	env := &Env{Cluster: &stubCluster{indices: nil}, Log: testLogger()}
	_, err := ResolveIndices(context.Background(), env, nil, CommonOptions{})
	require.Error(t, err)
	assert.True(t, curatorerr.IsEmptyList(err))
}

func TestResolveIndices_ExcludesHiddenAndILMByDefault(t *testing.T) {
	env := &Env{Cluster: &stubCluster{indices: []model.Index{
		{Name: "visible"},
		{Name: "hidden", IsHidden: true},
		{Name: "ilm-managed", ILMPolicyName: "policy-1"},
	}}, Log: testLogger()}
	result, err := ResolveIndices(context.Background(), env, nil, CommonOptions{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "visible", result[0].Name)
}

func TestAllocation_ValidateRequiresAllocType(t *testing.T) {
	a := &Allocation{Key: "box_type", Value: "warm"}
	require.Error(t, a.Validate())
	a.AllocType = "require"
	require.NoError(t, a.Validate())
}
