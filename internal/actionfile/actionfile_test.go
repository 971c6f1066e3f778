package actionfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/action"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
)

func TestParse_OrdersActionsByNumericKey(t *testing.T) {
	yamlDoc := []byte(`
actions:
  2:
    action: close
    filters:
      - filtertype: pattern
        kind: prefix
        value: logs-
  1:
    action: delete_indices
    filters:
      - filtertype: age
        source: name
        direction: older
        timestring: "%Y.%m.%d"
        unit: days
        unit_count: 30
`)
	entries, err := Parse(yamlDoc)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].ID)
	assert.Equal(t, "delete_indices", entries[0].Action.Kind())
	assert.Equal(t, 2, entries[1].ID)
	assert.Equal(t, "close", entries[1].Action.Kind())
}

func TestParse_EnvVarSubstitutionWholeValueOnly(t *testing.T) {
	t.Setenv("CURATOR_REPO", "my-repo")
	yamlDoc := []byte(`
actions:
  1:
    action: delete_snapshots
    options:
      repository: ${CURATOR_REPO}
    filters:
      - filtertype: state
        state: SUCCESS
`)
	entries, err := Parse(yamlDoc)
	require.NoError(t, err)
	ds, ok := entries[0].Action.(*action.DeleteSnapshots)
	require.True(t, ok)
	assert.Equal(t, "my-repo", ds.Repository)
}

func TestParse_EnvVarDefault(t *testing.T) {
	yamlDoc := []byte(`
actions:
  1:
    action: delete_snapshots
    options:
      repository: ${CURATOR_UNSET_REPO:fallback-repo}
    filters: []
`)
	entries, err := Parse(yamlDoc)
	require.NoError(t, err)
	ds := entries[0].Action.(*action.DeleteSnapshots)
	assert.Equal(t, "fallback-repo", ds.Repository)
}

func TestParse_AliasActionUsesAddRemoveSubsections(t *testing.T) {
	yamlDoc := []byte(`
actions:
  1:
    action: alias
    options:
      name: my-alias
    add:
      filters:
        - filtertype: pattern
          kind: suffix
          value: -new
    remove:
      filters:
        - filtertype: pattern
          kind: suffix
          value: -old
`)
	entries, err := Parse(yamlDoc)
	require.NoError(t, err)
	al := entries[0].Action.(*action.Alias)
	assert.Equal(t, "my-alias", al.Name)
	assert.Len(t, al.AddChain, 1)
	assert.Len(t, al.RemoveChain, 1)
}

func TestParse_UnknownActionKindIsConfigError(t *testing.T) {
	yamlDoc := []byte(`
actions:
  1:
    action: not_a_real_action
`)
	_, err := Parse(yamlDoc)
	require.Error(t, err)
	assert.True(t, curatorerr.Is(err, curatorerr.ConfigError))
}

func TestParse_NonIntegerActionKeyIsConfigError(t *testing.T) {
	yamlDoc := []byte(`
actions:
  first:
    action: close
`)
	_, err := Parse(yamlDoc)
	require.Error(t, err)
	assert.True(t, curatorerr.Is(err, curatorerr.ConfigError))
}

func TestBuildIndexFilter_CommonKinds(t *testing.T) {
	f, err := buildIndexFilter(map[string]interface{}{"filtertype": "closed"})
	require.NoError(t, err)
	_, ok := f.(*filter.ClosedFilter)
	assert.True(t, ok)

	_, err = buildIndexFilter(map[string]interface{}{"filtertype": "bogus"})
	assert.Error(t, err)
}

func TestParse_CommonOptionsApplied(t *testing.T) {
	yamlDoc := []byte(`
actions:
  1:
    action: close
    options:
      ignore_empty_list: true
      continue_if_exception: true
    filters: []
`)
	entries, err := Parse(yamlDoc)
	require.NoError(t, err)
	c := entries[0].Action.(*action.Close)
	assert.True(t, c.Common.IgnoreEmptyList)
	assert.True(t, c.Common.ContinueIfException)
}
