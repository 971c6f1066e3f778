package curatorerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"empty list", New(EmptyList, "no indices survived filtering"), 1},
		{"config error", New(ConfigError, "bad yaml"), 3},
		{"precondition", New(Precondition, "shrink source has 1 shard"), 2},
		{"cluster", New(Cluster, "5xx from es"), 2},
		{"plain error", errors.New("boom"), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(Cluster, "failed to delete index", cause)
	require.ErrorIs(t, wrapped, cause)
	assert.True(t, Is(wrapped, Cluster))
	assert.False(t, Is(wrapped, Timeout))
}

func TestWithAction(t *testing.T) {
	err := New(Precondition, "rotate with no ILM policy").WithAction("3")
	assert.Contains(t, err.Error(), "action 3")
}

func TestIsEmptyList(t *testing.T) {
	assert.True(t, IsEmptyList(New(EmptyList, "empty")))
	assert.False(t, IsEmptyList(New(Fatal, "bug")))
	assert.False(t, IsEmptyList(errors.New("unclassified")))
}
