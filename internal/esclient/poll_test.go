package esclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_SucceedsWhenProbeDone(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoll_MaxWaitZeroTimesOutImmediately(t *testing.T) {
	err := Poll(context.Background(), time.Millisecond, 0, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestPoll_NegativeMaxWaitNeverTimesOut(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, -1, func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}
