package statestore

import (
	"testing"
	"time"

	"github.com/curatorhq/curator/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRepositoryWireRoundTrip(t *testing.T) {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := model.Repository{
		Name: "df-000001", Bucket: "my-bucket", BasePath: "df-000001",
		Suffix: "000001", IsMounted: true, ThawState: model.ThawThawed,
		EarliestEpochMs: 1000, LatestEpochMs: 2000, Indices: []string{"a", "b"},
		ExpiresAt: &expires, SeqNo: 5, PrimaryTerm: 1,
	}
	wire := toWireRepository(r)
	back := fromWireRepository(wire, r.SeqNo, r.PrimaryTerm)

	assert.Equal(t, r.Name, back.Name)
	assert.Equal(t, r.ThawState, back.ThawState)
	assert.True(t, back.ExpiresAt.Equal(expires))
	assert.Equal(t, r.Indices, back.Indices)
}

func TestThawStateIsMountedInvariant(t *testing.T) {
	assert.True(t, model.ThawActive.IsMounted())
	assert.True(t, model.ThawThawed.IsMounted())
	assert.False(t, model.ThawFrozen.IsMounted())
	assert.False(t, model.ThawThawing.IsMounted())
	assert.False(t, model.ThawExpired.IsMounted())
}
