// Package deepfreeze implements Curator's repository-lifecycle manager
// (spec §4.3): it layers on top of ILM-driven snapshotting, owning the
// creation and retirement of the S3-backed repositories ILM snapshots
// into, plus Glacier restore/refreeze orchestration. It never creates or
// deletes snapshots itself.
package deepfreeze

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/logging"
	"github.com/curatorhq/curator/internal/model"
	"github.com/curatorhq/curator/internal/s3store"
)

// ObjectStore is the narrow slice of s3store.Store deepfreeze consumes,
// split out (in the esclient-adapter's narrow-interface idiom) so rotate/
// thaw/refreeze/cleanup can be tested against an in-memory fake instead of
// a live S3 bucket.
type ObjectStore interface {
	EnsureBucketExists(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
	HeadObjects(ctx context.Context, bucket string, keys []string) []s3store.HeadResult
	RestoreObjects(ctx context.Context, bucket string, keys []string, days int32, tier types.Tier) []error
	TransitionStorageClass(ctx context.Context, bucket string, keys []string, class types.StorageClass) error
}

// StatusStore is the slice of statestore.Store deepfreeze consumes.
type StatusStore interface {
	GetSettings(ctx context.Context) (model.Settings, bool, error)
	SaveSettings(ctx context.Context, settings model.Settings, expectExisting bool) error

	GetRepository(ctx context.Context, name string) (model.Repository, bool, error)
	SaveRepository(ctx context.Context, r model.Repository, expectExisting bool) error
	DeleteRepository(ctx context.Context, name string) error
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	ListRepositoriesByThawState(ctx context.Context, state model.ThawState) ([]model.Repository, error)

	GetThawRequest(ctx context.Context, requestID string) (model.ThawRequest, bool, error)
	SaveThawRequest(ctx context.Context, r model.ThawRequest, expectExisting bool) error
	DeleteThawRequest(ctx context.Context, requestID string) error
	ListThawRequests(ctx context.Context, includeTerminal bool) ([]model.ThawRequest, error)

	AcquireLock(ctx context.Context, repository, owner string, maxWait time.Duration) error
	ReleaseLock(ctx context.Context, repository string) error
	ReapExpiredLocks(ctx context.Context) error
}

// Env bundles the adapters every deepfreeze operation needs plus the
// shared locking/logging/dry-run concerns.
type Env struct {
	Cluster  esclient.ClusterAPI
	ILM      esclient.ILMAPI
	Index    esclient.IndexAPI
	Snapshot esclient.SnapshotAPI
	S3       ObjectStore
	Store    StatusStore
	Log      *logging.ContextLogger
	DryRun   bool

	// LockOwner identifies this process/invocation in acquired lock
	// documents; defaults to a generated id by the caller.
	LockOwner string
	// LockWait bounds lock-acquisition retries (spec §5's 30s default).
	LockWait time.Duration
}

func (e *Env) lockWait() time.Duration {
	if e.LockWait > 0 {
		return e.LockWait
	}
	return 30 * time.Second
}

// withRepositoryLock acquires the named repository's lock, runs fn, and
// releases the lock unconditionally, per spec §4.3.6's concurrency
// contract ("rotation, thaw, and refreeze all acquire the relevant locks
// before mutating repository records").
func (e *Env) withRepositoryLock(ctx context.Context, repository string, fn func() error) error {
	if err := e.Store.AcquireLock(ctx, repository, e.LockOwner, e.lockWait()); err != nil {
		return err
	}
	defer e.Store.ReleaseLock(ctx, repository)
	return fn()
}

// NextSuffix computes the suffix for a newly rotated repository per spec
// §4.3.1/4.3.2: "000001" (oneup, zero-padded 6 digits, one past the
// highest existing) or "YYYY.MM" (date, from explicit year/month inputs
// or the clock).
func NextSuffix(style model.RotateStyle, lastSuffix string, year, month int, now time.Time) (string, error) {
	switch style {
	case model.StyleOneUp:
		if lastSuffix == "" {
			return "000001", nil
		}
		var n int
		if _, err := fmt.Sscanf(lastSuffix, "%06d", &n); err != nil {
			return "", curatorerr.Wrap(curatorerr.ConfigError, "parsing last_suffix for oneup style", err)
		}
		return fmt.Sprintf("%06d", n+1), nil
	case model.StyleDate:
		if year != 0 && month != 0 {
			return fmt.Sprintf("%04d.%02d", year, month), nil
		}
		return now.Format("2006.01"), nil
	default:
		return "", curatorerr.New(curatorerr.ConfigError, "unknown rotate style "+string(style))
	}
}

// StripSuffix removes a trailing "-{suffix}" component from a policy or
// repository name, used by rotate to derive a base name before appending
// the new suffix (spec §4.3.2 step 3).
func StripSuffix(name, suffix string) string {
	return strings.TrimSuffix(name, "-"+suffix)
}

// RepositoryName, BucketName, and BasePath build the concrete identifiers
// for a given settings/suffix pair, per spec §4.3.1's naming scheme.
func RepositoryName(s model.Settings, suffix string) string { return s.RepoNamePrefix + "-" + suffix }
func BucketName(s model.Settings, suffix string) string     { return s.BucketNamePrefix + "-" + suffix }
func BasePath(s model.Settings, suffix string) string        { return s.BasePathPrefix + "-" + suffix }

// ColdStorageClass maps the settings' configured storage class string to
// the S3 SDK enum used by TransitionStorageClass.
func ColdStorageClass(settingsClass string) types.StorageClass {
	if settingsClass == "" {
		return types.StorageClassGlacier
	}
	return types.StorageClass(settingsClass)
}

// deriveEarliestLatest inspects the index names inside a snapshot set and
// returns the min/max epoch-milliseconds timestamp parsed from each, using
// timestring as the strftime-subset pattern (spec §4.3.2 step 5). Indices
// whose name does not match timestring are ignored.
func deriveEarliestLatest(snapshots []model.Snapshot, timestring string, parse func(name, timestring string) (time.Time, bool)) (earliestMs, latestMs int64, ok bool) {
	first := true
	for _, snap := range snapshots {
		for _, idxName := range snap.Indices {
			t, matched := parse(idxName, timestring)
			if !matched {
				continue
			}
			ms := t.UnixMilli()
			if first {
				earliestMs, latestMs = ms, ms
				first = false
				continue
			}
			if ms < earliestMs {
				earliestMs = ms
			}
			if ms > latestMs {
				latestMs = ms
			}
		}
	}
	return earliestMs, latestMs, !first
}
