package statestore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/curatorhq/curator/internal/curatorerr"
)

// lockTTL is the default repository-lock expiry named in spec §4.3.3's
// concurrency contract.
const lockTTL = 2 * time.Hour

type wireLock struct {
	LockedBy  string `json:"locked_by"`
	LockedAt  int64  `json:"locked_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// AcquireLock implements spec §9's distributed locking design: create-if-
// absent on a document keyed by the repository name. On create conflict,
// read the existing document; if its expiry has passed, conditionally
// delete it (keyed on the stale document's _seq_no/_primary_term) and
// retry once. Bounded retry with exponential backoff up to maxWait, per
// spec §5's suspension-point description of lock acquisition.
func (s *Store) AcquireLock(ctx context.Context, repository, owner string, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	backoff := 100 * time.Millisecond
	for {
		now := time.Now()
		doc := wireLock{LockedBy: owner, LockedAt: now.UnixMilli(), ExpiresAt: now.Add(lockTTL).UnixMilli()}
		err := saveDocument(ctx, s.es, LockIndex, repository, doc, 0, 0, false)
		if err == nil {
			return nil
		}

		existing, getErr := getDocument[wireLock](ctx, s.es, LockIndex, repository)
		if getErr == nil && existing.Found && existing.Source.ExpiresAt < now.UnixMilli() {
			res, delErr := s.es.Delete(LockIndex, repository, s.es.Delete.WithContext(ctx),
				s.es.Delete.WithIfSeqNo(int(existing.SeqNo)), s.es.Delete.WithIfPrimaryTerm(int(existing.PrimaryTerm)))
			if delErr == nil {
				res.Body.Close()
			}
		}

		if time.Now().After(deadline) {
			return curatorerr.New(curatorerr.LockTimeout, "could not acquire lock for repository "+repository)
		}
		select {
		case <-ctx.Done():
			return curatorerr.Wrap(curatorerr.LockTimeout, "lock wait cancelled", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

// ReleaseLock deletes the lock document for repository. A missing lock is
// not an error (idempotent release).
func (s *Store) ReleaseLock(ctx context.Context, repository string) error {
	return deleteDocument(ctx, s.es, LockIndex, repository)
}

// ReapExpiredLocks deletes every lock document whose expiry has already
// passed. Only repair-metadata calls it; no binary reaps locks at startup.
func (s *Store) ReapExpiredLocks(ctx context.Context) error {
	now := time.Now().UnixMilli()
	body := []byte(fmt.Sprintf(`{"query":{"range":{"expires_at":{"lt":%d}}}}`, now))
	res, err := s.es.DeleteByQuery([]string{LockIndex}, bytes.NewReader(body), s.es.DeleteByQuery.WithContext(ctx))
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "reaping expired locks", err)
	}
	return decode(res, nil)
}
