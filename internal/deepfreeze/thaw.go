package deepfreeze

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
	"github.com/curatorhq/curator/internal/model"
	"github.com/curatorhq/curator/internal/s3store"
)

// ThawCreateOptions are thaw create-mode's inputs (spec §4.3.3).
type ThawCreateOptions struct {
	StartDate     time.Time
	EndDate       time.Time
	DurationDays  int
	RetrievalTier model.RetrievalTier
	Sync          bool

	// NameTimestring resolves index timestamps when deciding which
	// repositories overlap the requested window.
	NameTimestring string
}

func (o ThawCreateOptions) validate() error {
	if !o.EndDate.After(o.StartDate) && !o.EndDate.Equal(o.StartDate) {
		return curatorerr.New(curatorerr.ConfigError, "thaw create requires end_date >= start_date")
	}
	if o.DurationDays < 1 || o.DurationDays > 90 {
		return curatorerr.New(curatorerr.ConfigError, "thaw create requires duration_days in 1..90")
	}
	switch o.RetrievalTier {
	case model.TierExpedited, model.TierStandard, model.TierBulk:
	default:
		return curatorerr.New(curatorerr.ConfigError, "thaw create requires a valid retrieval_tier")
	}
	return nil
}

func glacierTier(t model.RetrievalTier) types.Tier {
	switch t {
	case model.TierExpedited:
		return types.TierExpedited
	case model.TierBulk:
		return types.TierBulk
	default:
		return types.TierStandard
	}
}

// ThawCreate issues Glacier restore requests for every repository whose
// window overlaps [start_date, end_date] and is currently frozen, then
// records a thaw_request document. When opts.Sync is set, it polls
// check-status until the request reaches a terminal state.
func ThawCreate(ctx context.Context, env *Env, opts ThawCreateOptions) (model.ThawRequest, error) {
	if err := opts.validate(); err != nil {
		return model.ThawRequest{}, err
	}

	frozen, err := env.Store.ListRepositoriesByThawState(ctx, model.ThawFrozen)
	if err != nil {
		return model.ThawRequest{}, err
	}
	startMs, endMs := opts.StartDate.UnixMilli(), opts.EndDate.UnixMilli()
	var targets []model.Repository
	for _, r := range frozen {
		if overlaps(r.EarliestEpochMs, r.LatestEpochMs, startMs, endMs) {
			targets = append(targets, r)
		}
	}
	if len(targets) == 0 {
		return model.ThawRequest{}, curatorerr.New(curatorerr.EmptyList, "no frozen repository overlaps the requested window")
	}

	var repoNames []string
	for i, r := range targets {
		repoNames = append(repoNames, r.Name)
		if env.DryRun {
			env.Log.Infof("dry-run: would restore objects under %s/%s", r.Bucket, r.BasePath)
			continue
		}
		err := env.withRepositoryLock(ctx, r.Name, func() error {
			keys, err := env.S3.ListObjects(ctx, r.Bucket, r.BasePath)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				errs := env.S3.RestoreObjects(ctx, r.Bucket, keys, int32(opts.DurationDays), glacierTier(opts.RetrievalTier))
				for _, e := range errs {
					if e != nil {
						return curatorerr.Wrap(curatorerr.AwsError, "issuing restore for "+r.Name, e)
					}
				}
			}
			expires := s3store.Now().Add(time.Duration(opts.DurationDays) * 24 * time.Hour)
			targets[i].ThawState = model.ThawThawing
			targets[i].ExpiresAt = &expires
			return env.Store.SaveRepository(ctx, targets[i], true)
		})
		if err != nil {
			return model.ThawRequest{}, err
		}
	}

	req := model.ThawRequest{
		RequestID: uuid.NewString(), Repos: repoNames, Status: model.ThawRequestInProgress,
		CreatedAt: s3store.Now(), StartDate: &opts.StartDate, EndDate: &opts.EndDate,
		DurationDays: opts.DurationDays, RetrievalTier: opts.RetrievalTier,
	}
	if !env.DryRun {
		if err := env.Store.SaveThawRequest(ctx, req, false); err != nil {
			return model.ThawRequest{}, err
		}
	}

	if opts.Sync && !env.DryRun {
		for {
			status, err := ThawCheckStatus(ctx, env, req.RequestID, opts.NameTimestring)
			if err != nil {
				return model.ThawRequest{}, err
			}
			if status.Status == model.ThawRequestCompleted || status.Status == model.ThawRequestFailed {
				return status, nil
			}
			select {
			case <-ctx.Done():
				return model.ThawRequest{}, curatorerr.Wrap(curatorerr.Timeout, "sync thaw cancelled", ctx.Err())
			case <-time.After(9 * time.Second):
			}
		}
	}
	return req, nil
}

func overlaps(aMin, aMax, bMin, bMax int64) bool {
	return aMin <= bMax && bMin <= aMax
}

// ThawCheckStatus implements check-status mode for a single request id.
func ThawCheckStatus(ctx context.Context, env *Env, requestID, nameTimestring string) (model.ThawRequest, error) {
	req, found, err := env.Store.GetThawRequest(ctx, requestID)
	if err != nil {
		return model.ThawRequest{}, err
	}
	if !found {
		return model.ThawRequest{}, curatorerr.New(curatorerr.ConfigError, "no such thaw request "+requestID)
	}

	allMounted := true
	for _, repoName := range req.Repos {
		repo, found, err := env.Store.GetRepository(ctx, repoName)
		if err != nil {
			return model.ThawRequest{}, err
		}
		if !found || repo.ThawState == model.ThawThawed {
			continue
		}

		keys, err := env.S3.ListObjects(ctx, repo.Bucket, repo.BasePath)
		if err != nil {
			return model.ThawRequest{}, err
		}
		if len(keys) == 0 {
			// Boundary behavior: an empty bucket/path completes immediately.
			if err := mountThawedRepository(ctx, env, &repo, req, nameTimestring); err != nil {
				return model.ThawRequest{}, err
			}
			continue
		}
		results := env.S3.HeadObjects(ctx, repo.Bucket, keys)
		restored := 0
		for _, r := range results {
			if r.Status == s3store.RestoreRestored {
				restored++
			}
		}
		if restored == len(keys) {
			if err := mountThawedRepository(ctx, env, &repo, req, nameTimestring); err != nil {
				return model.ThawRequest{}, err
			}
		} else {
			allMounted = false
		}
	}

	if allMounted {
		req.Status = model.ThawRequestCompleted
		if err := env.Store.SaveThawRequest(ctx, req, true); err != nil {
			return model.ThawRequest{}, err
		}
	}
	return req, nil
}

// mountThawedRepository registers repo, mounts every index whose name
// timestamp falls in the request window, and marks the record thawed. It
// creates no per-request ILM policy for the mounted indices.
func mountThawedRepository(ctx context.Context, env *Env, repo *model.Repository, req model.ThawRequest, nameTimestring string) error {
	return env.withRepositoryLock(ctx, repo.Name, func() error {
		if err := env.Snapshot.RegisterRepository(ctx, repo.Name, repo.Bucket, repo.BasePath, nil); err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "registering repository "+repo.Name, err)
		}
		snaps, err := env.Snapshot.ListSnapshots(ctx, repo.Name)
		if err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "listing snapshots in "+repo.Name, err)
		}
		earliest, latest, ok := deriveEarliestLatest(snaps, nameTimestring, filter.ParseNameTimestamp)
		if ok {
			repo.EarliestEpochMs, repo.LatestEpochMs = earliest, latest
		}
		repo.Indices = snapshotIndexNames(snaps)

		for _, snap := range snaps {
			for _, idxName := range snap.Indices {
				t, matched := filter.ParseNameTimestamp(idxName, nameTimestring)
				if !matched {
					continue
				}
				if req.StartDate != nil && req.EndDate != nil && !overlaps(t.UnixMilli(), t.UnixMilli(), req.StartDate.UnixMilli(), req.EndDate.UnixMilli()) {
					continue
				}
				mountedName, err := env.Snapshot.MountSearchableSnapshot(ctx, repo.Name, snap.Name, idxName, "frozen")
				if err != nil {
					return curatorerr.Wrap(curatorerr.Cluster, fmt.Sprintf("mounting %s from snapshot %s", idxName, snap.Name), err)
				}
				env.Log.Infof("mounted %s as %s for thaw request %s", idxName, mountedName, req.RequestID)
			}
		}

		repo.ThawState = model.ThawThawed
		repo.IsMounted = true
		return env.Store.SaveRepository(ctx, *repo, true)
	})
}

// ThawPorcelain renders a request+repository set in the tab-separated
// machine-readable form documented in spec §4.3.3 step 5.
func ThawPorcelain(req model.ThawRequest, repos []model.Repository) string {
	start, end := "", ""
	if req.StartDate != nil {
		start = req.StartDate.UTC().Format(time.RFC3339)
	}
	if req.EndDate != nil {
		end = req.EndDate.UTC().Format(time.RFC3339)
	}
	out := fmt.Sprintf("REQUEST\t%s\t%s\t%s\t%s\t%s\n", req.RequestID, req.Status, req.CreatedAt.UTC().Format(time.RFC3339), start, end)
	for _, r := range repos {
		progress := "0/0"
		if r.ThawState == model.ThawThawed {
			progress = "done"
		}
		out += fmt.Sprintf("REPO\t%s\t%s\t%s\t%s\t%t\t%s\n", r.Name, r.Bucket, r.BasePath, r.ThawState, r.IsMounted, progress)
	}
	return out
}

// ThawList returns thaw requests, optionally including terminal ones.
func ThawList(ctx context.Context, env *Env, includeTerminal bool) ([]model.ThawRequest, error) {
	return env.Store.ListThawRequests(ctx, includeTerminal)
}
