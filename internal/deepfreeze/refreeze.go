package deepfreeze

import (
	"context"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/model"
)

// Refreeze implements spec §4.3.4: return every repository referenced by
// a thaw request back to cold storage, unless another non-terminal
// request still references that repository. Set requestID to "" with
// all=true to refreeze every in-progress/thawed request.
func Refreeze(ctx context.Context, env *Env, requestID string, all bool) ([]string, error) {
	var requests []model.ThawRequest
	if all {
		listed, err := env.Store.ListThawRequests(ctx, true)
		if err != nil {
			return nil, err
		}
		for _, r := range listed {
			if r.Status == model.ThawRequestInProgress || r.Status == model.ThawRequestCompleted {
				requests = append(requests, r)
			}
		}
	} else {
		req, found, err := env.Store.GetThawRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, curatorerr.New(curatorerr.ConfigError, "no such thaw request "+requestID)
		}
		requests = []model.ThawRequest{req}
	}

	var refrozen []string
	for _, req := range requests {
		if err := refreezeOne(ctx, env, req); err != nil {
			return refrozen, err
		}
		refrozen = append(refrozen, req.Repos...)
	}
	return refrozen, nil
}

func refreezeOne(ctx context.Context, env *Env, req model.ThawRequest) error {
	active, err := env.Store.ListThawRequests(ctx, false)
	if err != nil {
		return err
	}
	referencedElsewhere := map[string]bool{}
	for _, other := range active {
		if other.RequestID == req.RequestID {
			continue
		}
		for _, r := range other.Repos {
			referencedElsewhere[r] = true
		}
	}

	settings, _, err := env.Store.GetSettings(ctx)
	if err != nil {
		return err
	}

	failed := false
	for _, repoName := range req.Repos {
		if referencedElsewhere[repoName] {
			env.Log.Infof("repository %s still referenced by another thaw request, not refreezing", repoName)
			continue
		}
		repo, found, err := env.Store.GetRepository(ctx, repoName)
		if err != nil || !found {
			failed = true
			continue
		}
		if env.DryRun {
			env.Log.Infof("dry-run: would refreeze repository %s", repoName)
			continue
		}
		err = env.withRepositoryLock(ctx, repoName, func() error {
			for _, idxName := range repo.Indices {
				if err := env.Index.Delete(ctx, []string{idxName}); err != nil {
					return curatorerr.Wrap(curatorerr.Cluster, "deleting mounted index "+idxName, err)
				}
			}
			if err := env.Snapshot.UnregisterRepository(ctx, repo.Name); err != nil {
				return curatorerr.Wrap(curatorerr.Cluster, "unregistering repository "+repo.Name, err)
			}
			keys, err := env.S3.ListObjects(ctx, repo.Bucket, repo.BasePath)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := env.S3.TransitionStorageClass(ctx, repo.Bucket, keys, ColdStorageClass(settings.StorageClass)); err != nil {
					return err
				}
			}
			repo.ThawState = model.ThawFrozen
			repo.IsMounted = false
			repo.ExpiresAt = nil
			return env.Store.SaveRepository(ctx, repo, true)
		})
		if err != nil {
			failed = true
		}
	}

	if env.DryRun {
		return nil
	}
	if failed {
		req.Status = model.ThawRequestFailed
	} else {
		req.Status = model.ThawRequestRefrozen
	}
	return env.Store.SaveThawRequest(ctx, req, true)
}
