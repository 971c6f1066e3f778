package deepfreeze

import (
	"context"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/filter"
	"github.com/curatorhq/curator/internal/model"
)

// RepairMetadataOptions configures a repair-metadata run.
type RepairMetadataOptions struct {
	NameTimestring string
	// Prune deletes status-index repository records whose backing ES
	// repository no longer exists. Off by default: a not-yet-mounted
	// frozen repository legitimately has no live ES repository, so absence
	// alone is not evidence of staleness.
	Prune bool
}

// RepairMetadataResult reports what was reconciled.
type RepairMetadataResult struct {
	Updated []string
	Pruned  []string
	Reaped  int
}

// RepairMetadata reconciles the status index against cluster authority
// (spec §5: "Cluster-side state ... is the authority of record;
// status-index records are caches/metadata and must be reconcilable by
// rescanning the cluster"). For every known repository it re-derives
// is_mounted from RepositoryExists, rescans the snapshot window, and
// reaps any expired locks left behind by a crashed process.
func RepairMetadata(ctx context.Context, env *Env, opts RepairMetadataOptions) (RepairMetadataResult, error) {
	result := RepairMetadataResult{}

	if err := env.Store.ReapExpiredLocks(ctx); err != nil {
		return result, err
	}

	repos, err := env.Store.ListRepositories(ctx)
	if err != nil {
		return result, err
	}

	for _, r := range repos {
		exists, err := env.Snapshot.RepositoryExists(ctx, r.Name)
		if err != nil {
			return result, curatorerr.Wrap(curatorerr.Cluster, "checking repository existence for "+r.Name, err)
		}

		if !exists && opts.Prune {
			if env.DryRun {
				result.Pruned = append(result.Pruned, r.Name)
				continue
			}
			if err := env.Store.DeleteRepository(ctx, r.Name); err != nil {
				return result, err
			}
			result.Pruned = append(result.Pruned, r.Name)
			continue
		}

		changed := false
		if exists != r.IsMounted {
			r.IsMounted = exists
			if exists {
				if r.ThawState == model.ThawFrozen {
					r.ThawState = model.ThawThawed
				}
			} else if r.ThawState == model.ThawThawed || r.ThawState == model.ThawActive {
				r.ThawState = model.ThawFrozen
			}
			changed = true
		}

		if exists {
			snaps, err := env.Snapshot.ListSnapshots(ctx, r.Name)
			if err != nil {
				env.Log.WithError(err).Warnf("repair-metadata: could not rescan snapshots in %s", r.Name)
			} else {
				earliest, latest, ok := deriveEarliestLatest(snaps, opts.NameTimestring, filter.ParseNameTimestamp)
				if ok && (earliest != r.EarliestEpochMs || latest != r.LatestEpochMs) {
					r.EarliestEpochMs, r.LatestEpochMs = earliest, latest
					changed = true
				}
				indices := snapshotIndexNames(snaps)
				if !stringSlicesEqual(indices, r.Indices) {
					r.Indices = indices
					changed = true
				}
			}
		}

		if !changed {
			continue
		}
		if env.DryRun {
			result.Updated = append(result.Updated, r.Name)
			continue
		}
		if err := env.Store.SaveRepository(ctx, r, true); err != nil {
			return result, err
		}
		result.Updated = append(result.Updated, r.Name)
	}

	return result, nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[string]int{}
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, c := range seen {
		if c != 0 {
			return false
		}
	}
	return true
}
