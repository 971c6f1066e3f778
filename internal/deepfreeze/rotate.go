package deepfreeze

import (
	"context"
	"sort"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/esclient"
	"github.com/curatorhq/curator/internal/filter"
	"github.com/curatorhq/curator/internal/model"
	"github.com/curatorhq/curator/internal/s3store"
)

// RotateOptions are rotate's inputs (spec §4.3.2). Year/Month only apply
// to style=date; Keep overrides the settings document's default.
type RotateOptions struct {
	Year  int
	Month int
	Keep  int

	// NameTimestring is the strftime-subset pattern used to derive index
	// timestamps when rescanning snapshots (spec §4.3.2 step 5).
	NameTimestring string
}

// RotateResult summarizes what changed for CLI/porcelain reporting.
type RotateResult struct {
	NewRepository model.Repository
	NewPolicies   []string
	UnmountedRepos []string
	SkippedRepos   []string // thaw_state in {thawing, thawed}, safety-skipped
}

// Rotate implements the full rotate algorithm: create the next
// repository, branch every ILM policy/template referencing the active
// one, rescan all repositories' snapshot windows, and unmount the tail
// beyond `keep`.
func Rotate(ctx context.Context, env *Env, opts RotateOptions) (RotateResult, error) {
	settings, found, err := env.Store.GetSettings(ctx)
	if err != nil {
		return RotateResult{}, err
	}
	if !found {
		return RotateResult{}, curatorerr.New(curatorerr.ConfigError, "deepfreeze has not been set up")
	}
	keep := opts.Keep
	if keep == 0 {
		keep = settings.Keep
	}
	if keep == 0 {
		keep = 6
	}

	activeRepoName := RepositoryName(settings, settings.LastSuffix)

	// Precondition: at least one ILM policy must reference the active
	// repository (spec §4.3.2's fail-fast precondition).
	policies, err := env.ILM.ListLifecycles(ctx)
	if err != nil {
		return RotateResult{}, curatorerr.Wrap(curatorerr.Cluster, "listing ILM policies", err)
	}
	var referencing []esclient.ILMPolicy
	for _, p := range policies {
		if repo, ok := p.SnapshotRepositoryReferences(); ok && repo == activeRepoName {
			referencing = append(referencing, p)
		}
	}
	if len(referencing) == 0 {
		return RotateResult{}, curatorerr.New(curatorerr.Precondition, "no ILM policy references the active repository "+activeRepoName)
	}

	newSuffix, err := NextSuffix(settings.Style, settings.LastSuffix, opts.Year, opts.Month, s3store.Now())
	if err != nil {
		return RotateResult{}, err
	}
	result := RotateResult{}

	newRepoName := RepositoryName(settings, newSuffix)
	newBucket := BucketName(settings, newSuffix)
	newBasePath := BasePath(settings, newSuffix)

	if env.DryRun {
		env.Log.Infof("dry-run: would rotate to suffix %s (repository %s)", newSuffix, newRepoName)
		for _, p := range referencing {
			result.NewPolicies = append(result.NewPolicies, StripSuffix(p.Name, settings.LastSuffix)+"-"+newSuffix)
		}
		result.NewRepository = model.Repository{Name: newRepoName, Bucket: newBucket, BasePath: newBasePath, Suffix: newSuffix}
		return result, nil
	}

	// Step 2: create the new bucket/path and register the new repository.
	if err := env.S3.EnsureBucketExists(ctx, newBucket); err != nil {
		return RotateResult{}, err
	}
	if err := env.Snapshot.RegisterRepository(ctx, newRepoName, newBucket, newBasePath, nil); err != nil {
		return RotateResult{}, curatorerr.Wrap(curatorerr.Cluster, "registering repository "+newRepoName, err)
	}

	// Step 3: branch every referencing ILM policy into a new versioned copy.
	templateRefs, err := env.ILM.GetTemplateILMRefs(ctx)
	if err != nil {
		return RotateResult{}, curatorerr.Wrap(curatorerr.Cluster, "reading template ILM references", err)
	}
	for _, p := range referencing {
		base := StripSuffix(p.Name, settings.LastSuffix)
		newPolicyName := base + "-" + newSuffix
		newPolicy := esclient.ILMPolicy{Name: newPolicyName, Metadata: p.Metadata, Phases: map[string]esclient.ILMPhase{}}
		for phaseName, phase := range p.Phases {
			newActions := map[string]map[string]interface{}{}
			for actionName, actionBody := range phase.Actions {
				copied := map[string]interface{}{}
				for k, v := range actionBody {
					copied[k] = v
				}
				if actionName == "searchable_snapshot" {
					copied["snapshot_repository"] = newRepoName
				}
				newActions[actionName] = copied
			}
			newPolicy.Phases[phaseName] = esclient.ILMPhase{MinAge: phase.MinAge, Actions: newActions}
		}
		if err := env.ILM.PutLifecycle(ctx, newPolicy); err != nil {
			return RotateResult{}, curatorerr.Wrap(curatorerr.Cluster, "creating policy "+newPolicyName, err)
		}
		if p.HasDeleteSearchableSnapshot() {
			env.Log.Warnf("policy %s has delete_searchable_snapshot=true in its delete phase; new policy %s inherits it", p.Name, newPolicyName)
		}
		result.NewPolicies = append(result.NewPolicies, newPolicyName)

		// Step 4: retarget templates pointing at the old policy name.
		for templateName, ilmName := range templateRefs {
			if ilmName == p.Name {
				if err := env.ILM.SetTemplateILMPolicy(ctx, templateName, newPolicyName); err != nil {
					return RotateResult{}, curatorerr.Wrap(curatorerr.Cluster, "updating template "+templateName, err)
				}
			}
		}
	}

	// Step 5: rescan every known repository's snapshot window.
	allRepos, err := env.Store.ListRepositories(ctx)
	if err != nil {
		return RotateResult{}, err
	}
	for i := range allRepos {
		snaps, err := env.Snapshot.ListSnapshots(ctx, allRepos[i].Name)
		if err != nil {
			env.Log.WithError(err).Warnf("could not rescan repository %s, leaving its window unchanged", allRepos[i].Name)
			continue
		}
		earliest, latest, ok := deriveEarliestLatest(snaps, opts.NameTimestring, filter.ParseNameTimestamp)
		if ok {
			allRepos[i].EarliestEpochMs, allRepos[i].LatestEpochMs = earliest, latest
		}
		allRepos[i].Indices = snapshotIndexNames(snaps)
		if err := env.Store.SaveRepository(ctx, allRepos[i], true); err != nil {
			return RotateResult{}, err
		}
	}

	newRepo := model.Repository{Name: newRepoName, Bucket: newBucket, BasePath: newBasePath, Suffix: newSuffix, IsMounted: true, ThawState: model.ThawActive}
	if err := env.Store.SaveRepository(ctx, newRepo, false); err != nil {
		return RotateResult{}, err
	}
	result.NewRepository = newRepo
	allRepos = append(allRepos, newRepo)

	// Step 6: sort by suffix descending, keep the first `keep`, unmount the tail.
	sort.Slice(allRepos, func(i, j int) bool { return allRepos[i].Suffix > allRepos[j].Suffix })
	tail := allRepos
	if len(allRepos) > keep {
		tail = allRepos[keep:]
	} else {
		tail = nil
	}
	for _, r := range tail {
		if r.ThawState == model.ThawThawing || r.ThawState == model.ThawThawed {
			result.SkippedRepos = append(result.SkippedRepos, r.Name)
			continue
		}
		if err := env.withRepositoryLock(ctx, r.Name, func() error {
			return unmountRepository(ctx, env, r, settings)
		}); err != nil {
			return RotateResult{}, err
		}
		result.UnmountedRepos = append(result.UnmountedRepos, r.Name)
	}

	// Step 7: persist last_suffix.
	settings.LastSuffix = newSuffix
	if err := env.Store.SaveSettings(ctx, settings, true); err != nil {
		return RotateResult{}, err
	}

	// Step 8: invoke cleanup.
	if _, err := Cleanup(ctx, env, CleanupOptions{}); err != nil {
		env.Log.WithError(err).Warnf("cleanup after rotate reported an error")
	}

	return result, nil
}

func unmountRepository(ctx context.Context, env *Env, r model.Repository, settings model.Settings) error {
	if !r.IsMounted {
		return nil
	}
	if err := env.Snapshot.UnregisterRepository(ctx, r.Name); err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "unregistering repository "+r.Name, err)
	}
	keys, err := env.S3.ListObjects(ctx, r.Bucket, r.BasePath)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := env.S3.TransitionStorageClass(ctx, r.Bucket, keys, ColdStorageClass(settings.StorageClass)); err != nil {
			return err
		}
	}
	r.IsMounted = false
	r.ThawState = model.ThawFrozen
	if err := env.Store.SaveRepository(ctx, r, true); err != nil {
		return err
	}

	// Delete any ILM policy suffixed with r's suffix iff nothing still
	// references it (index, data stream, or template).
	policies, err := env.ILM.ListLifecycles(ctx)
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "listing ILM policies for cleanup", err)
	}
	templateRefs, err := env.ILM.GetTemplateILMRefs(ctx)
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "reading template ILM references for cleanup", err)
	}
	indices, err := env.Cluster.ListIndices(ctx)
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "listing indices for cleanup", err)
	}
	for _, p := range policies {
		if !hasSuffix(p.Name, r.Suffix) {
			continue
		}
		if templateStillRefers(templateRefs, p.Name) || indexStillRefers(indices, p.Name) {
			continue
		}
		if err := env.ILM.DeleteLifecycle(ctx, p.Name); err != nil {
			env.Log.WithError(err).Warnf("could not delete orphaned policy %s", p.Name)
		}
	}
	return nil
}

func hasSuffix(name, suffix string) bool {
	return len(name) > len(suffix)+1 && name[len(name)-len(suffix):] == suffix
}

func templateStillRefers(refs map[string]string, policyName string) bool {
	for _, v := range refs {
		if v == policyName {
			return true
		}
	}
	return false
}

func indexStillRefers(indices []model.Index, policyName string) bool {
	for _, idx := range indices {
		if idx.ILMPolicyName == policyName {
			return true
		}
	}
	return false
}

func snapshotIndexNames(snaps []model.Snapshot) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range snaps {
		for _, idx := range s.Indices {
			if _, ok := seen[idx]; !ok {
				seen[idx] = struct{}{}
				out = append(out, idx)
			}
		}
	}
	return out
}
