package deepfreeze

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/model"
	"github.com/curatorhq/curator/internal/s3store"
)

// CleanupOptions configures periodic maintenance (spec §4.3.5).
type CleanupOptions struct {
	// RequestRetention is how long completed/refrozen/failed thaw_request
	// documents are kept before deletion; default 30 days.
	RequestRetention time.Duration
}

// CleanupResult reports what cleanup did, for CLI/porcelain output.
type CleanupResult struct {
	ExpiredRefrozen  []string
	RequestsDeleted  []string
	PoliciesDeleted  []string
}

// Cleanup runs the three periodic maintenance steps: refreeze anything
// past its expiry, retire old terminal thaw requests, and delete orphaned
// per-request ILM policies.
func Cleanup(ctx context.Context, env *Env, opts CleanupOptions) (CleanupResult, error) {
	retention := opts.RequestRetention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	result := CleanupResult{}
	now := s3store.Now()

	// Step 1: refreeze anything past expiry.
	repos, err := env.Store.ListRepositories(ctx)
	if err != nil {
		return result, err
	}
	requests, err := env.Store.ListThawRequests(ctx, true)
	if err != nil {
		return result, err
	}
	for _, r := range repos {
		if r.ThawState != model.ThawThawed || r.ExpiresAt == nil || r.ExpiresAt.After(now) {
			continue
		}
		req := findRequestForRepo(requests, r.Name)
		if req == nil {
			continue
		}
		if err := refreezeOne(ctx, env, *req); err != nil {
			env.Log.WithError(err).Warnf("cleanup: refreeze of expired repository %s failed", r.Name)
			continue
		}
		result.ExpiredRefrozen = append(result.ExpiredRefrozen, r.Name)
	}

	// Step 2: delete old terminal thaw_request documents.
	requests, err = env.Store.ListThawRequests(ctx, true)
	if err != nil {
		return result, err
	}
	for _, req := range requests {
		if req.Status != model.ThawRequestCompleted && req.Status != model.ThawRequestRefrozen && req.Status != model.ThawRequestFailed {
			continue
		}
		if now.Sub(req.CreatedAt) < retention {
			continue
		}
		if env.DryRun {
			continue
		}
		if err := env.Store.DeleteThawRequest(ctx, req.RequestID); err != nil {
			env.Log.WithError(err).Warnf("cleanup: could not delete thaw request %s", req.RequestID)
			continue
		}
		result.RequestsDeleted = append(result.RequestsDeleted, req.RequestID)
	}

	// Step 3: delete orphaned per-request ILM policies (named
	// "deepfreeze-thaw-{request_id}") whose request no longer exists.
	policies, err := env.ILM.ListLifecycles(ctx)
	if err != nil {
		return result, err
	}
	remaining, err := env.Store.ListThawRequests(ctx, true)
	if err != nil {
		return result, err
	}
	liveIDs := map[string]bool{}
	for _, req := range remaining {
		liveIDs[req.RequestID] = true
	}
	for _, p := range policies {
		id, ok := thawPolicyRequestID(p.Name)
		if !ok || liveIDs[id] {
			continue
		}
		if env.DryRun {
			continue
		}
		if err := env.ILM.DeleteLifecycle(ctx, p.Name); err != nil {
			env.Log.WithError(err).Warnf("cleanup: could not delete orphaned policy %s", p.Name)
			continue
		}
		result.PoliciesDeleted = append(result.PoliciesDeleted, p.Name)
	}

	return result, nil
}

func findRequestForRepo(requests []model.ThawRequest, repoName string) *model.ThawRequest {
	for i := range requests {
		for _, r := range requests[i].Repos {
			if r == repoName {
				return &requests[i]
			}
		}
	}
	return nil
}

const thawPolicyPrefix = "deepfreeze-thaw-"

func thawPolicyRequestID(policyName string) (string, bool) {
	if len(policyName) <= len(thawPolicyPrefix) || policyName[:len(thawPolicyPrefix)] != thawPolicyPrefix {
		return "", false
	}
	return policyName[len(thawPolicyPrefix):], true
}
