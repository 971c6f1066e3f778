// Package orchestrator is Curator's top-level sequential driver (spec §5):
// it runs a parsed action file's numbered actions strictly in declared
// order, applying each action's dry-run/disable/continue_if_exception
// options, and reports a per-action result summary for the action-file
// runner's exit-code mapping (spec §7). Grounded in the teacher's
// runServer top-level driver structure (cli/root.go): load config, wire
// dependencies, run the sequence, report outcome.
package orchestrator

import (
	"context"

	"github.com/curatorhq/curator/internal/action"
	"github.com/curatorhq/curator/internal/actionfile"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/logging"
)

// Result records one numbered action's outcome for the run summary.
type Result struct {
	ID          int
	Description string
	Kind        string
	Skipped     bool // disable_action=true
	Err         error
	Continued   bool // Err was recorded and the run went on under continue_if_exception
}

// RunSummary is the full action-file run's outcome.
type RunSummary struct {
	Results []Result
}

// FirstError returns the first non-continued failure, or nil if every
// action either succeeded or had continue_if_exception set.
func (s RunSummary) FirstError() error {
	for _, r := range s.Results {
		if r.Err != nil && !r.Continued {
			return r.Err
		}
	}
	return nil
}

// Run executes entries strictly in order against env. With dryRun (or
// env.DryRun) set, each action is validated and built but its Execute step
// is not called; the orchestrator logs the plan's size instead.
func Run(ctx context.Context, env *action.Env, entries []actionfile.Entry, dryRun bool) RunSummary {
	summary := RunSummary{}
	runEnv := *env
	runEnv.DryRun = runEnv.DryRun || dryRun

	for _, entry := range entries {
		result := Result{ID: entry.ID, Description: entry.Description, Kind: entry.Action.Kind()}

		if entry.Action.Options().DisableAction {
			result.Skipped = true
			summary.Results = append(summary.Results, result)
			continue
		}

		log := runEnv.Log.WithField("action_id", entry.ID).WithField("action_kind", entry.Action.Kind())
		err := runOne(ctx, &runEnv, entry.Action, log)
		result.Err = err
		summary.Results = append(summary.Results, result)

		if err == nil {
			continue
		}
		if curatorerr.IsEmptyList(err) && entry.Action.Options().IgnoreEmptyList {
			// ResolveIndices already returns nil,nil in this case; reaching
			// here means the action surfaced EmptyList despite the option,
			// which is itself a defect, so it is not swallowed twice.
			continue
		}
		if entry.Action.Options().ContinueIfException {
			summary.Results[len(summary.Results)-1].Continued = true
			log.WithError(err).Warnf("action failed, continuing per continue_if_exception")
			continue
		}
		log.WithError(err).Errorf("action failed, aborting run")
		break
	}
	return summary
}

func runOne(ctx context.Context, env *action.Env, act action.Action, log *logging.ContextLogger) error {
	return logging.LogOperation(log, act.Kind(), func() error {
		if err := act.Validate(); err != nil {
			return err
		}
		runCtx := ctx
		if timeout := act.Options().TimeoutOverride; timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		plan, err := act.Build(runCtx, env)
		if err != nil {
			return err
		}
		if plan == nil {
			// ignore_empty_list swallowed an empty chain: nothing to do.
			return nil
		}
		if env.DryRun {
			log.Infof("dry-run: would execute %s against %d indices, %d snapshots", act.Kind(), len(plan.Indices), len(plan.Snapshots))
			return nil
		}
		return act.Execute(runCtx, env, plan)
	})
}
