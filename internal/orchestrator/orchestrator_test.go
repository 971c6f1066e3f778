package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/internal/action"
	"github.com/curatorhq/curator/internal/actionfile"
	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/logging"
)

func testLogger() *logging.ContextLogger {
	logger, _ := logging.New(logging.Config{Level: logging.LevelError})
	return logging.NewContextLogger(logger)
}

// fakeAction is a minimal action.Action double recording whether each
// lifecycle method ran, for asserting the orchestrator's sequencing and
// continue_if_exception/disable_action/dry-run behavior in isolation from
// any real action's business logic.
type fakeAction struct {
	kind        string
	opts        action.CommonOptions
	validateErr error
	buildErr    error
	executeErr  error
	executed    *bool
	built       *bool
}

func (f *fakeAction) Kind() string                   { return f.kind }
func (f *fakeAction) Options() action.CommonOptions  { return f.opts }
func (f *fakeAction) Validate() error                { return f.validateErr }
func (f *fakeAction) Build(ctx context.Context, env *action.Env) (*action.Plan, error) {
	if f.built != nil {
		*f.built = true
	}
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &action.Plan{}, nil
}
func (f *fakeAction) Execute(ctx context.Context, env *action.Env, plan *action.Plan) error {
	if f.executed != nil {
		*f.executed = true
	}
	return f.executeErr
}

func entry(id int, a action.Action) actionfile.Entry {
	return actionfile.Entry{ID: id, Action: a}
}

func TestRun_ExecutesEntriesInDeclaredOrder(t *testing.T) {
	mk := func() *fakeAction {
		return &fakeAction{kind: "noop", opts: action.DefaultCommonOptions(), executed: new(bool)}
	}
	a1, a2 := mk(), mk()
	env := &action.Env{Log: testLogger()}
	entries := []actionfile.Entry{entry(1, a1), entry(2, a2)}

	summary := Run(context.Background(), env, entries, false)

	require.Len(t, summary.Results, 2)
	assert.NoError(t, summary.Results[0].Err)
	assert.NoError(t, summary.Results[1].Err)
	assert.True(t, *a1.executed)
	assert.True(t, *a2.executed)
}

func TestRun_AbortsOnFailureWithoutContinueIfException(t *testing.T) {
	executed2 := new(bool)
	a1 := &fakeAction{kind: "fails", opts: action.DefaultCommonOptions(), buildErr: curatorerr.New(curatorerr.Cluster, "boom")}
	a2 := &fakeAction{kind: "never-runs", opts: action.DefaultCommonOptions(), executed: executed2}
	env := &action.Env{Log: testLogger()}

	summary := Run(context.Background(), env, []actionfile.Entry{entry(1, a1), entry(2, a2)}, false)

	require.Len(t, summary.Results, 1)
	assert.Error(t, summary.Results[0].Err)
	assert.False(t, *executed2)
	require.Error(t, summary.FirstError())
}

func TestRun_ContinueIfExceptionProceedsPastFailure(t *testing.T) {
	opts := action.DefaultCommonOptions()
	opts.ContinueIfException = true
	executed2 := new(bool)
	a1 := &fakeAction{kind: "fails", opts: opts, buildErr: curatorerr.New(curatorerr.Cluster, "boom")}
	a2 := &fakeAction{kind: "runs", opts: action.DefaultCommonOptions(), executed: executed2}
	env := &action.Env{Log: testLogger()}

	summary := Run(context.Background(), env, []actionfile.Entry{entry(1, a1), entry(2, a2)}, false)

	require.Len(t, summary.Results, 2)
	assert.Error(t, summary.Results[0].Err)
	assert.NoError(t, summary.Results[1].Err)
	assert.True(t, *executed2)
}

func TestRun_DisableActionSkipsWithoutRunning(t *testing.T) {
	built := new(bool)
	opts := action.DefaultCommonOptions()
	opts.DisableAction = true
	a := &fakeAction{kind: "disabled", opts: opts, built: built}
	env := &action.Env{Log: testLogger()}

	summary := Run(context.Background(), env, []actionfile.Entry{entry(1, a)}, false)

	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Skipped)
	assert.False(t, *built)
}

func TestRun_DryRunSkipsExecuteButStillBuilds(t *testing.T) {
	built, executed := new(bool), new(bool)
	a := &fakeAction{kind: "dry", opts: action.DefaultCommonOptions(), built: built, executed: executed}
	env := &action.Env{Log: testLogger(), DryRun: false}

	summary := Run(context.Background(), env, []actionfile.Entry{entry(1, a)}, true)

	require.Len(t, summary.Results, 1)
	assert.NoError(t, summary.Results[0].Err)
	assert.True(t, *built)
	assert.False(t, *executed)
}

func TestRun_ValidateErrorAbortsBeforeBuild(t *testing.T) {
	built := new(bool)
	a := &fakeAction{kind: "invalid", opts: action.DefaultCommonOptions(), validateErr: curatorerr.New(curatorerr.ConfigError, "bad options"), built: built}
	env := &action.Env{Log: testLogger()}

	summary := Run(context.Background(), env, []actionfile.Entry{entry(1, a)}, false)

	require.Len(t, summary.Results, 1)
	assert.Error(t, summary.Results[0].Err)
	assert.False(t, *built)
}
