package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/mocks"
	"github.com/kv9x/dowser-cli/internal/recorder"
)

func newPolicyOrchestrator(page schemas.Page) (*Orchestrator, *run) {
	cfg := config.NewDefaultConfig()
	cfg.Target.BaseURL = "http://items.test"
	cfg.Target.Routes = []string{"/items"}
	cfg.Probe.WaitForTimeout = 50 * time.Millisecond
	cfg.Probe.PollInterval = 10 * time.Millisecond

	logger := zap.NewNop()
	o := New(cfg, page, recorder.New(logger), logger)
	return o, o.begin(WorkflowCreateItem, "/items")
}

func absentTargetStep(policy schemas.MissingPolicy) schemas.WorkflowStep {
	return schemas.WorkflowStep{
		Action:    schemas.ActionFill,
		Target:    schemas.MustSelectorSet("ghost", "#ghost"),
		OnMissing: policy,
	}
}

func TestPerformSkipStepContinues(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("QueryAll", mock.Anything, "#ghost", "").Return([]schemas.ElementInfo{}, nil)
	o, r := newPolicyOrchestrator(page)

	out, halt, err := o.perform(context.Background(), r, absentTargetStep(schemas.MissingSkipStep), "")
	require.NoError(t, err)
	assert.False(t, halt)
	assert.Equal(t, schemas.StepSkipped, out.Status)
	assert.Len(t, r.evidence, 1)
}

func TestPerformSkipWorkflowHalts(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("QueryAll", mock.Anything, "#ghost", "").Return([]schemas.ElementInfo{}, nil)
	o, r := newPolicyOrchestrator(page)

	out, halt, err := o.perform(context.Background(), r, absentTargetStep(schemas.MissingSkipWorkflow), "")
	require.NoError(t, err)
	assert.True(t, halt)
	assert.Equal(t, schemas.StepSkipped, out.Status)
}

func TestPerformFailTurnsAbsenceIntoVerdict(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("QueryAll", mock.Anything, "#ghost", "").Return([]schemas.ElementInfo{}, nil)
	o, r := newPolicyOrchestrator(page)

	_, halt, err := o.perform(context.Background(), r, absentTargetStep(schemas.MissingFail), "")
	require.Error(t, err)
	assert.True(t, halt)
	assert.True(t, errors.Is(err, schemas.ErrPostconditionViolated))
}

func TestPerformChecksDeadlineBeforeActing(t *testing.T) {
	page := new(mocks.MockPage)
	o, r := newPolicyOrchestrator(page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, halt, err := o.perform(ctx, r, absentTargetStep(schemas.MissingSkipStep), "")
	require.Error(t, err)
	assert.True(t, halt)
	assert.True(t, errors.Is(err, schemas.ErrDeadlineExceeded))
	page.AssertNotCalled(t, "QueryAll", mock.Anything, mock.Anything, mock.Anything)
}
