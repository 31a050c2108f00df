package workflow_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/mocks"
	"github.com/kv9x/dowser-cli/internal/recorder"
	"github.com/kv9x/dowser-cli/internal/workflow"
)

func newTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Target.BaseURL = "http://items.test"
	cfg.Target.Routes = []string{"/items"}
	cfg.Probe.NavigationTimeout = time.Second
	cfg.Probe.WaitForTimeout = 200 * time.Millisecond
	cfg.Probe.PollInterval = 20 * time.Millisecond
	return cfg
}

func newOrchestrator(app *mocks.FakeItemsApp) (*workflow.Orchestrator, *recorder.Recorder) {
	rec := recorder.New(zap.NewNop())
	return workflow.New(newTestConfig(), app, rec, zap.NewNop()), rec
}

func statuses(results []schemas.WorkflowResult) []schemas.WorkflowStatus {
	out := make([]schemas.WorkflowStatus, 0, len(results))
	for _, r := range results {
		out = append(out, r.Status)
	}
	return out
}

func TestRouteVisit(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	orch, _ := newOrchestrator(app)

	res := orch.RunRouteVisit(context.Background(), "/items")
	assert.Equal(t, schemas.WorkflowPassed, res.Status)
	assert.Equal(t, "route-visit", res.Workflow)
	assert.Equal(t, "http://items.test/items", res.Extra["final_url"])
	assert.NotEmpty(t, res.Evidence)
}

func TestLoginAuthenticated(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	orch, _ := newOrchestrator(app)

	res := orch.RunLogin(context.Background(), "/login")
	assert.Equal(t, schemas.WorkflowPassed, res.Status)
	assert.Equal(t, "authenticated", res.Reason)
	assert.True(t, app.LoggedIn())
}

func TestLoginSkippedWithoutForm(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	orch, _ := newOrchestrator(app)

	res := orch.RunLogin(context.Background(), "/items")
	assert.Equal(t, schemas.WorkflowSkipped, res.Status)
	assert.Equal(t, "no login form found", res.Reason)
}

func TestLoginUnconfirmedStillPasses(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	app.RejectCredentials = true
	orch, _ := newOrchestrator(app)

	res := orch.RunLogin(context.Background(), "/login")
	assert.Equal(t, schemas.WorkflowPassed, res.Status)
	assert.Equal(t, "login attempted, unconfirmed", res.Reason)
	assert.False(t, app.LoggedIn())
}

func TestCRUDHappyPath(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	orch, rec := newOrchestrator(app)

	results := orch.RunCRUD(context.Background(), "/items")
	require.Len(t, results, 3)

	want := []schemas.WorkflowStatus{schemas.WorkflowPassed, schemas.WorkflowPassed, schemas.WorkflowPassed}
	if diff := cmp.Diff(want, statuses(results)); diff != "" {
		t.Fatalf("workflow statuses mismatch (-want +got):\n%s\n%+v", diff, results)
	}

	created, ok := results[0].Extra["created_name"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(created, "Item-"))

	// The update renamed the row, the delete removed it.
	active, ok := results[1].Extra["active_name"].(string)
	require.True(t, ok)
	assert.NotEqual(t, created, active)
	assert.Empty(t, app.Items())

	// Every phase was recorded exactly once.
	assert.Len(t, rec.Results(), 3)

	// The select field got its second option during create.
	assert.Contains(t, app.Selected, 1)
}

func TestCRUDSkipsWhenNoForm(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	orch, _ := newOrchestrator(app)

	results := orch.RunCRUD(context.Background(), "/about")
	require.Len(t, results, 3)

	assert.Equal(t, schemas.WorkflowSkipped, results[0].Status)
	assert.Equal(t, "no form on this route", results[0].Reason)
	// The dependent phases are skipped, never failed.
	assert.Equal(t, schemas.WorkflowSkipped, results[1].Status)
	assert.Equal(t, schemas.WorkflowSkipped, results[2].Status)
}

func TestCreateFailsWhenValueNeverRenders(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	app.SuppressCreateRender = true
	orch, _ := newOrchestrator(app)

	results := orch.RunCRUD(context.Background(), "/items")
	require.Len(t, results, 3)

	assert.Equal(t, schemas.WorkflowFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "postcondition violated")
	assert.Equal(t, schemas.WorkflowSkipped, results[1].Status)
	assert.Equal(t, schemas.WorkflowSkipped, results[2].Status)
}

func TestUpdateSkippedWithoutEditControl(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	app.NoEditControl = true
	orch, _ := newOrchestrator(app)

	results := orch.RunCRUD(context.Background(), "/items")
	require.Len(t, results, 3)

	assert.Equal(t, schemas.WorkflowPassed, results[0].Status)
	assert.Equal(t, schemas.WorkflowSkipped, results[1].Status)
	assert.Equal(t, "no edit control located", results[1].Reason)
	// Delete still proceeds against the created row.
	assert.Equal(t, schemas.WorkflowPassed, results[2].Status)
	assert.Empty(t, app.Items())
}

func TestDeleteFailsWhenRowPersists(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	app.FailDelete = true
	orch, _ := newOrchestrator(app)

	results := orch.RunCRUD(context.Background(), "/items")
	require.Len(t, results, 3)

	assert.Equal(t, schemas.WorkflowFailed, results[2].Status)
	assert.Contains(t, results[2].Reason, "still present")
	assert.Len(t, app.Items(), 1)
}

func TestDeleteSkippedWithoutControl(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	app.NoDeleteControl = true
	orch, _ := newOrchestrator(app)

	results := orch.RunCRUD(context.Background(), "/items")
	require.Len(t, results, 3)

	assert.Equal(t, schemas.WorkflowPassed, results[1].Status)
	assert.Equal(t, schemas.WorkflowSkipped, results[2].Status)
	assert.Equal(t, "no delete control located", results[2].Reason)
}

func TestCRUDBehindLogin(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	app.RequireLogin = true
	orch, _ := newOrchestrator(app)

	// Without logging in, the items route exposes no form.
	results := orch.RunCRUD(context.Background(), "/items")
	assert.Equal(t, schemas.WorkflowSkipped, results[0].Status)
	assert.Equal(t, "no form on this route", results[0].Reason)

	// Same session, after the login workflow: the form becomes reachable.
	login := orch.RunLogin(context.Background(), "/login")
	require.Equal(t, schemas.WorkflowPassed, login.Status)

	results = orch.RunCRUD(context.Background(), "/items")
	assert.Equal(t, schemas.WorkflowPassed, results[0].Status)
	assert.Equal(t, schemas.WorkflowPassed, results[1].Status)
	assert.Equal(t, schemas.WorkflowPassed, results[2].Status)
}

func TestWorkflowDeadlineFails(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	orch, _ := newOrchestrator(app)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := orch.RunRouteVisit(ctx, "/items")
	assert.Equal(t, schemas.WorkflowFailed, res.Status)
	assert.Equal(t, schemas.ErrDeadlineExceeded.Error(), res.Reason)
}

func TestTwoRunsNeverShareTokens(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	orch, _ := newOrchestrator(app)
	app.NoDeleteControl = true
	app.NoEditControl = true

	first := orch.RunCRUD(context.Background(), "/items")
	second := orch.RunCRUD(context.Background(), "/items")

	firstName := first[0].Extra["created_name"].(string)
	secondName := second[0].Extra["created_name"].(string)
	assert.NotEqual(t, firstName, secondName)

	// Both rows exist; each create verified its own token, not the other's.
	require.Len(t, app.Items(), 2)
	assert.NotEqual(t, app.Items()[0], app.Items()[1])
}

func TestDeadlineMidWorkflowReportsDeadline(t *testing.T) {
	app := mocks.NewFakeItemsApp()
	app.SuppressCreateRender = true

	// The created-value wait outlives the workflow deadline, so the deadline
	// expires mid-step; the verdict must still name the deadline, not the
	// interrupted wait.
	cfg := newTestConfig()
	cfg.Probe.WaitForTimeout = 2 * time.Second
	rec := recorder.New(zap.NewNop())
	orch := workflow.New(cfg, app, rec, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	results := orch.RunCRUD(ctx, "/items")
	require.Len(t, results, 3)
	assert.Equal(t, schemas.WorkflowFailed, results[0].Status)
	assert.Equal(t, schemas.ErrDeadlineExceeded.Error(), results[0].Reason)
}
