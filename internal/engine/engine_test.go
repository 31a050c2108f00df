// internal/engine/engine_test.go
package engine_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/engine"
	"github.com/kv9x/dowser-cli/internal/mocks"
)

func newEngineConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Target.BaseURL = "http://items.test"
	cfg.Target.Routes = []string{"/items"}
	cfg.Target.LoginRoute = "/items"
	cfg.Probe.WaitForTimeout = 200 * time.Millisecond
	cfg.Probe.PollInterval = 20 * time.Millisecond
	cfg.Engine.Concurrency = 2
	return cfg
}

func fakeAppFactory() engine.PageFactory {
	return func(ctx context.Context) (schemas.Page, error) {
		return mocks.NewFakeItemsApp(), nil
	}
}

func TestEngineRunExploresEveryRoute(t *testing.T) {
	cfg := newEngineConfig()
	eng := engine.New(cfg, fakeAppFactory(), nil, zap.NewNop(), "test")

	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	// Per route: route-visit, login, then the three CRUD phases.
	require.Len(t, report.Workflows, 5)
	assert.Equal(t, "http://items.test", report.Target)
	assert.Nil(t, report.Load)

	byName := map[string]schemas.WorkflowStatus{}
	for _, wf := range report.Workflows {
		byName[wf.Workflow] = wf.Status
	}
	assert.Equal(t, schemas.WorkflowPassed, byName["route-visit"])
	// The items route carries no credential pair.
	assert.Equal(t, schemas.WorkflowSkipped, byName["login"])
	assert.Equal(t, schemas.WorkflowPassed, byName["create-item"])
	assert.Equal(t, schemas.WorkflowPassed, byName["update-item"])
	assert.Equal(t, schemas.WorkflowPassed, byName["delete-item"])

	assert.Equal(t, 4, report.Summary[schemas.WorkflowPassed])
	assert.Equal(t, 1, report.Summary[schemas.WorkflowSkipped])
	assert.False(t, report.Finished.Before(report.Started))
}

func TestEngineRunMultipleRoutesConcurrently(t *testing.T) {
	cfg := newEngineConfig()
	cfg.Target.Routes = []string{"/items", "/about", "/contact"}
	cfg.Target.LoginRoute = "/login"

	eng := engine.New(cfg, fakeAppFactory(), nil, zap.NewNop(), "test")
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	// route-visit + 3 CRUD phases per route; login confined to its route.
	assert.Len(t, report.Workflows, 12)
	for _, wf := range report.Workflows {
		assert.NotEqual(t, schemas.WorkflowFailed, wf.Status,
			"workflow %s on %s failed: %s", wf.Workflow, wf.Route, wf.Reason)
	}
}

func TestEngineFailsWhenSessionCannotOpen(t *testing.T) {
	cfg := newEngineConfig()
	factory := func(ctx context.Context) (schemas.Page, error) {
		return nil, fmt.Errorf("browser unavailable")
	}

	eng := engine.New(cfg, factory, nil, zap.NewNop(), "test")
	_, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser unavailable")
}

func TestEngineRunsLoadPhase(t *testing.T) {
	cfg := newEngineConfig()
	cfg.Load.Enabled = true
	cfg.Load.VirtualUsers = 2
	cfg.Load.Duration = 150 * time.Millisecond
	cfg.Load.RatePerUser = 30
	cfg.Load.CheckHeaders = true

	client := new(mocks.MockHTTPClient)
	client.On("Do", mock.Anything, "GET", "http://items.test/items", mock.Anything, mock.Anything).
		Return(&schemas.HTTPResponse{Status: 200, Headers: http.Header{"Content-Type": []string{"text/html"}}}, nil)

	eng := engine.New(cfg, fakeAppFactory(), client, zap.NewNop(), "test")
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Load)
	assert.Positive(t, report.Load.Stats.Requests)
	assert.NotEmpty(t, report.Load.Findings)
}
