package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/hireflow/pkg/cache"
	"github.com/dukex/hireflow/pkg/mocks"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *mocks.MockRemoteAPI, *mocks.MockEventBus) {
	t.Helper()

	client := new(mocks.MockRemoteAPI)
	bus := new(mocks.MockEventBus)

	api := NewAPI(slog.Default(), client, cache.NewMemory(), 0, bus)
	t.Cleanup(api.Close)

	return api.App(), client, bus
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _, _ := setupTestApp(t)

	status, body := get(t, app, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hireflow API", body)
}

func TestAPI_HealthCheck(t *testing.T) {
	app, _, _ := setupTestApp(t)

	status, body := get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, _ = get(t, app, "/readyz")
	assert.Equal(t, http.StatusOK, status)

	status, body = get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "healthy")
}

func TestAPI_BoardLoadsThroughCacheAndPublishes(t *testing.T) {
	app, client, bus := setupTestApp(t)

	client.On("GetWorkflow", mock.Anything, "wf-1").
		Return(&models.Workflow{ID: "wf-1", CompanyID: "acme", Name: "Engineering"}, nil)
	client.On("ListStages", mock.Anything, "wf-1").Return([]*models.Stage{
		{ID: "screen", WorkflowID: "wf-1", Name: "Screen", Order: 1, Kind: models.StageKindInitial, DisplayMode: models.DisplayColumn, IsActive: true},
	}, nil)
	client.On("ListPositions", mock.Anything, "wf-1").Return([]*models.Position{
		{ID: "p1", WorkflowID: "wf-1", StageID: "screen", Status: models.StatusDraft},
	}, nil)
	bus.On("Publish", mock.Anything, "wf-1", mock.Anything).Return(nil)

	status, body := get(t, app, "/workflows/wf-1/board")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"p1"`)

	bus.AssertCalled(t, "Publish", mock.Anything, "wf-1", mock.AnythingOfType("events.WorkflowReloaded"))
}
