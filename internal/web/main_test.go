package web

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	conn := handlertest.NewDB(t)
	store := memory.New()
	session.Init(store)

	s := New(handlertest.NewConfig(), conn, store, workflow.NewService(conn, nil))
	s.alive.Store(true)

	return s
}

func TestHealth(t *testing.T) {
	s := newTestService(t)

	resp := handlertest.Request(t, s.App, http.MethodGet, healthPath, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, HealthUp, h.Status)
	assert.Equal(t, HealthUp, h.Database)
	assert.Equal(t, HealthUp, h.Storage)

	s.alive.Store(false)

	resp = handlertest.Request(t, s.App, http.MethodGet, healthPath, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsArePublic(t *testing.T) {
	s := newTestService(t)

	resp := handlertest.Request(t, s.App, http.MethodGet, metricsPath, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, handlertest.Body(t, resp), "go_goroutines")
}

func TestUnauthenticated(t *testing.T) {
	s := newTestService(t)

	resp := handlertest.Request(t, s.App, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = handlertest.Request(t, s.App, http.MethodGet, "/api/v1/bcrs", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Status int `json:"status"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, http.StatusUnauthorized, body.Error.Status)
}

func TestPagesRender(t *testing.T) {
	s := newTestService(t)

	resp := handlertest.Request(t, s.App, http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, handlertest.Body(t, resp), "Sign in")

	admin := handlertest.CreateUser(t, s.db, "admin1", models.RoleAdmin)
	sid := handlertest.Login(t, admin)

	resp = handlertest.Request(t, s.App, http.MethodGet, "/", sid, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	for _, path := range []string{
		"/dashboard",
		"/bcr",
		"/bcr/submissions",
		"/items",
		"/ref-data/release-notes",
		"/funding/requirements",
		"/academic-years",
		"/release-management",
		"/release-management/diary",
		"/release-management/new",
		"/admin/users",
		"/admin/roles",
		"/admin/audit",
		"/admin/settings/sla",
	} {
		t.Run(path, func(t *testing.T) {
			resp := handlertest.Request(t, s.App, http.MethodGet, path, sid, nil)
			body := handlertest.Body(t, resp)
			require.Equal(t, http.StatusOK, resp.StatusCode, body)
			assert.Contains(t, body, "admin1")
		})
	}

	resp = handlertest.Request(t, s.App, http.MethodGet, "/no-such-page", sid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, handlertest.Body(t, resp), MsgPageNotFound)
}
