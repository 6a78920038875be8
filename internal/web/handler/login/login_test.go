package login

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
)

func newService(t *testing.T, devMode bool) (*Service, *fiber.App) {
	t.Helper()

	conn := handlertest.NewDB(t)
	cfg := handlertest.NewConfig()
	cfg.DevMode = devMode
	app := handlertest.NewApp()

	handlertest.InitSessions()

	var s Service
	s.Init(app, cfg, conn, nil)

	return &s, app
}

func TestPickAuthType_DefaultsAndErrors(t *testing.T) {
	s, _ := newService(t, false)

	at, err := s.pickAuthType("")
	require.NoError(t, err)
	assert.Equal(t, authTypeLocal, at)

	s.cfg.Auth.LocalDB.Enabled = false
	s.cfg.Auth.LDAP.Enabled = true

	at, err = s.pickAuthType("")
	require.NoError(t, err)
	assert.Equal(t, authTypeLDAP, at)

	_, err = s.pickAuthType(authTypeLDAP)
	require.ErrorIs(t, err, ErrLDAPAuthDisabled)

	s.ldapAuth = &auth.LDAPProvider{}
	at, err = s.pickAuthType(authTypeLDAP)
	require.NoError(t, err)
	assert.Equal(t, authTypeLDAP, at)

	_, err = s.pickAuthType(authTypeLocal)
	require.ErrorIs(t, err, ErrLocalAuthDisabled)

	_, err = s.pickAuthType("unknown")
	require.ErrorIs(t, err, ErrInvalidAuthMethod)

	s.cfg.Auth.LDAP.Enabled = false
	_, err = s.pickAuthType("")
	require.ErrorIs(t, err, ErrNoAuthMethod)
}

func TestAuthenticate_Local(t *testing.T) {
	s, _ := newService(t, false)
	user := handlertest.CreateUser(t, s.db, "alice", models.RoleViewer)
	require.True(t, user.Active)

	got, err := s.authenticate(authTypeLocal, "alice", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	got, err = s.authenticate(authTypeLocal, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, got)

	_, err = s.authenticate(authTypeLocal, "nobody", "secret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, auth.NewLocalProvider(s.db).SetActive(user.ID, false))
	_, err = s.authenticate(authTypeLocal, "alice", "secret-pass")
	require.ErrorIs(t, err, ErrAccountDisabled)

	_, err = s.authenticate("bogus", "alice", "secret-pass")
	require.ErrorIs(t, err, ErrInvalidAuthMethod)
}

func TestPost(t *testing.T) {
	tests := []struct {
		name       string
		devMode    bool
		localAuth  bool
		password   string
		wantStatus int
		wantSecure bool
		wantBody   string
	}{
		{name: "success sets secure cookie", password: "secret-pass", localAuth: true,
			wantStatus: http.StatusFound, wantSecure: true},
		{name: "dev mode drops secure flag", devMode: true, password: "secret-pass", localAuth: true,
			wantStatus: http.StatusFound},
		{name: "wrong password", password: "nope", localAuth: true,
			wantStatus: http.StatusOK, wantBody: ErrInvalidCredentials.Error()},
		{name: "local disabled", password: "secret-pass",
			wantStatus: http.StatusOK, wantBody: ErrLocalAuthDisabled.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, app := newService(t, tt.devMode)
			s.cfg.Auth.LocalDB.Enabled = tt.localAuth
			handlertest.CreateUser(t, s.db, "bob", models.RoleEditor)

			form := url.Values{"username": {"bob"}, "password": {tt.password}, "auth_type": {authTypeLocal}}
			resp := handlertest.Request(t, app, http.MethodPost, Path, "", form)

			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusFound {
				assert.Equal(t, handler.DashboardPath, resp.Header.Get("Location"))

				cookie := strings.ToLower(resp.Header.Get("Set-Cookie"))
				assert.Contains(t, cookie, "session=")
				assert.Equal(t, tt.wantSecure, strings.Contains(cookie, "secure"))

				var n int64
				require.NoError(t, s.db.Model(&models.AuditLog{}).Where("action = ?", "login").Count(&n).Error)
				assert.EqualValues(t, 1, n)

				return
			}

			assert.Contains(t, handlertest.Body(t, resp), tt.wantBody)
		})
	}
}

func TestPost_InvalidForm_RendersError(t *testing.T) {
	_, app := newService(t, false)

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, handlertest.Body(t, resp), ErrInvalidFormData.Error())
}
