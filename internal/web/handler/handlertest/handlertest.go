// Package handlertest holds fixtures shared by the web handler tests.
package handlertest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/seed"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

// Views is a minimal Fiber Views engine. It writes the first error entry of a
// fiber.Map ("error", "Error" or "Errors") when present and the template name otherwise.
type Views struct{}

// Load implements fiber.Views.
func (Views) Load() error { return nil }

// Render implements fiber.Views.
func (Views) Render(w io.Writer, name string, data any, _ ...string) error {
	if m, ok := data.(fiber.Map); ok {
		for _, key := range []string{"error", "Error", "Errors"} {
			v, exists := m[key]
			if !exists || v == nil || v == "" {
				continue
			}

			if msgs, isList := v.([]string); isList {
				if len(msgs) == 0 {
					continue
				}

				v = strings.Join(msgs, "; ")
			}

			_, err := io.WriteString(w, fmt.Sprint(v))

			return err
		}
	}

	_, err := io.WriteString(w, name)

	return err
}

// NewApp returns an app rendering with Views.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{Views: Views{}})
}

// Env bundles what a handler test needs.
type Env struct {
	App    *fiber.App
	DB     *gorm.DB
	Auth   *auth.Service
	Config *config.Config
}

// Setup returns an app with a seeded database, fresh sessions and the
// middleware that exposes the current user and permissions to handlers.
func Setup(t *testing.T) *Env {
	t.Helper()

	conn := NewDB(t)
	InitSessions()

	svc := auth.NewService(conn)
	app := NewApp()
	app.Use(auth.AddPermissionsToLocals(svc))

	return &Env{App: app, DB: conn, Auth: svc, Config: NewConfig()}
}

// NewDB opens a migrated and seeded in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))
	require.NoError(t, seed.Run(context.Background(), conn, seed.Options{}))

	t.Cleanup(func() { _ = sqlDB.Close() })

	return conn
}

// NewConfig returns a configuration with local login enabled.
func NewConfig() *config.Config {
	return &config.Config{
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
		Auth: config.Auth{
			LocalDB:     config.LocalDBAuth{Enabled: true},
			DefaultRole: models.RoleViewer,
		},
	}
}

// InitSessions installs a fresh in-memory session store.
func InitSessions() {
	session.Init(memory.New())
}

// CreateUser stores an active local user holding the named role.
func CreateUser(t *testing.T, conn *gorm.DB, username, role string) *models.User {
	t.Helper()

	roleID, err := auth.NewService(conn).RoleIDByName(role)
	require.NoError(t, err)

	u, err := auth.NewLocalProvider(conn).CreateUser(username, username+"@example.com", "secret-pass",
		"Test", "User", roleID)
	require.NoError(t, err)

	return u
}

// Login writes a session for the user and returns the cookie value.
func Login(t *testing.T, u *models.User) string {
	t.Helper()

	sid, err := session.GenerateSessionID()
	require.NoError(t, err)
	require.NoError(t, (&session.Data{User: *u}).Write(sid, time.Minute))

	return sid
}

// Request performs a request with an optional session cookie.
func Request(t *testing.T, app *fiber.App, method, target, sid string, form url.Values) *http.Response {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	}

	if sid != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sid})
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// Body reads the response body.
func Body(t *testing.T, resp *http.Response) string {
	t.Helper()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(b)
}
