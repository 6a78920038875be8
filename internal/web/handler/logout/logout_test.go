package logout

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/login"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

func TestLogout(t *testing.T) {
	conn := handlertest.NewDB(t)
	app := handlertest.NewApp()

	handlertest.InitSessions()

	var s Service
	s.Init(app, handlertest.NewConfig(), conn, nil)

	user := handlertest.CreateUser(t, conn, "erin", models.RoleViewer)
	sid := handlertest.Login(t, user)

	resp := handlertest.Request(t, app, http.MethodPost, Path, sid, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, login.Path, resp.Header.Get("Location"))
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "session=;")

	err := new(session.Data).Read(sid)
	require.ErrorIs(t, err, session.ErrNoSession)

	var n int64
	require.NoError(t, conn.Model(&models.AuditLog{}).Where("action = ?", "logout").Count(&n).Error)
	assert.EqualValues(t, 1, n)

	// without a session the cookie is still cleared
	resp = handlertest.Request(t, app, http.MethodGet, Path, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}
