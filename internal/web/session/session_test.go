package session

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()

	Init(memory.New())

	app := fiber.New()

	app.Get("/whoami", func(c *fiber.Ctx) error {
		data, err := Current(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
		}

		return c.SendString(data.User.Username)
	})

	app.Post("/flash", func(c *fiber.Ctx) error {
		SetFlash(c, "success", "Saved")

		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/flash", func(c *fiber.Ctx) error {
		f := PopFlash(c)
		if f == nil {
			return c.SendString("none")
		}

		return c.SendString(f.Kind + ":" + f.Message)
	})

	return app
}

func do(t *testing.T, app *fiber.App, method, path, sid string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: sid})
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestCurrent(t *testing.T) {
	app := newApp(t)

	status, _ := do(t, app, http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, app, http.MethodGet, "/whoami", "unknown")
	assert.Equal(t, http.StatusUnauthorized, status)

	sid, err := GenerateSessionID()
	require.NoError(t, err)

	data := &Data{User: models.User{ID: 7, Username: "analyst"}}
	require.NoError(t, data.Write(sid, time.Hour))

	status, body := do(t, app, http.MethodGet, "/whoami", sid)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "analyst", body)

	require.NoError(t, Destroy(sid))

	status, _ = do(t, app, http.MethodGet, "/whoami", sid)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAnonymousSessionIsRejected(t *testing.T) {
	app := newApp(t)

	require.NoError(t, (&Data{}).Write("anon", time.Hour))

	status, body := do(t, app, http.MethodGet, "/whoami", "anon")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ErrNoSession.Error(), body)
}

func TestFlashIsShownOnce(t *testing.T) {
	app := newApp(t)

	_, body := do(t, app, http.MethodGet, "/flash", "s1")
	assert.Equal(t, "none", body)

	status, _ := do(t, app, http.MethodPost, "/flash", "s1")
	require.Equal(t, http.StatusNoContent, status)

	// another session does not see it
	_, body = do(t, app, http.MethodGet, "/flash", "s2")
	assert.Equal(t, "none", body)

	_, body = do(t, app, http.MethodGet, "/flash", "s1")
	assert.Equal(t, "success:Saved", body)

	_, body = do(t, app, http.MethodGet, "/flash", "s1")
	assert.Equal(t, "none", body)
}

func TestFlashNeedsCookie(t *testing.T) {
	app := newApp(t)

	do(t, app, http.MethodPost, "/flash", "")

	_, body := do(t, app, http.MethodGet, "/flash", "")
	assert.Equal(t, "none", body)
}

func TestGenerateSessionID(t *testing.T) {
	a, err := GenerateSessionID()
	require.NoError(t, err)

	b, err := GenerateSessionID()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestInitPanicsOnNilStorage(t *testing.T) {
	assert.Panics(t, func() { Init(nil) })
}
