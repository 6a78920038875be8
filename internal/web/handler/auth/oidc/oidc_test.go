package oidc

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

func TestConsumeState(t *testing.T) {
	handlertest.InitSessions()

	require.NoError(t, session.Store.Storage.Set(statePrefix+"abc", []byte{1}, stateTTL))

	require.NoError(t, consumeState("abc"))
	require.ErrorIs(t, consumeState("abc"), ErrInvalidState)
	require.ErrorIs(t, consumeState("never-issued"), ErrInvalidState)
}

func TestDisabledProvider(t *testing.T) {
	conn := handlertest.NewDB(t)
	cfg := handlertest.NewConfig()
	app := handlertest.NewApp()

	handlertest.InitSessions()

	var s Service
	s.Init(app, cfg, conn, nil)

	assert.Empty(t, s.EndSessionURL("token"))

	resp := handlertest.Request(t, app, http.MethodGet, LoginPath, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
