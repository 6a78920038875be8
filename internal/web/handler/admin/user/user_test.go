package user

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
)

func TestCreateUser(t *testing.T) {
	env := handlertest.Setup(t)

	var s Service
	s.Init(env.App, env.Config, env.DB, env.Auth)

	admin := handlertest.Login(t, handlertest.CreateUser(t, env.DB, "root", models.RoleAdmin))
	editor := handlertest.Login(t, handlertest.CreateUser(t, env.DB, "editor", models.RoleEditor))

	tests := []struct {
		name       string
		sid        string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name:       "editor forbidden",
			sid:        editor,
			form:       url.Values{"username": {"alice"}, "email": {"alice@example.com"}, "source": {"local"}, "password": {"long-enough"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "local needs password",
			sid:        admin,
			form:       url.Values{"username": {"alice"}, "email": {"alice@example.com"}, "source": {"local"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Password is required for local accounts",
		},
		{
			name:       "bad email",
			sid:        admin,
			form:       url.Values{"username": {"alice"}, "email": {"alice"}, "source": {"local"}, "password": {"long-enough"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Email must be a valid email address",
		},
		{
			name:       "local created",
			sid:        admin,
			form:       url.Values{"username": {"alice"}, "email": {"alice@example.com"}, "source": {"local"}, "password": {"long-enough"}},
			wantStatus: http.StatusFound,
		},
		{
			name:       "duplicate",
			sid:        admin,
			form:       url.Values{"username": {"alice"}, "email": {"other@example.com"}, "source": {"local"}, "password": {"long-enough"}},
			wantStatus: http.StatusConflict,
			wantBody:   "A user with this username or email already exists",
		},
		{
			name:       "ldap created with default role",
			sid:        admin,
			form:       url.Values{"username": {"bob"}, "email": {"bob@example.com"}, "source": {"ldap"}, "password": {"ignored"}},
			wantStatus: http.StatusFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handlertest.Request(t, env.App, http.MethodPost, Path, tt.sid, tt.form)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, handlertest.Body(t, resp))
			}
		})
	}

	var bob models.User
	require.NoError(t, env.DB.Preload("Role").Where("username = ?", "bob").First(&bob).Error)
	assert.Equal(t, models.RoleViewer, bob.Role.Name)
	assert.Empty(t, bob.Password)

	var alice models.User
	require.NoError(t, env.DB.Where("username = ?", "alice").First(&alice).Error)
	assert.True(t, alice.VerifyPassword("long-enough"))
}

func TestUserActions(t *testing.T) {
	env := handlertest.Setup(t)

	var s Service
	s.Init(env.App, env.Config, env.DB, env.Auth)

	root := handlertest.CreateUser(t, env.DB, "root", models.RoleAdmin)
	other := handlertest.CreateUser(t, env.DB, "other-admin", models.RoleAdmin)
	target := handlertest.CreateUser(t, env.DB, "target", models.RoleViewer)
	sid := handlertest.Login(t, root)

	reload := func(id uint64) models.User {
		var u models.User
		require.NoError(t, env.DB.First(&u, id).Error)

		return u
	}

	resp := handlertest.Request(t, env.App, http.MethodGet, Path+"?search=TAR", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(target.ID), sid,
		url.Values{"username": {"ignored"}, "email": {"new@example.com"}, "source": {"oidc"}, "firstname": {"Tara"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	updated := reload(target.ID)
	assert.Equal(t, "target", updated.Username)
	assert.Equal(t, models.AuthSourceLocal, updated.AuthSource)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "Tara", updated.FirstName)

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(target.ID)+"/deactivate", sid, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.False(t, reload(target.ID).Active)

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(target.ID)+"/activate", sid, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, reload(target.ID).Active)

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(root.ID)+"/deactivate", sid, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, reload(root.ID).Active)

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(target.ID)+"/reset-password", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, TemplatePassword, handlertest.Body(t, resp))
	reloaded := reload(target.ID)
	assert.False(t, reloaded.VerifyPassword("secret-pass"))

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(root.ID)+"/delete", sid, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	reload(root.ID)

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(other.ID)+"/delete", sid, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	reload(other.ID)

	resp = handlertest.Request(t, env.App, http.MethodPost, userURL(target.ID)+"/delete", sid, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Where("id = ?", target.ID).Count(&count).Error)
	assert.Zero(t, count)

	resp = handlertest.Request(t, env.App, http.MethodGet, userURL(target.ID)+"/edit", sid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
