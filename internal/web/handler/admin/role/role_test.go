package role

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
)

func TestSetPermissions(t *testing.T) {
	env := handlertest.Setup(t)

	var s Service
	s.Init(env.App, env.Config, env.DB, env.Auth)

	admin := handlertest.CreateUser(t, env.DB, "root", models.RoleAdmin)
	sid := handlertest.Login(t, admin)
	viewer := handlertest.CreateUser(t, env.DB, "viewer", models.RoleViewer)

	var fundingWrite models.Permission
	require.NoError(t, env.DB.Where(models.WhereNameIs, auth.PermFundingWrite).First(&fundingWrite).Error)

	var fundingRead models.Permission
	require.NoError(t, env.DB.Where(models.WhereNameIs, auth.PermFundingRead).First(&fundingRead).Error)

	resp := handlertest.Request(t, env.App, http.MethodGet, Path, sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	target := Path + "/" + strconv.FormatUint(uint64(viewer.RoleID), 10)
	form := url.Values{"permission_ids": {
		strconv.FormatUint(uint64(fundingRead.ID), 10),
		strconv.FormatUint(uint64(fundingWrite.ID), 10),
	}}

	resp = handlertest.Request(t, env.App, http.MethodPost, target, sid, form)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	perms, err := env.Auth.GetUserPermissions(viewer.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{auth.PermFundingRead, auth.PermFundingWrite}, perms)

	resp = handlertest.Request(t, env.App, http.MethodPost, target, sid, url.Values{"permission_ids": {"x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	adminTarget := Path + "/" + strconv.FormatUint(uint64(admin.RoleID), 10)
	resp = handlertest.Request(t, env.App, http.MethodPost, adminTarget, sid, url.Values{})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	ok, err := env.Auth.HasPermission(admin.ID, auth.PermAdminRoles)
	require.NoError(t, err)
	assert.True(t, ok)

	resp = handlertest.Request(t, env.App, http.MethodGet, Path+"/999/edit", sid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	viewerSID := handlertest.Login(t, viewer)
	resp = handlertest.Request(t, env.App, http.MethodGet, Path, viewerSID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
