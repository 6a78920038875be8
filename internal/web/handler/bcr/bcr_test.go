package bcr

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

type fixture struct {
	*handlertest.Env
	editor string
	viewer string
	bcr    *models.Bcr
}

func setup(t *testing.T) *fixture {
	t.Helper()

	env := handlertest.Setup(t)
	wf := workflow.NewService(env.DB, nil)

	s := Service{Workflow: wf}
	s.Init(env.App, env.Config, env.DB, env.Auth)

	bcr, err := wf.Create(context.Background(), workflow.NewBcr{
		Title:            "Add new funding route",
		Description:      "Add new funding route\nDetails follow.",
		UrgencyLevel:     "High",
		ImpactAreaValues: []string{"backend"},
	})
	require.NoError(t, err)

	return &fixture{
		Env:    env,
		editor: handlertest.Login(t, handlertest.CreateUser(t, env.DB, "editor", models.RoleEditor)),
		viewer: handlertest.Login(t, handlertest.CreateUser(t, env.DB, "viewer", models.RoleViewer)),
		bcr:    bcr,
	}
}

func TestReadPages(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name       string
		target     string
		sid        string
		wantStatus int
		wantBody   string
	}{
		{"list", Path, f.viewer, http.StatusOK, TemplateList},
		{"list filtered", Path + "?search=funding&phase=2&urgency=high", f.viewer, http.StatusOK, TemplateList},
		{"dashboard", Path + "/dashboard", f.viewer, http.StatusOK, TemplateDashboard},
		{"workflow", Path + "/workflow", f.viewer, http.StatusOK, TemplateWorkflow},
		{"show", Path + "/" + f.bcr.ID, f.viewer, http.StatusOK, TemplateShow},
		{"show as editor", Path + "/" + f.bcr.ID, f.editor, http.StatusOK, TemplateShow},
		{"invalid uuid", Path + "/not-a-uuid", f.viewer, http.StatusNotFound, ""},
		{"unknown uuid", Path + "/1b4e28ba-2fa1-11d2-883f-0016d3cca427", f.viewer, http.StatusNotFound, ""},
		{"no session", Path, "", http.StatusUnauthorized, ""},
		{"viewer cannot open update", Path + "/" + f.bcr.ID + "/update", f.viewer, http.StatusForbidden, ""},
		{"editor update form", Path + "/" + f.bcr.ID + "/update", f.editor, http.StatusOK, TemplateUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handlertest.Request(t, f.App, http.MethodGet, tt.target, tt.sid, nil)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, handlertest.Body(t, resp))
			}
		})
	}
}

func TestCreate(t *testing.T) {
	f := setup(t)

	resp := handlertest.Request(t, f.App, http.MethodPost, Path, f.editor, url.Values{
		"title":        {""},
		"description":  {"something"},
		"urgency":      {"Medium"},
		"impact_areas": {"frontend"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, handlertest.Body(t, resp), "Title is required")

	resp = handlertest.Request(t, f.App, http.MethodPost, Path, f.editor, url.Values{
		"title":        {"Retire legacy codes"},
		"description":  {"Retire legacy codes"},
		"urgency":      {"Low"},
		"impact_areas": {"frontend", "reference_data"},
		"target_date":  {"2026-01-31"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var created models.Bcr
	require.NoError(t, f.DB.Preload("ImpactedAreas").Where("title = ?", "Retire legacy codes").First(&created).Error)
	assert.Equal(t, workflow.StatusValue(2, false), created.Status)
	assert.Len(t, created.ImpactedAreas, 2)
	assert.Equal(t, Path+"/"+created.ID, resp.Header.Get("Location"))
	require.NotNil(t, created.TargetDate)
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	target := Path + "/" + f.bcr.ID + "/update"

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
		wantBcr    string
	}{
		{"missing completed", url.Values{"phase": {"2"}}, http.StatusBadRequest, "Completed is required", ""},
		{"phase out of range", url.Values{"phase": {"15"}, "completed": {"no"}}, http.StatusBadRequest,
			"Phase must be at most 14", ""},
		{"in progress", url.Values{"phase": {"2"}, "completed": {"no"}, "comment": {"working"}},
			http.StatusFound, "", workflow.StatusValue(2, false)},
		{"completed moves on", url.Values{"phase": {"2"}, "completed": {"yes"}},
			http.StatusFound, "", workflow.StatusValue(3, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handlertest.Request(t, f.App, http.MethodPost, target, f.editor, tt.form)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantBody != "" {
				assert.Contains(t, handlertest.Body(t, resp), tt.wantBody)
				return
			}

			assert.Equal(t, Path+"/"+f.bcr.ID+"/confirm", resp.Header.Get("Location"))

			var got models.Bcr
			require.NoError(t, f.DB.First(&got, "id = ?", f.bcr.ID).Error)
			assert.Equal(t, tt.wantBcr, got.Status)
		})
	}

	resp := handlertest.Request(t, f.App, http.MethodGet, Path+"/"+f.bcr.ID+"/confirm", f.viewer, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var n int64
	require.NoError(t, f.DB.Model(&models.AuditLog{}).Where("action = ?", "update_bcr_phase").Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestCloseNotesAndAssign(t *testing.T) {
	f := setup(t)
	base := Path + "/" + f.bcr.ID

	resp := handlertest.Request(t, f.App, http.MethodPost, base+"/notes", f.editor, url.Values{"note": {"Chased the owner"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var assignee models.User
	require.NoError(t, f.DB.Where("username = ?", "viewer").First(&assignee).Error)

	resp = handlertest.Request(t, f.App, http.MethodPost, base+"/assign", f.editor,
		url.Values{"assignee_id": {"999"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = handlertest.Request(t, f.App, http.MethodPost, base+"/assign", f.editor,
		url.Values{"assignee_id": {strconv.FormatUint(assignee.ID, 10)}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = handlertest.Request(t, f.App, http.MethodGet, base+"/warning", f.editor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, TemplateWarning, handlertest.Body(t, resp))

	resp = handlertest.Request(t, f.App, http.MethodPost, base+"/close", f.editor,
		url.Values{"outcome": {"reject"}, "comment": {"Out of scope"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var got models.Bcr
	require.NoError(t, f.DB.First(&got, "id = ?", f.bcr.ID).Error)
	assert.Equal(t, models.BcrStatusRejected, got.Status)
	assert.Contains(t, got.Notes, "editor: Chased the owner")
	require.NotNil(t, got.AssignedToID)
	assert.Equal(t, assignee.ID, *got.AssignedToID)
	assert.NotNil(t, got.AssignedAt)

	// closed BCRs cannot move through the workflow any more
	resp = handlertest.Request(t, f.App, http.MethodPost, base+"/update", f.editor,
		url.Values{"phase": {"3"}, "completed": {"no"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, handlertest.Body(t, resp), "Bcr is closed")
}

func TestAssignRelease(t *testing.T) {
	f := setup(t)
	base := Path + "/" + f.bcr.ID

	ay := models.AcademicYear{
		StartDate: time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC),
		Name:      "25/26", Code: "AY25/26", FullName: "2025/2026", Status: models.YearCurrent,
	}
	require.NoError(t, f.DB.Create(&ay).Error)

	planned := models.Release{AcademicYearID: ay.ID, ReleaseCode: "25/26-AH-01", ReleaseType: models.ReleaseAdhoc,
		Name: "Hotfix", Status: models.ReleasePlanned, GoLiveDate: time.Date(2025, time.October, 8, 0, 0, 0, 0, time.UTC)}
	cancelled := models.Release{AcademicYearID: ay.ID, ReleaseCode: "25/26-AH-02", ReleaseType: models.ReleaseAdhoc,
		Name: "Dropped", Status: models.ReleaseCancelled, GoLiveDate: time.Date(2025, time.October, 9, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, f.DB.Create(&planned).Error)
	require.NoError(t, f.DB.Create(&cancelled).Error)

	plannedID := strconv.FormatUint(planned.ID, 10)

	tests := []struct {
		name        string
		sid         string
		form        url.Values
		wantStatus  int
		wantRelease *uint64
	}{
		{"viewer cannot schedule", f.viewer, url.Values{"release_id": {plannedID}}, http.StatusForbidden, nil},
		{"not a number", f.editor, url.Values{"release_id": {"soon"}}, http.StatusBadRequest, nil},
		{"cancelled release", f.editor, url.Values{"release_id": {strconv.FormatUint(cancelled.ID, 10)}}, http.StatusFound, nil},
		{"planned release", f.editor, url.Values{"release_id": {plannedID}, "comment": {"hotfix"}}, http.StatusFound, &planned.ID},
		{"unschedule", f.editor, url.Values{"release_id": {""}}, http.StatusFound, nil},
		{"schedule again", f.editor, url.Values{"release_id": {plannedID}}, http.StatusFound, &planned.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handlertest.Request(t, f.App, http.MethodPost, base+"/release", tt.sid, tt.form)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			var got models.Bcr
			require.NoError(t, f.DB.First(&got, "id = ?", f.bcr.ID).Error)
			assert.Equal(t, tt.wantRelease, got.ReleaseID)
		})
	}

	resp := handlertest.Request(t, f.App, http.MethodGet, base, f.editor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []models.WorkflowActivity
	require.NoError(t, f.DB.Where("bcr_id = ? AND action = ?", f.bcr.ID, workflow.ActionRelease).Find(&history).Error)
	assert.Len(t, history, 3)

	var audits int64
	require.NoError(t, f.DB.Model(&models.AuditLog{}).Where("action = ?", "assign_bcr_release").Count(&audits).Error)
	assert.Equal(t, int64(3), audits)
}
