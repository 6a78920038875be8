package funding

import (
	"encoding/csv"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/handler/handlertest"
)

func TestFundingLifecycle(t *testing.T) {
	env := handlertest.Setup(t)

	var s Service
	s.Init(env.App, env.Config, env.DB, env.Auth)

	editor := handlertest.Login(t, handlertest.CreateUser(t, env.DB, "editor", models.RoleEditor))
	viewer := handlertest.Login(t, handlertest.CreateUser(t, env.DB, "viewer", models.RoleViewer))

	tests := []struct {
		name       string
		sid        string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name:       "viewer cannot create",
			sid:        viewer,
			form:       url.Values{"route": {"Apprenticeship"}, "year": {"2025"}, "amount": {"10"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "bad amount",
			sid:        editor,
			form:       url.Values{"route": {"Apprenticeship"}, "year": {"2025"}, "amount": {"ten"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Amount must be a number of pounds, e.g. 1250.00",
		},
		{
			name:       "missing route",
			sid:        editor,
			form:       url.Values{"year": {"2025"}, "amount": {"10"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Route is required",
		},
		{
			name:       "created",
			sid:        editor,
			form:       url.Values{"route": {"Apprenticeship"}, "year": {"2025"}, "amount": {"£1,250.5"}},
			wantStatus: http.StatusFound,
		},
		{
			name:       "duplicate route and year",
			sid:        editor,
			form:       url.Values{"route": {"Apprenticeship"}, "year": {"2025"}, "amount": {"1"}},
			wantStatus: http.StatusConflict,
			wantBody:   "A record with this information already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handlertest.Request(t, env.App, http.MethodPost, RequirementsPath, tt.sid, tt.form)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, handlertest.Body(t, resp))
			}
		})
	}

	var f models.Funding
	require.NoError(t, env.DB.First(&f).Error)
	assert.Equal(t, int64(125050), f.Amount)

	base := RequirementsPath + "/" + strconv.FormatUint(f.ID, 10)

	resp := handlertest.Request(t, env.App, http.MethodPost, base, editor,
		url.Values{"route": {"Apprenticeship"}, "year": {"2025"}, "amount": {"2000"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = handlertest.Request(t, env.App, http.MethodGet, ExportPath+"?route=all", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "funding-requirements-")

	records, err := csv.NewReader(strings.NewReader(handlertest.Body(t, resp))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Apprenticeship", "2025", "2000.00"}, records[1][:3])

	resp = handlertest.Request(t, env.App, http.MethodPost, base+"/delete", editor, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var history []models.FundingHistory
	require.NoError(t, env.DB.Order("id").Find(&history).Error)
	require.Len(t, history, 3)
	assert.Equal(t, models.FundingCreated, history[0].ChangeType)
	assert.Equal(t, models.FundingUpdated, history[1].ChangeType)
	assert.Equal(t, models.FundingDeleted, history[2].ChangeType)

	resp = handlertest.Request(t, env.App, http.MethodGet, HistoryPath, viewer, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = handlertest.Request(t, env.App, http.MethodGet, base+"/edit", editor, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
