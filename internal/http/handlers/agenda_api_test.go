package handlers

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard/dashboardtest"
	"github.com/wolfman30/agenda-dashboard/internal/export"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

func newAPI(t *testing.T) (http.Handler, *dashboard.Controller, *dashboardtest.Backend) {
	t.Helper()
	ctrl, backend := newTestController(t)
	h := NewAgendaHandler(ctrl, logging.Discard())
	h.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	return h.Routes(), ctrl, backend
}

func TestHealthCheck(t *testing.T) {
	ctrl, _ := newTestController(t)
	h := NewAgendaHandler(ctrl, logging.Discard())

	rec := doRequest(t, http.HandlerFunc(h.HealthCheck), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["backend"])
}

func TestGetStatusAndDebug(t *testing.T) {
	api, _, backend := newAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[StatusResponse](t, rec)
	assert.Equal(t, dashboard.StatusConnected, status.Status)
	assert.Equal(t, dashboard.LoadingSuccess, status.Loading)
	assert.Equal(t, backend.URL(), status.BaseURL)

	rec = doRequest(t, api, http.MethodGet, "/debug", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	debug := decodeBody[dashboard.Debug](t, rec)
	assert.Equal(t, 2, debug.Doctors)
	assert.Equal(t, 2, debug.Records)
	assert.Equal(t, 1, debug.DefaultFloors)
	assert.NotNil(t, debug.LastLoadedAt)
}

func TestListRecords(t *testing.T) {
	api, _, _ := newAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[dashboard.View](t, rec)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "42-5", view.Rows[0].ID)
	assert.Equal(t, "Third Floor", view.Rows[0].Floor)
	assert.Equal(t, 2, view.TotalCount)

	rec = doRequest(t, api, http.MethodGet, "/records?all=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[struct {
		Records []agenda.Record `json:"records"`
		Count   int             `json:"count"`
	}](t, rec)
	assert.Equal(t, 2, all.Count)

	rec = doRequest(t, api, http.MethodGet, "/records/43-6", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "LUIS DIAZ", decodeBody[agenda.Record](t, rec).DoctorName)

	rec = doRequest(t, api, http.MethodGet, "/records/99-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditPatchAndSave(t *testing.T) {
	api, ctrl, backend := newAPI(t)

	rec := doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "start", Value: "07:30"})
	assert.Equal(t, http.StatusConflict, rec.Code, "editing is required first")

	rec = doRequest(t, api, http.MethodPost, "/records/42-5/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "start", Value: "07:30"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "07:30", decodeBody[agenda.Record](t, rec).Start)

	rec = doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "color", Value: "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, api, http.MethodPost, "/records/42-5/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeBody[dashboard.View](t, rec)
	assert.Empty(t, view.EditingID)
	assert.Equal(t, "Agenda saved.", view.Alert.Message)

	updated, ok := backend.Updated(42)
	require.True(t, ok)
	assert.Equal(t, "07:30:00", updated["hora_inicio"])

	saved, ok := ctrl.Record("42-5")
	require.True(t, ok)
	assert.Equal(t, "07:30", saved.Start)
}

func TestPatchSelectsDoctorAndRoom(t *testing.T) {
	api, _, _ := newAPI(t)

	require.Equal(t, http.StatusOK, doRequest(t, api, http.MethodPost, "/records/42-5/edit", nil).Code)

	rec := doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "specialty", Value: "Neurology"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[agenda.Record](t, rec)
	assert.Equal(t, "NEUROLOGY", got.Specialty)
	assert.Zero(t, got.DoctorID)

	rec = doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "doctor", Value: "6"})
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeBody[agenda.Record](t, rec)
	assert.Equal(t, 6, got.DoctorID)
	assert.Equal(t, 4, got.SchedulingItemID)

	rec = doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "room", Value: "20"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A-20", decodeBody[agenda.Record](t, rec).RoomDescription)

	rec = doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "doctor", Value: "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, api, http.MethodPatch, "/records/42-5", FieldChange{Field: "room", Value: "999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveValidationReturns422(t *testing.T) {
	api, _, backend := newAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/records", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	draft := decodeBody[agenda.Record](t, rec)
	assert.True(t, draft.IsDraft())
	assert.Equal(t, "Annex", draft.Building)

	rec = doRequest(t, api, http.MethodPost, "/records/"+draft.ID+"/save", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Please complete all required fields.", decodeBody[map[string]string](t, rec)["error"])
	assert.Empty(t, backend.Created())

	rec = doRequest(t, api, http.MethodPost, "/records/"+draft.ID+"/cancel", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, api, http.MethodGet, "/records/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveBackendFailureReturns502(t *testing.T) {
	api, ctrl, backend := newAPI(t)
	backend.Fail("PUT /api/agnd-agenda/42", http.StatusInternalServerError, 1)

	require.Equal(t, http.StatusOK, doRequest(t, api, http.MethodPost, "/records/42-5/edit", nil).Code)
	rec := doRequest(t, api, http.MethodPost, "/records/42-5/save", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "backend unavailable", decodeBody[map[string]string](t, rec)["error"])
	assert.Equal(t, "42-5", ctrl.View().EditingID)

	rec = doRequest(t, api, http.MethodDelete, "/error", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, ctrl.LastError())
}

func TestSaveSucceedsWhenReloadFails(t *testing.T) {
	api, ctrl, backend := newAPI(t)

	require.Equal(t, http.StatusOK, doRequest(t, api, http.MethodPost, "/records/42-5/edit", nil).Code)
	backend.Fail("GET /api/agnd-agenda", http.StatusInternalServerError, 1)
	rec := doRequest(t, api, http.MethodPost, "/records/42-5/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decodeBody[dashboard.View](t, rec)
	assert.Equal(t, "Agenda saved.", view.Alert.Message)
	assert.Equal(t, "backend unavailable", view.Error)
	_, updated := backend.Updated(42)
	assert.True(t, updated)
	assert.Empty(t, ctrl.View().EditingID)
}

func TestFiltersPagingAndAdd(t *testing.T) {
	api, _, _ := newAPI(t)

	rec := doRequest(t, api, http.MethodPut, "/filters", agenda.Filters{Specialty: "cardiology"})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[dashboard.View](t, rec)
	assert.True(t, view.FiltersActive)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "42-5", view.Rows[0].ID)

	rec = doRequest(t, api, http.MethodPost, "/records", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doRequest(t, api, http.MethodPost, "/records/from-doctor/6", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, api, http.MethodDelete, "/filters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[dashboard.View](t, rec).FiltersActive)

	rec = doRequest(t, api, http.MethodPut, "/page", map[string]int{"page": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, api, http.MethodPut, "/page", map[string]int{"page": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeBody[dashboard.View](t, rec)
	assert.Equal(t, 3, view.Page)
	assert.Empty(t, view.Rows)

	rec = doRequest(t, api, http.MethodPost, "/alert/close", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAddFromDoctor(t *testing.T) {
	api, _, _ := newAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/records/from-doctor/6", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	draft := decodeBody[agenda.Record](t, rec)
	assert.Equal(t, "LUIS DIAZ", draft.DoctorName)
	assert.Equal(t, "Neurology", draft.Specialty)

	rec = doRequest(t, api, http.MethodPost, "/records/from-doctor/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, api, http.MethodPost, "/records/"+draft.ID+"/cancel", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, api, http.MethodPost, "/records/from-doctor/77", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicateAndDelete(t *testing.T) {
	api, _, backend := newAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/records/42-5/duplicate", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	dup := decodeBody[agenda.Record](t, rec)
	assert.True(t, dup.IsDraft())
	assert.Equal(t, "ANA PEREZ", dup.DoctorName)

	rec = doRequest(t, api, http.MethodDelete, "/records/"+dup.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, backend.Deleted())

	rec = doRequest(t, api, http.MethodDelete, "/records/43-6", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int{43}, backend.Deleted())

	rec = doRequest(t, api, http.MethodGet, "/records", nil)
	view := decodeBody[dashboard.View](t, rec)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "42-5", view.Rows[0].ID)
}

func TestLookups(t *testing.T) {
	api, _, _ := newAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/floors?building=Main%20Tower", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	floors := decodeBody[map[string][]catalog.Floor](t, rec)["floors"]
	require.Len(t, floors, 1)
	assert.Equal(t, "Third Floor", floors[0].Description)

	rec = doRequest(t, api, http.MethodGet, "/floors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	floors = decodeBody[map[string][]catalog.Floor](t, rec)["floors"]
	require.Len(t, floors, 1)
	assert.Equal(t, "Ground", floors[0].Description)

	rec = doRequest(t, api, http.MethodGet, "/floors?building=Nowhere", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[map[string][]catalog.Floor](t, rec)["floors"])

	rec = doRequest(t, api, http.MethodGet, "/doctors?specialty=Cardiology", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doctors := decodeBody[map[string][]catalog.Doctor](t, rec)["doctors"]
	require.Len(t, doctors, 1)
	assert.Equal(t, 5, doctors[0].ID)

	rec = doRequest(t, api, http.MethodGet, "/rooms?building=Annex", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decodeBody[map[string][]catalog.Room](t, rec)["rooms"]
	require.Len(t, rooms, 1)
	assert.Equal(t, 20, rooms[0].Code)

	rec = doRequest(t, api, http.MethodGet, "/options", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decodeBody[dashboard.Options](t, rec)
	assert.Len(t, opts.Buildings, 2)
	assert.Len(t, opts.Days, 7)
}

func TestExportStaff(t *testing.T) {
	api, _, _ := newAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="staff_agenda_20261017.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rec = doRequest(t, api, http.MethodPut, "/filters", agenda.Filters{Search: "nobody"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, api, http.MethodGet, "/export.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryWhenBackendDown(t *testing.T) {
	api, _, backend := newAPI(t)
	backend.Fail("GET /health", http.StatusServiceUnavailable, 0)

	rec := doRequest(t, api, http.MethodPost, "/retry", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "Cannot connect to the server")
}

func TestBackendReportAndDoctorSearch(t *testing.T) {
	api, _, backend := newAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/backend", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[dashboard.BackendReport](t, rec)
	assert.Len(t, report.Weekdays, 5)
	assert.EqualValues(t, 2, report.AgendaStats["total"])

	rec = doRequest(t, api, http.MethodGet, "/doctors/search?name=ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[map[string][]catalog.Doctor](t, rec)
	require.Len(t, found["doctors"], 1)
	assert.Equal(t, "ANA PEREZ", found["doctors"][0].Name)

	rec = doRequest(t, api, http.MethodGet, "/doctors/search", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	backend.Fail("GET /api/medicos/nombre/ana", http.StatusInternalServerError, 1)
	rec = doRequest(t, api, http.MethodGet, "/doctors/search?name=ana", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
