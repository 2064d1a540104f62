package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

func newUI(t *testing.T) (*BoardUI, *dashboard.Controller) {
	t.Helper()
	ctrl, _ := newTestController(t)
	ui, err := NewBoardUI(ctrl, logging.Discard())
	require.NoError(t, err)
	return ui, ctrl
}

// datastarPost sends an action the way the browser does: every signal in a
// JSON body.
func datastarPost(t *testing.T, h http.Handler, path, signals string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(signals))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Datastar-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func datastarGet(t *testing.T, h http.Handler, path, signals string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path+"?datastar="+url.QueryEscape(signals), nil)
	req.Header.Set("Datastar-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertBoardPatch(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	body := rec.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "selector #board")
	return body
}

func TestPageRendersBoard(t *testing.T) {
	ui, _ := newUI(t)

	rec := httptest.NewRecorder()
	ui.Page(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, DatastarScriptURL)
	assert.Contains(t, body, `id="board"`)
	assert.Contains(t, body, "ANA PEREZ")
	assert.Contains(t, body, "Third Floor")
	assert.Contains(t, body, "2 of 2 records")
	assert.Contains(t, body, "&#34;specialty&#34;:&#34;all&#34;")
}

func TestBoardAppliesFilterSignals(t *testing.T) {
	ui, ctrl := newUI(t)
	routes := ui.Routes()

	body := assertBoardPatch(t, datastarGet(t, routes, "/board", `{"specialty":"Neurology","page":1}`))
	assert.Contains(t, body, "LUIS DIAZ")
	assert.NotContains(t, body, "ANA PEREZ")
	assert.Equal(t, "Neurology", ctrl.View().Filters.Specialty)

	body = assertBoardPatch(t, datastarGet(t, routes, "/board", `{"specialty":"all","building":"all","floor":"all","type":"all","search":"","page":1}`))
	assert.Contains(t, body, "ANA PEREZ")
	assert.False(t, ctrl.View().FiltersActive)
}

func TestBoardKeepsFiltersWhenOnlyPageChanges(t *testing.T) {
	ui, ctrl := newUI(t)
	routes := ui.Routes()

	assertBoardPatch(t, datastarGet(t, routes, "/board", `{"page":2}`))
	assert.Equal(t, 2, ctrl.View().Page)
}

func TestRecordActionsPatchBoard(t *testing.T) {
	ui, ctrl := newUI(t)
	routes := ui.Routes()

	body := assertBoardPatch(t, datastarPost(t, routes, "/records/42-5/edit", `{}`))
	assert.Contains(t, body, `class="editing"`)
	assert.Equal(t, "42-5", ctrl.View().EditingID)

	assertBoardPatch(t, datastarPost(t, routes, "/records/42-5/field", `{"field":"end","value":"09:30"}`))
	rec, ok := ctrl.Record("42-5")
	require.True(t, ok)
	assert.Equal(t, "09:30", rec.End)

	body = assertBoardPatch(t, datastarPost(t, routes, "/records/42-5/save", `{}`))
	assert.Contains(t, body, "Agenda saved.")
	assert.Empty(t, ctrl.View().EditingID)

	assertBoardPatch(t, datastarPost(t, routes, "/alert/close", `{}`))
	assert.False(t, ctrl.Alert().Open)
}

func TestAddBlankShowsEditableDraft(t *testing.T) {
	ui, ctrl := newUI(t)
	routes := ui.Routes()

	body := assertBoardPatch(t, datastarPost(t, routes, "/records", `{}`))
	view := ctrl.View()
	require.NotEmpty(t, view.EditingID)
	assert.Equal(t, view.EditingID, view.Rows[0].ID)
	assert.Contains(t, body, `<option value="Ground"`, "floors of the default building are offered")

	body = assertBoardPatch(t, datastarPost(t, routes, "/records/"+view.EditingID+"/save", `{}`))
	assert.Contains(t, body, "Please complete all required fields.")

	assertBoardPatch(t, datastarPost(t, routes, "/records/"+view.EditingID+"/cancel", `{}`))
	assert.Len(t, ctrl.View().Rows, 2)
}

func TestUnknownActionIs404(t *testing.T) {
	ui, _ := newUI(t)

	rec := datastarPost(t, ui.Routes(), "/records/42-5/archive", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
