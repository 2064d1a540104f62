package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/internal/export"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AgendaHandler exposes the dashboard controller as a JSON API.
type AgendaHandler struct {
	ctrl   *dashboard.Controller
	logger *logging.Logger
	now    func() time.Time
}

// NewAgendaHandler creates a new agenda API handler.
func NewAgendaHandler(ctrl *dashboard.Controller, logger *logging.Logger) *AgendaHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AgendaHandler{
		ctrl:   ctrl,
		logger: logger,
		now:    time.Now,
	}
}

// Routes returns the API routes, meant to be mounted under /api.
func (h *AgendaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Post("/retry", h.Retry)
	r.Get("/debug", h.GetDebug)
	r.Get("/options", h.GetOptions)
	r.Get("/floors", h.GetFloors)
	r.Get("/rooms", h.GetRooms)
	r.Get("/doctors", h.GetDoctors)
	r.Get("/doctors/search", h.SearchDoctors)
	r.Get("/backend", h.GetBackendReport)
	r.Get("/export.xlsx", h.ExportStaff)

	r.Put("/filters", h.PutFilters)
	r.Delete("/filters", h.ClearFilters)
	r.Put("/page", h.PutPage)
	r.Post("/alert/close", h.CloseAlert)
	r.Delete("/error", h.ClearError)

	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.ListRecords)
		r.Post("/", h.AddBlank)
		r.Post("/from-doctor/{doctorID}", h.AddFromDoctor)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetRecord)
			r.Patch("/", h.PatchRecord)
			r.Delete("/", h.DeleteRecord)
			r.Post("/edit", h.BeginEdit)
			r.Post("/cancel", h.Cancel)
			r.Post("/save", h.Save)
			r.Post("/duplicate", h.Duplicate)
		})
	})
	return r
}

// HealthCheck reports service liveness. The backend status is informative
// only; a disconnected backend does not fail the check.
func (h *AgendaHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": h.ctrl.Status(),
	})
}

// StatusResponse is the connection and loading summary.
type StatusResponse struct {
	Status  dashboard.Status       `json:"status"`
	Loading dashboard.LoadingState `json:"loading"`
	Error   string                 `json:"error,omitempty"`
	Alert   dashboard.Alert        `json:"alert"`
	BaseURL string                 `json:"base_url"`
}

func (h *AgendaHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	v := h.ctrl.View()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  v.Status,
		Loading: v.Loading,
		Error:   v.Error,
		Alert:   v.Alert,
		BaseURL: v.BaseURL,
	})
}

func (h *AgendaHandler) Retry(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Retry(r.Context()); err != nil {
		h.logger.Warn("agenda api: retry failed", "error", err)
		if errors.Is(err, dashboard.ErrDisconnected) {
			msg := h.ctrl.LastError()
			if msg == "" {
				msg = err.Error()
			}
			jsonError(w, msg, http.StatusServiceUnavailable)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View())
}

func (h *AgendaHandler) GetDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Debug())
}

func (h *AgendaHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Options())
}

// GetFloors lists a building's floors, by code or description. Without a
// building it returns the cached floors of the default building.
func (h *AgendaHandler) GetFloors(w http.ResponseWriter, r *http.Request) {
	building := strings.TrimSpace(r.URL.Query().Get("building"))
	if building == "" {
		writeJSON(w, http.StatusOK, map[string]any{"floors": h.ctrl.DefaultFloors()})
		return
	}
	floors, err := h.ctrl.Floors(r.Context(), building)
	if err != nil {
		h.logger.Error("agenda api: list floors failed", "building", building, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"floors": floors})
}

func (h *AgendaHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rooms := h.ctrl.RoomsFor(q.Get("building"), q.Get("floor"))
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (h *AgendaHandler) GetDoctors(w http.ResponseWriter, r *http.Request) {
	doctors := h.ctrl.DoctorsForSpecialty(r.URL.Query().Get("specialty"))
	if doctors == nil {
		doctors = []catalog.Doctor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

// SearchDoctors queries the backend directly by name or specialty, unlike
// GetDoctors which filters the loaded catalog.
func (h *AgendaHandler) SearchDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doctors, err := h.ctrl.SearchDoctors(r.Context(), q.Get("name"), q.Get("specialty"))
	if err != nil {
		h.logger.Warn("agenda api: search doctors failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

func (h *AgendaHandler) GetBackendReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.ctrl.BackendReport(r.Context())
	if err != nil {
		h.logger.Error("agenda api: backend report failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRecords returns the current page. With all=true it returns every
// record matching the filters instead.
func (h *AgendaHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		records := h.ctrl.Filtered()
		writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View())
}

func (h *AgendaHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ctrl.Record(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, agenda.ErrRecordNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AgendaHandler) PutFilters(w http.ResponseWriter, r *http.Request) {
	var f agenda.Filters
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	h.ctrl.SetFilters(f)
	writeJSON(w, http.StatusOK, h.ctrl.View())
}

func (h *AgendaHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ClearFilters()
	writeJSON(w, http.StatusOK, h.ctrl.View())
}

type pageRequest struct {
	Page int `json:"page"`
}

func (h *AgendaHandler) PutPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Page < 1 {
		jsonError(w, "page must be at least 1", http.StatusBadRequest)
		return
	}
	h.ctrl.SetPage(req.Page)
	writeJSON(w, http.StatusOK, h.ctrl.View())
}

func (h *AgendaHandler) CloseAlert(w http.ResponseWriter, r *http.Request) {
	h.ctrl.CloseAlert()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgendaHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgendaHandler) AddBlank(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ctrl.AddBlank()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *AgendaHandler) AddFromDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.Atoi(chi.URLParam(r, "doctorID"))
	if err != nil {
		jsonError(w, "invalid doctor id", http.StatusBadRequest)
		return
	}
	rec, err := h.ctrl.AddFromDoctor(r.Context(), doctorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *AgendaHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ctrl.BeginEdit(id); err != nil {
		writeError(w, err)
		return
	}
	h.writeRecord(w, id)
}

// FieldChange is the body of PATCH /records/{id}.
type FieldChange struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// PatchRecord applies one field change to the record being edited.
func (h *AgendaHandler) PatchRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var change FieldChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := applyFieldChange(r, h.ctrl, id, change); err != nil {
		writeError(w, err)
		return
	}
	h.writeRecord(w, id)
}

func (h *AgendaHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Cancel(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgendaHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Save(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View())
}

func (h *AgendaHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ctrl.Duplicate(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *AgendaHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportStaff downloads the filtered records as a workbook.
func (h *AgendaHandler) ExportStaff(w http.ResponseWriter, r *http.Request) {
	buf, filename, err := export.StaffWorkbook(h.ctrl.Filtered(), h.now())
	if err != nil {
		if !errors.Is(err, export.ErrNothingToExport) {
			h.logger.Error("agenda api: export failed", "error", err)
		}
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *AgendaHandler) writeRecord(w http.ResponseWriter, id string) {
	rec, ok := h.ctrl.Record(id)
	if !ok {
		writeError(w, agenda.ErrRecordNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Selection pseudo-fields. They go through the controller's select helpers,
// which fill related fields from loaded data.
const (
	selectSpecialty = "specialty"
	selectDoctor    = "doctor"
	selectRoom      = "room"
)

// applyFieldChange routes a field change. "specialty" clears the doctor,
// "doctor" and "room" take an id and copy the entity's details; every other
// field is written as-is.
func applyFieldChange(r *http.Request, ctrl *dashboard.Controller, id string, change FieldChange) error {
	field := strings.TrimSpace(change.Field)
	switch field {
	case selectSpecialty:
		return ctrl.SelectSpecialty(id, change.Value)
	case selectDoctor, selectRoom:
		n, err := strconv.Atoi(strings.TrimSpace(change.Value))
		if err != nil {
			return &agenda.ValidationError{Field: field, Message: fmt.Sprintf("%s must be a number", field)}
		}
		if field == selectDoctor {
			return ctrl.SelectDoctor(id, n)
		}
		return ctrl.SelectRoom(id, n)
	default:
		return ctrl.ChangeField(r.Context(), id, agenda.Field(field), change.Value)
	}
}
