package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/internal/export"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps controller errors onto HTTP status codes and the message
// shown to the caller.
func errorStatus(err error) (int, string) {
	var verr *agenda.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, verr.Message
	}
	var cerr *catalog.Error
	if errors.As(err, &cerr) {
		if msg := catalog.Message(err); msg != "" {
			return http.StatusBadGateway, msg
		}
		return http.StatusBadGateway, "backend request failed"
	}
	switch {
	case errors.Is(err, agenda.ErrRecordNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, agenda.ErrFiltersActive), errors.Is(err, agenda.ErrNotEditing):
		return http.StatusConflict, err.Error()
	case errors.Is(err, agenda.ErrUnknownField), errors.Is(err, agenda.ErrUnknownFilter):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, dashboard.ErrDisconnected):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, export.ErrNothingToExport):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	jsonError(w, msg, status)
}
