package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

// DatastarScriptURL is the client bundle the page loads.
const DatastarScriptURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

const boardSelector = "#board"

//go:embed templates/*.html
var templatesFS embed.FS

// BoardUI serves the HTML board. Actions are posted by datastar and answered
// with an SSE patch of #board.
type BoardUI struct {
	ctrl      *dashboard.Controller
	logger    *logging.Logger
	tmpl      *template.Template
	scriptURL string
}

// NewBoardUI parses the embedded templates.
func NewBoardUI(ctrl *dashboard.Controller, logger *logging.Logger) (*BoardUI, error) {
	if logger == nil {
		logger = logging.Default()
	}
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"add":     func(a, b int) int { return a + b },
		"sub":     func(a, b int) int { return a - b },
		"same":    func(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) },
		"editRow": newEditRow,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("handlers: parse templates: %w", err)
	}
	return &BoardUI{
		ctrl:      ctrl,
		logger:    logger,
		tmpl:      tmpl,
		scriptURL: DatastarScriptURL,
	}, nil
}

// Routes returns the datastar endpoints, meant to be mounted under /ui.
func (u *BoardUI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/board", u.Board)
	r.Post("/records", u.AddBlank)
	r.Post("/records/{id}/field", u.ChangeField)
	r.Post("/records/{id}/{action}", u.RecordAction)
	r.Post("/alert/close", u.CloseAlert)
	r.Post("/error/clear", u.ClearError)
	r.Post("/retry", u.Retry)
	return r
}

// boardSignals are the client-side filter and page state.
type boardSignals struct {
	Specialty string `json:"specialty"`
	Building  string `json:"building"`
	Floor     string `json:"floor"`
	Type      string `json:"type"`
	Search    string `json:"search"`
	Page      int    `json:"page"`
}

func signalsFor(v dashboard.View) boardSignals {
	return boardSignals{
		Specialty: v.Filters.Specialty,
		Building:  v.Filters.Building,
		Floor:     v.Filters.Floor,
		Type:      v.Filters.Type,
		Search:    v.Filters.Search,
		Page:      v.Page,
	}.normalized()
}

// normalized spells unset filters as "all" so both sides compare equal.
func (s boardSignals) normalized() boardSignals {
	orAll := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return agenda.AllValue
		}
		return v
	}
	s.Specialty = orAll(s.Specialty)
	s.Building = orAll(s.Building)
	s.Floor = orAll(s.Floor)
	s.Type = orAll(s.Type)
	return s
}

func (s boardSignals) filters() agenda.Filters {
	return agenda.Filters{
		Specialty: s.Specialty,
		Building:  s.Building,
		Floor:     s.Floor,
		Type:      s.Type,
		Search:    s.Search,
	}
}

type fieldSignals struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// pageSignals seeds every signal the page uses.
type pageSignals struct {
	boardSignals
	fieldSignals
}

// editChoices are the dependent option lists of the row being edited.
type editChoices struct {
	Doctors []catalog.Doctor
	Floors  []catalog.Floor
	Rooms   []catalog.Room
}

type boardData struct {
	View    dashboard.View
	Options dashboard.Options
	Edit    editChoices
}

type editRowData struct {
	Row     dashboard.Row
	Options dashboard.Options
	Edit    editChoices
}

func newEditRow(row dashboard.Row, opts dashboard.Options, edit editChoices) editRowData {
	return editRowData{Row: row, Options: opts, Edit: edit}
}

type pageData struct {
	ScriptURL string
	Signals   string
	Options   dashboard.Options
	Board     boardData
}

// Page renders the full HTML shell with the board inlined.
func (u *BoardUI) Page(w http.ResponseWriter, r *http.Request) {
	board := u.boardData()
	signals, err := json.Marshal(pageSignals{boardSignals: signalsFor(board.View)})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var b strings.Builder
	if err := u.tmpl.ExecuteTemplate(&b, "page", pageData{
		ScriptURL: u.scriptURL,
		Signals:   string(signals),
		Options:   board.Options,
		Board:     board,
	}); err != nil {
		u.logger.Error("board ui: render page failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

// Board applies the filter and page signals and patches the board. A filter
// change returns to the first page; otherwise the requested page is shown.
func (u *BoardUI) Board(w http.ResponseWriter, r *http.Request) {
	var sig boardSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sig = sig.normalized()
	current := u.ctrl.View()
	if sig.filters() != signalsFor(current).filters() {
		u.ctrl.SetFilters(sig.filters())
	} else if sig.Page > 0 && sig.Page != current.Page {
		u.ctrl.SetPage(sig.Page)
	}
	u.patch(w, r)
}

func (u *BoardUI) AddBlank(w http.ResponseWriter, r *http.Request) {
	if _, err := u.ctrl.AddBlank(); err != nil {
		u.logActionError("add", "", err)
	}
	u.patch(w, r)
}

func (u *BoardUI) ChangeField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var sig fieldSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := applyFieldChange(r, u.ctrl, id, FieldChange{Field: sig.Field, Value: sig.Value}); err != nil {
		u.logActionError("field", id, err)
	}
	u.patch(w, r)
}

// RecordAction runs edit, cancel, save, duplicate or delete on one record.
func (u *BoardUI) RecordAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	var err error
	switch action {
	case "edit":
		err = u.ctrl.BeginEdit(id)
	case "cancel":
		err = u.ctrl.Cancel(id)
	case "save":
		err = u.ctrl.Save(r.Context(), id)
	case "duplicate":
		if _, err = u.ctrl.Duplicate(id); err == nil {
			u.ctrl.SetPage(1)
		}
	case "delete":
		err = u.ctrl.Delete(r.Context(), id)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		u.logActionError(action, id, err)
	}
	u.patch(w, r)
}

func (u *BoardUI) CloseAlert(w http.ResponseWriter, r *http.Request) {
	u.ctrl.CloseAlert()
	u.patch(w, r)
}

func (u *BoardUI) ClearError(w http.ResponseWriter, r *http.Request) {
	u.ctrl.ClearError()
	u.patch(w, r)
}

func (u *BoardUI) Retry(w http.ResponseWriter, r *http.Request) {
	if err := u.ctrl.Retry(r.Context()); err != nil {
		u.logActionError("retry", "", err)
	}
	u.patch(w, r)
}

// patch renders the board and sends it along with the page signal, which may
// have moved.
func (u *BoardUI) patch(w http.ResponseWriter, r *http.Request) {
	data := u.boardData()
	var b strings.Builder
	if err := u.tmpl.ExecuteTemplate(&b, "board", data); err != nil {
		u.logger.Error("board ui: render board failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElements(b.String(),
		datastar.WithSelector(boardSelector),
		datastar.WithMode(datastar.ElementPatchModeInner),
	); err != nil {
		u.logger.Debug("board ui: patch elements failed", "error", err)
		return
	}
	_ = sse.MarshalAndPatchSignals(map[string]any{"page": data.View.Page})
}

func (u *BoardUI) boardData() boardData {
	data := boardData{
		View:    u.ctrl.View(),
		Options: u.ctrl.Options(),
	}
	if id := data.View.EditingID; id != "" {
		if rec, ok := u.ctrl.Record(id); ok {
			data.Edit = editChoices{
				Doctors: u.ctrl.DoctorsForSpecialty(rec.Specialty),
				Floors:  u.ctrl.FloorsSync(rec.Building),
				Rooms:   u.ctrl.RoomsFor(rec.Building, rec.Floor),
			}
		}
	}
	return data
}

// logActionError logs failures the board already reflects through its alert
// or error banner.
func (u *BoardUI) logActionError(action, id string, err error) {
	var verr *agenda.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, agenda.ErrFiltersActive):
		u.logger.Debug("board ui: action refused", "action", action, "record_id", id, "reason", err.Error())
	default:
		u.logger.Warn("board ui: action failed", "action", action, "record_id", id, "error", err)
	}
}
