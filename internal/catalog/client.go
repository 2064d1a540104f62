package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/agenda-dashboard/internal/observability/metrics"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

var catalogTracer = otel.Tracer("agenda.internal.catalog")

const (
	defaultBaseURL      = "http://localhost:3001"
	defaultTimeout      = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
)

// Config controls how the catalog client behaves.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
	Logger       *logging.Logger
	Metrics      *metrics.CatalogMetrics
}

// Client wraps the scheduling backend's REST endpoints. Every method returns
// a *Error on failure and never panics on malformed bodies.
type Client struct {
	baseURL      string
	timeout      time.Duration
	probeTimeout time.Duration
	httpClient   *http.Client
	logger       *logging.Logger
	metrics      *metrics.CatalogMetrics
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("catalog: invalid base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// deadlines come from per-call contexts
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:      baseURL,
		timeout:      timeout,
		probeTimeout: probeTimeout,
		httpClient:   httpClient,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// APIInfo fetches the backend's self description.
func (c *Client) APIInfo(ctx context.Context) (Stats, error) {
	raw, err := c.invoke(ctx, "api_info", http.MethodGet, "/", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeStats(raw), nil
}

// Health fetches the backend health document.
func (c *Client) Health(ctx context.Context) (Stats, error) {
	raw, err := c.invoke(ctx, "health", http.MethodGet, "/health", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeStats(raw), nil
}

// CheckServerConnection probes /health with the short probe timeout.
func (c *Client) CheckServerConnection(ctx context.Context) bool {
	_, err := c.invoke(ctx, "probe", http.MethodGet, "/health", nil, nil, c.probeTimeout)
	if err != nil {
		c.logger.Warn("catalog: backend probe failed", "base_url", c.baseURL, "error", err)
		return false
	}
	return true
}

// ListDoctors returns every doctor.
func (c *Client) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return c.listDoctors(ctx, "list_doctors", "/api/medicos")
}

// DoctorsBySpecialty returns the doctors the backend associates with a
// specialty description.
func (c *Client) DoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	specialty = strings.TrimSpace(specialty)
	if specialty == "" {
		return nil, &Error{Kind: KindValidation, Op: "doctors_by_specialty", Message: "specialty is required"}
	}
	return c.listDoctors(ctx, "doctors_by_specialty", "/api/medicos/especialidad/"+url.PathEscape(specialty))
}

// DoctorsByName searches doctors by name.
func (c *Client) DoctorsByName(ctx context.Context, name string) ([]Doctor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &Error{Kind: KindValidation, Op: "doctors_by_name", Message: "name is required"}
	}
	return c.listDoctors(ctx, "doctors_by_name", "/api/medicos/nombre/"+url.PathEscape(name))
}

// DoctorByCode returns the doctor for a scheduling item code, or nil when the
// backend returns nothing usable.
func (c *Client) DoctorByCode(ctx context.Context, code string) (*Doctor, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &Error{Kind: KindValidation, Op: "doctor_by_code", Message: "code is required"}
	}
	raw, err := c.invoke(ctx, "doctor_by_code", http.MethodGet, "/api/medicos/item/"+url.PathEscape(code), nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	value := unwrapEnvelope(raw)
	if len(value) > 0 && value[0] == '[' {
		doctors, _, _ := decodeEach(raw, doctorWire.toDoctor)
		if len(doctors) == 0 {
			return nil, nil
		}
		return &doctors[0], nil
	}
	var w doctorWire
	if len(value) == 0 || value[0] != '{' || json.Unmarshal(value, &w) != nil {
		return nil, nil
	}
	d := w.toDoctor()
	return &d, nil
}

// DoctorStats returns backend doctor statistics.
func (c *Client) DoctorStats(ctx context.Context) (Stats, error) {
	raw, err := c.invoke(ctx, "doctor_stats", http.MethodGet, "/api/medicos/estadisticas", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeStats(raw), nil
}

// ListSpecialties returns the specialty catalog. Entries lacking an id or a
// description are dropped.
func (c *Client) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	const op = "list_specialties"
	raw, err := c.invoke(ctx, op, http.MethodGet, "/api/medicos/especialidades", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	all, skipped, ok := decodeEach(raw, func(w specialtyWire) Specialty {
		return Specialty{ID: int(w.ID), Description: strings.TrimSpace(w.Description), Type: w.Type, Icon: w.Icon}
	})
	c.warnMalformed(op, ok, skipped)
	out := make([]Specialty, 0, len(all))
	for _, s := range all {
		if s.ID == 0 || s.Description == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ListAgendaSlots returns agenda slots, optionally filtered.
func (c *Client) ListAgendaSlots(ctx context.Context, filter AgendaFilter) ([]AgendaSlot, error) {
	const op = "list_agenda"
	query := url.Values{}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.StartDate != "" {
		query.Set("fecha_inicio", filter.StartDate)
	}
	if filter.EndDate != "" {
		query.Set("fecha_fin", filter.EndDate)
	}
	if filter.Status != "" {
		query.Set("estado", filter.Status)
	}
	if filter.ProviderID != "" {
		query.Set("codigo_prestador", filter.ProviderID)
	}
	raw, err := c.invoke(ctx, op, http.MethodGet, "/api/agnd-agenda", query, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	slots, skipped, ok := decodeEach(raw, agendaWire.toSlot)
	c.warnMalformed(op, ok, skipped)
	if missing := countMissingIDs(slots); missing > 0 {
		c.logger.Warn("catalog: agenda slots without id will not be shown", "operation", op, "count", missing)
	}
	return slots, nil
}

// GetAgendaSlot fetches one slot; nil when the body carries no slot.
func (c *Client) GetAgendaSlot(ctx context.Context, id int) (*AgendaSlot, error) {
	if id <= 0 {
		return nil, &Error{Kind: KindValidation, Op: "get_agenda", Message: "agenda id is required"}
	}
	raw, err := c.invoke(ctx, "get_agenda", http.MethodGet, "/api/agnd-agenda/"+strconv.Itoa(id), nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeSlot(raw), nil
}

// CreateAgendaSlot posts a new slot and returns what the backend echoes back
// (nil if it echoes nothing decodable).
func (c *Client) CreateAgendaSlot(ctx context.Context, payload AgendaPayload) (*AgendaSlot, error) {
	payload.ID = 0
	raw, err := c.invoke(ctx, "create_agenda", http.MethodPost, "/api/agnd-agenda", nil, payload, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeSlot(raw), nil
}

// UpdateAgendaSlot replaces an existing slot.
func (c *Client) UpdateAgendaSlot(ctx context.Context, id int, payload AgendaPayload) (*AgendaSlot, error) {
	if id <= 0 {
		return nil, &Error{Kind: KindValidation, Op: "update_agenda", Message: "agenda id is required"}
	}
	payload.ID = id
	raw, err := c.invoke(ctx, "update_agenda", http.MethodPut, "/api/agnd-agenda/"+strconv.Itoa(id), nil, payload, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeSlot(raw), nil
}

// CancelAgendaSlot marks a slot as cancelled without deleting it.
func (c *Client) CancelAgendaSlot(ctx context.Context, id int) error {
	if id <= 0 {
		return &Error{Kind: KindValidation, Op: "cancel_agenda", Message: "agenda id is required"}
	}
	_, err := c.invoke(ctx, "cancel_agenda", http.MethodPut, "/api/agnd-agenda/"+strconv.Itoa(id)+"/cancelar", nil, nil, c.timeout)
	return err
}

// DeleteAgendaSlot removes a slot.
func (c *Client) DeleteAgendaSlot(ctx context.Context, id int) error {
	if id <= 0 {
		return &Error{Kind: KindValidation, Op: "delete_agenda", Message: "agenda id is required"}
	}
	_, err := c.invoke(ctx, "delete_agenda", http.MethodDelete, "/api/agnd-agenda/"+strconv.Itoa(id), nil, nil, c.timeout)
	return err
}

// AgendaStats returns backend agenda statistics.
func (c *Client) AgendaStats(ctx context.Context) (Stats, error) {
	raw, err := c.invoke(ctx, "agenda_stats", http.MethodGet, "/api/agnd-agenda/estadisticas", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeStats(raw), nil
}

// ListRooms returns consulting rooms with legacy column names normalized.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	const op = "list_rooms"
	raw, err := c.invoke(ctx, op, http.MethodGet, "/api/catalogos/consultorios", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	rooms, skipped, ok := decodeEach(raw, normalizeRoom)
	c.warnMalformed(op, ok, skipped)
	return rooms, nil
}

// ListWeekdays returns the weekday catalog.
func (c *Client) ListWeekdays(ctx context.Context) ([]Weekday, error) {
	const op = "list_weekdays"
	raw, err := c.invoke(ctx, op, http.MethodGet, "/api/catalogos/dias", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	days, skipped, ok := decodeEach(raw, normalizeWeekday)
	c.warnMalformed(op, ok, skipped)
	return days, nil
}

// ListBuildings returns every building.
func (c *Client) ListBuildings(ctx context.Context) ([]Building, error) {
	const op = "list_buildings"
	raw, err := c.invoke(ctx, op, http.MethodGet, "/api/catalogos/edificios", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	buildings, skipped, ok := decodeEach(raw, buildingWire.toBuilding)
	c.warnMalformed(op, ok, skipped)
	return buildings, nil
}

// ListFloors returns the floors of one building.
func (c *Client) ListFloors(ctx context.Context, building Code) ([]Floor, error) {
	const op = "list_floors"
	if building == "" {
		return nil, &Error{Kind: KindValidation, Op: op, Message: "building code is required"}
	}
	raw, err := c.invoke(ctx, op, http.MethodGet, "/api/catalogos/edificios/"+url.PathEscape(building.String())+"/pisos", nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	floors, skipped, ok := decodeEach(raw, normalizeFloor(building))
	c.warnMalformed(op, ok, skipped)
	return floors, nil
}

func (c *Client) listDoctors(ctx context.Context, op, path string) ([]Doctor, error) {
	raw, err := c.invoke(ctx, op, http.MethodGet, path, nil, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	doctors, skipped, ok := decodeEach(raw, doctorWire.toDoctor)
	c.warnMalformed(op, ok, skipped)
	return doctors, nil
}

func countMissingIDs(slots []AgendaSlot) int {
	n := 0
	for _, s := range slots {
		if s.ID <= 0 {
			n++
		}
	}
	return n
}

func (c *Client) warnMalformed(op string, isArray bool, skipped int) {
	if !isArray {
		c.logger.Warn("catalog: response is not a collection, using empty", "operation", op)
		return
	}
	if skipped > 0 {
		c.logger.Warn("catalog: skipped malformed rows", "operation", op, "skipped", skipped)
	}
}

// invoke performs one request. Successful responses return the raw body
// (nil when the body is not JSON). Failures are always *Error.
func (c *Client) invoke(ctx context.Context, op, method, path string, query url.Values, body any, timeout time.Duration) (json.RawMessage, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)

	started := time.Now()
	raw, err := c.do(ctx, op, method, path, query, body, timeout)
	outcome := "ok"
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			outcome = string(cerr.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, Message(err))
		c.logger.Debug("catalog: request failed", "operation", op, "path", path, "error", err)
	}
	c.metrics.ObserveRequest(op, outcome, time.Since(started).Seconds())
	return raw, err
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: op, Message: "invalid request body", Err: err}
		}
		bodyReader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, query), bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Message: "invalid request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, op, err)
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, c.transportError(ctx, op, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:    KindBackend,
			Op:      op,
			Status:  resp.StatusCode,
			Message: backendMessage(resp.StatusCode, data),
		}
	}
	if !json.Valid(data) {
		if len(bytes.TrimSpace(data)) > 0 {
			c.logger.Warn("catalog: non-json response body", "operation", op, "status", resp.StatusCode)
		}
		return nil, nil
	}
	if msg, failed := reportedFailure(data); failed {
		return nil, &Error{Kind: KindBackend, Op: op, Status: resp.StatusCode, Message: msg}
	}
	return data, nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Op: op, Message: "Request timeout", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetwork, Op: op, Message: "Request canceled", Err: err}
	}
	return &Error{Kind: KindNetwork, Op: op, Message: "Cannot connect to server at " + c.baseURL, Err: err}
}

func (c *Client) buildURL(path string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if path == "/" {
		full = c.baseURL + "/"
	}
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

func decodeStats(raw json.RawMessage) Stats {
	value := unwrapEnvelope(raw)
	var out Stats
	if len(value) == 0 || value[0] != '{' || json.Unmarshal(value, &out) != nil {
		return Stats{}
	}
	return out
}

func decodeSlot(raw json.RawMessage) *AgendaSlot {
	value := unwrapEnvelope(raw)
	if len(value) == 0 || value[0] != '{' {
		return nil
	}
	var w agendaWire
	if err := json.Unmarshal(value, &w); err != nil {
		return nil
	}
	slot := w.toSlot()
	return &slot
}
