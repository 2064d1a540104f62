package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	"github.com/wolfman30/agenda-dashboard/internal/floors"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

// Catalog is the subset of the backend client the controller drives.
type Catalog interface {
	BaseURL() string
	CheckServerConnection(ctx context.Context) bool
	Health(ctx context.Context) (catalog.Stats, error)
	ListDoctors(ctx context.Context) ([]catalog.Doctor, error)
	DoctorByCode(ctx context.Context, code string) (*catalog.Doctor, error)
	ListSpecialties(ctx context.Context) ([]catalog.Specialty, error)
	ListAgendaSlots(ctx context.Context, filter catalog.AgendaFilter) ([]catalog.AgendaSlot, error)
	CreateAgendaSlot(ctx context.Context, payload catalog.AgendaPayload) (*catalog.AgendaSlot, error)
	UpdateAgendaSlot(ctx context.Context, id int, payload catalog.AgendaPayload) (*catalog.AgendaSlot, error)
	DeleteAgendaSlot(ctx context.Context, id int) error
	ListRooms(ctx context.Context) ([]catalog.Room, error)
	ListBuildings(ctx context.Context) ([]catalog.Building, error)

	APIInfo(ctx context.Context) (catalog.Stats, error)
	DoctorStats(ctx context.Context) (catalog.Stats, error)
	AgendaStats(ctx context.Context) (catalog.Stats, error)
	ListWeekdays(ctx context.Context) ([]catalog.Weekday, error)
	DoctorsByName(ctx context.Context, name string) ([]catalog.Doctor, error)
	DoctorsBySpecialty(ctx context.Context, specialty string) ([]catalog.Doctor, error)
}

// Status is the backend connection state.
type Status string

const (
	StatusChecking     Status = "checking"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// LoadingState tracks the last catalog load.
type LoadingState string

const (
	LoadingIdle    LoadingState = "idle"
	LoadingActive  LoadingState = "loading"
	LoadingSuccess LoadingState = "success"
	LoadingError   LoadingState = "error"
)

// AlertKind selects how an alert is styled.
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
	AlertWarning AlertKind = "warning"
	AlertInfo    AlertKind = "info"
)

// Alert is a dismissible notice shown above the board.
type Alert struct {
	Open    bool      `json:"open"`
	Message string    `json:"message"`
	Kind    AlertKind `json:"kind"`
}

const (
	msgUnreachable     = "Cannot connect to the server. Check the URL and that the server is running."
	msgBackendError    = "Backend responded with an error: "
	msgClearFilters    = "Clear the filters before adding a record."
	msgDuplicated      = "Agenda duplicated. The new record appears at the top of the list."
	msgDoctorNotFound  = "Doctor not found."
	msgSaved           = "Agenda saved."
	msgDeleted         = "Agenda deleted."
	msgCreateFailed    = "Error creating agenda"
	msgUpdateFailed    = "Error updating agenda"
	msgDeleteFailed    = "Error deleting agenda"
	msgReloadFailed    = "Could not load agendas"
	msgDoctorLoadError = "Could not load doctor"
)

// ErrDisconnected is returned by Retry when the backend cannot be reached.
var ErrDisconnected = errors.New("dashboard: backend disconnected")

// Config wires a Controller.
type Config struct {
	Catalog         Catalog
	Floors          *floors.Cache
	DefaultBuilding catalog.Code
	PageSize        int
	Logger          *logging.Logger
}

// Controller owns the dashboard state. Every mutation happens under mu;
// backend calls run with mu released and their results are applied after.
type Controller struct {
	catalog         Catalog
	floors          *floors.Cache
	defaultBuilding catalog.Code
	logger          *logging.Logger

	mu         sync.Mutex
	status     Status
	loading    LoadingState
	lastError  string
	alert      Alert
	snap       agenda.Snapshot
	board      *agenda.Board
	lastLoaded time.Time

	bg sync.WaitGroup
}

// New creates a Controller and subscribes it to floor cache updates.
func New(cfg Config) (*Controller, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("dashboard: catalog is required")
	}
	if cfg.Floors == nil {
		return nil, errors.New("dashboard: floor cache is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	defaultBuilding := cfg.DefaultBuilding
	if defaultBuilding == "" {
		defaultBuilding = cfg.Floors.DefaultBuilding()
	}
	c := &Controller{
		catalog:         cfg.Catalog,
		floors:          cfg.Floors,
		defaultBuilding: catalog.ParseCode(defaultBuilding.String()),
		logger:          logger,
		status:          StatusChecking,
		loading:         LoadingIdle,
		board:           agenda.NewBoard(cfg.PageSize),
	}
	cfg.Floors.SetOnUpdate(c.onFloorsUpdated)
	return c, nil
}

// Wait blocks until background floor fetches started by the controller end.
func (c *Controller) Wait() {
	c.bg.Wait()
}

// Connect probes the backend and then asks for its health document.
func (c *Controller) Connect(ctx context.Context) Status {
	c.mu.Lock()
	c.status = StatusChecking
	c.mu.Unlock()

	if !c.catalog.CheckServerConnection(ctx) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.status = StatusDisconnected
		c.lastError = msgUnreachable
		return c.status
	}
	if _, err := c.catalog.Health(ctx); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.status = StatusDisconnected
		c.lastError = msgBackendError + catalog.Message(err)
		c.logger.Warn("dashboard: backend health check failed", "error", err)
		return c.status
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusConnected
	c.lastError = ""
	c.logger.Info("dashboard: backend connected", "base_url", c.catalog.BaseURL())
	return c.status
}

// Retry clears the banner, reconnects and reloads when connected.
func (c *Controller) Retry(ctx context.Context) error {
	c.ClearError()
	if c.Connect(ctx) != StatusConnected {
		return ErrDisconnected
	}
	return c.Load(ctx)
}

type loadFailure struct {
	collection string
	fallback   string
	err        error
}

// Load fetches the five collections in parallel. A failed collection is left
// empty and its message goes to the error banner; the others still load.
// Floors are warmed in the background and rows are re-derived.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = LoadingActive
	c.mu.Unlock()

	var (
		snap     agenda.Snapshot
		failures [5]*loadFailure
		g        errgroup.Group
	)
	fail := func(i int, collection, fallback string, err error) {
		failures[i] = &loadFailure{collection: collection, fallback: fallback, err: err}
	}
	g.Go(func() error {
		doctors, err := c.catalog.ListDoctors(ctx)
		if err != nil {
			fail(0, "doctors", "Could not load doctors", err)
			return nil
		}
		snap.Doctors = doctors
		return nil
	})
	g.Go(func() error {
		slots, err := c.catalog.ListAgendaSlots(ctx, catalog.AgendaFilter{})
		if err != nil {
			fail(1, "agendas", msgReloadFailed, err)
			return nil
		}
		snap.Slots = slots
		return nil
	})
	g.Go(func() error {
		buildings, err := c.catalog.ListBuildings(ctx)
		if err != nil {
			fail(2, "buildings", "Could not load buildings", err)
			return nil
		}
		snap.Buildings = buildings
		return nil
	})
	g.Go(func() error {
		specialties, err := c.catalog.ListSpecialties(ctx)
		if err != nil {
			fail(3, "specialties", "Could not load specialties", err)
			return nil
		}
		snap.Specialties = specialties
		return nil
	})
	g.Go(func() error {
		rooms, err := c.catalog.ListRooms(ctx)
		if err != nil {
			fail(4, "rooms", "Could not load rooms", err)
			return nil
		}
		snap.Rooms = rooms
		return nil
	})
	_ = g.Wait()

	var errs []error
	c.mu.Lock()
	c.snap = snap
	c.lastLoaded = time.Now()
	c.loading = LoadingSuccess
	for _, f := range failures {
		if f == nil {
			continue
		}
		c.loading = LoadingError
		c.lastError = messageOr(f.err, f.fallback)
		c.logger.Error("dashboard: load failed", "collection", f.collection, "error", f.err)
		errs = append(errs, fmt.Errorf("dashboard: load %s: %w", f.collection, f.err))
	}
	c.rederive()
	codes := make([]catalog.Code, 0, len(snap.Buildings))
	for _, b := range snap.Buildings {
		codes = append(codes, b.Code)
	}
	c.logger.Info("dashboard: catalog loaded",
		"doctors", len(snap.Doctors),
		"agendas", len(snap.Slots),
		"buildings", len(snap.Buildings),
		"specialties", len(snap.Specialties),
		"rooms", len(snap.Rooms),
		"records", len(c.board.Records()),
	)
	c.mu.Unlock()

	c.warm(ctx, codes)
	return errors.Join(errs...)
}

// ReloadSlots refreshes only the agenda collection, as done after mutations.
func (c *Controller) ReloadSlots(ctx context.Context) error {
	slots, err := c.catalog.ListAgendaSlots(ctx, catalog.AgendaFilter{})
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastError = messageOr(err, msgReloadFailed)
		c.logger.Error("dashboard: reload agendas failed", "error", err)
		return fmt.Errorf("dashboard: reload agendas: %w", err)
	}
	c.snap.Slots = slots
	c.lastLoaded = time.Now()
	c.rederive()
	return nil
}

// LastError returns the error banner text, or "".
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// ClearError dismisses the error banner.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
}

// Alert returns the current alert.
func (c *Controller) Alert() Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alert
}

// CloseAlert dismisses the alert.
func (c *Controller) CloseAlert() {
	c.mu.Lock()
	c.alert = Alert{}
	c.mu.Unlock()
}

// Status returns the connection status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// warm starts floor fetches for every building without blocking. The request
// context may end before they do, so they run detached from its cancellation.
func (c *Controller) warm(ctx context.Context, buildings []catalog.Code) {
	done := c.floors.Warm(context.WithoutCancel(ctx), buildings)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		<-done
	}()
}

func (c *Controller) fetchFloors(ctx context.Context, building catalog.Code) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if _, err := c.floors.Get(context.WithoutCancel(ctx), building); err != nil {
			c.logger.Warn("dashboard: floor fetch failed", "building", building.String(), "error", err)
		}
	}()
}

// onFloorsUpdated runs on the cache's goroutine once a building's floors
// arrive, replacing "Floor N" placeholders with real names.
func (c *Controller) onFloorsUpdated(building catalog.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("dashboard: floors updated", "building", building.String())
	c.rederive()
}

// rederive rebuilds rows from the snapshot. Callers hold mu.
func (c *Controller) rederive() {
	c.board.Replace(agenda.Reconcile(c.snap, c.floors))
}

func (c *Controller) setAlert(kind AlertKind, message string) {
	c.alert = Alert{Open: true, Message: message, Kind: kind}
}

func messageOr(err error, fallback string) string {
	if msg := catalog.Message(err); msg != "" {
		return msg
	}
	return fallback
}
