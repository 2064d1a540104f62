package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
)

// visiblePageButtons is how many page links pagination shows at once.
const visiblePageButtons = 5

// Row is a record as rendered, with its edit flag derived from the board.
type Row struct {
	agenda.Record
	Editing bool `json:"editing"`
}

// View is a consistent snapshot of everything the board page renders.
type View struct {
	Status        Status         `json:"status"`
	Loading       LoadingState   `json:"loading"`
	Error         string         `json:"error,omitempty"`
	Alert         Alert          `json:"alert"`
	Filters       agenda.Filters `json:"filters"`
	FiltersActive bool           `json:"filters_active"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
	TotalPages    int            `json:"total_pages"`
	Pages         []int          `json:"pages"`
	Rows          []Row          `json:"rows"`
	FilteredCount int            `json:"filtered_count"`
	TotalCount    int            `json:"total_count"`
	EditingID     string         `json:"editing_id,omitempty"`
	Dirty         bool           `json:"dirty"`
	BaseURL       string         `json:"base_url"`
}

// View returns the current page and surrounding state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	filtered := c.board.Filtered()
	page := c.board.CurrentPage()
	total := agenda.TotalPages(len(filtered), c.board.PageSize())
	editing := c.board.EditingID()

	pageRecords := agenda.Paginate(filtered, page, c.board.PageSize())
	rows := make([]Row, 0, len(pageRecords))
	for _, r := range pageRecords {
		rows = append(rows, Row{Record: r, Editing: r.ID == editing})
	}
	return View{
		Status:        c.status,
		Loading:       c.loading,
		Error:         c.lastError,
		Alert:         c.alert,
		Filters:       c.board.Filters(),
		FiltersActive: c.board.Filters().Active(),
		Page:          page,
		PageSize:      c.board.PageSize(),
		TotalPages:    total,
		Pages:         agenda.VisiblePages(page, total, visiblePageButtons),
		Rows:          rows,
		FilteredCount: len(filtered),
		TotalCount:    len(c.board.Records()),
		EditingID:     editing,
		Dirty:         c.board.Dirty(),
		BaseURL:       c.catalog.BaseURL(),
	}
}

// Record returns one record by id.
func (c *Controller) Record(id string) (agenda.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.Get(id)
}

// Filtered returns every record matching the active filters.
func (c *Controller) Filtered() []agenda.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.Filtered()
}

// Options are the choices offered by filter and edit controls.
type Options struct {
	Specialties []string           `json:"specialties"`
	Buildings   []catalog.Building `json:"buildings"`
	Floors      []string           `json:"floors"`
	Types       []string           `json:"types"`
	Days        []string           `json:"days"`
}

// Options returns the selectable values derived from loaded data.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Options{
		Specialties: agenda.SpecialtyOptions(c.snap.Specialties),
		Buildings:   agenda.SelectableBuildings(c.snap.Buildings),
		Floors:      agenda.FloorOptions(c.board.Records()),
		Types:       agenda.TypeLabels(),
		Days:        agenda.Weekdays(),
	}
}

// Floors returns a building's floors, fetching them when not cached. The
// building is referenced by description or code.
func (c *Controller) Floors(ctx context.Context, building string) ([]catalog.Floor, error) {
	c.mu.Lock()
	b, ok := agenda.FindBuilding(c.snap.Buildings, building)
	c.mu.Unlock()
	if !ok {
		return []catalog.Floor{}, nil
	}
	floors, err := c.floors.Get(ctx, b.Code)
	if err != nil {
		return nil, fmt.Errorf("dashboard: floors for %s: %w", b.Code, err)
	}
	return floors, nil
}

// FloorsSync returns cached floors only.
func (c *Controller) FloorsSync(building string) []catalog.Floor {
	c.mu.Lock()
	b, ok := agenda.FindBuilding(c.snap.Buildings, building)
	c.mu.Unlock()
	if !ok {
		return []catalog.Floor{}
	}
	return c.floors.Sync(b.Code)
}

// DefaultFloors returns the cached floors of the default building.
func (c *Controller) DefaultFloors() []catalog.Floor {
	return c.floors.Default()
}

// DoctorsForSpecialty lists loaded doctors having the given specialty.
func (c *Controller) DoctorsForSpecialty(specialty string) []catalog.Doctor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return agenda.DoctorsBySpecialty(c.snap.Doctors, c.snap.Specialties, specialty)
}

// RoomsFor lists rooms located on a building/floor pair, both given by
// description. An empty floor lists the whole building.
func (c *Controller) RoomsFor(building, floor string) []catalog.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []catalog.Room{}
	b, ok := agenda.FindBuilding(c.snap.Buildings, building)
	if !ok {
		return out
	}
	floorCode, hasFloor := 0, false
	if strings.TrimSpace(floor) != "" {
		floorCode, hasFloor = c.floors.FloorCode(b.Code, floor)
		if !hasFloor {
			return out
		}
	}
	for _, r := range c.snap.Rooms {
		if r.BuildingCode != b.Code {
			continue
		}
		if hasFloor && r.FloorCode != floorCode {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Debug summarizes loaded state for troubleshooting.
type Debug struct {
	Status          Status       `json:"status"`
	Loading         LoadingState `json:"loading"`
	BaseURL         string       `json:"base_url"`
	Doctors         int          `json:"doctors"`
	Agendas         int          `json:"agendas"`
	Specialties     int          `json:"specialties"`
	Buildings       int          `json:"buildings"`
	Rooms           int          `json:"rooms"`
	Records         int          `json:"records"`
	DefaultFloors   int          `json:"default_floors"`
	LastLoadedAt    *time.Time   `json:"last_loaded_at,omitempty"`
	EditingID       string       `json:"editing_id,omitempty"`
	LastError       string       `json:"last_error,omitempty"`
	FiltersActive   bool         `json:"filters_active"`
	FilteredRecords int          `json:"filtered_records"`
}

// Debug returns collection counts and loading state.
func (c *Controller) Debug() Debug {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := Debug{
		Status:          c.status,
		Loading:         c.loading,
		BaseURL:         c.catalog.BaseURL(),
		Doctors:         len(c.snap.Doctors),
		Agendas:         len(c.snap.Slots),
		Specialties:     len(c.snap.Specialties),
		Buildings:       len(c.snap.Buildings),
		Rooms:           len(c.snap.Rooms),
		Records:         len(c.board.Records()),
		DefaultFloors:   len(c.floors.Default()),
		EditingID:       c.board.EditingID(),
		LastError:       c.lastError,
		FiltersActive:   c.board.Filters().Active(),
		FilteredRecords: len(c.board.Filtered()),
	}
	if !c.lastLoaded.IsZero() {
		t := c.lastLoaded
		d.LastLoadedAt = &t
	}
	return d
}
