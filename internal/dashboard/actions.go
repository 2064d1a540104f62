package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
)

// BeginEdit puts a record in edit mode.
func (c *Controller) BeginEdit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.BeginEdit(id)
}

// ChangeField writes one field of the record being edited. A building change
// starts a background fetch of that building's floors.
func (c *Controller) ChangeField(ctx context.Context, id string, field agenda.Field, value string) error {
	c.mu.Lock()
	effect, err := c.board.ChangeField(id, field, value)
	var load catalog.Code
	if err == nil && effect.LoadFloorsFor != "" {
		if b, ok := agenda.FindBuilding(c.snap.Buildings, effect.LoadFloorsFor); ok && !c.floors.Has(b.Code) {
			load = b.Code
		}
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if load != "" {
		c.fetchFloors(ctx, load)
	}
	return nil
}

// SelectSpecialty sets a record's specialty and clears its doctor.
func (c *Controller) SelectSpecialty(id, specialty string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.SelectSpecialty(id, specialty)
}

// SelectDoctor assigns a loaded doctor to a record.
func (c *Controller) SelectDoctor(id string, doctorID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doctor, ok := c.doctor(doctorID)
	if !ok {
		return fmt.Errorf("%w: doctor %d", agenda.ErrRecordNotFound, doctorID)
	}
	return c.board.SelectDoctor(id, doctor)
}

// SelectRoom assigns a loaded room to a record.
func (c *Controller) SelectRoom(id string, roomID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.snap.Rooms {
		if r.Code == roomID {
			return c.board.SelectRoom(id, r)
		}
	}
	return fmt.Errorf("%w: room %d", agenda.ErrRecordNotFound, roomID)
}

// Cancel leaves edit mode, discarding drafts.
func (c *Controller) Cancel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.Cancel(id)
}

// Save validates and persists the record being edited, then reloads agendas.
// Validation failures raise an alert and make no backend call. Once the
// backend accepts the write Save returns nil, even if the reload fails.
func (c *Controller) Save(ctx context.Context, id string) error {
	c.mu.Lock()
	plan, err := c.board.PrepareSave(id, roomResolver{buildings: c.snap.Buildings, rooms: c.snap.Rooms, floors: c.floors})
	if err != nil {
		var verr *agenda.ValidationError
		if errors.As(err, &verr) {
			c.setAlert(AlertWarning, verr.Message)
		}
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	var agendaID int
	if plan.Create {
		slot, cerr := c.catalog.CreateAgendaSlot(ctx, plan.Payload)
		err = cerr
		if slot != nil {
			agendaID = slot.ID
		}
	} else {
		_, err = c.catalog.UpdateAgendaSlot(ctx, plan.AgendaID, plan.Payload)
		agendaID = plan.AgendaID
	}
	if err != nil {
		fallback := msgUpdateFailed
		if plan.Create {
			fallback = msgCreateFailed
		}
		c.mu.Lock()
		c.lastError = messageOr(err, fallback)
		c.mu.Unlock()
		c.logger.Error("dashboard: save failed", "record_id", id, "create", plan.Create, "error", err)
		return err
	}

	c.mu.Lock()
	c.board.CompleteSave(plan.RecordID, agendaID)
	c.lastError = ""
	c.setAlert(AlertSuccess, msgSaved)
	c.mu.Unlock()
	c.logger.Info("dashboard: agenda saved", "record_id", id, "agenda_id", agendaID, "create", plan.Create)

	c.reloadAfterWrite(ctx)
	return nil
}

// Delete removes a draft locally or deletes a persisted agenda and reloads.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	agendaID, local, err := c.board.PrepareDelete(id)
	c.mu.Unlock()
	if err != nil || local {
		return err
	}

	if err := c.catalog.DeleteAgendaSlot(ctx, agendaID); err != nil {
		c.mu.Lock()
		c.lastError = messageOr(err, msgDeleteFailed)
		c.mu.Unlock()
		c.logger.Error("dashboard: delete failed", "agenda_id", agendaID, "error", err)
		return err
	}
	c.mu.Lock()
	c.setAlert(AlertSuccess, msgDeleted)
	c.mu.Unlock()
	c.logger.Info("dashboard: agenda deleted", "agenda_id", agendaID)
	c.reloadAfterWrite(ctx)
	return nil
}

// reloadAfterWrite refreshes agendas once the backend accepted a write. A
// failed reload only leaves the banner set; the write itself stands.
func (c *Controller) reloadAfterWrite(ctx context.Context) {
	if err := c.ReloadSlots(ctx); err != nil {
		c.logger.Warn("dashboard: write applied but agendas are stale", "error", err)
	}
}

// Duplicate prepends an unsaved copy of a record.
func (c *Controller) Duplicate(id string) (agenda.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.board.Duplicate(id)
	if err != nil {
		return agenda.Record{}, err
	}
	c.setAlert(AlertSuccess, msgDuplicated)
	return rec, nil
}

// AddBlank prepends an empty draft on the default building.
func (c *Controller) AddBlank() (agenda.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.board.AddBlank(c.defaultBuildingName())
	if errors.Is(err, agenda.ErrFiltersActive) {
		c.setAlert(AlertWarning, msgClearFilters)
	}
	return rec, err
}

// AddFromDoctor prepends a draft for a doctor. Doctors missing from the
// loaded list are looked up on the backend.
func (c *Controller) AddFromDoctor(ctx context.Context, doctorID int) (agenda.Record, error) {
	c.mu.Lock()
	if c.board.Filters().Active() {
		c.setAlert(AlertWarning, msgClearFilters)
		c.mu.Unlock()
		return agenda.Record{}, agenda.ErrFiltersActive
	}
	doctor, ok := c.doctor(doctorID)
	c.mu.Unlock()

	if !ok {
		fetched, err := c.catalog.DoctorByCode(ctx, strconv.Itoa(doctorID))
		if err != nil {
			c.mu.Lock()
			c.lastError = messageOr(err, msgDoctorLoadError)
			c.mu.Unlock()
			return agenda.Record{}, err
		}
		if fetched == nil {
			c.mu.Lock()
			c.setAlert(AlertWarning, msgDoctorNotFound)
			c.mu.Unlock()
			return agenda.Record{}, fmt.Errorf("%w: doctor %d", agenda.ErrRecordNotFound, doctorID)
		}
		doctor = *fetched
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.board.AddFromDoctor(doctor, c.defaultBuildingName())
	if errors.Is(err, agenda.ErrFiltersActive) {
		c.setAlert(AlertWarning, msgClearFilters)
	}
	return rec, err
}

// SetFilter changes one filter and returns to the first page.
func (c *Controller) SetFilter(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.SetFilter(key, value)
}

// SetFilters replaces every filter and returns to the first page.
func (c *Controller) SetFilters(f agenda.Filters) {
	c.mu.Lock()
	c.board.SetFilters(f)
	c.mu.Unlock()
}

// ClearFilters removes every filter.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	c.board.ClearFilters()
	c.mu.Unlock()
}

// SetPage moves to a page without clamping.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	c.board.SetPage(page)
	c.mu.Unlock()
}

// doctor finds a loaded doctor. Callers hold mu.
func (c *Controller) doctor(id int) (catalog.Doctor, bool) {
	for _, d := range c.snap.Doctors {
		if d.ID == id {
			return d, true
		}
	}
	return catalog.Doctor{}, false
}

// defaultBuildingName is the default building's description, or "" when the
// building list does not contain it. Callers hold mu.
func (c *Controller) defaultBuildingName() string {
	for _, b := range c.snap.Buildings {
		if b.Code == c.defaultBuilding {
			return b.Description
		}
	}
	return ""
}

// roomResolver infers a room from the building and floor descriptions of a
// record: building by description, floor code from the cache, then the first
// room on that floor.
type roomResolver struct {
	buildings []catalog.Building
	rooms     []catalog.Room
	floors    interface {
		FloorCode(building catalog.Code, description string) (int, bool)
	}
}

func (r roomResolver) ResolveRoom(building, floor string) (int, bool) {
	b, ok := agenda.FindBuilding(r.buildings, building)
	if !ok || strings.TrimSpace(floor) == "" {
		return 0, false
	}
	floorCode, ok := r.floors.FloorCode(b.Code, floor)
	if !ok {
		return 0, false
	}
	for _, room := range r.rooms {
		if room.BuildingCode == b.Code && room.FloorCode == floorCode {
			return room.Code, true
		}
	}
	return 0, false
}
