package agenda

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/agenda-dashboard/internal/catalog"
)

var (
	ErrRecordNotFound = errors.New("agenda: record not found")
	ErrNotEditing     = errors.New("agenda: record is not being edited")
	ErrFiltersActive  = errors.New("agenda: clear filters before adding a record")
	ErrUnknownField   = errors.New("agenda: unknown field")
	ErrUnknownFilter  = errors.New("agenda: unknown filter")
)

// ValidationError is a save precondition failure; Message is shown to the
// operator verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

const (
	msgRequired      = "Please complete all required fields."
	msgRequiredTimes = "Please complete all required fields, including start and end times."
	msgTimeFormat    = "Please enter valid times in HH:MM format."
	msgDay           = "Please select a valid day."
)

// Field names accepted by ChangeField.
type Field string

const (
	FieldSpecialty        Field = "specialty"
	FieldDoctorName       Field = "doctor_name"
	FieldDoctorID         Field = "doctor_id"
	FieldSchedulingItemID Field = "scheduling_item_id"
	FieldType             Field = "type"
	FieldBuilding         Field = "building"
	FieldFloor            Field = "floor"
	FieldRoomID           Field = "room_id"
	FieldRoomDescription  Field = "room_description"
	FieldDay              Field = "day"
	FieldStart            Field = "start"
	FieldEnd              Field = "end"
)

var upperCased = map[Field]bool{
	FieldSpecialty:       true,
	FieldDoctorName:      true,
	FieldDay:             true,
	FieldFloor:           true,
	FieldRoomDescription: true,
	FieldType:            true,
}

// Effect tells the caller about follow-up work a field change needs.
type Effect struct {
	// LoadFloorsFor is the building whose floors should be fetched.
	LoadFloorsFor string
}

// RoomResolver infers a room from a (building, floor) description pair.
type RoomResolver interface {
	ResolveRoom(building, floor string) (int, bool)
}

// SavePlan is the backend call a validated save needs.
type SavePlan struct {
	RecordID string
	AgendaID int
	Create   bool
	Payload  catalog.AgendaPayload
}

// Board holds the working set of records, the active filters and the single
// edit slot. It is not safe for concurrent use.
type Board struct {
	records   []Record
	filters   Filters
	page      int
	pageSize  int
	editingID string
	dirty     bool
	newID     func() string
}

// NewBoard creates an empty board.
func NewBoard(pageSize int) *Board {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Board{page: 1, pageSize: pageSize, newID: uuid.NewString}
}

// Replace installs freshly reconciled records. Persisted rows are replaced;
// drafts stay at the head in their previous order; the row being edited keeps
// its in-memory values if it still exists, otherwise edit mode ends.
func (b *Board) Replace(records []Record) {
	var editing *Record
	if i := b.index(b.editingID); i >= 0 && !b.records[i].IsDraft() {
		rec := b.records[i]
		editing = &rec
	}

	next := make([]Record, 0, len(records)+len(b.records))
	for _, r := range b.records {
		if r.IsDraft() {
			next = append(next, r)
		}
	}
	editingKept := false
	for _, r := range records {
		if editing != nil && r.ID == editing.ID {
			next = append(next, *editing)
			editingKept = true
			continue
		}
		next = append(next, r)
	}
	b.records = next

	if b.editingID != "" && b.index(b.editingID) < 0 {
		b.editingID = ""
	}
	if editing != nil && !editingKept {
		b.editingID = ""
	}
}

// Records returns every record in board order.
func (b *Board) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Get returns one record.
func (b *Board) Get(id string) (Record, bool) {
	if i := b.index(id); i >= 0 {
		return b.records[i], true
	}
	return Record{}, false
}

// Filtered applies the active filters.
func (b *Board) Filtered() []Record {
	return Apply(b.records, b.filters)
}

// Page returns the current page of filtered records.
func (b *Board) Page() []Record {
	return Paginate(b.Filtered(), b.page, b.pageSize)
}

// CurrentPage returns the 1-based page index.
func (b *Board) CurrentPage() int { return b.page }

// PageSize returns the fixed page size.
func (b *Board) PageSize() int { return b.pageSize }

// TotalPages returns the page count of the filtered set.
func (b *Board) TotalPages() int {
	return TotalPages(len(b.Filtered()), b.pageSize)
}

// SetPage moves to page p. The value is not clamped.
func (b *Board) SetPage(p int) { b.page = p }

// Filters returns the active filters.
func (b *Board) Filters() Filters { return b.filters }

// SetFilter changes one filter and resets the page.
func (b *Board) SetFilter(key, value string) error {
	next, ok := b.filters.With(key, value)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
	b.filters = next
	b.page = 1
	return nil
}

// SetFilters replaces all filters and resets the page.
func (b *Board) SetFilters(f Filters) {
	b.filters = f
	b.page = 1
}

// ClearFilters removes every constraint and resets the page.
func (b *Board) ClearFilters() {
	b.SetFilters(Filters{})
}

// EditingID returns the record in edit mode, or "".
func (b *Board) EditingID() string { return b.editingID }

// Dirty reports unsaved field changes.
func (b *Board) Dirty() bool { return b.dirty }

// BeginEdit puts one record in edit mode; any other record leaves it.
func (b *Board) BeginEdit(id string) error {
	if b.index(id) < 0 {
		return ErrRecordNotFound
	}
	b.editingID = id
	return nil
}

// ChangeField writes one field of the record being edited. Writes apply
// immediately; Cancel does not undo them.
func (b *Board) ChangeField(id string, field Field, value string) (Effect, error) {
	i, err := b.editable(id)
	if err != nil {
		return Effect{}, err
	}
	rec := &b.records[i]
	if upperCased[field] {
		value = toUpper(value)
	}

	var effect Effect
	switch field {
	case FieldSpecialty:
		rec.Specialty = value
	case FieldDoctorName:
		rec.DoctorName = value
	case FieldDoctorID:
		n, err := parseIntField(field, value)
		if err != nil {
			return Effect{}, err
		}
		rec.DoctorID = n
	case FieldSchedulingItemID:
		n, err := parseIntField(field, value)
		if err != nil {
			return Effect{}, err
		}
		rec.SchedulingItemID = n
	case FieldType:
		rec.Type = value
	case FieldBuilding:
		rec.Building = value
		rec.Floor = ""
		rec.RoomID = 0
		rec.RoomDescription = ""
		if strings.TrimSpace(value) != "" {
			effect.LoadFloorsFor = value
		}
	case FieldFloor:
		rec.Floor = value
		rec.RoomID = 0
		rec.RoomDescription = ""
	case FieldRoomID:
		n, err := parseIntField(field, value)
		if err != nil {
			return Effect{}, err
		}
		rec.RoomID = n
	case FieldRoomDescription:
		rec.RoomDescription = value
	case FieldDay:
		rec.Day = value
	case FieldStart:
		rec.Start = strings.TrimSpace(value)
	case FieldEnd:
		rec.End = strings.TrimSpace(value)
	default:
		return Effect{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	b.dirty = true
	return effect, nil
}

// SelectSpecialty sets the specialty and clears the doctor and scheduling
// item, which belong to the previous specialty.
func (b *Board) SelectSpecialty(id, specialty string) error {
	if _, err := b.ChangeField(id, FieldSpecialty, specialty); err != nil {
		return err
	}
	i := b.index(id)
	b.records[i].DoctorName = ""
	b.records[i].DoctorID = 0
	b.records[i].SchedulingItemID = 0
	return nil
}

// SelectDoctor assigns a doctor and picks its scheduling item for the
// record's specialty.
func (b *Board) SelectDoctor(id string, doctor catalog.Doctor) error {
	i, err := b.editable(id)
	if err != nil {
		return err
	}
	rec := &b.records[i]
	rec.DoctorName = toUpper(doctor.Name)
	rec.DoctorID = doctor.ID
	rec.SchedulingItemID = DefaultItemFor(doctor, rec.Specialty)
	b.dirty = true
	return nil
}

// SelectRoom assigns a concrete room.
func (b *Board) SelectRoom(id string, room catalog.Room) error {
	i, err := b.editable(id)
	if err != nil {
		return err
	}
	b.records[i].RoomID = room.Code
	b.records[i].RoomDescription = toUpper(room.Description)
	b.dirty = true
	return nil
}

// Cancel leaves edit mode. Drafts are discarded; persisted rows keep any
// values already written.
func (b *Board) Cancel(id string) error {
	i := b.index(id)
	if i < 0 {
		return ErrRecordNotFound
	}
	if b.records[i].IsDraft() {
		b.remove(i)
	}
	if b.editingID == id {
		b.editingID = ""
	}
	return nil
}

// PrepareSave validates the record being edited and builds the backend
// call. Nothing changes on the board.
func (b *Board) PrepareSave(id string, rooms RoomResolver) (SavePlan, error) {
	i, err := b.editable(id)
	if err != nil {
		return SavePlan{}, err
	}
	rec := b.records[i]

	if rec.SchedulingItemID == 0 {
		return SavePlan{}, &ValidationError{Field: string(FieldSchedulingItemID), Message: msgRequired}
	}
	roomID := rec.RoomID
	if roomID == 0 && rooms != nil {
		if resolved, ok := rooms.ResolveRoom(rec.Building, rec.Floor); ok {
			roomID = resolved
		}
	}
	switch {
	case rec.DoctorID == 0:
		return SavePlan{}, &ValidationError{Field: string(FieldDoctorID), Message: msgRequiredTimes}
	case roomID == 0:
		return SavePlan{}, &ValidationError{Field: string(FieldRoomID), Message: msgRequiredTimes}
	case rec.Start == "":
		return SavePlan{}, &ValidationError{Field: string(FieldStart), Message: msgRequiredTimes}
	case rec.End == "":
		return SavePlan{}, &ValidationError{Field: string(FieldEnd), Message: msgRequiredTimes}
	case strings.TrimSpace(rec.Day) == "":
		return SavePlan{}, &ValidationError{Field: string(FieldDay), Message: msgRequiredTimes}
	}
	if !ValidTime(rec.Start) {
		return SavePlan{}, &ValidationError{Field: string(FieldStart), Message: msgTimeFormat}
	}
	if !ValidTime(rec.End) {
		return SavePlan{}, &ValidationError{Field: string(FieldEnd), Message: msgTimeFormat}
	}
	day := DayCode(rec.Day)
	if day == 0 {
		return SavePlan{}, &ValidationError{Field: string(FieldDay), Message: msgDay}
	}

	return SavePlan{
		RecordID: rec.ID,
		AgendaID: rec.AgendaID,
		Create:   rec.IsDraft(),
		Payload: catalog.AgendaPayload{
			ProviderID:       rec.DoctorID,
			RoomCode:         roomID,
			SchedulingItemID: rec.SchedulingItemID,
			DayCode:          day,
			Start:            BackendTime(rec.Start),
			End:              BackendTime(rec.End),
			Type:             TypeCode(rec.Type),
		},
	}, nil
}

// CompleteSave ends edit mode after the backend accepted a save. A created
// draft takes the new agenda id, or is dropped when the id is unknown so
// the next reload does not show it twice.
func (b *Board) CompleteSave(id string, agendaID int) {
	i := b.index(id)
	if b.editingID == id {
		b.editingID = ""
	}
	b.dirty = false
	if i < 0 {
		return
	}
	if b.records[i].IsDraft() {
		if agendaID <= 0 {
			b.remove(i)
			return
		}
		b.records[i].AgendaID = agendaID
		b.records[i].ID = RecordID(agendaID, b.records[i].DoctorID)
	}
}

// PrepareDelete removes drafts locally (local=true). For persisted rows it
// returns the agenda id the backend must delete; the board is unchanged
// until the next reload.
func (b *Board) PrepareDelete(id string) (agendaID int, local bool, err error) {
	i := b.index(id)
	if i < 0 {
		return 0, false, ErrRecordNotFound
	}
	if b.records[i].IsDraft() {
		b.remove(i)
		if b.editingID == id {
			b.editingID = ""
		}
		return 0, true, nil
	}
	return b.records[i].AgendaID, false, nil
}

// Duplicate prepends a draft copy of a record in view mode.
func (b *Board) Duplicate(id string) (Record, error) {
	i := b.index(id)
	if i < 0 {
		return Record{}, ErrRecordNotFound
	}
	dup := b.records[i]
	dup.ID = b.newID()
	dup.AgendaID = 0
	b.prepend(dup)
	return dup, nil
}

// AddBlank prepends an empty draft in edit mode. Refused while filters are
// active, since the draft could be hidden.
func (b *Board) AddBlank(defaultBuilding string) (Record, error) {
	if b.filters.Active() {
		return Record{}, ErrFiltersActive
	}
	rec := Record{
		ID:       b.newID(),
		Type:     TypeConsultation,
		Building: defaultBuilding,
		Status:   StatusActive,
	}
	b.prepend(rec)
	b.editingID = rec.ID
	b.page = 1
	return rec, nil
}

// AddFromDoctor prepends a draft prefilled with a doctor and its first
// specialty.
func (b *Board) AddFromDoctor(doctor catalog.Doctor, defaultBuilding string) (Record, error) {
	if b.filters.Active() {
		return Record{}, ErrFiltersActive
	}
	rec := Record{
		ID:         b.newID(),
		DoctorID:   doctor.ID,
		DoctorName: doctor.Name,
		Type:       TypeConsultation,
		Building:   defaultBuilding,
		Status:     StatusActive,
	}
	if len(doctor.Specialties) > 0 {
		rec.Specialty = doctor.Specialties[0].Description
		rec.SchedulingItemID = doctor.Specialties[0].ID
	}
	b.prepend(rec)
	b.editingID = rec.ID
	b.page = 1
	return rec, nil
}

func (b *Board) editable(id string) (int, error) {
	i := b.index(id)
	if i < 0 {
		return -1, ErrRecordNotFound
	}
	if b.editingID != id {
		return -1, ErrNotEditing
	}
	return i, nil
}

func (b *Board) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range b.records {
		if b.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) remove(i int) {
	b.records = append(b.records[:i], b.records[i+1:]...)
}

func (b *Board) prepend(rec Record) {
	b.records = append([]Record{rec}, b.records...)
}

func parseIntField(field Field, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ValidationError{Field: string(field), Message: fmt.Sprintf("%s must be a number", field)}
	}
	return n, nil
}
