package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Code is the canonical key for building codes. The backend sends them as
// numbers or numeric strings; both decode to the same Code.
type Code string

// CodeFromInt converts a numeric building code.
func CodeFromInt(n int) Code {
	return Code(strconv.Itoa(n))
}

// ParseCode canonicalizes a free-form code ("2", " 2 ", "2.0").
func ParseCode(raw string) Code {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) {
		return Code(strconv.FormatInt(int64(f), 10))
	}
	return Code(raw)
}

func (c Code) String() string { return string(c) }

// Int returns the numeric value of the code, or 0 when it is not numeric.
func (c Code) Int() int {
	n, err := strconv.Atoi(string(c))
	if err != nil {
		return 0
	}
	return n
}

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ParseCode(s)
		return nil
	}
	*c = ParseCode(string(b))
	return nil
}

// flexInt accepts JSON numbers, numeric strings and null. Anything else
// decodes to zero instead of failing the whole collection.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*f = flexInt(n)
		return nil
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil {
		*f = flexInt(int(fl))
		return nil
	}
	*f = 0
	return nil
}

// DoctorSpecialty is a specialty entry embedded in a doctor.
type DoctorSpecialty struct {
	ID          int    `json:"especialidadId"`
	Description string `json:"descripcion"`
	Type        string `json:"tipo,omitempty"`
}

// Doctor is a schedulable provider.
type Doctor struct {
	ID          int               `json:"id"`
	Name        string            `json:"nombres"`
	Portrait    string            `json:"retrato,omitempty"`
	Specialties []DoctorSpecialty `json:"especialidades"`
}

// Specialty is an entry of the specialty catalog.
type Specialty struct {
	ID          int    `json:"especialidadId"`
	Description string `json:"descripcion"`
	Type        string `json:"tipo,omitempty"`
	Icon        string `json:"icono,omitempty"`
}

// Building groups floors and rooms.
type Building struct {
	Code        Code   `json:"codigo_edificio"`
	Description string `json:"descripcion_edificio"`
}

// Floor belongs to one building.
type Floor struct {
	Code         int    `json:"codigo_piso"`
	BuildingCode Code   `json:"codigo_edificio,omitempty"`
	Description  string `json:"descripcion_piso"`
}

// Room is a consulting room located on one (building, floor) pair.
type Room struct {
	Code             int    `json:"codigo_consultorio"`
	BuildingCode     Code   `json:"codigo_edificio"`
	FloorCode        int    `json:"codigo_piso"`
	Description      string `json:"descripcion_consultorio"`
	FloorDescription string `json:"descripcion_piso"`
}

// AgendaSlot is a recurring weekly time block for one doctor in one room.
// ID 0 never comes from the backend; it marks drafts elsewhere.
type AgendaSlot struct {
	ID               int    `json:"codigo_agenda"`
	RoomCode         int    `json:"codigo_consultorio"`
	ProviderID       int    `json:"codigo_prestador"`
	SchedulingItemID int    `json:"codigo_item_agendamiento"`
	DayCode          int    `json:"codigo_dia"`
	Start            string `json:"hora_inicio"`
	End              string `json:"hora_fin"`
	Type             string `json:"tipo"`
}

// AgendaPayload is the create/update body for an agenda slot.
type AgendaPayload struct {
	ID               int    `json:"codigo_agenda,omitempty"`
	ProviderID       int    `json:"codigo_prestador"`
	RoomCode         int    `json:"codigo_consultorio"`
	SchedulingItemID int    `json:"codigo_item_agendamiento"`
	DayCode          int    `json:"codigo_dia"`
	Start            string `json:"hora_inicio"`
	End              string `json:"hora_fin"`
	Type             string `json:"tipo"`
}

// Weekday is an entry of the weekday catalog.
type Weekday struct {
	Code int    `json:"codigo_dia"`
	Name string `json:"descripcion_dia"`
}

// AgendaFilter narrows ListAgendaSlots. Zero values are omitted.
type AgendaFilter struct {
	Page       int
	Limit      int
	StartDate  string
	EndDate    string
	Status     string
	ProviderID string
}

// Stats is an opaque statistics document.
type Stats map[string]any

type doctorWire struct {
	ID          flexInt `json:"id"`
	Name        string  `json:"nombres"`
	LegacyName  string  `json:"nombre"`
	Portrait    string  `json:"retrato"`
	Specialties []struct {
		ID          flexInt `json:"especialidadId"`
		Description string  `json:"descripcion"`
		Type        string  `json:"tipo"`
	} `json:"especialidades"`
}

func (w doctorWire) toDoctor() Doctor {
	d := Doctor{
		ID:          int(w.ID),
		Name:        strings.TrimSpace(w.Name),
		Portrait:    w.Portrait,
		Specialties: make([]DoctorSpecialty, 0, len(w.Specialties)),
	}
	if d.Name == "" {
		d.Name = strings.TrimSpace(w.LegacyName)
	}
	for _, s := range w.Specialties {
		d.Specialties = append(d.Specialties, DoctorSpecialty{
			ID:          int(s.ID),
			Description: s.Description,
			Type:        s.Type,
		})
	}
	return d
}

type specialtyWire struct {
	ID          flexInt `json:"especialidadId"`
	Description string  `json:"descripcion"`
	Type        string  `json:"tipo"`
	Icon        string  `json:"icono"`
}

type buildingWire struct {
	Code              Code   `json:"codigo_edificio"`
	Description       string `json:"descripcion_edificio"`
	LegacyCode        Code   `json:"codigo"`
	LegacyName        string `json:"nombre"`
	LegacyDescription string `json:"descripcion"`
}

func (w buildingWire) toBuilding() Building {
	b := Building{Code: w.Code, Description: strings.TrimSpace(w.Description)}
	if b.Code == "" {
		b.Code = w.LegacyCode
	}
	if b.Description == "" {
		b.Description = strings.TrimSpace(w.LegacyDescription)
	}
	if b.Description == "" {
		b.Description = strings.TrimSpace(w.LegacyName)
	}
	return b
}

type agendaWire struct {
	ID               flexInt `json:"codigo_agenda"`
	LegacyID         flexInt `json:"id"`
	RoomCode         flexInt `json:"codigo_consultorio"`
	ProviderID       flexInt `json:"codigo_prestador"`
	SchedulingItemID flexInt `json:"codigo_item_agendamiento"`
	DayCode          flexInt `json:"codigo_dia"`
	Start            string  `json:"hora_inicio"`
	End              string  `json:"hora_fin"`
	Type             string  `json:"tipo"`
}

func (w agendaWire) toSlot() AgendaSlot {
	s := AgendaSlot{
		ID:               int(w.ID),
		RoomCode:         int(w.RoomCode),
		ProviderID:       int(w.ProviderID),
		SchedulingItemID: int(w.SchedulingItemID),
		DayCode:          int(w.DayCode),
		Start:            w.Start,
		End:              w.End,
		Type:             w.Type,
	}
	if s.ID == 0 {
		s.ID = int(w.LegacyID)
	}
	return s
}
