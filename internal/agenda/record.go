package agenda

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Display labels used by reconciliation.
const (
	LabelDoctorNotFound = "Doctor not found"
	LabelNoSpecialty    = "No specialty"
	LabelNoRoom         = "No room"
	StatusActive        = "Active"

	TypeConsultation = "Consultation"
	TypeProcedure    = "Procedure"
)

// Record is one flattened, display-ready agenda row. AgendaID 0 marks a
// draft that only exists in memory.
type Record struct {
	ID               string `json:"id"`
	AgendaID         int    `json:"agenda_id"`
	DoctorID         int    `json:"doctor_id"`
	DoctorName       string `json:"doctor_name"`
	Specialty        string `json:"specialty"`
	SchedulingItemID int    `json:"scheduling_item_id"`
	Type             string `json:"type"`
	Building         string `json:"building"`
	Floor            string `json:"floor"`
	RoomID           int    `json:"room_id"`
	RoomDescription  string `json:"room_description"`
	Day              string `json:"day"`
	Start            string `json:"start"`
	End              string `json:"end"`
	Status           string `json:"status"`
}

// IsDraft reports whether the record has never been persisted.
func (r Record) IsDraft() bool { return r.AgendaID == 0 }

// RecordID builds the synthetic id of a persisted row.
func RecordID(agendaID, doctorID int) string {
	return fmt.Sprintf("%d-%d", agendaID, doctorID)
}

// TypeLabel decodes a backend type code. Anything other than P is a
// consultation.
func TypeLabel(code string) string {
	if strings.EqualFold(strings.TrimSpace(code), "P") {
		return TypeProcedure
	}
	return TypeConsultation
}

// TypeCode encodes a type label, ignoring case.
func TypeCode(label string) string {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "P", "PROCEDURE", "PROCEDIMIENTO":
		return "P"
	default:
		return "C"
	}
}

// TypeLabels lists selectable type labels.
func TypeLabels() []string {
	return []string{TypeConsultation, TypeProcedure}
}

var weekdays = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// accepted in addition to the English names, as older rows carry them
var spanishWeekdays = [...]string{"LUNES", "MARTES", "MIERCOLES", "JUEVES", "VIERNES", "SABADO", "DOMINGO"}

// DayName maps weekday code 1..7 to Monday..Sunday. Unknown codes yield "".
func DayName(code int) string {
	if code < 1 || code > len(weekdays) {
		return ""
	}
	return weekdays[code-1]
}

// DayCode maps a weekday name to 1..7, ignoring case. Unknown names yield 0.
func DayCode(name string) int {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0
	}
	name = strings.NewReplacer("É", "E", "Á", "A").Replace(name)
	for i, day := range weekdays {
		if strings.ToUpper(day) == name || spanishWeekdays[i] == name {
			return i + 1
		}
	}
	return 0
}

// Weekdays lists weekday names in code order.
func Weekdays() []string {
	out := make([]string, len(weekdays))
	copy(out, weekdays[:])
	return out
}

var hhmm = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ValidTime reports whether v is a HH:MM wall-clock time.
func ValidTime(v string) bool {
	return hhmm.MatchString(strings.TrimSpace(v))
}

// DisplayTime renders a backend time ("08:00:00", "8:00", or an ISO
// timestamp) as HH:MM. Unparseable input is returned unchanged.
func DisplayTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "T") {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC().Format("15:04")
			}
		}
		return raw
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return raw
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return raw
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// BackendTime renders a HH:MM time as HH:MM:00.
func BackendTime(v string) string {
	return DisplayTime(v) + ":00"
}

// Casers keep state, so each call gets its own.
func toUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}
