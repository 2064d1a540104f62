package agenda

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/wolfman30/agenda-dashboard/internal/catalog"
)

// Snapshot is one consistent view of the backend collections.
type Snapshot struct {
	Doctors     []catalog.Doctor
	Slots       []catalog.AgendaSlot
	Specialties []catalog.Specialty
	Buildings   []catalog.Building
	Rooms       []catalog.Room
}

// FloorLookup resolves floor names from already-loaded floor lists. It must
// never block on the network.
type FloorLookup interface {
	Has(building catalog.Code) bool
	FloorName(building catalog.Code, floor int) (string, bool)
}

// Reconcile joins slots with doctors, specialties, rooms, buildings and
// cached floors into sorted view records. The result is deterministic for
// identical inputs. Slots without a positive agenda id are skipped: a
// record with agenda id 0 is a local draft.
func Reconcile(snap Snapshot, floors FloorLookup) []Record {
	doctors := make(map[int]catalog.Doctor, len(snap.Doctors))
	for _, d := range snap.Doctors {
		if _, dup := doctors[d.ID]; !dup {
			doctors[d.ID] = d
		}
	}
	specialties := make(map[int]string, len(snap.Specialties))
	for _, s := range snap.Specialties {
		if _, dup := specialties[s.ID]; !dup {
			specialties[s.ID] = s.Description
		}
	}
	rooms := make(map[int]catalog.Room, len(snap.Rooms))
	for _, r := range snap.Rooms {
		if _, dup := rooms[r.Code]; !dup {
			rooms[r.Code] = r
		}
	}
	buildings := make(map[catalog.Code]catalog.Building, len(snap.Buildings))
	for _, b := range snap.Buildings {
		if _, dup := buildings[b.Code]; !dup {
			buildings[b.Code] = b
		}
	}

	records := make([]Record, 0, len(snap.Slots))
	for _, slot := range snap.Slots {
		if slot.ID <= 0 {
			continue
		}
		doctor, found := doctors[slot.ProviderID]
		rec := Record{
			AgendaID:         slot.ID,
			DoctorName:       LabelDoctorNotFound,
			SchedulingItemID: slot.SchedulingItemID,
			Type:             TypeLabel(slot.Type),
			Floor:            LabelNoRoom,
			RoomID:           slot.RoomCode,
			Day:              DayName(slot.DayCode),
			Start:            DisplayTime(slot.Start),
			End:              DisplayTime(slot.End),
			Status:           StatusActive,
		}
		if found {
			rec.DoctorID = doctor.ID
			rec.DoctorName = doctor.Name
		}
		rec.ID = RecordID(slot.ID, rec.DoctorID)
		rec.Specialty = resolveSpecialty(slot, doctor, found, specialties)

		if room, ok := rooms[slot.RoomCode]; ok {
			rec.RoomDescription = room.Description
			if building, ok := buildings[room.BuildingCode]; ok {
				rec.Building = building.Description
				rec.Floor = floorName(floors, building.Code, room.FloorCode)
			}
		}
		records = append(records, rec)
	}

	SortRecords(records)
	return records
}

func resolveSpecialty(slot catalog.AgendaSlot, doctor catalog.Doctor, found bool, catalogSpecialties map[int]string) string {
	if slot.SchedulingItemID != 0 {
		if desc, ok := catalogSpecialties[slot.SchedulingItemID]; ok {
			return desc
		}
		if found {
			for _, s := range doctor.Specialties {
				if s.ID == slot.SchedulingItemID && s.Description != "" {
					return s.Description
				}
			}
		}
		return LabelNoSpecialty
	}
	if found && len(doctor.Specialties) > 0 && doctor.Specialties[0].Description != "" {
		return doctor.Specialties[0].Description
	}
	return LabelNoSpecialty
}

func floorName(floors FloorLookup, building catalog.Code, floor int) string {
	if floors != nil && floors.Has(building) {
		if name, ok := floors.FloorName(building, floor); ok {
			return name
		}
	}
	return "Floor " + itoa(floor)
}

// SortRecords orders records by specialty then doctor name using a
// case-insensitive collator. The sort is stable.
func SortRecords(records []Record) {
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(records, func(i, j int) bool {
		if c := col.CompareString(records[i].Specialty, records[j].Specialty); c != 0 {
			return c < 0
		}
		return col.CompareString(records[i].DoctorName, records[j].DoctorName) < 0
	})
}

// DoctorsBySpecialty lists doctors having the catalog specialty with the
// given description, sorted by name. An empty or "all" description returns
// every doctor.
func DoctorsBySpecialty(doctors []catalog.Doctor, specialties []catalog.Specialty, description string) []catalog.Doctor {
	var out []catalog.Doctor
	if IsAll(description) {
		out = append(out, doctors...)
	} else {
		id, ok := SpecialtyIDByDescription(specialties, description)
		if !ok {
			return []catalog.Doctor{}
		}
		for _, d := range doctors {
			for _, s := range d.Specialties {
				if s.ID == id {
					out = append(out, d)
					break
				}
			}
		}
	}
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].Name, out[j].Name) < 0
	})
	if out == nil {
		out = []catalog.Doctor{}
	}
	return out
}

// SpecialtyIDByDescription finds a catalog specialty by description,
// ignoring case since edited rows hold upper-cased values.
func SpecialtyIDByDescription(specialties []catalog.Specialty, description string) (int, bool) {
	description = strings.TrimSpace(description)
	if IsAll(description) {
		return 0, false
	}
	for _, s := range specialties {
		if strings.EqualFold(s.Description, description) {
			return s.ID, true
		}
	}
	return 0, false
}

// DefaultItemFor picks the scheduling item for a doctor chosen under a
// specialty: the doctor's matching specialty, else its first, else 0.
func DefaultItemFor(doctor catalog.Doctor, specialty string) int {
	if len(doctor.Specialties) == 0 {
		return 0
	}
	if specialty != "" {
		for _, s := range doctor.Specialties {
			if strings.EqualFold(s.Description, specialty) {
				return s.ID
			}
		}
	}
	return doctor.Specialties[0].ID
}

// SelectableBuildings drops buildings without a description.
func SelectableBuildings(buildings []catalog.Building) []catalog.Building {
	out := make([]catalog.Building, 0, len(buildings))
	for _, b := range buildings {
		if strings.TrimSpace(b.Description) != "" {
			out = append(out, b)
		}
	}
	return out
}

// FindBuilding matches a building by description (ignoring case) or code.
func FindBuilding(buildings []catalog.Building, ref string) (catalog.Building, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return catalog.Building{}, false
	}
	for _, b := range buildings {
		if strings.EqualFold(b.Description, ref) {
			return b, true
		}
	}
	code := catalog.ParseCode(ref)
	for _, b := range buildings {
		if b.Code == code {
			return b, true
		}
	}
	return catalog.Building{}, false
}

// FloorOptions returns the distinct floor names present in records, without
// the no-room placeholder, in collation order.
func FloorOptions(records []Record) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if r.Floor == "" || r.Floor == LabelNoRoom {
			continue
		}
		if _, ok := seen[r.Floor]; ok {
			continue
		}
		seen[r.Floor] = struct{}{}
		out = append(out, r.Floor)
	}
	col := collate.New(language.Und, collate.IgnoreCase)
	col.SortStrings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// SpecialtyOptions returns catalog specialty descriptions in collation order.
func SpecialtyOptions(specialties []catalog.Specialty) []string {
	out := make([]string, 0, len(specialties))
	for _, s := range specialties {
		out = append(out, s.Description)
	}
	collate.New(language.Und, collate.IgnoreCase).SortStrings(out)
	return out
}
