package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// unwrapEnvelope returns the "data" member when the body is an object that
// carries one, otherwise the body itself.
func unwrapEnvelope(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	if data, ok := env["data"]; ok {
		return bytes.TrimSpace(data)
	}
	return trimmed
}

// splitArray returns the elements of a JSON array. ok is false when the
// (unwrapped) value is not an array.
func splitArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	value := unwrapEnvelope(raw)
	if len(value) == 0 || value[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, false
	}
	return items, true
}

// decodeEach decodes every array element independently so one bad row does
// not empty the collection.
func decodeEach[W any, T any](raw json.RawMessage, convert func(W) T) ([]T, int, bool) {
	items, ok := splitArray(raw)
	if !ok {
		return []T{}, 0, false
	}
	out := make([]T, 0, len(items))
	skipped := 0
	for _, item := range items {
		var w W
		if err := json.Unmarshal(item, &w); err != nil {
			skipped++
			continue
		}
		out = append(out, convert(w))
	}
	return out, skipped, true
}

// aliasFields is an element decoded as a loose object, for rows whose
// column names vary between backend versions.
type aliasFields map[string]json.RawMessage

func (a aliasFields) raw(keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		v, ok := a[key]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		return v, true
	}
	return nil, false
}

func (a aliasFields) intField(keys ...string) int {
	v, ok := a.raw(keys...)
	if !ok {
		return 0
	}
	var n flexInt
	_ = n.UnmarshalJSON(v)
	return int(n)
}

func (a aliasFields) codeField(keys ...string) Code {
	v, ok := a.raw(keys...)
	if !ok {
		return ""
	}
	var c Code
	if err := c.UnmarshalJSON(v); err != nil {
		return ""
	}
	return c
}

func (a aliasFields) stringField(keys ...string) string {
	for _, key := range keys {
		v, ok := a.raw(key)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			// numbers are accepted as their literal text
			s = string(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func floorLabel(code int) string {
	return "Floor " + strconv.Itoa(code)
}

func roomLabel(code int) string {
	return fmt.Sprintf("Room %d", code)
}

// normalizeRoom maps canonical, upper-case legacy and lower-case legacy
// column names onto Room.
func normalizeRoom(a aliasFields) Room {
	r := Room{
		Code:         a.intField("codigo_consultorio", "CD_CONSULTORIO", "cd_consultorio"),
		BuildingCode: a.codeField("codigo_edificio", "CD_EDIFICIO", "cd_edificio"),
		FloorCode:    a.intField("codigo_piso", "CD_PISO", "cd_piso"),
		Description:  a.stringField("descripcion_consultorio", "DES_CONSULTORIO", "des_consultorio", "descripcion"),
	}
	r.FloorDescription = a.stringField("descripcion_piso", "DES_PISO", "des_piso")
	if r.FloorDescription == "" && r.FloorCode != 0 {
		r.FloorDescription = floorLabel(r.FloorCode)
	}
	switch {
	case r.Description != "":
	case r.FloorCode != 0:
		r.Description = floorLabel(r.FloorCode)
	default:
		r.Description = roomLabel(r.Code)
	}
	return r
}

func normalizeFloor(building Code) func(aliasFields) Floor {
	return func(a aliasFields) Floor {
		f := Floor{
			Code:         a.intField("codigo_piso", "CD_PISO", "cd_piso"),
			BuildingCode: a.codeField("codigo_edificio", "CD_EDIFICIO", "cd_edificio"),
			Description:  a.stringField("descripcion_piso", "DES_PISO", "des_piso", "descripcion"),
		}
		if f.BuildingCode == "" {
			f.BuildingCode = building
		}
		if f.Description == "" {
			f.Description = floorLabel(f.Code)
		}
		return f
	}
}

func normalizeWeekday(a aliasFields) Weekday {
	return Weekday{
		Code: a.intField("codigo_dia", "CD_DIA", "cd_dia", "id"),
		Name: a.stringField("descripcion_dia", "DES_DIA", "des_dia", "descripcion", "nombre"),
	}
}
