// Package dashboardtest provides an in-memory scheduling backend for tests.
package dashboardtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Backend serves the catalog endpoints from mutable in-memory fixtures.
// Fixture fields hold raw JSON bodies (without envelope) and may be changed
// between calls under Lock/Unlock.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	Doctors     []map[string]any
	Specialties []map[string]any
	Buildings   []map[string]any
	Rooms       []map[string]any
	Agendas     []map[string]any
	Floors      map[string][]map[string]any
	Weekdays    []map[string]any

	// Failures maps "METHOD /path" to a status code answered with
	// {"success":false,"message":FailureMessage}. A count in FailTimes
	// limits how many times the failure fires (0 = forever).
	Failures       map[string]int
	FailTimes      map[string]int
	FailureMessage string

	requests []string
	created  []map[string]any
	updated  map[int]map[string]any
	deleted  []int
	nextID   int
}

// NewBackend starts a backend seeded with two doctors, two buildings and two
// agendas (42 for doctor 5 in building 1, 43 for doctor 6 in building 2).
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		Doctors: []map[string]any{
			{"id": 5, "nombres": "ANA PEREZ", "especialidades": []map[string]any{{"especialidadId": 3, "descripcion": "Cardiology"}}},
			{"id": 6, "nombres": "LUIS DIAZ", "especialidades": []map[string]any{{"especialidadId": 4, "descripcion": "Neurology"}}},
		},
		Specialties: []map[string]any{
			{"especialidadId": 3, "descripcion": "Cardiology"},
			{"especialidadId": 4, "descripcion": "Neurology"},
		},
		Buildings: []map[string]any{
			{"codigo_edificio": 1, "descripcion_edificio": "Main Tower"},
			{"codigo_edificio": 2, "descripcion_edificio": "Annex"},
		},
		Rooms: []map[string]any{
			{"codigo_consultorio": 10, "codigo_edificio": 1, "codigo_piso": 7, "descripcion_consultorio": "C-10"},
			{"codigo_consultorio": 20, "codigo_edificio": 2, "codigo_piso": 1, "descripcion_consultorio": "A-20"},
		},
		Agendas: []map[string]any{
			{"codigo_agenda": 42, "codigo_consultorio": 10, "codigo_prestador": 5, "codigo_item_agendamiento": 3, "codigo_dia": 2, "hora_inicio": "08:00:00", "hora_fin": "09:00:00", "tipo": "C"},
			{"codigo_agenda": 43, "codigo_consultorio": 20, "codigo_prestador": 6, "codigo_item_agendamiento": 4, "codigo_dia": 5, "hora_inicio": "10:00:00", "hora_fin": "11:00:00", "tipo": "P"},
		},
		Floors: map[string][]map[string]any{
			"1": {{"codigo_piso": 7, "descripcion_piso": "Third Floor"}},
			"2": {{"codigo_piso": 1, "descripcion_piso": "Ground"}},
		},
		Weekdays: []map[string]any{
			{"CD_DIA": 1, "DES_DIA": "Lunes"},
			{"CD_DIA": 2, "DES_DIA": "Martes"},
			{"CD_DIA": 3, "DES_DIA": "Miércoles"},
			{"CD_DIA": 4, "DES_DIA": "Jueves"},
			{"CD_DIA": 5, "DES_DIA": "Viernes"},
		},
		Failures:       map[string]int{},
		FailTimes:      map[string]int{},
		FailureMessage: "backend unavailable",
		updated:        map[int]map[string]any{},
		nextID:         100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		b.write(w, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		b.write(w, map[string]any{"name": "agenda backend", "version": "test"})
	})
	mux.HandleFunc("GET /api/medicos", b.list(func() any { return b.Doctors }))
	mux.HandleFunc("GET /api/medicos/estadisticas", b.list(func() any {
		return map[string]any{"total": len(b.Doctors)}
	}))
	mux.HandleFunc("GET /api/agnd-agenda/estadisticas", b.list(func() any {
		return map[string]any{"total": len(b.Agendas)}
	}))
	mux.HandleFunc("GET /api/catalogos/dias", b.list(func() any { return b.Weekdays }))
	mux.HandleFunc("GET /api/medicos/nombre/{name}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		name := strings.ToUpper(r.PathValue("name"))
		out := []map[string]any{}
		for _, d := range b.Doctors {
			if strings.Contains(strings.ToUpper(fmt.Sprint(d["nombres"])), name) {
				out = append(out, d)
			}
		}
		b.write(w, out)
	})
	mux.HandleFunc("GET /api/medicos/especialidad/{specialty}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []map[string]any{}
		for _, d := range b.Doctors {
			specs, _ := d["especialidades"].([]map[string]any)
			for _, sp := range specs {
				if strings.EqualFold(fmt.Sprint(sp["descripcion"]), r.PathValue("specialty")) {
					out = append(out, d)
					break
				}
			}
		}
		b.write(w, out)
	})
	mux.HandleFunc("GET /api/medicos/especialidades", b.list(func() any { return b.Specialties }))
	mux.HandleFunc("GET /api/catalogos/edificios", b.list(func() any { return b.Buildings }))
	mux.HandleFunc("GET /api/catalogos/consultorios", b.list(func() any { return b.Rooms }))
	mux.HandleFunc("GET /api/agnd-agenda", b.list(func() any { return b.Agendas }))
	mux.HandleFunc("GET /api/catalogos/edificios/{code}/pisos", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		floors := b.Floors[r.PathValue("code")]
		if floors == nil {
			floors = []map[string]any{}
		}
		b.write(w, floors)
	})
	mux.HandleFunc("GET /api/medicos/item/{code}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, d := range b.Doctors {
			if fmt.Sprint(d["id"]) == r.PathValue("code") {
				b.write(w, d)
				return
			}
		}
		b.write(w, nil)
	})
	mux.HandleFunc("POST /api/agnd-agenda", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.created = append(b.created, body)
		b.nextID++
		slot := map[string]any{"codigo_agenda": b.nextID}
		for k, v := range body {
			slot[k] = v
		}
		b.Agendas = append(b.Agendas, slot)
		b.write(w, slot)
	})
	mux.HandleFunc("PUT /api/agnd-agenda/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		body := decode(r)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.updated[id] = body
		for i, a := range b.Agendas {
			if fmt.Sprint(a["codigo_agenda"]) == strconv.Itoa(id) {
				for k, v := range body {
					b.Agendas[i][k] = v
				}
			}
		}
		b.write(w, body)
	})
	mux.HandleFunc("DELETE /api/agnd-agenda/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		b.mu.Lock()
		defer b.mu.Unlock()
		b.deleted = append(b.deleted, id)
		kept := b.Agendas[:0]
		for _, a := range b.Agendas {
			if fmt.Sprint(a["codigo_agenda"]) != strconv.Itoa(id) {
				kept = append(kept, a)
			}
		}
		b.Agendas = kept
		b.write(w, map[string]any{"deleted": id})
	})

	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		b.requests = append(b.requests, key)
		status, failing := b.Failures[key]
		if failing {
			if n, limited := b.FailTimes[key]; limited {
				if n <= 1 {
					delete(b.Failures, key)
					delete(b.FailTimes, key)
				} else {
					b.FailTimes[key] = n - 1
				}
			}
		}
		msg := b.FailureMessage
		b.mu.Unlock()
		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the backend base URL.
func (b *Backend) URL() string { return b.Server.URL }

// Lock guards direct fixture edits.
func (b *Backend) Lock() { b.mu.Lock() }

// Unlock releases Lock.
func (b *Backend) Unlock() { b.mu.Unlock() }

// Fail makes "METHOD /path" answer with status, times times (0 = forever).
func (b *Backend) Fail(key string, status, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Failures[key] = status
	if times > 0 {
		b.FailTimes[key] = times
	}
}

// Requests returns how many times "METHOD /path" was requested.
func (b *Backend) Requests(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r == key {
			n++
		}
	}
	return n
}

// Created returns the create bodies received.
func (b *Backend) Created() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.created...)
}

// Updated returns the last update body per agenda id.
func (b *Backend) Updated(id int) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.updated[id]
	return body, ok
}

// Deleted returns the deleted agenda ids.
func (b *Backend) Deleted() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.deleted...)
}

func (b *Backend) list(get func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.write(w, get())
	}
}

func (b *Backend) write(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func decode(r *http.Request) map[string]any {
	body := map[string]any{}
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &body)
	return body
}
