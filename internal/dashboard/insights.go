package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/catalog"
)

// BackendReport is the backend's self description, statistics and weekday
// catalog. Parts that failed are listed in Errors by name.
type BackendReport struct {
	Info        catalog.Stats     `json:"info"`
	DoctorStats catalog.Stats     `json:"doctor_stats"`
	AgendaStats catalog.Stats     `json:"agenda_stats"`
	Weekdays    []catalog.Weekday `json:"weekdays"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// BackendReport fetches the four parts in parallel. It fails only when every
// part failed.
func (c *Controller) BackendReport(ctx context.Context) (BackendReport, error) {
	var (
		report = BackendReport{Weekdays: []catalog.Weekday{}}
		mu     sync.Mutex
		errs   []error
		g      errgroup.Group
	)
	fail := func(part string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if report.Errors == nil {
			report.Errors = map[string]string{}
		}
		report.Errors[part] = catalog.Message(err)
		errs = append(errs, fmt.Errorf("%s: %w", part, err))
	}
	stats := func(part string, fetch func(context.Context) (catalog.Stats, error), dst *catalog.Stats) {
		g.Go(func() error {
			v, err := fetch(ctx)
			if err != nil {
				fail(part, err)
				return nil
			}
			*dst = v
			return nil
		})
	}

	stats("info", c.catalog.APIInfo, &report.Info)
	stats("doctor_stats", c.catalog.DoctorStats, &report.DoctorStats)
	stats("agenda_stats", c.catalog.AgendaStats, &report.AgendaStats)
	g.Go(func() error {
		days, err := c.catalog.ListWeekdays(ctx)
		if err != nil {
			fail("weekdays", err)
			return nil
		}
		if days != nil {
			report.Weekdays = days
		}
		return nil
	})
	_ = g.Wait()

	if len(errs) == 4 {
		c.logger.Warn("dashboard: backend report unavailable", "error", errs[0])
		return report, fmt.Errorf("dashboard: backend report: %w", errors.Join(errs...))
	}
	return report, nil
}

// SearchDoctors asks the backend for doctors by name, or by specialty when
// no name is given.
func (c *Controller) SearchDoctors(ctx context.Context, name, specialty string) ([]catalog.Doctor, error) {
	var (
		doctors []catalog.Doctor
		err     error
	)
	switch {
	case strings.TrimSpace(name) != "":
		doctors, err = c.catalog.DoctorsByName(ctx, name)
	case !agenda.IsAll(specialty):
		doctors, err = c.catalog.DoctorsBySpecialty(ctx, specialty)
	default:
		return nil, &agenda.ValidationError{Field: "name", Message: "A name or a specialty is required."}
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard: search doctors: %w", err)
	}
	if doctors == nil {
		doctors = []catalog.Doctor{}
	}
	return doctors, nil
}
