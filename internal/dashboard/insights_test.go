package dashboard

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard/dashboardtest"
)

func TestBackendReport(t *testing.T) {
	backend := dashboardtest.NewBackend(t)
	client := newCatalogClient(t, backend.URL())
	c := newController(t, client, client)

	report, err := c.BackendReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agenda backend", report.Info["name"])
	assert.EqualValues(t, 2, report.DoctorStats["total"])
	assert.EqualValues(t, 2, report.AgendaStats["total"])
	require.Len(t, report.Weekdays, 5)
	assert.Equal(t, 1, report.Weekdays[0].Code)
	assert.Equal(t, "Lunes", report.Weekdays[0].Name)
	assert.Empty(t, report.Errors)
}

func TestBackendReportPartialFailure(t *testing.T) {
	backend := dashboardtest.NewBackend(t)
	backend.Fail("GET /api/agnd-agenda/estadisticas", http.StatusInternalServerError, 0)
	client := newCatalogClient(t, backend.URL())
	c := newController(t, client, client)

	report, err := c.BackendReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backend unavailable", report.Errors["agenda_stats"])
	assert.EqualValues(t, 2, report.DoctorStats["total"])
}

func TestBackendReportFailsWhenEverythingFails(t *testing.T) {
	backend := dashboardtest.NewBackend(t)
	url := backend.URL()
	backend.Server.Close()
	client := newCatalogClient(t, url)
	c := newController(t, client, client)

	report, err := c.BackendReport(context.Background())
	require.Error(t, err)
	assert.Len(t, report.Errors, 4)
}

func TestSearchDoctors(t *testing.T) {
	backend := dashboardtest.NewBackend(t)
	client := newCatalogClient(t, backend.URL())
	c := newController(t, client, client)
	ctx := context.Background()

	byName, err := c.SearchDoctors(ctx, "diaz", "")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "LUIS DIAZ", byName[0].Name)

	bySpecialty, err := c.SearchDoctors(ctx, "", "Cardiology")
	require.NoError(t, err)
	require.Len(t, bySpecialty, 1)
	assert.Equal(t, 5, bySpecialty[0].ID)

	none, err := c.SearchDoctors(ctx, "nobody", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = c.SearchDoctors(ctx, " ", agenda.AllValue)
	var verr *agenda.ValidationError
	assert.True(t, errors.As(err, &verr))
}
