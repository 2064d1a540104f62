package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/internal/export"
)

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the backend and its health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.dashboardFor(cmd.Context(), cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()

			status := d.Controller.Connect(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status, d.Catalog.BaseURL())
			if status != dashboard.StatusConnected {
				return writeErr(cmd, errors.New(d.Controller.LastError()))
			}
			return nil
		},
	}
}

// filterFlags binds the board filters to a command.
type filterFlags struct {
	specialty string
	building  string
	floor     string
	typ       string
	search    string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.specialty, "specialty", agenda.AllValue, "Specialty description")
	cmd.Flags().StringVar(&f.building, "building", agenda.AllValue, "Building description")
	cmd.Flags().StringVar(&f.floor, "floor", agenda.AllValue, "Floor description")
	cmd.Flags().StringVar(&f.typ, "type", agenda.AllValue, "Consultation or Procedure")
	cmd.Flags().StringVar(&f.search, "search", "", "Free text over doctor, specialty, room and building")
}

func (f *filterFlags) filters() agenda.Filters {
	return agenda.Filters{
		Specialty: f.specialty,
		Building:  f.building,
		Floor:     f.floor,
		Type:      f.typ,
		Search:    f.search,
	}
}

var recordColumns = []string{"ID", "SPECIALTY", "DOCTOR", "DAY", "BUILDING", "FLOOR", "ROOM", "START", "END", "TYPE"}

func newRecordsCmd(app *App) *cobra.Command {
	var (
		ff   filterFlags
		page int
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List agenda records as a tab-separated table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.load(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()

			d.Controller.SetFilters(ff.filters())
			var records []agenda.Record
			if all {
				records = d.Controller.Filtered()
			} else {
				if page < 1 {
					return writeErr(cmd, fmt.Errorf("--page must be at least 1"))
				}
				d.Controller.SetPage(page)
				view := d.Controller.View()
				for _, row := range view.Rows {
					records = append(records, row.Record)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "page %d of %d, %d matching records\n", view.Page, view.TotalPages, view.FilteredCount)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(recordColumns, "\t"))
			for _, r := range records {
				fmt.Fprintln(out, strings.Join(recordFields(r), "\t"))
			}
			return nil
		},
	}
	ff.bind(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "Page to print")
	cmd.Flags().BoolVar(&all, "all", false, "Print every matching record instead of one page")
	return cmd
}

func recordFields(r agenda.Record) []string {
	room := r.RoomDescription
	if room == "" && r.RoomID != 0 {
		room = strconv.Itoa(r.RoomID)
	}
	return []string{r.ID, r.Specialty, r.DoctorName, r.Day, r.Building, r.Floor, room, r.Start, r.End, r.Type}
}

func newFloorsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "floors <building>",
		Short: "List a building's floors, by code or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.load(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()

			floors, err := d.Controller.Floors(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(floors) == 0 {
				return writeErr(cmd, fmt.Errorf("no floors for building %q", args[0]))
			}
			out := cmd.OutOrStdout()
			for _, f := range floors {
				fmt.Fprintf(out, "%d\t%s\n", f.Code, f.Description)
			}
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var (
		ff  filterFlags
		dst string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered records to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.load(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()

			d.Controller.SetFilters(ff.filters())
			now := time.Now()
			buf, filename, err := export.StaffWorkbook(d.Controller.Filtered(), now)
			if err != nil {
				return writeErr(cmd, err)
			}
			if dst == "" {
				dst = filename
			}
			if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
				return writeErr(cmd, fmt.Errorf("write %s: %w", dst, err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), dst)
			return nil
		},
	}
	ff.bind(cmd)
	cmd.Flags().StringVar(&dst, "out", "", "Output file (default staff_agenda_YYYYMMDD.xlsx)")
	return cmd
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the backend's self description, statistics and weekdays as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.dashboardFor(cmd.Context(), cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()

			report, err := d.Controller.BackendReport(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newDoctorsCmd(app *App) *cobra.Command {
	var name, specialty string
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "Search the backend's doctors by name or specialty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.dashboardFor(cmd.Context(), cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()

			doctors, err := d.Controller.SearchDoctors(cmd.Context(), name, specialty)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := cmd.OutOrStdout()
			for _, doc := range doctors {
				specs := make([]string, 0, len(doc.Specialties))
				for _, s := range doc.Specialties {
					specs = append(specs, s.Description)
				}
				fmt.Fprintf(out, "%d\t%s\t%s\n", doc.ID, doc.Name, strings.Join(specs, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name fragment")
	cmd.Flags().StringVar(&specialty, "specialty", "", "Specialty description")
	return cmd
}
