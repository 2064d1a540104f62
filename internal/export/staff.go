package export

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/wolfman30/agenda-dashboard/internal/agenda"
)

var (
	ErrNothingToExport = errors.New("export: no records to export")
	ErrGenerate        = errors.New("export: failed to generate workbook")
)

// SheetName is the single sheet of the staff workbook.
const SheetName = "Staff"

var headers = []string{"Specialty", "Doctor", "Day", "Building", "Floor", "Room", "Start", "End", "Type"}

var columnWidths = []float64{22, 28, 12, 18, 16, 16, 8, 8, 14}

// StaffItem is one row of the staff sheet.
type StaffItem struct {
	Specialty string
	Doctor    string
	Day       string
	Building  string
	Floor     string
	Room      string
	Start     string
	End       string
	Type      string
}

// StaffItems converts records to sheet rows, sorted by specialty then doctor.
// The room column falls back to the room id when there is no description.
func StaffItems(records []agenda.Record) []StaffItem {
	items := make([]StaffItem, 0, len(records))
	for _, r := range records {
		room := r.RoomDescription
		if room == "" && r.RoomID != 0 {
			room = strconv.Itoa(r.RoomID)
		}
		items = append(items, StaffItem{
			Specialty: r.Specialty,
			Doctor:    r.DoctorName,
			Day:       r.Day,
			Building:  r.Building,
			Floor:     r.Floor,
			Room:      room,
			Start:     r.Start,
			End:       r.End,
			Type:      r.Type,
		})
	}
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		if c := col.CompareString(items[i].Specialty, items[j].Specialty); c != 0 {
			return c < 0
		}
		return col.CompareString(items[i].Doctor, items[j].Doctor) < 0
	})
	return items
}

// Filename is the suggested download name for a workbook built at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("staff_agenda_%s.xlsx", now.Format("20060102"))
}

// StaffWorkbook renders records as an xlsx workbook and returns it with its
// suggested filename.
func StaffWorkbook(records []agenda.Record, now time.Time) (*bytes.Buffer, string, error) {
	if len(records) == 0 {
		return nil, "", ErrNothingToExport
	}
	items := StaffItems(records)

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}

	for i, w := range columnWidths {
		col := colName(i)
		_ = f.SetColWidth(SheetName, col, col, w)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range headers {
		_ = f.SetCellValue(SheetName, cell(colName(i), 1), h)
	}
	_ = f.SetCellStyle(SheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for n, item := range items {
		row := n + 2
		values := []string{item.Specialty, item.Doctor, item.Day, item.Building, item.Floor, item.Room, item.Start, item.End, item.Type}
		for i, v := range values {
			_ = f.SetCellValue(SheetName, cell(colName(i), row), v)
		}
	}
	_ = f.AutoFilter(SheetName, "A1:"+cell(colName(len(headers)-1), len(items)+1), nil)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return buf, Filename(now), nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
