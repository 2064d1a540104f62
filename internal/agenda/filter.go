package agenda

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// AllValue is the sentinel meaning "no constraint" for a filter.
const AllValue = "all"

// Filters are AND-ed equality predicates plus a free-text search. Filters
// match on descriptions, not codes, so two entities sharing a description
// are indistinguishable here.
type Filters struct {
	Specialty string `json:"specialty"`
	Building  string `json:"building"`
	Floor     string `json:"floor"`
	Type      string `json:"type"`
	Search    string `json:"search"`
}

// Active reports whether any constraint is set.
func (f Filters) Active() bool {
	return !IsAll(f.Specialty) || !IsAll(f.Building) || !IsAll(f.Floor) || !IsAll(f.Type) || strings.TrimSpace(f.Search) != ""
}

// With returns a copy with one filter changed. Unknown keys are ignored and
// reported through ok.
func (f Filters) With(key, value string) (Filters, bool) {
	switch key {
	case "specialty":
		f.Specialty = value
	case "building":
		f.Building = value
	case "floor":
		f.Floor = value
	case "type":
		f.Type = value
	case "search":
		f.Search = value
	default:
		return f, false
	}
	return f, true
}

// IsAll reports whether a filter value places no constraint.
func IsAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, AllValue)
}

func matches(filter, value string) bool {
	return IsAll(filter) || strings.EqualFold(strings.TrimSpace(filter), value)
}

// Apply returns the records satisfying f, in their original order.
func Apply(records []Record, f Filters) []Record {
	search := strings.TrimSpace(f.Search)
	var folder cases.Caser
	if search != "" {
		folder = cases.Fold()
		search = folder.String(search)
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !matches(f.Specialty, r.Specialty) ||
			!matches(f.Building, r.Building) ||
			!matches(f.Floor, r.Floor) ||
			!matches(f.Type, r.Type) {
			continue
		}
		if search != "" && !containsFolded(folder, search, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func containsFolded(folder cases.Caser, needle string, r Record) bool {
	for _, field := range []string{r.DoctorName, r.Specialty, r.Building, r.Floor, r.Day, r.RoomDescription} {
		if strings.Contains(folder.String(field), needle) {
			return true
		}
	}
	return false
}

// TotalPages is ceil(count/size); zero when there is nothing to show.
func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

// Paginate returns the 1-based page of records. Pages are not clamped: an
// out-of-range page yields an empty slice and keeping page within
// [1, TotalPages] is the caller's job.
func Paginate(records []Record, page, size int) []Record {
	if size <= 0 || page < 1 {
		return []Record{}
	}
	start := (page - 1) * size
	if start >= len(records) {
		return []Record{}
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	out := make([]Record, end-start)
	copy(out, records[start:end])
	return out
}

// VisiblePages returns the page numbers shown by pagination controls: every
// page when total <= max, otherwise up to max pages starting two before
// current. Near the last page fewer than max pages are returned.
func VisiblePages(current, total, max int) []int {
	if total <= 0 || max <= 0 {
		return []int{}
	}
	start, end := 1, total
	if total > max {
		start = current - 2
		if start < 1 {
			start = 1
		}
		end = start + max - 1
		if end > total {
			end = total
		}
		if start > end {
			start = end - max + 1
		}
	}
	out := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		out = append(out, p)
	}
	return out
}

func itoa(n int) string { return strconv.Itoa(n) }
