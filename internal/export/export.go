// Package export flattens driver activities into tabular rows carrying the
// per-day compliance flags.
package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"example.com/drivinghours/internal/compliance"
)

// Row is one exported activity.
type Row struct {
	ID            string                  `json:"id,omitempty"`
	Date          string                  `json:"date"`
	Start         string                  `json:"start"`
	End           string                  `json:"end"`
	Type          compliance.ActivityType `json:"type"`
	DurationHours float64                 `json:"duration_hours"`
	compliance.RowFlags
}

// Header lists the CSV columns in order.
var Header = []string{"id", "date", "start", "end", "type", "duration_hours", "daily_driving_ok", "break_ok", "rest_ok", "night_work"}

// Prepare returns one row per activity ordered by start. Dates and clock times
// are rendered in the calendar's location.
func Prepare(cal compliance.Calendar, activities []compliance.Activity, limits compliance.ExportLimits) []Row {
	sorted := append([]compliance.Activity(nil), activities...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	byDay := make(map[string][]compliance.Activity)
	for _, a := range sorted {
		key := cal.DayKey(a.Start)
		byDay[key] = append(byDay[key], a)
	}

	loc := cal.Location()
	rows := make([]Row, 0, len(sorted))
	for _, a := range sorted {
		day := cal.DayKey(a.Start)
		rows = append(rows, Row{
			ID:            a.ID,
			Date:          day,
			Start:         a.Start.In(loc).Format("15:04"),
			End:           a.End.In(loc).Format("15:04"),
			Type:          a.Type,
			DurationHours: a.Duration,
			RowFlags:      cal.RowFlags(a, byDay[day], limits),
		})
	}
	return rows
}

// WriteCSV writes Header followed by rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ID,
			r.Date,
			r.Start,
			r.End,
			string(r.Type),
			strconv.FormatFloat(r.DurationHours, 'f', 2, 64),
			strconv.FormatBool(r.DailyDrivingOK),
			strconv.FormatBool(r.BreakOK),
			strconv.FormatBool(r.RestOK),
			strconv.FormatBool(r.NightWork),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
