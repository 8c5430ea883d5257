package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/drivinghours/internal/compliance"
)

var monday = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func activity(id string, typ compliance.ActivityType, start time.Time, hours float64) compliance.Activity {
	return compliance.Activity{
		ID:       id,
		Type:     typ,
		Start:    start,
		End:      start.Add(time.Duration(hours * float64(time.Hour))),
		Duration: hours,
	}
}

func TestPrepareFlagsRowsPerDay(t *testing.T) {
	cal := compliance.NewCalendar(time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	activities := []compliance.Activity{
		activity("rest", compliance.ActivityRest, tuesday.Add(10*time.Hour), 11),
		activity("day", compliance.ActivityDriving, monday.Add(6*time.Hour), 7),
		activity("night", compliance.ActivityDriving, monday.Add(2*time.Hour), 3),
		activity("work", compliance.ActivityWork, tuesday.Add(8*time.Hour), 2),
	}

	rows := Prepare(cal, activities, compliance.DefaultExportLimits)

	require.Len(t, rows, 4)
	require.Equal(t, []string{"night", "day", "work", "rest"}, []string{rows[0].ID, rows[1].ID, rows[2].ID, rows[3].ID})

	require.Equal(t, "2026-10-19", rows[0].Date)
	require.Equal(t, "02:00", rows[0].Start)
	require.Equal(t, "05:00", rows[0].End)
	require.Equal(t, compliance.RowFlags{NightWork: true}, rows[0].RowFlags)
	require.Equal(t, compliance.RowFlags{}, rows[1].RowFlags)

	allOK := compliance.RowFlags{DailyDrivingOK: true, BreakOK: true, RestOK: true}
	require.Equal(t, "2026-10-20", rows[2].Date)
	require.Equal(t, allOK, rows[2].RowFlags)
	require.Equal(t, allOK, rows[3].RowFlags)
}

func TestPrepareUsesCalendarLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	cal := compliance.NewCalendar(berlin)

	// 23:30 UTC on Sunday is 01:30 on Monday in Berlin (CEST).
	rows := Prepare(cal, []compliance.Activity{
		activity("a", compliance.ActivityWork, monday.Add(-30*time.Minute), 1),
	}, compliance.DefaultExportLimits)

	require.Equal(t, "2026-10-19", rows[0].Date)
	require.Equal(t, "01:30", rows[0].Start)
	require.True(t, rows[0].NightWork)
}

func TestWriteCSV(t *testing.T) {
	rows := []Row{{
		ID:            "a1",
		Date:          "2026-10-19",
		Start:         "06:00",
		End:           "08:15",
		Type:          compliance.ActivityDriving,
		DurationHours: 2.25,
		RowFlags:      compliance.RowFlags{DailyDrivingOK: true, BreakOK: true},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	require.Equal(t,
		"id,date,start,end,type,duration_hours,daily_driving_ok,break_ok,rest_ok,night_work\n"+
			"a1,2026-10-19,06:00,08:15,driving,2.25,true,true,false,false\n",
		buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	require.Equal(t, "id,date,start,end,type,duration_hours,daily_driving_ok,break_ok,rest_ok,night_work\n", buf.String())
}
