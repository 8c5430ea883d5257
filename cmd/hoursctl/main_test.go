package main

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, db string, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", db, "--tz", "Europe/Berlin"}, args...))
	require.NoError(t, root.Execute())
	return out.String()
}

func TestLogStatusAndExport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "hours.db")

	execute(t, db, "log", "--type", "driving", "--start", "2026-10-19 06:00", "--end", "2026-10-19 10:30")
	execute(t, db, "log", "--type", "break", "--start", "2026-10-19 10:30", "--end", "2026-10-19 11:15")
	out := execute(t, db, "log", "--type", "work", "--start", "2026-10-19 11:15", "--end", "2026-10-19 13:15")
	require.Contains(t, out, "logged work 2.00h")
	execute(t, db, "log", "--type", "rest", "--start", "2026-10-19 13:15", "--end", "2026-10-20 00:15")

	status := execute(t, db, "status", "--date", "2026-10-19")
	require.Contains(t, status, "driving 4.50h")
	require.Contains(t, status, "Status: compliant")

	list := execute(t, db, "list", "--from", "2026-10-19", "--to", "2026-10-19")
	require.Equal(t, 5, strings.Count(list, "\n"))
	require.Contains(t, list, "11.00h")

	exported := execute(t, db, "export", "--from", "2026-10-19", "--to", "2026-10-19")
	records, err := csv.NewReader(strings.NewReader(exported)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.Equal(t, "id", records[0][0])
	require.Equal(t, "driving", records[1][4])
	require.Equal(t, "4.50", records[1][5])
	require.Equal(t, "06:00", records[1][2])
}

func TestLogRejectsBadTimes(t *testing.T) {
	db := filepath.Join(t.TempDir(), "hours.db")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--db", db, "log", "--type", "driving", "--start", "06:00", "--end", "2026-10-19 10:30"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "--start")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	db := filepath.Join(t.TempDir(), "hours.db")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--db", db, "export", "--format", "xml"})

	require.Error(t, root.Execute())
}
