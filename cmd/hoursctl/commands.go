package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/config"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/export"
	"example.com/drivinghours/internal/persistence/sqlite"
)

// localTenant scopes every record in the single-user database.
const localTenant = "local"

const timeLayout = "2006-01-02 15:04"

type options struct {
	dbPath   string
	timezone string
	driver   string
	now      func() time.Time
}

// session is an opened database plus the service over it.
type session struct {
	store *sqlite.Store
	svc   *domain.Service
	cal   compliance.Calendar
}

func (o *options) open() (*session, error) {
	cal, err := compliance.LoadCalendar(o.timezone)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(o.dbPath)
	if err != nil {
		return nil, err
	}
	svc := domain.NewService(store, cal, domain.WithClock(o.now))
	return &session{store: store, svc: svc, cal: cal}, nil
}

func (s *session) Close() error { return s.store.Close() }

func newRootCmd() *cobra.Command {
	defaults, err := config.Load()
	if err != nil {
		defaults = config.Config{SQLitePath: "drivinghours.db", ComplianceTimezone: "Europe/Berlin"}
	}
	opts := &options{now: time.Now}

	root := &cobra.Command{
		Use:          "hoursctl",
		Short:        "Driving hours log and compliance check",
		Long:         "hoursctl records driving, work, break and rest periods in a local database and evaluates them against the EU drivers' hours limits.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", defaults.SQLitePath, "SQLite database file")
	root.PersistentFlags().StringVar(&opts.timezone, "tz", defaults.ComplianceTimezone, "Timezone that defines calendar days")
	root.PersistentFlags().StringVar(&opts.driver, "driver", "me", "Driver id")

	root.AddCommand(
		newLogCmd(opts),
		newListCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newStatusCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func parseLocal(cal compliance.Calendar, value string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, strings.TrimSpace(value), cal.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("expected %q, got %q", "YYYY-MM-DD HH:MM", value)
	}
	return t, nil
}

// parseDay parses YYYY-MM-DD, falling back to today when value is empty.
func (s *session) parseDay(value string) (time.Time, error) {
	if value == "" {
		return s.cal.StartOfDay(s.svc.Now()), nil
	}
	return s.cal.ParseDay(value)
}

func newLogCmd(opts *options) *cobra.Command {
	var typ, start, end, source string
	var duration float64

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record an activity",
		Example: `  hoursctl log --type driving --start "2026-10-19 06:00" --end "2026-10-19 10:30"
  hoursctl log --type break --start "2026-10-19 10:30" --end "2026-10-19 11:15"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			activityType, err := compliance.ParseActivityType(typ)
			if err != nil {
				return err
			}
			startAt, err := parseLocal(s.cal, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endAt, err := parseLocal(s.cal, end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			agg, _, err := s.svc.LogActivity(cmd.Context(), domain.LogActivityInput{
				TenantID:      localTenant,
				DriverID:      opts.driver,
				Type:          activityType,
				StartedAt:     startAt,
				EndedAt:       endAt,
				DurationHours: duration,
				Source:        source,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ logged %s %.2fh", agg.Type, agg.DurationHours)), subtitleStyle.Render(agg.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "Activity type (driving, work, break, rest)")
	cmd.Flags().StringVarP(&start, "start", "s", "", "Start, local time YYYY-MM-DD HH:MM")
	cmd.Flags().StringVarP(&end, "end", "e", "", "End, local time YYYY-MM-DD HH:MM")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0, "Duration in hours (derived from start and end when omitted)")
	cmd.Flags().StringVar(&source, "source", "cli", "Where the entry came from")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities between two days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			toDay, err := s.parseDay(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			fromDay := toDay.AddDate(0, 0, -6)
			if from != "" {
				if fromDay, err = s.parseDay(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}

			aggs, err := s.svc.ActivitiesBetween(cmd.Context(), localTenant, opts.driver, fromDay, toDay)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(aggs) == 0 {
				fmt.Fprintln(out, infoStyle.Render("No activities found"))
				return nil
			}

			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Activities %s – %s", s.cal.DayKey(fromDay), s.cal.DayKey(toDay))))
			loc := s.cal.Location()
			for _, agg := range aggs {
				typeStyle := lipgloss.NewStyle().Foreground(typeColor(agg.Type)).Width(9)
				fmt.Fprintf(out, "%s–%s %s %5.2fh %s\n",
					agg.StartedAt.In(loc).Format(timeLayout),
					agg.EndedAt.In(loc).Format("15:04"),
					typeStyle.Render(string(agg.Type)),
					agg.DurationHours,
					subtitleStyle.Render(agg.ID),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD (default: six days before --to)")
	cmd.Flags().StringVar(&to, "to", "", "Last day YYYY-MM-DD (default: today)")
	return cmd
}

func newEditCmd(opts *options) *cobra.Command {
	var typ, start, end string
	var duration float64

	cmd := &cobra.Command{
		Use:   "edit <activity-id>",
		Short: "Change an activity in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			current, err := s.svc.GetActivity(cmd.Context(), localTenant, args[0])
			if err != nil {
				return err
			}
			input := domain.UpdateActivityInput{
				TenantID:   localTenant,
				ActivityID: current.ID,
				Type:       current.Type,
				StartedAt:  current.StartedAt,
				EndedAt:    current.EndedAt,
			}
			if cmd.Flags().Changed("type") {
				if input.Type, err = compliance.ParseActivityType(typ); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("start") {
				if input.StartedAt, err = parseLocal(s.cal, start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}
			if cmd.Flags().Changed("end") {
				if input.EndedAt, err = parseLocal(s.cal, end); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}
			switch {
			case cmd.Flags().Changed("duration"):
				input.DurationHours = duration
			case !cmd.Flags().Changed("start") && !cmd.Flags().Changed("end"):
				input.DurationHours = current.DurationHours
			}

			agg, err := s.svc.UpdateActivity(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ updated %s (version %d)", agg.ID, agg.Version)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "New activity type")
	cmd.Flags().StringVarP(&start, "start", "s", "", "New start, local time YYYY-MM-DD HH:MM")
	cmd.Flags().StringVarP(&end, "end", "e", "", "New end, local time YYYY-MM-DD HH:MM")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0, "New duration in hours")
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <activity-id>",
		Short: "Delete an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.svc.DeleteActivity(cmd.Context(), localTenant, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ deleted "+args[0]))
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show day, week and fortnight totals and the compliance level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			day, err := s.parseDay(date)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			report, err := s.svc.ComplianceReport(cmd.Context(), localTenant, opts.driver, day)
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), s.cal, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day YYYY-MM-DD (default: today)")
	return cmd
}

func renderStatus(out io.Writer, cal compliance.Calendar, report *domain.ComplianceReport) {
	fmt.Fprintln(out, titleStyle.Render("Driving hours "+cal.DayKey(report.Date)))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s driving %.2fh  work %.2fh  break %.2fh  rest %.2fh\n",
		subtitleStyle.Render("Day:      "),
		report.Day.DrivingHours, report.Day.WorkHours, report.Day.BreakHours, report.Day.RestHours)
	fmt.Fprintf(out, "%s driving %.2fh  work %.2fh\n",
		subtitleStyle.Render("Week:     "),
		report.Weekly.TotalDrivingHours, report.Weekly.TotalWorkHours)
	fmt.Fprintf(out, "%s driving %.2fh\n",
		subtitleStyle.Render("Fortnight:"),
		report.Fortnight.TotalDrivingHours)
	fmt.Fprintln(out)

	status := report.Status
	fmt.Fprintln(out, levelStyle(status.Level).Render("Status: "+string(status.Level)))
	for _, alert := range status.Alerts {
		fmt.Fprintln(out, "  "+levelStyle(status.Level).Render("• "+string(alert)))
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var from, to, format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export activities with their compliance flags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("--format must be csv or json, got %q", format)
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			toDay, err := s.parseDay(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			fromDay := toDay.AddDate(0, 0, -13)
			if from != "" {
				if fromDay, err = s.parseDay(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}

			aggs, err := s.svc.ActivitiesBetween(cmd.Context(), localTenant, opts.driver, fromDay, toDay)
			if err != nil {
				return err
			}
			rows := export.Prepare(s.cal, domain.Records(aggs), compliance.DefaultExportLimits)

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			return export.WriteCSV(out, rows)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD (default: 13 days before --to)")
	cmd.Flags().StringVar(&to, "to", "", "Last day YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format (csv, json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}
