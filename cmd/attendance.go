package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance ledger commands",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance records",
	Long: `List attendance records of a period (the current one by default).
Use --period all to list every record.

Examples:
  face-attendance attendance list
  face-attendance attendance list --period 2024-03-15 --json`,
	RunE: runAttendanceList,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records as CSV to stdout",
	RunE:  runAttendanceExport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd, attendanceExportCmd)

	attendanceListCmd.Flags().String("period", "", "Period key, or \"all\" (defaults to the current period)")
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
	attendanceExportCmd.Flags().String("period", "all", "Period key, or \"all\"")
}

// openConfiguredLedger opens the configured ledger without loading the gallery.
func openConfiguredLedger(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	if err := a.initLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func resolvePeriod(l ledger.Ledger, period string) string {
	switch period {
	case "":
		return l.Period()(time.Now())
	case "all":
		return ""
	default:
		return period
	}
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	period := mustGetString(cmd, "period")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := openConfiguredLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	key := resolvePeriod(a.ledger, period)
	records, err := a.ledger.Records(ctx, key)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(map[string]any{
			"period":  key,
			"count":   len(records),
			"records": records,
		})
	}

	if key == "" {
		key = "all periods"
	}
	fmt.Printf("Attendance for %s (%d records):\n", key, len(records))
	for _, r := range records {
		fmt.Printf("  %s  %s\n", r.Timestamp.Format(ledger.FileTimeLayout), r.Identity)
	}
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	period := mustGetString(cmd, "period")

	ctx := context.Background()
	a, err := openConfiguredLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.ledger.Records(ctx, resolvePeriod(a.ledger, period))
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write([]string{"timestamp", "employee_id", "period_key", "id"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Timestamp.Format(ledger.FileTimeLayout), r.Identity, r.PeriodKey, r.ID}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
