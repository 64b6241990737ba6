package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/BTreeMap/ComplaintDesk/internal/app"
	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
	"github.com/spf13/cobra"
)

var reportLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the stored complaints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := app.OpenReports(cmd.Context(), cfg.ReportDSN)
		if err != nil {
			return err
		}
		defer reports.Close()

		rows, err := reportRows(cmd.Context(), reports)
		if err != nil {
			return fmt.Errorf("read complaints: %w", err)
		}
		if reportLimit > 0 && len(rows) > reportLimit {
			rows = rows[len(rows)-reportLimit:]
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(models.ReportHeader, "\t"))
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d complaint(s)\n", len(rows))
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 0, "show only the last N complaints")
}

// reportRows returns the stored complaints without the header row.
func reportRows(ctx context.Context, reports store.ReportStore) ([][]string, error) {
	switch s := reports.(type) {
	case *store.ExcelReportStore:
		rows, err := s.Rows()
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			rows = rows[1:]
		}
		return rows, nil
	case interface {
		ListComplaints(context.Context) ([]models.ComplaintRecord, error)
	}:
		recs, err := s.ListComplaints(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([][]string, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, rec.Row())
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("report store %T cannot be listed", reports)
	}
}
