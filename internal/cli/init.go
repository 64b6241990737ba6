package cli

import (
	"fmt"

	"github.com/BTreeMap/ComplaintDesk/internal/app"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the complaint report store",
	Long:  "Create the workbook with its header row, or the complaints table, at the configured report DSN. Existing data is left untouched.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := app.OpenReports(cmd.Context(), cfg.ReportDSN)
		if err != nil {
			return err
		}
		defer reports.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Report store ready (%s)\n", store.DetectDSNType(cfg.ReportDSN))
		return nil
	},
}
