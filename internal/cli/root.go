// Package cli implements complaintctl, the operator command line for
// ComplaintDesk.
package cli

import (
	"path/filepath"

	"github.com/BTreeMap/ComplaintDesk/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg         config.Config
	stateDir    string
	reportDSN   string
	catalogFile string

	rootCmd = &cobra.Command{
		Use:   "complaintctl",
		Short: "Operate a ComplaintDesk installation",
		Long: `complaintctl prepares and inspects the complaint report store, lists the
complaint categories and runs the dialogue in the terminal.

Settings come from the same environment variables and .env file as the
complaintdesk daemon; the flags below override them.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory (overrides $COMPLAINTDESK_STATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&reportDSN, "report-dsn", "", "report destination (overrides $REPORT_DSN)")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "YAML category file (overrides $CATALOG_FILE)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(simulateCmd)
}

func initConfig() {
	cfg = config.Load()
	if stateDir != "" && stateDir != cfg.StateDir {
		if cfg.ReportDSN == filepath.Join(cfg.StateDir, config.DefaultReportFileName) {
			cfg.ReportDSN = ""
		}
		cfg.StateDir = stateDir
		cfg.ApplyDefaults()
	}
	if reportDSN != "" {
		cfg.ReportDSN = reportDSN
	}
	if catalogFile != "" {
		cfg.CatalogFile = catalogFile
	}
}
