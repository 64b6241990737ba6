package cli

import (
	"fmt"

	"github.com/BTreeMap/ComplaintDesk/internal/app"
	"github.com/BTreeMap/ComplaintDesk/internal/flow"
	"github.com/BTreeMap/ComplaintDesk/internal/messaging"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
	"github.com/spf13/cobra"
)

var simulateDryRun bool

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Talk to the complaint dialogue in the terminal",
	Long: `Run the complaint dialogue on standard input and output. Keyboards are shown
as numbered lists; answer with the number or type the text. Submitted
complaints go to the configured report store unless --dry-run is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cat, err := app.OpenCatalog(cfg.CatalogFile)
		if err != nil {
			return err
		}

		var (
			reports store.ReportStore
			memory  *store.InMemoryStore
		)
		if simulateDryRun {
			memory = store.NewInMemoryStore()
			reports = memory
		} else {
			reports, err = app.OpenReports(ctx, cfg.ReportDSN)
			if err != nil {
				return err
			}
		}
		defer reports.Close()

		engine := flow.NewEngine(cat, flow.NewStoreBasedStateManager(store.NewInMemoryStore()), reports,
			flow.WithSupportText(cfg.SupportText),
			flow.WithProjectURL(cfg.ProjectURL),
		)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Send /start to begin, /help for commands. End input to quit.")
		fmt.Fprintln(out)
		messaging.NewConsoleService(cmd.InOrStdin(), out).Serve(ctx, engine)

		if memory != nil {
			fmt.Fprintf(out, "Dry run: %d complaint(s) collected, nothing stored\n", len(memory.Records()))
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateDryRun, "dry-run", false, "keep submitted complaints in memory only")
}
