package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/BTreeMap/ComplaintDesk/internal/app"
	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the complaint categories in keyboard order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := app.OpenCatalog(cfg.CatalogFile)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tLABEL")
		for i, e := range cat.Entries() {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, e.ID, e.Label)
		}
		return tw.Flush()
	},
}
