package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bienestar/catalog"
	"bienestar/models"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect master habit catalogs",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a YAML or JSON catalog and print its areas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.LoadFile(args[0])
		if err != nil {
			return err
		}
		printCatalog(cmd.OutOrStdout(), cat)
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the bundled catalog summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		printCatalog(cmd.OutOrStdout(), catalog.Default())
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	summary := cat.Summary()
	fmt.Fprintf(w, "%d entries\n", cat.Len())
	for _, d := range models.Dimensions {
		fmt.Fprintf(w, "  %-10s %d\n", d, summary[d])
	}
	for _, a := range cat.Areas() {
		fmt.Fprintf(w, "  - %s (%s)\n", a.Name, a.Dimension)
	}
}
