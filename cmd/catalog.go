package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/orderdesk-cli/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the product catalog",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configured catalog file",
	RunE: func(_ *cobra.Command, _ []string) error {
		idx, err := loadCatalog(cfg.Catalog.Path, cfg.Catalog.SheetName)
		if err != nil {
			return err
		}
		fmt.Printf("catalog ok: %d products (%s)\n", idx.Len(), cfg.Catalog.Path)
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the catalog as a table",
	RunE: func(_ *cobra.Command, _ []string) error {
		idx, err := loadCatalog(cfg.Catalog.Path, cfg.Catalog.SheetName)
		if err != nil {
			return err
		}
		formatCatalog(os.Stdout, idx)
		return nil
	},
}

func formatCatalog(out io.Writer, idx *catalog.Index) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSEASONS\tPRICE\tSTOCK")
	for _, p := range idx.Products() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%d\n",
			p.ID, p.Name, p.Category, strings.Join(p.Seasons, ","), p.Price, p.Stock)
	}
	w.Flush()
}

func init() {
	catalogCmd.AddCommand(catalogCheckCmd, catalogListCmd)
	rootCmd.AddCommand(catalogCmd)
}
