package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/orderdesk-cli/internal/export"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the results workbook from stored runs",
	Long:  "Exports the email-classification and order-status sheets for every processed request in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		requests, err := st.ListRequestRows(ctx)
		if err != nil {
			return err
		}
		lines, err := st.ListOrderLineRows(ctx)
		if err != nil {
			return err
		}
		return export.WriteXLSX(exportOutPath, requests, lines)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "results.xlsx", "path for the results workbook")
	rootCmd.AddCommand(exportCmd)
}
