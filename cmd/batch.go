package main

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/orderdesk-cli/internal/export"
	"github.com/sells-group/orderdesk-cli/internal/model"
)

var (
	batchEmailsPath string
	batchSheetName  string
	batchOutPath    string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a spreadsheet of customer emails",
	Long:  "Reads emails from an XLSX sheet (columns: email_id, subject, message) and runs each through the pipeline. Emails run concurrently against a shared stock ledger, so earlier reservations affect later emails.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		emails, err := loadEmailsXLSX(batchEmailsPath, batchSheetName)
		if err != nil {
			return err
		}
		zap.L().Info("batch: emails loaded",
			zap.String("path", batchEmailsPath),
			zap.Int("count", len(emails)),
		)

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var (
			mu                sync.Mutex
			completed, failed int
		)
		var g errgroup.Group
		g.SetLimit(cfg.Batch.MaxConcurrentEmails)
		for _, email := range emails {
			g.Go(func() error {
				result, err := env.Router.Process(ctx, email)
				if err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					zap.L().Error("batch: email failed",
						zap.String("request_id", email.RequestID),
						zap.Error(err),
					)
					return nil
				}
				mu.Lock()
				completed++
				mu.Unlock()
				zap.L().Info("batch: email processed",
					zap.String("request_id", email.RequestID),
					zap.String("category", string(result.Category)),
					zap.Int("tokens", result.TotalTokens),
				)
				return nil
			})
		}
		_ = g.Wait()

		zap.L().Info("batch: finished",
			zap.Int("completed", completed),
			zap.Int("failed", failed),
		)

		if batchOutPath == "" {
			return nil
		}
		requests, err := env.Store.ListRequestRows(ctx)
		if err != nil {
			return err
		}
		lines, err := env.Store.ListOrderLineRows(ctx)
		if err != nil {
			return err
		}
		return export.WriteXLSX(batchOutPath, requests, lines)
	},
}

// emailColumns is the expected header row: email_id, subject, message
// (order-insensitive, extra columns ignored).
func loadEmailsXLSX(path, sheetName string) ([]model.Email, error) {
	if path == "" {
		return nil, eris.New("emails path is required (--emails)")
	}
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open xlsx")
	}

	sheet, ok := f.Sheet[sheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("batch: no sheets in %s", path)
		}
		sheet = f.Sheets[0]
	}
	if len(sheet.Rows) < 2 {
		return nil, eris.Errorf("batch: sheet %s has no data rows", sheet.Name)
	}

	cols := make(map[string]int)
	for j, cell := range sheet.Rows[0].Cells {
		cols[strings.ToLower(strings.TrimSpace(cell.String()))] = j
	}
	for _, required := range []string{"email_id", "message"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("batch: missing column %q", required)
		}
	}

	cell := func(row *xlsx.Row, name string) string {
		j, ok := cols[name]
		if !ok || j >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[j].String())
	}

	var emails []model.Email
	seen := make(map[string]bool)
	for _, row := range sheet.Rows[1:] {
		id := cell(row, "email_id")
		if id == "" {
			continue
		}
		if seen[id] {
			return nil, eris.Errorf("batch: duplicate email id %s", id)
		}
		seen[id] = true
		emails = append(emails, model.Email{
			RequestID: id,
			Subject:   cell(row, "subject"),
			Body:      cell(row, "message"),
		})
	}
	if len(emails) == 0 {
		return nil, eris.Errorf("batch: no emails in %s", path)
	}
	return emails, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchEmailsPath, "emails", "", "path to the emails spreadsheet")
	batchCmd.Flags().StringVar(&batchSheetName, "sheet", "emails", "sheet name holding the emails")
	batchCmd.Flags().StringVar(&batchOutPath, "out", "", "write the results workbook here after the batch")
	rootCmd.AddCommand(batchCmd)
}
