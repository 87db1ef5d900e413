package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// Sheet names in the exported workbook.
const (
	ClassificationSheet = "email-classification"
	OrderStatusSheet    = "order-status"
)

// Column headers are a compatibility contract with downstream consumers:
// exactly these fields, exactly these names, and the literal line status
// strings. Do not add, rename, or reorder columns.
var (
	classificationHeaders = []string{"request id", "category"}
	orderStatusHeaders    = []string{"request id", "product id", "quantity", "status"}
)

// WriteXLSX writes the two-sheet results workbook: one classification row
// per request and one status row per order line.
func WriteXLSX(path string, requests []model.RequestRow, lines []model.OrderLineRow) error {
	f := xlsx.NewFile()

	cls, err := f.AddSheet(ClassificationSheet)
	if err != nil {
		return eris.Wrap(err, "export: add classification sheet")
	}
	writeRow(cls, classificationHeaders...)
	for _, r := range requests {
		writeRow(cls, r.RequestID, string(r.Category))
	}

	ord, err := f.AddSheet(OrderStatusSheet)
	if err != nil {
		return eris.Wrap(err, "export: add order status sheet")
	}
	writeRow(ord, orderStatusHeaders...)
	for _, l := range lines {
		writeRow(ord, l.RequestID, l.ProductID, strconv.Itoa(l.Quantity), string(l.Status))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("export: workbook written",
		zap.String("path", path),
		zap.Int("requests", len(requests)),
		zap.Int("order_lines", len(lines)),
	)
	return nil
}

func writeRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
