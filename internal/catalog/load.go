package catalog

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// catalogFile is the YAML fixture shape for Load.
type catalogFile struct {
	Products []catalogEntry `yaml:"products"`
}

type catalogEntry struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Seasons     []string `yaml:"seasons"`
	Price       float64  `yaml:"price"`
	Stock       int      `yaml:"stock"`
	Promotion   string   `yaml:"promotion"`
}

// Load reads a YAML catalog file and builds an index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read file")
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal")
	}
	if len(cf.Products) == 0 {
		return nil, eris.Errorf("catalog: no products in %s", path)
	}

	products := make([]*model.Product, 0, len(cf.Products))
	seen := make(map[string]bool, len(cf.Products))
	for _, e := range cf.Products {
		if e.ID == "" {
			return nil, eris.New("catalog: product with empty id")
		}
		if seen[e.ID] {
			return nil, eris.Errorf("catalog: duplicate product id %s", e.ID)
		}
		seen[e.ID] = true
		products = append(products, &model.Product{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			Category:    e.Category,
			Seasons:     e.Seasons,
			Price:       e.Price,
			Stock:       e.Stock,
			Promotion:   e.Promotion,
		})
	}

	return NewIndex(products), nil
}

// xlsxColumns maps header names to column positions. The expected header row
// is: product_id, name, description, category, stock, seasons, price,
// promotion (order-insensitive, extra columns ignored).
type xlsxColumns map[string]int

// LoadXLSX reads a product spreadsheet and builds an index. Seasons are
// comma-separated within their cell.
func LoadXLSX(path, sheetName string) (*Index, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open xlsx")
	}

	sheet, ok := f.Sheet[sheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("catalog: no sheets in %s", path)
		}
		sheet = f.Sheets[0]
	}
	if len(sheet.Rows) < 2 {
		return nil, eris.Errorf("catalog: sheet %s has no data rows", sheet.Name)
	}

	cols := make(xlsxColumns)
	for j, cell := range sheet.Rows[0].Cells {
		cols[strings.ToLower(strings.TrimSpace(cell.String()))] = j
	}
	for _, required := range []string{"product_id", "name", "stock", "price"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("catalog: missing column %q", required)
		}
	}

	var products []*model.Product
	seen := make(map[string]bool)
	for _, row := range sheet.Rows[1:] {
		id := cellAt(row, cols, "product_id")
		if id == "" {
			continue
		}
		if seen[id] {
			return nil, eris.Errorf("catalog: duplicate product id %s", id)
		}
		seen[id] = true

		stock, err := strconv.Atoi(cellAt(row, cols, "stock"))
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: bad stock for %s", id)
		}
		price, err := strconv.ParseFloat(cellAt(row, cols, "price"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: bad price for %s", id)
		}

		var seasons []string
		for _, s := range strings.Split(cellAt(row, cols, "seasons"), ",") {
			if s = strings.TrimSpace(s); s != "" {
				seasons = append(seasons, s)
			}
		}

		products = append(products, &model.Product{
			ID:          id,
			Name:        cellAt(row, cols, "name"),
			Description: cellAt(row, cols, "description"),
			Category:    cellAt(row, cols, "category"),
			Seasons:     seasons,
			Price:       price,
			Stock:       stock,
			Promotion:   cellAt(row, cols, "promotion"),
		})
	}
	if len(products) == 0 {
		return nil, eris.Errorf("catalog: no products in %s", path)
	}

	return NewIndex(products), nil
}

func cellAt(row *xlsx.Row, cols xlsxColumns, name string) string {
	j, ok := cols[name]
	if !ok || j >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[j].String())
}
