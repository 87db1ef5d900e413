package model

// LineStatus is the fulfillment status of a single order line. The literal
// strings are part of the export contract and must not change.
type LineStatus string

const (
	LineStatusCreated    LineStatus = "created"
	LineStatusOutOfStock LineStatus = "out of stock"
)

// OrderStatus summarizes an order from its line statuses.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusOutOfStock      OrderStatus = "out of stock"
	OrderStatusPartial         OrderStatus = "partially_fulfilled"
	OrderStatusNoValidProducts OrderStatus = "no_valid_products"
)

// Alternative is an in-stock substitute offered for an out-of-stock line.
type Alternative struct {
	Product    *Product `json:"product"`
	Reason     string   `json:"reason"`
	Similarity float64  `json:"similarity"`
}

// OrderLine is one product's quantity, pricing, and fulfillment outcome
// within an order. Frozen once assembly completes.
type OrderLine struct {
	ProductID            string        `json:"product_id"`
	Description          string        `json:"description"`
	Quantity             int           `json:"quantity"`
	BasePrice            float64       `json:"base_price"`
	UnitPrice            float64       `json:"unit_price"`
	TotalPrice           float64       `json:"total_price"`
	Status               LineStatus    `json:"status"`
	StockOnHand          int           `json:"stock_on_hand"`
	PromotionApplied     bool          `json:"promotion_applied"`
	PromotionDescription string        `json:"promotion_description,omitempty"`
	Alternatives         []Alternative `json:"alternatives,omitempty"`
}

// Order is the fulfiller's output for one request.
type Order struct {
	RequestID     string      `json:"request_id"`
	Lines         []OrderLine `json:"lines"`
	Status        OrderStatus `json:"status"`
	TotalPrice    float64     `json:"total_price"`
	TotalDiscount float64     `json:"total_discount"`
	StockUpdated  bool        `json:"stock_updated"`
	Message       string      `json:"message,omitempty"`
	Unresolved    []Mention   `json:"unresolved,omitempty"`
}

// DeriveOrderStatus computes the overall status from line statuses alone.
// No lines at all means no mention produced a usable candidate.
func DeriveOrderStatus(lines []OrderLine) OrderStatus {
	if len(lines) == 0 {
		return OrderStatusNoValidProducts
	}
	created, oos := 0, 0
	for _, l := range lines {
		switch l.Status {
		case LineStatusCreated:
			created++
		case LineStatusOutOfStock:
			oos++
		}
	}
	switch {
	case oos == 0:
		return OrderStatusCreated
	case created == 0:
		return OrderStatusOutOfStock
	default:
		return OrderStatusPartial
	}
}

// RequestRow is one exported classification row per request.
type RequestRow struct {
	RequestID string          `json:"request_id"`
	Category  RequestCategory `json:"category"`
}

// OrderLineRow is one exported status row per order line.
type OrderLineRow struct {
	RequestID string     `json:"request_id"`
	ProductID string     `json:"product_id"`
	Quantity  int        `json:"quantity"`
	Status    LineStatus `json:"status"`
}
