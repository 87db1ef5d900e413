package model

// Email is a single inbound customer message to process.
type Email struct {
	RequestID string `json:"request_id"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
}

// RequestCategory labels what kind of request an email turned out to be.
// These strings appear verbatim in the exported classification sheet.
type RequestCategory string

const (
	CategoryOrderRequest   RequestCategory = "order request"
	CategoryProductInquiry RequestCategory = "product inquiry"
	CategoryUnknown        RequestCategory = "unknown"
)

// Classification is the structured output of the intent-classification oracle.
type Classification struct {
	HasOrder   bool      `json:"has_order"`
	HasInquiry bool      `json:"has_inquiry"`
	Mentions   []Mention `json:"mentions"`
	Inquiries  []string  `json:"inquiries,omitempty"`
}

// Category derives the export category from the detected intent flags.
// Orders win over inquiries when both are present.
func (c Classification) Category() RequestCategory {
	switch {
	case c.HasOrder:
		return CategoryOrderRequest
	case c.HasInquiry:
		return CategoryProductInquiry
	default:
		return CategoryUnknown
	}
}

// Mention is a customer's reference to a product, extracted by the
// classification oracle. Any of ProductID / Name may be empty; Description
// carries whatever free text the customer used.
type Mention struct {
	ProductID   string `json:"product_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Quantity    int    `json:"quantity"`
	Excerpt     string `json:"excerpt,omitempty"`
}

// EffectiveQuantity returns the requested quantity, defaulting to 1 when the
// oracle did not extract an explicit amount.
func (m Mention) EffectiveQuantity() int {
	if m.Quantity <= 0 {
		return 1
	}
	return m.Quantity
}
