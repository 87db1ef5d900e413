package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderdesk-cli/internal/catalog"
	"github.com/sells-group/orderdesk-cli/internal/ledger"
	"github.com/sells-group/orderdesk-cli/internal/model"
	"github.com/sells-group/orderdesk-cli/internal/promo"
)

func testLedger(products []*model.Product) *ledger.Ledger {
	return ledger.New(catalog.NewIndex(products), ledger.DefaultConfig())
}

func resolved(p *model.Product, qty int) model.ResolvedMention {
	m := model.Mention{ProductID: p.ID, Quantity: qty}
	return model.ResolvedMention{
		Mention: m,
		Candidates: []model.Candidate{
			{Product: p, Confidence: 1.0, Method: model.MethodExactID, Mention: m},
		},
	}
}

func TestAssemble_AllInStock(t *testing.T) {
	boots := &model.Product{ID: "CBT8901", Name: "Chelsea Boots", Category: "Footwear", Price: 89.00, Stock: 10}
	scarf := &model.Product{ID: "VBT2345", Name: "Versatile Scarf", Category: "Accessories", Price: 39.00, Stock: 5}
	led := testLedger([]*model.Product{boots, scarf})
	a := New(led, nil)

	order, err := a.Assemble("E001", model.ResolutionSet{
		Resolved: []model.ResolvedMention{resolved(boots, 2), resolved(scarf, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusCreated, order.Status)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, model.LineStatusCreated, order.Lines[0].Status)
	assert.Equal(t, 178.00, order.Lines[0].TotalPrice)
	assert.Equal(t, 217.00, order.TotalPrice)
	assert.Equal(t, 0.00, order.TotalDiscount)
	assert.True(t, order.StockUpdated)

	// Stock actually moved.
	chk, err := led.CheckStock("CBT8901", 1)
	require.NoError(t, err)
	assert.Equal(t, 8, chk.OnHand)
}

func TestAssemble_PartialWithAlternatives(t *testing.T) {
	gone := &model.Product{ID: "RSG8901", Name: "Retro Sunglasses", Category: "Accessories", Price: 26.10, Stock: 0}
	alt := &model.Product{ID: "SGL1234", Name: "Sleek Sunglasses", Category: "Accessories", Price: 28.00, Stock: 4}
	scarf := &model.Product{ID: "VBT2345", Name: "Versatile Scarf", Category: "Accessories", Price: 39.00, Stock: 5}
	led := testLedger([]*model.Product{gone, alt, scarf})
	a := New(led, nil)

	order, err := a.Assemble("E002", model.ResolutionSet{
		Resolved: []model.ResolvedMention{resolved(gone, 1), resolved(scarf, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPartial, order.Status)
	require.Len(t, order.Lines, 2)

	oos := order.Lines[0]
	assert.Equal(t, model.LineStatusOutOfStock, oos.Status)
	assert.Equal(t, 0.00, oos.TotalPrice)
	assert.Equal(t, 0, oos.StockOnHand)
	require.NotEmpty(t, oos.Alternatives)
	assert.Equal(t, "SGL1234", oos.Alternatives[0].Product.ID)

	// Only the fulfilled line contributes to the total.
	assert.Equal(t, 39.00, order.TotalPrice)
	assert.True(t, order.StockUpdated)
}

func TestAssemble_AllOutOfStock(t *testing.T) {
	gone := &model.Product{ID: "A", Name: "A", Category: "c", Price: 10, Stock: 0}
	led := testLedger([]*model.Product{gone})
	a := New(led, nil)

	order, err := a.Assemble("E003", model.ResolutionSet{
		Resolved: []model.ResolvedMention{resolved(gone, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusOutOfStock, order.Status)
	assert.Equal(t, 0.00, order.TotalPrice)
	assert.False(t, order.StockUpdated)
}

func TestAssemble_NothingResolved(t *testing.T) {
	led := testLedger(nil)
	a := New(led, nil)

	vague := model.Mention{Description: "that popular item from your spring collection"}
	order, err := a.Assemble("E004", model.ResolutionSet{Unresolved: []model.Mention{vague}})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusNoValidProducts, order.Status)
	assert.Empty(t, order.Lines)
	require.Len(t, order.Unresolved, 1)
	assert.Equal(t, vague.Description, order.Unresolved[0].Description)
	assert.False(t, order.StockUpdated)
}

func TestAssemble_QuantityExceedsStock(t *testing.T) {
	p := &model.Product{ID: "A", Name: "A", Category: "c", Price: 10, Stock: 3}
	led := testLedger([]*model.Product{p})
	a := New(led, nil)

	order, err := a.Assemble("E005", model.ResolutionSet{
		Resolved: []model.ResolvedMention{resolved(p, 5)},
	})
	require.NoError(t, err)

	require.Len(t, order.Lines, 1)
	assert.Equal(t, model.LineStatusOutOfStock, order.Lines[0].Status)
	assert.Equal(t, 3, order.Lines[0].StockOnHand)

	// Partial reservations never happen; stock is untouched.
	chk, err := led.CheckStock("A", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, chk.OnHand)
}

func TestAssemble_PromotionsApplyAfterReservation(t *testing.T) {
	p := &model.Product{ID: "CBT8901", Name: "Chelsea Boots", Category: "Footwear", Price: 20.00, Stock: 10}
	led := testLedger([]*model.Product{p})
	rules := []promo.Rule{{
		Description: "Buy 2+, get 15% off",
		Conditions:  promo.Conditions{MinQuantity: 2},
		Effects:     promo.Effects{Discount: &promo.Discount{Type: promo.DiscountPercentage, Amount: 15}},
	}}
	a := New(led, rules)

	order, err := a.Assemble("E006", model.ResolutionSet{
		Resolved: []model.ResolvedMention{resolved(p, 3)},
	})
	require.NoError(t, err)

	require.Len(t, order.Lines, 1)
	assert.Equal(t, 17.00, order.Lines[0].UnitPrice)
	assert.Equal(t, 51.00, order.Lines[0].TotalPrice)
	assert.Equal(t, 51.00, order.TotalPrice)
	assert.Equal(t, 9.00, order.TotalDiscount)
	assert.True(t, order.Lines[0].PromotionApplied)
}

func TestAssemble_DefaultQuantityIsOne(t *testing.T) {
	p := &model.Product{ID: "A", Name: "A", Category: "c", Price: 10, Stock: 5}
	led := testLedger([]*model.Product{p})
	a := New(led, nil)

	order, err := a.Assemble("E007", model.ResolutionSet{
		Resolved: []model.ResolvedMention{resolved(p, 0)},
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 1, order.Lines[0].Quantity)
	assert.Equal(t, 10.00, order.TotalPrice)
}
