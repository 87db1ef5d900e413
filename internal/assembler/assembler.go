package assembler

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/ledger"
	"github.com/sells-group/orderdesk-cli/internal/model"
	"github.com/sells-group/orderdesk-cli/internal/promo"
)

// Assembler turns a resolution set into a priced order. It reserves stock
// through the ledger line by line, suggests alternatives for shortfalls, and
// runs the promotion pass over the created lines last so discounts are never
// computed against stock that did not get reserved.
type Assembler struct {
	ledger *ledger.Ledger
	rules  []promo.Rule
}

// New creates an assembler over a shared ledger and an immutable rule set.
func New(led *ledger.Ledger, rules []promo.Rule) *Assembler {
	return &Assembler{ledger: led, rules: rules}
}

// Assemble builds the order for one request. Every resolved mention becomes
// exactly one line: "created" when the reservation succeeded, "out of stock"
// with alternatives when it did not. Unresolved mentions pass through on the
// order untouched so the responder can ask the customer about them.
func (a *Assembler) Assemble(requestID string, set model.ResolutionSet) (*model.Order, error) {
	order := &model.Order{
		RequestID:  requestID,
		Unresolved: set.Unresolved,
	}

	for _, rm := range set.Resolved {
		best := rm.Best()
		if best == nil {
			order.Unresolved = append(order.Unresolved, rm.Mention)
			continue
		}

		qty := rm.Mention.EffectiveQuantity()
		line, err := a.buildLine(best.Product, rm.Mention, qty)
		if err != nil {
			return nil, err
		}
		if line.Status == model.LineStatusCreated {
			order.StockUpdated = true
		}
		order.Lines = append(order.Lines, line)
	}

	order.Lines, order.TotalDiscount = promo.Apply(order.Lines, a.rules)

	total := 0.0
	for _, l := range order.Lines {
		if l.Status == model.LineStatusCreated {
			total += l.TotalPrice
		}
	}
	order.TotalPrice = round2(total)
	order.Status = model.DeriveOrderStatus(order.Lines)

	zap.L().Info("assembler: order assembled",
		zap.String("request_id", requestID),
		zap.String("status", string(order.Status)),
		zap.Int("lines", len(order.Lines)),
		zap.Float64("total", order.TotalPrice),
	)
	return order, nil
}

// buildLine reserves stock for one product and prices the resulting line.
// Reservation is check-and-decrement in one critical section, so concurrent
// requests for the same product cannot both succeed past the last unit.
func (a *Assembler) buildLine(p *model.Product, mention model.Mention, qty int) (model.OrderLine, error) {
	res, err := a.ledger.Reserve(p.ID, qty)
	if err != nil {
		return model.OrderLine{}, eris.Wrapf(err, "assembler: reserve %s", p.ID)
	}

	line := model.OrderLine{
		ProductID:   p.ID,
		Description: p.Name,
		Quantity:    qty,
		BasePrice:   p.Price,
		UnitPrice:   p.Price,
		StockOnHand: res.OnHand,
	}

	if res.Reserved {
		line.Status = model.LineStatusCreated
		line.TotalPrice = round2(p.Price * float64(qty))
		return line, nil
	}

	line.Status = model.LineStatusOutOfStock
	line.TotalPrice = 0

	alts, err := a.ledger.FindAlternatives(p.ID, 0)
	if err != nil {
		return model.OrderLine{}, eris.Wrapf(err, "assembler: alternatives for %s", p.ID)
	}
	line.Alternatives = alts

	zap.L().Debug("assembler: line out of stock",
		zap.String("product_id", p.ID),
		zap.Int("requested", qty),
		zap.Int("on_hand", res.OnHand),
		zap.Int("alternatives", len(alts)),
	)
	return line, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
