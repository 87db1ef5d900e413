package promo

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// Apply evaluates every rule against the order lines and returns the priced
// lines together with the total discount across them. Input lines are not
// mutated. Evaluation is deterministic: rules run in declaration order,
// lines in order, and at most one discount effect ever lands on a line (the
// first matching rule wins). Free-item and free-gift effects stack
// independently of discounts.
func Apply(lines []model.OrderLine, rules []Rule) ([]model.OrderLine, float64) {
	out := make([]model.OrderLine, len(lines))
	copy(out, lines)

	discounted := make([]bool, len(out))

	for _, rule := range rules {
		for i := range out {
			line := &out[i]
			if line.Status != model.LineStatusCreated || line.Quantity <= 0 {
				continue
			}
			qualifying, ok := qualifies(*line, out, rule.Conditions)
			if !ok {
				continue
			}
			applyEffects(out, discounted, i, qualifying, rule)
		}
	}

	total := 0.0
	for _, l := range out {
		if l.Status != model.LineStatusCreated {
			continue
		}
		total += l.BasePrice*float64(l.Quantity) - l.TotalPrice
	}
	return out, round2(total)
}

// qualifies reports whether the rule's conditions hold for the line, and how
// many units of the line the effects apply to. Without applies_every, every
// unit qualifies.
func qualifies(line model.OrderLine, all []model.OrderLine, c Conditions) (int, bool) {
	qualifying := line.Quantity

	if c.MinQuantity > 0 && line.Quantity < c.MinQuantity {
		return 0, false
	}
	if c.AppliesEvery > 0 {
		qualifying = line.Quantity / c.AppliesEvery
		if qualifying == 0 {
			return 0, false
		}
	}
	if len(c.ProductCombination) > 0 {
		inCombo := false
		for _, id := range c.ProductCombination {
			if id == line.ProductID {
				inCombo = true
			}
			found := false
			for _, l := range all {
				if l.ProductID == id && l.Status == model.LineStatusCreated {
					found = true
					break
				}
			}
			if !found {
				return 0, false
			}
		}
		// A combination rule only fires from a line that is part of the
		// combination, otherwise every unrelated line would trigger it.
		if !inCombo {
			return 0, false
		}
	}
	return qualifying, true
}

// applyEffects mutates the target line(s) for one fired rule. trigger is the
// index of the line whose conditions matched; a discount with an explicit
// product id may land on a different line.
func applyEffects(lines []model.OrderLine, discounted []bool, trigger, qualifying int, rule Rule) {
	line := &lines[trigger]

	if d := rule.Effects.Discount; d != nil {
		ti := trigger
		if d.ProductID != "" {
			ti = -1
			for i := range lines {
				if lines[i].ProductID == d.ProductID && lines[i].Status == model.LineStatusCreated {
					ti = i
					break
				}
			}
		}
		if ti >= 0 && !discounted[ti] {
			target := &lines[ti]
			scope := qualifying
			if ti != trigger {
				scope = target.Quantity
			}
			reduction := discountReduction(*target, *d, scope)
			if reduction > 0 {
				target.TotalPrice = round2(target.TotalPrice - reduction)
				if target.TotalPrice < 0 {
					target.TotalPrice = 0
				}
				target.UnitPrice = round2(target.TotalPrice / float64(target.Quantity))
				target.PromotionApplied = true
				target.PromotionDescription = appendNote(target.PromotionDescription, rule.Description)
				discounted[ti] = true

				zap.L().Debug("promo: discount applied",
					zap.String("product_id", target.ProductID),
					zap.String("rule", rule.Description),
					zap.Float64("reduction", reduction),
				)
			}
		}
	}

	if n := rule.Effects.FreeItems; n > 0 {
		free := n
		if rule.Conditions.AppliesEvery > 0 {
			free = n * qualifying
		}
		if free > line.Quantity {
			free = line.Quantity
		}
		line.TotalPrice = round2(line.TotalPrice - float64(free)*line.UnitPrice)
		if line.TotalPrice < 0 {
			line.TotalPrice = 0
		}
		line.UnitPrice = round2(line.TotalPrice / float64(line.Quantity))
		line.PromotionApplied = true
		line.PromotionDescription = appendNote(line.PromotionDescription,
			fmt.Sprintf("%s (%d free)", rule.Description, free))
	}

	if g := rule.Effects.FreeGift; g != "" {
		line.PromotionApplied = true
		line.PromotionDescription = appendNote(line.PromotionDescription,
			fmt.Sprintf("%s (free gift: %s)", rule.Description, g))
	}
}

// discountReduction computes the price reduction for one discount effect over
// the given number of qualifying units, priced at the line's base price.
func discountReduction(line model.OrderLine, d Discount, units int) float64 {
	if units > line.Quantity {
		units = line.Quantity
	}
	switch d.Type {
	case DiscountPercentage:
		return round2(line.BasePrice * d.Amount / 100 * float64(units))
	case DiscountFixed:
		per := d.Amount
		if per > line.BasePrice {
			per = line.BasePrice
		}
		return round2(per * float64(units))
	case DiscountHalfSecondUnit:
		pairs := units / 2
		return round2(line.BasePrice * 0.5 * float64(pairs))
	default:
		return 0
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
