package promo

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DiscountType selects how a discount effect changes the price.
type DiscountType string

const (
	DiscountPercentage     DiscountType = "percentage"
	DiscountFixed          DiscountType = "fixed"
	DiscountHalfSecondUnit DiscountType = "half_price_second_unit"
)

// Conditions gate when a rule fires. At least one must be set.
type Conditions struct {
	// MinQuantity requires the line quantity to reach a threshold.
	MinQuantity int `yaml:"min_quantity,omitempty"`
	// AppliesEvery scopes the effect to every Nth unit of the line.
	AppliesEvery int `yaml:"applies_every,omitempty"`
	// ProductCombination requires all listed product ids to appear as
	// created lines in the same order.
	ProductCombination []string `yaml:"product_combination,omitempty"`
}

func (c Conditions) empty() bool {
	return c.MinQuantity <= 0 && c.AppliesEvery <= 0 && len(c.ProductCombination) == 0
}

// Discount describes a price reduction. ProductID, when set, targets another
// line in the order instead of the triggering line.
type Discount struct {
	Type      DiscountType `yaml:"type"`
	Amount    float64      `yaml:"amount,omitempty"`
	ProductID string       `yaml:"product_id,omitempty"`
}

// Effects are applied when a rule's conditions hold. At least one must be
// set. At most one discount is ever applied per line; free items and free
// gifts stack independently.
type Effects struct {
	Discount  *Discount `yaml:"apply_discount,omitempty"`
	FreeItems int       `yaml:"free_items,omitempty"`
	FreeGift  string    `yaml:"free_gift,omitempty"`
}

func (e Effects) empty() bool {
	return e.Discount == nil && e.FreeItems <= 0 && e.FreeGift == ""
}

// Rule is one declarative promotion. Rules are configuration: loaded once,
// immutable for the rest of the run.
type Rule struct {
	Description string     `yaml:"description"`
	Conditions  Conditions `yaml:"conditions"`
	Effects     Effects    `yaml:"effects"`
}

// Validate rejects rules with no conditions, no effects, or a malformed
// discount. Called at load time so bad configuration never reaches request
// processing.
func (r Rule) Validate() error {
	if r.Conditions.empty() {
		return eris.Errorf("promo: rule %q has no conditions", r.Description)
	}
	if r.Effects.empty() {
		return eris.Errorf("promo: rule %q has no effects", r.Description)
	}
	if d := r.Effects.Discount; d != nil {
		switch d.Type {
		case DiscountPercentage:
			if d.Amount <= 0 || d.Amount > 100 {
				return eris.Errorf("promo: rule %q percentage out of range: %v", r.Description, d.Amount)
			}
		case DiscountFixed:
			if d.Amount <= 0 {
				return eris.Errorf("promo: rule %q fixed amount must be positive", r.Description)
			}
		case DiscountHalfSecondUnit:
			// No amount needed.
		default:
			return eris.Errorf("promo: rule %q has unknown discount type %q", r.Description, d.Type)
		}
	}
	return nil
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// Load reads and validates a promotion rules file. An empty rule set is
// valid; an invalid rule is not.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "promo: read rules file")
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrap(err, "promo: unmarshal rules")
	}

	for _, r := range rf.Rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return rf.Rules, nil
}
