package ledger

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/catalog"
	"github.com/sells-group/orderdesk-cli/internal/model"
)

// Config tunes alternatives search.
type Config struct {
	MaxAlternatives int     `mapstructure:"max_alternatives"`
	PriceBand       float64 `mapstructure:"price_band"`
}

// DefaultConfig returns the standard alternatives settings: up to 3
// suggestions within ±20% of the original price.
func DefaultConfig() Config {
	return Config{MaxAlternatives: 3, PriceBand: 0.2}
}

// StockCheck is the result of a stock sufficiency check.
type StockCheck struct {
	Available bool `json:"available"`
	OnHand    int  `json:"on_hand"`
}

// DecrementResult is the result of a stock decrement.
type DecrementResult struct {
	Success bool `json:"success"`
	NewQty  int  `json:"new_qty"`
}

// Ledger owns all stock mutation for the catalog. It is shared across
// concurrently processed requests; check-and-decrement for a product id is a
// single critical section under that product's lock, so two concurrent
// orders can never both pass the sufficiency check against the same stale
// quantity.
type Ledger struct {
	idx *catalog.Index
	cfg Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over the catalog index.
func New(idx *catalog.Index, cfg Config) *Ledger {
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = 3
	}
	if cfg.PriceBand <= 0 {
		cfg.PriceBand = 0.2
	}
	return &Ledger{
		idx:   idx,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
}

// productLock returns the mutex serializing access to one product id.
func (l *Ledger) productLock(productID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.locks[productID]
	if !ok {
		pl = &sync.Mutex{}
		l.locks[productID] = pl
	}
	return pl
}

// CheckStock reports whether requestedQty is available for the product.
// Unknown product ids return ErrProductNotFound.
func (l *Ledger) CheckStock(productID string, requestedQty int) (StockCheck, error) {
	p := l.idx.LookupByID(productID)
	if p == nil {
		return StockCheck{}, model.ErrProductNotFound
	}

	pl := l.productLock(productID)
	pl.Lock()
	defer pl.Unlock()

	return StockCheck{Available: p.Stock >= requestedQty, OnHand: p.Stock}, nil
}

// Decrement atomically subtracts qty from the product's stock. When qty
// exceeds on-hand the call fails without mutating anything; stock never goes
// negative. Unknown product ids return ErrProductNotFound.
func (l *Ledger) Decrement(productID string, qty int) (DecrementResult, error) {
	p := l.idx.LookupByID(productID)
	if p == nil {
		return DecrementResult{}, model.ErrProductNotFound
	}

	pl := l.productLock(productID)
	pl.Lock()
	defer pl.Unlock()

	if qty > p.Stock {
		return DecrementResult{Success: false, NewQty: p.Stock}, nil
	}
	p.Stock -= qty

	zap.L().Debug("ledger: stock decremented",
		zap.String("product_id", productID),
		zap.Int("qty", qty),
		zap.Int("new_qty", p.Stock),
	)
	return DecrementResult{Success: true, NewQty: p.Stock}, nil
}

// ReserveResult is the combined outcome of a check-and-decrement.
type ReserveResult struct {
	Reserved bool `json:"reserved"`
	OnHand   int  `json:"on_hand"` // stock observed before any decrement
	NewQty   int  `json:"new_qty"`
}

// Reserve checks sufficiency and decrements in one critical section. This is
// the call the assembler uses so that the check and the write cannot be
// interleaved with another request for the same product.
func (l *Ledger) Reserve(productID string, qty int) (ReserveResult, error) {
	p := l.idx.LookupByID(productID)
	if p == nil {
		return ReserveResult{}, model.ErrProductNotFound
	}

	pl := l.productLock(productID)
	pl.Lock()
	defer pl.Unlock()

	onHand := p.Stock
	if qty > onHand {
		return ReserveResult{Reserved: false, OnHand: onHand, NewQty: onHand}, nil
	}
	p.Stock -= qty
	return ReserveResult{Reserved: true, OnHand: onHand, NewQty: p.Stock}, nil
}

// alternative scoring weights: price closeness dominates, season overlap
// refines within the same category.
const (
	priceWeight  = 0.6
	seasonWeight = 0.4
)

// FindAlternatives suggests in-stock substitutes for an out-of-stock
// product: same category, price within the configured band of the original,
// ranked by a composite of price closeness and season overlap. Ties break by
// higher stock, then product id. The original product and zero-stock
// products are never returned. Each candidate's stock is read under that
// product's lock, and the returned alternatives carry a snapshot of the
// product so a later reservation cannot change a reported stock level.
func (l *Ledger) FindAlternatives(productID string, maxResults int) ([]model.Alternative, error) {
	orig := l.idx.LookupByID(productID)
	if orig == nil {
		return nil, model.ErrProductNotFound
	}
	if maxResults <= 0 {
		maxResults = l.cfg.MaxAlternatives
	}

	band := l.cfg.PriceBand * orig.Price
	var alts []model.Alternative
	for _, p := range l.idx.Products() {
		if p.ID == orig.ID {
			continue
		}

		pl := l.productLock(p.ID)
		pl.Lock()
		snap := *p
		pl.Unlock()

		if snap.Stock <= 0 {
			continue
		}
		if snap.Category != orig.Category {
			continue
		}
		diff := snap.Price - orig.Price
		if diff < 0 {
			diff = -diff
		}
		if band > 0 && diff > band {
			continue
		}

		priceCloseness := 1.0
		if band > 0 {
			priceCloseness = 1.0 - diff/band
		}
		score := priceWeight*priceCloseness + seasonWeight*seasonOverlap(orig.Seasons, snap.Seasons)

		alts = append(alts, model.Alternative{
			Product:    &snap,
			Reason:     "same category, similar price",
			Similarity: score,
		})
	}

	sort.SliceStable(alts, func(i, j int) bool {
		if alts[i].Similarity != alts[j].Similarity {
			return alts[i].Similarity > alts[j].Similarity
		}
		if alts[i].Product.Stock != alts[j].Product.Stock {
			return alts[i].Product.Stock > alts[j].Product.Stock
		}
		return alts[i].Product.ID < alts[j].Product.ID
	})

	if len(alts) > maxResults {
		alts = alts[:maxResults]
	}
	return alts, nil
}

// seasonOverlap is the Jaccard overlap of two season sets. Two empty sets
// count as full overlap (both all-season).
func seasonOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	inter := 0
	for _, s := range b {
		if set[s] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
