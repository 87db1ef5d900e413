package resolver

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/catalog"
	"github.com/sells-group/orderdesk-cli/internal/model"
)

// Config tunes the resolution cascade.
type Config struct {
	FuzzyNameThreshold float64 `mapstructure:"fuzzy_name_threshold"`
	SemanticTopK       int     `mapstructure:"semantic_top_k"`
	ConfidenceFloor    float64 `mapstructure:"confidence_floor"`
}

// DefaultConfig returns the standard cascade thresholds.
func DefaultConfig() Config {
	return Config{
		FuzzyNameThreshold: 0.8,
		SemanticTopK:       5,
		ConfidenceFloor:    0.3,
	}
}

// Resolver converts product mentions into ranked catalog candidates via a
// strict three-tier cascade: exact id, fuzzy name, semantic search. Each
// tier runs only when the prior tier yields nothing.
type Resolver struct {
	idx *catalog.Index
	cfg Config
}

// New creates a resolver over the catalog index.
func New(idx *catalog.Index, cfg Config) *Resolver {
	if cfg.FuzzyNameThreshold <= 0 {
		cfg.FuzzyNameThreshold = 0.8
	}
	if cfg.SemanticTopK <= 0 {
		cfg.SemanticTopK = 5
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = 0.3
	}
	return &Resolver{idx: idx, cfg: cfg}
}

// Resolve runs the cascade for one mention. An empty result means the
// mention is unresolved; that is a normal outcome, not an error. Candidates
// are ordered by non-increasing confidence, with equal confidence broken by
// product id ascending.
func (r *Resolver) Resolve(ctx context.Context, mention model.Mention) ([]model.Candidate, error) {
	// Tier 1: exact id. A hit short-circuits the cascade.
	if mention.ProductID != "" {
		if p := r.idx.LookupByID(mention.ProductID); p != nil {
			return []model.Candidate{{
				Product:    p,
				Confidence: 1.0,
				Method:     model.MethodExactID,
				Mention:    mention,
			}}, nil
		}
		zap.L().Debug("resolver: id not in catalog, falling through",
			zap.String("product_id", mention.ProductID),
		)
	}

	// Tier 2: fuzzy name.
	if mention.Name != "" {
		if c := r.fuzzyName(mention); c != nil {
			return []model.Candidate{*c}, nil
		}
	}

	// Tier 3: semantic search over the composite query.
	return r.semantic(ctx, mention)
}

// fuzzyName scores the mention's name against every catalog name and
// accepts the best match at or above the threshold. Equal scores resolve to
// the lower product id.
func (r *Resolver) fuzzyName(mention model.Mention) *model.Candidate {
	var best *model.Product
	bestSim := 0.0
	for _, p := range r.idx.Products() {
		sim := catalog.NameSimilarity(mention.Name, p.Name)
		if sim > bestSim || (sim == bestSim && best != nil && sim > 0 && p.ID < best.ID) {
			best, bestSim = p, sim
		}
	}
	if best == nil || bestSim < r.cfg.FuzzyNameThreshold {
		return nil
	}
	return &model.Candidate{
		Product:    best,
		Confidence: bestSim,
		Method:     model.MethodFuzzyName,
		Mention:    mention,
	}
}

// semantic retrieves the top-k nearest catalog entries for the composite
// query and keeps those at or above the confidence floor.
func (r *Resolver) semantic(ctx context.Context, mention model.Mention) ([]model.Candidate, error) {
	query := compositeQuery(mention)
	if query == "" {
		return nil, nil
	}

	scored, err := r.idx.NearestByDescription(ctx, query, r.cfg.SemanticTopK, nil)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: semantic search")
	}

	var out []model.Candidate
	for _, s := range scored {
		conf := clamp01(s.Similarity)
		if conf < r.cfg.ConfidenceFloor {
			continue
		}
		out = append(out, model.Candidate{
			Product:    s.Product,
			Confidence: conf,
			Method:     model.MethodSemanticSearch,
			Mention:    mention,
		})
	}
	return out, nil
}

// compositeQuery joins the mention's free text, name, and category hint into
// one retrieval query.
func compositeQuery(m model.Mention) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{m.Description, m.Name, m.Category} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ResolveAll resolves each mention independently and splits the results into
// resolved and unresolved sets. A tier failure for one mention does not stop
// the rest; the failed mention lands in the unresolved set and the first
// error is returned alongside the partial result.
func (r *Resolver) ResolveAll(ctx context.Context, mentions []model.Mention) (model.ResolutionSet, error) {
	var set model.ResolutionSet
	var firstErr error

	for _, m := range mentions {
		candidates, err := r.Resolve(ctx, m)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			zap.L().Warn("resolver: mention resolution failed",
				zap.String("description", m.Description),
				zap.Error(err),
			)
			set.Unresolved = append(set.Unresolved, m)
			continue
		}
		if len(candidates) == 0 {
			set.Unresolved = append(set.Unresolved, m)
			continue
		}
		set.Resolved = append(set.Resolved, model.ResolvedMention{
			Mention:    m,
			Candidates: candidates,
		})
	}

	return set, firstErr
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
