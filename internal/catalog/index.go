package catalog

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// Embedder produces embedding vectors for texts. Satisfied by embed.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbeddingCache persists product embeddings across runs so catalog loads
// don't re-bill the embeddings oracle. Satisfied by store.Store.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, productID, embedModel string) ([]float64, error)
	SetEmbedding(ctx context.Context, productID, embedModel string, vector []float64) error
}

// Filters restricts nearest-neighbor search results.
type Filters struct {
	Category string
	Season   string
}

// Scored pairs a product with its similarity to a query.
type Scored struct {
	Product    *model.Product
	Similarity float64
}

// Index holds the loaded catalog and supports exact, name, and semantic
// lookup. Read-only after load; product stock is mutated only through the
// stock ledger, which shares these records.
type Index struct {
	products []*model.Product
	byID     map[string]*model.Product
	byName   map[string]*model.Product

	embedder   Embedder
	embedModel string
	vectors    map[string][]float64
}

// NewIndex builds an index over the given products. Catalog order is
// preserved for deterministic iteration.
func NewIndex(products []*model.Product) *Index {
	idx := &Index{
		products: products,
		byID:     make(map[string]*model.Product, len(products)),
		byName:   make(map[string]*model.Product, len(products)),
		vectors:  make(map[string][]float64),
	}
	for _, p := range products {
		idx.byID[p.ID] = p
		idx.byName[NormalizeName(p.Name)] = p
	}
	return idx
}

// Products returns the catalog in stable load order.
func (idx *Index) Products() []*model.Product {
	return idx.products
}

// Len returns the number of catalog entries.
func (idx *Index) Len() int {
	return len(idx.products)
}

// LookupByID returns the product with the given id, or nil.
func (idx *Index) LookupByID(id string) *model.Product {
	return idx.byID[id]
}

// lookupNameSimilarityFloor is the minimum similarity for a tolerant name
// match when no exact normalized match exists.
const lookupNameSimilarityFloor = 0.85

// LookupByName returns the product whose name matches, tolerating case,
// pluralization, and minor spelling variance. Returns nil when nothing is
// close enough.
func (idx *Index) LookupByName(name string) *model.Product {
	if p, ok := idx.byName[NormalizeName(name)]; ok {
		return p
	}

	var best *model.Product
	bestSim := 0.0
	for _, p := range idx.products {
		sim := NameSimilarity(name, p.Name)
		if sim > bestSim {
			best, bestSim = p, sim
		}
	}
	if bestSim >= lookupNameSimilarityFloor {
		return best
	}
	return nil
}

// BuildEmbeddings computes an embedding for every product description,
// reusing cached vectors where available. The index keeps the embedder for
// query-time embedding in NearestByDescription.
func (idx *Index) BuildEmbeddings(ctx context.Context, embedder Embedder, cache EmbeddingCache, embedModel string) error {
	idx.embedder = embedder
	idx.embedModel = embedModel

	var missing []*model.Product
	for _, p := range idx.products {
		if cache != nil {
			vec, err := cache.GetEmbedding(ctx, p.ID, embedModel)
			if err != nil {
				zap.L().Warn("catalog: embedding cache read failed",
					zap.String("product_id", p.ID),
					zap.Error(err),
				)
			}
			if len(vec) > 0 {
				idx.vectors[p.ID] = vec
				continue
			}
		}
		missing = append(missing, p)
	}

	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, p := range missing {
		texts[i] = embeddingText(p)
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	for i, p := range missing {
		if i >= len(vecs) {
			break
		}
		idx.vectors[p.ID] = vecs[i]
		if cache != nil {
			if cacheErr := cache.SetEmbedding(ctx, p.ID, embedModel, vecs[i]); cacheErr != nil {
				zap.L().Warn("catalog: embedding cache write failed",
					zap.String("product_id", p.ID),
					zap.Error(cacheErr),
				)
			}
		}
	}

	zap.L().Info("catalog: embeddings built",
		zap.Int("cached", len(idx.products)-len(missing)),
		zap.Int("computed", len(missing)),
		zap.String("model", embedModel),
	)
	return nil
}

// embeddingText is the text embedded for a product: name, category, and
// description together so vague customer phrasing can land on any of them.
func embeddingText(p *model.Product) string {
	return p.Name + ". " + p.Category + ". " + p.Description
}

// NearestByDescription embeds the query text and returns the k most similar
// catalog entries by cosine similarity, optionally filtered by category and
// season. Returns an empty slice when embeddings are not built or nothing
// passes the filters; absence is a normal outcome.
func (idx *Index) NearestByDescription(ctx context.Context, text string, k int, filters *Filters) ([]Scored, error) {
	if idx.embedder == nil || len(idx.vectors) == 0 {
		return nil, nil
	}

	qvecs, err := idx.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(qvecs) == 0 {
		return nil, nil
	}
	qvec := qvecs[0]

	var scored []Scored
	for _, p := range idx.products {
		if filters != nil {
			if filters.Category != "" && !strEqualFold(p.Category, filters.Category) {
				continue
			}
			if filters.Season != "" && !p.InSeason(filters.Season) {
				continue
			}
		}
		vec, ok := idx.vectors[p.ID]
		if !ok {
			continue
		}
		scored = append(scored, Scored{Product: p, Similarity: cosine(qvec, vec)})
	}

	// Equal similarity breaks ties by product id so ranking is reproducible.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Product.ID < scored[j].Product.ID
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func strEqualFold(a, b string) bool {
	return foldCaser.String(a) == foldCaser.String(b)
}

// cosine computes cosine similarity between two vectors. Mismatched or zero
// vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
