package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/assembler"
	"github.com/sells-group/orderdesk-cli/internal/catalog"
	"github.com/sells-group/orderdesk-cli/internal/ledger"
	"github.com/sells-group/orderdesk-cli/internal/promo"
	"github.com/sells-group/orderdesk-cli/internal/resolver"
	"github.com/sells-group/orderdesk-cli/internal/store"
	"github.com/sells-group/orderdesk-cli/internal/workflow"
	"github.com/sells-group/orderdesk-cli/pkg/embed"
	"github.com/sells-group/orderdesk-cli/pkg/oracle"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "orderdesk.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// pipelineEnv bundles everything a processing command needs. The ledger is
// shared so concurrent emails contend on real stock.
type pipelineEnv struct {
	Store  store.Store
	Index  *catalog.Index
	Ledger *ledger.Ledger
	Router *workflow.Router
}

func (e *pipelineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initPipeline wires the full stack: store, catalog, embeddings, resolver,
// ledger, promotions, oracle, router.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	idx, err := loadCatalog(cfg.Catalog.Path, cfg.Catalog.SheetName)
	if err != nil {
		st.Close()
		return nil, err
	}
	zap.L().Info("catalog loaded", zap.Int("products", idx.Len()))

	// Semantic search needs an embeddings key; without one the resolver
	// still runs its exact and fuzzy tiers.
	if cfg.Embed.Key != "" {
		embedder := embed.NewClient(embed.Config{APIKey: cfg.Embed.Key, Model: cfg.Embed.Model})
		if err := idx.BuildEmbeddings(ctx, embedder, st, cfg.Embed.Model); err != nil {
			st.Close()
			return nil, eris.Wrap(err, "build catalog embeddings")
		}
	} else {
		zap.L().Warn("no embeddings key configured; semantic resolution disabled")
	}

	var rules []promo.Rule
	if _, statErr := os.Stat(cfg.Promo.RulesPath); statErr == nil {
		rules, err = promo.Load(cfg.Promo.RulesPath)
		if err != nil {
			st.Close()
			return nil, err
		}
		zap.L().Info("promotion rules loaded", zap.Int("rules", len(rules)))
	}

	oc := oracle.NewClient(oracle.Config{
		APIKey:         cfg.Oracle.Key,
		Model:          cfg.Oracle.Model,
		MaxTokens:      cfg.Oracle.MaxTokens,
		RequestsPerSec: cfg.Oracle.RequestsPerSec,
		Burst:          cfg.Oracle.Burst,
	})

	led := ledger.New(idx, ledger.Config{
		MaxAlternatives: cfg.Ledger.MaxAlternatives,
		PriceBand:       cfg.Ledger.PriceBand,
	})
	res := resolver.New(idx, resolver.Config{
		FuzzyNameThreshold: cfg.Resolver.FuzzyNameThreshold,
		SemanticTopK:       cfg.Resolver.SemanticTopK,
		ConfidenceFloor:    cfg.Resolver.ConfidenceFloor,
	})
	asm := assembler.New(led, rules)

	return &pipelineEnv{
		Store:  st,
		Index:  idx,
		Ledger: led,
		Router: workflow.NewRouter(st, oc, res, asm),
	}, nil
}

// loadCatalog picks the loader by file extension.
func loadCatalog(path, sheetName string) (*catalog.Index, error) {
	if path == "" {
		return nil, eris.New("catalog path is required (ORDERDESK_CATALOG_PATH)")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return catalog.LoadXLSX(path, sheetName)
	default:
		return catalog.Load(path)
	}
}
