package store

import (
	"context"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the order pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, email model.Email) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error)
	CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error

	// Export rows
	SaveRequestRow(ctx context.Context, row model.RequestRow) error
	SaveOrderLineRows(ctx context.Context, rows []model.OrderLineRow) error
	ListRequestRows(ctx context.Context) ([]model.RequestRow, error)
	ListOrderLineRows(ctx context.Context) ([]model.OrderLineRow, error)

	// Embedding cache
	GetEmbedding(ctx context.Context, productID, embedModel string) ([]float64, error)
	SetEmbedding(ctx context.Context, productID, embedModel string, vector []float64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
