package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	email := model.Email{RequestID: "E001", Subject: "Order", Body: "2 pairs of CBT8901 please"}
	run, err := s.CreateRun(ctx, email)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusClassifying))

	result := &model.RunResult{
		Category:    model.CategoryOrderRequest,
		Response:    "Thanks for your order!",
		TotalTokens: 1234,
	}
	require.NoError(t, s.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, model.CategoryOrderRequest, got.Result.Category)
	assert.Equal(t, 1234, got.Result.TotalTokens)
}

func TestSQLiteStore_UpdateMissingRun(t *testing.T) {
	s := newTestSQLite(t)

	err := s.UpdateRunStatus(context.Background(), "nope", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, model.Email{RequestID: "E001", Body: "a"})
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, model.Email{RequestID: "E002", Body: "b"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, r1.ID, model.RunStatusComplete))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)

	byRequest, err := s.ListRuns(ctx, RunFilter{RequestID: "E002"})
	require.NoError(t, err)
	require.Len(t, byRequest, 1)
	assert.Equal(t, "E002", byRequest[0].Email.RequestID)
}

func TestSQLiteStore_Stages(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Email{RequestID: "E001", Body: "a"})
	require.NoError(t, err)

	stage, err := s.CreateStage(ctx, run.ID, "classify")
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusRunning, stage.Status)

	require.NoError(t, s.CompleteStage(ctx, stage.ID, &model.StageResult{
		Name:     "classify",
		Status:   model.StageStatusComplete,
		Duration: 420,
		Usage:    model.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}))

	err = s.CompleteStage(ctx, "missing-stage", &model.StageResult{Status: model.StageStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage not found")
}

func TestSQLiteStore_ExportRows(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRequestRow(ctx, model.RequestRow{RequestID: "E002", Category: model.CategoryProductInquiry}))
	require.NoError(t, s.SaveRequestRow(ctx, model.RequestRow{RequestID: "E001", Category: model.CategoryOrderRequest}))
	// Upsert: re-saving a request replaces its category.
	require.NoError(t, s.SaveRequestRow(ctx, model.RequestRow{RequestID: "E002", Category: model.CategoryOrderRequest}))

	reqs, err := s.ListRequestRows(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "E001", reqs[0].RequestID)
	assert.Equal(t, model.CategoryOrderRequest, reqs[1].Category)

	lines := []model.OrderLineRow{
		{RequestID: "E001", ProductID: "CBT8901", Quantity: 2, Status: model.LineStatusCreated},
		{RequestID: "E001", ProductID: "RSG8901", Quantity: 1, Status: model.LineStatusOutOfStock},
	}
	require.NoError(t, s.SaveOrderLineRows(ctx, lines))
	// Re-saving replaces, never duplicates.
	require.NoError(t, s.SaveOrderLineRows(ctx, lines))

	got, err := s.ListOrderLineRows(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CBT8901", got[0].ProductID)
	assert.Equal(t, model.LineStatusOutOfStock, got[1].Status)
}

func TestSQLiteStore_EmbeddingCache(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	vec, err := s.GetEmbedding(ctx, "CBT8901", "text-embedding-3-small")
	require.NoError(t, err)
	assert.Nil(t, vec)

	want := []float64{0.25, -0.5, 0.125}
	require.NoError(t, s.SetEmbedding(ctx, "CBT8901", "text-embedding-3-small", want))

	vec, err = s.GetEmbedding(ctx, "CBT8901", "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, want, vec)

	// Different model is a separate cache entry.
	vec, err = s.GetEmbedding(ctx, "CBT8901", "text-embedding-3-large")
	require.NoError(t, err)
	assert.Nil(t, vec)
}
