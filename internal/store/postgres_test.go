package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, email, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(string(model.RunStatusComplete), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRequestRow_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("E001", "order request").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRequestRow(context.Background(), model.RequestRow{
		RequestID: "E001",
		Category:  model.CategoryOrderRequest,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveOrderLineRows_CopiesAfterClear(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM order_line_rows WHERE request_id = \$1`).
		WithArgs("E001").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"order_line_rows"},
		[]string{"id", "request_id", "product_id", "quantity", "status"}).
		WillReturnResult(2)

	err := s.SaveOrderLineRows(context.Background(), []model.OrderLineRow{
		{RequestID: "E001", ProductID: "CBT8901", Quantity: 2, Status: model.LineStatusCreated},
		{RequestID: "E001", ProductID: "RSG8901", Quantity: 1, Status: model.LineStatusOutOfStock},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveOrderLineRows_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.SaveOrderLineRows(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEmbedding_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vector FROM embeddings`).
		WithArgs("CBT8901", "text-embedding-3-small").
		WillReturnError(pgx.ErrNoRows)

	vec, err := s.GetEmbedding(context.Background(), "CBT8901", "text-embedding-3-small")
	require.NoError(t, err)
	assert.Nil(t, vec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEmbedding_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vector FROM embeddings`).
		WithArgs("CBT8901", "text-embedding-3-small").
		WillReturnRows(pgxmock.NewRows([]string{"vector"}).AddRow([]byte(`[0.1,0.2,0.3]`)))

	vec, err := s.GetEmbedding(context.Background(), "CBT8901", "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetEmbedding_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(product_id, model\)`).
		WithArgs("CBT8901", "text-embedding-3-small", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetEmbedding(context.Background(), "CBT8901", "text-embedding-3-small", []float64{0.1, 0.2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
