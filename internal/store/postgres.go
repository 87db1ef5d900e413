package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/orderdesk-cli/internal/db"
	"github.com/sells-group/orderdesk-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, email, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_result": `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, email, status, result, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_stage":      `INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_stage":    `UPDATE run_stages SET status = $1, result = $2 WHERE id = $3`,
	"get_embedding":     `SELECT vector FROM embeddings WHERE product_id = $1 AND model = $2`,
	"set_embedding":     `INSERT INTO embeddings (product_id, model, vector, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (product_id, model) DO UPDATE SET vector = $3, created_at = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests use this with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email      JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_stages (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS request_rows (
	request_id TEXT PRIMARY KEY,
	category   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_line_rows (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	quantity   INTEGER NOT NULL,
	status     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	product_id TEXT NOT NULL,
	model      TEXT NOT NULL,
	vector     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (product_id, model)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_order_line_rows_request_id ON order_line_rows(request_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, email model.Email) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	emailJSON, err := json.Marshal(email)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal email")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, email, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, emailJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Email:     email,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var emailJSON []byte
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, email, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &emailJSON, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(emailJSON, &r.Email); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal email")
	}
	if resultNull != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, email, status, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.RequestID != "" {
		query += fmt.Sprintf(` AND email->>'request_id' = $%d`, argIdx)
		args = append(args, filter.RequestID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var emailJSON []byte
		var resultNull *[]byte

		if err := rows.Scan(&r.ID, &emailJSON, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(emailJSON, &r.Email); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal email")
		}
		if resultNull != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(*resultNull, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.StageStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert stage for run %s", runID)
	}

	return &model.RunStage{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.StageStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE run_stages SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, stageID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete stage %s", stageID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("stage not found: %s", stageID)
	}
	return nil
}

func (s *PostgresStore) SaveRequestRow(ctx context.Context, row model.RequestRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO request_rows (request_id, category) VALUES ($1, $2)
		 ON CONFLICT (request_id) DO UPDATE SET category = $2`,
		row.RequestID, string(row.Category),
	)
	return eris.Wrap(err, "postgres: save request row")
}

func (s *PostgresStore) SaveOrderLineRows(ctx context.Context, rows []model.OrderLineRow) error {
	if len(rows) == 0 {
		return nil
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM order_line_rows WHERE request_id = $1`, rows[0].RequestID,
	); err != nil {
		return eris.Wrap(err, "postgres: clear order line rows")
	}

	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		copyRows[i] = []any{uuid.New().String(), r.RequestID, r.ProductID, r.Quantity, string(r.Status)}
	}
	_, err := db.CopyFrom(ctx, s.pool, "order_line_rows",
		[]string{"id", "request_id", "product_id", "quantity", "status"}, copyRows)
	return eris.Wrap(err, "postgres: save order line rows")
}

func (s *PostgresStore) ListRequestRows(ctx context.Context) ([]model.RequestRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT request_id, category FROM request_rows ORDER BY request_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list request rows")
	}
	defer rows.Close()

	var out []model.RequestRow
	for rows.Next() {
		var r model.RequestRow
		if err := rows.Scan(&r.RequestID, &r.Category); err != nil {
			return nil, eris.Wrap(err, "postgres: scan request row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list request rows iterate")
}

func (s *PostgresStore) ListOrderLineRows(ctx context.Context) ([]model.OrderLineRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT request_id, product_id, quantity, status FROM order_line_rows ORDER BY request_id, product_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list order line rows")
	}
	defer rows.Close()

	var out []model.OrderLineRow
	for rows.Next() {
		var r model.OrderLineRow
		if err := rows.Scan(&r.RequestID, &r.ProductID, &r.Quantity, &r.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order line row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list order line rows iterate")
}

func (s *PostgresStore) GetEmbedding(ctx context.Context, productID, embedModel string) ([]float64, error) {
	var vectorJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT vector FROM embeddings WHERE product_id = $1 AND model = $2`,
		productID, embedModel,
	).Scan(&vectorJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get embedding")
	}

	var vec []float64
	if err := json.Unmarshal(vectorJSON, &vec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal embedding")
	}
	return vec, nil
}

func (s *PostgresStore) SetEmbedding(ctx context.Context, productID, embedModel string, vector []float64) error {
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal embedding")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO embeddings (product_id, model, vector, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (product_id, model) DO UPDATE SET vector = $3, created_at = $4`,
		productID, embedModel, vectorJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set embedding")
}
