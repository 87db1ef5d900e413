package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_stages (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS request_rows (
	request_id TEXT PRIMARY KEY,
	category   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_line_rows (
	id         TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	quantity   INTEGER NOT NULL,
	status     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	product_id TEXT NOT NULL,
	model      TEXT NOT NULL,
	vector     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (product_id, model)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_order_line_rows_request_id ON order_line_rows(request_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, email model.Email) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	emailJSON, err := json.Marshal(email)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal email")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, email, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(emailJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Email:     email,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, email, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.RequestID != "" {
		query += ` AND json_extract(email, '$.request_id') = ?`
		args = append(args, filter.RequestID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.StageStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert stage for run %s", runID)
	}

	return &model.RunStage{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.StageStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_stages SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), stageID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete stage %s", stageID)
	}
	return checkRowsAffected(res, "stage", stageID)
}

func (s *SQLiteStore) SaveRequestRow(ctx context.Context, row model.RequestRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_rows (request_id, category) VALUES (?, ?)
		 ON CONFLICT (request_id) DO UPDATE SET category = excluded.category`,
		row.RequestID, string(row.Category),
	)
	return eris.Wrap(err, "sqlite: save request row")
}

func (s *SQLiteStore) SaveOrderLineRows(ctx context.Context, rows []model.OrderLineRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	// Rows for a request are replaced wholesale so a re-run does not
	// duplicate its lines.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM order_line_rows WHERE request_id = ?`, rows[0].RequestID,
	); err != nil {
		return eris.Wrap(err, "sqlite: clear order line rows")
	}

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_line_rows (id, request_id, product_id, quantity, status) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), r.RequestID, r.ProductID, r.Quantity, string(r.Status),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert order line row")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit order line rows")
}

func (s *SQLiteStore) ListRequestRows(ctx context.Context) ([]model.RequestRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, category FROM request_rows ORDER BY request_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list request rows")
	}
	defer rows.Close()

	var out []model.RequestRow
	for rows.Next() {
		var r model.RequestRow
		if err := rows.Scan(&r.RequestID, &r.Category); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan request row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list request rows iterate")
}

func (s *SQLiteStore) ListOrderLineRows(ctx context.Context) ([]model.OrderLineRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, product_id, quantity, status FROM order_line_rows ORDER BY request_id, product_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list order line rows")
	}
	defer rows.Close()

	var out []model.OrderLineRow
	for rows.Next() {
		var r model.OrderLineRow
		if err := rows.Scan(&r.RequestID, &r.ProductID, &r.Quantity, &r.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order line row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list order line rows iterate")
}

func (s *SQLiteStore) GetEmbedding(ctx context.Context, productID, embedModel string) ([]float64, error) {
	var vectorJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM embeddings WHERE product_id = ? AND model = ?`,
		productID, embedModel,
	).Scan(&vectorJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get embedding")
	}

	var vec []float64
	if err := json.Unmarshal([]byte(vectorJSON), &vec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal embedding")
	}
	return vec, nil
}

func (s *SQLiteStore) SetEmbedding(ctx context.Context, productID, embedModel string, vector []float64) error {
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embeddings (product_id, model, vector, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (product_id, model) DO UPDATE SET vector = excluded.vector, created_at = excluded.created_at`,
		productID, embedModel, string(vectorJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set embedding")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var emailJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &emailJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(emailJSON), &r.Email); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal email")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
