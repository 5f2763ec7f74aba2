package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"call-classifier/internal/classification"
	"call-classifier/pkg/logger"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect selects the driver and DDL used by SQLRepository.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

var schemas = map[Dialect]string{
	DialectMySQL: `
		CREATE TABLE IF NOT EXISTS classifications (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			call_id VARCHAR(255) NOT NULL,
			category VARCHAR(64) NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_classifications_call_id (call_id)
		)`,
	DialectSQLite: `
		CREATE TABLE IF NOT EXISTS classifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
}

// SQLRepository stores classifications in MySQL or SQLite. Both dialects
// hand out ids from the database's auto-increment sequence.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLRepository opens a pool for dialect and makes sure the table exists.
func NewSQLRepository(ctx context.Context, dialect Dialect, dsn string) (*SQLRepository, error) {
	if _, ok := schemas[dialect]; !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}
	switch dialect {
	case DialectMySQL:
		// tune pool
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
	case DialectSQLite:
		// a single writer avoids SQLITE_BUSY and keeps ":memory:" on one connection
		db.SetMaxOpenConns(1)
	}

	r := &SQLRepository{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Get().Infow("sql repository initialized", "dialect", dialect)
	return r, nil
}

func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemas[r.dialect]); err != nil {
		return fmt.Errorf("create classifications table: %w", err)
	}
	if r.dialect == DialectSQLite {
		if _, err := r.db.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS idx_classifications_call_id ON classifications (call_id)`); err != nil {
			return fmt.Errorf("create call_id index: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) Create(ctx context.Context, data classification.ClassificationCreate) (*classification.Classification, error) {
	log := logger.Get().With("component", "sql_repository", "dialect", r.dialect)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Errorw("begin transaction failed", "error", err)
		return nil, err
	}

	createdAt := r.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO classifications (call_id, category, created_at) VALUES (?, ?, ?)`,
		data.CallID, string(data.Category), createdAt.UnixMicro(),
	)
	if err != nil {
		_ = tx.Rollback()
		log.Errorw("insert failed", "call_id", data.CallID, "error", err)
		return nil, fmt.Errorf("insert failed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("read inserted id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		log.Errorw("transaction commit failed", "error", err)
		return nil, err
	}

	log.Debugw("classification stored", "classification_id", id, "call_id", data.CallID)
	return &classification.Classification{
		ID:        id,
		CallID:    data.CallID,
		Category:  data.Category,
		CreatedAt: time.UnixMicro(createdAt.UnixMicro()).UTC(),
	}, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*classification.Classification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, call_id, category, created_at FROM classifications WHERE id = ?`, id)
	c, err := scanClassification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query classification %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLRepository) Update(ctx context.Context, c classification.Classification) (*classification.Classification, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE classifications SET call_id = ?, category = ? WHERE id = ?`,
		c.CallID, string(c.Category), c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update classification %d: %w", c.ID, err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update classification %d: %w", c.ID, err)
	}
	// MySQL reports zero affected rows for a no-op update, so the re-read is
	// what tells a missing row apart.
	return r.GetByID(ctx, c.ID)
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete classification %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete classification %d: %w", id, err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *SQLRepository) FindByCallID(ctx context.Context, callID string) ([]classification.Classification, error) {
	out, err := r.query(ctx,
		`SELECT id, call_id, category, created_at FROM classifications WHERE call_id = ? ORDER BY id`, callID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no classifications for call %q: %w", callID, classification.ErrNotFound)
	}
	return out, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]classification.Classification, error) {
	return r.query(ctx, `SELECT id, call_id, category, created_at FROM classifications ORDER BY id`)
}

func (r *SQLRepository) query(ctx context.Context, q string, args ...any) ([]classification.Classification, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}
	defer rows.Close()

	out := []classification.Classification{}
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClassification(s scanner) (*classification.Classification, error) {
	var (
		c         classification.Classification
		category  string
		createdAt int64
	)
	if err := s.Scan(&c.ID, &c.CallID, &category, &createdAt); err != nil {
		return nil, err
	}
	c.Category = classification.Category(category)
	c.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &c, nil
}
