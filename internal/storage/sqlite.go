package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	_ "modernc.org/sqlite" // Pure Go driver, CGO-free, compatible with CGO_ENABLED=0
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode so history reads never block a batch run's writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS generations (
        id          TEXT PRIMARY KEY,
        name        TEXT NOT NULL,
        description TEXT NOT NULL,
        params      TEXT NOT NULL,
        prompt      TEXT NOT NULL,
        output      TEXT NOT NULL,
        error       TEXT NOT NULL DEFAULT '',
        created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
        duration_ms INTEGER,
        status      TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
    `
	_, err := db.Exec(schema)
	return err
}

// encodeParams stores the request parameters as one JSON document.
func encodeParams(record *GenerationRecord) (string, error) {
	params := "{}"
	var err error
	if params, err = sjson.Set(params, "backend", record.Backend); err != nil {
		return "", err
	}
	if params, err = sjson.Set(params, "model", record.Model); err != nil {
		return "", err
	}
	if params, err = sjson.Set(params, "temperature", record.Temperature); err != nil {
		return "", err
	}
	return params, nil
}

func (r *SQLiteRepository) SaveGeneration(ctx context.Context, record *GenerationRecord) error {
	params, err := encodeParams(record)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
        INSERT INTO generations (id, name, description, params, prompt, output, error, duration_ms, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, record.ID, record.Name, record.Description, params, record.Prompt, record.Output,
		record.Error, record.DurationMs, record.Status, record.CreatedAt)
	return err
}

func (r *SQLiteRepository) GetGeneration(ctx context.Context, id string) (*GenerationRecord, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, description, params, prompt, output, error, created_at, duration_ms, status
        FROM generations WHERE id = ?
    `, id)
	return scanGeneration(row)
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]*GenerationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, description, params, prompt, output, error, created_at, duration_ms, status
        FROM generations
        ORDER BY created_at DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*GenerationRecord
	for rows.Next() {
		record, err := scanGeneration(rows)
		if err != nil {
			slog.Warn("scan generation failed", "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Scanner interface to support both Row and Rows
type Scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(s Scanner) (*GenerationRecord, error) {
	var rec GenerationRecord
	var params string
	var createdAt time.Time

	if err := s.Scan(&rec.ID, &rec.Name, &rec.Description, &params, &rec.Prompt, &rec.Output,
		&rec.Error, &createdAt, &rec.DurationMs, &rec.Status); err != nil {
		return nil, err
	}

	if !gjson.Valid(params) {
		return nil, fmt.Errorf("invalid params for %s", rec.ID)
	}
	p := gjson.Parse(params)
	rec.Backend = p.Get("backend").String()
	rec.Model = p.Get("model").String()
	rec.Temperature = p.Get("temperature").Float()
	rec.CreatedAt = createdAt

	return &rec, nil
}
