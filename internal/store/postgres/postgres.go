// Package postgres implements the store interface on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"

	"github.com/quantpipe/pipeline-monitor/internal/models"
	"github.com/quantpipe/pipeline-monitor/internal/store"
	"github.com/quantpipe/pipeline-monitor/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	insertLatencySQL = `
INSERT INTO latency_measurements (stage, start_time, end_time, duration_ms, success, error_message, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (stage, start_time, end_time) DO NOTHING`

	insertThroughputSQL = `
INSERT INTO throughput_measurements (stage, recorded_at, items_processed, window_seconds, throughput_per_second, errors)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (stage, recorded_at) DO NOTHING`

	insertViolationSQL = `
INSERT INTO slo_violations (id, recorded_at, slo_name, status, current_value, target_value, compliance_percentage)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

	selectViolationsSQL = `
SELECT id, recorded_at, slo_name, status, current_value, target_value, compliance_percentage
FROM slo_violations
WHERE recorded_at >= $1
ORDER BY recorded_at DESC
LIMIT $2`

	deleteLatencySQL    = `DELETE FROM latency_measurements WHERE start_time < $1`
	deleteThroughputSQL = `DELETE FROM throughput_measurements WHERE recorded_at < $1`
	deleteViolationsSQL = `DELETE FROM slo_violations WHERE recorded_at < $1`
)

const defaultViolationQueryLimit = 100

// Store persists measurements and violations in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New applies pending migrations, opens a connection pool and verifies
// connectivity with a ping.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := runMigrations(ctx, dsn); err != nil {
		return nil, utils.NewAppError("postgres.New", "apply migrations", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, utils.NewAppError("postgres.New", "create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, utils.NewAppError("postgres.New", "ping database", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SaveLatencyBatch inserts a batch of latency measurements. Rows already
// present are skipped, so re-persisting overlapping snapshots is safe.
func (s *Store) SaveLatencyBatch(ctx context.Context, batch []models.LatencyMeasurement) error {
	if len(batch) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, m := range batch {
		var errMsg *string
		if m.ErrorMessage != "" {
			msg := m.ErrorMessage
			errMsg = &msg
		}
		var metadata []byte
		if len(m.Metadata) > 0 {
			encoded, err := json.Marshal(m.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			metadata = encoded
		}
		b.Queue(insertLatencySQL, string(m.Stage), m.StartTime, m.EndTime, m.DurationMS, m.Success, errMsg, metadata)
	}

	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert latency batch: %w", err)
	}
	return nil
}

// SaveThroughputBatch inserts a batch of throughput measurements, skipping
// rows already present.
func (s *Store) SaveThroughputBatch(ctx context.Context, batch []models.ThroughputMeasurement) error {
	if len(batch) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, m := range batch {
		b.Queue(insertThroughputSQL, string(m.Stage), m.Timestamp, m.ItemsProcessed, m.WindowSeconds, m.RatePerSecond, m.Errors)
	}

	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert throughput batch: %w", err)
	}
	return nil
}

// SaveViolations inserts violation records keyed by their ids.
func (s *Store) SaveViolations(ctx context.Context, violations []models.ViolationRecord) error {
	if len(violations) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, v := range violations {
		b.Queue(insertViolationSQL, v.ID, v.Timestamp, v.SLOName, string(v.Status), v.Current, v.Target, v.Compliance)
	}

	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert violations: %w", err)
	}
	return nil
}

// ViolationsSince returns persisted violations newer than since, newest
// first. A non-positive limit falls back to 100.
func (s *Store) ViolationsSince(ctx context.Context, since time.Time, limit int) ([]models.ViolationRecord, error) {
	if limit <= 0 {
		limit = defaultViolationQueryLimit
	}

	rows, err := s.pool.Query(ctx, selectViolationsSQL, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []models.ViolationRecord
	for rows.Next() {
		var rec models.ViolationRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.SLOName, &status, &rec.Current, &rec.Target, &rec.Compliance); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		rec.Status = models.StatusLevel(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return out, nil
}

// Cleanup deletes measurements and violations older than the cutoff.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Time) error {
	var total int64
	for _, stmt := range []string{deleteLatencySQL, deleteThroughputSQL, deleteViolationsSQL} {
		tag, err := s.pool.Exec(ctx, stmt, olderThan)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		total += tag.RowsAffected()
	}
	s.logger.Info("cleaned up old rows",
		slog.Int64("rows", total),
		slog.Time("older_than", olderThan),
	)
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
