package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store persists rehydrated call analyses in PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// AnalysisRecord is one persisted call analysis. Analysis holds the full
// rehydrated JSON document; the scalar columns are extracted for querying.
type AnalysisRecord struct {
	ID         int64     `db:"id"`
	CallID     string    `db:"call_id"`
	Category   string    `db:"category"`
	Summary    string    `db:"summary"`
	Sentiment  string    `db:"customer_sentiment"`
	Resolution string    `db:"resolution_status"`
	Confidence float64   `db:"confidence"`
	Analysis   []byte    `db:"analysis"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS call_analyses (
	id                 BIGSERIAL PRIMARY KEY,
	call_id            TEXT NOT NULL UNIQUE,
	category           TEXT NOT NULL DEFAULT '',
	summary            TEXT NOT NULL DEFAULT '',
	customer_sentiment TEXT NOT NULL DEFAULT '',
	resolution_status  TEXT NOT NULL DEFAULT '',
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
	analysis           JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_call_analyses_category ON call_analyses (category);
`

// NewStore connects to PostgreSQL and ensures the schema exists.
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Analysis store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

// initialize checks the connection and creates the schema
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Upsert inserts or replaces the analysis for a call.
func (s *Store) Upsert(ctx context.Context, record *AnalysisRecord) error {
	query := `
		INSERT INTO call_analyses (call_id, category, summary, customer_sentiment, resolution_status, confidence, analysis)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (call_id) DO UPDATE SET
			category = EXCLUDED.category,
			summary = EXCLUDED.summary,
			customer_sentiment = EXCLUDED.customer_sentiment,
			resolution_status = EXCLUDED.resolution_status,
			confidence = EXCLUDED.confidence,
			analysis = EXCLUDED.analysis,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		record.CallID,
		record.Category,
		record.Summary,
		record.Sentiment,
		record.Resolution,
		record.Confidence,
		record.Analysis,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		s.logger.Error("Failed to upsert analysis",
			zap.Error(err),
			zap.String("call_id", record.CallID))
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}

	s.logger.Debug("Analysis stored",
		zap.Int64("id", record.ID),
		zap.String("call_id", record.CallID))
	return nil
}

// UpsertDocument extracts scalar columns from a rehydrated analysis
// document and persists it.
func (s *Store) UpsertDocument(ctx context.Context, callID string, analysis map[string]any) error {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	record := &AnalysisRecord{
		CallID:     callID,
		Category:   stringField(analysis, "category"),
		Summary:    stringField(analysis, "summary"),
		Sentiment:  stringField(analysis, "customer_sentiment"),
		Resolution: stringField(analysis, "resolution_status"),
		Confidence: floatField(analysis, "confidence"),
		Analysis:   raw,
	}
	return s.Upsert(ctx, record)
}

// GetByCallID fetches one analysis record.
func (s *Store) GetByCallID(ctx context.Context, callID string) (*AnalysisRecord, error) {
	var record AnalysisRecord
	query := `SELECT * FROM call_analyses WHERE call_id = $1`
	if err := s.db.GetContext(ctx, &record, query, callID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch analysis: %w", err)
	}
	return &record, nil
}

// ProcessedCallIDs returns the IDs of all calls that already have a stored
// analysis. Used by the pipeline to resume interrupted runs.
func (s *Store) ProcessedCallIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT call_id FROM call_analyses ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list processed call ids: %w", err)
	}
	return ids, nil
}

// Count returns the number of stored analyses.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM call_analyses`); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

// maskDatabaseURL masks credentials in a database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if idx := strings.LastIndex(userPart, ":"); idx > strings.Index(userPart, "//") {
				parts[0] = userPart[:idx+1] + "***"
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
