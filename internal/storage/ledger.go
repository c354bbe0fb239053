package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

// ErrNotFound is returned when a session doesn't exist in the ledger.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("session not found")

// SessionRepository records uploaded documents.
type SessionRepository interface {
	Create(ctx context.Context, s *model.SessionInfo) error
	Get(ctx context.Context, id string) (*model.SessionInfo, error)
	SetCompanyName(ctx context.Context, id, company string) error
	Count(ctx context.Context) (int64, error)
}

type sqliteSessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a SQLite-backed SessionRepository.
func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sqliteSessionRepository{db: db}
}

func (r *sqliteSessionRepository) Create(ctx context.Context, s *model.SessionInfo) error {
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("creating session %s: created_at is required", s.ID)
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO sessions (id, filename, pages, characters, company_name, created_at)
		VALUES (:id, :filename, :pages, :characters, :company_name, :created_at)
	`, s)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func (r *sqliteSessionRepository) Get(ctx context.Context, id string) (*model.SessionInfo, error) {
	var s model.SessionInfo
	err := r.db.GetContext(ctx, &s, "SELECT * FROM sessions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return &s, nil
}

func (r *sqliteSessionRepository) SetCompanyName(ctx context.Context, id, company string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE sessions SET company_name = ? WHERE id = ?", company, id)
	if err != nil {
		return fmt.Errorf("setting company for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteSessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sessions")
	return count, err
}

// ProviderStats aggregates calls for one provider.
type ProviderStats struct {
	Provider      string  `db:"provider" json:"provider"`
	Calls         int64   `db:"calls" json:"calls"`
	Failures      int64   `db:"failures" json:"failures"`
	AvgDurationMs float64 `db:"avg_duration_ms" json:"avg_duration_ms"`
}

// CallStats is the ledger summary served by the admin endpoint.
type CallStats struct {
	TotalCalls int64           `json:"total_calls"`
	Failures   int64           `json:"failures"`
	Sessions   int64           `json:"sessions"`
	ByProvider []ProviderStats `json:"by_provider"`
}

// LLMCallRepository handles persistence of LLM call tracking.
type LLMCallRepository interface {
	Create(ctx context.Context, call *model.LLMCall) error
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.LLMCall, error)
	Stats(ctx context.Context) (*CallStats, error)
}

type sqliteLLMCallRepository struct {
	db *sqlx.DB
}

// NewLLMCallRepository creates a SQLite-backed LLMCallRepository.
func NewLLMCallRepository(db *sqlx.DB) LLMCallRepository {
	return &sqliteLLMCallRepository{db: db}
}

func (r *sqliteLLMCallRepository) Create(ctx context.Context, call *model.LLMCall) error {
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_calls (session_id, section, provider, model, success, error_kind,
		                       prompt_chars, context_chars, duration_ms)
		VALUES (:session_id, :section, :provider, :model, :success, :error_kind,
		        :prompt_chars, :context_chars, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating llm call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteLLMCallRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls WHERE session_id = ?", sessionID)
	return count, err
}

func (r *sqliteLLMCallRepository) ListBySession(ctx context.Context, sessionID string) ([]model.LLMCall, error) {
	var calls []model.LLMCall
	err := r.db.SelectContext(ctx, &calls,
		"SELECT * FROM llm_calls WHERE session_id = ? ORDER BY id ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing calls for %s: %w", sessionID, err)
	}
	return calls, nil
}

func (r *sqliteLLMCallRepository) Stats(ctx context.Context) (*CallStats, error) {
	stats := &CallStats{ByProvider: []ProviderStats{}}

	err := r.db.GetContext(ctx, &stats.TotalCalls, "SELECT COUNT(*) FROM llm_calls")
	if err != nil {
		return nil, fmt.Errorf("counting calls: %w", err)
	}
	err = r.db.GetContext(ctx, &stats.Failures, "SELECT COUNT(*) FROM llm_calls WHERE success = 0")
	if err != nil {
		return nil, fmt.Errorf("counting failures: %w", err)
	}
	err = r.db.GetContext(ctx, &stats.Sessions, "SELECT COUNT(*) FROM sessions")
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	// COALESCE keeps AVG from returning NULL when no call recorded a duration.
	err = r.db.SelectContext(ctx, &stats.ByProvider, `
		SELECT provider,
		       COUNT(*) AS calls,
		       SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) AS failures,
		       COALESCE(AVG(duration_ms), 0.0) AS avg_duration_ms
		FROM llm_calls
		GROUP BY provider
		ORDER BY calls DESC, provider ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("aggregating by provider: %w", err)
	}
	return stats, nil
}
