package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"evidencer/internal/pipeline"
)

var ErrNotFound = errors.New("research session not found")

// SessionSummary is one archived run as listed by the API. Facet details live
// in the payload column and are only loaded on direct fetch.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	StartedAt    time.Time `json:"startedAt"`
	FacetCount   int       `json:"facetCount"`
	OKCount      int       `json:"okCount"`
	MeanAgg      float64   `json:"meanAggregate"`
	ArchivedAt   string    `json:"archivedAt"`
	DecisionRows int       `json:"decisionRows"`
}

type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewStore(db *sql.DB) Store {
	return Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func (s Store) Enabled() bool {
	return s.db != nil
}

func (s Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	schema := `
CREATE TABLE IF NOT EXISTS research_sessions (
  session_id    TEXT PRIMARY KEY,
  started_at    TEXT NOT NULL,
  facet_count   INTEGER NOT NULL,
  ok_count      INTEGER NOT NULL,
  mean_aggregate REAL NOT NULL,
  decision_rows INTEGER NOT NULL,
  payload       TEXT NOT NULL,
  archived_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_research_sessions_started_at ON research_sessions (started_at DESC);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure research schema: %w", err)
	}
	return nil
}

// SaveSession archives a finished run. A nil-backed store silently drops the
// write so the pipeline works without a database.
func (s Store) SaveSession(ctx context.Context, payload pipeline.SessionPayload) error {
	if s.db == nil {
		return nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode session payload: %w", err)
	}

	okCount := 0
	aggTotal := 0.0
	for _, facet := range payload.Facets {
		if facet.Status == pipeline.StatusOK {
			okCount++
		}
		aggTotal += facet.Scores.Aggregate
	}
	meanAgg := 0.0
	if len(payload.Facets) > 0 {
		meanAgg = aggTotal / float64(len(payload.Facets))
	}

	query, args, err := s.builder.
		Insert("research_sessions").
		Columns("session_id", "started_at", "facet_count", "ok_count", "mean_aggregate", "decision_rows", "payload").
		Values(
			payload.Audit.SessionID,
			payload.Audit.StartedAt.UTC().Format(time.RFC3339),
			len(payload.Facets),
			okCount,
			meanAgg,
			len(payload.Audit.Decisions),
			string(encoded),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("archive session %s: %w", payload.Audit.SessionID, err)
	}
	return nil
}

func (s Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query, args, err := s.builder.
		Select("session_id", "started_at", "facet_count", "ok_count", "mean_aggregate", "decision_rows", "archived_at").
		From("research_sessions").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build session list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var summary SessionSummary
		var startedAt string
		if err := rows.Scan(
			&summary.SessionID,
			&startedAt,
			&summary.FacetCount,
			&summary.OKCount,
			&summary.MeanAgg,
			&summary.DecisionRows,
			&summary.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, startedAt); err == nil {
			summary.StartedAt = parsed
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func (s Store) GetSession(ctx context.Context, sessionID string) (pipeline.SessionPayload, error) {
	var payload pipeline.SessionPayload
	if s.db == nil {
		return payload, ErrNotFound
	}

	query, args, err := s.builder.
		Select("payload").
		From("research_sessions").
		Where(sq.Eq{"session_id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return payload, fmt.Errorf("build session fetch: %w", err)
	}

	var encoded string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return payload, ErrNotFound
	}
	if err != nil {
		return payload, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}

	if err := json.Unmarshal([]byte(encoded), &payload); err != nil {
		return payload, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return payload, nil
}
