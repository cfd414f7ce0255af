package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mohammad-safakhou/askweb/config"
	"github.com/mohammad-safakhou/askweb/internal/runtime"
)

// Store persists the log of internet searches.
type Store struct {
	DB *sql.DB
}

// ErrNoStore is returned by handlers when no database is configured.
var ErrNoStore = errors.New("run log not configured")

// Run is one execution of the search pipeline.
type Run struct {
	ID           string            `json:"id"`
	Subject      string            `json:"subject"`
	Question     string            `json:"question"`
	SubQuestions []string          `json:"sub_questions"`
	Links        map[string]string `json:"links"`
	DocsFound    bool              `json:"docs_found"`
	Documents    int               `json:"documents"`
	Chunks       int               `json:"chunks"`
	Duration     time.Duration     `json:"-"`
	CreatedAt    time.Time         `json:"created_at"`
}

// MarshalJSON reports Duration in whole milliseconds as duration_ms.
func (r Run) MarshalJSON() ([]byte, error) {
	type plain Run
	return json.Marshal(struct {
		plain
		DurationMS int64 `json:"duration_ms"`
	}{plain: plain(r), DurationMS: r.Duration.Milliseconds()})
}

// New opens the configured database.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	db, err := runtime.OpenPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// RecordRun inserts run, assigning an ID and timestamp when missing.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Links == nil {
		run.Links = map[string]string{}
	}
	links, err := json.Marshal(run.Links)
	if err != nil {
		return Run{}, fmt.Errorf("marshal links: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO search_runs (id, subject, question, sub_questions, links, docs_found, documents, chunks, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Subject, run.Question, pq.Array(run.SubQuestions), links,
		run.DocsFound, run.Documents, run.Chunks, run.Duration.Milliseconds(), run.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("insert search run: %w", err)
	}
	return run, nil
}

// ListRuns returns the subject's most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, subject string, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, subject, question, sub_questions, links, docs_found, documents, chunks, duration_ms, created_at
		FROM search_runs WHERE subject = $1 ORDER BY created_at DESC LIMIT $2`, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("list search runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			subs     pq.StringArray
			links    []byte
			duration int64
		)
		if err := rows.Scan(&r.ID, &r.Subject, &r.Question, &subs, &links, &r.DocsFound, &r.Documents, &r.Chunks, &duration, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search run: %w", err)
		}
		r.SubQuestions = []string(subs)
		r.Duration = time.Duration(duration) * time.Millisecond
		if len(links) > 0 {
			if err := json.Unmarshal(links, &r.Links); err != nil {
				return nil, fmt.Errorf("decode links: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRunsBefore deletes runs created before cutoff and reports how many went.
func (s *Store) PruneRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM search_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune search runs: %w", err)
	}
	return res.RowsAffected()
}
