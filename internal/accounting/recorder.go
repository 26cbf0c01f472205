package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-labs/lumen-gateway/internal/types"
)

const insertTimeout = 2 * time.Second

// UsageRecord is one row of per-request usage accounting.
type UsageRecord struct {
	RequestID        string
	Subject          string
	Issuer           string
	Class            types.RequestClass
	Model            string
	PromptTokens     int
	CompletionTokens int
	CacheStatus      types.CacheStatus
	DurationMs       int64
	CreatedAt        time.Time
}

// Recorder persists usage records to PostgreSQL. A nil pool disables
// persistence, which keeps the gateway usable without a database.
type Recorder struct {
	db *pgxpool.Pool
}

func NewRecorder(db *pgxpool.Pool) *Recorder {
	return &Recorder{db: db}
}

// Record inserts the usage row asynchronously. Failures are logged and
// never affect the request that produced the record.
func (r *Recorder) Record(rec UsageRecord) {
	if r == nil || r.db == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()
		if err := r.insert(ctx, rec); err != nil {
			slog.Error("usage record insert failed",
				"request_id", rec.RequestID,
				"subject", rec.Subject,
				"error", err)
		}
	}()
}

func (r *Recorder) insert(ctx context.Context, rec UsageRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO usage_records
			(request_id, subject, issuer, class, model,
			 prompt_tokens, completion_tokens, cache_status, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.RequestID, rec.Subject, rec.Issuer, string(rec.Class), rec.Model,
		rec.PromptTokens, rec.CompletionTokens, string(rec.CacheStatus),
		rec.DurationMs, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage_records: %w", err)
	}
	return nil
}

// SubjectTotals sums token usage for a subject since the given time.
func (r *Recorder) SubjectTotals(ctx context.Context, subject string, since time.Time) (prompt, completion int64, err error) {
	if r == nil || r.db == nil {
		return 0, 0, nil
	}
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		FROM usage_records
		WHERE subject = $1 AND created_at >= $2
	`, subject, since).Scan(&prompt, &completion)
	if err != nil {
		err = fmt.Errorf("query usage_records totals: %w", err)
	}
	return prompt, completion, err
}
