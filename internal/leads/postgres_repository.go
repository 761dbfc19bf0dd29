package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores submission attempts in the lead_submissions table.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db pgxQuerier) *PostgresRepository {
	if db == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// Record inserts a new row.
func (r *PostgresRepository) Record(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return nil
	}
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO lead_submissions (id, record_id, name, email, phone, service_type, outcome, tally_form_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.RecordID,
		sub.Name,
		sub.Email,
		sub.Phone,
		sub.ServiceType,
		string(sub.Outcome),
		sub.TallyFormLink,
		sub.CreatedAt,
	); err != nil {
		return fmt.Errorf("leads: insert submission failed: %w", err)
	}
	return nil
}

// ListRecent returns up to limit submissions, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, record_id, name, email, phone, service_type, outcome, tally_form_link, created_at
		FROM lead_submissions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: select submissions failed: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		var (
			sub     Submission
			outcome string
		)
		if err := rows.Scan(
			&sub.ID,
			&sub.RecordID,
			&sub.Name,
			&sub.Email,
			&sub.Phone,
			&sub.ServiceType,
			&outcome,
			&sub.TallyFormLink,
			&sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("leads: scan submission failed: %w", err)
		}
		sub.Outcome = Outcome(outcome)
		out = append(out, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: iterate submissions failed: %w", err)
	}
	return out, nil
}
