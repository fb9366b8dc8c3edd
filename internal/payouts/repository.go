package payouts

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Totals aggregates instructor payout amounts by payout status.
type Totals struct {
	PendingCents int64 `json:"pending_cents"`
	PaidCents    int64 `json:"paid_cents"`
	SalesCount   int64 `json:"sales_count"`
}

// LessonEarnings is the per-lesson breakdown for an instructor.
type LessonEarnings struct {
	LessonID    uuid.UUID `json:"lesson_id"`
	LessonTitle string    `json:"lesson_title"`
	SalesCount  int64     `json:"sales_count"`
	PayoutCents int64     `json:"payout_cents"`
}

// Summary is the full earnings view for an instructor.
type Summary struct {
	Totals  Totals           `json:"totals"`
	Lessons []LessonEarnings `json:"lessons"`
}

// Repository aggregates purchase rows into instructor earnings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payouts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Earnings returns totals and per-lesson breakdown for an instructor.
// Free purchases carry a zero payout and drop out of the sums naturally.
func (r *Repository) Earnings(ctx context.Context, instructorID uuid.UUID) (*Summary, error) {
	const totalsQ = `SELECT
			COALESCE(SUM(p.instructor_payout_cents) FILTER (WHERE p.payout_status = 'pending'), 0),
			COALESCE(SUM(p.instructor_payout_cents) FILTER (WHERE p.payout_status = 'paid'), 0),
			COUNT(*)
		FROM purchases p
		JOIN lessons l ON l.id = p.lesson_id
		WHERE l.instructor_id = $1 AND NOT p.is_free`
	var s Summary
	err := r.pool.QueryRow(ctx, totalsQ, instructorID).
		Scan(&s.Totals.PendingCents, &s.Totals.PaidCents, &s.Totals.SalesCount)
	if err != nil {
		return nil, err
	}

	const perLessonQ = `SELECT l.id, l.title, COUNT(*), COALESCE(SUM(p.instructor_payout_cents), 0)
		FROM purchases p
		JOIN lessons l ON l.id = p.lesson_id
		WHERE l.instructor_id = $1 AND NOT p.is_free
		GROUP BY l.id, l.title
		ORDER BY SUM(p.instructor_payout_cents) DESC`
	rows, err := r.pool.Query(ctx, perLessonQ, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e LessonEarnings
		if err := rows.Scan(&e.LessonID, &e.LessonTitle, &e.SalesCount, &e.PayoutCents); err != nil {
			return nil, err
		}
		s.Lessons = append(s.Lessons, e)
	}
	return &s, rows.Err()
}

// MarkPaid flips an instructor's pending purchase rows to paid and returns
// the number of rows affected.
func (r *Repository) MarkPaid(ctx context.Context, instructorID uuid.UUID) (int64, error) {
	const q = `UPDATE purchases p SET payout_status = 'paid', updated_at = NOW()
		FROM lessons l
		WHERE p.lesson_id = l.id
		  AND l.instructor_id = $1
		  AND p.payout_status = 'pending'
		  AND NOT p.is_free`
	tag, err := r.pool.Exec(ctx, q, instructorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
