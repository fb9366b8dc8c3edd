package purchases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teachniche/backend/internal/models"
)

// Repository handles purchase persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a purchase repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const purchaseColumns = `id, user_id, lesson_id, video_id, amount_cents, platform_fee_cents,
	instructor_payout_cents, payout_status, stripe_session_id, COALESCE(stripe_payment_intent_id,''),
	is_free, created_at, updated_at`

func scanPurchase(row pgx.Row, p *models.Purchase) error {
	return row.Scan(&p.ID, &p.UserID, &p.LessonID, &p.VideoID, &p.AmountCents, &p.PlatformFeeCents,
		&p.InstructorPayoutCents, &p.PayoutStatus, &p.StripeSessionID, &p.StripePaymentIntentID,
		&p.IsFree, &p.CreatedAt, &p.UpdatedAt)
}

// CreateIfAbsent inserts a purchase unless one with the same Stripe session
// id already exists. Returns false with no error on the duplicate case, so
// webhook retries are no-ops rather than failures.
func (r *Repository) CreateIfAbsent(ctx context.Context, p *models.Purchase) (bool, error) {
	const q = `INSERT INTO purchases
		(user_id, lesson_id, video_id, amount_cents, platform_fee_cents, instructor_payout_cents,
		 payout_status, stripe_session_id, stripe_payment_intent_id, is_free)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''), $10)
		ON CONFLICT (stripe_session_id) DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q,
		p.UserID, p.LessonID, p.VideoID, p.AmountCents, p.PlatformFeeCents, p.InstructorPayoutCents,
		p.PayoutStatus, p.StripeSessionID, p.StripePaymentIntentID, p.IsFree).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetBySessionID returns the purchase for a Stripe session id.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var p models.Purchase
	err := scanPurchase(r.pool.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE stripe_session_id = $1`, sessionID), &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasPurchased reports whether the user already holds the lesson.
func (r *Repository) HasPurchased(ctx context.Context, userID, lessonID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM purchases WHERE user_id = $1 AND lesson_id = $2`
	var one int
	err := r.pool.QueryRow(ctx, q, userID, lessonID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByUser returns the user's library: purchases joined with lesson info.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LibraryItem, error) {
	const q = `SELECT p.id, p.user_id, p.lesson_id, p.video_id, p.amount_cents, p.platform_fee_cents,
			p.instructor_payout_cents, p.payout_status, p.stripe_session_id,
			COALESCE(p.stripe_payment_intent_id,''), p.is_free, p.created_at, p.updated_at,
			COALESCE(l.title,''), COALESCE(l.thumbnail_key,''), COALESCE(l.video_status,'')
		FROM purchases p
		LEFT JOIN lessons l ON l.id = p.lesson_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.LibraryItem
	for rows.Next() {
		var it models.LibraryItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.LessonID, &it.VideoID, &it.AmountCents,
			&it.PlatformFeeCents, &it.InstructorPayoutCents, &it.PayoutStatus, &it.StripeSessionID,
			&it.StripePaymentIntentID, &it.IsFree, &it.CreatedAt, &it.UpdatedAt,
			&it.LessonTitle, &it.ThumbnailKey, &it.VideoStatus); err != nil {
			return nil, err
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// ListAll returns every purchase, oldest first. The reconciler processes the
// full set as one bounded batch.
func (r *Repository) ListAll(ctx context.Context) ([]models.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+purchaseColumns+` FROM purchases ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Purchase
	for rows.Next() {
		var p models.Purchase
		if err := scanPurchase(rows, &p); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// UpdateFeeSplit corrects the stored split for a purchase and stamps updated_at.
func (r *Repository) UpdateFeeSplit(ctx context.Context, id uuid.UUID, platformFeeCents, instructorPayoutCents int64) error {
	const q = `UPDATE purchases
		SET platform_fee_cents = $2, instructor_payout_cents = $3, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, platformFeeCents, instructorPayoutCents)
	return err
}

// LessonForVideo resolves a legacy video id to its replacement lesson via
// the migration mapping. Returns found=false when no mapping exists.
func (r *Repository) LessonForVideo(ctx context.Context, videoID string) (uuid.UUID, bool, error) {
	const q = `SELECT lesson_id FROM video_lesson_map WHERE video_id = $1`
	var lessonID uuid.UUID
	err := r.pool.QueryRow(ctx, q, videoID).Scan(&lessonID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return lessonID, true, nil
}

// AttachLesson sets the lesson reference on a legacy purchase. The legacy
// video id is left in place for the audit trail.
func (r *Repository) AttachLesson(ctx context.Context, id, lessonID uuid.UUID) error {
	const q = `UPDATE purchases SET lesson_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, lessonID)
	return err
}
