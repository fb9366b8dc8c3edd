package lessons

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teachniche/backend/internal/models"
)

// Repository handles lesson persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lesson repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lessonColumns = `id, instructor_id, title, description, price_cents, currency,
	COALESCE(video_key,''), video_status, video_size, COALESCE(thumbnail_key,''),
	published, legacy_video_id, created_at, updated_at`

func scanLesson(row pgx.Row, l *models.Lesson) error {
	return row.Scan(&l.ID, &l.InstructorID, &l.Title, &l.Description, &l.PriceCents, &l.Currency,
		&l.VideoKey, &l.VideoStatus, &l.VideoSize, &l.ThumbnailKey,
		&l.Published, &l.LegacyVideoID, &l.CreatedAt, &l.UpdatedAt)
}

// Create inserts a new lesson.
func (r *Repository) Create(ctx context.Context, l *models.Lesson) error {
	const q = `INSERT INTO lessons (instructor_id, title, description, price_cents, currency, published)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, video_status, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, l.InstructorID, l.Title, l.Description, l.PriceCents, l.Currency, l.Published).
		Scan(&l.ID, &l.VideoStatus, &l.CreatedAt, &l.UpdatedAt)
}

// GetByID returns a lesson by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	var l models.Lesson
	err := scanLesson(r.pool.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id), &l)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListPublished returns the public catalog.
func (r *Repository) ListPublished(ctx context.Context) ([]models.Lesson, error) {
	return r.list(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE published ORDER BY created_at DESC`)
}

// ListByInstructor returns an instructor's lessons, published or not.
func (r *Repository) ListByInstructor(ctx context.Context, instructorID uuid.UUID) ([]models.Lesson, error) {
	return r.list(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE instructor_id = $1 ORDER BY created_at DESC`,
		instructorID)
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Lesson, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Lesson
	for rows.Next() {
		var l models.Lesson
		if err := scanLesson(rows, &l); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Update updates editable lesson fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description string, priceCents *int64, published *bool) error {
	const q = `UPDATE lessons SET
			title = $2,
			description = $3,
			price_cents = COALESCE($4, price_cents),
			published = COALESCE($5, published),
			updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, title, description, priceCents, published)
	return err
}

// Delete removes a lesson by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	return err
}

// SetVideoPending records the issued upload key and resets the pipeline state.
func (r *Repository) SetVideoPending(ctx context.Context, id uuid.UUID, videoKey string) error {
	const q = `UPDATE lessons SET video_key = $2, video_status = $3, video_size = 0, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, videoKey, models.VideoStatusPending)
	return err
}

// SetVideoStatus transitions the video pipeline state.
func (r *Repository) SetVideoStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE lessons SET video_status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status)
	return err
}

// SetVideoReady marks the video verified with its object size.
func (r *Repository) SetVideoReady(ctx context.Context, id uuid.UUID, size int64) error {
	const q = `UPDATE lessons SET video_status = $2, video_size = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.VideoStatusReady, size)
	return err
}

// SetThumbnail records the uploaded thumbnail key.
func (r *Repository) SetThumbnail(ctx context.Context, id uuid.UUID, key string) error {
	const q = `UPDATE lessons SET thumbnail_key = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, key)
	return err
}
