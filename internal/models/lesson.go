package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus represents the lesson video pipeline state.
const (
	VideoStatusPending    = "pending"    // no upload yet, or upload URL issued
	VideoStatusProcessing = "processing" // upload reported complete, worker verifying
	VideoStatusReady      = "ready"
	VideoStatusFailed     = "failed"
)

// Lesson is a sellable video lesson owned by an instructor.
type Lesson struct {
	ID            uuid.UUID `json:"id"`
	InstructorID  uuid.UUID `json:"instructor_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	Currency      string    `json:"currency"`
	VideoKey      string    `json:"video_key,omitempty"`
	VideoStatus   string    `json:"video_status"`
	VideoSize     int64     `json:"video_size,omitempty"`
	ThumbnailKey  string    `json:"thumbnail_key,omitempty"`
	Published     bool      `json:"published"`
	LegacyVideoID *string   `json:"legacy_video_id,omitempty"` // id under the pre-migration video schema
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsFree reports whether the lesson can be acquired without a charge.
func (l *Lesson) IsFree() bool { return l.PriceCents == 0 }
