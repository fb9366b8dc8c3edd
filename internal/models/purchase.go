package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus for instructor payouts on a purchase.
const (
	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "paid"
)

// Purchase is the persisted fact that a student obtained access to a lesson.
// A row is created once per confirmed payment and only ever corrected in
// place afterwards, never deleted. StripeSessionID is unique, which is what
// makes webhook replays no-ops.
//
// LessonID is nullable because rows created under the old schema referenced
// a "video" entity; the reconciler resolves those through the migration
// mapping and attaches the lesson without clearing VideoID.
type Purchase struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"user_id"`
	LessonID              *uuid.UUID `json:"lesson_id,omitempty"`
	VideoID               *string    `json:"video_id,omitempty"` // legacy reference, kept for audit
	AmountCents           int64      `json:"amount_cents"`
	PlatformFeeCents      int64      `json:"platform_fee_cents"`
	InstructorPayoutCents int64      `json:"instructor_payout_cents"`
	PayoutStatus          string     `json:"payout_status"`
	StripeSessionID       string     `json:"stripe_session_id"`
	StripePaymentIntentID string     `json:"stripe_payment_intent_id,omitempty"`
	IsFree                bool       `json:"is_free"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// LibraryItem is a purchase joined with its lesson for the student library.
type LibraryItem struct {
	Purchase
	LessonTitle  string `json:"lesson_title"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
	VideoStatus  string `json:"lesson_video_status,omitempty"`
}
