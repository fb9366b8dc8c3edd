package purchases

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/internal/payments"
)

// feeTolerance is the maximum per-field difference, in cents, between the
// stored split and the recomputed one before a record is rewritten. Keeps
// repeated runs from oscillating on rounding noise.
const feeTolerance = 1

// ReconcilerStore is the data access the reconciler needs. *Repository
// satisfies it; tests provide an in-memory fake.
type ReconcilerStore interface {
	ListAll(ctx context.Context) ([]models.Purchase, error)
	UpdateFeeSplit(ctx context.Context, id uuid.UUID, platformFeeCents, instructorPayoutCents int64) error
	LessonForVideo(ctx context.Context, videoID string) (uuid.UUID, bool, error)
	AttachLesson(ctx context.Context, id, lessonID uuid.UUID) error
}

// Result is the outcome of a reconciliation batch.
type Result struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Reconciler normalizes historical purchases: recomputes fee splits that no
// longer match the current policy and attaches lesson references to rows
// that only carry a legacy video id. The batch is idempotent; a second run
// over an already-correct set reports zero updates.
type Reconciler struct {
	store  ReconcilerStore
	policy payments.Policy
	logger *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(store ReconcilerStore, policy payments.Policy, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, policy: policy, logger: logger}
}

// Run processes every purchase once. A single record's failure is counted
// and logged but never aborts the batch; only listing the records at all can
// fail the run.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	records, err := r.store.ListAll(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(records)}
	for i := range records {
		switch r.reconcileOne(ctx, &records[i]) {
		case outcomeUpdated:
			res.Updated++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
	}

	r.logger.Info("reconciliation complete",
		zap.Int("total", res.Total),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeUpdated
	outcomeFailed
)

func (r *Reconciler) reconcileOne(ctx context.Context, p *models.Purchase) outcome {
	// Free records carry no money to reconcile and are never mutated.
	if p.IsFree || p.AmountCents == 0 {
		return outcomeSkipped
	}

	split, err := r.policy.Split(p.AmountCents)
	if err != nil {
		r.logger.Warn("split recompute failed", zap.String("purchase_id", p.ID.String()), zap.Error(err))
		return outcomeFailed
	}

	changed := false
	if absDiff(split.PlatformFeeCents, p.PlatformFeeCents) > feeTolerance ||
		absDiff(split.InstructorPayoutCents, p.InstructorPayoutCents) > feeTolerance {
		if err := r.store.UpdateFeeSplit(ctx, p.ID, split.PlatformFeeCents, split.InstructorPayoutCents); err != nil {
			r.logger.Warn("fee split update failed", zap.String("purchase_id", p.ID.String()), zap.Error(err))
			return outcomeFailed
		}
		p.PlatformFeeCents = split.PlatformFeeCents
		p.InstructorPayoutCents = split.InstructorPayoutCents
		changed = true
	}

	// Legacy rows reference a video only; attach the replacement lesson
	// without clearing the video id.
	if p.LessonID == nil && p.VideoID != nil {
		lessonID, found, err := r.store.LessonForVideo(ctx, *p.VideoID)
		if err != nil {
			r.logger.Warn("video mapping lookup failed", zap.String("purchase_id", p.ID.String()), zap.Error(err))
			return outcomeFailed
		}
		if found {
			if err := r.store.AttachLesson(ctx, p.ID, lessonID); err != nil {
				r.logger.Warn("lesson attach failed", zap.String("purchase_id", p.ID.String()), zap.Error(err))
				return outcomeFailed
			}
			p.LessonID = &lessonID
			changed = true
		}
	}

	if changed {
		return outcomeUpdated
	}
	return outcomeSkipped
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
