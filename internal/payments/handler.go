package payments

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teachniche/backend/internal/middleware"
	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/pkg/response"
)

// LessonGetter loads lessons for checkout validation.
type LessonGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
}

// PurchaseStore persists purchases. CreateIfAbsent returns false when a
// purchase with the same Stripe session id already exists.
type PurchaseStore interface {
	CreateIfAbsent(ctx context.Context, p *models.Purchase) (bool, error)
	HasPurchased(ctx context.Context, userID, lessonID uuid.UUID) (bool, error)
}

// SessionCreator creates hosted checkout sessions.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
}

// CheckoutHandler handles lesson checkout.
type CheckoutHandler struct {
	lessons        LessonGetter
	purchases      PurchaseStore
	sessions       SessionCreator
	policy         Policy
	passFeeToBuyer bool
	logger         *zap.Logger
}

// NewCheckoutHandler creates a checkout handler.
func NewCheckoutHandler(lessons LessonGetter, purchases PurchaseStore, sessions SessionCreator, policy Policy, passFeeToBuyer bool, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{
		lessons:        lessons,
		purchases:      purchases,
		sessions:       sessions,
		policy:         policy,
		passFeeToBuyer: passFeeToBuyer,
		logger:         logger,
	}
}

// Checkout handles POST /lessons/:id/checkout. Free lessons grant access
// directly; paid lessons get a Stripe checkout session carrying the computed
// fee split as metadata.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	ctx := c.Request.Context()
	lesson, err := h.lessons.GetByID(ctx, lessonID)
	if err != nil {
		response.NotFound(c, "lesson not found")
		return
	}
	if !lesson.Published {
		response.NotFound(c, "lesson not found")
		return
	}
	if lesson.InstructorID == userID {
		response.BadRequest(c, "cannot purchase your own lesson")
		return
	}

	purchased, err := h.purchases.HasPurchased(ctx, userID, lessonID)
	if err != nil {
		response.Internal(c, "failed to check existing purchases")
		return
	}
	if purchased {
		response.Conflict(c, "lesson already purchased")
		return
	}

	if lesson.IsFree() {
		h.grantFreeLesson(c, lesson, userID)
		return
	}

	base := lesson.PriceCents
	gross := base
	if h.passFeeToBuyer {
		gross, err = h.policy.GrossUp(base)
		if err != nil {
			response.BadRequest(c, "invalid lesson price")
			return
		}
	}
	split, err := h.policy.SplitWithBase(gross, base)
	if err != nil {
		response.BadRequest(c, "invalid lesson price")
		return
	}

	sess, err := h.sessions.CreateCheckoutSession(ctx, CheckoutParams{
		LessonID:         lesson.ID.String(),
		UserID:           userID.String(),
		InstructorID:     lesson.InstructorID.String(),
		LessonTitle:      lesson.Title,
		Currency:         lesson.Currency,
		GrossAmountCents: gross,
		Split:            split,
	})
	if err != nil {
		h.logger.Error("create checkout session failed", zap.Error(err), zap.String("lesson_id", lessonID.String()))
		response.Internal(c, "failed to create checkout session")
		return
	}

	h.logger.Info("checkout session created",
		zap.String("lesson_id", lessonID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("gross_cents", gross),
		zap.Int64("platform_fee_cents", split.PlatformFeeCents))
	response.OK(c, sess)
}

// grantFreeLesson records a zero-amount purchase without a processor round-trip.
func (h *CheckoutHandler) grantFreeLesson(c *gin.Context, lesson *models.Lesson, userID uuid.UUID) {
	p := &models.Purchase{
		UserID:          userID,
		LessonID:        &lesson.ID,
		PayoutStatus:    models.PayoutStatusPending,
		StripeSessionID: fmt.Sprintf("free_%s", uuid.New()),
		IsFree:          true,
	}
	created, err := h.purchases.CreateIfAbsent(c.Request.Context(), p)
	if err != nil {
		response.Internal(c, "failed to record purchase")
		return
	}
	if !created {
		response.Conflict(c, "lesson already purchased")
		return
	}
	response.Created(c, gin.H{"purchased": true, "lesson_id": lesson.ID})
}
