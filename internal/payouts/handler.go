package payouts

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teachniche/backend/internal/middleware"
	"github.com/teachniche/backend/pkg/response"
)

// Handler handles instructor earnings and admin payout endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a payouts handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Earnings handles GET /me/earnings (instructor).
func (h *Handler) Earnings(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	summary, err := h.repo.Earnings(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load earnings")
		return
	}
	response.OK(c, summary)
}

// MarkPaid handles POST /admin/payouts/:instructorId/mark-paid (admin).
func (h *Handler) MarkPaid(c *gin.Context) {
	instructorID, err := uuid.Parse(c.Param("instructorId"))
	if err != nil {
		response.BadRequest(c, "invalid instructor id")
		return
	}
	count, err := h.repo.MarkPaid(c.Request.Context(), instructorID)
	if err != nil {
		h.logger.Error("mark paid failed", zap.Error(err), zap.String("instructor_id", instructorID.String()))
		response.Internal(c, "failed to mark payouts paid")
		return
	}
	h.logger.Info("payouts marked paid", zap.String("instructor_id", instructorID.String()), zap.Int64("count", count))
	response.OK(c, gin.H{"instructor_id": instructorID, "marked_paid": count})
}
