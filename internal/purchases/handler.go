package purchases

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teachniche/backend/internal/middleware"
	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/pkg/response"
)

// LessonGetter loads lessons for access checks.
type LessonGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
}

// Handler handles library and reconciliation HTTP endpoints.
type Handler struct {
	repo       *Repository
	lessons    LessonGetter
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewHandler creates a purchases handler.
func NewHandler(repo *Repository, lessons LessonGetter, reconciler *Reconciler, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, lessons: lessons, reconciler: reconciler, logger: logger}
}

// Library handles GET /me/purchases.
func (h *Handler) Library(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list purchases")
		return
	}
	response.OK(c, list)
}

// Access handles GET /lessons/:id/access. A user has access when they bought
// the lesson, own it, the lesson is free, or they are an admin.
func (h *Handler) Access(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)

	ctx := c.Request.Context()
	lesson, err := h.lessons.GetByID(ctx, lessonID)
	if err != nil {
		response.NotFound(c, "lesson not found")
		return
	}

	access := role == string(models.RoleAdmin) || lesson.InstructorID == userID || lesson.IsFree()
	if !access {
		access, err = h.repo.HasPurchased(ctx, userID, lessonID)
		if err != nil {
			response.Internal(c, "failed to check access")
			return
		}
	}
	response.OK(c, gin.H{"lesson_id": lessonID, "access": access})
}

// Reconcile handles POST /admin/purchases/reconcile. Runs the batch inline
// and returns the per-outcome counts.
func (h *Handler) Reconcile(c *gin.Context) {
	res, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("reconciliation failed", zap.Error(err))
		response.Internal(c, "reconciliation failed")
		return
	}
	response.OK(c, res)
}
