package lessons

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teachniche/backend/internal/middleware"
	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/pkg/queue"
	"github.com/teachniche/backend/pkg/response"
	"github.com/teachniche/backend/pkg/storage"
)

// AccessChecker reports whether a user purchased a lesson.
type AccessChecker interface {
	HasPurchased(ctx context.Context, userID, lessonID uuid.UUID) (bool, error)
}

// CreateRequest is the body for POST /lessons.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Published   bool   `json:"published"`
}

// UpdateRequest is the body for PATCH /lessons/:id.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Published   *bool   `json:"published"`
}

// UploadURLRequest is the body for POST /lessons/:id/video/upload-url.
type UploadURLRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// Handler handles lesson HTTP endpoints.
type Handler struct {
	repo   *Repository
	access AccessChecker
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a lesson handler.
func NewHandler(repo *Repository, access AccessChecker, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, access: access, s3: s3, queue: q, logger: logger}
}

// List handles GET /lessons (public catalog, published lessons only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListPublished(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list lessons")
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /me/lessons (instructor's own, including drafts).
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByInstructor(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list lessons")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /lessons/:id (published only for non-owners).
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	lesson, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || !lesson.Published {
		response.NotFound(c, "lesson not found")
		return
	}
	response.OK(c, lesson)
}

// Create handles POST /lessons (instructor or admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.PriceCents < 0 {
		response.BadRequest(c, "price_cents must not be negative")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	lesson := &models.Lesson{
		InstructorID: userID,
		Title:        req.Title,
		Description:  req.Description,
		PriceCents:   req.PriceCents,
		Currency:     currency,
		Published:    req.Published,
	}
	if err := h.repo.Create(c.Request.Context(), lesson); err != nil {
		h.logger.Error("create lesson failed", zap.Error(err))
		response.Internal(c, "failed to create lesson")
		return
	}
	response.Created(c, lesson)
}

// Update handles PATCH /lessons/:id (owner or admin).
func (h *Handler) Update(c *gin.Context) {
	lesson, ok := h.ownedLesson(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if req.PriceCents != nil && *req.PriceCents < 0 {
		response.BadRequest(c, "price_cents must not be negative")
		return
	}
	title, desc := lesson.Title, lesson.Description
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		desc = *req.Description
	}
	if err := h.repo.Update(c.Request.Context(), lesson.ID, title, desc, req.PriceCents, req.Published); err != nil {
		response.Internal(c, "failed to update lesson")
		return
	}
	updated, err := h.repo.GetByID(c.Request.Context(), lesson.ID)
	if err != nil {
		response.Internal(c, "failed to load lesson")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /lessons/:id (owner or admin).
func (h *Handler) Delete(c *gin.Context) {
	lesson, ok := h.ownedLesson(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), lesson.ID); err != nil {
		response.Internal(c, "failed to delete lesson")
		return
	}
	response.NoContent(c)
}

// VideoUploadURL handles POST /lessons/:id/video/upload-url. Returns a
// presigned PUT URL for direct upload to the videos bucket.
func (h *Handler) VideoUploadURL(c *gin.Context) {
	lesson, ok := h.ownedLesson(c)
	if !ok {
		return
	}
	if h.s3 == nil {
		response.Internal(c, "storage not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidVideoType(req.ContentType) {
		response.BadRequest(c, "unsupported video content type")
		return
	}

	key := storage.VideoKey(lesson.ID.String(), req.ContentType)
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.VideosBucket(), key, req.ContentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err), zap.String("lesson_id", lesson.ID.String()))
		response.Internal(c, "failed to generate upload URL")
		return
	}
	if err := h.repo.SetVideoPending(c.Request.Context(), lesson.ID, key); err != nil {
		response.Internal(c, "failed to update lesson")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "video_key": key})
}

// VideoUploadComplete handles POST /lessons/:id/video/complete. Marks the
// video processing and hands verification to the worker.
func (h *Handler) VideoUploadComplete(c *gin.Context) {
	lesson, ok := h.ownedLesson(c)
	if !ok {
		return
	}
	if lesson.VideoKey == "" {
		response.BadRequest(c, "no upload in progress")
		return
	}
	if err := h.repo.SetVideoStatus(c.Request.Context(), lesson.ID, models.VideoStatusProcessing); err != nil {
		response.Internal(c, "failed to update lesson")
		return
	}
	if err := h.queue.EnqueueVideoProcess(c.Request.Context(), queue.VideoProcessPayload{
		LessonID: lesson.ID,
		VideoKey: lesson.VideoKey,
	}); err != nil {
		h.logger.Error("enqueue video process failed", zap.Error(err), zap.String("lesson_id", lesson.ID.String()))
		response.Internal(c, "failed to enqueue processing")
		return
	}
	response.OK(c, gin.H{"lesson_id": lesson.ID, "video_status": models.VideoStatusProcessing})
}

// UploadThumbnail handles POST /lessons/:id/thumbnail (multipart upload,
// server-side streamed to S3).
func (h *Handler) UploadThumbnail(c *gin.Context) {
	lesson, ok := h.ownedLesson(c)
	if !ok {
		return
	}
	if h.s3 == nil {
		response.Internal(c, "storage not configured")
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	defer file.Close()
	if header.Size > storage.MaxThumbnailSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !storage.ValidImageType(contentType) {
		response.BadRequest(c, "unsupported image content type")
		return
	}

	key := storage.ThumbnailKey(lesson.ID.String(), contentType)
	if _, err := h.s3.Upload(c.Request.Context(), h.s3.ThumbnailsBucket(), key, contentType, file, header.Size); err != nil {
		h.logger.Error("thumbnail upload failed", zap.Error(err), zap.String("lesson_id", lesson.ID.String()))
		response.Internal(c, "failed to upload thumbnail")
		return
	}
	if err := h.repo.SetThumbnail(c.Request.Context(), lesson.ID, key); err != nil {
		response.Internal(c, "failed to update lesson")
		return
	}
	response.OK(c, gin.H{"thumbnail_key": key})
}

// PlaybackURL handles GET /lessons/:id/playback-url. Access requires a
// purchase, ownership, a free lesson, or the admin role.
func (h *Handler) PlaybackURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)

	ctx := c.Request.Context()
	lesson, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.NotFound(c, "lesson not found")
		return
	}

	allowed := role == string(models.RoleAdmin) || lesson.InstructorID == userID || lesson.IsFree()
	if !allowed {
		allowed, err = h.access.HasPurchased(ctx, userID, id)
		if err != nil {
			response.Internal(c, "failed to check access")
			return
		}
	}
	if !allowed {
		response.Forbidden(c, "lesson not purchased")
		return
	}
	if lesson.VideoStatus != models.VideoStatusReady || lesson.VideoKey == "" {
		response.NotFound(c, "video not available")
		return
	}
	if h.s3 == nil {
		response.Internal(c, "storage not configured")
		return
	}

	url, err := h.s3.GeneratePresignedDownloadURL(ctx, h.s3.VideosBucket(), lesson.VideoKey, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign playback failed", zap.Error(err), zap.String("lesson_id", id.String()))
		response.Internal(c, "failed to generate playback URL")
		return
	}
	response.OK(c, gin.H{"playback_url": url, "expires_in_seconds": int(h.s3.PresignExpire().Seconds())})
}

// ownedLesson loads the lesson from :id and enforces that the caller owns it
// or is an admin. Writes the error response and returns ok=false otherwise.
func (h *Handler) ownedLesson(c *gin.Context) (*models.Lesson, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return nil, false
	}
	lesson, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "lesson not found")
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if lesson.InstructorID != userID && role != string(models.RoleAdmin) {
		response.Forbidden(c, "not the lesson owner")
		return nil, false
	}
	return lesson, true
}
