package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teachniche/backend/internal/lessons"
	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/pkg/queue"
	"github.com/teachniche/backend/pkg/storage"
)

// Processor consumes queued jobs: verifying uploaded lesson videos against
// S3 and sending purchase receipt emails.
type Processor struct {
	lessonRepo *lessons.Repository
	s3         *storage.S3
	queue      *queue.Queue
	mailer     *Mailer
	logger     *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(lessonRepo *lessons.Repository, s3 *storage.S3, q *queue.Queue, mailer *Mailer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{lessonRepo: lessonRepo, s3: s3, queue: q, mailer: mailer, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeVideoProcess:
		return p.processVideo(ctx, job)
	case queue.JobTypeReceiptEmail:
		return p.processReceipt(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processVideo verifies the uploaded object exists and flips the lesson to
// ready with the recorded size.
func (p *Processor) processVideo(ctx context.Context, job *queue.Job) error {
	var payload queue.VideoProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	lesson, err := p.lessonRepo.GetByID(ctx, payload.LessonID)
	if err != nil {
		return fmt.Errorf("lesson not found: %s", payload.LessonID)
	}
	if lesson.VideoStatus == models.VideoStatusReady {
		p.logger.Info("video already ready", zap.String("lesson_id", lesson.ID.String()))
		return nil
	}

	head, err := p.s3.HeadObject(ctx, p.s3.VideosBucket(), payload.VideoKey)
	if err != nil {
		return fmt.Errorf("head object %s: %w", payload.VideoKey, err)
	}
	var size int64
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	if size == 0 {
		return fmt.Errorf("uploaded object %s is empty", payload.VideoKey)
	}

	if err := p.lessonRepo.SetVideoReady(ctx, payload.LessonID, size); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	p.logger.Info("lesson video ready",
		zap.String("lesson_id", payload.LessonID.String()),
		zap.Int64("size", size))
	return nil
}

// processReceipt sends a purchase receipt email.
func (p *Processor) processReceipt(_ context.Context, job *queue.Job) error {
	var payload queue.ReceiptEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.mailer == nil || !p.mailer.Configured() {
		p.logger.Debug("smtp not configured, skipping receipt", zap.String("purchase_id", payload.PurchaseID.String()))
		return nil
	}

	subject := "Your Teach Niche purchase"
	body := fmt.Sprintf("Thanks for your purchase!\n\nAmount: %.2f %s\nPurchase ID: %s\n",
		float64(payload.AmountCents)/100, strings.ToUpper(payload.Currency), payload.PurchaseID)
	if payload.LessonTitle != "" {
		body = fmt.Sprintf("Thanks for purchasing %q!\n\nAmount: %.2f %s\nPurchase ID: %s\n",
			payload.LessonTitle, float64(payload.AmountCents)/100, strings.ToUpper(payload.Currency), payload.PurchaseID)
	}
	if err := p.mailer.Send(payload.RecipientEmail, subject, body); err != nil {
		return err
	}
	p.logger.Info("receipt sent", zap.String("purchase_id", payload.PurchaseID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
