package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/pkg/queue"
	"github.com/teachniche/backend/pkg/response"
)

// maxWebhookBody bounds the webhook payload size.
const maxWebhookBody = 64 * 1024

// ReceiptEnqueuer enqueues purchase receipt emails.
type ReceiptEnqueuer interface {
	EnqueueReceiptEmail(ctx context.Context, payload queue.ReceiptEmailPayload) error
}

// WebhookHandler handles signed Stripe events. A purchase row is created
// exactly once per checkout session; webhook retries are success-no-ops.
type WebhookHandler struct {
	store    PurchaseStore
	receipts ReceiptEnqueuer
	policy   Policy
	secret   string
	logger   *zap.Logger
}

// NewWebhookHandler creates a Stripe webhook handler.
func NewWebhookHandler(store PurchaseStore, receipts ReceiptEnqueuer, policy Policy, webhookSecret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{store: store, receipts: receipts, policy: policy, secret: webhookSecret, logger: logger}
}

// HandleStripeEvent handles POST /webhooks/stripe. The signature is verified
// before the payload is trusted; unsigned or mis-signed events are rejected
// with no state mutation.
func (h *WebhookHandler) HandleStripeEvent(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "failed to read payload")
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		response.BadRequest(c, "invalid signature")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(c, event)
	default:
		h.logger.Debug("ignoring event", zap.String("type", string(event.Type)))
		response.OK(c, gin.H{"received": true})
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(c *gin.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		response.BadRequest(c, "malformed checkout session")
		return
	}

	userID, err := uuid.Parse(sess.Metadata[MetaUserID])
	if err != nil {
		h.logger.Error("checkout session missing user metadata", zap.String("session_id", sess.ID))
		response.BadRequest(c, "missing user_id metadata")
		return
	}
	var lessonID *uuid.UUID
	if id, err := uuid.Parse(sess.Metadata[MetaLessonID]); err == nil {
		lessonID = &id
	}

	split := splitFromMetadata(sess.Metadata, sess.AmountTotal)
	if split == nil {
		// Metadata absent (e.g. session created out of band): derive the
		// split from the charged amount under the current policy.
		s, err := h.policy.Split(sess.AmountTotal)
		if err != nil {
			response.BadRequest(c, "invalid session amount")
			return
		}
		split = &s
	}

	purchase := &models.Purchase{
		UserID:                userID,
		LessonID:              lessonID,
		AmountCents:           sess.AmountTotal,
		PlatformFeeCents:      split.PlatformFeeCents,
		InstructorPayoutCents: split.InstructorPayoutCents,
		PayoutStatus:          models.PayoutStatusPending,
		StripeSessionID:       sess.ID,
		IsFree:                sess.AmountTotal == 0,
	}
	if sess.PaymentIntent != nil {
		purchase.StripePaymentIntentID = sess.PaymentIntent.ID
	}

	created, err := h.store.CreateIfAbsent(c.Request.Context(), purchase)
	if err != nil {
		// A missed purchase record is a correctness failure; surface it so
		// the processor retries delivery.
		h.logger.Error("persist purchase failed", zap.Error(err), zap.String("session_id", sess.ID))
		response.Internal(c, "failed to record purchase")
		return
	}
	if !created {
		h.logger.Info("duplicate checkout event, no-op", zap.String("session_id", sess.ID))
		response.OK(c, gin.H{"received": true, "duplicate": true})
		return
	}

	if h.receipts != nil && sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		err := h.receipts.EnqueueReceiptEmail(c.Request.Context(), queue.ReceiptEmailPayload{
			PurchaseID:     purchase.ID,
			RecipientEmail: sess.CustomerDetails.Email,
			AmountCents:    purchase.AmountCents,
			Currency:       string(sess.Currency),
		})
		if err != nil {
			// Receipt delivery is best effort; the purchase is already recorded.
			h.logger.Warn("enqueue receipt failed", zap.Error(err), zap.String("purchase_id", purchase.ID.String()))
		}
	}

	h.logger.Info("purchase recorded",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID.String()),
		zap.Int64("amount_cents", purchase.AmountCents),
		zap.Int64("platform_fee_cents", purchase.PlatformFeeCents))
	response.OK(c, gin.H{"received": true})
}

// splitFromMetadata reads the fee split the checkout path stamped on the
// session. Returns nil when either value is missing or does not parse, or
// when the metadata does not sum to the charged amount (stale metadata from
// a price change between session creation and completion).
func splitFromMetadata(meta map[string]string, amountTotal int64) *FeeSplit {
	feeStr, okFee := meta[MetaPlatformFeeCents]
	payoutStr, okPayout := meta[MetaInstructorPayoutCents]
	if !okFee || !okPayout {
		return nil
	}
	fee, err := strconv.ParseInt(feeStr, 10, 64)
	if err != nil {
		return nil
	}
	payout, err := strconv.ParseInt(payoutStr, 10, 64)
	if err != nil {
		return nil
	}
	if fee+payout != amountTotal {
		return nil
	}
	return &FeeSplit{PlatformFeeCents: fee, InstructorPayoutCents: payout}
}
