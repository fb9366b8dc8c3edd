package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/pkg/queue"
)

const testWebhookSecret = "whsec_test_secret"

type fakePurchaseStore struct {
	bySession map[string]*models.Purchase
	calls     int
}

func newFakePurchaseStore() *fakePurchaseStore {
	return &fakePurchaseStore{bySession: make(map[string]*models.Purchase)}
}

func (s *fakePurchaseStore) CreateIfAbsent(_ context.Context, p *models.Purchase) (bool, error) {
	s.calls++
	if _, ok := s.bySession[p.StripeSessionID]; ok {
		return false, nil
	}
	p.ID = uuid.New()
	s.bySession[p.StripeSessionID] = p
	return true, nil
}

func (s *fakePurchaseStore) HasPurchased(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

type fakeReceiptEnqueuer struct {
	enqueued []queue.ReceiptEmailPayload
}

func (e *fakeReceiptEnqueuer) EnqueueReceiptEmail(_ context.Context, p queue.ReceiptEmailPayload) error {
	e.enqueued = append(e.enqueued, p)
	return nil
}

// signPayload produces a Stripe-Signature header for the given payload,
// matching the v1 scheme: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedEvent(sessionID string, userID, lessonID uuid.UUID, amount, fee, payout int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": %q,
				"amount_total": %d,
				"currency": "usd",
				"customer_details": {"email": "buyer@example.com"},
				"metadata": {
					"user_id": %q,
					"lesson_id": %q,
					"platform_fee_cents": "%d",
					"instructor_payout_cents": "%d"
				}
			}
		}
	}`, sessionID, amount, userID, lessonID, fee, payout))
}

func newWebhookRouter(store *fakePurchaseStore, receipts *fakeReceiptEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(store, receipts, DefaultPolicy(), testWebhookSecret, nil)
	r := gin.New()
	r.POST("/webhooks/stripe", h.HandleStripeEvent)
	return r
}

func postWebhook(r *gin.Engine, payload []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRecordsPurchaseFromMetadata(t *testing.T) {
	store := newFakePurchaseStore()
	receipts := &fakeReceiptEnqueuer{}
	r := newWebhookRouter(store, receipts)

	userID := uuid.New()
	lessonID := uuid.New()
	payload := checkoutCompletedEvent("cs_test_1", userID, lessonID, 1000, 159, 841)

	w := postWebhook(r, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, w.Code)

	p, ok := store.bySession["cs_test_1"]
	require.True(t, ok)
	require.Equal(t, userID, p.UserID)
	require.NotNil(t, p.LessonID)
	require.Equal(t, lessonID, *p.LessonID)
	require.Equal(t, int64(1000), p.AmountCents)
	require.Equal(t, int64(159), p.PlatformFeeCents)
	require.Equal(t, int64(841), p.InstructorPayoutCents)
	require.Equal(t, models.PayoutStatusPending, p.PayoutStatus)

	require.Len(t, receipts.enqueued, 1)
	require.Equal(t, "buyer@example.com", receipts.enqueued[0].RecipientEmail)
	require.Equal(t, int64(1000), receipts.enqueued[0].AmountCents)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := newFakePurchaseStore()
	r := newWebhookRouter(store, &fakeReceiptEnqueuer{})

	payload := checkoutCompletedEvent("cs_test_2", uuid.New(), uuid.New(), 1000, 159, 841)

	w := postWebhook(r, payload, signPayload(payload, "whsec_wrong_secret"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, store.calls)

	w = postWebhook(r, payload, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, store.calls)
}

func TestWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	store := newFakePurchaseStore()
	r := newWebhookRouter(store, &fakeReceiptEnqueuer{})

	payload := checkoutCompletedEvent("cs_test_3", uuid.New(), uuid.New(), 2500, 390, 2110)

	w := postWebhook(r, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, w.Code)

	first := *store.bySession["cs_test_3"]

	w = postWebhook(r, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.bySession, 1)
	require.Equal(t, first, *store.bySession["cs_test_3"])
	require.Equal(t, 2, store.calls)
}

func TestWebhookRecomputesSplitWhenMetadataIsStale(t *testing.T) {
	store := newFakePurchaseStore()
	r := newWebhookRouter(store, &fakeReceiptEnqueuer{})

	// Metadata sums to 900, not the charged 1000; the handler must fall back
	// to recomputing under the current policy.
	payload := checkoutCompletedEvent("cs_test_4", uuid.New(), uuid.New(), 1000, 100, 800)

	w := postWebhook(r, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, w.Code)

	p := store.bySession["cs_test_4"]
	require.Equal(t, int64(159), p.PlatformFeeCents)
	require.Equal(t, int64(841), p.InstructorPayoutCents)
	require.Equal(t, p.AmountCents, p.PlatformFeeCents+p.InstructorPayoutCents)
}

func TestWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	store := newFakePurchaseStore()
	r := newWebhookRouter(store, &fakeReceiptEnqueuer{})

	payload := []byte(`{"id": "evt_other", "type": "invoice.paid", "data": {"object": {}}}`)
	w := postWebhook(r, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, store.calls)
}
