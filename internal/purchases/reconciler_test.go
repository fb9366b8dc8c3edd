package purchases

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teachniche/backend/internal/models"
	"github.com/teachniche/backend/internal/payments"
)

type fakeStore struct {
	records  map[uuid.UUID]*models.Purchase
	order    []uuid.UUID
	videoMap map[string]uuid.UUID

	failUpdateFor map[uuid.UUID]bool
	updateCalls   int
	attachCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:       make(map[uuid.UUID]*models.Purchase),
		videoMap:      make(map[string]uuid.UUID),
		failUpdateFor: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) add(p models.Purchase) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.records[p.ID] = &p
	f.order = append(f.order, p.ID)
	return p.ID
}

func (f *fakeStore) ListAll(_ context.Context) ([]models.Purchase, error) {
	out := make([]models.Purchase, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.records[id])
	}
	return out, nil
}

func (f *fakeStore) UpdateFeeSplit(_ context.Context, id uuid.UUID, platformFee, payout int64) error {
	f.updateCalls++
	if f.failUpdateFor[id] {
		return errors.New("storage unavailable")
	}
	rec := f.records[id]
	rec.PlatformFeeCents = platformFee
	rec.InstructorPayoutCents = payout
	return nil
}

func (f *fakeStore) LessonForVideo(_ context.Context, videoID string) (uuid.UUID, bool, error) {
	id, ok := f.videoMap[videoID]
	return id, ok, nil
}

func (f *fakeStore) AttachLesson(_ context.Context, id, lessonID uuid.UUID) error {
	f.attachCalls++
	f.records[id].LessonID = &lessonID
	return nil
}

func paidPurchase(amount, platformFee, payout int64) models.Purchase {
	lessonID := uuid.New()
	return models.Purchase{
		UserID:                uuid.New(),
		LessonID:              &lessonID,
		AmountCents:           amount,
		PlatformFeeCents:      platformFee,
		InstructorPayoutCents: payout,
		PayoutStatus:          models.PayoutStatusPending,
		StripeSessionID:       "cs_" + uuid.New().String(),
	}
}

func TestReconcilerCorrectsStaleSplits(t *testing.T) {
	store := newFakeStore()
	// Stored under an old policy: platform took a flat 10%.
	store.add(paidPurchase(1000, 100, 900))
	// Already correct under the current policy.
	store.add(paidPurchase(1000, 159, 841))

	rec := NewReconciler(store, payments.DefaultPolicy(), nil)
	res, err := rec.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, Result{Total: 2, Updated: 1, Skipped: 1, Failed: 0}, res)
	first := store.records[store.order[0]]
	require.Equal(t, int64(159), first.PlatformFeeCents)
	require.Equal(t, int64(841), first.InstructorPayoutCents)
}

func TestReconcilerIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.add(paidPurchase(1000, 100, 900))
	store.add(paidPurchase(2500, 300, 2200))

	rec := NewReconciler(store, payments.DefaultPolicy(), nil)
	first, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, first.Updated)

	snapshot := make(map[uuid.UUID]models.Purchase)
	for id, p := range store.records {
		snapshot[id] = *p
	}

	second, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.Updated)
	require.Equal(t, 2, second.Skipped)
	for id, p := range store.records {
		require.Equal(t, snapshot[id], *p, "second run mutated record %s", id)
	}
}

func TestReconcilerToleratesOneCentDrift(t *testing.T) {
	store := newFakeStore()
	// Off by exactly one cent: within tolerance, must not oscillate.
	store.add(paidPurchase(1000, 158, 842))

	rec := NewReconciler(store, payments.DefaultPolicy(), nil)
	res, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Total: 1, Updated: 0, Skipped: 1, Failed: 0}, res)
	require.Zero(t, store.updateCalls)
}

func TestReconcilerSkipsFreeRecords(t *testing.T) {
	store := newFakeStore()
	free := models.Purchase{
		UserID:          uuid.New(),
		AmountCents:     0,
		IsFree:          true,
		StripeSessionID: "free_" + uuid.New().String(),
	}
	store.add(free)

	rec := NewReconciler(store, payments.DefaultPolicy(), nil)
	res, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Total: 1, Updated: 0, Skipped: 1, Failed: 0}, res)
	require.Zero(t, store.updateCalls)
	require.Zero(t, store.attachCalls)
}

func TestReconcilerAttachesLessonToLegacyRows(t *testing.T) {
	store := newFakeStore()
	lessonID := uuid.New()
	store.videoMap["vid-legacy-1"] = lessonID

	videoID := "vid-legacy-1"
	legacy := models.Purchase{
		UserID:                uuid.New(),
		VideoID:               &videoID,
		AmountCents:           1000,
		PlatformFeeCents:      159,
		InstructorPayoutCents: 841,
		StripeSessionID:       "cs_" + uuid.New().String(),
	}
	id := store.add(legacy)

	// No mapping exists for this one; it stays video-only and is skipped.
	unmapped := "vid-unmapped"
	store.add(models.Purchase{
		UserID:                uuid.New(),
		VideoID:               &unmapped,
		AmountCents:           1000,
		PlatformFeeCents:      159,
		InstructorPayoutCents: 841,
		StripeSessionID:       "cs_" + uuid.New().String(),
	})

	rec := NewReconciler(store, payments.DefaultPolicy(), nil)
	res, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Total: 2, Updated: 1, Skipped: 1, Failed: 0}, res)

	attached := store.records[id]
	require.NotNil(t, attached.LessonID)
	require.Equal(t, lessonID, *attached.LessonID)
	require.NotNil(t, attached.VideoID, "legacy reference must be preserved")
}

func TestReconcilerIsolatesPerRecordFailures(t *testing.T) {
	store := newFakeStore()
	failing := store.add(paidPurchase(1000, 100, 900))
	store.add(paidPurchase(2000, 100, 1900))
	store.add(paidPurchase(3000, 100, 2900))
	store.failUpdateFor[failing] = true

	rec := NewReconciler(store, payments.DefaultPolicy(), nil)
	res, err := rec.Run(context.Background())
	require.NoError(t, err, "a per-record failure must not abort the batch")
	require.Equal(t, Result{Total: 3, Updated: 2, Skipped: 0, Failed: 1}, res)

	// The failing record keeps its stale split.
	require.Equal(t, int64(100), store.records[failing].PlatformFeeCents)
}
