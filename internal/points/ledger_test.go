package points

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store/storetest"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type benefitCall struct {
	userID    int64
	threshold int
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []benefitCall
}

func (n *recordingNotifier) BenefitReached(_ context.Context, userID int64, b Benefit, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, benefitCall{userID: userID, threshold: b.Threshold})
}

func newService(t *testing.T) (*Service, *storetest.Store, *recordingNotifier) {
	t.Helper()
	st := storetest.New()
	n := &recordingNotifier{}
	storetest.SeedUser(t, st, 1, "Ana")
	storetest.SeedUser(t, st, 2, "Beto")
	return NewService(st, n, nil, zap.NewNop()), st, n
}

func submitPayment(t *testing.T, st *storetest.Store, userID int64, at time.Time) *models.Payment {
	t.Helper()
	p := &models.Payment{
		UserID:        userID,
		PayerName:     "Ana",
		Reference:     "REF-001",
		ReceiptFileID: "file-1",
		Amount:        decimal.RequireFromString("150"),
		Status:        models.PaymentStatusPending,
		SubmittedAt:   at,
	}
	require.NoError(t, st.Payment().Create(context.Background(), p))
	return p
}

func assertLedgerMatchesAccounts(t *testing.T, st *storetest.Store) {
	t.Helper()
	sums := make(map[int64]int)
	for _, e := range st.Ledger() {
		sums[e.UserID] += e.Delta
	}
	for userID, sum := range sums {
		acc, err := st.Points().GetAccount(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, sum, acc.TotalPoints, "total user %d", userID)
		assert.Equal(t, sum, acc.AvailablePoints, "available user %d", userID)
	}
}

func TestPaymentTier(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		after  time.Duration
		tier   Tier
		points int
	}{
		{name: "одобрен через день", after: 24 * time.Hour, tier: TierOnTime, points: 2},
		{name: "почти неделя", after: 7*24*time.Hour - time.Second, tier: TierOnTime, points: 2},
		{name: "ровно неделя", after: 7 * 24 * time.Hour, tier: TierAdvance, points: 5},
		{name: "через восемь дней", after: 8 * 24 * time.Hour, tier: TierAdvance, points: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, pts := PaymentTier(submitted, submitted.Add(tt.after))
			assert.Equal(t, tt.tier, tier)
			assert.Equal(t, tt.points, pts)
		})
	}
}

func TestApprovePaymentScenario(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)
	submitted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	late := submitPayment(t, st, 1, submitted)
	quick := submitPayment(t, st, 1, submitted)

	svc.SetClock(func() time.Time { return submitted.Add(8 * 24 * time.Hour) })
	approval, err := svc.ApprovePayment(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, TierAdvance, approval.Tier)
	assert.Equal(t, 5, approval.Award.Entry.Delta)
	assert.Equal(t, "Pago adelantado - $150.00", approval.Award.Entry.Reason)
	assert.Equal(t, models.PaymentStatusApproved, approval.Payment.Status)

	svc.SetClock(func() time.Time { return submitted.Add(24 * time.Hour) })
	approval, err = svc.ApprovePayment(ctx, quick.ID)
	require.NoError(t, err)
	assert.Equal(t, TierOnTime, approval.Tier)
	assert.Equal(t, 2, approval.Award.Entry.Delta)
	assert.Equal(t, "Pago puntual - $150.00", approval.Award.Entry.Reason)

	acc, err := svc.Account(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, acc.AvailablePoints)
	assertLedgerMatchesAccounts(t, st)
}

func TestApprovePaymentOnlyWhenPending(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)
	p := submitPayment(t, st, 1, time.Now())

	_, err := svc.ApprovePayment(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.ApprovePayment(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.RejectPayment(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.ApprovePayment(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Len(t, st.Ledger(), 1)
}

func TestRejectPayment(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)
	p := submitPayment(t, st, 1, time.Now())

	rejected, err := svc.RejectPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, rejected.Status)

	stored, err := st.Payment().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, stored.Status)
	assert.Empty(t, st.Ledger())
}

func TestBenefitThresholdCrossing(t *testing.T) {
	ctx := context.Background()
	svc, st, n := newService(t)

	_, err := svc.Award(ctx, 1, models.PointsKindPayment, 95, "saldo inicial")
	require.NoError(t, err)
	assert.Empty(t, n.calls)

	award, err := svc.Award(ctx, 1, models.PointsKindPayment, 10, "Pago puntual")
	require.NoError(t, err)
	require.Len(t, award.Crossed, 1)
	assert.Equal(t, 100, award.Crossed[0].Threshold)
	assert.Equal(t, []benefitCall{{userID: 1, threshold: 100}}, n.calls)

	// Следующее начисление ниже 200 не повторяет бонус 100
	award, err = svc.Award(ctx, 1, models.PointsKindPayment, 10, "Pago puntual")
	require.NoError(t, err)
	assert.Empty(t, award.Crossed)
	assert.Len(t, n.calls, 1)

	// Одно крупное начисление может пересечь порог 200
	award, err = svc.Award(ctx, 1, models.PointsKindReferral, 90, "bono")
	require.NoError(t, err)
	require.Len(t, award.Crossed, 1)
	assert.Equal(t, 200, award.Crossed[0].Threshold)

	assertLedgerMatchesAccounts(t, st)
}

func TestCrossedBenefits(t *testing.T) {
	assert.Empty(t, CrossedBenefits(0, 99))
	assert.Len(t, CrossedBenefits(99, 100), 1)
	assert.Len(t, CrossedBenefits(0, 250), 2)
	assert.Empty(t, CrossedBenefits(100, 150))
	assert.Empty(t, CrossedBenefits(210, 220))
}

func TestNextBenefit(t *testing.T) {
	b, ok := NextBenefit(40)
	require.True(t, ok)
	assert.Equal(t, 100, b.Threshold)

	b, ok = NextBenefit(150)
	require.True(t, ok)
	assert.Equal(t, 200, b.Threshold)

	_, ok = NextBenefit(200)
	assert.False(t, ok)
}

func TestConcurrentAwardsSameUser(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.Award(ctx, userID, models.PointsKindPayment, 2, "Pago puntual")
			assert.NoError(t, err)
		}(int64(i%2 + 1))
	}
	wg.Wait()

	acc, err := svc.Account(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 40, acc.TotalPoints)
	assertLedgerMatchesAccounts(t, st)
}

func TestAccountDefaultsToZero(t *testing.T) {
	svc, _, _ := newService(t)

	acc, err := svc.Account(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), acc.UserID)
	assert.Zero(t, acc.AvailablePoints)
}

func TestHistoryLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	for i := 0; i < 12; i++ {
		_, err := svc.Award(ctx, 1, models.PointsKindPayment, 2, "Pago puntual")
		require.NoError(t, err)
	}

	entries, err := svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, HistoryLimit)
}

func TestAwardRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)

	err := st.InTx(ctx, func(tx store.Tx) error {
		if _, err := svc.award(ctx, tx, 1, models.PointsKindPayment, 5, "x"); err != nil {
			return err
		}
		return models.ErrStoreUnavailable
	})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Empty(t, st.Ledger())

	_, err = st.Points().GetAccount(ctx, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
