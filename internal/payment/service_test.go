package payment

import (
	"context"
	"testing"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/store/storetest"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDetails(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Details
		wantErr bool
	}{
		{
			name: "полная форма",
			text: "Nombre: Juan Pérez\nReferencia: 123456\nMonto: 150.00",
			want: Details{PayerName: "Juan Pérez", Reference: "123456", Amount: decimal.RequireFromString("150")},
		},
		{
			name: "ключи в другом регистре и двоеточие в значении",
			text: "NOMBRE: Ana\nreferencia: TX:99\nmonto: $20,5",
			want: Details{PayerName: "Ana", Reference: "TX:99", Amount: decimal.RequireFromString("20.5")},
		},
		{name: "нет суммы", text: "Nombre: Ana\nReferencia: 1", wantErr: true},
		{name: "нулевая сумма", text: "Nombre: Ana\nReferencia: 1\nMonto: 0", wantErr: true},
		{name: "сумма не число", text: "Nombre: Ana\nReferencia: 1\nMonto: cien", wantErr: true},
		{name: "свободный текст", text: "hola, ya pague", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDetails(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.PayerName, got.PayerName)
			assert.Equal(t, tt.want.Reference, got.Reference)
			assert.True(t, tt.want.Amount.Equal(got.Amount), "amount %s", got.Amount)
		})
	}
}

func TestSubmitAndList(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	svc := NewService(st, zap.NewNop())
	details := Details{PayerName: "Ana", Reference: "123", Amount: decimal.RequireFromString("10")}

	_, err := svc.Submit(ctx, 1, details, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	p, err := svc.Submit(ctx, 1, details, "file-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	mine, err := svc.ByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = svc.Delete(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPurgeRejected(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	svc := NewService(st, zap.NewNop())

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	submit := func(userID int64, at time.Time, status models.PaymentStatus) *models.Payment {
		svc.now = func() time.Time { return at }
		p, err := svc.Submit(ctx, userID, Details{PayerName: "Ana", Reference: "R", Amount: decimal.RequireFromString("10")}, "file")
		require.NoError(t, err)
		if status != models.PaymentStatusPending {
			require.NoError(t, st.Payment().UpdateStatus(ctx, p.ID, status))
		}
		return p
	}

	old := submit(1, now.AddDate(0, 0, -40), models.PaymentStatusRejected)
	otherUser := submit(2, now.AddDate(0, 0, -40), models.PaymentStatusRejected)
	recent := submit(1, now.AddDate(0, 0, -5), models.PaymentStatusRejected)
	pending := submit(1, now.AddDate(0, 0, -40), models.PaymentStatusPending)
	svc.now = func() time.Time { return now }

	n, err := svc.PurgeRejected(ctx, 30*24*time.Hour, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = svc.Get(ctx, old.ID)
	require.NoError(t, err)

	n, err = svc.PurgeRejected(ctx, 30*24*time.Hour, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, p := range []*models.Payment{old, otherUser} {
		_, err = svc.Get(ctx, p.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	}
	for _, p := range []*models.Payment{recent, pending} {
		_, err = svc.Get(ctx, p.ID)
		assert.NoError(t, err)
	}
}
