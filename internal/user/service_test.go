package user

import (
	"context"
	"testing"

	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/points"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store/storetest"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *storetest.Store) {
	t.Helper()
	st := storetest.New()
	pts := points.NewService(st, nil, nil, zap.NewNop())
	return NewService(st, pts, zap.NewNop()), st
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	storetest.SeedUser(t, st, 1, "Ana")

	tests := []struct {
		name     string
		profile  models.Profile
		phone    string
		code     string
		referred bool
		wantErr  error
	}{
		{
			name:    "без кода",
			profile: models.Profile{UserID: 10, FirstName: "Luis"},
			phone:   "+584121112233",
		},
		{
			name:     "с кодом пригласившего",
			profile:  models.Profile{UserID: 11, FirstName: "Maria", Username: "maria"},
			phone:    "+584121112244",
			code:     models.ReferralCode(1),
			referred: true,
		},
		{
			name:    "код неизвестного пользователя",
			profile: models.Profile{UserID: 12, FirstName: "Pedro"},
			phone:   "+584121112255",
			code:    "REF777",
		},
		{
			name:    "пустой телефон",
			profile: models.Profile{UserID: 13, FirstName: "Rosa"},
			phone:   "   ",
			wantErr: models.ErrInvalidInput,
		},
		{
			name:    "повторная регистрация",
			profile: models.Profile{UserID: 1, FirstName: "Ana"},
			phone:   "+584120000000",
			wantErr: models.ErrAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := svc.Register(ctx, tt.profile, tt.phone, tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.profile.UserID, reg.User.ID)
			assert.Equal(t, tt.referred, reg.Referral != nil)

			registered, err := svc.IsRegistered(ctx, tt.profile.UserID)
			require.NoError(t, err)
			assert.True(t, registered)
		})
	}

	refs, err := st.Referral().ListByReferrer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Maria", refs[0].ReferredName)
	assert.Equal(t, "+584121112244", refs[0].ReferredPhone)
}

func TestIsRegisteredUnknown(t *testing.T) {
	svc, _ := newService(t)

	registered, err := svc.IsRegistered(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestDeleteMarksPlansDeleted(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	storetest.SeedUser(t, st, 1, "Ana")
	product := storetest.SeedProduct(t, st, "Camisa", "30.00")

	engine := plan.NewEngine(st, nil, nil, zap.NewNop())
	_, err := engine.Assign(ctx, 1, models.Quantities{product.ID: 1})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana", deleted.FirstName)

	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = engine.ActivePlan(ctx, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Проход счетчика не видит планы удаленного пользователя
	result, err := engine.Progress(ctx, plan.ScopeForced)
	require.NoError(t, err)
	assert.Zero(t, result.Affected())

	_, err = svc.Delete(ctx, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	svc, st := newService(t)
	storetest.SeedUser(t, st, 2, "Beto")
	storetest.SeedUser(t, st, 1, "Ana")

	users, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
