package assignment

import (
	"context"
	"testing"

	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store/storetest"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminID  int64 = 100
	clientID int64 = 1
)

type fixture struct {
	svc     *Service
	store   *storetest.Store
	tracker *session.Tracker
	engine  *plan.Engine
	shirt   *models.Product
	shoes   *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New()
	storetest.SeedUser(t, st, clientID, "Ana")
	shirt := storetest.SeedProduct(t, st, "Camisa", "30.00")
	shoes := storetest.SeedProduct(t, st, "Zapatos", "40.00")

	tracker := session.NewTracker()
	engine := plan.NewEngine(st, nil, nil, zap.NewNop())
	return &fixture{
		svc:     NewService(tracker, engine, st, zap.NewNop()),
		store:   st,
		tracker: tracker,
		engine:  engine,
		shirt:   shirt,
		shoes:   shoes,
	}
}

func TestOpenEmptyDraft(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Open(context.Background(), adminID, clientID)
	require.NoError(t, err)
	assert.Empty(t, view.Quantities)
	assert.Len(t, view.Products, 2)
	assert.Equal(t, models.DefaultWeeks, view.Weeks)
	assert.True(t, view.Total.IsZero())

	_, ok := f.tracker.Draft(session.DraftKey{AdminID: adminID, TargetID: clientID})
	assert.True(t, ok)
}

func TestOpenUnknownTarget(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Open(context.Background(), adminID, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAdjustAndConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Open(ctx, adminID, clientID)
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, adminID, clientID, f.shirt.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, adminID, clientID, f.shirt.ID, 1)
	require.NoError(t, err)
	view, err := f.svc.Adjust(ctx, adminID, clientID, f.shoes.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, view.Quantity(f.shirt.ID))
	assert.Equal(t, 1, view.Quantity(f.shoes.ID))
	assert.Equal(t, "100.00", view.Total.StringFixed(2))
	assert.Equal(t, "10.00", view.Weekly.StringFixed(2))

	result, err := f.svc.Confirm(ctx, adminID, clientID)
	require.NoError(t, err)
	assert.False(t, result.Replaced)
	assert.Equal(t, "100.00", result.Plan.Total.StringFixed(2))
	assert.Equal(t, 0, result.Plan.WeeksCompleted)

	_, ok := f.tracker.Draft(session.DraftKey{AdminID: adminID, TargetID: clientID})
	assert.False(t, ok)
}

func TestAdjustClampsAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.svc.Adjust(ctx, adminID, clientID, f.shirt.ID, -1)
	require.NoError(t, err)
	assert.Empty(t, view.Quantities)

	_, err = f.svc.Adjust(ctx, adminID, clientID, f.shirt.ID, 1)
	require.NoError(t, err)
	view, err = f.svc.Adjust(ctx, adminID, clientID, f.shirt.ID, -1)
	require.NoError(t, err)
	_, present := view.Quantities[f.shirt.ID]
	assert.False(t, present)
}

func TestAdjustUnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Adjust(context.Background(), adminID, clientID, 999, 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestOpenLoadsActivePlanAndResetKeepsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Assign(ctx, clientID, models.Quantities{f.shoes.ID: 3})
	require.NoError(t, err)

	view, err := f.svc.Open(ctx, adminID, clientID)
	require.NoError(t, err)
	assert.Equal(t, models.Quantities{f.shoes.ID: 3}, view.Quantities)

	view, err = f.svc.Reset(ctx, adminID, clientID)
	require.NoError(t, err)
	assert.Empty(t, view.Quantities)

	// Повторное открытие продолжает пустой черновик, а не план
	view, err = f.svc.Open(ctx, adminID, clientID)
	require.NoError(t, err)
	assert.Empty(t, view.Quantities)

	_, err = f.svc.Confirm(ctx, adminID, clientID)
	assert.ErrorIs(t, err, models.ErrEmptyAssignment)
}

func TestConfirmReplacesActivePlan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.engine.Assign(ctx, clientID, models.Quantities{f.shoes.ID: 1})
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, adminID, clientID)
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, adminID, clientID, f.shirt.ID, 1)
	require.NoError(t, err)

	result, err := f.svc.Confirm(ctx, adminID, clientID)
	require.NoError(t, err)
	assert.True(t, result.Replaced)
	assert.Equal(t, first.Plan.ID, result.Plan.ID)
	assert.Equal(t, models.Quantities{f.shirt.ID: 1, f.shoes.ID: 1}, result.Plan.Quantities)
	assert.Equal(t, "70.00", result.Plan.Total.StringFixed(2))
}

func TestConfirmWithoutDraft(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Confirm(context.Background(), adminID, clientID)
	assert.ErrorIs(t, err, models.ErrEmptyAssignment)
}

func TestCancelDropsDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Adjust(ctx, adminID, clientID, f.shirt.ID, 1)
	require.NoError(t, err)
	f.svc.Cancel(adminID, clientID)

	_, ok := f.tracker.Draft(session.DraftKey{AdminID: adminID, TargetID: clientID})
	assert.False(t, ok)

	_, err = f.engine.ActivePlan(ctx, clientID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAdjustInactiveProductOnlyDecrements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Assign(ctx, clientID, models.Quantities{f.shoes.ID: 2, f.shirt.ID: 1})
	require.NoError(t, err)
	require.NoError(t, f.store.Product().Deactivate(ctx, f.shoes.ID))

	view, err := f.svc.Open(ctx, adminID, clientID)
	require.NoError(t, err)
	// Товар из плана виден в черновике, хотя снят с продажи
	assert.Len(t, view.Products, 2)
	assert.Equal(t, "110.00", view.Total.StringFixed(2))

	_, err = f.svc.Adjust(ctx, adminID, clientID, f.shoes.ID, 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	view, err = f.svc.Adjust(ctx, adminID, clientID, f.shoes.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Quantity(f.shoes.ID))

	// Пока товар в черновике, подтверждение отклоняется
	_, err = f.svc.Confirm(ctx, adminID, clientID)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	view, err = f.svc.Adjust(ctx, adminID, clientID, f.shoes.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, models.Quantities{f.shirt.ID: 1}, view.Quantities)
	assert.Len(t, view.Products, 1)

	result, err := f.svc.Confirm(ctx, adminID, clientID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", result.Plan.Total.StringFixed(2))
}
