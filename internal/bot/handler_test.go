package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/assignment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/auth"
	"github.com/angel0101P/Bot-SusuSemanal/internal/catalog"
	"github.com/angel0101P/Bot-SusuSemanal/internal/metrics"
	"github.com/angel0101P/Bot-SusuSemanal/internal/payment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/points"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/internal/store/storetest"
	"github.com/angel0101P/Bot-SusuSemanal/internal/user"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAdminID = 1000

type sentMessage struct {
	chatID int64
	text   string
	markup interface{}
}

// fakeSender записывает исходящие сообщения вместо отправки в Telegram
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	requests int
	fail     bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var m sentMessage
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		m = sentMessage{chatID: v.ChatID, text: v.Text, markup: v.ReplyMarkup}
	case tgbotapi.EditMessageTextConfig:
		m = sentMessage{chatID: v.ChatID, text: v.Text}
		if v.ReplyMarkup != nil {
			m.markup = *v.ReplyMarkup
		}
	case tgbotapi.PhotoConfig:
		m = sentMessage{chatID: v.ChatID, text: v.Caption}
	default:
		return tgbotapi.Message{}, fmt.Errorf("неожиданный тип %T", c)
	}
	f.sent = append(f.sent, m)
	if f.fail {
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// last последнее сообщение в чат
func (f *fakeSender) last(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].chatID == chatID {
			return f.sent[i]
		}
	}
	t.Fatalf("в чат %d ничего не отправлено", chatID)
	return sentMessage{}
}

func (f *fakeSender) count(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.chatID == chatID {
			n++
		}
	}
	return n
}

type fixture struct {
	h       *Handler
	st      *storetest.Store
	sender  *fakeSender
	tracker *session.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithMetrics(t, nil)
}

func newFixtureWithMetrics(t *testing.T, m *metrics.Metrics) *fixture {
	t.Helper()
	logger := zap.NewNop()
	st := storetest.New()
	sender := &fakeSender{}
	tracker := session.NewTracker()

	notifier := NewNotifier(sender, testAdminID, m, logger)
	pts := points.NewService(st, notifier, m, logger)
	engine := plan.NewEngine(st, notifier, m, logger)

	h, err := NewHandler(sender, Services{
		Users:      user.NewService(st, pts, logger),
		Catalog:    catalog.NewService(st, logger),
		Payments:   payment.NewService(st, logger),
		Plans:      engine,
		Points:     pts,
		Assignment: assignment.NewService(tracker, engine, st, logger),
	}, tracker, auth.NewPolicy(testAdminID), notifier, m, logger)
	require.NoError(t, err)

	return &fixture{h: h, st: st, sender: sender, tracker: tracker}
}

func (f *fixture) message(t *testing.T, m *tgbotapi.Message) {
	t.Helper()
	if m.Chat == nil {
		m.Chat = &tgbotapi.Chat{ID: m.From.ID}
	}
	require.NoError(t, f.h.HandleUpdate(context.Background(), tgbotapi.Update{Message: m}))
}

func (f *fixture) text(t *testing.T, userID int64, text string) {
	t.Helper()
	f.message(t, &tgbotapi.Message{MessageID: 1, From: &tgbotapi.User{ID: userID, FirstName: "Test"}, Text: text})
}

func (f *fixture) press(t *testing.T, userID int64, data string) {
	t.Helper()
	require.NoError(t, f.h.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: userID},
			Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: userID}},
			Data:    data,
		},
	}))
}

func TestRouteTables(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"start", "pagarealizado", "confirmar", "asignar", "forzarincremento"} {
		assert.Contains(t, f.h.commands, name)
	}
	assert.True(t, f.h.commands["confirmar"].admin)
	assert.True(t, f.h.commands["confirmar"].needsID)
	assert.False(t, f.h.commands["catalogo"].admin)

	noop := func(context.Context, *request) error { return nil }
	tests := []struct {
		name   string
		routes []route
	}{
		{name: "дубликат", routes: []route{{name: "a", handler: noop}, {name: "a", handler: noop}}},
		{name: "пустое имя", routes: []route{{name: "", handler: noop}}},
		{name: "нет обработчика", routes: []route{{name: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildCommandTable(tt.routes)
			assert.ErrorIs(t, err, errInvalidRoute)
		})
	}

	_, err := buildCallbackTable([]callbackRoute{{action: "x"}})
	assert.ErrorIs(t, err, errInvalidRoute)
}

func TestFixedResponses(t *testing.T) {
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")

	tests := []struct {
		name   string
		userID int64
		text   string
		want   string
	}{
		{name: "неизвестная команда", userID: 7, text: "/hola", want: textUnknownCommand},
		{name: "команда администратора", userID: 7, text: "/verpagos", want: textForbidden},
		{name: "команда с ID от клиента", userID: 7, text: "/confirmar_3", want: textForbidden},
		{name: "нет ID", userID: testAdminID, text: "/confirmar", want: textMalformed},
		{name: "нечисловой ID", userID: testAdminID, text: "/asignar_abc", want: textMalformed},
		{name: "несуществующий платеж", userID: testAdminID, text: "/confirmar_404", want: textNotFound},
		{name: "текст без диалога", userID: 7, text: "hola", want: textFreeTextHelp},
		{name: "незарегистрированный", userID: 8, text: "/pagarealizado", want: textNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.text(t, tt.userID, tt.text)
			assert.Equal(t, tt.want, f.sender.last(t, tt.userID).text)
		})
	}
}

func TestRegistrationWithReferral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 1, "Ana")

	f.message(t, &tgbotapi.Message{
		From: &tgbotapi.User{ID: 50, FirstName: "Luis"},
		Text: "/start " + models.ReferralCode(1),
	})
	assert.Equal(t, session.TagAwaitingPhone, f.tracker.Current(50))
	assert.Equal(t, textAskPhone, f.sender.last(t, 50).text)

	f.message(t, &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 50, FirstName: "Luis"},
		Contact: &tgbotapi.Contact{PhoneNumber: "+584125550000", UserID: 50},
	})
	assert.Equal(t, session.TagNone, f.tracker.Current(50))
	assert.Contains(t, f.sender.last(t, 50).text, "Registro completado")

	u, err := f.st.User().GetByID(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, "+584125550000", u.Phone)

	refs, err := f.st.Referral().ListByReferrer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, models.ReferralStatusPending, refs[0].Status)
	assert.Contains(t, f.sender.last(t, testAdminID).text, "Nuevo usuario")

	// Повторный /start
	f.text(t, 50, "/start")
	assert.Contains(t, f.sender.last(t, 50).text, "Hola de nuevo")
}

func TestPaymentSubmissionFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")

	f.text(t, 7, "/pagarealizado")
	assert.Equal(t, session.TagAwaitingPaymentDetails, f.tracker.Current(7))

	f.text(t, 7, "Nombre: Ana\nMonto: 10")
	assert.Equal(t, textPaymentFormInvalid, f.sender.last(t, 7).text)
	assert.Equal(t, session.TagAwaitingPaymentDetails, f.tracker.Current(7))

	f.text(t, 7, "Nombre: Ana Perez\nReferencia: 123456\nMonto: 150.00")
	assert.Equal(t, session.TagAwaitingReceiptImage, f.tracker.Current(7))

	f.message(t, &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Document: &tgbotapi.Document{FileID: "doc-1", MimeType: "application/pdf"},
	})
	assert.Equal(t, textUnsupportedFormat, f.sender.last(t, 7).text)
	assert.Equal(t, session.TagAwaitingReceiptImage, f.tracker.Current(7))

	f.message(t, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 7},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	})
	assert.Equal(t, session.TagNone, f.tracker.Current(7))
	assert.Contains(t, f.sender.last(t, 7).text, "Pago registrado")
	assert.Contains(t, f.sender.last(t, testAdminID).text, "NUEVO PAGO")

	pending, err := f.st.Payment().ListByStatus(ctx, models.PaymentStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "large", pending[0].ReceiptFileID)
	assert.Equal(t, "150.00", pending[0].Amount.StringFixed(2))

	// Фото без открытого диалога
	f.message(t, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 7},
		Photo: []tgbotapi.PhotoSize{{FileID: "other"}},
	})
	assert.Equal(t, textNoPaymentInFlow, f.sender.last(t, 7).text)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func submitPayment(t *testing.T, f *fixture, userID int64) *models.Payment {
	t.Helper()
	p, err := f.h.services.Payments.Submit(context.Background(), userID,
		payment.Details{PayerName: "Ana", Reference: "R1", Amount: mustDecimal(t, "20")}, "file-1")
	require.NoError(t, err)
	return p
}

func TestApprovePayment(t *testing.T) {
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	p := submitPayment(t, f, 7)

	f.text(t, testAdminID, fmt.Sprintf("/confirmar_%d", p.ID))
	assert.Contains(t, f.sender.last(t, testAdminID).text, "aprobado")
	assert.Contains(t, f.sender.last(t, 7).text, "Pago aprobado")

	acc, err := f.h.services.Points.Account(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, points.OnTimePoints, acc.AvailablePoints)

	// Повторное одобрение
	f.text(t, testAdminID, fmt.Sprintf("/confirmar_%d", p.ID))
	assert.Equal(t, textNotFound, f.sender.last(t, testAdminID).text)
}

func TestRejectPaymentWithReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	p := submitPayment(t, f, 7)

	f.text(t, testAdminID, fmt.Sprintf("/rechazar_%d", p.ID))
	assert.Equal(t, session.TagAwaitingRejectionReason, f.tracker.Current(testAdminID))

	f.text(t, testAdminID, "Referencia no encontrada")
	assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
	assert.Contains(t, f.sender.last(t, 7).text, "Referencia no encontrada")

	stored, err := f.st.Payment().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, stored.Status)
	assert.Empty(t, f.st.Ledger())
}

func TestAssignmentThroughButtons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	shirt := storetest.SeedProduct(t, f.st, "Camisa", "30.00")
	shoes := storetest.SeedProduct(t, f.st, "Zapatos", "40.00")

	f.text(t, testAdminID, "/asignar_7")
	opened := f.sender.last(t, testAdminID)
	assert.Contains(t, opened.text, "ASIGNACIÓN")
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, opened.markup)

	f.press(t, testAdminID, callbackData(actionAssignAdd, 7, shirt.ID))
	f.press(t, testAdminID, callbackData(actionAssignAdd, 7, shirt.ID))
	f.press(t, testAdminID, callbackData(actionAssignAdd, 7, shoes.ID))
	assert.Contains(t, f.sender.last(t, testAdminID).text, "$100.00")

	f.press(t, testAdminID, callbackData(actionAssignConfirm, 7))
	assert.Contains(t, f.sender.last(t, testAdminID).text, "Plan creado")
	assert.Contains(t, f.sender.last(t, 7).text, "plan de pagos")

	active, err := f.h.services.Plans.ActivePlan(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Quantities[shirt.ID])
	assert.Equal(t, "10.00", active.WeeklyPayment.StringFixed(2))

	// Черновик удален после подтверждения
	f.press(t, testAdminID, callbackData(actionAssignConfirm, 7))
	assert.Equal(t, textEmptyDraft, f.sender.last(t, testAdminID).text)

	// Клиент не может нажимать кнопки администратора
	f.press(t, 7, callbackData(actionAssignAdd, 7, shirt.ID))
	assert.Equal(t, textForbidden, f.sender.last(t, 7).text)
}

func TestCancelClearsStateAndDrafts(t *testing.T) {
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	storetest.SeedProduct(t, f.st, "Camisa", "30.00")

	f.text(t, testAdminID, "/asignar_7")
	f.text(t, testAdminID, "/adminagregarproducto")
	assert.Equal(t, session.TagAddingProduct, f.tracker.Current(testAdminID))

	f.text(t, testAdminID, "/cancelar")
	assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
	_, ok := f.tracker.Draft(session.DraftKey{AdminID: testAdminID, TargetID: 7})
	assert.False(t, ok)
}

func TestAddAndEditProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.text(t, testAdminID, "/adminagregarproducto")
	f.text(t, testAdminID, "Nombre: Gorra\nPrecio: 12.5")
	assert.Contains(t, f.sender.last(t, testAdminID).text, "Producto agregado")

	products, err := f.st.Product().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	id := products[0].ID

	f.text(t, testAdminID, fmt.Sprintf("/editarproducto_%d", id))
	f.press(t, testAdminID, callbackData(actionEditField, id, models.ProductFieldPrice))
	assert.Equal(t, session.TagEditingProductField, f.tracker.Current(testAdminID))

	f.text(t, testAdminID, "-5")
	assert.Equal(t, textInvalidInput, f.sender.last(t, testAdminID).text)
	assert.Equal(t, session.TagEditingProductField, f.tracker.Current(testAdminID))

	f.text(t, testAdminID, "15")
	assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
	stored, err := f.st.Product().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "15.00", stored.Price.StringFixed(2))

	f.text(t, testAdminID, fmt.Sprintf("/eliminarproducto_%d", id))
	f.press(t, testAdminID, callbackData(actionDeleteProduct, id))
	products, err = f.st.Product().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestConfigureCustomWeeks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.press(t, testAdminID, callbackData(actionWeeks, weeksCustom))
	assert.Equal(t, session.TagConfiguringWeeks, f.tracker.Current(testAdminID))

	f.text(t, testAdminID, "cero")
	assert.Equal(t, textInvalidWeeks, f.sender.last(t, testAdminID).text)
	assert.Equal(t, session.TagConfiguringWeeks, f.tracker.Current(testAdminID))

	f.text(t, testAdminID, "12")
	assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
	cfg, err := f.st.Config().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.WeeksDefault)

	f.text(t, testAdminID, "/configurarsemanas 8")
	cfg, err = f.st.Config().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.WeeksDefault)
}

func TestManualProgressWhilePaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	shirt := storetest.SeedProduct(t, f.st, "Camisa", "30.00")
	_, err := f.h.services.Plans.Assign(ctx, 7, models.Quantities{shirt.ID: 1})
	require.NoError(t, err)

	f.text(t, testAdminID, "/pausarcontador")
	f.text(t, testAdminID, "/incrementarsemana")
	paused := f.sender.last(t, testAdminID)
	assert.Contains(t, paused.text, "pausado")
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, paused.markup)

	p, err := f.h.services.Plans.ActivePlan(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, p.WeeksCompleted)

	f.press(t, testAdminID, actionForceProgress)
	p, err = f.h.services.Plans.ActivePlan(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, p.WeeksCompleted)
	assert.Contains(t, f.sender.last(t, 7).text, "Semana 1 de 10")
}

func TestCallbackIsAnswered(t *testing.T) {
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")

	f.press(t, 7, actionMyPoints)
	assert.Equal(t, 1, f.sender.requests)
	assert.Contains(t, f.sender.last(t, 7).text, "MIS PUNTOS")

	// Неизвестная кнопка игнорируется
	before := f.sender.count(7)
	f.press(t, 7, "desconocido:1")
	assert.Equal(t, before, f.sender.count(7))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < MaxRequestsPerMinute; i++ {
		require.True(t, rl.IsAllowed(1))
	}
	assert.False(t, rl.IsAllowed(1))
	assert.True(t, rl.IsAllowed(2))

	now = now.Add(RateLimitWindow)
	assert.True(t, rl.IsAllowed(1))
}

func TestNotifierSwallowsDeliveryErrors(t *testing.T) {
	sender := &fakeSender{fail: true}
	n := NewNotifier(sender, testAdminID, nil, zap.NewNop())

	n.PlanCompleted(context.Background(), &models.PaymentPlan{UserID: 7, WeeksTotal: 10, Total: mustDecimal(t, "100")})
	n.PaymentRejected(context.Background(), &models.Payment{UserID: 7, Reference: "<R1>"}, "monto <incorrecto>")

	require.Equal(t, 2, sender.count(7))
	assert.True(t, strings.Contains(sender.last(t, 7).text, "&lt;incorrecto&gt;"))
}

func TestStoreFailureKeepsAdminFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	p := submitPayment(t, f, 7)
	hat := storetest.SeedProduct(t, f.st, "Gorra", "10.00")
	dbDown := errors.New("db down")

	t.Run("причина отклонения", func(t *testing.T) {
		f.text(t, testAdminID, fmt.Sprintf("/rechazar_%d", p.ID))

		f.st.FailWith(dbDown)
		f.text(t, testAdminID, "Monto incorrecto")
		f.st.FailWith(nil)
		assert.Equal(t, textGenericFailure, f.sender.last(t, testAdminID).text)
		assert.Equal(t, session.TagAwaitingRejectionReason, f.tracker.Current(testAdminID))

		f.text(t, testAdminID, "Monto incorrecto")
		assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
		stored, err := f.st.Payment().GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusRejected, stored.Status)
	})

	t.Run("свои недели", func(t *testing.T) {
		f.press(t, testAdminID, callbackData(actionWeeks, weeksCustom))

		f.st.FailWith(dbDown)
		f.text(t, testAdminID, "12")
		f.st.FailWith(nil)
		assert.Equal(t, textGenericFailure, f.sender.last(t, testAdminID).text)
		assert.Equal(t, session.TagConfiguringWeeks, f.tracker.Current(testAdminID))

		f.text(t, testAdminID, "12")
		assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
		cfg, err := f.st.Config().Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, 12, cfg.WeeksDefault)
	})

	t.Run("редактирование товара", func(t *testing.T) {
		f.press(t, testAdminID, callbackData(actionEditField, hat.ID, models.ProductFieldPrice))

		f.st.FailWith(dbDown)
		f.text(t, testAdminID, "15")
		f.st.FailWith(nil)
		assert.Equal(t, textGenericFailure, f.sender.last(t, testAdminID).text)
		assert.Equal(t, session.TagEditingProductField, f.tracker.Current(testAdminID))

		f.text(t, testAdminID, "15")
		assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
		stored, err := f.st.Product().GetByID(ctx, hat.ID)
		require.NoError(t, err)
		assert.Equal(t, "15.00", stored.Price.StringFixed(2))
	})
}

func TestRejectionOfVanishedPaymentEndsFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	p := submitPayment(t, f, 7)

	f.text(t, testAdminID, fmt.Sprintf("/rechazar_%d", p.ID))
	require.NoError(t, f.h.services.Payments.Delete(ctx, p.ID))

	f.text(t, testAdminID, "Duplicado")
	assert.Equal(t, textNotFound, f.sender.last(t, testAdminID).text)
	assert.Equal(t, session.TagNone, f.tracker.Current(testAdminID))
}

func TestPaymentDetailAndDeleteAlias(t *testing.T) {
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")
	p := submitPayment(t, f, 7)

	before := f.sender.count(testAdminID)
	f.text(t, testAdminID, fmt.Sprintf("/verpago_%d", p.ID))
	// Сначала чек, затем карточка платежа
	assert.Equal(t, before+2, f.sender.count(testAdminID))
	detail := f.sender.last(t, testAdminID)
	assert.Contains(t, detail.text, "DETALLES DEL PAGO")
	assert.Contains(t, detail.text, fmt.Sprintf("/borrarpago_%d", p.ID))

	f.text(t, testAdminID, fmt.Sprintf("/borrarpago_%d", p.ID))
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, f.sender.last(t, testAdminID).markup)

	f.text(t, 7, fmt.Sprintf("/verpago_%d", p.ID))
	assert.Equal(t, textForbidden, f.sender.last(t, 7).text)

	f.text(t, testAdminID, "/verpago_404")
	assert.Equal(t, textNotFound, f.sender.last(t, testAdminID).text)
}

// commandCount читает счетчик команд из реестра
func commandCount(t *testing.T, reg *prometheus.Registry, command, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "susu_commands_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["command"] == command && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestForbiddenActionsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixtureWithMetrics(t, metrics.NewWithRegistry(reg, reg, zap.NewNop()))
	storetest.SeedUser(t, f.st, 7, "Ana")

	f.press(t, 7, callbackData(actionAssignAdd, 7, 1))
	assert.Equal(t, textForbidden, f.sender.last(t, 7).text)
	assert.Equal(t, 1.0, commandCount(t, reg, "cb_"+actionAssignAdd, "forbidden"))

	f.text(t, 7, "/verpagos")
	assert.Equal(t, 1.0, commandCount(t, reg, "verpagos", "forbidden"))
}

func TestDispatcherKeepsPerUserOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := NewDispatcher(f.h, zap.NewNop())

	const users = 20
	update := func(userID int64, m *tgbotapi.Message) tgbotapi.Update {
		m.From = &tgbotapi.User{ID: userID}
		m.Chat = &tgbotapi.Chat{ID: userID}
		return tgbotapi.Update{Message: m}
	}

	// Фото отправляется сразу за данными платежа, без ожидания ответа
	for id := int64(1); id <= users; id++ {
		storetest.SeedUser(t, f.st, id, fmt.Sprintf("Cliente %d", id))
		d.Dispatch(ctx, update(id, &tgbotapi.Message{Text: "/pagarealizado"}))
		d.Dispatch(ctx, update(id, &tgbotapi.Message{Text: "Nombre: Ana\nReferencia: 1234\nMonto: 20"}))
		d.Dispatch(ctx, update(id, &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "receipt"}}}))
	}
	d.Wait()

	pending, err := f.st.Payment().ListByStatus(ctx, models.PaymentStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, users)
	for id := int64(1); id <= users; id++ {
		assert.Equal(t, session.TagNone, f.tracker.Current(id))
		assert.Contains(t, f.sender.last(t, id).text, "Pago registrado")
	}
}

func TestHandleUpdateSerializesUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storetest.SeedUser(t, f.st, 7, "Ana")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.h.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
				From: &tgbotapi.User{ID: 7},
				Chat: &tgbotapi.Chat{ID: 7},
				Text: "/mispuntos",
			}})
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, f.sender.count(7))
	assert.Zero(t, f.h.userLocks.Len())
}
