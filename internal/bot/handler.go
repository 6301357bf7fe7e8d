package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/assignment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/auth"
	"github.com/angel0101P/Bot-SusuSemanal/internal/catalog"
	"github.com/angel0101P/Bot-SusuSemanal/internal/keylock"
	"github.com/angel0101P/Bot-SusuSemanal/internal/metrics"
	"github.com/angel0101P/Bot-SusuSemanal/internal/payment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/points"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/internal/user"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	// Rate limiting
	MaxRequestsPerMinute = 30 // Максимум запросов в минуту на пользователя
	RateLimitWindow      = time.Minute

	// RankingLimit размер рейтинга в /rankingpuntos
	RankingLimit = 10
)

// Sender часть Telegram API, которой пользуется бот
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// RateLimiter простой rate limiter для пользователей
type RateLimiter struct {
	requests map[int64][]time.Time
	mutex    sync.Mutex
	now      func() time.Time
}

// NewRateLimiter создает новый rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		now:      time.Now,
	}
}

// IsAllowed проверяет, разрешен ли запрос для пользователя
func (rl *RateLimiter) IsAllowed(userID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	userRequests := rl.requests[userID]

	// Удаляем старые запросы
	validRequests := userRequests[:0]
	for _, reqTime := range userRequests {
		if now.Sub(reqTime) < RateLimitWindow {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) >= MaxRequestsPerMinute {
		rl.requests[userID] = validRequests
		return false
	}

	rl.requests[userID] = append(validRequests, now)
	return true
}

// Services доменные сервисы, которые вызывает бот
type Services struct {
	Users      *user.Service
	Catalog    *catalog.Service
	Payments   *payment.Service
	Plans      *plan.Engine
	Points     *points.Service
	Assignment *assignment.Service
}

// Handler представляет обработчик сообщений Telegram
type Handler struct {
	sender      Sender
	services    Services
	tracker     *session.Tracker
	policy      *auth.Policy
	notifier    *Notifier
	metrics     *metrics.Metrics
	logger      *zap.Logger
	rateLimiter *RateLimiter
	userLocks   *keylock.Mutex
	commands    map[string]route
	callbacks   map[string]callbackRoute
}

// NewHandler создает обработчик и проверяет таблицы маршрутов
func NewHandler(
	sender Sender,
	services Services,
	tracker *session.Tracker,
	policy *auth.Policy,
	notifier *Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Handler, error) {
	h := &Handler{
		sender:      sender,
		services:    services,
		tracker:     tracker,
		policy:      policy,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		rateLimiter: NewRateLimiter(),
		userLocks:   keylock.New(),
	}

	var err error
	if h.commands, err = buildCommandTable(h.commandRoutes()); err != nil {
		return nil, err
	}
	if h.callbacks, err = buildCallbackTable(h.callbackRoutes()); err != nil {
		return nil, err
	}
	return h, nil
}

// updateUserID возвращает автора обновления или 0, если его нет
func updateUserID(update tgbotapi.Update) int64 {
	switch {
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	default:
		return 0
	}
}

// HandleUpdate обрабатывает входящее обновление.
// Обновления одного пользователя обрабатываются строго по одному.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	userID := updateUserID(update)
	if userID == 0 {
		return nil
	}

	unlock := h.userLocks.Lock(userID)
	defer unlock()

	if !h.rateLimiter.IsAllowed(userID) {
		h.logger.Warn("rate limit exceeded", zap.Int64("user_id", userID))
		if update.Message != nil {
			return h.sendText(update.Message.Chat.ID, textTooManyReqs)
		}
		return nil
	}

	// Обрабатываем inline кнопки
	if update.CallbackQuery != nil {
		return h.handleCallbackQuery(ctx, update.CallbackQuery)
	}

	msg := update.Message
	h.logger.Debug("получено обновление",
		zap.Int64("chat_id", msg.Chat.ID),
		zap.Int64("user_id", userID),
		zap.String("username", msg.From.UserName))

	req := &request{
		chatID:  msg.Chat.ID,
		userID:  userID,
		from:    msg.From,
		message: msg,
	}

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		return h.handleCommand(ctx, req)
	case msg.Contact != nil:
		return h.handleContact(ctx, req)
	case len(msg.Photo) > 0:
		return h.handlePhoto(ctx, req)
	case msg.Document != nil:
		return h.handleDocument(ctx, req)
	case msg.Text != "":
		return h.handleText(ctx, req)
	default:
		return nil
	}
}

// handleCommand разбирает команду и передает ее обработчику из таблицы
func (h *Handler) handleCommand(ctx context.Context, req *request) error {
	cmd, err := ParseCommand(req.message.Text)
	if err != nil {
		h.metrics.RecordCommand("malformed", "error")
		return h.sendText(req.chatID, textMalformed)
	}
	req.cmd = cmd

	r, ok := h.commands[cmd.Name]
	if !ok {
		h.metrics.RecordCommand("unknown", "error")
		return h.sendText(req.chatID, textUnknownCommand)
	}

	err = h.dispatch(ctx, req, r)
	h.metrics.RecordCommand(r.name, statusOf(err))
	return h.reply(req, r.name, err)
}

func (h *Handler) dispatch(ctx context.Context, req *request, r route) error {
	if r.admin {
		if err := h.policy.Require(req.userID); err != nil {
			return err
		}
	}
	if r.needsID && !req.cmd.HasID {
		return fmt.Errorf("%w: /%s требует ID", ErrMalformedCommand, r.name)
	}
	return r.handler(ctx, req)
}

// handleCallbackQuery обрабатывает inline кнопки
func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	// Отвечаем на callback (убираем "загрузку" кнопки)
	if _, err := h.sender.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		h.logger.Error("ошибка ответа на callback", zap.Error(err))
	}

	req := &request{userID: callback.From.ID, from: callback.From, message: callback.Message}
	if callback.Message != nil {
		req.chatID = callback.Message.Chat.ID
	} else {
		req.chatID = callback.From.ID
	}

	h.logger.Info("обрабатываем callback",
		zap.String("data", callback.Data),
		zap.Int64("user_id", req.userID))

	cb, err := ParseCallback(callback.Data)
	if err != nil {
		return h.reply(req, "callback", err)
	}
	r, ok := h.callbacks[cb.Action]
	if !ok {
		h.logger.Warn("неизвестная кнопка", zap.String("data", callback.Data))
		return nil
	}

	err = h.dispatchCallback(ctx, req, r, cb)
	h.metrics.RecordCommand("cb_"+r.action, statusOf(err))
	return h.reply(req, r.action, err)
}

func (h *Handler) dispatchCallback(ctx context.Context, req *request, r callbackRoute, cb Callback) error {
	if r.admin {
		if err := h.policy.Require(req.userID); err != nil {
			return err
		}
	}
	return r.handler(ctx, req, cb)
}

// reply превращает ошибку обработчика в фиксированный ответ.
// Детали ошибки остаются только в логе.
func (h *Handler) reply(req *request, name string, err error) error {
	if err == nil {
		return nil
	}

	text := textGenericFailure
	switch {
	case errors.Is(err, models.ErrForbidden):
		text = textForbidden
	case errors.Is(err, ErrMalformedCommand):
		text = textMalformed
	case errors.Is(err, models.ErrNotFound):
		text = textNotFound
	case errors.Is(err, models.ErrEmptyAssignment):
		text = textEmptyDraft
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidAssignment):
		text = textInvalidInput
	case errors.Is(err, models.ErrAlreadyExists):
		text = welcomeBackText(req.from.FirstName)
	default:
		h.logger.Error("ошибка обработки",
			zap.String("route", name),
			zap.Int64("user_id", req.userID),
			zap.Error(err))
		return h.sendText(req.chatID, text)
	}

	h.logger.Debug("отказ в обработке",
		zap.String("route", name),
		zap.Int64("user_id", req.userID),
		zap.Error(err))
	return h.sendText(req.chatID, text)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrMalformedCommand), errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidAssignment), errors.Is(err, models.ErrEmptyAssignment):
		return "invalid"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// requireRegistered возвращает пользователя или сообщает, что нужна регистрация
func (h *Handler) requireRegistered(ctx context.Context, req *request) (*models.User, bool, error) {
	u, err := h.services.Users.Get(ctx, req.userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, false, h.sendText(req.chatID, textNotRegistered)
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// sendText отправляет HTML сообщение
func (h *Handler) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return h.send(msg)
}

// sendWithMarkup отправляет HTML сообщение с клавиатурой
func (h *Handler) sendWithMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return h.send(msg)
}

// editText заменяет текст и клавиатуру сообщения с кнопками
func (h *Handler) editText(req *request, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if req.message == nil {
		if markup == nil {
			return h.sendText(req.chatID, text)
		}
		return h.sendWithMarkup(req.chatID, text, *markup)
	}
	var edit tgbotapi.EditMessageTextConfig
	if markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(req.chatID, req.message.MessageID, text, *markup)
	} else {
		edit = tgbotapi.NewEditMessageText(req.chatID, req.message.MessageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML
	return h.send(edit)
}

func (h *Handler) send(c tgbotapi.Chattable) error {
	if _, err := h.sender.Send(c); err != nil {
		h.logger.Error("ошибка отправки сообщения", zap.Error(err))
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}

func profileOf(from *tgbotapi.User) models.Profile {
	return models.Profile{
		UserID:    from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}
}
