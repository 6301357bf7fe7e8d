package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/angel0101P/Bot-SusuSemanal/internal/catalog"
	"github.com/angel0101P/Bot-SusuSemanal/internal/payment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Свободный текст и медиа интерпретируются только через текущее состояние диалога.

func (h *Handler) handleContact(ctx context.Context, req *request) error {
	state, ok := h.tracker.Get(req.userID)
	if !ok {
		return h.sendText(req.chatID, textFreeTextHelp)
	}
	phoneState, ok := state.(session.AwaitingPhone)
	if !ok {
		return h.sendText(req.chatID, textFreeTextHelp)
	}
	return h.completeRegistration(ctx, req, phoneState, req.message.Contact.PhoneNumber)
}

func (h *Handler) handleText(ctx context.Context, req *request) error {
	state, ok := h.tracker.Get(req.userID)
	if !ok {
		return h.sendText(req.chatID, textFreeTextHelp)
	}
	text := strings.TrimSpace(req.message.Text)

	var err error
	name := string(state.Tag())
	switch st := state.(type) {
	case session.AwaitingPhone:
		err = h.completeRegistration(ctx, req, st, text)
	case session.AwaitingPaymentDetails:
		err = h.acceptPaymentDetails(req, text)
	case session.AwaitingReceiptImage:
		err = h.sendText(req.chatID, textAwaitReceipt)
	case session.AwaitingRejectionReason:
		err = h.rejectWithReason(ctx, req, st, text)
	case session.EditingProductField:
		err = h.applyProductEdit(ctx, req, st, text)
	case session.ConfiguringWeeks:
		err = h.acceptCustomWeeks(ctx, req, text)
	case session.AddingProduct:
		err = h.addProduct(ctx, req, text)
	default:
		h.tracker.Clear(req.userID)
		err = h.sendText(req.chatID, textFreeTextHelp)
	}
	h.metrics.RecordCommand("flow_"+name, statusOf(err))
	return h.reply(req, name, err)
}

func (h *Handler) handlePhoto(ctx context.Context, req *request) error {
	photos := req.message.Photo
	// Самое большое разрешение идет последним
	return h.acceptReceipt(ctx, req, photos[len(photos)-1].FileID)
}

func (h *Handler) handleDocument(ctx context.Context, req *request) error {
	doc := req.message.Document
	if h.tracker.Current(req.userID) != session.TagAwaitingReceiptImage {
		return h.sendText(req.chatID, textNoPaymentInFlow)
	}
	if !strings.HasPrefix(doc.MimeType, "image/") {
		return h.sendText(req.chatID, textUnsupportedFormat)
	}
	return h.acceptReceipt(ctx, req, doc.FileID)
}

// completeRegistration создает пользователя по номеру телефона
func (h *Handler) completeRegistration(ctx context.Context, req *request, st session.AwaitingPhone, phone string) error {
	reg, err := h.services.Users.Register(ctx, st.Profile, phone, st.ReferralCode)
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return h.sendWithMarkup(req.chatID, textAskPhone, phoneKeyboard())
	case errors.Is(err, models.ErrAlreadyExists):
		h.tracker.Clear(req.userID)
		return h.sendWithMarkup(req.chatID, welcomeBackText(st.Profile.FirstName), tgbotapi.NewRemoveKeyboard(true))
	case err != nil:
		return err
	}

	h.tracker.Clear(req.userID)
	if err := h.sendWithMarkup(req.chatID, registeredText(reg.User, reg.Referral != nil), tgbotapi.NewRemoveKeyboard(true)); err != nil {
		return err
	}
	h.notifier.NewUser(ctx, reg)
	return nil
}

// acceptPaymentDetails проверяет данные платежа. При ошибке состояние не меняется.
func (h *Handler) acceptPaymentDetails(req *request, text string) error {
	details, err := payment.ParseDetails(text)
	if err != nil {
		h.logger.Debug("некорректные данные платежа", zap.Int64("user_id", req.userID), zap.Error(err))
		return h.sendText(req.chatID, textPaymentFormInvalid)
	}
	h.tracker.Set(req.userID, session.AwaitingReceiptImage{Details: details})
	return h.sendText(req.chatID, textAwaitReceipt)
}

// acceptReceipt создает ожидающий платеж по фото чека
func (h *Handler) acceptReceipt(ctx context.Context, req *request, fileID string) error {
	state, ok := h.tracker.Get(req.userID)
	if !ok {
		return h.sendText(req.chatID, textNoPaymentInFlow)
	}
	st, ok := state.(session.AwaitingReceiptImage)
	if !ok {
		return h.sendText(req.chatID, textNoPaymentInFlow)
	}

	p, err := h.services.Payments.Submit(ctx, req.userID, st.Details, fileID)
	if err != nil {
		h.metrics.RecordCommand("flow_receipt", statusOf(err))
		return h.reply(req, "receipt", err)
	}
	h.metrics.RecordCommand("flow_receipt", "ok")
	h.tracker.Clear(req.userID)

	if err := h.sendText(req.chatID, paymentSubmittedText(p)); err != nil {
		return err
	}
	h.notifier.NewPayment(ctx, p, h.userNames(ctx, p.UserID)[p.UserID])
	return nil
}

func (h *Handler) rejectWithReason(ctx context.Context, req *request, st session.AwaitingRejectionReason, reason string) error {
	if reason == "" {
		return h.sendText(req.chatID, textInvalidInput)
	}
	p, err := h.services.Points.RejectPayment(ctx, st.PaymentID)
	if err != nil {
		h.clearUnlessTransient(req.userID, err)
		return err
	}
	h.tracker.Clear(req.userID)
	h.notifier.PaymentRejected(ctx, p, reason)
	return h.sendText(req.chatID, "❌ Pago #"+strconv.FormatInt(p.ID, 10)+" rechazado. El usuario fue notificado.")
}

func (h *Handler) applyProductEdit(ctx context.Context, req *request, st session.EditingProductField, value string) error {
	p, err := h.services.Catalog.EditField(ctx, st.ProductID, st.Field, value)
	if errors.Is(err, models.ErrInvalidInput) {
		// Состояние сохраняется, администратор может ввести значение заново
		return h.sendText(req.chatID, textInvalidInput)
	}
	if err != nil {
		h.clearUnlessTransient(req.userID, err)
		return err
	}
	h.tracker.Clear(req.userID)
	return h.sendText(req.chatID, "✅ Producto actualizado\n\n"+productText(p))
}

func (h *Handler) acceptCustomWeeks(ctx context.Context, req *request, text string) error {
	weeks, err := strconv.Atoi(text)
	if err != nil || weeks < 1 {
		return h.sendText(req.chatID, textInvalidWeeks)
	}
	if err := h.applyWeeks(ctx, req, weeks); err != nil {
		h.clearUnlessTransient(req.userID, err)
		return err
	}
	h.tracker.Clear(req.userID)
	return nil
}

func (h *Handler) addProduct(ctx context.Context, req *request, text string) error {
	form, err := catalog.ParseForm(text)
	if err != nil {
		return h.sendText(req.chatID, textInvalidInput+"\n\n"+textProductForm)
	}
	p, err := h.services.Catalog.Add(ctx, form)
	if err != nil {
		return err
	}
	h.tracker.Clear(req.userID)
	return h.sendText(req.chatID, "✅ Producto agregado\n\n"+productText(p))
}

// clearUnlessTransient завершает диалог после окончательной ошибки.
// При недоступном хранилище состояние остается, и администратор может повторить ввод.
func (h *Handler) clearUnlessTransient(userID int64, err error) {
	if errors.Is(err, models.ErrStoreUnavailable) {
		return
	}
	h.tracker.Clear(userID)
}
