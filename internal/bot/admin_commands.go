package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Платежи

func (h *Handler) handlePendingPayments(ctx context.Context, req *request) error {
	payments, err := h.services.Payments.Pending(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, adminPaymentsText("PAGOS PENDIENTES", payments, h.payerNames(ctx, payments)))
}

func (h *Handler) handleAllPayments(ctx context.Context, req *request) error {
	payments, err := h.services.Payments.All(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, adminPaymentsText("TODOS LOS PAGOS", payments, h.payerNames(ctx, payments)))
}

func (h *Handler) payerNames(ctx context.Context, payments []*models.Payment) map[int64]string {
	ids := make([]int64, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.UserID)
	}
	return h.userNames(ctx, ids...)
}

// handleReceipt отправляет администратору фото чека
func (h *Handler) handleReceipt(ctx context.Context, req *request) error {
	p, err := h.services.Payments.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(req.chatID, tgbotapi.FileID(p.ReceiptFileID))
	photo.Caption = receiptCaption(p)
	return h.send(photo)
}

// handlePaymentDetail отправляет чек, если он есть, и затем карточку платежа
func (h *Handler) handlePaymentDetail(ctx context.Context, req *request) error {
	p, err := h.services.Payments.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	if p.ReceiptFileID != "" {
		photo := tgbotapi.NewPhoto(req.chatID, tgbotapi.FileID(p.ReceiptFileID))
		photo.Caption = receiptCaption(p)
		if err := h.send(photo); err != nil {
			h.logger.Warn("не удалось отправить чек", zap.Int64("payment_id", p.ID), zap.Error(err))
		}
	}
	return h.sendText(req.chatID, paymentDetailText(p, h.userNames(ctx, p.UserID)[p.UserID]))
}

func (h *Handler) handleApprovePayment(ctx context.Context, req *request) error {
	approval, err := h.services.Points.ApprovePayment(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	h.notifier.PaymentApproved(ctx, approval)
	return h.sendText(req.chatID, fmt.Sprintf("✅ Pago #%d aprobado\n⭐ +%d puntos para el usuario %d",
		approval.Payment.ID, approval.Award.Entry.Delta, approval.Payment.UserID))
}

// handleRejectPayment запрашивает причину. Платеж отклоняется после ответа.
func (h *Handler) handleRejectPayment(ctx context.Context, req *request) error {
	p, err := h.services.Payments.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	if p.Status != models.PaymentStatusPending {
		return fmt.Errorf("платеж %d уже обработан: %w", p.ID, models.ErrNotFound)
	}
	h.tracker.Set(req.userID, session.AwaitingRejectionReason{PaymentID: p.ID})
	return h.sendText(req.chatID, fmt.Sprintf(textAskRejectReason, p.ID))
}

func (h *Handler) handleDeletePayment(ctx context.Context, req *request) error {
	p, err := h.services.Payments.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🗑️ ¿Eliminar el pago #%d de %s por %s?", p.ID, esc(p.PayerName), money(p.Amount))
	return h.sendWithMarkup(req.chatID, text, confirmKeyboard(actionDeletePayment, actionKeepPayment, p.ID))
}

// Пользователи и планы

func (h *Handler) handleUsers(ctx context.Context, req *request) error {
	users, err := h.services.Users.List(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, usersText(users))
}

func (h *Handler) handleDeleteUser(ctx context.Context, req *request) error {
	u, err := h.services.Users.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("⚠️ ¿Eliminar al usuario %s (ID: %d)?\n\nSus planes quedarán eliminados.", esc(u.DisplayName()), u.ID)
	return h.sendWithMarkup(req.chatID, text, confirmKeyboard(actionDeleteUser, actionKeepUser, u.ID))
}

func (h *Handler) handleAssignments(ctx context.Context, req *request) error {
	plans, err := h.services.Plans.ActivePlans(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(plans))
	for _, p := range plans {
		ids = append(ids, p.UserID)
	}
	return h.sendText(req.chatID, assignmentsText(plans, h.userNames(ctx, ids...), h.productNames(ctx, plans...)))
}

// handleAssign открывает черновик назначения для клиента
func (h *Handler) handleAssign(ctx context.Context, req *request) error {
	view, err := h.services.Assignment.Open(ctx, req.userID, req.cmd.ID)
	if err != nil {
		return err
	}
	if len(view.Products) == 0 {
		return h.sendText(req.chatID, "📭 No hay productos activos. Agrega uno con /adminagregarproducto")
	}
	return h.sendWithMarkup(req.chatID, assignmentText(view), assignmentKeyboard(view))
}

// Каталог

func (h *Handler) handleAdminProducts(ctx context.Context, req *request) error {
	products, err := h.services.Catalog.ListActive(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, adminProductsText(products))
}

func (h *Handler) handleAddProduct(_ context.Context, req *request) error {
	h.tracker.Set(req.userID, session.AddingProduct{})
	return h.sendText(req.chatID, textProductForm)
}

func (h *Handler) handleEditProduct(ctx context.Context, req *request) error {
	p, err := h.services.Catalog.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	if !p.Active {
		return fmt.Errorf("товар %d неактивен: %w", p.ID, models.ErrNotFound)
	}
	text := "✏️ <b>EDITAR PRODUCTO</b>\n\n" + productText(p) + "\n\nElige el campo a modificar:"
	return h.sendWithMarkup(req.chatID, text, editFieldKeyboard(p.ID))
}

func (h *Handler) handleDeleteProduct(ctx context.Context, req *request) error {
	p, err := h.services.Catalog.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	if !p.Active {
		return fmt.Errorf("товар %d неактивен: %w", p.ID, models.ErrNotFound)
	}
	text := "🗑️ ¿Eliminar este producto del catálogo?\n\n" + productText(p)
	return h.sendWithMarkup(req.chatID, text, confirmKeyboard(actionDeleteProduct, actionKeepProduct, p.ID))
}

// Рефералы и баллы

func (h *Handler) handlePendingReferrals(ctx context.Context, req *request) error {
	refs, err := h.services.Points.PendingReferrals(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ReferrerID)
	}
	return h.sendText(req.chatID, pendingReferralsText(refs, h.userNames(ctx, ids...)))
}

func (h *Handler) handleApproveReferral(ctx context.Context, req *request) error {
	decision, err := h.services.Points.ApproveReferral(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	h.notifier.ReferralApproved(ctx, decision)

	text := fmt.Sprintf("✅ Referido #%d aprobado", decision.Referral.ID)
	if decision.Award != nil {
		text += fmt.Sprintf("\n⭐ +%d puntos para el usuario %d", decision.Award.Entry.Delta, decision.Referral.ReferrerID)
	}
	return h.sendText(req.chatID, text)
}

func (h *Handler) handleRejectReferral(ctx context.Context, req *request) error {
	ref, err := h.services.Points.RejectReferral(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	h.notifier.ReferralRejected(ctx, ref)
	return h.sendText(req.chatID, fmt.Sprintf("❌ Referido #%d rechazado", ref.ID))
}

func (h *Handler) handleRanking(ctx context.Context, req *request) error {
	entries, err := h.services.Points.Ranking(ctx, RankingLimit)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, rankingText(entries))
}

func (h *Handler) handleUserPoints(ctx context.Context, req *request) error {
	u, err := h.services.Users.Get(ctx, req.cmd.ID)
	if err != nil {
		return err
	}
	acc, err := h.services.Points.Account(ctx, u.ID)
	if err != nil {
		return err
	}
	history, err := h.services.Points.History(ctx, u.ID)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, userPointsText(u, acc, history))
}

// Счетчик недель

func (h *Handler) handleCounterStatus(ctx context.Context, req *request) error {
	st, err := h.services.Plans.Status(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, counterStatusText(st))
}

func (h *Handler) handlePauseCounter(ctx context.Context, req *request) error {
	n, err := h.services.Plans.PauseGlobal(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, fmt.Sprintf("⏸️ <b>Contador pausado</b>\n\nPlanes en pausa: %d", n))
}

func (h *Handler) handleResumeCounter(ctx context.Context, req *request) error {
	n, err := h.services.Plans.ResumeGlobal(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, fmt.Sprintf("▶️ <b>Contador reanudado</b>\n\nPlanes reanudados: %d", n))
}

// handleConfigureWeeks принимает число аргументом или показывает варианты
func (h *Handler) handleConfigureWeeks(ctx context.Context, req *request) error {
	if len(req.cmd.Args) > 0 {
		weeks, err := strconv.Atoi(req.cmd.Args[0])
		if err != nil || weeks < 1 {
			return h.sendText(req.chatID, textInvalidWeeks)
		}
		return h.applyWeeks(ctx, req, weeks)
	}

	st, err := h.services.Plans.Status(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📅 <b>CONFIGURAR SEMANAS</b>\n\nActual: %d semanas\n\n"+
		"⚠️ Todos los planes activos se recalculan y su progreso vuelve a 0.", st.Config.WeeksDefault)
	return h.sendWithMarkup(req.chatID, text, weeksKeyboard())
}

func (h *Handler) applyWeeks(ctx context.Context, req *request, weeks int) error {
	n, err := h.services.Plans.ReconfigureWeeks(ctx, weeks)
	if err != nil {
		return err
	}
	h.logger.Info("администратор изменил количество недель",
		zap.Int64("admin_id", req.userID),
		zap.Int("weeks", weeks))
	return h.sendText(req.chatID, fmt.Sprintf("✅ Semanas configuradas: %d\n🔄 Planes recalculados: %d", weeks, n))
}

// handleManualProgress продвигает планы с учетом паузы.
// При паузе администратору предлагаются варианты.
func (h *Handler) handleManualProgress(ctx context.Context, req *request) error {
	res, err := h.services.Plans.Progress(ctx, plan.ScopeManual)
	if err != nil {
		return err
	}
	if res.Paused {
		return h.sendWithMarkup(req.chatID, progressText(res), pausedProgressKeyboard())
	}
	return h.sendText(req.chatID, progressText(res))
}

func (h *Handler) handleForcedProgress(ctx context.Context, req *request) error {
	res, err := h.services.Plans.Progress(ctx, plan.ScopeForced)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, progressText(res))
}
