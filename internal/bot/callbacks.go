package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"go.uber.org/zap"
)

// onAssignAdjust меняет количество товара в черновике на delta
func (h *Handler) onAssignAdjust(delta int) callbackFunc {
	return func(ctx context.Context, req *request, cb Callback) error {
		target, err := cb.Int(0)
		if err != nil {
			return err
		}
		productID, err := cb.Int(1)
		if err != nil {
			return err
		}
		view, err := h.services.Assignment.Adjust(ctx, req.userID, target, productID, delta)
		if err != nil {
			return err
		}
		kb := assignmentKeyboard(view)
		return h.editText(req, assignmentText(view), &kb)
	}
}

func (h *Handler) onAssignReset(ctx context.Context, req *request, cb Callback) error {
	target, err := cb.Int(0)
	if err != nil {
		return err
	}
	view, err := h.services.Assignment.Reset(ctx, req.userID, target)
	if err != nil {
		return err
	}
	kb := assignmentKeyboard(view)
	return h.editText(req, assignmentText(view), &kb)
}

// onAssignConfirm сохраняет черновик как план клиента
func (h *Handler) onAssignConfirm(ctx context.Context, req *request, cb Callback) error {
	target, err := cb.Int(0)
	if err != nil {
		return err
	}
	res, err := h.services.Assignment.Confirm(ctx, req.userID, target)
	if err != nil {
		return err
	}
	u, err := h.services.Users.Get(ctx, target)
	if err != nil {
		return err
	}
	if err := h.editText(req, assignedText(res, u), nil); err != nil {
		return err
	}
	h.notifier.PlanAssigned(ctx, res, h.productNames(ctx, res.Plan))
	return nil
}

func (h *Handler) onAssignCancel(_ context.Context, req *request, cb Callback) error {
	target, err := cb.Int(0)
	if err != nil {
		return err
	}
	h.services.Assignment.Cancel(req.userID, target)
	return h.editText(req, "❌ Asignación cancelada", nil)
}

// onEditField запоминает выбранное поле и ждет новое значение
func (h *Handler) onEditField(ctx context.Context, req *request, cb Callback) error {
	productID, err := cb.Int(0)
	if err != nil {
		return err
	}
	raw, err := cb.Arg(1)
	if err != nil {
		return err
	}
	field := models.ProductField(raw)
	if !field.IsValid() {
		return fmt.Errorf("%w: поле %q", ErrMalformedCommand, raw)
	}
	p, err := h.services.Catalog.Get(ctx, productID)
	if err != nil {
		return err
	}

	h.tracker.Set(req.userID, session.EditingProductField{ProductID: p.ID, Field: field})
	return h.sendText(req.chatID, fmt.Sprintf("✏️ Escribe el nuevo valor de <b>%s</b> para %s:", field, esc(p.Name)))
}

func (h *Handler) onDeleteProduct(ctx context.Context, req *request, cb Callback) error {
	productID, err := cb.Int(0)
	if err != nil {
		return err
	}
	p, err := h.services.Catalog.Deactivate(ctx, productID)
	if err != nil {
		return err
	}
	return h.editText(req, fmt.Sprintf("✅ Producto %s eliminado del catálogo", esc(p.Name)), nil)
}

func (h *Handler) onDeleteUser(ctx context.Context, req *request, cb Callback) error {
	userID, err := cb.Int(0)
	if err != nil {
		return err
	}
	u, err := h.services.Users.Delete(ctx, userID)
	if err != nil {
		return err
	}
	h.tracker.Clear(u.ID)
	h.services.Assignment.Cancel(req.userID, u.ID)
	return h.editText(req, fmt.Sprintf("✅ Usuario %s (ID: %d) eliminado", esc(u.DisplayName()), u.ID), nil)
}

func (h *Handler) onDeletePayment(ctx context.Context, req *request, cb Callback) error {
	paymentID, err := cb.Int(0)
	if err != nil {
		return err
	}
	if err := h.services.Payments.Delete(ctx, paymentID); err != nil {
		return err
	}
	return h.editText(req, fmt.Sprintf("✅ Pago #%d eliminado", paymentID), nil)
}

// onDismiss закрывает запрос подтверждения без изменений
func (h *Handler) onDismiss(_ context.Context, req *request, _ Callback) error {
	return h.editText(req, "👌 Operación cancelada", nil)
}

// onWeeks применяет выбранное количество недель или ждет произвольное число
func (h *Handler) onWeeks(ctx context.Context, req *request, cb Callback) error {
	raw, err := cb.Arg(0)
	if err != nil {
		return err
	}
	if raw == weeksCustom {
		h.tracker.Set(req.userID, session.ConfiguringWeeks{})
		return h.sendText(req.chatID, textAskWeeks)
	}
	weeks, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: недели %q", ErrMalformedCommand, raw)
	}
	return h.applyWeeks(ctx, req, weeks)
}

// onResumeAndProgress снимает паузу и сразу продвигает планы
func (h *Handler) onResumeAndProgress(ctx context.Context, req *request, _ Callback) error {
	resumed, err := h.services.Plans.ResumeGlobal(ctx)
	if err != nil {
		return err
	}
	res, err := h.services.Plans.Progress(ctx, plan.ScopeManual)
	if err != nil {
		return err
	}
	h.logger.Info("счетчик возобновлен с продвижением",
		zap.Int64("admin_id", req.userID),
		zap.Int("resumed", resumed))
	return h.editText(req, "▶️ Contador reanudado\n\n"+progressText(res), nil)
}

func (h *Handler) onForceProgress(ctx context.Context, req *request, _ Callback) error {
	res, err := h.services.Plans.Progress(ctx, plan.ScopeForced)
	if err != nil {
		return err
	}
	return h.editText(req, progressText(res), nil)
}

func (h *Handler) onMyPoints(ctx context.Context, req *request, _ Callback) error {
	u, ok, err := h.requireRegistered(ctx, req)
	if !ok {
		return err
	}
	return h.sendPoints(ctx, req.chatID, u)
}

func (h *Handler) onReferrals(ctx context.Context, req *request, _ Callback) error {
	u, ok, err := h.requireRegistered(ctx, req)
	if !ok {
		return err
	}
	return h.sendReferrals(ctx, req.chatID, u)
}
