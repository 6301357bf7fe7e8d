package bot

import (
	"context"

	"github.com/angel0101P/Bot-SusuSemanal/internal/payment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/session"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleStart приветствует пользователя и начинает регистрацию.
// Аргумент команды считается реферальным кодом.
func (h *Handler) handleStart(ctx context.Context, req *request) error {
	registered, err := h.services.Users.IsRegistered(ctx, req.userID)
	if err != nil {
		return err
	}
	if registered {
		return h.sendWithMarkup(req.chatID, welcomeBackText(req.from.FirstName), engagementKeyboard())
	}

	var code, referrerName string
	if len(req.cmd.Args) > 0 {
		code = req.cmd.Args[0]
		if referrerID, err := models.ParseReferralCode(code); err == nil && referrerID != req.userID {
			if referrer, err := h.services.Users.Get(ctx, referrerID); err == nil {
				referrerName = referrer.DisplayName()
			}
		}
	}

	h.tracker.Set(req.userID, session.AwaitingPhone{
		Profile:      profileOf(req.from),
		ReferralCode: code,
	})
	h.logger.Info("начата регистрация",
		zap.Int64("user_id", req.userID),
		zap.String("referral_code", code))

	if err := h.sendText(req.chatID, welcomeText(req.from.FirstName, code, referrerName)); err != nil {
		return err
	}
	return h.sendWithMarkup(req.chatID, textAskPhone, phoneKeyboard())
}

func (h *Handler) handleProfile(ctx context.Context, req *request) error {
	u, ok, err := h.requireRegistered(ctx, req)
	if !ok {
		return err
	}
	acc, err := h.services.Points.Account(ctx, u.ID)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, profileText(u, acc))
}

func (h *Handler) handleCatalog(ctx context.Context, req *request) error {
	products, err := h.services.Catalog.ListActive(ctx)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, catalogText(products))
}

func (h *Handler) handleMyPlans(ctx context.Context, req *request) error {
	u, ok, err := h.requireRegistered(ctx, req)
	if !ok {
		return err
	}
	plans, err := h.services.Users.Plans(ctx, u.ID)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, myPlansText(plans, h.productNames(ctx, plans...)))
}

func (h *Handler) handleSubmitPayment(ctx context.Context, req *request) error {
	if _, ok, err := h.requireRegistered(ctx, req); !ok {
		return err
	}
	h.tracker.Set(req.userID, session.AwaitingPaymentDetails{})
	return h.sendText(req.chatID, textPaymentForm)
}

func (h *Handler) handleMyPayments(ctx context.Context, req *request) error {
	u, ok, err := h.requireRegistered(ctx, req)
	if !ok {
		return err
	}
	payments, err := h.services.Users.Payments(ctx, u.ID, payment.DefaultListLimit)
	if err != nil {
		return err
	}
	return h.sendText(req.chatID, myPaymentsText(payments))
}

func (h *Handler) handleMyPoints(ctx context.Context, req *request) error {
	u, ok, err := h.requireRegistered(ctx, req)
	if !ok {
		return err
	}
	return h.sendPoints(ctx, req.chatID, u)
}

func (h *Handler) sendPoints(ctx context.Context, chatID int64, u *models.User) error {
	acc, err := h.services.Points.Account(ctx, u.ID)
	if err != nil {
		return err
	}
	history, err := h.services.Points.History(ctx, u.ID)
	if err != nil {
		return err
	}
	return h.sendText(chatID, pointsText(acc, history))
}

func (h *Handler) handleReferrals(ctx context.Context, req *request) error {
	u, ok, err := h.requireRegistered(ctx, req)
	if !ok {
		return err
	}
	return h.sendReferrals(ctx, req.chatID, u)
}

func (h *Handler) sendReferrals(ctx context.Context, chatID int64, u *models.User) error {
	refs, stats, err := h.services.Points.ReferralsOf(ctx, u.ID)
	if err != nil {
		return err
	}
	return h.sendText(chatID, referralsText(u.ID, refs, stats))
}

// handleCancel сбрасывает диалог и черновики назначений пользователя
func (h *Handler) handleCancel(_ context.Context, req *request) error {
	h.tracker.Clear(req.userID)
	if dropped := h.tracker.DropDrafts(req.userID); dropped > 0 {
		h.logger.Info("черновики назначений сброшены",
			zap.Int64("admin_id", req.userID),
			zap.Int("drafts", dropped))
	}
	return h.sendWithMarkup(req.chatID, textCancelled, tgbotapi.NewRemoveKeyboard(true))
}

func (h *Handler) handleHelp(_ context.Context, req *request) error {
	text := textHelp
	if h.policy.IsAdmin(req.userID) {
		text += textAdminHelp
	}
	return h.sendText(req.chatID, text)
}

// productNames названия всех товаров, упомянутых в планах
func (h *Handler) productNames(ctx context.Context, plans ...*models.PaymentPlan) map[int64]string {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, p := range plans {
		for id := range p.Quantities {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return h.services.Catalog.Names(ctx, ids)
}

// userNames отображаемые имена пользователей по ID
func (h *Handler) userNames(ctx context.Context, ids ...int64) map[int64]string {
	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		u, err := h.services.Users.Get(ctx, id)
		if err != nil {
			names[id] = "Usuario eliminado"
			continue
		}
		names[id] = u.DisplayName()
	}
	return names
}
