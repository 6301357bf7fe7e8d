package bot

import (
	"context"
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/internal/metrics"
	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/points"
	"github.com/angel0101P/Bot-SusuSemanal/internal/user"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier отправляет исходящие уведомления клиентам и администратору.
// Ошибка доставки только логируется и не влияет на доменную операцию.
type Notifier struct {
	sender  Sender
	adminID int64
	metrics *metrics.Metrics
	logger  *zap.Logger
}

var (
	_ plan.Notifier   = (*Notifier)(nil)
	_ points.Notifier = (*Notifier)(nil)
)

// NewNotifier создает отправителя уведомлений
func NewNotifier(sender Sender, adminID int64, m *metrics.Metrics, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:  sender,
		adminID: adminID,
		metrics: m,
		logger:  logger,
	}
}

// PlanProgressed сообщает клиенту о засчитанной неделе
func (n *Notifier) PlanProgressed(_ context.Context, p *models.PaymentPlan, scope plan.Scope) {
	text := fmt.Sprintf("📅 <b>Semana %d de %d completada</b>\n\n"+
		"💵 Pago semanal: %s\n⏳ Semanas restantes: %d",
		p.WeeksCompleted, p.WeeksTotal, money(p.WeeklyPayment), p.RemainingWeeks())
	if scope != plan.ScopeAutomatic {
		text += "\n\nℹ️ Avance registrado por el administrador."
	}
	n.deliver("plan_progressed", p.UserID, text)
}

// PlanCompleted поздравляет клиента с завершением плана
func (n *Notifier) PlanCompleted(_ context.Context, p *models.PaymentPlan) {
	text := fmt.Sprintf("🎉 <b>¡Felicidades!</b>\n\nCompletaste tu plan de %d semanas por %s.\n"+
		"Gracias por tu puntualidad.", p.WeeksTotal, money(p.Total))
	n.deliver("plan_completed", p.UserID, text)
}

// BenefitReached сообщает о пересечении порога бонуса
func (n *Notifier) BenefitReached(_ context.Context, userID int64, benefit points.Benefit, available int) {
	text := fmt.Sprintf("🏆 <b>¡Nuevo beneficio desbloqueado!</b>\n\n🎁 %s\n💎 Puntos disponibles: %d\n\n"+
		"Contacta al administrador para canjearlo.", esc(benefit.Title), available)
	n.deliver("benefit_reached", userID, text)
}

// PlanAssigned отправляет клиенту состав нового плана
func (n *Notifier) PlanAssigned(_ context.Context, res *plan.AssignResult, names map[int64]string) {
	p := res.Plan
	title := "🛒 <b>Se te asignó un plan de pagos</b>"
	if res.Replaced {
		title = "🔄 <b>Tu plan de pagos fue actualizado</b>"
	}
	text := title + "\n\n"
	for _, id := range p.Quantities.ProductIDs() {
		text += fmt.Sprintf("• %s x%d\n", esc(names[id]), p.Quantities[id])
	}
	text += fmt.Sprintf("\n💰 Total: %s\n📅 Semanas: %d\n💵 Pago semanal: %s",
		money(p.Total), p.WeeksTotal, money(p.WeeklyPayment))
	n.deliver("plan_assigned", p.UserID, text)
}

// PaymentApproved сообщает клиенту об одобрении и начисленных баллах
func (n *Notifier) PaymentApproved(_ context.Context, a *points.PaymentApproval) {
	text := fmt.Sprintf("✅ <b>Pago aprobado</b>\n\n🔢 Referencia: %s\n💰 Monto: %s",
		esc(a.Payment.Reference), money(a.Payment.Amount))
	if a.Award != nil {
		text += fmt.Sprintf("\n⭐ +%d puntos (%s)\n💎 Disponibles: %d",
			a.Award.Entry.Delta, tierLabel(a.Tier), a.Award.Account.AvailablePoints)
	}
	n.deliver("payment_approved", a.Payment.UserID, text)
}

// PaymentRejected передает клиенту причину отклонения
func (n *Notifier) PaymentRejected(_ context.Context, p *models.Payment, reason string) {
	text := fmt.Sprintf("❌ <b>Pago rechazado</b>\n\n🔢 Referencia: %s\n💰 Monto: %s\n\n📝 Motivo: %s\n\n"+
		"Puedes registrar el pago de nuevo con /pagarealizado",
		esc(p.Reference), money(p.Amount), esc(reason))
	n.deliver("payment_rejected", p.UserID, text)
}

// ReferralApproved сообщает пригласившему о начислении
func (n *Notifier) ReferralApproved(_ context.Context, d *points.ReferralDecision) {
	text := fmt.Sprintf("👥 <b>¡Tu referido %s fue aprobado!</b>", esc(d.Referral.ReferredName))
	if d.Award != nil {
		text += fmt.Sprintf("\n\n⭐ +%d puntos\n💎 Disponibles: %d", d.Award.Entry.Delta, d.Award.Account.AvailablePoints)
	}
	n.deliver("referral_approved", d.Referral.ReferrerID, text)
}

// ReferralRejected сообщает пригласившему об отказе
func (n *Notifier) ReferralRejected(_ context.Context, r *models.Referral) {
	text := fmt.Sprintf("❌ Tu referido %s no fue aprobado.", esc(r.ReferredName))
	n.deliver("referral_rejected", r.ReferrerID, text)
}

// NewPayment сообщает администратору о платеже на проверке
func (n *Notifier) NewPayment(_ context.Context, p *models.Payment, userName string) {
	text := fmt.Sprintf("💳 <b>NUEVO PAGO #%d</b>\n\n👤 %s (ID: %d)\n🧾 %s\n🔢 %s\n💰 %s\n\n"+
		"👁️ /verimagen_%d | ✅ /confirmar_%d | ❌ /rechazar_%d",
		p.ID, esc(userName), p.UserID, esc(p.PayerName), esc(p.Reference), money(p.Amount), p.ID, p.ID, p.ID)
	n.deliver("new_payment", n.adminID, text)
}

// NewUser сообщает администратору о регистрации
func (n *Notifier) NewUser(_ context.Context, reg *user.Registration) {
	u := reg.User
	text := fmt.Sprintf("🆕 <b>Nuevo usuario</b>\n\n👤 %s (ID: %d)\n📱 %s\n\n🛒 /asignar_%d",
		esc(u.DisplayName()), u.ID, esc(u.Phone), u.ID)
	if reg.Referral != nil {
		text += fmt.Sprintf("\n\n👥 Referido por ID %d: /verificarreferido_%d | /rechazarreferido_%d",
			reg.Referral.ReferrerID, reg.Referral.ID, reg.Referral.ID)
	}
	n.deliver("new_user", n.adminID, text)
}

func (n *Notifier) deliver(kind string, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.sender.Send(msg); err != nil {
		n.metrics.RecordNotification(kind, false)
		n.logger.Warn("не удалось доставить уведомление",
			zap.String("kind", kind),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return
	}
	n.metrics.RecordNotification(kind, true)
}

func tierLabel(t points.Tier) string {
	if t == points.TierAdvance {
		return "pago adelantado"
	}
	return "pago puntual"
}
