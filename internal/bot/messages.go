package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/assignment"
	"github.com/angel0101P/Bot-SusuSemanal/internal/plan"
	"github.com/angel0101P/Bot-SusuSemanal/internal/points"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
)

// Фиксированные ответы. Детали ошибок пользователю не показываются.
const (
	textForbidden      = "❌ No tienes permisos de administrador"
	textMalformed      = "❌ Comando inválido. Revisa el formato, por ejemplo /confirmar_15"
	textGenericFailure = "❌ Ocurrió un error. Intenta nuevamente más tarde."
	textUnknownCommand = "🤔 Comando no reconocido. Usa /ayuda para ver los comandos disponibles."
	textNotFound       = "❌ No encontrado o ya fue procesado."
	textInvalidInput   = "❌ Datos inválidos. Revisa el formato e intenta de nuevo."
	textEmptyDraft     = "❌ La asignación está vacía. Agrega al menos un producto."
	textTooManyReqs    = "⚠️ Demasiadas solicitudes. Espera un minuto."
	textNotRegistered  = "❌ Debes registrarte con /start primero"

	textFreeTextHelp = "ℹ️ No hay ninguna operación en curso.\n\n" +
		"🛍️ /catalogo - Ver productos\n" +
		"📋 /misplanes - Mi plan\n" +
		"💳 /pagarealizado - Registrar pago\n" +
		"❓ /ayuda - Todos los comandos"

	textHelp = "<b>📖 COMANDOS</b>\n\n" +
		"/start - Registro\n" +
		"/miperfil - Mi perfil\n" +
		"/catalogo - Ver productos\n" +
		"/misplanes - Mi plan de pagos\n" +
		"/pagarealizado - Registrar un pago\n" +
		"/mistatus - Estado de mis pagos\n" +
		"/mispuntos - Mis puntos\n" +
		"/referidos - Invitar amigos\n" +
		"/cancelar - Cancelar la operación en curso"

	textAdminHelp = "\n\n<b>🔧 ADMINISTRADOR</b>\n\n" +
		"/verpagos /verpagostodos /verpago_ID /verusuarios\n" +
		"/verasignaciones /adminverproductos /adminagregarproducto\n" +
		"/verreferidos /rankingpuntos\n" +
		"/estadocontador /pausarcontador /reanudarcontador\n" +
		"/configurarsemanas /incrementarsemana /forzarincremento"

	textCancelled = "🔄 <b>Operación cancelada</b>\n\nTodas las acciones en curso han sido canceladas."

	textPaymentForm = "💳 <b>REGISTRAR PAGO</b>\n\n" +
		"Envía los datos de tu pago en el siguiente formato:\n\n" +
		"Nombre: Tu nombre completo\n" +
		"Referencia: Número de referencia\n" +
		"Monto: Cantidad pagada\n\n" +
		"Ejemplo:\nNombre: Juan Pérez\nReferencia: 123456\nMonto: 150.00"

	textPaymentFormInvalid = "❌ Formato incorrecto.\n\n" +
		"Incluye las tres líneas Nombre, Referencia y Monto. El monto debe ser un número positivo."

	textAwaitReceipt      = "📸 Ahora envía una foto o captura de tu comprobante de pago."
	textUnsupportedFormat = "📄 <b>Formato no compatible</b>\n\nSolo se aceptan imágenes como comprobantes de pago."
	textNoPaymentInFlow   = "ℹ️ Para registrar un pago, usa el comando /pagarealizado primero"

	textProductForm = "🆕 <b>AGREGAR PRODUCTO</b>\n\n" +
		"Envía los datos en el siguiente formato:\n\n" +
		"Nombre: Camisa\nPrecio: 30.00\nDescripción: Algodón\nCategoría: Ropa\n\n" +
		"Descripción y Categoría son opcionales."

	textAskRejectReason = "✍️ Escribe el motivo del rechazo del pago #%d"
	textAskWeeks        = "✏️ Escribe el número de semanas (1 o más):"
	textInvalidWeeks    = "❌ Número de semanas inválido. Escribe un número entero mayor que 0."
	textAskPhone        = "📱 Comparte tu número de teléfono con el botón o escríbelo:"
)

func esc(s string) string {
	return html.EscapeString(s)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func formatDate(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

func paymentStatusLabel(s models.PaymentStatus) string {
	switch s {
	case models.PaymentStatusApproved:
		return "✅ aprobado"
	case models.PaymentStatusRejected:
		return "❌ rechazado"
	default:
		return "⏳ pendiente"
	}
}

func referralStatusLabel(s models.ReferralStatus) string {
	switch s {
	case models.ReferralStatusApproved:
		return "✅ aprobado"
	case models.ReferralStatusRejected:
		return "❌ rechazado"
	default:
		return "⏳ pendiente"
	}
}

const separator = "━━━━━━━━━━━━━━━━━━━━\n"

func welcomeBackText(name string) string {
	return fmt.Sprintf("👋 ¡Hola de nuevo %s!\n\nYa estás registrado en el sistema.\n\n"+
		"🛍️ /catalogo\n📋 /misplanes\n👤 /miperfil\n⭐ /mispuntos\n👥 /referidos\n💳 /pagarealizado", esc(name))
}

func welcomeText(name, referralCode, referrerName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👋 ¡Hola %s!\n\nTe damos la bienvenida al sistema de planes de pago semanal.", esc(name))
	if referralCode != "" {
		fmt.Fprintf(&b, "\n\n🔗 Código de referido detectado: %s", esc(referralCode))
		if referrerName != "" {
			fmt.Fprintf(&b, "\nTe está refiriendo: %s", esc(referrerName))
		}
	}
	b.WriteString("\n\nPara completar tu registro necesitamos tu número de teléfono.")
	return b.String()
}

func registeredText(u *models.User, referred bool) string {
	var b strings.Builder
	b.WriteString("✅ <b>¡Registro completado!</b> 🎉\n\n")
	fmt.Fprintf(&b, "👤 <b>Usuario:</b> %s\n", esc(u.DisplayName()))
	fmt.Fprintf(&b, "📱 <b>Teléfono:</b> %s\n", esc(u.Phone))
	if referred {
		b.WriteString("📋 Tu referido será verificado por el administrador.\n")
	}
	b.WriteString("\n/catalogo - Ver productos\n/misplanes - Tu plan\n/mispuntos - Tus puntos\n/referidos - Invitar amigos")
	return b.String()
}

func profileText(u *models.User, acc *models.PointsAccount) string {
	var b strings.Builder
	b.WriteString("👤 <b>MI PERFIL</b>\n\n")
	fmt.Fprintf(&b, "🆔 <b>ID:</b> %d\n", u.ID)
	fmt.Fprintf(&b, "👤 <b>Nombre:</b> %s\n", esc(u.DisplayName()))
	if u.Username != "" {
		fmt.Fprintf(&b, "📛 <b>Usuario:</b> @%s\n", esc(u.Username))
	}
	fmt.Fprintf(&b, "📱 <b>Teléfono:</b> %s\n", esc(u.Phone))
	fmt.Fprintf(&b, "📅 <b>Registro:</b> %s\n", u.RegisteredAt.Format("02/01/2006"))
	fmt.Fprintf(&b, "⭐ <b>Puntos disponibles:</b> %d\n", acc.AvailablePoints)
	fmt.Fprintf(&b, "🔗 <b>Código de referido:</b> %s", models.ReferralCode(u.ID))
	return b.String()
}

func catalogText(products []*models.Product) string {
	if len(products) == 0 {
		return "📭 No hay productos disponibles por ahora."
	}
	var b strings.Builder
	b.WriteString("🛍️ <b>CATÁLOGO</b>\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "📦 <b>%s</b> - %s\n", esc(p.Name), money(p.Price))
		if p.Description != "" {
			fmt.Fprintf(&b, "📄 %s\n", esc(p.Description))
		}
		fmt.Fprintf(&b, "📂 %s\n", esc(p.Category))
		b.WriteString(separator)
	}
	return b.String()
}

func adminProductsText(products []*models.Product) string {
	if len(products) == 0 {
		return "📭 No hay productos. Agrega uno con /adminagregarproducto"
	}
	var b strings.Builder
	b.WriteString("🛠️ <b>PRODUCTOS</b>\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "🆔 %d · <b>%s</b> - %s\n", p.ID, esc(p.Name), money(p.Price))
		fmt.Fprintf(&b, "✏️ /editarproducto_%d | 🗑️ /eliminarproducto_%d\n", p.ID, p.ID)
		b.WriteString(separator)
	}
	return b.String()
}

func planLines(b *strings.Builder, p *models.PaymentPlan, names map[int64]string) {
	for _, id := range p.Quantities.ProductIDs() {
		fmt.Fprintf(b, "• %s x%d\n", esc(names[id]), p.Quantities[id])
	}
	fmt.Fprintf(b, "💰 <b>Total:</b> %s\n", money(p.Total))
	fmt.Fprintf(b, "💵 <b>Pago semanal:</b> %s\n", money(p.WeeklyPayment))
	fmt.Fprintf(b, "📅 <b>Semanas:</b> %d de %d\n", p.WeeksCompleted, p.WeeksTotal)
}

func myPlansText(plans []*models.PaymentPlan, names map[int64]string) string {
	if len(plans) == 0 {
		return "📋 Aún no tienes un plan asignado.\n\nEl administrador te asignará productos pronto."
	}
	var b strings.Builder
	b.WriteString("📋 <b>MIS PLANES</b>\n\n")
	for _, p := range plans {
		switch {
		case p.Status == models.PlanStatusCompleted:
			b.WriteString("🎉 <b>Plan completado</b>\n")
		case p.PausedIndividually:
			b.WriteString("⏸️ <b>Plan en pausa</b>\n")
		default:
			b.WriteString("▶️ <b>Plan activo</b>\n")
		}
		planLines(&b, p, names)
		if p.Status == models.PlanStatusActive {
			fmt.Fprintf(&b, "⏳ <b>Semanas restantes:</b> %d\n", p.RemainingWeeks())
		}
		b.WriteString(separator)
	}
	return b.String()
}

func myPaymentsText(payments []*models.Payment) string {
	if len(payments) == 0 {
		return "📊 <b>MIS PAGOS</b>\n\nNo has realizado ningún pago todavía.\n\n💳 Para registrar un pago usa /pagarealizado"
	}
	var b strings.Builder
	b.WriteString("📊 <b>HISTORIAL DE MIS PAGOS</b>\n\n")
	for _, p := range payments {
		fmt.Fprintf(&b, "🔢 <b>Referencia:</b> %s\n", esc(p.Reference))
		fmt.Fprintf(&b, "💰 <b>Monto:</b> %s\n", money(p.Amount))
		fmt.Fprintf(&b, "📊 <b>Estado:</b> %s\n", paymentStatusLabel(p.Status))
		fmt.Fprintf(&b, "📅 <b>Fecha:</b> %s\n", formatDate(p.SubmittedAt))
		b.WriteString(separator)
	}
	return b.String()
}

func paymentSubmittedText(p *models.Payment) string {
	return fmt.Sprintf("✅ <b>¡Pago registrado exitosamente!</b>\n\n"+
		"👤 <b>Nombre:</b> %s\n🔢 <b>Referencia:</b> %s\n💰 <b>Monto:</b> %s\n\n"+
		"⏳ <b>Estado:</b> Pendiente de revisión\n\nPuedes ver el estado con /mistatus",
		esc(p.PayerName), esc(p.Reference), money(p.Amount))
}

func adminPaymentsText(title string, payments []*models.Payment, names map[int64]string) string {
	if len(payments) == 0 {
		return "✅ No hay pagos para mostrar"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>%s</b>\n\n", title)
	for _, p := range payments {
		fmt.Fprintf(&b, "🆔 <b>Pago:</b> %d · %s\n", p.ID, paymentStatusLabel(p.Status))
		fmt.Fprintf(&b, "👤 <b>Usuario:</b> %s (ID: %d)\n", esc(names[p.UserID]), p.UserID)
		fmt.Fprintf(&b, "💰 <b>Monto:</b> %s · 🔢 %s\n", money(p.Amount), esc(p.Reference))
		fmt.Fprintf(&b, "📅 %s\n", formatDate(p.SubmittedAt))
		fmt.Fprintf(&b, "📄 /verpago_%d | 👁️ /verimagen_%d", p.ID, p.ID)
		if p.Status == models.PaymentStatusPending {
			fmt.Fprintf(&b, " | ✅ /confirmar_%d | ❌ /rechazar_%d", p.ID, p.ID)
		}
		fmt.Fprintf(&b, " | 🗑️ /borrar_%d\n", p.ID)
		b.WriteString(separator)
	}
	return b.String()
}

func receiptCaption(p *models.Payment) string {
	return fmt.Sprintf("🧾 Pago #%d\n👤 %s\n🔢 %s\n💰 %s\n📊 %s",
		p.ID, p.PayerName, p.Reference, money(p.Amount), paymentStatusLabel(p.Status))
}

func paymentDetailText(p *models.Payment, userName string) string {
	receipt := "✅"
	if p.ReceiptFileID == "" {
		receipt = "❌ No disponible"
	}
	return fmt.Sprintf("📄 <b>DETALLES DEL PAGO</b>\n\n"+
		"🆔 <b>ID Pago:</b> %d\n👤 <b>Usuario:</b> %s (ID: %d)\n🧾 <b>Titular:</b> %s\n"+
		"💰 <b>Monto:</b> %s\n🔢 <b>Referencia:</b> %s\n📅 <b>Fecha:</b> %s\n📊 <b>Estado:</b> %s\n"+
		"📸 <b>Comprobante:</b> %s\n\n"+
		"🗑️ /borrarpago_%d | 📋 /verpagostodos",
		p.ID, esc(userName), p.UserID, esc(p.PayerName),
		money(p.Amount), esc(p.Reference), formatDate(p.SubmittedAt), paymentStatusLabel(p.Status),
		receipt, p.ID)
}

func usersText(users []*models.User) string {
	if len(users) == 0 {
		return "📭 No hay usuarios registrados"
	}
	var b strings.Builder
	b.WriteString("👥 <b>USUARIOS REGISTRADOS</b>\n\n")
	for _, u := range users {
		fmt.Fprintf(&b, "🆔 <b>ID:</b> %d\n", u.ID)
		fmt.Fprintf(&b, "👤 <b>Nombre:</b> %s\n", esc(u.DisplayName()))
		fmt.Fprintf(&b, "📱 <b>Teléfono:</b> %s\n", esc(u.Phone))
		fmt.Fprintf(&b, "📅 <b>Registro:</b> %s\n", u.RegisteredAt.Format("02/01/2006"))
		fmt.Fprintf(&b, "🛒 /asignar_%d | 🗑️ /borrarusuario_%d\n", u.ID, u.ID)
		b.WriteString(separator)
	}
	return b.String()
}

func assignmentsText(plans []*models.PaymentPlan, users map[int64]string, names map[int64]string) string {
	if len(plans) == 0 {
		return "📭 No hay planes activos"
	}
	var b strings.Builder
	b.WriteString("📋 <b>ASIGNACIONES ACTIVAS</b>\n\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "👤 <b>%s</b> (ID: %d)", esc(users[p.UserID]), p.UserID)
		if p.PausedIndividually {
			b.WriteString(" ⏸️")
		}
		b.WriteString("\n")
		planLines(&b, p, names)
		fmt.Fprintf(&b, "✏️ /asignar_%d\n", p.UserID)
		b.WriteString(separator)
	}
	return b.String()
}

func assignmentText(v *assignment.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 <b>ASIGNACIÓN PARA %s</b> (ID: %d)\n\n", esc(v.User.DisplayName()), v.User.ID)
	empty := true
	for _, p := range v.Products {
		n := v.Quantity(p.ID)
		if n == 0 {
			continue
		}
		empty = false
		fmt.Fprintf(&b, "• %s x%d = %s\n", esc(p.Name), n, money(p.Price.Mul(decimal.NewFromInt(int64(n)))))
	}
	if empty {
		b.WriteString("Sin productos seleccionados\n")
	}
	fmt.Fprintf(&b, "\n💰 <b>Total:</b> %s\n📅 <b>Semanas:</b> %d\n💵 <b>Pago semanal:</b> %s",
		money(v.Total), v.Weeks, money(v.Weekly))
	return b.String()
}

func assignedText(res *plan.AssignResult, user *models.User) string {
	action := "creado"
	if res.Replaced {
		action = "actualizado"
	}
	return fmt.Sprintf("✅ Plan %s para %s\n\n💰 Total: %s\n📅 Semanas: %d\n💵 Pago semanal: %s",
		action, esc(user.DisplayName()), money(res.Plan.Total), res.Plan.WeeksTotal, money(res.Plan.WeeklyPayment))
}

func pointsText(acc *models.PointsAccount, history []*models.LedgerEntry) string {
	var b strings.Builder
	b.WriteString("⭐ <b>MIS PUNTOS</b>\n\n")
	fmt.Fprintf(&b, "💎 <b>Disponibles:</b> %d\n", acc.AvailablePoints)
	fmt.Fprintf(&b, "📈 <b>Acumulados:</b> %d\n\n", acc.TotalPoints)
	if next, ok := points.NextBenefit(acc.AvailablePoints); ok {
		fmt.Fprintf(&b, "🎯 <b>Próximo beneficio:</b> %s (faltan %d puntos)\n\n",
			esc(next.Title), next.Threshold-acc.AvailablePoints)
	} else {
		b.WriteString("🏆 ¡Alcanzaste todos los beneficios!\n\n")
	}
	b.WriteString("🎁 <b>Beneficios:</b>\n")
	for _, bf := range points.Benefits {
		fmt.Fprintf(&b, "• %d puntos: %s\n", bf.Threshold, esc(bf.Title))
	}
	b.WriteString("\n💡 Pago adelantado: 5 puntos · Pago puntual: 2 puntos · Referido: 7 puntos\n")
	if len(history) > 0 {
		b.WriteString("\n📜 <b>Historial reciente:</b>\n")
		for _, e := range history {
			fmt.Fprintf(&b, "%+d · %s · %s\n", e.Delta, esc(e.Reason), e.CreatedAt.Format("02/01"))
		}
	}
	return b.String()
}

func referralsText(userID int64, refs []*models.Referral, stats *models.ReferralStats) string {
	var b strings.Builder
	b.WriteString("👥 <b>MIS REFERIDOS</b>\n\n")
	fmt.Fprintf(&b, "🔗 <b>Tu código:</b> %s\n", models.ReferralCode(userID))
	fmt.Fprintf(&b, "Comparte: /start %s\n\n", models.ReferralCode(userID))
	fmt.Fprintf(&b, "📊 Total: %d · ✅ %d · ⏳ %d · ❌ %d\n", stats.Total, stats.Approved, stats.Pending, stats.Rejected)
	fmt.Fprintf(&b, "🎁 Ganas %d puntos por cada referido aprobado\n", points.ReferralPoints)
	for _, r := range refs {
		fmt.Fprintf(&b, "\n• %s · %s", esc(r.ReferredName), referralStatusLabel(r.Status))
	}
	return b.String()
}

func pendingReferralsText(refs []*models.Referral, names map[int64]string) string {
	if len(refs) == 0 {
		return "✅ No hay referidos pendientes"
	}
	var b strings.Builder
	b.WriteString("👥 <b>REFERIDOS PENDIENTES</b>\n\n")
	for _, r := range refs {
		fmt.Fprintf(&b, "🆔 %d · %s (📱 %s)\n", r.ID, esc(r.ReferredName), esc(r.ReferredPhone))
		fmt.Fprintf(&b, "👤 Referidor: %s (ID: %d)\n", esc(names[r.ReferrerID]), r.ReferrerID)
		fmt.Fprintf(&b, "✅ /verificarreferido_%d | ❌ /rechazarreferido_%d\n", r.ID, r.ID)
		b.WriteString(separator)
	}
	return b.String()
}

func rankingText(entries []*models.RankingEntry) string {
	if len(entries) == 0 {
		return "📭 Todavía nadie tiene puntos"
	}
	var b strings.Builder
	b.WriteString("🏆 <b>RANKING DE PUNTOS</b>\n\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s · %d pts (disp. %d) /verpuntosusuario_%d\n",
			i+1, esc(e.Name), e.TotalPoints, e.AvailablePoints, e.UserID)
	}
	return b.String()
}

func userPointsText(u *models.User, acc *models.PointsAccount, history []*models.LedgerEntry) string {
	return fmt.Sprintf("👤 %s (ID: %d)\n\n", esc(u.DisplayName()), u.ID) + pointsText(acc, history)
}

func counterStatusText(st *plan.Status) string {
	state := "▶️ ACTIVO"
	if !st.Config.CounterActive {
		state = "⏸️ PAUSADO"
	}
	return fmt.Sprintf("📊 <b>ESTADO DEL CONTADOR</b>\n\n"+
		"Estado: %s\n📅 Semanas por defecto: %d\n\n"+
		"▶️ Planes activos: %d\n⏸️ Planes en pausa: %d\n🎉 Planes completados: %d",
		state, st.Config.WeeksDefault, st.Stats.Active, st.Stats.Paused, st.Stats.Completed)
}

func progressText(res *plan.ProgressResult) string {
	if res.Paused {
		return "⏸️ El contador está pausado. No se incrementó ninguna semana."
	}
	return fmt.Sprintf("✅ Semana incrementada\n\n📈 Planes avanzados: %d\n🎉 Planes completados: %d",
		len(res.Advanced), len(res.Completed))
}

func productText(p *models.Product) string {
	return fmt.Sprintf("📦 <b>%s</b>\n💰 %s\n📄 %s\n📂 %s",
		esc(p.Name), money(p.Price), esc(p.Description), esc(p.Category))
}
