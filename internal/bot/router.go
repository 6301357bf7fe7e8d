package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// request входящее событие с уже определенным отправителем
type request struct {
	chatID  int64
	userID  int64
	from    *tgbotapi.User
	message *tgbotapi.Message
	cmd     Command
}

type commandFunc func(ctx context.Context, req *request) error

type callbackFunc func(ctx context.Context, req *request, cb Callback) error

// route строка таблицы команд
type route struct {
	name    string
	admin   bool
	needsID bool
	handler commandFunc
}

// callbackRoute строка таблицы кнопок
type callbackRoute struct {
	action  string
	admin   bool
	handler callbackFunc
}

var errInvalidRoute = errors.New("invalid route table")

func buildCommandTable(routes []route) (map[string]route, error) {
	table := make(map[string]route, len(routes))
	for i, r := range routes {
		if r.name == "" {
			return nil, fmt.Errorf("%w: пустое имя команды в строке %d", errInvalidRoute, i)
		}
		if r.handler == nil {
			return nil, fmt.Errorf("%w: команда %s без обработчика", errInvalidRoute, r.name)
		}
		if _, dup := table[r.name]; dup {
			return nil, fmt.Errorf("%w: команда %s объявлена дважды", errInvalidRoute, r.name)
		}
		table[r.name] = r
	}
	return table, nil
}

func buildCallbackTable(routes []callbackRoute) (map[string]callbackRoute, error) {
	table := make(map[string]callbackRoute, len(routes))
	for i, r := range routes {
		if r.action == "" {
			return nil, fmt.Errorf("%w: пустое действие кнопки в строке %d", errInvalidRoute, i)
		}
		if r.handler == nil {
			return nil, fmt.Errorf("%w: кнопка %s без обработчика", errInvalidRoute, r.action)
		}
		if _, dup := table[r.action]; dup {
			return nil, fmt.Errorf("%w: кнопка %s объявлена дважды", errInvalidRoute, r.action)
		}
		table[r.action] = r
	}
	return table, nil
}

// commandRoutes таблица всех команд бота
func (h *Handler) commandRoutes() []route {
	return []route{
		// Клиентские команды
		{name: "start", handler: h.handleStart},
		{name: "miperfil", handler: h.handleProfile},
		{name: "catalogo", handler: h.handleCatalog},
		{name: "misplanes", handler: h.handleMyPlans},
		{name: "pagarealizado", handler: h.handleSubmitPayment},
		{name: "mistatus", handler: h.handleMyPayments},
		{name: "mispuntos", handler: h.handleMyPoints},
		{name: "referidos", handler: h.handleReferrals},
		{name: "cancelar", handler: h.handleCancel},
		{name: "ayuda", handler: h.handleHelp},

		// Платежи
		{name: "verpagos", admin: true, handler: h.handlePendingPayments},
		{name: "verpagostodos", admin: true, handler: h.handleAllPayments},
		{name: "verimagen", admin: true, needsID: true, handler: h.handleReceipt},
		{name: "confirmar", admin: true, needsID: true, handler: h.handleApprovePayment},
		{name: "rechazar", admin: true, needsID: true, handler: h.handleRejectPayment},
		{name: "verpago", admin: true, needsID: true, handler: h.handlePaymentDetail},
		{name: "borrar", admin: true, needsID: true, handler: h.handleDeletePayment},
		{name: "borrarpago", admin: true, needsID: true, handler: h.handleDeletePayment},

		// Пользователи и планы
		{name: "verusuarios", admin: true, handler: h.handleUsers},
		{name: "borrarusuario", admin: true, needsID: true, handler: h.handleDeleteUser},
		{name: "verasignaciones", admin: true, handler: h.handleAssignments},
		{name: "asignar", admin: true, needsID: true, handler: h.handleAssign},

		// Каталог
		{name: "adminverproductos", admin: true, handler: h.handleAdminProducts},
		{name: "adminagregarproducto", admin: true, handler: h.handleAddProduct},
		{name: "editarproducto", admin: true, needsID: true, handler: h.handleEditProduct},
		{name: "eliminarproducto", admin: true, needsID: true, handler: h.handleDeleteProduct},

		// Рефералы и баллы
		{name: "verreferidos", admin: true, handler: h.handlePendingReferrals},
		{name: "verificarreferido", admin: true, needsID: true, handler: h.handleApproveReferral},
		{name: "rechazarreferido", admin: true, needsID: true, handler: h.handleRejectReferral},
		{name: "rankingpuntos", admin: true, handler: h.handleRanking},
		{name: "verpuntosusuario", admin: true, needsID: true, handler: h.handleUserPoints},

		// Счетчик недель
		{name: "estadocontador", admin: true, handler: h.handleCounterStatus},
		{name: "pausarcontador", admin: true, handler: h.handlePauseCounter},
		{name: "reanudarcontador", admin: true, handler: h.handleResumeCounter},
		{name: "configurarsemanas", admin: true, handler: h.handleConfigureWeeks},
		{name: "incrementarsemana", admin: true, handler: h.handleManualProgress},
		{name: "forzarincremento", admin: true, handler: h.handleForcedProgress},
	}
}

const (
	actionAssignAdd      = "asgmas"
	actionAssignSub      = "asgmenos"
	actionAssignConfirm  = "asgok"
	actionAssignReset    = "asgreset"
	actionAssignCancel   = "asgcancel"
	actionEditField      = "editar"
	actionDeleteProduct  = "elimprod"
	actionKeepProduct    = "elimprodno"
	actionDeleteUser     = "borrarusr"
	actionKeepUser       = "borrarusrno"
	actionDeletePayment  = "borrarpago"
	actionKeepPayment    = "borrarpagono"
	actionWeeks          = "semanas"
	actionResumeProgress = "reanudarinc"
	actionForceProgress  = "forzarinc"
	actionMyPoints       = "mispuntos"
	actionReferrals      = "referidos"

	weeksCustom = "custom"
)

// callbackRoutes таблица inline-кнопок
func (h *Handler) callbackRoutes() []callbackRoute {
	return []callbackRoute{
		{action: actionAssignAdd, admin: true, handler: h.onAssignAdjust(1)},
		{action: actionAssignSub, admin: true, handler: h.onAssignAdjust(-1)},
		{action: actionAssignConfirm, admin: true, handler: h.onAssignConfirm},
		{action: actionAssignReset, admin: true, handler: h.onAssignReset},
		{action: actionAssignCancel, admin: true, handler: h.onAssignCancel},
		{action: actionEditField, admin: true, handler: h.onEditField},
		{action: actionDeleteProduct, admin: true, handler: h.onDeleteProduct},
		{action: actionKeepProduct, admin: true, handler: h.onDismiss},
		{action: actionDeleteUser, admin: true, handler: h.onDeleteUser},
		{action: actionKeepUser, admin: true, handler: h.onDismiss},
		{action: actionDeletePayment, admin: true, handler: h.onDeletePayment},
		{action: actionKeepPayment, admin: true, handler: h.onDismiss},
		{action: actionWeeks, admin: true, handler: h.onWeeks},
		{action: actionResumeProgress, admin: true, handler: h.onResumeAndProgress},
		{action: actionForceProgress, admin: true, handler: h.onForceProgress},
		{action: actionMyPoints, handler: h.onMyPoints},
		{action: actionReferrals, handler: h.onReferrals},
	}
}
