package bot

import (
	"fmt"
	"strconv"

	"github.com/angel0101P/Bot-SusuSemanal/internal/assignment"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// weekOptions варианты количества недель на кнопках
var weekOptions = []int{4, 8, 12, 16, 20}

func assignmentKeyboard(v *assignment.View) tgbotapi.InlineKeyboardMarkup {
	target := v.User.ID
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(v.Products)+2)
	for _, p := range v.Products {
		label := fmt.Sprintf("%s (%d)", p.Name, v.Quantity(p.ID))
		if !p.Active {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("➖", callbackData(actionAssignSub, target, p.ID)),
				tgbotapi.NewInlineKeyboardButtonData("⛔ "+label, callbackData(actionAssignSub, target, p.ID)),
			))
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖", callbackData(actionAssignSub, target, p.ID)),
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(actionAssignAdd, target, p.ID)),
			tgbotapi.NewInlineKeyboardButtonData("➕", callbackData(actionAssignAdd, target, p.ID)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ CONFIRMAR", callbackData(actionAssignConfirm, target)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 REINICIAR", callbackData(actionAssignReset, target)),
			tgbotapi.NewInlineKeyboardButtonData("❌ CANCELAR", callbackData(actionAssignCancel, target)),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func editFieldKeyboard(productID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Nombre", callbackData(actionEditField, productID, models.ProductFieldName)),
			tgbotapi.NewInlineKeyboardButtonData("💰 Precio", callbackData(actionEditField, productID, models.ProductFieldPrice)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📄 Descripción", callbackData(actionEditField, productID, models.ProductFieldDescription)),
			tgbotapi.NewInlineKeyboardButtonData("📂 Categoría", callbackData(actionEditField, productID, models.ProductFieldCategory)),
		),
	)
}

// confirmKeyboard кнопки двухшагового подтверждения удаления
func confirmKeyboard(yesAction, noAction string, id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Sí, eliminar", callbackData(yesAction, id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ No", callbackData(noAction, id)),
		),
	)
}

func weeksKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(weekOptions))
	for _, n := range weekOptions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(n), callbackData(actionWeeks, n)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Otro número", callbackData(actionWeeks, weeksCustom)),
		),
	)
}

// pausedProgressKeyboard варианты ручного продвижения при паузе счетчика
func pausedProgressKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Reanudar e incrementar", actionResumeProgress),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏩ Solo incrementar", actionForceProgress),
		),
	)
}

func engagementKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⭐ Mis puntos", actionMyPoints),
			tgbotapi.NewInlineKeyboardButtonData("👥 Referidos", actionReferrals),
		),
	)
}

func phoneKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("📱 Compartir mi número")),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
