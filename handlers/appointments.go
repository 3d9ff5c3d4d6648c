package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"beauty-bot/types"
)

func (h *Handler) HandleAppointments(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	id, ok := h.identity(ctx, chatID)
	if !ok {
		return
	}

	list, err := h.client(id).ListAppointments(ctx)
	if err != nil {
		h.logger.Warn("list appointments failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "⚠️ "+apiMessage(err, "Erro ao carregar agendamentos.")))
		return
	}

	now := h.now()
	var upcoming []types.Appointment
	for _, a := range list {
		if !a.DateTime.Before(now) {
			upcoming = append(upcoming, a)
		}
	}
	if len(upcoming) == 0 {
		h.send(tgbotapi.NewMessage(chatID, "📭 Você não tem agendamentos futuros.\n\nUse /servicos para agendar."))
		return
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].DateTime.Before(upcoming[j].DateTime) })

	var b strings.Builder
	b.WriteString("📋 Seus agendamentos:\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, a := range upcoming {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatAppointment(a, h.loc))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ Cancelar %d", i+1), "cancel_appt:"+a.ID.String())))
	}

	out := tgbotapi.NewMessage(chatID, b.String())
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.send(out)
}

func (h *Handler) HandleCancelAppointment(ctx context.Context, cq *tgbotapi.CallbackQuery, apptID string) {
	chatID := cq.Message.Chat.ID
	id, ok := h.identity(ctx, chatID)
	if !ok {
		h.answer(cq, "")
		return
	}

	if err := h.client(id).CancelAppointment(ctx, types.ID(apptID)); err != nil {
		h.logger.Warn("cancel appointment failed", zap.Int64("chat_id", chatID), zap.String("appointment_id", apptID), zap.Error(err))
		h.answer(cq, "Erro")
		h.send(tgbotapi.NewMessage(chatID, "⚠️ "+apiMessage(err, "Não foi possível cancelar o agendamento.")))
		return
	}

	h.logger.Info("🗑️ appointment cancelled", zap.Int64("chat_id", chatID), zap.String("appointment_id", apptID))
	h.answer(cq, "Cancelado")
	h.send(tgbotapi.NewMessage(chatID, "🗑️ Agendamento cancelado."))
}
