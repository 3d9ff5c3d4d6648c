package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"beauty-bot/availability"
	"beauty-bot/booking"
)

// 6 slots per page, 2 buttons per row
const slotsPerPage = 6

const msgNoSession = "⌛ Sessão de agendamento expirada. Use /servicos para começar de novo."

func (h *Handler) session(chatID int64) (*booking.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[chatID]
	return s, ok
}

func (h *Handler) setSession(chatID int64, s *booking.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[chatID] = s
}

func (h *Handler) dropSession(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, chatID)
}

// sessionFor answers the callback and returns false when the chat has no
// booking in progress.
func (h *Handler) sessionFor(cq *tgbotapi.CallbackQuery) (*booking.Session, bool) {
	s, ok := h.session(cq.Message.Chat.ID)
	if !ok {
		h.answer(cq, "")
		h.send(tgbotapi.NewMessage(cq.Message.Chat.ID, msgNoSession))
	}
	return s, ok
}

func (h *Handler) sendDateSelection(chatID int64) {
	days := h.resolver.UpcomingDays(h.now().In(h.loc), h.daysAhead)
	msg := tgbotapi.NewMessage(chatID, "📅 Escolha a data:")
	msg.ReplyMarkup = buildDaysKeyboard(days)
	h.send(msg)
}

func buildDaysKeyboard(days []availability.Day) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(days); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for _, d := range days[i:min(i+2, len(days))] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(dayButtonLabel(d), "day:"+d.Date.Format(time.DateOnly)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// HandleDates shows the date picker again for the current session.
func (h *Handler) HandleDates(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, ok := h.sessionFor(cq); !ok {
		return
	}
	h.answer(cq, "")
	h.sendDateSelection(cq.Message.Chat.ID)
}

func (h *Handler) HandleDay(ctx context.Context, cq *tgbotapi.CallbackQuery, value string) {
	chatID := cq.Message.Chat.ID
	s, ok := h.sessionFor(cq)
	if !ok {
		return
	}

	date, err := time.ParseInLocation(time.DateOnly, value, h.loc)
	if err != nil {
		h.answer(cq, "⚠️ Data inválida")
		return
	}
	if err := s.ChooseDate(date); err != nil {
		text := booking.UserMessage(err)
		if errors.Is(err, booking.ErrDayUnavailable) {
			text = fmt.Sprintf("Não trabalhamos aos %s.", plural(availability.WeekdayOf(date)))
		}
		h.answer(cq, text)
		return
	}
	h.answer(cq, "")
	h.sendTimeSelection(chatID, s.Snapshot(), 0)
}

// plural gives the "aos ..." form used for closed days ("domingos").
func plural(d availability.Weekday) string {
	switch d {
	case availability.Saturday, availability.Sunday:
		return lower(d.Label()) + "s"
	}
	return lower(d.Label()) + "s-feiras"
}

func lower(s string) string {
	r := []rune(s)
	if len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}

func (h *Handler) sendTimeSelection(chatID int64, snap booking.Snapshot, offset int) {
	text := fmt.Sprintf("⏰ Horários para %s:", formatDate(snap.Date, snap.Weekday))
	if len(snap.Times) == 0 {
		h.send(tgbotapi.NewMessage(chatID, "Não há horários disponíveis para esta data."))
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = buildTimeSlotKeyboard(snap.Times, offset)
	h.send(msg)
}

func buildTimeSlotKeyboard(times []string, offset int) tgbotapi.InlineKeyboardMarkup {
	if offset < 0 || offset >= len(times) {
		offset = 0
	}
	end := min(offset+slotsPerPage, len(times))

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := offset; i < end; i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(times[i], "time:"+times[i]),
		}
		if i+1 < end {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(times[i+1], "time:"+times[i+1]))
		}
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if offset > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️ Anteriores", "time_nav:"+strconv.Itoa(max(offset-slotsPerPage, 0))))
	}
	if end < len(times) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Próximos ▶️", "time_nav:"+strconv.Itoa(end)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📅 Trocar data", "dates")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) HandleTimeNav(ctx context.Context, cq *tgbotapi.CallbackQuery, value string) {
	chatID := cq.Message.Chat.ID
	s, ok := h.sessionFor(cq)
	if !ok {
		return
	}
	offset, _ := strconv.Atoi(value)
	snap := s.Snapshot()
	if len(snap.Times) == 0 {
		h.answer(cq, booking.UserMessage(booking.ErrNoDate))
		return
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cq.Message.MessageID, buildTimeSlotKeyboard(snap.Times, offset))
	h.send(edit)
	h.answer(cq, "")
}

func (h *Handler) HandleTime(ctx context.Context, cq *tgbotapi.CallbackQuery, clock string) {
	chatID := cq.Message.Chat.ID
	s, ok := h.sessionFor(cq)
	if !ok {
		return
	}
	if err := s.ChooseTime(clock); err != nil {
		h.answer(cq, booking.UserMessage(err))
		return
	}
	h.answer(cq, "✅ "+clock)
	h.sendSummary(chatID, s.Snapshot())
}

func (h *Handler) sendSummary(chatID int64, snap booking.Snapshot) {
	text := fmt.Sprintf("📝 Confirme seu agendamento:\n\n"+
		"💇 %s\n"+
		"📅 %s\n"+
		"⏰ %s\n"+
		"💰 %s",
		snap.Service.Name,
		formatDate(snap.Date, snap.Weekday),
		snap.Time,
		formatPrice(snap.Service.Price))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = confirmKeyboard("✅ Confirmar")
	h.send(msg)
}

func confirmKeyboard(label string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, "confirm")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ Trocar horário", "time_nav:0"),
			tgbotapi.NewInlineKeyboardButtonData("📅 Trocar data", "dates"),
		),
	)
}

// HandleConfirm submits the booking. Failures keep the selection so the
// user can retry with the same button.
func (h *Handler) HandleConfirm(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	s, ok := h.sessionFor(cq)
	if !ok {
		return
	}

	if !s.Snapshot().CanSubmit() {
		err := booking.ErrSelectionIncomplete
		if s.Snapshot().State == booking.StateSubmitting {
			err = booking.ErrSubmitInFlight
		}
		h.answer(cq, booking.UserMessage(err))
		return
	}
	h.answer(cq, "⏳ Enviando...")

	_, err := s.Submit(ctx)
	if err != nil {
		if booking.IsValidation(err) {
			h.send(tgbotapi.NewMessage(chatID, booking.UserMessage(err)))
			return
		}
		h.logger.Warn("booking submit failed", zap.Int64("chat_id", chatID), zap.Error(err))
		msg := tgbotapi.NewMessage(chatID, "⚠️ "+booking.UserMessage(err))
		msg.ReplyMarkup = confirmKeyboard("🔁 Tentar novamente")
		h.send(msg)
		return
	}

	snap := s.Snapshot()
	h.dropSession(chatID)
	h.logger.Info("✅ booking confirmed", zap.Int64("chat_id", chatID), zap.String("service_id", snap.Service.ID.String()))
	h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🎉 Agendamento confirmado!\n\n💇 %s\n📅 %s às %s",
		snap.Service.Name, formatDate(snap.Date, snap.Weekday), snap.Time)))
}

// HandleCancelBooking drops the booking in progress.
func (h *Handler) HandleCancelBooking(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, ok := h.session(chatID); !ok {
		h.send(tgbotapi.NewMessage(chatID, "Nenhum agendamento em andamento."))
		return
	}
	h.dropSession(chatID)
	h.send(tgbotapi.NewMessage(chatID, "❌ Agendamento descartado."))
}
