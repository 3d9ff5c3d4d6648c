package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"beauty-bot/notifications"
	"beauty-bot/types"
)

// keeps the list under Telegram's 4096 character message limit
const maxListed = 20

// notificationStore returns the running store of the chat, starting one if
// the bot was restarted without it.
func (h *Handler) notificationStore(ctx context.Context, chatID int64) (*notifications.Store, bool) {
	if s, ok := h.watcher.Store(chatID); ok {
		return s, true
	}
	id, ok := h.identity(ctx, chatID)
	if !ok {
		return nil, false
	}
	return h.watcher.Watch(id), true
}

func (h *Handler) HandleNotifications(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	s, ok := h.notificationStore(ctx, chatID)
	if !ok {
		return
	}

	if err := s.Fetch(ctx); err != nil {
		h.logger.Warn("notification fetch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		if len(s.Notifications()) == 0 {
			h.send(tgbotapi.NewMessage(chatID, "⚠️ "+apiMessage(err, "Erro ao carregar notificações.")))
			return
		}
	}

	text, markup := renderNotifications(s.Notifications(), s.UnreadCount(), h.loc)
	out := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		out.ReplyMarkup = *markup
	}
	h.send(out)
}

func renderNotifications(list []types.Notification, unread int, loc *time.Location) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(list) == 0 {
		return "🔔 Você não tem notificações.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Notificações (%d não lidas)\n\n", unread)
	shown := list
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, n := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatNotification(n, loc))
		if !n.Read {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✔️ Marcar %d como lida", i+1), "notif:"+n.ID.String())))
		}
	}
	if len(list) > maxListed {
		fmt.Fprintf(&b, "\n… e mais %d", len(list)-maxListed)
	}
	if unread > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Marcar todas como lidas", "notif_all")))
	}
	if len(rows) == 0 {
		return b.String(), nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &markup
}

func (h *Handler) HandleMarkRead(ctx context.Context, cq *tgbotapi.CallbackQuery, notifID string) {
	chatID := cq.Message.Chat.ID
	s, ok := h.notificationStore(ctx, chatID)
	if !ok {
		h.answer(cq, "")
		return
	}
	if err := s.MarkAsRead(ctx, types.ID(notifID)); err != nil {
		h.answer(cq, apiMessage(err, "Não foi possível marcar como lida."))
	} else {
		h.answer(cq, "✔️ Lida")
	}
	h.refreshNotifications(cq, s)
}

func (h *Handler) HandleMarkAllRead(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	s, ok := h.notificationStore(ctx, chatID)
	if !ok {
		h.answer(cq, "")
		return
	}
	if err := s.MarkAllAsRead(ctx); err != nil {
		h.answer(cq, apiMessage(err, "Não foi possível marcar as notificações."))
	} else {
		h.answer(cq, "✅ Todas lidas")
	}
	h.refreshNotifications(cq, s)
}

func (h *Handler) refreshNotifications(cq *tgbotapi.CallbackQuery, s *notifications.Store) {
	text, markup := renderNotifications(s.Notifications(), s.UnreadCount(), h.loc)
	if markup == nil {
		h.send(tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, text))
		return
	}
	h.send(tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, text, *markup))
}
