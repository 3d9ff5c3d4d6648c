package handlers

import (
	"context"
	"encoding/base64"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"beauty-bot/booking"
	"beauty-bot/types"
)

// Telegram caps photo captions at 1024 characters.
const maxCaption = 1024

// fetchServices reads the catalogue from the cache, falling back to the API.
func (h *Handler) fetchServices(ctx context.Context, id *types.Identity) ([]types.Service, error) {
	services, err := h.Store.GetServices(ctx)
	if err != nil {
		h.logger.Warn("services cache read failed", zap.Error(err))
	}
	if services != nil {
		return services, nil
	}

	services, err = h.client(id).ListServices(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.Store.SaveServices(ctx, services); err != nil {
		h.logger.Warn("services cache write failed", zap.Error(err))
	}
	return services, nil
}

func (h *Handler) HandleServices(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	id, ok := h.identity(ctx, chatID)
	if !ok {
		return
	}

	services, err := h.fetchServices(ctx, id)
	if err != nil {
		h.logger.Warn("list services failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "⚠️ "+apiMessage(err, "Erro ao carregar os serviços. Tente mais tarde.")))
		return
	}
	if len(services) == 0 {
		h.send(tgbotapi.NewMessage(chatID, "Nenhum serviço disponível no momento."))
		return
	}

	out := tgbotapi.NewMessage(chatID, "💅 Escolha um serviço:")
	out.ReplyMarkup = buildServicesKeyboard(services)
	h.send(out)
}

func buildServicesKeyboard(services []types.Service) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range services {
		name := []rune(s.Name)
		if len(name) > 40 {
			name = append(name[:37], '.', '.', '.')
		}
		label := fmt.Sprintf("%s · %s", string(name), formatPrice(s.Price))
		btn := tgbotapi.NewInlineKeyboardButtonData(label, "svc:"+s.ID.String())
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// HandleService shows one service and starts a booking session for it.
func (h *Handler) HandleService(ctx context.Context, cq *tgbotapi.CallbackQuery, serviceID string) {
	chatID := cq.Message.Chat.ID
	id, ok := h.identity(ctx, chatID)
	if !ok {
		h.answer(cq, "")
		return
	}

	svc, err := h.client(id).GetService(ctx, types.ID(serviceID))
	if err != nil {
		h.logger.Warn("get service failed", zap.String("service_id", serviceID), zap.Error(err))
		h.answer(cq, "Erro")
		h.send(tgbotapi.NewMessage(chatID, "⚠️ "+apiMessage(err, "Serviço não encontrado.")))
		return
	}
	h.answer(cq, "")

	h.sendServiceCard(chatID, svc)

	session := booking.NewSession(booking.Config{
		Service:  *svc,
		ClientID: id.UserID,
		Resolver: h.resolver,
		Booker:   h.client(id),
		Location: h.loc,
		Now:      h.now,
		Logger:   h.logger.With(zap.Int64("chat_id", chatID)),
		Metrics:  h.metrics,
	})
	h.setSession(chatID, session)
	h.sendDateSelection(chatID)
}

func (h *Handler) sendServiceCard(chatID int64, svc *types.Service) {
	text := serviceSummary(*svc)

	if svc.Image != nil && *svc.Image != "" {
		img, err := base64.StdEncoding.DecodeString(*svc.Image)
		if err == nil {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "servico.jpg", Bytes: img})
			caption := []rune(text)
			if len(caption) > maxCaption {
				caption = caption[:maxCaption]
			}
			photo.Caption = string(caption)
			h.send(photo)
			return
		}
		h.logger.Debug("service image is not base64", zap.String("service_id", svc.ID.String()), zap.Error(err))
	}
	h.send(tgbotapi.NewMessage(chatID, text))
}
