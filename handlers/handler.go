package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"beauty-bot/api"
	"beauty-bot/availability"
	"beauty-bot/booking"
	"beauty-bot/metrics"
	"beauty-bot/notifications"
	"beauty-bot/types"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Storage persists logins and the service catalogue cache.
type Storage interface {
	SaveIdentity(ctx context.Context, id *types.Identity) error
	GetIdentity(ctx context.Context, chatID int64) (*types.Identity, error)
	DeleteIdentity(ctx context.Context, chatID int64) error
	SaveServices(ctx context.Context, services []types.Service) error
	GetServices(ctx context.Context) ([]types.Service, error)
}

// Client is the booking API as seen by one user.
type Client interface {
	Login(ctx context.Context, email, password string) (*api.Tokens, error)
	ListServices(ctx context.Context) ([]types.Service, error)
	GetService(ctx context.Context, id types.ID) (*types.Service, error)
	CreateBooking(ctx context.Context, req types.BookingRequest) (*types.Appointment, error)
	ListAppointments(ctx context.Context) ([]types.Appointment, error)
	CancelAppointment(ctx context.Context, id types.ID) error
}

// Watcher owns the per-chat notification stores.
type Watcher interface {
	Watch(id *types.Identity) *notifications.Store
	Store(chatID int64) (*notifications.Store, bool)
	Stop(chatID int64)
}

type Config struct {
	Bot       Sender
	Storage   Storage
	NewClient func(token string) Client
	Watcher   Watcher
	Resolver  *availability.Resolver
	Location  *time.Location
	DaysAhead int
	Now       func() time.Time
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type Handler struct {
	Bot       Sender
	Store     Storage
	newClient func(token string) Client
	watcher   Watcher
	resolver  *availability.Resolver
	loc       *time.Location
	daysAhead int
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	sessions map[int64]*booking.Session
}

func New(cfg Config) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	days := cfg.DaysAhead
	if days <= 0 {
		days = 14
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Bot:       cfg.Bot,
		Store:     cfg.Storage,
		newClient: cfg.NewClient,
		watcher:   cfg.Watcher,
		resolver:  cfg.Resolver,
		loc:       loc,
		daysAhead: days,
		now:       now,
		logger:    logger,
		metrics:   cfg.Metrics,
		sessions:  make(map[int64]*booking.Session),
	}
}

const (
	msgNeedLogin   = "🔐 Você precisa entrar primeiro.\n\nUse /login email senha"
	msgStorageFail = "⚠️ Erro ao carregar seus dados. Tente novamente."
)

func (h *Handler) HandleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := "👋 Olá! Eu ajudo você a agendar seus serviços de beleza.\n\n" +
		"Comandos disponíveis:\n" +
		"/login email senha — entrar na sua conta\n" +
		"/servicos — ver serviços e agendar\n" +
		"/agendamentos — ver e cancelar agendamentos\n" +
		"/notificacoes — ver notificações\n" +
		"/cancelar — desistir do agendamento em andamento\n" +
		"/logout — sair"
	h.send(tgbotapi.NewMessage(msg.Chat.ID, text))
}

// HandleLogin expects "email senha" and optionally the user id when the
// access token does not carry one.
func (h *Handler) HandleLogin(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID

	// the command carries a password
	h.request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID))

	fields := strings.Fields(args)
	if len(fields) < 2 {
		h.send(tgbotapi.NewMessage(chatID, "Uso: /login email senha"))
		return
	}
	email, password := fields[0], fields[1]

	tokens, err := h.newClient("").Login(ctx, email, password)
	if err != nil {
		h.logger.Warn("login failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "⚠️ "+loginMessage(err)))
		return
	}

	var userID types.ID
	if len(fields) >= 3 {
		userID = types.ID(fields[2])
	} else if userID, err = api.UserIDFromToken(tokens.AccessToken); err != nil {
		h.logger.Warn("no user id in token", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "⚠️ Não consegui identificar seu usuário.\n\nUse /login email senha seu_id"))
		return
	}

	id := &types.Identity{
		ChatID:       chatID,
		UserID:       userID,
		Email:        email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
	if err := h.Store.SaveIdentity(ctx, id); err != nil {
		h.logger.Error("save identity", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, msgStorageFail))
		return
	}
	h.watcher.Watch(id)

	h.logger.Info("✅ user logged in", zap.Int64("chat_id", chatID), zap.String("user_id", userID.String()))
	h.send(tgbotapi.NewMessage(chatID, "✅ Login realizado!\n\nUse /servicos para agendar."))
}

func loginMessage(err error) string {
	switch {
	case api.KindOf(err) == api.KindNetwork:
		return booking.MsgNoResponse
	case api.IsNotFound(err):
		return "Usuário não encontrado."
	case api.IsUnauthorized(err):
		return "Senha incorreta."
	}
	if msg := api.ServerMessage(err); msg != "" {
		return msg
	}
	return "Não foi possível entrar. Tente novamente."
}

func (h *Handler) HandleLogout(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if err := h.Store.DeleteIdentity(ctx, chatID); err != nil {
		h.logger.Error("delete identity", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, msgStorageFail))
		return
	}
	h.watcher.Stop(chatID)
	h.dropSession(chatID)
	h.send(tgbotapi.NewMessage(chatID, "👋 Você saiu da sua conta."))
}

func (h *Handler) HandleUnknown(ctx context.Context, msg *tgbotapi.Message) {
	h.send(tgbotapi.NewMessage(msg.Chat.ID, "Comando desconhecido. Tente /start"))
}

// HandleUnknownCallback answers callbacks no route matched.
func (h *Handler) HandleUnknownCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	h.answer(cq, "Comando desconhecido")
}

// identity loads the login of chatID and tells the user to log in when
// there is none.
func (h *Handler) identity(ctx context.Context, chatID int64) (*types.Identity, bool) {
	id, err := h.Store.GetIdentity(ctx, chatID)
	if err != nil {
		h.logger.Error("load identity", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, msgStorageFail))
		return nil, false
	}
	if !id.LoggedIn() {
		h.send(tgbotapi.NewMessage(chatID, msgNeedLogin))
		return nil, false
	}
	return id, true
}

func (h *Handler) client(id *types.Identity) Client {
	return h.newClient(id.AccessToken)
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.Bot.Send(c); err != nil {
		h.logger.Warn("telegram send failed", zap.Error(err))
	}
}

func (h *Handler) request(c tgbotapi.Chattable) {
	if _, err := h.Bot.Request(c); err != nil {
		h.logger.Debug("telegram request failed", zap.Error(err))
	}
}

func (h *Handler) answer(cq *tgbotapi.CallbackQuery, text string) {
	h.request(tgbotapi.NewCallback(cq.ID, text))
}

// apiMessage is the generic text for failed API calls outside booking.
func apiMessage(err error, fallback string) string {
	if api.KindOf(err) == api.KindNetwork {
		return booking.MsgNoResponse
	}
	if api.IsUnauthorized(err) {
		return "Sua sessão expirou. Entre novamente com /login."
	}
	if msg := api.ServerMessage(err); msg != "" {
		return msg
	}
	return fallback
}
