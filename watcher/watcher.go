package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"beauty-bot/metrics"
	"beauty-bot/notifications"
	"beauty-bot/types"
)

// Sender delivers chat messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Storage is the persistence the watcher relies on.
type Storage interface {
	ListIdentities(ctx context.Context) ([]*types.Identity, error)
	MarkNotified(ctx context.Context, chatID int64, ids ...types.ID) error
	Unnotified(ctx context.Context, chatID int64, ids []types.ID) ([]types.ID, error)
}

// APIFactory returns a notifications API authenticated as id.
type APIFactory func(id *types.Identity) notifications.API

type Config struct {
	Bot      Sender
	Storage  Storage
	NewAPI   APIFactory
	Interval time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Watcher runs one notification store per logged-in chat and pushes
// unread notifications the chat has not seen yet.
type Watcher struct {
	bot      Sender
	storage  Storage
	newAPI   APIFactory
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	base    context.Context
	watches map[int64]*watch
	wg      sync.WaitGroup
}

type watch struct {
	userID types.ID
	store  *notifications.Store
	cancel context.CancelFunc

	// serializes pushes triggered by polls and explicit fetches
	pushMu sync.Mutex
	// the first refresh only records what is already there
	silent bool
}

func New(cfg Config) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		bot:      cfg.Bot,
		storage:  cfg.Storage,
		newAPI:   cfg.NewAPI,
		interval: cfg.Interval,
		logger:   logger,
		metrics:  cfg.Metrics,
		base:     context.Background(),
		watches:  make(map[int64]*watch),
	}
}

// Start binds every watch to ctx and restores watches for all stored logins.
// Notifications that arrived while the bot was down are pushed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	w.base = ctx
	w.mu.Unlock()

	w.logger.Info("🔄 restoring notification watchers")
	ids, err := w.storage.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("list identities: %w", err)
	}

	restored := 0
	for _, id := range ids {
		if !id.LoggedIn() {
			continue
		}
		w.start(id, false)
		restored++
	}
	w.logger.Info("✅ notification watchers restored", zap.Int("count", restored))
	return nil
}

// Watch starts polling for chat id.ChatID, or returns the running store if the
// chat is already watched for the same user. Unread notifications present at
// login are not pushed.
func (w *Watcher) Watch(id *types.Identity) *notifications.Store {
	return w.start(id, true)
}

func (w *Watcher) start(id *types.Identity, silent bool) *notifications.Store {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cur, ok := w.watches[id.ChatID]; ok {
		if cur.userID == id.UserID {
			return cur.store
		}
		cur.cancel()
		delete(w.watches, id.ChatID)
	}

	ctx, cancel := context.WithCancel(w.base)
	wt := &watch{userID: id.UserID, cancel: cancel, silent: silent}
	chatID := id.ChatID
	wt.store = notifications.New(notifications.Config{
		API:      w.newAPI(id),
		UserID:   id.UserID,
		Interval: w.interval,
		Logger:   w.logger.With(zap.Int64("chat_id", chatID)),
		Metrics:  w.metrics,
		OnRefresh: func(_, next []types.Notification) {
			w.push(ctx, chatID, wt, next)
		},
	})
	w.watches[chatID] = wt
	w.metrics.SetActiveWatchers(len(w.watches))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		wt.store.Run(ctx)
	}()

	w.logger.Info("👀 watching notifications",
		zap.Int64("chat_id", chatID),
		zap.String("user_id", id.UserID.String()))
	return wt.store
}

// Store returns the running store of chatID.
func (w *Watcher) Store(chatID int64) (*notifications.Store, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, ok := w.watches[chatID]
	if !ok {
		return nil, false
	}
	return wt.store, true
}

// Stop ends polling for chatID.
func (w *Watcher) Stop(chatID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if wt, ok := w.watches[chatID]; ok {
		wt.cancel()
		delete(w.watches, chatID)
		w.metrics.SetActiveWatchers(len(w.watches))
		w.logger.Info("🛑 stopped watching notifications", zap.Int64("chat_id", chatID))
	}
}

// StopAll cancels every watch and waits for the polling loops to return.
func (w *Watcher) StopAll() {
	w.mu.Lock()
	for chatID, wt := range w.watches {
		wt.cancel()
		delete(w.watches, chatID)
	}
	w.metrics.SetActiveWatchers(0)
	w.mu.Unlock()

	w.wg.Wait()
}

// Active is the number of watched chats.
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watches)
}

// push sends unread notifications of list that chatID has not received yet.
func (w *Watcher) push(ctx context.Context, chatID int64, wt *watch, list []types.Notification) {
	wt.pushMu.Lock()
	defer wt.pushMu.Unlock()

	var unread []types.ID
	byID := make(map[types.ID]types.Notification)
	for _, n := range list {
		if !n.Read {
			unread = append(unread, n.ID)
			byID[n.ID] = n
		}
	}
	if len(unread) == 0 {
		wt.silent = false
		return
	}

	fresh, err := w.storage.Unnotified(ctx, chatID, unread)
	if err != nil {
		w.logger.Warn("⚠️ load notified ids", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if len(fresh) == 0 {
		wt.silent = false
		return
	}

	if wt.silent {
		wt.silent = false
		if err := w.storage.MarkNotified(ctx, chatID, fresh...); err != nil {
			w.logger.Warn("⚠️ save notified ids", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return
	}

	var sent []types.ID
	for _, id := range fresh {
		msg := tgbotapi.NewMessage(chatID, FormatPush(byID[id]))
		if _, err := w.bot.Send(msg); err != nil {
			w.logger.Warn("⚠️ push notification", zap.Int64("chat_id", chatID), zap.Error(err))
			continue
		}
		sent = append(sent, id)
	}
	if len(sent) == 0 {
		return
	}
	if err := w.storage.MarkNotified(ctx, chatID, sent...); err != nil {
		w.logger.Warn("⚠️ save notified ids", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	w.metrics.ObservePushed(len(sent))
	w.logger.Info("✅ notifications pushed", zap.Int64("chat_id", chatID), zap.Int("count", len(sent)))
}

// FormatPush renders a pushed notification.
func FormatPush(n types.Notification) string {
	var b strings.Builder
	b.WriteString(n.Kind.Icon())
	b.WriteString(" ")
	b.WriteString(n.Message)
	if n.Sender != nil && n.Sender.Name != "" {
		b.WriteString("\nDe: ")
		b.WriteString(n.Sender.Name)
	}
	b.WriteString("\n\n/notificacoes para ver todas")
	return b.String()
}
