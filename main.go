package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"beauty-bot/api"
	"beauty-bot/availability"
	"beauty-bot/config"
	"beauty-bot/handlers"
	"beauty-bot/logging"
	"beauty-bot/metrics"
	"beauty-bot/notifications"
	"beauty-bot/storage"
	"beauty-bot/types"
	"beauty-bot/watcher"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️ .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("❌ logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	loc := cfg.Location()
	logger.Info("🌍 timezone set",
		zap.String("timezone", loc.String()),
		zap.String("now", time.Now().In(loc).Format("2006-01-02 15:04:05 MST")))

	resolver, err := buildResolver(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	store := storage.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	metricsSrv := serveMetrics(cfg.MetricsAddr, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	client := api.New(api.Config{
		BaseURL:       cfg.APIBaseURL,
		Timeout:       cfg.APITimeout,
		RatePerSecond: cfg.APIRatePerSecond,
		Logger:        logger,
		Metrics:       m,
	})

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = cfg.BotDebug
	logger.Info("🤖 authorized", zap.String("account", bot.Self.UserName))

	w := watcher.New(watcher.Config{
		Bot:     bot,
		Storage: store,
		NewAPI: func(id *types.Identity) notifications.API {
			return client.WithToken(id.AccessToken)
		},
		Interval: cfg.NotificationPollInterval,
		Logger:   logger,
		Metrics:  m,
	})
	if err := w.Start(ctx); err != nil {
		logger.Warn("⚠️ could not restore watchers", zap.Error(err))
	}
	defer w.StopAll()

	h := handlers.New(handlers.Config{
		Bot:     bot,
		Storage: store,
		NewClient: func(token string) handlers.Client {
			return client.WithToken(token)
		},
		Watcher:   w,
		Resolver:  resolver,
		Location:  loc,
		DaysAhead: cfg.BookingDaysAhead,
		Logger:    logger,
		Metrics:   m,
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	logger.Info("✅ bot is running")
	serve(ctx, updates, func(ctx context.Context, update tgbotapi.Update) {
		dispatch(ctx, h, update)
	})
	logger.Info("🛑 shutting down")
	bot.StopReceivingUpdates()
	return nil
}

// serve hands every update to handle in its own goroutine, so a slow API call
// does not hold up other chats. It returns once ctx is done or updates is
// closed, and only after every handler it started has returned.
func serve(ctx context.Context, updates <-chan tgbotapi.Update, handle func(context.Context, tgbotapi.Update)) {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				handle(ctx, update)
			}()
		}
	}
}

func dispatch(ctx context.Context, h *handlers.Handler, update tgbotapi.Update) {
	if update.Message != nil {
		handleMessage(ctx, h, update.Message)
	} else if update.CallbackQuery != nil {
		handleCallback(ctx, h, update.CallbackQuery)
	}
}

func buildResolver(cfg *config.Config, logger *zap.Logger) (*availability.Resolver, error) {
	weekly, err := availability.NewWeekly(cfg.Availability)
	if err != nil {
		return nil, fmt.Errorf("availability: %w", err)
	}
	var closed []availability.Weekday
	for _, raw := range cfg.ClosedDays {
		day, err := availability.ParseWeekday(raw)
		if err != nil {
			return nil, fmt.Errorf("closed days: %w", err)
		}
		closed = append(closed, day)
	}
	resolver := availability.NewResolver(weekly, closed...)
	if len(resolver.OpenDays()) == 0 {
		logger.Warn("⚠️ no weekly availability configured, every day is closed")
	}
	return resolver, nil
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("📈 metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

func handleMessage(ctx context.Context, h *handlers.Handler, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.HandleStart(ctx, msg)

	case "login":
		h.HandleLogin(ctx, msg, msg.CommandArguments())

	case "logout":
		h.HandleLogout(ctx, msg)

	case "servicos":
		h.HandleServices(ctx, msg)

	case "agendamentos":
		h.HandleAppointments(ctx, msg)

	case "notificacoes":
		h.HandleNotifications(ctx, msg)

	case "cancelar":
		h.HandleCancelBooking(ctx, msg)

	default:
		h.HandleUnknown(ctx, msg)
	}
}

func handleCallback(ctx context.Context, h *handlers.Handler, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}

	data := cq.Data

	switch {
	// Catalogue
	case strings.HasPrefix(data, "svc:"):
		h.HandleService(ctx, cq, strings.TrimPrefix(data, "svc:"))

	// Date and time selection
	case data == "dates":
		h.HandleDates(ctx, cq)

	case strings.HasPrefix(data, "day:"):
		h.HandleDay(ctx, cq, strings.TrimPrefix(data, "day:"))

	case strings.HasPrefix(data, "time_nav:"):
		h.HandleTimeNav(ctx, cq, strings.TrimPrefix(data, "time_nav:"))

	case strings.HasPrefix(data, "time:"):
		h.HandleTime(ctx, cq, strings.TrimPrefix(data, "time:"))

	case data == "confirm":
		h.HandleConfirm(ctx, cq)

	// Notifications
	case strings.HasPrefix(data, "notif:"):
		h.HandleMarkRead(ctx, cq, strings.TrimPrefix(data, "notif:"))

	case data == "notif_all":
		h.HandleMarkAllRead(ctx, cq)

	// Appointments
	case strings.HasPrefix(data, "cancel_appt:"):
		h.HandleCancelAppointment(ctx, cq, strings.TrimPrefix(data, "cancel_appt:"))

	default:
		h.HandleUnknownCallback(ctx, cq)
	}
}
