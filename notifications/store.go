package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"beauty-bot/metrics"
	"beauty-bot/types"
)

const DefaultInterval = 30 * time.Second

// API is the subset of the REST client the store needs.
type API interface {
	ListNotifications(ctx context.Context, userID types.ID) ([]types.Notification, error)
	MarkNotificationRead(ctx context.Context, id types.ID) error
	MarkAllNotificationsRead(ctx context.Context, userID types.ID) error
}

type Config struct {
	API      API
	UserID   types.ID
	Interval time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// OnRefresh runs after every successful fetch, outside the store lock.
	OnRefresh func(prev, next []types.Notification)
}

// Store keeps the notification list of one user in sync with the server.
// All mutation goes through its methods.
type Store struct {
	api       API
	userID    types.ID
	interval  time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
	onRefresh func(prev, next []types.Notification)

	mu      sync.RWMutex
	list    []types.Notification
	pending int
	// started numbers fetches; a response is applied only if nothing newer
	// (fetch or local edit) has been applied since it started.
	started uint64
	applied uint64
}

func New(cfg Config) *Store {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:       cfg.API,
		userID:    cfg.UserID,
		interval:  interval,
		logger:    logger.With(zap.String("user_id", cfg.UserID.String())),
		metrics:   cfg.Metrics,
		onRefresh: cfg.OnRefresh,
		list:      []types.Notification{},
	}
}

func (s *Store) UserID() types.ID { return s.userID }

// Fetch replaces the list with the server's. On failure the current list is
// kept and the error is returned.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.started++
	seq := s.started
	s.pending++
	s.mu.Unlock()

	list, err := s.api.ListNotifications(ctx, s.userID)

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.mu.Unlock()
		s.metrics.ObserveFetch(false)
		s.logger.Warn("notification fetch failed", zap.Error(err))
		return err
	}
	if seq <= s.applied {
		s.mu.Unlock()
		s.metrics.ObserveFetch(true)
		s.logger.Debug("discarding stale notification list", zap.Uint64("seq", seq))
		return nil
	}
	if list == nil {
		list = []types.Notification{}
	}
	prev := s.list
	s.list = list
	s.applied = seq
	next := clone(list)
	s.mu.Unlock()

	s.metrics.ObserveFetch(true)
	s.logger.Debug("notifications refreshed", zap.Int("count", len(next)))
	if s.onRefresh != nil {
		s.onRefresh(clone(prev), next)
	}
	return nil
}

// MarkAsRead flips id locally before telling the server. If the server
// refuses, the list is reloaded.
func (s *Store) MarkAsRead(ctx context.Context, id types.ID) error {
	s.edit(func(list []types.Notification) {
		for i := range list {
			if list[i].ID == id {
				list[i].Read = true
			}
		}
	})

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		s.logger.Warn("mark notification read failed", zap.String("notification_id", id.String()), zap.Error(err))
		s.reconcile(ctx)
		return err
	}
	return nil
}

// MarkAllAsRead flips every notification locally, then on the server.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	s.edit(func(list []types.Notification) {
		for i := range list {
			list[i].Read = true
		}
	})

	if err := s.api.MarkAllNotificationsRead(ctx, s.userID); err != nil {
		s.logger.Warn("mark all notifications read failed", zap.Error(err))
		s.reconcile(ctx)
		return err
	}
	return nil
}

// edit applies fn to a copy of the list and invalidates fetches already in
// flight, whose responses predate the edit.
func (s *Store) edit(fn func([]types.Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := clone(s.list)
	fn(list)
	s.list = list
	s.applied = s.started
}

func (s *Store) reconcile(ctx context.Context) {
	if err := s.Fetch(ctx); err != nil {
		s.logger.Warn("reconcile after failed update", zap.Error(err))
	}
}

// UnreadCount is always derived from the current list.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, notif := range s.list {
		if !notif.Read {
			n++
		}
	}
	return n
}

// Notifications returns a copy of the list in server order.
func (s *Store) Notifications() []types.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.list)
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// Run fetches immediately and then once per interval until ctx is done.
// A tick that finds a fetch still running is skipped.
func (s *Store) Run(ctx context.Context) {
	s.logger.Info("notification polling started", zap.Duration("interval", s.interval))
	s.poll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification polling stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Store) poll(ctx context.Context) {
	if s.Loading() {
		s.metrics.ObservePollSkipped()
		s.logger.Debug("previous fetch still running, skipping tick")
		return
	}
	_ = s.Fetch(ctx)
}

func clone(list []types.Notification) []types.Notification {
	out := make([]types.Notification, len(list))
	copy(out, list)
	return out
}
