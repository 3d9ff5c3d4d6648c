package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"beauty-bot/availability"
	"beauty-bot/metrics"
	"beauty-bot/types"
)

// State of a booking session.
type State int

const (
	StateIdle State = iota
	StateDateChosen
	StateReady
	StateSubmitting
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDateChosen:
		return "date_chosen"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Validation errors. None of them touch the network.
var (
	ErrSelectionIncomplete = errors.New("selection incomplete")
	ErrDayUnavailable      = errors.New("day not available for booking")
	ErrDateInPast          = errors.New("date is in the past")
	ErrTimeUnavailable     = errors.New("time not available on the chosen day")
	ErrNoDate              = errors.New("no date chosen")
	ErrSubmitInFlight      = errors.New("submission already in progress")
	ErrAlreadyConfirmed    = errors.New("booking already confirmed")
)

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrSelectionIncomplete, ErrDayUnavailable, ErrDateInPast,
		ErrTimeUnavailable, ErrNoDate, ErrSubmitInFlight, ErrAlreadyConfirmed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Booker creates bookings on the remote API.
type Booker interface {
	CreateBooking(ctx context.Context, req types.BookingRequest) (*types.Appointment, error)
}

// Config wires a Session.
type Config struct {
	Service  types.Service
	ClientID types.ID
	Resolver *availability.Resolver
	Booker   Booker
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Session tracks one in-progress booking for one service. It is owned by a
// single chat and discarded once confirmed or abandoned.
type Session struct {
	mu sync.Mutex

	service  types.Service
	clientID types.ID
	resolver *availability.Resolver
	booker   Booker
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics

	state   State
	date    time.Time
	weekday availability.Weekday
	clock   string
	lastErr error
	appt    *types.Appointment
}

func NewSession(cfg Config) *Session {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		service:  cfg.Service,
		clientID: cfg.ClientID,
		resolver: cfg.Resolver,
		booker:   cfg.Booker,
		loc:      loc,
		now:      now,
		logger:   logger,
		metrics:  cfg.Metrics,
		state:    StateIdle,
	}
}

// ChooseDate selects a calendar day. Any chosen time is always cleared. A
// closed or past day leaves the session idle with no date.
func (s *Session) ChooseDate(date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable(); err != nil {
		return err
	}

	day := availability.CalendarDate(date, s.loc)
	s.clock = ""
	s.lastErr = nil

	if !availability.Selectable(day, s.now().In(s.loc)) {
		s.resetDate()
		return ErrDateInPast
	}
	weekday, open := s.resolver.ResolveWeekday(day)
	if !open {
		s.resetDate()
		return fmt.Errorf("%w: %s", ErrDayUnavailable, weekday.Label())
	}

	s.date = day
	s.weekday = weekday
	s.state = StateDateChosen
	return nil
}

// ChooseTime selects one of the slots offered on the chosen day.
func (s *Session) ChooseTime(clock string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable(); err != nil {
		return err
	}
	if s.state == StateIdle {
		return ErrNoDate
	}
	if !s.resolver.Contains(s.weekday, clock) {
		return fmt.Errorf("%w: %s", ErrTimeUnavailable, clock)
	}

	s.clock = clock
	s.lastErr = nil
	s.state = StateReady
	return nil
}

// Submit sends the booking. It is only allowed with a complete selection
// and never retries on its own. On failure the selection is kept so the
// caller can submit again.
func (s *Session) Submit(ctx context.Context) (*types.Appointment, error) {
	s.mu.Lock()
	switch s.state {
	case StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateConfirmed:
		s.mu.Unlock()
		return nil, ErrAlreadyConfirmed
	case StateReady, StateFailed:
	default:
		s.mu.Unlock()
		return nil, ErrSelectionIncomplete
	}

	req, err := s.request()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	s.logger.Info("submitting booking",
		zap.String("service_id", req.ServiceID.String()),
		zap.String("client_id", req.ClientID.String()),
		zap.String("date_time", req.DateTime))

	appt, err := s.booker.CreateBooking(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		s.metrics.ObserveBooking("failed")
		s.logger.Warn("booking failed", zap.String("service_id", req.ServiceID.String()), zap.Error(err))
		return nil, err
	}
	s.state = StateConfirmed
	s.lastErr = nil
	s.appt = appt
	s.metrics.ObserveBooking("confirmed")
	s.logger.Info("booking confirmed", zap.String("service_id", req.ServiceID.String()))
	return appt, nil
}

// Request returns the payload Submit would send.
func (s *Session) Request() (types.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady && s.state != StateFailed {
		return types.BookingRequest{}, ErrSelectionIncomplete
	}
	return s.request()
}

// request must be called with mu held.
func (s *Session) request() (types.BookingRequest, error) {
	if s.date.IsZero() || s.clock == "" {
		return types.BookingRequest{}, ErrSelectionIncomplete
	}
	ts, err := availability.Compose(s.date, s.clock, s.loc)
	if err != nil {
		return types.BookingRequest{}, fmt.Errorf("%w: %v", ErrSelectionIncomplete, err)
	}
	return types.BookingRequest{
		DateTime:  FormatTimestamp(ts),
		ClientID:  s.clientID,
		ServiceID: s.service.ID,
	}, nil
}

// FormatTimestamp renders ts as ISO-8601 in UTC with millisecond precision.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func (s *Session) checkMutable() error {
	switch s.state {
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateConfirmed:
		return ErrAlreadyConfirmed
	}
	return nil
}

func (s *Session) resetDate() {
	s.date = time.Time{}
	s.weekday = ""
	s.state = StateIdle
}

// Snapshot is a read-only view for rendering.
type Snapshot struct {
	State       State
	Service     types.Service
	Date        time.Time
	Weekday     availability.Weekday
	Time        string
	Times       []string
	LastError   error
	Appointment *types.Appointment
}

// CanSubmit reports whether Submit would send a request.
func (s Snapshot) CanSubmit() bool {
	return s.State == StateReady || s.State == StateFailed
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:       s.state,
		Service:     s.service,
		Date:        s.date,
		Weekday:     s.weekday,
		Time:        s.clock,
		LastError:   s.lastErr,
		Appointment: s.appt,
		Times:       []string{},
	}
	if s.state != StateIdle {
		snap.Times = s.resolver.AvailableTimes(s.weekday, true)
	}
	return snap
}
