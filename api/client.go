package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"beauty-bot/metrics"
	"beauty-bot/types"
)

const (
	DefaultTimeout = 7 * time.Second
	userAgent      = "BeautyBot/1.0"
	maxErrorBody   = 300
)

var tracer = otel.Tracer("beauty-bot/api")

// Config configures a Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Client talks to the booking REST API. It is safe for concurrent use; the
// rate limiter and http.Client are shared by every copy made with WithToken.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New creates a client. Timeout applies to every call and is not adjustable
// per request.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// WithToken returns a copy of the client that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Tokens is the data returned by /login.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*Tokens, error) {
	body := map[string]string{"email": email, "senha": password}
	var out Tokens
	if err := c.do(ctx, "login", http.MethodPost, "/login", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListServices returns the service catalogue in server order.
func (c *Client) ListServices(ctx context.Context) ([]types.Service, error) {
	var out []types.Service
	if err := c.do(ctx, "list_services", http.MethodGet, "/servico", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetService returns one service.
func (c *Client) GetService(ctx context.Context, id types.ID) (*types.Service, error) {
	var out types.Service
	path := "/servico/" + url.PathEscape(id.String())
	if err := c.do(ctx, "get_service", http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBooking posts a booking. Only 201 counts as success, and a 201 is
// never reported as a failure: when its body cannot be decoded the returned
// appointment is empty.
func (c *Client) CreateBooking(ctx context.Context, req types.BookingRequest) (*types.Appointment, error) {
	resp, err := c.send(ctx, "create_booking", http.MethodPost, "/agendamento", req, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	var out types.Appointment
	if err := resp.decode(&out); err != nil {
		c.logger.Warn("booking created but response body unreadable",
			zap.String("request_id", resp.requestID),
			zap.Error(err))
		return &types.Appointment{}, nil
	}
	return &out, nil
}

// ListAppointments returns the appointments visible to the current token.
func (c *Client) ListAppointments(ctx context.Context) ([]types.Appointment, error) {
	var out []types.Appointment
	if err := c.do(ctx, "list_appointments", http.MethodGet, "/agendamento", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelAppointment deletes an appointment.
func (c *Client) CancelAppointment(ctx context.Context, id types.ID) error {
	path := "/agendamento/" + url.PathEscape(id.String())
	return c.do(ctx, "cancel_appointment", http.MethodDelete, path, nil, 0, nil)
}

// ListNotifications returns every notification of userID.
func (c *Client) ListNotifications(ctx context.Context, userID types.ID) ([]types.Notification, error) {
	var out []types.Notification
	path := "/notificacoes/usuario/" + url.PathEscape(userID.String())
	if err := c.do(ctx, "list_notifications", http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id types.ID) error {
	path := "/notificacoes/" + url.PathEscape(id.String()) + "/ler"
	return c.do(ctx, "mark_notification_read", http.MethodPatch, path, nil, 0, nil)
}

// MarkAllNotificationsRead flags every notification of userID as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID types.ID) error {
	path := "/notificacoes/usuario/" + url.PathEscape(userID.String()) + "/ler-todas"
	return c.do(ctx, "mark_all_notifications_read", http.MethodPatch, path, nil, 0, nil)
}

// response is an accepted answer whose body has not been decoded yet.
type response struct {
	endpoint  string
	requestID string
	status    int
	env       envelope
	// envErr is set when the body was not a {data, message} envelope.
	envErr error
}

// decode unmarshals the envelope's data field into out. Missing or null data
// leaves out untouched.
func (r *response) decode(out any) error {
	if r.envErr != nil {
		return &Error{Kind: KindUnexpected, Endpoint: r.endpoint, Status: r.status, Err: fmt.Errorf("decode envelope: %w", r.envErr)}
	}
	if len(r.env.Data) == 0 || string(r.env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.env.Data, out); err != nil {
		return &Error{Kind: KindUnexpected, Endpoint: r.endpoint, Status: r.status, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// do performs one request. want is the exact success status; 0 accepts any
// 2xx. out receives the envelope's data field when non-nil.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body any, want int, out any) error {
	resp, err := c.send(ctx, endpoint, method, path, body, want)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.decode(out)
}

// send performs one request and checks the status. The body is read but only
// the envelope is parsed; data is left to the caller.
func (c *Client) send(ctx context.Context, endpoint, method, path string, body any, want int) (_ *response, err error) {
	ctx, span := tracer.Start(ctx, "api."+endpoint)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.path", path))

	started := time.Now()
	status := 0
	defer func() {
		c.metrics.ObserveRequest(endpoint, status, time.Since(started).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindUnexpected, Endpoint: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Endpoint: endpoint, Err: fmt.Errorf("build request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	defer httpResp.Body.Close()
	status = httpResp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil && !accepted(status, want) {
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Status: status, Err: fmt.Errorf("read response: %w", err)}
	}

	resp := &response{endpoint: endpoint, requestID: requestID, status: status}
	if err != nil {
		resp.envErr = fmt.Errorf("read response: %w", err)
	} else {
		resp.envErr = json.Unmarshal(respBody, &resp.env)
	}

	if !accepted(status, want) {
		apiErr := &Error{Kind: statusKind(status), Endpoint: endpoint, Status: status}
		if resp.envErr == nil {
			apiErr.Message = resp.env.Message
		} else {
			msg := string(respBody)
			if len(msg) > maxErrorBody {
				msg = msg[:maxErrorBody]
			}
			apiErr.Err = fmt.Errorf("body: %s", msg)
		}
		if status >= 200 && status < 300 {
			// e.g. 200 where 201 was required
			apiErr.Kind = KindServer
		}
		c.logger.Warn("api request rejected",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.String("message", apiErr.Message))
		return nil, apiErr
	}

	c.logger.Debug("api request ok",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("status", status))
	return resp, nil
}

func accepted(status, want int) bool {
	if want == 0 {
		return status >= 200 && status < 300
	}
	return status == want
}
