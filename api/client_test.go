package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beauty-bot/metrics"
	"beauty-bot/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(Config{BaseURL: ts.URL + "/api/", Metrics: metrics.New(prometheus.NewRegistry())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListServices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/servico", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"id": 1, "nome": "Corte", "descricao": "<p>Corte feminino</p>", "preco": 80.5, "duracao": 45},
				{"id": 2, "nome": "Escova", "preco": 40, "duracao": 30, "imagem": "aGVsbG8="},
			},
		})
	})

	services, err := c.WithToken("tok").ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, types.ID("1"), services[0].ID)
	assert.Equal(t, 80.5, services[0].Price)
	assert.Equal(t, 45, services[0].Duration)
	assert.Nil(t, services[0].Image)
	require.NotNil(t, services[1].Image)
}

func TestWithTokenDoesNotLeak(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": 9, "nome": "Manicure"}})
	})
	_ = c.WithToken("secret")

	svc, err := c.GetService(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "Manicure", svc.Name)
}

func TestCreateBooking(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/agendamento", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		writeJSON(w, http.StatusCreated, map[string]any{
			"data": map[string]any{"id": 11, "dataHora": "2026-10-19T13:00:00.000Z", "servico": map[string]any{"nome": "Corte"}},
		})
	})

	appt, err := c.CreateBooking(context.Background(), types.BookingRequest{
		DateTime:  "2026-10-19T13:00:00.000Z",
		ClientID:  "7",
		ServiceID: "3",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ID("11"), appt.ID)
	assert.Equal(t, "Corte", appt.Service.Name)
	assert.Equal(t, map[string]any{"dataHora": "2026-10-19T13:00:00.000Z", "clienteId": 7.0, "servicoId": 3.0}, got)
}

func TestCreateBookingRequires201(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{}})
	})

	_, err := c.CreateBooking(context.Background(), types.BookingRequest{})
	require.Error(t, err)
	assert.Equal(t, KindServer, KindOf(err))
	assert.Equal(t, http.StatusOK, StatusOf(err))
}

func TestCreateBookingKeeps201WithUnreadableBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"timestamp without zone", `{"data":{"id":1,"dataHora":"2026-10-20T13:00:00"}}`},
		{"not an envelope", `created`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts := 0
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				posts++
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(tt.body))
			})

			appt, err := c.CreateBooking(context.Background(), types.BookingRequest{ClientID: "7", ServiceID: "3"})
			require.NoError(t, err)
			require.NotNil(t, appt)
			assert.Equal(t, 1, posts)
		})
	}
}

func TestErrorMessageNamesDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": "not a list"}`))
	})
	_, err := c.ListServices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode data")
}

func TestNotificationEndpoints(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/notificacoes/usuario/5":
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": 1, "mensagem": "oi", "lida": false, "tipo": "AGENDAMENTO_CRIADO", "dataCriacao": "2026-10-18T10:00:00Z"},
			}})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	list, err := c.ListNotifications(ctx, "5")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, types.KindAppointmentCreated, list[0].Kind)

	require.NoError(t, c.MarkNotificationRead(ctx, "1"))
	require.NoError(t, c.MarkAllNotificationsRead(ctx, "5"))

	assert.Equal(t, []string{
		"GET /api/notificacoes/usuario/5",
		"PATCH /api/notificacoes/1/ler",
		"PATCH /api/notificacoes/usuario/5/ler-todas",
	}, calls)
}

func TestAppointments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": 4, "dataHora": "2026-10-20T12:00:00Z", "servico": map[string]any{"nome": "Escova"}},
			}})
		case http.MethodDelete:
			assert.Equal(t, "/api/agendamento/4", r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
		}
	})
	ctx := context.Background()

	list, err := c.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Escova", list[0].Service.Name)
	require.NoError(t, c.CancelAppointment(ctx, list[0].ID))
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["senha"] != "certa" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Senha incorreta"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"accessToken": "a", "refreshToken": "r"}})
	})
	ctx := context.Background()

	tokens, err := c.Login(ctx, "ana@example.com", "certa")
	require.NoError(t, err)
	assert.Equal(t, "a", tokens.AccessToken)
	assert.Equal(t, "r", tokens.RefreshToken)

	_, err = c.Login(ctx, "ana@example.com", "errada")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Equal(t, "Senha incorreta", ServerMessage(err))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
		msg    string
	}{
		{"not found with message", http.StatusNotFound, `{"message":"Serviço não encontrado"}`, KindRejected, "Serviço não encontrado"},
		{"conflict", http.StatusConflict, `{"message":"Horário ocupado"}`, KindRejected, "Horário ocupado"},
		{"server error html", http.StatusBadGateway, `<html>bad gateway</html>`, KindServer, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.GetService(context.Background(), "1")
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.status, StatusOf(err))
			assert.Equal(t, tt.msg, ServerMessage(err))
		})
	}
}

func TestDecodeFailureIsUnexpected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": "not a list"}`))
	})
	_, err := c.ListServices(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnexpected, KindOf(err))
}

func TestNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := New(Config{BaseURL: url})
	_, err := c.ListServices(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.False(t, IsTimeout(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := New(Config{BaseURL: ts.URL, Timeout: 50 * time.Millisecond})
	_, err := c.ListServices(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, IsTimeout(err))
}

func TestUserIDFromToken(t *testing.T) {
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	id, err := UserIDFromToken(sign(jwt.MapClaims{"id": 12}))
	require.NoError(t, err)
	assert.Equal(t, types.ID("12"), id)

	id, err = UserIDFromToken(sign(jwt.MapClaims{"sub": "u-3"}))
	require.NoError(t, err)
	assert.Equal(t, types.ID("u-3"), id)

	_, err = UserIDFromToken(sign(jwt.MapClaims{"email": "x@y"}))
	assert.ErrorIs(t, err, ErrNoUserClaim)

	_, err = UserIDFromToken("not-a-jwt")
	require.Error(t, err)
}
