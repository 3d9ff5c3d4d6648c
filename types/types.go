package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is an identifier issued by the booking API. The server uses numeric ids,
// but the client treats them as opaque strings.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as JSON numbers so the server receives the
// same shape it issued.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IsNumeric reports whether the id is an unsigned integer in canonical form.
// "007" is not: it would not survive as a JSON number.
func (id ID) IsNumeric() bool {
	if id == "" {
		return false
	}
	n, err := strconv.ParseUint(string(id), 10, 64)
	return err == nil && strconv.FormatUint(n, 10) == string(id)
}

func (id ID) String() string { return string(id) }

// Service represents a bookable offering from /servico
type Service struct {
	ID          ID      `json:"id"`
	Name        string  `json:"nome"`
	Description string  `json:"descricao"`
	Price       float64 `json:"preco"`
	Duration    int     `json:"duracao"`          // minutes
	Image       *string `json:"imagem,omitempty"` // base64 jpeg
	ProviderID  ID      `json:"prestadorId,omitempty"`
}

// BookingRequest is the body of POST /agendamento
type BookingRequest struct {
	DateTime  string `json:"dataHora"` // ISO-8601, UTC
	ClientID  ID     `json:"clienteId"`
	ServiceID ID     `json:"servicoId"`
}

// Appointment is a booking as returned by /agendamento
type Appointment struct {
	ID       ID        `json:"id"`
	DateTime time.Time `json:"dataHora"`
	Service  struct {
		Name string `json:"nome"`
	} `json:"servico"`
}

// NotificationKind is the category of a notification
type NotificationKind string

const (
	KindAppointmentCreated   NotificationKind = "AGENDAMENTO_CRIADO"
	KindAppointmentCancelled NotificationKind = "AGENDAMENTO_CANCELADO"
	KindBirthdayReminder     NotificationKind = "LEMBRETE_ANIVERSARIO"
	KindUnknown              NotificationKind = ""
)

// Normalize maps unrecognized categories to KindUnknown.
func (k NotificationKind) Normalize() NotificationKind {
	switch NotificationKind(strings.ToUpper(string(k))) {
	case KindAppointmentCreated:
		return KindAppointmentCreated
	case KindAppointmentCancelled:
		return KindAppointmentCancelled
	case KindBirthdayReminder:
		return KindBirthdayReminder
	}
	return KindUnknown
}

// Icon is the emoji shown next to a notification of this kind.
func (k NotificationKind) Icon() string {
	switch k.Normalize() {
	case KindAppointmentCreated:
		return "📅"
	case KindAppointmentCancelled:
		return "❌"
	case KindBirthdayReminder:
		return "🎁"
	}
	return "🔔"
}

// Sender is the optional author of a notification
type Sender struct {
	Name string `json:"nome"`
}

// Notification represents one entry of /notificacoes/usuario/{id}
type Notification struct {
	ID        ID               `json:"id"`
	Message   string           `json:"mensagem"`
	Read      bool             `json:"lida"`
	Kind      NotificationKind `json:"tipo"`
	CreatedAt time.Time        `json:"dataCriacao"`
	Sender    *Sender          `json:"remetente,omitempty"`
}

// Identity is the current session's user as seen by the API
type Identity struct {
	ChatID       int64  `json:"chat_id"`
	UserID       ID     `json:"user_id"`
	Email        string `json:"email,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// LoggedIn reports whether the identity can be used for API calls.
func (i *Identity) LoggedIn() bool {
	return i != nil && i.UserID != "" && i.AccessToken != ""
}
