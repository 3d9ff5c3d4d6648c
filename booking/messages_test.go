package booking

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"beauty-bot/api"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"past", ErrDateInPast, "Escolha uma data a partir de hoje."},
		{"closed day wrapped", fmt.Errorf("%w: Domingo", ErrDayUnavailable), "Não trabalhamos neste dia. Escolha outra data."},
		{"incomplete", ErrSelectionIncomplete, "Escolha uma data e um horário antes de confirmar."},
		{"network", &api.Error{Kind: api.KindNetwork, Err: context.DeadlineExceeded}, MsgNoResponse},
		{"server message wins", &api.Error{Kind: api.KindRejected, Status: http.StatusConflict, Message: "Horário já reservado"}, "Horário já reservado"},
		{"unauthorized", &api.Error{Kind: api.KindRejected, Status: http.StatusUnauthorized}, "Sua sessão expirou. Entre novamente com /login."},
		{"server error", &api.Error{Kind: api.KindServer, Status: http.StatusInternalServerError}, msgGeneric},
		{"foreign", fmt.Errorf("something"), msgGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
