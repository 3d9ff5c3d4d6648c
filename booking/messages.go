package booking

import (
	"errors"

	"beauty-bot/api"
)

// MsgNoResponse is shown whenever the API could not be reached.
const MsgNoResponse = "Sem resposta do servidor. Verifique sua conexão."

const msgGeneric = "Não foi possível confirmar o agendamento."

// UserMessage turns a session or API error into text for the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDateInPast):
		return "Escolha uma data a partir de hoje."
	case errors.Is(err, ErrDayUnavailable):
		return "Não trabalhamos neste dia. Escolha outra data."
	case errors.Is(err, ErrNoDate):
		return "Escolha primeiro uma data."
	case errors.Is(err, ErrTimeUnavailable):
		return "Horário indisponível para o dia escolhido."
	case errors.Is(err, ErrSelectionIncomplete):
		return "Escolha uma data e um horário antes de confirmar."
	case errors.Is(err, ErrSubmitInFlight):
		return "Seu agendamento já está sendo enviado. Aguarde."
	case errors.Is(err, ErrAlreadyConfirmed):
		return "Este agendamento já foi confirmado."
	}

	if api.KindOf(err) == api.KindNetwork {
		return MsgNoResponse
	}
	if msg := api.ServerMessage(err); msg != "" {
		return msg
	}
	if api.IsUnauthorized(err) {
		return "Sua sessão expirou. Entre novamente com /login."
	}
	if api.IsNotFound(err) {
		return "Serviço não encontrado."
	}
	return msgGeneric
}
