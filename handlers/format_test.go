package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"beauty-bot/availability"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  ", ""},
		{"plain", "Corte feminino", "Corte feminino"},
		{"paragraphs", "<p>Corte</p><p>Escova<br>rápida</p>", "Corte\nEscova\nrápida"},
		{"list", "<ul><li>Lavagem</li><li>Secagem</li></ul>", "• Lavagem\n• Secagem"},
		{"whitespace", "<p>  muito   espaço  </p>", "muito espaço"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plainText(tt.in))
		})
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "R$ 80,00", formatPrice(80))
	assert.Equal(t, "R$ 40,50", formatPrice(40.5))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "", formatDuration(0))
	assert.Equal(t, "45 min", formatDuration(45))
	assert.Equal(t, "1h", formatDuration(60))
	assert.Equal(t, "1h30", formatDuration(90))
}

func TestDayButtonLabel(t *testing.T) {
	sat := time.Date(2026, 10, 24, 0, 0, 0, 0, brt)
	assert.Equal(t, "Sáb 24/10", dayButtonLabel(availability.Day{Date: sat, Weekday: availability.Saturday, Open: true}))
	assert.Equal(t, "🚫 Dom 25/10", dayButtonLabel(availability.Day{Date: sat.AddDate(0, 0, 1), Weekday: availability.Sunday}))
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "domingos", plural(availability.Sunday))
	assert.Equal(t, "segundas-feiras", plural(availability.Monday))
	assert.Equal(t, "terças-feiras", plural(availability.Tuesday))
}
