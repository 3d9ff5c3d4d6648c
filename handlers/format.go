package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"beauty-bot/availability"
	"beauty-bot/types"
)

// plainText turns a service description, which the admin panel stores as
// HTML, into text a chat can show.
func plainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	doc.Find("li").Each(func(_ int, sel *goquery.Selection) {
		sel.PrependHtml("• ")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// formatPrice renders BRL like "R$ 80,50".
func formatPrice(v float64) string {
	return "R$ " + strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}

func formatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	case minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dh%02d", minutes/60, minutes%60)
	}
}

// shortLabel is the first three letters of a weekday label ("Sáb").
func shortLabel(d availability.Weekday) string {
	r := []rune(d.Label())
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

func dayButtonLabel(d availability.Day) string {
	label := fmt.Sprintf("%s %s", shortLabel(d.Weekday), d.Date.Format("02/01"))
	if !d.Open {
		return "🚫 " + label
	}
	return label
}

func formatDate(date time.Time, day availability.Weekday) string {
	return fmt.Sprintf("%s, %s", day.Label(), date.Format("02/01/2006"))
}

func serviceSummary(s types.Service) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💇 %s\n", s.Name)
	fmt.Fprintf(&b, "💰 %s", formatPrice(s.Price))
	if d := formatDuration(s.Duration); d != "" {
		fmt.Fprintf(&b, "   ⏱ %s", d)
	}
	if desc := plainText(s.Description); desc != "" {
		b.WriteString("\n\n")
		b.WriteString(desc)
	}
	return b.String()
}

func formatNotification(n types.Notification, loc *time.Location) string {
	mark := ""
	if !n.Read {
		mark = "🆕 "
	}
	line := fmt.Sprintf("%s%s %s", mark, n.Kind.Icon(), n.Message)
	if !n.CreatedAt.IsZero() {
		line += fmt.Sprintf(" (%s)", n.CreatedAt.In(loc).Format("02/01 15:04"))
	}
	return line
}

func formatAppointment(a types.Appointment, loc *time.Location) string {
	name := a.Service.Name
	if name == "" {
		name = "Serviço"
	}
	date, clock := availability.Decompose(a.DateTime, loc)
	return fmt.Sprintf("%s, %s às %s", name, formatDate(date, availability.WeekdayOf(date)), clock)
}
