package builders

import (
	"net/mail"
	"strings"
	"time"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/models"
)

// HeaderAccumulator is the result of splitting a payload's headers.
type HeaderAccumulator struct {
	SentDate *time.Time
	Subject  string
	// every header other than Date and Subject, in payload order
	Headers []models.EmailHeader
}

func ExtractHeaders(headers []dto.MessageHeader) HeaderAccumulator {
	var acc HeaderAccumulator
	for _, h := range headers {
		switch {
		case strings.EqualFold(h.Name, "Date"):
			if sent, ok := parseEmailDate(h.Value); ok {
				acc.SentDate = &sent
			}
		case strings.EqualFold(h.Name, "Subject"):
			acc.Subject = h.Value
		default:
			acc.Headers = append(acc.Headers, models.EmailHeader{
				Position: len(acc.Headers),
				Name:     h.Name,
				Value:    h.Value,
			})
		}
	}
	return acc
}

func parseEmailDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := mail.ParseDate(value); err == nil {
		return t.UTC(), true
	}
	// trailing zone comments such as "(UTC)" or "(PST)"
	if idx := strings.LastIndex(value, "("); idx > 0 {
		if t, err := mail.ParseDate(strings.TrimSpace(value[:idx])); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
