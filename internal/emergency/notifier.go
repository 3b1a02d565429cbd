package emergency

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Notifier delivers an alert to one contact.
type Notifier interface {
	Notify(ctx context.Context, alert *Alert, contact Contact) error
}

// LogNotifier records each dispatch in the log instead of sending it.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the dispatch.
func (n *LogNotifier) Notify(_ context.Context, alert *Alert, contact Contact) error {
	n.logger.Info().
		Str("alert_id", alert.ID).
		Str("user_id", alert.UserID).
		Str("contact_type", string(contact.Type)).
		Str("contact", maskContact(contact.Value)).
		Float64("lat", alert.Location.Lat).
		Float64("lon", alert.Location.Lon).
		Bool("has_audio", alert.AudioURL != "").
		Msg("panic alert dispatched")
	return nil
}

// maskContact keeps the first two and last two characters.
func maskContact(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return v[:2] + strings.Repeat("*", len(v)-4) + v[len(v)-2:]
}

var _ Notifier = (*LogNotifier)(nil)
