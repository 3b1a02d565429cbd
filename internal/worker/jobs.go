package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/emergency"
	"github.com/safewalk/safewalk/internal/geo"
)

// Job errors. ErrUnknownJob and ErrMalformedJob are not retried.
var (
	ErrUnknownJob   = errors.New("unknown job type")
	ErrMalformedJob = errors.New("malformed job message")
)

// Message is a queue message. Alert is set for panic_alert jobs.
type Message struct {
	JobType string           `json:"job_type"`
	Alert   *emergency.Alert `json:"alert,omitempty"`
}

// Dispatcher runs the job carried by a message.
type Dispatcher struct {
	notifier emergency.Notifier
	refresh  *RefreshJob
	logger   zerolog.Logger
}

// DispatcherConfig holds configuration for the Dispatcher.
type DispatcherConfig struct {
	Notifier emergency.Notifier
	Refresh  *RefreshJob
	Logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		notifier: cfg.Notifier,
		refresh:  cfg.Refresh,
		logger:   cfg.Logger,
	}
}

// Retryable reports whether a Dispatch error should lead to redelivery.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrUnknownJob) && !errors.Is(err, ErrMalformedJob)
}

// Dispatch decodes data and runs its job. It returns the job type, which is
// empty when data is not a job message.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) (string, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}

	switch msg.JobType {
	case JobPanicAlert:
		return msg.JobType, d.deliverAlert(ctx, msg.Alert)
	case JobSignalRefresh:
		return msg.JobType, d.refreshSignals(ctx)
	case JobHealthCheck:
		return msg.JobType, d.healthCheck(ctx)
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// deliverAlert notifies every contact on alert. Delivery is retried only
// when no contact could be reached, so a partial failure does not repeat
// the notifications that went out.
func (d *Dispatcher) deliverAlert(ctx context.Context, alert *emergency.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: panic_alert without alert", ErrMalformedJob)
	}

	logger := d.logger.With().
		Str("alert_id", alert.ID).
		Str("user_id", alert.UserID).
		Logger()

	if len(alert.Contacts) == 0 {
		logger.Warn().Msg("panic alert has no contacts")
		return nil
	}
	if d.notifier == nil {
		return errors.New("no notifier configured")
	}

	var failed []error
	for _, c := range alert.Contacts {
		if err := d.notifier.Notify(ctx, alert, c); err != nil {
			logger.Error().Err(err).Str("contact_type", string(c.Type)).Msg("failed to notify contact")
			failed = append(failed, err)
		}
	}

	if len(failed) == len(alert.Contacts) {
		return fmt.Errorf("notifying %d contacts: %w", len(failed), errors.Join(failed...))
	}
	logger.Info().
		Int("notified", len(alert.Contacts)-len(failed)).
		Int("failed", len(failed)).
		Msg("panic alert delivered")
	return nil
}

func (d *Dispatcher) refreshSignals(ctx context.Context) error {
	if d.refresh == nil {
		return nil
	}
	result := d.refresh.Run(ctx)
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

// healthCheck refreshes the first hotspot to verify provider connectivity.
func (d *Dispatcher) healthCheck(ctx context.Context) error {
	if d.refresh == nil || len(d.refresh.Hotspots()) == 0 {
		return nil
	}
	result := d.refresh.RunPoints(ctx, []geo.Coordinate{d.refresh.Hotspots()[0]})
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", len(result.Errors))
	}
	return nil
}
