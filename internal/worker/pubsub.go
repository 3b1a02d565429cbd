package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client       *pubsub.Client
	subscriber   *pubsub.Subscriber
	subscription string
	dispatcher   *Dispatcher
	logger       zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
	Dispatcher   *Dispatcher
	// MaxOutstanding bounds unacknowledged messages (default: 10).
	MaxOutstanding int
	Logger         zerolog.Logger
}

// NewPubSubHandler creates a Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}

	subscriber := client.Subscriber(cfg.Subscription)
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:       client,
		subscriber:   subscriber,
		subscription: cfg.Subscription,
		dispatcher:   cfg.Dispatcher,
		logger:       cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscription).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle dispatches one message and reports whether to ack it.
func (h *PubSubHandler) handle(ctx context.Context, id string, data []byte) bool {
	start := time.Now()
	logger := h.logger.With().Str("message_id", id).Logger()

	jobType, err := h.dispatcher.Dispatch(ctx, data)
	if err != nil {
		if !Retryable(err) {
			logger.Warn().Err(err).Str("job_type", jobType).Msg("dropping job")
			return true
		}
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", jobType).
		Dur("duration", time.Since(start)).
		Msg("job completed")
	return true
}
