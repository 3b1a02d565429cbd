package emergency

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Publisher queues alerts for delivery.
type Publisher interface {
	PublishAlert(ctx context.Context, alert *Alert) error
}

// PubSubPublisherConfig holds configuration for the Pub/Sub publisher.
type PubSubPublisherConfig struct {
	ProjectID string
	TopicID   string
	Logger    zerolog.Logger
}

// PubSubPublisher publishes alerts to a Pub/Sub topic consumed by the worker.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicID   string
	logger    zerolog.Logger
}

// NewPubSubPublisher creates a Pub/Sub publisher.
func NewPubSubPublisher(ctx context.Context, cfg PubSubPublisherConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicID),
		topicID:   cfg.TopicID,
		logger:    cfg.Logger,
	}, nil
}

// PublishAlert publishes alert and waits for the server acknowledgement.
func (p *PubSubPublisher) PublishAlert(ctx context.Context, alert *Alert) error {
	data, err := json.Marshal(AlertMessage{JobType: JobTypePanicAlert, Alert: alert})
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_type": JobTypePanicAlert,
			"alert_id": alert.ID,
		},
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing alert: %w", err)
	}

	p.logger.Debug().
		Str("alert_id", alert.ID).
		Str("topic", p.topicID).
		Str("message_id", serverID).
		Msg("alert published")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

var _ Publisher = (*PubSubPublisher)(nil)
