package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

// topicPublisher is the narrow Pub/Sub surface the sink needs.
type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

// PubSubPublisher delivers events to the analytics topic one message per event.
type PubSubPublisher struct {
	topic topicPublisher
}

// NewPubSubPublisher wraps a Pub/Sub publisher handle.
func NewPubSubPublisher(topic topicPublisher) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("topic publisher is required")
	}
	return &PubSubPublisher{topic: topic}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, batch []Event) error {
	results := make([]*gcppubsub.PublishResult, 0, len(batch))
	for _, event := range batch {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshaling event %q: %w", event.Name, err)
		}
		results = append(results, p.topic.Publish(ctx, &gcppubsub.Message{
			Data: payload,
			Attributes: map[string]string{
				"event":      event.Name,
				"session_id": event.SessionID,
			},
		}))
	}
	for _, result := range results {
		if _, err := result.Get(ctx); err != nil {
			return fmt.Errorf("publishing event batch: %w", err)
		}
	}
	return nil
}

// LogPublisher writes events to the structured log. It is the fallback when no
// GCP project is configured.
type LogPublisher struct {
	logg *logger.Logger
}

func NewLogPublisher(logg *logger.Logger) (*LogPublisher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &LogPublisher{logg: logg}, nil
}

func (p *LogPublisher) Publish(ctx context.Context, batch []Event) error {
	for _, event := range batch {
		ctx := p.logg.WithFields(ctx, map[string]any{
			"event":      event.Name,
			"session_id": event.SessionID,
			"props":      event.Props,
		})
		p.logg.Info(ctx, "telemetry event")
	}
	return nil
}
