package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/campushub/services/events/config"
	"example.com/campushub/services/events/internal/workflow"
)

// TransitionEnvelope is the message published for every committed workflow
// transition; the mobile push relay consumes it downstream.
type TransitionEnvelope struct {
	EventID    uuid.UUID                 `json:"event_id"`
	EventTitle string                    `json:"event_title"`
	Status     workflow.Status           `json:"status"`
	Kind       workflow.NotificationType `json:"kind"`
	Recipients []uuid.UUID               `json:"recipients"`
	OccurredAt time.Time                 `json:"occurred_at"`
}

// Publisher sends workflow transition envelopes to the push relay queue.
type Publisher interface {
	PublishTransition(ctx context.Context, envelope TransitionEnvelope) error
	Close() error
}

type serviceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewServiceBusPublisher creates a publisher backed by Azure Service Bus.
func NewServiceBusPublisher(cfg config.AzureConfig) (Publisher, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// PublishTransition sends a transition envelope to the queue.
func (p *serviceBusPublisher) PublishTransition(ctx context.Context, envelope TransitionEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "failed to marshal transition envelope")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "events-service",
			"kind":   string(envelope.Kind),
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return p.sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (p *serviceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if p.client != nil {
		return p.client.Close(context.Background())
	}

	return nil
}
