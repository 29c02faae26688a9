// Package eventbridge publishes grid change events to an AWS EventBridge bus
// so other systems can react to mapping and placement changes.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/events"
)

// detail is the EventBridge event body: the owning user plus the event
// payload.
type detail struct {
	UserID  string      `json:"userId"`
	Payload interface{} `json:"payload"`
}

// Publisher implements ports.EventPublisher on an EventBridge bus.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher.
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) ports.EventPublisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Publish sends a single grid event to the bus.
func (p *Publisher) Publish(ctx context.Context, userID, eventType string, payload interface{}) error {
	body, err := json.Marshal(detail{UserID: userID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}

	entry := types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBusName),
		Source:       aws.String(events.Source),
		DetailType:   aws.String(eventType),
		Detail:       aws.String(string(body)),
		Time:         aws.Time(time.Now()),
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("failed to publish event to EventBridge: %w", err)
	}
	if result.FailedEntryCount > 0 {
		for _, e := range result.Entries {
			if e.ErrorCode != nil {
				p.logger.Error("EventBridge rejected event",
					zap.String("eventType", eventType),
					zap.String("errorCode", aws.ToString(e.ErrorCode)),
					zap.String("errorMessage", aws.ToString(e.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Event published to EventBridge",
		zap.String("eventType", eventType),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}
