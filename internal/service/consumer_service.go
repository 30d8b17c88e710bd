package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-regassist-be/internal/dto"
	"ai-regassist-be/pkg/events"
	pktNats "ai-regassist-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains analytics events from the in-process bus and
// forwards them to NATS JetStream. Keeping the NATS hop off the turn
// path means a slow broker never delays an answer.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	natsPub   *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	natsPub *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		natsPub:   natsPub,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.AnalyticsEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal analytics event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if cs.natsPub == nil {
		// No broker configured; drop after logging
		log.Printf("[INFO] Analytics event %s (no NATS publisher configured)", payload.Type)
		msg.Ack()
		return
	}

	event := events.BaseEvent{
		Type:       payload.Type,
		Data:       payload.Data,
		OccurredAt: payload.OccurredAt,
	}

	if err := cs.natsPub.Publish(ctx, event); err != nil {
		log.Printf("[ERROR] Failed to forward analytics event %s: %v", payload.Type, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	msg.Ack()
}
