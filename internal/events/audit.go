package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
)

// AuditSubscriber writes every domain event to the audit log
type AuditSubscriber struct {
	bus    *Bus
	logger *logrus.Logger
	topics []string
}

func NewAuditSubscriber(bus *Bus, logger *logrus.Logger) *AuditSubscriber {
	if logger == nil {
		logger = log
	}
	return &AuditSubscriber{bus: bus, logger: logger, topics: AllTopics}
}

// Run consumes all topics until ctx is cancelled
func (s *AuditSubscriber) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, topic := range s.topics {
		messages, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			for msg := range messages {
				s.record(topic, msg)
				msg.Ack()
			}
		}(topic, messages)
	}
	<-ctx.Done()
	wg.Wait()
	return nil
}

func (s *AuditSubscriber) record(topic string, msg *message.Message) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.WithError(err).WithField("topic", topic).Warn("Unreadable audit event")
		return
	}
	fields := logrus.Fields{
		"audit":      true,
		"topic":      topic,
		"message_id": msg.UUID,
		"payload":    payload,
	}
	if requestID := msg.Metadata.Get("request_id"); requestID != "" {
		fields["request_id"] = requestID
	}
	s.logger.WithFields(fields).Info("Domain event")
}
