// Package events publishes domain events after their transaction commits.
// Delivery is in-process and best effort; nothing in the request path
// depends on a subscriber.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// Topics
const (
	TopicFormSubmitted   = "forms.submitted"
	TopicFormAmended     = "forms.amended"
	TopicTemplateDeleted = "templates.deleted"
	TopicRoleChanged     = "users.role_changed"
	TopicAccessGranted   = "templates.access_granted"
	TopicAccessRevoked   = "templates.access_revoked"
)

// AllTopics is every topic the service publishes
var AllTopics = []string{
	TopicFormSubmitted,
	TopicFormAmended,
	TopicTemplateDeleted,
	TopicRoleChanged,
	TopicAccessGranted,
	TopicAccessRevoked,
}

type FormSubmitted struct {
	FormID     uint      `json:"form_id"`
	TemplateID uint      `json:"template_id"`
	UserID     uint      `json:"user_id"`
	Answers    int       `json:"answers"`
	At         time.Time `json:"at"`
}

type FormAmended struct {
	FormID    uint      `json:"form_id"`
	AmendedBy uint      `json:"amended_by"`
	Answers   int       `json:"answers"`
	At        time.Time `json:"at"`
}

type TemplateDeleted struct {
	TemplateID uint      `json:"template_id"`
	DeletedBy  uint      `json:"deleted_by"`
	Forms      int64     `json:"forms"`
	At         time.Time `json:"at"`
}

type RoleChanged struct {
	UserID    uint      `json:"user_id"`
	ChangedBy uint      `json:"changed_by"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}

type AccessChanged struct {
	TemplateID uint      `json:"template_id"`
	UserID     uint      `json:"user_id"`
	ChangedBy  uint      `json:"changed_by"`
	At         time.Time `json:"at"`
}

// Publisher is what services depend on
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Bus is an in-process pub/sub backed by a watermill GoChannel
type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			NewLogrusAdapter(log),
		),
	}
}

// Publish marshals payload as JSON and publishes it on topic
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("topic", topic)
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}
	return b.pubsub.Publish(topic, msg)
}

func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error {
	return nil
}

type contextKey string

// RequestIDKey carries the request id into published event metadata
const RequestIDKey contextKey = "request_id"

// PublishAfterCommit publishes and logs failures. Events never fail the
// operation that produced them.
func PublishAfterCommit(ctx context.Context, publisher Publisher, topic string, payload interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, topic, payload); err != nil {
		log.WithError(err).WithField("topic", topic).Warn("Failed to publish event")
	}
}
