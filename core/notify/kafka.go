// Package notify publishes resource change notifications to Kafka.
package notify

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/logger"
)

// DefaultTopic receives notifications if no topic is configured
const DefaultTopic = "resource_notification"

// Header names of a notification message
const (
	HeaderOperation = "operation"
	HeaderRequestID = "request_id"
)

// Writer is the part of *kafka.Writer a notifier needs
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka is a core.Notifier. Messages are keyed by resource so that all
// changes of a resource land on the same partition in order.
type Kafka struct {
	writer Writer
}

var _ core.Notifier = (*Kafka)(nil)

// NewKafka returns a notifier writing to topic on brokers
func NewKafka(brokers []string, topic string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	return NewWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	})
}

// NewWithWriter returns a notifier writing to w
func NewWithWriter(w Writer) *Kafka {
	return &Kafka{writer: w}
}

// Notify publishes payload with the operation as header
func (k *Kafka) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) error {
	headers := []kafka.Header{{Key: HeaderOperation, Value: []byte(operation)}}
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		headers = append(headers, kafka.Header{Key: HeaderRequestID, Value: []byte(requestID)})
	}
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(resource),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("publish %s %s: %w", operation, resource, err)
	}
	logger.FromContext(ctx).Debugf("published %s %s", operation, resource)
	return nil
}

// Close flushes pending messages and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
