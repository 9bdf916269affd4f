package audithook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaRecorder.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes audit events as JSON messages keyed by
// resource ID, so that all events of one item or request land on the
// same partition in order.
type KafkaRecorder struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaRecorder creates a recorder writing to topic on the given
// comma-separated brokers.
func NewKafkaRecorder(brokersCSV, topic string) (*KafkaRecorder, error) {
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("audithook: kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("audithook: kafka topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return NewKafkaRecorderFromWriter(w), nil
}

// NewKafkaRecorderFromWriter wraps an existing writer.
func NewKafkaRecorderFromWriter(w MessageWriter) *KafkaRecorder {
	return &KafkaRecorder{writer: w, timeout: 3 * time.Second}
}

// Record implements Recorder.
func (k *KafkaRecorder) Record(ctx context.Context, evt *AuditEvent) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("audithook: marshal event: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(cctx, kafka.Message{
		Key:   []byte(evt.ResourceID),
		Value: b,
		Time:  evt.At,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(evt.Action)},
		},
	})
	if err != nil {
		return fmt.Errorf("audithook: publish %s: %w", evt.Action, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaRecorder) Close() error { return k.writer.Close() }

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
