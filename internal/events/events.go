// Package events publishes completed checks to a Kafka topic.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hazz-dev/uptimekit/internal/scheduler"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "uptimekit.checks"

const publishTimeout = 5 * time.Second

// Writer is the subset of *kafka.Writer used by Publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends one message per stored check.
type Publisher struct {
	writer Writer
	logger *slog.Logger
}

// New creates a Publisher backed by an asynchronous kafka.Writer. Pass nil
// logger to use the default logger.
func New(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Async:    true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Error("publishing check events", "topic", topic, "count", len(msgs), "error", err)
			}
		},
	}
	return NewWithWriter(w, logger)
}

// NewWithWriter creates a Publisher that writes through w.
func NewWithWriter(w Writer, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, logger: logger}
}

// CheckEvent is the JSON payload of a published check.
type CheckEvent struct {
	MonitorID  int64  `json:"monitor_id"`
	Name       string `json:"name"`
	Target     string `json:"target"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	ResponseMs int64  `json:"response_ms"`
	Error      string `json:"error,omitempty"`
	CheckedAt  string `json:"checked_at"`
}

// Notify publishes r. Results that were not stored are dropped. It is meant
// to be registered with Scheduler.SetOnResult.
func (p *Publisher) Notify(r scheduler.Result) {
	if r.Err != nil {
		return
	}

	event := CheckEvent{
		MonitorID:  r.Monitor.ID,
		Name:       r.Monitor.Name,
		Target:     r.Monitor.Target,
		Type:       string(r.Monitor.Type),
		Status:     string(r.Status),
		ResponseMs: r.Outcome.ElapsedMs(),
		Error:      r.Outcome.Err,
		CheckedAt:  r.CheckedAt.UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshaling check event", "monitor", r.Monitor.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(r.Monitor.ID, 10)),
		Value: payload,
		Time:  r.CheckedAt,
	})
	if err != nil {
		p.logger.Error("publishing check event", "monitor", r.Monitor.ID, "error", err)
	}
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
