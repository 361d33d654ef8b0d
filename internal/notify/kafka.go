// Package notify delivers upstream data-change signals to the refresh
// coordinator.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/crescendoapp/crescendo/internal/service"
)

// Reader describes the kafka.Reader functions the source interacts with.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// activityChanged is the wire payload of an activity change event.
type activityChanged struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// KafkaSource consumes activity change events and republishes them as
// subject changes. Delivery upstream is at-least-once; duplicates are
// harmless because evaluation is pure given its inputs.
type KafkaSource struct {
	reader  Reader
	changes chan service.Change
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewKafkaReader builds a kafka.Reader for the activity change topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// NewKafkaSource starts consuming from the reader until Close is called.
func NewKafkaSource(reader Reader) *KafkaSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &KafkaSource{
		reader:  reader,
		changes: make(chan service.Change),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Changes returns the stream of subject change signals.
func (s *KafkaSource) Changes() <-chan service.Change {
	return s.changes
}

// Close stops the consumer loop and closes the underlying reader.
func (s *KafkaSource) Close() error {
	s.cancel()
	<-s.done
	return s.reader.Close()
}

func (s *KafkaSource) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.changes)

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("failed to fetch change event", "error", err)
			continue
		}

		var event activityChanged
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Warn("discarding malformed change event",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"error", err)
		} else if event.TenantID != "" && event.UserID != "" {
			select {
			case s.changes <- service.Change{TenantID: event.TenantID, UserID: event.UserID}:
			case <-ctx.Done():
				return
			}
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			slog.Warn("failed to commit change event", "offset", msg.Offset, "error", err)
		}
	}
}
