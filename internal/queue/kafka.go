package queue

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaQueue publishes events to a Kafka topic and consumes them through a
// consumer group. The message key carries the event type.
type KafkaQueue struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
	dialer  *kafka.Dialer
}

// KafkaConfig configures a KafkaQueue. Username enables SASL/PLAIN over TLS.
type KafkaConfig struct {
	Broker   string
	Topic    string
	GroupID  string
	Username string
	Password string
}

// NewKafkaQueue builds a queue for one topic.
func NewKafkaQueue(cfg KafkaConfig) *KafkaQueue {
	transport := &kafka.Transport{}
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if cfg.Username != "" {
		mech := plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
		transport.SASL = mech
		transport.TLS = &tls.Config{}
		dialer.SASLMechanism = mech
		dialer.TLS = &tls.Config{}
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "resultportal-worker"
	}
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Broker),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Transport:    transport,
			WriteTimeout: 10 * time.Second,
		},
		brokers: []string{cfg.Broker},
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		dialer:  dialer,
	}
}

// Publish writes one message synchronously.
func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	return q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Type),
		Value: msg.Body,
		Time:  time.Now(),
	})
}

// Consume reads the topic until ctx is done.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.brokers,
		GroupID:  q.groupID,
		Topic:    q.topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		Dialer:   q.dialer,
	})
	out := make(chan Message)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case out <- Message{Type: string(m.Key), Body: m.Value}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close flushes and closes the writer.
func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}
