package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/seido/internal/config"
)

// HeaderEventType names the header carrying an event's type.
const HeaderEventType = "event-type"

// Message is a record travelling over the bus in either direction.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message. Returning an error leaves it uncommitted.
type Handler func(context.Context, Message) error

// Client publishes and consumes messages on a single topic.
type Client interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	switch cfg.Messaging.Driver {
	case "noop":
		logger.Info("messaging disabled; using noop client")
		return Noop(cfg.Messaging.Kafka.Topic), nil
	case "kafka":
		return newKafkaClient(lc, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

// Noop returns a client that drops published messages and blocks on Consume.
func Noop(topic string) Client { return noopClient{topic: topic} }

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, Message) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

const memoryRedeliveryDelay = 20 * time.Millisecond

// Memory is an in-process bus. Published messages are buffered until consumed.
type Memory struct {
	topic string
	mu    sync.Mutex
	queue []Message
	ready chan struct{}
	next  int64
}

// NewMemory creates an empty in-process bus for topic.
func NewMemory(topic string) *Memory {
	return &Memory{topic: topic, ready: make(chan struct{}, 1)}
}

func (m *Memory) Publish(_ context.Context, msg Message) error {
	m.mu.Lock()
	msg.Topic = m.topic
	msg.Offset = m.next
	msg.Time = time.Now()
	m.next++
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	m.signal()
	return nil
}

// Consume delivers buffered messages in publish order until ctx is done.
// Each message is claimed by exactly one consumer. A message whose handler
// fails goes back to the head of the queue and is redelivered after a short pause.
func (m *Memory) Consume(ctx context.Context, handler Handler) error {
	for {
		if msg, ok := m.claim(); ok {
			if err := handler(ctx, msg); err == nil {
				continue
			}
			m.requeue(msg)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(memoryRedeliveryDelay):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ready:
		}
	}
}

// Published returns a snapshot of messages not yet consumed.
func (m *Memory) Published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.queue...)
}

func (m *Memory) Topic() string { return m.topic }

func (m *Memory) claim() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Message{}, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	if len(m.queue) > 0 {
		m.signal()
	}
	return msg, true
}

func (m *Memory) requeue(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append([]Message{msg}, m.queue...)
	m.signal()
}

func (m *Memory) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *kafkaClient {
	kcfg := cfg.Messaging.Kafka
	log := kafkaLogger{sugar: logger.Named("kafka").Sugar()}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kcfg.Brokers...),
		Topic:        kcfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Logger:       log,
		ErrorLogger:  log,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kcfg.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          kcfg.Topic,
		MinBytes:       kcfg.MinBytes,
		MaxBytes:       kcfg.MaxBytes,
		CommitInterval: kcfg.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  kcfg.ConnectTimeout,
			ClientID: kcfg.ClientID,
		},
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")
			return errors.Join(writer.Close(), reader.Close())
		},
	})

	return &kafkaClient{writer: writer, reader: reader, topic: kcfg.Topic, logger: logger}
}

func (k *kafkaClient) Publish(ctx context.Context, msg Message) error {
	out := kafka.Message{Key: msg.Key, Value: msg.Value}
	for key, value := range msg.Headers {
		out.Headers = append(out.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return k.writer.WriteMessages(ctx, out)
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		in := Message{
			Topic:  msg.Topic,
			Key:    append([]byte(nil), msg.Key...),
			Value:  append([]byte(nil), msg.Value...),
			Offset: msg.Offset,
			Time:   msg.Time,
		}
		if len(msg.Headers) > 0 {
			in.Headers = make(map[string]string, len(msg.Headers))
			for _, h := range msg.Headers {
				in.Headers[h.Key] = string(h.Value)
			}
		}

		if err := handler(ctx, in); err != nil {
			k.logger.Error("message handler failed", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}
		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

type kafkaLogger struct {
	sugar *zap.SugaredLogger
}

func (k kafkaLogger) Printf(msg string, args ...any) {
	k.sugar.Debugf(msg, args...)
}
