package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/m3rciful/moexbot/core/logger"
)

const component = "events"

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic    string   `yaml:"topic" envconfig:"KAFKA_TOPIC"`
	ClientID string   `yaml:"client_id" envconfig:"KAFKA_CLIENT_ID"`
}

// Kafka publishes events to one topic, keyed by chat id so a chat's events stay ordered.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka connects a synchronous producer.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("events: kafka brokers and topic are required")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.ClientID = cfg.ClientID
	if sc.ClientID == "" {
		sc.ClientID = "moexbot"
	}
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Retry.Max = 3
	sc.Producer.Timeout = 5 * time.Second

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("events: kafka producer: %w", err)
	}
	return newKafka(p, cfg.Topic), nil
}

func newKafka(p sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic}
}

// Publish implements Publisher.
func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Type, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(ev.ChatID, 10)),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(ev.Type)},
		},
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		logger.Warn(ctx, component, "publish",
			slog.String("status", "fail"),
			slog.String("op", ev.Type),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("events: publish %s: %w", ev.Type, err)
	}
	logger.Debug(ctx, component, "publish",
		slog.String("status", "ok"),
		slog.String("op", ev.Type),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

// Close implements Publisher.
func (k *Kafka) Close() error {
	return k.producer.Close()
}
