package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestKafkaPublishEncodesEvent(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != TypeNotificationSent || ev.ChatID != 42 || ev.Ticker != "SBER" || ev.ID == "" {
			return errors.New("unexpected event")
		}
		return nil
	})

	k := newKafka(p, "moexbot.notifications")
	ev := New(TypeNotificationSent, 42)
	ev.Ticker = "SBER"
	if err := k.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := k.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestKafkaPublishFailure(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := newKafka(p, "moexbot.notifications")
	err := k.Publish(context.Background(), New(TypeNotificationFailed, 1))
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err = %v", err)
	}
	_ = k.Close()
}

func TestNewKafkaRequiresTopic(t *testing.T) {
	if _, err := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatal("expected error without topic")
	}
}
