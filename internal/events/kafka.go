package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// KafkaConfig содержит параметры подключения публикатора к Kafka.
type KafkaConfig struct {
	BootstrapServers string
	ClientID         string
	Topic            string
	DeliveryTimeout  time.Duration
	CircuitBreaker   gobreaker.Settings
}

// KafkaPublisher публикует события заказов в топик Kafka.
// Ключ сообщения - номер заказа, поэтому события одного заказа попадают в одну партицию.
type KafkaPublisher struct {
	producer     *kafka.Producer
	deliveryChan chan kafka.Event
	breaker      *gobreaker.CircuitBreaker
	cfg          KafkaConfig
	logger       *zap.Logger
}

// NewKafkaPublisher создаёт продюсер и запускает обработку отчётов о доставке.
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if cfg.BootstrapServers == "" {
		return nil, errors.New("kafka bootstrap servers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if cfg.DeliveryTimeout == 0 {
		cfg.DeliveryTimeout = 15 * time.Second
	}
	if cfg.CircuitBreaker.Name == "" {
		cfg.CircuitBreaker = gobreaker.Settings{
			Name:        "order_events_breaker",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"client.id":         cfg.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}

	p := &KafkaPublisher{
		producer:     producer,
		deliveryChan: make(chan kafka.Event, 128),
		breaker:      gobreaker.NewCircuitBreaker(cfg.CircuitBreaker),
		cfg:          cfg,
		logger:       logger,
	}

	go p.handleDeliveryReports()

	return p, nil
}

// PublishOrderEvent отправляет событие в топик заказов.
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, evt OrderEvent) error {
	msg, err := buildMessage(p.cfg.Topic, evt)
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return nil, p.producer.Produce(msg, p.deliveryChan)
	})
	if err != nil {
		return fmt.Errorf("produce %s: %w", evt.Type, err)
	}
	return nil
}

func buildMessage(topic string, evt OrderEvent) (*kafka.Message, error) {
	payload, err := evt.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(evt.OrderNumber),
		Value:          payload,
		Timestamp:      evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
			{Key: "event-id", Value: []byte(evt.EventID)},
		},
	}, nil
}

func (p *KafkaPublisher) handleDeliveryReports() {
	for e := range p.deliveryChan {
		m, ok := e.(*kafka.Message)
		if !ok {
			p.logger.Warn("unexpected kafka event", zap.String("event", e.String()))
			continue
		}
		if m.TopicPartition.Error != nil {
			p.logger.Error("order event delivery failed",
				zap.String("key", string(m.Key)),
				zap.Error(m.TopicPartition.Error),
			)
		}
	}
}

// Close дожидается отправки сообщений и закрывает продюсер.
func (p *KafkaPublisher) Close() {
	if p == nil || p.producer == nil {
		return
	}
	p.producer.Flush(int(p.cfg.DeliveryTimeout.Milliseconds()))
	p.producer.Close()
	close(p.deliveryChan)
}
