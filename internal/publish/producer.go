package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/monitoring"
)

// Publisher mirrors position estimates to a Kafka topic. Produce calls are
// asynchronous; a delivery-report goroutine tracks acks and failures.
type Publisher struct {
	producer     *kafka.Producer
	config       *KafkaConfig
	deliveryChan chan kafka.Event

	messagesSent   atomic.Int64
	messagesAcked  atomic.Int64
	messagesFailed atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// configMap builds the librdkafka configuration for the publisher. SASL
// settings are included only when a username is configured so that plain
// local brokers work out of the box.
func (c *KafkaConfig) configMap() *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":  c.BootstrapServers,
		"compression.type":   c.CompressionType,
		"acks":               c.Acks,
		"linger.ms":          c.LingerMS,
		"batch.size":         c.BatchSize,
		"enable.idempotence": true,
		"request.timeout.ms": 30000,
	}
	if c.SASLUsername != "" {
		_ = cm.SetKey("security.protocol", c.SecurityProtocol)
		_ = cm.SetKey("sasl.mechanism", c.SASLMechanism)
		_ = cm.SetKey("sasl.username", c.SASLUsername)
		_ = cm.SetKey("sasl.password", c.SASLPassword)
	}
	return cm
}

// NewPublisher creates a publisher and starts its delivery-report handler.
func NewPublisher(cfg *KafkaConfig) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}

	p, err := kafka.NewProducer(cfg.configMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pub := &Publisher{
		producer:     p,
		config:       cfg,
		deliveryChan: make(chan kafka.Event, 1000),
		ctx:          ctx,
		cancel:       cancel,
	}

	pub.wg.Add(1)
	go pub.handleDeliveryReports()

	monitoring.Logf("publish: Kafka producer initialized, topic=%s servers=%s", cfg.Topic, cfg.BootstrapServers)
	return pub, nil
}

// handleDeliveryReports processes delivery confirmations in a separate goroutine.
func (pub *Publisher) handleDeliveryReports() {
	defer pub.wg.Done()

	for {
		select {
		case <-pub.ctx.Done():
			return
		case e := <-pub.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				pub.messagesFailed.Add(1)
				monitoring.Logf("publish: delivery failed: %v", m.TopicPartition.Error)
			} else {
				pub.messagesAcked.Add(1)
			}
		}
	}
}

// Publish serializes a position estimate and produces it keyed by
// classification, so per-class ordering survives partitioning.
func (pub *Publisher) Publish(pos *db.Position) error {
	payload, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to serialize position: %w", err)
	}

	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &pub.config.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(pos.Classification),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "mode", Value: []byte(pos.Mode)},
			{Key: "detection_id", Value: []byte(pos.DetectionID)},
		},
	}

	if err := pub.producer.Produce(message, pub.deliveryChan); err != nil {
		pub.messagesFailed.Add(1)
		return fmt.Errorf("failed to produce message: %w", err)
	}
	pub.messagesSent.Add(1)
	return nil
}

// Metrics returns current producer counters.
func (pub *Publisher) Metrics() map[string]int64 {
	return map[string]int64{
		"messages_sent":    pub.messagesSent.Load(),
		"messages_acked":   pub.messagesAcked.Load(),
		"messages_failed":  pub.messagesFailed.Load(),
		"messages_pending": pub.messagesSent.Load() - pub.messagesAcked.Load() - pub.messagesFailed.Load(),
	}
}

// Flush waits for pending messages to be delivered.
func (pub *Publisher) Flush(timeout time.Duration) {
	remaining := pub.producer.Flush(int(timeout.Milliseconds()))
	if remaining > 0 {
		monitoring.Logf("publish: %d messages still in queue after flush timeout", remaining)
	}
}

// Close flushes outstanding messages and shuts the producer down.
func (pub *Publisher) Close() {
	pub.Flush(10 * time.Second)
	pub.cancel()
	pub.wg.Wait()
	pub.producer.Close()

	m := pub.Metrics()
	monitoring.Logf("publish: closed, sent=%d acked=%d failed=%d",
		m["messages_sent"], m["messages_acked"], m["messages_failed"])
}
