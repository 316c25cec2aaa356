package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

type producerSettings struct {
	brokers      []string
	requiredAcks int
	compression  string
	maxAttempts  int
	writeTimeout time.Duration
	readTimeout  time.Duration
	batchSize    int
	batchBytes   int64
	batchTimeout time.Duration
	async        bool
	hashByKey    bool
}

// ProducerOption adjusts writer settings for NewProducer.
type ProducerOption func(*producerSettings)

func WithBrokers(brokers []string) ProducerOption {
	return func(s *producerSettings) { s.brokers = brokers }
}

// WithCompression selects gzip, snappy, lz4 or zstd.
func WithCompression(name string) ProducerOption {
	return func(s *producerSettings) { s.compression = name }
}

// WithRequiredAcks sets the ack level, -1 meaning all replicas.
func WithRequiredAcks(acks int) ProducerOption {
	return func(s *producerSettings) { s.requiredAcks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(s *producerSettings) { s.maxAttempts = n }
}

func WithBatchSize(n int) ProducerOption {
	return func(s *producerSettings) { s.batchSize = n }
}

func WithBatchBytes(n int) ProducerOption {
	return func(s *producerSettings) { s.batchBytes = int64(n) }
}

func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(s *producerSettings) { s.batchTimeout = d }
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(s *producerSettings) {
		s.writeTimeout = write
		s.readTimeout = read
	}
}

// WithAsync makes writes fire-and-forget.
func WithAsync(async bool) ProducerOption {
	return func(s *producerSettings) { s.async = async }
}

// WithHashByKey routes messages with the same key to the same
// partition, preserving per-ticker ordering.
func WithHashByKey(hash bool) ProducerOption {
	return func(s *producerSettings) { s.hashByKey = hash }
}

// Producer publishes JSON or raw payloads to Kafka topics.
type Producer struct {
	writer      *kafka.Writer
	compression string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	s := &producerSettings{
		requiredAcks: -1,
		compression:  "gzip",
		maxAttempts:  3,
		writeTimeout: 10 * time.Second,
		readTimeout:  10 * time.Second,
		batchSize:    100,
		batchBytes:   1 << 20,
		batchTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.brokers) == 0 {
		return nil, errors.New("kafka producer: no brokers")
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if s.hashByKey {
		balancer = &kafka.Hash{}
	}

	producerMetricsInit.Do(registerProducerMetrics)
	return &Producer{
		compression: s.compression,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(s.brokers...),
			Balancer:     balancer,
			RequiredAcks: kafka.RequiredAcks(s.requiredAcks),
			Compression:  compressionCodec(s.compression),
			MaxAttempts:  s.maxAttempts,
			WriteTimeout: s.writeTimeout,
			ReadTimeout:  s.readTimeout,
			BatchSize:    s.batchSize,
			BatchBytes:   s.batchBytes,
			BatchTimeout: s.batchTimeout,
			Async:        s.async,
		},
	}, nil
}

// Publish writes one message. Strings and byte slices go out as-is,
// anything else is JSON-encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  time.Now(),
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	producedTotal.WithLabelValues(topic, p.compression, outcome).Inc()
	producedBytes.WithLabelValues(topic, p.compression).Add(float64(len(payload)))
	publishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	return err
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode kafka payload: %w", err)
		}
		return raw, nil
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMetricsInit sync.Once
	producedTotal       *prometheus.CounterVec
	producedBytes       *prometheus.CounterVec
	publishLatency      *prometheus.HistogramVec
)

func registerProducerMetrics() {
	producedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertune_kafka_producer_messages_total",
		Help: "Messages published, by outcome.",
	}, []string{"topic", "compression", "outcome"})
	producedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertune_kafka_producer_bytes_total",
		Help: "Payload bytes published.",
	}, []string{"topic", "compression"})
	publishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertune_kafka_producer_publish_seconds",
		Help:    "Time spent in WriteMessages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
}
