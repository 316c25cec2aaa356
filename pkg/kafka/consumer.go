package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes raw payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type consumerSettings struct {
	brokers    []string
	groupID    string
	workers    int
	bufferSize int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	dlqTopic   string
	minBytes   int
	maxBytes   int
}

// ConsumerOption adjusts settings for NewConsumer.
type ConsumerOption func(*consumerSettings)

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(s *consumerSettings) { s.brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(s *consumerSettings) { s.groupID = groupID }
}

func WithConsumerWorkers(n int) ConsumerOption {
	return func(s *consumerSettings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithConsumerBufferSize sizes the channel between readers and workers.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(s *consumerSettings) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// WithConsumerRetry bounds handler retries and the jittered backoff
// between attempts.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(s *consumerSettings) {
		s.retryMax = max
		s.backoffMin = backoffMin
		s.backoffMax = backoffMax
	}
}

// WithConsumerDLQ routes messages that exhaust their retries to the
// given topic instead of blocking the partition.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(s *consumerSettings) { s.dlqTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(s *consumerSettings) {
		s.minBytes = minBytes
		s.maxBytes = maxBytes
	}
}

type inbound struct {
	topic string
	msg   kafka.Message
}

// Consumer fans messages from topic readers out to a worker pool.
// Offsets are committed only after the handler succeeds or the message
// has been parked on the dead letter topic, and a per-partition lock
// keeps at most one message per partition in flight.
type Consumer struct {
	cfg      consumerSettings
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer
	hook     ConsumerHook

	inbox     chan inbound
	partLocks sync.Map // "topic/partition" -> *sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	s := consumerSettings{
		groupID:    "default",
		workers:    1,
		bufferSize: 10,
		retryMax:   3,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		minBytes:   10e3,
		maxBytes:   10e6,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if len(s.brokers) == 0 {
		return nil, errors.New("kafka consumer: no brokers")
	}

	c := &Consumer{
		cfg:      s,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		hook:     HookFuncs{},
		inbox:    make(chan inbound, s.bufferSize),
	}
	if s.dlqTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(s.brokers...), Balancer: &kafka.LeastBytes{}}
	}
	consumerMetricsInit.Do(registerConsumerMetrics)
	return c, nil
}

// RegisterHandler binds a handler to its topic. Call before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		log.Printf("kafka consumer: duplicate handler for topic %s", h.Topic())
		return
	}
	c.handlers[h.Topic()] = h
}

// WithConsumerHook installs lifecycle hooks around message handling.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens one reader per registered topic and launches the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.brokers,
			Topic:    topic,
			GroupID:  c.cfg.groupID,
			MinBytes: c.cfg.minBytes,
			MaxBytes: c.cfg.maxBytes,
		})
		c.readers[topic] = r
	}

	for i := 0; i < c.cfg.workers; i++ {
		c.wg.Add(1)
		go c.work(ctx)
	}
	for topic, r := range c.readers {
		c.wg.Add(1)
		go c.readLoop(ctx, topic, r)
	}

	log.Printf("kafka consumer: started topics=%d workers=%d", len(c.readers), c.cfg.workers)
	return nil
}

// Stop cancels readers and workers, then waits up to ctx's deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		finished := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-ctx.Done():
			stopErr = fmt.Errorf("kafka consumer drain: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				log.Printf("kafka consumer: close reader %s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("kafka consumer: close dlq writer: %v", err)
			}
		}
	})
	return stopErr
}

func (c *Consumer) readLoop(ctx context.Context, topic string, r *kafka.Reader) {
	defer c.wg.Done()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("kafka consumer: fetch %s: %v", topic, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// A full inbox blocks here, which is the backpressure: the
		// reader simply stops fetching until a worker frees a slot.
		select {
		case c.inbox <- inbound{topic: topic, msg: msg}:
			inboxDepth.WithLabelValues(topic).Set(float64(len(c.inbox)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case in := <-c.inbox:
			c.handleOne(ctx, in)
		}
	}
}

func (c *Consumer) handleOne(ctx context.Context, in inbound) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("kafka consumer: panic handling %s: %v", in.topic, r)
		}
	}()

	handler := c.handlers[in.topic]
	if handler == nil {
		return
	}

	lock := c.partitionLock(in.topic, in.msg.Partition)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := c.handleWithRetry(ctx, handler, in)
	handleLatency.WithLabelValues(in.topic).Observe(time.Since(start).Seconds())

	if err != nil {
		c.hook.OnError(ctx, in.topic, in.msg, in.msg.Value, err)
		log.Printf("kafka consumer: giving up on %s message: %v", in.topic, err)
		if !c.parkInDLQ(in) {
			// No DLQ: leave the offset uncommitted so the message is
			// redelivered rather than lost.
			return
		}
	}
	c.commit(in)
}

func (c *Consumer) handleWithRetry(ctx context.Context, handler MessageHandler, in inbound) error {
	for attempt := 0; ; attempt++ {
		hctx, hmsg, hdata, err := c.hook.BeforeHandle(ctx, in.topic, in.msg, in.msg.Value)
		if err == nil {
			err = handler.Handle(hctx, hdata)
			c.hook.AfterHandle(hctx, in.topic, hmsg, hdata, err)
		}
		if err == nil {
			return nil
		}
		if attempt >= c.cfg.retryMax {
			return err
		}
		c.hook.OnError(hctx, in.topic, hmsg, hdata, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitteredBackoff(c.cfg.backoffMin, c.cfg.backoffMax, attempt+1)):
		}
	}
}

// parkInDLQ reports whether the message was written to the dead letter
// topic.
func (c *Consumer) parkInDLQ(in inbound) bool {
	if c.dlq == nil {
		return false
	}
	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(wctx, kafka.Message{
		Topic:   c.cfg.dlqTopic,
		Value:   in.msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(in.topic)}},
	})
	if err != nil {
		log.Printf("kafka consumer: dlq write: %v", err)
		return false
	}
	return true
}

func (c *Consumer) commit(in inbound) {
	r := c.readers[in.topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(cctx, in.msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(jitteredBackoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("kafka consumer: commit %s: %v", in.topic, err)
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", topic, partition)
	if l, ok := c.partLocks.Load(key); ok {
		return l.(*sync.Mutex)
	}
	l, _ := c.partLocks.LoadOrStore(key, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// jitteredBackoff doubles from min up to max, then subtracts up to
// half as jitter.
func jitteredBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt-1)
	if d > max || d <= 0 {
		d = max
	}
	return d - time.Duration(rand.Int63n(int64(d)/2))
}

var (
	consumerMetricsInit sync.Once
	inboxDepth          *prometheus.GaugeVec
	handleLatency       *prometheus.HistogramVec
)

func registerConsumerMetrics() {
	inboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "papertune_kafka_consumer_queue_depth",
		Help: "Messages waiting for a worker.",
	}, []string{"topic"})
	handleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "papertune_kafka_consumer_handle_seconds",
		Help: "Handling time per message including retries.",
	}, []string{"topic"})
}
