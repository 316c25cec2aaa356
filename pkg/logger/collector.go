package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Publisher receives flushed log digests, typically a Kafka producer.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig controls how error lines are aggregated before
// they are published.
type CollectionConfig struct {
	TimeInterval   time.Duration
	CountThreshold int
	Topic          string
	Publisher      Publisher
}

// DigestEntry is one deduplicated log line with its occurrence window.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector batches identical log lines and flushes them on a timer
// or once the number of distinct lines crosses the threshold. Repeated
// lines only bump a counter, so an error storm publishes one digest
// entry instead of thousands of messages.
type LogCollector struct {
	cfg *CollectionConfig

	mu      sync.Mutex
	pending map[uint64]*DigestEntry

	stop chan struct{}
	done sync.WaitGroup
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	c := &LogCollector{
		cfg:     cfg,
		pending: make(map[uint64]*DigestEntry),
		stop:    make(chan struct{}),
	}
	c.done.Add(1)
	go c.flushLoop()
	return c
}

// Add records one occurrence of a log line. Lines are considered the
// same when level, message and caller match.
func (c *LogCollector) Add(level, msg string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, msg, caller)

	c.mu.Lock()
	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.pending[key] = &DigestEntry{
			Level:     level,
			Message:   msg,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	overflow := len(c.pending) >= c.cfg.CountThreshold
	var batch []DigestEntry
	if overflow {
		batch = c.drain()
	}
	c.mu.Unlock()

	if overflow {
		c.publish(batch)
	}
}

// Close flushes whatever is pending and stops the loop.
func (c *LogCollector) Close() {
	close(c.stop)
	c.done.Wait()
}

func digestKey(level, msg, caller string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(level))
	h.Write([]byte{0})
	h.Write([]byte(msg))
	h.Write([]byte{0})
	h.Write([]byte(caller))
	return h.Sum64()
}

// drain returns pending entries and resets the map. Caller holds mu.
func (c *LogCollector) drain() []DigestEntry {
	if len(c.pending) == 0 {
		return nil
	}
	out := make([]DigestEntry, 0, len(c.pending))
	for _, e := range c.pending {
		out = append(out, *e)
	}
	c.pending = make(map[uint64]*DigestEntry)
	return out
}

func (c *LogCollector) flushLoop() {
	defer c.done.Done()

	tick := time.NewTicker(c.cfg.TimeInterval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			c.mu.Lock()
			batch := c.drain()
			c.mu.Unlock()
			c.publish(batch)
		case <-c.stop:
			c.mu.Lock()
			batch := c.drain()
			c.mu.Unlock()
			c.publish(batch)
			return
		}
	}
}

func (c *LogCollector) publish(batch []DigestEntry) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		fmt.Printf("log digest publish failed: %v\n", err)
	}
}
