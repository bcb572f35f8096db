package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
)

const maxBatch = 100

// Publisher writes a batch of events to the analytics topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events and publishes them in the background so the
// search path never waits on the broker. When the buffer is full new events
// are dropped and counted, both locally and in analytics_events_dropped_total.
type Collector struct {
	publisher Publisher
	eventCh   chan any
	dropped   atomic.Int64
	metrics   *metrics.Metrics
	logger    *slog.Logger
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewCollector(publisher Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan any, bufferSize),
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. Each iteration takes one event and
// whatever else is already buffered, up to maxBatch, and writes them together.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, c.fill([]kafka.Event{toKafka(event)}))
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event without blocking. Events tracked after Close are
// dropped.
func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		c.metrics.ObserveAnalyticsDropped("closed")
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.metrics.ObserveAnalyticsDropped("buffer_full")
		if n := c.dropped.Add(1); n%1000 == 1 {
			c.logger.Warn("analytics event dropped (buffer full)", "dropped_total", n)
		}
	}
}

// Dropped returns how many events were discarded, for any reason.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the publish loop to exit.
// Call it only after Start.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) fill(batch []kafka.Event) []kafka.Event {
	for len(batch) < maxBatch {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafka(event))
		default:
			return batch
		}
	}
	return batch
}

func (c *Collector) publish(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	}
}

// drain flushes what is left in the buffer after ctx is cancelled.
func (c *Collector) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		batch := c.fill(nil)
		if len(batch) == 0 {
			return
		}
		c.publish(ctx, batch)
	}
}

func toKafka(event any) kafka.Event {
	return kafka.Event{Key: eventKey(event), Value: event}
}
