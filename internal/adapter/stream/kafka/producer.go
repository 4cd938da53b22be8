// Package kafka publishes and consumes click events on the url_clicks topic.
// Messages are keyed by short code, so any single consumer observes the
// events of one code in order.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/linkcut/linkcut/internal/entity"
	"github.com/segmentio/kafka-go"
)

const (
	// DefaultTopic is the click-event topic.
	DefaultTopic = "url_clicks"
	// EventTypeClick tags redirect click events.
	EventTypeClick = "click"

	defaultQueueSize   = 1024
	defaultWorkers     = 2
	defaultSendTimeout = 5 * time.Second
)

// NewWriter builds the kafka writer the emitter publishes through. The hash
// balancer maps equal keys to equal partitions, which is what provides the
// per-short-code ordering guarantee.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Gzip,
	}
}

// messageWriter is the subset of kafka.Writer the emitter needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ClickEmitter dispatches click events to the stream without ever blocking or
// failing the caller. Events go through a bounded queue drained by background
// workers; a full queue, a send timeout, or a broker error drops the event
// with a log line. Click tracking is best-effort.
type ClickEmitter struct {
	writer      messageWriter
	logger      *slog.Logger
	queue       chan entity.ClickEvent
	sendTimeout time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// EmitterOption configures a ClickEmitter.
type EmitterOption func(*ClickEmitter)

// WithQueueSize bounds the in-flight event queue.
func WithQueueSize(n int) EmitterOption {
	return func(e *ClickEmitter) {
		if n > 0 {
			e.queue = make(chan entity.ClickEvent, n)
		}
	}
}

// WithSendTimeout bounds the wait for the broker's send acknowledgment.
func WithSendTimeout(d time.Duration) EmitterOption {
	return func(e *ClickEmitter) {
		if d > 0 {
			e.sendTimeout = d
		}
	}
}

// NewClickEmitter starts the background workers and returns the emitter.
// Close must be called to drain the queue on shutdown.
func NewClickEmitter(writer messageWriter, logger *slog.Logger, opts ...EmitterOption) *ClickEmitter {
	e := &ClickEmitter{
		writer:      writer,
		logger:      logger,
		queue:       make(chan entity.ClickEvent, defaultQueueSize),
		sendTimeout: defaultSendTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	for i := 0; i < defaultWorkers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	return e
}

// Emit enqueues the event and returns immediately. The event is enriched with
// the click tag and the emission timestamp before it is queued.
func (e *ClickEmitter) Emit(event entity.ClickEvent) {
	event.EventType = EventTypeClick
	event.EmittedAt = time.Now().UTC()
	if event.ClickedAt.IsZero() {
		event.ClickedAt = event.EmittedAt
	}

	select {
	case e.queue <- event:
	default:
		e.logger.Warn("click event queue full, dropping event",
			slog.String("short_code", event.ShortCode))
	}
}

// Close stops accepting events, drains the queue, and waits for the workers.
func (e *ClickEmitter) Close() {
	e.closeOnce.Do(func() {
		close(e.queue)
	})
	e.wg.Wait()
}

func (e *ClickEmitter) worker() {
	defer e.wg.Done()

	for event := range e.queue {
		e.send(event)
	}
}

func (e *ClickEmitter) send(event entity.ClickEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("failed to marshal click event",
			slog.String("short_code", event.ShortCode),
			slog.Any("err", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.sendTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.ShortCode),
		Value: data,
	}

	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		e.logger.Error("failed to send click event, dropping it",
			slog.String("short_code", event.ShortCode),
			slog.Any("err", err))
	}
}
