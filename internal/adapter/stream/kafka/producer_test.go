package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linkcut/linkcut/internal/entity"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	block    chan struct{}
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if w.err != nil {
		return w.err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func TestClickEmitter_Emit(t *testing.T) {
	t.Run("enriches event and keys by short code", func(t *testing.T) {
		writer := &fakeWriter{}
		emitter := NewClickEmitter(writer, discardLogger())

		emitter.Emit(entity.ClickEvent{
			URLID:     uuid.New(),
			ShortCode: "abc123",
			IPAddress: "203.0.113.7",
		})
		emitter.Close()

		msgs := writer.written()
		assert.Len(t, msgs, 1)
		assert.Equal(t, []byte("abc123"), msgs[0].Key)

		var event entity.ClickEvent
		assert.NoError(t, json.Unmarshal(msgs[0].Value, &event))
		assert.Equal(t, EventTypeClick, event.EventType)
		assert.Equal(t, "abc123", event.ShortCode)
		assert.False(t, event.EmittedAt.IsZero())
		assert.False(t, event.ClickedAt.IsZero())
	})

	t.Run("preserves per-code ordering key across events", func(t *testing.T) {
		writer := &fakeWriter{}
		emitter := NewClickEmitter(writer, discardLogger())

		for i := 0; i < 10; i++ {
			emitter.Emit(entity.ClickEvent{ShortCode: "abc123"})
		}
		emitter.Close()

		for _, msg := range writer.written() {
			assert.Equal(t, []byte("abc123"), msg.Key)
		}
	})

	t.Run("never blocks when the queue is full", func(t *testing.T) {
		writer := &fakeWriter{block: make(chan struct{})}
		emitter := NewClickEmitter(writer, discardLogger(), WithQueueSize(1))

		done := make(chan struct{})
		go func() {
			for i := 0; i < 20; i++ {
				emitter.Emit(entity.ClickEvent{ShortCode: "abc123"})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Emit blocked on a full queue")
		}

		close(writer.block)
		emitter.Close()

		// Queue capacity plus in-flight workers bounds what can survive.
		assert.LessOrEqual(t, len(writer.written()), 3)
	})

	t.Run("write failure is swallowed", func(t *testing.T) {
		writer := &fakeWriter{err: errors.New("broker down")}
		emitter := NewClickEmitter(writer, discardLogger())

		emitter.Emit(entity.ClickEvent{ShortCode: "abc123"})
		emitter.Close()

		assert.Empty(t, writer.written())
	})

	t.Run("send timeout is swallowed", func(t *testing.T) {
		writer := &fakeWriter{block: make(chan struct{})}
		defer close(writer.block)

		emitter := NewClickEmitter(writer, discardLogger(), WithSendTimeout(10*time.Millisecond))

		emitter.Emit(entity.ClickEvent{ShortCode: "abc123"})

		closed := make(chan struct{})
		go func() {
			emitter.Close()
			close(closed)
		}()

		select {
		case <-closed:
		case <-time.After(time.Second):
			t.Fatal("Close did not return after send timeout")
		}

		assert.Empty(t, writer.written())
	})
}
