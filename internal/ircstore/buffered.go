package ircstore

import (
	"errors"
	"sync"
	"time"

	"github.com/you/twitchchat/ircmsg"
)

// Recorder is the subset of *Store that BufferedRecorder wraps, so
// tests can substitute a fake without a real database.
type Recorder interface {
	Record(ircmsg.Message) error
}

// BufferedRecorder batches Record calls and flushes them to the
// underlying Recorder either once BatchSize messages have queued or
// FlushInterval has elapsed since the first queued message, whichever
// comes first. This trades a small replay window (unflushed messages
// lost on crash) for many fewer, larger SQLite transactions under
// heavy chat traffic.
type BufferedRecorder struct {
	base          Recorder
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	buffer  []ircmsg.Message
	timer   *time.Timer
	closed  bool
	lastErr error
}

// BufferedOptions configures a BufferedRecorder.
type BufferedOptions struct {
	BatchSize     int
	FlushInterval time.Duration
}

// NewBufferedRecorder wraps base with batching per opts. A BatchSize
// <= 0 is treated as 1 (no batching by count).
func NewBufferedRecorder(base Recorder, opts BufferedOptions) *BufferedRecorder {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 1
	}
	return &BufferedRecorder{base: base, batchSize: batch, flushInterval: opts.FlushInterval}
}

// Record queues msg, flushing the batch (synchronously, on this call)
// once it reaches BatchSize. The error returned for a given call may
// therefore belong to a flush triggered by an earlier message in the
// batch, not to msg itself.
func (b *BufferedRecorder) Record(msg ircmsg.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("ircstore: buffered recorder closed")
	}

	pendingErr := b.lastErr
	b.lastErr = nil

	b.buffer = append(b.buffer, msg)
	if len(b.buffer) == 1 && b.flushInterval > 0 {
		b.startTimerLocked()
	}

	if len(b.buffer) < b.batchSize {
		b.mu.Unlock()
		return pendingErr
	}

	batch := append([]ircmsg.Message(nil), b.buffer...)
	b.buffer = b.buffer[:0]
	b.stopTimerLocked()
	b.mu.Unlock()

	if err := b.writeAll(batch); err != nil {
		return err
	}
	return pendingErr
}

// Close flushes any queued messages and marks the recorder unusable.
func (b *BufferedRecorder) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.stopTimerLocked()
	batch := append([]ircmsg.Message(nil), b.buffer...)
	b.buffer = nil
	pendingErr := b.lastErr
	b.lastErr = nil
	b.mu.Unlock()

	if len(batch) > 0 {
		if err := b.writeAll(batch); err != nil {
			return err
		}
	}
	return pendingErr
}

func (b *BufferedRecorder) onTimer() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if len(b.buffer) == 0 {
		b.timer = nil
		b.mu.Unlock()
		return
	}
	batch := append([]ircmsg.Message(nil), b.buffer...)
	b.buffer = b.buffer[:0]
	b.timer = nil
	b.mu.Unlock()

	if err := b.writeAll(batch); err != nil {
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
	}
}

func (b *BufferedRecorder) startTimerLocked() {
	if b.flushInterval <= 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.flushInterval, b.onTimer)
}

func (b *BufferedRecorder) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *BufferedRecorder) writeAll(batch []ircmsg.Message) error {
	for _, msg := range batch {
		if err := b.base.Record(msg); err != nil {
			return err
		}
	}
	return nil
}
