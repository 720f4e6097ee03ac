package ircstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/you/twitchchat/ircmsg"
)

type recordingRecorder struct {
	mu        sync.Mutex
	messages  []ircmsg.Message
	failAfter int
	calls     int
}

func (r *recordingRecorder) Record(msg ircmsg.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAfter > 0 && r.calls >= r.failAfter {
		return fmt.Errorf("boom")
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func joinMsg(t *testing.T, nick string) ircmsg.Message {
	t.Helper()
	msg, err := ircmsg.Parse(mustFrame(t, ":"+nick+"!"+nick+"@"+nick+".tmi.twitch.tv JOIN #chan"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return msg
}

func TestBufferedRecorderBatchFlush(t *testing.T) {
	base := &recordingRecorder{}
	br := NewBufferedRecorder(base, BufferedOptions{BatchSize: 2, FlushInterval: time.Hour})
	defer func() {
		if err := br.Close(); err != nil {
			t.Fatalf("close error: %v", err)
		}
	}()

	if err := br.Record(joinMsg(t, "one")); err != nil {
		t.Fatalf("record1: %v", err)
	}
	if base.Count() != 0 {
		t.Fatalf("expected no flush yet")
	}
	if err := br.Record(joinMsg(t, "two")); err != nil {
		t.Fatalf("record2: %v", err)
	}
	if base.Count() != 2 {
		t.Fatalf("expected batch flush, got %d", base.Count())
	}
}

func TestBufferedRecorderFlushInterval(t *testing.T) {
	base := &recordingRecorder{}
	br := NewBufferedRecorder(base, BufferedOptions{BatchSize: 10, FlushInterval: 20 * time.Millisecond})
	defer func() {
		if err := br.Close(); err != nil {
			t.Fatalf("close error: %v", err)
		}
	}()

	if err := br.Record(joinMsg(t, "interval")); err != nil {
		t.Fatalf("record: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if base.Count() != 1 {
		t.Fatalf("expected timer flush, got %d", base.Count())
	}
}

func TestBufferedRecorderErrorPropagation(t *testing.T) {
	base := &recordingRecorder{failAfter: 1}
	br := NewBufferedRecorder(base, BufferedOptions{BatchSize: 1})
	defer func() {
		_ = br.Close()
	}()

	if err := br.Record(joinMsg(t, "err")); err == nil {
		t.Fatalf("expected error from underlying recorder")
	}
}
