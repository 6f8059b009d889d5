// Package notify carries user-visible success and error messages out of the
// core. Delivery is fire-and-forget.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

type Sink interface {
	NotifySuccess(message string)
	NotifyError(message string)
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Message struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Recorder buffers messages until the presenter drains them. When full, the
// oldest message is dropped.
type Recorder struct {
	limit int

	mu   sync.Mutex
	msgs []Message
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 20
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) NotifySuccess(message string) { r.push(LevelSuccess, message) }

func (r *Recorder) NotifyError(message string) { r.push(LevelError, message) }

func (r *Recorder) push(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Level: level, Text: text, At: time.Now().UTC()})
	if len(r.msgs) > r.limit {
		r.msgs = r.msgs[len(r.msgs)-r.limit:]
	}
}

// Drain returns buffered messages oldest first and empties the buffer.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

type LogSink struct {
	log *slog.Logger
}

func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{log: l}
}

func (s *LogSink) NotifySuccess(message string) {
	s.log.Info("notify", "level", LevelSuccess, "message", message)
}

func (s *LogSink) NotifyError(message string) {
	s.log.Warn("notify", "level", LevelError, "message", message)
}

// Fanout delivers every message to each sink in order.
type Fanout []Sink

func (f Fanout) NotifySuccess(message string) {
	for _, s := range f {
		if s != nil {
			s.NotifySuccess(message)
		}
	}
}

func (f Fanout) NotifyError(message string) {
	for _, s := range f {
		if s != nil {
			s.NotifyError(message)
		}
	}
}
