// Package notify carries transient user notifications ("toasts") from the
// submission pipeline to whatever renders them.
//
// Sinks are fire-and-forget: Notify never blocks on and never fails because
// of the consumer.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Kind is the severity of a notice.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notice is one message shown to the user.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Sink receives notices.
type Sink interface {
	Notify(kind Kind, message string)
}

// Recorder collects notices raised while serving one request so the
// response can render them.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Kind: kind, Message: message})
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Log writes every notice to a structured logger.
type Log struct {
	Logger *slog.Logger
	Attrs  []any
}

func (l Log) Notify(kind Kind, message string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if kind == Error {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "user notified", append([]any{"kind", kind, "message", message}, l.Attrs...)...)
}

// Multi fans a notice out to several sinks. Nil entries are skipped.
type Multi []Sink

func (m Multi) Notify(kind Kind, message string) {
	for _, s := range m {
		if s != nil {
			s.Notify(kind, message)
		}
	}
}

// Discard drops every notice.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(Kind, string) {}
