package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFormNotFound = errors.New("form session not found")
	ErrUnknownForm  = errors.New("unknown form")
)

// Config configures a Service.
type Config struct {
	SessionTTL    time.Duration
	VerifyTimeout time.Duration
	SubmitTimeout time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
	Observer      Observer
}

// Service holds the active form sessions and the shared submission
// pipeline. Sessions live in memory; an idle session is dropped after
// SessionTTL by the sweeper.
type Service struct {
	pipeline *Pipeline
	observer Observer
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	forms map[string]*Form
}

// NewService creates a service that persists submissions through ins.
func NewService(ins Inserter, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Service{
		pipeline: NewPipeline(ins, PipelineConfig{
			VerifyTimeout: cfg.VerifyTimeout,
			SubmitTimeout: cfg.SubmitTimeout,
			Limiter:       NewSubmitLimiter(cfg.MaxConcurrent, cfg.MaxWait),
			Observer:      cfg.Observer,
		}),
		observer: cfg.Observer,
		ttl:      cfg.SessionTTL,
		now:      time.Now,
		forms:    make(map[string]*Form),
	}
}

// Open resumes the session sessionID if it exists and belongs to formKey;
// otherwise it starts a new session.
func (s *Service) Open(formKey, sessionID string) (*Form, error) {
	def, ok := Get(formKey)
	if !ok {
		return nil, ErrUnknownForm
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.forms[sessionID]; ok && f.def.Key == formKey {
		return f, nil
	}

	f := newForm(uuid.NewString(), def, s.pipeline, s.observer, s.now())
	s.forms[f.id] = f
	return f, nil
}

// Peek returns the state of an existing session, or of a fresh unsaved
// form when there is none. It never creates a session.
func (s *Service) Peek(formKey, sessionID string) (FormState, error) {
	def, ok := Get(formKey)
	if !ok {
		return FormState{}, ErrUnknownForm
	}

	s.mu.RLock()
	f, ok := s.forms[sessionID]
	s.mu.RUnlock()
	if ok && f.def.Key == formKey {
		return f.State(), nil
	}

	state := newForm("", def, s.pipeline, s.observer, s.now()).State()
	return state, nil
}

// Lookup finds a session by ID.
func (s *Service) Lookup(sessionID string) (*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.forms[sessionID]
	if !ok {
		return nil, ErrFormNotFound
	}
	return f, nil
}

// Discard drops a session. A pending submission still completes.
func (s *Service) Discard(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, sessionID)
}

// ActiveCount returns the number of live sessions.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forms)
}

// Sweep drops sessions idle longer than the TTL and returns how many were
// removed. Sessions with a pending submission are kept.
func (s *Service) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, f := range s.forms {
		idle, pending := f.idleSince(now)
		if pending || idle < s.ttl {
			continue
		}
		delete(s.forms, id)
		removed++
	}
	return removed
}

// Limiter exposes the submission limiter.
func (s *Service) Limiter() *SubmitLimiter {
	return s.pipeline.Limiter()
}

// WaitForSubmissions blocks until in-flight submissions finish or ctx ends.
func (s *Service) WaitForSubmissions(ctx context.Context) error {
	return s.pipeline.Limiter().WaitForDrain(ctx)
}
