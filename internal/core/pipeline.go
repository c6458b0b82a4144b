package core

// pipeline.go turns a validated draft into one persisted record.
//
// A run is: obtain a verification token (when the form asks for one),
// take a submission slot, build the record, insert it, and notify the
// user of the result. Every wait is bounded by a timeout, and every exit
// path, including a panicking collaborator, produces a final outcome.

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/JonMunkholm/shipbroker/internal/logging"
	"github.com/JonMunkholm/shipbroker/internal/notify"
	"github.com/JonMunkholm/shipbroker/internal/store"
)

var (
	ErrSubmissionPending  = errors.New("submission already in progress")
	ErrAlreadySubmitted   = errors.New("form already submitted")
	ErrVerificationFailed = errors.New("bot verification failed")
)

// SubmissionState is the lifecycle of one draft's submission.
type SubmissionState string

const (
	StateIdle      SubmissionState = "idle"
	StatePending   SubmissionState = "pending"
	StateSucceeded SubmissionState = "succeeded"
	StateFailed    SubmissionState = "failed"
)

// Outcome is the result of a pipeline run.
type Outcome struct {
	State   SubmissionState `json:"state"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Err     error           `json:"-"`
}

// Inserter persists one record. Errors carrying a SQLSTATE code are
// returned as *store.Error.
type Inserter interface {
	Insert(ctx context.Context, table string, rec store.Record) error
}

// Verifier yields a bot-verification token for an action. An empty token
// means verification failed.
type Verifier interface {
	Token(ctx context.Context, action string) (string, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, action string) (string, error)

func (f VerifierFunc) Token(ctx context.Context, action string) (string, error) {
	return f(ctx, action)
}

// Observer is told about finished runs and step moves.
type Observer interface {
	SubmissionFinished(form string, state SubmissionState, code string, elapsed time.Duration)
	StepChanged(form, action string, ok bool)
}

type nopObserver struct{}

func (nopObserver) SubmissionFinished(string, SubmissionState, string, time.Duration) {}
func (nopObserver) StepChanged(string, string, bool)                                  {}

// SubmitOptions carries the per-request collaborators of a submission.
type SubmitOptions struct {
	Verifier Verifier
	Notifier notify.Sink
}

// PipelineConfig bounds the pipeline's waits.
type PipelineConfig struct {
	VerifyTimeout time.Duration
	SubmitTimeout time.Duration
	Limiter       *SubmitLimiter
	Observer      Observer
}

// Pipeline runs submissions against a persistence backend. It keeps no
// per-draft state; the owning Form tracks pending/succeeded/failed.
type Pipeline struct {
	store         Inserter
	limiter       *SubmitLimiter
	verifyTimeout time.Duration
	submitTimeout time.Duration
	observer      Observer
}

// NewPipeline creates a pipeline writing through ins.
func NewPipeline(ins Inserter, cfg PipelineConfig) *Pipeline {
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 10 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 15 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewSubmitLimiter(0, 0)
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Pipeline{
		store:         ins,
		limiter:       cfg.Limiter,
		verifyTimeout: cfg.VerifyTimeout,
		submitTimeout: cfg.SubmitTimeout,
		observer:      cfg.Observer,
	}
}

// Limiter exposes the submission limiter for shutdown and health output.
func (p *Pipeline) Limiter() *SubmitLimiter {
	return p.limiter
}

// Run submits d. The draft must already have passed validation.
func (p *Pipeline) Run(ctx context.Context, def *Definition, v *Validator, d Draft, opts SubmitOptions) (out Outcome) {
	start := time.Now()
	sink := opts.Notifier
	if sink == nil {
		sink = notify.Discard
	}
	log := logging.WithFields(ctx, "form", def.Key, "draft_id", d.ID(), "client_ip", GetIPAddressFromContext(ctx), "user_agent", GetUserAgentFromContext(ctx))

	defer func() {
		if r := recover(); r != nil {
			log.Error("submission panicked", "panic", r, "stack", string(debug.Stack()))
			out = Outcome{State: StateFailed, Message: def.Messages.Failure, Code: defaultMessage.Code, Err: fmt.Errorf("panic: %v", r)}
			sink.Notify(notify.Error, out.Message)
		}
		p.observer.SubmissionFinished(def.Key, out.State, out.Code, time.Since(start))
	}()

	if def.RequiresVerification() {
		if err := p.verify(ctx, def.VerifyAction, opts.Verifier); err != nil {
			log.Warn("verification failed", "action", def.VerifyAction, "error", err)
			sink.Notify(notify.Error, VerificationFailedMsg)
			return Outcome{State: StateFailed, Message: VerificationFailedMsg, Code: msgVerify.Code, Err: err}
		}
	}

	if err := p.limiter.Acquire(ctx); err != nil {
		msg := MapError(err)
		log.Warn("no submission slot", "error", err)
		sink.Notify(notify.Error, msg.Sentence())
		return Outcome{State: StateFailed, Message: msg.Sentence(), Code: msg.Code, Err: err}
	}
	defer p.limiter.Release()

	rec, err := BuildRecord(def, v, d)
	if err != nil {
		log.Error("build record", "error", err)
		sink.Notify(notify.Error, def.Messages.Failure)
		return Outcome{State: StateFailed, Message: def.Messages.Failure, Code: defaultMessage.Code, Err: err}
	}

	insCtx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	err = p.store.Insert(insCtx, def.Table, rec)
	cancel()

	if err == nil {
		log.Info("submission stored", "table", def.Table, "duration_ms", time.Since(start).Milliseconds())
		sink.Notify(notify.Success, def.Messages.Success)
		return Outcome{State: StateSucceeded, Message: def.Messages.Success}
	}

	out = Outcome{State: StateFailed, Code: MapError(err).Code, Err: err}
	var se *store.Error
	switch {
	case errors.As(err, &se) && se.Code == store.CodeUniqueViolation:
		log.Info("duplicate submission", "table", def.Table, "details", se.Details)
		out.Message = def.Messages.Duplicate
	case errors.As(err, &se):
		log.Warn("backend rejected submission", "table", def.Table, "code", se.Code, "error", se.Message)
		out.Message = "Database error: " + se.Message
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Warn("submission interrupted", "table", def.Table, "error", err)
		out.Message = MapError(err).Sentence()
	default:
		log.Error("submission failed", "table", def.Table, "error", err)
		out.Message = def.Messages.Failure
	}
	sink.Notify(notify.Error, out.Message)
	return out
}

// verify obtains a token within the verify timeout. A missing verifier or
// an empty token is a failure.
func (p *Pipeline) verify(ctx context.Context, action string, v Verifier) error {
	if v == nil {
		return fmt.Errorf("%w: no verifier configured", ErrVerificationFailed)
	}

	vctx, cancel := context.WithTimeout(ctx, p.verifyTimeout)
	defer cancel()

	token, err := v.Token(vctx, action)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrVerificationFailed)
	}
	return nil
}
