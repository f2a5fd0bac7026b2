package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tbxark/tripvoice/patch"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/types"
)

var (
	// ErrIllegalTransition is returned when a handler moves the conversation
	// anywhere but its own stage or the next one.
	ErrIllegalTransition = errors.New("illegal transition")
	ErrMissingHandler    = errors.New("missing stage handler")
	ErrDuplicateHandler  = errors.New("duplicate stage handler")
)

// TransitionEvent describes one handler invocation.
type TransitionEvent struct {
	From     types.Stage
	To       types.Stage
	Outcome  stage.Outcome
	Degraded []string
	Duration time.Duration
}

type Observer interface {
	ObserveTransition(ctx context.Context, event TransitionEvent)
}

type ObserverFunc func(ctx context.Context, event TransitionEvent)

func (f ObserverFunc) ObserveTransition(ctx context.Context, event TransitionEvent) {
	f(ctx, event)
}

// Result is what one step produced.
type Result struct {
	Stage  types.Stage
	Prompt string
	// Outcome of the handler that consumed the utterance.
	Outcome     stage.Outcome
	Transitions []TransitionEvent
}

type Option func(*Machine)

func WithObserver(observer Observer) Option {
	return func(m *Machine) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Machine maps each stage to its handler and advances a record one
// utterance at a time.
type Machine struct {
	table     map[types.Stage]stage.Handler
	observers []Observer
	logger    *slog.Logger
}

// New builds the transition table. Every stage needs exactly one handler.
func New(handlers []stage.Handler, opts ...Option) (*Machine, error) {
	m := &Machine{
		table:  make(map[types.Stage]stage.Handler, len(types.Stages)),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, h := range handlers {
		s := h.Stage()
		if !s.Valid() {
			return nil, fmt.Errorf("handler for unknown stage %q", s)
		}
		if _, ok := m.table[s]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, s)
		}
		m.table[s] = h
	}
	for _, s := range types.Stages {
		if _, ok := m.table[s]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, s)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Step feeds one utterance to the handler of rec's stage. Automatic stages
// entered on the way run in the same step, so a step may span several
// transitions and returns their prompts joined.
//
// rec is never modified. On cancellation the returned record is rec itself
// and the prompt is the current stage's canned prompt.
func (m *Machine) Step(ctx context.Context, rec *types.Record, utterance string) (*types.Record, Result, error) {
	if rec == nil {
		return nil, Result{}, errors.New("nil record")
	}
	h, ok := m.table[rec.Stage]
	if !ok {
		return rec, Result{}, fmt.Errorf("%w: unknown stage %q", ErrIllegalTransition, rec.Stage)
	}

	work := rec.Clone()
	result := Result{}
	var prompts []string
	// The forward graph is a simple path, so one pass per stage bounds the chain.
	for range types.Stages {
		from := work.Stage
		start := time.Now()
		update, err := h.Handle(ctx, stage.Input{Record: work.Clone(), Utterance: utterance})
		if ctx.Err() != nil {
			return m.cancelled(ctx, rec)
		}
		if err != nil {
			return rec, Result{}, fmt.Errorf("failed to handle %s stage: %w", from, err)
		}
		if err := validateEdge(from, update.Next); err != nil {
			return rec, Result{}, err
		}
		next, err := patch.Apply(work, update.Ops, h.Guard())
		if err != nil {
			return rec, Result{}, fmt.Errorf("failed to apply %s update: %w", from, err)
		}
		next.Stage = update.Next
		work = next

		event := TransitionEvent{
			From:     from,
			To:       update.Next,
			Outcome:  update.Outcome,
			Degraded: update.Degraded,
			Duration: time.Since(start),
		}
		m.logger.Debug("Transition", "from", from, "to", update.Next, "outcome", update.Outcome, "ops", len(update.Ops))
		m.notify(ctx, event)
		if result.Outcome == "" {
			result.Outcome = update.Outcome
		}
		result.Transitions = append(result.Transitions, event)
		if update.Prompt != "" {
			prompts = append(prompts, update.Prompt)
		}

		if update.Next == from || !update.Next.Automatic() {
			break
		}
		h = m.table[update.Next]
		utterance = ""
	}

	result.Stage = work.Stage
	result.Prompt = strings.Join(prompts, "\n\n")
	return work, result, nil
}

// Canned returns the fixed prompt of s.
func (m *Machine) Canned(s types.Stage) string {
	if h, ok := m.table[s]; ok {
		return h.Canned()
	}
	return ""
}

func (m *Machine) cancelled(ctx context.Context, rec *types.Record) (*types.Record, Result, error) {
	m.logger.Debug("Step cancelled", "stage", rec.Stage, "err", context.Cause(ctx))
	return rec, Result{
		Stage:   rec.Stage,
		Prompt:  m.Canned(rec.Stage),
		Outcome: stage.OutcomeCancelled,
	}, nil
}

func (m *Machine) notify(ctx context.Context, event TransitionEvent) {
	for _, o := range m.observers {
		o.ObserveTransition(ctx, event)
	}
}

func validateEdge(from, to types.Stage) error {
	if to == from {
		return nil
	}
	if next, ok := from.Next(); ok && next == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
