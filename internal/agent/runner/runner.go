// Package runner drives one investigation turn end to end: classify the
// query, route it, stream progress events, and persist the resulting state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/inquest-labs/inquest/internal/agent/audit"
	"github.com/inquest-labs/inquest/internal/agent/classifier"
	"github.com/inquest-labs/inquest/internal/agent/council"
	"github.com/inquest-labs/inquest/internal/agent/events"
	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/session"
)

// Runner executes investigation turns.
type Runner struct {
	classifier *classifier.Classifier
	router     *council.Router
	store      session.Store
	audit      *audit.Logger
	logger     *slog.Logger
	tracer     trace.Tracer
	deadline   time.Duration
}

// Options configures a Runner.
type Options struct {
	// Deadline bounds one investigation turn. Defaults to 5m.
	Deadline time.Duration

	// Audit, if non-nil, receives turn events.
	Audit *audit.Logger

	// Tracer, if non-nil, instruments turns.
	Tracer trace.Tracer
}

// New creates a turn runner.
func New(cls *classifier.Classifier, router *council.Router, store session.Store, logger *slog.Logger, opts Options) *Runner {
	if opts.Deadline <= 0 {
		opts.Deadline = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		classifier: cls,
		router:     router,
		store:      store,
		audit:      opts.Audit,
		logger:     logger,
		tracer:     opts.Tracer,
		deadline:   opts.Deadline,
	}
}

// RunTurn runs one investigation turn for a query. It returns the ordered
// event stream for the turn: one state announcement, progress events, and
// exactly one final event. The stream is closed after the final event.
//
// A deadline breach is fatal to the turn only: the final event carries a
// best-effort partial result and the state is still persisted.
func (r *Runner) RunTurn(ctx context.Context, sessionID, query string) (<-chan events.Event, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	state, err := r.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		state = investigation.NewState(sessionID)
	case err != nil:
		// A corrupted state read is a hard failure for the caller
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	emitter := events.NewEmitter(32)
	go r.runTurn(ctx, sessionID, query, state, emitter)
	return emitter.Events(), nil
}

func (r *Runner) runTurn(ctx context.Context, sessionID, query string, state *investigation.State, emitter *events.Emitter) {
	start := time.Now()
	logger := r.logger.With("session_id", sessionID)

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "investigation.turn",
			trace.WithAttributes(attribute.String("session_id", sessionID)))
		defer span.End()
	}

	if r.audit != nil {
		_ = r.audit.LogTurnStart(query)
	}

	emitter.State(state)

	verdict := r.classifier.Classify(ctx, query, state)
	logger.Info("query classified",
		"mode", string(verdict.Mode),
		"panel", verdict.Panel,
		"rigor", string(verdict.Rigor),
		"rule", verdict.RuleMatched,
		"degraded", verdict.Degraded)
	if r.audit != nil {
		_ = r.audit.LogClassification(string(verdict.Mode), verdict.Panel,
			string(verdict.Rigor), verdict.RuleMatched, verdict.Confidence, verdict.Degraded)
	}

	turnCtx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	routed, err := r.router.Route(turnCtx, verdict, query, state, emitter)

	var result *investigation.SynthesisResult
	if routed != nil {
		result = routed.Result
	}

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		// Turn deadline breached: the partial result still goes out
		logger.Warn("investigation deadline exceeded", "elapsed", time.Since(start))
		if result != nil {
			result.Partial = true
			err = nil
		}
	default:
		logger.Error("investigation turn failed", "error", err)
		if r.audit != nil {
			_ = r.audit.LogError("route", err)
		}
	}

	// State is persisted even when the turn failed, so the session survives
	if saveErr := r.store.Save(ctx, sessionID, state); saveErr != nil {
		logger.Error("failed to persist session", "error", saveErr)
		if err == nil {
			err = saveErr
		}
	}

	if r.audit != nil {
		_ = r.audit.LogTurnComplete(state.Revision, time.Since(start).Milliseconds())
	}
	emitter.Final(result, err)
}
