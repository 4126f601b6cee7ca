// Package eval lowers hitung expressions to IR, runs them on a backend and
// keeps the variable environment of a session.
package eval

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/szaher/hitung/internal/ast"
	"github.com/szaher/hitung/internal/backend"
	"github.com/szaher/hitung/internal/parser"
	"github.com/szaher/hitung/internal/telemetry"
)

// Evaluator is one calculator session. It is not safe for concurrent use;
// concurrent sessions each need their own Evaluator.
type Evaluator struct {
	backend backend.Backend
	env     *Environment
	id      string

	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	dumper  *telemetry.Dumper
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger. Records carry the session and backend.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithMetrics records every evaluation in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithTracer times the pipeline stages of every evaluation.
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Evaluator) { e.tracer = t }
}

// WithDumper shows the tree and IR of each evaluation to d.
func WithDumper(d *telemetry.Dumper) Option {
	return func(e *Evaluator) { e.dumper = d }
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(e *Evaluator) { e.id = id }
}

// New creates a session with an empty environment running on b.
func New(b backend.Backend, opts ...Option) *Evaluator {
	e := &Evaluator{
		backend: b,
		env:     NewEnvironment(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = telemetry.NewSessionID()
	}
	ctx := telemetry.WithSessionID(context.Background(), e.id)
	e.logger = telemetry.SessionLogger(e.logger, ctx, b.Name())
	return e
}

// ID returns the session identifier.
func (e *Evaluator) ID() string { return e.id }

// Env returns the session environment.
func (e *Evaluator) Env() *Environment { return e.env }

// Backend returns the backend the session runs on.
func (e *Evaluator) Backend() backend.Backend { return e.backend }

// Close releases the backend.
func (e *Evaluator) Close(ctx context.Context) error {
	return e.backend.Close(ctx)
}

// Evaluate parses line and evaluates the resulting expression.
func (e *Evaluator) Evaluate(ctx context.Context, line string) (float64, error) {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "evaluate", telemetry.EvaluationTags(e.id, e.backend.Name()))

	_, pspan := e.tracer.StartSpan(ctx, "parse", telemetry.StageTags(string(StageParse)))
	expr, err := parser.Parse(line)
	if err != nil {
		e.tracer.EndSpan(pspan, "error")
		err = &Error{Stage: StageParse, Err: err}
	} else {
		e.tracer.EndSpan(pspan, "")
	}

	var v float64
	if err == nil {
		v, err = e.run(ctx, expr)
	}
	e.finish(span, line, v, err, time.Since(start))
	return v, err
}

// EvaluateExpr evaluates an already parsed expression.
func (e *Evaluator) EvaluateExpr(ctx context.Context, expr ast.Expr) (float64, error) {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "evaluate", telemetry.EvaluationTags(e.id, e.backend.Name()))
	input := "<nil>"
	if expr != nil {
		input = expr.String()
	}
	v, err := e.run(ctx, expr)
	e.finish(span, input, v, err, time.Since(start))
	return v, err
}

// run lowers, compiles, calls and releases one function. Variables staged
// during lowering survive only if execution is reached.
func (e *Evaluator) run(ctx context.Context, expr ast.Expr) (float64, error) {
	_, span := e.tracer.StartSpan(ctx, "lower", telemetry.StageTags(string(StageLower)))
	fn, err := Lower(expr, e.env)
	if err != nil {
		e.env.rollback()
		e.tracer.EndSpan(span, "error")
		return 0, &Error{Stage: StageLower, Err: err}
	}
	e.tracer.EndSpan(span, "")

	if err := e.dumper.Dump(expr, fn); err != nil {
		e.logger.Warn("debug dump failed", "error", err)
	}

	_, span = e.tracer.StartSpan(ctx, "compile", telemetry.StageTags(string(StageCompile)))
	exe, err := e.backend.Compile(ctx, fn)
	if err != nil {
		e.env.rollback()
		e.tracer.EndSpan(span, "error")
		return 0, &Error{Stage: StageCompile, Err: err}
	}
	e.tracer.EndSpan(span, "")
	defer func() {
		if err := exe.Release(ctx); err != nil {
			e.logger.Warn("releasing compiled function", "error", err)
		}
	}()

	e.env.commit()

	_, span = e.tracer.StartSpan(ctx, "execute", telemetry.StageTags(string(StageExecute)))
	v, err := exe.Call(ctx)
	if err != nil {
		e.tracer.EndSpan(span, "error")
		return 0, &Error{Stage: StageExecute, Err: err}
	}
	e.tracer.EndSpan(span, "")
	return v, nil
}

func (e *Evaluator) finish(span *telemetry.Span, input string, v float64, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
		stage := StageOf(err)
		e.metrics.RecordError(string(stage))
		e.logger.Debug("evaluation failed", "input", input, "stage", stage, "error", err, "duration", d)
	} else {
		e.logger.Debug("evaluated", "input", input, "result", v, "duration", d)
	}
	e.tracer.EndSpan(span, status)
	e.metrics.RecordEvaluation(e.backend.Name(), status, d)
	e.metrics.SetVariables(e.env.Len())
}
