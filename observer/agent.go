package observer

import (
	"context"
	"time"

	agentrt "github.com/corestrand/agentrt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	agentlog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Runner is the subset of *agentrt.Session's surface ObservedSession
// instruments: accept the interface so a test fake can stand in for a
// real Session the same way the observer package's provider/tool wrappers
// decorate agentrt.Provider/agentrt.ToolFunc.
type Runner interface {
	SendMessage(ctx context.Context, text string) ([]agentrt.SessionOutput, error)
	ResumeInterrupt(ctx context.Context, interruptID string, decision agentrt.HumanDecision) ([]agentrt.SessionOutput, error)
	CurrentAgent() string
	State() agentrt.SessionState
}

// ObservedSession wraps a Runner to emit OTEL lifecycle spans, metrics,
// and logs for every turn. The wrapper creates a parent span for each
// SendMessage/ResumeInterrupt call that contains all inner operations
// (generation, tool execution, hook dispatch) as child spans via context
// propagation — directly grounded on the teacher's ObservedAgent, whose
// single Execute call is this package's two session-driver entry points.
type ObservedSession struct {
	inner Runner
	inst  *Instruments
}

// WrapSession returns an instrumented Runner.
func WrapSession(inner Runner, inst *Instruments) *ObservedSession {
	return &ObservedSession{inner: inner, inst: inst}
}

func (o *ObservedSession) CurrentAgent() string        { return o.inner.CurrentAgent() }
func (o *ObservedSession) State() agentrt.SessionState { return o.inner.State() }

func (o *ObservedSession) SendMessage(ctx context.Context, text string) ([]agentrt.SessionOutput, error) {
	return o.record(ctx, "session.send_message", func(ctx context.Context) ([]agentrt.SessionOutput, error) {
		return o.inner.SendMessage(ctx, text)
	})
}

func (o *ObservedSession) ResumeInterrupt(ctx context.Context, interruptID string, decision agentrt.HumanDecision) ([]agentrt.SessionOutput, error) {
	return o.record(ctx, "session.resume_interrupt", func(ctx context.Context) ([]agentrt.SessionOutput, error) {
		return o.inner.ResumeInterrupt(ctx, interruptID, decision)
	})
}

func (o *ObservedSession) record(ctx context.Context, spanName string, call func(context.Context) ([]agentrt.SessionOutput, error)) ([]agentrt.SessionOutput, error) {
	agentName := o.inner.CurrentAgent()

	ctx, span := o.inst.Tracer.Start(ctx, spanName, trace.WithAttributes(
		AttrAgentName.String(agentName),
	))
	defer span.End()
	start := time.Now()

	span.AddEvent("session.turn_started")

	outs, err := call(ctx)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if ctx.Err() != nil && err != nil {
		status = "cancelled"
		span.AddEvent("session.turn_cancelled")
		span.SetStatus(codes.Error, "cancelled")
	} else if err != nil {
		status = "error"
		span.AddEvent("session.turn_failed", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.AddEvent("session.turn_completed")
	}

	var totalInput, totalOutput int
	for _, out := range outs {
		if out.Result != nil {
			totalInput += out.Result.Usage.InputTokens
			totalOutput += out.Result.Usage.OutputTokens
		}
	}

	span.SetAttributes(
		AttrAgentStatus.String(status),
		AttrTokensInput.Int(totalInput),
		AttrTokensOutput.Int(totalOutput),
	)

	attrs := metric.WithAttributes(
		AttrAgentName.String(agentName),
		attribute.String("status", status),
	)
	o.inst.AgentExecutions.Add(ctx, 1, attrs)
	o.inst.AgentDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrAgentName.String(agentName),
	))

	var rec agentlog.Record
	rec.SetSeverity(agentlog.SeverityInfo)
	rec.SetBody(agentlog.StringValue("session turn completed"))
	rec.AddAttributes(
		agentlog.String("agent.name", agentName),
		agentlog.String("agent.status", status),
		agentlog.Int("tokens.input", totalInput),
		agentlog.Int("tokens.output", totalOutput),
		agentlog.Float64("duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return outs, err
}

// compile-time check
var _ Runner = (*ObservedSession)(nil)
