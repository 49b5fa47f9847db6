package observer

import (
	"context"
	"encoding/json"
	"time"

	agentrt "github.com/corestrand/agentrt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	agentlog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WrapToolFunc instruments a single tool's underlying implementation with
// metrics and a structured log line. It decorates the ToolFunc the tool
// wrapper is handed at step 5 of §4.3 (WrapTool already opens its own
// "tool.invoke" span via cfg.Tracer when configured; this wrapper adds the
// metrics/log side that span alone doesn't cover).
func WrapToolFunc(name string, fn agentrt.ToolFunc, inst *Instruments) agentrt.ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (agentrt.ToolResult, error) {
		ctx, span := inst.Tracer.Start(ctx, "tool.execute", trace.WithAttributes(
			AttrToolName.String(name),
		))
		defer span.End()
		start := time.Now()

		result, err := fn(ctx, args)

		durationMs := float64(time.Since(start).Milliseconds())
		status := "ok"
		if result.Error != "" {
			status = "tool_error"
		}
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.SetAttributes(
			AttrToolStatus.String(status),
			AttrToolResultLength.Int(len(result.Output)),
		)

		inst.ToolExecutions.Add(ctx, 1, metric.WithAttributes(
			AttrToolName.String(name),
			attribute.String("status", status),
		))
		inst.ToolDuration.Record(ctx, durationMs, metric.WithAttributes(
			AttrToolName.String(name),
		))

		var rec agentlog.Record
		rec.SetSeverity(agentlog.SeverityInfo)
		rec.SetBody(agentlog.StringValue("tool executed"))
		rec.AddAttributes(
			agentlog.String("tool.name", name),
			agentlog.String("tool.status", status),
			agentlog.Int("tool.result_length", len(result.Output)),
			agentlog.Float64("tool.duration_ms", durationMs),
		)
		inst.Logger.Emit(ctx, rec)

		return result, err
	}
}
