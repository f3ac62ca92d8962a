package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/orchestrator"
)

var _ orchestrator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    orchestrator.Service
}

func Tracing(tracer trace.Tracer, svc orchestrator.Service) orchestrator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Poll(ctx context.Context, req orchestrator.Request) (orchestrator.Snapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "poll", trace.WithAttributes(
		attribute.String("selected_domain", req.SelectedDomain),
		attribute.Int("active_tab", req.ActiveTab),
		attribute.Int64("since_version", int64(req.SinceVersion)),
	))
	defer span.End()

	return tm.svc.Poll(ctx, req)
}

func (tm *tracing) RunAction(ctx context.Context, action string, payload orchestrator.Payload) (orchestrator.Outcome, error) {
	ctx, span := tm.tracer.Start(ctx, "run-action", trace.WithAttributes(
		attribute.String("action", action),
		attribute.String("domain_id", payload.DomainID),
	))
	defer span.End()

	return tm.svc.RunAction(ctx, action, payload)
}

func (tm *tracing) FetchNodeParameters(ctx context.Context, domainID, node string) (inspector.NodeParameters, error) {
	ctx, span := tm.tracer.Start(ctx, "fetch-node-parameters", trace.WithAttributes(
		attribute.String("domain_id", domainID),
		attribute.String("node", node),
	))
	defer span.End()

	return tm.svc.FetchNodeParameters(ctx, domainID, node)
}
