package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/orchestrator"
)

var _ orchestrator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     orchestrator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc orchestrator.Service) orchestrator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Poll(ctx context.Context, req orchestrator.Request) (orchestrator.Snapshot, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "poll").Add(1)
		mm.latency.With("method", "poll").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Poll(ctx, req)
}

func (mm *metricsMiddleware) RunAction(ctx context.Context, action string, payload orchestrator.Payload) (orchestrator.Outcome, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "run-action").Add(1)
		mm.latency.With("method", "run-action").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RunAction(ctx, action, payload)
}

func (mm *metricsMiddleware) FetchNodeParameters(ctx context.Context, domainID, node string) (inspector.NodeParameters, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "fetch-node-parameters").Add(1)
		mm.latency.With("method", "fetch-node-parameters").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.FetchNodeParameters(ctx, domainID, node)
}
