package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/orchestrator"
)

var _ orchestrator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    orchestrator.Service
}

func Logging(logger *slog.Logger, svc orchestrator.Service) orchestrator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Poll(ctx context.Context, req orchestrator.Request) (snap orchestrator.Snapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("request",
				slog.String("selected_domain", req.SelectedDomain),
				slog.Int("active_tab", req.ActiveTab),
				slog.Uint64("since_version", req.SinceVersion),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Poll failed", args...)

			return
		}
		args = append(args,
			slog.Uint64("sync_version", snap.SyncVersion),
			slog.Bool("changed", snap.Changed),
			slog.Bool("heartbeat_only", snap.HeartbeatOnly),
		)
		lm.logger.Info("Poll completed successfully", args...)
	}(time.Now())

	return lm.svc.Poll(ctx, req)
}

func (lm *loggingMiddleware) RunAction(ctx context.Context, action string, payload orchestrator.Payload) (out orchestrator.Outcome, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("action", action),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Action failed", args...)

			return
		}
		args = append(args, slog.Bool("success", out.Success))
		if out.Error != "" {
			args = append(args, slog.String("action_error", out.Error))
		}
		lm.logger.Info("Action completed", args...)
	}(time.Now())

	return lm.svc.RunAction(ctx, action, payload)
}

func (lm *loggingMiddleware) FetchNodeParameters(ctx context.Context, domainID, node string) (resp inspector.NodeParameters, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("node",
				slog.String("domain", domainID),
				slog.String("name", node),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Fetch node parameters failed", args...)

			return
		}
		lm.logger.Info("Fetch node parameters completed successfully", args...)
	}(time.Now())

	return lm.svc.FetchNodeParameters(ctx, domainID, node)
}
