package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/marketai/marketai-admin/internal/jobs"
	"github.com/marketai/marketai-admin/internal/shared"
)

const auditClaimModule = "audit"

// AuditRecorder persists audit records.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Claimer deduplicates redelivered events.
type Claimer interface {
	Claim(ctx context.Context, module, key string) error
	Release(ctx context.Context, module, key string) error
}

// AuditJob writes access:audit events into audit_logs.
type AuditJob struct {
	Recorder AuditRecorder
	Claims   Claimer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewAuditJob initialises the audit handler. claims may be nil, in which case
// redelivered events are written again.
func NewAuditJob(recorder AuditRecorder, claims Claimer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditJob {
	return &AuditJob{Recorder: recorder, Claims: claims, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAccessAudit tasks.
func (j *AuditJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Recorder == nil {
		return errors.New("audit: handler not configured")
	}
	var payload AuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("audit: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.EventID == "" {
		return fmt.Errorf("audit: missing event id: %w", asynq.SkipRetry)
	}
	logger := j.logger().With(
		slog.String("event_id", payload.EventID),
		slog.String("action", payload.Action),
		slog.String("entity_id", payload.EntityID),
	)

	if j.Claims != nil {
		if err := j.Claims.Claim(ctx, auditClaimModule, payload.EventID); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				logger.Info("audit event already recorded")
				j.Metrics.AddDuplicate(TaskAccessAudit)
				return nil
			}
			return err
		}
	}

	tracker := j.Metrics.Track(TaskAccessAudit)
	defer func() {
		err = tracker.End(err)
	}()

	if err = j.Recorder.Record(ctx, payload.Log()); err != nil {
		logger.Error("record audit event", slog.Any("error", err))
		if j.Claims != nil {
			if relErr := j.Claims.Release(context.WithoutCancel(ctx), auditClaimModule, payload.EventID); relErr != nil {
				logger.Warn("release audit claim", slog.Any("error", relErr))
			}
		}
		return err
	}
	logger.Debug("audit event recorded", slog.Int64("actor_id", payload.ActorID))
	return nil
}

func (j *AuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
