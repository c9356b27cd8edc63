package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/marketai/marketai-admin/internal/jobs"
	"github.com/marketai/marketai-admin/internal/shared"
)

// SessionPurgeJob deletes user_sessions rows that expired before the grace
// window.
type SessionPurgeJob struct {
	DB      shared.Execer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSessionPurgeJob initialises the purge handler.
func NewSessionPurgeJob(db shared.Execer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{
		DB:      db,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.DB == nil {
		return errors.New("session purge: handler not configured")
	}
	var payload SessionPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("session purge: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Grace < 0 {
		payload.Grace = 0
	}

	tracker := j.Metrics.Track(TaskSessionPurge)
	defer func() {
		err = tracker.End(err)
	}()

	cutoff := j.now().Add(-payload.Grace)
	tag, err := j.DB.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("session purge: %w", err)
	}
	if j.Logger != nil {
		j.Logger.Info("purged expired sessions", slog.Int64("rows", tag.RowsAffected()), slog.Time("cutoff", cutoff))
	}
	return nil
}

func (j *SessionPurgeJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}
