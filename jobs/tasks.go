package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/marketai/marketai-admin/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccessAudit persists an access management audit event.
	TaskAccessAudit = "access:audit"
	// TaskSessionPurge removes expired login session records.
	TaskSessionPurge = "sessions:purge"
)

// AuditPayload is the body of an access:audit task.
type AuditPayload struct {
	EventID  string         `json:"event_id"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// Log converts the payload into the stored audit record.
func (p AuditPayload) Log() shared.AuditLog {
	return shared.AuditLog{
		ActorID:  p.ActorID,
		Action:   p.Action,
		Entity:   p.Entity,
		EntityID: p.EntityID,
		Meta:     p.Meta,
		At:       p.At,
	}
}

// NewAuditTask builds an audit task. The event ID doubles as the asynq task
// ID so a retried enqueue does not create a second task.
func NewAuditTask(payload AuditPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessAudit, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(payload.EventID),
		asynq.MaxRetry(10),
	), nil
}

// SessionPurgePayload contains options for the purge job.
type SessionPurgePayload struct {
	Grace time.Duration `json:"grace"`
}

// NewSessionPurgeTask builds a purge task.
func NewSessionPurgeTask(grace time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(SessionPurgePayload{Grace: grace})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, body, asynq.Queue(QueueDefault)), nil
}
