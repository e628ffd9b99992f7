package domain

import (
	"context"
	"encoding/json"
	"time"
)

// CrontabFields is the decomposed 5-field cron expression plus its timezone,
// matching the external scheduler's crontab row shape. Crontab rows are
// deduplicated by exact field + timezone match.
type CrontabFields struct {
	Minute     string
	Hour       string
	DayOfMonth string
	Month      string
	DayOfWeek  string
	Timezone   string
}

// Crontab is a persisted crontab definition in the external periodic-task
// store.
type Crontab struct {
	ID string
	CrontabFields
}

// PeriodicTask is the external scheduler's task row. ScheduleUUID is the
// back-reference to the owning ScheduleRecord, used to find-or-update on
// resync; the row is removed by cascade when the schedule is deleted.
type PeriodicTask struct {
	ID           string
	Name         string
	Task         string
	CrontabID    string
	Kwargs       json.RawMessage
	Queue        string
	Enabled      bool
	ScheduleUUID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BeatStore is the persistence layer of the external periodic-task scheduler.
// Only ExecutionBackendSync writes to it. The changed marker is a shared
// timestamp the scheduler's poll loop watches to decide when to reload its
// task definitions.
type BeatStore interface {
	FindCrontab(ctx context.Context, fields CrontabFields) (*Crontab, error)
	CreateCrontab(ctx context.Context, fields CrontabFields) (Crontab, error)
	GetTaskByScheduleUUID(ctx context.Context, scheduleUUID string) (*PeriodicTask, error)
	CreateTask(ctx context.Context, task PeriodicTask) (PeriodicTask, error)
	UpdateTask(ctx context.Context, task PeriodicTask) (PeriodicTask, error)
	BumpChangedMarker(ctx context.Context) error
}

// SyncAction reports which path an upsert took.
type SyncAction string

const (
	SyncActionCreated SyncAction = "created"
	SyncActionUpdated SyncAction = "updated"
)

// SyncResult is the outcome of pushing one schedule into the external store.
type SyncResult struct {
	Action         SyncAction
	ExternalTaskID string
}

// ExecutionBackendSync idempotently bridges schedule records into the
// external periodic-task store. A failed upsert surfaces as *SyncError and
// never partially commits.
type ExecutionBackendSync interface {
	EnsureCrontab(ctx context.Context, cronExpr string, timezone string) (Crontab, error)
	UpsertPeriodicTask(ctx context.Context, record ScheduleRecord) (SyncResult, error)
	MarkChanged(ctx context.Context) error
}
