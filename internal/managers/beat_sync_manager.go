package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/loomhq/loom/internal/domain"
)

// DispatchTaskName is the fixed task identifier the external scheduler's
// workers resolve to the dispatch handler.
const DispatchTaskName = "loom.dispatch_scheduled_workflow"

type beatSyncManager struct {
	store domain.BeatStore
	queue string
}

// BeatSyncManagerDependencies are the collaborators of the execution backend
// sync manager.
type BeatSyncManagerDependencies struct {
	Store domain.BeatStore
	Queue string
}

// NewBeatSyncManager returns the domain.ExecutionBackendSync implementation.
func NewBeatSyncManager(deps BeatSyncManagerDependencies) domain.ExecutionBackendSync {
	return &beatSyncManager{
		store: deps.Store,
		queue: deps.Queue,
	}
}

// EnsureCrontab finds or creates a crontab row by exact field + timezone
// match, so identical schedules shared by multiple tasks reuse one row.
func (m *beatSyncManager) EnsureCrontab(ctx context.Context, cronExpr string, timezone string) (domain.Crontab, error) {
	fields, err := splitCronFields(cronExpr, timezone)
	if err != nil {
		return domain.Crontab{}, &domain.SyncError{Step: "crontab fields", Err: err}
	}

	existing, err := m.store.FindCrontab(ctx, fields)
	if err != nil {
		return domain.Crontab{}, &domain.SyncError{Step: "crontab lookup", Err: err}
	}
	if existing != nil {
		return *existing, nil
	}

	crontab, err := m.store.CreateCrontab(ctx, fields)
	if err != nil {
		return domain.Crontab{}, &domain.SyncError{Step: "crontab create", Err: err}
	}
	return crontab, nil
}

// UpsertPeriodicTask pushes one schedule record into the external store,
// keyed by the record's UUID, and bumps the change marker so the scheduler's
// poll loop reloads within its poll interval.
func (m *beatSyncManager) UpsertPeriodicTask(ctx context.Context, record domain.ScheduleRecord) (domain.SyncResult, error) {
	crontab, err := m.EnsureCrontab(ctx, record.CronExpression, record.Timezone)
	if err != nil {
		return domain.SyncResult{}, err
	}

	kwargs, err := json.Marshal(dispatchKwargs(record))
	if err != nil {
		return domain.SyncResult{}, &domain.SyncError{Step: "task kwargs", Err: err}
	}

	existing, err := m.store.GetTaskByScheduleUUID(ctx, record.UUID)
	if err != nil {
		return domain.SyncResult{}, &domain.SyncError{Step: "task lookup", Err: err}
	}

	var result domain.SyncResult
	if existing != nil {
		existing.Name = taskName(record.UUID)
		existing.Task = DispatchTaskName
		existing.CrontabID = crontab.ID
		existing.Kwargs = kwargs
		existing.Queue = m.queue
		existing.Enabled = record.Enabled

		updated, err := m.store.UpdateTask(ctx, *existing)
		if err != nil {
			return domain.SyncResult{}, &domain.SyncError{Step: "task update", Err: err}
		}
		result = domain.SyncResult{Action: domain.SyncActionUpdated, ExternalTaskID: updated.ID}
	} else {
		created, err := m.store.CreateTask(ctx, domain.PeriodicTask{
			ID:           xid.New().String(),
			Name:         taskName(record.UUID),
			Task:         DispatchTaskName,
			CrontabID:    crontab.ID,
			Kwargs:       kwargs,
			Queue:        m.queue,
			Enabled:      record.Enabled,
			ScheduleUUID: record.UUID,
		})
		if err != nil {
			return domain.SyncResult{}, &domain.SyncError{Step: "task create", Err: err}
		}
		result = domain.SyncResult{Action: domain.SyncActionCreated, ExternalTaskID: created.ID}
	}

	if err := m.store.BumpChangedMarker(ctx); err != nil {
		return domain.SyncResult{}, &domain.SyncError{Step: "change marker", Err: err}
	}

	log.Debug().
		Str("schedule_uuid", record.UUID).
		Str("action", string(result.Action)).
		Str("external_task_id", result.ExternalTaskID).
		Msg("Synced periodic task")

	return result, nil
}

// MarkChanged bumps the change marker without touching any task row. Used
// after deletions, where the task row disappears by cascade.
func (m *beatSyncManager) MarkChanged(ctx context.Context) error {
	if err := m.store.BumpChangedMarker(ctx); err != nil {
		return &domain.SyncError{Step: "change marker", Err: err}
	}
	return nil
}

func dispatchKwargs(record domain.ScheduleRecord) map[string]any {
	kwargs := map[string]any{
		"project_id":      record.ProjectID,
		"schedule_uuid":   record.UUID,
		"cron_expression": record.CronExpression,
		"timezone":        record.Timezone,
	}
	if record.Binding != nil {
		kwargs["trigger_node_id"] = record.Binding.NodeInstanceID
	}
	return kwargs
}

func taskName(scheduleUUID string) string {
	return "loom-schedule-" + scheduleUUID
}

func splitCronFields(cronExpr string, timezone string) (domain.CrontabFields, error) {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return domain.CrontabFields{}, fmt.Errorf("expected 5 cron fields, got %d", len(fields))
	}
	return domain.CrontabFields{
		Minute:     fields[0],
		Hour:       fields[1],
		DayOfMonth: fields[2],
		Month:      fields[3],
		DayOfWeek:  fields[4],
		Timezone:   timezone,
	}, nil
}
