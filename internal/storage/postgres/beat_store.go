package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"github.com/loomhq/loom/internal/domain"
)

type beatStore struct {
	pool *pgxpool.Pool
}

// NewBeatStore returns a domain.BeatStore backed by the external scheduler's
// PostgreSQL tables.
func NewBeatStore(pool *pgxpool.Pool) domain.BeatStore {
	return &beatStore{pool: pool}
}

const crontabColumns = `id, minute, hour, day_of_month, month, day_of_week, timezone`

func (s *beatStore) FindCrontab(ctx context.Context, fields domain.CrontabFields) (*domain.Crontab, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+crontabColumns+` FROM beat_crontabs
		WHERE minute = $1 AND hour = $2 AND day_of_month = $3 AND month = $4 AND day_of_week = $5 AND timezone = $6`,
		fields.Minute, fields.Hour, fields.DayOfMonth, fields.Month, fields.DayOfWeek, fields.Timezone,
	)

	crontab, err := scanCrontab(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find crontab: %w", err)
	}
	return &crontab, nil
}

func (s *beatStore) CreateCrontab(ctx context.Context, fields domain.CrontabFields) (domain.Crontab, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO beat_crontabs (id, minute, hour, day_of_month, month, day_of_week, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+crontabColumns,
		xid.New().String(), fields.Minute, fields.Hour, fields.DayOfMonth, fields.Month, fields.DayOfWeek, fields.Timezone,
	)

	crontab, err := scanCrontab(row)
	if err != nil {
		return domain.Crontab{}, fmt.Errorf("create crontab: %w", err)
	}
	return crontab, nil
}

const taskColumns = `id, name, task, crontab_id, kwargs, queue, enabled, schedule_uuid, created_at, updated_at`

func (s *beatStore) GetTaskByScheduleUUID(ctx context.Context, scheduleUUID string) (*domain.PeriodicTask, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM beat_periodic_tasks WHERE schedule_uuid = $1`,
		scheduleUUID,
	)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get periodic task: %w", err)
	}
	return &task, nil
}

func (s *beatStore) CreateTask(ctx context.Context, task domain.PeriodicTask) (domain.PeriodicTask, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO beat_periodic_tasks (id, name, task, crontab_id, kwargs, queue, enabled, schedule_uuid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+taskColumns,
		task.ID, task.Name, task.Task, task.CrontabID, task.Kwargs, task.Queue, task.Enabled, task.ScheduleUUID,
	)

	created, err := scanTask(row)
	if err != nil {
		return domain.PeriodicTask{}, fmt.Errorf("create periodic task: %w", err)
	}
	return created, nil
}

func (s *beatStore) UpdateTask(ctx context.Context, task domain.PeriodicTask) (domain.PeriodicTask, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE beat_periodic_tasks
		SET name = $2, task = $3, crontab_id = $4, kwargs = $5, queue = $6, enabled = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns,
		task.ID, task.Name, task.Task, task.CrontabID, task.Kwargs, task.Queue, task.Enabled,
	)

	updated, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PeriodicTask{}, fmt.Errorf("periodic task %s: %w", task.ID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PeriodicTask{}, fmt.Errorf("update periodic task: %w", err)
	}
	return updated, nil
}

func (s *beatStore) BumpChangedMarker(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `UPDATE beat_change_marker SET last_changed_at = now() WHERE id = 1`); err != nil {
		return fmt.Errorf("bump change marker: %w", err)
	}
	return nil
}

func scanCrontab(row pgx.Row) (domain.Crontab, error) {
	var crontab domain.Crontab
	if err := row.Scan(
		&crontab.ID, &crontab.Minute, &crontab.Hour, &crontab.DayOfMonth,
		&crontab.Month, &crontab.DayOfWeek, &crontab.Timezone,
	); err != nil {
		return domain.Crontab{}, err
	}
	return crontab, nil
}

func scanTask(row pgx.Row) (domain.PeriodicTask, error) {
	var task domain.PeriodicTask
	if err := row.Scan(
		&task.ID, &task.Name, &task.Task, &task.CrontabID, &task.Kwargs,
		&task.Queue, &task.Enabled, &task.ScheduleUUID, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return domain.PeriodicTask{}, err
	}
	return task, nil
}
