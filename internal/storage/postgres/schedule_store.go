package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomhq/loom/internal/domain"
)

type scheduleStore struct {
	pool *pgxpool.Pool
}

// NewScheduleStore returns a domain.ScheduleStore backed by PostgreSQL.
func NewScheduleStore(pool *pgxpool.Pool) domain.ScheduleStore {
	return &scheduleStore{pool: pool}
}

const scheduleColumns = `id, uuid, organization_id, COALESCE(project_id, ''), type, cron_expression, timezone, enabled, COALESCE(trigger_node_id, ''), created_at, updated_at`

func (s *scheduleStore) CreateSchedule(ctx context.Context, record domain.ScheduleRecord) (domain.ScheduleRecord, error) {
	if err := record.Validate(); err != nil {
		return domain.ScheduleRecord{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO schedules (id, uuid, organization_id, project_id, type, cron_expression, timezone, enabled, trigger_node_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''))
		RETURNING `+scheduleColumns,
		record.ID, record.UUID, record.OrganizationID, record.ProjectID, record.Type,
		record.CronExpression, record.Timezone, record.Enabled, triggerNodeID(record),
	)

	created, err := scanSchedule(row)
	if err != nil {
		return domain.ScheduleRecord{}, fmt.Errorf("create schedule: %w", err)
	}
	return created, nil
}

func (s *scheduleStore) GetScheduleByID(ctx context.Context, id string) (domain.ScheduleRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	record, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScheduleRecord{}, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScheduleRecord{}, fmt.Errorf("get schedule: %w", err)
	}
	return record, nil
}

func (s *scheduleStore) GetScheduleByUUID(ctx context.Context, scheduleUUID string) (domain.ScheduleRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE uuid = $1`, scheduleUUID)
	record, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScheduleRecord{}, fmt.Errorf("schedule %s: %w", scheduleUUID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScheduleRecord{}, fmt.Errorf("get schedule by uuid: %w", err)
	}
	return record, nil
}

func (s *scheduleStore) UpdateSchedule(ctx context.Context, record domain.ScheduleRecord) (domain.ScheduleRecord, error) {
	if err := record.Validate(); err != nil {
		return domain.ScheduleRecord{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE schedules
		SET cron_expression = $2, timezone = $3, enabled = $4, trigger_node_id = NULLIF($5, ''), updated_at = now()
		WHERE id = $1
		RETURNING `+scheduleColumns,
		record.ID, record.CronExpression, record.Timezone, record.Enabled, triggerNodeID(record),
	)

	updated, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScheduleRecord{}, fmt.Errorf("schedule %s: %w", record.ID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScheduleRecord{}, fmt.Errorf("update schedule: %w", err)
	}
	return updated, nil
}

func (s *scheduleStore) DeleteSchedule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *scheduleStore) ListSchedules(ctx context.Context, filter domain.ScheduleFilter) ([]domain.ScheduleRecord, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE organization_id = $1`
	args := []any{filter.OrganizationID}

	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		query += fmt.Sprintf(" AND enabled = $%d", len(args))
	}
	query += " ORDER BY created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var records []domain.ScheduleRecord
	for rows.Next() {
		record, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func triggerNodeID(record domain.ScheduleRecord) string {
	if record.Binding == nil {
		return ""
	}
	return record.Binding.NodeInstanceID
}

func scanSchedule(row pgx.Row) (domain.ScheduleRecord, error) {
	var (
		record           domain.ScheduleRecord
		triggerNode      string
		created, updated time.Time
	)
	if err := row.Scan(
		&record.ID, &record.UUID, &record.OrganizationID, &record.ProjectID, &record.Type,
		&record.CronExpression, &record.Timezone, &record.Enabled, &triggerNode,
		&created, &updated,
	); err != nil {
		return domain.ScheduleRecord{}, err
	}
	if triggerNode != "" {
		record.Binding = &domain.TriggerBinding{NodeInstanceID: triggerNode}
	}
	record.CreatedAt = created
	record.UpdatedAt = updated
	return record, nil
}
