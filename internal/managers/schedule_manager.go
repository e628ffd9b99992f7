package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/loomhq/loom/internal/cronmath"
	"github.com/loomhq/loom/internal/domain"
)

// ScheduleService is the direct schedule-management surface. Unlike the
// reconciler it is caller-driven, but every write still goes through the
// execution backend sync: management calls must not leave the external
// scheduler stale.
type ScheduleService struct {
	schedules domain.ScheduleStore
	projects  domain.ProjectResolver
	sync      domain.ExecutionBackendSync
}

// ScheduleServiceDependencies are the collaborators of ScheduleService.
type ScheduleServiceDependencies struct {
	Schedules domain.ScheduleStore
	Projects  domain.ProjectResolver
	Sync      domain.ExecutionBackendSync
}

// NewScheduleService returns a ScheduleService.
func NewScheduleService(deps ScheduleServiceDependencies) *ScheduleService {
	return &ScheduleService{
		schedules: deps.Schedules,
		projects:  deps.Projects,
		sync:      deps.Sync,
	}
}

// CreateScheduleParams describes a schedule to create directly.
type CreateScheduleParams struct {
	OrganizationID string
	ProjectID      string
	Type           domain.ScheduleType
	CronExpression string
	Timezone       string
	Enabled        bool
	TriggerNodeID  string
}

// CreateSchedule validates and persists a new schedule, then pushes it into
// the external scheduler.
func (s *ScheduleService) CreateSchedule(ctx context.Context, params CreateScheduleParams) (domain.ScheduleRecord, error) {
	if _, err := cronmath.Validate(params.CronExpression); err != nil {
		return domain.ScheduleRecord{}, err
	}
	if _, err := cronmath.ValidateTimezone(params.Timezone); err != nil {
		return domain.ScheduleRecord{}, err
	}

	organizationID := params.OrganizationID
	if organizationID == "" && params.ProjectID != "" {
		resolved, err := s.projects.GetProjectOrganizationID(ctx, params.ProjectID)
		if err != nil {
			return domain.ScheduleRecord{}, fmt.Errorf("failed to resolve project organization: %w", err)
		}
		organizationID = resolved
	}

	record := domain.ScheduleRecord{
		ID:             xid.New().String(),
		UUID:           uuid.NewString(),
		OrganizationID: organizationID,
		ProjectID:      params.ProjectID,
		Type:           params.Type,
		CronExpression: params.CronExpression,
		Timezone:       params.Timezone,
		Enabled:        params.Enabled,
	}
	if params.TriggerNodeID != "" {
		record.Binding = &domain.TriggerBinding{NodeInstanceID: params.TriggerNodeID}
	}
	if err := record.Validate(); err != nil {
		return domain.ScheduleRecord{}, err
	}

	created, err := s.schedules.CreateSchedule(ctx, record)
	if err != nil {
		return domain.ScheduleRecord{}, fmt.Errorf("failed to create schedule: %w", err)
	}

	if _, err := s.sync.UpsertPeriodicTask(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}

// UpdateScheduleParams carries the mutable schedule fields. Nil pointers are
// left unchanged.
type UpdateScheduleParams struct {
	CronExpression *string
	Timezone       *string
	Enabled        *bool
}

// UpdateSchedule applies params to an existing schedule and re-syncs it.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id string, params UpdateScheduleParams) (domain.ScheduleRecord, error) {
	record, err := s.schedules.GetScheduleByID(ctx, id)
	if err != nil {
		return domain.ScheduleRecord{}, err
	}

	if params.CronExpression != nil {
		if _, err := cronmath.Validate(*params.CronExpression); err != nil {
			return domain.ScheduleRecord{}, err
		}
		record.CronExpression = *params.CronExpression
	}
	if params.Timezone != nil {
		if _, err := cronmath.ValidateTimezone(*params.Timezone); err != nil {
			return domain.ScheduleRecord{}, err
		}
		record.Timezone = *params.Timezone
	}
	if params.Enabled != nil {
		record.Enabled = *params.Enabled
	}
	record.UpdatedAt = time.Now()

	updated, err := s.schedules.UpdateSchedule(ctx, record)
	if err != nil {
		return domain.ScheduleRecord{}, err
	}

	if _, err := s.sync.UpsertPeriodicTask(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// DeleteSchedule removes a schedule. The external task row disappears by
// cascade; only the change marker needs a bump.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.schedules.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	return s.sync.MarkChanged(ctx)
}

// GetSchedule fetches one schedule by ID.
func (s *ScheduleService) GetSchedule(ctx context.Context, id string) (domain.ScheduleRecord, error) {
	return s.schedules.GetScheduleByID(ctx, id)
}

// ListSchedulesForProject lists a project's schedules.
func (s *ScheduleService) ListSchedulesForProject(ctx context.Context, projectID string) ([]domain.ScheduleRecord, error) {
	organizationID, err := s.projects.GetProjectOrganizationID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project organization: %w", err)
	}
	return s.schedules.ListSchedules(ctx, domain.ScheduleFilter{
		OrganizationID: organizationID,
		ProjectID:      &projectID,
	})
}
