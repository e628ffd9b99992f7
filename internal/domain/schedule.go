package domain

import (
	"context"
	"fmt"
	"time"
)

// ScheduleType discriminates what kind of work a schedule drives.
type ScheduleType string

const (
	ScheduleTypeProject   ScheduleType = "project"
	ScheduleTypeIngestion ScheduleType = "ingestion"
)

// TriggerBinding ties a project schedule to the component instance inside the
// deployed graph that acts as its trigger. Only set for project schedules.
type TriggerBinding struct {
	NodeInstanceID string `json:"node_instance_id"`
}

// ScheduleRecord is a persisted schedule. UUID is the stable external-facing
// correlation key; the external scheduler's task rows reference it.
type ScheduleRecord struct {
	ID             string
	UUID           string
	OrganizationID string
	ProjectID      string // set iff Type == ScheduleTypeProject
	Type           ScheduleType
	CronExpression string
	Timezone       string
	Enabled        bool
	Binding        *TriggerBinding
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the type/project pairing rule: project schedules must carry
// a project ID and a trigger binding, non-project schedules must not.
func (r ScheduleRecord) Validate() error {
	if r.Type == ScheduleTypeProject {
		if r.ProjectID == "" {
			return fmt.Errorf("%w: project schedule requires a project ID", ErrInvalidSchedule)
		}
		if r.Binding == nil || r.Binding.NodeInstanceID == "" {
			return fmt.Errorf("%w: project schedule requires a trigger binding", ErrInvalidSchedule)
		}
		return nil
	}
	if r.ProjectID != "" {
		return fmt.Errorf("%w: %s schedule must not carry a project ID", ErrInvalidSchedule, r.Type)
	}
	return nil
}

// ScheduleFilter narrows ListSchedules. Nil pointer fields are not applied.
type ScheduleFilter struct {
	OrganizationID string
	ProjectID      *string
	Type           *ScheduleType
	Enabled        *bool
}

// ScheduleStore is the persistence facade for schedule records. No business
// logic lives here; writes are transactional and return the persisted row.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, record ScheduleRecord) (ScheduleRecord, error)
	GetScheduleByID(ctx context.Context, id string) (ScheduleRecord, error)
	GetScheduleByUUID(ctx context.Context, scheduleUUID string) (ScheduleRecord, error)
	UpdateSchedule(ctx context.Context, record ScheduleRecord) (ScheduleRecord, error)
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]ScheduleRecord, error)
}
