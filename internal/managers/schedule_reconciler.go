package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/loomhq/loom/internal/cronmath"
	"github.com/loomhq/loom/internal/domain"
)

const (
	defaultCronExpression = "0 9 * * *"
	defaultTimezone       = "UTC"
)

type scheduleReconciler struct {
	scanner     domain.GraphScanner
	projects    domain.ProjectResolver
	schedules   domain.ScheduleStore
	sync        domain.ExecutionBackendSync
	credentials domain.CredentialLifecycle

	mu           sync.Mutex
	projectLocks map[string]*sync.Mutex
}

// ScheduleReconcilerDependencies are the collaborators of the reconciler.
type ScheduleReconcilerDependencies struct {
	Scanner     domain.GraphScanner
	Projects    domain.ProjectResolver
	Schedules   domain.ScheduleStore
	Sync        domain.ExecutionBackendSync
	Credentials domain.CredentialLifecycle
}

// NewScheduleReconciler returns the domain.Reconciler implementation.
func NewScheduleReconciler(deps ScheduleReconcilerDependencies) domain.Reconciler {
	return &scheduleReconciler{
		scanner:      deps.Scanner,
		projects:     deps.Projects,
		schedules:    deps.Schedules,
		sync:         deps.Sync,
		credentials:  deps.Credentials,
		projectLocks: make(map[string]*sync.Mutex),
	}
}

// ReconcileDeployment runs one reconciliation pass for a deployed graph.
// Passes for the same project are serialized; different projects proceed in
// parallel. Per-intent failures accumulate into the report instead of
// aborting the pass.
func (r *scheduleReconciler) ReconcileDeployment(ctx context.Context, params domain.ReconcileDeploymentParams) (domain.ReconciliationReport, error) {
	if params.ProjectID == "" {
		return domain.ReconciliationReport{}, fmt.Errorf("project ID cannot be empty")
	}
	if params.GraphID == "" {
		return domain.ReconciliationReport{}, fmt.Errorf("graph ID cannot be empty")
	}

	lock := r.projectLock(params.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	report := domain.ReconciliationReport{ProjectID: params.ProjectID}

	organizationID, err := r.projects.GetProjectOrganizationID(ctx, params.ProjectID)
	if err != nil {
		return report, fmt.Errorf("failed to resolve project organization: %w", err)
	}

	intents, err := r.scanIntents(ctx, params.GraphID)
	if err != nil {
		return report, fmt.Errorf("failed to scan trigger nodes: %w", err)
	}

	existing, err := r.loadExisting(ctx, organizationID, params.ProjectID)
	if err != nil {
		return report, fmt.Errorf("failed to load existing schedules: %w", err)
	}

	for _, intent := range intents {
		r.applyIntent(ctx, organizationID, params.ProjectID, intent, existing, &report)
	}

	r.applyGlobalDisable(ctx, organizationID, params.ProjectID, params.ActorID, intents, &report)

	// Rotation runs once per pass, strictly after all schedule mutations, so
	// the issued credential reflects the final post-diff state.
	if report.Updated > 0 {
		if _, err := r.credentials.IssueOrRotate(ctx, params.ProjectID, params.ActorID); err != nil {
			report.Errors = append(report.Errors, domain.ReconciliationError{
				Message: fmt.Sprintf("credential rotation failed: %v", err),
			})
		} else {
			report.Rotated = true
		}
	}

	log.Info().
		Str("project_id", params.ProjectID).
		Str("graph_id", params.GraphID).
		Int("updated", report.Updated).
		Int("removed", report.Removed).
		Int("errors", len(report.Errors)).
		Bool("rotated", report.Rotated).
		Bool("revoked", report.Revoked).
		Msg("Reconciled deployment schedules")

	return report, nil
}

// scanIntents extracts schedule intents from the deployed graph, filling in
// the defaults for unset trigger parameters.
func (r *scheduleReconciler) scanIntents(ctx context.Context, graphID string) ([]domain.ScheduleIntent, error) {
	nodes, err := r.scanner.ScanTriggerNodes(ctx, graphID)
	if err != nil {
		return nil, err
	}

	intents := make([]domain.ScheduleIntent, 0, len(nodes))
	for _, node := range nodes {
		intent := domain.ScheduleIntent{
			NodeInstanceID: node.NodeInstanceID,
			CronExpression: node.CronExpression,
			Timezone:       node.Timezone,
			Enabled:        node.Enabled,
		}
		if intent.CronExpression == "" {
			intent.CronExpression = defaultCronExpression
		}
		if intent.Timezone == "" {
			intent.Timezone = defaultTimezone
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

// loadExisting fetches the project's schedule records keyed by trigger node
// instance ID. The lookup is deliberately project-scoped: the same trigger
// node ID in another project must never collide.
func (r *scheduleReconciler) loadExisting(ctx context.Context, organizationID, projectID string) (map[string]domain.ScheduleRecord, error) {
	scheduleType := domain.ScheduleTypeProject
	records, err := r.schedules.ListSchedules(ctx, domain.ScheduleFilter{
		OrganizationID: organizationID,
		ProjectID:      &projectID,
		Type:           &scheduleType,
	})
	if err != nil {
		return nil, err
	}

	byNode := make(map[string]domain.ScheduleRecord, len(records))
	for _, record := range records {
		if record.Binding != nil {
			byNode[record.Binding.NodeInstanceID] = record
		}
	}
	return byNode, nil
}

func (r *scheduleReconciler) applyIntent(ctx context.Context, organizationID, projectID string, intent domain.ScheduleIntent, existing map[string]domain.ScheduleRecord, report *domain.ReconciliationReport) {
	record, found := existing[intent.NodeInstanceID]

	switch {
	case !found && intent.Enabled:
		if err := r.createSchedule(ctx, organizationID, projectID, intent); err != nil {
			report.Errors = append(report.Errors, domain.ReconciliationError{
				TriggerNodeID: intent.NodeInstanceID,
				Message:       err.Error(),
			})
			return
		}
		report.Updated++

	case found && intent.Enabled:
		if record.CronExpression == intent.CronExpression && record.Timezone == intent.Timezone {
			// Exact match is a no-op, not another "updated".
			return
		}
		if err := r.updateSchedule(ctx, record, intent); err != nil {
			report.Errors = append(report.Errors, domain.ReconciliationError{
				TriggerNodeID: intent.NodeInstanceID,
				ScheduleID:    record.ID,
				Message:       err.Error(),
			})
			return
		}
		report.Updated++

	case found && !intent.Enabled:
		// The external task row goes away by cascade on the schedule UUID.
		if err := r.schedules.DeleteSchedule(ctx, record.ID); err != nil {
			report.Errors = append(report.Errors, domain.ReconciliationError{
				TriggerNodeID: intent.NodeInstanceID,
				ScheduleID:    record.ID,
				Message:       err.Error(),
			})
			return
		}
		if err := r.sync.MarkChanged(ctx); err != nil {
			report.Errors = append(report.Errors, domain.ReconciliationError{
				ScheduleID: record.ID,
				Message:    err.Error(),
			})
		}
		report.Removed++
	}
}

func (r *scheduleReconciler) createSchedule(ctx context.Context, organizationID, projectID string, intent domain.ScheduleIntent) error {
	if _, err := cronmath.Validate(intent.CronExpression); err != nil {
		return err
	}
	if _, err := cronmath.ValidateTimezone(intent.Timezone); err != nil {
		return err
	}

	record, err := r.schedules.CreateSchedule(ctx, domain.ScheduleRecord{
		ID:             xid.New().String(),
		UUID:           uuid.NewString(),
		OrganizationID: organizationID,
		ProjectID:      projectID,
		Type:           domain.ScheduleTypeProject,
		CronExpression: intent.CronExpression,
		Timezone:       intent.Timezone,
		Enabled:        true,
		Binding:        &domain.TriggerBinding{NodeInstanceID: intent.NodeInstanceID},
	})
	if err != nil {
		return err
	}

	if _, err := r.sync.UpsertPeriodicTask(ctx, record); err != nil {
		return err
	}
	return nil
}

func (r *scheduleReconciler) updateSchedule(ctx context.Context, record domain.ScheduleRecord, intent domain.ScheduleIntent) error {
	if _, err := cronmath.Validate(intent.CronExpression); err != nil {
		return err
	}
	if _, err := cronmath.ValidateTimezone(intent.Timezone); err != nil {
		return err
	}

	record.CronExpression = intent.CronExpression
	record.Timezone = intent.Timezone
	record.Enabled = true
	record.UpdatedAt = time.Now()

	updated, err := r.schedules.UpdateSchedule(ctx, record)
	if err != nil {
		return err
	}

	if _, err := r.sync.UpsertPeriodicTask(ctx, updated); err != nil {
		return err
	}
	return nil
}

// applyGlobalDisable sweeps the project when the graph no longer wants any
// schedule: zero enabled intents means every trigger was disabled or the last
// one was removed from the graph entirely. Remaining records are deleted
// regardless of their stored enabled flag, so a record whose trigger node
// vanished does not outlive it.
func (r *scheduleReconciler) applyGlobalDisable(ctx context.Context, organizationID, projectID, actorID string, intents []domain.ScheduleIntent, report *domain.ReconciliationReport) {
	for _, intent := range intents {
		if intent.Enabled {
			return
		}
	}

	remaining, err := r.schedules.ListSchedules(ctx, domain.ScheduleFilter{
		OrganizationID: organizationID,
		ProjectID:      &projectID,
	})
	if err != nil {
		report.Errors = append(report.Errors, domain.ReconciliationError{
			Message: fmt.Sprintf("failed to list remaining schedules: %v", err),
		})
		return
	}

	for _, record := range remaining {
		if err := r.schedules.DeleteSchedule(ctx, record.ID); err != nil {
			report.Errors = append(report.Errors, domain.ReconciliationError{
				ScheduleID: record.ID,
				Message:    err.Error(),
			})
			continue
		}
		report.Removed++
	}

	if report.Removed == 0 {
		return
	}

	if err := r.sync.MarkChanged(ctx); err != nil {
		report.Errors = append(report.Errors, domain.ReconciliationError{
			Message: err.Error(),
		})
	}

	count, err := r.credentials.RevokeAll(ctx, projectID, actorID)
	if err != nil {
		report.Errors = append(report.Errors, domain.ReconciliationError{
			Message: fmt.Sprintf("credential revocation failed: %v", err),
		})
		return
	}
	report.Revoked = count > 0
}

func (r *scheduleReconciler) projectLock(projectID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.projectLocks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		r.projectLocks[projectID] = lock
	}
	return lock
}
