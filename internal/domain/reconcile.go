package domain

import "context"

// ScheduleIntent is the ephemeral, graph-derived description of "this trigger
// node wants a schedule". Intents are never persisted; they exist only as
// reconciliation input and are matched to records by trigger node instance ID.
type ScheduleIntent struct {
	NodeInstanceID string
	CronExpression string
	Timezone       string
	Enabled        bool
}

// TriggerNode is a component instance of the recognized trigger kind found in
// a deployed graph, with its configured scheduling parameters.
type TriggerNode struct {
	NodeInstanceID string
	CronExpression string
	Timezone       string
	Enabled        bool
}

// GraphScanner enumerates trigger nodes inside a deployed workflow graph.
// Owned by the excluded graph subsystem; consumed here as an interface.
type GraphScanner interface {
	ScanTriggerNodes(ctx context.Context, graphID string) ([]TriggerNode, error)
}

// ProjectResolver maps a project to its owning organization.
type ProjectResolver interface {
	GetProjectOrganizationID(ctx context.Context, projectID string) (string, error)
}

// GraphService bundles the graph-subsystem collaborators a single client
// adapter provides.
type GraphService interface {
	GraphScanner
	ProjectResolver
}

// ReconciliationError tags a per-item failure with the offending trigger node
// or schedule so a partially failed pass stays diagnosable.
type ReconciliationError struct {
	TriggerNodeID string `json:"trigger_node_id,omitempty"`
	ScheduleID    string `json:"schedule_id,omitempty"`
	Message       string `json:"message"`
}

// ReconciliationReport is the structured result of one reconciliation pass.
// A partial failure in one schedule never aborts the others; it lands in
// Errors instead.
type ReconciliationReport struct {
	ProjectID string                `json:"project_id"`
	Updated   int                   `json:"updated"`
	Removed   int                   `json:"removed"`
	Rotated   bool                  `json:"credential_rotated"`
	Revoked   bool                  `json:"credential_revoked"`
	Errors    []ReconciliationError `json:"errors,omitempty"`
}

// ReconcileDeploymentParams identifies one deployment event.
type ReconcileDeploymentParams struct {
	ProjectID string
	GraphID   string
	ActorID   string
}

// Reconciler diffs the schedule intents embedded in a deployed graph against
// persisted schedule records and drives creates, updates, deletes and
// credential rotation. Passes for the same project never interleave.
type Reconciler interface {
	ReconcileDeployment(ctx context.Context, params ReconcileDeploymentParams) (ReconciliationReport, error)
}
