package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a schedule or credential does not
// exist. Callers match it with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrInvalidSchedule wraps schedule records that break the type/scope
// pairing rule.
var ErrInvalidSchedule = errors.New("invalid schedule")

// InvalidCronError reports a cron expression that failed validation.
type InvalidCronError struct {
	Expression string
	Reason     string
}

func (e *InvalidCronError) Error() string {
	return fmt.Sprintf("invalid cron expression %q: %s", e.Expression, e.Reason)
}

// UnknownTimezoneError reports a timezone outside the curated catalog.
type UnknownTimezoneError struct {
	Timezone string
}

func (e *UnknownTimezoneError) Error() string {
	return fmt.Sprintf("unknown timezone %q", e.Timezone)
}

// SyncError reports a failed push into the external periodic-task store. The
// reconciler treats one schedule's sync failure as independent from the rest
// of the pass.
type SyncError struct {
	Step string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("execution backend sync failed at %s: %v", e.Step, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// CredentialError reports a missing or inactive automation credential at
// dispatch time. This is terminal: it indicates a reconciliation bug, not a
// transient condition.
type CredentialError struct {
	ProjectID string
	Reason    string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("automation credential for project %s: %s", e.ProjectID, e.Reason)
}
