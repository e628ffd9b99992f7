package domain

import (
	"context"
	"encoding/json"
	"time"
)

// DispatchStatus classifies the outcome of one scheduled fire. These are
// results, not errors: the dispatcher always returns a classified result so
// the external scheduler's result backend has something to store.
type DispatchStatus string

const (
	DispatchStatusSuccess         DispatchStatus = "SUCCESS"
	DispatchStatusFailed          DispatchStatus = "FAILED"
	DispatchStatusHTTPError       DispatchStatus = "HTTP_ERROR"
	DispatchStatusTimeoutError    DispatchStatus = "TIMEOUT_ERROR"
	DispatchStatusRequestError    DispatchStatus = "REQUEST_ERROR"
	DispatchStatusUnexpectedError DispatchStatus = "UNEXPECTED_ERROR"
)

// DispatchRequest identifies one due fire of a schedule.
type DispatchRequest struct {
	ProjectID      string    `json:"project_id"`
	ScheduleUUID   string    `json:"schedule_uuid"`
	TriggerNodeID  string    `json:"trigger_node_id"`
	CronExpression string    `json:"cron_expression"`
	FireTime       time.Time `json:"fire_time"`
}

// DispatchResult is what the external scheduler stores in its result backend.
type DispatchResult struct {
	Status     DispatchStatus  `json:"status"`
	Error      string          `json:"error,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
}

// Dispatcher executes one scheduled fire: resolve the project's automation
// credential, call the production execution endpoint, classify the outcome.
// It never retries; re-fire semantics belong to the external scheduler.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) DispatchResult
}
