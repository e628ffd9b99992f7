// Package dispatch runs the unit of work the external scheduler fires on
// each due schedule: resolve the project's automation credential, call the
// production execution endpoint, classify the outcome. Nothing here retries;
// re-fire semantics belong to the external scheduler.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/loomhq/loom/internal/domain"
)

// DefaultTimeout bounds the execution call. Workflow executions can run for
// minutes, so this is deliberately long.
const DefaultTimeout = 5 * time.Minute

type dispatcher struct {
	credentials domain.CredentialLifecycle
	client      *resty.Client
	baseURL     string
	timeout     time.Duration
}

// DispatcherDependencies are the collaborators of the dispatcher.
type DispatcherDependencies struct {
	Credentials      domain.CredentialLifecycle
	ExecutionBaseURL string
	Timeout          time.Duration
	HTTPClient       *resty.Client
}

// NewDispatcher returns the domain.Dispatcher implementation.
func NewDispatcher(deps DispatcherDependencies) domain.Dispatcher {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := deps.HTTPClient
	if client == nil {
		client = resty.New()
	}
	client.SetTimeout(timeout)

	return &dispatcher{
		credentials: deps.Credentials,
		client:      client,
		baseURL:     deps.ExecutionBaseURL,
		timeout:     timeout,
	}
}

// scheduledRunPayload is the synthetic input the execution endpoint receives,
// marked so downstream can tell scheduled runs from interactive ones.
type scheduledRunPayload struct {
	Scheduled      bool   `json:"scheduled"`
	FireTime       string `json:"fire_time"`
	CronExpression string `json:"cron_expression"`
	ScheduleUUID   string `json:"schedule_uuid"`
	TriggerNodeID  string `json:"trigger_node_id"`
}

func (d *dispatcher) Dispatch(ctx context.Context, req domain.DispatchRequest) domain.DispatchResult {
	started := time.Now()

	result := d.dispatch(ctx, req, started)
	result.StartedAt = started
	result.Duration = time.Since(started)

	log.Info().
		Str("project_id", req.ProjectID).
		Str("schedule_uuid", req.ScheduleUUID).
		Str("status", string(result.Status)).
		Dur("duration", result.Duration).
		Msg("Dispatched scheduled run")

	return result
}

func (d *dispatcher) dispatch(ctx context.Context, req domain.DispatchRequest, started time.Time) domain.DispatchResult {
	credential, err := d.credentials.FindActiveAutomationCredential(ctx, req.ProjectID)
	if err != nil {
		return domain.DispatchResult{
			Status: domain.DispatchStatusFailed,
			Error:  (&domain.CredentialError{ProjectID: req.ProjectID, Reason: err.Error()}).Error(),
		}
	}
	if credential == nil {
		return domain.DispatchResult{
			Status: domain.DispatchStatusFailed,
			Error:  (&domain.CredentialError{ProjectID: req.ProjectID, Reason: "no active automation credential"}).Error(),
		}
	}

	secret, err := d.credentials.RevealSecret(ctx, *credential)
	if err != nil {
		return domain.DispatchResult{
			Status: domain.DispatchStatusFailed,
			Error:  (&domain.CredentialError{ProjectID: req.ProjectID, Reason: err.Error()}).Error(),
		}
	}

	fireTime := req.FireTime
	if fireTime.IsZero() {
		fireTime = started
	}

	payload := scheduledRunPayload{
		Scheduled:      true,
		FireTime:       fireTime.UTC().Format(time.RFC3339),
		CronExpression: req.CronExpression,
		ScheduleUUID:   req.ScheduleUUID,
		TriggerNodeID:  req.TriggerNodeID,
	}

	url := fmt.Sprintf("%s/projects/%s/production/run", d.baseURL, req.ProjectID)

	response, err := d.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", secret).
		SetBody(payload).
		Post(url)
	if err != nil {
		return classifyTransportError(err)
	}

	if response.IsError() {
		return domain.DispatchResult{
			Status:     domain.DispatchStatusHTTPError,
			StatusCode: response.StatusCode(),
			Error:      fmt.Sprintf("execution endpoint returned %d: %s", response.StatusCode(), response.String()),
		}
	}

	var body json.RawMessage
	if err := json.Unmarshal(response.Body(), &body); err != nil {
		return domain.DispatchResult{
			Status:     domain.DispatchStatusUnexpectedError,
			StatusCode: response.StatusCode(),
			Error:      fmt.Sprintf("execution endpoint returned non-JSON body: %v", err),
		}
	}

	return domain.DispatchResult{
		Status:     domain.DispatchStatusSuccess,
		StatusCode: response.StatusCode(),
		Response:   body,
	}
}

func classifyTransportError(err error) domain.DispatchResult {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.DispatchResult{
			Status: domain.DispatchStatusTimeoutError,
			Error:  err.Error(),
		}
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.DispatchResult{
			Status: domain.DispatchStatusTimeoutError,
			Error:  err.Error(),
		}
	default:
		return domain.DispatchResult{
			Status: domain.DispatchStatusRequestError,
			Error:  err.Error(),
		}
	}
}
