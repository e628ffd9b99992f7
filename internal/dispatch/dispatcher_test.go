package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loomhq/loom/internal/domain"
)

type stubCredentials struct {
	credential *domain.ExecutionCredential
	secret     string
	findErr    error
	revealErr  error
}

func (s *stubCredentials) FindActiveAutomationCredential(ctx context.Context, projectID string) (*domain.ExecutionCredential, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.credential, nil
}

func (s *stubCredentials) IssueOrRotate(ctx context.Context, projectID string, actorID string) (domain.IssuedCredential, error) {
	return domain.IssuedCredential{}, errors.New("not implemented")
}

func (s *stubCredentials) RevokeAll(ctx context.Context, projectID string, actorID string) (int, error) {
	return 0, errors.New("not implemented")
}

func (s *stubCredentials) RevealSecret(ctx context.Context, credential domain.ExecutionCredential) (string, error) {
	if s.revealErr != nil {
		return "", s.revealErr
	}
	return s.secret, nil
}

func activeCredential() *domain.ExecutionCredential {
	return &domain.ExecutionCredential{
		ID:        "cred_1",
		ProjectID: "project_1",
		Name:      domain.AutomationCredentialPrefix + "project_1",
		IsActive:  true,
	}
}

func testRequest() domain.DispatchRequest {
	return domain.DispatchRequest{
		ProjectID:      "project_1",
		ScheduleUUID:   "6f1c2a34-0000-0000-0000-000000000001",
		TriggerNodeID:  "node_1",
		CronExpression: "0 9 * * *",
		FireTime:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDispatch_Success(t *testing.T) {
	var capturedKey atomic.Value
	var capturedPath atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedKey.Store(r.Header.Get("X-API-Key"))
		capturedPath.Store(r.URL.Path)

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["scheduled"])
		assert.Equal(t, "0 9 * * *", payload["cron_expression"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"execution_id":"exec_1"}`))
	}))
	defer server.Close()

	dispatcher := NewDispatcher(DispatcherDependencies{
		Credentials:      &stubCredentials{credential: activeCredential(), secret: "lak_secret"},
		ExecutionBaseURL: server.URL,
	})

	result := dispatcher.Dispatch(context.Background(), testRequest())

	assert.Equal(t, domain.DispatchStatusSuccess, result.Status)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.JSONEq(t, `{"execution_id":"exec_1"}`, string(result.Response))
	assert.Equal(t, "lak_secret", capturedKey.Load())
	assert.Equal(t, "/projects/project_1/production/run", capturedPath.Load())
	assert.False(t, result.StartedAt.IsZero())
}

func TestDispatch_MissingCredentialSkipsHTTPCall(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(DispatcherDependencies{
		Credentials:      &stubCredentials{credential: nil},
		ExecutionBaseURL: server.URL,
	})

	result := dispatcher.Dispatch(context.Background(), testRequest())

	assert.Equal(t, domain.DispatchStatusFailed, result.Status)
	assert.Contains(t, result.Error, "no active automation credential")
	assert.Equal(t, int64(0), calls.Load())
}

func TestDispatch_CredentialLookupFailure(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherDependencies{
		Credentials:      &stubCredentials{findErr: errors.New("store unavailable")},
		ExecutionBaseURL: "http://127.0.0.1:1",
	})

	result := dispatcher.Dispatch(context.Background(), testRequest())

	assert.Equal(t, domain.DispatchStatusFailed, result.Status)
	assert.Contains(t, result.Error, "store unavailable")
}

func TestDispatch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"executor down"}`))
	}))
	defer server.Close()

	dispatcher := NewDispatcher(DispatcherDependencies{
		Credentials:      &stubCredentials{credential: activeCredential(), secret: "lak_secret"},
		ExecutionBaseURL: server.URL,
	})

	result := dispatcher.Dispatch(context.Background(), testRequest())

	assert.Equal(t, domain.DispatchStatusHTTPError, result.Status)
	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
	assert.Contains(t, result.Error, "502")
}

func TestDispatch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(DispatcherDependencies{
		Credentials:      &stubCredentials{credential: activeCredential(), secret: "lak_secret"},
		ExecutionBaseURL: server.URL,
		Timeout:          50 * time.Millisecond,
	})

	result := dispatcher.Dispatch(context.Background(), testRequest())

	assert.Equal(t, domain.DispatchStatusTimeoutError, result.Status)
}

func TestDispatch_RequestError(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherDependencies{
		Credentials:      &stubCredentials{credential: activeCredential(), secret: "lak_secret"},
		ExecutionBaseURL: "http://127.0.0.1:1",
	})

	result := dispatcher.Dispatch(context.Background(), testRequest())

	assert.Equal(t, domain.DispatchStatusRequestError, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestDispatch_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	dispatcher := NewDispatcher(DispatcherDependencies{
		Credentials:      &stubCredentials{credential: activeCredential(), secret: "lak_secret"},
		ExecutionBaseURL: server.URL,
	})

	result := dispatcher.Dispatch(context.Background(), testRequest())

	assert.Equal(t, domain.DispatchStatusUnexpectedError, result.Status)
}
