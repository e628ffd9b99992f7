package domain

import (
	"context"
	"strings"
	"time"
)

// AutomationCredentialPrefix marks credentials issued by the scheduler itself,
// as opposed to user-created API keys.
const AutomationCredentialPrefix = "loom-scheduler-"

// ExecutionCredential is a scoped secret the dispatcher presents when calling
// the workflow-execution endpoint. Unlike user API keys the secret is stored
// encrypted-but-recoverable, because the dispatcher must present the
// plaintext at fire time.
type ExecutionCredential struct {
	ID               string
	Name             string
	OrganizationID   string
	ProjectID        string
	EncryptedSecret  []byte
	IsActive         bool
	CreatedAt        time.Time
	RevokedAt        *time.Time
	RevocationReason string
}

// IsAutomation reports whether the credential follows the automation naming
// convention.
func (c ExecutionCredential) IsAutomation() bool {
	return strings.HasPrefix(c.Name, AutomationCredentialPrefix)
}

// IssuedCredential carries a freshly issued credential together with its
// plaintext secret. The plaintext is only ever handed to the caller once.
type IssuedCredential struct {
	Credential ExecutionCredential
	Plaintext  string
}

// CredentialStore persists execution credentials.
type CredentialStore interface {
	CreateCredential(ctx context.Context, credential ExecutionCredential) (ExecutionCredential, error)
	GetCredential(ctx context.Context, id string) (ExecutionCredential, error)
	ListCredentialsByProject(ctx context.Context, projectID string) ([]ExecutionCredential, error)
	DeactivateCredential(ctx context.Context, id string, reason string) error
}

// CredentialLifecycle issues, rotates and revokes automation credentials.
// The reconciler is the only writer; rotation never auto-triggers from
// schedule writes.
type CredentialLifecycle interface {
	FindActiveAutomationCredential(ctx context.Context, projectID string) (*ExecutionCredential, error)
	IssueOrRotate(ctx context.Context, projectID string, actorID string) (IssuedCredential, error)
	RevokeAll(ctx context.Context, projectID string, actorID string) (int, error)
	RevealSecret(ctx context.Context, credential ExecutionCredential) (string, error)
}
