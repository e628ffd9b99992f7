package managers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/loomhq/loom/internal/domain"
)

const (
	revocationReasonRotated = "rotated"
	revocationReasonRevoked = "revoked"

	secretPrefix = "lak_"
)

type credentialManager struct {
	store    domain.CredentialStore
	projects domain.ProjectResolver
	cipher   *SecretCipher
}

// CredentialManagerDependencies are the collaborators of the credential
// lifecycle manager.
type CredentialManagerDependencies struct {
	Store    domain.CredentialStore
	Projects domain.ProjectResolver
	Cipher   *SecretCipher
}

// NewCredentialManager returns the domain.CredentialLifecycle implementation.
func NewCredentialManager(deps CredentialManagerDependencies) domain.CredentialLifecycle {
	return &credentialManager{
		store:    deps.Store,
		projects: deps.Projects,
		cipher:   deps.Cipher,
	}
}

func (m *credentialManager) FindActiveAutomationCredential(ctx context.Context, projectID string) (*domain.ExecutionCredential, error) {
	credentials, err := m.store.ListCredentialsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	for i := range credentials {
		if credentials[i].IsActive && credentials[i].IsAutomation() {
			return &credentials[i], nil
		}
	}
	return nil, nil
}

func (m *credentialManager) IssueOrRotate(ctx context.Context, projectID string, actorID string) (domain.IssuedCredential, error) {
	if projectID == "" {
		return domain.IssuedCredential{}, fmt.Errorf("project ID cannot be empty")
	}

	active, err := m.FindActiveAutomationCredential(ctx, projectID)
	if err != nil {
		return domain.IssuedCredential{}, err
	}

	if active != nil {
		if err := m.store.DeactivateCredential(ctx, active.ID, revocationReasonRotated); err != nil {
			return domain.IssuedCredential{}, fmt.Errorf("failed to deactivate previous credential: %w", err)
		}
	}

	organizationID, err := m.projects.GetProjectOrganizationID(ctx, projectID)
	if err != nil {
		return domain.IssuedCredential{}, fmt.Errorf("failed to resolve project organization: %w", err)
	}

	plaintext, err := generateSecret()
	if err != nil {
		return domain.IssuedCredential{}, err
	}

	encrypted, err := m.cipher.Encrypt(plaintext)
	if err != nil {
		return domain.IssuedCredential{}, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	credential, err := m.store.CreateCredential(ctx, domain.ExecutionCredential{
		ID:              xid.New().String(),
		Name:            domain.AutomationCredentialPrefix + projectID,
		OrganizationID:  organizationID,
		ProjectID:       projectID,
		EncryptedSecret: encrypted,
		IsActive:        true,
	})
	if err != nil {
		return domain.IssuedCredential{}, fmt.Errorf("failed to create credential: %w", err)
	}

	log.Info().
		Str("project_id", projectID).
		Str("credential_id", credential.ID).
		Str("actor_id", actorID).
		Bool("rotated", active != nil).
		Msg("Issued automation credential")

	return domain.IssuedCredential{Credential: credential, Plaintext: plaintext}, nil
}

func (m *credentialManager) RevokeAll(ctx context.Context, projectID string, actorID string) (int, error) {
	credentials, err := m.store.ListCredentialsByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to list credentials: %w", err)
	}

	revoked := 0
	for _, credential := range credentials {
		if !credential.IsActive || !credential.IsAutomation() {
			continue
		}
		if err := m.store.DeactivateCredential(ctx, credential.ID, revocationReasonRevoked); err != nil {
			return revoked, fmt.Errorf("failed to revoke credential %s: %w", credential.ID, err)
		}
		revoked++
	}

	if revoked > 0 {
		log.Info().
			Str("project_id", projectID).
			Str("actor_id", actorID).
			Int("revoked", revoked).
			Msg("Revoked automation credentials")
	}

	return revoked, nil
}

func (m *credentialManager) RevealSecret(ctx context.Context, credential domain.ExecutionCredential) (string, error) {
	plaintext, err := m.cipher.Decrypt(credential.EncryptedSecret)
	if err != nil {
		return "", fmt.Errorf("failed to reveal secret for credential %s: %w", credential.ID, err)
	}
	return plaintext, nil
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return secretPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}
