package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomhq/loom/internal/domain"
)

type credentialStore struct {
	pool *pgxpool.Pool
}

// NewCredentialStore returns a domain.CredentialStore backed by PostgreSQL.
func NewCredentialStore(pool *pgxpool.Pool) domain.CredentialStore {
	return &credentialStore{pool: pool}
}

const credentialColumns = `id, name, organization_id, project_id, encrypted_secret, is_active, created_at, revoked_at, revocation_reason`

func (s *credentialStore) CreateCredential(ctx context.Context, credential domain.ExecutionCredential) (domain.ExecutionCredential, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO execution_credentials (id, name, organization_id, project_id, encrypted_secret, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+credentialColumns,
		credential.ID, credential.Name, credential.OrganizationID, credential.ProjectID,
		credential.EncryptedSecret, credential.IsActive,
	)

	created, err := scanCredential(row)
	if err != nil {
		return domain.ExecutionCredential{}, fmt.Errorf("create credential: %w", err)
	}
	return created, nil
}

func (s *credentialStore) GetCredential(ctx context.Context, id string) (domain.ExecutionCredential, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM execution_credentials WHERE id = $1`, id)
	credential, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ExecutionCredential{}, fmt.Errorf("credential %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ExecutionCredential{}, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

func (s *credentialStore) ListCredentialsByProject(ctx context.Context, projectID string) ([]domain.ExecutionCredential, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+credentialColumns+` FROM execution_credentials WHERE project_id = $1 ORDER BY created_at`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []domain.ExecutionCredential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		credentials = append(credentials, credential)
	}
	return credentials, rows.Err()
}

func (s *credentialStore) DeactivateCredential(ctx context.Context, id string, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE execution_credentials
		SET is_active = FALSE, revoked_at = now(), revocation_reason = $2
		WHERE id = $1 AND is_active`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("deactivate credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active credential %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanCredential(row pgx.Row) (domain.ExecutionCredential, error) {
	var credential domain.ExecutionCredential
	if err := row.Scan(
		&credential.ID, &credential.Name, &credential.OrganizationID, &credential.ProjectID,
		&credential.EncryptedSecret, &credential.IsActive, &credential.CreatedAt,
		&credential.RevokedAt, &credential.RevocationReason,
	); err != nil {
		return domain.ExecutionCredential{}, err
	}
	return credential, nil
}
