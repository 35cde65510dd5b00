package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-service/internal/domain"
)

// Constraint names from the credentials migration.
const (
	constraintEmailUnique    = "credentials_email_key"
	constraintUsernameUnique = "credentials_username_key"
)

const (
	pgUniqueViolation      = "23505"
	pgInvalidTextRepresent = "22P02"
)

// CredentialRepository defines persistence access for credentials.
type CredentialRepository interface {
	Create(ctx context.Context, cred *domain.Credential) error
	Update(ctx context.Context, cred *domain.Credential) error
	// UpdatePasswordHash and MarkEmailVerified touch a single column so they
	// never overwrite a concurrent administrative change.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// MarkEmailVerified only applies while the stored email still equals email.
	MarkEmailVerified(ctx context.Context, id, email string) error
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
	GetByUsername(ctx context.Context, username string) (*domain.Credential, error)
	List(ctx context.Context, filter CredentialFilter) ([]domain.Credential, error)
}

// CredentialFilter defines paging for credential listing.
type CredentialFilter struct {
	Limit  int
	Offset int
}

const credentialColumns = `id, email, username, password_hash, role, is_banned, is_email_verified, created_at, updated_at`

type credentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository returns a Postgres-backed implementation.
func NewCredentialRepository(pool *pgxpool.Pool) CredentialRepository {
	return &credentialRepository{pool: pool}
}

func (r *credentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	const query = `
        INSERT INTO credentials (email, username, password_hash, role, is_banned, is_email_verified)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		cred.Email,
		cred.Username,
		cred.PasswordHash,
		cred.Role,
		cred.IsBanned,
		cred.IsEmailVerified,
	).Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
	return mapPgError(err)
}

func (r *credentialRepository) Update(ctx context.Context, cred *domain.Credential) error {
	const query = `
        UPDATE credentials
        SET email=$1, username=$2, password_hash=$3, role=$4, is_banned=$5, is_email_verified=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		cred.Email,
		cred.Username,
		cred.PasswordHash,
		cred.Role,
		cred.IsBanned,
		cred.IsEmailVerified,
		cred.ID,
	).Scan(&cred.UpdatedAt)
	return mapPgError(err)
}

func (r *credentialRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const query = `UPDATE credentials SET password_hash=$1, updated_at=NOW() WHERE id=$2`
	return r.execOne(ctx, query, hash, id)
}

func (r *credentialRepository) MarkEmailVerified(ctx context.Context, id, email string) error {
	const query = `UPDATE credentials SET is_email_verified=TRUE, updated_at=NOW() WHERE id=$1 AND email=$2`
	return r.execOne(ctx, query, id, email)
}

func (r *credentialRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *credentialRepository) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	return r.getOne(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id=$1`, id)
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	return r.getOne(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE email=$1`, email)
}

func (r *credentialRepository) GetByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	return r.getOne(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE username=$1`, username)
}

func (r *credentialRepository) List(ctx context.Context, filter CredentialFilter) ([]domain.Credential, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+credentialColumns+` FROM credentials ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	return creds, rows.Err()
}

func (r *credentialRepository) getOne(ctx context.Context, query string, arg string) (*domain.Credential, error) {
	cred, err := scanCredential(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapPgError(err)
	}
	return cred, nil
}

func scanCredential(row pgx.Row) (*domain.Credential, error) {
	var cred domain.Credential
	if err := row.Scan(
		&cred.ID,
		&cred.Email,
		&cred.Username,
		&cred.PasswordHash,
		&cred.Role,
		&cred.IsBanned,
		&cred.IsEmailVerified,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &cred, nil
}

// mapPgError translates driver errors into repository errors. A malformed
// id can never match a row, so it reads as not found.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintEmailUnique:
				return ErrDuplicateEmail
			case constraintUsernameUnique:
				return ErrDuplicateUsername
			}
		case pgInvalidTextRepresent:
			return ErrNotFound
		}
	}
	return err
}
