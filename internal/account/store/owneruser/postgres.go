package owneruser

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
	txcontext "brokerhub/pkg/platform/tx"
)

// PostgresStore persists owner users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const ownerUserColumns = `id, name, email, tax_id, phone, principal_id, billing_profile, source, deleted_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, user *models.OwnerUser) error {
	profile, err := json.Marshal(user.BillingProfile)
	if err != nil {
		return fmt.Errorf("marshal billing profile: %w", err)
	}
	query := `
		INSERT INTO owner_users (` + ownerUserColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Name,
		user.Email,
		user.TaxID,
		user.Phone,
		principalIDOrNil(user.PrincipalID),
		profile,
		string(user.Source),
		user.DeletedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert owner user: %w", err)
	}
	return nil
}

// FindByID returns the row whether or not it is tombstoned.
func (s *PostgresStore) FindByID(ctx context.Context, userID id.OwnerUserID) (*models.OwnerUser, error) {
	query := `SELECT ` + ownerUserColumns + ` FROM owner_users WHERE id = $1`
	user, err := scanOwnerUser(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(userID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find owner user: %w", err)
	}
	return user, nil
}

// FindByPrincipal returns the live row linked to the given principal.
func (s *PostgresStore) FindByPrincipal(ctx context.Context, principalID id.PrincipalID) (*models.OwnerUser, error) {
	query := `SELECT ` + ownerUserColumns + ` FROM owner_users WHERE principal_id = $1 AND deleted_at IS NULL`
	user, err := scanOwnerUser(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(principalID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find owner user by principal: %w", err)
	}
	return user, nil
}

// FindByEmail returns the live row for the given email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.OwnerUser, error) {
	query := `SELECT ` + ownerUserColumns + ` FROM owner_users WHERE email = $1 AND deleted_at IS NULL`
	user, err := scanOwnerUser(s.q(ctx).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find owner user by email: %w", err)
	}
	return user, nil
}

// ExistsByPhone reports whether a live row carries the given phone number.
func (s *PostgresStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM owner_users WHERE phone = $1 AND deleted_at IS NULL)`
	if err := s.q(ctx).QueryRowContext(ctx, query, phone).Scan(&exists); err != nil {
		return false, fmt.Errorf("check owner user phone: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Update(ctx context.Context, user *models.OwnerUser) error {
	profile, err := json.Marshal(user.BillingProfile)
	if err != nil {
		return fmt.Errorf("marshal billing profile: %w", err)
	}
	query := `
		UPDATE owner_users
		SET name = $2, email = $3, tax_id = $4, phone = $5, principal_id = $6,
		    billing_profile = $7, source = $8, deleted_at = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Name,
		user.Email,
		user.TaxID,
		user.Phone,
		principalIDOrNil(user.PrincipalID),
		profile,
		string(user.Source),
		user.DeletedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update owner user: %w", err)
	}
	return requireRowAffected(res)
}

// SetDeletedAt writes the tombstone column; nil restores the row.
func (s *PostgresStore) SetDeletedAt(ctx context.Context, userID id.OwnerUserID, deletedAt *time.Time, now time.Time) error {
	query := `UPDATE owner_users SET deleted_at = $2, updated_at = $3 WHERE id = $1`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(userID), deletedAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("set owner user tombstone: %w", err)
	}
	return requireRowAffected(res)
}

// Delete physically removes the row. Used only by saga compensation.
func (s *PostgresStore) Delete(ctx context.Context, userID id.OwnerUserID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM owner_users WHERE id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete owner user: %w", err)
	}
	return requireRowAffected(res)
}

func scanOwnerUser(row *sql.Row) (*models.OwnerUser, error) {
	var (
		user      models.OwnerUser
		userID    uuid.UUID
		principal *uuid.UUID
		profile   []byte
		source    string
	)
	err := row.Scan(
		&userID,
		&user.Name,
		&user.Email,
		&user.TaxID,
		&user.Phone,
		&principal,
		&profile,
		&source,
		&user.DeletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.ID = id.OwnerUserID(userID)
	user.Source = models.OwnerUserSource(source)
	if principal != nil {
		principalID := id.PrincipalID(*principal)
		user.PrincipalID = &principalID
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &user.BillingProfile); err != nil {
			return nil, fmt.Errorf("unmarshal billing profile: %w", err)
		}
	}
	return &user, nil
}

func principalIDOrNil(principalID *id.PrincipalID) *uuid.UUID {
	if principalID == nil {
		return nil
	}
	u := uuid.UUID(*principalID)
	return &u
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
