package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository implements CredentialStore and RevocationLedger on
// Postgres. Per-account mutations run inside row-locking transactions
// so concurrent attempts against the same account serialize.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type CleanupResult struct {
	DeletedRevocations   int64 `json:"deleted_revocations"`
	ClearedLoginAttempts int64 `json:"cleared_login_attempts"`
}

const accountColumns = `
	id, username, email, password_hash, full_name, is_active,
	failed_attempts, last_failed_login, locked_until, last_login,
	created_at, updated_at`

func (r *Repository) FindAccount(ctx context.Context, identifier string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE username = $1 OR email = $1
	`, identifier)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account by identifier: %w", err)
	}

	return account, nil
}

func (r *Repository) FindAccountByID(ctx context.Context, id string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account by id: %w", err)
	}

	return account, nil
}

// RegisterFailedAttempt applies one failed login under a row lock and
// returns the lockout deadline if the attempt tripped the threshold.
// An already-locked account keeps its existing deadline.
func (r *Repository) RegisterFailedAttempt(ctx context.Context, accountID string, policy AttemptPolicy, now time.Time) (*time.Time, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin failed attempt tx: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	var lastFailed, lockedUntil sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT failed_attempts, last_failed_login, locked_until
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID).Scan(&attempts, &lastFailed, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account row: %w", err)
	}

	if lockedUntil.Valid && now.Before(lockedUntil.Time) {
		until := lockedUntil.Time.UTC()
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit existing lock tx: %w", err)
		}
		return &until, nil
	}

	var last *time.Time
	if lastFailed.Valid {
		value := lastFailed.Time.UTC()
		last = &value
	}

	nextAttempts, nextLock := applyFailure(attempts, last, policy, now)

	var nextLockValue any
	if nextLock != nil {
		nextLockValue = *nextLock
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET failed_attempts = $2, last_failed_login = $3, locked_until = $4, updated_at = $3
		WHERE id = $1
	`, accountID, nextAttempts, now.UTC(), nextLockValue)
	if err != nil {
		return nil, fmt.Errorf("update failed attempt state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed attempt tx: %w", err)
	}

	return nextLock, nil
}

// ResetLoginState clears the failure counter and lockout and stamps the
// successful login, all in one statement.
func (r *Repository) ResetLoginState(ctx context.Context, accountID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET failed_attempts = 0, last_failed_login = NULL, locked_until = NULL,
		    last_login = $2, updated_at = $2
		WHERE id = $1
	`, accountID, now.UTC())
	if err != nil {
		return fmt.Errorf("reset login state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset login state rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

func (r *Repository) EnsureAccount(ctx context.Context, username, email, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate account id: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (username)
		DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
	`, id.String(), username, email, passwordHash, now)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	return nil
}

// Revoke appends one revocation record. Inserting the same token id
// twice is a no-op, which makes logout idempotent.
func (r *Repository) Revoke(ctx context.Context, record BlacklistedToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_blacklist (token_id, account_id, revoked_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id) DO NOTHING
	`, record.TokenID, record.AccountID, record.RevokedAt.UTC(), record.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert revocation: %w", err)
	}

	return nil
}

func (r *Repository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM token_blacklist WHERE token_id = $1)
	`, tokenID).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("query revocation: %w", err)
	}

	return revoked, nil
}

// CleanupStaleAuthData prunes revocation records whose token expired
// before the retention cutoff and clears attempt counters that went
// quiet. Retention must exceed the maximum token lifetime.
func (r *Repository) CleanupStaleAuthData(ctx context.Context, revocationRetention, attemptRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if revocationRetention <= 0 {
		revocationRetention = 14 * 24 * time.Hour
	}
	if attemptRetention <= 0 {
		attemptRetention = 30 * 24 * time.Hour
	}

	now := time.Now().UTC()

	deletedRevocations, err := r.deleteStaleRevocations(ctx, now.Add(-revocationRetention), batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	clearedAttempts, err := r.clearStaleLoginAttempts(ctx, now.Add(-attemptRetention), batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		DeletedRevocations:   deletedRevocations,
		ClearedLoginAttempts: clearedAttempts,
	}, nil
}

func (r *Repository) deleteStaleRevocations(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT token_id
			FROM token_blacklist
			WHERE expires_at < $1
			ORDER BY expires_at ASC
			LIMIT $2
		)
		DELETE FROM token_blacklist t
		USING stale
		WHERE t.token_id = stale.token_id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale revocations: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale revocations rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) clearStaleLoginAttempts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM accounts
			WHERE failed_attempts > 0
			  AND last_failed_login < $1
			  AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY last_failed_login ASC
			LIMIT $2
		)
		UPDATE accounts a
		SET failed_attempts = 0, last_failed_login = NULL, locked_until = NULL
		FROM stale
		WHERE a.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("clear stale login attempts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale login attempts rows affected: %w", err)
	}

	return affected, nil
}

func scanAccount(row *sql.Row) (Account, error) {
	var account Account
	var fullName sql.NullString
	var lastFailed, lockedUntil, lastLogin sql.NullTime

	err := row.Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&fullName, &account.Active, &account.FailedAttempts,
		&lastFailed, &lockedUntil, &lastLogin,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}

	if fullName.Valid {
		account.FullName = &fullName.String
	}
	if lastFailed.Valid {
		value := lastFailed.Time.UTC()
		account.LastFailedLogin = &value
	}
	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		account.LockedUntil = &value
	}
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		account.LastLogin = &value
	}

	return account, nil
}
