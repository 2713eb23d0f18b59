package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/repository"
)

const accountsTable = "portal.accounts"

var accountColumns = []string{
	"id",
	"email",
	"handle",
	"password_hash",
	"first_name",
	"last_name",
	"avatar_url",
	"bio",
	"role",
	"is_active",
	"status",
	"email_verified",
	"failed_login_attempts",
	"lock_until",
	"last_login_at",
	"last_login_ip",
	"registered_at",
	"registration_ip",
	"referred_by",
	"referral_code",
	"updated_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{exec: exec, builder: newBuilder()}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{pool: r.pool, exec: tx, builder: r.builder}
}

// Create inserts a new account row. Duplicate email, handle or referral code yields repository.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			domain.NormalizeEmail(account.Email),
			optionalString(account.Handle),
			account.PasswordHash,
			account.FirstName,
			account.LastName,
			optionalString(account.AvatarURL),
			optionalString(account.Bio),
			string(account.Role),
			account.IsActive,
			string(account.Status),
			account.EmailVerified,
			account.FailedLoginAttempts,
			optionalTime(account.LockUntil),
			optionalTime(account.LastLoginAt),
			optionalString(account.LastLoginIP),
			account.RegisteredAt.UTC(),
			optionalString(account.RegistrationIP),
			optionalString(account.ReferredBy),
			account.ReferralCode,
			account.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert account: %w", mapWriteError(err))
	}
	return nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves an account by case-insensitive email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Expr("lower(email) = ?", domain.NormalizeEmail(email)))
}

// GetByHandle retrieves an account by case-insensitive handle.
func (r *AccountRepository) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Expr("lower(handle) = ?", strings.ToLower(strings.TrimSpace(handle))))
}

// GetByReferralCode retrieves the account owning a referral code.
func (r *AccountRepository) GetByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"referral_code": strings.ToUpper(strings.TrimSpace(code))})
}

func (r *AccountRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

// List returns a page of accounts matching the filter and the total match count.
func (r *AccountRepository) List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, int, error) {
	where := squirrel.And{}
	if filter.Role != nil {
		where = append(where, squirrel.Eq{"role": string(*filter.Role)})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": string(*filter.Status)})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		where = append(where, squirrel.Or{
			squirrel.Like{"lower(email)": pattern},
			squirrel.Like{"lower(handle)": pattern},
			squirrel.Like{"lower(first_name)": pattern},
			squirrel.Like{"lower(last_name)": pattern},
		})
	}

	countStmt, countArgs, err := r.builder.Select("COUNT(*)").From(accountsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count accounts sql: %w", err)
	}
	var total int
	if err := r.exec.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(where).
		OrderBy("registered_at DESC", "id").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, total, nil
}

// UpdateProfile applies the non-nil fields and returns the updated row.
// An empty handle clears it.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate, at time.Time) (*domain.Account, error) {
	if update.Empty() {
		return r.GetByID(ctx, id)
	}

	set := map[string]any{"updated_at": at.UTC()}
	if update.FirstName != nil {
		set["first_name"] = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		set["last_name"] = strings.TrimSpace(*update.LastName)
	}
	if update.Handle != nil {
		set["handle"] = optionalString(update.Handle)
	}
	if update.AvatarURL != nil {
		set["avatar_url"] = optionalString(update.AvatarURL)
	}
	if update.Bio != nil {
		set["bio"] = optionalString(update.Bio)
	}

	stmt, args, err := r.builder.Update(accountsTable).
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(accountColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update profile sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", mapWriteError(err))
	}
	return account, nil
}

// UpdatePassword stores a new hash and clears the lockout state.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	return r.update(ctx, "update password", id, map[string]any{
		"password_hash":         passwordHash,
		"failed_login_attempts": 0,
		"lock_until":            nil,
		"updated_at":            at.UTC(),
	})
}

// MarkEmailVerified flips the verified flag and clears the lockout state.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "mark email verified", id, map[string]any{
		"email_verified":        true,
		"failed_login_attempts": 0,
		"lock_until":            nil,
		"updated_at":            at.UTC(),
	})
}

// RecordLoginFailure increments the counter in a single statement and locks the
// account once the new value reaches threshold.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, at time.Time) (domain.LoginFailure, error) {
	lockUntil := at.Add(lockFor).UTC()
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_login_attempts", squirrel.Expr("failed_login_attempts + 1")).
		Set("lock_until", squirrel.Expr("CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE lock_until END", threshold, lockUntil)).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING failed_login_attempts, lock_until").
		ToSql()
	if err != nil {
		return domain.LoginFailure{}, fmt.Errorf("build record login failure sql: %w", err)
	}

	var (
		attempts int
		until    sql.NullTime
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts, &until); err != nil {
		if isNoRows(err) {
			return domain.LoginFailure{}, repository.ErrNotFound
		}
		return domain.LoginFailure{}, fmt.Errorf("record login failure: %w", err)
	}

	return domain.LoginFailure{Attempts: attempts, LockUntil: nullableTimePtr(until)}, nil
}

// RecordLoginSuccess resets the failure counter and stamps the last login.
func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, id string, ip *string, at time.Time) error {
	return r.update(ctx, "record login success", id, map[string]any{
		"failed_login_attempts": 0,
		"lock_until":            nil,
		"last_login_at":         at.UTC(),
		"last_login_ip":         optionalString(ip),
		"updated_at":            at.UTC(),
	})
}

// UpdateRole changes the account role.
func (r *AccountRepository) UpdateRole(ctx context.Context, id string, role domain.Role, at time.Time) error {
	return r.update(ctx, "update role", id, map[string]any{
		"role":       string(role),
		"updated_at": at.UTC(),
	})
}

// UpdateStatus changes the account status. The active flag follows the status.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, at time.Time) error {
	return r.update(ctx, "update status", id, map[string]any{
		"status":     string(status),
		"is_active":  status == domain.AccountStatusActive,
		"updated_at": at.UTC(),
	})
}

// SoftDelete deactivates the account and scrubs its email and handle.
func (r *AccountRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "soft delete account", id, map[string]any{
		"status":     string(domain.AccountStatusDeactivated),
		"is_active":  false,
		"email":      domain.DeletedEmail(id),
		"handle":     nil,
		"updated_at": at.UTC(),
	})
}

func (r *AccountRepository) update(ctx context.Context, op, id string, set map[string]any) error {
	stmt, args, err := r.builder.Update(accountsTable).
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", op, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account        domain.Account
		role           string
		status         string
		handle         sql.NullString
		avatarURL      sql.NullString
		bio            sql.NullString
		lockUntil      sql.NullTime
		lastLoginAt    sql.NullTime
		lastLoginIP    sql.NullString
		registrationIP sql.NullString
		referredBy     sql.NullString
	)

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&handle,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&avatarURL,
		&bio,
		&role,
		&account.IsActive,
		&status,
		&account.EmailVerified,
		&account.FailedLoginAttempts,
		&lockUntil,
		&lastLoginAt,
		&lastLoginIP,
		&account.RegisteredAt,
		&registrationIP,
		&referredBy,
		&account.ReferralCode,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	account.Role = domain.Role(role)
	account.Status = domain.AccountStatus(status)
	account.Handle = nullableStringPtr(handle)
	account.AvatarURL = nullableStringPtr(avatarURL)
	account.Bio = nullableStringPtr(bio)
	account.LockUntil = nullableTimePtr(lockUntil)
	account.LastLoginAt = nullableTimePtr(lastLoginAt)
	account.LastLoginIP = nullableStringPtr(lastLoginIP)
	account.RegistrationIP = nullableStringPtr(registrationIP)
	account.ReferredBy = nullableStringPtr(referredBy)
	return &account, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
