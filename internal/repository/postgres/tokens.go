package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/repository"
)

const tokensTable = "portal.credential_tokens"

var tokenColumns = []string{
	"id",
	"account_id",
	"token_hash",
	"token_type",
	"expires_at",
	"used",
	"used_at",
	"ip_address",
	"user_agent",
	"created_at",
}

// TokenRepository implements port.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a new token repository.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	repo := &TokenRepository{exec: exec, builder: newBuilder()}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{pool: r.pool, exec: tx, builder: r.builder}
}

// Create inserts a token record.
func (r *TokenRepository) Create(ctx context.Context, token domain.CredentialToken) error {
	stmt, args, err := r.builder.Insert(tokensTable).
		Columns(tokenColumns...).
		Values(
			token.ID,
			token.AccountID,
			token.TokenHash,
			string(token.Type),
			token.ExpiresAt.UTC(),
			token.Used,
			optionalTime(token.UsedAt),
			optionalString(token.IP),
			optionalString(token.UserAgent),
			token.CreatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert token: %w", mapWriteError(err))
	}
	return nil
}

// GetByHash loads a token by its hash and purpose.
func (r *TokenRepository) GetByHash(ctx context.Context, hash string, tokenType domain.TokenType) (*domain.CredentialToken, error) {
	stmt, args, err := r.builder.
		Select(tokenColumns...).
		From(tokensTable).
		Where(squirrel.Eq{"token_hash": hash, "token_type": string(tokenType)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select token sql: %w", err)
	}

	var (
		token     domain.CredentialToken
		kind      string
		usedAt    sql.NullTime
		ip        sql.NullString
		userAgent sql.NullString
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&kind,
		&token.ExpiresAt,
		&token.Used,
		&usedAt,
		&ip,
		&userAgent,
		&token.CreatedAt,
	); err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	token.Type = domain.TokenType(kind)
	token.UsedAt = nullableTimePtr(usedAt)
	token.IP = nullableStringPtr(ip)
	token.UserAgent = nullableStringPtr(userAgent)
	return &token, nil
}

// Consume marks a token used when it is still unused and unexpired. Concurrent
// callers race on the guard and only one sees a row affected.
func (r *TokenRepository) Consume(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(tokensTable).
		Set("used", true).
		Set("used_at", at.UTC()).
		Where(squirrel.Eq{"id": id, "used": false}).
		Where(squirrel.Gt{"expires_at": at.UTC()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RevokeForAccount marks every outstanding token of the type used.
func (r *TokenRepository) RevokeForAccount(ctx context.Context, accountID string, tokenType domain.TokenType, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update(tokensTable).
		Set("used", true).
		Set("used_at", at.UTC()).
		Where(squirrel.Eq{"account_id": accountID, "token_type": string(tokenType), "used": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpired removes tokens whose expiry is before the cutoff.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(tokensTable).
		Where(squirrel.Lt{"expires_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
