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

const grantsTable = "portal.access_grants"

var grantColumns = []string{
	"id",
	"account_id",
	"resource",
	"status",
	"reason",
	"reviewer_id",
	"reviewer_message",
	"reviewed_at",
	"expires_at",
	"ip_address",
	"user_agent",
	"created_at",
	"updated_at",
}

// GrantRepository implements port.GrantRepository using PostgreSQL.
type GrantRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewGrantRepository constructs a grant repository.
func NewGrantRepository(exec pgExecutor) *GrantRepository {
	repo := &GrantRepository{exec: exec, builder: newBuilder()}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *GrantRepository) WithTx(tx pgx.Tx) *GrantRepository {
	if tx == nil {
		return r
	}
	return &GrantRepository{pool: r.pool, exec: tx, builder: r.builder}
}

// Create inserts a grant. The partial unique index on pending rows surfaces as repository.ErrConflict.
func (r *GrantRepository) Create(ctx context.Context, grant domain.AccessGrant) error {
	stmt, args, err := r.builder.Insert(grantsTable).
		Columns(grantColumns...).
		Values(
			grant.ID,
			grant.AccountID,
			string(grant.Resource),
			string(grant.Status),
			grant.Reason,
			optionalString(grant.ReviewerID),
			optionalString(grant.ReviewerMessage),
			optionalTime(grant.ReviewedAt),
			optionalTime(grant.ExpiresAt),
			optionalString(grant.IP),
			optionalString(grant.UserAgent),
			grant.CreatedAt.UTC(),
			grant.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert grant sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert grant: %w", mapWriteError(err))
	}
	return nil
}

// GetByID loads a grant by identifier.
func (r *GrantRepository) GetByID(ctx context.Context, id string) (*domain.AccessGrant, error) {
	stmt, args, err := r.builder.
		Select(grantColumns...).
		From(grantsTable).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select grant sql: %w", err)
	}
	return r.queryOne(ctx, stmt, args)
}

// FindActive returns the approved, unexpired grant for the account and resource.
func (r *GrantRepository) FindActive(ctx context.Context, accountID string, resource domain.Resource, at time.Time) (*domain.AccessGrant, error) {
	stmt, args, err := r.builder.
		Select(grantColumns...).
		From(grantsTable).
		Where(squirrel.Eq{
			"account_id": accountID,
			"resource":   string(resource),
			"status":     string(domain.GrantStatusApproved),
		}).
		Where(squirrel.Or{
			squirrel.Eq{"expires_at": nil},
			squirrel.Gt{"expires_at": at.UTC()},
		}).
		OrderBy("reviewed_at DESC NULLS LAST").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active grant sql: %w", err)
	}
	return r.queryOne(ctx, stmt, args)
}

// List returns a page of grants matching the filter and the total match count.
func (r *GrantRepository) List(ctx context.Context, filter domain.GrantFilter) ([]domain.AccessGrant, int, error) {
	where := squirrel.And{}
	if filter.AccountID != nil {
		where = append(where, squirrel.Eq{"account_id": *filter.AccountID})
	}
	if filter.Resource != nil {
		where = append(where, squirrel.Eq{"resource": string(*filter.Resource)})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": string(*filter.Status)})
	}

	countStmt, countArgs, err := r.builder.Select("COUNT(*)").From(grantsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count grants sql: %w", err)
	}
	var total int
	if err := r.exec.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count grants: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	stmt, args, err := r.builder.
		Select(grantColumns...).
		From(grantsTable).
		Where(where).
		OrderBy("created_at DESC", "id").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	grants := make([]domain.AccessGrant, 0)
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, *grant)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, total, nil
}

// Review moves a pending grant to approved or denied. Returns repository.ErrNotFound
// when the grant is missing or no longer pending.
func (r *GrantRepository) Review(ctx context.Context, review domain.GrantReview) (*domain.AccessGrant, error) {
	stmt, args, err := r.builder.Update(grantsTable).
		Set("status", string(review.Status)).
		Set("reviewer_id", review.ReviewerID).
		Set("reviewer_message", optionalString(review.Message)).
		Set("reviewed_at", review.ReviewedAt.UTC()).
		Set("expires_at", optionalTime(review.ExpiresAt)).
		Set("updated_at", review.ReviewedAt.UTC()).
		Where(squirrel.Eq{"id": review.GrantID, "status": string(domain.GrantStatusPending)}).
		Suffix("RETURNING " + strings.Join(grantColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build review grant sql: %w", err)
	}
	return r.queryOne(ctx, stmt, args)
}

// Revoke moves an approved grant to revoked. Returns repository.ErrNotFound when
// the grant is missing or not approved.
func (r *GrantRepository) Revoke(ctx context.Context, id string, reviewerID string, at time.Time) (*domain.AccessGrant, error) {
	stmt, args, err := r.builder.Update(grantsTable).
		Set("status", string(domain.GrantStatusRevoked)).
		Set("reviewer_id", reviewerID).
		Set("reviewed_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id, "status": string(domain.GrantStatusApproved)}).
		Suffix("RETURNING " + strings.Join(grantColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build revoke grant sql: %w", err)
	}
	return r.queryOne(ctx, stmt, args)
}

// Stats counts grants per resource and status.
func (r *GrantRepository) Stats(ctx context.Context) ([]domain.GrantStat, error) {
	stmt, args, err := r.builder.
		Select("resource", "status", "COUNT(*)").
		From(grantsTable).
		GroupBy("resource", "status").
		OrderBy("resource", "status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build grant stats sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query grant stats: %w", err)
	}
	defer rows.Close()

	stats := make([]domain.GrantStat, 0)
	for rows.Next() {
		var (
			resource string
			status   string
			count    int
		)
		if err := rows.Scan(&resource, &status, &count); err != nil {
			return nil, fmt.Errorf("scan grant stat: %w", err)
		}
		stats = append(stats, domain.GrantStat{
			Resource: domain.Resource(resource),
			Status:   domain.GrantStatus(status),
			Count:    count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grant stats: %w", err)
	}
	return stats, nil
}

// Purge deletes reviewed grants last updated before the cutoff.
func (r *GrantRepository) Purge(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(grantsTable).
		Where(squirrel.NotEq{"status": string(domain.GrantStatusPending)}).
		Where(squirrel.Lt{"updated_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge grants sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge grants: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *GrantRepository) queryOne(ctx context.Context, stmt string, args []any) (*domain.AccessGrant, error) {
	grant, err := scanGrant(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	return grant, nil
}

func scanGrant(row pgx.Row) (*domain.AccessGrant, error) {
	var (
		grant           domain.AccessGrant
		resource        string
		status          string
		reviewerID      sql.NullString
		reviewerMessage sql.NullString
		reviewedAt      sql.NullTime
		expiresAt       sql.NullTime
		ip              sql.NullString
		userAgent       sql.NullString
	)

	if err := row.Scan(
		&grant.ID,
		&grant.AccountID,
		&resource,
		&status,
		&grant.Reason,
		&reviewerID,
		&reviewerMessage,
		&reviewedAt,
		&expiresAt,
		&ip,
		&userAgent,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	); err != nil {
		return nil, err
	}

	grant.Resource = domain.Resource(resource)
	grant.Status = domain.GrantStatus(status)
	grant.ReviewerID = nullableStringPtr(reviewerID)
	grant.ReviewerMessage = nullableStringPtr(reviewerMessage)
	grant.ReviewedAt = nullableTimePtr(reviewedAt)
	grant.ExpiresAt = nullableTimePtr(expiresAt)
	grant.IP = nullableStringPtr(ip)
	grant.UserAgent = nullableStringPtr(userAgent)
	return &grant, nil
}

var _ port.GrantRepository = (*GrantRepository)(nil)
