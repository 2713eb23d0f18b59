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

const contactsTable = "portal.contact_messages"

var contactColumns = []string{
	"id",
	"name",
	"email",
	"subject",
	"message",
	"status",
	"account_id",
	"ip_address",
	"user_agent",
	"created_at",
	"updated_at",
}

// ContactRepository implements port.ContactRepository using PostgreSQL.
type ContactRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewContactRepository constructs a contact repository.
func NewContactRepository(exec pgExecutor) *ContactRepository {
	repo := &ContactRepository{exec: exec, builder: newBuilder()}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create inserts a contact submission.
func (r *ContactRepository) Create(ctx context.Context, message domain.ContactMessage) error {
	stmt, args, err := r.builder.Insert(contactsTable).
		Columns(contactColumns...).
		Values(
			message.ID,
			message.Name,
			message.Email,
			message.Subject,
			message.Message,
			string(message.Status),
			optionalString(message.AccountID),
			optionalString(message.IP),
			optionalString(message.UserAgent),
			message.CreatedAt.UTC(),
			message.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert contact sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// GetByID loads a contact submission.
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*domain.ContactMessage, error) {
	stmt, args, err := r.builder.
		Select(contactColumns...).
		From(contactsTable).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select contact sql: %w", err)
	}

	message, err := scanContact(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return message, nil
}

// List returns newest submissions first with the total match count.
func (r *ContactRepository) List(ctx context.Context, filter domain.ContactFilter) ([]domain.ContactMessage, int, error) {
	where := squirrel.And{}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": string(*filter.Status)})
	}

	countStmt, countArgs, err := r.builder.Select("COUNT(*)").From(contactsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count contacts sql: %w", err)
	}
	var total int
	if err := r.exec.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	stmt, args, err := r.builder.
		Select(contactColumns...).
		From(contactsTable).
		Where(where).
		OrderBy("created_at DESC", "id").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list contacts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.ContactMessage, 0)
	for rows.Next() {
		message, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		messages = append(messages, *message)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contacts: %w", err)
	}
	return messages, total, nil
}

// UpdateStatus changes the handling state of a submission.
func (r *ContactRepository) UpdateStatus(ctx context.Context, id string, status domain.ContactStatus, at time.Time) error {
	stmt, args, err := r.builder.Update(contactsTable).
		Set("status", string(status)).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update contact status sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update contact status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanContact(row pgx.Row) (*domain.ContactMessage, error) {
	var (
		message   domain.ContactMessage
		status    string
		accountID sql.NullString
		ip        sql.NullString
		userAgent sql.NullString
	)

	if err := row.Scan(
		&message.ID,
		&message.Name,
		&message.Email,
		&message.Subject,
		&message.Message,
		&status,
		&accountID,
		&ip,
		&userAgent,
		&message.CreatedAt,
		&message.UpdatedAt,
	); err != nil {
		return nil, err
	}

	message.Status = domain.ContactStatus(status)
	message.AccountID = nullableStringPtr(accountID)
	message.IP = nullableStringPtr(ip)
	message.UserAgent = nullableStringPtr(userAgent)
	return &message, nil
}

var _ port.ContactRepository = (*ContactRepository)(nil)
