package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
)

// AuditRepository implements port.AuditRepository using PostgreSQL. The
// khepri.audit_log table is append-only; no update or delete path exists.
type AuditRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	repo := &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Append inserts a single audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	var detailsValue any
	if entry.Details != nil {
		payload, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		detailsValue = payload
	}

	var userIDValue any
	if entry.UserID != nil {
		userIDValue = *entry.UserID
	}

	var errorValue any
	if entry.ErrorMessage != nil {
		errorValue = *entry.ErrorMessage
	}

	stmt, args, err := r.builder.Insert("khepri.audit_log").
		Columns(
			"id",
			"action",
			"resource_type",
			"user_id",
			"user_email",
			"status",
			"error_message",
			"details",
			"created_at",
		).
		Values(
			entry.ID,
			entry.Action,
			entry.ResourceType,
			userIDValue,
			entry.UserEmail,
			entry.Status,
			errorValue,
			detailsValue,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit entry sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// List returns audit entries newest first, optionally filtered for the
// activity page.
func (r *AuditRepository) List(ctx context.Context, filter port.AuditFilter) ([]domain.AuditEntry, error) {
	query := r.builder.Select(
		"id",
		"action",
		"resource_type",
		"user_id",
		"user_email",
		"status",
		"error_message",
		"details",
		"created_at",
	).
		From("khepri.audit_log").
		OrderBy("created_at DESC")

	if filter.UserID != nil {
		query = query.Where(squirrel.Eq{"user_id": *filter.UserID})
	}
	if filter.Action != nil {
		query = query.Where(squirrel.Eq{"action": *filter.Action})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			entry    domain.AuditEntry
			userID   sql.NullString
			errorMsg sql.NullString
			details  []byte
		)

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.ResourceType,
			&userID,
			&entry.UserEmail,
			&entry.Status,
			&errorMsg,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		if userID.Valid {
			val := userID.String
			entry.UserID = &val
		}
		if errorMsg.Valid {
			val := errorMsg.String
			entry.ErrorMessage = &val
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
