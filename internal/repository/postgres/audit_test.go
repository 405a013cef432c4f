package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
)

func TestAuditRepository_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)

	userID := "account-1"
	entry := domain.AuditEntry{
		ID:           "audit-1",
		Action:       domain.AuditActionLogin,
		ResourceType: domain.AuditResourceSession,
		UserID:       &userID,
		UserEmail:    "dev@khepriforge.example.com",
		Status:       domain.AuditStatusSuccess,
		Details: map[string]any{
			"ip": "203.0.113.5",
		},
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO khepri\.audit_log`).
		WithArgs(
			entry.ID,
			entry.Action,
			entry.ResourceType,
			userID,
			entry.UserEmail,
			entry.Status,
			nil,
			pgxmock.AnyArg(),
			entry.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditRepository_AppendWithoutUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)

	errMsg := "Invalid credentials"
	entry := domain.AuditEntry{
		ID:           "audit-2",
		Action:       domain.AuditActionLogin,
		ResourceType: domain.AuditResourceSession,
		UserEmail:    "ghost@khepriforge.example.com",
		Status:       domain.AuditStatusFailure,
		ErrorMessage: &errMsg,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO khepri\.audit_log`).
		WithArgs(
			entry.ID,
			entry.Action,
			entry.ResourceType,
			nil,
			entry.UserEmail,
			entry.Status,
			errMsg,
			nil,
			entry.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditRepository_ListFiltered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)

	now := time.Now().UTC()
	userID := "account-1"

	rows := pgxmock.NewRows([]string{
		"id", "action", "resource_type", "user_id", "user_email", "status", "error_message", "details", "created_at",
	}).AddRow(
		"audit-2", domain.AuditActionLogin, domain.AuditResourceSession, userID, "dev@khepriforge.example.com", domain.AuditStatusSuccess, nil, []byte(`{"ip":"203.0.113.5"}`), now,
	).AddRow(
		"audit-1", domain.AuditActionUpdate, domain.AuditResourceUser, userID, "dev@khepriforge.example.com", domain.AuditStatusSuccess, nil, nil, now.Add(-time.Hour),
	)

	mock.ExpectQuery(`SELECT .*FROM khepri\.audit_log`).
		WithArgs(userID).
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), port.AuditFilter{UserID: &userID, Limit: 50})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].ID != "audit-2" || entries[1].ID != "audit-1" {
		t.Fatalf("unexpected entry order: %+v", entries)
	}
	if entries[0].Details["ip"] != "203.0.113.5" {
		t.Fatalf("expected details to round trip, got %+v", entries[0].Details)
	}
	if entries[1].Details != nil {
		t.Fatalf("expected nil details on second entry")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
