package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khepriforge/auth-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes the authenticated account view returned by the API.
type AccountSummary struct {
	ID                  string      `json:"id"`
	Email               string      `json:"email"`
	Name                string      `json:"name"`
	Role                domain.Role `json:"role"`
	ForcePasswordChange bool        `json:"force_password_change"`
}

// LoginRequest defines the payload for the login endpoint. Presence checks
// happen in the use case so the missing-field branch is audited like any
// other failure.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Token string         `json:"token"`
	User  AccountSummary `json:"user"`
}

// LoginFailureResponse carries the structured login error. RemainingAttempts
// is present only for invalid-credential failures against a known window.
type LoginFailureResponse struct {
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	TraceID           string `json:"trace_id,omitempty"`
}

// PasswordChangeRequest captures a voluntary password change body.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordChangeResponse conveys the result of a password change. The session
// that performed the change is no longer trustworthy, so reauth_required tells
// the caller to log in again.
type PasswordChangeResponse struct {
	Message        string `json:"message"`
	ReauthRequired bool   `json:"reauth_required"`
}

// ForcePasswordChangeRequest captures the first-login rotation body.
type ForcePasswordChangeRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// TwoFactorSecretResponse returns the freshly generated enrollment secret.
type TwoFactorSecretResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// TwoFactorEnableRequest carries the verification code proving possession.
type TwoFactorEnableRequest struct {
	Code string `json:"code" binding:"required"`
}

// TwoFactorEnableResponse returns the single-use backup codes. They are shown
// once and never again.
type TwoFactorEnableResponse struct {
	Message     string   `json:"message"`
	BackupCodes []string `json:"backup_codes"`
}

// AuditEntryPayload describes an audit row in API responses.
type AuditEntryPayload struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	UserID       *string        `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email"`
	Status       string         `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditListResponse wraps audit rows for the activity page.
type AuditListResponse struct {
	Entries []AuditEntryPayload `json:"entries"`
	Total   int                 `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newAccountSummary converts an identity to the API account view.
func newAccountSummary(identity domain.Identity) AccountSummary {
	return AccountSummary{
		ID:                  identity.ID,
		Email:               identity.Email,
		Name:                identity.Name,
		Role:                identity.Role,
		ForcePasswordChange: identity.ForcePasswordChange,
	}
}

// newAuditEntryPayload converts a domain audit entry to an API payload.
func newAuditEntryPayload(entry domain.AuditEntry) AuditEntryPayload {
	return AuditEntryPayload{
		ID:           entry.ID,
		Action:       string(entry.Action),
		ResourceType: string(entry.ResourceType),
		UserID:       entry.UserID,
		UserEmail:    entry.UserEmail,
		Status:       string(entry.Status),
		ErrorMessage: entry.ErrorMessage,
		Details:      entry.Details,
		CreatedAt:    entry.CreatedAt,
	}
}
