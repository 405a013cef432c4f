package domain

import "time"

// AuditAction enumerates the recorded operation kinds.
type AuditAction string

const (
	AuditActionLogin  AuditAction = "LOGIN"
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// AuditResource enumerates the resource types audit entries attach to.
type AuditResource string

const (
	AuditResourceSession AuditResource = "SESSION"
	AuditResourceUser    AuditResource = "USER"
)

// AuditStatus marks an audit entry as a success or a failure outcome.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "SUCCESS"
	AuditStatusFailure AuditStatus = "FAILURE"
)

// AuditEntry is one append-only row in khepri.audit_log. UserID is nil when
// the attempt never resolved to a known account.
type AuditEntry struct {
	ID           string
	Action       AuditAction
	ResourceType AuditResource
	UserID       *string
	UserEmail    string
	Status       AuditStatus
	ErrorMessage *string
	Details      map[string]any
	CreatedAt    time.Time
}
