// Package audit records security-relevant events (registrations,
// verifications, password resets, logouts) to the audit_log table and lets
// administrators read them back.
//
// Audit writes never block the operation being audited: callers log and
// move on when RecordEvent fails.
package audit

import "time"

// Severity levels accepted by the audit_log table.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// validSeverities mirrors the column's ENUM.
var validSeverities = map[string]bool{
	SeverityInfo:     true,
	SeverityWarning:  true,
	SeverityCritical: true,
}

// Field limits, matching the column widths.
const (
	maxActionLen     = 64
	maxResourceLen   = 64
	maxResourceIDLen = 255
)

// Event is a single row of the audit log. ResourceID identifies the subject
// (a user ID or email for auth events).
type Event struct {
	ID           int64     `json:"id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource"`
	ResourceID   string    `json:"resourceId,omitempty"`
	Severity     string    `json:"severity"`
	CreatedAt    time.Time `json:"createdAt"`
}
