package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditRepository defines the data access contract for the audit log.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type AuditRepository interface {
	// Insert appends an event and fills in its ID.
	Insert(ctx context.Context, event *Event) error

	// ListRecent returns events newest first, optionally narrowed to one
	// action. Also returns the total matching count for pagination.
	ListRecent(ctx context.Context, action string, limit, offset int) ([]Event, int, error)
}

// auditRepository implements AuditRepository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Insert writes a new row. A zero CreatedAt is set to now (UTC).
func (r *auditRepository) Insert(ctx context.Context, event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, resource, resource_id, severity, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.Action, event.ResourceType, event.ResourceID, event.Severity, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit event id: %w", err)
	}
	event.ID = id
	return nil
}

// ListRecent pages through the log, newest first.
func (r *auditRepository) ListRecent(ctx context.Context, action string, limit, offset int) ([]Event, int, error) {
	where := ""
	args := []any{}
	if action != "" {
		where = "WHERE action = ?"
		args = append(args, action)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit events: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, resource, resource_id, severity, created_at
		 FROM audit_log `+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Severity, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating audit events: %w", err)
	}

	return events, total, nil
}
