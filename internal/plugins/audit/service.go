package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smart-asd/portal/internal/apperror"
)

// perPage is the number of events per page on the admin listing.
const perPage = 50

// AuditService handles business logic for the audit log. It validates
// events and delegates persistence to the repository.
type AuditService interface {
	// RecordEvent appends one event. Satisfies the auth plugin's
	// AuditRecorder.
	RecordEvent(ctx context.Context, action, resourceType, resourceID, severity string) error

	// ListEvents returns one page (1-indexed) of events, newest first,
	// optionally narrowed to one action.
	ListEvents(ctx context.Context, action string, page int) ([]Event, int, error)
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// RecordEvent validates and persists an event. An empty severity defaults
// to INFO. Write failures are logged here as well as returned, so callers
// may treat this as fire-and-forget.
func (s *auditService) RecordEvent(ctx context.Context, action, resourceType, resourceID, severity string) error {
	event := &Event{
		Action:       strings.ToUpper(strings.TrimSpace(action)),
		ResourceType: strings.TrimSpace(resourceType),
		ResourceID:   strings.TrimSpace(resourceID),
		Severity:     strings.ToUpper(strings.TrimSpace(severity)),
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	if event.Action == "" || len(event.Action) > maxActionLen {
		return apperror.NewBadRequest("audit action is required and must be at most 64 characters")
	}
	if event.ResourceType == "" || len(event.ResourceType) > maxResourceLen {
		return apperror.NewBadRequest("audit resource is required and must be at most 64 characters")
	}
	if len(event.ResourceID) > maxResourceIDLen {
		event.ResourceID = event.ResourceID[:maxResourceIDLen]
	}
	if !validSeverities[event.Severity] {
		return apperror.NewBadRequest(fmt.Sprintf("unknown audit severity %q", severity))
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		slog.Error("failed to write audit event",
			slog.String("action", event.Action),
			slog.String("resource", event.ResourceType),
			slog.Any("error", err),
		)
		return apperror.NewInternal(fmt.Errorf("writing audit event: %w", err))
	}

	return nil
}

// ListEvents returns one page of events. Invalid page numbers are clamped to 1.
func (s *auditService) ListEvents(ctx context.Context, action string, page int) ([]Event, int, error) {
	if page < 1 {
		page = 1
	}

	events, total, err := s.repo.ListRecent(ctx, strings.ToUpper(strings.TrimSpace(action)), perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing audit events: %w", err))
	}
	return events, total, nil
}
