package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go-auth-service/internal/docstore"
	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/internal/policy"
	"go-auth-service/internal/repository"
	"go-auth-service/pkg/apierror"
)

const AuditCollection = "audit_entries"

type AuditService struct {
	repo *repository.Repository[model.AuditEntry]
}

func NewAuditService(coll docstore.Collection) *AuditService {
	return &AuditService{repo: repository.New[model.AuditEntry](coll)}
}

func (s *AuditService) Log(ctx context.Context, action string, actorID string, targetID string, status string, detail string) {
	if s == nil {
		return
	}

	_, err := s.repo.Insert(ctx, model.AuditEntry{
		Action:   action,
		ActorID:  actorID,
		TargetID: targetID,
		Status:   status,
		Detail:   detail,
	})
	if err != nil {
		slog.Warn("audit entry not recorded", "action", action, "error", err)
	}
}

// Record is the bus consumer: every event becomes one audit entry.
func (s *AuditService) Record(ctx context.Context, e event.Event) {
	s.Log(ctx, string(e.Type), e.ActorID, e.TargetID, e.Status, e.Detail)
}

func (s *AuditService) Query(ctx context.Context, caller policy.Caller, query model.AuditQuery) (repository.Page[model.AuditEntry], error) {
	if err := policy.Authorize(caller, policy.AuditList, "").Err(); err != nil {
		return repository.Page[model.AuditEntry]{}, err
	}

	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return repository.Page[model.AuditEntry]{}, apierror.BadRequest("invalid 'from' datetime format", query.From)
	}
	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return repository.Page[model.AuditEntry]{}, apierror.BadRequest("invalid 'to' datetime format", query.To)
	}

	filter := docstore.NewFilter().
		Equal("action", strings.ToLower(strings.TrimSpace(query.Action))).
		Equal("status", strings.ToLower(strings.TrimSpace(query.Status))).
		Equal("actor_id", strings.TrimSpace(query.ActorID)).
		Since(docstore.FieldCreatedAt, from).
		Until(docstore.FieldCreatedAt, to)

	return s.repo.Paginate(ctx, filter,
		[]docstore.Sort{docstore.Desc(docstore.FieldCreatedAt)},
		repository.PageRequest{Page: query.Page, PerPage: query.PerPage})
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	return parseAuditTime(trimmed)
}

func parseAuditTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}
