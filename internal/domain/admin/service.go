package admin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/pkg/logger"
	"github.com/jcq/jcq-api/internal/pkg/password"
)

// Auditor records admin mutations. Failures are logged, never returned.
type Auditor interface {
	Record(ctx context.Context, adminID uuid.UUID, action, entityType string, entityID uuid.UUID, oldValue, newValue interface{})
}

// NopAuditor discards audit entries.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, uuid.UUID, string, string, uuid.UUID, interface{}, interface{}) {
}

// Service handles admin business logic
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates admin service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Login authenticates admin and returns the account
func (s *Service) Login(ctx context.Context, email, pwd, ip string) (*AdminUser, error) {
	admin, err := s.repo.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrInvalidCredentials
	}

	if !password.Verify(pwd, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !admin.IsActive {
		return nil, ErrAdminInactive
	}

	if err := s.repo.UpdateLastLogin(ctx, admin.ID, ip); err != nil {
		logger.LogWarn(ctx, "Failed to update admin last login", "admin_id", admin.ID, "error", err.Error())
	}
	return admin, nil
}

// GetAdminByID returns admin by ID
func (s *Service) GetAdminByID(ctx context.Context, id uuid.UUID) (*AdminUser, error) {
	admin, err := s.repo.GetAdminByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrAdminNotFound
	}
	return admin, nil
}

// ListAuditLogs returns audit logs
func (s *Service) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, int, error) {
	return s.repo.ListAuditLogs(ctx, filter)
}

// Record implements Auditor.
func (s *Service) Record(ctx context.Context, adminID uuid.UUID, action, entityType string, entityID uuid.UUID, oldValue, newValue interface{}) {
	email := ""
	if admin, err := s.repo.GetAdminByID(ctx, adminID); err == nil && admin != nil {
		email = admin.Email
	}

	entry := &AuditLog{
		ID:         uuid.New(),
		AdminID:    uuid.NullUUID{UUID: adminID, Valid: adminID != uuid.Nil},
		AdminEmail: email,
		Action:     action,
		EntityType: entityType,
		EntityID:   uuid.NullUUID{UUID: entityID, Valid: entityID != uuid.Nil},
		OldValue:   marshalValue(oldValue),
		NewValue:   marshalValue(newValue),
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		logger.LogError(ctx, err, "Failed to create audit log", "action", action, "entity_id", entityID)
	}
}

func marshalValue(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
