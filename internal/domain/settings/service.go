package settings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/admin"
	"github.com/jcq/jcq-api/internal/pkg/logger"
	"github.com/jcq/jcq-api/internal/pkg/secretbox"
)

// Service reads and writes settings, encrypting secrets at rest.
type Service struct {
	repo     Repository
	box      *secretbox.Box
	defaults PaymentSettings
	auditor  admin.Auditor
	now      func() time.Time
}

// NewService creates settings service. defaults come from the environment
// and apply to any key not stored in the database.
func NewService(repo Repository, box *secretbox.Box, defaults PaymentSettings, auditor admin.Auditor) *Service {
	if auditor == nil {
		auditor = admin.NopAuditor{}
	}
	return &Service{repo: repo, box: box, defaults: defaults, auditor: auditor, now: time.Now}
}

// PaymentSettings returns the effective, decrypted payment settings. A
// stored secret that fails to decrypt is an integrity error and is never
// replaced by the default.
func (s *Service) PaymentSettings(ctx context.Context) (*PaymentSettings, error) {
	stored, err := s.repo.GetMany(ctx, paymentKeys)
	if err != nil {
		return nil, err
	}

	out := s.defaults
	for _, key := range paymentKeys {
		setting, ok := stored[key]
		if !ok {
			continue
		}
		value, err := s.reveal(setting)
		if err != nil {
			logger.LogError(ctx, err, "Stored setting failed to decrypt", "key", key)
			return nil, err
		}
		out.set(key, value)
	}
	return &out, nil
}

// PaymentView returns the settings with secrets masked.
func (s *Service) PaymentView(ctx context.Context) (*PaymentSettingsView, error) {
	stored, err := s.repo.GetMany(ctx, paymentKeys)
	if err != nil {
		return nil, err
	}

	view := &PaymentSettingsView{}
	for _, key := range paymentKeys {
		var f FieldView
		value := s.defaults.get(key)
		if value != "" {
			f.Source = "environment"
		}
		if setting, ok := stored[key]; ok {
			if value, err = s.reveal(setting); err != nil {
				return nil, err
			}
			f.Source = "database"
			updated := setting.UpdatedAt
			f.UpdatedAt = &updated
		}
		f.Configured = value != ""
		if f.Configured {
			if secretKeys[key] {
				f.Value = mask(value)
			} else {
				f.Value = value
			}
		}
		view.set(key, f)
	}
	return view, nil
}

// UpdatePayment stores the provided fields and returns the new view.
func (s *Service) UpdatePayment(ctx context.Context, adminID uuid.UUID, req *UpdatePaymentRequest) (*PaymentSettingsView, error) {
	now := s.now().UTC()
	var changes []Setting
	var changed []string

	for key, value := range req.values() {
		if value == nil {
			continue
		}
		setting := Setting{Key: key, IsSecret: secretKeys[key], UpdatedBy: &adminID, UpdatedAt: now}
		if *value != "" {
			if setting.IsSecret {
				ct, err := s.box.Encrypt(*value)
				if err != nil {
					return nil, fmt.Errorf("encrypt setting %s: %w", key, err)
				}
				setting.Value = ct
			} else {
				setting.Value = *value
			}
		}
		changes = append(changes, setting)
		changed = append(changed, key)
	}

	if len(changes) > 0 {
		if err := s.repo.Upsert(ctx, changes); err != nil {
			return nil, err
		}
		sort.Strings(changed)
		logger.LogInfo(ctx, "Payment settings updated", "admin_id", adminID, "keys", changed)
		s.auditor.Record(ctx, adminID, admin.ActionSettingsUpdate, admin.EntitySettings, uuid.Nil, nil, map[string]interface{}{"keys": changed})
	}
	return s.PaymentView(ctx)
}

func (s *Service) reveal(setting Setting) (string, error) {
	if !setting.IsSecret {
		return setting.Value, nil
	}
	return s.box.Decrypt(setting.Value)
}
