package admin

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines admin data access
type Repository interface {
	GetAdminByID(ctx context.Context, id uuid.UUID) (*AdminUser, error)
	GetAdminByEmail(ctx context.Context, email string) (*AdminUser, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, ip string) error

	CreateAuditLog(ctx context.Context, log *AuditLog) error
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, int, error)
}

// AuditFilter for filtering audit logs
type AuditFilter struct {
	AdminID    *uuid.UUID
	Action     *string
	EntityType *string
	EntityID   *uuid.UUID
	Limit      int
	Offset     int
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates admin repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetAdminByID(ctx context.Context, id uuid.UUID) (*AdminUser, error) {
	return r.getAdmin(ctx, `SELECT * FROM admin_users WHERE id = $1`, id)
}

func (r *repository) GetAdminByEmail(ctx context.Context, email string) (*AdminUser, error) {
	return r.getAdmin(ctx, `SELECT * FROM admin_users WHERE lower(email) = lower($1)`, email)
}

func (r *repository) getAdmin(ctx context.Context, query string, arg interface{}) (*AdminUser, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var admin AdminUser
	if err := r.db.GetContext(ctx, &admin, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

func (r *repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, ip string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE admin_users SET last_login_at = NOW(), last_login_ip = $2 WHERE id = $1`, id, ip)
	return err
}

func (r *repository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, admin_id, admin_email, action, entity_type, entity_id, old_value, new_value, created_at)
		VALUES (:id, :admin_id, :admin_email, :action, :entity_type, :entity_id, :old_value, :new_value, :created_at)
	`, log)
	return err
}

func (r *repository) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := ` WHERE 1=1`
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		where += ` AND ` + column + ` = $` + strconv.Itoa(len(args))
	}
	if filter.AdminID != nil {
		add("admin_id", *filter.AdminID)
	}
	if filter.Action != nil {
		add("action", *filter.Action)
	}
	if filter.EntityType != nil {
		add("entity_type", *filter.EntityType)
	}
	if filter.EntityID != nil {
		add("entity_id", *filter.EntityID)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	page := append(args, limit, offset)
	query := `SELECT * FROM audit_logs` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)

	logs := []*AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, page...); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
