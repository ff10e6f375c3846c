package admin

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/pkg/errorhandler"
	"github.com/jcq/jcq-api/internal/pkg/response"
	"github.com/jcq/jcq-api/internal/pkg/validator"
)

// Handler handles admin HTTP requests
type Handler struct {
	service *Service
	jwtSvc  *JWTService
}

// NewHandler creates admin handler
func NewHandler(service *Service, jwtSvc *JWTService) *Handler {
	return &Handler{
		service: service,
		jwtSvc:  jwtSvc,
	}
}

// Login handles POST /admin/auth/login
// @Summary Admin login
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} response.Response{data=LoginResponse}
// @Failure 401 {object} response.Response
// @Router /admin/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	ip := r.Header.Get("X-Real-IP")
	if ip == "" {
		ip = r.RemoteAddr
	}

	admin, err := h.service.Login(r.Context(), req.Email, req.Password, ip)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	token, err := h.jwtSvc.GenerateToken(admin)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.OK(w, &LoginResponse{
		AccessToken: token,
		Admin:       AdminResponseFromEntity(admin),
	})
}

// Me handles GET /admin/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	admin, err := h.service.GetAdminByID(r.Context(), GetAdminID(r.Context()))
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, AdminResponseFromEntity(admin))
}

// AuditLogs handles GET /admin/audit/logs
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AuditFilter{Limit: 50}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 100 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		filter.Offset = v
	}
	if action := q.Get("action"); action != "" {
		filter.Action = &action
	}
	if entityType := q.Get("entity_type"); entityType != "" {
		filter.EntityType = &entityType
	}
	if entityID, err := uuid.Parse(q.Get("entity_id")); err == nil {
		filter.EntityID = &entityID
	}

	logs, total, err := h.service.ListAuditLogs(r.Context(), filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.WithMeta(w, logs, response.Meta{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		More:   filter.Offset+len(logs) < total,
	})
}
