package redeem

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/admin"
	"github.com/jcq/jcq-api/internal/middleware"
	"github.com/jcq/jcq-api/internal/pkg/errorhandler"
	"github.com/jcq/jcq-api/internal/pkg/response"
	"github.com/jcq/jcq-api/internal/pkg/validator"
)

// Handler handles redeem HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates redeem handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Redeem handles POST /redeem
// @Summary Redeem a code
// @Tags Redeem
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RedeemRequest true "Code"
// @Success 200 {object} response.Response{data=RedeemResponse}
// @Failure 400,404,409,429 {object} response.Response
// @Router /redeem [post]
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	ctx := r.Context()
	resp, err := h.service.Redeem(ctx, middleware.GetActorID(ctx), middleware.GetTenantID(ctx), req.Code)
	if err != nil {
		errorhandler.HandleError(ctx, w, err)
		return
	}
	response.OK(w, resp)
}

// CreateCode handles POST /admin/codes
func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req CreateCodeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	code, err := h.service.CreateCode(r.Context(), admin.GetAdminID(r.Context()), &req)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.Created(w, code)
}

// CreateBatch handles POST /admin/codes/batch
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchCreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	codes, err := h.service.CreateBatch(r.Context(), admin.GetAdminID(r.Context()), &req)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.Created(w, codes)
}

// UpdateCode handles PATCH /admin/codes/{id}
func (h *Handler) UpdateCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid code ID")
		return
	}

	var req UpdateCodeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	code, err := h.service.UpdateCode(r.Context(), admin.GetAdminID(r.Context()), id, &req)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, code)
}

// DeleteCode handles DELETE /admin/codes/{id}
func (h *Handler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid code ID")
		return
	}
	if err := h.service.DeleteCode(r.Context(), admin.GetAdminID(r.Context()), id); err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.NoContent(w)
}

// ListUses handles GET /admin/codes/{id}/uses
func (h *Handler) ListUses(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid code ID")
		return
	}
	uses, err := h.service.ListUses(r.Context(), id)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, uses)
}

// ListCodes handles GET /admin/games/{gameID}/codes
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		response.BadRequest(w, "Invalid game ID")
		return
	}

	limit, offset := 50, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	codes, total, err := h.service.ListCodes(r.Context(), gameID, limit, offset)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.WithMeta(w, codes, response.Meta{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		More:   offset+len(codes) < total,
	})
}

// Routes returns player redeem routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Redeem)
	return r
}

// AdminRoutes returns code management routes, mounted under /admin/codes
func (h *Handler) AdminRoutes(adminAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(adminAuth)
	r.Use(admin.RequirePermission(admin.PermManageCodes))

	r.Post("/", h.CreateCode)
	r.Post("/batch", h.CreateBatch)
	r.Patch("/{id}", h.UpdateCode)
	r.Delete("/{id}", h.DeleteCode)
	r.Get("/{id}/uses", h.ListUses)
	return r
}

// GameRoutes returns per-game code listing, mounted under /admin/games
func (h *Handler) GameRoutes(adminAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(adminAuth)
	r.Use(admin.RequirePermission(admin.PermManageCodes))

	r.Get("/{gameID}/codes", h.ListCodes)
	return r
}
