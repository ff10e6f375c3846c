package purchase

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

// Handler handles purchase HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates purchase handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// History handles GET /purchases
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetActorID(r.Context())

	limit, offset := pagination(r)
	page, err := h.service.History(r.Context(), actorID, limit, offset)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.WithMeta(w, page.Items, response.Meta{
		Total:  page.Total,
		Limit:  limit,
		Offset: offset,
		More:   offset+len(page.Items) < page.Total,
	})
}

// ActorHistory handles GET /api/admin/purchases?actor_id=
func (h *Handler) ActorHistory(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(r.URL.Query().Get("actor_id"))
	if err != nil {
		response.BadRequest(w, "actor_id is required")
		return
	}

	limit, offset := pagination(r)
	page, err := h.service.History(r.Context(), actorID, limit, offset)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}

	response.WithMeta(w, page.Items, response.Meta{
		Total:  page.Total,
		Limit:  limit,
		Offset: offset,
		More:   offset+len(page.Items) < page.Total,
	})
}

// Grant handles POST /api/admin/purchases/grant
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	p, err := h.service.Grant(r.Context(), admin.GetAdminID(r.Context()), &req)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.Created(w, p)
}

// Refund handles POST /api/admin/purchases/{id}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid purchase ID")
		return
	}

	p, err := h.service.Refund(r.Context(), admin.GetAdminID(r.Context()), id)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, p)
}

// Routes returns player purchase routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.History)
	return r
}

// AdminRoutes returns admin purchase routes
func (h *Handler) AdminRoutes(adminAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(adminAuth)
	r.With(admin.RequirePermission(admin.PermViewPayments)).Get("/", h.ActorHistory)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequirePermission(admin.PermManagePurchases))
		r.Post("/grant", h.Grant)
		r.Post("/{id}/refund", h.Refund)
	})
	return r
}

func pagination(r *http.Request) (int, int) {
	limit, offset := 20, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
