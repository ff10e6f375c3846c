package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcq/jcq-api/internal/domain/admin"
	"github.com/jcq/jcq-api/internal/pkg/errorhandler"
	"github.com/jcq/jcq-api/internal/pkg/response"
	"github.com/jcq/jcq-api/internal/pkg/validator"
)

// Handler handles settings HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates settings handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetPayment handles GET /admin/settings/payment
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.PaymentView(r.Context())
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, view)
}

// UpdatePayment handles PATCH /admin/settings/payment
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req UpdatePaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	view, err := h.service.UpdatePayment(r.Context(), admin.GetAdminID(r.Context()), &req)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, view)
}

// AdminRoutes returns settings routes, mounted under /admin/settings
func (h *Handler) AdminRoutes(adminAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(adminAuth)
	r.Use(admin.RequirePermission(admin.PermManageSettings))
	r.Get("/payment", h.GetPayment)
	r.Patch("/payment", h.UpdatePayment)
	return r
}
