package payment

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/middleware"
	"github.com/jcq/jcq-api/internal/pkg/errorhandler"
	"github.com/jcq/jcq-api/internal/pkg/logger"
	"github.com/jcq/jcq-api/internal/pkg/paygate"
	"github.com/jcq/jcq-api/internal/pkg/response"
	"github.com/jcq/jcq-api/internal/pkg/validator"
)

const maxWebhookBody = 1 << 20

// Handler handles payment HTTP requests
type Handler struct {
	service        *Service
	webhookTimeout time.Duration
}

// NewHandler creates payment handler. webhookTimeout bounds webhook
// processing so the gateway always gets an answer inside its retry window.
func NewHandler(service *Service, webhookTimeout time.Duration) *Handler {
	if webhookTimeout <= 0 {
		webhookTimeout = 15 * time.Second
	}
	return &Handler{service: service, webhookTimeout: webhookTimeout}
}

// CreateCheckout handles POST /payments/checkout
// @Summary Start an online purchase
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckoutRequest true "Game and optional chapter"
// @Success 201 {object} response.Response{data=CheckoutResponse}
// @Failure 400,404,409,502 {object} response.Response
// @Router /payments/checkout [post]
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	ctx := r.Context()
	resp, err := h.service.CreateCheckout(ctx, middleware.GetActorID(ctx), &req)
	if err != nil {
		errorhandler.HandleError(ctx, w, err)
		return
	}
	response.Created(w, resp)
}

// GetTransaction handles GET /payments/transactions/{id}
// @Summary Poll a transaction
// @Tags Payment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=StatusResponse}
// @Failure 400,404 {object} response.Response
// @Router /payments/transactions/{id} [get]
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction ID")
		return
	}

	ctx := r.Context()
	resp, err := h.service.TransactionStatus(ctx, middleware.GetActorID(ctx), id)
	if err != nil {
		errorhandler.HandleError(ctx, w, err)
		return
	}
	response.OK(w, resp)
}

// Webhook handles POST /webhooks/payment
// @Summary Payment gateway webhook
// @Description Verifies the HMAC signature of the raw body and settles confirmed payments.
// @Tags Payment Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} object{received=bool}
// @Failure 401 {object} response.Response
// @Router /webhooks/payment [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Unreadable body")
		return
	}

	// A gateway that hangs up must not abort a settlement halfway.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.webhookTimeout)
	defer cancel()

	if err := h.service.HandleWebhook(ctx, body, r.Header.Get(paygate.SignatureHeader)); err != nil {
		logger.LogWarn(ctx, "Webhook not accepted", "error", err.Error())
		errorhandler.HandleError(ctx, w, err)
		return
	}
	response.Raw(w, http.StatusOK, map[string]bool{"received": true})
}

// Routes returns payment router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/checkout", h.CreateCheckout)
		r.Get("/transactions/{id}", h.GetTransaction)
	})

	return r
}

// WebhookRoutes returns webhook router (no auth, but signature verification)
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payment", h.Webhook)
	return r
}
