package entitlement

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/middleware"
	"github.com/jcq/jcq-api/internal/pkg/errorhandler"
	"github.com/jcq/jcq-api/internal/pkg/response"
)

// Handler handles entitlement HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates entitlement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /games/{gameID}/entitlement
// @Summary Get game entitlement
// @Tags Entitlement
// @Produce json
// @Security BearerAuth
// @Param gameID path string true "Game ID"
// @Success 200 {object} response.Response{data=Entitlement}
// @Failure 404 {object} response.Response
// @Router /games/{gameID}/entitlement [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		response.BadRequest(w, "Invalid game ID")
		return
	}

	ent, err := h.service.Get(r.Context(), middleware.GetActorID(r.Context()), gameID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, err)
		return
	}
	response.OK(w, ent)
}

// Routes returns entitlement routes, mounted under /games
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/{gameID}/entitlement", h.Get)
	return r
}
