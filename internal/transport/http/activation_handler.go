package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	apperrors "licenseforge/internal/errors"
	"licenseforge/internal/services"
)

// ActivationHandler serves the activation administration endpoints.
type ActivationHandler struct {
	service services.ActivationService
	logger  *slog.Logger
	errors  *apperrors.ErrorHandler
}

func NewActivationHandler(service services.ActivationService, logger *slog.Logger) *ActivationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivationHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "activation")),
		errors:  apperrors.NewErrorHandler(logger),
	}
}

// Routes mounts the activation endpoints.
func (h *ActivationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.Get)
	r.Get("/license/{licenseID}", h.ListByLicense)
	r.Get("/license/{licenseID}/hardware/{hardwareID}", h.GetByHardware)
	r.Get("/license/{licenseID}/count", h.Count)
	r.Get("/inactive", h.ListInactive)
	r.Put("/{id}/heartbeat", h.Heartbeat)
	r.Delete("/{id}", h.Delete)

	return r
}

func (h *ActivationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activationID(w, r)
	if !ok {
		return
	}
	dto, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

func (h *ActivationHandler) GetByHardware(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := h.uuidParam(w, r, "licenseID")
	if !ok {
		return
	}
	dto, err := h.service.GetByHardware(r.Context(), licenseID, chi.URLParam(r, "hardwareID"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

func (h *ActivationHandler) ListByLicense(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := h.uuidParam(w, r, "licenseID")
	if !ok {
		return
	}
	dtos, err := h.service.ListByLicense(r.Context(), licenseID, pageFromQuery(r))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dtos)
}

func (h *ActivationHandler) Count(w http.ResponseWriter, r *http.Request) {
	licenseID, ok := h.uuidParam(w, r, "licenseID")
	if !ok {
		return
	}
	n, err := h.service.Count(r.Context(), licenseID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"license_id": licenseID, "activation_count": n})
}

// ListInactive reports activations not seen for the given number of days
// (default 30).
func (h *ActivationHandler) ListInactive(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.errors.HandleError(w, r, apperrors.NewValidation("days must be a positive integer"))
			return
		}
		days = parsed
	}

	threshold := time.Now().UTC().AddDate(0, 0, -days)
	dtos, err := h.service.ListInactive(r.Context(), threshold, pageFromQuery(r))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dtos)
}

func (h *ActivationHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activationID(w, r)
	if !ok {
		return
	}
	dto, err := h.service.Heartbeat(r.Context(), id)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

func (h *ActivationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activationID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *ActivationHandler) activationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return h.uuidParam(w, r, "id")
}

func (h *ActivationHandler) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.errors.HandleError(w, r, apperrors.NewValidation(name+" must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}
