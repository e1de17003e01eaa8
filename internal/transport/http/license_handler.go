// Package http contains the chi handlers for the license and activation
// APIs. Request bodies are decoded with go-chi/render and validated with
// go-playground/validator; errors render as RFC 7807 problems.
package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "licenseforge/internal/errors"
	"licenseforge/internal/services"
	"licenseforge/internal/store"
)

var validate = validator.New()

// LicenseHandler serves the license lifecycle and activation endpoints.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
	errors  *apperrors.ErrorHandler
	tracer  trace.Tracer
}

func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
		errors:  apperrors.NewErrorHandler(logger),
		tracer:  otel.Tracer("licenseforge/transport/http"),
	}
}

// Routes mounts the license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/key/{key}", h.GetByKey)
	r.Get("/app/{appID}", h.ListByApp)
	r.Get("/app/{appID}/active", h.ListActiveByApp)
	r.Get("/app/{appID}/expiring", h.ListExpiring)
	r.Get("/app/{appID}/count", h.CountActiveByApp)
	r.Get("/customer/{customerID}", h.ListByCustomer)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Put("/{id}/revoke", h.Revoke)
	r.Put("/{id}/reinstate", h.Reinstate)

	r.Post("/verify", h.Verify)
	r.Post("/activate", h.Activate)
	r.Post("/deactivate", h.Deactivate)
	r.Post("/validate", h.Validate)

	return r
}

type createLicenseRequest struct {
	AppID          string     `json:"app_id" validate:"required,max=64"`
	CustomerID     string     `json:"customer_id" validate:"max=64"`
	ExpiresAt      *time.Time `json:"expires_at"`
	MaxActivations int        `json:"max_activations" validate:"required,min=1"`
}

func (r *createLicenseRequest) Bind(*http.Request) error {
	return validate.Struct(r)
}

type updateLicenseRequest struct {
	CustomerID     *string    `json:"customer_id" validate:"omitempty,max=64"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiresAt bool       `json:"clear_expires_at"`
	MaxActivations *int       `json:"max_activations" validate:"omitempty,min=1"`
	Revoked        *bool      `json:"revoked"`
}

func (r *updateLicenseRequest) Bind(*http.Request) error {
	return validate.Struct(r)
}

type keyHardwareRequest struct {
	LicenseKey string `json:"license_key" validate:"required,max=64"`
	HardwareID string `json:"hardware_id" validate:"required,max=128"`
}

func (r *keyHardwareRequest) Bind(*http.Request) error {
	return validate.Struct(r)
}

func (h *LicenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "license.create")
	defer span.End()

	var req createLicenseRequest
	if err := render.Bind(r, &req); err != nil {
		h.errors.HandleError(w, r, apperrors.NewValidation(err.Error()))
		return
	}

	dto, err := h.service.CreateLicense(ctx, services.CreateLicenseRequest{
		AppID:          req.AppID,
		CustomerID:     req.CustomerID,
		ExpiresAt:      req.ExpiresAt,
		MaxActivations: req.MaxActivations,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("license.id", dto.ID.String()))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, dto)
}

func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.licenseID(w, r)
	if !ok {
		return
	}
	dto, err := h.service.GetLicense(r.Context(), id)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

func (h *LicenseHandler) GetByKey(w http.ResponseWriter, r *http.Request) {
	dto, err := h.service.GetLicenseByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

func (h *LicenseHandler) ListByApp(w http.ResponseWriter, r *http.Request) {
	dtos, err := h.service.ListByApp(r.Context(), chi.URLParam(r, "appID"), pageFromQuery(r))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dtos)
}

func (h *LicenseHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	dtos, err := h.service.ListByCustomer(r.Context(), chi.URLParam(r, "customerID"), pageFromQuery(r))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dtos)
}

func (h *LicenseHandler) ListActiveByApp(w http.ResponseWriter, r *http.Request) {
	dtos, err := h.service.ListActiveByApp(r.Context(), chi.URLParam(r, "appID"), pageFromQuery(r))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dtos)
}

// ListExpiring reports licenses whose expiry falls in [now, now+days].
func (h *LicenseHandler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.errors.HandleError(w, r, apperrors.NewValidation("days must be a positive integer"))
			return
		}
		days = parsed
	}

	now := time.Now().UTC()
	dtos, err := h.service.ListExpiring(r.Context(), chi.URLParam(r, "appID"),
		now, now.AddDate(0, 0, days), pageFromQuery(r))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dtos)
}

func (h *LicenseHandler) CountActiveByApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	n, err := h.service.CountActiveByApp(r.Context(), appID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"app_id": appID, "active_licenses": n})
}

func (h *LicenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.licenseID(w, r)
	if !ok {
		return
	}

	var req updateLicenseRequest
	if err := render.Bind(r, &req); err != nil {
		h.errors.HandleError(w, r, apperrors.NewValidation(err.Error()))
		return
	}

	dto, err := h.service.Update(r.Context(), id, services.UpdateLicenseRequest{
		CustomerID:     req.CustomerID,
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ClearExpiresAt,
		MaxActivations: req.MaxActivations,
		Revoked:        req.Revoked,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dto)
}

func (h *LicenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.licenseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *LicenseHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.setRevoked(w, r, true)
}

func (h *LicenseHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	h.setRevoked(w, r, false)
}

func (h *LicenseHandler) setRevoked(w http.ResponseWriter, r *http.Request, revoked bool) {
	id, ok := h.licenseID(w, r)
	if !ok {
		return
	}

	var changed bool
	var err error
	if revoked {
		changed, err = h.service.Revoke(r.Context(), id)
	} else {
		changed, err = h.service.Reinstate(r.Context(), id)
	}
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"id": id, "revoked": revoked, "changed": changed})
}

func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "license.verify")
	defer span.End()

	req, ok := h.keyHardware(w, r)
	if !ok {
		return
	}
	res, err := h.service.Verify(ctx, req.LicenseKey, req.HardwareID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Bool("license.verify.success", res.Success))
	render.JSON(w, r, res)
}

func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "license.activate")
	defer span.End()

	req, ok := h.keyHardware(w, r)
	if !ok {
		return
	}
	res, err := h.service.Activate(ctx, req.LicenseKey, req.HardwareID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("license.activate.success", res.Success),
		attribute.String("license.activate.status", string(res.Status)),
	)
	render.JSON(w, r, res)
}

func (h *LicenseHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "license.deactivate")
	defer span.End()

	req, ok := h.keyHardware(w, r)
	if !ok {
		return
	}
	res, err := h.service.Deactivate(ctx, req.LicenseKey, req.HardwareID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "license.validate")
	defer span.End()

	req, ok := h.keyHardware(w, r)
	if !ok {
		return
	}
	res, err := h.service.Validate(ctx, req.LicenseKey, req.HardwareID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

func (h *LicenseHandler) keyHardware(w http.ResponseWriter, r *http.Request) (*keyHardwareRequest, bool) {
	var req keyHardwareRequest
	if err := render.Bind(r, &req); err != nil {
		h.errors.HandleError(w, r, apperrors.NewValidation(err.Error()))
		return nil, false
	}
	return &req, true
}

func (h *LicenseHandler) licenseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.errors.HandleError(w, r, apperrors.NewValidation("id must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

func pageFromQuery(r *http.Request) store.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return store.Page{Number: page, Size: size}
}
