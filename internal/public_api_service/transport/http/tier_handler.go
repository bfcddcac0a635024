package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/public_api_service/middleware"
	"github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

type TierService interface {
	CurrentTier(ctx context.Context, orgID, sitterID uuid.UUID) (*domain.Tier, error)
	MetricsForSitter(ctx context.Context, orgID, sitterID uuid.UUID, force bool) (*domain.SitterMetrics, error)
	ComputeTierForSitter(ctx context.Context, orgID, sitterID uuid.UUID, force bool) (*domain.Tier, error)
}

type TierHandler struct {
	service TierService
	logger  *slog.Logger
}

func NewTierHandler(service TierService, logger *slog.Logger) *TierHandler {
	return &TierHandler{
		service: service,
		logger:  logger.With("handler", "tier"),
	}
}

func (h *TierHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sitters/{sitterID}/tier", h.GetSitterTier)
	r.Post("/sitters/{sitterID}/tier/recompute", h.RecomputeSitterTier)
}

// GetSitterTier returns the sitter's current tier along with the performance
// metrics it was scored on.
func (h *TierHandler) GetSitterTier(w http.ResponseWriter, r *http.Request) {
	authUser, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sitterID, err := uuid.Parse(chi.URLParam(r, "sitterID"))
	if err != nil {
		http.Error(w, "Invalid sitter ID format", http.StatusBadRequest)
		return
	}

	tier, err := h.service.CurrentTier(r.Context(), authUser.OrgID, sitterID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to resolve sitter tier", err)
		return
	}
	metrics, err := h.service.MetricsForSitter(r.Context(), authUser.OrgID, sitterID, false)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load sitter metrics", err)
		return
	}

	writeJSON(w, http.StatusOK, SitterTierResponseDTO{
		SitterID: sitterID,
		Tier:     tierToDTO(tier),
		Metrics:  metricsToDTO(metrics),
	})
}

// RecomputeSitterTier forces a fresh scoring pass, bypassing the metrics
// staleness cache.
func (h *TierHandler) RecomputeSitterTier(w http.ResponseWriter, r *http.Request) {
	authUser, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sitterID, err := uuid.Parse(chi.URLParam(r, "sitterID"))
	if err != nil {
		http.Error(w, "Invalid sitter ID format", http.StatusBadRequest)
		return
	}

	tier, err := h.service.ComputeTierForSitter(r.Context(), authUser.OrgID, sitterID, true)
	if err != nil {
		h.writeDomainError(w, r, "Failed to recompute sitter tier", err)
		return
	}

	writeJSON(w, http.StatusOK, SitterTierResponseDTO{
		SitterID: sitterID,
		Tier:     tierToDTO(tier),
	})
}

func (h *TierHandler) writeDomainError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}
	h.logger.ErrorContext(r.Context(), msg, "error", err)
	http.Error(w, msg, http.StatusInternalServerError)
}
