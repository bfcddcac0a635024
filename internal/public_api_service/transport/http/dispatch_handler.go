package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/dispatch_service/app"
	"github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
	"github.com/snoutdesk/dispatch/internal/public_api_service/middleware"
)

// DispatchService is the slice of the dispatcher the HTTP layer consumes.
type DispatchService interface {
	Dispatch(ctx context.Context, bookingID uuid.UUID) (*domain.Offer, error)
	AcceptOffer(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error)
	DeclineOffer(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error)
	ExpireDueOffers(ctx context.Context) (app.SweepResult, error)
	ForceAssign(ctx context.Context, bookingID, sitterID uuid.UUID) (*domain.Booking, error)
	ResumeAuto(ctx context.Context, bookingID uuid.UUID) (*domain.Offer, error)
	AttentionQueue(ctx context.Context, orgID uuid.UUID) ([]*domain.Booking, error)
}

type DispatchHandler struct {
	service  DispatchService
	logger   *slog.Logger
	validate *validator.Validate
}

func NewDispatchHandler(service DispatchService, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{
		service:  service,
		logger:   logger.With("handler", "dispatch"),
		validate: validator.New(),
	}
}

func (h *DispatchHandler) RegisterRoutes(r chi.Router) {
	r.Post("/bookings/{bookingID}/dispatch", h.DispatchBooking)
	r.Post("/bookings/{bookingID}/force-assign", h.ForceAssign)
	r.Post("/bookings/{bookingID}/resume-auto", h.ResumeAuto)
	r.Post("/offers/{offerID}/accept", h.AcceptOffer)
	r.Post("/offers/{offerID}/decline", h.DeclineOffer)
	r.Post("/offers/expire", h.ExpireDueOffers)
	r.Get("/dispatch/attention", h.AttentionQueue)
}

// DispatchBooking starts (or restarts) automated dispatch for a booking and
// returns the offer sent to the best eligible sitter.
func (h *DispatchHandler) DispatchBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "Invalid booking ID format", http.StatusBadRequest)
		return
	}

	offer, err := h.service.Dispatch(r.Context(), bookingID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to dispatch booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, offerToDTO(offer))
}

func (h *DispatchHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "offerID"))
	if err != nil {
		http.Error(w, "Invalid offer ID format", http.StatusBadRequest)
		return
	}

	offer, err := h.service.AcceptOffer(r.Context(), offerID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to accept offer", err)
		return
	}

	writeJSON(w, http.StatusOK, offerToDTO(offer))
}

func (h *DispatchHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "offerID"))
	if err != nil {
		http.Error(w, "Invalid offer ID format", http.StatusBadRequest)
		return
	}

	offer, err := h.service.DeclineOffer(r.Context(), offerID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to decline offer", err)
		return
	}

	writeJSON(w, http.StatusOK, offerToDTO(offer))
}

// ExpireDueOffers runs one expiry sweep on demand. The sweep worker runs the
// same pass on a timer; this endpoint exists for operators and tests.
func (h *DispatchHandler) ExpireDueOffers(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ExpireDueOffers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Expiry sweep failed", "error", err)
		http.Error(w, "Failed to expire offers", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, SweepResponseDTO{
		ExpiredCount:           result.ExpiredCount,
		BookingsReturnedToPool: result.BookingsReturnedToPool,
		ManualEscalations:      result.ManualEscalations,
	})
}

func (h *DispatchHandler) ForceAssign(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "Invalid booking ID format", http.StatusBadRequest)
		return
	}

	var reqDTO ForceAssignRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(r.Context(), reqDTO); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	sitterID, err := uuid.Parse(reqDTO.SitterID)
	if err != nil {
		http.Error(w, "Invalid sitter ID format", http.StatusBadRequest)
		return
	}

	booking, err := h.service.ForceAssign(r.Context(), bookingID, sitterID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to force-assign booking", err)
		return
	}

	writeJSON(w, http.StatusOK, bookingToDTO(booking))
}

func (h *DispatchHandler) ResumeAuto(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "Invalid booking ID format", http.StatusBadRequest)
		return
	}

	offer, err := h.service.ResumeAuto(r.Context(), bookingID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to resume automated dispatch", err)
		return
	}

	writeJSON(w, http.StatusCreated, offerToDTO(offer))
}

// AttentionQueue lists the caller org's bookings waiting on a human.
func (h *DispatchHandler) AttentionQueue(w http.ResponseWriter, r *http.Request) {
	authUser, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	bookings, err := h.service.AttentionQueue(r.Context(), authUser.OrgID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list attention queue", "error", err)
		http.Error(w, "Failed to list attention queue", http.StatusInternalServerError)
		return
	}

	dtos := make([]BookingResponseDTO, 0, len(bookings))
	for _, b := range bookings {
		dtos = append(dtos, bookingToDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *DispatchHandler) writeDomainError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var transitionErr *domain.InvalidTransitionError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Resource not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrOfferNotPending):
		http.Error(w, "Offer is no longer pending", http.StatusConflict)
	case errors.Is(err, domain.ErrBookingAlreadyAssigned):
		http.Error(w, "Booking is already assigned", http.StatusConflict)
	case errors.Is(err, domain.ErrDuplicateActiveOffer):
		http.Error(w, "Booking already has an active offer", http.StatusConflict)
	case errors.As(err, &transitionErr):
		http.Error(w, transitionErr.Error(), http.StatusConflict)
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
