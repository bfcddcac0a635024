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

	"github.com/snoutdesk/dispatch/internal/messaging_service/app"
	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
	"github.com/snoutdesk/dispatch/internal/public_api_service/middleware"
)

// AssignmentService routes threads to numbers and moves them between
// sitters; WindowChecker answers whether a sitter currently holds an open
// messaging window on a thread.
type AssignmentService interface {
	RouteThread(ctx context.Context, threadID uuid.UUID, input app.RouteThreadInput) (*domain.Thread, error)
	AssignSitter(ctx context.Context, input app.AssignSitterInput) (*app.AssignSitterResult, error)
	RoutingHistory(ctx context.Context, threadID uuid.UUID) ([]*domain.RoutingDecision, error)
}

type WindowChecker interface {
	CanSitterMessage(ctx context.Context, threadID, sitterID uuid.UUID) (bool, error)
}

type MessagingHandler struct {
	assignments AssignmentService
	windows     WindowChecker
	logger      *slog.Logger
	validate    *validator.Validate
}

func NewMessagingHandler(assignments AssignmentService, windows WindowChecker, logger *slog.Logger) *MessagingHandler {
	return &MessagingHandler{
		assignments: assignments,
		windows:     windows,
		logger:      logger.With("handler", "messaging"),
		validate:    validator.New(),
	}
}

func (h *MessagingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/threads/{threadID}/route", h.RouteThread)
	r.Post("/threads/{threadID}/assign", h.AssignSitter)
	r.Get("/threads/{threadID}/routing-history", h.RoutingHistory)
	r.Get("/threads/{threadID}/windows/sitters/{sitterID}", h.CanSitterMessage)
}

// RouteThread picks a number class for the thread, claims a number, and
// opens the provider session for masked classes.
func (h *MessagingHandler) RouteThread(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		http.Error(w, "Invalid thread ID format", http.StatusBadRequest)
		return
	}

	var reqDTO RouteThreadRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(r.Context(), reqDTO); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	thread, err := h.assignments.RouteThread(r.Context(), threadID, app.RouteThreadInput{
		Routing: domain.RoutingContext{
			SitterInvolved: reqDTO.SitterInvolved,
			MeetAndGreet:   reqDTO.MeetAndGreet,
			OneTimeClient:  reqDTO.OneTimeClient,
		},
		ClientPhone: reqDTO.ClientPhone,
		SitterPhone: reqDTO.SitterPhone,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to route thread", err)
		return
	}

	writeJSON(w, http.StatusOK, threadToDTO(thread))
}

// AssignSitter moves the thread to the sitter in the request body, or off
// its current sitter when sitter_id is null.
func (h *MessagingHandler) AssignSitter(w http.ResponseWriter, r *http.Request) {
	authUser, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		http.Error(w, "Invalid thread ID format", http.StatusBadRequest)
		return
	}

	var reqDTO AssignSitterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(r.Context(), reqDTO); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	var sitterID uuid.NullUUID
	if reqDTO.SitterID != nil {
		id, err := uuid.Parse(*reqDTO.SitterID)
		if err != nil {
			http.Error(w, "Invalid sitter ID format", http.StatusBadRequest)
			return
		}
		sitterID = uuid.NullUUID{UUID: id, Valid: true}
	}

	result, err := h.assignments.AssignSitter(r.Context(), app.AssignSitterInput{
		OrgID:       authUser.OrgID,
		ThreadID:    threadID,
		SitterID:    sitterID,
		Reason:      reqDTO.Reason,
		ActorID:     authUser.ID,
		ClientPhone: reqDTO.ClientPhone,
		SitterPhone: reqDTO.SitterPhone,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to assign sitter", err)
		return
	}

	writeJSON(w, http.StatusOK, assignSitterResultToDTO(result))
}

func (h *MessagingHandler) RoutingHistory(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		http.Error(w, "Invalid thread ID format", http.StatusBadRequest)
		return
	}

	decisions, err := h.assignments.RoutingHistory(r.Context(), threadID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load routing history", err)
		return
	}

	dtos := make([]RoutingDecisionResponseDTO, 0, len(decisions))
	for _, d := range decisions {
		dtos = append(dtos, routingDecisionToDTO(d))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *MessagingHandler) CanSitterMessage(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		http.Error(w, "Invalid thread ID format", http.StatusBadRequest)
		return
	}
	sitterID, err := uuid.Parse(chi.URLParam(r, "sitterID"))
	if err != nil {
		http.Error(w, "Invalid sitter ID format", http.StatusBadRequest)
		return
	}

	allowed, err := h.windows.CanSitterMessage(r.Context(), threadID, sitterID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to check messaging window", "error", err)
		http.Error(w, "Failed to check messaging window", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, CanMessageResponseDTO{
		ThreadID: threadID,
		SitterID: sitterID,
		Allowed:  allowed,
	})
}

func (h *MessagingHandler) writeDomainError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Resource not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrThreadClosed):
		http.Error(w, "Thread is closed", http.StatusConflict)
	case errors.Is(err, domain.ErrThreadConflict):
		http.Error(w, "Thread was modified concurrently", http.StatusConflict)
	case errors.Is(err, domain.ErrNoNumberAvailable):
		http.Error(w, "No pool number available", http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
