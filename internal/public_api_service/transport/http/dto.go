package http

import (
	"time"

	"github.com/google/uuid"

	dispatchdomain "github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
	messagingapp "github.com/snoutdesk/dispatch/internal/messaging_service/app"
	messagingdomain "github.com/snoutdesk/dispatch/internal/messaging_service/domain"
	tierdomain "github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

// --- Dispatch DTOs ---

type ForceAssignRequestDTO struct {
	SitterID string `json:"sitter_id" validate:"required,uuid"`
}

type OfferResponseDTO struct {
	ID         uuid.UUID  `json:"id"`
	BookingID  uuid.UUID  `json:"booking_id"`
	SitterID   uuid.UUID  `json:"sitter_id"`
	Status     string     `json:"status"`
	OfferedAt  time.Time  `json:"offered_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt *time.Time `json:"declined_at,omitempty"`
}

func offerToDTO(o *dispatchdomain.Offer) OfferResponseDTO {
	dto := OfferResponseDTO{
		ID:        o.ID,
		BookingID: o.BookingID,
		SitterID:  o.SitterID,
		Status:    string(o.Status),
		OfferedAt: o.OfferedAt,
		ExpiresAt: o.ExpiresAt,
	}
	if o.AcceptedAt.Valid {
		t := o.AcceptedAt.Time
		dto.AcceptedAt = &t
	}
	if o.DeclinedAt.Valid {
		t := o.DeclinedAt.Time
		dto.DeclinedAt = &t
	}
	return dto
}

type BookingResponseDTO struct {
	ID                   uuid.UUID  `json:"id"`
	ClientID             uuid.UUID  `json:"client_id"`
	SitterID             *uuid.UUID `json:"sitter_id,omitempty"`
	Service              string     `json:"service"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	Status               string     `json:"status"`
	DispatchStatus       string     `json:"dispatch_status"`
	ManualDispatchReason string     `json:"manual_dispatch_reason,omitempty"`
	ManualDispatchAt     *time.Time `json:"manual_dispatch_at,omitempty"`
}

func bookingToDTO(b *dispatchdomain.Booking) BookingResponseDTO {
	dto := BookingResponseDTO{
		ID:             b.ID,
		ClientID:       b.ClientID,
		Service:        b.Service,
		StartAt:        b.StartAt,
		EndAt:          b.EndAt,
		Status:         string(b.Status),
		DispatchStatus: string(b.DispatchStatus),
	}
	if b.SitterID.Valid {
		id := b.SitterID.UUID
		dto.SitterID = &id
	}
	if b.ManualDispatchReason.Valid {
		dto.ManualDispatchReason = b.ManualDispatchReason.String
	}
	if b.ManualDispatchAt.Valid {
		t := b.ManualDispatchAt.Time
		dto.ManualDispatchAt = &t
	}
	return dto
}

type SweepResponseDTO struct {
	ExpiredCount           int `json:"expired_count"`
	BookingsReturnedToPool int `json:"bookings_returned_to_pool"`
	ManualEscalations      int `json:"manual_escalations"`
}

// --- Messaging DTOs ---

type RouteThreadRequestDTO struct {
	ClientPhone    string `json:"client_phone" validate:"required,e164"`
	SitterPhone    string `json:"sitter_phone,omitempty" validate:"omitempty,e164"`
	SitterInvolved bool   `json:"sitter_involved"`
	MeetAndGreet   bool   `json:"meet_and_greet"`
	OneTimeClient  bool   `json:"one_time_client"`
}

type AssignSitterRequestDTO struct {
	SitterID    *string `json:"sitter_id" validate:"omitempty,uuid"`
	Reason      string  `json:"reason" validate:"required"`
	ClientPhone string  `json:"client_phone,omitempty" validate:"omitempty,e164"`
	SitterPhone string  `json:"sitter_phone,omitempty" validate:"omitempty,e164"`
}

type AssignSitterResponseDTO struct {
	ThreadID     uuid.UUID         `json:"thread_id"`
	FromSitterID *uuid.UUID        `json:"from_sitter_id,omitempty"`
	ToSitterID   *uuid.UUID        `json:"to_sitter_id,omitempty"`
	AuditID      *uuid.UUID        `json:"audit_id,omitempty"`
	Thread       ThreadResponseDTO `json:"thread"`
}

func assignSitterResultToDTO(res *messagingapp.AssignSitterResult) AssignSitterResponseDTO {
	dto := AssignSitterResponseDTO{
		ThreadID: res.Thread.ID,
		Thread:   threadToDTO(res.Thread),
	}
	if res.FromSitterID.Valid {
		id := res.FromSitterID.UUID
		dto.FromSitterID = &id
	}
	if res.ToSitterID.Valid {
		id := res.ToSitterID.UUID
		dto.ToSitterID = &id
	}
	if res.AuditID != uuid.Nil {
		id := res.AuditID
		dto.AuditID = &id
	}
	return dto
}

type ThreadResponseDTO struct {
	ID           uuid.UUID  `json:"id"`
	ClientID     uuid.UUID  `json:"client_id"`
	BookingID    *uuid.UUID `json:"booking_id,omitempty"`
	SitterID     *uuid.UUID `json:"sitter_id,omitempty"`
	NumberID     *uuid.UUID `json:"number_id,omitempty"`
	WindowID     *uuid.UUID `json:"window_id,omitempty"`
	NumberClass  string     `json:"number_class"`
	Status       string     `json:"status"`
	SessionRef   string     `json:"session_ref,omitempty"`
	MeetAndGreet bool       `json:"meet_and_greet"`
	OneTime      bool       `json:"one_time_client"`
}

func threadToDTO(t *messagingdomain.Thread) ThreadResponseDTO {
	dto := ThreadResponseDTO{
		ID:          t.ID,
		ClientID:    t.ClientID,
		NumberClass: string(t.NumberClass),
		Status:      string(t.Status),
	}
	if t.BookingID.Valid {
		id := t.BookingID.UUID
		dto.BookingID = &id
	}
	if t.SitterID.Valid {
		id := t.SitterID.UUID
		dto.SitterID = &id
	}
	if t.NumberID.Valid {
		id := t.NumberID.UUID
		dto.NumberID = &id
	}
	if t.WindowID.Valid {
		id := t.WindowID.UUID
		dto.WindowID = &id
	}
	if t.SessionRef.Valid {
		dto.SessionRef = t.SessionRef.String
	}
	dto.MeetAndGreet = t.MeetAndGreet
	dto.OneTime = t.OneTimeClient
	return dto
}

type RoutingDecisionResponseDTO struct {
	ID        uuid.UUID  `json:"id"`
	ThreadID  uuid.UUID  `json:"thread_id"`
	NumberID  *uuid.UUID `json:"number_id,omitempty"`
	Class     string     `json:"class"`
	Rule      string     `json:"rule"`
	DecidedAt time.Time  `json:"decided_at"`
}

func routingDecisionToDTO(d *messagingdomain.RoutingDecision) RoutingDecisionResponseDTO {
	dto := RoutingDecisionResponseDTO{
		ID:        d.ID,
		ThreadID:  d.ThreadID,
		Class:     string(d.Class),
		Rule:      d.Rule,
		DecidedAt: d.DecidedAt,
	}
	if d.NumberID.Valid {
		id := d.NumberID.UUID
		dto.NumberID = &id
	}
	return dto
}

type CanMessageResponseDTO struct {
	ThreadID uuid.UUID `json:"thread_id"`
	SitterID uuid.UUID `json:"sitter_id"`
	Allowed  bool      `json:"allowed"`
}

// --- Tier DTOs ---

type TierResponseDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Priority  int       `json:"priority"`
	IsDefault bool      `json:"is_default"`
}

type SitterTierResponseDTO struct {
	SitterID uuid.UUID        `json:"sitter_id"`
	Tier     *TierResponseDTO `json:"tier,omitempty"`
	Metrics  *MetricsDTO      `json:"metrics,omitempty"`
}

type MetricsDTO struct {
	WindowStart           time.Time `json:"window_start"`
	WindowEnd             time.Time `json:"window_end"`
	OffersTotal           int       `json:"offers_total"`
	OffersResponded       int       `json:"offers_responded"`
	OffersAccepted        int       `json:"offers_accepted"`
	OffersExpired         int       `json:"offers_expired"`
	AvgResponseSeconds    float64   `json:"avg_response_seconds"`
	MedianResponseSeconds float64   `json:"median_response_seconds"`
	ResponseRate          float64   `json:"response_rate"`
	AcceptRate            float64   `json:"accept_rate"`
	ExpireRate            float64   `json:"expire_rate"`
	ComputedAt            time.Time `json:"computed_at"`
}

func tierToDTO(t *tierdomain.Tier) *TierResponseDTO {
	if t == nil {
		return nil
	}
	return &TierResponseDTO{
		ID:        t.ID,
		Name:      t.Name,
		Priority:  t.Priority,
		IsDefault: t.IsDefault,
	}
}

func metricsToDTO(m *tierdomain.SitterMetrics) *MetricsDTO {
	if m == nil {
		return nil
	}
	return &MetricsDTO{
		WindowStart:           m.WindowStart,
		WindowEnd:             m.WindowEnd,
		OffersTotal:           m.OffersTotal,
		OffersResponded:       m.OffersResponded,
		OffersAccepted:        m.OffersAccepted,
		OffersExpired:         m.OffersExpired,
		AvgResponseSeconds:    m.AvgResponseSeconds(),
		MedianResponseSeconds: m.MedianResponseSeconds,
		ResponseRate:          m.ResponseRate(),
		AcceptRate:            m.AcceptRate(),
		ExpireRate:            m.ExpireRate(),
		ComputedAt:            m.ComputedAt,
	}
}
