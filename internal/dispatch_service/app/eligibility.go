package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
)

// Selector produces the ordered candidate list for a booking that needs a
// sitter. Filtering happens in three passes: active + qualified (repository),
// cooldown (offer history for this booking), schedule conflict (overlap count
// per surviving candidate). Survivors are ordered by tier priority, then by
// current workload so offers spread across equally-ranked sitters, ties
// broken by sitter ID so repeated runs are deterministic.

// workloadHorizon is how far ahead upcoming bookings count toward a
// sitter's workload when ranking candidates.
const workloadHorizon = 7 * 24 * time.Hour

type Selector struct {
	sitterRepo  domain.SitterRepository
	bookingRepo domain.BookingRepository
	offerRepo   domain.OfferRepository
	cooldown    time.Duration
	logger      *slog.Logger
}

func NewSelector(sitterRepo domain.SitterRepository, bookingRepo domain.BookingRepository, offerRepo domain.OfferRepository, cooldown time.Duration, logger *slog.Logger) *Selector {
	return &Selector{
		sitterRepo:  sitterRepo,
		bookingRepo: bookingRepo,
		offerRepo:   offerRepo,
		cooldown:    cooldown,
		logger:      logger,
	}
}

// Candidates returns eligible sitters for the booking, best first. An empty
// slice means the pool is exhausted for now; that is not an error.
func (s *Selector) Candidates(ctx context.Context, booking *domain.Booking) ([]*domain.Sitter, error) {
	now := time.Now().UTC()
	threshold := now.Add(-s.cooldown)
	cooled, err := s.offerRepo.SittersInCooldown(ctx, booking.ID, threshold)
	if err != nil {
		return nil, fmt.Errorf("listing sitters in cooldown: %w", err)
	}

	exclude := make([]uuid.UUID, 0, len(cooled)+1)
	exclude = append(exclude, cooled...)
	if booking.SitterID.Valid {
		exclude = append(exclude, booking.SitterID.UUID)
	}

	sitters, err := s.sitterRepo.ListActive(ctx, booking.OrgID, exclude)
	if err != nil {
		return nil, fmt.Errorf("listing active sitters: %w", err)
	}

	window := booking.Window()
	horizon := domain.BookingWindow{StartAt: now, EndAt: now.Add(workloadHorizon)}
	type scored struct {
		sitter   *domain.Sitter
		workload int
	}
	candidates := make([]scored, 0, len(sitters))
	for _, sitter := range sitters {
		if !sitter.QualifiedFor(booking.Service) {
			continue
		}
		overlaps, err := s.bookingRepo.CountOverlapping(ctx, sitter.ID, window, booking.ID)
		if err != nil {
			return nil, fmt.Errorf("counting overlapping bookings for sitter %s: %w", sitter.ID, err)
		}
		if overlaps > 0 {
			continue
		}
		workload, err := s.bookingRepo.CountOverlapping(ctx, sitter.ID, horizon, booking.ID)
		if err != nil {
			return nil, fmt.Errorf("counting upcoming bookings for sitter %s: %w", sitter.ID, err)
		}
		candidates = append(candidates, scored{sitter: sitter, workload: workload})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sitter.TierPriority != candidates[j].sitter.TierPriority {
			return candidates[i].sitter.TierPriority < candidates[j].sitter.TierPriority
		}
		if candidates[i].workload != candidates[j].workload {
			return candidates[i].workload < candidates[j].workload
		}
		return candidates[i].sitter.ID.String() < candidates[j].sitter.ID.String()
	})

	ordered := make([]*domain.Sitter, len(candidates))
	for i, c := range candidates {
		ordered[i] = c.sitter
	}

	s.logger.Debug("candidate selection complete",
		"booking_id", booking.ID, "candidates", len(ordered), "cooled_down", len(cooled))
	return ordered, nil
}
