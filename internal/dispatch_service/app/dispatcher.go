package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
)

// EventPublisher emits dispatch lifecycle events. Satisfied by
// messagebroker.NATSClient; tests substitute a recorder.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// SweepResult summarizes one expiry sweep pass.
type SweepResult struct {
	ExpiredCount           int
	BookingsReturnedToPool int
	ManualEscalations      int
}

// Dispatcher owns the offer lifecycle: creating offers for the best eligible
// sitter, handling accept/decline, expiring overdue offers, and escalating a
// booking to manual dispatch when the attempt budget runs out or the pool is
// empty.
type Dispatcher struct {
	bookingRepo domain.BookingRepository
	offerRepo   domain.OfferRepository
	selector    *Selector
	publisher   EventPublisher
	metrics     *Metrics

	offerTTL    time.Duration
	maxAttempts int
	sweepBatch  int

	logger *slog.Logger
}

func NewDispatcher(
	bookingRepo domain.BookingRepository,
	offerRepo domain.OfferRepository,
	selector *Selector,
	publisher EventPublisher,
	metrics *Metrics,
	offerTTL time.Duration,
	maxAttempts int,
	sweepBatch int,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		bookingRepo: bookingRepo,
		offerRepo:   offerRepo,
		selector:    selector,
		publisher:   publisher,
		metrics:     metrics,
		offerTTL:    offerTTL,
		maxAttempts: maxAttempts,
		sweepBatch:  sweepBatch,
		logger:      logger,
	}
}

// Dispatch starts or continues auto-dispatch for a booking: pick the best
// eligible sitter and send them an offer. Escalates to manual dispatch when
// the pool is empty or the attempt budget is spent. Returns the created
// offer, or nil when the booking was escalated instead.
func (d *Dispatcher) Dispatch(ctx context.Context, bookingID uuid.UUID) (*domain.Offer, error) {
	booking, err := d.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("loading booking %s: %w", bookingID, err)
	}
	if !booking.Unassigned() {
		return nil, domain.ErrBookingAlreadyAssigned
	}
	if booking.FlaggedForManualDispatch() {
		return nil, &domain.InvalidTransitionError{From: booking.DispatchStatus, To: domain.DispatchOpen}
	}
	return d.offerNext(ctx, booking)
}

// offerNext creates an offer for the best candidate, or escalates when the
// budget is exhausted or nobody is eligible.
func (d *Dispatcher) offerNext(ctx context.Context, booking *domain.Booking) (*domain.Offer, error) {
	attempts, err := d.offerRepo.CountAttempts(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("counting attempts for booking %s: %w", booking.ID, err)
	}
	if attempts >= d.maxAttempts {
		changed, err := d.escalateManual(ctx, booking, attempts, "reassignment attempt budget exhausted")
		if err != nil {
			return nil, err
		}
		if changed {
			d.publishEvent(ctx, domain.SubjectOfferExhausted, domain.OfferExhaustedEvent{
				BookingID:  booking.ID,
				OrgID:      booking.OrgID,
				Attempts:   attempts,
				OccurredAt: time.Now().UTC(),
			})
		}
		return nil, nil
	}

	candidates, err := d.selector.Candidates(ctx, booking)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		_, err := d.escalateManual(ctx, booking, attempts, "no eligible sitters")
		return nil, err
	}
	return d.CreateOffer(ctx, booking, candidates[0].ID)
}

// CreateOffer sends an offer to the sitter for the booking. Idempotent: if an
// active offer for the pair already exists it is returned unchanged instead
// of creating a duplicate.
func (d *Dispatcher) CreateOffer(ctx context.Context, booking *domain.Booking, sitterID uuid.UUID) (*domain.Offer, error) {
	existing, err := d.offerRepo.FindActive(ctx, booking.ID, sitterID)
	if err != nil {
		return nil, fmt.Errorf("checking for active offer: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	offer := domain.NewOffer(booking.OrgID, booking.ID, sitterID, d.offerTTL)
	if err := d.offerRepo.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("creating offer: %w", err)
	}

	d.metrics.OffersCreated.Inc()
	d.publishOfferEvent(ctx, domain.SubjectOfferSent, offer)
	d.logger.Info("offer sent", "offer_id", offer.ID, "booking_id", booking.ID, "sitter_id", sitterID)
	return offer, nil
}

// AcceptOffer records the sitter's acceptance and assigns the booking. First
// accept wins: a second accept for the same booking fails with
// ErrBookingAlreadyAssigned and leaves the losing offer pending for the
// expiry sweep.
func (d *Dispatcher) AcceptOffer(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error) {
	offer, err := d.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("loading offer %s: %w", offerID, err)
	}
	if !offer.Active() {
		return nil, domain.ErrOfferNotPending
	}

	now := time.Now().UTC()
	changed, err := d.bookingRepo.AssignSitter(ctx, offer.BookingID, offer.SitterID, now)
	if err != nil {
		return nil, fmt.Errorf("assigning sitter: %w", err)
	}
	if !changed {
		return nil, domain.ErrBookingAlreadyAssigned
	}

	changed, err = d.offerRepo.MarkResponded(ctx, offer.ID, domain.OfferAccepted, now)
	if err != nil {
		return nil, fmt.Errorf("marking offer accepted: %w", err)
	}
	if !changed {
		return nil, domain.ErrOfferNotPending
	}
	offer.Status = domain.OfferAccepted
	offer.AcceptedAt.Time = now
	offer.AcceptedAt.Valid = true

	d.metrics.OffersAccepted.Inc()
	d.metrics.OfferResponseSeconds.Observe(now.Sub(offer.OfferedAt).Seconds())
	d.publishOfferEvent(ctx, domain.SubjectOfferAccepted, offer)
	d.logger.Info("offer accepted", "offer_id", offer.ID, "booking_id", offer.BookingID, "sitter_id", offer.SitterID)
	return offer, nil
}

// DeclineOffer records the sitter's decline and immediately tries the next
// candidate.
func (d *Dispatcher) DeclineOffer(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error) {
	offer, err := d.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("loading offer %s: %w", offerID, err)
	}

	now := time.Now().UTC()
	changed, err := d.offerRepo.MarkResponded(ctx, offer.ID, domain.OfferDeclined, now)
	if err != nil {
		return nil, fmt.Errorf("marking offer declined: %w", err)
	}
	if !changed {
		return nil, domain.ErrOfferNotPending
	}
	offer.Status = domain.OfferDeclined
	offer.DeclinedAt.Time = now
	offer.DeclinedAt.Valid = true

	d.metrics.OffersDeclined.Inc()
	d.metrics.OfferResponseSeconds.Observe(now.Sub(offer.OfferedAt).Seconds())
	d.publishOfferEvent(ctx, domain.SubjectOfferDeclined, offer)
	d.logger.Info("offer declined", "offer_id", offer.ID, "booking_id", offer.BookingID, "sitter_id", offer.SitterID)

	if err := d.reassign(ctx, offer); err != nil {
		d.logger.Error("reassignment after decline failed", "booking_id", offer.BookingID, "error", err)
		d.escalateAfterFailure(ctx, offer.BookingID)
	}
	return offer, nil
}

// ExpireDueOffers runs one sweep pass: expire overdue offers, return their
// bookings to the pool, and try the next candidate for each. Failures are
// isolated per offer so one bad row cannot stall the sweep.
func (d *Dispatcher) ExpireDueOffers(ctx context.Context) (SweepResult, error) {
	now := time.Now().UTC()
	due, err := d.offerRepo.ListDue(ctx, now, d.sweepBatch)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing due offers: %w", err)
	}

	var result SweepResult
	for _, offer := range due {
		escalated, returned, err := d.expireOne(ctx, offer, now)
		if err != nil {
			d.logger.Error("expiring offer failed", "offer_id", offer.ID, "booking_id", offer.BookingID, "error", err)
			if d.escalateAfterFailure(ctx, offer.BookingID) {
				result.ManualEscalations++
			}
			continue
		}
		result.ExpiredCount++
		if returned {
			result.BookingsReturnedToPool++
		}
		if escalated {
			result.ManualEscalations++
		}
	}
	if result.ExpiredCount > 0 {
		d.logger.Info("expiry sweep complete",
			"expired", result.ExpiredCount,
			"returned_to_pool", result.BookingsReturnedToPool,
			"manual_escalations", result.ManualEscalations)
	}
	return result, nil
}

func (d *Dispatcher) expireOne(ctx context.Context, offer *domain.Offer, now time.Time) (escalated, returned bool, err error) {
	changed, err := d.offerRepo.MarkExpired(ctx, offer.ID, now)
	if err != nil {
		return false, false, fmt.Errorf("marking offer expired: %w", err)
	}
	if !changed {
		// Lost the race to an accept/decline that landed after the listing.
		return false, false, nil
	}
	offer.Status = domain.OfferExpired
	d.metrics.OffersExpired.Inc()
	d.publishOfferEvent(ctx, domain.SubjectOfferExpired, offer)

	returned, err = d.bookingRepo.ReturnToPool(ctx, offer.BookingID, offer.SitterID, now)
	if err != nil {
		return false, returned, fmt.Errorf("returning booking to pool: %w", err)
	}
	if !returned {
		// Booking was assigned elsewhere or flagged manual in the meantime.
		return false, false, nil
	}

	if err := d.reassign(ctx, offer); err != nil {
		return false, returned, err
	}
	booking, err := d.bookingRepo.GetByID(ctx, offer.BookingID)
	if err != nil {
		return false, returned, nil
	}
	return booking.FlaggedForManualDispatch(), returned, nil
}

// reassign moves the booking to its next candidate after a decline or
// expiry, publishing a reassignment event when a new offer goes out.
func (d *Dispatcher) reassign(ctx context.Context, previous *domain.Offer) error {
	booking, err := d.bookingRepo.GetByID(ctx, previous.BookingID)
	if err != nil {
		return fmt.Errorf("loading booking %s: %w", previous.BookingID, err)
	}
	if !booking.Unassigned() || booking.FlaggedForManualDispatch() {
		return nil
	}

	next, err := d.offerNext(ctx, booking)
	if err != nil {
		return err
	}
	if next != nil {
		d.publishOfferEvent(ctx, domain.SubjectOfferReassigned, next)
	}
	return nil
}

// escalateAfterFailure is the terminal fallback when automatic reassignment
// errors out: instead of leaving the booking silently stuck it goes to an
// operator. Reports whether this call flipped the flag.
func (d *Dispatcher) escalateAfterFailure(ctx context.Context, bookingID uuid.UUID) bool {
	booking, err := d.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		d.logger.Error("loading booking for manual fallback failed", "booking_id", bookingID, "error", err)
		return false
	}
	if !booking.Unassigned() || booking.FlaggedForManualDispatch() {
		return false
	}
	attempts, err := d.offerRepo.CountAttempts(ctx, bookingID)
	if err != nil {
		attempts = 0
	}
	changed, err := d.escalateManual(ctx, booking, attempts, "automatic reassignment failed")
	if err != nil {
		d.logger.Error("manual fallback failed", "booking_id", bookingID, "error", err)
		return false
	}
	return changed
}

// escalateManual flags the booking for an operator. The repository guard
// makes the flag idempotent; only the call that flips it publishes the event.
func (d *Dispatcher) escalateManual(ctx context.Context, booking *domain.Booking, attempts int, reason string) (bool, error) {
	now := time.Now().UTC()
	changed, err := d.bookingRepo.MarkManualRequired(ctx, booking.ID, reason, now)
	if err != nil {
		return false, fmt.Errorf("flagging booking for manual dispatch: %w", err)
	}
	if !changed {
		return false, nil
	}

	d.metrics.ManualEscalations.Inc()
	event := domain.ManualRequiredEvent{
		BookingID:  booking.ID,
		OrgID:      booking.OrgID,
		Reason:     reason,
		Attempts:   attempts,
		OccurredAt: now,
	}
	d.publishEvent(ctx, domain.SubjectManualRequired, event)
	d.logger.Warn("booking escalated to manual dispatch",
		"booking_id", booking.ID, "reason", reason, "attempts", attempts)
	return true, nil
}

// ForceAssign is the owner override: assign the sitter directly, regardless
// of offer state, and mark dispatch resolved.
func (d *Dispatcher) ForceAssign(ctx context.Context, bookingID, sitterID uuid.UUID) (*domain.Booking, error) {
	booking, err := d.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("loading booking %s: %w", bookingID, err)
	}
	if !domain.CanTransitionDispatch(booking.DispatchStatus, domain.DispatchAssigned) {
		return nil, &domain.InvalidTransitionError{From: booking.DispatchStatus, To: domain.DispatchAssigned}
	}

	now := time.Now().UTC()
	changed, err := d.bookingRepo.ApplyDispatchTransition(ctx, bookingID, booking.DispatchStatus, domain.DispatchAssigned,
		uuid.NullUUID{UUID: sitterID, Valid: true}, now)
	if err != nil {
		return nil, fmt.Errorf("force-assigning booking: %w", err)
	}
	if !changed {
		return nil, domain.ErrBookingAlreadyAssigned
	}

	// Pending offers for the booking are now moot; mark them excluded so a
	// late accept cannot fire and the sweep skips them.
	if n, err := d.offerRepo.ExcludeActiveForBooking(ctx, bookingID, now); err != nil {
		d.logger.Error("superseding pending offers failed", "booking_id", bookingID, "error", err)
	} else if n > 0 {
		d.logger.Info("pending offers superseded", "booking_id", bookingID, "count", n)
	}

	d.logger.Info("booking force-assigned", "booking_id", bookingID, "sitter_id", sitterID)
	return d.bookingRepo.GetByID(ctx, bookingID)
}

// ResumeAuto clears the manual flag and restarts auto-dispatch.
func (d *Dispatcher) ResumeAuto(ctx context.Context, bookingID uuid.UUID) (*domain.Offer, error) {
	booking, err := d.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("loading booking %s: %w", bookingID, err)
	}
	if !domain.CanTransitionDispatch(booking.DispatchStatus, domain.DispatchOpen) {
		return nil, &domain.InvalidTransitionError{From: booking.DispatchStatus, To: domain.DispatchOpen}
	}

	now := time.Now().UTC()
	changed, err := d.bookingRepo.ApplyDispatchTransition(ctx, bookingID, booking.DispatchStatus, domain.DispatchOpen,
		uuid.NullUUID{}, now)
	if err != nil {
		return nil, fmt.Errorf("resuming auto dispatch: %w", err)
	}
	if !changed {
		return nil, &domain.InvalidTransitionError{From: booking.DispatchStatus, To: domain.DispatchOpen}
	}

	d.logger.Info("auto dispatch resumed", "booking_id", bookingID)
	return d.Dispatch(ctx, bookingID)
}

// AttentionQueue lists bookings awaiting manual dispatch for the org.
func (d *Dispatcher) AttentionQueue(ctx context.Context, orgID uuid.UUID) ([]*domain.Booking, error) {
	bookings, err := d.bookingRepo.ListAttention(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing attention queue: %w", err)
	}
	return bookings, nil
}

func (d *Dispatcher) publishOfferEvent(ctx context.Context, subject string, offer *domain.Offer) {
	d.publishEvent(ctx, subject, domain.OfferEvent{
		OfferID:    offer.ID,
		OrgID:      offer.OrgID,
		BookingID:  offer.BookingID,
		SitterID:   offer.SitterID,
		Status:     string(offer.Status),
		OccurredAt: time.Now().UTC(),
	})
}

// publishEvent is fire-and-forget: a broker outage must not fail the state
// change that already committed.
func (d *Dispatcher) publishEvent(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("marshaling event failed", "subject", subject, "error", err)
		return
	}
	if err := d.publisher.Publish(ctx, subject, data); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("publishing event failed", "subject", subject, "error", err)
	}
}
