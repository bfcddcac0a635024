package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/snoutdesk/dispatch/internal/messaging_service/domain"
)

// Routing rule names recorded on the audit trail.
const (
	RuleSitterInvolved    = "sitter_involved"
	RuleSitterNoDedicated = "sitter_without_dedicated_number"
	RuleMeetAndGreet      = "meet_and_greet"
	RuleOneTimeClient     = "one_time_client"
	RuleDefaultFrontDesk  = "default_front_desk"
)

// DetermineThreadNumberClass applies the classification rules in priority
// order and returns the class plus the rule that fired.
func DetermineThreadNumberClass(routing domain.RoutingContext) (domain.NumberClass, string) {
	if routing.SitterInvolved {
		return domain.ClassSitter, RuleSitterInvolved
	}
	if routing.MeetAndGreet {
		return domain.ClassPool, RuleMeetAndGreet
	}
	if routing.OneTimeClient {
		return domain.ClassPool, RuleOneTimeClient
	}
	return domain.ClassFrontDesk, RuleDefaultFrontDesk
}

// NumberRouter resolves a concrete number for a classified thread.
type NumberRouter struct {
	numberRepo domain.NumberRepository
	logger     *slog.Logger
}

func NewNumberRouter(numberRepo domain.NumberRepository, logger *slog.Logger) *NumberRouter {
	return &NumberRouter{numberRepo: numberRepo, logger: logger}
}

// ResolvedNumber is a routed number plus the state needed to undo a pool
// claim if a later step fails.
type ResolvedNumber struct {
	Number *domain.Number
	Class  domain.NumberClass
	Rule   string

	claimed          bool
	previousLastUsed time.Time
	previousValid    bool
}

// Resolve picks the number for the thread. Pool numbers are claimed with a
// last-used stamp so rotation is least-recently-used; a sitter without a
// dedicated number falls back to the pool.
func (r *NumberRouter) Resolve(ctx context.Context, thread *domain.Thread, class domain.NumberClass, rule string) (*ResolvedNumber, error) {
	switch class {
	case domain.ClassSitter:
		if !thread.SitterID.Valid {
			return nil, fmt.Errorf("resolving sitter number: thread %s has no sitter", thread.ID)
		}
		number, err := r.numberRepo.FindSitterNumber(ctx, thread.OrgID, thread.SitterID.UUID)
		if err == nil {
			return &ResolvedNumber{Number: number, Class: class, Rule: rule}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		r.logger.InfoContext(ctx, "Sitter has no dedicated number, falling back to pool",
			"thread_id", thread.ID, "sitter_id", thread.SitterID.UUID)
		return r.claimPool(ctx, thread, domain.ClassPool, RuleSitterNoDedicated)

	case domain.ClassPool:
		return r.claimPool(ctx, thread, class, rule)

	case domain.ClassFrontDesk:
		number, err := r.numberRepo.FindFrontDesk(ctx, thread.OrgID)
		if err != nil {
			return nil, fmt.Errorf("resolving front desk number: %w", err)
		}
		return &ResolvedNumber{Number: number, Class: class, Rule: rule}, nil

	default:
		return nil, fmt.Errorf("resolving number: unknown class %q", class)
	}
}

func (r *NumberRouter) claimPool(ctx context.Context, thread *domain.Thread, class domain.NumberClass, rule string) (*ResolvedNumber, error) {
	now := time.Now().UTC()
	number, err := r.numberRepo.ClaimLeastRecentlyUsedPool(ctx, thread.OrgID, thread.ClientID, now)
	if err != nil {
		return nil, err
	}
	resolved := &ResolvedNumber{
		Number:  number,
		Class:   class,
		Rule:    rule,
		claimed: true,
	}
	if number.LastUsedAt.Valid {
		resolved.previousLastUsed = number.LastUsedAt.Time
		resolved.previousValid = true
	}
	// The repository returns the row as it was before the claim stamp.
	number.LastUsedAt.Time = now
	number.LastUsedAt.Valid = true
	return resolved, nil
}

// Release undoes a pool claim. No-op for dedicated and front desk numbers.
func (r *NumberRouter) Release(ctx context.Context, resolved *ResolvedNumber) error {
	if !resolved.claimed {
		return nil
	}
	return r.numberRepo.ReleaseClaim(ctx, resolved.Number.ID, resolved.previousLastUsed, resolved.previousValid)
}
