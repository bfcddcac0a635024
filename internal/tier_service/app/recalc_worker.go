package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	dispatchdomain "github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
	"github.com/snoutdesk/dispatch/internal/tier_service/domain"
)

// Subscriber is the broker surface the worker needs. Satisfied by
// messagebroker.NATSClient.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) (*nats.Subscription, error)
}

const recalcQueueGroup = "tier_recalc"

// RecalcWorker keeps tiers current two ways: offer outcome events trigger a
// targeted recompute for the sitter involved, and a periodic pass recomputes
// every active sitter so tiers decay even when a sitter stops receiving
// offers.
type RecalcWorker struct {
	engine   *TierEngine
	broker   Subscriber
	sitters  domain.SitterLister
	interval time.Duration
	logger   *slog.Logger
}

func NewRecalcWorker(engine *TierEngine, broker Subscriber, sitters domain.SitterLister, interval time.Duration, logger *slog.Logger) *RecalcWorker {
	return &RecalcWorker{
		engine:   engine,
		broker:   broker,
		sitters:  sitters,
		interval: interval,
		logger:   logger,
	}
}

// Run subscribes to offer outcome events and drives the periodic pass until
// the context is cancelled.
func (w *RecalcWorker) Run(ctx context.Context) error {
	subjects := []string{
		dispatchdomain.SubjectOfferAccepted,
		dispatchdomain.SubjectOfferDeclined,
		dispatchdomain.SubjectOfferExpired,
	}
	for _, subject := range subjects {
		sub, err := w.broker.Subscribe(ctx, subject, recalcQueueGroup, func(msg *nats.Msg) {
			w.handleOfferEvent(ctx, msg.Data)
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
	}

	w.logger.Info("tier recalc worker started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("tier recalc worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.recomputeAll(ctx)
		}
	}
}

func (w *RecalcWorker) handleOfferEvent(ctx context.Context, data []byte) {
	var event dispatchdomain.OfferEvent
	if err := json.Unmarshal(data, &event); err != nil {
		w.logger.Error("decoding offer event failed", "error", err)
		return
	}
	// An outcome just landed, so the cached snapshot is no longer right.
	if _, err := w.engine.ComputeTierForSitter(ctx, event.OrgID, event.SitterID, true); err != nil {
		w.logger.Error("tier recompute after offer event failed",
			"sitter_id", event.SitterID, "error", err)
	}
}

// recomputeAll isolates failures per sitter so one bad row cannot stall the
// pass.
func (w *RecalcWorker) recomputeAll(ctx context.Context) {
	refs, err := w.sitters.ListActiveSitters(ctx)
	if err != nil {
		w.logger.Error("listing sitters for recompute failed", "error", err)
		return
	}
	var failures int
	for _, ref := range refs {
		if _, err := w.engine.ComputeTierForSitter(ctx, ref.OrgID, ref.ID, false); err != nil {
			failures++
			w.logger.Error("periodic tier recompute failed", "sitter_id", ref.ID, "error", err)
		}
	}
	w.logger.Info("periodic tier pass complete", "sitters", len(refs), "failures", failures)
}
