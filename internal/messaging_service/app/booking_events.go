package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	dispatchdomain "github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
)

// BookingInfo is the slice of booking state the messaging side needs to
// open a window. ThreadID is the booking's active thread, when one exists.
type BookingInfo struct {
	OrgID    uuid.UUID
	ClientID uuid.UUID
	ThreadID uuid.NullUUID
	Service  string
	StartAt  time.Time
	EndAt    time.Time
}

type BookingReader interface {
	GetBookingInfo(ctx context.Context, bookingID uuid.UUID) (*BookingInfo, error)
}

// Subscriber is the broker surface the consumer needs. Satisfied by
// messagebroker.NATSClient.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) (*nats.Subscription, error)
}

const bookingEventsQueueGroup = "messaging_windows"

// BookingEventConsumer keeps assignment windows in sync with dispatch:
// an accepted offer opens the new sitter's window, an expired offer closes
// whatever windows the booking had.
type BookingEventConsumer struct {
	broker  Subscriber
	windows *WindowManager
	reader  BookingReader
	logger  *slog.Logger
}

func NewBookingEventConsumer(broker Subscriber, windows *WindowManager, reader BookingReader, logger *slog.Logger) *BookingEventConsumer {
	return &BookingEventConsumer{broker: broker, windows: windows, reader: reader, logger: logger}
}

// Start subscribes to the dispatch subjects and blocks until the context is
// cancelled.
func (c *BookingEventConsumer) Start(ctx context.Context) error {
	acceptedSub, err := c.broker.Subscribe(ctx, dispatchdomain.SubjectOfferAccepted, bookingEventsQueueGroup, func(msg *nats.Msg) {
		c.handleAccepted(ctx, msg.Data)
	})
	if err != nil {
		return err
	}
	defer acceptedSub.Unsubscribe()

	expiredSub, err := c.broker.Subscribe(ctx, dispatchdomain.SubjectOfferExpired, bookingEventsQueueGroup, func(msg *nats.Msg) {
		c.handleExpired(ctx, msg.Data)
	})
	if err != nil {
		return err
	}
	defer expiredSub.Unsubscribe()

	c.logger.Info("booking event consumer started", "queue_group", bookingEventsQueueGroup)
	<-ctx.Done()
	return ctx.Err()
}

func (c *BookingEventConsumer) handleAccepted(ctx context.Context, data []byte) {
	var event dispatchdomain.OfferEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("decoding offer accepted event failed", "error", err)
		return
	}

	info, err := c.reader.GetBookingInfo(ctx, event.BookingID)
	if err != nil {
		c.logger.Error("loading booking for window open failed", "booking_id", event.BookingID, "error", err)
		return
	}

	// A booking reassigned to a new sitter must not leave the previous
	// sitter's window open.
	if _, err := c.windows.CloseForBooking(ctx, event.BookingID); err != nil {
		c.logger.Error("closing stale windows failed", "booking_id", event.BookingID, "error", err)
		return
	}
	if !info.ThreadID.Valid {
		// Windows hang off threads; a booking nobody has messaged about yet
		// gets its window when the thread is created.
		c.logger.Debug("no thread for booking, skipping window open", "booking_id", event.BookingID)
		return
	}
	if _, err := c.windows.EnsureWindow(ctx, info.OrgID, info.ThreadID.UUID, event.BookingID, event.SitterID,
		info.ClientID, info.Service, info.StartAt, info.EndAt); err != nil {
		c.logger.Error("opening window failed", "booking_id", event.BookingID, "sitter_id", event.SitterID, "error", err)
	}
}

func (c *BookingEventConsumer) handleExpired(ctx context.Context, data []byte) {
	var event dispatchdomain.OfferEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("decoding offer expired event failed", "error", err)
		return
	}
	if _, err := c.windows.CloseForBooking(ctx, event.BookingID); err != nil {
		c.logger.Error("closing windows failed", "booking_id", event.BookingID, "error", err)
	}
}
