package domain

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	dispatchdomain "github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
)

func respondedOffer(orgID, sitterID uuid.UUID, status dispatchdomain.OfferStatus, latency time.Duration) *dispatchdomain.Offer {
	offer := dispatchdomain.NewOffer(orgID, uuid.New(), sitterID, time.Hour)
	offer.Status = status
	responded := sql.NullTime{Time: offer.OfferedAt.Add(latency), Valid: true}
	if status == dispatchdomain.OfferAccepted {
		offer.AcceptedAt = responded
	} else {
		offer.DeclinedAt = responded
	}
	return offer
}

func TestComputeMetrics_MedianOddCount(t *testing.T) {
	orgID, sitterID := uuid.New(), uuid.New()
	offers := []*dispatchdomain.Offer{
		respondedOffer(orgID, sitterID, dispatchdomain.OfferAccepted, 30*time.Second),
		respondedOffer(orgID, sitterID, dispatchdomain.OfferDeclined, 600*time.Second),
		respondedOffer(orgID, sitterID, dispatchdomain.OfferAccepted, 90*time.Second),
	}

	now := time.Now().UTC()
	m := ComputeMetrics(orgID, sitterID, offers, now.Add(-7*24*time.Hour), now)

	assert.Equal(t, 3, m.OffersResponded)
	assert.InDelta(t, 90.0, m.MedianResponseSeconds, 0.001)
	// The slow outlier pulls the average well above the median.
	assert.InDelta(t, 240.0, m.AvgResponseSeconds(), 0.001)
}

func TestComputeMetrics_MedianEvenCountAveragesMiddlePair(t *testing.T) {
	orgID, sitterID := uuid.New(), uuid.New()
	offers := []*dispatchdomain.Offer{
		respondedOffer(orgID, sitterID, dispatchdomain.OfferAccepted, 60*time.Second),
		respondedOffer(orgID, sitterID, dispatchdomain.OfferAccepted, 120*time.Second),
		respondedOffer(orgID, sitterID, dispatchdomain.OfferDeclined, 20*time.Second),
		respondedOffer(orgID, sitterID, dispatchdomain.OfferDeclined, 500*time.Second),
	}

	now := time.Now().UTC()
	m := ComputeMetrics(orgID, sitterID, offers, now.Add(-7*24*time.Hour), now)

	assert.Equal(t, 4, m.OffersResponded)
	assert.InDelta(t, 90.0, m.MedianResponseSeconds, 0.001)
}

func TestComputeMetrics_MedianZeroWithoutResponses(t *testing.T) {
	orgID, sitterID := uuid.New(), uuid.New()
	expired := dispatchdomain.NewOffer(orgID, uuid.New(), sitterID, time.Hour)
	expired.Status = dispatchdomain.OfferExpired

	now := time.Now().UTC()
	m := ComputeMetrics(orgID, sitterID, []*dispatchdomain.Offer{expired}, now.Add(-7*24*time.Hour), now)

	assert.Equal(t, 0, m.OffersResponded)
	assert.Equal(t, 1, m.OffersExpired)
	assert.Zero(t, m.MedianResponseSeconds)
}
