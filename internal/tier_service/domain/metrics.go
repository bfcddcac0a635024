package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"

	dispatchdomain "github.com/snoutdesk/dispatch/internal/dispatch_service/domain"
)

// SitterMetrics is a sitter's offer-response performance over a rolling
// window. Rates are derived, not stored, so the counts stay the source of
// truth.
type SitterMetrics struct {
	ID              uuid.UUID `json:"id"`
	OrgID           uuid.UUID `json:"org_id"`
	SitterID        uuid.UUID `json:"sitter_id"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	OffersTotal     int       `json:"offers_total"`
	OffersResponded int       `json:"offers_responded"`
	OffersAccepted  int       `json:"offers_accepted"`
	OffersExpired   int       `json:"offers_expired"`
	// TotalResponseSeconds accumulates response latency across responded
	// offers; the average is TotalResponseSeconds / OffersResponded.
	TotalResponseSeconds int64 `json:"total_response_seconds"`
	// MedianResponseSeconds is the middle response latency, which a couple
	// of outlier slow responses cannot drag around the way the average can.
	MedianResponseSeconds float64   `json:"median_response_seconds"`
	ComputedAt            time.Time `json:"computed_at"`
}

func (m *SitterMetrics) AvgResponseSeconds() float64 {
	if m.OffersResponded == 0 {
		return 0
	}
	return float64(m.TotalResponseSeconds) / float64(m.OffersResponded)
}

func (m *SitterMetrics) ResponseRate() float64 {
	if m.OffersTotal == 0 {
		return 0
	}
	return float64(m.OffersResponded) / float64(m.OffersTotal)
}

func (m *SitterMetrics) AcceptRate() float64 {
	if m.OffersTotal == 0 {
		return 0
	}
	return float64(m.OffersAccepted) / float64(m.OffersTotal)
}

func (m *SitterMetrics) ExpireRate() float64 {
	if m.OffersTotal == 0 {
		return 0
	}
	return float64(m.OffersExpired) / float64(m.OffersTotal)
}

// Fresh reports whether the snapshot is recent enough to reuse.
func (m *SitterMetrics) Fresh(staleness time.Duration, now time.Time) bool {
	return now.Sub(m.ComputedAt) < staleness
}

// ComputeMetrics folds a sitter's offer history into a metrics snapshot.
// Offers still pending are not counted; they have neither responded nor
// lapsed yet.
func ComputeMetrics(orgID, sitterID uuid.UUID, offers []*dispatchdomain.Offer, windowStart, windowEnd time.Time) *SitterMetrics {
	m := &SitterMetrics{
		ID:          uuid.New(),
		OrgID:       orgID,
		SitterID:    sitterID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		ComputedAt:  time.Now().UTC(),
	}
	var latencies []int64
	for _, offer := range offers {
		switch offer.Status {
		case dispatchdomain.OfferAccepted:
			m.OffersTotal++
			m.OffersResponded++
			m.OffersAccepted++
		case dispatchdomain.OfferDeclined:
			m.OffersTotal++
			m.OffersResponded++
		case dispatchdomain.OfferExpired:
			m.OffersTotal++
			m.OffersExpired++
		default:
			continue
		}
		if seconds, ok := offer.ResponseSeconds(); ok {
			m.TotalResponseSeconds += seconds
			latencies = append(latencies, seconds)
		}
	}
	m.MedianResponseSeconds = medianSeconds(latencies)
	return m
}

func medianSeconds(latencies []int64) float64 {
	if len(latencies) == 0 {
		return 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	mid := len(latencies) / 2
	if len(latencies)%2 == 1 {
		return float64(latencies[mid])
	}
	return float64(latencies[mid-1]+latencies[mid]) / 2
}
