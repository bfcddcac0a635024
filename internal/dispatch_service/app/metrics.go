package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatch counters exposed on /metrics.
type Metrics struct {
	OffersCreated        prometheus.Counter
	OffersAccepted       prometheus.Counter
	OffersDeclined       prometheus.Counter
	OffersExpired        prometheus.Counter
	ManualEscalations    prometheus.Counter
	OfferResponseSeconds prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OffersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_offers_created_total",
			Help: "Offers sent to sitters.",
		}),
		OffersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_offers_accepted_total",
			Help: "Offers accepted by sitters.",
		}),
		OffersDeclined: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_offers_declined_total",
			Help: "Offers declined by sitters.",
		}),
		OffersExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_offers_expired_total",
			Help: "Offers expired by the sweep.",
		}),
		ManualEscalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_manual_escalations_total",
			Help: "Bookings escalated to manual dispatch.",
		}),
		OfferResponseSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_offer_response_seconds",
			Help:    "Time from offer sent to sitter response.",
			Buckets: []float64{30, 60, 120, 300, 600, 1800, 3600, 7200},
		}),
	}
}
