package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotel_pms",
			Name:      "reservation_transitions_total",
			Help:      "Count of committed reservation lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	reservationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotel_pms",
			Name:      "reservation_rejections_total",
			Help:      "Count of rejected lifecycle requests by error kind.",
		},
		[]string{"kind"},
	)

	folioPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotel_pms",
			Name:      "folio_postings_total",
			Help:      "Count of folio transactions posted by type.",
		},
		[]string{"type"},
	)

	lockBusy = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hotel_pms",
			Name:      "lock_busy_total",
			Help:      "Count of lock acquisitions that timed out.",
		},
	)

	channelConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotel_pms",
			Name:      "channel_conflicts_total",
			Help:      "Count of channel conflicts by outcome.",
		},
		[]string{"outcome"},
	)

	noShowSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hotel_pms",
			Name:      "no_show_swept_total",
			Help:      "Count of reservations marked no-show by the sweeper.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationTransitions,
			reservationRejections,
			folioPostings,
			lockBusy,
			channelConflicts,
			noShowSwept,
		)
	})
}

func IncReservationTransition(status string) {
	reservationTransitions.WithLabelValues(status).Inc()
}

func IncReservationRejection(kind string) {
	reservationRejections.WithLabelValues(kind).Inc()
}

func IncFolioPosting(txType string) {
	folioPostings.WithLabelValues(txType).Inc()
}

func IncLockBusy() {
	lockBusy.Inc()
}

func IncChannelConflict(outcome string) {
	channelConflicts.WithLabelValues(outcome).Inc()
}

func AddNoShowSwept(n int) {
	noShowSwept.Add(float64(n))
}
