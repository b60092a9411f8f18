package authflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	signIns        *prometheus.CounterVec
	signOuts       prometheus.Counter
	sessionLookups *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		signIns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "siakad",
			Subsystem: "auth",
			Name:      "sign_ins_total",
			Help:      "OAuth sign-in attempts by provider and result.",
		}, []string{"provider", "result"}),
		signOuts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "siakad",
			Subsystem: "auth",
			Name:      "sign_outs_total",
			Help:      "Sessions ended through sign-out.",
		}),
		sessionLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "siakad",
			Subsystem: "auth",
			Name:      "session_lookups_total",
			Help:      "Session resolutions by result.",
		}, []string{"result"}),
	}
}
