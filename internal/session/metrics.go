package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checkIns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "servetrack_checkins_total",
	Help: "Check-in attempts by outcome.",
}, []string{"outcome"})

var checkOuts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "servetrack_checkouts_total",
	Help: "Check-out attempts by outcome.",
}, []string{"outcome"})

var fallbackReads = promauto.NewCounter(prometheus.CounterOpts{
	Name: "servetrack_session_fallback_reads_total",
	Help: "Session reads served from the redis mirror after a primary failure.",
})
