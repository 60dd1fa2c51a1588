package accesscode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var validations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "servetrack_code_validations_total",
	Help: "Access code validation attempts by outcome.",
}, []string{"result"})

var fallbackReads = promauto.NewCounter(prometheus.CounterOpts{
	Name: "servetrack_code_fallback_reads_total",
	Help: "Daily code reads served from the redis cache after a primary failure.",
})
