package tenantsql

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tenantsql",
		Name:      "query_duration_seconds",
		Help:      "Time spent running statements, by tenant, statement kind and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tenant", "kind", "outcome"})

	openTenants = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tenantsql",
		Name:      "open_tenants",
		Help:      "Number of tenant connections currently held by the manager.",
	})
)

// RegisterMetrics registers the tenantsql collectors with reg
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{queryDuration, openTenants} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func observeQuery(tenant string, kind StatementKind, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryDuration.WithLabelValues(tenant, kind.String(), outcome).Observe(time.Since(start).Seconds())
}
