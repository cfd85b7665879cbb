package smbclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics tracks client-side Prometheus metrics.
//
// All metrics use the smbclient_ prefix. A nil *metrics is a no-op, which is
// what a Config without a Registerer gets.
type metrics struct {
	// requestsTotal counts completed requests by command and status
	requestsTotal *prometheus.CounterVec

	// requestDuration tracks latency from send to response
	requestDuration *prometheus.HistogramVec

	// creditBalance is the number of credits currently available
	creditBalance prometheus.Gauge

	// bytesTotal counts file payload by direction ("read", "write")
	bytesTotal *prometheus.CounterVec

	// disconnectsTotal counts lost connections
	disconnectsTotal prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smbclient_requests_total",
				Help: "Total SMB2 requests by command and response status",
			},
			[]string{"command", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smbclient_request_duration_seconds",
				Help:    "SMB2 request round-trip duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		creditBalance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "smbclient_credit_balance",
				Help: "Credits currently available for new requests",
			},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smbclient_bytes_total",
				Help: "File payload bytes transferred by direction",
			},
			[]string{"direction"},
		),
		disconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smbclient_disconnects_total",
				Help: "Connections lost or closed",
			},
		),
	}

	var err error
	m.requestsTotal = register(reg, m.requestsTotal, &err)
	m.requestDuration = register(reg, m.requestDuration, &err)
	m.creditBalance = register(reg, m.creditBalance, &err)
	m.bytesTotal = register(reg, m.bytesTotal, &err)
	m.disconnectsTotal = register(reg, m.disconnectsTotal, &err)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// register adds c to reg. When several clients share one registry the
// collector registered first is reused.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errp = err
	}
	return c
}

func (m *metrics) recordRequest(command, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(command, status).Inc()
	m.requestDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (m *metrics) setCredits(n int) {
	if m == nil {
		return
	}
	m.creditBalance.Set(float64(n))
}

func (m *metrics) addBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(direction).Add(float64(n))
}

func (m *metrics) recordDisconnect() {
	if m == nil {
		return
	}
	m.disconnectsTotal.Inc()
}
