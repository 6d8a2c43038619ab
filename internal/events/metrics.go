package events

import "github.com/prometheus/client_golang/prometheus"

const (
	resultDelivered = "delivered"
	resultDropped   = "dropped"
	resultClosed    = "closed"
)

type Metrics struct {
	Subscribers prometheus.Gauge
	Deliveries  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "events_subscribers",
			Help: "Open event stream subscribers",
		}),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_deliveries_total",
				Help: "Event deliveries by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.Subscribers, m.Deliveries)
	return m
}

func (m *Metrics) setSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) delivery(result string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result).Inc()
}
