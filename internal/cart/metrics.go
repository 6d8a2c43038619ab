package cart

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK         = "ok"
	resultValidation = "validation_error"
	resultStorage    = "storage_error"
)

type Metrics struct {
	Mutations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_mutations_total",
				Help: "Cart mutations by operation and result",
			},
			[]string{"op", "result"},
		),
	}
	reg.MustRegister(m.Mutations)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, resultOf(err)).Inc()
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case isValidation(err):
		return resultValidation
	default:
		return resultStorage
	}
}
