package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agisfl_fl_rounds_total",
		Help: "Federated learning rounds completed",
	})

	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agisfl_fl_running",
		Help: "1 if FL training is running, 0 otherwise",
	})

	Workers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agisfl_fl_clients",
		Help: "Number of registered FL workers",
	})
)
