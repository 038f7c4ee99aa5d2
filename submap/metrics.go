package submap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submapCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "submap_count",
		Help: "The number of live submaps.",
	})

	submapCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "submap_count_total",
		Help: "The total number of submaps ever owned.",
	})
)

func instrumentIncreaseSubmapGauge() {
	submapCount.Inc()
}

func instrumentDecreaseSubmapGauge() {
	submapCount.Dec()
}

func instrumentCountSubmap() {
	submapCountTotal.Inc()
}
