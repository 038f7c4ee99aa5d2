package voxel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voxelCountSaturations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxel_count_saturations_total",
		Help: "The total number of class counts saturated to the packed counter width during encoding.",
	})
)

func instrumentCountSaturation() {
	voxelCountSaturations.Inc()
}
