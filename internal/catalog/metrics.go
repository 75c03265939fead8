package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// searchPathTotal counts catalog searches by the path that served them.
// "degraded" means both paths failed and the empty response was returned.
var searchPathTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_search_path_total",
		Help: "Catalog searches by serving path (index, fallback, degraded).",
	},
	[]string{"path"},
)

const (
	pathIndex    = "index"
	pathFallback = "fallback"
	pathDegraded = "degraded"
)
