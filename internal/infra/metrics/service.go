package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Always 1; labels carry the running binary's version.",
		},
		[]string{"version", "commit", "go_version"},
	)

	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"},
	)
)

func init() { register(buildInfo, dbPoolStats) }

func SetBuildInfo(version, commit string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

// SetDBPoolStats mirrors pgxpool.Stat; in_use counts acquired connections.
func SetDBPoolStats(total, idle, inUse int32) {
	for state, v := range map[string]int32{"total": total, "idle": idle, "in_use": inUse} {
		dbPoolStats.WithLabelValues(state).Set(float64(v))
	}
}
