// Package metrics holds the Prometheus collectors for the advisory service.
// Each file queues its collectors from init; MustRegister publishes them.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) { pending = append(pending, cs...) }

// MustRegister adds every queued collector to the default registry. Safe to
// call more than once.
func MustRegister() {
	registerOnce.Do(func() { prometheus.MustRegister(pending...) })
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
