package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics exports Go runtime and host metrics through the global
// meter provider
func StartRuntimeMetrics(memStatsInterval time.Duration) error {
	if err := runtime.Start(
		runtime.WithMinimumReadMemStatsInterval(memStatsInterval),
	); err != nil {
		return err
	}

	return hostmetrics.Start()
}
