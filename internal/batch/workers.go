package batch

import (
	"log/slog"

	"vpo/internal/logging"
)

const defaultWorkers = 2

// ResolveWorkerCount picks the effective pool size. The request (or the
// configured default when the request is zero) is capped at half the
// available CPUs, never below one. Exceeding the cap logs a warning;
// it is never an error.
func ResolveWorkerCount(requested, configured, cpus int, log *slog.Logger) int {
	want := requested
	if want <= 0 {
		want = configured
	}
	if want <= 0 {
		want = defaultWorkers
	}

	limit := cpus / 2
	if limit < 1 {
		limit = 1
	}
	if want > limit {
		if log != nil {
			log.Warn("worker count capped",
				logging.Int("requested", want),
				logging.Int("workers", limit),
				logging.Int("cpus", cpus))
		}
		want = limit
	}
	return want
}
