// Package services defines shared utilities consumed by the policy evaluation
// core and its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, batch IDs, file paths, phase names,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures with
//     the taxonomy the batch coordinator and CLI classify on (validation,
//     operation, scan, tool, abort, conflict).
//
// Use these helpers when wiring new evaluation or coordination logic so
// operational behaviour (error handling, observability) stays uniform across
// the system.
package services
