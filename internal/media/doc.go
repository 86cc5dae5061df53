// Package media defines the track snapshot model policy evaluation runs
// against, plus parsing for ffprobe-style scan manifests.
//
// A Snapshot is a point-in-time view of one container: its format, size,
// and ordered tracks with codec, language, title, flag, and layout
// metadata. Snapshots are treated as immutable; evaluators derive updated
// views with Clone. Fingerprint hashes the stable attributes so stored
// plans can detect that a file changed between scan and apply.
package media
