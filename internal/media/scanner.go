package media

import "context"

// Scanner loads the current snapshot of a media file. Implementations may
// probe the file directly or read a previously stored scan; the policy
// engine only depends on the returned snapshot. Failures other than
// not-scanned surface as scan errors the batch records per file.
type Scanner interface {
	Scan(ctx context.Context, path string) (*Snapshot, error)
}
