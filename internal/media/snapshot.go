package media

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Snapshot is the point-in-time description of a media file that policy
// evaluation runs against. Evaluators never mutate a snapshot; they derive
// updated views via Clone.
type Snapshot struct {
	Path      string  `json:"path"`
	Container string  `json:"container"`
	SizeBytes int64   `json:"size_bytes,omitempty"`
	Duration  float64 `json:"duration_seconds,omitempty"`
	Tracks    []Track `json:"tracks"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Tracks = make([]Track, len(s.Tracks))
	for i, track := range s.Tracks {
		clone.Tracks[i] = track.Clone()
	}
	return &clone
}

// TracksOfType returns the tracks of the given type in container order.
func (s *Snapshot) TracksOfType(kind TrackType) []Track {
	var result []Track
	for _, track := range s.Tracks {
		if track.Type == kind {
			result = append(result, track)
		}
	}
	return result
}

// TrackByIndex returns the track with the given container index.
func (s *Snapshot) TrackByIndex(index int) (Track, bool) {
	for _, track := range s.Tracks {
		if track.Index == index {
			return track, true
		}
	}
	return Track{}, false
}

// VideoCount returns the number of video tracks.
func (s *Snapshot) VideoCount() int {
	return len(s.TracksOfType(TrackVideo))
}

// AudioCount returns the number of audio tracks.
func (s *Snapshot) AudioCount() int {
	return len(s.TracksOfType(TrackAudio))
}

// Fingerprint computes a deterministic hash over the stable attributes of
// the snapshot (container, track ordering, codecs, languages, flags). Two
// scans of an unchanged file produce the same fingerprint, so a stored
// plan can be checked against the current file state before it is applied.
// The path is intentionally excluded; moving a file does not change its
// content.
func (s *Snapshot) Fingerprint() string {
	hasher := sha256.New()

	writeComponent(hasher, strings.ToLower(strings.TrimSpace(s.Container)))
	writeComponent(hasher, strconv.FormatInt(s.SizeBytes, 10))

	for _, track := range s.Tracks {
		writeComponent(hasher, strconv.Itoa(track.Index))
		writeComponent(hasher, strings.ToLower(string(track.Type)))
		writeComponent(hasher, strings.ToLower(strings.TrimSpace(track.Codec)))
		writeComponent(hasher, strings.ToLower(strings.TrimSpace(track.Language)))
		writeComponent(hasher, strings.ToLower(strings.TrimSpace(track.Title)))
		writeComponent(hasher, strconv.FormatBool(track.Default))
		writeComponent(hasher, strconv.FormatBool(track.Forced))
		writeComponent(hasher, strconv.Itoa(track.Channels))
		writeComponent(hasher, strings.ToLower(strings.TrimSpace(track.ChannelLayout)))
		writeComponent(hasher, strconv.Itoa(track.Width))
		writeComponent(hasher, strconv.Itoa(track.Height))
		writeComponent(hasher, strconv.FormatInt(track.BitRate, 10))
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

func writeComponent(hasher hashWriter, value string) {
	if hasher == nil {
		return
	}
	_, _ = hasher.Write([]byte(value))
	_, _ = hasher.Write([]byte{0})
}

type hashWriter interface {
	Write(p []byte) (int, error)
}
