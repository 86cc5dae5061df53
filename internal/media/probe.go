package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"vpo/internal/language"
)

// Report mirrors the JSON emitted by ffprobe -show_format -show_streams.
// Scan manifests in this shape are the ingestion format for `vpo db import`.
type Report struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the probed container.
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     string            `json:"codec_type"`
	Profile       string            `json:"profile"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	BitRate       string            `json:"bit_rate"`
	Tags          map[string]string `json:"tags"`
	Disposition   map[string]int    `json:"disposition"`
}

// Format captures container-level metadata from the probe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// ParseReport decodes a probe manifest.
func ParseReport(data []byte) (Report, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("parse probe report: %w", err)
	}
	if len(report.Streams) == 0 {
		return Report{}, errors.New("parse probe report: no streams")
	}
	return report, nil
}

// Snapshot converts the report into the track snapshot policy evaluation
// runs against. When the manifest omits format.filename the provided
// fallback path is used.
func (r Report) Snapshot(fallbackPath string) *Snapshot {
	path := strings.TrimSpace(r.Format.Filename)
	if path == "" {
		path = fallbackPath
	}

	snapshot := &Snapshot{
		Path:      path,
		Container: normalizeContainer(r.Format.FormatName, path),
		SizeBytes: parseInt64(r.Format.Size),
		Duration:  parseSeconds(r.Format.Duration),
		Tracks:    make([]Track, 0, len(r.Streams)),
	}

	for _, stream := range r.Streams {
		track := Track{
			Index:         stream.Index,
			Type:          ParseTrackType(stream.CodecType),
			Codec:         strings.ToLower(strings.TrimSpace(stream.CodecName)),
			Language:      language.ExtractFromTags(stream.Tags),
			Title:         titleFromTags(stream.Tags),
			Channels:      stream.Channels,
			ChannelLayout: strings.TrimSpace(stream.ChannelLayout),
			Width:         stream.Width,
			Height:        stream.Height,
			BitRate:       parseInt64(stream.BitRate),
		}
		if stream.Disposition != nil {
			track.Default = stream.Disposition["default"] == 1
			track.Forced = stream.Disposition["forced"] == 1
		}
		snapshot.Tracks = append(snapshot.Tracks, track)
	}

	return snapshot
}

func titleFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, key := range []string{"title", "TITLE", "Title"} {
		if value, ok := tags[key]; ok {
			trimmed := strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// normalizeContainer maps ffprobe format_name values (comma-separated
// alternatives like "matroska,webm") to the single container names policy
// documents use.
func normalizeContainer(formatName, path string) string {
	name := strings.ToLower(strings.TrimSpace(formatName))
	switch {
	case strings.Contains(name, "matroska"):
		return "mkv"
	case strings.Contains(name, "mp4"):
		return "mp4"
	case strings.Contains(name, "avi"):
		return "avi"
	case strings.Contains(name, "webm"):
		return "webm"
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	if name == "" {
		return ""
	}
	if idx := strings.IndexByte(name, ','); idx > 0 {
		return name[:idx]
	}
	return name
}

func parseSeconds(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}

func parseInt64(value string) int64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
