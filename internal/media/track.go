package media

import (
	"strconv"
	"strings"

	"vpo/internal/language"
)

// TrackType identifies the kind of stream a track carries.
type TrackType string

const (
	TrackVideo      TrackType = "video"
	TrackAudio      TrackType = "audio"
	TrackSubtitle   TrackType = "subtitle"
	TrackAttachment TrackType = "attachment"
)

// ParseTrackType normalizes a stream kind string to a TrackType.
// Unrecognized kinds map to attachment so they survive reordering
// without being mistaken for playable streams.
func ParseTrackType(value string) TrackType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "video":
		return TrackVideo
	case "audio":
		return TrackAudio
	case "subtitle", "subtitles", "text":
		return TrackSubtitle
	default:
		return TrackAttachment
	}
}

// TrackAnalysis captures transcription-derived findings for an audio track.
type TrackAnalysis struct {
	Transcribed          bool    `json:"transcribed"`
	DetectedLanguage     string  `json:"detected_language,omitempty"`
	CommentaryConfidence float64 `json:"commentary_confidence,omitempty"`
}

// Track is the immutable snapshot of a single stream inside a container.
type Track struct {
	Index         int            `json:"index"`
	Type          TrackType      `json:"type"`
	Codec         string         `json:"codec"`
	Language      string         `json:"language,omitempty"`
	Title         string         `json:"title,omitempty"`
	Default       bool           `json:"default,omitempty"`
	Forced        bool           `json:"forced,omitempty"`
	Channels      int            `json:"channels,omitempty"`
	ChannelLayout string         `json:"channel_layout,omitempty"`
	Width         int            `json:"width,omitempty"`
	Height        int            `json:"height,omitempty"`
	BitRate       int64          `json:"bit_rate,omitempty"`
	Analysis      *TrackAnalysis `json:"analysis,omitempty"`
}

// Clone returns a deep copy of the track.
func (t Track) Clone() Track {
	clone := t
	if t.Analysis != nil {
		analysis := *t.Analysis
		clone.Analysis = &analysis
	}
	return clone
}

// LanguageMatches reports whether the track language matches code,
// treating two- and three-letter forms as equivalent.
func (t Track) LanguageMatches(code string) bool {
	return language.Matches(t.Language, code)
}

// LanguageMatchesAny reports whether the track language matches any
// preference in prefs.
func (t Track) LanguageMatchesAny(prefs []string) bool {
	return language.MatchesAny(t.Language, prefs)
}

// Display renders a short human-readable description used in plan output
// and log lines.
func (t Track) Display() string {
	parts := make([]string, 0, 4)
	parts = append(parts, "#"+strconv.Itoa(t.Index), string(t.Type))
	if t.Codec != "" {
		parts = append(parts, t.Codec)
	}
	if t.Language != "" {
		parts = append(parts, language.DisplayName(t.Language))
	}
	if t.Type == TrackAudio && t.Channels > 0 {
		parts = append(parts, strconv.Itoa(t.Channels)+"ch")
	}
	if t.Type == TrackVideo && t.Width > 0 && t.Height > 0 {
		parts = append(parts, strconv.Itoa(t.Width)+"x"+strconv.Itoa(t.Height))
	}
	if t.Title != "" {
		parts = append(parts, strconv.Quote(t.Title))
	}
	return strings.Join(parts, " ")
}
