package evaluate

import (
	"fmt"
	"strings"

	"vpo/internal/media"
	"vpo/internal/policy"
)

// Kind names a single described mutation an operation can emit.
type Kind string

const (
	ActionSetContainer         Kind = "set_container"
	ActionRemoveTrack          Kind = "remove_track"
	ActionReorder              Kind = "reorder"
	ActionSetDefault           Kind = "set_default"
	ActionSetForced            Kind = "set_forced"
	ActionSetLanguage          Kind = "set_language"
	ActionClearTitle           Kind = "clear_title"
	ActionSynthesizeAudio      Kind = "synthesize_audio"
	ActionTranscode            Kind = "transcode"
	ActionRequestTranscription Kind = "request_transcription"
)

// Action is one described mutation. Actions only describe; applying them
// to real files belongs to the external tool executor.
type Action struct {
	Kind      Kind   `json:"kind"`
	Operation string `json:"operation"`
	Track     *int   `json:"track,omitempty"`
	Reason    string `json:"reason,omitempty"`

	Container string `json:"container,omitempty"`
	Value     *bool  `json:"value,omitempty"`
	Language  string `json:"language,omitempty"`
	Order     []int  `json:"order,omitempty"`

	Synthesis     *SynthesisSpec `json:"synthesis,omitempty"`
	Transcode     *TranscodeSpec `json:"transcode,omitempty"`
	Transcription *AnalysisSpec  `json:"transcription,omitempty"`
}

// SynthesisSpec describes one audio track to derive from a source track.
type SynthesisSpec struct {
	SourceTrack int    `json:"source_track"`
	Codec       string `json:"codec"`
	Channels    int    `json:"channels"`
	Language    string `json:"language,omitempty"`
	Title       string `json:"title,omitempty"`
	Bitrate     string `json:"bitrate,omitempty"`
}

// TranscodeSpec carries the re-encode parameters for the executor.
type TranscodeSpec struct {
	SourceCodec string `json:"source_codec"`
	TargetCodec string `json:"target_codec"`
	CRF         *int   `json:"crf,omitempty"`
	Bitrate     string `json:"bitrate,omitempty"`
	Preset      string `json:"preset,omitempty"`
	MaxWidth    int    `json:"max_width,omitempty"`
	MaxHeight   int    `json:"max_height,omitempty"`
}

// AnalysisSpec asks the downstream analyzer to transcribe a track.
// Reordering after commentary detection happens on re-evaluation, once
// the snapshot carries the analysis results.
type AnalysisSpec struct {
	DetectCommentary    bool    `json:"detect_commentary,omitempty"`
	ReorderCommentary   bool    `json:"reorder_commentary,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

// Summary renders a one-line human description for previews and logs.
func (a Action) Summary() string {
	var b strings.Builder
	b.WriteString(string(a.Kind))
	if a.Track != nil {
		fmt.Fprintf(&b, " track #%d", *a.Track)
	}
	switch {
	case a.Container != "":
		fmt.Fprintf(&b, " -> %s", a.Container)
	case a.Value != nil:
		fmt.Fprintf(&b, " = %t", *a.Value)
	case a.Language != "":
		fmt.Fprintf(&b, " -> %s", a.Language)
	case len(a.Order) > 0:
		fmt.Fprintf(&b, " %v", a.Order)
	case a.Synthesis != nil:
		fmt.Fprintf(&b, " %s %dch from track #%d", a.Synthesis.Codec, a.Synthesis.Channels, a.Synthesis.SourceTrack)
	case a.Transcode != nil:
		fmt.Fprintf(&b, " %s -> %s", a.Transcode.SourceCodec, a.Transcode.TargetCodec)
	}
	if a.Reason != "" {
		fmt.Fprintf(&b, " (%s)", a.Reason)
	}
	return b.String()
}

// RequiresRemux reports whether any action needs the container rebuilt.
// Flag, language, and title edits are in-place metadata writes; the
// transcode action runs through its own encoder pipeline.
func RequiresRemux(actions []Action) bool {
	for _, action := range actions {
		switch action.Kind {
		case ActionSetContainer, ActionRemoveTrack, ActionReorder, ActionSynthesizeAudio:
			return true
		}
	}
	return false
}

// Outcome is the result of evaluating one operation: the emitted
// actions plus a fresh view reflecting their hypothetical application.
// The input view is never mutated. Warnings are logged by the caller,
// never errors. Skips record explicit no-op decisions. Suppress lists
// later canonical operations a conditional rule disabled.
type Outcome struct {
	Actions  []Action
	View     *media.Snapshot
	Warnings []string
	Skips    []string
	Suppress []policy.OperationKind
}

func trackRef(index int) *int {
	return &index
}

func boolRef(value bool) *bool {
	return &value
}

func flagAction(kind Kind, operation string, track int, value bool) Action {
	return Action{Kind: kind, Operation: operation, Track: trackRef(track), Value: boolRef(value)}
}

func removeAction(op policy.OperationKind, track media.Track, reason string) Action {
	return Action{Kind: ActionRemoveTrack, Operation: string(op), Track: trackRef(track.Index), Reason: reason}
}

// withoutTracks builds a view that drops the tracks whose identity index
// is in removed.
func withoutTracks(view *media.Snapshot, removed map[int]bool) *media.Snapshot {
	next := view.Clone()
	kept := next.Tracks[:0]
	for _, track := range next.Tracks {
		if !removed[track.Index] {
			kept = append(kept, track)
		}
	}
	next.Tracks = kept
	return next
}

// nextIndex returns a free identity index for a synthesized track.
func nextIndex(view *media.Snapshot) int {
	highest := -1
	for _, track := range view.Tracks {
		if track.Index > highest {
			highest = track.Index
		}
	}
	return highest + 1
}
