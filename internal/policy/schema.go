package policy

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaVersion bounds. Documents outside the window are rejected with a
// message telling the operator to migrate.
const (
	SchemaVersionMin = 13
	SchemaVersionMax = 13
)

// Reserved words that cannot be used as phase names.
var reservedPhaseNames = map[string]struct{}{
	"config":         {},
	"phases":         {},
	"schema_version": {},
}

// Document is the raw decoded policy file, before validation. Only a
// validated Model is handed to evaluation.
type Document struct {
	SchemaVersion int          `yaml:"schema_version"`
	Name          string       `yaml:"name"`
	Description   string       `yaml:"description"`
	Config        GlobalConfig `yaml:"config"`
	Phases        []Phase      `yaml:"phases"`
}

// GlobalConfig carries document-wide evaluation settings.
type GlobalConfig struct {
	AudioLanguages     []string `yaml:"audio_languages"`
	SubtitleLanguages  []string `yaml:"subtitle_languages"`
	CommentaryPatterns []string `yaml:"commentary_patterns"`
	OnError            string   `yaml:"on_error"`
}

// Phase is one named step of the policy. Operation presence is keyed by
// field; execution follows the canonical order, not declaration order.
type Phase struct {
	Name    string `yaml:"name"`
	OnError string `yaml:"on_error"`

	Container         *ContainerOp         `yaml:"container"`
	AudioActions      *NormalizeActions    `yaml:"audio_actions"`
	SubtitleActions   *NormalizeActions    `yaml:"subtitle_actions"`
	VideoActions      *NormalizeActions    `yaml:"video_actions"`
	KeepAudio         *KeepAudioOp         `yaml:"keep_audio"`
	KeepSubtitles     *KeepSubtitlesOp     `yaml:"keep_subtitles"`
	FilterAttachments *FilterAttachmentsOp `yaml:"filter_attachments"`
	TrackOrder        []string             `yaml:"track_order"`
	DefaultFlags      *DefaultFlagsOp      `yaml:"default_flags"`
	Rules             *RulesOp             `yaml:"rules"`
	AudioSynthesis    *AudioSynthesisOp    `yaml:"audio_synthesis"`
	Transcode         *TranscodeOp         `yaml:"transcode"`
	Transcription     *TranscriptionOp     `yaml:"transcription"`
}

// ContainerOp declares the desired container format.
type ContainerOp struct {
	Target string `yaml:"target"`
}

// NormalizeActions resets track metadata wholesale before filtering.
type NormalizeActions struct {
	ClearAllForced  bool `yaml:"clear_all_forced"`
	ClearAllDefault bool `yaml:"clear_all_default"`
	ClearAllTitles  bool `yaml:"clear_all_titles"`
}

// Active reports whether any normalization toggle is set.
func (n *NormalizeActions) Active() bool {
	return n != nil && (n.ClearAllForced || n.ClearAllDefault || n.ClearAllTitles)
}

// Fallback controls keep_audio behavior when no track matches the
// language preferences.
type Fallback struct {
	Mode string `yaml:"mode"` // error | keep_all | keep_first
}

// KeepAudioOp filters audio tracks by language preference.
type KeepAudioOp struct {
	Languages       []string  `yaml:"languages"`
	Minimum         *int      `yaml:"minimum"`
	Fallback        *Fallback `yaml:"fallback"`
	KeepMusicTracks *bool     `yaml:"keep_music_tracks"`
	KeepSFXTracks   *bool     `yaml:"keep_sfx_tracks"`
}

// MinimumTracks returns the configured minimum with its default of 1.
func (k *KeepAudioOp) MinimumTracks() int {
	if k == nil || k.Minimum == nil {
		return 1
	}
	return *k.Minimum
}

// FallbackMode returns the configured fallback with its default of error.
func (k *KeepAudioOp) FallbackMode() string {
	if k == nil || k.Fallback == nil || strings.TrimSpace(k.Fallback.Mode) == "" {
		return "error"
	}
	return k.Fallback.Mode
}

// KeepMusic reports whether music tracks bypass the language filter.
func (k *KeepAudioOp) KeepMusic() bool {
	if k == nil || k.KeepMusicTracks == nil {
		return true
	}
	return *k.KeepMusicTracks
}

// KeepSFX reports whether SFX tracks bypass the language filter.
func (k *KeepAudioOp) KeepSFX() bool {
	if k == nil || k.KeepSFXTracks == nil {
		return true
	}
	return *k.KeepSFXTracks
}

// KeepSubtitlesOp filters subtitle tracks.
type KeepSubtitlesOp struct {
	Languages      []string `yaml:"languages"`
	PreserveForced bool     `yaml:"preserve_forced"`
	RemoveAll      bool     `yaml:"remove_all"`
}

// FilterAttachmentsOp filters attachment tracks.
type FilterAttachmentsOp struct {
	RemoveAll bool `yaml:"remove_all"`
}

// TrackRole names a bucket in a track_order sequence.
type TrackRole string

const (
	RoleVideo              TrackRole = "video"
	RoleAudioMain          TrackRole = "audio_main"
	RoleAudioAlternate     TrackRole = "audio_alternate"
	RoleAudioCommentary    TrackRole = "audio_commentary"
	RoleSubtitleMain       TrackRole = "subtitle_main"
	RoleSubtitleForced     TrackRole = "subtitle_forced"
	RoleSubtitleCommentary TrackRole = "subtitle_commentary"
	RoleAttachment         TrackRole = "attachment"
)

var validTrackRoles = map[TrackRole]struct{}{
	RoleVideo:              {},
	RoleAudioMain:          {},
	RoleAudioAlternate:     {},
	RoleAudioCommentary:    {},
	RoleSubtitleMain:       {},
	RoleSubtitleForced:     {},
	RoleSubtitleCommentary: {},
	RoleAttachment:         {},
}

// ValidTrackRole reports whether role names a known ordering bucket.
func ValidTrackRole(role TrackRole) bool {
	_, ok := validTrackRoles[role]
	return ok
}

// DefaultFlagsOp rewrites default and forced dispositions.
type DefaultFlagsOp struct {
	SetFirstVideoDefault              bool `yaml:"set_first_video_default"`
	SetPreferredAudioDefault          bool `yaml:"set_preferred_audio_default"`
	SetPreferredSubtitleDefault       bool `yaml:"set_preferred_subtitle_default"`
	ClearOtherDefaults                bool `yaml:"clear_other_defaults"`
	SetSubtitleForcedWhenAudioDiffers bool `yaml:"set_subtitle_forced_when_audio_differs"`
}

// RulesOp evaluates named conditional rules against the snapshot.
type RulesOp struct {
	Match string `yaml:"match"` // first | all
	Items []Rule `yaml:"items"`
}

// MatchMode returns the configured mode with its default of first.
func (r *RulesOp) MatchMode() string {
	if r == nil || strings.TrimSpace(r.Match) == "" {
		return "first"
	}
	return r.Match
}

// Rule is one named condition with actions for both branches.
type Rule struct {
	Name string       `yaml:"name"`
	When *Condition   `yaml:"when"`
	Then []RuleAction `yaml:"then"`
	Else []RuleAction `yaml:"else"`
}

// Condition is a boolean expression over the snapshot. Exactly one of the
// fields may be set per node.
type Condition struct {
	All    []Condition     `yaml:"all"`
	Any    []Condition     `yaml:"any"`
	Not    *Condition      `yaml:"not"`
	Exists *TrackPredicate `yaml:"exists"`
	Count  *CountCondition `yaml:"count"`
}

// CountCondition compares the number of tracks matching a predicate.
type CountCondition struct {
	Of  TrackPredicate `yaml:"of"`
	Eq  *int           `yaml:"eq"`
	Lt  *int           `yaml:"lt"`
	Lte *int           `yaml:"lte"`
	Gt  *int           `yaml:"gt"`
	Gte *int           `yaml:"gte"`
}

// TrackPredicate matches individual tracks by metadata.
type TrackPredicate struct {
	Type          string   `yaml:"type"`
	Language      string   `yaml:"language"`
	Languages     []string `yaml:"languages"`
	Codec         string   `yaml:"codec"`
	Codecs        []string `yaml:"codecs"`
	Default       *bool    `yaml:"default"`
	Forced        *bool    `yaml:"forced"`
	Channels      *int     `yaml:"channels"`
	TitleContains string   `yaml:"title_contains"`
	TitleRegex    string   `yaml:"title_regex"`
}

// RuleAction is one effect of a matched (or unmatched) rule. Exactly one
// of the fields may be set.
type RuleAction struct {
	SetForced   *FlagTarget     `yaml:"set_forced"`
	SetDefault  *FlagTarget     `yaml:"set_default"`
	SetLanguage *LanguageTarget `yaml:"set_language"`
	Warn        string          `yaml:"warn"`
	Fail        string          `yaml:"fail"`
	Skip        []string        `yaml:"skip"`
}

// FlagTarget selects tracks and the flag value to apply.
type FlagTarget struct {
	Tracks TrackPredicate `yaml:"tracks"`
	Value  *bool          `yaml:"value"`
}

// FlagValue returns the configured value with its default of true.
func (f *FlagTarget) FlagValue() bool {
	if f == nil || f.Value == nil {
		return true
	}
	return *f.Value
}

// LanguageTarget selects tracks and the language tag to apply.
type LanguageTarget struct {
	Tracks   TrackPredicate `yaml:"tracks"`
	Language string         `yaml:"language"`
}

// AudioSynthesisOp declares audio tracks to derive from an existing source.
type AudioSynthesisOp struct {
	Tracks []SynthTrackDef `yaml:"tracks"`
}

// SynthTrackDef describes one track to synthesize.
type SynthTrackDef struct {
	Codec        string        `yaml:"codec"`
	Channels     ChannelCount  `yaml:"channels"`
	Language     string        `yaml:"language"`
	Title        string        `yaml:"title"`
	Bitrate      string        `yaml:"bitrate"`
	SkipIfExists *SkipIfExists `yaml:"skip_if_exists"`
}

// SkipCriteria resolves the skip_if_exists clause, defaulting each unset
// field to the definition's own value so re-evaluation against a snapshot
// that already carries the synthesized track emits nothing.
func (d SynthTrackDef) SkipCriteria() SkipIfExists {
	criteria := SkipIfExists{
		Codec:    d.Codec,
		Channels: d.Channels,
		Language: d.Language,
	}
	if d.SkipIfExists == nil {
		return criteria
	}
	if strings.TrimSpace(d.SkipIfExists.Codec) != "" {
		criteria.Codec = d.SkipIfExists.Codec
	}
	if d.SkipIfExists.Channels > 0 {
		criteria.Channels = d.SkipIfExists.Channels
	}
	if strings.TrimSpace(d.SkipIfExists.Language) != "" {
		criteria.Language = d.SkipIfExists.Language
	}
	return criteria
}

// SkipIfExists suppresses synthesis when a matching track already exists.
type SkipIfExists struct {
	Codec    string       `yaml:"codec"`
	Channels ChannelCount `yaml:"channels"`
	Language string       `yaml:"language"`
}

// ChannelCount accepts either a number or a layout word (stereo, mono).
type ChannelCount int

var channelWords = map[string]int{
	"mono":     1,
	"stereo":   2,
	"2.0":      2,
	"5.1":      6,
	"surround": 6,
	"7.1":      8,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ChannelCount) UnmarshalYAML(value *yaml.Node) error {
	var number int
	if err := value.Decode(&number); err == nil {
		*c = ChannelCount(number)
		return nil
	}
	var word string
	if err := value.Decode(&word); err != nil {
		return fmt.Errorf("channels: expected number or layout word")
	}
	count, ok := channelWords[strings.ToLower(strings.TrimSpace(word))]
	if !ok {
		return fmt.Errorf("channels: unknown layout %q", word)
	}
	*c = ChannelCount(count)
	return nil
}

// TranscodeOp declares the video transcode decision.
type TranscodeOp struct {
	TargetCodec string         `yaml:"target_codec"`
	SkipIf      *TranscodeSkip `yaml:"skip_if"`
	Quality     *QualitySpec   `yaml:"quality"`
	Scaling     *ScalingSpec   `yaml:"scaling"`
}

// TranscodeSkip suppresses the transcode when the source already complies.
type TranscodeSkip struct {
	CodecMatches     []string `yaml:"codec_matches"`
	ResolutionWithin string   `yaml:"resolution_within"`
	BitrateUnder     string   `yaml:"bitrate_under"`
}

// QualitySpec selects rate control. CRF takes precedence when both are set.
type QualitySpec struct {
	CRF     *int   `yaml:"crf"`
	Bitrate string `yaml:"bitrate"`
	Preset  string `yaml:"preset"`
}

// ScalingSpec caps output resolution.
type ScalingSpec struct {
	MaxResolution string `yaml:"max_resolution"`
	MaxWidth      int    `yaml:"max_width"`
	MaxHeight     int    `yaml:"max_height"`
}

// TranscriptionOp requests speech analysis of audio tracks.
type TranscriptionOp struct {
	Enabled             bool     `yaml:"enabled"`
	DetectCommentary    bool     `yaml:"detect_commentary"`
	ReorderCommentary   bool     `yaml:"reorder_commentary"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
}

// Threshold returns the configured confidence with its default of 0.8.
func (t *TranscriptionOp) Threshold() float64 {
	if t == nil || t.ConfidenceThreshold == nil {
		return 0.8
	}
	return *t.ConfidenceThreshold
}

// Model is the validated, immutable policy handed to evaluation. It is
// produced only by Validate; construct one by loading a document.
type Model struct {
	Name          string
	Description   string
	SchemaVersion int
	Config        GlobalConfig
	Phases        []Phase

	commentaryPatterns []*regexp.Regexp
}

// CommentaryPatterns returns the compiled commentary title patterns.
func (m *Model) CommentaryPatterns() []*regexp.Regexp {
	return m.commentaryPatterns
}

// FindPhase returns the named phase.
func (m *Model) FindPhase(name string) (Phase, bool) {
	for _, phase := range m.Phases {
		if phase.Name == name {
			return phase, true
		}
	}
	return Phase{}, false
}

// PhaseNames returns the declared phase names in order.
func (m *Model) PhaseNames() []string {
	names := make([]string, len(m.Phases))
	for i, phase := range m.Phases {
		names[i] = phase.Name
	}
	return names
}

// PhaseOnError returns the effective error mode for the phase, falling
// back to the document-level config.
func (m *Model) PhaseOnError(phase Phase) string {
	if mode := strings.TrimSpace(phase.OnError); mode != "" {
		return mode
	}
	return m.Config.OnError
}
