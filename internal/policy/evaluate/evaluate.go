package evaluate

import (
	"regexp"

	"vpo/internal/media"
	"vpo/internal/policy"
	"vpo/internal/services"
)

// Config carries the document-level settings the evaluators share. The
// confidence threshold comes from the phase's transcription payload (or
// its default) so classification and analysis agree; a zero threshold
// disables analysis-based commentary classification.
type Config struct {
	AudioLanguages      []string
	SubtitleLanguages   []string
	CommentaryPatterns  []*regexp.Regexp
	ConfidenceThreshold float64
}

// NewConfig resolves the evaluation config for one phase of a model.
func NewConfig(model *policy.Model, phase policy.Phase) Config {
	return Config{
		AudioLanguages:      model.Config.AudioLanguages,
		SubtitleLanguages:   model.Config.SubtitleLanguages,
		CommentaryPatterns:  model.CommentaryPatterns(),
		ConfidenceThreshold: phase.Transcription.Threshold(),
	}
}

// Operation evaluates one canonical operation of the phase against the
// view. Evaluators are pure: the input view is never mutated, and
// re-evaluating against a view that already reflects the emitted
// actions yields an empty action list.
func Operation(cfg Config, phase policy.Phase, kind policy.OperationKind, view *media.Snapshot) (Outcome, error) {
	switch kind {
	case policy.OpContainer:
		return Container(phase.Container, view), nil
	case policy.OpAudioFilter:
		return KeepAudio(cfg, phase.KeepAudio, view)
	case policy.OpSubtitleFilter:
		return KeepSubtitles(phase.KeepSubtitles, view), nil
	case policy.OpAttachmentFilter:
		return FilterAttachments(phase.FilterAttachments, view), nil
	case policy.OpTrackOrder:
		return TrackOrder(cfg, phase.TrackOrder, view)
	case policy.OpDefaultFlags:
		return DefaultFlags(cfg, phase.DefaultFlags, view), nil
	case policy.OpConditional:
		return Rules(cfg, phase.Rules, view)
	case policy.OpAudioSynthesis:
		return AudioSynthesis(cfg, phase.AudioSynthesis, view)
	case policy.OpTranscode:
		return Transcode(phase.Transcode, view)
	case policy.OpTranscription:
		return Transcription(phase.Transcription, view), nil
	}
	return Outcome{}, services.Wrap(services.ErrOperation, "", string(kind), "unknown operation kind", nil)
}
