package policy

// OperationKind names one of the canonical policy operations.
type OperationKind string

// Error modes accepted by config.on_error and per-phase on_error. The
// document-level value also drives batch behavior; the phase axis decides
// how far evaluation of one file gets after a phase breaks.
const (
	OnErrorFail     = "fail"
	OnErrorSkip     = "skip"
	OnErrorContinue = "continue"
)

const (
	OpContainer        OperationKind = "container"
	OpAudioFilter      OperationKind = "audio_filter"
	OpSubtitleFilter   OperationKind = "subtitle_filter"
	OpAttachmentFilter OperationKind = "attachment_filter"
	OpTrackOrder       OperationKind = "track_order"
	OpDefaultFlags     OperationKind = "default_flags"
	OpConditional      OperationKind = "conditional"
	OpAudioSynthesis   OperationKind = "audio_synthesis"
	OpTranscode        OperationKind = "transcode"
	OpTranscription    OperationKind = "transcription"
)

// canonicalOrder is the fixed execution sequence. Declaration order inside
// a phase document never changes it.
var canonicalOrder = []OperationKind{
	OpContainer,
	OpAudioFilter,
	OpSubtitleFilter,
	OpAttachmentFilter,
	OpTrackOrder,
	OpDefaultFlags,
	OpConditional,
	OpAudioSynthesis,
	OpTranscode,
	OpTranscription,
}

// CanonicalOrder returns the fixed operation execution sequence.
func CanonicalOrder() []OperationKind {
	order := make([]OperationKind, len(canonicalOrder))
	copy(order, canonicalOrder)
	return order
}

// CanonicalRank returns the position of kind in the canonical order, or -1
// for unknown kinds.
func CanonicalRank(kind OperationKind) int {
	for i, candidate := range canonicalOrder {
		if candidate == kind {
			return i
		}
	}
	return -1
}

// HasOperation reports whether the phase declares the given operation.
func (p Phase) HasOperation(kind OperationKind) bool {
	switch kind {
	case OpContainer:
		return p.Container != nil
	case OpAudioFilter:
		return p.KeepAudio != nil
	case OpSubtitleFilter:
		return p.KeepSubtitles != nil
	case OpAttachmentFilter:
		return p.FilterAttachments != nil
	case OpTrackOrder:
		return len(p.TrackOrder) > 0
	case OpDefaultFlags:
		return p.DefaultFlags != nil
	case OpConditional:
		return p.Rules != nil
	case OpAudioSynthesis:
		return p.AudioSynthesis != nil
	case OpTranscode:
		return p.Transcode != nil
	case OpTranscription:
		return p.Transcription != nil
	default:
		return false
	}
}

// Operations returns the kinds this phase declares, in canonical order.
func (p Phase) Operations() []OperationKind {
	var kinds []OperationKind
	for _, kind := range canonicalOrder {
		if p.HasOperation(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
