package evaluate

import (
	"vpo/internal/media"
	"vpo/internal/policy"
)

// Transcription emits one analysis request per audio track that has not
// been transcribed yet. It never changes the view; commentary detection
// results land in the snapshot store and take effect on re-evaluation.
func Transcription(op *policy.TranscriptionOp, view *media.Snapshot) Outcome {
	if op == nil || !op.Enabled {
		return Outcome{View: view}
	}
	var actions []Action
	for _, track := range view.Tracks {
		if track.Type != media.TrackAudio {
			continue
		}
		if track.Analysis != nil && track.Analysis.Transcribed {
			continue
		}
		actions = append(actions, Action{
			Kind:      ActionRequestTranscription,
			Operation: string(policy.OpTranscription),
			Track:     trackRef(track.Index),
			Transcription: &AnalysisSpec{
				DetectCommentary:    op.DetectCommentary,
				ReorderCommentary:   op.ReorderCommentary,
				ConfidenceThreshold: op.Threshold(),
			},
		})
	}
	return Outcome{Actions: actions, View: view}
}
