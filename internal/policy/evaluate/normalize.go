package evaluate

import (
	"vpo/internal/media"
	"vpo/internal/policy"
)

// normalizeOperation tags actions from the pre-filter clear_all step,
// which runs between container and audio_filter and is not one of the
// canonical operation kinds.
const normalizeOperation = "normalize"

// Normalize applies the phase's audio_actions / subtitle_actions /
// video_actions wholesale resets before the filters run.
func Normalize(phase policy.Phase, view *media.Snapshot) Outcome {
	sets := []struct {
		actions *policy.NormalizeActions
		target  media.TrackType
	}{
		{phase.VideoActions, media.TrackVideo},
		{phase.AudioActions, media.TrackAudio},
		{phase.SubtitleActions, media.TrackSubtitle},
	}

	next := view.Clone()
	var actions []Action
	for _, set := range sets {
		if !set.actions.Active() {
			continue
		}
		for i := range next.Tracks {
			track := &next.Tracks[i]
			if track.Type != set.target {
				continue
			}
			if set.actions.ClearAllForced && track.Forced {
				track.Forced = false
				actions = append(actions, flagAction(ActionSetForced, normalizeOperation, track.Index, false))
			}
			if set.actions.ClearAllDefault && track.Default {
				track.Default = false
				actions = append(actions, flagAction(ActionSetDefault, normalizeOperation, track.Index, false))
			}
			if set.actions.ClearAllTitles && track.Title != "" {
				track.Title = ""
				actions = append(actions, Action{
					Kind:      ActionClearTitle,
					Operation: normalizeOperation,
					Track:     trackRef(track.Index),
				})
			}
		}
	}
	if len(actions) == 0 {
		return Outcome{View: view}
	}
	return Outcome{Actions: actions, View: next}
}
