package evaluate

import (
	"fmt"

	"vpo/internal/language"
	"vpo/internal/media"
	"vpo/internal/policy"
)

// DefaultFlags resolves the desired default set and emits only the
// deltas. Sub-order is fixed: clears first, then first-video, preferred
// audio, preferred subtitle. When no track matches a preference list the
// toggle is dropped with a warning, never an error.
func DefaultFlags(cfg Config, op *policy.DefaultFlagsOp, view *media.Snapshot) Outcome {
	if op == nil {
		return Outcome{View: view}
	}

	var warnings []string
	var chosen []media.Track
	desired := make(map[int]bool)

	if op.SetFirstVideoDefault {
		picked := false
		for _, track := range view.Tracks {
			if track.Type == media.TrackVideo {
				desired[track.Index] = true
				chosen = append(chosen, track)
				picked = true
				break
			}
		}
		if !picked {
			warnings = append(warnings, "no video track to mark default")
		}
	}
	if op.SetPreferredAudioDefault {
		if track := cfg.preferredTrack(view, media.TrackAudio, cfg.AudioLanguages); track != nil {
			desired[track.Index] = true
			chosen = append(chosen, *track)
		} else {
			warnings = append(warnings, fmt.Sprintf("no audio track matches preferred languages %v", cfg.AudioLanguages))
		}
	}
	if op.SetPreferredSubtitleDefault {
		if track := cfg.preferredTrack(view, media.TrackSubtitle, cfg.SubtitleLanguages); track != nil {
			desired[track.Index] = true
			chosen = append(chosen, *track)
		} else {
			warnings = append(warnings, fmt.Sprintf("no subtitle track matches preferred languages %v", cfg.SubtitleLanguages))
		}
	}

	next := view.Clone()
	var actions []Action
	if op.ClearOtherDefaults {
		for i := range next.Tracks {
			track := &next.Tracks[i]
			if track.Default && !desired[track.Index] {
				track.Default = false
				actions = append(actions, flagAction(ActionSetDefault, string(policy.OpDefaultFlags), track.Index, false))
			}
		}
	}
	for _, want := range chosen {
		pos := positionOf(next, want.Index)
		if pos < 0 || next.Tracks[pos].Default {
			continue
		}
		next.Tracks[pos].Default = true
		actions = append(actions, flagAction(ActionSetDefault, string(policy.OpDefaultFlags), want.Index, true))
	}

	if op.SetSubtitleForcedWhenAudioDiffers {
		if action, ok := forcedSubtitleDelta(cfg, next); ok {
			actions = append(actions, action)
		}
	}

	if len(actions) == 0 {
		return Outcome{View: view, Warnings: warnings}
	}
	return Outcome{Actions: actions, View: next, Warnings: warnings}
}

// forcedSubtitleDelta forces the preferred subtitle when the effective
// default audio is outside the preferred languages. Mutates next in
// place when a delta is needed.
func forcedSubtitleDelta(cfg Config, next *media.Snapshot) (Action, bool) {
	var defaultAudio *media.Track
	for i := range next.Tracks {
		track := &next.Tracks[i]
		if track.Type == media.TrackAudio && track.Default {
			defaultAudio = track
			break
		}
	}
	if defaultAudio == nil || language.MatchesAny(defaultAudio.Language, cfg.AudioLanguages) {
		return Action{}, false
	}
	target := cfg.preferredTrack(next, media.TrackSubtitle, cfg.SubtitleLanguages)
	if target == nil {
		return Action{}, false
	}
	pos := positionOf(next, target.Index)
	if pos < 0 || next.Tracks[pos].Forced {
		return Action{}, false
	}
	next.Tracks[pos].Forced = true
	action := flagAction(ActionSetForced, string(policy.OpDefaultFlags), target.Index, true)
	action.Reason = fmt.Sprintf("default audio %q is not a preferred language", defaultAudio.Language)
	return action, true
}

func positionOf(view *media.Snapshot, index int) int {
	for pos, track := range view.Tracks {
		if track.Index == index {
			return pos
		}
	}
	return -1
}
