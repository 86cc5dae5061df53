package evaluate

import (
	"fmt"

	"vpo/internal/media"
	"vpo/internal/policy"
	"vpo/internal/services"
)

// KeepAudio drops audio tracks outside the configured languages,
// honoring music/SFX exemptions and the minimum-track fallback.
func KeepAudio(cfg Config, op *policy.KeepAudioOp, view *media.Snapshot) (Outcome, error) {
	if op == nil {
		return Outcome{View: view}, nil
	}

	keep := make(map[int]bool)
	audioTotal := 0
	for _, track := range view.Tracks {
		if track.Type != media.TrackAudio {
			continue
		}
		audioTotal++
		role := cfg.AudioRole(track)
		switch {
		case role == AudioSFX && op.KeepSFX():
			keep[track.Index] = true
		case role == AudioMusic && op.KeepMusic():
			keep[track.Index] = true
		case track.LanguageMatchesAny(op.Languages):
			keep[track.Index] = true
		}
	}

	var warnings []string
	minimum := op.MinimumTracks()
	if matched := len(keep); matched < minimum {
		switch mode := op.FallbackMode(); mode {
		case "keep_all":
			for _, track := range view.Tracks {
				if track.Type == media.TrackAudio {
					keep[track.Index] = true
				}
			}
			warnings = append(warnings, fmt.Sprintf("audio filter kept all %d tracks: only %d matched, minimum is %d", audioTotal, matched, minimum))
		case "keep_first":
			for _, track := range view.Tracks {
				if len(keep) >= minimum {
					break
				}
				if track.Type == media.TrackAudio && !keep[track.Index] {
					keep[track.Index] = true
				}
			}
			warnings = append(warnings, fmt.Sprintf("audio filter fell back to the first %d tracks: only %d matched, minimum is %d", len(keep), matched, minimum))
		default:
			return Outcome{}, services.Wrap(services.ErrOperation, "", string(policy.OpAudioFilter),
				fmt.Sprintf("%d of %d audio tracks match the policy, minimum is %d", matched, audioTotal, minimum), nil)
		}
	}

	removed := make(map[int]bool)
	var actions []Action
	for _, track := range view.Tracks {
		if track.Type != media.TrackAudio || keep[track.Index] {
			continue
		}
		removed[track.Index] = true
		actions = append(actions, removeAction(policy.OpAudioFilter, track,
			fmt.Sprintf("audio language %q not in %v", track.Language, op.Languages)))
	}
	if len(actions) == 0 {
		return Outcome{View: view, Warnings: warnings}, nil
	}
	return Outcome{Actions: actions, View: withoutTracks(view, removed), Warnings: warnings}, nil
}

// KeepSubtitles drops subtitle tracks outside the configured languages.
// preserve_forced keeps forced tracks regardless of language; remove_all
// overrides everything.
func KeepSubtitles(op *policy.KeepSubtitlesOp, view *media.Snapshot) Outcome {
	if op == nil {
		return Outcome{View: view}
	}
	removed := make(map[int]bool)
	var actions []Action
	for _, track := range view.Tracks {
		if track.Type != media.TrackSubtitle {
			continue
		}
		if op.RemoveAll {
			removed[track.Index] = true
			actions = append(actions, removeAction(policy.OpSubtitleFilter, track, "subtitles removed by policy"))
			continue
		}
		if op.PreserveForced && track.Forced {
			continue
		}
		if track.LanguageMatchesAny(op.Languages) {
			continue
		}
		removed[track.Index] = true
		actions = append(actions, removeAction(policy.OpSubtitleFilter, track,
			fmt.Sprintf("subtitle language %q not in %v", track.Language, op.Languages)))
	}
	if len(actions) == 0 {
		return Outcome{View: view}
	}
	return Outcome{Actions: actions, View: withoutTracks(view, removed)}
}

var fontCodecs = map[string]bool{
	"ttf":  true,
	"otf":  true,
	"font": true,
}

var styledSubtitleCodecs = map[string]bool{
	"ass": true,
	"ssa": true,
}

// FilterAttachments removes attachment tracks. Dropping fonts while
// styled subtitles remain is flagged as a warning, not an error.
func FilterAttachments(op *policy.FilterAttachmentsOp, view *media.Snapshot) Outcome {
	if op == nil || !op.RemoveAll {
		return Outcome{View: view}
	}
	styledRemain := false
	for _, track := range view.Tracks {
		if track.Type == media.TrackSubtitle && styledSubtitleCodecs[track.Codec] {
			styledRemain = true
			break
		}
	}
	removed := make(map[int]bool)
	var actions []Action
	var warnings []string
	for _, track := range view.Tracks {
		if track.Type != media.TrackAttachment {
			continue
		}
		reason := "attachments removed by policy"
		if styledRemain && fontCodecs[track.Codec] {
			reason = "font attachment removed while styled subtitles remain"
			warnings = append(warnings, fmt.Sprintf("track #%d: %s", track.Index, reason))
		}
		removed[track.Index] = true
		actions = append(actions, removeAction(policy.OpAttachmentFilter, track, reason))
	}
	if len(actions) == 0 {
		return Outcome{View: view}
	}
	return Outcome{Actions: actions, View: withoutTracks(view, removed), Warnings: warnings}
}
