package evaluate

import (
	"fmt"
	"slices"
	"strings"

	"vpo/internal/media"
	"vpo/internal/policy"
	"vpo/internal/services"
)

// AudioSynthesis emits synthesize actions for declared derived tracks.
// A definition whose skip criteria already match an existing audio track
// produces a recorded skip instead, which is what keeps re-evaluation
// after synthesis a no-op. Synthesized tracks sit directly after their
// source in the view and in the produced file, so an earlier reorder
// stays satisfied.
func AudioSynthesis(cfg Config, op *policy.AudioSynthesisOp, view *media.Snapshot) (Outcome, error) {
	if op == nil || len(op.Tracks) == 0 {
		return Outcome{View: view}, nil
	}
	outcome := Outcome{}
	next := view.Clone()
	firstNewIndex := nextIndex(next)
	mutated := false
	for _, def := range op.Tracks {
		criteria := def.SkipCriteria()
		if existing := findMatchingAudio(next, criteria); existing != nil {
			outcome.Skips = append(outcome.Skips,
				fmt.Sprintf("audio_synthesis: %s %dch already present (track #%d)", criteria.Codec, int(criteria.Channels), existing.Index))
			continue
		}
		source := cfg.synthesisSource(next)
		if source == nil {
			return Outcome{}, services.Wrap(services.ErrOperation, "", string(policy.OpAudioSynthesis),
				"no source audio track for synthesis", nil)
		}
		lang := def.Language
		if lang == "" {
			lang = source.Language
		}
		spec := &SynthesisSpec{
			SourceTrack: source.Index,
			Codec:       strings.ToLower(def.Codec),
			Channels:    int(def.Channels),
			Language:    lang,
			Title:       def.Title,
			Bitrate:     def.Bitrate,
		}
		outcome.Actions = append(outcome.Actions, Action{
			Kind:      ActionSynthesizeAudio,
			Operation: string(policy.OpAudioSynthesis),
			Synthesis: spec,
			Reason:    fmt.Sprintf("derive from track #%d (%s %dch)", source.Index, source.Codec, source.Channels),
		})
		synthesized := media.Track{
			Index:    nextIndex(next),
			Type:     media.TrackAudio,
			Codec:    spec.Codec,
			Language: lang,
			Title:    def.Title,
			Channels: spec.Channels,
		}
		insertPos := positionOf(next, source.Index) + 1
		for insertPos < len(next.Tracks) && next.Tracks[insertPos].Index >= firstNewIndex {
			insertPos++
		}
		next.Tracks = slices.Insert(next.Tracks, insertPos, synthesized)
		mutated = true
	}
	if mutated {
		outcome.View = next
	} else {
		outcome.View = view
	}
	return outcome, nil
}

func findMatchingAudio(view *media.Snapshot, criteria policy.SkipIfExists) *media.Track {
	for i := range view.Tracks {
		track := view.Tracks[i]
		if track.Type != media.TrackAudio {
			continue
		}
		if criteria.Codec != "" && !strings.EqualFold(track.Codec, criteria.Codec) {
			continue
		}
		if criteria.Channels > 0 && track.Channels != int(criteria.Channels) {
			continue
		}
		if criteria.Language != "" && !track.LanguageMatches(criteria.Language) {
			continue
		}
		found := track
		return &found
	}
	return nil
}

// synthesisSource picks the richest preferred-language audio track:
// main role beats alternate, then higher channel count, then earlier
// position. Commentary, music, and SFX tracks are never sources.
func (c Config) synthesisSource(view *media.Snapshot) *media.Track {
	var best *media.Track
	bestMain := false
	for i := range view.Tracks {
		track := view.Tracks[i]
		if track.Type != media.TrackAudio {
			continue
		}
		role := c.AudioRole(track)
		switch role {
		case AudioCommentary, AudioMusic, AudioSFX:
			continue
		}
		isMain := role == AudioMain
		switch {
		case best == nil:
		case isMain && !bestMain:
		case isMain == bestMain && track.Channels > best.Channels:
		default:
			continue
		}
		found := track
		best = &found
		bestMain = isMain
	}
	return best
}
