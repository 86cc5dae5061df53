package evaluate

import (
	"fmt"
	"strconv"
	"strings"

	"vpo/internal/media"
	"vpo/internal/policy"
	"vpo/internal/services"
)

// Transcode decides whether the first video track needs re-encoding.
// The decision is pure metadata; running an encoder belongs to the
// external tool executor. A view whose codec already matches the target
// produces a recorded skip, as does a satisfied skip_if clause set.
func Transcode(op *policy.TranscodeOp, view *media.Snapshot) (Outcome, error) {
	if op == nil {
		return Outcome{View: view}, nil
	}
	pos := -1
	for i := range view.Tracks {
		if view.Tracks[i].Type == media.TrackVideo {
			pos = i
			break
		}
	}
	if pos < 0 {
		return Outcome{}, services.Wrap(services.ErrOperation, "", string(policy.OpTranscode),
			"no video track to transcode", nil)
	}
	video := view.Tracks[pos]

	if strings.EqualFold(video.Codec, op.TargetCodec) {
		return Outcome{View: view, Skips: []string{fmt.Sprintf("transcode: video already %s", op.TargetCodec)}}, nil
	}
	if op.SkipIf != nil {
		if reasons, satisfied := skipClauses(op.SkipIf, video); satisfied {
			return Outcome{View: view, Skips: []string{"transcode: " + strings.Join(reasons, ", ")}}, nil
		}
	}

	spec := &TranscodeSpec{
		SourceCodec: video.Codec,
		TargetCodec: op.TargetCodec,
	}
	if op.Quality != nil {
		if op.Quality.CRF != nil {
			spec.CRF = op.Quality.CRF
		} else {
			spec.Bitrate = op.Quality.Bitrate
		}
		spec.Preset = op.Quality.Preset
	}
	if op.Scaling != nil {
		maxWidth, maxHeight := op.Scaling.MaxWidth, op.Scaling.MaxHeight
		if op.Scaling.MaxResolution != "" {
			maxWidth, maxHeight, _ = policy.ResolutionBounds(op.Scaling.MaxResolution)
		}
		if (maxWidth > 0 && video.Width > maxWidth) || (maxHeight > 0 && video.Height > maxHeight) {
			spec.MaxWidth = maxWidth
			spec.MaxHeight = maxHeight
		}
	}

	next := view.Clone()
	target := &next.Tracks[pos]
	target.Codec = strings.ToLower(op.TargetCodec)
	if spec.MaxWidth > 0 && target.Width > spec.MaxWidth {
		target.Width = spec.MaxWidth
	}
	if spec.MaxHeight > 0 && target.Height > spec.MaxHeight {
		target.Height = spec.MaxHeight
	}
	action := Action{
		Kind:      ActionTranscode,
		Operation: string(policy.OpTranscode),
		Track:     trackRef(video.Index),
		Transcode: spec,
	}
	return Outcome{Actions: []Action{action}, View: next}, nil
}

// skipClauses checks the declared skip_if clauses. Every declared
// clause must hold for the transcode to be skipped; an unknown bitrate
// never satisfies bitrate_under.
func skipClauses(skip *policy.TranscodeSkip, video media.Track) ([]string, bool) {
	var reasons []string
	if len(skip.CodecMatches) > 0 {
		if !codecIn(video.Codec, skip.CodecMatches) {
			return nil, false
		}
		reasons = append(reasons, fmt.Sprintf("codec %s in skip list", video.Codec))
	}
	if skip.ResolutionWithin != "" {
		maxWidth, maxHeight, ok := policy.ResolutionBounds(skip.ResolutionWithin)
		if !ok || video.Width <= 0 || video.Height <= 0 || video.Width > maxWidth || video.Height > maxHeight {
			return nil, false
		}
		reasons = append(reasons, fmt.Sprintf("resolution %dx%d within %s", video.Width, video.Height, skip.ResolutionWithin))
	}
	if skip.BitrateUnder != "" {
		limit := parseRate(skip.BitrateUnder)
		if limit <= 0 || video.BitRate <= 0 || video.BitRate >= limit {
			return nil, false
		}
		reasons = append(reasons, fmt.Sprintf("bitrate %d under %s", video.BitRate, skip.BitrateUnder))
	}
	return reasons, len(reasons) > 0
}

// parseRate converts values like 2500k or 5M to bits per second.
func parseRate(value string) int64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	multiplier := int64(1)
	switch cleaned[len(cleaned)-1] {
	case 'k', 'K':
		multiplier = 1000
		cleaned = cleaned[:len(cleaned)-1]
	case 'm', 'M':
		multiplier = 1000000
		cleaned = cleaned[:len(cleaned)-1]
	}
	parsed, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed * multiplier
}
