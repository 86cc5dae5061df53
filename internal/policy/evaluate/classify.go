package evaluate

import (
	"strings"

	"vpo/internal/language"
	"vpo/internal/media"
	"vpo/internal/policy"
)

// AudioRole is the classified purpose of an audio track.
type AudioRole string

const (
	AudioMain       AudioRole = "main"
	AudioAlternate  AudioRole = "alternate"
	AudioCommentary AudioRole = "commentary"
	AudioMusic      AudioRole = "music"
	AudioSFX        AudioRole = "sfx"
)

// SubtitleRole is the classified purpose of a subtitle track.
type SubtitleRole string

const (
	SubtitleMain       SubtitleRole = "main"
	SubtitleForced     SubtitleRole = "forced"
	SubtitleCommentary SubtitleRole = "commentary"
)

var sfxMarkers = []string{"sfx", "sound effects", "effects only", "effects track"}

var musicMarkers = []string{"music only", "isolated score", "score only", "music and effects"}

// AudioRole classifies a track by its title markers, commentary
// patterns, transcription analysis, and language. Title markers win
// over analysis so hand-labeled tracks stay stable.
func (c Config) AudioRole(track media.Track) AudioRole {
	title := strings.ToLower(track.Title)
	if title != "" {
		if containsAny(title, sfxMarkers) {
			return AudioSFX
		}
		if containsAny(title, musicMarkers) {
			return AudioMusic
		}
	}
	if c.IsCommentaryTitle(track.Title) {
		return AudioCommentary
	}
	if analysis := track.Analysis; analysis != nil && c.ConfidenceThreshold > 0 &&
		analysis.CommentaryConfidence >= c.ConfidenceThreshold {
		return AudioCommentary
	}
	if track.LanguageMatchesAny(c.AudioLanguages) {
		return AudioMain
	}
	return AudioAlternate
}

// SubtitleRole classifies a subtitle track. Forced wins over commentary.
func (c Config) SubtitleRole(track media.Track) SubtitleRole {
	if track.Forced {
		return SubtitleForced
	}
	if c.IsCommentaryTitle(track.Title) {
		return SubtitleCommentary
	}
	return SubtitleMain
}

// IsCommentaryTitle reports whether the title matches a configured
// commentary pattern.
func (c Config) IsCommentaryTitle(title string) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	for _, pattern := range c.CommentaryPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	return false
}

// matchesRole reports whether the track belongs in the given ordering
// bucket. A track can match more than one bucket (a forced commentary
// subtitle matches both subtitle_forced and subtitle_commentary); the
// ordering algorithm assigns it to the first declared match.
func (c Config) matchesRole(track media.Track, role policy.TrackRole) bool {
	switch role {
	case policy.RoleVideo:
		return track.Type == media.TrackVideo
	case policy.RoleAudioMain:
		return track.Type == media.TrackAudio && c.AudioRole(track) == AudioMain
	case policy.RoleAudioAlternate:
		if track.Type != media.TrackAudio {
			return false
		}
		switch c.AudioRole(track) {
		case AudioAlternate, AudioMusic, AudioSFX:
			return true
		}
		return false
	case policy.RoleAudioCommentary:
		return track.Type == media.TrackAudio && c.AudioRole(track) == AudioCommentary
	case policy.RoleSubtitleMain:
		return track.Type == media.TrackSubtitle && c.SubtitleRole(track) == SubtitleMain
	case policy.RoleSubtitleForced:
		return track.Type == media.TrackSubtitle && track.Forced
	case policy.RoleSubtitleCommentary:
		return track.Type == media.TrackSubtitle && c.IsCommentaryTitle(track.Title)
	case policy.RoleAttachment:
		return track.Type == media.TrackAttachment
	}
	return false
}

// preferredTrack walks the language preference list in order and returns
// the first matching track of the type, skipping commentary, music, and
// SFX tracks.
func (c Config) preferredTrack(view *media.Snapshot, trackType media.TrackType, prefs []string) *media.Track {
	for _, pref := range prefs {
		for i := range view.Tracks {
			track := view.Tracks[i]
			if track.Type != trackType {
				continue
			}
			if trackType == media.TrackAudio {
				switch c.AudioRole(track) {
				case AudioCommentary, AudioMusic, AudioSFX:
					continue
				}
			}
			if trackType == media.TrackSubtitle && c.IsCommentaryTitle(track.Title) {
				continue
			}
			if language.Matches(track.Language, pref) {
				found := track
				return &found
			}
		}
	}
	return nil
}

func containsAny(value string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}
