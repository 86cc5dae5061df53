package policy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"vpo/internal/services"
)

const fullDocument = `
schema_version: 13
name: library defaults
description: English-first cleanup for the main library.
config:
  audio_languages: [eng, jpn]
  subtitle_languages: [eng]
  commentary_patterns: [commentary]
  on_error: skip
phases:
  - name: normalize
    on_error: fail
    container:
      target: mkv
    audio_actions:
      clear_all_default: true
    keep_audio:
      languages: [eng, jpn]
      minimum: 2
      fallback:
        mode: keep_first
    keep_subtitles:
      languages: [eng]
      preserve_forced: true
    filter_attachments:
      remove_all: true
    track_order: [video, audio_main, audio_commentary, subtitle_main]
    default_flags:
      set_first_video_default: true
      set_preferred_audio_default: true
      clear_other_defaults: true
    rules:
      items:
        - name: missing-surround
          when:
            not:
              exists:
                type: audio
                channels: 6
          then:
            - warn: no surround track present
    audio_synthesis:
      tracks:
        - codec: aac
          channels: stereo
          language: eng
          title: Stereo
          bitrate: 192k
    transcode:
      target_codec: hevc
      skip_if:
        codec_matches: [hevc, av1]
      quality:
        crf: 21
        preset: slow
    transcription:
      enabled: true
      detect_commentary: true
      confidence_threshold: 0.7
`

func TestParseFullDocument(t *testing.T) {
	model, err := Parse([]byte(fullDocument))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if model.SchemaVersion != 13 {
		t.Fatalf("unexpected schema version %d", model.SchemaVersion)
	}
	if model.Config.OnError != "skip" {
		t.Fatalf("expected on_error skip, got %q", model.Config.OnError)
	}
	if len(model.Phases) != 1 {
		t.Fatalf("expected 1 phase, got %d", len(model.Phases))
	}
	phase := model.Phases[0]
	if model.PhaseOnError(phase) != "fail" {
		t.Fatalf("expected phase override fail, got %q", model.PhaseOnError(phase))
	}
	got := phase.Operations()
	want := CanonicalOrder()
	if len(got) != len(want) {
		t.Fatalf("expected every operation present, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %s at position %d, got %s", want[i], i, got[i])
		}
	}
	if channels := int(phase.AudioSynthesis.Tracks[0].Channels); channels != 2 {
		t.Fatalf("expected stereo to decode as 2 channels, got %d", channels)
	}
	if phase.KeepAudio.MinimumTracks() != 2 {
		t.Fatalf("expected minimum 2, got %d", phase.KeepAudio.MinimumTracks())
	}
	if phase.KeepAudio.FallbackMode() != "keep_first" {
		t.Fatalf("expected keep_first fallback, got %q", phase.KeepAudio.FallbackMode())
	}
	if threshold := phase.Transcription.Threshold(); threshold != 0.7 {
		t.Fatalf("expected threshold 0.7, got %v", threshold)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	doc := `
schema_version: 13
config:
  audio_languagez: [eng]
phases:
  - name: normalize
    container:
      target: mkv
`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "audio_languagez") {
		t.Fatalf("error should name the unknown field: %v", err)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := Parse(nil)
	if err == nil {
		t.Fatal("expected empty document to be rejected")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(fullDocument), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	model, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if model.Name != "library defaults" {
		t.Fatalf("unexpected name %q", model.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected missing file error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestChannelCountWords(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"channels: 6", 6},
		{"channels: mono", 1},
		{"channels: stereo", 2},
		{`channels: "5.1"`, 6},
		{`channels: "7.1"`, 8},
		{"channels: surround", 6},
	}
	for _, tc := range cases {
		var def SynthTrackDef
		if err := yaml.Unmarshal([]byte(tc.input), &def); err != nil {
			t.Fatalf("%s: %v", tc.input, err)
		}
		if int(def.Channels) != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.input, def.Channels, tc.want)
		}
	}
	var def SynthTrackDef
	if err := yaml.Unmarshal([]byte("channels: quad"), &def); err == nil {
		t.Fatal("expected unknown layout to fail")
	}
}
