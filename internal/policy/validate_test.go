package policy

import (
	"errors"
	"strings"
	"testing"

	"vpo/internal/services"
)

func validDocument() Document {
	return Document{
		SchemaVersion: 13,
		Name:          "library defaults",
		Phases: []Phase{
			{
				Name:      "normalize",
				Container: &ContainerOp{Target: "mkv"},
				KeepAudio: &KeepAudioOp{Languages: []string{"eng", "und"}},
			},
		},
	}
}

func hasViolation(err *ValidationError, field string) bool {
	for _, violation := range err.Violations {
		if violation.Field == field {
			return true
		}
	}
	return false
}

func violationFields(err *ValidationError) []string {
	out := make([]string, len(err.Violations))
	for i, violation := range err.Violations {
		out[i] = violation.Field
	}
	return out
}

func TestValidateAppliesDefaults(t *testing.T) {
	model, err := Validate(validDocument())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := model.Config.AudioLanguages; len(got) != 2 || got[0] != "eng" || got[1] != "und" {
		t.Fatalf("unexpected audio language defaults: %v", got)
	}
	if got := model.Config.SubtitleLanguages; len(got) != 2 || got[0] != "eng" || got[1] != "und" {
		t.Fatalf("unexpected subtitle language defaults: %v", got)
	}
	if model.Config.OnError != "continue" {
		t.Fatalf("expected on_error continue, got %q", model.Config.OnError)
	}
	patterns := model.CommentaryPatterns()
	if len(patterns) != 3 {
		t.Fatalf("expected 3 default commentary patterns, got %d", len(patterns))
	}
	if !patterns[0].MatchString("Director's Commentary") {
		t.Fatal("commentary pattern should match regardless of case")
	}
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	minimum := 0
	crf := 99
	doc := Document{
		SchemaVersion: 7,
		Config: GlobalConfig{
			AudioLanguages: []string{"english"},
			OnError:        "explode",
		},
		Phases: []Phase{
			{
				Name:       "bad name!",
				Container:  &ContainerOp{Target: "wmv"},
				KeepAudio:  &KeepAudioOp{Minimum: &minimum},
				TrackOrder: []string{"video", "video", "narrator"},
				Transcode: &TranscodeOp{
					TargetCodec: "xvid",
					Quality:     &QualitySpec{CRF: &crf},
				},
			},
		},
	}
	_, err := Validate(doc)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatal("validation errors must carry the validation marker")
	}
	wantFields := []string{
		"schema_version",
		"config.audio_languages[0]",
		"config.on_error",
		"phases[0].name",
		"phases[0].container.target",
		"phases[0].keep_audio.languages",
		"phases[0].keep_audio.minimum",
		"phases[0].track_order[1]",
		"phases[0].track_order[2]",
		"phases[0].transcode.target_codec",
		"phases[0].transcode.quality.crf",
	}
	for _, field := range wantFields {
		if !hasViolation(verr, field) {
			t.Errorf("missing violation for %s; got %v", field, violationFields(verr))
		}
	}
	if len(verr.Violations) != len(wantFields) {
		t.Fatalf("expected %d violations, got %d: %v", len(wantFields), len(verr.Violations), violationFields(verr))
	}
}

func TestValidatePhaseNameRules(t *testing.T) {
	doc := validDocument()
	doc.Phases = append(doc.Phases,
		Phase{Name: "config", Container: &ContainerOp{Target: "mkv"}},
		Phase{Name: "normalize", Container: &ContainerOp{Target: "mkv"}},
	)
	_, err := Validate(doc)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !hasViolation(verr, "phases[1].name") {
		t.Errorf("reserved phase name accepted: %v", violationFields(verr))
	}
	if !hasViolation(verr, "phases[2].name") {
		t.Errorf("duplicate phase name accepted: %v", violationFields(verr))
	}
}

func TestValidateRuleConstraints(t *testing.T) {
	doc := validDocument()
	doc.Phases[0].Rules = &RulesOp{
		Match: "best",
		Items: []Rule{
			{
				Name: "surround-check",
				When: &Condition{
					Exists: &TrackPredicate{Type: "audio"},
					Count:  &CountCondition{Of: TrackPredicate{Type: "audio"}},
				},
				Then: []RuleAction{
					{
						SetForced:  &FlagTarget{Tracks: TrackPredicate{Type: "subtitle"}},
						SetDefault: &FlagTarget{Tracks: TrackPredicate{Type: "subtitle"}},
					},
					{Skip: []string{"container"}},
				},
			},
			{Name: "surround-check"},
		},
	}
	_, err := Validate(doc)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{
		"phases[0].rules.match",
		"phases[0].rules.items[0].when",
		"phases[0].rules.items[0].when.count",
		"phases[0].rules.items[0].then[0]",
		"phases[0].rules.items[0].then[1].skip[0]",
		"phases[0].rules.items[1].name",
		"phases[0].rules.items[1].when",
		"phases[0].rules.items[1]",
	} {
		if !hasViolation(verr, field) {
			t.Errorf("missing violation for %s; got %v", field, violationFields(verr))
		}
	}
}

func TestValidateScalingConstraints(t *testing.T) {
	doc := validDocument()
	doc.Phases[0].Transcode = &TranscodeOp{
		TargetCodec: "hevc",
		Scaling:     &ScalingSpec{MaxResolution: "1080p", MaxWidth: 1920},
	}
	doc.Phases[0].Transcription = &TranscriptionOp{Enabled: true, ReorderCommentary: true}
	_, err := Validate(doc)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !hasViolation(verr, "phases[0].transcode.scaling") {
		t.Errorf("expected scaling exclusivity violation: %v", violationFields(verr))
	}
	if !hasViolation(verr, "phases[0].transcription.reorder_commentary") {
		t.Errorf("expected reorder_commentary violation: %v", violationFields(verr))
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Violations: []Violation{
		{Field: "config.on_error", Message: "must be one of fail, skip, continue"},
		{Field: "phases[0].name", Message: "is required"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "2 violations") {
		t.Fatalf("message should count violations: %s", msg)
	}
	if !strings.Contains(msg, "config.on_error") || !strings.Contains(msg, "phases[0].name") {
		t.Fatalf("message should name every field: %s", msg)
	}
}

func TestSkipCriteriaDefaults(t *testing.T) {
	def := SynthTrackDef{Codec: "aac", Channels: 2, Language: "eng"}
	criteria := def.SkipCriteria()
	if criteria.Codec != "aac" || criteria.Channels != 2 || criteria.Language != "eng" {
		t.Fatalf("unexpected implicit criteria: %+v", criteria)
	}
	def.SkipIfExists = &SkipIfExists{Codec: "eac3"}
	criteria = def.SkipCriteria()
	if criteria.Codec != "eac3" || criteria.Channels != 2 || criteria.Language != "eng" {
		t.Fatalf("unexpected merged criteria: %+v", criteria)
	}
}

func TestResolutionBounds(t *testing.T) {
	cases := []struct {
		preset string
		width  int
		height int
		ok     bool
	}{
		{"480p", 854, 480, true},
		{"720p", 1280, 720, true},
		{"1080p", 1920, 1080, true},
		{"4k", 3840, 2160, true},
		{"4K", 3840, 2160, true},
		{"8k", 0, 0, false},
	}
	for _, tc := range cases {
		width, height, ok := ResolutionBounds(tc.preset)
		if width != tc.width || height != tc.height || ok != tc.ok {
			t.Fatalf("%s: got %dx%d ok=%v", tc.preset, width, height, ok)
		}
	}
}
