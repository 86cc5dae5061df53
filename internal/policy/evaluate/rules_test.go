package evaluate

import (
	"errors"
	"strings"
	"testing"

	"vpo/internal/policy"
	"vpo/internal/services"
)

func intRef(value int) *int {
	return &value
}

func TestRulesExistsConditionSetsForced(t *testing.T) {
	cfg := testConfig()
	op := &policy.RulesOp{Items: []policy.Rule{{
		Name: "force-subs-for-foreign-audio",
		When: &policy.Condition{Exists: &policy.TrackPredicate{Type: "audio", Language: "jpn"}},
		Then: []policy.RuleAction{{SetForced: &policy.FlagTarget{
			Tracks: policy.TrackPredicate{Type: "subtitle", Language: "eng"},
		}}},
	}}}
	view := snapshot(audioTrack(0, "ac3", "jpn", 6), subtitleTrack(1, "subrip", "eng"))

	outcome, err := Rules(cfg, op, view)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(outcome.Actions) != 1 {
		t.Fatalf("expected one action, got %v", summaries(outcome.Actions))
	}
	action := outcome.Actions[0]
	if action.Kind != ActionSetForced || *action.Track != 1 || !*action.Value {
		t.Fatalf("action = %s, want subtitle #1 forced", action.Summary())
	}
	if !outcome.View.Tracks[1].Forced {
		t.Fatal("view should reflect the forced flag")
	}

	again, err := Rules(cfg, op, outcome.View)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(again.Actions) != 0 {
		t.Fatalf("expected no actions once applied, got %v", summaries(again.Actions))
	}
}

func TestRulesMatchModeFirstStopsAfterMatch(t *testing.T) {
	cfg := testConfig()
	items := []policy.Rule{
		{
			Name: "first",
			When: &policy.Condition{Exists: &policy.TrackPredicate{Type: "audio"}},
			Then: []policy.RuleAction{{SetDefault: &policy.FlagTarget{Tracks: policy.TrackPredicate{Type: "audio"}}}},
		},
		{
			Name: "second",
			When: &policy.Condition{Exists: &policy.TrackPredicate{Type: "subtitle"}},
			Then: []policy.RuleAction{{SetForced: &policy.FlagTarget{Tracks: policy.TrackPredicate{Type: "subtitle"}}}},
		},
	}
	view := snapshot(audioTrack(0, "ac3", "eng", 6), subtitleTrack(1, "subrip", "eng"))

	outcome, err := Rules(cfg, &policy.RulesOp{Items: items}, view)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(outcome.Actions) != 1 || outcome.Actions[0].Kind != ActionSetDefault {
		t.Fatalf("match first should stop after the first rule, got %v", summaries(outcome.Actions))
	}

	outcome, err = Rules(cfg, &policy.RulesOp{Match: "all", Items: items}, view)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(outcome.Actions) != 2 {
		t.Fatalf("match all should run both rules, got %v", summaries(outcome.Actions))
	}
}

func TestRulesElseBranchRunsForUnmatchedRule(t *testing.T) {
	cfg := testConfig()
	op := &policy.RulesOp{Items: []policy.Rule{{
		Name: "expect-subtitles",
		When: &policy.Condition{Exists: &policy.TrackPredicate{Type: "subtitle"}},
		Else: []policy.RuleAction{{Warn: "no subtitles present"}},
	}}}
	view := snapshot(audioTrack(0, "ac3", "eng", 6))

	outcome, err := Rules(cfg, op, view)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(outcome.Actions) != 0 {
		t.Fatalf("expected no actions, got %v", summaries(outcome.Actions))
	}
	if len(outcome.Warnings) != 1 || outcome.Warnings[0] != "rule expect-subtitles: no subtitles present" {
		t.Fatalf("warnings = %v", outcome.Warnings)
	}
	if outcome.View != view {
		t.Fatal("warn must not touch the view")
	}
}

func TestRulesFailAction(t *testing.T) {
	op := &policy.RulesOp{Items: []policy.Rule{{
		Name: "require-video",
		When: &policy.Condition{Not: &policy.Condition{Exists: &policy.TrackPredicate{Type: "video"}}},
		Then: []policy.RuleAction{{Fail: "file has no video track"}},
	}}}

	_, err := Rules(testConfig(), op, snapshot(audioTrack(0, "ac3", "eng", 6)))
	if err == nil {
		t.Fatal("expected the fail action to error")
	}
	if !errors.Is(err, services.ErrOperation) {
		t.Fatalf("error = %v, want ErrOperation", err)
	}
	if !strings.Contains(err.Error(), "require-video") {
		t.Fatalf("error %q should name the rule", err)
	}
}

func TestRulesSkipSuppressesLaterOperations(t *testing.T) {
	op := &policy.RulesOp{Match: "all", Items: []policy.Rule{
		{
			Name: "skip-encode-for-av1",
			When: &policy.Condition{Exists: &policy.TrackPredicate{Type: "video", Codec: "av1"}},
			Then: []policy.RuleAction{{Skip: []string{"transcode"}}},
		},
		{
			Name: "skip-synthesis-too",
			When: &policy.Condition{Exists: &policy.TrackPredicate{Type: "video"}},
			Then: []policy.RuleAction{{Skip: []string{"transcode", "audio_synthesis"}}},
		},
	}}
	view := snapshot(videoTrack(0, "av1", 3840, 2160))

	outcome, err := Rules(testConfig(), op, view)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(outcome.Actions) != 0 {
		t.Fatalf("skip should emit no actions, got %v", summaries(outcome.Actions))
	}
	want := []policy.OperationKind{policy.OpTranscode, policy.OpAudioSynthesis}
	if len(outcome.Suppress) != len(want) || outcome.Suppress[0] != want[0] || outcome.Suppress[1] != want[1] {
		t.Fatalf("suppress = %v, want %v", outcome.Suppress, want)
	}
	if len(outcome.Skips) != 2 {
		t.Fatalf("skips = %v, want one note per rule", outcome.Skips)
	}
}

func TestRulesSetLanguage(t *testing.T) {
	cfg := testConfig()
	op := &policy.RulesOp{Items: []policy.Rule{{
		Name: "tag-undetermined-audio",
		When: &policy.Condition{Exists: &policy.TrackPredicate{Type: "audio", Language: "und"}},
		Then: []policy.RuleAction{{SetLanguage: &policy.LanguageTarget{
			Tracks:   policy.TrackPredicate{Type: "audio", Language: "und"},
			Language: "eng",
		}}},
	}}}
	view := snapshot(audioTrack(0, "aac", "und", 2))

	outcome, err := Rules(cfg, op, view)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(outcome.Actions) != 1 || outcome.Actions[0].Kind != ActionSetLanguage || outcome.Actions[0].Language != "eng" {
		t.Fatalf("actions = %v, want one set_language", summaries(outcome.Actions))
	}
	if outcome.View.Tracks[0].Language != "eng" {
		t.Fatalf("view language = %q, want eng", outcome.View.Tracks[0].Language)
	}

	again, err := Rules(cfg, op, outcome.View)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(again.Actions) != 0 {
		t.Fatalf("expected no actions once tagged, got %v", summaries(again.Actions))
	}
}

func TestRulesInvalidTitleRegex(t *testing.T) {
	op := &policy.RulesOp{Items: []policy.Rule{{
		Name: "broken",
		When: &policy.Condition{Exists: &policy.TrackPredicate{TitleRegex: "["}},
		Then: []policy.RuleAction{{Warn: "unreachable"}},
	}}}

	_, err := Rules(testConfig(), op, snapshot(audioTrack(0, "ac3", "eng", 6)))
	if err == nil {
		t.Fatal("expected an error for an invalid regex")
	}
	if !errors.Is(err, services.ErrOperation) {
		t.Fatalf("error = %v, want ErrOperation", err)
	}
}

func TestEvalConditionCombinators(t *testing.T) {
	cfg := testConfig()
	view := snapshot(
		videoTrack(0, "h264", 1920, 1080),
		audioTrack(1, "truehd", "eng", 8),
		audioTrack(2, "ac3", "jpn", 6),
	)
	audioCount := policy.TrackPredicate{Type: "audio"}

	cases := []struct {
		name string
		cond policy.Condition
		want bool
	}{
		{"exists match", policy.Condition{Exists: &policy.TrackPredicate{Type: "audio", Language: "jpn"}}, true},
		{"exists miss", policy.Condition{Exists: &policy.TrackPredicate{Type: "audio", Language: "fre"}}, false},
		{"count eq", policy.Condition{Count: &policy.CountCondition{Of: audioCount, Eq: intRef(2)}}, true},
		{"count lt", policy.Condition{Count: &policy.CountCondition{Of: audioCount, Lt: intRef(2)}}, false},
		{"count lte", policy.Condition{Count: &policy.CountCondition{Of: audioCount, Lte: intRef(2)}}, true},
		{"count gt", policy.Condition{Count: &policy.CountCondition{Of: audioCount, Gt: intRef(1)}}, true},
		{"count gte", policy.Condition{Count: &policy.CountCondition{Of: audioCount, Gte: intRef(3)}}, false},
		{
			"all",
			policy.Condition{All: []policy.Condition{
				{Exists: &policy.TrackPredicate{Type: "video"}},
				{Exists: &policy.TrackPredicate{Type: "audio", Channels: intRef(8)}},
			}},
			true,
		},
		{
			"any",
			policy.Condition{Any: []policy.Condition{
				{Exists: &policy.TrackPredicate{Type: "subtitle"}},
				{Exists: &policy.TrackPredicate{Codec: "truehd"}},
			}},
			true,
		},
		{"not", policy.Condition{Not: &policy.Condition{Exists: &policy.TrackPredicate{Type: "subtitle"}}}, true},
	}
	for _, tc := range cases {
		got, err := cfg.evalCondition(&tc.cond, view)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s = %t, want %t", tc.name, got, tc.want)
		}
	}
}
