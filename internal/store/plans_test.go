package store_test

import (
	"context"
	"errors"
	"testing"

	"vpo/internal/phase"
	"vpo/internal/policy/evaluate"
	"vpo/internal/services"
	"vpo/internal/store"
	"vpo/internal/testsupport"
)

func intRef(value int) *int {
	return &value
}

func sampleResult() *phase.Result {
	return &phase.Result{
		File:          "/library/movie.mkv",
		Policy:        "library-standard",
		PolicyVersion: 13,
		Fingerprint:   "fp-original",
		Phases:        []phase.Outcome{{Name: "cleanup"}},
		Actions: []evaluate.Action{
			{Kind: evaluate.ActionSetContainer, Operation: "container", Container: "mkv", Reason: "convert from mp4"},
			{Kind: evaluate.ActionRemoveTrack, Operation: "audio_filter", Track: intRef(2), Reason: `audio language "jpn" not in [eng]`},
		},
		Warnings:      []string{"default_flags: no subtitle track matches [eng]"},
		RequiresRemux: true,
	}
}

func TestSavePlanPersistsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	result := sampleResult()
	plan, err := st.SavePlan(ctx, result)
	if err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if plan.ID == "" || plan.Status != store.PlanPending {
		t.Fatalf("unexpected saved plan: %#v", plan)
	}

	fetched, err := st.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if fetched.FilePath != result.File || fetched.PolicyName != result.Policy || fetched.PolicyVersion != result.PolicyVersion {
		t.Fatalf("plan metadata mismatch: %#v", fetched)
	}
	if fetched.SnapshotHash != result.Fingerprint {
		t.Fatalf("expected snapshot hash %q, got %q", result.Fingerprint, fetched.SnapshotHash)
	}
	if fetched.Summary != result.Summary() {
		t.Fatalf("expected summary %q, got %q", result.Summary(), fetched.Summary)
	}
	if !fetched.RequiresRemux {
		t.Fatal("expected remux flag to survive")
	}
	if len(fetched.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(fetched.Actions))
	}
	if fetched.Actions[0].Kind != evaluate.ActionSetContainer || fetched.Actions[1].Track == nil || *fetched.Actions[1].Track != 2 {
		t.Fatalf("actions did not round-trip: %#v", fetched.Actions)
	}
	if len(fetched.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %#v", fetched.Warnings)
	}
}

func TestSavePlanRejectsEmptyResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	result := sampleResult()
	result.Actions = nil
	if _, err := st.SavePlan(context.Background(), result); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty result, got %v", err)
	}
}

func TestPlanReviewFlow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	plan, err := st.SavePlan(ctx, sampleResult())
	if err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	approved, err := st.ApprovePlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}
	if approved.Status != store.PlanApproved || approved.ReviewedAt == nil {
		t.Fatalf("unexpected approved plan: %#v", approved)
	}

	if _, err := st.ApprovePlan(ctx, plan.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict approving twice, got %v", err)
	}
	if _, err := st.RejectPlan(ctx, plan.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict rejecting approved plan, got %v", err)
	}

	other, err := st.SavePlan(ctx, sampleResult())
	if err != nil {
		t.Fatalf("SavePlan other: %v", err)
	}
	rejected, err := st.RejectPlan(ctx, other.ID)
	if err != nil {
		t.Fatalf("RejectPlan: %v", err)
	}
	if rejected.Status != store.PlanRejected || rejected.ReviewedAt == nil {
		t.Fatalf("unexpected rejected plan: %#v", rejected)
	}
}

func TestMarkPlanAppliedChecksHash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	plan, err := st.SavePlan(ctx, sampleResult())
	if err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	if _, err := st.MarkPlanApplied(ctx, plan.ID, plan.SnapshotHash); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict applying pending plan, got %v", err)
	}

	if _, err := st.ApprovePlan(ctx, plan.ID); err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}

	if _, err := st.MarkPlanApplied(ctx, plan.ID, "fp-after-edit"); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected stale-plan conflict, got %v", err)
	}

	applied, err := st.MarkPlanApplied(ctx, plan.ID, plan.SnapshotHash)
	if err != nil {
		t.Fatalf("MarkPlanApplied: %v", err)
	}
	if applied.Status != store.PlanApplied {
		t.Fatalf("expected applied, got %s", applied.Status)
	}

	if _, err := st.MarkPlanApplied(ctx, "missing", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListPlansFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := st.SavePlan(ctx, sampleResult())
	if err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	otherResult := sampleResult()
	otherResult.File = "/library/show.mkv"
	second, err := st.SavePlan(ctx, otherResult)
	if err != nil {
		t.Fatalf("SavePlan second: %v", err)
	}
	if _, err := st.ApprovePlan(ctx, second.ID); err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}

	pending, err := st.ListPlans(ctx, store.PlanFilter{Statuses: []store.PlanStatus{store.PlanPending}})
	if err != nil {
		t.Fatalf("ListPlans pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("unexpected pending plans: %#v", pending)
	}

	byFile, err := st.ListPlans(ctx, store.PlanFilter{FilePath: "/library/show.mkv"})
	if err != nil {
		t.Fatalf("ListPlans by file: %v", err)
	}
	if len(byFile) != 1 || byFile[0].ID != second.ID {
		t.Fatalf("unexpected file-filtered plans: %#v", byFile)
	}

	all, err := st.ListPlans(ctx, store.PlanFilter{})
	if err != nil {
		t.Fatalf("ListPlans all: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %#v", all)
	}
}
