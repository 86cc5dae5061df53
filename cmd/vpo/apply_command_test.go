package main

import (
	"context"
	"path/filepath"
	"testing"

	"vpo/internal/media"
	"vpo/internal/store"
	"vpo/internal/testsupport"
)

// seedLibraryVideo creates the file on disk and stores a matching scan so
// apply can both discover and evaluate it.
func seedLibraryVideo(t *testing.T, env *cliTestEnv, name, videoCodec string) string {
	t.Helper()
	path := testsupport.WriteVideo(t, env.cfg.Paths.LibraryDirs[0], name)
	snap := &media.Snapshot{
		Path:      path,
		Container: "mkv",
		SizeBytes: 1 << 30,
		Tracks: []media.Track{
			{Index: 0, Type: media.TrackVideo, Codec: videoCodec, Width: 1920, Height: 1080},
			{Index: 1, Type: media.TrackAudio, Codec: "ac3", Language: "eng", Channels: 6},
		},
	}
	if err := env.store.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
	return path
}

// seedBrokenVideo stores a snapshot without a video track, which the
// encode policy cannot evaluate.
func seedBrokenVideo(t *testing.T, env *cliTestEnv, name string) string {
	t.Helper()
	path := testsupport.WriteVideo(t, env.cfg.Paths.LibraryDirs[0], name)
	snap := &media.Snapshot{
		Path:      path,
		Container: "mkv",
		Tracks: []media.Track{
			{Index: 0, Type: media.TrackAudio, Codec: "flac", Language: "eng", Channels: 2},
		},
	}
	if err := env.store.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
	return path
}

func TestApplyStoresPlans(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	oldPath := seedLibraryVideo(t, env, "old.mkv", "h264")
	seedLibraryVideo(t, env, "done.mkv", "hevc")

	out, _, err := runCLI(t, []string{"apply"}, env.configPath)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	requireContains(t, out, "planned")
	requireContains(t, out, "compliant")
	requireContains(t, out, "2 files, 1 planned, 1 compliant, 0 skipped, 0 failed")

	plans, err := env.store.ListPlans(context.Background(), store.PlanFilter{})
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 1 || plans[0].FilePath != oldPath {
		t.Fatalf("stored plans = %+v", plans)
	}
	if plans[0].Status != store.PlanPending {
		t.Fatalf("plan status = %s, want pending", plans[0].Status)
	}
}

func TestApplyDryRunStoresNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	seedLibraryVideo(t, env, "old.mkv", "h264")

	out, _, err := runCLI(t, []string{"apply", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("apply --dry-run: %v", err)
	}
	requireContains(t, out, "Dry run: no plans were stored")
	requireContains(t, out, "1 planned")

	plans, err := env.store.ListPlans(context.Background(), store.PlanFilter{})
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 0 {
		t.Fatalf("dry run stored %d plans", len(plans))
	}
}

func TestApplyExplicitTargets(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	oldPath := seedLibraryVideo(t, env, "old.mkv", "h264")
	seedLibraryVideo(t, env, "other.mkv", "h264")

	out, _, err := runCLI(t, []string{"apply", oldPath}, env.configPath)
	if err != nil {
		t.Fatalf("apply %s: %v", oldPath, err)
	}
	requireContains(t, out, "1 files, 1 planned")
	requireNotContains(t, out, "other.mkv")
}

func TestApplyNoTargets(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	_, _, err := runCLI(t, []string{"apply"}, env.configPath)
	requireExitCode(t, err, exitCodeNoTargets)
}

func TestApplyInvalidPolicy(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, "schema_version: 13\nname: broken\nphases: []\n")

	seedLibraryVideo(t, env, "old.mkv", "h264")

	_, _, err := runCLI(t, []string{"apply"}, env.configPath)
	requireExitCode(t, err, exitCodePolicyInvalid)
}

func TestApplySkipsUnscannedFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	seedLibraryVideo(t, env, "old.mkv", "h264")
	testsupport.WriteVideo(t, env.cfg.Paths.LibraryDirs[0], "unscanned.mkv")

	out, _, err := runCLI(t, []string{"apply"}, env.configPath)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	requireContains(t, out, "1 planned")
	requireContains(t, out, "1 skipped")
}

func TestApplyFailedFilesExitCode(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	seedBrokenVideo(t, env, "broken.mkv")
	seedLibraryVideo(t, env, "old.mkv", "h264")

	out, _, err := runCLI(t, []string{"apply"}, env.configPath)
	requireExitCode(t, err, exitCodeFilesFailed)
	requireContains(t, out, "1 planned")
	requireContains(t, out, "1 failed")
}

func TestApplyOnErrorFailStopsEarly(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	seedBrokenVideo(t, env, "aaa-broken.mkv")
	seedLibraryVideo(t, env, "zzz-good.mkv", "h264")

	out, _, err := runCLI(t, []string{"apply", "--on-error", "fail", "--workers", "1"}, env.configPath)
	requireExitCode(t, err, exitCodeStoppedEarly)
	requireContains(t, out, "Stopped early after the first failure")
}

func TestApplyRecursiveDiscovery(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestPolicy(t, env.cfg.Paths.PolicyPath, encodePolicy)

	lib := env.cfg.Paths.LibraryDirs[0]
	nested := testsupport.WriteVideo(t, filepath.Join(lib, "season-01"), "episode.mkv")
	snap := &media.Snapshot{
		Path:      nested,
		Container: "mkv",
		Tracks: []media.Track{
			{Index: 0, Type: media.TrackVideo, Codec: "h264", Width: 1280, Height: 720},
		},
	}
	if err := env.store.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("seed nested: %v", err)
	}

	// Without --recursive the nested file is invisible.
	_, _, err := runCLI(t, []string{"apply"}, env.configPath)
	requireExitCode(t, err, exitCodeNoTargets)

	out, _, err := runCLI(t, []string{"apply", "--recursive"}, env.configPath)
	if err != nil {
		t.Fatalf("apply --recursive: %v", err)
	}
	requireContains(t, out, "1 files, 1 planned")
}
