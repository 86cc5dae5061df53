package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vpo/internal/config"
	"vpo/internal/store"
	"vpo/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	configPath string
	baseDir    string
}

// setupCLITestEnv builds an isolated home with a config file pointing at
// temp directories and opens the store behind it for seeding.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", base)

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, configPath, input string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if input != "" {
		cmd.SetIn(strings.NewReader(input))
	}
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndb_path = %q\nlog_dir = %q\npolicy_path = %q\nlibrary_dirs = [%q]\n\n[processing]\nworkers = %d\non_error = %q\n",
		cfg.Paths.DBPath,
		cfg.Paths.LogDir,
		cfg.Paths.PolicyPath,
		cfg.Paths.LibraryDirs[0],
		cfg.Processing.Workers,
		cfg.Processing.OnError,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeTestPolicy(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
}

// encodePolicy plans a transcode for non-hevc video and nothing else, so
// tests can predict exactly which files produce plans.
const encodePolicy = `
schema_version: 13
name: library-standard
phases:
  - name: encode
    transcode:
      target_codec: hevc
      skip_if:
        codec_matches: [hevc]
`

// probeReport renders an ffprobe-style scan for one file with the given
// video codec, shaped like the manifests db import ingests.
func probeReport(path, videoCodec string) string {
	return fmt.Sprintf(`{
		"streams": [
			{"index": 0, "codec_name": %q, "codec_type": "video", "width": 1920, "height": 1080, "disposition": {"default": 1}},
			{"index": 1, "codec_name": "ac3", "codec_type": "audio", "channels": 6, "channel_layout": "5.1", "tags": {"language": "eng"}}
		],
		"format": {"filename": %q, "format_name": "matroska,webm", "duration": "5400.5", "size": "1073741824"}
	}`, videoCodec, path)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q to not contain %q", output, substr)
	}
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exit *exitError
	if !errors.As(err, &exit) {
		t.Fatalf("expected an exit error, got %v", err)
	}
	if exit.code != code {
		t.Fatalf("exit code = %d, want %d (cause: %v)", exit.code, code, exit.cause)
	}
}
