package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/contentful-listener/internal/config"
	"github.com/mattjoyce/contentful-listener/internal/log"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-01-02T03:04:05.999Z")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"--json"})
	})
	if code != 0 {
		t.Fatalf("runVersion() code = %d, stderr: %s", code, stderr)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if info.Version != "1.2.3" {
		t.Errorf("version = %q", info.Version)
	}
	if info.Commit != "0123456789ab" {
		t.Errorf("commit = %q, want shortened", info.Commit)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("build_time = %q", info.BuildTime)
	}
}

func TestRunVersionRejectsArgs(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"extra"})
	})
	if code != 1 {
		t.Fatalf("runVersion(extra) code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Usage") {
		t.Errorf("stderr missing usage: %s", stderr)
	}
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestRunCLIHelp(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stderr, "config check") {
		t.Errorf("usage missing commands: %s", stderr)
	}
}

func TestRunConfigCheck(t *testing.T) {
	path := writeConfig(t, "webhook:\n  listen: 127.0.0.1:8081\n")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", path})
	})
	if code != 0 {
		t.Fatalf("config check code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Configuration valid") || !strings.Contains(stdout, "blake3 ") {
		t.Errorf("stdout = %s", stdout)
	}
}

func TestRunConfigCheckInvalid(t *testing.T) {
	path := writeConfig(t, "webhook:\n  listen: 127.0.0.1:8081\n  failure_policy: sometimes\n")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", path})
	})
	if code != 1 {
		t.Fatalf("config check code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "failure_policy") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestRunConfigShowRedactsSecret(t *testing.T) {
	t.Setenv("CFL_MAIN_TEST_SECRET", "hunter2")
	path := writeConfig(t, "webhook:\n  listen: 127.0.0.1:8081\n  auth: ${CFL_MAIN_TEST_SECRET}\n")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "show", "--config", path})
	})
	if code != 0 {
		t.Fatalf("config show code = %d, stderr: %s", code, stderr)
	}
	if strings.Contains(stdout, "hunter2") {
		t.Fatalf("secret leaked: %s", stdout)
	}
	if !strings.Contains(stdout, "<redacted>") {
		t.Errorf("stdout = %s", stdout)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Webhook.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, log.Discard()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestRunFailsOnBadListenAddress(t *testing.T) {
	cfg := config.Defaults()
	cfg.Webhook.Listen = "not-an-address"

	err := run(context.Background(), cfg, log.Discard())
	if err == nil {
		t.Fatal("run() error = nil, want listen failure")
	}
}
