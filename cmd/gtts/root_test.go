package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/example/go-gtts/internal/config"
	"github.com/example/go-gtts/internal/testutil"
	"github.com/example/go-gtts/internal/token"
)

var testSeed = token.Seed{A: 406986, B: 2817744745}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// fakeEndpointArgs points the CLI at a fake endpoint publishing testSeed.
func fakeEndpointArgs(t *testing.T) (*testutil.FakeEndpoint, []string) {
	t.Helper()

	ep := testutil.NewFakeEndpoint(t, testSeed)
	return ep, []string{"--endpoint-base-url", ep.URL, "--log-level", "error"}
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"synth", "segments", "langs", "bench", "serve", "health", "doctor"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentFlags(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"config", "env-file", "lang", "endpoint-base-url", "max-chars"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag to be registered", name)
		}
	}
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	_, _, err := runCLI(t, "", "langs", "--concurrency", "0")
	if err == nil || !strings.Contains(err.Error(), "tts.concurrency") {
		t.Fatalf("err = %v; want tts.concurrency validation error", err)
	}
}

func TestRoot_MissingConfigFileFails(t *testing.T) {
	_, _, err := runCLI(t, "", "langs", "--config", "/nonexistent/gtts.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	// Should not panic on invalid level.
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	// Zero-value config has an empty language → requireConfig returns error.
	activeCfg = config.Config{}

	_, err := requireConfig()
	if err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.TTS.Lang != "en" {
		t.Errorf("unexpected lang: %q", got.TTS.Lang)
	}
}
