package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/matzehuels/deploader/pkg/buildinfo"
	"github.com/matzehuels/deploader/pkg/observability"
)

func TestSetVersion(t *testing.T) {
	old := [3]string{buildinfo.Version, buildinfo.Commit, buildinfo.Date}
	t.Cleanup(func() { buildinfo.Version, buildinfo.Commit, buildinfo.Date = old[0], old[1], old[2] })

	SetVersion("1.0.0", "abc123", "2024-01-01")

	if buildinfo.Version != "1.0.0" {
		t.Errorf("Version = %q, want %q", buildinfo.Version, "1.0.0")
	}
	if buildinfo.Commit != "abc123" {
		t.Errorf("Commit = %q, want %q", buildinfo.Commit, "abc123")
	}
	if buildinfo.Date != "2024-01-01" {
		t.Errorf("Date = %q, want %q", buildinfo.Date, "2024-01-01")
	}
}

func TestSetVersionEmptyKeepsDefaults(t *testing.T) {
	old := buildinfo.Version
	t.Cleanup(func() { buildinfo.Version = old })

	SetVersion("", "", "")

	if buildinfo.Version != old {
		t.Errorf("Version = %q, want %q", buildinfo.Version, old)
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := []string{"run", "resolve", "load", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"home", "dev", "client", "java", "workers", "no-cache", "no-download", "classpath", "repo"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestCompletion(t *testing.T) {
	for _, shell := range completionShells {
		out, err := runCLI(t, "completion", shell)
		if err != nil {
			t.Fatalf("completion %s: %v", shell, err)
		}
		if !strings.Contains(out, appName) {
			t.Errorf("completion %s does not mention %s", shell, appName)
		}
	}

	if _, err := runCLI(t, "completion", "tcsh"); err == nil {
		t.Error("unknown shell accepted")
	}
}

func TestExecuteVerboseTracesFetches(t *testing.T) {
	home := installation(t)
	var logs bytes.Buffer

	err := execute(context.Background(), New(&logs, LogInfo), []string{"run", "--home", home, "--no-download", "-v"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(logs.String(), "Fetched") || !strings.Contains(logs.String(), "source=local") {
		t.Errorf("verbose log lacks fetch trace:\n%s", logs.String())
	}
	if _, ok := observability.Fetch().(observability.NoopFetchHooks); !ok {
		t.Errorf("hooks not restored after execute: %T", observability.Fetch())
	}
}
