package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/leola/vm"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
namespace = "app:core"
version = "0.1.0"
entry = "main.lbc"

[engine]
max-stack = 4096
initial-stack = 64
max-frame-depth = 0
sandbox = true
check-stack-bounds = true

[compiler]
debug = true
tail-calls = false

[log]
verbosity = 2
path = "logs/leola.log"

[store]
path = "/var/lib/leola/chunks.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Namespace != "app:core" {
		t.Errorf("project namespace = %q, want app:core", m.Project.Namespace)
	}
	if m.Project.Entry != "main.lbc" {
		t.Errorf("project entry = %q, want main.lbc", m.Project.Entry)
	}

	cfg := m.EngineConfig()
	want := vm.Config{MaxStack: 4096, InitialStack: 64, MaxFrameDepth: 0, Sandbox: true, CheckStackBounds: true}
	if cfg != want {
		t.Errorf("engine config = %+v, want %+v", cfg, want)
	}

	opts := m.CompilerOptions()
	if !opts.Debug || opts.TailCalls {
		t.Errorf("compiler options = %+v, want debug without tail calls", opts)
	}

	if got := m.LogPath(); got != filepath.Join(m.Dir, "logs", "leola.log") {
		t.Errorf("log path = %q", got)
	}
	if got := m.StorePath(); got != "/var/lib/leola/chunks.db" {
		t.Errorf("store path = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg := m.EngineConfig(); cfg != vm.DefaultConfig() {
		t.Errorf("engine config = %+v, want defaults", cfg)
	}
	if opts := m.CompilerOptions(); !opts.TailCalls || opts.Debug {
		t.Errorf("compiler options = %+v, want defaults", opts)
	}
	if got := m.StorePath(); got != filepath.Join(m.Dir, ".leola", "chunks.db") {
		t.Errorf("default store path = %q", got)
	}
	if m.LogPath() != "" {
		t.Errorf("default log path = %q, want stderr", m.LogPath())
	}
}

func TestNilManifestUsesDefaults(t *testing.T) {
	var m *Manifest
	if m.EngineConfig() != vm.DefaultConfig() {
		t.Error("nil manifest changed the engine config")
	}
	if !m.CompilerOptions().TailCalls {
		t.Error("nil manifest disabled tail calls")
	}
}

func TestLoadManifestRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error"},
		{"unknown section", "[server]\nport = 1", "invalid"},
		{"unknown key", "[engine]\nturbo = true", "invalid"},
		{"wrong type", "[engine]\nsandbox = \"yes\"", "invalid"},
		{"out of range", "[engine]\nmax-stack = 0", "invalid"},
		{"bad namespace", "[project]\nnamespace = \"this:app\"", "project namespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no leola.toml exists")
	}
}
