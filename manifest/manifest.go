// Package manifest handles leola.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/leola/compiler"
	"github.com/chazu/leola/vm"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "leola.toml"

// Manifest represents a leola.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Engine   EngineConfig   `toml:"engine"`
	Compiler CompilerConfig `toml:"compiler"`
	Log      LogConfig      `toml:"log"`
	Store    StoreConfig    `toml:"store"`

	// Dir is the directory containing the leola.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name      string `toml:"name"`
	Namespace string `toml:"namespace"`
	Version   string `toml:"version"`
	Entry     string `toml:"entry"` // chunk file run when none is named
}

// EngineConfig overrides engine settings. Zero values keep the defaults.
type EngineConfig struct {
	MaxStack         int  `toml:"max-stack"`
	InitialStack     int  `toml:"initial-stack"`
	MaxFrameDepth    *int `toml:"max-frame-depth"`
	Sandbox          bool `toml:"sandbox"`
	CheckStackBounds bool `toml:"check-stack-bounds"`
}

// CompilerConfig configures code generation.
type CompilerConfig struct {
	Debug     bool  `toml:"debug"`
	TailCalls *bool `toml:"tail-calls"`
}

// LogConfig configures the commonlog backend.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// StoreConfig locates the chunk store database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Load parses and validates a leola.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parse(data, path, dir)
}

func parse(data []byte, path, dir string) (*Manifest, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if ns := m.Project.Namespace; ns != "" {
		if err := CheckNamespace(ns); err != nil {
			return nil, fmt.Errorf("invalid %s: project namespace: %w", path, err)
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.Dir = abs

	// Defaults
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".leola", "chunks.db")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a leola.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EngineConfig returns the engine settings the manifest selects.
func (m *Manifest) EngineConfig() vm.Config {
	cfg := vm.DefaultConfig()
	if m == nil {
		return cfg
	}
	e := m.Engine
	if e.MaxStack > 0 {
		cfg.MaxStack = e.MaxStack
	}
	if e.InitialStack > 0 {
		cfg.InitialStack = e.InitialStack
	}
	if e.MaxFrameDepth != nil {
		cfg.MaxFrameDepth = *e.MaxFrameDepth
	}
	cfg.Sandbox = e.Sandbox
	cfg.CheckStackBounds = e.CheckStackBounds
	return cfg
}

// CompilerOptions returns the compiler options the manifest selects.
func (m *Manifest) CompilerOptions() compiler.Options {
	opts := compiler.DefaultOptions()
	if m == nil {
		return opts
	}
	opts.Debug = m.Compiler.Debug
	if m.Compiler.TailCalls != nil {
		opts.TailCalls = *m.Compiler.TailCalls
	}
	return opts
}

// StorePath returns the absolute path of the chunk store database.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// LogPath returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.Path == "" || filepath.IsAbs(m.Log.Path) {
		return m.Log.Path
	}
	return filepath.Join(m.Dir, m.Log.Path)
}
