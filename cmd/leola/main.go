// Leola CLI - runs, compiles and inspects persisted Leola chunks
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/leola/compiler"
	"github.com/chazu/leola/manifest"
	"github.com/chazu/leola/pkg/ast"
	"github.com/chazu/leola/vm"
)

var log = commonlog.GetLogger("leola.cmd")

type options struct {
	config  string
	disasm  bool
	json    bool
	output  string
	verbose bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Directory holding leola.toml (default: search upward from the working directory)")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print the disassembly instead of running")
	flag.BoolVar(&opts.json, "json", false, "With -disasm, print the listing as JSON")
	flag.StringVar(&opts.output, "o", "", "Write the compiled chunk to this file instead of running")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: leola [options] <file.lbc|file.json>\n")
		fmt.Fprintf(os.Stderr, "       leola [options] put <name> <file>\n")
		fmt.Fprintf(os.Stderr, "       leola [options] get <name> [out.lbc]\n")
		fmt.Fprintf(os.Stderr, "       leola [options] run <name>\n")
		fmt.Fprintf(os.Stderr, "       leola [options] ls\n")
		fmt.Fprintf(os.Stderr, "       leola [options] rm <name>\n\n")
		fmt.Fprintf(os.Stderr, "Runs a persisted chunk (.lbc) or compiles and runs a JSON syntax tree (.json).\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  leola main.lbc                 # Run a chunk\n")
		fmt.Fprintf(os.Stderr, "  leola -o main.lbc main.json    # Compile a syntax tree\n")
		fmt.Fprintf(os.Stderr, "  leola -disasm -json main.lbc   # JSON disassembly\n")
		fmt.Fprintf(os.Stderr, "  leola put main main.json       # Compile and store as 'main'\n")
	}
	flag.Parse()

	m, err := loadManifest(opts.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	configureLogging(m, opts.verbose)

	if err := run(m, opts, flag.Args()); err != nil {
		var rerr *vm.Error
		if errors.As(err, &rerr) {
			fmt.Fprintf(os.Stderr, "Uncaught %s\n", rerr.StackTrace())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return manifest.FindAndLoad(wd)
}

func configureLogging(m *manifest.Manifest, verbose bool) {
	verbosity := 0
	var path *string
	if m != nil {
		verbosity = m.Log.Verbosity
		if p := m.LogPath(); p != "" {
			path = &p
		}
	}
	if verbose && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, path)
}

func run(m *manifest.Manifest, opts options, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "put", "get", "run", "ls", "rm":
			return storeCommand(m, opts, args[0], args[1:])
		}
	}

	if len(args) == 0 && m != nil && m.Project.Entry != "" {
		args = []string{filepath.Join(m.Dir, m.Project.Entry)}
	}
	if len(args) != 1 {
		flag.Usage()
		return fmt.Errorf("expected one file")
	}

	chunk, err := loadChunk(m, args[0])
	if err != nil {
		return err
	}
	if opts.output != "" {
		data, err := chunk.Serialize()
		if err != nil {
			return err
		}
		log.Infof("writing %s (%d bytes)", opts.output, len(data))
		return os.WriteFile(opts.output, data, 0644)
	}
	return execute(m, opts, chunk)
}

// loadChunk reads a persisted chunk, or compiles a JSON syntax tree.
func loadChunk(m *manifest.Manifest, path string) (*vm.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, vm.ChunkMagic) {
		return vm.DeserializeChunk(data)
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return nil, fmt.Errorf("%s is neither a chunk nor a JSON syntax tree", path)
	}

	prog, err := ast.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	copts := m.CompilerOptions()
	copts.Source = filepath.Base(path)
	return compiler.Compile(prog, copts)
}

func execute(m *manifest.Manifest, opts options, chunk *vm.Chunk) error {
	if opts.disasm {
		if opts.json {
			data, err := vm.DisassembleJSON(chunk)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Print(vm.Disassemble(chunk))
		return nil
	}

	rt := vm.NewRuntime(m.EngineConfig())
	rt.LoadNatives(nil, natives())
	log.Debugf("executing %s on runtime %s", chunk.Name, rt.ID)
	result, err := rt.Execute(chunk)
	if err != nil {
		return err
	}
	if !vm.IsNull(result) {
		fmt.Println(result)
	}
	return nil
}

// natives are the host functions every script sees.
func natives() map[string]vm.Value {
	return map[string]vm.Value{
		"print": vm.NewNativeFunction("print", func(args []vm.Value) (vm.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.String()
			}
			fmt.Println(strings.Join(parts, " "))
			return vm.Null, nil
		}),
	}
}
