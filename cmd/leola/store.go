package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/chazu/leola/chunkstore"
	"github.com/chazu/leola/manifest"
)

// storePath picks the chunk store database: the manifest's, else one under
// the working directory.
func storePath(m *manifest.Manifest) string {
	if m != nil {
		return m.StorePath()
	}
	return filepath.Join(".leola", "chunks.db")
}

func storeCommand(m *manifest.Manifest, opts options, cmd string, args []string) error {
	s, err := chunkstore.Open(storePath(m))
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	switch cmd {
	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: leola put <name> <file>")
		}
		chunk, err := loadChunk(m, args[1])
		if err != nil {
			return err
		}
		e, err := s.Put(ctx, args[0], chunk)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", e.Hash[:12], e.Name)

	case "get":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: leola get <name> [out.lbc]")
		}
		if len(args) == 2 {
			data, err := s.GetBytes(ctx, args[0])
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0644)
		}
		chunk, err := s.Get(ctx, args[0])
		if err != nil {
			return err
		}
		opts.disasm = true
		return execute(m, opts, chunk)

	case "run":
		if len(args) != 1 {
			return fmt.Errorf("usage: leola run <name>")
		}
		chunk, err := s.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return execute(m, opts, chunk)

	case "ls":
		entries, err := s.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tHASH\tSIZE\tUPDATED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Name, e.Hash[:12], e.Size, e.Updated.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: leola rm <name>")
		}
		return s.Delete(ctx, args[0])
	}
	return nil
}
