package compiler

import (
	"fmt"

	"github.com/chazu/leola/pkg/ast"
)

// CompileError is a fatal compilation error. No chunk is produced when one
// occurs.
type CompileError struct {
	Source string
	Pos    ast.Position
	Msg    string
}

func (e *CompileError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Source, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Source, e.Pos.Line, e.Pos.Column, e.Msg)
}

func (c *Compiler) errorf(pos ast.Position, format string, args ...any) error {
	return &CompileError{Source: c.opts.Source, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
