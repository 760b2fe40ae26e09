package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/leola/pkg/ast"
	"github.com/chazu/leola/vm"
)

// Small constructors for building syntax trees in tests.

func program(stmts ...ast.Node) *ast.Program { return &ast.Program{Body: stmts} }
func block(stmts ...ast.Node) *ast.Block { return &ast.Block{Stmts: stmts} }
func expr(n ast.Node) ast.Node { return &ast.ExprStmt{Expr: n} }
func ident(name string) ast.Node { return &ast.Ident{Name: name} }
func num(v int64) ast.Node { return &ast.IntLit{Value: v} }
func str(s string) ast.Node { return &ast.StringLit{Value: s} }
func null() ast.Node { return &ast.NullLit{} }
func varDecl(name string, v ast.Node) ast.Node {
	return &ast.VarDecl{Name: name, Value: v}
}
func assign(name string, v ast.Node) ast.Node { return &ast.Assign{Name: name, Value: v} }
func binary(op string, l, r ast.Node) ast.Node {
	return &ast.Binary{Op: op, Left: l, Right: r}
}
func ret(v ast.Node) ast.Node { return &ast.Return{Value: v} }
func yield(v ast.Node) ast.Node { return &ast.Yield{Value: v} }
func throw(v ast.Node) ast.Node { return &ast.Throw{Value: v} }
func array(els ...ast.Node) ast.Node {
	return &ast.ArrayLit{Elements: els}
}
func index(obj, idx ast.Node) ast.Node { return &ast.Index{Object: obj, Index: idx} }
func member(obj ast.Node, name string) ast.Node {
	return &ast.Member{Object: obj, Name: name}
}

func fn(params []string, body ...ast.Node) *ast.FuncDef {
	return &ast.FuncDef{Params: params, Body: block(body...)}
}

func gen(params []string, body ...ast.Node) *ast.FuncDef {
	return &ast.FuncDef{Params: params, Generator: true, Body: block(body...)}
}

func call(callee ast.Node, args ...ast.Node) ast.Node {
	c := &ast.Call{Callee: callee}
	for _, a := range args {
		c.Args = append(c.Args, ast.Arg{Value: a})
	}
	return c
}

func callNamed(callee ast.Node, args ...ast.Arg) ast.Node {
	return &ast.Call{Callee: callee, Args: args}
}

func params(names ...string) []string { return names }

// compileProgram compiles prog with default options.
func compileProgram(t *testing.T, prog *ast.Program) *vm.Chunk {
	t.Helper()
	chunk, err := Compile(prog, DefaultOptions())
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return chunk
}

// run compiles and executes prog on a fresh runtime.
func run(t *testing.T, prog *ast.Program) vm.Value {
	t.Helper()
	rt := vm.NewRuntime(vm.DefaultConfig())
	v, err := rt.Execute(compileProgram(t, prog))
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	return v
}

// runError compiles and executes prog, expecting an uncaught error.
func runError(t *testing.T, prog *ast.Program) *vm.Error {
	t.Helper()
	rt := vm.NewRuntime(vm.DefaultConfig())
	_, err := rt.Execute(compileProgram(t, prog))
	if err == nil {
		t.Fatal("expected an uncaught error")
	}
	var rerr *vm.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error %v (%T) is not a *vm.Error", err, err)
	}
	return rerr
}

// compileError compiles prog, expecting a *CompileError.
func compileError(t *testing.T, prog *ast.Program) *CompileError {
	t.Helper()
	_, err := Compile(prog, DefaultOptions())
	if err == nil {
		t.Fatal("expected a compile error")
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v (%T) is not a *CompileError", err, err)
	}
	return cerr
}

func wantInt(t *testing.T, got vm.Value, want int64) {
	t.Helper()
	if i, ok := got.(vm.Int); !ok || int64(i) != want {
		t.Errorf("result = %v (%v), want %d", got, got.Type(), want)
	}
}

func wantString(t *testing.T, got vm.Value, want string) {
	t.Helper()
	if s, ok := got.(vm.String); !ok || string(s) != want {
		t.Errorf("result = %v (%v), want %q", got, got.Type(), want)
	}
}
