package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/leola/pkg/ast"
	"github.com/chazu/leola/vm"
)

var log = commonlog.GetLogger("leola.compiler")

// ---------------------------------------------------------------------------
// Compiler: AST to chunk tree
// ---------------------------------------------------------------------------

// Options control code generation.
type Options struct {
	Debug     bool   // emit LINE markers and local live ranges
	TailCalls bool   // compile eligible self calls as TAIL_CALL
	Source    string // source tag stored in every chunk
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{TailCalls: true, Source: "<script>"}
}

// loop tracks the jump targets of an enclosing while loop.
type loop struct {
	breakLabel    Label
	continueLabel Label
	markers       int // block markers active when the loop started
}

// unit is the per-chunk compilation state layered over an Emitter.
type unit struct {
	*Emitter
	funcName  string // name of the function literal, "" if anonymous
	generator bool
	loops     []loop
	tryDepth  int
	blocks    []*ast.Block // installed block markers: finally body, or nil for catch
}

// Compiler compiles a syntax tree to a chunk tree. It implements
// ast.Visitor; every expression visit leaves exactly one value on the
// operand stack and every statement visit leaves none.
type Compiler struct {
	opts   Options
	u      *unit
	result *vm.Chunk
}

// Compile compiles a program to its top-level chunk.
func Compile(prog *ast.Program, opts Options) (*vm.Chunk, error) {
	c := &Compiler{opts: opts}
	if err := prog.Accept(c); err != nil {
		return nil, err
	}
	return c.result, nil
}

func (c *Compiler) push(kind vm.ChunkKind, scopeKind ScopeKind, name string) *unit {
	var parentEmitter *Emitter
	var parentScope *Scope
	if c.u != nil {
		parentEmitter = c.u.Emitter
		parentScope = c.u.scope
	}
	em := NewEmitter(parentEmitter, NewScope(scopeKind, parentScope), kind, name)
	em.debug = c.opts.Debug
	em.source = c.opts.Source
	u := &unit{Emitter: em}
	c.u = u
	return u
}

// pop closes the current unit and returns its chunk, restoring the parent.
func (c *Compiler) pop(pos ast.Position, parent *unit) (*vm.Chunk, error) {
	u := c.u
	u.recordLocals(u.scope.locals)
	chunk, err := u.Close()
	c.u = parent
	if err != nil {
		return nil, c.errorf(pos, "%s", err)
	}
	log.Debugf("compiled %s %q: %d instructions, max stack %d", chunk.Kind, chunk.Name, len(chunk.Code), chunk.MaxStack)
	return chunk, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (c *Compiler) constant(v vm.Value) int {
	return c.u.scope.AddConstant(v)
}

// constant12 adds a constant that must fit a 12-bit operand.
func (c *Compiler) constant12(pos ast.Position, v vm.Value) (int, error) {
	k := c.constant(v)
	if k > vm.MaxArg {
		return 0, c.errorf(pos, "constant pool exceeds %d entries", vm.MaxArg+1)
	}
	return k, nil
}

func isStatement(n ast.Node) bool {
	switch n.(type) {
	case *ast.Block, *ast.VarDecl, *ast.Return, *ast.Yield, *ast.If, *ast.While,
		*ast.Break, *ast.Continue, *ast.Try, *ast.Throw, *ast.ClassDecl,
		*ast.NamespaceDecl, *ast.ExprStmt, *ast.Program:
		return true
	}
	return false
}

// stmt compiles n for effect.
func (c *Compiler) stmt(n ast.Node) error {
	c.u.Line(n.Pos().Line)
	if err := n.Accept(c); err != nil {
		return err
	}
	if !isStatement(n) {
		c.u.Emit(vm.OpPOP)
	}
	return nil
}

// expr compiles n for its value.
func (c *Compiler) expr(n ast.Node) error {
	if n == nil {
		c.u.Emit(vm.OpLoadNull)
		return nil
	}
	if isStatement(n) {
		return c.errorf(n.Pos(), "%T used as an expression", n)
	}
	return n.Accept(c)
}

func (c *Compiler) stmts(list []ast.Node) error {
	for _, n := range list {
		if err := c.stmt(n); err != nil {
			return err
		}
	}
	return nil
}

// insideFunction reports whether any enclosing unit is a function body.
func (c *Compiler) insideFunction() bool {
	for em := c.u.Emitter; em != nil; em = em.parent {
		if em.scope.kind == ScopeLocal {
			return true
		}
	}
	return false
}

// declare binds a new variable. Local scopes get a slot; other scopes
// define the name at run time.
func (c *Compiler) declare(pos ast.Position, name string) (slot int, isLocal bool, err error) {
	s := c.u.scope
	if s.kind != ScopeLocal {
		s.DeclareMember(name)
		return 0, false, nil
	}
	if s.DeclaredInBlock(name) {
		return 0, false, c.errorf(pos, "variable %q already declared in this block", name)
	}
	return s.DeclareLocal(name, c.u.PC()), true, nil
}

// storeDeclared pops the value on the stack into a freshly declared
// variable.
func (c *Compiler) storeDeclared(name string, slot int, isLocal bool) {
	if isLocal {
		c.u.EmitX(vm.OpStoreLocal, slot)
		return
	}
	c.u.EmitX(vm.OpDefGlobal, c.constant(vm.String(name)))
}

// load pushes the value of a variable.
func (c *Compiler) load(name string) {
	s := c.u.scope
	if slot, ok := s.ResolveLocal(name); ok {
		c.u.EmitX(vm.OpLoadLocal, slot)
	} else if idx, ok := s.ResolveOuter(name); ok {
		c.u.EmitX(vm.OpLoadOuter, idx)
	} else {
		c.u.EmitX(vm.OpGetGlobal, c.constant(vm.String(name)))
	}
}

// store pops into an existing variable.
func (c *Compiler) store(name string) {
	s := c.u.scope
	if slot, ok := s.ResolveLocal(name); ok {
		c.u.EmitX(vm.OpStoreLocal, slot)
	} else if idx, ok := s.ResolveOuter(name); ok {
		c.u.EmitX(vm.OpStoreOuter, idx)
	} else {
		c.u.EmitX(vm.OpSetGlobal, c.constant(vm.String(name)))
	}
}

// block compiles statements in a nested variable scope.
func (c *Compiler) block(b *ast.Block) error {
	if b == nil {
		return nil
	}
	s := c.u.scope
	s.OpenBlock()
	err := c.stmts(b.Stmts)
	c.u.recordLocals(s.CloseBlock())
	return err
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

func (c *Compiler) VisitProgram(n *ast.Program) error {
	c.push(vm.KindScript, ScopeGlobal, "<main>")
	body := n.Body
	var last *ast.ExprStmt
	if len(body) > 0 {
		last, _ = body[len(body)-1].(*ast.ExprStmt)
		if last != nil {
			body = body[:len(body)-1]
		}
	}
	if err := c.stmts(body); err != nil {
		return err
	}
	if last != nil {
		c.u.Line(last.Pos().Line)
		if err := c.expr(last.Expr); err != nil {
			return err
		}
	} else {
		c.u.Emit(vm.OpLoadNull)
	}
	c.u.Emit(vm.OpRet)
	chunk, err := c.pop(n.Pos(), nil)
	if err != nil {
		return err
	}
	c.result = chunk
	return nil
}

func (c *Compiler) VisitBlock(n *ast.Block) error {
	return c.block(n)
}

func (c *Compiler) VisitExprStmt(n *ast.ExprStmt) error {
	if err := c.expr(n.Expr); err != nil {
		return err
	}
	c.u.Emit(vm.OpPOP)
	return nil
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (c *Compiler) VisitVarDecl(n *ast.VarDecl) error {
	// Function literals see their own name so they can recurse.
	if fn, ok := n.Value.(*ast.FuncDef); ok {
		slot, isLocal, err := c.declare(n.Pos(), n.Name)
		if err != nil {
			return err
		}
		if fn.Name == "" {
			named := *fn
			named.Name = n.Name
			fn = &named
		}
		if err := c.expr(fn); err != nil {
			return err
		}
		c.storeDeclared(n.Name, slot, isLocal)
		return nil
	}

	if err := c.expr(n.Value); err != nil {
		return err
	}
	slot, isLocal, err := c.declare(n.Pos(), n.Name)
	if err != nil {
		return err
	}
	c.storeDeclared(n.Name, slot, isLocal)
	return nil
}

func (c *Compiler) VisitAssign(n *ast.Assign) error {
	if err := c.expr(n.Value); err != nil {
		return err
	}
	c.u.Emit(vm.OpDUP)
	c.store(n.Name)
	return nil
}

func (c *Compiler) VisitIdent(n *ast.Ident) error {
	c.load(n.Name)
	return nil
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func (c *Compiler) VisitNullLit(n *ast.NullLit) error {
	c.u.Emit(vm.OpLoadNull)
	return nil
}

func (c *Compiler) VisitBoolLit(n *ast.BoolLit) error {
	if n.Value {
		c.u.Emit(vm.OpLoadTrue)
	} else {
		c.u.Emit(vm.OpLoadFalse)
	}
	return nil
}

func (c *Compiler) VisitIntLit(n *ast.IntLit) error {
	c.u.EmitX(vm.OpLoadConst, c.constant(vm.Int(n.Value)))
	return nil
}

func (c *Compiler) VisitRealLit(n *ast.RealLit) error {
	c.u.EmitX(vm.OpLoadConst, c.constant(vm.Real(n.Value)))
	return nil
}

func (c *Compiler) VisitStringLit(n *ast.StringLit) error {
	c.u.EmitX(vm.OpLoadConst, c.constant(vm.String(n.Value)))
	return nil
}

func (c *Compiler) VisitArrayLit(n *ast.ArrayLit) error {
	for _, el := range n.Elements {
		if err := c.expr(el); err != nil {
			return err
		}
	}
	c.u.EmitX(vm.OpNewArray, len(n.Elements))
	return nil
}

func (c *Compiler) VisitMapLit(n *ast.MapLit) error {
	for _, e := range n.Entries {
		if err := c.expr(e.Key); err != nil {
			return err
		}
		if err := c.expr(e.Value); err != nil {
			return err
		}
	}
	c.u.EmitX(vm.OpNewMap, len(n.Entries))
	return nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var binaryOps = map[string]vm.Opcode{
	"+": vm.OpAdd, "-": vm.OpSub, "*": vm.OpMul, "/": vm.OpDiv, "%": vm.OpMod,
	"<<": vm.OpBSL, ">>": vm.OpBSR, "^": vm.OpXor, "|": vm.OpBOr, "&": vm.OpBAnd,
	"==": vm.OpEq, "!=": vm.OpNeq, ">": vm.OpGt, ">=": vm.OpGte, "<": vm.OpLt, "<=": vm.OpLte,
}

var unaryOps = map[string]vm.Opcode{
	"-": vm.OpNeg, "~": vm.OpBNot, "!": vm.OpNot, "not": vm.OpNot,
}

func (c *Compiler) VisitBinary(n *ast.Binary) error {
	op, ok := binaryOps[n.Op]
	if !ok {
		return c.errorf(n.Pos(), "unknown binary operator %q", n.Op)
	}
	if err := c.expr(n.Left); err != nil {
		return err
	}
	if err := c.expr(n.Right); err != nil {
		return err
	}
	c.u.Emit(op)
	return nil
}

func (c *Compiler) VisitUnary(n *ast.Unary) error {
	op, ok := unaryOps[n.Op]
	if !ok {
		return c.errorf(n.Pos(), "unknown unary operator %q", n.Op)
	}
	if err := c.expr(n.Operand); err != nil {
		return err
	}
	c.u.Emit(op)
	return nil
}

func (c *Compiler) VisitLogical(n *ast.Logical) error {
	var jump vm.Opcode
	switch n.Op {
	case "and", "&&":
		jump = vm.OpIfEq
	case "or", "||":
		jump = vm.OpIfNeq
	default:
		return c.errorf(n.Pos(), "unknown logical operator %q", n.Op)
	}
	end := c.u.NewLabel()
	if err := c.expr(n.Left); err != nil {
		return err
	}
	c.u.Emit(vm.OpDUP)
	c.u.Jump(jump, end)
	c.u.Emit(vm.OpPOP)
	if err := c.expr(n.Right); err != nil {
		return err
	}
	c.u.SetLabel(end)
	return nil
}

func (c *Compiler) VisitIsA(n *ast.IsA) error {
	if err := c.expr(n.Value); err != nil {
		return err
	}
	c.u.EmitX(vm.OpLoadConst, c.constant(vm.String(n.Class)))
	c.u.Emit(vm.OpIsA)
	return nil
}

// ---------------------------------------------------------------------------
// Member and index access
// ---------------------------------------------------------------------------

func (c *Compiler) VisitMember(n *ast.Member) error {
	if err := c.expr(n.Object); err != nil {
		return err
	}
	c.u.EmitX(vm.OpGetK, c.constant(vm.String(n.Name)))
	return nil
}

func (c *Compiler) VisitMemberAssign(n *ast.MemberAssign) error {
	if err := c.expr(n.Object); err != nil {
		return err
	}
	if err := c.expr(n.Value); err != nil {
		return err
	}
	c.u.EmitX(vm.OpSetK, c.constant(vm.String(n.Name)))
	return nil
}

func (c *Compiler) VisitIndex(n *ast.Index) error {
	if err := c.expr(n.Object); err != nil {
		return err
	}
	if err := c.expr(n.Index); err != nil {
		return err
	}
	c.u.Emit(vm.OpIdx)
	return nil
}

func (c *Compiler) VisitIndexAssign(n *ast.IndexAssign) error {
	if err := c.expr(n.Object); err != nil {
		return err
	}
	if err := c.expr(n.Index); err != nil {
		return err
	}
	if err := c.expr(n.Value); err != nil {
		return err
	}
	c.u.Emit(vm.OpSIdx)
	return nil
}
