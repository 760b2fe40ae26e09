package compiler

import (
	"github.com/chazu/leola/pkg/ast"
	"github.com/chazu/leola/vm"
)

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (c *Compiler) VisitCall(n *ast.Call) error {
	if len(n.Args) > vm.MaxArg {
		return c.errorf(n.Pos(), "too many arguments (%d)", len(n.Args))
	}
	if err := c.expr(n.Callee); err != nil {
		return err
	}

	named := false
	for _, a := range n.Args {
		if a.Name != "" {
			named = true
			break
		}
	}

	for _, a := range n.Args {
		if named {
			if a.Name == "" {
				c.u.EmitX(vm.OpLoadName, vm.MaxArgX)
			} else {
				c.u.EmitX(vm.OpLoadName, c.constant(vm.String(a.Name)))
			}
		}
		if err := c.expr(a.Value); err != nil {
			return err
		}
	}

	if named {
		c.u.EmitX(vm.OpParamEnd, len(n.Args))
		c.u.Emit12(vm.OpInvoke, len(n.Args), vm.InvokeNamed)
	} else {
		c.u.Emit12(vm.OpInvoke, len(n.Args), 0)
	}
	return nil
}

// tailCallable reports whether a returned call may reuse the frame: a call
// by name to the enclosing function itself, not shadowed by a local, with
// the declared number of positional arguments, outside any try block.
func (c *Compiler) tailCallable(call *ast.Call) bool {
	u := c.u
	if !c.opts.TailCalls || u.funcName == "" || u.generator || u.tryDepth > 0 || u.kind != vm.KindFunction {
		return false
	}
	id, ok := call.Callee.(*ast.Ident)
	if !ok || id.Name != u.funcName {
		return false
	}
	if _, shadowed := u.scope.ResolveLocal(id.Name); shadowed {
		return false
	}
	if len(call.Args) != u.numArgs || u.varArgs {
		return false
	}
	for _, a := range call.Args {
		if a.Name != "" {
			return false
		}
	}
	return true
}

func (c *Compiler) VisitReturn(n *ast.Return) error {
	if c.u.scope.kind == ScopeObject {
		return c.errorf(n.Pos(), "return inside a %s body", c.u.kind)
	}

	if call, ok := n.Value.(*ast.Call); ok && c.tailCallable(call) {
		if err := c.expr(call.Callee); err != nil {
			return err
		}
		for _, a := range call.Args {
			if err := c.expr(a.Value); err != nil {
				return err
			}
		}
		c.u.Emit12(vm.OpTailCall, len(call.Args), 0)
		return nil
	}

	if err := c.expr(n.Value); err != nil {
		return err
	}
	c.u.Emit(vm.OpRet)
	return nil
}

func (c *Compiler) VisitYield(n *ast.Yield) error {
	if !c.u.generator {
		return c.errorf(n.Pos(), "yield outside a generator")
	}
	if err := c.expr(n.Value); err != nil {
		return err
	}
	c.u.Emit(vm.OpYield)
	return nil
}

// ---------------------------------------------------------------------------
// Function and generator literals
// ---------------------------------------------------------------------------

func (c *Compiler) VisitFuncDef(n *ast.FuncDef) error {
	if len(n.Params) > vm.MaxArg {
		return c.errorf(n.Pos(), "too many parameters (%d)", len(n.Params))
	}
	parent := c.u
	kind := vm.KindFunction
	if n.Generator {
		kind = vm.KindGenerator
	}
	u := c.push(kind, ScopeLocal, n.Name)
	u.funcName = n.Name
	u.generator = n.Generator
	u.numArgs = len(n.Params)
	u.varArgs = n.VarArgs
	u.params = n.Params

	for _, p := range n.Params {
		if u.scope.DeclaredInBlock(p) {
			c.u = parent
			return c.errorf(n.Pos(), "duplicate parameter %q", p)
		}
		u.scope.DeclareLocal(p, 0)
	}

	if n.Body != nil {
		if err := c.stmts(n.Body.Stmts); err != nil {
			c.u = parent
			return err
		}
	}
	if !n.Generator {
		u.Emit(vm.OpLoadNull)
		u.Emit(vm.OpRet)
	}

	chunk, err := c.pop(n.Pos(), parent)
	if err != nil {
		return err
	}
	op := vm.OpFuncDef
	if n.Generator {
		op = vm.OpGenDef
	}
	c.u.EmitDefinition(op, chunk)
	return nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func (c *Compiler) VisitIf(n *ast.If) error {
	elseLabel := c.u.NewLabel()
	end := c.u.NewLabel()
	if err := c.expr(n.Cond); err != nil {
		return err
	}
	c.u.Jump(vm.OpIfEq, elseLabel)
	if err := c.branch(n.Then); err != nil {
		return err
	}
	if n.Else == nil {
		c.u.SetLabel(elseLabel)
		c.u.SetLabel(end)
		return nil
	}
	c.u.Jump(vm.OpJmp, end)
	c.u.SetLabel(elseLabel)
	if err := c.branch(n.Else); err != nil {
		return err
	}
	c.u.SetLabel(end)
	return nil
}

// branch compiles a statement that gets its own block scope.
func (c *Compiler) branch(n ast.Node) error {
	if b, ok := n.(*ast.Block); ok {
		return c.block(b)
	}
	s := c.u.scope
	s.OpenBlock()
	err := c.stmt(n)
	c.u.recordLocals(s.CloseBlock())
	return err
}

func (c *Compiler) VisitWhile(n *ast.While) error {
	u := c.u
	start := u.NewLabel()
	end := u.NewLabel()
	u.SetLabel(start)
	if err := c.expr(n.Cond); err != nil {
		return err
	}
	u.Jump(vm.OpIfEq, end)
	u.loops = append(u.loops, loop{breakLabel: end, continueLabel: start, markers: len(u.blocks)})
	err := c.branch(n.Body)
	u.loops = u.loops[:len(u.loops)-1]
	if err != nil {
		return err
	}
	u.Jump(vm.OpJmp, start)
	u.SetLabel(end)
	return nil
}

// leaveBlocks pops the block markers installed since the loop began,
// innermost first, running each finally body on the way out.
func (c *Compiler) leaveBlocks(l loop) error {
	u := c.u
	installed := u.blocks
	defer func() { u.blocks = installed }()
	for i := len(installed) - 1; i >= l.markers; i-- {
		u.Emit12(vm.OpEndBlock, vm.EndBlockPop, 0)
		u.blocks = installed[:i:i]
		if fin := installed[i]; fin != nil {
			if err := c.block(fin); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compiler) VisitBreak(n *ast.Break) error {
	if len(c.u.loops) == 0 {
		return c.errorf(n.Pos(), "break outside a loop")
	}
	l := c.u.loops[len(c.u.loops)-1]
	if err := c.leaveBlocks(l); err != nil {
		return err
	}
	c.u.Jump(vm.OpJmp, l.breakLabel)
	return nil
}

func (c *Compiler) VisitContinue(n *ast.Continue) error {
	if len(c.u.loops) == 0 {
		return c.errorf(n.Pos(), "continue outside a loop")
	}
	l := c.u.loops[len(c.u.loops)-1]
	if err := c.leaveBlocks(l); err != nil {
		return err
	}
	c.u.Jump(vm.OpJmp, l.continueLabel)
	return nil
}

func (c *Compiler) VisitThrow(n *ast.Throw) error {
	if err := c.expr(n.Value); err != nil {
		return err
	}
	c.u.Emit(vm.OpThrow)
	return nil
}

// VisitTry lays out try/catch/finally as
//
//	INIT_FINALLY_BLOCK fin      (with finally)
//	INIT_CATCH_BLOCK catch      (with catch)
//	body
//	END_BLOCK 0                 (with catch: pop catch marker)
//	JMP after
//	catch: store error; END_BLOCK 1; catch body
//	after:
//	END_BLOCK 0                 (with finally: pop finally marker)
//	fin: finally body; END_BLOCK 2
func (c *Compiler) VisitTry(n *ast.Try) error {
	if n.Catch == nil && n.Finally == nil {
		return c.errorf(n.Pos(), "try without catch or finally")
	}
	u := c.u
	u.tryDepth++
	defer func() { u.tryDepth-- }()

	fin := u.NewLabel()
	catch := u.NewLabel()
	after := u.NewLabel()

	if n.Finally != nil {
		u.Jump(vm.OpInitFinallyBlock, fin)
		u.blocks = append(u.blocks, n.Finally)
	}
	if n.Catch != nil {
		u.Jump(vm.OpInitCatchBlock, catch)
		u.blocks = append(u.blocks, nil)
	}
	base := u.Depth()

	if err := c.block(n.Body); err != nil {
		return err
	}

	if n.Catch != nil {
		u.Emit12(vm.OpEndBlock, vm.EndBlockPop, 0)
		u.blocks = u.blocks[:len(u.blocks)-1]
		u.Jump(vm.OpJmp, after)

		u.SetLabel(catch)
		u.SetDepth(base)
		u.Adjust(1)
		s := u.scope
		s.OpenBlock()
		name := n.CatchVar
		if name == "" {
			u.Emit(vm.OpPOP)
		} else {
			slot, isLocal, err := c.declare(n.Pos(), name)
			if err != nil {
				return err
			}
			c.storeDeclared(name, slot, isLocal)
		}
		u.Emit12(vm.OpEndBlock, vm.EndBlockCatch, 0)
		err := c.stmts(n.Catch.Stmts)
		u.recordLocals(s.CloseBlock())
		if err != nil {
			return err
		}
		u.SetLabel(after)
	}

	if n.Finally != nil {
		u.Emit12(vm.OpEndBlock, vm.EndBlockPop, 0)
		u.blocks = u.blocks[:len(u.blocks)-1]
		u.SetLabel(fin)
		u.SetDepth(base)
		if err := c.block(n.Finally); err != nil {
			return err
		}
		u.Emit12(vm.OpEndBlock, vm.EndBlockFinally, 0)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Classes and namespaces
// ---------------------------------------------------------------------------

func (c *Compiler) VisitClassDecl(n *ast.ClassDecl) error {
	if len(n.Params) > vm.MaxArg {
		return c.errorf(n.Pos(), "too many constructor parameters (%d)", len(n.Params))
	}
	parent := c.u
	u := c.push(vm.KindClass, ScopeObject, n.Name)
	u.numArgs = len(n.Params)
	u.params = n.Params
	u.class = &vm.ClassInfo{
		Name:       n.Name,
		SuperName:  n.Super,
		Interfaces: n.Interfaces,
		Params:     n.Params,
		SuperArgs:  n.SuperArgs,
	}
	seen := make(map[string]bool, len(n.Params))
	for _, p := range n.Params {
		if seen[p] {
			c.u = parent
			return c.errorf(n.Pos(), "duplicate parameter %q", p)
		}
		seen[p] = true
		u.scope.DeclareLocal(p, 0)
		u.scope.DeclareMember(p)
	}
	u.scope.DeclareMember("this")
	declareMembers(u.scope, n.Body)

	if n.Body != nil {
		if err := c.stmts(n.Body.Stmts); err != nil {
			c.u = parent
			return err
		}
	}

	chunk, err := c.pop(n.Pos(), parent)
	if err != nil {
		return err
	}
	c.u.EmitDefinition(vm.OpClassDef, chunk)
	return nil
}

// declareMembers records the variables a class or namespace body declares
// at its top level, so functions compiled before a declaration already see
// the member.
func declareMembers(s *Scope, body *ast.Block) {
	if body == nil {
		return
	}
	for _, st := range body.Stmts {
		if v, ok := st.(*ast.VarDecl); ok {
			s.DeclareMember(v.Name)
		}
	}
}

func (c *Compiler) VisitNew(n *ast.New) error {
	if len(n.Args) > vm.MaxArg {
		return c.errorf(n.Pos(), "too many arguments (%d)", len(n.Args))
	}
	k, err := c.constant12(n.Pos(), vm.String(n.Class))
	if err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := c.expr(a); err != nil {
			return err
		}
	}
	c.u.Emit12(vm.OpNewObj, k, len(n.Args))
	return nil
}

func (c *Compiler) VisitNamespaceDecl(n *ast.NamespaceDecl) error {
	if c.insideFunction() {
		return c.errorf(n.Pos(), "namespace %s declared inside a function", n.Name)
	}
	parent := c.u
	u := c.push(vm.KindNamespace, ScopeObject, n.Name)
	declareMembers(u.scope, n.Body)
	if n.Body != nil {
		if err := c.stmts(n.Body.Stmts); err != nil {
			c.u = parent
			return err
		}
	}
	chunk, err := c.pop(n.Pos(), parent)
	if err != nil {
		return err
	}
	c.u.EmitDefinition(vm.OpNamespaceDef, chunk)
	return nil
}
