package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/leola/pkg/ast"
	"github.com/chazu/leola/vm"
)

func TestCompileArithmeticAndGlobals(t *testing.T) {
	result := run(t, program(
		varDecl("x", num(2)),
		expr(binary("*", ident("x"), num(21))),
	))
	wantInt(t, result, 42)
}

func TestCompileProgramWithoutTrailingExpressionReturnsNull(t *testing.T) {
	result := run(t, program(varDecl("x", num(1))))
	if !vm.IsNull(result) {
		t.Errorf("result = %v, want null", result)
	}
}

func TestCompileIfElse(t *testing.T) {
	pick := fn(params("n"),
		&ast.If{
			Cond: binary("<", ident("n"), num(0)),
			Then: block(ret(str("negative"))),
			Else: &ast.If{
				Cond: binary("==", ident("n"), num(0)),
				Then: ret(str("zero")),
				Else: block(ret(str("positive"))),
			},
		},
	)
	result := run(t, program(
		varDecl("pick", pick),
		expr(binary("+", binary("+",
			call(ident("pick"), num(-5)),
			call(ident("pick"), num(0))),
			call(ident("pick"), num(9)))),
	))
	wantString(t, result, "negativezeropositive")
}

func TestCompileWhileBreakContinue(t *testing.T) {
	// Sums odd numbers below 10, stopping at 7.
	body := fn(nil,
		varDecl("i", num(0)),
		varDecl("sum", num(0)),
		&ast.While{
			Cond: &ast.BoolLit{Value: true},
			Body: block(
				assign("i", binary("+", ident("i"), num(1))),
				&ast.If{Cond: binary(">", ident("i"), num(7)), Then: &ast.Break{}},
				&ast.If{Cond: binary("==", binary("%", ident("i"), num(2)), num(0)), Then: &ast.Continue{}},
				assign("sum", binary("+", ident("sum"), ident("i"))),
			),
		},
		ret(ident("sum")),
	)
	result := run(t, program(expr(call(body))))
	wantInt(t, result, 1+3+5+7)
}

func TestCompileLogicalShortCircuit(t *testing.T) {
	result := run(t, program(
		varDecl("hits", num(0)),
		varDecl("touch", fn(nil,
			assign("hits", binary("+", ident("hits"), num(1))),
			ret(&ast.BoolLit{Value: true}),
		)),
		expr(&ast.Logical{Op: "and", Left: &ast.BoolLit{Value: false}, Right: call(ident("touch"))}),
		expr(&ast.Logical{Op: "or", Left: &ast.BoolLit{Value: true}, Right: call(ident("touch"))}),
		expr(&ast.Logical{Op: "or", Left: null(), Right: call(ident("touch"))}),
		expr(ident("hits")),
	))
	wantInt(t, result, 1)
}

func TestCompileArraysAndMaps(t *testing.T) {
	result := run(t, program(
		varDecl("a", array(num(1), num(2), num(3))),
		varDecl("m", &ast.MapLit{Entries: []ast.MapEntry{
			{Key: str("k"), Value: num(10)},
		}}),
		expr(&ast.IndexAssign{Object: ident("a"), Index: num(1), Value: num(20)}),
		expr(&ast.MemberAssign{Object: ident("m"), Name: "j", Value: num(5)}),
		expr(binary("+",
			binary("+", index(ident("a"), num(1)), member(ident("m"), "k")),
			member(ident("m"), "j"))),
	))
	wantInt(t, result, 35)
}

// ---------------------------------------------------------------------------
// Closures
// ---------------------------------------------------------------------------

func TestClosuresShareOneCell(t *testing.T) {
	makeCounter := fn(nil,
		varDecl("n", num(0)),
		varDecl("inc", fn(nil,
			assign("n", binary("+", ident("n"), num(1))),
			ret(ident("n")),
		)),
		varDecl("get", fn(nil, ret(ident("n")))),
		ret(array(ident("inc"), ident("get"))),
	)
	result := run(t, program(
		varDecl("makeCounter", makeCounter),
		varDecl("pair", call(ident("makeCounter"))),
		expr(call(index(ident("pair"), num(0)))),
		expr(call(index(ident("pair"), num(0)))),
		expr(call(index(ident("pair"), num(1)))),
	))
	wantInt(t, result, 2)
}

func TestClosureSeesWritesWhileFrameIsLive(t *testing.T) {
	outer := fn(nil,
		varDecl("n", num(1)),
		varDecl("peek", fn(nil, ret(ident("n")))),
		assign("n", num(10)),
		varDecl("first", call(ident("peek"))),
		assign("n", num(20)),
		ret(binary("+", ident("first"), call(ident("peek")))),
	)
	result := run(t, program(expr(call(outer))))
	wantInt(t, result, 30)
}

func TestClosureCapturesThroughIntermediateFunction(t *testing.T) {
	// The innermost function reads a variable two levels out; the middle
	// function never mentions it.
	outer := fn(params("x"),
		varDecl("middle", fn(nil,
			ret(fn(nil, ret(binary("*", ident("x"), num(2))))),
		)),
		ret(call(call(ident("middle")))),
	)
	result := run(t, program(expr(call(outer, num(21)))))
	wantInt(t, result, 42)
}

func TestSeparateCallsGetSeparateCells(t *testing.T) {
	mk := fn(params("v"), ret(fn(nil, ret(ident("v")))))
	result := run(t, program(
		varDecl("mk", mk),
		varDecl("a", call(ident("mk"), num(1))),
		varDecl("b", call(ident("mk"), num(2))),
		expr(binary("+", binary("*", call(ident("a")), num(10)), call(ident("b")))),
	))
	wantInt(t, result, 12)
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func TestTryCatchFinallyOrder(t *testing.T) {
	trace := func(s ast.Node) ast.Node { return assign("trace", binary("+", ident("trace"), s)) }
	f := fn(nil,
		&ast.Try{
			Body: block(trace(str("t")), throw(str("boom")), trace(str("x"))),
			CatchVar: "e",
			Catch:    block(trace(str("c")), trace(member(ident("e"), "value"))),
			Finally:  block(trace(str("f"))),
		},
		ret(ident("trace")),
	)
	result := run(t, program(
		varDecl("trace", str("")),
		expr(call(f)),
	))
	wantString(t, result, "tcboomf")
}

func TestFinallyRunsOnReturn(t *testing.T) {
	f := fn(nil,
		&ast.Try{
			Body:    block(ret(str("body"))),
			Finally: block(assign("ran", &ast.BoolLit{Value: true})),
		},
		ret(str("unreachable")),
	)
	result := run(t, program(
		varDecl("ran", &ast.BoolLit{Value: false}),
		varDecl("r", call(f)),
		expr(binary("+", ident("r"), ident("ran"))),
	))
	wantString(t, result, "bodytrue")
}

func TestFinallyRethrowsUncaughtError(t *testing.T) {
	prog := program(
		varDecl("ran", &ast.BoolLit{Value: false}),
		&ast.Try{
			Body:    block(throw(str("escape"))),
			Finally: block(assign("ran", &ast.BoolLit{Value: true})),
		},
	)
	rt := vm.NewRuntime(vm.DefaultConfig())
	_, err := rt.Execute(compileProgram(t, prog))
	var rerr *vm.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *vm.Error", err)
	}
	if got := rerr.Value(); got != vm.String("escape") {
		t.Errorf("thrown value = %v, want escape", got)
	}
	if rt.Get("ran") != vm.True {
		t.Error("finally block did not run")
	}
}

func TestEngineErrorsAreCatchable(t *testing.T) {
	f := fn(nil,
		&ast.Try{
			Body:     block(ret(binary("/", num(1), num(0)))),
			CatchVar: "e",
			Catch:    block(ret(str("caught"))),
		},
	)
	wantString(t, run(t, program(expr(call(f)))), "caught")
}

func TestNestedTryInnerCatchWins(t *testing.T) {
	f := fn(nil,
		&ast.Try{
			Body: block(&ast.Try{
				Body:     block(throw(str("inner"))),
				CatchVar: "e",
				Catch:    block(ret(binary("+", str("in:"), member(ident("e"), "value")))),
			}),
			CatchVar: "e",
			Catch:    block(ret(str("outer"))),
		},
	)
	wantString(t, run(t, program(expr(call(f)))), "in:inner")
}

func TestErrorInCatchPropagatesThroughFinally(t *testing.T) {
	f := fn(nil,
		&ast.Try{
			Body:     block(throw(str("first"))),
			CatchVar: "e",
			Catch:    block(throw(str("second"))),
			Finally:  block(assign("cleaned", &ast.BoolLit{Value: true})),
		},
	)
	prog := program(varDecl("cleaned", &ast.BoolLit{Value: false}), expr(call(f)))
	rerr := runError(t, prog)
	if rerr.Value() != vm.String("second") {
		t.Errorf("value = %v, want second", rerr.Value())
	}
}

func TestUncaughtErrorCarriesTrace(t *testing.T) {
	prog := program(
		varDecl("inner", fn(nil, throw(str("deep")))),
		varDecl("outer", fn(nil, ret(call(ident("inner"))))),
		expr(call(ident("outer"))),
	)
	rerr := runError(t, prog)
	if len(rerr.Trace) != 3 {
		t.Fatalf("trace has %d frames, want 3: %s", len(rerr.Trace), rerr.StackTrace())
	}
	if rerr.Trace[0].Name != "inner" || rerr.Trace[1].Name != "outer" {
		t.Errorf("trace = %v, want inner then outer", rerr.Trace)
	}
}

func TestBreakOutOfTryInsideLoop(t *testing.T) {
	f := fn(nil,
		varDecl("n", num(0)),
		&ast.While{
			Cond: &ast.BoolLit{Value: true},
			Body: block(&ast.Try{
				Body:     block(assign("n", binary("+", ident("n"), num(1))), &ast.Break{}),
				CatchVar: "e",
				Catch:    block(),
			}),
		},
		// A throw after the loop must not land in the abandoned catch.
		throw(ident("n")),
	)
	rerr := runError(t, program(expr(call(f))))
	if rerr.Value() != vm.Int(1) {
		t.Errorf("value = %v, want 1", rerr.Value())
	}
}

func TestBreakAndContinueRunFinally(t *testing.T) {
	appendLog := func(tag string) *ast.Block {
		return block(assign("log", binary("+", ident("log"), str(tag))))
	}
	f := fn(nil,
		varDecl("log", str("")),
		varDecl("i", num(0)),
		&ast.While{
			Cond: &ast.BoolLit{Value: true},
			Body: block(
				assign("i", binary("+", ident("i"), num(1))),
				&ast.Try{
					Body: block(&ast.Try{
						Body: block(
							&ast.If{Cond: binary("<", ident("i"), num(3)), Then: &ast.Continue{}},
							&ast.Break{},
						),
						Finally: appendLog("a"),
					}),
					CatchVar: "e",
					Catch:    appendLog("!"),
					Finally:  appendLog("b"),
				},
			),
		},
		ret(ident("log")),
	)
	result := run(t, program(expr(call(f))))
	// Two continues and one break, each leaving both finally blocks.
	wantString(t, result, "ababab")
}

func TestBreakFromFinallyOnlyTry(t *testing.T) {
	f := fn(nil,
		varDecl("seen", num(0)),
		&ast.While{
			Cond: &ast.BoolLit{Value: true},
			Body: block(&ast.Try{
				Body:    block(&ast.Break{}),
				Finally: block(assign("seen", num(7))),
			}),
		},
		ret(ident("seen")),
	)
	wantInt(t, run(t, program(expr(call(f)))), 7)
}

// ---------------------------------------------------------------------------
// Generators
// ---------------------------------------------------------------------------

func TestGeneratorYieldsThenExpires(t *testing.T) {
	result := run(t, program(
		varDecl("g", gen(nil, yield(num(1)), yield(num(2)), yield(num(3)))),
		expr(array(
			call(ident("g")), call(ident("g")), call(ident("g")),
			call(ident("g")), call(ident("g")),
		)),
	))
	arr, ok := result.(*vm.Array)
	if !ok {
		t.Fatalf("result = %v, want array", result)
	}
	want := []vm.Value{vm.Int(1), vm.Int(2), vm.Int(3), vm.Null, vm.Null}
	if arr.Len() != len(want) {
		t.Fatalf("len = %d, want %d", arr.Len(), len(want))
	}
	for i, w := range want {
		if !vm.Equal(arr.Elements[i], w) {
			t.Errorf("element %d = %v, want %v", i, arr.Elements[i], w)
		}
	}
}

func TestGeneratorKeepsLocalsBetweenResumes(t *testing.T) {
	counter := gen(params("limit"),
		varDecl("i", num(0)),
		&ast.While{
			Cond: binary("<", ident("i"), ident("limit")),
			Body: block(
				yield(binary("*", ident("i"), num(10))),
				assign("i", binary("+", ident("i"), num(1))),
			),
		},
	)
	result := run(t, program(
		varDecl("c", counter),
		varDecl("a", call(ident("c"), num(3))),
		// Arguments after the first resume are ignored.
		varDecl("b", call(ident("c"), num(100))),
		varDecl("d", call(ident("c"))),
		varDecl("e", call(ident("c"))),
		expr(array(ident("a"), ident("b"), ident("d"), ident("e"))),
	))
	arr := result.(*vm.Array)
	want := []vm.Value{vm.Int(0), vm.Int(10), vm.Int(20), vm.Null}
	for i, w := range want {
		if !vm.Equal(arr.Elements[i], w) {
			t.Errorf("element %d = %v, want %v", i, arr.Elements[i], w)
		}
	}
}

func TestGeneratorClosureTracksLocalsAcrossYields(t *testing.T) {
	g := gen(nil,
		varDecl("n", num(0)),
		varDecl("peek", fn(nil, ret(ident("n")))),
		varDecl("bump", fn(nil, assign("n", binary("+", ident("n"), num(1))))),
		yield(call(ident("peek"))),
		assign("n", num(5)),
		yield(call(ident("peek"))),
		yield(ident("bump")),
		yield(ident("n")),
	)
	result := run(t, program(
		varDecl("g", g),
		varDecl("a", call(ident("g"))),
		varDecl("b", call(ident("g"))),
		varDecl("inc", call(ident("g"))),
		// Runs while the generator is suspended.
		expr(call(ident("inc"))),
		expr(array(ident("a"), ident("b"), call(ident("g")))),
	))
	arr := result.(*vm.Array)
	want := []vm.Value{vm.Int(0), vm.Int(5), vm.Int(6)}
	for i, w := range want {
		if !vm.Equal(arr.Elements[i], w) {
			t.Errorf("element %d = %v, want %v", i, arr.Elements[i], w)
		}
	}
}

func TestEachGeneratorDefinitionIsFresh(t *testing.T) {
	result := run(t, program(
		varDecl("mk", fn(nil, ret(gen(nil, yield(str("a")), yield(str("b")))))),
		varDecl("g1", call(ident("mk"))),
		varDecl("g2", call(ident("mk"))),
		expr(call(ident("g1"))),
		expr(call(ident("g1"))),
		expr(binary("+", call(ident("g1")), call(ident("g2")))),
	))
	// g1 is exhausted (null) while g2 starts over.
	wantString(t, result, "nulla")
}

// ---------------------------------------------------------------------------
// Named arguments
// ---------------------------------------------------------------------------

func TestNamedArgumentsReorder(t *testing.T) {
	result := run(t, program(
		varDecl("sub", fn(params("a", "b"), ret(binary("-", ident("a"), ident("b"))))),
		expr(callNamed(ident("sub"), ast.Arg{Name: "b", Value: num(1)}, ast.Arg{Name: "a", Value: num(10)})),
	))
	wantInt(t, result, 9)
}

func TestNamedArgumentsMixedWithPositional(t *testing.T) {
	result := run(t, program(
		varDecl("f", fn(params("a", "b", "c"),
			ret(array(ident("a"), ident("b"), ident("c"))))),
		expr(callNamed(ident("f"),
			ast.Arg{Value: num(1)},
			ast.Arg{Name: "c", Value: num(3)},
			ast.Arg{Name: "unknown", Value: num(99)},
		)),
	))
	arr := result.(*vm.Array)
	want := []vm.Value{vm.Int(1), vm.Null, vm.Int(3)}
	for i, w := range want {
		if !vm.Equal(arr.Elements[i], w) {
			t.Errorf("element %d = %v, want %v", i, arr.Elements[i], w)
		}
	}
}

func TestNamedArgumentsToNativeFunction(t *testing.T) {
	rt := vm.NewRuntime(vm.DefaultConfig())
	rt.Put("pair", vm.NewNativeFunction("pair", func(args []vm.Value) (vm.Value, error) {
		return vm.String(args[0].String() + "/" + args[1].String()), nil
	}, "x", "y"))
	chunk := compileProgram(t, program(
		expr(callNamed(ident("pair"), ast.Arg{Name: "y", Value: str("b")}, ast.Arg{Name: "x", Value: str("a")})),
	))
	v, err := rt.Execute(chunk)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	wantString(t, v, "a/b")
}

// ---------------------------------------------------------------------------
// Tail calls
// ---------------------------------------------------------------------------

func countdown() *ast.Program {
	loop := fn(params("n", "acc"),
		&ast.If{Cond: binary("==", ident("n"), num(0)), Then: ret(ident("acc"))},
		ret(call(ident("loop"), binary("-", ident("n"), num(1)), binary("+", ident("acc"), num(1)))),
	)
	return program(varDecl("loop", loop), expr(call(ident("loop"), ident("N"), num(0))))
}

func TestTailCallRunsInConstantStack(t *testing.T) {
	n := int64(100_000)
	if !testing.Short() {
		n = 10_000_000
	}
	rt := vm.NewRuntime(vm.DefaultConfig())
	rt.Put("N", vm.Int(n))
	v, err := rt.Execute(compileProgram(t, countdown()))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	wantInt(t, v, n)
	if size := rt.Engine().StackSize(); size > vm.DefaultConfig().InitialStack {
		t.Errorf("stack grew to %d slots", size)
	}
}

func TestTailCallsDisabledOverflow(t *testing.T) {
	opts := DefaultOptions()
	opts.TailCalls = false
	chunk, err := Compile(countdown(), opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, in := range chunk.Inner[0].Code {
		if in.Opcode() == vm.OpTailCall {
			t.Fatal("TAIL_CALL emitted with tail calls disabled")
		}
	}
	rt := vm.NewRuntime(vm.DefaultConfig())
	rt.Put("N", vm.Int(50_000))
	_, err = rt.Execute(chunk)
	if !errors.Is(err, vm.ErrStackOverflow) {
		t.Fatalf("err = %v, want ErrStackOverflow", err)
	}
}

func TestTailCallEmitted(t *testing.T) {
	chunk := compileProgram(t, countdown())
	found := false
	for _, in := range chunk.Inner[0].Code {
		if in.Opcode() == vm.OpTailCall {
			found = true
		}
	}
	if !found {
		t.Errorf("no TAIL_CALL in:\n%s", vm.Disassemble(chunk))
	}
}

// ---------------------------------------------------------------------------
// Classes and namespaces
// ---------------------------------------------------------------------------

func TestClassInstantiation(t *testing.T) {
	point := &ast.ClassDecl{
		Name:   "Point",
		Params: params("x", "y"),
		Body: block(
			varDecl("sum", fn(nil, ret(binary("+", ident("x"), ident("y"))))),
			varDecl("move", fn(params("dx"), assign("x", binary("+", ident("x"), ident("dx"))))),
		),
	}
	result := run(t, program(
		point,
		varDecl("p", &ast.New{Class: "Point", Args: []ast.Node{num(3), num(4)}}),
		expr(call(member(ident("p"), "move"), num(10))),
		expr(call(member(ident("p"), "sum"))),
	))
	wantInt(t, result, 17)
}

func TestClassInsideFunctionSeesOwnMembers(t *testing.T) {
	k := &ast.ClassDecl{
		Name:   "Inner",
		Params: params("x"),
		Body: block(
			varDecl("get", fn(nil, ret(binary("+", ident("x"), ident("y"))))),
			varDecl("y", num(5)),
			varDecl("bump", fn(nil, assign("y", binary("+", ident("y"), num(1))))),
		),
	}
	outer := fn(nil,
		varDecl("x", num(1)),
		varDecl("y", num(2)),
		k,
		varDecl("obj", &ast.New{Class: "Inner", Args: []ast.Node{num(99)}}),
		expr(call(member(ident("obj"), "bump"))),
		ret(array(call(member(ident("obj"), "get")), ident("x"), ident("y"))),
	)
	arr := run(t, program(expr(call(outer)))).(*vm.Array)
	want := []vm.Value{vm.Int(105), vm.Int(1), vm.Int(2)}
	for i, w := range want {
		if !vm.Equal(arr.Elements[i], w) {
			t.Errorf("element %d = %v, want %v", i, arr.Elements[i], w)
		}
	}
}

func TestClassInheritance(t *testing.T) {
	base := &ast.ClassDecl{
		Name:   "Base",
		Params: params("a"),
		Body:   block(varDecl("describe", fn(nil, ret(binary("+", str("base"), ident("a")))))),
	}
	child := &ast.ClassDecl{
		Name:       "Child",
		Params:     params("a", "b"),
		Super:      "Base",
		SuperArgs:  params("a"),
		Interfaces: params("Sized"),
		Body:       block(varDecl("extra", fn(nil, ret(ident("b"))))),
	}
	result := run(t, program(
		base, child,
		varDecl("c", &ast.New{Class: "Child", Args: []ast.Node{str("!"), num(2)}}),
		expr(array(
			call(member(ident("c"), "describe")),
			call(member(ident("c"), "extra")),
			&ast.IsA{Value: ident("c"), Class: "Base"},
			&ast.IsA{Value: ident("c"), Class: "Sized"},
			&ast.IsA{Value: ident("c"), Class: "Other"},
		)),
	))
	arr := result.(*vm.Array)
	want := []vm.Value{vm.String("base!"), vm.Int(2), vm.True, vm.True, vm.False}
	for i, w := range want {
		if !vm.Equal(arr.Elements[i], w) {
			t.Errorf("element %d = %v, want %v", i, arr.Elements[i], w)
		}
	}
}

func TestNewUnknownClassInSandbox(t *testing.T) {
	cfg := vm.DefaultConfig()
	cfg.Sandbox = true
	rt := vm.NewRuntime(cfg)
	_, err := rt.Execute(compileProgram(t, program(expr(&ast.New{Class: "os.File"}))))
	if !errors.Is(err, vm.ErrPermission) {
		t.Fatalf("err = %v, want ErrPermission", err)
	}
}

func TestNamespaceMembers(t *testing.T) {
	result := run(t, program(
		&ast.NamespaceDecl{Name: "math", Body: block(
			varDecl("twice", fn(params("v"), ret(binary("*", ident("v"), num(2))))),
		)},
		expr(binary("+",
			call(ident("math:twice"), num(20)),
			call(member(ident("math"), "twice"), num(1)))),
	))
	wantInt(t, result, 42)
}

// ---------------------------------------------------------------------------
// Compile errors
// ---------------------------------------------------------------------------

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		prog *ast.Program
	}{
		{"break outside loop", program(&ast.Break{})},
		{"continue outside loop", program(expr(call(fn(nil, &ast.Continue{}))))},
		{"yield outside generator", program(expr(call(fn(nil, yield(num(1))))))},
		{"return in class body", program(&ast.ClassDecl{Name: "C", Body: block(ret(null()))})},
		{"namespace in function", program(expr(call(fn(nil, &ast.NamespaceDecl{Name: "n", Body: block()}))))},
		{"duplicate parameter", program(expr(fn(params("a", "a"))))},
		{"duplicate variable", program(expr(call(fn(nil, varDecl("v", num(1)), varDecl("v", num(2))))))},
		{"unknown operator", program(expr(binary("**", num(1), num(2))))},
		{"try without handlers", program(&ast.Try{Body: block()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := compileError(t, tt.prog)
			if cerr.Msg == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{&ast.Break{At: ast.Position{Line: 7, Column: 3}}}}
	opts := DefaultOptions()
	opts.Source = "loop.leo"
	_, err := Compile(prog, opts)
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "loop.leo:7:3: break outside a loop"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestDebugLines(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		&ast.VarDecl{At: ast.Position{Line: 1}, Name: "a", Value: num(1)},
		&ast.Throw{At: ast.Position{Line: 2}, Value: str("here")},
	}}
	opts := DefaultOptions()
	opts.Debug = true
	opts.Source = "lines.leo"
	chunk, err := Compile(prog, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if chunk.Debug == nil || len(chunk.Debug.Lines) != 2 {
		t.Fatalf("debug lines = %+v, want 2 entries", chunk.Debug)
	}

	var lines []int
	rt := vm.NewRuntime(vm.DefaultConfig(), vm.WithDebugListener(vm.DebugListenerFunc(func(ev vm.DebugEvent) {
		lines = append(lines, ev.Line)
	})))
	_, err = rt.Execute(chunk)
	var rerr *vm.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *vm.Error", err)
	}
	if rerr.Source != "lines.leo" || rerr.Line != 2 {
		t.Errorf("error at %s:%d, want lines.leo:2", rerr.Source, rerr.Line)
	}
	if len(lines) != 2 || lines[0] != 1 || lines[1] != 2 {
		t.Errorf("listener lines = %v, want [1 2]", lines)
	}
}
