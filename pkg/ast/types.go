// Package ast defines the Leola syntax tree consumed by the compiler.
//
// The tree is produced by an external parser, either directly in Go or as
// JSON decoded with Parse. The compiler only depends on the Visitor
// traversal contract.
package ast

// Position is a source location.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is implemented by every syntax tree node.
type Node interface {
	Pos() Position
	Accept(v Visitor) error
}

// Visitor receives one callback per node type.
type Visitor interface {
	VisitProgram(n *Program) error
	VisitBlock(n *Block) error
	VisitVarDecl(n *VarDecl) error
	VisitAssign(n *Assign) error
	VisitIdent(n *Ident) error
	VisitNullLit(n *NullLit) error
	VisitBoolLit(n *BoolLit) error
	VisitIntLit(n *IntLit) error
	VisitRealLit(n *RealLit) error
	VisitStringLit(n *StringLit) error
	VisitArrayLit(n *ArrayLit) error
	VisitMapLit(n *MapLit) error
	VisitBinary(n *Binary) error
	VisitUnary(n *Unary) error
	VisitLogical(n *Logical) error
	VisitCall(n *Call) error
	VisitFuncDef(n *FuncDef) error
	VisitReturn(n *Return) error
	VisitYield(n *Yield) error
	VisitIf(n *If) error
	VisitWhile(n *While) error
	VisitBreak(n *Break) error
	VisitContinue(n *Continue) error
	VisitTry(n *Try) error
	VisitThrow(n *Throw) error
	VisitClassDecl(n *ClassDecl) error
	VisitNew(n *New) error
	VisitNamespaceDecl(n *NamespaceDecl) error
	VisitMember(n *Member) error
	VisitMemberAssign(n *MemberAssign) error
	VisitIndex(n *Index) error
	VisitIndexAssign(n *IndexAssign) error
	VisitIsA(n *IsA) error
	VisitExprStmt(n *ExprStmt) error
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

// Program is a whole compilation unit.
type Program struct {
	At   Position
	Body []Node
}

// Block is a braced statement list with its own variable scope.
type Block struct {
	At    Position
	Stmts []Node
}

// ExprStmt evaluates an expression and discards its value.
type ExprStmt struct {
	At   Position
	Expr Node
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// VarDecl declares a variable: var name = value.
type VarDecl struct {
	At    Position
	Name  string
	Value Node // nil declares null
}

// Assign writes an existing variable: name = value.
type Assign struct {
	At    Position
	Name  string
	Value Node
}

// Ident reads a variable. Name may be namespace qualified (a:b:c).
type Ident struct {
	At   Position
	Name string
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

type NullLit struct {
	At Position
}

type BoolLit struct {
	At    Position
	Value bool
}

type IntLit struct {
	At    Position
	Value int64
}

type RealLit struct {
	At    Position
	Value float64
}

type StringLit struct {
	At    Position
	Value string
}

// ArrayLit is [a, b, c].
type ArrayLit struct {
	At       Position
	Elements []Node
}

// MapEntry is one key -> value pair of a MapLit.
type MapEntry struct {
	Key   Node
	Value Node
}

// MapLit is { k -> v, ... }.
type MapLit struct {
	At      Position
	Entries []MapEntry
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// Binary is an arithmetic, bitwise or comparison operator application.
// Op is one of + - * / % << >> ^ | & == != > >= < <=.
type Binary struct {
	At    Position
	Op    string
	Left  Node
	Right Node
}

// Unary is - ~ or !.
type Unary struct {
	At      Position
	Op      string
	Operand Node
}

// Logical is short-circuit "and" / "or".
type Logical struct {
	At    Position
	Op    string
	Left  Node
	Right Node
}

// IsA tests class membership: value is ClassName.
type IsA struct {
	At    Position
	Value Node
	Class string
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Arg is a call argument. Name is set for named arguments.
type Arg struct {
	Name  string
	Value Node
}

// Call invokes Callee.
type Call struct {
	At     Position
	Callee Node
	Args   []Arg
}

// FuncDef is a function or generator literal. Name is set when the literal
// is bound by a declaration and enables self tail calls.
type FuncDef struct {
	At        Position
	Name      string
	Params    []string
	VarArgs   bool
	Generator bool
	Body      *Block
}

type Return struct {
	At    Position
	Value Node // nil returns null
}

type Yield struct {
	At    Position
	Value Node
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

type If struct {
	At   Position
	Cond Node
	Then Node
	Else Node // optional
}

type While struct {
	At   Position
	Cond Node
	Body Node
}

type Break struct {
	At Position
}

type Continue struct {
	At Position
}

// Try is try/catch/finally. Catch and Finally are each optional but not
// both absent.
type Try struct {
	At       Position
	Body     *Block
	CatchVar string
	Catch    *Block
	Finally  *Block
}

type Throw struct {
	At    Position
	Value Node
}

// ---------------------------------------------------------------------------
// Classes and namespaces
// ---------------------------------------------------------------------------

// ClassDecl declares a class. Super arguments name constructor parameters
// forwarded to the superclass constructor.
type ClassDecl struct {
	At         Position
	Name       string
	Params     []string
	Super      string
	SuperArgs  []string
	Interfaces []string
	Body       *Block
}

// New constructs an instance: new Class(args).
type New struct {
	At    Position
	Class string
	Args  []Node
}

// NamespaceDecl declares or reopens a namespace.
type NamespaceDecl struct {
	At   Position
	Name string
	Body *Block
}

// Member reads obj.name.
type Member struct {
	At     Position
	Object Node
	Name   string
}

// MemberAssign writes obj.name = value.
type MemberAssign struct {
	At     Position
	Object Node
	Name   string
	Value  Node
}

// Index reads obj[index].
type Index struct {
	At     Position
	Object Node
	Index  Node
}

// IndexAssign writes obj[index] = value.
type IndexAssign struct {
	At     Position
	Object Node
	Index  Node
	Value  Node
}

// ---------------------------------------------------------------------------
// Node plumbing
// ---------------------------------------------------------------------------

func (n *Program) Pos() Position       { return n.At }
func (n *Block) Pos() Position         { return n.At }
func (n *ExprStmt) Pos() Position      { return n.At }
func (n *VarDecl) Pos() Position       { return n.At }
func (n *Assign) Pos() Position        { return n.At }
func (n *Ident) Pos() Position         { return n.At }
func (n *NullLit) Pos() Position       { return n.At }
func (n *BoolLit) Pos() Position       { return n.At }
func (n *IntLit) Pos() Position        { return n.At }
func (n *RealLit) Pos() Position       { return n.At }
func (n *StringLit) Pos() Position     { return n.At }
func (n *ArrayLit) Pos() Position      { return n.At }
func (n *MapLit) Pos() Position        { return n.At }
func (n *Binary) Pos() Position        { return n.At }
func (n *Unary) Pos() Position         { return n.At }
func (n *Logical) Pos() Position       { return n.At }
func (n *IsA) Pos() Position           { return n.At }
func (n *Call) Pos() Position          { return n.At }
func (n *FuncDef) Pos() Position       { return n.At }
func (n *Return) Pos() Position        { return n.At }
func (n *Yield) Pos() Position         { return n.At }
func (n *If) Pos() Position            { return n.At }
func (n *While) Pos() Position         { return n.At }
func (n *Break) Pos() Position         { return n.At }
func (n *Continue) Pos() Position      { return n.At }
func (n *Try) Pos() Position           { return n.At }
func (n *Throw) Pos() Position         { return n.At }
func (n *ClassDecl) Pos() Position     { return n.At }
func (n *New) Pos() Position           { return n.At }
func (n *NamespaceDecl) Pos() Position { return n.At }
func (n *Member) Pos() Position        { return n.At }
func (n *MemberAssign) Pos() Position  { return n.At }
func (n *Index) Pos() Position         { return n.At }
func (n *IndexAssign) Pos() Position   { return n.At }

func (n *Program) Accept(v Visitor) error       { return v.VisitProgram(n) }
func (n *Block) Accept(v Visitor) error         { return v.VisitBlock(n) }
func (n *ExprStmt) Accept(v Visitor) error      { return v.VisitExprStmt(n) }
func (n *VarDecl) Accept(v Visitor) error       { return v.VisitVarDecl(n) }
func (n *Assign) Accept(v Visitor) error        { return v.VisitAssign(n) }
func (n *Ident) Accept(v Visitor) error         { return v.VisitIdent(n) }
func (n *NullLit) Accept(v Visitor) error       { return v.VisitNullLit(n) }
func (n *BoolLit) Accept(v Visitor) error       { return v.VisitBoolLit(n) }
func (n *IntLit) Accept(v Visitor) error        { return v.VisitIntLit(n) }
func (n *RealLit) Accept(v Visitor) error       { return v.VisitRealLit(n) }
func (n *StringLit) Accept(v Visitor) error     { return v.VisitStringLit(n) }
func (n *ArrayLit) Accept(v Visitor) error      { return v.VisitArrayLit(n) }
func (n *MapLit) Accept(v Visitor) error        { return v.VisitMapLit(n) }
func (n *Binary) Accept(v Visitor) error        { return v.VisitBinary(n) }
func (n *Unary) Accept(v Visitor) error         { return v.VisitUnary(n) }
func (n *Logical) Accept(v Visitor) error       { return v.VisitLogical(n) }
func (n *IsA) Accept(v Visitor) error           { return v.VisitIsA(n) }
func (n *Call) Accept(v Visitor) error          { return v.VisitCall(n) }
func (n *FuncDef) Accept(v Visitor) error       { return v.VisitFuncDef(n) }
func (n *Return) Accept(v Visitor) error        { return v.VisitReturn(n) }
func (n *Yield) Accept(v Visitor) error         { return v.VisitYield(n) }
func (n *If) Accept(v Visitor) error            { return v.VisitIf(n) }
func (n *While) Accept(v Visitor) error         { return v.VisitWhile(n) }
func (n *Break) Accept(v Visitor) error         { return v.VisitBreak(n) }
func (n *Continue) Accept(v Visitor) error      { return v.VisitContinue(n) }
func (n *Try) Accept(v Visitor) error           { return v.VisitTry(n) }
func (n *Throw) Accept(v Visitor) error         { return v.VisitThrow(n) }
func (n *ClassDecl) Accept(v Visitor) error     { return v.VisitClassDecl(n) }
func (n *New) Accept(v Visitor) error           { return v.VisitNew(n) }
func (n *NamespaceDecl) Accept(v Visitor) error { return v.VisitNamespaceDecl(n) }
func (n *Member) Accept(v Visitor) error        { return v.VisitMember(n) }
func (n *MemberAssign) Accept(v Visitor) error  { return v.VisitMemberAssign(n) }
func (n *Index) Accept(v Visitor) error         { return v.VisitIndex(n) }
func (n *IndexAssign) Accept(v Visitor) error   { return v.VisitIndexAssign(n) }
