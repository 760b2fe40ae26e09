package ast

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Parse decodes a JSON syntax tree. Every node is an object with a "type"
// field naming the node (e.g. "VarDecl") and optional "line" and "column".
// The root must be a Program.
func Parse(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ast: read: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ast: empty input")
	}
	n, err := decodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("ast: %w", err)
	}
	prog, ok := n.(*Program)
	if !ok {
		return nil, fmt.Errorf("ast: root is %T, want Program", n)
	}
	return prog, nil
}

type object map[string]json.RawMessage

func (o object) pos() Position {
	var p Position
	_ = json.Unmarshal(o["line"], &p.Line)
	_ = json.Unmarshal(o["column"], &p.Column)
	return p
}

func (o object) has(key string) bool {
	raw, ok := o[key]
	return ok && string(raw) != "null"
}

func (o object) str(key string) (string, error) {
	var s string
	if !o.has(key) {
		return "", nil
	}
	if err := json.Unmarshal(o[key], &s); err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return s, nil
}

func (o object) strs(key string) ([]string, error) {
	var ss []string
	if !o.has(key) {
		return nil, nil
	}
	if err := json.Unmarshal(o[key], &ss); err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return ss, nil
}

func (o object) flag(key string) (bool, error) {
	var b bool
	if !o.has(key) {
		return false, nil
	}
	if err := json.Unmarshal(o[key], &b); err != nil {
		return false, fmt.Errorf("field %q: %w", key, err)
	}
	return b, nil
}

// node decodes a required child node.
func (o object) node(key string) (Node, error) {
	if !o.has(key) {
		return nil, fmt.Errorf("missing field %q", key)
	}
	return decodeNode(o[key])
}

// optNode decodes an optional child node.
func (o object) optNode(key string) (Node, error) {
	if !o.has(key) {
		return nil, nil
	}
	return decodeNode(o[key])
}

func (o object) nodes(key string) ([]Node, error) {
	if !o.has(key) {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(o[key], &raws); err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	out := make([]Node, len(raws))
	for i, raw := range raws {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out[i] = n
	}
	return out, nil
}

func (o object) block(key string) (*Block, error) {
	n, err := o.optNode(key)
	if err != nil || n == nil {
		return nil, err
	}
	b, ok := n.(*Block)
	if !ok {
		return nil, fmt.Errorf("field %q is %T, want Block", key, n)
	}
	return b, nil
}

// decodeNode decodes one node object. Field errors are collected as the
// first one encountered.
func decodeNode(data []byte) (Node, error) {
	var o object
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	typ, err := o.str("type")
	if err != nil {
		return nil, err
	}
	at := o.pos()

	var firstErr error
	check := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	str := func(k string) string { s, err := o.str(k); check(err); return s }
	strs := func(k string) []string { s, err := o.strs(k); check(err); return s }
	flag := func(k string) bool { b, err := o.flag(k); check(err); return b }
	node := func(k string) Node { n, err := o.node(k); check(err); return n }
	optNode := func(k string) Node { n, err := o.optNode(k); check(err); return n }
	nodes := func(k string) []Node { n, err := o.nodes(k); check(err); return n }
	block := func(k string) *Block { b, err := o.block(k); check(err); return b }

	var n Node
	switch typ {
	case "Program":
		n = &Program{At: at, Body: nodes("body")}
	case "Block":
		n = &Block{At: at, Stmts: nodes("stmts")}
	case "ExprStmt":
		n = &ExprStmt{At: at, Expr: node("expr")}
	case "VarDecl":
		n = &VarDecl{At: at, Name: str("name"), Value: optNode("value")}
	case "Assign":
		n = &Assign{At: at, Name: str("name"), Value: node("value")}
	case "Ident":
		n = &Ident{At: at, Name: str("name")}
	case "NullLit":
		n = &NullLit{At: at}
	case "BoolLit":
		n = &BoolLit{At: at, Value: flag("value")}
	case "IntLit":
		lit := &IntLit{At: at}
		check(json.Unmarshal(o["value"], &lit.Value))
		n = lit
	case "RealLit":
		lit := &RealLit{At: at}
		check(json.Unmarshal(o["value"], &lit.Value))
		n = lit
	case "StringLit":
		n = &StringLit{At: at, Value: str("value")}
	case "ArrayLit":
		n = &ArrayLit{At: at, Elements: nodes("elements")}
	case "MapLit":
		lit := &MapLit{At: at}
		var raws []object
		if o.has("entries") {
			check(json.Unmarshal(o["entries"], &raws))
		}
		for _, e := range raws {
			k, err := e.node("key")
			check(err)
			v, err := e.node("value")
			check(err)
			lit.Entries = append(lit.Entries, MapEntry{Key: k, Value: v})
		}
		n = lit
	case "Binary":
		n = &Binary{At: at, Op: str("op"), Left: node("left"), Right: node("right")}
	case "Unary":
		n = &Unary{At: at, Op: str("op"), Operand: node("operand")}
	case "Logical":
		n = &Logical{At: at, Op: str("op"), Left: node("left"), Right: node("right")}
	case "IsA":
		n = &IsA{At: at, Value: node("value"), Class: str("class")}
	case "Call":
		call := &Call{At: at, Callee: node("callee")}
		var raws []object
		if o.has("args") {
			check(json.Unmarshal(o["args"], &raws))
		}
		for _, a := range raws {
			name, err := a.str("name")
			check(err)
			v, err := a.node("value")
			check(err)
			call.Args = append(call.Args, Arg{Name: name, Value: v})
		}
		n = call
	case "FuncDef":
		n = &FuncDef{At: at, Name: str("name"), Params: strs("params"), VarArgs: flag("varargs"), Generator: flag("generator"), Body: block("body")}
	case "Return":
		n = &Return{At: at, Value: optNode("value")}
	case "Yield":
		n = &Yield{At: at, Value: optNode("value")}
	case "If":
		n = &If{At: at, Cond: node("cond"), Then: node("then"), Else: optNode("else")}
	case "While":
		n = &While{At: at, Cond: node("cond"), Body: node("body")}
	case "Break":
		n = &Break{At: at}
	case "Continue":
		n = &Continue{At: at}
	case "Try":
		n = &Try{At: at, Body: block("body"), CatchVar: str("catchVar"), Catch: block("catch"), Finally: block("finally")}
	case "Throw":
		n = &Throw{At: at, Value: node("value")}
	case "ClassDecl":
		n = &ClassDecl{At: at, Name: str("name"), Params: strs("params"), Super: str("super"), SuperArgs: strs("superArgs"), Interfaces: strs("interfaces"), Body: block("body")}
	case "New":
		n = &New{At: at, Class: str("class"), Args: nodes("args")}
	case "NamespaceDecl":
		n = &NamespaceDecl{At: at, Name: str("name"), Body: block("body")}
	case "Member":
		n = &Member{At: at, Object: node("object"), Name: str("name")}
	case "MemberAssign":
		n = &MemberAssign{At: at, Object: node("object"), Name: str("name"), Value: node("value")}
	case "Index":
		n = &Index{At: at, Object: node("object"), Index: node("index")}
	case "IndexAssign":
		n = &IndexAssign{At: at, Object: node("object"), Index: node("index"), Value: node("value")}
	case "":
		return nil, fmt.Errorf("node without \"type\" at line %d", at.Line)
	default:
		return nil, fmt.Errorf("unknown node type %q at line %d", typ, at.Line)
	}
	if firstErr != nil {
		return nil, fmt.Errorf("%s at line %d: %w", typ, at.Line, firstErr)
	}
	return n, nil
}
