package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Persisted chunk format
// ---------------------------------------------------------------------------
//
//	magic "LEOB", uint16 version, then the root chunk:
//	  kind u8, name str, source str,
//	  code (u32 count, u32 words), max stack u32,
//	  constants (u32 length, CBOR array of tagged records),
//	  arg count u32, varargs u8, param names (u32 count, str...),
//	  outers (u32 count, u32 index + u32 hops each), local count u32,
//	  class info (u8 present, fields), debug table (u8 present, fields),
//	  inner chunks (u32 count, chunk...)
//
// Integers are big-endian; str is a u32 length followed by UTF-8 bytes.
// A generator's resume position is instance state and is not persisted.

// ChunkVersion is the current persisted format version.
const ChunkVersion uint16 = 1

// ChunkMagic starts every persisted chunk.
var ChunkMagic = []byte{'L', 'E', 'O', 'B'}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// constKind tags a constant pool record.
type constKind uint8

const (
	constNull constKind = iota
	constBool
	constInt
	constReal
	constString
)

// constRecord is the self-describing form of one constant. Reals travel as
// their IEEE-754 bits so every value, NaN payloads included, round-trips
// exactly.
type constRecord struct {
	Kind constKind `cbor:"1,keyasint"`
	Int  int64     `cbor:"2,keyasint,omitempty"`
	Real uint64    `cbor:"3,keyasint,omitempty"`
	Str  string    `cbor:"4,keyasint,omitempty"`
	Bool bool      `cbor:"5,keyasint,omitempty"`
}

func encodeConstants(consts []Value) ([]byte, error) {
	recs := make([]constRecord, len(consts))
	for i, v := range consts {
		switch c := orNull(v).(type) {
		case NullValue:
			recs[i] = constRecord{Kind: constNull}
		case Bool:
			recs[i] = constRecord{Kind: constBool, Bool: bool(c)}
		case Int:
			recs[i] = constRecord{Kind: constInt, Int: int64(c)}
		case Real:
			recs[i] = constRecord{Kind: constReal, Real: math.Float64bits(float64(c))}
		case String:
			recs[i] = constRecord{Kind: constString, Str: string(c)}
		default:
			return nil, fmt.Errorf("constant %d: %s cannot be persisted", i, c.Type())
		}
	}
	return cborEncMode.Marshal(recs)
}

func decodeConstants(data []byte) ([]Value, error) {
	var recs []constRecord
	if err := cbor.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal constant pool: %w", err)
	}
	consts := make([]Value, len(recs))
	for i, r := range recs {
		switch r.Kind {
		case constNull:
			consts[i] = Null
		case constBool:
			consts[i] = Bool(r.Bool)
		case constInt:
			consts[i] = Int(r.Int)
		case constReal:
			consts[i] = Real(math.Float64frombits(r.Real))
		case constString:
			consts[i] = String(r.Str)
		default:
			return nil, fmt.Errorf("constant %d: unknown kind %d", i, r.Kind)
		}
	}
	return consts, nil
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

type chunkWriter struct {
	buf []byte
}

func (w *chunkWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *chunkWriter) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *chunkWriter) int(v int)    { w.u32(uint32(v)) }

func (w *chunkWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *chunkWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *chunkWriter) strs(ss []string) {
	w.int(len(ss))
	for _, s := range ss {
		w.str(s)
	}
}

func (w *chunkWriter) chunk(c *Chunk) error {
	w.u8(uint8(c.Kind))
	w.str(c.Name)
	w.str(c.Source)

	w.int(len(c.Code))
	for _, in := range c.Code {
		w.u32(uint32(in))
	}
	w.int(c.MaxStack)

	consts, err := encodeConstants(c.Constants)
	if err != nil {
		return fmt.Errorf("chunk %q: %w", c.Name, err)
	}
	w.int(len(consts))
	w.buf = append(w.buf, consts...)

	w.int(c.NumArgs)
	w.bool(c.VarArgs)
	w.strs(c.ParamNames)

	w.int(len(c.Outers))
	for _, o := range c.Outers {
		w.int(o.Index)
		w.int(o.Hops)
	}
	w.int(c.NumLocals)

	w.bool(c.Class != nil)
	if ci := c.Class; ci != nil {
		w.str(ci.Name)
		w.str(ci.SuperName)
		w.strs(ci.Interfaces)
		w.strs(ci.Params)
		w.strs(ci.SuperArgs)
	}

	w.bool(c.Debug != nil)
	if d := c.Debug; d != nil {
		w.int(len(d.Lines))
		for _, l := range d.Lines {
			w.int(l.PC)
			w.int(l.Line)
		}
		w.int(len(d.Locals))
		for _, l := range d.Locals {
			w.str(l.Name)
			w.int(l.Slot)
			w.int(l.StartPC)
			w.int(l.EndPC)
		}
	}

	w.int(len(c.Inner))
	for _, in := range c.Inner {
		if err := w.chunk(in); err != nil {
			return err
		}
	}
	return nil
}

// Serialize encodes a chunk tree in the persisted format.
func (c *Chunk) Serialize() ([]byte, error) {
	w := &chunkWriter{buf: make([]byte, 0, 64+4*len(c.Code))}
	w.buf = append(w.buf, ChunkMagic...)
	w.buf = binary.BigEndian.AppendUint16(w.buf, ChunkVersion)
	if err := w.chunk(c); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

type chunkReader struct {
	data []byte
	pos  int
}

func (r *chunkReader) need(n int, what string) error {
	if n < 0 || r.pos+n > len(r.data) {
		return fmt.Errorf("unexpected end of chunk reading %s at pos %d", what, r.pos)
	}
	return nil
}

func (r *chunkReader) u8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *chunkReader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *chunkReader) int(what string) (int, error) {
	v, err := r.u32(what)
	return int(v), err
}

// count reads a u32 element count and sanity-checks it against the bytes
// left, given a minimum encoded size per element.
func (r *chunkReader) count(what string, minSize int) (int, error) {
	n, err := r.int(what)
	if err != nil {
		return 0, err
	}
	if minSize > 0 && n > (len(r.data)-r.pos)/minSize {
		return 0, fmt.Errorf("%s %d exceeds remaining data at pos %d", what, n, r.pos)
	}
	return n, nil
}

func (r *chunkReader) bool(what string) (bool, error) {
	v, err := r.u8(what)
	return v != 0, err
}

func (r *chunkReader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *chunkReader) str(what string) (string, error) {
	n, err := r.int(what + " length")
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n, what)
	return string(b), err
}

func (r *chunkReader) strs(what string) ([]string, error) {
	n, err := r.count(what+" count", 4)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.str(fmt.Sprintf("%s %d", what, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *chunkReader) chunk(depth int) (*Chunk, error) {
	if depth > 256 {
		return nil, fmt.Errorf("chunk nesting deeper than 256 at pos %d", r.pos)
	}
	c := &Chunk{}
	kind, err := r.u8("kind")
	if err != nil {
		return nil, err
	}
	c.Kind = ChunkKind(kind)
	if c.Name, err = r.str("name"); err != nil {
		return nil, err
	}
	if c.Source, err = r.str("source"); err != nil {
		return nil, err
	}

	n, err := r.count("code length", 4)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		c.Code = make([]Instruction, n)
		for i := range c.Code {
			w, err := r.u32("instruction")
			if err != nil {
				return nil, err
			}
			c.Code[i] = Instruction(w)
		}
	}
	if c.MaxStack, err = r.int("max stack"); err != nil {
		return nil, err
	}

	n, err = r.int("constant pool length")
	if err != nil {
		return nil, err
	}
	pool, err := r.bytes(n, "constant pool")
	if err != nil {
		return nil, err
	}
	if consts, err := decodeConstants(pool); err != nil {
		return nil, err
	} else if len(consts) > 0 {
		c.Constants = consts
	}

	if c.NumArgs, err = r.int("arg count"); err != nil {
		return nil, err
	}
	if c.VarArgs, err = r.bool("varargs flag"); err != nil {
		return nil, err
	}
	if c.ParamNames, err = r.strs("param name"); err != nil {
		return nil, err
	}

	n, err = r.count("outer count", 8)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		c.Outers = make([]OuterDesc, n)
		for i := range c.Outers {
			if c.Outers[i].Index, err = r.int("outer index"); err != nil {
				return nil, err
			}
			if c.Outers[i].Hops, err = r.int("outer hops"); err != nil {
				return nil, err
			}
		}
	}
	if c.NumLocals, err = r.int("local count"); err != nil {
		return nil, err
	}

	hasClass, err := r.bool("class marker")
	if err != nil {
		return nil, err
	}
	if hasClass {
		ci := &ClassInfo{}
		if ci.Name, err = r.str("class name"); err != nil {
			return nil, err
		}
		if ci.SuperName, err = r.str("superclass name"); err != nil {
			return nil, err
		}
		if ci.Interfaces, err = r.strs("interface"); err != nil {
			return nil, err
		}
		if ci.Params, err = r.strs("class param"); err != nil {
			return nil, err
		}
		if ci.SuperArgs, err = r.strs("super arg"); err != nil {
			return nil, err
		}
		c.Class = ci
	}

	hasDebug, err := r.bool("debug marker")
	if err != nil {
		return nil, err
	}
	if hasDebug {
		d := &DebugInfo{}
		n, err := r.count("line table count", 8)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			d.Lines = make([]LineEntry, n)
			for i := range d.Lines {
				if d.Lines[i].PC, err = r.int("line pc"); err != nil {
					return nil, err
				}
				if d.Lines[i].Line, err = r.int("line number"); err != nil {
					return nil, err
				}
			}
		}
		n, err = r.count("local range count", 16)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			d.Locals = make([]LocalRange, n)
			for i := range d.Locals {
				l := &d.Locals[i]
				if l.Name, err = r.str("local name"); err != nil {
					return nil, err
				}
				if l.Slot, err = r.int("local slot"); err != nil {
					return nil, err
				}
				if l.StartPC, err = r.int("local start"); err != nil {
					return nil, err
				}
				if l.EndPC, err = r.int("local end"); err != nil {
					return nil, err
				}
			}
		}
		c.Debug = d
	}

	n, err = r.count("inner chunk count", 1)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		c.Inner = make([]*Chunk, n)
		for i := range c.Inner {
			if c.Inner[i], err = r.chunk(depth + 1); err != nil {
				return nil, fmt.Errorf("inner chunk %d of %q: %w", i, c.Name, err)
			}
		}
	}
	return c, nil
}

// DeserializeChunk decodes a chunk tree written by Serialize.
func DeserializeChunk(data []byte) (*Chunk, error) {
	if len(data) < len(ChunkMagic)+2 {
		return nil, fmt.Errorf("chunk data too short: need at least %d bytes, got %d", len(ChunkMagic)+2, len(data))
	}
	if !bytes.Equal(data[:len(ChunkMagic)], ChunkMagic) {
		return nil, fmt.Errorf("invalid chunk magic: expected %q, got %q", ChunkMagic, data[:len(ChunkMagic)])
	}
	version := binary.BigEndian.Uint16(data[len(ChunkMagic):])
	if version > ChunkVersion {
		return nil, fmt.Errorf("chunk version %d is newer than supported version %d", version, ChunkVersion)
	}
	r := &chunkReader{data: data, pos: len(ChunkMagic) + 2}
	c, err := r.chunk(0)
	if err != nil {
		return nil, err
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after chunk", len(data)-r.pos)
	}
	return c, nil
}
