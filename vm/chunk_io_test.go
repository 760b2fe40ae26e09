package vm

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"strings"
	"testing"
)

func sampleChunk() *Chunk {
	body := &Chunk{
		Kind:      KindFunction,
		Name:      "inner",
		Source:    "sample.leo",
		Code:      []Instruction{EncodeX(OpLoadOuter, 0), Encode(OpRet)},
		NumArgs:   1,
		NumLocals: 1,
		Outers:    []OuterDesc{{Index: 2, Hops: 1}},
		MaxStack:  1,
	}
	class := &Chunk{
		Kind:     KindClass,
		Name:     "Point",
		Source:   "sample.leo",
		Code:     []Instruction{Encode(OpLoadNull), Encode(OpRet)},
		MaxStack: 1,
		Class: &ClassInfo{
			Name:       "Point",
			SuperName:  "Shape",
			Interfaces: []string{"Drawable"},
			Params:     []string{"x", "y"},
			SuperArgs:  []string{"x"},
		},
	}
	return &Chunk{
		Kind:   KindScript,
		Name:   "<main>",
		Source: "sample.leo",
		Code: []Instruction{
			EncodeX(OpLoadConst, 0),
			EncodeSX(OpJmp, -1),
			Encode12(OpInvoke, 2, InvokeNamed),
		},
		NumArgs:    2,
		VarArgs:    true,
		ParamNames: []string{"a", "rest"},
		NumLocals:  3,
		Constants:  []Value{Null, True, Int(-9), Real(2.5), String("héllo"), Int(math.MinInt64)},
		Inner:      []*Chunk{body, class},
		MaxStack:   7,
		Debug: &DebugInfo{
			Lines:  []LineEntry{{PC: 0, Line: 1}, {PC: 2, Line: 4}},
			Locals: []LocalRange{{Name: "a", Slot: 0, StartPC: 0, EndPC: 3}},
		},
	}
}

func TestChunkRoundTrip(t *testing.T) {
	c := sampleChunk()
	data, err := c.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("LEOB")) {
		t.Fatalf("missing magic: % x", data[:4])
	}
	if v := binary.BigEndian.Uint16(data[4:]); v != ChunkVersion {
		t.Errorf("version = %d, want %d", v, ChunkVersion)
	}

	got, err := DeserializeChunk(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("round trip mismatch\n got: %s\nwant: %s", Disassemble(got), Disassemble(c))
	}

	again, err := got.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Error("re-serialization is not byte-identical")
	}
}

func TestChunkRoundTripRealBits(t *testing.T) {
	nan := math.Float64frombits(0x7FF8_0000_0000_0ABC)
	c := &Chunk{Name: "reals", Constants: []Value{Real(nan), Real(math.Inf(-1)), Real(math.Copysign(0, -1))}}
	data, err := c.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DeserializeChunk(data)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range c.Constants {
		wb := math.Float64bits(float64(want.(Real)))
		gb := math.Float64bits(float64(got.Constants[i].(Real)))
		if wb != gb {
			t.Errorf("constant %d bits = %#x, want %#x", i, gb, wb)
		}
	}
}

func TestDeserializeRejectsBadInput(t *testing.T) {
	good, err := sampleChunk().Serialize()
	if err != nil {
		t.Fatal(err)
	}
	corrupt := func(fn func(b []byte) []byte) []byte {
		return fn(bytes.Clone(good))
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "too short"},
		{"magic", corrupt(func(b []byte) []byte { b[0] = 'X'; return b }), "magic"},
		{"newer version", corrupt(func(b []byte) []byte { b[5] = byte(ChunkVersion + 1); return b }), "newer"},
		{"truncated", good[:len(good)-3], "unexpected end"},
		{"trailing", append(bytes.Clone(good), 0), "trailing"},
		{"huge count", corrupt(func(b []byte) []byte {
			// name length of the root chunk
			binary.BigEndian.PutUint32(b[7:], 0xFFFFFFF0)
			return b
		}), "unexpected end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeserializeChunk(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSerializeRejectsRuntimeConstants(t *testing.T) {
	c := &Chunk{Name: "bad", Constants: []Value{NewArray()}}
	if _, err := c.Serialize(); err == nil {
		t.Fatal("serialized an array constant")
	}
	outer := &Chunk{Name: "outer", Inner: []*Chunk{c}}
	if _, err := outer.Serialize(); err == nil || !strings.Contains(err.Error(), `"bad"`) {
		t.Fatalf("err = %v, want it to name the inner chunk", err)
	}
}

func TestDeserializedChunkExecutes(t *testing.T) {
	c := asm([]Value{Int(40), Int(2)},
		EncodeX(OpLoadConst, 0),
		EncodeX(OpLoadConst, 1),
		Encode(OpAdd),
		Encode(OpRet),
	)
	data, err := c.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := DeserializeChunk(data)
	if err != nil {
		t.Fatal(err)
	}
	v, err := NewRuntime(DefaultConfig()).Execute(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if v != Int(42) {
		t.Errorf("result = %v, want 42", v)
	}
}
