package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

func TestModuleMarshalRoundTrip(t *testing.T) {
	c := printIntChunk(4, 5)
	c.AddStringConstant("hi")
	c.DeclareLocal(1, "x", SlotInt)
	c.AddSourceLocation(0, 1, 1)
	mod := NewModule("lxg/gen/Program", mustAssemble(t, c))

	data, err := mod.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(ModuleMagic)) {
		t.Errorf("data starts with %q, want %q", data[:4], ModuleMagic)
	}

	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != mod.Name || got.Version != ModuleVersion {
		t.Errorf("header = %s v%d, want %s v%d", got.Name, got.Version, mod.Name, ModuleVersion)
	}
	if !bytes.Equal(got.Entry.Code, mod.Entry.Code) {
		t.Errorf("Code = % X, want % X", got.Entry.Code, mod.Entry.Code)
	}
	if got.Entry.MaxStack != mod.Entry.MaxStack || got.Entry.MaxLocals != mod.Entry.MaxLocals {
		t.Errorf("frame = %d/%d, want %d/%d", got.Entry.MaxStack, got.Entry.MaxLocals,
			mod.Entry.MaxStack, mod.Entry.MaxLocals)
	}
	if len(got.Entry.Constants) != 1 || got.Entry.Constants[0].Str != "hi" {
		t.Errorf("Constants = %v, want [\"hi\"]", got.Entry.Constants)
	}
	if len(got.Entry.Locals) != 1 || got.Entry.Locals[0].Name != "x" {
		t.Errorf("Locals = %v, want [x]", got.Entry.Locals)
	}
}

func TestModuleMarshalDeterministic(t *testing.T) {
	build := func() []byte {
		c := printIntChunk(7, 8)
		c.AddIntConstant(123456)
		c.AddStringConstant("a")
		c.DeclareLocal(1, "a", SlotInt)
		c.DeclareLocal(2, "b", SlotString)
		data, err := NewModule("p", mustAssemble(t, c)).Marshal()
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		return data
	}
	if a, b := build(), build(); !bytes.Equal(a, b) {
		t.Error("identical modules marshal to different bytes")
	}
}

func TestUnmarshalErrors(t *testing.T) {
	if _, err := Unmarshal([]byte("NOPE")); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("bad magic err = %v, want ErrInvalidMagic", err)
	}
	if _, err := Unmarshal([]byte(ModuleMagic + "\xff")); err == nil {
		t.Error("expected error for corrupt body")
	}

	mod := NewModule("p", mustAssemble(t, printIntChunk(1, 2)))
	mod.Version = 99
	data, err := mod.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("version err = %v, want ErrUnsupportedVersion", err)
	}

	if _, err := (&Module{Name: "p"}).Marshal(); !errors.Is(err, ErrNoEntry) {
		t.Errorf("no entry err = %v, want ErrNoEntry", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	base := func() *Method {
		c := NewChunk()
		c.DeclareLocal(1, "n", SlotInt)
		c.DeclareLocal(2, "s", SlotString)
		c.Emit(OpIConst1)
		c.EmitUint16(OpIStore, 1)
		c.EmitLdcString("x")
		c.EmitUint16(OpAStore, 2)
		c.Emit(OpReturn)
		return mustAssemble(t, c)
	}
	if err := Verify(base()); err != nil {
		t.Fatalf("Verify(base) = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(m *Method)
	}{
		{"const index", func(m *Method) { m.Constants = nil }},
		{"int store on string slot", func(m *Method) { m.Code[3] = 2 }},
		{"undeclared slot", func(m *Method) { m.Code[3] = 9 }},
		{"max stack", func(m *Method) { m.MaxStack = 7 }},
		{"local beyond frame", func(m *Method) { m.MaxLocals = 2 }},
		{"unknown opcode", func(m *Method) { m.Code[0] = 0xEE }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			err := Verify(m)
			if err == nil {
				t.Fatal("Verify succeeded, want error")
			}
			if !IsVerifyError(err) {
				t.Errorf("err = %T, want *VerifyError", err)
			}
		})
	}
}
