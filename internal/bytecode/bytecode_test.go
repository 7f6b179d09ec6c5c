package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSampleProgram() *BytecodeProgram {
	p := NewProgram()
	p.InternConst(IntConst(7))
	p.InternConst(FloatConst(3.5))
	p.InternConst(StringConst("hello"))
	p.InternString("uart0")
	p.AddSymbol("counter", 0)
	p.AddFunction("main", 0)
	p.AddFunction("helper", 4)
	p.Structs = append(p.Structs, StructLayoutEntry{
		Name:   "Point",
		Fields: []FieldLayout{{Name: "x", Offset: 0}, {Name: "y", Offset: 4}},
	})
	p.Emit(LOAD_CONST, 0)
	p.Emit(LOAD_CONST, 1)
	p.Emit(ADD)
	p.Emit(STORE_VAR, 0)
	p.Emit(HALT)
	return p
}

func TestWriteReadRoundTrip(t *testing.T) {
	prog := buildSampleProgram()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, prog))

	got, err := Read(&buf)
	require.NoError(t, err)

	require.Equal(t, prog.Constants, got.Constants)
	require.Equal(t, prog.Strings, got.Strings)
	require.Equal(t, prog.Symbols, got.Symbols)
	require.Equal(t, prog.SymbolOrder, got.SymbolOrder)
	require.Equal(t, prog.Functions, got.Functions)
	require.Equal(t, prog.FunctionOrder, got.FunctionOrder)
	require.Equal(t, prog.Structs, got.Structs)
	require.Len(t, got.Instructions, len(prog.Instructions))
	for i, want := range prog.Instructions {
		require.Equal(t, want.Op, got.Instructions[i].Op)
		require.Equal(t, want.Operand, got.Instructions[i].Operand)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("NOTAVMB")))
	require.Error(t, err)
}

func TestReadRejectsWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	var ver [4]byte
	ver[0] = 99
	buf.Write(ver[:])
	_, err := Read(&buf)
	require.Error(t, err)
}

func TestInternConstDeduplicatesByValue(t *testing.T) {
	p := NewProgram()
	i1 := p.InternConst(IntConst(42))
	i2 := p.InternConst(IntConst(42))
	require.Equal(t, i1, i2)
	require.Len(t, p.Constants, 1)
}

func TestInternConstDistinguishesFloatFromIntBitPattern(t *testing.T) {
	p := NewProgram()
	iIdx := p.InternConst(IntConst(0))
	fIdx := p.InternConst(FloatConst(0.0))
	require.NotEqual(t, iIdx, fIdx)
	require.Len(t, p.Constants, 2)
}

func TestInternConstDeduplicatesFloatsByBitPattern(t *testing.T) {
	p := NewProgram()
	i1 := p.InternConst(FloatConst(1.5))
	i2 := p.InternConst(FloatConst(1.5))
	require.Equal(t, i1, i2)
	require.Len(t, p.Constants, 1)
}

func TestInternStringDeduplicates(t *testing.T) {
	p := NewProgram()
	i1 := p.InternString("uart0")
	i2 := p.InternString("uart0")
	i3 := p.InternString("uart1")
	require.Equal(t, i1, i2)
	require.NotEqual(t, i1, i3)
}

func TestAddFunctionPreservesInsertionOrder(t *testing.T) {
	p := NewProgram()
	p.AddFunction("b", 10)
	p.AddFunction("a", 20)
	p.AddFunction("b", 99) // re-add updates addr, not order
	require.Equal(t, []string{"b", "a"}, p.FunctionOrder)
	require.Equal(t, uint32(99), p.Functions["b"])
}

func TestOpcodeStringAndParseRoundTrip(t *testing.T) {
	for op, name := range opcodeNames {
		require.Equal(t, name, op.String())
		parsed, ok := ParseOpcode(name)
		require.True(t, ok)
		require.Equal(t, op, parsed)
	}
}

func TestParseOpcodeUnknownNameFails(t *testing.T) {
	_, ok := ParseOpcode("NOT_A_REAL_OPCODE")
	require.False(t, ok)
}
