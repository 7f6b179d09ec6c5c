package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/bytecode"
)

func TestSubstitutePlaceholdersPositional(t *testing.T) {
	out := substitutePlaceholders("Result: {}", []uint32{8})
	require.Equal(t, "Result: 8", out)
}

func TestSubstitutePlaceholdersMultiplePositional(t *testing.T) {
	out := substitutePlaceholders("{} {} {}", []uint32{15, 2748, 4660})
	require.Equal(t, "15 2748 4660", out)
}

func TestSubstitutePlaceholdersNumbered(t *testing.T) {
	out := substitutePlaceholders("{1} before {0}", []uint32{1, 2})
	require.Equal(t, "2 before 1", out)
}

func TestSubstitutePlaceholdersNegativeValue(t *testing.T) {
	out := substitutePlaceholders("{}", []uint32{^uint32(0)}) // -1 as uint32
	require.Equal(t, "-1", out)
}

func TestConstStringResolvesStringConstant(t *testing.T) {
	prog := bytecode.NewProgram()
	idx := prog.InternConst(bytecode.StringConst("hi"))
	vm := New(prog)
	s, ok := vm.constString(idx)
	require.True(t, ok)
	require.Equal(t, "hi", s)
}

func TestConstStringFalseForNonStringConstant(t *testing.T) {
	prog := bytecode.NewProgram()
	idx := prog.InternConst(bytecode.IntConst(42))
	vm := New(prog)
	_, ok := vm.constString(idx)
	require.False(t, ok)
}
