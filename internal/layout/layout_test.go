package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/parser"
	"github.com/rtmc-lang/rtmc/internal/token"
)

func structsFromSrc(t *testing.T, src string) map[string]*ast.StructDecl {
	prog, bag := parser.Parse(src, "t.rtmc")
	require.False(t, bag.HasErrors(), bag.All())
	out := map[string]*ast.StructDecl{}
	for _, d := range prog.Decls {
		if sd, ok := d.(*ast.StructDecl); ok {
			out[sd.Name] = sd
		}
	}
	return out
}

func TestBuildSimpleStructLayout(t *testing.T) {
	structs := structsFromSrc(t, `
struct Point {
    int x;
    int y;
};
`)
	table, bag := Build(structs)
	require.False(t, bag.HasErrors())

	sl := table.Structs["Point"]
	require.NotNil(t, sl)
	require.Equal(t, 8, sl.Size)
	require.Equal(t, 0, sl.Fields["x"].ByteOffset)
	require.Equal(t, 4, sl.Fields["y"].ByteOffset)
}

func TestBuildStructAlignsToWordBoundary(t *testing.T) {
	structs := structsFromSrc(t, `
struct Flag {
    char c;
};
`)
	table, bag := Build(structs)
	require.False(t, bag.HasErrors())
	require.Equal(t, 4, table.Structs["Flag"].Size)
}

// TestBuildInheritanceFlattensBaseFieldsFirst covers the
// inheritance rule: a derived struct's layout starts with its base's
// fields, at the base's original offsets, followed by its own.
func TestBuildInheritanceFlattensBaseFieldsFirst(t *testing.T) {
	structs := structsFromSrc(t, `
struct Base {
    int id;
};
struct Derived : Base {
    int extra;
};
`)
	table, bag := Build(structs)
	require.False(t, bag.HasErrors())

	sl := table.Structs["Derived"]
	require.Equal(t, []string{"id", "extra"}, sl.Order)
	require.Equal(t, 0, sl.Fields["id"].ByteOffset)
	require.Equal(t, 4, sl.Fields["extra"].ByteOffset)
	require.Equal(t, 8, sl.Size)
}

// TestBuildUnionFieldsOverlapAtOffsetZero: a union's members all start at
// byte offset 0, and its size is the largest member's size rather than
// the sum.
func TestBuildUnionFieldsOverlapAtOffsetZero(t *testing.T) {
	structs := structsFromSrc(t, `
union Value {
    int asInt;
    float asFloat;
};
`)
	table, bag := Build(structs)
	require.False(t, bag.HasErrors())

	sl := table.Structs["Value"]
	require.True(t, sl.IsUnion)
	require.Equal(t, 0, sl.Fields["asInt"].ByteOffset)
	require.Equal(t, 0, sl.Fields["asFloat"].ByteOffset)
	require.Equal(t, 4, sl.Size)
}

// TestBuildBitFieldsPackIntoSharedWord: adjacent bit-fields share one
// 32-bit word until it is full.
func TestBuildBitFieldsPackIntoSharedWord(t *testing.T) {
	structs := structsFromSrc(t, `
struct Flags {
    int a : 20;
    int b : 20;
    int c : 4;
};
`)
	table, bag := Build(structs)
	require.False(t, bag.HasErrors())

	sl := table.Structs["Flags"]
	require.Equal(t, 0, sl.Fields["a"].ByteOffset)
	require.Equal(t, 0, sl.Fields["a"].BitOffset)
	// b doesn't fit alongside a (20+20=40 > 32), so it starts a new word.
	require.Equal(t, 4, sl.Fields["b"].ByteOffset)
	require.Equal(t, 0, sl.Fields["b"].BitOffset)
	// c fits in what remains of b's word.
	require.Equal(t, 4, sl.Fields["c"].ByteOffset)
	require.Equal(t, 20, sl.Fields["c"].BitOffset)
	require.Equal(t, 8, sl.Size)
}

func TestBuildCircularInheritanceIsError(t *testing.T) {
	structs := structsFromSrc(t, `
struct A : B {
    int x;
};
struct B : A {
    int y;
};
`)
	_, bag := Build(structs)
	require.True(t, bag.HasErrors())
}

func TestMemberOffsetIsAdditiveNotMultiplicative(t *testing.T) {
	fl := &FieldLayout{Name: "y", ByteOffset: 4}
	require.Equal(t, 12, MemberOffset(8, fl))
}

func TestTypeSizePointerIsOneWord(t *testing.T) {
	structs := structsFromSrc(t, `
struct Point {
    int x;
};
`)
	table, _ := Build(structs)
	st := ast.NewStructType(token.Position{}, "Point")
	pt := ast.NewPointerType(token.Position{}, st)
	require.Equal(t, 4, TypeSize(pt, table))
}
