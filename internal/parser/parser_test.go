package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/ast"
)

func TestParseSimpleFunction(t *testing.T) {
	src := `
int add(int a, int b) {
    return a + b;
}
`
	prog, bag := Parse(src, "t.rtmc")
	require.False(t, bag.HasErrors(), bag.All())
	require.Len(t, prog.Decls, 1)

	fn, ok := prog.Decls[0].(*ast.Function)
	require.True(t, ok)
	require.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	require.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.Binary)
	require.True(t, ok)
	_, ok = bin.Left.(*ast.Identifier)
	require.True(t, ok)
}

func TestParseStructDecl(t *testing.T) {
	src := `
struct Point {
    int x;
    int y;
};
`
	prog, bag := Parse(src, "t.rtmc")
	require.False(t, bag.HasErrors(), bag.All())
	require.Len(t, prog.Decls, 1)

	sd, ok := prog.Decls[0].(*ast.StructDecl)
	require.True(t, ok)
	require.Equal(t, "Point", sd.Name)
	require.Len(t, sd.Fields, 2)
}

func TestParseIfWhileFor(t *testing.T) {
	src := `
void main() {
    int i;
    if (i < 10) {
        i = i + 1;
    } else {
        i = 0;
    }
    while (i > 0) {
        i = i - 1;
    }
    for (i = 0; i < 5; i = i + 1) {
        print(i);
    }
}
`
	_, bag := Parse(src, "t.rtmc")
	require.False(t, bag.HasErrors(), bag.All())
}

func TestParseRecoversAfterSyntaxError(t *testing.T) {
	src := `
int broken( {
}
int ok() {
    return 1;
}
`
	_, bag := Parse(src, "t.rtmc")
	require.True(t, bag.HasErrors())
}

func TestParseArrayAndPointerDecl(t *testing.T) {
	src := `
void main() {
    int arr[4];
    int *p;
    p = &arr[0];
}
`
	_, bag := Parse(src, "t.rtmc")
	require.False(t, bag.HasErrors(), bag.All())
}
