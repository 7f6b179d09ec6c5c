package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/diag"
	"github.com/rtmc-lang/rtmc/internal/parser"
)

type analyzed struct {
	res *Result
	bag *diag.Bag
}

func analyzeSrc(t *testing.T, src string) *analyzed {
	prog, bag := parser.Parse(src, "t.rtmc")
	require.False(t, bag.HasErrors(), bag.All())
	res, sbag := Analyze(prog)
	return &analyzed{res: res, bag: sbag}
}

func TestAnalyzeValidProgramHasNoErrors(t *testing.T) {
	src := `
void main() {
    int x;
    x = 1 + 2;
}
`
	r := analyzeSrc(t, src)
	require.False(t, r.bag.HasErrors())
	require.Contains(t, r.res.Funcs, "main")
}

func TestAnalyzeMissingMainIsError(t *testing.T) {
	src := `
int add(int a, int b) {
    return a + b;
}
`
	r := analyzeSrc(t, src)
	require.True(t, r.bag.HasErrors())
}

func TestAnalyzeUndeclaredIdentifierIsError(t *testing.T) {
	src := `
void main() {
    x = 1;
}
`
	r := analyzeSrc(t, src)
	require.True(t, r.bag.HasErrors())
}

func TestAnalyzeCallArityMismatchIsError(t *testing.T) {
	src := `
int add(int a, int b) {
    return a + b;
}
void main() {
    int r;
    r = add(1);
}
`
	r := analyzeSrc(t, src)
	require.True(t, r.bag.HasErrors())
}

func TestAnalyzeAssignToConstIsError(t *testing.T) {
	src := `
void main() {
    const int x = 1;
    x = 2;
}
`
	r := analyzeSrc(t, src)
	require.True(t, r.bag.HasErrors())
}

func TestAnalyzeBreakOutsideLoopIsError(t *testing.T) {
	src := `
void main() {
    break;
}
`
	r := analyzeSrc(t, src)
	require.True(t, r.bag.HasErrors())
}

func TestAnalyzeBreakInsideLoopIsValid(t *testing.T) {
	src := `
void main() {
    int i;
    for (i = 0; i < 10; i = i + 1) {
        if (i == 5) {
            break;
        }
    }
}
`
	r := analyzeSrc(t, src)
	require.False(t, r.bag.HasErrors())
}

func TestAnalyzeStructMemberAccess(t *testing.T) {
	src := `
struct Point {
    int x;
    int y;
};
void main() {
    struct Point p;
    p.x = 1;
}
`
	r := analyzeSrc(t, src)
	require.False(t, r.bag.HasErrors())
}

func TestAnalyzeUnknownStructMemberIsError(t *testing.T) {
	src := `
struct Point {
    int x;
};
void main() {
    struct Point p;
    p.z = 1;
}
`
	r := analyzeSrc(t, src)
	require.True(t, r.bag.HasErrors())
}

func TestAnalyzeInheritedMemberResolves(t *testing.T) {
	src := `
struct Base {
    int id;
};
struct Derived : Base {
    int extra;
};
void main() {
    struct Derived d;
    d.id = 1;
    d.extra = 2;
}
`
	r := analyzeSrc(t, src)
	require.False(t, r.bag.HasErrors())
}
