package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/diag"
	"github.com/rtmc-lang/rtmc/internal/parser"
)

func optimizeSrc(t *testing.T, src string) (*ast.Program, *diag.Bag) {
	prog, bag := parser.Parse(src, "t.rtmc")
	require.False(t, bag.HasErrors(), bag.All())
	obag := &diag.Bag{}
	Optimize(prog, obag)
	return prog, obag
}

func mainBody(t *testing.T, prog *ast.Program) *ast.Block {
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.Function); ok && fn.Name == "main" {
			return fn.Body
		}
	}
	t.Fatal("no main function found")
	return nil
}

func TestFoldIntConstantArithmetic(t *testing.T) {
	prog, bag := optimizeSrc(t, `
void main() {
    int x;
    x = 2 + 3 * 4;
}
`)
	require.False(t, bag.HasErrors())
	body := mainBody(t, prog)
	assign := body.Stmts[1].(*ast.ExprStmt).X.(*ast.Assignment)
	lit, ok := assign.Value.(*ast.IntLit)
	require.True(t, ok)
	require.Equal(t, uint32(14), lit.Value)
}

func TestFoldComparisonProducesBoolLit(t *testing.T) {
	prog, _ := optimizeSrc(t, `
void main() {
    int x;
    x = 1;
    x = 2 < 3;
}
`)
	body := mainBody(t, prog)
	assign := body.Stmts[2].(*ast.ExprStmt).X.(*ast.Assignment)
	lit, ok := assign.Value.(*ast.BoolLit)
	require.True(t, ok)
	require.True(t, lit.Value)
}

func TestConstantDivideByZeroLeftUnfoldedWithWarning(t *testing.T) {
	prog, bag := optimizeSrc(t, `
void main() {
    int x;
    x = 1 / 0;
}
`)
	require.False(t, bag.HasErrors())
	require.NotEmpty(t, bag.Warnings())

	body := mainBody(t, prog)
	assign := body.Stmts[1].(*ast.ExprStmt).X.(*ast.Assignment)
	_, stillBinary := assign.Value.(*ast.Binary)
	require.True(t, stillBinary)
}

func TestSimplifyAlgebraicIdentities(t *testing.T) {
	prog, _ := optimizeSrc(t, `
void main() {
    int x;
    int y;
    x = y + 0;
    x = y * 1;
    x = y * 0;
}
`)
	body := mainBody(t, prog)

	a0 := body.Stmts[2].(*ast.ExprStmt).X.(*ast.Assignment)
	_, ok := a0.Value.(*ast.Identifier)
	require.True(t, ok, "y+0 should simplify to y")

	a1 := body.Stmts[3].(*ast.ExprStmt).X.(*ast.Assignment)
	_, ok = a1.Value.(*ast.Identifier)
	require.True(t, ok, "y*1 should simplify to y")

	a2 := body.Stmts[4].(*ast.ExprStmt).X.(*ast.Assignment)
	lit, ok := a2.Value.(*ast.IntLit)
	require.True(t, ok, "y*0 should fold to 0")
	require.Equal(t, uint32(0), lit.Value)
}

func TestDeadCodeAfterReturnIsDropped(t *testing.T) {
	prog, _ := optimizeSrc(t, `
int f() {
    return 1;
    return 2;
}
`)
	found := false
	for _, d := range prog.Decls {
		fn, ok := d.(*ast.Function)
		if !ok || fn.Name != "f" {
			continue
		}
		found = true
		require.Len(t, fn.Body.Stmts, 1)
	}
	require.True(t, found)
}

func TestDeadIfBranchPrunedWhenConditionConstantFalse(t *testing.T) {
	prog, _ := optimizeSrc(t, `
void main() {
    int x;
    if (1 < 0) {
        x = 1;
    } else {
        x = 2;
    }
}
`)
	body := mainBody(t, prog)
	require.Len(t, body.Stmts, 2)
	kept, ok := body.Stmts[1].(*ast.Block)
	require.True(t, ok, "dead branch pruned, surviving else body kept as its block")
	assign, ok := kept.Stmts[0].(*ast.ExprStmt).X.(*ast.Assignment)
	require.True(t, ok)
	lit, ok := assign.Value.(*ast.IntLit)
	require.True(t, ok)
	require.Equal(t, uint32(2), lit.Value)
}

func TestDeadWhileFalseConditionRemoved(t *testing.T) {
	prog, _ := optimizeSrc(t, `
void main() {
    while (0 > 1) {
        int x;
    }
}
`)
	body := mainBody(t, prog)
	require.Empty(t, body.Stmts)
}
