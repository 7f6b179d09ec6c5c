// Package optimizer implements RTMC's two optimization passes: constant
// folding and dead-code elimination. Both run as a tree-rewriting pass
// ahead of code generation rather than during it.
package optimizer

import (
	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/diag"
	"github.com/rtmc-lang/rtmc/internal/token"
)

const (
	plusKind    = token.Plus
	minusKind   = token.Minus
	starKind    = token.Star
	slashKind   = token.Slash
	percentKind = token.Percent
	ampKind     = token.Amp
	pipeKind    = token.Pipe
	caretKind   = token.Caret
	tildeKind   = token.Tilde
	notKind     = token.Not
	shlKind     = token.Shl
	shrKind     = token.Shr
	eqKind      = token.Eq
	neqKind     = token.Neq
	ltKind      = token.Lt
	lteKind     = token.Lte
	gtKind      = token.Gt
	gteKind     = token.Gte
)

// Optimize runs the constant folder then the dead-code eliminator over
// every function body in prog, in place. Division/modulo by a literal zero
// is reported as a non-fatal warning and the offending expression is left
// un-folded.
func Optimize(prog *ast.Program, bag *diag.Bag) {
	f := &folder{bag: bag}
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.Function); ok {
			fn.Body = f.foldBlock(fn.Body)
		}
	}
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.Function); ok {
			fn.Body = eliminateDeadCode(fn.Body)
		}
	}
}

// ---- Constant folding ----------------------------------------------------

type folder struct {
	bag *diag.Bag
}

func (f *folder) foldBlock(b *ast.Block) *ast.Block {
	if b == nil {
		return nil
	}
	for i, s := range b.Stmts {
		b.Stmts[i] = f.foldStmt(s)
	}
	return b
}

func (f *folder) foldStmt(s ast.Stmt) ast.Stmt {
	switch n := s.(type) {
	case *ast.Block:
		return f.foldBlock(n)
	case *ast.ExprStmt:
		n.X = f.foldExpr(n.X)
		return n
	case *ast.DeclStmt:
		if v, ok := n.D.(*ast.Variable); ok && v.Init != nil {
			v.Init = f.foldExpr(v.Init)
		}
		if ad, ok := n.D.(*ast.ArrayDecl); ok {
			for i, e := range ad.Init {
				ad.Init[i] = f.foldExpr(e)
			}
		}
		return n
	case *ast.If:
		n.Cond = f.foldExpr(n.Cond)
		n.Then = f.foldStmt(n.Then)
		if n.Else != nil {
			n.Else = f.foldStmt(n.Else)
		}
		return n
	case *ast.While:
		n.Cond = f.foldExpr(n.Cond)
		n.Body = f.foldStmt(n.Body)
		return n
	case *ast.For:
		if n.Init != nil {
			n.Init = f.foldStmt(n.Init)
		}
		if n.Cond != nil {
			n.Cond = f.foldExpr(n.Cond)
		}
		if n.Post != nil {
			n.Post = f.foldStmt(n.Post)
		}
		n.Body = f.foldStmt(n.Body)
		return n
	case *ast.Return:
		if n.Value != nil {
			n.Value = f.foldExpr(n.Value)
		}
		return n
	}
	return s
}

func (f *folder) foldExpr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.Binary:
		n.Left = f.foldExpr(n.Left)
		n.Right = f.foldExpr(n.Right)
		return f.foldBinary(n)
	case *ast.Unary:
		n.X = f.foldExpr(n.X)
		return f.foldUnary(n)
	case *ast.Assignment:
		n.Value = f.foldExpr(n.Value)
		return n
	case *ast.Call:
		for i, a := range n.Args {
			n.Args[i] = f.foldExpr(a)
		}
		return n
	case *ast.Member:
		n.X = f.foldExpr(n.X)
		return n
	case *ast.ArrayAccess:
		n.X = f.foldExpr(n.X)
		n.Index = f.foldExpr(n.Index)
		return n
	case *ast.AddressOf:
		n.X = f.foldExpr(n.X)
		return n
	case *ast.Dereference:
		n.X = f.foldExpr(n.X)
		return n
	case *ast.Cast:
		n.X = f.foldExpr(n.X)
		return n
	case *ast.SizeOf:
		return f.foldSizeof(n)
	case *ast.ArrayLiteral:
		for i, el := range n.Elements {
			n.Elements[i] = f.foldExpr(el)
		}
		return n
	case *ast.MessageSend:
		n.Value = f.foldExpr(n.Value)
		return n
	case *ast.MessageRecv:
		if n.Timeout != nil {
			n.Timeout = f.foldExpr(n.Timeout)
		}
		return n
	}
	return e
}

// foldSizeof replaces sizeof(T) with an int literal when T is written as a
// primitive type name; sizeof of an expression or of a struct, union, array
// or pointer type is left to codegen, which has the full layout table
// available.
func (f *folder) foldSizeof(n *ast.SizeOf) ast.Expr {
	if n.TypeArg != nil {
		if p, ok := n.TypeArg.(*ast.Primitive); ok {
			return ast.NewIntLit(n.Pos(), uint32(primitiveSize(p.Kind)))
		}
	}
	return n
}

func primitiveSize(kind string) int {
	switch kind {
	case "char", "bool":
		return 1
	case "void":
		return 0
	}
	return 4
}

func (f *folder) foldBinary(n *ast.Binary) ast.Expr {
	li, lok := n.Left.(*ast.IntLit)
	ri, rok := n.Right.(*ast.IntLit)
	if lok && rok {
		if folded, ok := f.foldIntBinary(n, li.Value, ri.Value); ok {
			return folded
		}
		return n
	}
	lf, lfok := n.Left.(*ast.FloatLit)
	rf, rfok := n.Right.(*ast.FloatLit)
	if lfok && rfok {
		if folded, ok := foldFloatBinary(n, lf.Value, rf.Value); ok {
			return folded
		}
	}
	return f.simplifyAlgebraic(n)
}

func (f *folder) foldIntBinary(n *ast.Binary, a, b uint32) (ast.Expr, bool) {
	switch n.Op {
	case plusKind:
		return ast.NewIntLit(n.Pos(), a+b), true
	case minusKind:
		return ast.NewIntLit(n.Pos(), a-b), true
	case starKind:
		return ast.NewIntLit(n.Pos(), a*b), true
	case slashKind:
		if b == 0 {
			f.bag.Warnf(diag.StageOptimize, n.Pos(), "constant division by zero; expression left unfolded")
			return nil, false
		}
		return ast.NewIntLit(n.Pos(), a/b), true
	case percentKind:
		if b == 0 {
			f.bag.Warnf(diag.StageOptimize, n.Pos(), "constant modulo by zero; expression left unfolded")
			return nil, false
		}
		return ast.NewIntLit(n.Pos(), a%b), true
	case ampKind:
		return ast.NewIntLit(n.Pos(), a&b), true
	case pipeKind:
		return ast.NewIntLit(n.Pos(), a|b), true
	case caretKind:
		return ast.NewIntLit(n.Pos(), a^b), true
	case shlKind:
		return ast.NewIntLit(n.Pos(), a<<b), true
	case shrKind:
		return ast.NewIntLit(n.Pos(), a>>b), true
	case eqKind:
		return ast.NewBoolLit(n.Pos(), a == b), true
	case neqKind:
		return ast.NewBoolLit(n.Pos(), a != b), true
	case ltKind:
		return ast.NewBoolLit(n.Pos(), a < b), true
	case lteKind:
		return ast.NewBoolLit(n.Pos(), a <= b), true
	case gtKind:
		return ast.NewBoolLit(n.Pos(), a > b), true
	case gteKind:
		return ast.NewBoolLit(n.Pos(), a >= b), true
	}
	return nil, false
}

func foldFloatBinary(n *ast.Binary, a, b float32) (ast.Expr, bool) {
	switch n.Op {
	case plusKind:
		return ast.NewFloatLit(n.Pos(), a+b), true
	case minusKind:
		return ast.NewFloatLit(n.Pos(), a-b), true
	case starKind:
		return ast.NewFloatLit(n.Pos(), a*b), true
	case slashKind:
		if b == 0 {
			return nil, false
		}
		return ast.NewFloatLit(n.Pos(), a/b), true
	}
	return nil, false
}

// simplifyAlgebraic applies x+0, x-0, x*0, x*1, x/1 identities when exactly
// one side is a matching literal.
func (f *folder) simplifyAlgebraic(n *ast.Binary) ast.Expr {
	if isIntLitValue(n.Right, 0) && n.Op == plusKind {
		return n.Left
	}
	if isIntLitValue(n.Right, 0) && n.Op == minusKind {
		return n.Left
	}
	if isIntLitValue(n.Left, 0) && n.Op == plusKind {
		return n.Right
	}
	if (isIntLitValue(n.Right, 0) || isIntLitValue(n.Left, 0)) && n.Op == starKind {
		return ast.NewIntLit(n.Pos(), 0)
	}
	if isIntLitValue(n.Right, 1) && n.Op == starKind {
		return n.Left
	}
	if isIntLitValue(n.Left, 1) && n.Op == starKind {
		return n.Right
	}
	if isIntLitValue(n.Right, 1) && n.Op == slashKind {
		return n.Left
	}
	return n
}

func isIntLitValue(e ast.Expr, v uint32) bool {
	lit, ok := e.(*ast.IntLit)
	return ok && lit.Value == v
}

func (f *folder) foldUnary(n *ast.Unary) ast.Expr {
	if n.Postfix {
		return n
	}
	if lit, ok := n.X.(*ast.IntLit); ok {
		switch n.Op {
		case minusKind:
			return ast.NewIntLit(n.Pos(), uint32(-int32(lit.Value)))
		case tildeKind:
			return ast.NewIntLit(n.Pos(), ^lit.Value)
		}
	}
	if lit, ok := n.X.(*ast.BoolLit); ok && n.Op == notKind {
		return ast.NewBoolLit(n.Pos(), !lit.Value)
	}
	return n
}

// ---- Dead-code elimination ------------------------------------------------

// eliminateDeadCode drops statements after an unconditional Return/Break/
// Continue, and replaces if/while with constant-false conditions.
// Declarations, message operations, and calls always count as having side
// effects and are never pruned as "dead" on their own.
func eliminateDeadCode(b *ast.Block) *ast.Block {
	if b == nil {
		return nil
	}
	var kept []ast.Stmt
	terminated := false
	for _, s := range b.Stmts {
		if terminated {
			break
		}
		s = pruneStmt(s)
		if s == nil {
			continue
		}
		kept = append(kept, s)
		if isTerminal(s) {
			terminated = true
		}
	}
	b.Stmts = kept
	return b
}

func isTerminal(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.Return, *ast.Break, *ast.Continue:
		return true
	}
	return false
}

func pruneStmt(s ast.Stmt) ast.Stmt {
	switch n := s.(type) {
	case *ast.Block:
		return eliminateDeadCode(n)
	case *ast.If:
		n.Then = pruneStmt(n.Then)
		if n.Else != nil {
			n.Else = pruneStmt(n.Else)
		}
		if b, ok := n.Cond.(*ast.BoolLit); ok {
			if b.Value {
				return n.Then
			}
			return n.Else
		}
		return n
	case *ast.While:
		if b, ok := n.Cond.(*ast.BoolLit); ok && !b.Value {
			return nil
		}
		n.Body = pruneStmt(n.Body)
		return n
	case *ast.For:
		n.Body = pruneStmt(n.Body)
		return n
	}
	return s
}
