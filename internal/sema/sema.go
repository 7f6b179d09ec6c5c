// Package sema implements RTMC's semantic analysis pass: scoped symbol
// resolution and type checking. Declarations are collected first, then
// bodies are validated against them, over a nested lexical scope stack.
package sema

import (
	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/diag"
	"github.com/rtmc-lang/rtmc/internal/token"
)

// SymbolKind classifies what a Symbol names.
type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymConst
	SymParam
	SymFunction
	SymStruct
	SymUnion
	SymMessage
)

type Symbol struct {
	Name   string
	Kind   SymbolKind
	Type   ast.Type
	Func   *ast.Function  // set when Kind == SymFunction
	Struct *ast.StructDecl // set when Kind == SymStruct || SymUnion
	Msg    *ast.MessageDecl
}

// Scope is one lexical level of the symbol table; scopes chain to Parent
// for lookup.
type Scope struct {
	Parent  *Scope
	symbols map[string]*Symbol
}

func NewScope(parent *Scope) *Scope {
	return &Scope{Parent: parent, symbols: map[string]*Symbol{}}
}

func (s *Scope) Define(sym *Symbol) bool {
	if _, exists := s.symbols[sym.Name]; exists {
		return false
	}
	s.symbols[sym.Name] = sym
	return true
}

func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// Result is the output of a successful (or partially successful) analysis:
// the global scope and every struct/union layout definition, consumed by
// internal/layout and internal/codegen.
type Result struct {
	Global  *Scope
	Structs map[string]*ast.StructDecl
	Funcs   map[string]*ast.Function
}

// Analyzer performs the full two-pass check: first registers every
// top-level declaration, then walks function bodies with a TypeChecker.
type Analyzer struct {
	bag     *diag.Bag
	global  *Scope
	structs map[string]*ast.StructDecl
	funcs   map[string]*ast.Function
	msgs    map[string]*ast.MessageDecl
}

func Analyze(prog *ast.Program) (*Result, *diag.Bag) {
	a := &Analyzer{
		bag:     &diag.Bag{},
		global:  NewScope(nil),
		structs: map[string]*ast.StructDecl{},
		funcs:   map[string]*ast.Function{},
		msgs:    map[string]*ast.MessageDecl{},
	}
	a.registerDecls(prog)
	a.checkBodies(prog)
	a.checkMainExists()
	return &Result{Global: a.global, Structs: a.structs, Funcs: a.funcs}, a.bag
}

func (a *Analyzer) errorf(pos token.Position, format string, args ...any) {
	a.bag.Addf(diag.StageSemantic, pos, format, args...)
}

func (a *Analyzer) registerDecls(prog *ast.Program) {
	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *ast.StructDecl:
			if _, exists := a.structs[n.Name]; exists {
				a.errorf(n.Pos(), "struct/union %q redeclared", n.Name)
				continue
			}
			a.structs[n.Name] = n
		case *ast.Function:
			if _, exists := a.funcs[n.Name]; exists {
				a.errorf(n.Pos(), "function %q redeclared", n.Name)
				continue
			}
			a.funcs[n.Name] = n
			sym := &Symbol{Name: n.Name, Kind: SymFunction, Type: n.ReturnType, Func: n}
			if !a.global.Define(sym) {
				a.errorf(n.Pos(), "function %q redeclared", n.Name)
			}
		case *ast.MessageDecl:
			if _, exists := a.msgs[n.Name]; exists {
				a.errorf(n.Pos(), "message queue %q redeclared", n.Name)
				continue
			}
			a.msgs[n.Name] = n
			a.global.Define(&Symbol{Name: n.Name, Kind: SymMessage, Type: n.Elem, Msg: n})
		case *ast.Variable:
			kind := SymVar
			if n.IsConst {
				kind = SymConst
			}
			if !a.global.Define(&Symbol{Name: n.Name, Kind: kind, Type: n.Type}) {
				a.errorf(n.Pos(), "global %q redeclared", n.Name)
			}
		case *ast.ArrayDecl:
			at := ast.NewArrayType(n.Pos(), n.Element, n.Size)
			if !a.global.Define(&Symbol{Name: n.Name, Kind: SymVar, Type: at}) {
				a.errorf(n.Pos(), "global %q redeclared", n.Name)
			}
		}
	}
	for name, sd := range a.structs {
		for _, f := range sd.Fields {
			if st, ok := f.Type.(*ast.StructType); ok {
				if _, ok := a.structs[st.Name]; !ok {
					a.errorf(f.Pos(), "struct %q field %q references undefined struct %q", name, f.Name, st.Name)
				}
			}
		}
		if sd.BaseName != "" {
			if _, ok := a.structs[sd.BaseName]; !ok {
				a.errorf(sd.Pos(), "struct %q inherits from undefined struct %q", name, sd.BaseName)
			}
		}
	}
}

func (a *Analyzer) checkMainExists() {
	fn, ok := a.funcs["main"]
	if !ok {
		a.bag.Addf(diag.StageSemantic, token.Position{}, "program has no main function")
		return
	}
	if len(fn.Params) != 0 {
		a.errorf(fn.Pos(), "main must take no parameters")
	}
}

func (a *Analyzer) checkBodies(prog *ast.Program) {
	for _, d := range prog.Decls {
		fn, ok := d.(*ast.Function)
		if !ok {
			continue
		}
		tc := &typeChecker{a: a, fn: fn, scope: NewScope(a.global), loopDepth: 0}
		for _, p := range fn.Params {
			if !tc.scope.Define(&Symbol{Name: p.Name, Kind: SymParam, Type: p.Type}) {
				a.errorf(fn.Pos(), "parameter %q redeclared in %q", p.Name, fn.Name)
			}
		}
		tc.checkBlock(fn.Body, NewScope(tc.scope))
	}
}

// typeChecker walks one function body, checking: binary operand
// compatibility, assignment target mutability, call arity/argument types,
// member/array-access validity, return-type agreement, and break/continue
// only inside a loop.
type typeChecker struct {
	a         *Analyzer
	fn        *ast.Function
	scope     *Scope
	loopDepth int
}

func (tc *typeChecker) errorf(pos token.Position, format string, args ...any) {
	tc.a.errorf(pos, format, args...)
}

func (tc *typeChecker) checkBlock(b *ast.Block, scope *Scope) {
	for _, s := range b.Stmts {
		tc.checkStmt(s, scope)
	}
}

func (tc *typeChecker) checkStmt(s ast.Stmt, scope *Scope) {
	switch n := s.(type) {
	case *ast.Block:
		tc.checkBlock(n, NewScope(scope))
	case *ast.ExprStmt:
		tc.checkExpr(n.X, scope)
	case *ast.DeclStmt:
		tc.checkLocalDecl(n.D, scope)
	case *ast.If:
		tc.checkExpr(n.Cond, scope)
		tc.checkStmt(n.Then, scope)
		if n.Else != nil {
			tc.checkStmt(n.Else, scope)
		}
	case *ast.While:
		tc.checkExpr(n.Cond, scope)
		tc.loopDepth++
		tc.checkStmt(n.Body, scope)
		tc.loopDepth--
	case *ast.For:
		inner := NewScope(scope)
		if n.Init != nil {
			tc.checkStmt(n.Init, inner)
		}
		if n.Cond != nil {
			tc.checkExpr(n.Cond, inner)
		}
		if n.Post != nil {
			tc.checkStmt(n.Post, inner)
		}
		tc.loopDepth++
		tc.checkStmt(n.Body, inner)
		tc.loopDepth--
	case *ast.Return:
		var vt ast.Type
		if n.Value != nil {
			vt = tc.checkExpr(n.Value, scope)
		}
		retIsVoid := isVoid(tc.fn.ReturnType)
		if n.Value == nil && !retIsVoid {
			tc.errorf(n.Pos(), "missing return value in function %q returning %s", tc.fn.Name, tc.fn.ReturnType)
		}
		if n.Value != nil && retIsVoid {
			tc.errorf(n.Pos(), "void function %q cannot return a value", tc.fn.Name)
		}
		if vt != nil && !retIsVoid && !typesCompatible(tc.fn.ReturnType, vt) {
			tc.errorf(n.Pos(), "function %q returns %s, cannot return %s", tc.fn.Name, tc.fn.ReturnType, vt)
		}
	case *ast.Break:
		if tc.loopDepth == 0 {
			tc.errorf(n.Pos(), "break outside of loop")
		}
	case *ast.Continue:
		if tc.loopDepth == 0 {
			tc.errorf(n.Pos(), "continue outside of loop")
		}
	}
}

func isVoid(t ast.Type) bool {
	p, ok := t.(*ast.Primitive)
	return ok && p.Kind == "void"
}

func (tc *typeChecker) checkLocalDecl(d ast.Decl, scope *Scope) {
	switch n := d.(type) {
	case *ast.Variable:
		if n.Init != nil {
			tc.checkExpr(n.Init, scope)
		}
		kind := SymVar
		if n.IsConst {
			kind = SymConst
		}
		if !scope.Define(&Symbol{Name: n.Name, Kind: kind, Type: n.Type}) {
			tc.errorf(n.Pos(), "local %q redeclared", n.Name)
		}
	case *ast.ArrayDecl:
		for _, e := range n.Init {
			tc.checkExpr(e, scope)
		}
		at := ast.NewArrayType(n.Pos(), n.Element, n.Size)
		if !scope.Define(&Symbol{Name: n.Name, Kind: SymVar, Type: at}) {
			tc.errorf(n.Pos(), "local %q redeclared", n.Name)
		}
	case *ast.StructDecl:
		tc.a.structs[n.Name] = n
	case *ast.MessageDecl:
		tc.a.msgs[n.Name] = n
		scope.Define(&Symbol{Name: n.Name, Kind: SymMessage, Type: n.Elem, Msg: n})
	}
}

func (tc *typeChecker) checkExpr(e ast.Expr, scope *Scope) ast.Type {
	switch n := e.(type) {
	case *ast.IntLit:
		t := ast.NewPrimitive(n.Pos(), "int")
		n.SetResolvedType(t)
		return t
	case *ast.FloatLit:
		t := ast.NewPrimitive(n.Pos(), "float")
		n.SetResolvedType(t)
		return t
	case *ast.CharLit:
		t := ast.NewPrimitive(n.Pos(), "char")
		n.SetResolvedType(t)
		return t
	case *ast.BoolLit:
		t := ast.NewPrimitive(n.Pos(), "bool")
		n.SetResolvedType(t)
		return t
	case *ast.StringLit:
		t := ast.NewPointerType(n.Pos(), ast.NewPrimitive(n.Pos(), "char"))
		n.SetResolvedType(t)
		return t
	case *ast.Identifier:
		sym, ok := scope.Lookup(n.Name)
		if !ok {
			tc.errorf(n.Pos(), "undeclared identifier %q", n.Name)
			return nil
		}
		n.SetResolvedType(sym.Type)
		return sym.Type
	case *ast.Binary:
		lt := tc.checkExpr(n.Left, scope)
		rt := tc.checkExpr(n.Right, scope)
		if lt != nil && rt != nil && !typesCompatible(lt, rt) {
			tc.errorf(n.Pos(), "incompatible operand types %s and %s", lt, rt)
		}
		result := lt
		switch n.Op {
		case token.Eq, token.Neq, token.Lt, token.Lte, token.Gt, token.Gte, token.AndAnd, token.OrOr:
			result = ast.NewPrimitive(n.Pos(), "bool")
		}
		n.SetResolvedType(result)
		return result
	case *ast.Unary:
		t := tc.checkExpr(n.X, scope)
		n.SetResolvedType(t)
		return t
	case *ast.Assignment:
		lt := tc.checkExpr(n.Target, scope)
		rt := tc.checkExpr(n.Value, scope)
		if id, ok := n.Target.(*ast.Identifier); ok {
			if sym, found := scope.Lookup(id.Name); found && sym.Kind == SymConst {
				tc.errorf(n.Pos(), "cannot assign to const %q", id.Name)
			}
		}
		if lt != nil && rt != nil && !typesCompatible(lt, rt) {
			tc.errorf(n.Pos(), "cannot assign %s to %s", rt, lt)
		}
		n.SetResolvedType(lt)
		return lt
	case *ast.Call:
		return tc.checkCall(n, scope)
	case *ast.Member:
		return tc.checkMember(n, scope)
	case *ast.ArrayAccess:
		xt := tc.checkExpr(n.X, scope)
		tc.checkExpr(n.Index, scope)
		var elem ast.Type
		switch at := xt.(type) {
		case *ast.ArrayType:
			elem = at.Element
		case *ast.PointerType:
			elem = at.Base
		default:
			if xt != nil {
				tc.errorf(n.Pos(), "cannot index non-array type %s", xt)
			}
		}
		n.SetResolvedType(elem)
		return elem
	case *ast.AddressOf:
		xt := tc.checkExpr(n.X, scope)
		var t ast.Type
		if xt != nil {
			t = ast.NewPointerType(n.Pos(), xt)
		}
		n.SetResolvedType(t)
		return t
	case *ast.Dereference:
		xt := tc.checkExpr(n.X, scope)
		var t ast.Type
		if pt, ok := xt.(*ast.PointerType); ok {
			t = pt.Base
		} else if xt != nil {
			tc.errorf(n.Pos(), "cannot dereference non-pointer type %s", xt)
		}
		n.SetResolvedType(t)
		return t
	case *ast.Cast:
		tc.checkExpr(n.X, scope)
		n.SetResolvedType(n.Target)
		return n.Target
	case *ast.SizeOf:
		if n.Operand != nil {
			tc.checkExpr(n.Operand, scope)
		}
		t := ast.NewPrimitive(n.Pos(), "int")
		n.SetResolvedType(t)
		return t
	case *ast.ArrayLiteral:
		var elem ast.Type
		for _, el := range n.Elements {
			elem = tc.checkExpr(el, scope)
		}
		var t ast.Type
		if elem != nil {
			t = ast.NewArrayType(n.Pos(), elem, len(n.Elements))
		}
		n.SetResolvedType(t)
		return t
	case *ast.MessageSend:
		msg, ok := tc.a.msgs[n.Queue]
		if !ok {
			tc.errorf(n.Pos(), "undeclared message queue %q", n.Queue)
		}
		vt := tc.checkExpr(n.Value, scope)
		if ok && vt != nil && !typesCompatible(msg.Elem, vt) {
			tc.errorf(n.Pos(), "message queue %q expects %s, got %s", n.Queue, msg.Elem, vt)
		}
		t := ast.NewPrimitive(n.Pos(), "bool")
		n.SetResolvedType(t)
		return t
	case *ast.MessageRecv:
		msg, ok := tc.a.msgs[n.Queue]
		if !ok {
			tc.errorf(n.Pos(), "undeclared message queue %q", n.Queue)
		}
		if n.Timeout != nil {
			tc.checkExpr(n.Timeout, scope)
		}
		var t ast.Type
		if ok {
			t = msg.Elem
		}
		n.SetResolvedType(t)
		return t
	}
	return nil
}

func (tc *typeChecker) checkMember(n *ast.Member, scope *Scope) ast.Type {
	xt := tc.checkExpr(n.X, scope)
	var structName string
	switch t := xt.(type) {
	case *ast.StructType:
		structName = t.Name
	case *ast.UnionType:
		structName = t.Name
	case *ast.PointerType:
		if st, ok := t.Base.(*ast.StructType); ok {
			structName = st.Name
		} else if ut, ok := t.Base.(*ast.UnionType); ok {
			structName = ut.Name
		}
	}
	if structName == "" {
		if xt != nil {
			tc.errorf(n.Pos(), "member access on non-struct type %s", xt)
		}
		return nil
	}
	sd, ok := tc.a.structs[structName]
	if !ok {
		tc.errorf(n.Pos(), "unknown struct/union %q", structName)
		return nil
	}
	field, ok := findField(tc.a.structs, sd, n.Field)
	if !ok {
		tc.errorf(n.Pos(), "struct %q has no member %q", structName, n.Field)
		return nil
	}
	n.SetResolvedType(field.Type)
	return field.Type
}

// findField searches sd's own fields, then (for a non-union struct) its
// flattened base chain.
func findField(structs map[string]*ast.StructDecl, sd *ast.StructDecl, name string) (*ast.FieldDecl, bool) {
	for _, f := range sd.Fields {
		if f.Name == name {
			return f, true
		}
	}
	if sd.BaseName != "" {
		if base, ok := structs[sd.BaseName]; ok {
			return findField(structs, base, name)
		}
	}
	return nil, false
}

func (tc *typeChecker) checkCall(n *ast.Call, scope *Scope) ast.Type {
	if n.Callee == "" {
		return nil
	}
	fn, ok := tc.a.funcs[n.Callee]
	if !ok {
		for _, arg := range n.Args {
			tc.checkExpr(arg, scope)
		}
		if !isIntrinsicName(n.Callee) {
			tc.errorf(n.Pos(), "call to undeclared function %q", n.Callee)
		}
		return ast.NewPrimitive(n.Pos(), "int")
	}
	if len(n.Args) != len(fn.Params) {
		tc.errorf(n.Pos(), "function %q expects %d arguments, got %d", n.Callee, len(fn.Params), len(n.Args))
	}
	for i, arg := range n.Args {
		at := tc.checkExpr(arg, scope)
		if i < len(fn.Params) && at != nil && !typesCompatible(fn.Params[i].Type, at) {
			tc.errorf(arg.Pos(), "argument %d to %q: expected %s, got %s", i+1, n.Callee, fn.Params[i].Type, at)
		}
	}
	n.SetResolvedType(fn.ReturnType)
	return fn.ReturnType
}

func isIntrinsicName(name string) bool {
	if k, ok := token.Keywords[name]; ok {
		return k.IsIntrinsic()
	}
	return false
}

// typesCompatible allows numeric widening between int/float/char/bool
// (RTMC's arithmetic promotes freely) and requires an exact structural
// match for everything else.
func typesCompatible(a, b ast.Type) bool {
	if a == nil || b == nil {
		return true
	}
	ap, aok := a.(*ast.Primitive)
	bp, bok := b.(*ast.Primitive)
	if aok && bok {
		return isNumeric(ap.Kind) && isNumeric(bp.Kind) || ap.Kind == bp.Kind
	}
	return a.String() == b.String()
}

func isNumeric(kind string) bool {
	switch kind {
	case "int", "float", "char", "bool":
		return true
	}
	return false
}
