// Package ast defines the RTMC abstract syntax tree: a flat, tagged sum
// type over node kinds rather than a class hierarchy with a visitor
// pattern — every consumer (semantic analyzer, optimizer, code generator)
// switches on a Node's concrete Go type, which the type system already
// makes exhaustive-checkable.
package ast

import "github.com/rtmc-lang/rtmc/internal/token"

// Node is implemented by every AST node; every node carries a source
// position (line, column, filename).
type Node interface {
	Pos() token.Position
}

type base struct {
	Position token.Position
}

func (b base) Pos() token.Position { return b.Position }

// ---- Types -----------------------------------------------------------

// Type is the tagged type-expression sum: Primitive, Struct, Union, Array,
// Pointer.
type Type interface {
	Node
	typeNode()
	String() string
}

type Primitive struct {
	base
	Kind string // "int" | "float" | "char" | "bool" | "void"
}

func (*Primitive) typeNode()         {}
func (p *Primitive) String() string { return p.Kind }

type StructType struct {
	base
	Name string
}

func (*StructType) typeNode()         {}
func (s *StructType) String() string { return "struct " + s.Name }

type UnionType struct {
	base
	Name string
}

func (*UnionType) typeNode()        {}
func (u *UnionType) String() string { return "union " + u.Name }

type ArrayType struct {
	base
	Element Type
	Size    int
}

func (*ArrayType) typeNode() {}
func (a *ArrayType) String() string {
	return a.Element.String() + "[]"
}

type PointerType struct {
	base
	Base  Type
	Level int // number of '*' applied
}

func (*PointerType) typeNode() {}
func (p *PointerType) String() string {
	s := p.Base.String()
	for i := 0; i < p.Level; i++ {
		s += "*"
	}
	return s
}

// ---- Program / declarations -------------------------------------------

type Program struct {
	base
	Decls []Decl
}

func (p *Program) Pos() token.Position { return p.Position }

// Decl is the tagged sum of top-level and struct/local declarations.
type Decl interface {
	Node
	declNode()
}

type Param struct {
	Name string
	Type Type
}

type Function struct {
	base
	Name       string
	ReturnType Type
	Params     []Param
	Body       *Block
}

func (*Function) declNode() {}

// FieldDecl is one struct/union member: a plain field, a bit-field
// ("int a:4;"), or a nested anonymous struct/union.
type FieldDecl struct {
	base
	Name         string
	Type         Type
	BitWidth     int  // > 0 for bit-fields
	IsBitField   bool
	Default      Expr // optional field initializer
	AnonUnionTag string // non-empty if this field was declared inside an anonymous union
}

type StructDecl struct {
	base
	Name      string
	IsUnion   bool
	BaseName  string // non-empty for "struct IDENT : IDENT { ... }"
	Fields    []*FieldDecl
}

func (*StructDecl) declNode() {}

type Variable struct {
	base
	Name    string
	Type    Type
	IsConst bool
	Init    Expr // optional
}

func (*Variable) declNode() {}

type ArrayDecl struct {
	base
	Name    string
	Element Type
	Size    int
	Init    []Expr // array literal elements, optional
}

func (*ArrayDecl) declNode() {}

type MessageDecl struct {
	base
	Name string
	Elem Type
}

func (*MessageDecl) declNode() {}

type IncludeDecl struct {
	base
	Path string
}

func (*IncludeDecl) declNode() {}

// ---- Statements --------------------------------------------------------

type Stmt interface {
	Node
	stmtNode()
}

type Block struct {
	base
	Stmts []Stmt
}

func (*Block) stmtNode() {}

type ExprStmt struct {
	base
	X Expr
}

func (*ExprStmt) stmtNode() {}

// DeclStmt wraps a local declaration (Variable/ArrayDecl/StructDecl) used
// as a statement inside a function body.
type DeclStmt struct {
	base
	D Decl
}

func (*DeclStmt) stmtNode() {}

type If struct {
	base
	Cond Expr
	Then Stmt
	Else Stmt // optional
}

func (*If) stmtNode() {}

type While struct {
	base
	Cond Expr
	Body Stmt
}

func (*While) stmtNode() {}

type For struct {
	base
	Init Stmt // optional
	Cond Expr // optional
	Post Stmt // optional (expr statement)
	Body Stmt
}

func (*For) stmtNode() {}

type Return struct {
	base
	Value Expr // optional
}

func (*Return) stmtNode() {}

type Break struct{ base }

func (*Break) stmtNode() {}

type Continue struct{ base }

func (*Continue) stmtNode() {}

// ---- Expressions --------------------------------------------------------

type Expr interface {
	Node
	exprNode()
	// ResolvedType is filled in by the semantic analyzer; nil until then.
	ResolvedType() Type
	SetResolvedType(Type)
}

type exprBase struct {
	base
	ty Type
}

func (e *exprBase) exprNode()               {}
func (e *exprBase) ResolvedType() Type      { return e.ty }
func (e *exprBase) SetResolvedType(t Type)  { e.ty = t }

type Binary struct {
	exprBase
	Op       token.Kind
	Left     Expr
	Right    Expr
}

type Unary struct {
	exprBase
	Op      token.Kind
	X       Expr
	Postfix bool // true for x++ / x--
}

type Assignment struct {
	exprBase
	Op     token.Kind // Assign, PlusAssign, MinusAssign, StarAssign, SlashAssign
	Target Expr
	Value  Expr
}

type Call struct {
	exprBase
	Callee string
	Args   []Expr
}

// Member is `.`/`->` access; Computed distinguishes arrow (pointer, implicit
// dereference) from dot (value).
type Member struct {
	exprBase
	X        Expr
	Field    string
	Computed bool // true => X is a pointer and "->" was used
}

type ArrayAccess struct {
	exprBase
	X     Expr
	Index Expr
}

type Identifier struct {
	exprBase
	Name string
}

type IntLit struct {
	exprBase
	Value uint32
}

type FloatLit struct {
	exprBase
	Value float32
}

type CharLit struct {
	exprBase
	Value byte
}

type StringLit struct {
	exprBase
	Value string
}

type BoolLit struct {
	exprBase
	Value bool
}

type ArrayLiteral struct {
	exprBase
	Elements []Expr
}

type AddressOf struct {
	exprBase
	X Expr
}

type Dereference struct {
	exprBase
	X Expr
}

type Cast struct {
	exprBase
	Target Type
	X      Expr
}

type SizeOf struct {
	exprBase
	Operand     Expr // either Operand or TypeArg is set
	TypeArg     Type
}

// MessageSend is `queue.send(expr)`.
type MessageSend struct {
	exprBase
	Queue string
	Value Expr
}

// MessageRecv is `queue.recv()` or `queue.recv(timeoutExpr)`.
type MessageRecv struct {
	exprBase
	Queue   string
	Timeout Expr // nil => blocking
}

// ---- Constructors --------------------------------------------------------
//
// base and exprBase embed unexported fields, so callers outside this package
// cannot build these nodes with composite literals; every concrete node gets
// a constructor here that sets its position and leaves the remaining
// (exported) fields for the caller to assign directly.

func mkBase(pos token.Position) base         { return base{Position: pos} }
func mkExprBase(pos token.Position) exprBase { return exprBase{base: mkBase(pos)} }

func NewProgram(pos token.Position) *Program { return &Program{base: mkBase(pos)} }

func NewPrimitive(pos token.Position, kind string) *Primitive {
	return &Primitive{base: mkBase(pos), Kind: kind}
}
func NewStructType(pos token.Position, name string) *StructType {
	return &StructType{base: mkBase(pos), Name: name}
}
func NewUnionType(pos token.Position, name string) *UnionType {
	return &UnionType{base: mkBase(pos), Name: name}
}
func NewArrayType(pos token.Position, elem Type, size int) *ArrayType {
	return &ArrayType{base: mkBase(pos), Element: elem, Size: size}
}
func NewPointerType(pos token.Position, base_ Type) *PointerType {
	return &PointerType{base: mkBase(pos), Base: base_, Level: 1}
}

func NewFunction(pos token.Position, name string, ret Type, params []Param, body *Block) *Function {
	return &Function{base: mkBase(pos), Name: name, ReturnType: ret, Params: params, Body: body}
}
func NewFieldDecl(pos token.Position, name string, ty Type, anonUnionTag string) *FieldDecl {
	return &FieldDecl{base: mkBase(pos), Name: name, Type: ty, AnonUnionTag: anonUnionTag}
}
func NewStructDecl(pos token.Position, name string, isUnion bool, baseName string) *StructDecl {
	return &StructDecl{base: mkBase(pos), Name: name, IsUnion: isUnion, BaseName: baseName}
}
func NewVariable(pos token.Position, name string, ty Type, isConst bool) *Variable {
	return &Variable{base: mkBase(pos), Name: name, Type: ty, IsConst: isConst}
}
func NewArrayDecl(pos token.Position, name string, elem Type, size int) *ArrayDecl {
	return &ArrayDecl{base: mkBase(pos), Name: name, Element: elem, Size: size}
}
func NewMessageDecl(pos token.Position, name string, elem Type) *MessageDecl {
	return &MessageDecl{base: mkBase(pos), Name: name, Elem: elem}
}
func NewIncludeDecl(pos token.Position, path string) *IncludeDecl {
	return &IncludeDecl{base: mkBase(pos), Path: path}
}

func NewBlock(pos token.Position) *Block           { return &Block{base: mkBase(pos)} }
func NewExprStmt(pos token.Position, x Expr) *ExprStmt {
	return &ExprStmt{base: mkBase(pos), X: x}
}
func NewDeclStmt(pos token.Position, d Decl) *DeclStmt {
	return &DeclStmt{base: mkBase(pos), D: d}
}
func NewIf(pos token.Position) *If             { return &If{base: mkBase(pos)} }
func NewWhile(pos token.Position) *While       { return &While{base: mkBase(pos)} }
func NewFor(pos token.Position) *For           { return &For{base: mkBase(pos)} }
func NewReturn(pos token.Position, value Expr) *Return {
	return &Return{base: mkBase(pos), Value: value}
}
func NewBreak(pos token.Position) *Break       { return &Break{base: mkBase(pos)} }
func NewContinue(pos token.Position) *Continue { return &Continue{base: mkBase(pos)} }

func NewBinary(pos token.Position, op token.Kind, left, right Expr) *Binary {
	return &Binary{exprBase: mkExprBase(pos), Op: op, Left: left, Right: right}
}
func NewUnary(pos token.Position, op token.Kind, x Expr, postfix bool) *Unary {
	return &Unary{exprBase: mkExprBase(pos), Op: op, X: x, Postfix: postfix}
}
func NewAssignment(pos token.Position, op token.Kind, target, value Expr) *Assignment {
	return &Assignment{exprBase: mkExprBase(pos), Op: op, Target: target, Value: value}
}
func NewCall(pos token.Position, callee string, args []Expr) *Call {
	return &Call{exprBase: mkExprBase(pos), Callee: callee, Args: args}
}
func NewMember(pos token.Position, x Expr, field string, computed bool) *Member {
	return &Member{exprBase: mkExprBase(pos), X: x, Field: field, Computed: computed}
}
func NewArrayAccess(pos token.Position, x, index Expr) *ArrayAccess {
	return &ArrayAccess{exprBase: mkExprBase(pos), X: x, Index: index}
}
func NewIdentifier(pos token.Position, name string) *Identifier {
	return &Identifier{exprBase: mkExprBase(pos), Name: name}
}
func NewIntLit(pos token.Position, value uint32) *IntLit {
	return &IntLit{exprBase: mkExprBase(pos), Value: value}
}
func NewFloatLit(pos token.Position, value float32) *FloatLit {
	return &FloatLit{exprBase: mkExprBase(pos), Value: value}
}
func NewCharLit(pos token.Position, value byte) *CharLit {
	return &CharLit{exprBase: mkExprBase(pos), Value: value}
}
func NewStringLit(pos token.Position, value string) *StringLit {
	return &StringLit{exprBase: mkExprBase(pos), Value: value}
}
func NewBoolLit(pos token.Position, value bool) *BoolLit {
	return &BoolLit{exprBase: mkExprBase(pos), Value: value}
}
func NewArrayLiteral(pos token.Position) *ArrayLiteral {
	return &ArrayLiteral{exprBase: mkExprBase(pos)}
}
func NewAddressOf(pos token.Position, x Expr) *AddressOf {
	return &AddressOf{exprBase: mkExprBase(pos), X: x}
}
func NewDereference(pos token.Position, x Expr) *Dereference {
	return &Dereference{exprBase: mkExprBase(pos), X: x}
}
func NewCast(pos token.Position, target Type, x Expr) *Cast {
	return &Cast{exprBase: mkExprBase(pos), Target: target, X: x}
}
func NewSizeOf(pos token.Position) *SizeOf { return &SizeOf{exprBase: mkExprBase(pos)} }
func NewMessageSend(pos token.Position, queue string, value Expr) *MessageSend {
	return &MessageSend{exprBase: mkExprBase(pos), Queue: queue, Value: value}
}
func NewMessageRecv(pos token.Position, queue string) *MessageRecv {
	return &MessageRecv{exprBase: mkExprBase(pos), Queue: queue}
}
