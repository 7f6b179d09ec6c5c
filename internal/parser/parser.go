// Package parser implements RTMC's recursive-descent grammar, producing an
// ast.Program. Syntax errors are collected in a diag.Bag; the parser
// synchronizes to the next statement boundary and continues, so a single
// pass can surface every syntax error before the pipeline aborts.
package parser

import (
	"strconv"

	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/diag"
	"github.com/rtmc-lang/rtmc/internal/lexer"
	"github.com/rtmc-lang/rtmc/internal/token"
)

type Parser struct {
	toks []token.Token
	pos  int
	bag  *diag.Bag
}

// Parse tokenizes and parses a single file's source, returning its Program
// AST (possibly partial on error) and whatever diagnostics were collected.
func Parse(src, filename string) (*ast.Program, *diag.Bag) {
	bag := &diag.Bag{}
	toks, err := lexer.Tokenize(src, filename)
	if err != nil {
		if le, ok := err.(*lexer.Error); ok {
			bag.Addf(diag.StageLex, le.Pos, "%s", le.Msg)
		} else {
			bag.Addf(diag.StageLex, token.Position{Filename: filename}, "%s", err.Error())
		}
		return ast.NewProgram(token.Position{Filename: filename}), bag
	}
	p := &Parser{toks: toks, bag: bag}
	prog := p.parseProgram()
	return prog, bag
}

func (p *Parser) cur() token.Token { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }
func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorf("expected %s, got %s", k, p.cur().Kind)
	return p.cur()
}

func (p *Parser) errorf(format string, args ...any) {
	p.bag.Addf(diag.StageParse, p.cur().Pos, format, args...)
}

// synchronize advances past tokens until a statement/declaration boundary,
// recovering by advancing to the next semicolon or declaration keyword.
func (p *Parser) synchronize() {
	for !p.at(token.EOF) {
		if p.cur().Kind == token.Semi {
			p.advance()
			return
		}
		switch p.cur().Kind {
		case token.KwStruct, token.KwUnion, token.KwMessage, token.KwInt,
			token.KwFloat, token.KwChar, token.KwBool, token.KwVoid,
			token.KwConst, token.KwInclude, token.KwImport:
			return
		}
		p.advance()
	}
}

func (p *Parser) parseProgram() *ast.Program {
	pos := token.Position{}
	if len(p.toks) > 0 {
		pos = p.toks[0].Pos
	}
	prog := ast.NewProgram(pos)
	for !p.at(token.EOF) {
		d := p.parseTopLevelDecl()
		if d != nil {
			prog.Decls = append(prog.Decls, d)
		}
	}
	return prog
}

func isTypeStart(k token.Kind) bool {
	switch k {
	case token.KwInt, token.KwFloat, token.KwChar, token.KwBool, token.KwVoid,
		token.KwStruct, token.KwUnion:
		return true
	}
	return false
}

func (p *Parser) parseTopLevelDecl() ast.Decl {
	pos := p.cur().Pos
	switch p.cur().Kind {
	case token.KwInclude, token.KwImport:
		p.advance()
		tok := p.expect(token.StringLiteral)
		p.expect(token.Semi)
		return ast.NewIncludeDecl(pos, tok.Lexeme)
	case token.KwStruct, token.KwUnion:
		return p.parseStructOrUnion()
	case token.KwMessage:
		return p.parseMessageDecl()
	case token.KwConst:
		p.advance()
		return p.parseVariableOrArrayOrFunc(pos, true)
	}
	if isTypeStart(p.cur().Kind) {
		return p.parseVariableOrArrayOrFunc(pos, false)
	}
	p.errorf("unexpected token %s at top level", p.cur().Kind)
	p.synchronize()
	return nil
}

func (p *Parser) parseType() ast.Type {
	pos := p.cur().Pos
	var t ast.Type
	switch p.cur().Kind {
	case token.KwInt:
		p.advance()
		t = ast.NewPrimitive(pos, "int")
	case token.KwFloat:
		p.advance()
		t = ast.NewPrimitive(pos, "float")
	case token.KwChar:
		p.advance()
		t = ast.NewPrimitive(pos, "char")
	case token.KwBool:
		p.advance()
		t = ast.NewPrimitive(pos, "bool")
	case token.KwVoid:
		p.advance()
		t = ast.NewPrimitive(pos, "void")
	case token.KwStruct:
		p.advance()
		name := p.expect(token.Ident).Lexeme
		t = ast.NewStructType(pos, name)
	case token.KwUnion:
		p.advance()
		name := p.expect(token.Ident).Lexeme
		t = ast.NewUnionType(pos, name)
	default:
		p.errorf("expected type, got %s", p.cur().Kind)
		t = ast.NewPrimitive(pos, "int")
	}
	for p.at(token.Star) {
		p.advance()
		t = ast.NewPointerType(pos, t)
	}
	return t
}

func (p *Parser) parseStructOrUnion() ast.Decl {
	pos := p.cur().Pos
	isUnion := p.at(token.KwUnion)
	p.advance() // struct | union

	name := ""
	if p.at(token.Ident) {
		name = p.advance().Lexeme
	}

	base := ""
	if !isUnion && p.at(token.Colon) {
		p.advance()
		base = p.expect(token.Ident).Lexeme
	}

	decl := ast.NewStructDecl(pos, name, isUnion, base)
	p.expect(token.LBrace)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		decl.Fields = append(decl.Fields, p.parseFieldsInto("")...)
	}
	p.expect(token.RBrace)
	p.expect(token.Semi)
	return decl
}

var anonUnionCounter int

// parseFieldsInto parses one field declaration, recursing into nested
// anonymous struct/union bodies and tagging every field declared inside an
// anonymous union with a shared synthetic tag.
func (p *Parser) parseFieldsInto(unionTag string) []*ast.FieldDecl {
	pos := p.cur().Pos

	if p.at(token.KwStruct) || p.at(token.KwUnion) {
		nested := p.at(token.KwUnion)
		p.advance()
		if p.at(token.Ident) {
			// Named nested aggregates are out of scope for anonymous
			// aggregation; consume the name and fall through to the body.
			p.advance()
		}
		tag := unionTag
		if nested {
			anonUnionCounter++
			tag = "anon_union_" + strconv.Itoa(anonUnionCounter)
		}
		p.expect(token.LBrace)
		var fields []*ast.FieldDecl
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			fields = append(fields, p.parseFieldsInto(tag)...)
		}
		p.expect(token.RBrace)
		p.expect(token.Semi)
		return fields
	}

	if !isTypeStart(p.cur().Kind) {
		p.errorf("expected field declaration, got %s", p.cur().Kind)
		p.synchronize()
		return nil
	}

	ty := p.parseType()
	name := p.expect(token.Ident).Lexeme
	field := ast.NewFieldDecl(pos, name, ty, unionTag)

	if p.at(token.Colon) {
		p.advance()
		widthTok := p.expect(token.IntLiteral)
		w, _ := strconv.Atoi(widthTok.Lexeme)
		field.IsBitField = true
		field.BitWidth = w
	}
	if p.at(token.Assign) {
		p.advance()
		field.Default = p.parseExpr()
	}
	p.expect(token.Semi)
	return []*ast.FieldDecl{field}
}

func (p *Parser) parseMessageDecl() ast.Decl {
	pos := p.cur().Pos
	p.advance() // message
	p.expect(token.Lt)
	elem := p.parseType()
	p.expect(token.Gt)
	name := p.expect(token.Ident).Lexeme
	p.expect(token.Semi)
	return ast.NewMessageDecl(pos, name, elem)
}

// parseVariableOrArrayOrFunc disambiguates function/array/variable
// declarations by lookahead past the type and identifier.
func (p *Parser) parseVariableOrArrayOrFunc(pos token.Position, isConst bool) ast.Decl {
	ty := p.parseType()
	name := p.expect(token.Ident).Lexeme

	switch p.cur().Kind {
	case token.LParen:
		return p.parseFunction(pos, ty, name)
	case token.LBracket:
		return p.parseArrayDecl(pos, ty, name)
	default:
		v := ast.NewVariable(pos, name, ty, isConst)
		if p.at(token.Assign) {
			p.advance()
			v.Init = p.parseExpr()
		}
		p.expect(token.Semi)
		return v
	}
}

func (p *Parser) parseFunction(pos token.Position, ret ast.Type, name string) *ast.Function {
	p.expect(token.LParen)
	var params []ast.Param
	for !p.at(token.RParen) && !p.at(token.EOF) {
		pt := p.parseType()
		pn := p.expect(token.Ident).Lexeme
		params = append(params, ast.Param{Name: pn, Type: pt})
		if p.at(token.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	body := p.parseBlock()
	return ast.NewFunction(pos, name, ret, params, body)
}

func (p *Parser) parseArrayDecl(pos token.Position, elem ast.Type, name string) *ast.ArrayDecl {
	p.expect(token.LBracket)
	size := 0
	if p.at(token.IntLiteral) {
		v, _ := strconv.Atoi(p.advance().Lexeme)
		size = v
	}
	p.expect(token.RBracket)
	ad := ast.NewArrayDecl(pos, name, elem, size)
	if p.at(token.Assign) {
		p.advance()
		p.expect(token.LBrace)
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			ad.Init = append(ad.Init, p.parseExpr())
			if p.at(token.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RBrace)
	}
	p.expect(token.Semi)
	return ad
}

// ---- Statements ---------------------------------------------------------

func (p *Parser) parseBlock() *ast.Block {
	pos := p.cur().Pos
	p.expect(token.LBrace)
	b := ast.NewBlock(pos)
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		b.Stmts = append(b.Stmts, p.parseStmt())
	}
	p.expect(token.RBrace)
	return b
}

func (p *Parser) parseStmt() ast.Stmt {
	pos := p.cur().Pos
	switch p.cur().Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwReturn:
		p.advance()
		var value ast.Expr
		if !p.at(token.Semi) {
			value = p.parseExpr()
		}
		p.expect(token.Semi)
		return ast.NewReturn(pos, value)
	case token.KwBreak:
		p.advance()
		p.expect(token.Semi)
		return ast.NewBreak(pos)
	case token.KwContinue:
		p.advance()
		p.expect(token.Semi)
		return ast.NewContinue(pos)
	case token.KwConst:
		p.advance()
		return ast.NewDeclStmt(pos, p.parseVariableOrArrayOrFunc(pos, true))
	case token.KwStruct, token.KwUnion:
		// "struct NAME {" / "struct NAME : BASE {" define an aggregate;
		// "struct NAME var..." declares a variable of that type below.
		if p.peekAt(1).Kind != token.Ident || p.peekAt(2).Kind == token.LBrace || p.peekAt(2).Kind == token.Colon {
			return ast.NewDeclStmt(pos, p.parseStructOrUnion())
		}
	case token.KwMessage:
		return ast.NewDeclStmt(pos, p.parseMessageDecl())
	}
	if isTypeStart(p.cur().Kind) {
		return ast.NewDeclStmt(pos, p.parseVariableOrArrayOrFunc(pos, false))
	}
	expr := p.parseExpr()
	p.expect(token.Semi)
	return ast.NewExprStmt(pos, expr)
}

func (p *Parser) parseIf() *ast.If {
	pos := p.cur().Pos
	p.advance()
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	then := p.parseStmt()
	n := ast.NewIf(pos)
	n.Cond, n.Then = cond, then
	if p.at(token.KwElse) {
		p.advance()
		n.Else = p.parseStmt()
	}
	return n
}

func (p *Parser) parseWhile() *ast.While {
	pos := p.cur().Pos
	p.advance()
	p.expect(token.LParen)
	cond := p.parseExpr()
	p.expect(token.RParen)
	body := p.parseStmt()
	n := ast.NewWhile(pos)
	n.Cond, n.Body = cond, body
	return n
}

func (p *Parser) parseFor() *ast.For {
	pos := p.cur().Pos
	p.advance()
	p.expect(token.LParen)
	f := ast.NewFor(pos)
	if !p.at(token.Semi) {
		f.Init = p.parseStmt()
	} else {
		p.advance()
	}
	if !p.at(token.Semi) {
		f.Cond = p.parseExpr()
	}
	p.expect(token.Semi)
	if !p.at(token.RParen) {
		innerPos := p.cur().Pos
		f.Post = ast.NewExprStmt(innerPos, p.parseExpr())
	}
	p.expect(token.RParen)
	f.Body = p.parseStmt()
	return f
}

// ---- Expressions: precedence climbing -------------------------------------
//
// assignment (right-assoc) < || < && < | < ^ < & < ==/!= < </<=/>/>= <
// <</>> < +/- < * / % < unary < postfix < primary

func (p *Parser) parseExpr() ast.Expr { return p.parseAssignment() }

var assignOps = map[token.Kind]bool{
	token.Assign: true, token.PlusAssign: true, token.MinusAssign: true,
	token.StarAssign: true, token.SlashAssign: true,
}

func (p *Parser) parseAssignment() ast.Expr {
	left := p.parseLogicalOr()
	if assignOps[p.cur().Kind] {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseAssignment()
		return ast.NewAssignment(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	for p.at(token.OrOr) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseLogicalAnd()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	left := p.parseBitOr()
	for p.at(token.AndAnd) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseBitOr()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.at(token.Pipe) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseBitXor()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.at(token.Caret) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseBitAnd()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	left := p.parseEquality()
	for p.at(token.Amp) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseEquality()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for p.at(token.Eq) || p.at(token.Neq) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseRelational()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseShift()
	for p.at(token.Lt) || p.at(token.Lte) || p.at(token.Gt) || p.at(token.Gte) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseShift()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseAdditive()
	for p.at(token.Shl) || p.at(token.Shr) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseAdditive()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.at(token.Plus) || p.at(token.Minus) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseMultiplicative()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.at(token.Star) || p.at(token.Slash) || p.at(token.Percent) {
		pos := p.cur().Pos
		op := p.advance().Kind
		right := p.parseUnary()
		left = ast.NewBinary(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	pos := p.cur().Pos
	switch p.cur().Kind {
	case token.Plus, token.Minus, token.Not, token.Tilde:
		op := p.advance().Kind
		x := p.parseUnary()
		return ast.NewUnary(pos, op, x, false)
	case token.PlusPlus, token.MinusMinus:
		op := p.advance().Kind
		x := p.parseUnary()
		return ast.NewUnary(pos, op, x, false)
	case token.Amp:
		p.advance()
		x := p.parseUnary()
		return ast.NewAddressOf(pos, x)
	case token.Star:
		p.advance()
		x := p.parseUnary()
		return ast.NewDereference(pos, x)
	case token.KwSizeof:
		return p.parseSizeof(pos)
	case token.LParen:
		if p.looksLikeCast() {
			p.advance() // (
			ty := p.parseType()
			p.expect(token.RParen)
			x := p.parseUnary()
			return ast.NewCast(pos, ty, x)
		}
	}
	return p.parsePostfix()
}

func (p *Parser) looksLikeCast() bool {
	// '(' type_specifier ')' — type_specifier starts with a type keyword.
	return isTypeStart(p.peekAt(1).Kind)
}

func (p *Parser) parseSizeof(pos token.Position) ast.Expr {
	p.advance() // sizeof
	p.expect(token.LParen)
	so := ast.NewSizeOf(pos)
	if isTypeStart(p.cur().Kind) {
		so.TypeArg = p.parseType()
	} else {
		so.Operand = p.parseExpr()
	}
	p.expect(token.RParen)
	return so
}

func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		pos := p.cur().Pos
		switch p.cur().Kind {
		case token.Dot, token.Arrow:
			computed := p.at(token.Arrow)
			p.advance()
			field := p.expect(token.Ident).Lexeme
			x = ast.NewMember(pos, x, field, computed)
		case token.LBracket:
			p.advance()
			idx := p.parseExpr()
			p.expect(token.RBracket)
			x = ast.NewArrayAccess(pos, x, idx)
		case token.PlusPlus, token.MinusMinus:
			op := p.advance().Kind
			x = ast.NewUnary(pos, op, x, true)
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.cur().Pos
	switch p.cur().Kind {
	case token.IntLiteral:
		lex := p.advance().Lexeme
		v, err := lexer.ParseIntLexeme(lex)
		if err != nil {
			p.errorf("invalid integer literal %q", lex)
		}
		return ast.NewIntLit(pos, v)
	case token.FloatLiteral:
		lex := p.advance().Lexeme
		f, _ := strconv.ParseFloat(lex, 32)
		return ast.NewFloatLit(pos, float32(f))
	case token.CharLiteral:
		lex := p.advance().Lexeme
		return ast.NewCharLit(pos, lex[0])
	case token.StringLiteral:
		lex := p.advance().Lexeme
		return ast.NewStringLit(pos, lex)
	case token.BoolLiteral:
		lex := p.advance().Lexeme
		return ast.NewBoolLit(pos, lex == "true")
	case token.LBrace:
		p.advance()
		al := ast.NewArrayLiteral(pos)
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			al.Elements = append(al.Elements, p.parseExpr())
			if p.at(token.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RBrace)
		return al
	case token.LParen:
		p.advance()
		x := p.parseExpr()
		p.expect(token.RParen)
		return x
	case token.Ident:
		name := p.advance().Lexeme
		if p.at(token.LParen) {
			return p.parseCall(pos, name)
		}
		if p.at(token.Dot) && p.peekAt(1).Kind == token.Ident &&
			(p.peekAt(1).Lexeme == "send" || p.peekAt(1).Lexeme == "recv") &&
			p.peekAt(2).Kind == token.LParen {
			return p.parseMessageOp(pos, name)
		}
		return ast.NewIdentifier(pos, name)
	}
	if p.cur().Kind.IsIntrinsic() {
		name := p.cur().Kind.String()
		p.advance()
		return p.parseCall(pos, name)
	}
	p.errorf("unexpected token %s in expression", p.cur().Kind)
	p.advance()
	return ast.NewIntLit(pos, 0)
}

func (p *Parser) parseCall(pos token.Position, name string) ast.Expr {
	p.expect(token.LParen)
	var args []ast.Expr
	for !p.at(token.RParen) && !p.at(token.EOF) {
		args = append(args, p.parseExpr())
		if p.at(token.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	return ast.NewCall(pos, name, args)
}

func (p *Parser) parseMessageOp(pos token.Position, queue string) ast.Expr {
	p.advance()              // .
	op := p.advance().Lexeme // "send" | "recv"
	p.expect(token.LParen)
	if op == "send" {
		val := p.parseExpr()
		p.expect(token.RParen)
		return ast.NewMessageSend(pos, queue, val)
	}
	recv := ast.NewMessageRecv(pos, queue)
	if !p.at(token.RParen) {
		recv.Timeout = p.parseExpr()
	}
	p.expect(token.RParen)
	return recv
}
