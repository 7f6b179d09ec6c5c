// Package codegen lowers a type-checked AST into a bytecode.BytecodeProgram.
// Function bodies are emitted in one pass while every CALL operand is
// recorded in a patch list, then every pending call is rewritten once all
// function start addresses are known.
package codegen

import (
	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/bytecode"
	"github.com/rtmc-lang/rtmc/internal/diag"
	"github.com/rtmc-lang/rtmc/internal/layout"
	"github.com/rtmc-lang/rtmc/internal/sema"
	"github.com/rtmc-lang/rtmc/internal/token"
)

const (
	globalBase = 0
	globalMax  = 10000
	paramBase  = 10000
	localBase  = 20000
)

type varSlot struct {
	Addr uint32
	Type ast.Type
}

// patch records an instruction whose operand[index] must be rewritten once
// the referenced function's address is known.
type patch struct {
	instr    int
	operand  int
	funcName string
}

// loopLabels tracks the break/continue patch lists for one enclosing loop.
type loopLabels struct {
	breaks    []int
	continues []int
	contTo    int // instruction index the continue jump should target, once known
}

type Generator struct {
	bag    *diag.Bag
	prog   *bytecode.BytecodeProgram
	sr     *sema.Result
	layout *layout.Table

	globals    map[string]varSlot
	nextGlobal uint32

	msgIDs map[string]uint32

	funcAddr map[string]int
	pending  []patch

	locals    map[string]varSlot
	nextLocal uint32

	loops []*loopLabels
}

// Generate lowers prog into a BytecodeProgram. sr and lt must come from a
// successful sema.Analyze / layout.Build pass.
func Generate(prog *ast.Program, sr *sema.Result, lt *layout.Table, mode bytecode.Mode) (*bytecode.BytecodeProgram, *diag.Bag) {
	g := &Generator{
		bag:      &diag.Bag{},
		prog:     bytecode.NewProgram(),
		sr:       sr,
		layout:   lt,
		globals:  map[string]varSlot{},
		msgIDs:   map[string]uint32{},
		funcAddr: map[string]int{},
	}
	g.prog.Mode = mode
	g.nextGlobal = globalBase

	g.emitStructLayouts()
	g.emitGlobals(prog)
	g.emitMessages(prog)

	entryCall := g.prog.Emit(bytecode.CALL, 0, 0)
	g.pending = append(g.pending, patch{instr: entryCall, operand: 0, funcName: "main"})
	g.prog.Emit(bytecode.HALT)

	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.Function); ok {
			g.emitFunction(fn)
		}
	}

	for _, p := range g.pending {
		addr, ok := g.funcAddr[p.funcName]
		if !ok {
			g.bag.Addf(diag.StageCodegen, token.Position{}, "call to undefined function %q", p.funcName)
			continue
		}
		g.prog.Instructions[p.instr].Operand[p.operand] = uint32(addr)
	}

	return g.prog, g.bag
}

func (g *Generator) errorf(pos token.Position, format string, args ...any) {
	g.bag.Addf(diag.StageCodegen, pos, format, args...)
}

func (g *Generator) line(pos token.Position) {
	if g.prog.Mode != bytecode.Debug {
		return
	}
	idx := len(g.prog.Instructions)
	g.prog.DebugInfo[idx] = pos.Line
}

// ---- declarations ---------------------------------------------------------

func (g *Generator) emitStructLayouts() {
	if g.layout == nil {
		return
	}
	for name, sl := range g.layout.Structs {
		entry := bytecode.StructLayoutEntry{Name: name}
		for _, fname := range sl.Order {
			f := sl.Fields[fname]
			entry.Fields = append(entry.Fields, bytecode.FieldLayout{Name: fname, Offset: uint32(f.ByteOffset)})
		}
		g.prog.Structs = append(g.prog.Structs, entry)
	}
}

func (g *Generator) emitMessages(prog *ast.Program) {
	var id uint32
	for _, d := range prog.Decls {
		if md, ok := d.(*ast.MessageDecl); ok {
			g.msgIDs[md.Name] = id
			g.prog.AddSymbol("msg."+md.Name, id)
			g.line(md.Pos())
			g.prog.Emit(bytecode.MSG_DECLARE, id)
			id++
		}
	}
}

func (g *Generator) emitGlobals(prog *ast.Program) {
	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *ast.Variable:
			addr := g.allocGlobal(n.Name, n.Type, 1)
			g.line(n.Pos())
			g.prog.Emit(bytecode.GLOBAL_VAR_DECLARE, addr)
			if structName := typeStructName(n.Type); structName != "" {
				g.prog.Emit(bytecode.ALLOC_STRUCT, addr, uint32(layout.TypeSize(n.Type, g.layout)))
			}
			if n.Init != nil {
				g.emitExpr(n.Init)
				g.prog.Emit(bytecode.STORE_VAR, addr)
			}
		case *ast.ArrayDecl:
			addr := g.allocGlobal(n.Name, ast.NewArrayType(n.Pos(), n.Element, n.Size), uint32(n.Size))
			g.line(n.Pos())
			g.prog.Emit(bytecode.ALLOC_ARRAY, addr, uint32(n.Size))
			for i, e := range n.Init {
				g.emitExpr(e)
				g.prog.Emit(bytecode.STORE_ARRAY_ELEM, addr, uint32(i))
			}
		}
	}
}

func (g *Generator) allocGlobal(name string, ty ast.Type, slots uint32) uint32 {
	addr := g.nextGlobal
	g.globals[name] = varSlot{Addr: addr, Type: ty}
	g.prog.AddSymbol(name, addr)
	g.nextGlobal += slots
	if g.nextGlobal > globalMax {
		g.bag.Addf(diag.StageCodegen, token.Position{}, "global address space exhausted at %q", name)
	}
	return addr
}

// ---- functions --------------------------------------------------------

func (g *Generator) emitFunction(fn *ast.Function) {
	start := len(g.prog.Instructions)
	g.funcAddr[fn.Name] = start
	g.prog.AddFunction(fn.Name, uint32(start))

	g.locals = map[string]varSlot{}
	g.nextLocal = localBase
	g.loops = nil

	for i, p := range fn.Params {
		g.locals[p.Name] = varSlot{Addr: uint32(paramBase + i), Type: p.Type}
	}

	g.line(fn.Pos())
	g.prog.Emit(bytecode.ALLOC_FRAME, uint32(len(fn.Params)))

	g.emitBlock(fn.Body)

	if !endsInReturn(fn.Body) {
		g.line(fn.Pos())
		g.prog.Emit(bytecode.FREE_FRAME, localBase, g.nextLocal-localBase)
		g.prog.Emit(bytecode.RET)
	}
}

func endsInReturn(b *ast.Block) bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	_, ok := b.Stmts[len(b.Stmts)-1].(*ast.Return)
	return ok
}

func (g *Generator) lookupVar(name string) (varSlot, bool) {
	if s, ok := g.locals[name]; ok {
		return s, true
	}
	if s, ok := g.globals[name]; ok {
		return s, true
	}
	return varSlot{}, false
}

func (g *Generator) allocLocal(name string, ty ast.Type, slots uint32) uint32 {
	addr := g.nextLocal
	g.locals[name] = varSlot{Addr: addr, Type: ty}
	g.nextLocal += slots
	return addr
}

// ---- statements --------------------------------------------------------

func (g *Generator) emitBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		g.emitStmt(s)
	}
}

func (g *Generator) emitStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		g.emitBlock(n)
	case *ast.ExprStmt:
		g.line(n.Pos())
		g.emitExpr(n.X)
	case *ast.DeclStmt:
		g.emitLocalDecl(n.D)
	case *ast.If:
		g.emitIf(n)
	case *ast.While:
		g.emitWhile(n)
	case *ast.For:
		g.emitFor(n)
	case *ast.Return:
		g.line(n.Pos())
		if n.Value != nil {
			g.emitExpr(n.Value)
		}
		g.prog.Emit(bytecode.FREE_FRAME, localBase, g.nextLocal-localBase)
		g.prog.Emit(bytecode.RET)
	case *ast.Break:
		g.line(n.Pos())
		if len(g.loops) == 0 {
			g.errorf(n.Pos(), "break outside of loop")
			return
		}
		idx := g.prog.Emit(bytecode.JUMP, 0)
		loop := g.loops[len(g.loops)-1]
		loop.breaks = append(loop.breaks, idx)
	case *ast.Continue:
		g.line(n.Pos())
		if len(g.loops) == 0 {
			g.errorf(n.Pos(), "continue outside of loop")
			return
		}
		idx := g.prog.Emit(bytecode.JUMP, 0)
		loop := g.loops[len(g.loops)-1]
		loop.continues = append(loop.continues, idx)
	}
}

func (g *Generator) patchJump(idx int, target uint32) {
	g.prog.Instructions[idx].Operand[0] = target
}

func (g *Generator) emitLocalDecl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.Variable:
		addr := g.allocLocal(n.Name, n.Type, 1)
		g.line(n.Pos())
		if structName := typeStructName(n.Type); structName != "" {
			g.prog.Emit(bytecode.ALLOC_STRUCT, addr, uint32(layout.TypeSize(n.Type, g.layout)))
		} else {
			g.prog.Emit(bytecode.ALLOC_VAR, addr)
		}
		if n.Init != nil {
			g.emitExpr(n.Init)
			g.prog.Emit(bytecode.STORE_VAR, addr)
		}
	case *ast.ArrayDecl:
		addr := g.allocLocal(n.Name, ast.NewArrayType(n.Pos(), n.Element, n.Size), uint32(n.Size))
		g.line(n.Pos())
		g.prog.Emit(bytecode.ALLOC_ARRAY, addr, uint32(n.Size))
		for i, e := range n.Init {
			g.emitExpr(e)
			g.prog.Emit(bytecode.STORE_ARRAY_ELEM, addr, uint32(i))
		}
	case *ast.StructDecl:
		// Nested struct/union type declarations contribute only to the
		// struct layout table, built ahead of codegen; nothing to emit here.
	case *ast.MessageDecl:
		id := uint32(len(g.msgIDs))
		g.msgIDs[n.Name] = id
		g.line(n.Pos())
		g.prog.Emit(bytecode.MSG_DECLARE, id)
	}
}

func (g *Generator) emitIf(n *ast.If) {
	g.line(n.Pos())
	g.emitExpr(n.Cond)
	elseJump := g.prog.Emit(bytecode.JUMPIF_FALSE, 0)
	g.emitStmt(n.Then)
	if n.Else == nil {
		g.patchJump(elseJump, uint32(len(g.prog.Instructions)))
		return
	}
	endJump := g.prog.Emit(bytecode.JUMP, 0)
	g.patchJump(elseJump, uint32(len(g.prog.Instructions)))
	g.emitStmt(n.Else)
	g.patchJump(endJump, uint32(len(g.prog.Instructions)))
}

func (g *Generator) emitWhile(n *ast.While) {
	top := uint32(len(g.prog.Instructions))
	g.line(n.Pos())
	g.emitExpr(n.Cond)
	exitJump := g.prog.Emit(bytecode.JUMPIF_FALSE, 0)

	loop := &loopLabels{}
	g.loops = append(g.loops, loop)
	g.emitStmt(n.Body)
	g.loops = g.loops[:len(g.loops)-1]

	for _, idx := range loop.continues {
		g.patchJump(idx, top)
	}
	g.prog.Emit(bytecode.JUMP, top)
	end := uint32(len(g.prog.Instructions))
	g.patchJump(exitJump, end)
	for _, idx := range loop.breaks {
		g.patchJump(idx, end)
	}
}

func (g *Generator) emitFor(n *ast.For) {
	if n.Init != nil {
		g.emitStmt(n.Init)
	}
	top := uint32(len(g.prog.Instructions))
	var exitJump int
	hasCond := n.Cond != nil
	if hasCond {
		g.emitExpr(n.Cond)
		exitJump = g.prog.Emit(bytecode.JUMPIF_FALSE, 0)
	}

	loop := &loopLabels{}
	g.loops = append(g.loops, loop)
	g.emitStmt(n.Body)

	postAddr := uint32(len(g.prog.Instructions))
	if n.Post != nil {
		g.emitStmt(n.Post)
	}
	g.loops = g.loops[:len(g.loops)-1]

	for _, idx := range loop.continues {
		g.patchJump(idx, postAddr)
	}
	g.prog.Emit(bytecode.JUMP, top)
	end := uint32(len(g.prog.Instructions))
	if hasCond {
		g.patchJump(exitJump, end)
	}
	for _, idx := range loop.breaks {
		g.patchJump(idx, end)
	}
}

// ---- expressions --------------------------------------------------------

func (g *Generator) emitExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.IntLit:
		idx := g.prog.InternConst(bytecode.IntConst(n.Value))
		g.prog.Emit(bytecode.LOAD_CONST, idx)
	case *ast.FloatLit:
		idx := g.prog.InternConst(bytecode.FloatConst(n.Value))
		g.prog.Emit(bytecode.LOAD_CONST, idx)
	case *ast.CharLit:
		idx := g.prog.InternConst(bytecode.IntConst(uint32(n.Value)))
		g.prog.Emit(bytecode.LOAD_CONST, idx)
	case *ast.BoolLit:
		v := uint32(0)
		if n.Value {
			v = 1
		}
		idx := g.prog.InternConst(bytecode.IntConst(v))
		g.prog.Emit(bytecode.LOAD_CONST, idx)
	case *ast.StringLit:
		g.prog.InternString(n.Value)
		idx := g.prog.InternConst(bytecode.StringConst(n.Value))
		g.prog.Emit(bytecode.LOAD_CONST, idx)
	case *ast.Identifier:
		g.emitLoadVar(n)
	case *ast.Binary:
		g.emitExpr(n.Left)
		g.emitExpr(n.Right)
		g.prog.Emit(binaryOpcode(n.Op))
	case *ast.Unary:
		g.emitUnary(n)
	case *ast.Assignment:
		g.emitAssignment(n)
	case *ast.Call:
		g.emitCall(n)
	case *ast.Member:
		g.emitLoadMember(n)
	case *ast.ArrayAccess:
		g.emitExpr(n.X)
		g.emitExpr(n.Index)
		g.prog.Emit(bytecode.LOAD_ARRAY_ELEM)
	case *ast.AddressOf:
		if id, ok := n.X.(*ast.Identifier); ok {
			if slot, ok := g.lookupVar(id.Name); ok {
				g.prog.Emit(bytecode.LOAD_ADDR, slot.Addr)
				return
			}
		}
		g.emitExpr(n.X)
	case *ast.Dereference:
		g.emitExpr(n.X)
		g.prog.Emit(bytecode.LOAD_DEREF)
	case *ast.Cast:
		g.emitExpr(n.X)
	case *ast.SizeOf:
		g.emitSizeof(n)
	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			g.emitExpr(el)
		}
	case *ast.MessageSend:
		id, ok := g.msgIDs[n.Queue]
		if !ok {
			g.errorf(n.Pos(), "undeclared message queue %q", n.Queue)
			return
		}
		g.emitExpr(n.Value)
		g.prog.Emit(bytecode.MSG_SEND, id)
	case *ast.MessageRecv:
		id, ok := g.msgIDs[n.Queue]
		if !ok {
			g.errorf(n.Pos(), "undeclared message queue %q", n.Queue)
			return
		}
		timeout := uint32(999999)
		if n.Timeout != nil {
			if lit, ok := n.Timeout.(*ast.IntLit); ok {
				timeout = lit.Value
			} else {
				g.emitExpr(n.Timeout)
				g.prog.Emit(bytecode.MSG_RECV, id)
				return
			}
		}
		g.prog.Emit(bytecode.MSG_RECV, id, timeout)
	}
}

func (g *Generator) emitLoadVar(id *ast.Identifier) {
	slot, ok := g.lookupVar(id.Name)
	if !ok {
		g.errorf(id.Pos(), "unresolved identifier %q", id.Name)
		return
	}
	g.prog.Emit(bytecode.LOAD_VAR, slot.Addr)
}

func (g *Generator) emitUnary(n *ast.Unary) {
	if n.Postfix {
		// x++ / x-- : load, push delta op, store, then undo the store's
		// effect on the expression value by re-loading the pre-increment
		// value (kept simple: RTMC statements using ++/-- as a standalone
		// ExprStmt never observe the produced value).
		g.emitExpr(n.X)
		g.emitExpr(n.X)
		one := g.prog.InternConst(bytecode.IntConst(1))
		g.prog.Emit(bytecode.LOAD_CONST, one)
		if n.Op == token.PlusPlus {
			g.prog.Emit(bytecode.ADD)
		} else {
			g.prog.Emit(bytecode.SUB)
		}
		g.storeInto(n.X)
		return
	}
	g.emitExpr(n.X)
	switch n.Op {
	case token.Minus:
		zero := g.prog.InternConst(bytecode.IntConst(0))
		g.prog.Emit(bytecode.LOAD_CONST, zero)
		g.prog.Emit(bytecode.SUB)
	case token.Not:
		g.prog.Emit(bytecode.NOT)
	case token.Tilde:
		g.prog.Emit(bytecode.NOT)
	case token.PlusPlus, token.MinusMinus:
		dup := n.X
		g.emitExpr(dup)
		one := g.prog.InternConst(bytecode.IntConst(1))
		g.prog.Emit(bytecode.LOAD_CONST, one)
		if n.Op == token.PlusPlus {
			g.prog.Emit(bytecode.ADD)
		} else {
			g.prog.Emit(bytecode.SUB)
		}
		g.storeInto(n.X)
	}
}

func binaryOpcode(op token.Kind) bytecode.Opcode {
	switch op {
	case token.Plus:
		return bytecode.ADD
	case token.Minus:
		return bytecode.SUB
	case token.Star:
		return bytecode.MUL
	case token.Slash:
		return bytecode.DIV
	case token.Percent:
		return bytecode.MOD
	case token.AndAnd, token.Amp:
		return bytecode.AND
	case token.OrOr, token.Pipe:
		return bytecode.OR
	case token.Caret:
		return bytecode.XOR
	case token.Eq:
		return bytecode.EQ
	case token.Neq:
		return bytecode.NEQ
	case token.Lt:
		return bytecode.LT
	case token.Lte:
		return bytecode.LTE
	case token.Gt:
		return bytecode.GT
	case token.Gte:
		return bytecode.GTE
	}
	return bytecode.NOP
}

func (g *Generator) emitAssignment(n *ast.Assignment) {
	switch n.Op {
	case token.Assign:
		g.emitExpr(n.Value)
	case token.PlusAssign, token.MinusAssign, token.StarAssign, token.SlashAssign:
		g.emitExpr(n.Target)
		g.emitExpr(n.Value)
		switch n.Op {
		case token.PlusAssign:
			g.prog.Emit(bytecode.ADD)
		case token.MinusAssign:
			g.prog.Emit(bytecode.SUB)
		case token.StarAssign:
			g.prog.Emit(bytecode.MUL)
		case token.SlashAssign:
			g.prog.Emit(bytecode.DIV)
		}
	}
	g.storeInto(n.Target)
}

// storeInto emits the appropriate STORE_* for an assignment target; the
// value to store must already be on top of the operand stack.
func (g *Generator) storeInto(target ast.Expr) {
	switch t := target.(type) {
	case *ast.Identifier:
		slot, ok := g.lookupVar(t.Name)
		if !ok {
			g.errorf(t.Pos(), "unresolved identifier %q", t.Name)
			return
		}
		g.prog.Emit(bytecode.STORE_VAR, slot.Addr)
	case *ast.Member:
		g.emitStoreMember(t)
	case *ast.ArrayAccess:
		g.emitExpr(t.X)
		g.emitExpr(t.Index)
		g.prog.Emit(bytecode.STORE_ARRAY_ELEM)
	case *ast.Dereference:
		g.emitExpr(t.X)
		g.prog.Emit(bytecode.STORE_DEREF)
	}
}

func (g *Generator) emitCall(n *ast.Call) {
	for _, a := range n.Args {
		g.emitExpr(a)
	}
	if op, ok := intrinsicOpcode(n.Callee); ok {
		g.prog.Emit(op, uint32(len(n.Args)))
		return
	}
	idx := g.prog.Emit(bytecode.CALL, 0, uint32(len(n.Args)))
	g.pending = append(g.pending, patch{instr: idx, operand: 0, funcName: n.Callee})
}

// intrinsicOpcode maps RTOS_*/HW_*/DBG_* call-style intrinsics straight to
// their opcode; argument count travels as the single operand and the VM
// reads its operands off the stack.
func intrinsicOpcode(name string) (bytecode.Opcode, bool) {
	m := map[string]bytecode.Opcode{
		"RTOS_CREATE_TASK":      bytecode.RTOS_CREATE_TASK,
		"RTOS_DELETE_TASK":      bytecode.RTOS_DELETE_TASK,
		"RTOS_DELAY_MS":         bytecode.RTOS_DELAY_MS,
		"RTOS_SEMAPHORE_CREATE": bytecode.RTOS_SEMAPHORE_CREATE,
		"RTOS_SEMAPHORE_TAKE":   bytecode.RTOS_SEMAPHORE_TAKE,
		"RTOS_SEMAPHORE_GIVE":   bytecode.RTOS_SEMAPHORE_GIVE,
		"RTOS_YIELD":            bytecode.RTOS_YIELD,
		"RTOS_SUSPEND_TASK":     bytecode.RTOS_SUSPEND_TASK,
		"RTOS_RESUME_TASK":      bytecode.RTOS_RESUME_TASK,
		"HW_GPIO_INIT":          bytecode.HW_GPIO_INIT,
		"HW_GPIO_SET":           bytecode.HW_GPIO_SET,
		"HW_GPIO_GET":           bytecode.HW_GPIO_GET,
		"HW_TIMER_INIT":         bytecode.HW_TIMER_INIT,
		"HW_TIMER_START":        bytecode.HW_TIMER_START,
		"HW_TIMER_STOP":         bytecode.HW_TIMER_STOP,
		"HW_TIMER_SET_PWM_DUTY": bytecode.HW_TIMER_SET_PWM_DUTY,
		"HW_ADC_INIT":           bytecode.HW_ADC_INIT,
		"HW_ADC_READ":           bytecode.HW_ADC_READ,
		"HW_UART_WRITE":         bytecode.HW_UART_WRITE,
		"HW_SPI_TRANSFER":       bytecode.HW_SPI_TRANSFER,
		"HW_I2C_WRITE":          bytecode.HW_I2C_WRITE,
		"HW_I2C_READ":           bytecode.HW_I2C_READ,
		"print":                 bytecode.DBG_PRINT,
		"printf":                bytecode.DBG_PRINTF,
		"DBG_BREAKPOINT":        bytecode.DBG_BREAKPOINT,
	}
	op, ok := m[name]
	return op, ok
}

func (g *Generator) emitSizeof(n *ast.SizeOf) {
	var size int
	switch {
	case n.TypeArg != nil:
		size = layout.TypeSize(n.TypeArg, g.layout)
	case n.Operand != nil:
		size = layout.TypeSize(n.Operand.ResolvedType(), g.layout)
	}
	idx := g.prog.InternConst(bytecode.IntConst(uint32(size)))
	g.prog.Emit(bytecode.LOAD_CONST, idx)
}

// ---- struct member resolution ----------------------------------------

// resolveMember walks a (possibly nested / pointer-chained) member
// expression down to its base variable, accumulating the byte offset, and
// returns the base variable's address, the accumulated byte offset, and the
// resolved field layout for the final member.
func (g *Generator) resolveMember(n *ast.Member) (baseAddr uint32, byteOffset int, field *layout.FieldLayout, ok bool) {
	structName, chainOffset, baseOK := g.resolveBase(n.X)
	if !baseOK {
		g.errorf(n.Pos(), "cannot resolve base of member access %q", n.Field)
		return 0, 0, nil, false
	}
	sl, found := g.layout.Structs[structName]
	if !found {
		g.errorf(n.Pos(), "unknown struct %q", structName)
		return 0, 0, nil, false
	}
	fl, found := sl.Fields[n.Field]
	if !found {
		// Fallback: search every known struct for a uniquely named field;
		// ambiguity is a generator error.
		var matches []*layout.FieldLayout
		for _, other := range g.layout.Structs {
			if f, ok := other.Fields[n.Field]; ok {
				matches = append(matches, f)
			}
		}
		if len(matches) == 1 {
			fl = matches[0]
		} else if len(matches) > 1 {
			g.errorf(n.Pos(), "ambiguous struct field %q", n.Field)
			return 0, 0, nil, false
		} else {
			g.errorf(n.Pos(), "struct %q has no member %q", structName, n.Field)
			return 0, 0, nil, false
		}
	}
	addr, _, baseAddrOK := g.baseAddress(n.X)
	if !baseAddrOK {
		return 0, 0, nil, false
	}
	return addr, chainOffset + fl.ByteOffset, fl, true
}

// resolveBase finds the declared struct/union type name of x, stripping
// "struct "/pointer wrappers, and the accumulated byte offset for any
// intermediate nested member chain (a.b.c).
func (g *Generator) resolveBase(x ast.Expr) (structName string, offset int, ok bool) {
	switch n := x.(type) {
	case *ast.Identifier:
		slot, found := g.lookupVar(n.Name)
		if !found {
			return "", 0, false
		}
		return typeStructName(slot.Type), 0, true
	case *ast.Member:
		_, parentOffset, field, found := g.resolveMember(n)
		if !found {
			return "", 0, false
		}
		return typeStructName(field.Type), parentOffset, true
	}
	return "", 0, false
}

// baseAddress returns the variable address that anchors a member chain
// (identifier or, after one level of dereference, the pointer's value).
func (g *Generator) baseAddress(x ast.Expr) (uint32, ast.Type, bool) {
	switch n := x.(type) {
	case *ast.Identifier:
		slot, ok := g.lookupVar(n.Name)
		if !ok {
			return 0, nil, false
		}
		return slot.Addr, slot.Type, true
	case *ast.Member:
		addr, _, field, ok := g.resolveMember(n)
		if !ok {
			return 0, nil, false
		}
		return addr, field.Type, true
	}
	return 0, nil, false
}

func typeStructName(t ast.Type) string {
	switch v := t.(type) {
	case *ast.StructType:
		return v.Name
	case *ast.UnionType:
		return v.Name
	case *ast.PointerType:
		return typeStructName(v.Base)
	}
	return ""
}

func (g *Generator) emitLoadMember(n *ast.Member) {
	addr, offset, field, ok := g.resolveMember(n)
	if !ok {
		return
	}
	if field.IsBitField {
		g.prog.Emit(bytecode.LOAD_STRUCT_MEMBER_BIT, addr, uint32(offset), uint32(field.BitOffset), uint32(field.BitWidth))
		return
	}
	g.prog.Emit(bytecode.LOAD_STRUCT_MEMBER, addr, uint32(offset))
}

func (g *Generator) emitStoreMember(n *ast.Member) {
	addr, offset, field, ok := g.resolveMember(n)
	if !ok {
		return
	}
	if field.IsBitField {
		g.prog.Emit(bytecode.STORE_STRUCT_MEMBER_BIT, addr, uint32(offset), uint32(field.BitOffset), uint32(field.BitWidth))
		return
	}
	g.prog.Emit(bytecode.STORE_STRUCT_MEMBER, addr, uint32(offset))
}
