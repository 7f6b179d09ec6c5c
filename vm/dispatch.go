package vm

import (
	"fmt"

	"github.com/rtmc-lang/rtmc/internal/bytecode"
)

// step executes one instruction for t, advancing its PC (unless the
// instruction itself sets it, as JUMP/CALL/RET do). A non-nil error is a
// VMError that terminates only this task.
func (vm *VM) step(t *Task, instr bytecode.Instruction) error {
	advance := true
	defer func() {
		if advance {
			t.PC++
		}
	}()

	switch instr.Op {
	case bytecode.NOP, bytecode.COMMENT:
		// no-op

	case bytecode.JUMP:
		t.PC = instr.Operand[0]
		advance = false

	case bytecode.JUMPIF_TRUE:
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		if v != 0 {
			t.PC = instr.Operand[0]
			advance = false
		}

	case bytecode.JUMPIF_FALSE:
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		if v == 0 {
			t.PC = instr.Operand[0]
			advance = false
		}

	case bytecode.CALL:
		return vm.doCall(t, instr, &advance)

	case bytecode.RET:
		return vm.doReturn(t, &advance)

	case bytecode.LOAD_CONST:
		c := vm.program.Constants[instr.Operand[0]]
		switch c.Tag {
		case bytecode.ConstInt:
			t.Push(c.Int)
		case bytecode.ConstFloat:
			t.Push(floatBits(c.Float))
		case bytecode.ConstString:
			t.Push(instr.Operand[0])
		}

	case bytecode.LOAD_VAR:
		mem, addr := vm.memFor(t, instr.Operand[0])
		if mem.HasArray(addr) {
			// Array-typed variables decay to their base address (the raw,
			// unresolved slot number: whoever consumes it resolves again
			// via memFor at the point of actual access, just like LOAD_ADDR).
			t.Push(instr.Operand[0])
		} else {
			t.Push(mem.Load(addr))
		}

	case bytecode.STORE_VAR:
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		mem, addr := vm.memFor(t, instr.Operand[0])
		mem.Store(addr, v)

	case bytecode.LOAD_STRUCT_MEMBER:
		mem, addr := vm.memFor(t, instr.Operand[0])
		v, err := mem.LoadStructMember(addr, instr.Operand[1])
		if err != nil {
			return err
		}
		t.Push(v)

	case bytecode.STORE_STRUCT_MEMBER:
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		mem, addr := vm.memFor(t, instr.Operand[0])
		if err := mem.StoreStructMember(addr, instr.Operand[1], v); err != nil {
			return err
		}

	case bytecode.LOAD_STRUCT_MEMBER_BIT:
		mem, addr := vm.memFor(t, instr.Operand[0])
		v, err := mem.LoadStructMemberBit(addr, instr.Operand[1], instr.Operand[2], instr.Operand[3])
		if err != nil {
			return err
		}
		t.Push(v)

	case bytecode.STORE_STRUCT_MEMBER_BIT:
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		mem, addr := vm.memFor(t, instr.Operand[0])
		if err := mem.StoreStructMemberBit(addr, instr.Operand[1], instr.Operand[2], instr.Operand[3], v); err != nil {
			return err
		}

	case bytecode.LOAD_ADDR:
		// Pushes the raw, unresolved slot number; whatever later consumes
		// this pointer (LOAD_DEREF/STORE_DEREF) resolves it via memFor at
		// the point of actual access, so a pointer taken inside one call
		// frame still addresses that frame's locals when dereferenced
		// within the same activation.
		t.Push(instr.Operand[0])

	case bytecode.LOAD_DEREF:
		addr, err := vm.pop(t)
		if err != nil {
			return err
		}
		if addr == 0 {
			return ErrNullPointer
		}
		mem, resolved := vm.memFor(t, addr)
		t.Push(mem.Load(resolved))

	case bytecode.STORE_DEREF:
		addr, err := vm.pop(t)
		if err != nil {
			return err
		}
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		if addr == 0 {
			return ErrNullPointer
		}
		mem, resolved := vm.memFor(t, addr)
		mem.Store(resolved, v)

	case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD,
		bytecode.AND, bytecode.OR, bytecode.XOR,
		bytecode.EQ, bytecode.NEQ, bytecode.LT, bytecode.LTE, bytecode.GT, bytecode.GTE:
		return vm.doBinary(t, instr.Op)

	case bytecode.NOT:
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		if v == 0 {
			t.Push(1)
		} else {
			t.Push(0)
		}

	case bytecode.ALLOC_VAR:
		mem, addr := vm.memFor(t, instr.Operand[0])
		mem.Store(addr, 0)

	case bytecode.FREE_VAR:
		mem, addr := vm.memFor(t, instr.Operand[0])
		mem.Free(addr)

	case bytecode.ALLOC_STRUCT:
		mem, addr := vm.memFor(t, instr.Operand[0])
		mem.AllocStruct(addr, instr.Operand[1])

	case bytecode.ALLOC_FRAME:
		// Parameter slots are already populated by CALL (or are the
		// top-level task entry, which takes no parameters); nothing
		// further to reserve.

	case bytecode.FREE_FRAME:
		base, size := instr.Operand[0], instr.Operand[1]
		start, end := localRangeForDepth(t.CallDepth, base, size)
		for a := start; a < end; a++ {
			t.mem().Free(a)
		}

	case bytecode.ALLOC_ARRAY:
		mem, addr := vm.memFor(t, instr.Operand[0])
		mem.AllocArray(addr, instr.Operand[1])

	case bytecode.LOAD_ARRAY_ELEM:
		idx, err := vm.pop(t)
		if err != nil {
			return err
		}
		base, err := vm.pop(t)
		if err != nil {
			return err
		}
		mem, addr := vm.memFor(t, base)
		v, err := mem.LoadArrayElem(addr, idx)
		if err != nil {
			return err
		}
		t.Push(v)

	case bytecode.STORE_ARRAY_ELEM:
		// Array declarations with a literal initializer emit this with
		// [addr, index] operands and only the value on the stack; every
		// other array store emits it bare, with base/index/value all on
		// the stack (base pushed first, per emitAssignment's storeInto).
		if len(instr.Operand) == 2 {
			v, err := vm.pop(t)
			if err != nil {
				return err
			}
			mem, addr := vm.memFor(t, instr.Operand[0])
			return mem.StoreArrayElem(addr, instr.Operand[1], v)
		}
		idx, err := vm.pop(t)
		if err != nil {
			return err
		}
		base, err := vm.pop(t)
		if err != nil {
			return err
		}
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		mem, addr := vm.memFor(t, base)
		if err := mem.StoreArrayElem(addr, idx, v); err != nil {
			return err
		}

	case bytecode.GLOBAL_VAR_DECLARE:
		vm.globalMem.Store(instr.Operand[0], 0)

	case bytecode.RTOS_CREATE_TASK:
		return vm.doCreateTask(t)
	case bytecode.RTOS_DELETE_TASK:
		return vm.doDeleteTask(t)
	case bytecode.RTOS_DELAY_MS:
		return vm.doDelay(t)
	case bytecode.RTOS_SEMAPHORE_CREATE:
		id := vm.nextSemID
		vm.nextSemID++
		vm.sems[id] = NewSemaphore()
		t.Push(id)
	case bytecode.RTOS_SEMAPHORE_TAKE:
		// A compiled-in timeout argument sits above the id and is
		// discarded: Take never waits.
		if len(instr.Operand) > 0 && instr.Operand[0] >= 2 {
			if _, err := vm.pop(t); err != nil {
				return err
			}
		}
		return vm.doSemaphoreTake(t)
	case bytecode.RTOS_SEMAPHORE_GIVE:
		return vm.doSemaphoreGive(t)
	case bytecode.RTOS_YIELD:
		t.State = TaskReady
		advance = true

	case bytecode.RTOS_SUSPEND_TASK:
		return vm.doSuspend(t)
	case bytecode.RTOS_RESUME_TASK:
		return vm.doResume(t)

	case bytecode.MSG_DECLARE:
		vm.queues[instr.Operand[0]] = NewMessageQueue(vm.cfg.QueueCapacity)

	case bytecode.MSG_SEND:
		return vm.doSend(t, instr)
	case bytecode.MSG_RECV:
		return vm.doRecv(t, instr, &advance)

	case bytecode.HW_GPIO_INIT:
		return vm.doHWGPIOInit(t)
	case bytecode.HW_GPIO_SET:
		return vm.doHWGPIOSet(t)
	case bytecode.HW_GPIO_GET:
		return vm.doHWGPIOGet(t)
	case bytecode.HW_TIMER_INIT:
		return vm.doHWTimerInit(t)
	case bytecode.HW_TIMER_START:
		return vm.doHWTimerStart(t)
	case bytecode.HW_TIMER_STOP:
		return vm.doHWTimerStop(t)
	case bytecode.HW_TIMER_SET_PWM_DUTY:
		return vm.doHWTimerSetPWM(t)
	case bytecode.HW_ADC_INIT:
		return vm.doHWADCInit(t)
	case bytecode.HW_ADC_READ:
		return vm.doHWADCRead(t)
	case bytecode.HW_UART_WRITE:
		return vm.doHWUARTWrite(t)
	case bytecode.HW_SPI_TRANSFER:
		return vm.doHWSPITransfer(t)
	case bytecode.HW_I2C_WRITE:
		return vm.doHWI2CWrite(t)
	case bytecode.HW_I2C_READ:
		return vm.doHWI2CRead(t)

	case bytecode.DBG_PRINT:
		return vm.doPrint(t, instr)
	case bytecode.DBG_PRINTF:
		return vm.doPrintf(t, instr)
	case bytecode.DBG_BREAKPOINT:
		vm.logger.Breakpoint(t.Name, t.PC)
	case bytecode.SYSCALL:
		// No host syscalls are defined for the simulated target; treated
		// as a no-op extension point.

	case bytecode.HALT:
		t.State = TaskDeleted
		advance = false

	default:
		return fmt.Errorf("%w: %d", ErrInvalidOpcode, instr.Op)
	}
	return nil
}

func (vm *VM) doBinary(t *Task, op bytecode.Opcode) error {
	b, err := vm.pop(t)
	if err != nil {
		return err
	}
	a, err := vm.pop(t)
	if err != nil {
		return err
	}
	ai, bi := int32(a), int32(b)
	switch op {
	case bytecode.ADD:
		t.Push(a + b)
	case bytecode.SUB:
		t.Push(a - b)
	case bytecode.MUL:
		t.Push(a * b)
	case bytecode.DIV:
		if b == 0 {
			return ErrDivideByZero
		}
		t.Push(uint32(ai / bi))
	case bytecode.MOD:
		if b == 0 {
			return ErrModuloByZero
		}
		t.Push(uint32(ai % bi))
	case bytecode.AND:
		t.Push(a & b)
	case bytecode.OR:
		t.Push(a | b)
	case bytecode.XOR:
		t.Push(a ^ b)
	case bytecode.EQ:
		t.Push(boolU32(a == b))
	case bytecode.NEQ:
		t.Push(boolU32(a != b))
	case bytecode.LT:
		t.Push(boolU32(ai < bi))
	case bytecode.LTE:
		t.Push(boolU32(ai <= bi))
	case bytecode.GT:
		t.Push(boolU32(ai > bi))
	case bytecode.GTE:
		t.Push(boolU32(ai >= bi))
	}
	return nil
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
