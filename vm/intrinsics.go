package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rtmc-lang/rtmc/internal/bytecode"
)

// popN pops n values off t's operand stack and returns them in the order
// they were originally pushed (arg0..argN-1), matching how emitCall pushes
// call arguments left to right before emitting the opcode.
func (vm *VM) popN(t *Task, n uint32) ([]uint32, error) {
	out := make([]uint32, n)
	for i := int(n) - 1; i >= 0; i-- {
		v, err := vm.pop(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// constString resolves a constant-pool index to its string payload. ok is
// false if the index is out of range or doesn't name a string constant.
func (vm *VM) constString(idx uint32) (string, bool) {
	if int(idx) < len(vm.program.Constants) {
		c := vm.program.Constants[idx]
		if c.Tag == bytecode.ConstString {
			return c.Str, true
		}
	}
	return "", false
}

func (vm *VM) findTask(id uint32) *Task {
	for _, other := range vm.tasks {
		if other.ID == id {
			return other
		}
	}
	return nil
}

// ---- calls / returns ----------------------------------------------------

// doCall implements a reentrant calling convention: arguments are popped
// off the stack and written into the shared parameter slots (10000+i), but
// the caller's prior values in those same slots are saved on a call frame
// first and restored by the matching RET, so a recursive call never
// clobbers an ancestor's parameters.
func (vm *VM) doCall(t *Task, instr bytecode.Instruction, advance *bool) error {
	target, paramCount := instr.Operand[0], instr.Operand[1]
	args, err := vm.popN(t, paramCount)
	if err != nil {
		return err
	}
	saved := make(map[uint32]uint32, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		addr := paramBase + i
		saved[addr] = t.mem().Load(addr)
	}
	for i, v := range args {
		t.mem().Store(paramBase+uint32(i), v)
	}
	t.CallStack = append(t.CallStack, callFrame{returnAddr: t.PC + 1, savedParams: saved})
	t.CallDepth++
	t.PC = target
	*advance = false
	return nil
}

func (vm *VM) doReturn(t *Task, advance *bool) error {
	if len(t.CallStack) == 0 {
		return ErrNoActiveCall
	}
	frame := t.CallStack[len(t.CallStack)-1]
	t.CallStack = t.CallStack[:len(t.CallStack)-1]
	for addr, v := range frame.savedParams {
		t.mem().Store(addr, v)
	}
	t.CallDepth--
	t.PC = frame.returnAddr
	*advance = false
	return nil
}

// ---- RTOS task/semaphore intrinsics --------------------------------------

// doCreateTask spawns a new task whose entry point is the address left on
// the stack (a function resolved at compile time) and pushes the new
// task's id, giving the calling program a handle it can pass to
// RTOS_DELETE_TASK/SUSPEND/RESUME.
func (vm *VM) doCreateTask(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	entry := args[0]
	id := vm.allocTaskID()
	name := fmt.Sprintf("task%d", id)
	nt := NewTask(id, name, entry)
	vm.tasks = append(vm.tasks, nt)
	vm.logger.TaskStarted(name, id)
	t.Push(id)
	return nil
}

func (vm *VM) doDeleteTask(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	target := vm.findTask(args[0])
	if target == nil {
		return ErrInvalidTaskID
	}
	target.State = TaskDeleted
	vm.logger.TaskStopped(target.Name, target.ID, nil)
	return nil
}

func (vm *VM) doDelay(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	t.DelayUntil = vm.clockMs + int64(args[0])
	t.BlockedOn = "delay"
	t.State = TaskBlocked
	return nil
}

func (vm *VM) doSemaphoreTake(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	sem, ok := vm.sems[args[0]]
	if !ok {
		return ErrInvalidSemaphoreID
	}
	t.Push(boolU32(sem.Take()))
	return nil
}

func (vm *VM) doSemaphoreGive(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	sem, ok := vm.sems[args[0]]
	if !ok {
		return ErrInvalidSemaphoreID
	}
	sem.Give()
	return nil
}

func (vm *VM) doSuspend(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	target := vm.findTask(args[0])
	if target == nil {
		return ErrInvalidTaskID
	}
	target.State = TaskSuspended
	return nil
}

func (vm *VM) doResume(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	target := vm.findTask(args[0])
	if target == nil {
		return ErrInvalidTaskID
	}
	if target.State == TaskSuspended {
		target.State = TaskReady
	}
	return nil
}

// ---- message queues -------------------------------------------------------

func (vm *VM) doSend(t *Task, instr bytecode.Instruction) error {
	id := instr.Operand[0]
	v, err := vm.pop(t)
	if err != nil {
		return err
	}
	q, ok := vm.queues[id]
	if !ok {
		return ErrInvalidMessageID
	}
	if !q.Send(v) {
		vm.logger.QueueFull(fmt.Sprintf("queue%d", id))
	}
	return nil
}

// doRecv implements message-receive semantics: an available message is
// popped immediately; otherwise the task blocks, either forever (until a
// send arrives, for the argument-less "effectively blocking" form) or
// until a deadline, after which recvTimeoutSentinel is delivered instead.
func (vm *VM) doRecv(t *Task, instr bytecode.Instruction, advance *bool) error {
	id := instr.Operand[0]
	var timeout uint32
	if len(instr.Operand) >= 2 {
		timeout = instr.Operand[1]
	} else {
		v, err := vm.pop(t)
		if err != nil {
			return err
		}
		timeout = v
	}
	q, ok := vm.queues[id]
	if !ok {
		return ErrInvalidMessageID
	}
	if v, ok := q.TryRecv(); ok {
		t.Push(v)
		return nil
	}
	t.BlockedQueue = id
	if timeout == blockingRecvValue {
		t.BlockedOn = "recv-wait"
	} else {
		t.DelayUntil = vm.clockMs + int64(timeout)
		t.BlockedOn = "recv-timeout"
	}
	t.State = TaskBlocked
	*advance = true
	return nil
}

// ---- hardware intrinsics ---------------------------------------------------

func (vm *VM) doHWGPIOInit(t *Task) error {
	args, err := vm.popN(t, 2)
	if err != nil {
		return err
	}
	vm.hw.GPIOInit(args[0], args[1])
	return nil
}

func (vm *VM) doHWGPIOSet(t *Task) error {
	args, err := vm.popN(t, 2)
	if err != nil {
		return err
	}
	return vm.hw.GPIOSet(args[0], args[1])
}

func (vm *VM) doHWGPIOGet(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	v, err := vm.hw.GPIOGet(args[0])
	if err != nil {
		return err
	}
	t.Push(v)
	return nil
}

func (vm *VM) doHWTimerInit(t *Task) error {
	args, err := vm.popN(t, 2)
	if err != nil {
		return err
	}
	vm.hw.TimerInit(args[0], args[1])
	return nil
}

func (vm *VM) doHWTimerStart(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	return vm.hw.TimerStart(args[0])
}

func (vm *VM) doHWTimerStop(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	return vm.hw.TimerStop(args[0])
}

func (vm *VM) doHWTimerSetPWM(t *Task) error {
	args, err := vm.popN(t, 2)
	if err != nil {
		return err
	}
	return vm.hw.TimerSetPWMDuty(args[0], args[1])
}

func (vm *VM) doHWADCInit(t *Task) error {
	args, err := vm.popN(t, 2)
	if err != nil {
		return err
	}
	vm.hw.ADCInit(args[0], args[1])
	return nil
}

func (vm *VM) doHWADCRead(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	v, err := vm.hw.ADCRead(args[0])
	if err != nil {
		return err
	}
	t.Push(v)
	return nil
}

func (vm *VM) doHWUARTWrite(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	vm.hw.UARTWrite(byte(args[0]))
	return nil
}

func (vm *VM) doHWSPITransfer(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	t.Push(uint32(vm.hw.SPITransfer(byte(args[0]))))
	return nil
}

func (vm *VM) doHWI2CWrite(t *Task) error {
	args, err := vm.popN(t, 2)
	if err != nil {
		return err
	}
	vm.hw.I2CWrite(args[0], byte(args[1]))
	return nil
}

func (vm *VM) doHWI2CRead(t *Task) error {
	args, err := vm.popN(t, 1)
	if err != nil {
		return err
	}
	v, err := vm.hw.I2CRead(args[0])
	if err != nil {
		return err
	}
	t.Push(uint32(v))
	return nil
}

// ---- debug print intrinsics -----------------------------------------------

func (vm *VM) doPrint(t *Task, instr bytecode.Instruction) error {
	args, err := vm.popN(t, instr.Operand[0])
	if err != nil {
		return err
	}
	parts := make([]string, len(args))
	for i, v := range args {
		if s, ok := vm.constString(v); ok {
			parts[i] = s
		} else {
			parts[i] = fmt.Sprintf("%d", int32(v))
		}
	}
	fmt.Fprintln(vm.stdout, strings.Join(parts, " "))
	return nil
}

// doPrintf renders a format string held in the constant pool against the
// remaining popped arguments, substituting numbered ("{0}", "{1}", ...) and
// positional ("{}") placeholders with each argument's decimal value.
// Numbered placeholders are resolved first; any "{}" left afterward are
// filled in left to right from the arguments not already consumed by a
// numbered reference.
func (vm *VM) doPrintf(t *Task, instr bytecode.Instruction) error {
	args, err := vm.popN(t, instr.Operand[0])
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	format, _ := vm.constString(args[0])
	rest := args[1:]
	fmt.Fprint(vm.stdout, substitutePlaceholders(format, rest))
	return nil
}

func substitutePlaceholders(format string, args []uint32) string {
	out := format
	used := make([]bool, len(args))
	for i, v := range args {
		placeholder := "{" + strconv.Itoa(i) + "}"
		if strings.Contains(out, placeholder) {
			out = strings.ReplaceAll(out, placeholder, strconv.FormatInt(int64(int32(v)), 10))
			used[i] = true
		}
	}
	ai := 0
	for strings.Contains(out, "{}") {
		for ai < len(args) && used[ai] {
			ai++
		}
		if ai >= len(args) {
			break
		}
		out = strings.Replace(out, "{}", strconv.FormatInt(int64(int32(args[ai])), 10), 1)
		ai++
	}
	return out
}
