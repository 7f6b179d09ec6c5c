// Package vm implements the RT-Micro-C virtual machine: a cooperative
// task scheduler executing stack-based bytecode over a segmented address
// space, message queues, semaphores, and a simulated hardware board. One
// struct owns the shared state plus a big opcode switch; many
// independently scheduled per-task stacks run against it concurrently.
package vm

import (
	"bufio"
	"os"

	"github.com/rtmc-lang/rtmc/internal/bytecode"
)

// VM is the shared runtime: the loaded program, global memory, every
// task's private memory/stack, message queues, semaphores, and the
// hardware simulator. One VM runs one .vmb program to completion.
type VM struct {
	cfg     Config
	logger  *Logger
	program *bytecode.BytecodeProgram

	globalMem *Memory
	hw        *Hardware

	tasks      []*Task
	nextTaskID uint32

	queues     map[uint32]*MessageQueue
	queueNames map[string]uint32

	sems      map[uint32]*Semaphore
	nextSemID uint32

	clockMs int64
	stdout  *bufio.Writer
}

func New(prog *bytecode.BytecodeProgram, opts ...Option) *VM {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	logger := NewNopLogger()
	if cfg.Debug {
		if l, err := NewLogger(); err == nil {
			logger = l
		}
	}
	return &VM{
		cfg:        cfg,
		logger:     logger,
		program:    prog,
		globalMem:  NewMemory(),
		hw:         NewHardware(),
		queues:     map[uint32]*MessageQueue{},
		queueNames: map[string]uint32{},
		sems:       map[uint32]*Semaphore{},
		stdout:     bufio.NewWriter(os.Stdout),
	}
}

// Hardware exposes the simulated board for tests and the CLI's --run mode
// to inspect after execution (e.g. asserting on UART output).
func (vm *VM) Hardware() *Hardware { return vm.hw }

// LoadGlobal reads one global scalar slot, for tests asserting on a
// program's final state without a debugger attached.
func (vm *VM) LoadGlobal(addr uint32) uint32 { return vm.globalMem.Load(addr) }

// Run executes the loaded program's entry trampoline (CALL main, HALT) to
// completion: every task reaches TaskDeleted or becomes permanently
// unrunnable. Run never aborts on a single task's VMError; it records the
// error on that Task and keeps scheduling the rest.
func (vm *VM) Run() error {
	vm.Start()
	for vm.Step() {
	}
	vm.stdout.Flush()
	return nil
}

// Start seeds the scheduler with the program's entry task. Callers driving
// the VM one round at a time via Step (the debug REPL) call Start once
// before the first Step.
func (vm *VM) Start() {
	main := NewTask(vm.allocTaskID(), "main", 0)
	vm.tasks = append(vm.tasks, main)
	vm.logger.TaskStarted(main.Name, main.ID)
}

// Step runs one scheduling round: every ready task executes until it
// blocks, yields, or halts, and any due deadlines unblock their tasks
// first. It reports whether further rounds remain (false once nothing is
// runnable and the clock has nothing left to advance to), letting the
// debug REPL single-step the whole scheduler one round at a time.
func (vm *VM) Step() bool {
	if !vm.anyRunnable() {
		return false
	}
	progressed := false
	for _, t := range vm.tasks {
		vm.unblockIfDue(t)
		if t.State != TaskReady {
			continue
		}
		vm.runSlice(t)
		progressed = true
	}
	if !progressed {
		if !vm.advanceClockToNextDeadline() {
			return false
		}
	}
	return vm.anyRunnable()
}

// Tasks returns every task the scheduler has created, for tests that
// assert on final state (e.g. Task.Err, Task.State), and for the debug
// REPL to print between Step rounds.
func (vm *VM) Tasks() []*Task { return vm.tasks }

// Flush drains buffered DBG_PRINT/DBG_PRINTF output, so a debug REPL that
// calls Step repeatedly sees output as it happens rather than only at exit.
func (vm *VM) Flush() error { return vm.stdout.Flush() }

func (vm *VM) allocTaskID() uint32 {
	id := vm.nextTaskID
	vm.nextTaskID++
	return id
}

func (vm *VM) anyRunnable() bool {
	for _, t := range vm.tasks {
		if t.State == TaskReady || t.State == TaskBlocked {
			return true
		}
	}
	return false
}

// unblockIfDue wakes a task whose wait condition has been satisfied: a
// message arrived on the queue it is receiving from, or its delay/receive
// timeout deadline has passed.
func (vm *VM) unblockIfDue(t *Task) {
	if t.State != TaskBlocked {
		return
	}
	switch t.BlockedOn {
	case "recv-wait":
		if q, ok := vm.queues[t.BlockedQueue]; ok {
			if v, ok := q.TryRecv(); ok {
				t.Push(v)
				t.State = TaskReady
				t.BlockedOn = ""
			}
		}
	case "recv-timeout":
		if q, ok := vm.queues[t.BlockedQueue]; ok {
			if v, ok := q.TryRecv(); ok {
				t.Push(v)
				t.State = TaskReady
				t.BlockedOn = ""
				return
			}
		}
		if t.DelayUntil <= vm.clockMs {
			t.Push(recvTimeoutSentinel)
			t.State = TaskReady
			t.BlockedOn = ""
		}
	default: // "delay"
		if t.DelayUntil <= vm.clockMs {
			t.State = TaskReady
			t.BlockedOn = ""
		}
	}
}

// advanceClockToNextDeadline jumps the simulated clock forward to the
// earliest pending deadline among tasks blocked with one ("delay" or
// "recv-timeout"); a task blocked on "recv-wait" has no deadline and can
// only be woken by a send, so it is excluded from this computation. This
// discrete-event-simulation technique lets timeout behavior run
// deterministically without a real wall-clock sleep.
func (vm *VM) advanceClockToNextDeadline() bool {
	best := int64(-1)
	for _, t := range vm.tasks {
		if t.State != TaskBlocked || t.BlockedOn == "recv-wait" {
			continue
		}
		if best == -1 || t.DelayUntil < best {
			best = t.DelayUntil
		}
	}
	if best == -1 {
		return false
	}
	vm.clockMs = best
	return true
}

// runSlice executes instructions for task t until it blocks, yields,
// halts, or terminates with an error.
func (vm *VM) runSlice(t *Task) {
	t.State = TaskRunning
	for t.State == TaskRunning {
		if int(t.PC) >= len(vm.program.Instructions) {
			t.State = TaskDeleted
			vm.logger.TaskStopped(t.Name, t.ID, nil)
			return
		}
		instr := vm.program.Instructions[t.PC]
		if err := vm.step(t, instr); err != nil {
			t.Err = err
			t.State = TaskDeleted
			vm.logger.TaskStopped(t.Name, t.ID, err)
			return
		}
	}
}

func (vm *VM) memFor(t *Task, addr uint32) (*Memory, uint32) {
	if addr < 10000 {
		return vm.globalMem, addr
	}
	return t.mem(), t.resolveAddr(addr)
}

func (vm *VM) pop(t *Task) (uint32, error) {
	v, ok := t.Pop()
	if !ok {
		return 0, ErrStackUnderflow
	}
	return v, nil
}
