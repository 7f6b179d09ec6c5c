package vm

import "github.com/google/uuid"

// paramBase is the first address in the parameter segment; mirrors
// internal/codegen's identical constant, since both sides of the bytecode
// boundary must agree on where parameter slots start.
const paramBase = 10000

// TaskState is the RTOS task lifecycle state.
type TaskState int

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskBlocked
	TaskSuspended
	TaskDeleted
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskSuspended:
		return "suspended"
	case TaskDeleted:
		return "deleted"
	}
	return "unknown"
}

// callFrame is pushed on CALL and popped on RET: the return address plus
// the caller's pre-call parameter-slot values, restored after the callee
// returns.
type callFrame struct {
	returnAddr   uint32
	savedParams  map[uint32]uint32
}

// Task is one independently scheduled RTMC task: its own program counter,
// operand stack, call stack, and call depth — the segmented address space
// is derived from CallDepth at every LOAD_VAR/STORE_VAR.
type Task struct {
	ID    uint32
	UUID  uuid.UUID
	Name  string
	State TaskState

	PC         uint32
	Operands   []uint32
	CallStack  []callFrame
	CallDepth  int

	// DelayUntil is a simulated-millisecond deadline; the scheduler will
	// not run this task again until the clock reaches it.
	DelayUntil int64

	// BlockedOn names the category a Blocked task is waiting on: "delay",
	// "recv-wait" (no deadline, woken only when its queue gets a send), or
	// "recv-timeout" (woken by either a send or DelayUntil, whichever is
	// first). BlockedQueue names the queue for the two recv cases.
	BlockedOn    string
	BlockedQueue uint32

	Err error // set if a VMError terminated this task

	privateMem *Memory // this task's parameter/local address space
}

// mem lazily creates this task's private parameter/local memory.
func (t *Task) mem() *Memory {
	if t.privateMem == nil {
		t.privateMem = NewMemory()
	}
	return t.privateMem
}

func NewTask(id uint32, name string, entry uint32) *Task {
	return &Task{
		ID:    id,
		UUID:  uuid.New(),
		Name:  name,
		State: TaskReady,
		PC:    entry,
	}
}

func (t *Task) Push(v uint32) { t.Operands = append(t.Operands, v) }

func (t *Task) Pop() (uint32, bool) {
	if len(t.Operands) == 0 {
		return 0, false
	}
	v := t.Operands[len(t.Operands)-1]
	t.Operands = t.Operands[:len(t.Operands)-1]
	return v, true
}

// resolveAddr remaps a bytecode-level address to the concrete memory slot
// this task should touch: addresses below 10000 are globals (shared,
// untouched); addresses below 20000 are the current call's parameter
// slots; everything else is a local rebased by call depth so recursive
// calls never alias each other's locals.
func (t *Task) resolveAddr(addr uint32) uint32 {
	switch {
	case addr < 10000:
		return addr
	case addr < 20000:
		return addr
	default:
		return uint32(20000+t.CallDepth*1000) + (addr - 20000)
	}
}

// localRangeForDepth returns the [start, start+size) local address range
// belonging to the call at the given depth, for FREE_FRAME.
func localRangeForDepth(depth int, base, size uint32) (uint32, uint32) {
	start := uint32(20000+depth*1000) + (base - 20000)
	return start, start + size
}
