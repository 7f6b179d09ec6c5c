package vm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/bytecode"
)

func newProgram(instrs ...bytecode.Instruction) *bytecode.BytecodeProgram {
	p := bytecode.NewProgram()
	p.Instructions = instrs
	return p
}

func emit(op bytecode.Opcode, operands ...uint32) bytecode.Instruction {
	return bytecode.Instruction{Op: op, Operand: operands}
}

// TestArithmeticAndGlobalStore folds two constants and stores the
// result in a global slot.
func TestArithmeticAndGlobalStore(t *testing.T) {
	prog := newProgram(
		emit(bytecode.LOAD_CONST, 0),
		emit(bytecode.LOAD_CONST, 1),
		emit(bytecode.ADD),
		emit(bytecode.STORE_VAR, 0),
		emit(bytecode.HALT),
	)
	prog.Constants = []bytecode.Const{bytecode.IntConst(2), bytecode.IntConst(3)}

	machine := New(prog)
	require.NoError(t, machine.Run())
	require.Equal(t, uint32(5), machine.LoadGlobal(0))
}

func TestDivideByZeroTerminatesOnlyThatTask(t *testing.T) {
	prog := newProgram(
		emit(bytecode.LOAD_CONST, 0),
		emit(bytecode.LOAD_CONST, 1),
		emit(bytecode.DIV),
		emit(bytecode.HALT),
	)
	prog.Constants = []bytecode.Const{bytecode.IntConst(1), bytecode.IntConst(0)}

	machine := New(prog)
	require.NoError(t, machine.Run())
	tasks := machine.Tasks()
	require.Len(t, tasks, 1)
	require.ErrorIs(t, tasks[0].Err, ErrDivideByZero)
	require.Equal(t, TaskDeleted, tasks[0].State)
}

// TestFactorialRecursion builds fact(3) bytecode directly, verifying
// recursive CALL/RET never corrupts a shared parameter slot across call
// depths and that the final result is correct.
func TestFactorialRecursion(t *testing.T) {
	const paramAddr = uint32(10000)
	const factEntry = uint32(6)

	instrs := []bytecode.Instruction{
		emit(bytecode.LOAD_CONST, 0),        // 0: push 3
		emit(bytecode.STORE_VAR, paramAddr), // 1: param0 = 3
		emit(bytecode.LOAD_VAR, paramAddr),  // 2
		emit(bytecode.CALL, factEntry, 1),   // 3
		emit(bytecode.STORE_VAR, 0),         // 4: global0 = fact(3)
		emit(bytecode.HALT),                 // 5

		// fact(n) entry @6
		emit(bytecode.LOAD_VAR, paramAddr),  // 6: n
		emit(bytecode.LOAD_CONST, 1),        // 7: 1
		emit(bytecode.LTE),                  // 8: n<=1
		emit(bytecode.JUMPIF_FALSE, 12),     // 9
		emit(bytecode.LOAD_CONST, 1),        // 10: base case
		emit(bytecode.JUMP, 18),             // 11
		emit(bytecode.LOAD_VAR, paramAddr),  // 12: n
		emit(bytecode.LOAD_VAR, paramAddr),  // 13: n
		emit(bytecode.LOAD_CONST, 1),        // 14
		emit(bytecode.SUB),                  // 15: n-1
		emit(bytecode.CALL, factEntry, 1),   // 16: fact(n-1)
		emit(bytecode.MUL),                  // 17: n * fact(n-1)
		emit(bytecode.RET),                  // 18
	}
	prog := newProgram(instrs...)
	prog.Constants = []bytecode.Const{bytecode.IntConst(3), bytecode.IntConst(1)}

	machine := New(prog)
	require.NoError(t, machine.Run())
	require.Equal(t, uint32(6), machine.LoadGlobal(0))
	for _, task := range machine.Tasks() {
		require.NoError(t, task.Err)
		require.Equal(t, 0, task.CallDepth)
		require.Empty(t, task.CallStack)
	}
}

func TestArrayDecayAndElementAccess(t *testing.T) {
	const arrAddr = uint32(1)
	instrs := []bytecode.Instruction{
		emit(bytecode.ALLOC_ARRAY, arrAddr, 4),
		emit(bytecode.LOAD_CONST, 0),           // value 42
		emit(bytecode.LOAD_VAR, arrAddr),       // base decays to raw array addr
		emit(bytecode.LOAD_CONST, 1),           // index 2
		emit(bytecode.STORE_ARRAY_ELEM),        // arr[2] = 42
		emit(bytecode.LOAD_VAR, arrAddr),       // base
		emit(bytecode.LOAD_CONST, 1),           // index 2
		emit(bytecode.LOAD_ARRAY_ELEM),
		emit(bytecode.STORE_VAR, 0),
		emit(bytecode.HALT),
	}
	prog := newProgram(instrs...)
	prog.Constants = []bytecode.Const{bytecode.IntConst(42), bytecode.IntConst(2)}

	machine := New(prog)
	require.NoError(t, machine.Run())
	require.Equal(t, uint32(42), machine.LoadGlobal(0))
}

func TestPointerLoadStoreDeref(t *testing.T) {
	const varAddr = uint32(2)
	instrs := []bytecode.Instruction{
		emit(bytecode.ALLOC_VAR, varAddr),
		emit(bytecode.LOAD_CONST, 0),      // 7
		emit(bytecode.LOAD_ADDR, varAddr), // &var
		emit(bytecode.STORE_DEREF),        // *p = 7
		emit(bytecode.LOAD_ADDR, varAddr),
		emit(bytecode.LOAD_DEREF),
		emit(bytecode.STORE_VAR, 0),
		emit(bytecode.HALT),
	}
	prog := newProgram(instrs...)
	prog.Constants = []bytecode.Const{bytecode.IntConst(7)}

	machine := New(prog)
	require.NoError(t, machine.Run())
	require.Equal(t, uint32(7), machine.LoadGlobal(0))
}

func TestNullPointerDereferenceIsVMError(t *testing.T) {
	instrs := []bytecode.Instruction{
		emit(bytecode.LOAD_CONST, 0), // 0 == null
		emit(bytecode.LOAD_DEREF),
		emit(bytecode.HALT),
	}
	prog := newProgram(instrs...)
	prog.Constants = []bytecode.Const{bytecode.IntConst(0)}

	machine := New(prog)
	require.NoError(t, machine.Run())
	require.ErrorIs(t, machine.Tasks()[0].Err, ErrNullPointer)
}

// TestSemaphoreTakeGive covers a binary semaphore cycling available/taken.
func TestSemaphoreTakeGive(t *testing.T) {
	instrs := []bytecode.Instruction{
		emit(bytecode.RTOS_SEMAPHORE_CREATE),
		emit(bytecode.STORE_VAR, 0), // global0 = sem id
		emit(bytecode.LOAD_VAR, 0),
		emit(bytecode.RTOS_SEMAPHORE_TAKE), // succeeds (binary sem starts available)
		emit(bytecode.STORE_VAR, 1),        // global1 = true
		emit(bytecode.LOAD_VAR, 0),
		emit(bytecode.RTOS_SEMAPHORE_TAKE), // fails, already taken
		emit(bytecode.STORE_VAR, 2),        // global2 = false
		emit(bytecode.HALT),
	}
	prog := newProgram(instrs...)
	machine := New(prog)
	require.NoError(t, machine.Run())
	require.Equal(t, uint32(1), machine.LoadGlobal(1))
	require.Equal(t, uint32(0), machine.LoadGlobal(2))
}

// TestMessageSendRecvFIFO: two sends are received in send order.
func TestMessageSendRecvFIFO(t *testing.T) {
	instrs := []bytecode.Instruction{
		emit(bytecode.MSG_DECLARE, 0),
		emit(bytecode.LOAD_CONST, 0), // 10
		emit(bytecode.MSG_SEND, 0),
		emit(bytecode.LOAD_CONST, 1), // 20
		emit(bytecode.MSG_SEND, 0),
		emit(bytecode.MSG_RECV, 0, blockingRecvValue),
		emit(bytecode.STORE_VAR, 0),
		emit(bytecode.MSG_RECV, 0, blockingRecvValue),
		emit(bytecode.STORE_VAR, 1),
		emit(bytecode.HALT),
	}
	prog := newProgram(instrs...)
	prog.Constants = []bytecode.Const{bytecode.IntConst(10), bytecode.IntConst(20)}

	machine := New(prog)
	require.NoError(t, machine.Run())
	require.Equal(t, uint32(10), machine.LoadGlobal(0))
	require.Equal(t, uint32(20), machine.LoadGlobal(1))
}

// TestMessageRecvTimeoutDeliversSentinel: a bounded recv against an
// empty queue eventually unblocks with
// recvTimeoutSentinel once the simulated clock reaches the deadline, rather
// than stalling the scheduler forever.
func TestMessageRecvTimeoutDeliversSentinel(t *testing.T) {
	instrs := []bytecode.Instruction{
		emit(bytecode.MSG_DECLARE, 0),
		emit(bytecode.MSG_RECV, 0, 50), // 50ms bounded wait, queue stays empty
		emit(bytecode.STORE_VAR, 0),
		emit(bytecode.HALT),
	}
	prog := newProgram(instrs...)
	machine := New(prog)
	require.NoError(t, machine.Run())
	require.Equal(t, recvTimeoutSentinel, machine.LoadGlobal(0))
}

// TestMessageRecvWithNoSenderTerminatesScheduler covers the "recv-wait"
// blocking state: a task waiting forever on a queue nobody sends to must
// not spin the scheduler indefinitely; Run must still return.
func TestMessageRecvWithNoSenderTerminatesScheduler(t *testing.T) {
	instrs := []bytecode.Instruction{
		emit(bytecode.MSG_DECLARE, 0),
		emit(bytecode.MSG_RECV, 0, blockingRecvValue),
		emit(bytecode.STORE_VAR, 0),
		emit(bytecode.HALT),
	}
	prog := newProgram(instrs...)
	machine := New(prog)
	done := make(chan struct{})
	go func() {
		_ = machine.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned: scheduler spun forever on an unfulfillable recv")
	}
	require.Equal(t, TaskBlocked, machine.Tasks()[0].State)
}
