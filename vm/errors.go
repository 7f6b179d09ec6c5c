package vm

import "errors"

// VMError sentinels: a runtime fault terminates only the offending task,
// logged and recorded on Task.Err; every other task keeps running. Plain
// sentinel values, not wrapped, since these terminate one task rather than
// propagating up a call chain.
var (
	ErrStackUnderflow     = errors.New("vm: operand stack underflow")
	ErrDivideByZero       = errors.New("vm: division by zero")
	ErrModuloByZero       = errors.New("vm: modulo by zero")
	ErrInvalidOpcode      = errors.New("vm: invalid opcode")
	ErrInvalidMessageID   = errors.New("vm: invalid message queue id")
	ErrInvalidSemaphoreID = errors.New("vm: invalid semaphore id")
	ErrInvalidTaskID      = errors.New("vm: invalid task id")
	ErrUninitializedHW    = errors.New("vm: use of uninitialized peripheral")
	ErrNullPointer        = errors.New("vm: null pointer dereference")
	ErrNoActiveCall       = errors.New("vm: return with no active call")
)
