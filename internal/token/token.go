// Package token defines the lexical tokens produced by the RTMC lexer.
package token

import "fmt"

// Kind enumerates every distinct lexical token category RTMC source can
// produce: keywords, literals, identifiers, and operators/delimiters.
type Kind int

const (
	EOF Kind = iota
	Illegal

	Ident
	IntLiteral
	FloatLiteral
	CharLiteral
	StringLiteral
	BoolLiteral

	// Primitive type keywords
	KwInt
	KwFloat
	KwChar
	KwBool
	KwVoid

	// Aggregate / declaration keywords
	KwStruct
	KwUnion
	KwMessage
	KwConst
	KwInclude
	KwImport
	KwSizeof

	// Control flow keywords
	KwIf
	KwElse
	KwWhile
	KwFor
	KwReturn
	KwBreak
	KwContinue

	// RTOS intrinsics
	KwStartTask
	KwRTOSCreateTask
	KwRTOSDeleteTask
	KwRTOSDelayMs
	KwRTOSSemaphoreCreate
	KwRTOSSemaphoreTake
	KwRTOSSemaphoreGive
	KwRTOSYield
	KwRTOSSuspendTask
	KwRTOSResumeTask

	// Hardware intrinsics
	KwHWGPIOInit
	KwHWGPIOSet
	KwHWGPIOGet
	KwHWTimerInit
	KwHWTimerStart
	KwHWTimerStop
	KwHWTimerSetPWMDuty
	KwHWADCInit
	KwHWADCRead
	KwHWUARTWrite
	KwHWSPITransfer
	KwHWI2CWrite
	KwHWI2CRead

	// Debug / print intrinsics
	KwPrint
	KwPrintf
	KwDBGBreakpoint

	// Operators and delimiters
	Plus
	Minus
	Star
	Slash
	Percent
	Assign
	Eq
	Neq
	Lt
	Lte
	Gt
	Gte
	AndAnd
	OrOr
	Not
	Amp
	Pipe
	Caret
	Tilde
	Shl
	Shr
	PlusPlus
	MinusMinus
	Arrow
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	Dot
	Comma
	Semi
	Colon
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	QuestionMark
)

var kindNames = map[Kind]string{
	EOF:                   "EOF",
	Illegal:               "ILLEGAL",
	Ident:                 "IDENT",
	IntLiteral:            "INT",
	FloatLiteral:          "FLOAT",
	CharLiteral:           "CHAR",
	StringLiteral:         "STRING",
	BoolLiteral:           "BOOL",
	KwInt:                 "int",
	KwFloat:               "float",
	KwChar:                "char",
	KwBool:                "bool",
	KwVoid:                "void",
	KwStruct:              "struct",
	KwUnion:               "union",
	KwMessage:             "message",
	KwConst:               "const",
	KwInclude:             "include",
	KwImport:              "import",
	KwSizeof:              "sizeof",
	KwIf:                  "if",
	KwElse:                "else",
	KwWhile:               "while",
	KwFor:                 "for",
	KwReturn:              "return",
	KwBreak:               "break",
	KwContinue:            "continue",
	KwStartTask:           "StartTask",
	KwRTOSCreateTask:      "RTOS_CREATE_TASK",
	KwRTOSDeleteTask:      "RTOS_DELETE_TASK",
	KwRTOSDelayMs:         "RTOS_DELAY_MS",
	KwRTOSSemaphoreCreate: "RTOS_SEMAPHORE_CREATE",
	KwRTOSSemaphoreTake:   "RTOS_SEMAPHORE_TAKE",
	KwRTOSSemaphoreGive:   "RTOS_SEMAPHORE_GIVE",
	KwRTOSYield:           "RTOS_YIELD",
	KwRTOSSuspendTask:     "RTOS_SUSPEND_TASK",
	KwRTOSResumeTask:      "RTOS_RESUME_TASK",
	KwHWGPIOInit:          "HW_GPIO_INIT",
	KwHWGPIOSet:           "HW_GPIO_SET",
	KwHWGPIOGet:           "HW_GPIO_GET",
	KwHWTimerInit:         "HW_TIMER_INIT",
	KwHWTimerStart:        "HW_TIMER_START",
	KwHWTimerStop:         "HW_TIMER_STOP",
	KwHWTimerSetPWMDuty:   "HW_TIMER_SET_PWM_DUTY",
	KwHWADCInit:           "HW_ADC_INIT",
	KwHWADCRead:           "HW_ADC_READ",
	KwHWUARTWrite:         "HW_UART_WRITE",
	KwHWSPITransfer:       "HW_SPI_TRANSFER",
	KwHWI2CWrite:          "HW_I2C_WRITE",
	KwHWI2CRead:           "HW_I2C_READ",
	KwPrint:               "print",
	KwPrintf:              "printf",
	KwDBGBreakpoint:       "DBG_BREAKPOINT",
	Plus:                  "+",
	Minus:                 "-",
	Star:                  "*",
	Slash:                 "/",
	Percent:               "%",
	Assign:                "=",
	Eq:                    "==",
	Neq:                   "!=",
	Lt:                    "<",
	Lte:                   "<=",
	Gt:                    ">",
	Gte:                   ">=",
	AndAnd:                "&&",
	OrOr:                  "||",
	Not:                   "!",
	Amp:                   "&",
	Pipe:                  "|",
	Caret:                 "^",
	Tilde:                 "~",
	Shl:                   "<<",
	Shr:                   ">>",
	PlusPlus:              "++",
	MinusMinus:            "--",
	Arrow:                 "->",
	PlusAssign:            "+=",
	MinusAssign:           "-=",
	StarAssign:            "*=",
	SlashAssign:           "/=",
	Dot:                   ".",
	Comma:                 ",",
	Semi:                  ";",
	Colon:                 ":",
	LParen:                "(",
	RParen:                ")",
	LBrace:                "{",
	RBrace:                "}",
	LBracket:              "[",
	RBracket:              "]",
	QuestionMark:          "?",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps every reserved word (including RTOS_*/HW_* intrinsic names)
// to its Kind. Built once; the lexer consults it after scanning an identifier.
var Keywords = map[string]Kind{
	"int": KwInt, "float": KwFloat, "char": KwChar, "bool": KwBool, "void": KwVoid,
	"struct": KwStruct, "union": KwUnion, "message": KwMessage, "const": KwConst,
	"include": KwInclude, "import": KwImport, "sizeof": KwSizeof,
	"if": KwIf, "else": KwElse, "while": KwWhile, "for": KwFor,
	"return": KwReturn, "break": KwBreak, "continue": KwContinue,
	"true": BoolLiteral, "false": BoolLiteral,
	"StartTask":             KwStartTask,
	"RTOS_CREATE_TASK":      KwRTOSCreateTask,
	"RTOS_DELETE_TASK":      KwRTOSDeleteTask,
	"RTOS_DELAY_MS":         KwRTOSDelayMs,
	"RTOS_SEMAPHORE_CREATE": KwRTOSSemaphoreCreate,
	"RTOS_SEMAPHORE_TAKE":   KwRTOSSemaphoreTake,
	"RTOS_SEMAPHORE_GIVE":   KwRTOSSemaphoreGive,
	"RTOS_YIELD":            KwRTOSYield,
	"RTOS_SUSPEND_TASK":     KwRTOSSuspendTask,
	"RTOS_RESUME_TASK":      KwRTOSResumeTask,
	"HW_GPIO_INIT":          KwHWGPIOInit,
	"HW_GPIO_SET":           KwHWGPIOSet,
	"HW_GPIO_GET":           KwHWGPIOGet,
	"HW_TIMER_INIT":         KwHWTimerInit,
	"HW_TIMER_START":        KwHWTimerStart,
	"HW_TIMER_STOP":         KwHWTimerStop,
	"HW_TIMER_SET_PWM_DUTY": KwHWTimerSetPWMDuty,
	"HW_ADC_INIT":           KwHWADCInit,
	"HW_ADC_READ":           KwHWADCRead,
	"HW_UART_WRITE":         KwHWUARTWrite,
	"HW_SPI_TRANSFER":       KwHWSPITransfer,
	"HW_I2C_WRITE":          KwHWI2CWrite,
	"HW_I2C_READ":           KwHWI2CRead,
	"print":           KwPrint,
	"printf":          KwPrintf,
	"DBG_BREAKPOINT":  KwDBGBreakpoint,
}

// Position locates a token (or any AST node) in its originating file.
type Position struct {
	Line     int
	Column   int
	Filename string
}

func (p Position) String() string {
	if p.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// Token is a single lexeme with its source position.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Pos)
}

// IsIntrinsic reports whether kind names a built-in RTOS_*/HW_* function,
// callable without a declaration.
func (k Kind) IsIntrinsic() bool {
	switch k {
	case KwStartTask, KwRTOSCreateTask, KwRTOSDeleteTask, KwRTOSDelayMs,
		KwRTOSSemaphoreCreate, KwRTOSSemaphoreTake, KwRTOSSemaphoreGive,
		KwRTOSYield, KwRTOSSuspendTask, KwRTOSResumeTask,
		KwHWGPIOInit, KwHWGPIOSet, KwHWGPIOGet,
		KwHWTimerInit, KwHWTimerStart, KwHWTimerStop, KwHWTimerSetPWMDuty,
		KwHWADCInit, KwHWADCRead, KwHWUARTWrite, KwHWSPITransfer,
		KwHWI2CWrite, KwHWI2CRead,
		KwPrint, KwPrintf, KwDBGBreakpoint:
		return true
	}
	return false
}
