package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rtmc-lang/rtmc/vm"
)

// runDebugREPL drives the VM one scheduling round at a time, grounded in the
// teacher's execProgramDebugMode: n/next steps a round, r/run free-runs to
// completion or the next breakpoint PC, b/break <pc> toggles a breakpoint,
// and tasks prints every task's current state. Unlike the teacher's single
// flat CPU, "the next instruction" here is ambiguous across many tasks, so
// a round (one full pass over every ready task) is the unit of stepping.
func runDebugREPL(machine *vm.VM) {
	fmt.Println("Commands:\n\tn or next: run one scheduling round\n\tr or run: run to completion or next breakpoint\n\tb or break <pc>: toggle a breakpoint on a program counter\n\ttasks: print every task's state\n\tq or quit: stop")

	machine.Start()
	printTasks(machine)

	breakAt := map[uint32]struct{}{}
	reader := bufio.NewReader(os.Stdin)
	running := false

	for {
		line := ""
		if !running {
			fmt.Print("-> ")
			raw, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.ToLower(strings.TrimSpace(raw))
		}

		switch {
		case running:
			if hitBreakpoint(machine, breakAt) {
				fmt.Println("breakpoint")
				printTasks(machine)
				running = false
				continue
			}
			if !machine.Step() {
				machine.Flush()
				fmt.Println("program finished")
				return
			}

		case line == "n" || line == "next":
			if !machine.Step() {
				machine.Flush()
				fmt.Println("program finished")
				return
			}
			machine.Flush()
			printTasks(machine)

		case line == "tasks":
			printTasks(machine)

		case line == "r" || line == "run":
			running = true

		case line == "q" || line == "quit":
			machine.Flush()
			return

		case strings.HasPrefix(line, "b"):
			arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "break"), "b"))
			pc, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				fmt.Println("unknown program counter:", err)
				continue
			}
			if _, ok := breakAt[uint32(pc)]; ok {
				delete(breakAt, uint32(pc))
			} else {
				breakAt[uint32(pc)] = struct{}{}
			}
		}
	}
}

func hitBreakpoint(machine *vm.VM, breakAt map[uint32]struct{}) bool {
	for _, t := range machine.Tasks() {
		if _, ok := breakAt[t.PC]; ok {
			return true
		}
	}
	return false
}

func printTasks(machine *vm.VM) {
	for _, t := range machine.Tasks() {
		fmt.Printf("  task %-3d %-10s pc=%-5d state=%-10s", t.ID, t.Name, t.PC, t.State)
		if t.Err != nil {
			fmt.Printf(" err=%v", t.Err)
		}
		fmt.Println()
	}
}
