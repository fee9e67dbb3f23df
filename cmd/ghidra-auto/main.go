// File: cmd/ghidra-auto/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/xkilldash9x/ghidra-auto/cmd"
	"github.com/xkilldash9x/ghidra-auto/internal/observability"
)

const panicLogName = "ghidra-auto-panic.log"

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	// Allows mocking os.Exit in tests.
	osExit       = os.Exit
	panicLogPath = filepath.Join(os.TempDir(), panicLogName)
)

func main() {
	defer handlePanic()

	// No signal handling: the tools share our process group and get the
	// terminal's signals directly.
	if err := cmd.Execute(context.Background()); err != nil {
		osExit(cmd.ExitCode(err))
	}
}

// handlePanic records a crash in the panic log and exits with status 1.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogPath, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}

	fmt.Fprintf(os.Stderr, "ghidra-auto crashed: %v\nDetails logged to %s\n", r, panicLogPath)
	osExit(1)
}
