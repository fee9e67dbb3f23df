// File: internal/launcher/launcher.go
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghidra-auto/internal/config"
	"github.com/xkilldash9x/ghidra-auto/internal/workspace"
)

// Exit statuses reported when a tool never ran, following sh(1).
const (
	ExitCannotExecute = 126
	ExitNotFound      = 127
	exitSignalBase    = 128
)

// Allows mocking exec.CommandContext in tests.
var execCommandContext = exec.CommandContext

// ToolError reports an external tool that failed to start or exited non-zero.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with status %d: %v", e.Tool, e.ExitCode, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Launcher runs the import tool and then, on success, the open tool.
// The tools are started directly with argument vectors; no shell is involved,
// so paths containing quotes or spaces are passed through untouched.
type Launcher struct {
	cfg    config.GhidraConfig
	logger *zap.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a Launcher whose children inherit the process's standard streams.
func New(cfg config.GhidraConfig, logger *zap.Logger) *Launcher {
	return &Launcher{
		cfg:    cfg,
		logger: logger.Named("launcher"),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// ImportArgs returns the import tool's arguments:
// (projectDirectory, projectName, -import, inputPath).
func (l *Launcher) ImportArgs(layout workspace.Layout, inputPath string) []string {
	return []string{layout.Dir, layout.Name, "-import", inputPath}
}

// OpenArgs returns the open tool's arguments: (projectFilePath).
func (l *Launcher) OpenArgs(layout workspace.Layout) []string {
	return []string{layout.ProjectFile}
}

// Run imports inputPath into layout and opens the resulting project.
// The open tool is never started unless the import tool exited 0.
// A non-nil error is a *ToolError carrying the failing tool's exit status.
func (l *Launcher) Run(ctx context.Context, layout workspace.Layout, inputPath string) error {
	if err := l.runTool(ctx, l.cfg.ImportTool, l.ImportArgs(layout, inputPath)); err != nil {
		return err
	}
	if !l.cfg.Open {
		l.logger.Debug("Open step disabled; leaving project closed", zap.String("project_file", layout.ProjectFile))
		return nil
	}
	return l.runTool(ctx, l.cfg.OpenTool, l.OpenArgs(layout))
}

func (l *Launcher) runTool(ctx context.Context, tool string, args []string) error {
	l.logger.Debug("Starting tool", zap.String("tool", tool), zap.Strings("args", args))

	cmd := execCommandContext(ctx, tool, args...)
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr

	if err := cmd.Run(); err != nil {
		code := ExitStatus(err)
		l.logger.Warn("Tool failed",
			zap.String("tool", tool),
			zap.Int("exit_code", code),
			zap.Error(err),
		)
		return &ToolError{Tool: tool, Args: args, ExitCode: code, Err: err}
	}

	l.logger.Debug("Tool finished", zap.String("tool", tool))
	return nil
}

// ExitStatus maps the error from (*exec.Cmd).Run to the status a shell would report.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return exitSignalBase + int(ws.Signal())
		}
		return 1
	}

	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ExitNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.ENOEXEC):
		return ExitCannotExecute
	}
	return 1
}
