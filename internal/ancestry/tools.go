package ancestry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrToolFailed is matched by every ToolError.
var ErrToolFailed = errors.New("external tool failed")

// ToolError reports a failed external tool run with its captured output.
type ToolError struct {
	Tool     string
	ExitCode int // -1 if the tool did not exit normally
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Tool)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrToolFailed) true.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolFailed
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Runner runs an external command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// waitDelay bounds how long a killed command's output is still read.
const waitDelay = 5 * time.Second

// ExecRunner runs commands as child processes. The process is killed when
// ctx is done.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	err := cmd.Run()
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		err = ctxErr
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// toolError wraps a Runner error.
func toolError(tool string, stdout, stderr []byte, err error) *ToolError {
	te := &ToolError{
		Tool:     tool,
		ExitCode: -1,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		te.ExitCode = exitErr.ExitCode()
	}
	return te
}
