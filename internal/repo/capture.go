package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandRunner executes an external tool and returns its stdout.
// Implementations return whatever output was produced even when err is non-nil.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)
}

// RunnerFunc adapts a function to the CommandRunner interface.
type RunnerFunc func(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)

// Run implements CommandRunner.
func (f RunnerFunc) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	return f(ctx, name, args, stdin)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

// Run implements CommandRunner using os/exec.
func (ExecRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// DumpClient renders capture files as text lines through tcpdump (or a compatible tool).
type DumpClient struct {
	tool   string
	args   []string
	sudo   bool
	runner CommandRunner
}

// NewDumpClient constructs a client; a nil runner defaults to ExecRunner.
func NewDumpClient(tool string, args []string, sudo bool, runner CommandRunner) *DumpClient {
	if tool == "" {
		tool = "tcpdump"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &DumpClient{
		tool:   tool,
		args:   append([]string(nil), args...),
		sudo:   sudo,
		runner: runner,
	}
}

// Dump returns the tool's text rendering of the capture at path.
// Compressed captures are decoded in-process and fed to the tool on stdin.
func (c *DumpClient) Dump(ctx context.Context, path string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("dump client not initialised")
	}

	in, err := OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	source := path
	var stdin io.Reader
	if in.Compression != CompressionNone {
		source = "-"
		stdin = in
	}

	name := c.tool
	args := append([]string{"-r", source}, c.args...)
	if c.sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	return c.runner.Run(ctx, name, args, stdin)
}
