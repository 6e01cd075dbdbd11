// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	shellquote "github.com/kballard/go-shellquote"
)

// Command describes one external tool invocation.
type Command struct {
	Path string
	Args []string
	// Env entries are appended to the current process environment.
	Env   []string
	Stdin io.Reader
	// Output, when set, receives the command's combined output as it is produced.
	Output io.Writer
}

func (c Command) String() string {
	return shellquote.Join(append([]string{c.Path}, c.Args...)...)
}

// Detached is the handle of a process started without waiting for it.
type Detached struct {
	PID     int
	Command Command
}

// Runner executes external tools.
type Runner interface {
	// Run blocks until the command exits and returns its combined output.
	// A non-zero exit is reported as a *ToolError.
	Run(ctx context.Context, cmd Command) (string, error)
	// Start spawns the command detached with its output discarded.
	Start(cmd Command) (Detached, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	var buf bytes.Buffer
	var w io.Writer = &buf
	if c.Output != nil {
		w = io.MultiWriter(&buf, c.Output)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Run(); err != nil {
		return buf.String(), &ToolError{Command: c.String(), Output: buf.String(), Err: err}
	}
	return buf.String(), nil
}

func (ExecRunner) Start(c Command) (Detached, error) {
	cmd := exec.Command(c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.SysProcAttr = detachedProcAttr()
	if err := cmd.Start(); err != nil {
		return Detached{Command: c}, fmt.Errorf("start %s: %w", c.Path, err)
	}
	// reap the child so it does not linger as a zombie while we keep running
	go func() { _ = cmd.Wait() }()
	return Detached{PID: cmd.Process.Pid, Command: c}, nil
}
