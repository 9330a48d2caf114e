package compiler

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
)

var (
	// ErrCompilerNotFound means the compiler binary is not on PATH.
	ErrCompilerNotFound = ferrors.CompileError("compiler binary not found").Fatal().Build()
	// ErrCompilerFailed means the compiler process exited unsuccessfully.
	ErrCompilerFailed = ferrors.CompileError("compiler execution failed").Build()
)

// BinaryCompiler runs an external compiler process once per invocation:
//
//	<command> --build-dir <dir> [--cache|--no-cache] <args...> <targets...>
type BinaryCompiler struct {
	Command string
	// Dir is the working directory; the invocation's build directory when empty.
	Dir    string
	Logger *slog.Logger
}

// NewBinaryCompiler creates a compiler running command.
func NewBinaryCompiler(command string) *BinaryCompiler {
	return &BinaryCompiler{Command: command}
}

func (c *BinaryCompiler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// CommandArgs returns the argument vector passed to the process.
func (c *BinaryCompiler) CommandArgs(targets []string, inv Invocation) []string {
	args := make([]string, 0, len(inv.Args)+len(targets)+3)
	if inv.BuildDir != "" {
		args = append(args, "--build-dir", inv.BuildDir)
	}
	if inv.Cache {
		args = append(args, "--cache")
	} else {
		args = append(args, "--no-cache")
	}
	args = append(args, inv.Args...)
	return append(args, targets...)
}

func (c *BinaryCompiler) ShiftFiles(ctx context.Context, targets []string, inv Invocation) error {
	path, err := exec.LookPath(c.Command)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCompile, ErrCompilerNotFound.Message()).
			Fatal().WithContext("command", c.Command).Build()
	}

	cmd := exec.CommandContext(ctx, path, c.CommandArgs(targets, inv)...)
	cmd.Dir = c.Dir
	if cmd.Dir == "" {
		cmd.Dir = inv.BuildDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger().Debug("Invoking compiler", slog.String("command", path), logfields.Targets(len(targets)))
	runErr := cmd.Run()

	if out := stdout.String(); out != "" {
		c.logger().Debug("compiler stdout", slog.String("output", out))
	}
	if runErr == nil {
		return nil
	}

	output := stderr.String()
	if output == "" {
		output = stdout.String()
	}
	if output != "" {
		c.logger().Warn("compiler stderr", slog.String("error_output", output))
	}
	return ferrors.WrapError(runErr, ferrors.CategoryCompile, ErrCompilerFailed.Message()).
		WithContext("command", c.Command).
		WithContext("targets", len(targets)).
		WithContext("output", output).
		Build()
}
