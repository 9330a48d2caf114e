// Package compiler drives the external source compiler over the build targets
// of one update cycle.
package compiler

import (
	"context"
	"log/slog"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// Compiler compiles a batch of build targets. Implementations must return
// exactly once; a nil error means every target compiled.
type Compiler interface {
	ShiftFiles(ctx context.Context, targets []string, inv Invocation) error
}

// Func adapts a function to Compiler.
type Func func(ctx context.Context, targets []string, inv Invocation) error

func (f Func) ShiftFiles(ctx context.Context, targets []string, inv Invocation) error {
	return f(ctx, targets, inv)
}

// Driver builds the invocation for a bundle and calls the compiler once.
type Driver struct {
	compiler Compiler
	defaults Options
	logger   *slog.Logger
}

// NewDriver creates a driver around c using defaults for every bundle.
func NewDriver(c Compiler, defaults Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{compiler: c, defaults: defaults, logger: logger}
}

// InvocationFor returns the invocation used for b.
func (d *Driver) InvocationFor(b *models.Bundle) Invocation {
	opts := d.defaults
	if b.CSSProc != "" {
		opts.CSSProc = b.CSSProc
	}
	return Invocation{BuildDir: b.BuildDirectory, Cache: opts.Cache, Args: opts.Args()}
}

// Compile hands all targets to the compiler in a single call. The compiler's
// error is returned as-is.
func (d *Driver) Compile(ctx context.Context, b *models.Bundle, targets []string) error {
	return d.CompileWith(ctx, d.compiler, b, targets)
}

// CompileWith is Compile with an explicit compiler, for hosts that supply one per call.
func (d *Driver) CompileWith(ctx context.Context, c Compiler, b *models.Bundle, targets []string) error {
	if c == nil {
		return ferrors.ValidationError("compiler is required").WithContext("bundle", b.Name).Build()
	}
	inv := d.InvocationFor(b)
	d.logger.Debug("Compiling build targets",
		logfields.Bundle(b.Name),
		logfields.Targets(len(targets)),
		slog.Any("args", inv.Args))
	return c.ShiftFiles(ctx, targets, inv)
}
