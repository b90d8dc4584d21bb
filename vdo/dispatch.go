package vdo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Log messages and field keys.
const (
	LogMsgInvocation     = "invocation"
	LogMsgDefaults       = "defaults propagated"
	LogMsgOperationDone  = "operation complete"
	LogMsgOperationError = "operation failed"
	LogMsgUnknownCommand = "no operation for command"

	LogFieldInvocation = "invocation_id"
	LogFieldCommand    = "command"
	LogFieldConfig     = "config"
	LogFieldDryRun     = "dry_run"
	LogFieldVerbose    = "verbose"
	LogFieldTrace      = "trace"
)

// Operation carries out one subcommand.
type Operation func(ctx context.Context, cfg *Config) error

// Defaults are the global settings propagated to operations before any of
// them runs.
type Defaults struct {
	ConfFile string
	DryRun   bool
	Verbose  bool
	Debug    bool
}

// DefaultsFrom extracts the global settings from cfg.
func DefaultsFrom(cfg *Config) Defaults {
	return Defaults{
		ConfFile: cfg.String(OptConfFile),
		DryRun:   cfg.Bool(OptNoRun),
		Verbose:  cfg.Bool(OptVerbose),
		Debug:    cfg.Bool(OptDebug),
	}
}

// Registry maps command names to operations. It also receives the global
// defaults before dispatch.
type Registry interface {
	Lookup(command string) (Operation, bool)
	ApplyDefaults(Defaults)
}

// Dispatcher routes a validated config to its operation.
type Dispatcher struct {
	commands *CommandCatalog
	registry Registry
	logger   *zap.Logger
	stderr   io.Writer
}

// NewDispatcher creates a dispatcher. A nil logger discards log output.
func NewDispatcher(commands *CommandCatalog, registry Registry, logger *zap.Logger, stderr io.Writer) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Dispatcher{commands: commands, registry: registry, logger: logger, stderr: stderr}
}

// Dispatch runs the operation for cfg.Command. Any failure of the operation,
// including a panic, is returned as an OperationFailure.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *Config) error {
	if _, err := d.commands.Lookup(cfg.Command); err != nil {
		return err
	}
	op, ok := d.registry.Lookup(cfg.Command)
	if !ok {
		d.logger.Error(LogMsgUnknownCommand, zap.String(LogFieldCommand, cfg.Command))
		return NewUnknownCommandError(cfg.Command, nil)
	}

	logger := d.logger.Named(cfg.Command).With(zap.String(LogFieldInvocation, uuid.NewString()))
	logger.Info(LogMsgInvocation, zap.Any(LogFieldConfig, cfg.Summary()))

	defaults := DefaultsFrom(cfg)
	d.registry.ApplyDefaults(defaults)
	logger.Debug(LogMsgDefaults,
		zap.Bool(LogFieldDryRun, defaults.DryRun),
		zap.Bool(LogFieldVerbose, defaults.Verbose))

	stack, err := run(ctx, op, cfg)
	if err == nil {
		logger.Info(LogMsgOperationDone)
		return nil
	}

	trace := formatTrace(err, stack)
	logger.Error(LogMsgOperationError, zap.Error(err), zap.String(LogFieldTrace, trace))
	if defaults.Debug {
		fmt.Fprintln(d.stderr, trace)
	}
	return NewOperationFailure(cfg.Command, err)
}

func run(ctx context.Context, op Operation, cfg *Config) (stack []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			stack = debug.Stack()
		}
	}()
	return nil, op(ctx, cfg)
}

// formatTrace renders the cause chain, and the goroutine stack for panics.
func formatTrace(err error, stack []byte) string {
	var b strings.Builder
	b.WriteString("Traceback:\n")
	for depth := 0; err != nil; depth++ {
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth+1), err)
		err = errors.Unwrap(err)
	}
	if len(stack) > 0 {
		b.Write(stack)
	}
	return strings.TrimRight(b.String(), "\n")
}
