package volume

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes the external commands an operation needs. Output is for
// read-only queries whose standard output the caller parses.
type Runner interface {
	Run(ctx context.Context, argv ...string) error
	Output(ctx context.Context, argv ...string) (string, error)
}

// ExecRunner runs commands on the host. With Verbose, each command line is
// echoed to Out first.
type ExecRunner struct {
	Out     io.Writer
	Verbose bool
}

func (r ExecRunner) Run(ctx context.Context, argv ...string) error {
	_, err := r.exec(ctx, argv)
	return err
}

func (r ExecRunner) Output(ctx context.Context, argv ...string) (string, error) {
	return r.exec(ctx, argv)
}

func (r ExecRunner) exec(ctx context.Context, argv []string) (string, error) {
	if r.Verbose {
		fmt.Fprintf(r.Out, "    %s\n", strings.Join(argv, " "))
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", argv[0], err)
		}
		return "", fmt.Errorf("%s: %w: %s", argv[0], err, msg)
	}
	return stdout.String(), nil
}

// PrintRunner prints commands instead of running them (--noRun).
type PrintRunner struct {
	Out io.Writer
}

func (r PrintRunner) Run(_ context.Context, argv ...string) error {
	_, err := fmt.Fprintf(r.Out, "    %s\n", strings.Join(argv, " "))
	return err
}

// Output prints the query like any other command; its answer is unknown.
func (r PrintRunner) Output(ctx context.Context, argv ...string) (string, error) {
	return "", r.Run(ctx, argv...)
}

// RecordingRunner remembers every command line; used by tests. Queries
// answer from Outputs, keyed by command line.
type RecordingRunner struct {
	Commands []string
	Outputs  map[string]string
	Err      error
}

func (r *RecordingRunner) Run(_ context.Context, argv ...string) error {
	r.Commands = append(r.Commands, strings.Join(argv, " "))
	return r.Err
}

func (r *RecordingRunner) Output(ctx context.Context, argv ...string) (string, error) {
	if err := r.Run(ctx, argv...); err != nil {
		return "", err
	}
	return r.Outputs[strings.Join(argv, " ")], nil
}
