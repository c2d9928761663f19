package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// exitPermissionDenied is the exit status transcribers in the sysexits tradition use for EX_NOPERM.
const exitPermissionDenied = 77

// CommandEngine runs an external transcriber that records one utterance and prints the text to stdout.
type CommandEngine struct {
	argv     []string
	lookPath func(string) (string, error)
}

func NewCommandEngine(argv []string) *CommandEngine {
	return &CommandEngine{argv: argv, lookPath: exec.LookPath}
}

// Available reports whether a transcriber is configured and installed.
func (e *CommandEngine) Available() bool {
	if len(e.argv) == 0 || strings.TrimSpace(e.argv[0]) == "" {
		return false
	}
	_, err := e.lookPath(e.argv[0])
	return err == nil
}

func (e *CommandEngine) Listen(ctx context.Context) (string, error) {
	if !e.Available() {
		return "", ErrUnsupported
	}
	cmd := exec.CommandContext(ctx, e.argv[0], e.argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if (errors.As(err, &exitErr) && exitErr.ExitCode() == exitPermissionDenied) ||
			strings.Contains(strings.ToLower(msg), "permission denied") {
			return "", fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
		if msg != "" {
			return "", fmt.Errorf("transcriber failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("transcriber failed: %w", err)
	}
	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", errors.New("no speech detected")
	}
	return text, nil
}
