// Package bridge runs external tool processes under hard resource bounds
// and extracts a single structured result from their output.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/oraclegate/internal/types"
)

const (
	// maxArgs bounds the argument vector handed to the child process.
	maxArgs = 64
	// snippetLen caps diagnostic excerpts of process output in errors.
	snippetLen = 400
)

// Command describes the process to spawn for one tool invocation.
type Command struct {
	Path string
	Args []string
	Env  map[string]string
}

// Runner spawns tool processes with a wall-clock timeout, an output-size
// cap, and a global concurrency limit. The child is killed forcefully when
// the timeout elapses. There are no implicit retries.
type Runner struct {
	timeout   time.Duration
	maxOutput int
	sem       *semaphore.Weighted
}

func NewRunner(timeout time.Duration, maxOutput int, maxConcurrent int64) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		timeout:   timeout,
		maxOutput: maxOutput,
		sem:       semaphore.NewWeighted(maxConcurrent),
	}
}

// Execute spawns cmd with args appended as a single JSON argument and
// returns the parsed result. The process may emit diagnostic lines before
// its result; the last non-empty stdout line is taken as the candidate and
// must parse as JSON.
func (r *Runner) Execute(ctx context.Context, cmd Command, args map[string]any) (json.RawMessage, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, types.Wrap(types.KindInternal, err, "bridge unavailable")
	}
	defer r.sem.Release(1)

	argv := append([]string(nil), cmd.Args...)
	if len(args) > 0 {
		payload, err := json.Marshal(args)
		if err != nil {
			return nil, types.Wrap(types.KindValidation, err, "invalid tool arguments")
		}
		argv = append(argv, string(payload))
	}
	if len(argv) > maxArgs {
		return nil, types.E(types.KindValidation, "argument vector too long (%d > %d)", len(argv), maxArgs)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	proc := exec.CommandContext(ctx, cmd.Path, argv...)
	proc.Env = mergedEnv(cmd.Env)
	proc.WaitDelay = time.Second

	stdout := newCappedBuffer(r.maxOutput)
	stderr := newCappedBuffer(r.maxOutput)
	proc.Stdout = stdout
	proc.Stderr = stderr

	start := time.Now()
	runErr := proc.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		slog.Warn("tool killed on timeout", "path", cmd.Path, "elapsed", elapsed)
		return nil, types.E(types.KindExecutionTimeout, "process killed after %s", r.timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, types.E(types.KindExecutionFailed,
				"process exited with code %d: %s", exitErr.ExitCode(),
				snippet(stderr.String()+stdout.String(), snippetLen))
		}
		return nil, types.Wrap(types.KindExecutionFailed, runErr, "spawn %s", cmd.Path)
	}

	return parseResult(stdout.String())
}

// parseResult extracts the structured result from raw stdout: the last
// non-empty line is the candidate and must be valid JSON.
func parseResult(out string) (json.RawMessage, error) {
	candidate := lastNonEmptyLine(out)
	if candidate == "" {
		return nil, types.E(types.KindMalformedResult, "empty_output")
	}
	if !json.Valid([]byte(candidate)) {
		return nil, types.E(types.KindMalformedResult,
			"malformed_output: candidate %q, output %q",
			snippet(candidate, snippetLen), snippet(out, snippetLen))
	}
	return json.RawMessage(candidate), nil
}

func lastNonEmptyLine(out string) string {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// mergedEnv layers tool-specific variables over the process environment.
func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
