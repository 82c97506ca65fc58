package execenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const defaultTimeoutCeiling = 60 * time.Second

// HostRunnerConfig configures the host command runner.
type HostRunnerConfig struct {
	// TimeoutCeiling clamps caller-requested timeouts. Zero means the
	// default 60s ceiling.
	TimeoutCeiling time.Duration
}

type hostRunner struct {
	ceiling time.Duration
}

// NewHostRunner returns a CommandRunner executing via bash on the host.
func NewHostRunner(cfg HostRunnerConfig) CommandRunner {
	ceiling := cfg.TimeoutCeiling
	if ceiling <= 0 {
		ceiling = defaultTimeoutCeiling
	}
	return &hostRunner{ceiling: ceiling}
}

func (h *hostRunner) Run(ctx context.Context, req CommandRequest) (CommandResult, error) {
	timeout := req.Timeout
	if timeout <= 0 || timeout > h.ceiling {
		timeout = h.ceiling
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-lc", req.Command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if req.Dir != "" {
		cmd.Dir = req.Dir
	}
	cmd.Env = append(os.Environ(),
		"CI=1",
		"TERM=dumb",
		"GIT_TERMINAL_PROMPT=0",
		"PAGER=cat",
		"NO_COLOR=1",
	)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if errors.Is(runCtx.Err(), context.Canceled) {
		return result, runCtx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, fmt.Errorf("execenv: command start failed: %w", err)
}
