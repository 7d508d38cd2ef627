// Package daemonctl lets the organ CLI manage the daemon process: launch,
// health probing over the control API, graceful stop with force-kill
// fallback, and offline status snapshots read straight from the database.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"organ/internal/api"
	"organ/internal/config"
	"organ/internal/store"
)

// ErrDaemonNotRunning indicates the daemon control API is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartState reports how EnsureStarted resolved.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	ForcedKill bool
	PID        int
}

// Launch starts a detached organ daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	var args []string
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls the control API until it answers or the timeout expires.
func WaitForAPI(ctx context.Context, client *Client, timeout time.Duration) (*api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when its API is unreachable and waits
// for it to come up.
func EnsureStarted(ctx context.Context, client *Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client == nil {
		return StartResult{}, errors.New("daemon API not configured; set [api] bind")
	}
	if status, err := client.Status(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	} else if !IsAPIUnavailable(err) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForAPI(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

// WaitForShutdown waits for the control API to disappear.
func WaitForShutdown(ctx context.Context, client *Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		_, err := client.Status(ctx)
		if IsAPIUnavailable(err) {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("daemon still running")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// StopAndTerminate signals the daemon to stop and force-kills the process
// if it is still alive after gracePeriod.
func StopAndTerminate(ctx context.Context, client *Client, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if client == nil || cfg == nil {
		return StopResult{}, ErrDaemonNotRunning
	}
	status, err := client.Status(ctx)
	if err != nil {
		if IsAPIUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	pid := status.PID
	if pid <= 0 {
		pid = readPIDFile(pidPath(cfg))
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid")
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	if err := WaitForShutdown(ctx, client, gracePeriod); err == nil {
		return StopResult{PID: pid}, nil
	}

	if err := proc.Kill(); err != nil {
		return StopResult{PID: pid}, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	cleanupRuntimeFiles(cfg)
	return StopResult{PID: pid, ForcedKill: true}, nil
}

// StatusSnapshot pairs API status with queue stats that survive an
// offline daemon.
type StatusSnapshot struct {
	Daemon     *api.DaemonStatus
	QueueStats map[string]int
}

// BuildStatusSnapshot collects daemon status, falling back to a direct
// database read for queue stats when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, client *Client, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}

	snapshot := &StatusSnapshot{}
	if client != nil {
		if status, err := client.Status(ctx); err == nil {
			snapshot.Daemon = status
			snapshot.QueueStats = status.Workflow.QueueStats
			return snapshot, nil
		} else if !IsAPIUnavailable(err) {
			return nil, err
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st, err := store.Open(cfg)
	if err != nil {
		return snapshot, nil
	}
	defer st.Close()
	stats, err := st.Stats(queryCtx)
	if err != nil {
		return snapshot, nil
	}
	snapshot.QueueStats = make(map[string]int, len(stats))
	for status, count := range stats {
		snapshot.QueueStats[string(status)] = count
	}
	return snapshot, nil
}

func pidPath(cfg *config.Config) string {
	return filepath.Join(cfg.LogDir(), "organ.pid")
}

func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

func cleanupRuntimeFiles(cfg *config.Config) {
	_ = os.Remove(pidPath(cfg))
	_ = os.Remove(filepath.Join(cfg.LogDir(), "organd.lock"))
}
