// Package daemonctl drives the daemon process from the CLI side: spawning the
// detached process, waiting on its socket, and the stop/restart choreography
// including the force-kill fallback.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/api"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/deps"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
)

const socketPollInterval = 200 * time.Millisecond

// pidFileName matches the pid file the daemon writes into its log directory.
const pidFileName = "ocrkitd.pid"

// ErrDaemonNotRunning reports that no daemon is reachable on the socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions carries the flags forwarded to the spawned daemon process.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
	Diagnostic bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult describes what EnsureStarted did.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult describes how the daemon went down.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult combines the stop and start halves of a restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch spawns a detached daemon process from the given executable.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	if opts.Diagnostic {
		args = append(args, "--diagnostic")
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// pollUntil runs step every socketPollInterval until it reports done or the
// timeout elapses. The last error from step is wrapped into the timeout error.
func pollUntil(timeout time.Duration, step func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		done, err := step()
		if done {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if time.Now().After(deadline) {
			if lastErr == nil {
				lastErr = errors.New("timed out")
			}
			return lastErr
		}
		time.Sleep(socketPollInterval)
	}
}

// awaitSocket blocks until the daemon answers on its socket, returning the
// connected client.
func awaitSocket(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := pollUntil(timeout, func() (bool, error) {
		c, dialErr := ipc.Dial(socketPath)
		if dialErr != nil {
			return false, dialErr
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

// awaitShutdown blocks until the socket disappears or the daemon reports the
// service stopped.
func awaitShutdown(socketPath string, timeout time.Duration) error {
	err := pollUntil(timeout, func() (bool, error) {
		client, dialErr := ipc.Dial(socketPath)
		if dialErr != nil {
			if isDaemonUnavailable(dialErr) {
				return true, nil
			}
			return false, dialErr
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr != nil {
			return false, statusErr
		}
		if !status.Running {
			return true, nil
		}
		return false, errors.New("daemon still running")
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// EnsureStarted makes sure a daemon process exists and its service is running,
// spawning the process first when the socket is dead.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	launched := false
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executablePath, opts); err != nil {
			return StartResult{}, err
		}
		if client, err = awaitSocket(socketPath, waitTimeout); err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	if status, err := client.Status(); err == nil && status != nil && status.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	return classifyStart(resp, launched), nil
}

func classifyStart(resp *ipc.StartResponse, launched bool) StartResult {
	if resp == nil {
		return StartResult{State: StartStateRequested, Launched: launched, Message: "Start request sent"}
	}
	message := strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}
	case strings.EqualFold(message, "daemon already running"):
		if launched {
			return StartResult{State: StartStateStarted, Launched: true, Message: message}
		}
		return StartResult{State: StartStateAlreadyRunning, Message: message}
	case message != "":
		return StartResult{State: StartStateRequested, Launched: launched, Message: message}
	default:
		return StartResult{State: StartStateRequested, Launched: launched, Message: "Start request sent"}
	}
}

// StopAndTerminate asks the daemon to stop over IPC and escalates to SIGKILL
// through the pid file when the process outlives gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	var result StopResult
	if status, err := client.Status(); err == nil && status != nil {
		result.PID = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	if resp != nil {
		result.StopAcknowledged = resp.Stopped
	}

	_ = awaitShutdown(socketPath, gracePeriod)
	alive, livePID, err := probeProcess(socketPath)
	if err != nil {
		alive = false
	}
	if !alive {
		return result, nil
	}
	if cfg == nil {
		return result, errors.New("daemon still alive and no configuration available to locate its pid file")
	}

	fallbackPID := livePID
	if fallbackPID == 0 {
		fallbackPID = result.PID
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, pidFileName)
	killedPID, err := killProcess(pidPath, cfg.LockPath(), fallbackPID)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart chains StopAndTerminate and EnsureStarted, tolerating a daemon that
// was not running to begin with.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// FetchStatus collects daemon status over IPC. When the daemon is unreachable
// the response is filled from local configuration, including a live dependency
// check, so `ocrkit status` stays useful without a running process.
func FetchStatus(socketPath string, cfg *config.Config) (*ipc.StatusResponse, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	status := &ipc.StatusResponse{}

	if client, err := ipc.Dial(socketPath); err == nil {
		resp, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && resp != nil {
			status = resp
		}
	}

	if status.SocketPath == "" {
		status.SocketPath = cfg.SocketPath()
	}
	if status.LockPath == "" {
		status.LockPath = cfg.LockPath()
	}
	if status.ArchivePath == "" && cfg.Archive.Enabled {
		status.ArchivePath = cfg.Archive.Path
	}
	if status.Service.Engine == "" {
		status.Service.Engine = cfg.Engine.Name
	}
	if len(status.Dependencies) == 0 {
		status.Dependencies = api.FromDependencies(deps.Check(cfg))
	}
	return status, nil
}

// probeProcess reports whether the socket answers and the PID when known.
func probeProcess(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	if status == nil {
		return true, 0, nil
	}
	return true, status.PID, nil
}

// killProcess SIGKILLs the daemon identified by the pid file (or fallbackPID)
// and removes the pid and lock files it leaves behind.
func killProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// readPIDFile parses the pid file, returning 0 when it does not exist or does
// not hold a positive integer.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
