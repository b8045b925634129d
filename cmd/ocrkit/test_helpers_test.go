package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/daemon"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/testsupport"
)

type stubEngine struct{}

func (stubEngine) Name() string { return "stub" }

func (stubEngine) Recognize(_ context.Context, req ocr.Request) (ocr.Result, error) {
	return ocr.Result{PlainText: "read: " + string(req.Content), Confidence: 0.9}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	client     *ipc.Client
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithEngine("stub"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	logger := logging.NewNop()
	d, err := daemon.New(cfg, stubEngine{}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	if _, err := client.Start(); err != nil {
		t.Fatalf("Start RPC: %v", err)
	}

	env := &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		client:     client,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		client.Close()
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeTestConfig persists the test configuration so CLI invocations can load
// it. The daemon under test runs the stub engine in process; the file only
// has to pass validation, which does not know stub engines.
func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	onDisk := *cfg
	onDisk.Engine.Name = "tesseract"
	data, err := toml.Marshal(onDisk)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeSourceFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func submitJobViaCLI(t *testing.T, env *cliTestEnv, path string) ipc.Job {
	t.Helper()
	out, _, err := runCLI(t, []string{"submit", "--json", path}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("submit %s: %v", path, err)
	}
	var payload struct {
		Jobs []ipc.Job `json:"jobs"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	if len(payload.Jobs) != 1 {
		t.Fatalf("expected one job receipt, got %d", len(payload.Jobs))
	}
	return payload.Jobs[0]
}

func jobViaCLI(t *testing.T, env *cliTestEnv, id string) ipc.Job {
	t.Helper()
	out, _, err := runCLI(t, []string{"job", id, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("job %s: %v", id, err)
	}
	var resp ipc.JobStatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode job output %q: %v", out, err)
	}
	return resp.Job
}

func waitForJobCompleted(t *testing.T, env *cliTestEnv, id string) ipc.Job {
	t.Helper()
	var last ipc.Job
	waitFor(t, 5*time.Second, func() bool {
		last = jobViaCLI(t, env, id)
		switch last.Status {
		case "completed":
			return true
		case "failed", "cancelled":
			t.Fatalf("job %s ended as %s: %s", id, last.Status, last.ErrorMessage)
		}
		return false
	})
	return last
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
