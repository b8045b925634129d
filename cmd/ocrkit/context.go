package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
)

// commandContext carries flag-derived state shared by all CLI commands:
// lazily loaded configuration and the daemon socket path.
type commandContext struct {
	socketFlag   *string
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		socketFlag:   socketFlag,
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = c.loadConfig()
	})
	return c.config, c.configErr
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(c.configPathFlag())
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configPathFlag() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return ""
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if socket := strings.TrimSpace(*c.socketFlag); socket != "" {
			return socket
		}
	}
	return defaultSocketPath()
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

// withClient dials the daemon, hands the connection to run, and closes it
// afterwards.
func (c *commandContext) withClient(run func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return run(client)
}

func wrapDialError(err error, socket string) error {
	if errors.Is(err, syscall.ENOENT) || os.IsNotExist(err) {
		return fmt.Errorf("connect to daemon: socket %s not found; run `ocrkit start` first", socket)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; the daemon may have exited uncleanly", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func defaultSocketPath() string {
	if cfg, _, _, err := config.Load(""); err == nil {
		return cfg.SocketPath()
	}
	if dataDir, err := config.ExpandPath("~/.local/share/ocrkit"); err == nil {
		return filepath.Join(dataDir, "ocrkit.sock")
	}
	return filepath.Join(os.TempDir(), "ocrkit.sock")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
