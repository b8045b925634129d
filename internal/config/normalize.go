package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeArchive(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeArchive() error {
	if strings.TrimSpace(c.Archive.Path) == "" {
		c.Archive.Path = filepath.Join(c.Paths.DataDir, "history.db")
		return nil
	}
	expanded, err := expandPath(c.Archive.Path)
	if err != nil {
		return fmt.Errorf("archive.path: %w", err)
	}
	c.Archive.Path = expanded
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.Name = strings.ToLower(strings.TrimSpace(c.Engine.Name))
	if c.Engine.Name == "" {
		c.Engine.Name = defaultEngineName
	}
	c.Engine.PaddleCommand = strings.TrimSpace(c.Engine.PaddleCommand)
	if c.Engine.PaddleCommand == "" {
		c.Engine.PaddleCommand = "paddleocr"
	}
	languages := make([]string, 0, len(c.Engine.Languages))
	for _, lang := range c.Engine.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" {
			languages = append(languages, lang)
		}
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	c.Engine.Languages = languages
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
