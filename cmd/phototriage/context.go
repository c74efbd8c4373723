package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"phototriage/internal/classify"
	"phototriage/internal/config"
	"phototriage/internal/library/fslibrary"
	"phototriage/internal/logging"
	"phototriage/internal/triage"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withEngine constructs the engine for one command invocation and tears it
// down afterwards. Engine logs go to the state-directory log file so command
// output on stdout stays clean.
func (c *commandContext) withEngine(fn func(*triage.Engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{cfg.LogPath()},
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	source := fslibrary.New(cfg, logger)
	engine, err := triage.NewEngine(cfg, source, classify.FileLoader(cfg.Classifier.ModelPath), logger)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	return fn(engine)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
