package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/executors"
	"scribe/internal/history"
	"scribe/internal/intake"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/state"
	"scribe/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPathFlag() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configPathFlag())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// pipeline is everything a run needs, opened from configuration.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *state.Store
	history  *history.Store
	manager  *workflow.Manager
	registry executors.Registry
	unlock   func() error
}

func (p *pipeline) Close() {
	if p.history != nil {
		_ = p.history.Close()
	}
	if p.unlock != nil {
		_ = p.unlock()
	}
}

// openPipeline builds clients, executors and the manager, and takes the
// single writer lock on the state document.
func (c *commandContext) openPipeline(ctx context.Context, progress workflow.ProgressFunc) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	logging.Prune(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "*.log", Keep: []string{logFilePath(cfg)}},
		logging.RetentionTarget{Dir: filepath.Dir(cfg.Paths.StateFile), Pattern: filepath.Base(cfg.Paths.StateFile) + ".corrupt-*"},
	)

	clients, err := executors.NewClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	checker := state.NewSchemeChecker()
	clients.RegisterCheckers(checker)

	store, err := state.Open(cfg.Paths.StateFile, logger, state.WithChecker(checker))
	if err != nil {
		return nil, err
	}
	unlock, err := store.Lock()
	if err != nil {
		return nil, err
	}
	p := &pipeline{cfg: cfg, logger: logger, store: store, unlock: unlock}

	opts := []workflow.ManagerOption{
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithMailer(notifications.NewMailer(cfg.Email)),
	}
	if cfg.History.Enabled {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		p.history = hist
		opts = append(opts, workflow.WithHistory(hist))
	}
	if progress != nil {
		opts = append(opts, workflow.WithProgress(progress))
	}

	var drive intake.DriveLister
	if clients.Drive != nil {
		drive = clients.Drive
	}
	scanner := intake.NewScanner(cfg, drive, logger)
	p.registry = executors.Build(cfg, clients.Collaborators(cfg), logger)
	p.manager = workflow.NewManager(cfg, store, scanner, p.registry, logger, opts...)
	return p, nil
}

// openReadOnlyStore loads the state document without locking or writing it.
func (c *commandContext) openReadOnlyStore() (*state.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return state.OpenReadOnly(cfg.Paths.StateFile, logging.NewNop())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
