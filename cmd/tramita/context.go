package main

import (
	"strings"
	"sync"
	"time"

	"tramita/internal/api"
	"tramita/internal/audit"
	"tramita/internal/config"
	"tramita/internal/deliver"
	"tramita/internal/fanout"
	"tramita/internal/logging"
	"tramita/internal/permissions"
	"tramita/internal/readstate"
	"tramita/internal/recipients"
	"tramita/internal/store"
	"tramita/internal/workflow"
)

// commandContext lazily loads configuration and opens the service stack
// exactly once across subcommands.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	stackOnce sync.Once
	store     *store.Store
	service   *api.Service
	workflow  *workflow.Workflow
	stackErr  error
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

// ensureService opens the store and wires the domain stack against the local
// database. The CLI talks to the same data the daemon serves.
func (c *commandContext) ensureService() (*api.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.stackOnce.Do(func() {
		st, err := store.Open(cfg)
		if err != nil {
			c.stackErr = err
			return
		}
		c.store = st

		logger := logging.NewNop()
		perms := permissions.NewEngine(logger)
		resolver := recipients.NewResolver(st, logger)
		dispatcher := deliver.NewDispatcher(logger,
			deliver.NewPushChannel(cfg.Notifications.PushEndpoint,
				time.Duration(cfg.Notifications.RequestTimeout)*time.Second),
			deliver.NewEmailChannel(cfg.Notifications.EmailEnabled, cfg.Notifications.EmailFrom, logger),
		)
		recorder := audit.NewRecorder(st, logger)
		notifier := fanout.NewService(st, resolver, dispatcher, recorder, logger,
			fanout.WithDefaultExpiry(time.Duration(cfg.Notifications.DefaultExpiryDays)*24*time.Hour))
		wf := workflow.New(st, perms, notifier, recorder, logger)
		tracker := readstate.NewTracker(st, logger)

		c.workflow = wf
		c.service = api.NewService(st, perms, notifier, wf, tracker, logger)
	})
	return c.service, c.stackErr
}

func (c *commandContext) ensureStore() (*store.Store, error) {
	if _, err := c.ensureService(); err != nil {
		return nil, err
	}
	return c.store, nil
}

func (c *commandContext) ensureWorkflow() (*workflow.Workflow, error) {
	if _, err := c.ensureService(); err != nil {
		return nil, err
	}
	return c.workflow, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}
