package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/handle"
	"github.com/openmined/foldersync/internal/handle/fstree"
	"github.com/openmined/foldersync/internal/handle/s3tree"
	"github.com/openmined/foldersync/internal/metrics"
	"github.com/openmined/foldersync/internal/pairs"
	"github.com/openmined/foldersync/internal/sync"
)

// app wires the stores, the engine and the manager for one command.
type app struct {
	cfg     *config.Config
	store   *pairs.Store
	journal *sync.SyncJournal
	metrics *metrics.SyncMetrics
	manager *sync.SyncManager
}

func newApp(cfg *config.Config) (*app, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}

	ignore := sync.NewSyncIgnoreList(cfg.IgnorePatterns()...)
	if err := ignore.LoadFile(cfg.IgnoreFilePath()); err != nil {
		return nil, fmt.Errorf("load ignore file: %w", err)
	}

	journal := sync.NewSyncJournal(cfg.JournalFile)
	if err := journal.Open(); err != nil {
		return nil, err
	}

	m := metrics.New()
	engine := sync.NewSyncEngine(
		sync.WithIgnoreList(ignore),
		sync.WithObserver(m),
	)
	store := pairs.NewStore(cfg.PairsFile)
	manager := sync.NewManager(newResolver(cfg), store, engine, sync.WithJournal(journal))

	return &app{
		cfg:     cfg,
		store:   store,
		journal: journal,
		metrics: m,
		manager: manager,
	}, nil
}

func newResolver(cfg *config.Config) *handle.Resolver {
	r := handle.NewResolver()
	r.Register("file", fstree.DirOpener)
	r.Register("mem", fstree.MemoryOpener)
	r.Register("s3", s3tree.Opener(cfg.S3))
	return r
}

// flushMetrics writes the textfile when one is configured. Failures are only logged.
func (a *app) flushMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		slog.Warn("metrics", "path", a.cfg.MetricsFile, "error", err)
	}
}

func (a *app) Close() error {
	return a.journal.Close()
}

// withApp runs fn with an app built from the loaded config.
func (c *cli) withApp(fn func(a *app) error) error {
	a, err := newApp(c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
