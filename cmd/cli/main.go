// Command barqcoder is the interactive console for the coding agent: it
// wires the model provider, the tool set, the semantic index, and the
// session log together and runs the loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/barqworks/barqcoder/internal/config"
	"github.com/barqworks/barqcoder/internal/logging"
	"github.com/barqworks/barqcoder/internal/workspace"
	"github.com/barqworks/barqcoder/kernel/model/providers"
	"github.com/barqworks/barqcoder/kernel/retrieval"
	"github.com/barqworks/barqcoder/kernel/session/filestore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "barqcoder:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dir      = flag.String("dir", ".", "repository to start in")
		logLevel = flag.String("log-level", "info", "debug, info, warn, or error")
	)
	flag.Parse()

	cfg, err := config.Load(*dir)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level: *logLevel,
		File:  filepath.Join(cfg.StateDir, "barqcoder.log"),
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	llm, err := providers.New(providers.Config{
		Provider:  cfg.Model.Provider,
		APIKey:    cfg.Model.APIKey,
		BaseURL:   cfg.Model.BaseURL,
		Model:     cfg.Model.Name,
		MaxTokens: cfg.Model.TokenLimit,
	})
	if err != nil {
		return err
	}

	store, err := filestore.New(cfg.SessionsDir())
	if err != nil {
		return err
	}
	idx, err := newSessionIndex(filepath.Join(cfg.StateDir, "sessions.db"))
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()
	if err := idx.SyncFromStoreDir(cfg.SessionsDir()); err != nil {
		logger.Warn("session index backfill failed", zap.Error(err))
	}

	registry, err := workspace.Open(cfg.WorkspacesFile())
	if err != nil {
		return err
	}
	if _, ok := registry.Active(); !ok {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return err
		}
		if addErr := registry.Add("default", abs); addErr != nil {
			logger.Warn("default workspace registration failed", zap.Error(addErr))
		}
	}

	vectors, err := retrieval.NewStore(retrieval.Config{
		Path:       cfg.IndexDir(),
		EmbedModel: cfg.Retrieval.EmbedModel,
		OllamaURL:  cfg.Model.BaseURL + "/api",
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("console starting",
		zap.String("provider", llm.Name()),
		zap.String("model", cfg.Model.Name),
		zap.String("state_dir", cfg.StateDir),
	)
	c := &console{
		cfg:      cfg,
		logger:   logger,
		llm:      llm,
		store:    store,
		idx:      idx,
		registry: registry,
		vectors:  vectors,
		out:      os.Stdout,
	}
	return c.run(ctx)
}
