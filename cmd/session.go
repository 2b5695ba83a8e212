// Package cmd holds the pkgview subcommands.
package cmd

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/pkgview/cli"
	"github.com/grovetools/pkgview/config"
	"github.com/grovetools/pkgview/internal/engine"
	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/internal/server"
	"github.com/grovetools/pkgview/internal/store"
	"github.com/grovetools/pkgview/internal/telemetry"
	"github.com/grovetools/pkgview/pkg/catalog"
	"github.com/grovetools/pkgview/pkg/paths"
	"github.com/grovetools/pkgview/pkg/profiling"
	"github.com/grovetools/pkgview/state"
)

// session is one running engine wired to the local catalog.
type session struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	store   *store.Store
	engine  *engine.Engine
	adapter *fanin.Adapter
	metrics *telemetry.Metrics
	remote  *fanin.Subscription
	logger  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// openSession loads the configuration, starts the engine and restores the
// surface settings. project, if set, overrides the configured surface.
func openSession(cmd *cobra.Command, project string) (*session, error) {
	defer profiling.Start("open session").Stop()

	timer := profiling.Start("load config")
	cfg, err := cli.LoadConfig(cmd)
	timer.Stop()
	if err != nil {
		return nil, err
	}
	if project != "" {
		cfg.Surface.Project = project
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	timer = profiling.Start("load catalog")
	cat, err := catalog.Load(cfg.Catalog.Path)
	timer.Stop()
	if err != nil {
		return nil, err
	}
	cat.Latency = cfg.Catalog.Latency

	settingsPath := cfg.Settings.Path
	if settingsPath == "" {
		dir := paths.StateDir()
		if cfg.Path() != "" {
			dir = filepath.Dir(cfg.Path())
		}
		settingsPath = state.DefaultPath(dir)
	}

	st := store.New()
	metrics := telemetry.NewMetrics(st.Counts)
	logger := cli.GetLogger(cmd)

	opts := engine.OptionsFromConfig(cfg)
	opts.Backend = cat
	opts.Store = st
	opts.Settings = state.NewStore(settingsPath)
	opts.Observer = metrics
	opts.Logger = logger.WithField("component", "engine")
	eng, err := engine.New(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	s := &session{
		cfg:     cfg,
		catalog: cat,
		store:   st,
		engine:  eng,
		adapter: fanin.New(eng),
		metrics: metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := eng.Run(ctx); err != nil {
			logger.WithError(err).Warn("Engine stopped")
		}
	}()

	timer = profiling.Start("initialize engine")
	err = eng.Initialize(ctx)
	timer.Stop()
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.Server.Enabled {
		srv := server.New(logger.WithField("component", "server"), st, metrics.Handler())
		s.remote = s.adapter.Attach(ctx, srv.Events())
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Address); err != nil {
				logger.WithError(err).Warn("Server failed")
			}
		}()
	}
	return s, nil
}

// dispatch sends ev and waits for its outcome.
func (s *session) dispatch(ev fanin.Event) engine.Outcome {
	select {
	case o := <-s.adapter.Dispatch(s.ctx, ev):
		return o
	case <-s.ctx.Done():
		return engine.NoOp
	}
}

// Close stops the engine and waits for it.
func (s *session) Close() {
	if s.remote != nil {
		s.remote.Close()
	}
	s.cancel()
	s.engine.Close()
	<-s.done
}
