package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// runDaemon serves the HTTP API and drives the periodic rollup,
// fleet snapshot and retention passes until the context is cancelled.
func (a *app) runDaemon(ctx context.Context) {
	srv := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      a.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server failed", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	a.startTicker(ctx, &wg, "rollup", a.cfg.RollupInterval, func(ctx context.Context) error {
		return a.rollups.Run(ctx, time.Time{})
	})
	a.startTicker(ctx, &wg, "snapshot", a.cfg.SnapshotInterval, a.pipeline.RecordFleetSnapshot)
	a.startTicker(ctx, &wg, "cleanup", a.cfg.CleanupInterval, a.maintainer.Run)

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown failed", zap.Error(err))
	}
	wg.Wait()
}

// startTicker runs pass at the given interval. A pass that is still
// running when the ticker fires again is skipped, not stacked.
func (a *app) startTicker(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, pass func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		var busy atomic.Bool
		run := func() {
			if !busy.CompareAndSwap(false, true) {
				a.logger.Warn("pass still running, skipping tick", zap.String("pass", name))
				return
			}
			defer busy.Store(false)
			if err := pass(ctx); err != nil {
				a.logger.Error("periodic pass failed", zap.String("pass", name), zap.Error(err))
			}
		}

		run()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
