package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cooker/internal/api"
	"cooker/internal/config"
	"cooker/internal/docker"
	"cooker/internal/health"
	"cooker/internal/kubernetes"
	"cooker/internal/observability"
	"cooker/internal/runner"
	"cooker/internal/supervisor"
)

// teardownGrace bounds how long abandoned runners get to clean up.
const teardownGrace = 30 * time.Second

// substrate is what the process needs from a backend implementation.
type substrate interface {
	NewBackend(jobName string) runner.Backend
	Ready(ctx context.Context) error
}

func newSubstrate(cfg *config.CookerConfig) (substrate, func(), error) {
	switch cfg.Backend {
	case config.BackendDocker:
		dockerCfg, err := docker.LoadConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		s, err := docker.NewSubstrate(dockerCfg)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using Docker daemon", "image", dockerCfg.Workload.Image)
		return s, func() { _ = s.Close() }, nil

	case config.BackendKubernetes:
		kubeCfg, err := kubernetes.LoadConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		clientset, source, err := kubernetes.NewClientset(kubeCfg)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using Kubernetes cluster", "config", source, "namespace", kubeCfg.Namespace, "image", kubeCfg.Workload.Image)
		return kubernetes.NewSubstrate(clientset, kubeCfg), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func run(ctx context.Context, cfg *config.CookerConfig) error {
	sub, closeSubstrate, err := newSubstrate(cfg)
	if err != nil {
		return err
	}
	defer closeSubstrate()

	readyCtx, readyCancel := context.WithTimeout(ctx, 10*time.Second)
	err = sub.Ready(readyCtx)
	readyCancel()
	if err != nil {
		return fmt.Errorf("backend not ready: %w", err)
	}

	metrics, metricsHandler, err := observability.NewMetrics(ctx, cfg.Backend)
	if err != nil {
		return err
	}

	sup, err := supervisor.New(supervisor.Config{
		Factory:      sub.NewBackend,
		PollInterval: cfg.StatusInterval,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}

	healthChecker := health.NewChecker(sub)

	var server *http.Server
	if cfg.MetricsEnabled() {
		server = &http.Server{
			Addr: ":" + cfg.MetricsPort,
			Handler: api.NewRouter(api.RouterConfig{
				HealthChecker:  healthChecker,
				MetricsHandler: metricsHandler,
				Status:         sup,
			}),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("Starting status server", "port", cfg.MetricsPort)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Status server failed", "error", err)
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First signal stops the runners, a second one abandons them.
	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		stopping := false
		for {
			select {
			case sig := <-quit:
				if !stopping {
					stopping = true
					slog.Info("Received shutdown signal, stopping runners", "signal", sig)
					healthChecker.SetShuttingDown()
					sup.StopAll()
					continue
				}
				slog.Warn("Received second signal, abandoning runners", "signal", sig)
				cancel()
				return
			case <-runCtx.Done():
				return
			}
		}
	}()

	slog.Info("Launching runners", "count", cfg.NumJobs, "backend", cfg.Backend)
	if err := sup.Launch(runCtx, cfg.NumJobs); err != nil {
		return err
	}

	_, waitErr := sup.AwaitCompletion(runCtx)
	if waitErr != nil {
		select {
		case <-sup.Done():
		case <-time.After(teardownGrace):
			slog.Warn("Runners still tearing down", "grace", teardownGrace)
		}
	}

	logReport(sup.Report())

	if cfg.InCluster && waitErr == nil {
		park(runCtx)
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Status server shutdown error", "error", err)
		}
	}

	if waitErr != nil {
		return fmt.Errorf("runners abandoned: %w", waitErr)
	}
	slog.Info("Shutdown complete")
	return nil
}

func logReport(r supervisor.Report) {
	attrs := []any{
		"launched", r.Launched,
		"maxConcurrent", r.MaxConcurrent,
		"failed", r.Failed,
		"completed", r.Completed,
		"stopped", r.Stopped,
	}
	if r.Finished > 0 {
		attrs = append(attrs,
			"lifetimeMin", r.LifetimeMin,
			"lifetimeP50", r.LifetimeP50,
			"lifetimeP90", r.LifetimeP90,
			"lifetimeP99", r.LifetimeP99,
			"lifetimeMax", r.LifetimeMax,
		)
	}
	slog.Info("Stress run report", attrs...)
}

// park keeps an in-cluster process alive so its logs and metrics stay
// available, until a signal arrives or ctx ends.
func park(ctx context.Context) {
	slog.Info("Running in cluster, parking until signalled")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
	case <-ctx.Done():
	}
}
