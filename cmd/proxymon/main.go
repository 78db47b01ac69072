package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/proxymon/internal/api"
	"github.com/edvin/proxymon/internal/config"
	"github.com/edvin/proxymon/internal/galeramon"
	"github.com/edvin/proxymon/internal/logging"
	"github.com/edvin/proxymon/internal/metrics"
	"github.com/edvin/proxymon/internal/model"
	"github.com/edvin/proxymon/internal/monitor"
	"github.com/edvin/proxymon/internal/mysqlmon"
	"github.com/edvin/proxymon/internal/postgresmon"
	"github.com/edvin/proxymon/internal/secrets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	sec, err := secrets.NewService(cfg.SecretsKeyFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load secrets key")
	}
	if !sec.HasKey() {
		logger.Warn().Msg("no secrets key configured, treating credentials as plaintext")
	}

	monitorsFile, err := config.LoadMonitors(cfg.MonitorsFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.MonitorsFile).Msg("failed to load monitors file")
	}

	monitorMetrics := metrics.NewMonitorMetrics(prometheus.DefaultRegisterer)

	modules := monitor.NewModuleSet()
	modules.Register(mysqlmon.Name, mysqlmon.New(logger))
	modules.Register(galeramon.Name, galeramon.New(logger))
	modules.Register(postgresmon.Name, postgresmon.New(logger))

	registry := monitor.NewRegistry(logger, modules, sec, monitorMetrics)
	if err := buildRegistry(registry, monitorsFile); err != nil {
		logger.Fatal().Err(err).Msg("failed to configure monitors")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry.StartAll(ctx)

	metricsServer := metrics.NewServer(cfg.MetricsAddr, prometheus.DefaultGatherer)
	adminServer := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           api.NewServer(logger, registry).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.AdminAddr).Msg("admin server listening")
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		registry.StopAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
		adminServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("shutdown complete")
}

// buildRegistry creates and configures one monitor per definition in the
// cluster file.
func buildRegistry(registry *monitor.Registry, file *config.MonitorsFile) error {
	for _, mc := range file.Monitors {
		mon, err := registry.Create(mc.Name, mc.Module)
		if err != nil {
			return err
		}

		if mc.Interval > 0 {
			mon.SetInterval(mc.Interval.Std())
		}
		timeouts := []struct {
			kind monitor.TimeoutKind
			d    config.Duration
		}{
			{monitor.ConnectTimeout, mc.ConnectTimeout},
			{monitor.ReadTimeout, mc.ReadTimeout},
			{monitor.WriteTimeout, mc.WriteTimeout},
		}
		for _, t := range timeouts {
			if t.d == 0 {
				continue
			}
			if err := mon.SetNetworkTimeout(t.kind, t.d.Std()); err != nil {
				return err
			}
		}

		mon.SetUser(mc.User, mc.Password)
		mon.SetScript(mc.Script)
		if mc.Events != "" {
			if err := mon.SetEventFilter(mc.Events); err != nil {
				return err
			}
		}

		params := make([]monitor.Parameter, 0, len(mc.Params))
		for _, p := range mc.Params {
			params = append(params, monitor.Parameter{Name: p.Name, Value: p.Value})
		}
		mon.AddParameters(params)

		for _, sc := range mc.Servers {
			node := mon.AddServer(model.NewServer(sc.Name, sc.Host, sc.Port))
			if sc.User != "" {
				node.SetCredentials(sc.User, sc.Password)
			}
		}
	}
	return nil
}
