package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptodash/config"
	"cryptodash/internal/dashboard"
	"cryptodash/internal/metrics"
	"cryptodash/internal/panel"
	"cryptodash/internal/refresh"
	"cryptodash/internal/tui"
	"cryptodash/logger"
	"cryptodash/reader/coingecko"
)

const (
	defaultConfigPath = "config/config.yml"
	terminalLogFile   = "cryptodash.log"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	mode := flag.String("mode", "", "Override ui.mode (web or terminal)")
	flag.Parse()

	path := config.ResolveConfigPath(*configPath, defaultConfigPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *mode != "" {
		if err := cfg.SetMode(*mode); err != nil {
			log.WithError(err).WithField("mode", *mode).Error("Invalid -mode flag")
			os.Exit(1)
		}
	}

	logOutput := cfg.Logging.Output
	if cfg.UI.Mode == config.UIModeTerminal && (logOutput == "" || logOutput == "stdout" || logOutput == "stderr") {
		// the terminal UI owns the screen
		logOutput = terminalLogFile
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, logOutput, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": config.AppEnvironment(),
		"config":      path,
		"mode":        cfg.UI.Mode,
	}).Info("starting cryptodash")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder(log)
	defs := panel.Definitions(cfg.Panels)

	if cfg.Metrics.CloudWatch.Enabled {
		cw := cfg.Metrics.CloudWatch
		if err := logger.InitCloudWatch(ctx, cw.Region, cw.Namespace, cw.Dashboard); err == nil {
			subscription := metrics.ForwardToCloudWatch(ctx)
			defer metrics.Unsubscribe(subscription)

			ids := make([]string, 0, len(defs))
			for _, d := range defs {
				ids = append(ids, d.ID)
			}
			logger.CreateDefaultDashboard(ctx, ids)
		}
	}

	loc := cfg.Location()
	policy := refresh.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
	}

	panels := make([]panel.Panel, 0, len(defs))
	for _, def := range defs {
		// one client per panel
		client := coingecko.NewClient(cfg.Source, loc, log)
		p, err := panel.New(def, client, refresh.Options{
			Policy:   policy,
			Observer: recorder,
			Logger:   log,
		})
		if err != nil {
			log.WithError(err).WithField("panel", def.ID).Error("failed to build panel")
			os.Exit(1)
		}
		recorder.Track(def.ID)
		panels = append(panels, p)
	}

	var ui func(context.Context) error
	switch cfg.UI.Mode {
	case config.UIModeTerminal:
		ui = tui.New(panels, cfg.UI.Attribution, loc, log).Run
	default:
		var metricsHandler http.Handler
		if cfg.Metrics.Prometheus {
			metricsHandler = recorder.Handler()
		}
		srv, err := dashboard.NewServer(cfg.Dashboard, dashboard.Options{
			AppName:     cfg.App.Name,
			Attribution: cfg.UI.Attribution,
			Location:    loc,
			Panels:      panels,
			Metrics:     metricsHandler,
		}, log)
		if err != nil {
			log.WithError(err).Error("failed to create dashboard server")
			os.Exit(1)
		}
		ui = srv.Run
	}

	for _, p := range panels {
		if err := p.Start(ctx); err != nil {
			log.WithError(err).WithField("panel", p.ID()).Error("failed to start panel")
			os.Exit(1)
		}
	}

	uiDone := make(chan error, 1)
	go func() {
		uiDone <- ui(ctx)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	uiStopped := false
	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-uiDone:
		uiStopped = true
		if err != nil {
			log.WithError(err).Error("user interface exited with error")
		} else {
			log.Info("user interface closed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping panels")
	for _, p := range panels {
		p.Stop()
	}

	if !uiStopped {
		select {
		case err := <-uiDone:
			if err != nil {
				log.WithError(err).Warn("user interface stopped with error")
			}
			log.Info("graceful shutdown completed")
		case <-time.After(30 * time.Second):
			log.Warn("graceful shutdown timeout exceeded")
		}
	}

	log.Info("cryptodash stopped")
}
