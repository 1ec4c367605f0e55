// Command honeypotd runs the interactive FTP honeypot: the control-port
// listener, the background housekeeper, and an optional Prometheus
// metrics endpoint.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kestrelsec/ftphoney/internal/config"
	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/events"
	"github.com/kestrelsec/ftphoney/internal/ftpsession"
	"github.com/kestrelsec/ftphoney/internal/housekeeper"
	"github.com/kestrelsec/ftphoney/internal/listener"
	"github.com/kestrelsec/ftphoney/internal/logger"
	"github.com/kestrelsec/ftphoney/internal/loginpolicy"
	"github.com/kestrelsec/ftphoney/internal/metrics"
	"github.com/kestrelsec/ftphoney/internal/realfs"
	"github.com/kestrelsec/ftphoney/internal/vfs"
)

var (
	flagConfigFile string
	flagFTPPort    int
	flagLogLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "honeypotd",
		Short: "Interactive FTP honeypot",
		RunE:  run,
	}
	root.Flags().StringVar(&flagConfigFile, "config", "", "path to a honeypot config file")
	root.Flags().IntVar(&flagFTPPort, "ftp-port", 0, "override the configured FTP control port (0 = use config)")
	root.Flags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, cfgErr := config.Load(flagConfigFile)
	if flagFTPPort != 0 {
		cfg.FTPPort = flagFTPPort
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	log := logger.New(cfg.LogLevel)
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("config file not loaded; using defaults and environment")
	}

	provider, err := openProvider(cfg)
	if err != nil {
		return fmt.Errorf("honeypotd: open data provider: %w", err)
	}

	fsAdapter := realfs.New(cfg.BaseSavePath)
	seedFn := func() ([]vfs.SeedFile, error) {
		return realfs.SeedFiles(cfg.SeedFilesPath)
	}

	policy := loginpolicy.New(provider, cfg.NumberOfTriesBeforeSuccess, seedFn, rand.New(rand.NewSource(time.Now().UnixNano())))
	emitter := events.New(cfg.HoneynetID, cfg.HoneynetToken, cfg.HoneynetURL, log)

	reg := metrics.New()
	promReg := prometheus.NewRegistry()
	reg.MustRegister(promReg)

	sessionCfg := ftpsession.Config{
		WelcomeMessage:  cfg.FTPWelcomeMessage,
		HelpMessage:     cfg.FTPHelpMessage,
		RealUploadMode:  cfg.FileUploadReal,
		CanBeDownloaded: cfg.CanBeDownloaded,
		BasePath:        cfg.BaseSavePath,
	}

	ftpAddr := fmt.Sprintf(":%d", cfg.FTPPort)
	ln := listener.New(ftpAddr, cfg.MaxConcurrentUsers, sessionCfg, provider, policy, emitter, fsAdapter, reg, log)

	hk := housekeeper.New(provider, emitter, fsAdapter, housekeeper.Config{
		VirusTotalToken:     cfg.VirusTotalToken,
		VirusTotalHashURL:   cfg.VirusTotalHashURL,
		VirusTotalResultURL: cfg.VirusTotalResultURL,
		RealUploadMode:      cfg.FileUploadReal,
		StaleAfter:          config.StaleAfter,
	}, reg, log)
	if err := hk.Start(cfg.IntervalMinutes); err != nil {
		return fmt.Errorf("honeypotd: start housekeeper: %w", err)
	}
	defer hk.Stop()

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(promReg))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- ln.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("honeypotd: listener stopped: %w", err)
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := ln.Stop(); err != nil {
			log.Warn().Err(err).Msg("error stopping listener")
		}
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}
	}
	return nil
}

func openProvider(cfg *config.Config) (dataprovider.Provider, error) {
	switch cfg.DatabaseDriver {
	case "mysql":
		return dataprovider.OpenMySQL(cfg.DatabaseDSN)
	default:
		return dataprovider.OpenSQLite(cfg.DatabaseDSN)
	}
}
