package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gurtlabs/gurtd/internal/api"
	"github.com/gurtlabs/gurtd/internal/config"
	"github.com/gurtlabs/gurtd/internal/indexing"
	"github.com/gurtlabs/gurtd/internal/logging"
	"github.com/gurtlabs/gurtd/internal/server"
	"github.com/gurtlabs/gurtd/internal/services"
	"github.com/gurtlabs/gurtd/internal/tlsutil"
)

const authorityAlpha = 0.7

func main() {
	var (
		listen   = flag.String("listen", "", "Override listen address (host:port)")
		jsonLogs = flag.Bool("json-logs", false, "Enable JSON structured logging")
		debug    = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *jsonLogs {
		cfg.LogFormat = "json"
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.Configure(logging.Config{
		Level:        cfg.LogLevel,
		Format:       cfg.LogFormat,
		DebugIndex:   cfg.DebugIndex,
		DebugResults: cfg.DebugResults,
		DebugUI:      cfg.DebugUI,
	})

	tlsConfig, err := tlsutil.ServerConfig(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		logger.Error("cannot load tls material", "cert", cfg.TLSCert, "key", cfg.TLSKey, "err", err)
		os.Exit(1)
	}

	svc, err := services.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to assemble services: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.Worker.Start(ctx)
	if cfg.BootstrapEnabled && svc.Store != nil {
		queued, err := svc.Worker.Bootstrap(ctx, indexing.BootstrapOptions{
			Limit:    cfg.BootstrapLimit,
			LogEvery: cfg.BootstrapLogEvery,
		})
		if err != nil {
			logger.Error("bootstrap failed", "err", err)
		} else if queued > 0 {
			logger.Info("resuming pending crawls", "queued", queued)
		}
	}

	if cfg.APIAddr != "" {
		admin := api.New(cfg.APIAddr,
			api.NewHandler(svc.Engine, svc.Store, svc.Worker, svc.Resolver, logger), logger)
		go func() {
			logger.Info("admin api listening", "addr", cfg.APIAddr)
			if err := admin.ListenAndServe(); err != nil {
				logger.Error("admin api exited", "err", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutCtx)
		}()
	}

	// Rank refresh runs in the background; queries read whatever
	// snapshot is current.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				svc.RecomputeAuthority(authorityAlpha)
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Info("gurtd starting",
		"listen", cfg.ListenAddr,
		"index", svc.Engine.Name(),
		"resolver", cfg.DNSHost,
	)

	srv := &server.Server{Logger: logger, Handler: svc.Router, TLS: tlsConfig}
	if err := srv.Run(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server exited with error", "err", err)
	}

	if cfg.AuthoritySnapshot != "" {
		if err := svc.Authority.SaveSnapshot(cfg.AuthoritySnapshot); err != nil {
			logger.Error("authority snapshot save failed", "err", err)
		}
	}
	svc.Close()
}
