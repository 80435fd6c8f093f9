// cmd/web/main.go
//
// Relay – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Connect to Vault when VAULT_ADDR is set, so `vault:` references in
//     the config resolve.
//
//  2. Load configuration (conf/.env → conf/global.yaml → RELAY_ env).
//
//  3. Start the rotating logger (tees to console when running in a TTY).
//
//  4. Open the optional GeoLite2 database and the document store.
//
//  5. Assemble the app: global stages, /metrics, and every component.
//
//  6. Serve until SIGINT or SIGTERM, then drain in-flight requests.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanizio/relay/internal/config"
	"github.com/yanizio/relay/internal/core"
	"github.com/yanizio/relay/internal/logger"
	"github.com/yanizio/relay/internal/requestinfo"
	"github.com/yanizio/relay/internal/server"
	"github.com/yanizio/relay/internal/vault"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Secrets ─────────────────────────────────────────────────────
	//
	var secrets config.SecretResolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx, nil)
		if err != nil {
			log.Fatalf("vault: %v", err)
		}
		secrets = vc
	}

	//
	// ── 2.  Config ──────────────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	//
	// ── 3.  Logger ──────────────────────────────────────────────────────
	//
	logOut, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Tee: cfg.Log.Tee})
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 4.  GeoIP and store ─────────────────────────────────────────────
	//
	var geo *requestinfo.GeoDB
	if cfg.GeoIP.DBPath != "" {
		geo, err = requestinfo.OpenGeo(cfg.GeoIP.DBPath)
		if err != nil {
			logOut.Warnw("geoip disabled", "path", cfg.GeoIP.DBPath, "err", err)
			geo = nil
		} else {
			defer geo.Close()
		}
	}

	st, err := core.OpenStore(ctx, cfg.Store)
	if err != nil {
		logOut.Fatalw("open store", "driver", cfg.Store.Driver, "err", err)
	}
	defer st.Close()
	logOut.Infow("store online", "driver", cfg.Store.Driver)

	//
	// ── 5.  App ─────────────────────────────────────────────────────────
	//
	app, err := core.New(ctx, core.Options{Config: cfg, Log: logOut, Store: st, Geo: geo})
	if err != nil {
		logOut.Fatalw("assemble app", "err", err)
	}

	//
	// ── 6.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, app.Handler, server.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})
	if err := server.Run(ctx, srv, logOut); err != nil {
		logOut.Errorw("http server", "err", err)
		os.Exit(1)
	}
}
