// internal/core/app.go
//
// Application assembly.
//
// Context
// -------
// New wires one running service out of its parts.  Every request runs:
//
//   request id → arrival log → HTTPS redirect (optional) → security
//   headers → CORS → rate limit (optional) → client info → JSON body →
//   group guards → route stages
//
// and every failure, matched route or not, ends in the shared error stage.
// /metrics is mounted beside the table so scrapes skip the pipeline.
//
// Workflow
// --------
//   1. config.Load, logger.New, and OpenStore happen in cmd/web.
//   2. New builds tokens, views, the route table, and mounts every
//      registered component.
//   3. App.Handler is ready for server.New.
//
// Notes
// -----
// • Components are linked in by the blank imports in components.go.
// • Oxford commas, two spaces after periods.

package core

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/auth"
	"github.com/yanizio/relay/internal/component"
	"github.com/yanizio/relay/internal/config"
	"github.com/yanizio/relay/internal/guard"
	"github.com/yanizio/relay/internal/middleware"
	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/requestinfo"
	"github.com/yanizio/relay/internal/routing"
	"github.com/yanizio/relay/internal/store"
	"github.com/yanizio/relay/internal/view"
)

// Options are the already-opened dependencies New assembles.
type Options struct {
	Config *config.Config
	Log    *zap.SugaredLogger
	Store  store.Store
	Geo    *requestinfo.GeoDB // nil disables geolocation
	Views  *view.Renderer     // nil means read from Config.Views.Dir
}

// App is the assembled service.
type App struct {
	Handler http.Handler
	Table   *routing.Table
	Env     *component.Env
}

// New builds the route table and mounts every component.
func New(ctx context.Context, o Options) (*App, error) {
	if o.Config == nil || o.Store == nil {
		return nil, errors.New("core: config and store are required")
	}
	cfg := o.Config
	log := o.Log
	if log == nil {
		log = zap.S()
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	views := o.Views
	if views == nil {
		views = view.New(os.DirFS(cfg.Views.Dir), view.Options{Reload: cfg.Views.Reload})
	}

	env := &component.Env{
		Log:    log,
		Config: cfg,
		Store:  o.Store,
		Views:  views,
		Tokens: tokens,
	}

	tbl := routing.New(pipeline.ErrorHandler(log), routing.WithLogger(log))
	tbl.Use(globalStages(cfg, log, o.Geo)...)
	tbl.Mount("/metrics", promhttp.Handler())

	if err := component.MountAll(ctx, tbl, env); err != nil {
		return nil, err
	}

	h, err := tbl.Handler()
	if err != nil {
		return nil, err
	}
	if cfg.HTTP.Compress {
		h = gzhttp.GzipHandler(h)
	}

	log.Infow("routes compiled", "count", len(tbl.Routes()))
	return &App{Handler: h, Table: tbl, Env: env}, nil
}

func globalStages(cfg *config.Config, log *zap.SugaredLogger, geo *requestinfo.GeoDB) []pipeline.Stage {
	stages := []pipeline.Stage{
		middleware.RequestID(),
		middleware.Logger(log),
	}
	if cfg.HTTP.ForceHTTPS {
		stages = append(stages, middleware.ForceHTTPS())
	}
	stages = append(stages,
		middleware.Security(),
		middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
			MaxAge:         cfg.CORS.MaxAge,
		}),
	)
	if cfg.RateLimit.RPS > 0 {
		stages = append(stages, guard.RateLimit(guard.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}
	return append(stages,
		requestinfo.Enrich(geo),
		middleware.JSONBody(cfg.HTTP.MaxBodyBytes),
	)
}
