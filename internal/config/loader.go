// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `RELAY_`, where `__` maps to “.”
     (e.g., `RELAY_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs,
defaults are filled in, `vault:` references are resolved, the result is
validated, enriched with the runtime root path, and cached in an
`atomic.Pointer` for lock-free reads.

Instrumentation
---------------
  • DEBUG — root discovery, YAML read, env overlay.
  • ERROR — YAML parse, env overlay, unmarshal, secret, validation failures.
  • INFO  — final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface before the file logger is installed.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "RELAY_"

// SecretPrefix marks a value to be fetched through a SecretResolver.
const SecretPrefix = "vault:"

// SecretResolver turns the part after "vault:" (path#key) into a value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves RELAY_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.  secrets may be nil when no value uses a vault reference.
func Load(ctx context.Context, secrets SecretResolver) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: RELAY_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)

	if err := resolveSecrets(ctx, &cfg, secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"store", cfg.Store.Driver,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

/*──────────────────────────── defaults ────────────────────────────────────*/

func applyDefaults(c *Config) {
	setDefault(&c.HTTP.ListenAddr, ":3000")
	setDefault(&c.HTTP.ReadTimeout, 10*time.Second)
	setDefault(&c.HTTP.WriteTimeout, 15*time.Second)
	setDefault(&c.HTTP.IdleTimeout, 60*time.Second)
	setDefault(&c.HTTP.MaxBodyBytes, 1<<20)

	setDefault(&c.Log.Dir, filepath.Join(c.Paths.Root, "logs"))
	setDefault(&c.Log.Level, "info")

	setDefault(&c.Store.Driver, "memory")

	setDefault(&c.Auth.LoginRole, "admin")
	setDefault(&c.Auth.TokenTTL, time.Hour)

	setDefault(&c.Upload.MaxBytes, 10<<20)
	setDefault(&c.Views.Dir, filepath.Join(c.Paths.Root, "views"))

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}

	// Relative paths are anchored at the root, not the cwd.
	for _, p := range []*string{&c.Log.Dir, &c.Views.Dir, &c.GeoIP.DBPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.Paths.Root, *p)
		}
	}
}

func setDefault[T comparable](p *T, v T) {
	var zero T
	if *p == zero {
		*p = v
	}
}

/*──────────────────────────── secrets ─────────────────────────────────────*/

// resolveSecrets swaps every vault reference among the secret-bearing
// fields for its value.
func resolveSecrets(ctx context.Context, c *Config, r SecretResolver) error {
	fields := map[string]*string{
		"store.dsn":           &c.Store.DSN,
		"auth.api_key":        &c.Auth.APIKey,
		"auth.admin_password": &c.Auth.AdminPassword,
		"auth.jwt_secret":     &c.Auth.JWTSecret,
		"auth.login_password": &c.Auth.LoginPassword,
	}
	for name, p := range fields {
		ref, ok := strings.CutPrefix(*p, SecretPrefix)
		if !ok {
			continue
		}
		if r == nil {
			return fmt.Errorf("config: %s references a secret but no resolver is configured", name)
		}
		val, err := r.Resolve(ctx, ref)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", name, err)
		}
		*p = val
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the last loaded Config, or nil before the first Load.
func Get() *Config { return current.Load() }
