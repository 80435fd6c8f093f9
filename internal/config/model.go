// internal/config/model.go
//
// Typed configuration model for Relay.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `RELAY_`-prefixed environment overrides – highest precedence.
//
// Secret fields may hold a `vault:<path>#<key>` reference.  The loader
// swaps those for the real value through a SecretResolver after defaults
// are applied, so the rest of the app only ever sees plain strings.
//
// Validation happens immediately after resolution; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • Durations accept Go syntax ("15s", "2h").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	Compress     bool          `koanf:"compress"`
	MaxBodyBytes int64         `koanf:"max_body_bytes" validate:"gte=0"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

//
// Log section
//

// Log controls the file logger.
type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Tee   string `koanf:"tee"   validate:"omitempty,oneof=always never"`
}

//
// Store section
//

// Store selects the document backend.  DSN is a MySQL DSN, a SQLite path
// (":memory:" is fine), or a MongoDB URI; it may be a vault reference.
type Store struct {
	Driver   string `koanf:"driver"   validate:"required,oneof=memory mysql sqlite mongo"`
	DSN      string `koanf:"dsn"      validate:"required_unless=Driver memory"`
	Database string `koanf:"database" validate:"required_if=Driver mongo"`
}

//
// Auth section
//

// Auth holds the shared secrets the guards and the login route compare
// against.
type Auth struct {
	APIKey        string        `koanf:"api_key"        validate:"required"`
	AdminPassword string        `koanf:"admin_password" validate:"required"`
	JWTSecret     string        `koanf:"jwt_secret"     validate:"required,min=16"`
	LoginUser     string        `koanf:"login_user"     validate:"required"`
	LoginPassword string        `koanf:"login_password" validate:"required"`
	LoginRole     string        `koanf:"login_role"`
	TokenTTL      time.Duration `koanf:"token_ttl"      validate:"gt=0"`
}

//
// Upload, Views, RateLimit, GeoIP, CORS
//

// Upload limits multipart bodies.
type Upload struct {
	MaxBytes int64 `koanf:"max_bytes" validate:"gt=0"`
}

// Views locates HTML templates.
type Views struct {
	Dir    string `koanf:"dir"`
	Reload bool   `koanf:"reload"`
}

// RateLimit configures the per-IP token bucket.  RPS 0 disables it.
type RateLimit struct {
	RPS   float64 `koanf:"rps"   validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
}

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

// CORS mirrors middleware.CORSOptions.
type CORS struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
	AllowedMethods []string `koanf:"allowed_methods"`
	AllowedHeaders []string `koanf:"allowed_headers"`
	MaxAge         int      `koanf:"max_age"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // RELAY_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Log       Log       `koanf:"log"`
	Store     Store     `koanf:"store"`
	Auth      Auth      `koanf:"auth"`
	Upload    Upload    `koanf:"upload"`
	Views     Views     `koanf:"views"`
	RateLimit RateLimit `koanf:"ratelimit"`
	GeoIP     GeoIP     `koanf:"geoip"`
	CORS      CORS      `koanf:"cors"`
	Paths     Paths     `koanf:"-"`
}
