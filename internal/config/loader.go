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
  3. Environment variables prefixed `FUNNEL_`, where `__` maps to “.”
     (e.g., `FUNNEL_HTTP__LISTEN_ADDR → http.listen_addr`,
     `FUNNEL_ADMIN__IDS=1,2 → admin.ids`).

Scalar defaults are applied to the struct before unmarshal, so YAML only
needs to carry what differs.  After merging, the tree is unmarshalled into
strongly-typed structs, validated, enriched with the runtime root path, and
cached in an `atomic.Pointer`.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read.
  • ERROR spans – YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  – final “config loaded” with key highlights.
  • Logs use the global sugared logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.
*/
package config

import (
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

const envPrefix = "FUNNEL_"

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves FUNNEL_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to the executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv(envPrefix + "ROOT"); r != "" {
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

/*──────────────────────────── defaults ─────────────────────────────────────*/

// defaults returns the scalar settings used when YAML and env are silent.
func defaults() Config {
	return Config{
		HTTP: HTTP{ListenAddr: ":8080"},
		Telegram: Telegram{
			WebhookPath:    "/webhook",
			RequestTimeout: 10 * time.Second,
		},
		Database: Database{Driver: "mysql"},
		Geo: Geo{
			Providers: []string{"ipinfo"},
			IPInfoURL: "https://ipinfo.io",
			Timeout:   5 * time.Second,
		},
		Funnel:    Funnel{SessionIdleTTL: 24 * time.Hour},
		Broadcast: Broadcast{Delay: 100 * time.Millisecond},
		Log:       Log{Level: "info"},
	}
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, validates, and caches Config.
func Load() (*Config, error) {
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

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}
	normalize(&cfg)

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"driver", cfg.Database.Driver,
		"scenarios", len(cfg.Funnel.Scenarios),
		"admins", len(cfg.Admin.IDs),
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// envKey maps FUNNEL_HTTP__LISTEN_ADDR to http.listen_addr.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// normalize upper-cases region codes so YAML may use either case.
func normalize(c *Config) {
	for i, r := range c.Funnel.BannedRegions {
		c.Funnel.BannedRegions[i] = strings.ToUpper(strings.TrimSpace(r))
	}
	if len(c.Funnel.Scenarios) > 0 {
		up := make(map[string]Scenario, len(c.Funnel.Scenarios))
		for k, s := range c.Funnel.Scenarios {
			up[strings.ToUpper(k)] = s
		}
		c.Funnel.Scenarios = up
	}
	if len(c.Destinations) > 0 {
		up := make(map[string]string, len(c.Destinations))
		for k, u := range c.Destinations {
			up[strings.ToUpper(k)] = u
		}
		c.Destinations = up
	}
	c.HTTP.PublicURL = strings.TrimRight(c.HTTP.PublicURL, "/")
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }
