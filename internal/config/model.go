// internal/config/model.go
//
// Typed configuration model for geofunnel.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `FUNNEL_`-prefixed environment overrides – highest precedence.
//
// Any secret-bearing value whose string begins with `vault:` is resolved
// through the Vault client by ResolveSecrets before the bot starts, so the
// rest of the program only ever sees plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing or a DEFAULT entry is absent.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Config is immutable after Load.  Components receive the sections they
//     need at construction and never read the package-level pointer.

package config

import "time"

// DefaultRegion is the reserved fallback key for scenarios and destinations.
const DefaultRegion = "DEFAULT"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	PublicURL  string `koanf:"public_url"  validate:"required,url"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Telegram section
//

// Telegram holds the bot credentials and webhook settings.
type Telegram struct {
	Token          string        `koanf:"token"           validate:"required"`
	WebhookPath    string        `koanf:"webhook_path"    validate:"required,startswith=/"`
	WebhookSecret  string        `koanf:"webhook_secret"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
}

//
// Database section
//

// Database selects the SQL driver and DSN.  The DSN may be a `vault:` ref.
type Database struct {
	Driver string `koanf:"driver" validate:"required,oneof=mysql sqlite3 postgres"`
	DSN    string `koanf:"dsn"    validate:"required"`
}

//
// Geo section
//

// Geo configures the region lookup chain.  Providers are tried in order.
type Geo struct {
	Providers   []string      `koanf:"providers"    validate:"required,min=1,dive,oneof=ipinfo maxmind"`
	IPInfoURL   string        `koanf:"ipinfo_url"   validate:"omitempty,url"`
	IPInfoToken string        `koanf:"ipinfo_token"`
	MaxMindDB   string        `koanf:"maxmind_db"`
	Timeout     time.Duration `koanf:"timeout"      validate:"gt=0"`
}

//
// Funnel section
//

// Scenario is one localized bundle as written in YAML.
type Scenario struct {
	Language    string   `koanf:"language"     validate:"required"`
	Currency    string   `koanf:"currency"     validate:"required"`
	Steps       []string `koanf:"steps"        validate:"len=4,dive,required"`
	FinalButton string   `koanf:"final_button" validate:"required"`
}

// Funnel holds the conversation policy: deny-list, bundles, and session TTL.
type Funnel struct {
	BannedRegions  []string            `koanf:"banned_regions"   validate:"dive,region"`
	SessionIdleTTL time.Duration       `koanf:"session_idle_ttl" validate:"gt=0"`
	Scenarios      map[string]Scenario `koanf:"scenarios"        validate:"required,dive,keys,region,endkeys"`
}

//
// Admin and broadcast sections
//

// Admin is the identity allow-list for the admin command surface.
type Admin struct {
	IDs []int64 `koanf:"ids" validate:"dive,gt=0"`
}

// Broadcast holds the fan-out throttle.
type Broadcast struct {
	Delay time.Duration `koanf:"delay" validate:"gt=0"`
}

// Log selects the minimum level written to the log sinks.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime and never set in YAML or env.
type Paths struct {
	Root string // FUNNEL_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads by bootstrap code.
type Config struct {
	HTTP         HTTP              `koanf:"http"`
	Telegram     Telegram          `koanf:"telegram"`
	Database     Database          `koanf:"database"`
	Geo          Geo               `koanf:"geo"`
	Funnel       Funnel            `koanf:"funnel"`
	Admin        Admin             `koanf:"admin"`
	Broadcast    Broadcast         `koanf:"broadcast"`
	Destinations map[string]string `koanf:"destinations" validate:"required,dive,keys,region,endkeys,required,url"`
	Log          Log               `koanf:"log"`
	Paths        Paths             `koanf:"-"` // not loaded from config files
}
