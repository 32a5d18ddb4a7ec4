package bridge

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	MaxSecretSize = 64
	MinSecretSize = 32
)

// Config configures one bridge server: where it listens, where its
// audit store lives, and the secret it signs client JWTs with.
// Grounded on server/config.go's Config, trimmed to what a
// single-tenant protocol host needs (no DB-engine choice: the audit
// store is always internal/store/sqlite).
type Config struct {
	// BindAddr is the "host:port" the bridge's HTTP server listens on.
	BindAddr string

	// DataDir is where the audit database and any unit-registry files
	// live.
	DataDir string

	// TokenSecret signs and validates client JWTs.
	TokenSecret []byte

	// UnauthDelayMillis deprioritizes HTTP-401/403/500 responses by
	// this many milliseconds before they're sent, the same anti-flood
	// measure as server.Config.UnauthDelay.
	UnauthDelayMillis int
}

// FillDefaults returns a copy of cfg with unset fields set to their
// defaults, mirroring server.Config.FillDefaults.
func (cfg Config) FillDefaults() Config {
	filled := cfg
	if filled.BindAddr == "" {
		filled.BindAddr = "localhost:8080"
	}
	if filled.DataDir == "" {
		filled.DataDir = "./fiberhost-data"
	}
	if filled.TokenSecret == nil {
		filled.TokenSecret = []byte("DEFAULT_TOKEN_SECRET-DO_NOT_USE_IN_PROD!")
	}
	if filled.UnauthDelayMillis == 0 {
		filled.UnauthDelayMillis = 1000
	}
	return filled
}

// Validate returns an error if cfg has invalid field values. Call this
// on the result of FillDefaults, not on a raw user-supplied Config.
func (cfg Config) Validate() error {
	if cfg.BindAddr == "" {
		return fmt.Errorf("bind address not set")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data dir not set")
	}
	if len(cfg.TokenSecret) < MinSecretSize {
		return fmt.Errorf("token secret: must be at least %d bytes, but is %d", MinSecretSize, len(cfg.TokenSecret))
	}
	if len(cfg.TokenSecret) > MaxSecretSize {
		return fmt.Errorf("token secret: must be no more than %d bytes, but is %d", MaxSecretSize, len(cfg.TokenSecret))
	}
	return nil
}

// tomlOverlay is the on-disk shape of the local developer/operator
// overlay file (bind address, log level, data dir, token secret) —
// the AMBIENT STACK's TOML configuration layer, distinct from the
// wire-format data_dir/conf.json the bridge also serves. Grounded on
// internal/game/marshaling.go's ParseManifestFromTOML/
// ParseWorldDataFromTOML: toml.Unmarshal into a plain struct, no
// custom unmarshaler needed.
type tomlOverlay struct {
	BindAddr          string `toml:"bind_addr"`
	DataDir           string `toml:"data_dir"`
	TokenSecret       string `toml:"token_secret"`
	LogLevel          string `toml:"log_level"`
	UnauthDelayMillis int    `toml:"unauth_delay_millis"`
}

// LoadOverlayFile reads a TOML operator-overlay file at path into a
// Config (LogLevel is returned separately since it isn't a Config
// field; hostlog.Level parsing is the caller's job).
func LoadOverlayFile(path string) (Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, "", fmt.Errorf("reading bridge config: %w", err)
	}

	var overlay tomlOverlay
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return Config{}, "", fmt.Errorf("parsing bridge config: %w", err)
	}

	cfg := Config{
		BindAddr:          overlay.BindAddr,
		DataDir:           overlay.DataDir,
		UnauthDelayMillis: overlay.UnauthDelayMillis,
	}
	if overlay.TokenSecret != "" {
		cfg.TokenSecret = []byte(overlay.TokenSecret)
	}
	return cfg, overlay.LogLevel, nil
}
