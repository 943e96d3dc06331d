// Package config loads X1-Lens settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"
)

// Config holds every runtime setting. Defaults are carried in the env tags.
type Config struct {
	// RPCURLs is a ';' separated list of JSON-RPC endpoints. ENV: LENS_RPC_URLS
	RPCURLs []string `env:"LENS_RPC_URLS,default=https://api.mainnet-beta.solana.com" validate:"min=1,dive,url"`

	// Commitment is sent with every read. ENV: LENS_COMMITMENT
	Commitment string `env:"LENS_COMMITMENT,default=confirmed" validate:"oneof=processed confirmed finalized"`

	// RequestTimeout bounds a single RPC request. ENV: LENS_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"LENS_REQUEST_TIMEOUT,default=30s" validate:"gt=0"`

	// RPS paces RPC requests; 0 disables pacing. ENV: LENS_RPS
	RPS float64 `env:"LENS_RPS,default=10" validate:"gte=0"`

	// AccountEncoding is requested for account data. ENV: LENS_ACCOUNT_ENCODING
	AccountEncoding string `env:"LENS_ACCOUNT_ENCODING,default=base64" validate:"oneof=base64 base58 base64+zstd"`

	BatchSize        int `env:"LENS_BATCH_SIZE,default=100" validate:"min=1,max=100"`
	BatchConcurrency int `env:"LENS_BATCH_CONCURRENCY,default=5" validate:"min=1,max=64"`
	MaxScanAccounts  int `env:"LENS_MAX_SCAN_ACCOUNTS,default=2000" validate:"min=1"`

	// IDLCacheTTL expires cached program interfaces. ENV: LENS_IDL_CACHE_TTL
	IDLCacheTTL time.Duration `env:"LENS_IDL_CACHE_TTL,default=10m" validate:"gt=0"`

	// IDLCacheDir persists the cache; empty keeps it in memory. ENV: LENS_IDL_CACHE_DIR
	IDLCacheDir string `env:"LENS_IDL_CACHE_DIR"`

	LogLevel string `env:"LENS_LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Load decodes the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, errors.Wrap(err, "decode environment")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fe.Namespace() + " fails " + fe.Tag()
				if fe.Param() != "" {
					msgs[i] += "=" + fe.Param()
				}
			}
			return errors.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// SetRPCURLs replaces the endpoint list from a ';' or ',' separated string.
func (c *Config) SetRPCURLs(list string) {
	c.RPCURLs = strings.FieldsFunc(list, func(r rune) bool { return r == ';' || r == ',' })
	c.normalize()
}

func (c *Config) normalize() {
	urls := c.RPCURLs[:0]
	for _, u := range c.RPCURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	c.RPCURLs = urls
	c.Commitment = strings.ToLower(strings.TrimSpace(c.Commitment))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}
