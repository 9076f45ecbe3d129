package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/synxit/synxit-server/internal/model"
)

// Config contains server configuration parameters. It is loaded once
// at startup and passed into constructors; nothing reads it as global
// state afterwards.
type Config struct {
	LogLevel   int        `env:"LOG_LEVEL" envDefault:"0"`
	Domain     string     `env:"DOMAIN" envDefault:"localhost"`
	HTTP       HTTP       `envPrefix:"HTTP_"`
	Storage    Storage    `envPrefix:"STORAGE_"`
	Auth       Auth       `envPrefix:"AUTH_"`
	Federation Federation `envPrefix:"FEDERATION_"`
	Minio      Minio      `envPrefix:"MINIO_"`

	// TiersFile names a JSON file holding the quota tier list. Tiers
	// are structured values and do not fit a flat env variable.
	TiersFile string       `env:"TIERS_FILE"`
	Tiers     []model.Tier `env:"-"`
}

// HTTP contains HTTP server parameters.
type HTTP struct {
	Host               string `env:"HOST" envDefault:""`
	Port               string `env:"PORT" envDefault:"8400"`
	EnableHTTPS        bool   `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`

	// WebAppURL is where GET / redirects. Empty disables the redirect.
	WebAppURL string `env:"WEBAPP_URL" envDefault:"https://app.synxit.de"`
}

// Storage contains account data storage parameters. Backend selects
// where blob content lives ("disk" or "s3"); account records always
// live under DataDir.
type Storage struct {
	Backend string `env:"BACKEND" envDefault:"disk"`
	DataDir string `env:"DATA_DIR" envDefault:"/var/lib/synxit"`
}

// Auth contains session and registration parameters.
type Auth struct {
	SessionTimeout      time.Duration `env:"SESSION_TIMEOUT" envDefault:"168h"`
	AuthSessionTimeout  time.Duration `env:"AUTH_SESSION_TIMEOUT" envDefault:"1h"`
	RegistrationEnabled bool          `env:"REGISTRATION_ENABLED" envDefault:"true"`
	DefaultTier         string        `env:"DEFAULT_TIER" envDefault:"default"`
}

// Federation contains the inter-server trust policy and proxy
// parameters. The whitelist, when enabled, is checked before the
// blacklist.
type Federation struct {
	Enabled          bool          `env:"ENABLED" envDefault:"false"`
	WhitelistEnabled bool          `env:"WHITELIST_ENABLED" envDefault:"false"`
	WhitelistHosts   []string      `env:"WHITELIST_HOSTS" envSeparator:","`
	BlacklistEnabled bool          `env:"BLACKLIST_ENABLED" envDefault:"false"`
	BlacklistHosts   []string      `env:"BLACKLIST_HOSTS" envSeparator:","`
	Port             string        `env:"PORT" envDefault:"8400"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Minio contains object storage parameters for the s3 blob backend.
type Minio struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"synxit-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"synxit-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"synxit-blobs"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// NewConfig loads configuration from environment variables and, when
// configured, the tiers file.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.TiersFile != "" {
		data, err := os.ReadFile(cfg.TiersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read tiers file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg.Tiers); err != nil {
			return nil, fmt.Errorf("failed to parse tiers file: %w", err)
		}
	}

	return &cfg, nil
}

// Tier returns the tier with the given id. An account referencing an
// unknown tier is treated as unlimited by the caller.
func (c *Config) Tier(id string) (model.Tier, bool) {
	for _, t := range c.Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return model.Tier{}, false
}
