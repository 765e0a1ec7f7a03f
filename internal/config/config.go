package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		TrustProxy     bool     `yaml:"trust_proxy"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
		File   string `yaml:"file"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL        string `yaml:"ttl"`
		SessionTTL string `yaml:"session_ttl"`
		Questions  int    `yaml:"questions"`
	} `yaml:"quiz"`
	OpenTDB struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"opentdb"`
	Neynar struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		HubURL  string `yaml:"hub_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"neynar"`
	Chain struct {
		RPCURL          string `yaml:"rpc_url"`
		ChainID         int64  `yaml:"chain_id"`
		PointsContract  string `yaml:"points_contract"`
		JackpotContract string `yaml:"jackpot_contract"`
		RelayerKey      string `yaml:"relayer_key"`
	} `yaml:"chain"`
	Jackpot struct {
		LogPath   string `yaml:"log_path"`
		Cooldown  string `yaml:"cooldown"`
		SignerKey string `yaml:"signer_key"`
	} `yaml:"jackpot"`
	Auth struct {
		Domain       string `yaml:"domain"`
		Issuer       string `yaml:"issuer"`
		Secret       string `yaml:"secret"`
		PublicKeyPEM string `yaml:"public_key_pem"`
	} `yaml:"auth"`
	Leaderboard struct {
		TTL   string `yaml:"ttl"`
		Limit int    `yaml:"limit"`
	} `yaml:"leaderboard"`
	RateLimit struct {
		Requests int    `yaml:"requests"`
		Window   string `yaml:"window"`
	} `yaml:"rate_limit"`
}

// Load reads YAML config from path and applies secret overrides from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// ApplyEnv overrides secrets and connection strings set in the environment.
func ApplyEnv(cfg *Config) {
	override(&cfg.Neynar.APIKey, "NEYNAR_API_KEY")
	override(&cfg.Jackpot.SignerKey, "JACKPOT_SIGNER_KEY")
	override(&cfg.Chain.RelayerKey, "POINTS_RELAYER_KEY")
	override(&cfg.Chain.RPCURL, "CHAIN_RPC_URL")
	override(&cfg.Auth.Secret, "QUICK_AUTH_SECRET")
	override(&cfg.Postgres.URL, "DATABASE_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Log.Level, "LOG_LEVEL")
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v, or fallback when v is not positive.
func IntOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
