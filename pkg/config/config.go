package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values that other packages may query
// at runtime (populated during startup after merging env+file).
type RuntimeConfig struct {
	SigningKeys map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetSigningKeys returns a copy of the configured user-signature signing keys.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.SigningKeys == nil {
		return out
	}
	for k := range runtimeCfg.SigningKeys {
		out[k] = struct{}{}
	}
	return out
}

// SeedFunction, SeedCategory and SeedAuthor describe the fixed records the
// catalog is populated with at startup.
type SeedFunction struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
}

type SeedCategory struct {
	FunctionID string `yaml:"function_id"`
	Name       string `yaml:"name"`
}

type SeedAuthor struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

type Config struct {
	Server struct {
		Address         string   `yaml:"address"`
		Port            int      `yaml:"port"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
		TLS             struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`
	Storage struct {
		// DBPath empty keeps the catalog volatile (in-memory pebble fs).
		DBPath   string `yaml:"db_path"`
		StateDir string `yaml:"state_dir"`
	} `yaml:"storage"`
	Security struct {
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		IPWhitelist []string `yaml:"ip_whitelist"`
		APIKeys     struct {
			Backend  []string `yaml:"backend"`
			Frontend []string `yaml:"frontend"`
			Admin    []string `yaml:"admin"`
		} `yaml:"api_keys"`
	} `yaml:"security"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Telemetry struct {
		// SampleRate is the fraction of requests that get a full trace.
		SampleRate    float64  `yaml:"sample_rate"`
		SlowThreshold Duration `yaml:"slow_threshold"`
	} `yaml:"telemetry"`
	EventLog struct {
		Enabled       bool      `yaml:"enabled"`
		Dir           string    `yaml:"dir"`
		MaxFileSize   SizeBytes `yaml:"max_file_size"`
		RetentionDays int       `yaml:"retention_days"`
	} `yaml:"eventlog"`
	Retention struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
	} `yaml:"retention"`
	Seeds struct {
		Functions  []SeedFunction `yaml:"functions"`
		Categories []SeedCategory `yaml:"categories"`
		Authors    []SeedAuthor   `yaml:"authors"`
	} `yaml:"seeds"`
}

// EffectiveConfigResult bundles the merged config with the values the rest of
// the process actually uses, plus where they came from (flags/env/config).
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// ApplyDefaults fills zero values with the v1 defaults, including the seed
// set the original deployment ships with.
func (c *Config) ApplyDefaults() {
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(5 * time.Second)
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 0.001
	}
	if c.Telemetry.SlowThreshold == 0 {
		c.Telemetry.SlowThreshold = Duration(200 * time.Millisecond)
	}
	if c.Storage.StateDir == "" {
		c.Storage.StateDir = "./.promptstudio"
	}
	if c.EventLog.Dir == "" {
		c.EventLog.Dir = ""
		// resolved against StateDir at startup
	}
	if c.EventLog.MaxFileSize == 0 {
		c.EventLog.MaxFileSize = SizeBytes(10 * 1024 * 1024)
	}
	if c.EventLog.RetentionDays == 0 {
		c.EventLog.RetentionDays = 90
	}
	if c.Retention.Cron == "" {
		c.Retention.Cron = "0 2 * * *"
	}
	if len(c.Seeds.Functions) == 0 {
		c.Seeds.Functions = []SeedFunction{{ID: "sales", Name: "Sales", Icon: "sales.svg"}}
	}
	if len(c.Seeds.Categories) == 0 {
		c.Seeds.Categories = []SeedCategory{
			{FunctionID: "sales", Name: "Prospection"},
			{FunctionID: "sales", Name: "Account Planning"},
			{FunctionID: "sales", Name: "Négociation"},
		}
	}
	if len(c.Seeds.Authors) == 0 {
		c.Seeds.Authors = []SeedAuthor{{ID: "auth-mansouryoum", DisplayName: "MansourYoum"}}
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "", "catalog DB path (empty keeps the store in memory)")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// returns the derived signing key set plus whether env vars were used.
func LoadEnvOverrides(cfg *Config) (map[string]struct{}, bool) {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("PROMPTSTUDIO_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("PROMPTSTUDIO_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("PROMPTSTUDIO_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("PROMPTSTUDIO_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("PROMPTSTUDIO_STATE_DIR"); v != "" {
		envUsed = true
		cfg.Storage.StateDir = v
	}
	if v := os.Getenv("PROMPTSTUDIO_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("PROMPTSTUDIO_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("PROMPTSTUDIO_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("PROMPTSTUDIO_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("PROMPTSTUDIO_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("PROMPTSTUDIO_API_FRONTEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("PROMPTSTUDIO_API_ADMIN_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Admin = parseList(v)
	}
	if c := os.Getenv("PROMPTSTUDIO_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("PROMPTSTUDIO_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	if v := os.Getenv("PROMPTSTUDIO_EVENTLOG_DIR"); v != "" {
		envUsed = true
		cfg.EventLog.Dir = v
	}
	if v := os.Getenv("PROMPTSTUDIO_EVENTLOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.EventLog.RetentionDays = n
		}
	}
	if v := os.Getenv("PROMPTSTUDIO_RETENTION_CRON"); v != "" {
		envUsed = true
		cfg.Retention.Cron = v
	}

	// Signing keys are identical to backend API keys (no separate fallback).
	signingKeys := map[string]struct{}{}
	for _, k := range cfg.Security.APIKeys.Backend {
		signingKeys[k] = struct{}{}
	}
	return signingKeys, envUsed
}

// LoadEffective loads config from the given path (file) and applies
// environment overrides. It returns the effective config, the signing key
// set and whether env vars were used.
func LoadEffective(path string) (*Config, map[string]struct{}, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	signingKeys, envUsed := LoadEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, signingKeys, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable PROMPTSTUDIO_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("PROMPTSTUDIO_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
