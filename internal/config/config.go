package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"tripstack/internal/logger"
)

// Credential keys forwarded verbatim to the spawned services. The
// orchestrator never interprets their values, it only reports presence.
var passthroughKeys = []string{
	"GOOGLE_MAPS_API_KEY",
	"RAPIDAPI_KEY",
	"OPENWEATHER_API_KEY",
}

// RunConfig is the immutable snapshot of everything a single launch run
// needs. It is built once by Load and never mutated afterwards; effective
// per-run downgrades (e.g. cache disabled after a failed store start) are
// tracked by the orchestrator, not written back here.
type RunConfig struct {
	CacheEnabled     bool
	CacheExpiryHours int

	MongoURI  string
	Model     string // model artifact the API process depends on
	OllamaURL string

	APIPort      int
	BackendPort  int
	FrontendPort int
	MongoPort    int
	OllamaPort   int

	APIDir      string
	BackendDir  string
	FrontendDir string

	// RequireAPIHealthy promotes an API health-check timeout from a
	// degraded run to a fatal one.
	RequireAPIHealthy bool

	StatusListen string // optional addr for the local status server
	HistoryPath  string // optional sqlite file recording launch runs

	Log logger.Config

	// Passthrough holds opaque credential keys copied from the environment,
	// forwarded to children unexamined.
	Passthrough map[string]string
}

// Ports returns every port this run claims, in check order.
func (c *RunConfig) Ports() []int {
	return []int{c.APIPort, c.BackendPort, c.FrontendPort}
}

// ChildEnv composes the environment for a spawned service: the OS
// environment as base, then passthrough credentials, then per-service
// overrides, last writer wins.
func (c *RunConfig) ChildEnv(extra ...string) []string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 && kv[:i] != "" {
			m[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range c.Passthrough {
		m[k] = v
	}
	m["MONGODB_URI"] = c.MongoURI
	m["CACHE_EXPIRY_HOURS"] = fmt.Sprintf("%d", c.CacheExpiryHours)
	for _, kv := range extra {
		if i := strings.IndexByte(kv, '='); i >= 0 && kv[:i] != "" {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

// KeyReport returns key -> present for every passthrough credential,
// suitable for logging without leaking values.
func (c *RunConfig) KeyReport() map[string]bool {
	rep := make(map[string]bool, len(passthroughKeys))
	for _, k := range passthroughKeys {
		rep[k] = c.Passthrough[k] != ""
	}
	return rep
}

// Load builds the RunConfig from an optional TOML file overlaid with the
// environment. path == "" means environment and defaults only; a named
// file that cannot be read is an error.
func Load(path string) (*RunConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	// Environment keeps its historical flat names (CACHE_ENABLED etc.).
	for _, key := range []string{
		"cache_enabled", "cache_expiry_hours", "mongodb_uri",
		"ollama_model", "ollama_url",
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &RunConfig{
		CacheExpiryHours:  v.GetInt("cache_expiry_hours"),
		MongoURI:          v.GetString("mongodb_uri"),
		Model:             v.GetString("ollama_model"),
		OllamaURL:         v.GetString("ollama_url"),
		APIPort:           v.GetInt("ports.api"),
		BackendPort:       v.GetInt("ports.backend"),
		FrontendPort:      v.GetInt("ports.frontend"),
		MongoPort:         v.GetInt("ports.mongo"),
		OllamaPort:        v.GetInt("ports.ollama"),
		APIDir:            v.GetString("dirs.api"),
		BackendDir:        v.GetString("dirs.backend"),
		FrontendDir:       v.GetString("dirs.frontend"),
		RequireAPIHealthy: v.GetBool("require_api_healthy"),
		StatusListen:      v.GetString("status_listen"),
		HistoryPath:       v.GetString("history_path"),
		Passthrough:       make(map[string]string, len(passthroughKeys)),
	}
	cfg.CacheEnabled = v.GetBool("cache_enabled")
	cfg.Log = logger.Config{
		Level:      v.GetString("log.level"),
		Color:      v.GetBool("log.color"),
		Dir:        v.GetString("log.dir"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAgeDays: v.GetInt("log.max_age_days"),
		Compress:   v.GetBool("log.compress"),
	}
	for _, k := range passthroughKeys {
		if val := os.Getenv(k); val != "" {
			cfg.Passthrough[k] = val
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_expiry_hours", 24)
	v.SetDefault("mongodb_uri", "mongodb://localhost:27017")
	v.SetDefault("ollama_model", "llama3")
	v.SetDefault("ollama_url", "http://127.0.0.1:11434")
	v.SetDefault("ports.api", 8000)
	v.SetDefault("ports.backend", 5000)
	v.SetDefault("ports.frontend", 5173)
	v.SetDefault("ports.mongo", 27017)
	v.SetDefault("ports.ollama", 11434)
	v.SetDefault("dirs.api", "ai-services")
	v.SetDefault("dirs.backend", "backend")
	v.SetDefault("dirs.frontend", "frontend")
	v.SetDefault("require_api_healthy", false)
	v.SetDefault("status_listen", "")
	v.SetDefault("history_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", true)
	v.SetDefault("log.dir", "logs")
}

func (c *RunConfig) validate() error {
	for name, p := range map[string]int{
		"api": c.APIPort, "backend": c.BackendPort, "frontend": c.FrontendPort,
		"mongo": c.MongoPort, "ollama": c.OllamaPort,
	} {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid %s port %d", name, p)
		}
	}
	if c.Model == "" {
		return fmt.Errorf("ollama_model must not be empty")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("mongodb_uri must not be empty")
	}
	return nil
}
