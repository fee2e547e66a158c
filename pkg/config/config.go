package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig                    `yaml:"app"`
	Server      ServerConfig                 `yaml:"server"`
	Gateways    map[string]GatewayConfig     `yaml:"gateways"`
	Providers   map[string]ProviderConfig    `yaml:"providers"`
	Registry    RegistryConfig               `yaml:"registry"`
	Credentials map[string]map[string]string `yaml:"credentials"`
	Memory      MemoryConfig                 `yaml:"memory"`
	Engine      EngineConfig                 `yaml:"engine"`
	Prompts     PromptsConfig                `yaml:"prompts"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Workspace string `yaml:"workspace"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type GatewayConfig struct {
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

type RegistryConfig struct {
	Base string `yaml:"base"`
}

type MemoryConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

type EngineConfig struct {
	MaxAttempts           int `yaml:"max_attempts"`
	RetryDelaySeconds     int `yaml:"retry_delay_seconds"`
	MaxEscalationResets   int `yaml:"max_escalation_resets"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

type PromptsConfig struct {
	Directory string `yaml:"directory"`
}

func LoadConfig(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	return &cfg
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled {
		return tg, true
	}
	return GatewayConfig{}, false
}

// ServiceCredentials returns the per-service auth header values the
// executor forwards, service name -> header name -> value.
func (c *Config) ServiceCredentials() map[string]map[string]string {
	return c.Credentials
}

// ListenAddr returns the HTTP gateway address, defaulting to :8080.
func (c *Config) ListenAddr() string {
	if c.Server.Addr == "" {
		return ":8080"
	}
	return c.Server.Addr
}

// MemoryPath returns the sqlite database path, defaulting to memory.db.
func (c *Config) MemoryPath() string {
	if c.Memory.Path == "" {
		return "memory.db"
	}
	return c.Memory.Path
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.Engine.RequestTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Engine.RequestTimeoutSeconds) * time.Second
}

// RetryDelay returns the base delay between execution attempts. Zero
// means the engine default.
func (c *Config) RetryDelay() time.Duration {
	if c.Engine.RetryDelaySeconds <= 0 {
		return 0
	}
	return time.Duration(c.Engine.RetryDelaySeconds) * time.Second
}
