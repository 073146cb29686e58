package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by Load.
//
// Example (~/.voxhall/config.yaml):
//
// server:
//   host: 0.0.0.0
//   agentd_port: 8002
//   memoryd_port: 8001
// provider:
//   url: http://localhost:7880
//   api_key: devkey
//   api_secret: devsecret
//
// Secrets may also come from the environment (PROVIDER_API_KEY,
// PROVIDER_API_SECRET, LLM_API_KEY); env values win over the file.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`

	Server   ServerConfig   `yaml:"server"`
	Agent    AgentConfig    `yaml:"agent"`
	Provider ProviderConfig `yaml:"provider"`
	LLM      LLMConfig      `yaml:"llm"`
	Memory   MemoryConfig   `yaml:"memory"`

	// Base URL of the memory service, used by agentd.
	MemoryServiceURL string `yaml:"memory_service_url"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	AgentdPort  int    `yaml:"agentd_port"`
	MemorydPort int    `yaml:"memoryd_port"`
}

type AgentConfig struct {
	// Display name of the conversational agent; its participant identity
	// is derived from this.
	Name string `yaml:"name"`
}

// ProviderConfig points at the external realtime room platform.
type ProviderConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, custom, or ollama
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// MemoryConfig configures memoryd's backing index.
type MemoryConfig struct {
	DBPath     string          `yaml:"db_path"`
	VectorPath string          `yaml:"vector_path"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai or ollama
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
}

const (
	DefaultHost        = "0.0.0.0"
	DefaultAgentdPort  = 8002
	DefaultMemorydPort = 8001

	DefaultAgentName        = "AI Assistant"
	DefaultLLMModel         = "llama-3-70b-8192"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 1000
	DefaultMemoryServiceURL = "http://localhost:8001"
	DefaultProviderURL      = "http://localhost:7880"
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultOllamaURL        = "http://localhost:11434"
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".voxhall")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.voxhall/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*Config, string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &Config{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	cfg.applyDefaults(configDir)
	cfg.applyEnv()

	if cfg.Server.AgentdPort < 1 || cfg.Server.AgentdPort > 65535 {
		return nil, "", fmt.Errorf("invalid server.agentd_port %d in %s", cfg.Server.AgentdPort, configFile)
	}
	if cfg.Server.MemorydPort < 1 || cfg.Server.MemorydPort > 65535 {
		return nil, "", fmt.Errorf("invalid server.memoryd_port %d in %s", cfg.Server.MemorydPort, configFile)
	}

	return cfg, configFile, nil
}

func (c *Config) applyDefaults(configDir string) {
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.AgentdPort == 0 {
		c.Server.AgentdPort = DefaultAgentdPort
	}
	if c.Server.MemorydPort == 0 {
		c.Server.MemorydPort = DefaultMemorydPort
	}
	if strings.TrimSpace(c.Agent.Name) == "" {
		c.Agent.Name = DefaultAgentName
	}
	if c.Provider.URL == "" {
		c.Provider.URL = DefaultProviderURL
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModel
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultMaxTokens
	}
	if c.MemoryServiceURL == "" {
		c.MemoryServiceURL = DefaultMemoryServiceURL
	}
	if c.Memory.DBPath == "" {
		c.Memory.DBPath = filepath.Join(configDir, "memory.db")
	}
	if c.Memory.VectorPath == "" {
		c.Memory.VectorPath = filepath.Join(configDir, "memory_vectors")
	}
	if c.Memory.Embedding.Provider == "" {
		c.Memory.Embedding.Provider = "openai"
	}
	if c.Memory.Embedding.Model == "" {
		c.Memory.Embedding.Model = DefaultEmbeddingModel
	}
	if c.Memory.Embedding.OllamaURL == "" {
		c.Memory.Embedding.OllamaURL = DefaultOllamaURL
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AGENTD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			c.Server.AgentdPort = p
		}
	}
	if v := os.Getenv("MEMORYD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			c.Server.MemorydPort = p
		}
	}
	if v := os.Getenv("PROVIDER_URL"); v != "" {
		c.Provider.URL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_API_SECRET"); v != "" {
		c.Provider.APISecret = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MEMORY_SERVICE_URL"); v != "" {
		c.MemoryServiceURL = v
	}
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := &Config{}
	defaultCfg.applyDefaults(configDir)
	b, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions; the file may hold secrets.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}
