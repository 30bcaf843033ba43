// Package config layers solace configuration: compiled defaults, then the
// JSON config file at $XDG_CONFIG_HOME/solace/config.json, then SOLACE_*
// environment variables. Secrets only ever come from the environment.
package config

import "fmt"

type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Generation GenerationConfig
	Engine     EngineConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
}

type StorageConfig struct {
	DataDir string
}

// GenerationConfig selects the reply backend: "xai" (cloud), "ollama"
// (local), or "template" (no generation at all).
type GenerationConfig struct {
	Backend   string
	XAIAPIKey string
	XAIAPIURL string
	Model     string
	TimeoutMS int
}

type EngineConfig struct {
	RecencyWindow int
	TopK          int
}

type LogConfig struct {
	Level string
}

const (
	BackendXAI      = "xai"
	BackendOllama   = "ollama"
	BackendTemplate = "template"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4700,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
			ChatModel:  "llama3.2:3b",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Generation: GenerationConfig{
			Backend:   BackendTemplate,
			Model:     "grok-beta",
			TimeoutMS: 30000,
		},
		Engine: EngineConfig{
			RecencyWindow: 30,
			TopK:          5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend and applies SOLACE_*
// environment overrides. The xAI API key is required only when the xAI
// generation backend is selected.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	switch cfg.Generation.Backend {
	case BackendXAI:
		if cfg.Generation.XAIAPIKey == "" {
			return Config{}, fmt.Errorf("generation backend %q needs an API key; set SOLACE_XAI_API_KEY", BackendXAI)
		}
	case BackendOllama, BackendTemplate:
	default:
		return Config{}, fmt.Errorf("unknown generation backend %q (want %s, %s, or %s)",
			cfg.Generation.Backend, BackendXAI, BackendOllama, BackendTemplate)
	}

	return cfg, nil
}
