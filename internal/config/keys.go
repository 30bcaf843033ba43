package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SOLACE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "SOLACE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "ollama.base_url", typ: kString, env: "SOLACE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "SOLACE_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "SOLACE_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SOLACE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "generation.backend", typ: kString, env: "SOLACE_GENERATION_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Generation.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Backend },
	},
	{
		key: "generation.xai_api_key", typ: kString, env: "SOLACE_XAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Generation.XAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.XAIAPIKey },
	},
	{
		key: "generation.xai_api_url", typ: kString, env: "SOLACE_XAI_API_URL",
		apply:   func(cfg *Config, v any) { cfg.Generation.XAIAPIURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.XAIAPIURL },
	},
	{
		key: "generation.model", typ: kString, env: "SOLACE_GENERATION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generation.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Model },
	},
	{
		key: "generation.timeout_ms", typ: kInt, env: "SOLACE_GENERATION_TIMEOUT_MS",
		apply:   func(cfg *Config, v any) { cfg.Generation.TimeoutMS = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.TimeoutMS },
	},
	{
		key: "engine.recency_window", typ: kInt, env: "SOLACE_ENGINE_RECENCY_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Engine.RecencyWindow = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.RecencyWindow },
	},
	{
		key: "engine.top_k", typ: kInt, env: "SOLACE_ENGINE_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Engine.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.TopK },
	},
	{
		key: "log.level", typ: kString, env: "SOLACE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
