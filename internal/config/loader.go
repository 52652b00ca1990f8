package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/magpie-ai/magpie/internal/mcp"
)

// validAgentProviders lists known LLM backend names. Unknown names produce a
// warning rather than an error so new backends can be tried without a code
// change.
var validAgentProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with production defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Agent.MaxTurns <= 0 {
		cfg.Agent.MaxTurns = 8
	}
	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = 10
	}
	if len(cfg.MCP.RequiredTools) == 0 {
		cfg.MCP.RequiredTools = slices.Clone(DefaultRequiredTools)
	}
	cfg.MCP.Resilience.applyDefaults()
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if len(cfg.MCP.Servers) == 0 {
		slog.Warn("no MCP providers configured; only web search will be available")
	}

	seen := make(map[string]bool, len(cfg.MCP.Servers))
	for i, srv := range cfg.MCP.Servers {
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d]: name must not be empty", i))
			continue
		}
		if seen[srv.Name] {
			errs = append(errs, fmt.Errorf("mcp.servers[%d]: duplicate provider name %q", i, srv.Name))
		}
		seen[srv.Name] = true

		if !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("mcp.servers[%d] (%s): unknown transport %q", i, srv.Name, srv.Transport))
			continue
		}
		switch srv.Transport {
		case mcp.TransportStdio:
			if srv.Command == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d] (%s): stdio transport requires command", i, srv.Name))
			}
		default:
			if srv.URL == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d] (%s): %s transport requires url", i, srv.Name, srv.Transport))
			}
		}
	}

	if cfg.Agent.Provider != "" {
		if !slices.Contains(validAgentProviders, cfg.Agent.Provider) {
			slog.Warn("unrecognised agent provider; continuing anyway",
				"provider", cfg.Agent.Provider,
				"known", validAgentProviders)
		}
		if cfg.Agent.Model == "" {
			errs = append(errs, fmt.Errorf("agent.model must be set when agent.provider is set"))
		}
	}

	if cfg.MCP.Resilience.BaseDelay.Std() > cfg.MCP.Resilience.MaxDelay.Std() {
		errs = append(errs, fmt.Errorf("mcp.resilience.base_delay must not exceed max_delay"))
	}

	return errors.Join(errs...)
}
