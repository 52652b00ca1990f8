// Package config provides the configuration schema and loader for magpie.
//
// All of the numeric thresholds the resilient tool-access layer depends on
// (retry bounds, backoff delays, timeouts, breaker threshold and cool-down,
// cache TTL) live here as tunable fields with defaults matching production
// values, so nothing in the core hard-codes them.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/magpie-ai/magpie/internal/mcp"
)

// LogLevel controls log verbosity for the magpie server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps [time.Duration] so YAML configs can use values like "20s"
// or "5m".
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "1.5s" or "300ms".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a standard [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for magpie.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Agent   AgentConfig   `yaml:"agent"`
	Search  SearchConfig  `yaml:"search"`
	Twitter TwitterConfig `yaml:"twitter"`
	MCP     MCPConfig     `yaml:"mcp"`
}

// ServerConfig holds network and logging settings for the magpie server.
type ServerConfig struct {
	// ListenAddr is the TCP address the operational HTTP server listens on
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AgentConfig selects the LLM that drives the tool catalog. When Provider is
// empty the conversational endpoint is disabled and magpie serves only the
// operational API.
type AgentConfig struct {
	// Provider selects the LLM backend (e.g., "openai", "anthropic",
	// "gemini", "ollama", "deepseek", "mistral", "groq").
	Provider string `yaml:"provider"`

	// Model is the specific model name (e.g., "gpt-4o",
	// "claude-sonnet-4-20250514").
	Model string `yaml:"model"`

	// APIKey authenticates against the provider's API. When empty the
	// backend falls back to its conventional environment variable.
	APIKey string `yaml:"api_key"`

	// SystemPrompt overrides the built-in system prompt.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxTurns bounds the tool-calling loop per conversation turn.
	// Default: 8.
	MaxTurns int `yaml:"max_turns"`
}

// SearchConfig configures the Tavily web-search backend. When APIKey is
// empty the search operation reports itself unavailable.
type SearchConfig struct {
	// APIKey is the Tavily API key.
	APIKey string `yaml:"api_key"`

	// MaxResults caps results per query. Default: 10.
	MaxResults int `yaml:"max_results"`
}

// TwitterConfig holds account-level settings injected into write operations.
type TwitterConfig struct {
	// UserID identifies the managed account on the social-media provider.
	UserID string `yaml:"user_id"`
}

// MCPConfig declares the remote tool providers and the resilience tuning for
// connections to them.
type MCPConfig struct {
	// Servers lists the MCP providers to connect to, in refresh order.
	// On duplicate tool names the later provider wins.
	Servers []mcp.ServerConfig `yaml:"servers"`

	// RequiredTools is the fixed set of tool names the catalog depends on.
	// Tools outside this set are discarded during caching. When empty,
	// [DefaultRequiredTools] is used.
	RequiredTools []string `yaml:"required_tools"`

	// Resilience tunes retries, timeouts, the circuit breaker, and the
	// registry cache.
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ResilienceConfig carries every threshold of the tool-access layer.
// Zero values are replaced with the defaults noted per field.
type ResilienceConfig struct {
	// MaxRetries bounds connection attempts per provider per refresh.
	// Default: 3.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the backoff delay before the second attempt; it doubles
	// per attempt. Default: 1s.
	BaseDelay Duration `yaml:"base_delay"`

	// MaxDelay caps the backoff delay. Default: 8s.
	MaxDelay Duration `yaml:"max_delay"`

	// ConnectTimeout bounds a single dial-and-enumerate attempt.
	// Default: 20s.
	ConnectTimeout Duration `yaml:"connect_timeout"`

	// RefreshTimeout bounds an entire registry refresh across all
	// providers. Default: 15s.
	RefreshTimeout Duration `yaml:"refresh_timeout"`

	// CacheTTL is how long a cached tool set is considered fresh.
	// Default: 5m.
	CacheTTL Duration `yaml:"cache_ttl"`

	// ExecTimeout bounds a single tool invocation. Default: 30s.
	ExecTimeout Duration `yaml:"exec_timeout"`

	// BreakerThreshold is the consecutive-failure count that opens a
	// provider's circuit breaker. Default: 3.
	BreakerThreshold int `yaml:"breaker_threshold"`

	// BreakerCooldown is how long an open breaker rejects attempts before
	// closing again. Default: 5m.
	BreakerCooldown Duration `yaml:"breaker_cooldown"`
}

// applyDefaults replaces zero-valued fields with production defaults.
func (r *ResilienceConfig) applyDefaults() {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 3
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = Duration(time.Second)
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = Duration(8 * time.Second)
	}
	if r.ConnectTimeout <= 0 {
		r.ConnectTimeout = Duration(20 * time.Second)
	}
	if r.RefreshTimeout <= 0 {
		r.RefreshTimeout = Duration(15 * time.Second)
	}
	if r.CacheTTL <= 0 {
		r.CacheTTL = Duration(5 * time.Minute)
	}
	if r.ExecTimeout <= 0 {
		r.ExecTimeout = Duration(30 * time.Second)
	}
	if r.BreakerThreshold <= 0 {
		r.BreakerThreshold = 3
	}
	if r.BreakerCooldown <= 0 {
		r.BreakerCooldown = Duration(5 * time.Minute)
	}
}

// DefaultRequiredTools is the tool set magpie's catalog depends on: four
// write operations and six read operations.
var DefaultRequiredTools = []string{
	"post_tweet",
	"delete_tweet",
	"like_tweet",
	"retweet",
	"advanced_search_twitter",
	"get_trends",
	"get_tweets_by_IDs",
	"get_tweet_replies",
	"get_tweet_quotations",
	"get_tweet_thread_context",
}
