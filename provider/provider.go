// Package provider implements the chat.Provider interface for concrete
// LLM backends.
//
// Three backends are supported: OpenAI (and any OpenAI-compatible API),
// Anthropic, and a local Ollama server. Each implementation handles the
// conversion between the provider-agnostic chat types and its SDK's native
// message, tool, and streaming formats, so the orchestration layer never
// touches SDK types.
//
// Use New with a Config to construct a provider:
//
//	p, err := provider.New(provider.Config{
//	    Type:   provider.TypeOpenAI,
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
package provider

import (
	"fmt"

	"github.com/skosovsky/draftset/chat"
)

// Type identifies the provider implementation.
type Type string

const (
	TypeOpenAI    Type = "openai"
	TypeAnthropic Type = "anthropic"
	TypeOllama    Type = "ollama"
)

// Config holds provider construction parameters. Zero fields fall back to
// per-provider defaults; APIKey is required for OpenAI and Anthropic and
// ignored for Ollama.
type Config struct {
	Type    Type
	BaseURL string
	APIKey  string
	Model   string
}

// New creates a provider from configuration, dispatching on cfg.Type.
func New(cfg Config) (chat.Provider, error) {
	switch cfg.Type {
	case TypeOpenAI:
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case TypeAnthropic:
		return NewAnthropic(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case TypeOllama:
		return NewOllama(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
}
