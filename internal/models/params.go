package models

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// GenerateParams are the sampling knobs a caller may set on a completion.
// Zero TopP and MaxTokens leave the provider default in place.
type GenerateParams struct {
	Temperature      float32
	TopP             float32
	MaxTokens        int32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// Deterministic is used for classification and extraction calls.
func Deterministic() GenerateParams {
	return GenerateParams{Temperature: 0}
}

// DefaultReplyParams are the initial user-facing reply settings of a session.
func DefaultReplyParams() GenerateParams {
	return GenerateParams{
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   512,
	}
}

// Validate enforces the ranges OpenAI-compatible providers accept.
func (p GenerateParams) Validate() error {
	switch {
	case p.Temperature < 0 || p.Temperature > 2:
		return fmt.Errorf("temperature must be in [0, 2], got %g", p.Temperature)
	case p.TopP < 0 || p.TopP > 1:
		return fmt.Errorf("top_p must be in [0, 1], got %g", p.TopP)
	case p.MaxTokens < 0:
		return fmt.Errorf("max_tokens must not be negative, got %d", p.MaxTokens)
	case p.FrequencyPenalty < -2 || p.FrequencyPenalty > 2:
		return fmt.Errorf("frequency_penalty must be in [-2, 2], got %g", p.FrequencyPenalty)
	case p.PresencePenalty < -2 || p.PresencePenalty > 2:
		return fmt.Errorf("presence_penalty must be in [-2, 2], got %g", p.PresencePenalty)
	}
	return nil
}

// With returns a copy with one named parameter changed.
func (p GenerateParams) With(name, value string) (GenerateParams, error) {
	value = strings.TrimSpace(value)
	if name == "max_tokens" {
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return p, fmt.Errorf("invalid max_tokens %q: %w", value, err)
		}
		p.MaxTokens = int32(n)
		return p, p.Validate()
	}

	f, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return p, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	switch name {
	case "temperature":
		p.Temperature = float32(f)
	case "top_p":
		p.TopP = float32(f)
	case "frequency_penalty":
		p.FrequencyPenalty = float32(f)
	case "presence_penalty":
		p.PresencePenalty = float32(f)
	default:
		return p, fmt.Errorf("unknown parameter %q", name)
	}
	return p, p.Validate()
}

func (p GenerateParams) String() string {
	return fmt.Sprintf("temperature=%g top_p=%g max_tokens=%d frequency_penalty=%g presence_penalty=%g",
		p.Temperature, p.TopP, p.MaxTokens, p.FrequencyPenalty, p.PresencePenalty)
}

func (p GenerateParams) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.Temperature),
	}
	if p.TopP > 0 {
		cfg.TopP = genai.Ptr(p.TopP)
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = p.MaxTokens
	}
	if p.FrequencyPenalty != 0 {
		cfg.FrequencyPenalty = genai.Ptr(p.FrequencyPenalty)
	}
	if p.PresencePenalty != 0 {
		cfg.PresencePenalty = genai.Ptr(p.PresencePenalty)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}
