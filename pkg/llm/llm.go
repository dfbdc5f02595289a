// Package llm wraps language-model completion providers behind a single
// interface so pipeline components can be tested with fakes.
package llm

import (
	"context"
	"strings"
)

// Completer is the completion capability: system instructions plus a user
// payload produce structured text (normally JSON). Callers must tolerate
// malformed output.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// New returns a Completer for the given provider ("openai" or
// "anthropic"). Unknown providers default to OpenAI-compatible.
func New(provider, model, apiKey, baseURL string) Completer {
	if provider == "anthropic" {
		return NewAnthropic(model, apiKey, baseURL)
	}
	return NewOpenAI(model, apiKey, baseURL)
}

// StripFences removes a wrapping markdown code block from model output.
// Models routinely wrap JSON in ```json fences despite instructions.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
		raw = raw[3+idx+1:]
	}
	if strings.HasSuffix(raw, "```") {
		raw = raw[:len(raw)-3]
	}
	return strings.TrimSpace(raw)
}
