// Package llm adapts chat completion services to the small request/response
// shape the pipeline needs: one user message in, free text out.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
)

// ErrEmptyResponse is returned when the model answers with no content
var ErrEmptyResponse = errors.New("empty model response")

// Chatter sends a single user-role prompt and returns the reply text
type Chatter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Format describes a JSON shape the reply must follow
type Format struct {
	Name        string
	Description string
	Schema      any
}

// StructuredChatter can constrain replies to a JSON schema
type StructuredChatter interface {
	Chatter
	ChatJSON(ctx context.Context, prompt string, format Format) (string, error)
}

// Vision answers a question about an image file
type Vision interface {
	Ask(ctx context.Context, imagePath, question string) (string, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures a backend
type Config struct {
	Provider string
	Model    string
	Host     string
	BaseURL  string
	APIKey   string
}

// Backend is what every provider implements
type Backend interface {
	StructuredChatter
	Vision
}

// New builds the backend named by cfg.Provider
func New(cfg Config, logger zerolog.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllama(cfg.Host, cfg.Model, logger)
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() any {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// ChatInto asks for a reply shaped like T. Backends that support schemas get
// one; others get the plain prompt and the first JSON object in the reply
// is decoded.
func ChatInto[T any](ctx context.Context, c Chatter, prompt, name, description string) (T, error) {
	var (
		out T
		raw string
		err error
	)
	if sc, ok := c.(StructuredChatter); ok {
		raw, err = sc.ChatJSON(ctx, prompt, Format{
			Name:        name,
			Description: description,
			Schema:      GenerateSchema[T](),
		})
	} else {
		raw, err = c.Chat(ctx, prompt)
	}
	if err != nil {
		return out, err
	}

	return Decode[T](raw)
}

// DecodeError carries the raw reply that could not be decoded
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse JSON reply %q: %v", truncate(e.Raw, 120), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errNoJSON = errors.New("no JSON object")

// Decode parses the first JSON object found in raw into T
func Decode[T any](raw string) (T, error) {
	var out T
	obj := extractJSONObject(raw)
	if obj == "" {
		return out, &DecodeError{Raw: raw, Err: errNoJSON}
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return out, &DecodeError{Raw: raw, Err: err}
	}
	return out, nil
}

// extractJSONObject returns the outermost {...} span of s
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
