package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// Ollama talks to a local ollama server
type Ollama struct {
	logger zerolog.Logger
	client *api.Client
	model  string
}

// NewOllama creates a client for host (empty uses OLLAMA_HOST)
func NewOllama(host, model string, logger zerolog.Logger) (*Ollama, error) {
	var (
		client *api.Client
		err    error
	)
	if host == "" {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	} else {
		base, perr := url.Parse(host)
		if perr != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, perr)
		}
		client = api.NewClient(base, &http.Client{Timeout: 5 * time.Minute})
	}

	return &Ollama{
		logger: logger.With().Str("component", "ollama").Str("model", model).Logger(),
		client: client,
		model:  model,
	}, nil
}

// Chat sends a single user message
func (o *Ollama) Chat(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, api.Message{Role: "user", Content: prompt}, nil)
}

// ChatJSON constrains the reply with ollama's structured output format
func (o *Ollama) ChatJSON(ctx context.Context, prompt string, format Format) (string, error) {
	schema, err := json.Marshal(format.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to encode schema %s: %w", format.Name, err)
	}
	return o.chat(ctx, api.Message{Role: "user", Content: prompt}, schema)
}

// Ask sends an image with a question to a multimodal model
func (o *Ollama) Ask(ctx context.Context, imagePath, question string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return o.chat(ctx, api.Message{
		Role:    "user",
		Content: question,
		Images:  []api.ImageData{data},
	}, nil)
}

// Embed returns the embedding of text
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Embeddings[0], nil
}

func (o *Ollama) chat(ctx context.Context, msg api.Message, format json.RawMessage) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: []api.Message{msg},
		Stream:   &stream,
		Format:   format,
	}

	start := time.Now()
	var sb strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	content := strings.TrimSpace(sb.String())
	o.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("images", len(msg.Images)).
		Int("reply_len", len(content)).
		Msg("chat completed")

	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
