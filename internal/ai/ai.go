// Package ai produces free-text answers with Gemini: title corrections,
// best guesses for unknown titles, fun facts and open questions.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	logx "cinebot/pkg/logx"
)

// ErrDisabled is returned by the Disabled generator.
var ErrDisabled = errors.New("ai: disabled")

// Generator completes a prompt with plain text.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Enabled bool
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New returns a Gemini generator, or Disabled when AI is off or unkeyed.
func New(ctx context.Context, opt Options, log logx.Logger) (Generator, error) {
	if !opt.Enabled || strings.TrimSpace(opt.APIKey) == "" {
		log.Info("ai generator disabled")
		return Disabled{}, nil
	}
	return NewGemini(ctx, opt, log)
}

// Disabled never generates anything.
type Disabled struct{}

func (Disabled) Complete(context.Context, string) (string, error) { return "", ErrDisabled }

type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     logx.Logger
}

func NewGemini(ctx context.Context, opt Options, log logx.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opt.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := opt.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gemini{client: client, model: model, timeout: timeout, log: log.With(logx.String("comp", "ai"))}, nil
}

// Complete returns trimmed text; an empty answer is an error.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("ai: empty prompt")
	}
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(cctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("ai generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	g.log.Debug("ai completed", logx.String("model", g.model), logx.Duration("dur", time.Since(start)), logx.Int("chars", len(text)))
	if text == "" {
		return "", errors.New("ai: empty response")
	}
	return text, nil
}
