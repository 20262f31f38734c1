// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// defaultOllamaTemperature keeps local-model narration close to the
// findings instead of free-associating.
const defaultOllamaTemperature = 0.2

// OllamaClient narrates through a local Ollama server.
type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaClient creates an Ollama-backed narrator client.
//
// Inputs:
//
//	baseURL - Ollama server URL, e.g. "http://localhost:11434". Required.
//	model - Model name, e.g. "llama3.1". Required.
func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, errors.New("ollama base url is required")
	}
	if model == "" {
		return nil, errors.New("model is required")
	}

	llm, err := ollama.New(
		ollama.WithServerURL(strings.TrimSuffix(baseURL, "/")),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	slog.Info("Initializing Ollama narrator", "base_url", baseURL, "model", model)
	return &OllamaClient{llm: llm, model: model}, nil
}

// Generate implements LLMClient.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}

	temperature := float64(defaultOllamaTemperature)
	if params.Temperature != nil {
		temperature = float64(*params.Temperature)
	}
	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	full := systemPrompt + "\n\n" + prompt
	text, err := llms.GenerateFromSinglePrompt(ctx, o.llm, full, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	slog.Debug("Ollama narration complete", "model", o.model, "chars", len(text))
	return text, nil
}
