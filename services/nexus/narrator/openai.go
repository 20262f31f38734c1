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

	"github.com/awnumar/memguard"
	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned when the OpenAI backend has no key.
var ErrMissingAPIKey = errors.New("openai api key not set")

// OpenAIClient narrates through the OpenAI chat completion API.
//
// The API key lives in a memguard enclave rather than a plain string
// field: it is sealed in encrypted memory between requests and only
// decrypted into an mlocked buffer for the duration of each call.
type OpenAIClient struct {
	key   *memguard.Enclave
	model string
}

// NewOpenAIClient creates an OpenAI-backed narrator client.
//
// Inputs:
//
//	apiKey - API key. Wiped from the caller's reach after sealing.
//	model - Chat model name, e.g. "gpt-4o-mini". Required.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		return nil, errors.New("model is required")
	}

	// NewEnclave wipes the source slice after sealing.
	key := memguard.NewEnclave([]byte(apiKey))
	slog.Info("Initializing OpenAI narrator", "model", model)
	return &OpenAIClient{key: key, model: model}, nil
}

// Generate implements LLMClient.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}

	keyBuf, err := o.key.Open()
	if err != nil {
		return "", fmt.Errorf("unseal api key: %w", err)
	}
	defer keyBuf.Destroy()

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	client := openai.NewClient(keyBuf.String())
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	slog.Debug("OpenAI narration complete",
		"model", o.model,
		"finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
