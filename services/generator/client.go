// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when neither the spec nor the client names one.
const DefaultModel = "gpt-4o-mini"

const apiKeySecretPath = "/run/secrets/openai_api_key"

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// ClientConfig configures an OpenAI-compatible chat endpoint.
type ClientConfig struct {
	// APIKey falls back to OPENAI_API_KEY and then the container secret.
	APIKey string

	// BaseURL points at a compatible server, such as a local Ollama at
	// http://localhost:11434/v1. A key is optional when it is set.
	BaseURL string

	// Model is the default model for requests that do not name one.
	Model string

	Temperature float32
}

// OpenAIClient is a Completer backed by the chat completions API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient resolves credentials and builds a client.
func NewOpenAIClient(cfg ClientConfig) (*OpenAIClient, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		if b, err := os.ReadFile(apiKeySecretPath); err == nil {
			key = strings.TrimSpace(string(b))
		}
	}
	if key == "" && cfg.BaseURL == "" {
		return nil, errors.New("OPENAI_API_KEY not set and no base URL configured")
	}

	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends prompt as a single user message.
func (c *OpenAIClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.model
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): no choices", model)
	}
	return resp.Choices[0].Message.Content, nil
}
