// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// maxPromptBytes caps the snippet sent to a chat model.
const maxPromptBytes = 16 * 1024

const openAISystemPrompt = `You review source code. Estimate the probability that the snippet ` +
	`contains bugs, security problems, or serious quality issues. ` +
	`Reply with a JSON object {"issue_probability": <number between 0 and 1>} and nothing else.`

// OpenAIClassifier asks an OpenAI-compatible chat model for an issue probability.
type OpenAIClassifier struct {
	baseURL    string
	model      string
	key        *Secret
	httpClient *http.Client
}

// NewOpenAIClassifier creates a chat-completion backed classifier.
// baseURL may be empty for the public API.
func NewOpenAIClassifier(baseURL, model string, key *Secret, timeout time.Duration) (*OpenAIClassifier, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: openai backend requires a model", ErrInvalidConfig)
	}
	if timeout <= 0 {
		timeout = defaultHFTimeout
	}
	return &OpenAIClassifier{
		baseURL:    baseURL,
		model:      model,
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Classifier.
func (o *OpenAIClassifier) Name() string {
	return "openai:" + o.model
}

// Classify implements Classifier.
func (o *OpenAIClassifier) Classify(ctx context.Context, code string) (float64, error) {
	if len(code) > maxPromptBytes {
		code = code[:maxPromptBytes]
	}

	var content string
	err := o.key.Use(func(key string) error {
		cfg := openai.DefaultConfig(key)
		if o.baseURL != "" {
			cfg.BaseURL = o.baseURL
		}
		cfg.HTTPClient = o.httpClient
		client := openai.NewClientWithConfig(cfg)

		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: code},
			},
			Temperature: 0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices returned", ErrUpstream)
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		slog.Debug("classification failed", "backend", o.Name(), "error", err)
		return 0, err
	}

	return parseProbability(content)
}

func parseProbability(content string) (float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out struct {
		IssueProbability *float64 `json:"issue_probability"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return 0, fmt.Errorf("%w: unparseable reply: %v", ErrUpstream, err)
	}
	if out.IssueProbability == nil {
		return 0, fmt.Errorf("%w: reply missing issue_probability", ErrUpstream)
	}
	return validateScore(*out.IssueProbability)
}
