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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultIssueLabel is the positive class of a binary sequence classifier.
const DefaultIssueLabel = "LABEL_1"

const (
	defaultHFTimeout = 30 * time.Second
	maxErrorBody     = 512
)

type hfRequest struct {
	Inputs   string `json:"inputs"`
	Truncate bool   `json:"truncate"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// HFClient calls a HuggingFace text-classification endpoint.
type HFClient struct {
	httpClient *http.Client
	endpoint   string
	issueLabel string
	model      string
	token      *Secret
}

// HFOption configures an HFClient.
type HFOption func(*HFClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HFOption {
	return func(h *HFClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HFOption {
	return func(h *HFClient) {
		h.httpClient = &http.Client{Timeout: d}
	}
}

// WithIssueLabel sets the label read as the issue probability.
func WithIssueLabel(label string) HFOption {
	return func(h *HFClient) {
		if label != "" {
			h.issueLabel = label
		}
	}
}

// WithToken sets the bearer token.
func WithToken(s *Secret) HFOption {
	return func(h *HFClient) { h.token = s }
}

// WithModelName sets the model name reported by Name.
func WithModelName(model string) HFOption {
	return func(h *HFClient) { h.model = model }
}

// NewHFClient creates a client for endpoint.
//
// # Inputs
//
//   - endpoint: Absolute http(s) URL, e.g. "http://tei:8080/predict".
//   - opts: Optional settings.
//
// # Outputs
//
//   - *HFClient: Ready client.
//   - error: ErrInvalidConfig if endpoint is not an http(s) URL.
func NewHFClient(endpoint string, opts ...HFOption) (*HFClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q must be an http(s) URL", ErrInvalidConfig, endpoint)
	}

	h := &HFClient{
		httpClient: &http.Client{Timeout: defaultHFTimeout},
		endpoint:   endpoint,
		issueLabel: DefaultIssueLabel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Name implements Classifier.
// errorBody trims an upstream error body to maxErrorBody bytes without
// splitting a rune.
func errorBody(data []byte) string {
	msg := strings.TrimSpace(string(data))
	if len(msg) <= maxErrorBody {
		return msg
	}
	n := maxErrorBody
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

func (h *HFClient) Name() string {
	if h.model != "" {
		return "hf:" + h.model
	}
	return "hf"
}

// Classify implements Classifier.
//
// # Description
//
// POSTs {"inputs": code, "truncate": true}. The server truncates long
// inputs to the model's maximum sequence length. Both the flat
// [{label, score}] and the nested [[{label, score}]] response shapes are
// accepted.
func (h *HFClient) Classify(ctx context.Context, code string) (float64, error) {
	body, err := json.Marshal(hfRequest{Inputs: code, Truncate: true})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	var score float64
	err = h.token.Use(func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := h.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read body: %v", ErrUpstream, err)
		}
		if resp.StatusCode != http.StatusOK {
			msg := errorBody(data)
			return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
		}

		score, err = h.pickScore(data)
		return err
	})
	if err != nil {
		slog.Debug("classification failed", "backend", h.Name(), "error", err)
		return 0, err
	}
	return score, nil
}

func (h *HFClient) pickScore(data []byte) (float64, error) {
	labels, err := decodeLabels(data)
	if err != nil {
		return 0, err
	}
	for _, ls := range labels {
		if ls.Label == h.issueLabel {
			return validateScore(ls.Score)
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrLabelNotFound, h.issueLabel)
}

func decodeLabels(data []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("%w: unexpected response: %v", ErrUpstream, err)
	}
	return flat, nil
}
