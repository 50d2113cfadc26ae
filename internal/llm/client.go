// Package llm is the client for the hosted completion provider
// (Anthropic Messages API): plain completions, incremental streaming,
// and token counting, with provider failures mapped to a small typed
// taxonomy.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/conversation"
)

const apiVersion = "2023-06-01"

// Client talks to the Anthropic Messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
}

// NewClient creates a provider client from config.
func NewClient(cfg config.AnthropicConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
	}
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	return req, nil
}

// decodeError turns a non-2xx response into a classified *Error.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Type != "" {
		return newAPIError(resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}
	return newAPIError(resp.StatusCode, "", fmt.Sprintf("unexpected status %d", resp.StatusCode))
}

// Generate returns a complete response for the given history.
func (c *Client) Generate(ctx context.Context, turns []conversation.Turn) (string, error) {
	req, err := c.newRequest(ctx, "/v1/messages", apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  toAPIMessages(turns),
	})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling messages API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.StopReason == "refusal" {
		return "", errRefusal(out.StopReason)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Server-sent event payloads for the streaming API. Only the fields the
// relay consumes are modeled.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateStream streams a response, invoking onDelta for each text
// fragment as it arrives. It returns the full accumulated text; on error
// the accumulated partial text is still returned so the caller can show
// it to the user rather than silently dropping it.
func (c *Client) GenerateStream(ctx context.Context, turns []conversation.Turn, onDelta func(string)) (string, error) {
	req, err := c.newRequest(ctx, "/v1/messages", apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  toAPIMessages(turns),
		Stream:    true,
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling messages API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			slog.Debug("skipping malformed stream event", "error", err)
			continue
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				sb.WriteString(ev.Delta.Text)
				if onDelta != nil {
					onDelta(ev.Delta.Text)
				}
			}
		case "message_delta":
			if ev.Delta.StopReason == "refusal" {
				return sb.String(), errRefusal(ev.Delta.StopReason)
			}
		case "error":
			return sb.String(), newAPIError(0, ev.Error.Type, ev.Error.Message)
		case "message_stop":
			return sb.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return sb.String(), fmt.Errorf("reading stream: %w", err)
	}
	// Stream ended without message_stop; treat what we have as partial.
	return sb.String(), errors.New("stream ended unexpectedly")
}

// CountTokens asks the provider for the token cost of a history.
func (c *Client) CountTokens(ctx context.Context, turns []conversation.Turn) (int, error) {
	// Counting is a prune-loop helper; keep it snappy regardless of the
	// completion timeout.
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := c.newRequest(ctx, "/v1/messages/count_tokens", apiRequest{
		Model:    c.model,
		Messages: toAPIMessages(turns),
	})
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling count_tokens API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}

	var out countTokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding count_tokens response: %w", err)
	}
	return out.InputTokens, nil
}
