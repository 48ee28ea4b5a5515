// Package llmprovider talks to an OpenAI-compatible completion API and
// adapts its SSE stream to the chat domain's completion contract.
package llmprovider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/simon-lehmann/goldfish.chat/internal/domain/chat"
	"github.com/simon-lehmann/goldfish.chat/internal/utils/retry"
)

// Client implements chat.CompletionStreamer against /v1/chat/completions.
type Client struct {
	httpClient *resty.Client
	baseURL    string
	apiKey     string
	retries    retry.Policy
}

// NewClient creates a Resty-backed client.
func NewClient(baseURL, apiKey string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(75 * time.Second)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		apiKey:     apiKey,
		retries:    retry.DefaultPolicy(),
	}
}

// apiError marks a non-2xx provider response. 5xx responses are worth
// another attempt; 4xx responses are not.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("llm api error: %d %s", e.status, e.body)
}

func isTransient(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.status >= 500
	}
	// Transport-level failures (dial, reset) are retryable.
	return true
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type completionDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// modelList mirrors the /v1/models response.
type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels fetches the IDs of the models the provider serves.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return retry.Do(ctx, c.retries, isTransient, func(ctx context.Context, attempt int) ([]string, error) {
		var list modelList
		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetResult(&list).
			Get("/v1/models")
		if err != nil {
			return nil, fmt.Errorf("fetch models: %w", err)
		}
		if resp.IsError() {
			return nil, &apiError{status: resp.StatusCode(), body: resp.String()}
		}

		ids := make([]string, 0, len(list.Data))
		for _, model := range list.Data {
			ids = append(ids, model.ID)
		}
		return ids, nil
	})
}

// StreamCompletion opens a streaming completion for the given history.
func (c *Client) StreamCompletion(ctx context.Context, modelID string, history []chat.Message) (chat.CompletionStream, error) {
	req := completionRequest{
		Model:    modelID,
		Messages: make([]wireMessage, 0, len(history)),
		Stream:   true,
	}
	for _, msg := range history {
		req.Messages = append(req.Messages, wireMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Only the open is retried; once the first byte arrives the stream
	// either finishes or fails for good.
	return retry.Do(ctx, c.retries, isTransient, func(ctx context.Context, attempt int) (chat.CompletionStream, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		httpClient := &http.Client{Timeout: 120 * time.Second}
		resp, err := httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &apiError{status: resp.StatusCode, body: string(respBody)}
		}

		return &sseStream{
			resp:   resp,
			reader: bufio.NewReader(resp.Body),
		}, nil
	})
}

// Ensure interface compliance.
var _ chat.CompletionStreamer = (*Client)(nil)

// sseStream adapts an SSE response body to chat.CompletionStream.
type sseStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func (s *sseStream) Recv() (string, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return "", io.EOF
		}

		var delta completionDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			// Skip malformed chunks
			continue
		}

		if len(delta.Choices) == 0 || delta.Choices[0].Delta.Content == "" {
			continue
		}
		return delta.Choices[0].Delta.Content, nil
	}
}

func (s *sseStream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
