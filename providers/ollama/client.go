package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quailyquaily/socialsim/llm"
)

const defaultEndpoint = "http://localhost:11434"

type Config struct {
	Endpoint       string
	RequestTimeout time.Duration
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if base == "" {
		base = defaultEndpoint
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []llm.Message  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()
	var out chatResponse
	if err := c.post(ctx, "/api/chat", chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Options:  req.Parameters,
	}, &out); err != nil {
		return llm.Result{}, err
	}
	if out.Error != "" {
		return llm.Result{}, fmt.Errorf("%w: ollama chat: %s", llm.ErrUnavailable, out.Error)
	}
	text := strings.TrimSpace(out.Message.Content)
	if text == "" {
		return llm.Result{}, fmt.Errorf("%w: ollama chat: empty response", llm.ErrUnavailable)
	}
	return llm.Result{
		Text:     text,
		Usage:    usage(out.PromptEvalCount, out.EvalCount),
		Duration: time.Since(start),
	}, nil
}

func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (llm.Result, error) {
	start := time.Now()
	var out generateResponse
	if err := c.post(ctx, "/api/generate", generateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Options: req.Parameters,
	}, &out); err != nil {
		return llm.Result{}, err
	}
	if out.Error != "" {
		return llm.Result{}, fmt.Errorf("%w: ollama generate: %s", llm.ErrUnavailable, out.Error)
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return llm.Result{}, fmt.Errorf("%w: ollama generate: empty response", llm.ErrUnavailable)
	}
	return llm.Result{
		Text:     text,
		Usage:    usage(out.PromptEvalCount, out.EvalCount),
		Duration: time.Since(start),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", llm.ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: ollama http %d: %s", llm.ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", llm.ErrUnavailable, err)
	}
	return nil
}

func usage(prompt, completion int) llm.Usage {
	return llm.Usage{
		InputTokens:  prompt,
		OutputTokens: completion,
		TotalTokens:  prompt + completion,
	}
}

var _ llm.Client = (*Client)(nil)
