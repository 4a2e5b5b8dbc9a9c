package llm

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks a generation backend that could not produce a response:
// transport failures, non-2xx replies and empty bodies all wrap it.
var ErrUnavailable = errors.New("llm: generation unavailable")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

// Request is a multi-turn chat call.
type Request struct {
	Model      string
	Messages   []Message
	Parameters map[string]any
}

// GenerateRequest is a single-prompt completion call.
type GenerateRequest struct {
	Model      string
	Prompt     string
	Parameters map[string]any
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
	Generate(ctx context.Context, req GenerateRequest) (Result, error)
}

// Options is the sampling configuration passed to a backend. Zero fields are
// left to the backend default.
type Options struct {
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	MaxTokens     int
}

func (o Options) Parameters() map[string]any {
	params := map[string]any{}
	if o.Temperature > 0 {
		params["temperature"] = o.Temperature
	}
	if o.TopP > 0 {
		params["top_p"] = o.TopP
	}
	if o.TopK > 0 {
		params["top_k"] = o.TopK
	}
	if o.RepeatPenalty > 0 {
		params["repeat_penalty"] = o.RepeatPenalty
	}
	if o.MaxTokens > 0 {
		params["num_predict"] = o.MaxTokens
	}
	return params
}
