// Package llm is the caller-facing facade over the scheduler. It estimates
// token demand, builds provider payloads, submits them and waits for the
// typed result. Callers never see scheduler or worker types.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"routerd/internal/manager"
	"routerd/pkg/types"
)

// DefaultMaxTokens is reserved for completions when the caller sets no max_tokens.
const DefaultMaxTokens = 1024

// Scheduler is the subset of *manager.Manager the client drives.
type Scheduler interface {
	Submit(ctx context.Context, req manager.Request) (*manager.Handle, error)
	Abort(id string) error
	Status() types.StatusResponse
	Ready() bool
	ListModels() []string
}

// Estimator computes token demand.
type Estimator interface {
	Estimate(messages []types.Message, functions []types.Function, maxTokens int) int
	EstimateText(inputs []string) int
}

// ModelConfig carries chat parameters and routing constraints.
type ModelConfig struct {
	// Models lists eligible model names; empty allows any deployment.
	Models           []string
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	MaxTokens        int
	Stop             []string
	Functions        []types.Function
	FunctionCall     json.RawMessage
	// Handle is the abort handle; empty generates one.
	Handle string
}

// EmbedConfig carries embedding routing constraints.
type EmbedConfig struct {
	Models []string
	Handle string
}

// ChatResult is a decoded chat completion plus routing details.
type ChatResult struct {
	Handle     string
	Deployment string
	Model      string
	Attempts   int
	Response   types.ChatResponse
}

// EmbeddingResult is a decoded embedding response plus routing details.
type EmbeddingResult struct {
	Handle     string
	Deployment string
	Model      string
	Attempts   int
	Response   types.EmbeddingResponse
}

// Options tunes Client construction.
type Options struct {
	DefaultMaxTokens int
	Logger           zerolog.Logger
}

type Client struct {
	sched            Scheduler
	est              Estimator
	defaultMaxTokens int
	log              zerolog.Logger
}

func New(sched Scheduler, est Estimator, opts Options) *Client {
	if opts.DefaultMaxTokens <= 0 {
		opts.DefaultMaxTokens = DefaultMaxTokens
	}
	return &Client{sched: sched, est: est, defaultMaxTokens: opts.DefaultMaxTokens, log: opts.Logger}
}

// invalidRequestError rejects malformed caller input before submission.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string   { return "invalid request: " + e.msg }
func (e invalidRequestError) StatusCode() int { return http.StatusBadRequest }

// chatPayload is the provider body; routing fields are never forwarded.
type chatPayload struct {
	Messages         []types.Message  `json:"messages"`
	Temperature      *float64         `json:"temperature,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	FrequencyPenalty *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64         `json:"presence_penalty,omitempty"`
	MaxTokens        int              `json:"max_tokens,omitempty"`
	Stop             []string         `json:"stop,omitempty"`
	Functions        []types.Function `json:"functions,omitempty"`
	FunctionCall     json.RawMessage  `json:"function_call,omitempty"`
}

type embedPayload struct {
	Input []string `json:"input"`
}

// Chat runs a chat completion. If ctx ends first the task is aborted and
// ctx.Err() returned.
func (c *Client) Chat(ctx context.Context, messages []types.Message, cfg ModelConfig) (*ChatResult, error) {
	if len(messages) == 0 {
		return nil, invalidRequestError{msg: "messages must not be empty"}
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}
	body, err := json.Marshal(chatPayload{
		Messages:         messages,
		Temperature:      cfg.Temperature,
		TopP:             cfg.TopP,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
		MaxTokens:        maxTokens,
		Stop:             cfg.Stop,
		Functions:        cfg.Functions,
		FunctionCall:     cfg.FunctionCall,
	})
	if err != nil {
		return nil, invalidRequestError{msg: err.Error()}
	}
	req := manager.Request{
		ID:          handleOr(cfg.Handle),
		Op:          manager.OpChat,
		Models:      cfg.Models,
		Body:        body,
		TokenDemand: c.est.Estimate(messages, cfg.Functions, maxTokens),
		Decode:      decodeChat,
	}
	res, err := c.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ChatResult{
		Handle:     req.ID,
		Deployment: res.Deployment,
		Model:      res.Model,
		Attempts:   res.Attempts,
		Response:   res.Value.(types.ChatResponse),
	}, nil
}

// Embed runs an embedding request with the same cancellation contract as Chat.
func (c *Client) Embed(ctx context.Context, input []string, cfg EmbedConfig) (*EmbeddingResult, error) {
	if len(input) == 0 {
		return nil, invalidRequestError{msg: "input must not be empty"}
	}
	body, err := json.Marshal(embedPayload{Input: input})
	if err != nil {
		return nil, invalidRequestError{msg: err.Error()}
	}
	req := manager.Request{
		ID:          handleOr(cfg.Handle),
		Op:          manager.OpEmbeddings,
		Models:      cfg.Models,
		Body:        body,
		TokenDemand: c.est.EstimateText(input),
		Decode:      decodeEmbedding(len(input)),
	}
	res, err := c.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return &EmbeddingResult{
		Handle:     req.ID,
		Deployment: res.Deployment,
		Model:      res.Model,
		Attempts:   res.Attempts,
		Response:   res.Value.(types.EmbeddingResponse),
	}, nil
}

// Abort cancels a live task by handle.
func (c *Client) Abort(handle string) error { return c.sched.Abort(handle) }

func (c *Client) Status() types.StatusResponse { return c.sched.Status() }
func (c *Client) Ready() bool                   { return c.sched.Ready() }
func (c *Client) ListModels() []string          { return c.sched.ListModels() }

func (c *Client) run(ctx context.Context, req manager.Request) (manager.Result, error) {
	h, err := c.sched.Submit(ctx, req)
	if err != nil {
		return manager.Result{}, err
	}
	select {
	case <-h.Done():
		return h.Wait(context.Background())
	case <-ctx.Done():
		// A task that settled concurrently keeps its outcome.
		select {
		case <-h.Done():
			return h.Wait(context.Background())
		default:
		}
		if aerr := c.sched.Abort(h.ID()); aerr == nil {
			c.log.Debug().Str("task", h.ID()).Err(ctx.Err()).Msg("caller gone, task aborted")
		}
		return manager.Result{}, ctx.Err()
	}
}

func handleOr(h string) string {
	if h != "" {
		return h
	}
	return uuid.NewString()
}

func decodeChat(b []byte) (any, error) {
	var resp types.ChatResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}
	return resp, nil
}

func decodeEmbedding(want int) func([]byte) (any, error) {
	return func(b []byte) (any, error) {
		var resp types.EmbeddingResponse
		if err := json.Unmarshal(b, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) != want {
			return nil, fmt.Errorf("response has %d embeddings for %d inputs", len(resp.Data), want)
		}
		return resp, nil
	}
}
