package types

import "encoding/json"

// Message is a single chat message.
type Message struct {
	// Role of the author (system, user, assistant, function).
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
	// Optional author name (function results).
	Name string `json:"name,omitempty"`
	// Function call emitted by the assistant, if any.
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// FunctionCall is a function invocation produced by the model.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Function is a callable function schema offered to the model.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty" swaggertype:"object"`
}

// ChatRequest is the payload accepted by POST /v1/chat/completions.
type ChatRequest struct {
	// Single model name; shorthand for models=[model].
	// example: gpt-4o
	Model string `json:"model,omitempty" example:"gpt-4o"`
	// Eligible model names. Any deployment serving one of them may take the request.
	// example: ["gpt-4o","gpt-4o-mini"]
	Models []string `json:"models,omitempty"`
	// Conversation so far.
	Messages []Message `json:"messages"`
	// Sampling temperature.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.95
	TopP *float64 `json:"top_p,omitempty" example:"0.95"`
	// example: 0
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" example:"0"`
	// example: 0
	PresencePenalty *float64 `json:"presence_penalty,omitempty" example:"0"`
	// Completion budget; also reserved for admission.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// Stop sequences.
	Stop []string `json:"stop,omitempty"`
	// Functions the model may call.
	Functions []Function `json:"functions,omitempty"`
	// "auto", "none" or {"name": "..."}.
	FunctionCall json.RawMessage `json:"function_call,omitempty" swaggertype:"object"`
}

// ChatChoice is one completion alternative.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

// Usage contains token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the provider's chat completion result.
type ChatResponse struct {
	ID      string       `json:"id,omitempty"`
	Model   string       `json:"model,omitempty"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// EmbeddingRequest is the payload accepted by POST /v1/embeddings.
type EmbeddingRequest struct {
	// example: text-embedding-3-small
	Model  string   `json:"model,omitempty" example:"text-embedding-3-small"`
	Models []string `json:"models,omitempty"`
	// Texts to embed.
	Input []string `json:"input"`
}

// Embedding is one embedding vector.
type Embedding struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingResponse is the provider's embedding result.
type EmbeddingResponse struct {
	Model string      `json:"model,omitempty"`
	Data  []Embedding `json:"data"`
	Usage Usage       `json:"usage"`
}

// ModelsResponse wraps the list of routable model names returned by GET /models.
type ModelsResponse struct {
	// example: ["gpt-4o","text-embedding-3-small"]
	Models []string `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: admission exhausted: demand 200000 exceeds every deployment
	Error string `json:"error" example:"invalid JSON body"`
	// Error kind for scheduler failures.
	// example: AdmissionExhausted
	Kind string `json:"kind,omitempty" example:"AdmissionExhausted"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// WindowUsage reports consumption of one tracked rate window.
type WindowUsage struct {
	// Window length in seconds.
	// example: 10
	Seconds float64 `json:"seconds" example:"10"`
	// Requests admitted within the window.
	Requests int `json:"requests"`
	// Tokens admitted within the window.
	Tokens int `json:"tokens"`
	// Proportional request capacity (0 = unlimited).
	RequestCap int `json:"request_cap"`
	// Proportional token capacity (0 = unlimited).
	TokenCap int `json:"token_cap"`
}

// DeploymentStatus summarizes one worker for /status.
type DeploymentStatus struct {
	// example: eastus/gpt-4o-eastus
	Name string `json:"name" example:"eastus/gpt-4o-eastus"`
	// example: ["gpt-4o"]
	Models []string `json:"models"`
	// Number of in-flight calls.
	// example: 2
	Inflight int `json:"inflight" example:"2"`
	// Concurrency limit (0 = unlimited).
	// example: 5
	Concurrency int `json:"concurrency" example:"5"`
	// example: 60
	RPM int `json:"rpm" example:"60"`
	// example: 100000
	TPM int `json:"tpm" example:"100000"`
	// Usage per tracked window, shortest first.
	Windows []WindowUsage `json:"windows"`
	// Admissions since start.
	AdmittedTotal uint64 `json:"admitted_total"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Deployments []DeploymentStatus `json:"deployments"`
	// Tasks waiting for admission.
	// example: 3
	QueueLen int `json:"queue_len" example:"3"`
	// Tasks currently assigned to a deployment.
	// example: 4
	Assigned int `json:"assigned" example:"4"`
	// example: 120
	SucceededTotal uint64 `json:"succeeded_total" example:"120"`
	// example: 2
	FailedTotal uint64 `json:"failed_total" example:"2"`
	// example: 5
	RetriesTotal uint64 `json:"retries_total" example:"5"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Overall scheduler state (ready, closed).
	// example: ready
	State string `json:"state" example:"ready"`
}
