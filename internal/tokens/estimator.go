// Package tokens estimates the token demand of a request before it is sent.
// Estimates feed admission math only; they are never used for billing.
package tokens

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"routerd/pkg/types"
)

const (
	// DefaultOverheadFactor covers per-message formatting tokens (role markers,
	// separators) that the raw content encoding does not include.
	DefaultOverheadFactor = 1.1
	// DefaultEncoding is used when the model has no known tiktoken mapping.
	DefaultEncoding = "cl100k_base"
	// HeuristicEncoding names the chars/4 fallback.
	HeuristicEncoding = "heuristic"
)

// Encoder counts tokens of a single text.
type Encoder interface {
	Count(text string) int
	Name() string
}

// Options configures New.
type Options struct {
	// Model selects a tiktoken encoding by model name (e.g. gpt-4o).
	Model string
	// Encoding names an encoding directly; used when Model is empty or unknown.
	Encoding       string
	OverheadFactor float64
	Logger         zerolog.Logger
}

// Estimator computes token demand. It is safe for concurrent use.
type Estimator struct {
	enc      Encoder
	overhead float64
}

// New resolves the encoder once. If tiktoken cannot provide an encoding (for
// example, the BPE ranks cannot be loaded offline) it falls back to the
// heuristic encoder and logs a warning.
func New(opts Options) *Estimator {
	overhead := opts.OverheadFactor
	if overhead <= 0 {
		overhead = DefaultOverheadFactor
	}
	if opts.Encoding == HeuristicEncoding {
		return &Estimator{enc: heuristicEncoder{}, overhead: overhead}
	}
	enc, err := newTiktokenEncoder(opts.Model, opts.Encoding)
	if err != nil {
		opts.Logger.Warn().Err(err).Str("model", opts.Model).Str("encoding", opts.Encoding).
			Msg("tokens: tiktoken unavailable, falling back to heuristic estimate")
		return &Estimator{enc: heuristicEncoder{}, overhead: overhead}
	}
	return &Estimator{enc: enc, overhead: overhead}
}

// NewWithEncoder builds an Estimator around a caller-provided Encoder.
func NewWithEncoder(enc Encoder, overhead float64) *Estimator {
	if overhead <= 0 {
		overhead = DefaultOverheadFactor
	}
	if enc == nil {
		enc = heuristicEncoder{}
	}
	return &Estimator{enc: enc, overhead: overhead}
}

// Encoding returns the name of the encoder in use.
func (e *Estimator) Encoding() string { return e.enc.Name() }

// Estimate returns the token demand of a chat request: encoded message tokens
// scaled by the overhead factor, plus the encoded function schemas, plus the
// reserved completion budget.
func (e *Estimator) Estimate(messages []types.Message, functions []types.Function, maxTokens int) int {
	sum := 0
	for _, m := range messages {
		sum = addSat(sum, e.enc.Count(m.Role))
		sum = addSat(sum, e.enc.Count(m.Content))
		if m.Name != "" {
			sum = addSat(sum, e.enc.Count(m.Name))
		}
		if m.FunctionCall != nil {
			sum = addSat(sum, e.enc.Count(m.FunctionCall.Name))
			sum = addSat(sum, e.enc.Count(m.FunctionCall.Arguments))
		}
	}
	total := math.MaxInt
	if scaled := math.Ceil(float64(sum) * e.overhead); scaled < float64(math.MaxInt) {
		total = int(scaled)
	}
	if len(functions) > 0 {
		if b, err := json.Marshal(functions); err == nil {
			total = addSat(total, e.enc.Count(string(b)))
		}
	}
	if maxTokens > 0 {
		total = addSat(total, maxTokens)
	}
	return total
}

// addSat adds two non-negative counts, clamping at math.MaxInt so an
// oversized max_tokens can never wrap into a negative demand.
func addSat(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// EstimateText returns the encoded size of embedding inputs.
func (e *Estimator) EstimateText(inputs []string) int {
	total := 0
	for _, in := range inputs {
		total = addSat(total, e.enc.Count(in))
	}
	return total
}

// heuristicEncoder approximates ~4 characters per token.
type heuristicEncoder struct{}

func (heuristicEncoder) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

func (heuristicEncoder) Name() string { return HeuristicEncoding }

type tiktokenEncoder struct {
	mu   sync.Mutex
	name string
	tk   *tiktoken.Tiktoken
}

func newTiktokenEncoder(model, encoding string) (*tiktokenEncoder, error) {
	if model != "" {
		if tk, err := tiktoken.EncodingForModel(model); err == nil {
			return &tiktokenEncoder{name: model, tk: tk}, nil
		}
	}
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tk, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &tiktokenEncoder{name: encoding, tk: tk}, nil
}

func (t *tiktokenEncoder) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tk.Encode(text, nil, nil))
}

func (t *tiktokenEncoder) Name() string { return t.name }
