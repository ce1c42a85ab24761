package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"routerd/internal/common/fsutil"
	"routerd/internal/config"
	"routerd/internal/tokens"
	"routerd/pkg/types"
)

func newEstimateCmd(opts *options) *cobra.Command {
	var (
		encoding  string
		overhead  float64
		maxTokens int
		embedding bool
	)
	cmd := &cobra.Command{
		Use:   "estimate <request.json>",
		Short: "Print the token demand the scheduler would reserve for a request file",
		Example: "  routerd estimate chat.json\n" +
			"  routerd estimate --embedding --encoding cl100k_base input.json",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := fsutil.ReadFile(args[0])
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), opts.logLevel, "console")
			newEst := func(model string) *tokens.Estimator {
				return tokens.New(tokens.Options{Model: model, Encoding: encoding, OverheadFactor: overhead, Logger: log})
			}
			var (
				demand int
				est    *tokens.Estimator
			)
			if embedding {
				var req types.EmbeddingRequest
				if err := json.Unmarshal(b, &req); err != nil {
					return fmt.Errorf("parse %s: %w", args[0], err)
				}
				est = newEst(firstModel(req.Model, req.Models))
				demand = est.EstimateText(req.Input)
			} else {
				var req types.ChatRequest
				if err := json.Unmarshal(b, &req); err != nil {
					return fmt.Errorf("parse %s: %w", args[0], err)
				}
				mt := req.MaxTokens
				if mt == 0 {
					mt = maxTokens
				}
				est = newEst(firstModel(req.Model, req.Models))
				demand = est.Estimate(req.Messages, req.Functions, mt)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "demand=%d encoding=%s\n", demand, est.Encoding())
			return nil
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", "", "Force a tiktoken encoding or \"heuristic\"")
	cmd.Flags().Float64Var(&overhead, "overhead", config.DefaultOverheadFactor, "Overhead factor applied to the prompt count")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", config.DefaultMaxTokens, "Completion budget when the request omits max_tokens")
	cmd.Flags().BoolVar(&embedding, "embedding", false, "Treat the file as an embedding request")
	return cmd
}

func firstModel(model string, models []string) string {
	if model != "" {
		return model
	}
	if len(models) > 0 {
		return models[0]
	}
	return ""
}
