package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routerd/internal/llm"
	"routerd/pkg/types"
)

// HandleHeader carries the abort handle on chat and embedding requests and responses.
const HandleHeader = "X-Task-Handle"

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Chat(ctx context.Context, messages []types.Message, cfg llm.ModelConfig) (*llm.ChatResult, error)
	Embed(ctx context.Context, input []string, cfg llm.EmbedConfig) (*llm.EmbeddingResult, error)
	Abort(handle string) error
	ListModels() []string
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{HandleHeader, TraceHeader, "X-Deployment", "X-Attempts"},
			MaxAge:         300,
		}))
	}
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// @Summary      List routable models
	// @Tags         models
	// @Produce      json
	// @Success      200 {object} types.ModelsResponse
	// @Router       /models [get]
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	// @Summary      Scheduler status
	// @Tags         status
	// @Produce      json
	// @Success      200 {object} types.StatusResponse
	// @Router       /status [get]
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	// @Summary      Chat completion
	// @Description  Queues the request until a deployment has rate and concurrency capacity, then returns the provider response.
	// @Tags         tasks
	// @Accept       json
	// @Produce      json
	// @Param        X-Task-Handle header string false "Caller-chosen abort handle"
	// @Param        request body types.ChatRequest true "Chat request"
	// @Success      200 {object} types.ChatResponse
	// @Failure      400,404,409,413,429,502,503,504 {object} types.ErrorResponse
	// @Router       /v1/chat/completions [post]
	r.Post("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Messages) == 0 {
			writeJSONError(w, http.StatusBadRequest, "messages is required")
			return
		}
		handle, models := requestHandle(r), routeModels(req.Model, req.Models)
		w.Header().Set(HandleHeader, handle)
		lvl := requestLogLevel(r)
		start := time.Now()
		logStart(r, lvl, handle, models)

		ctx, cancel := taskContext(r)
		defer cancel()
		res, err := svc.Chat(ctx, req.Messages, llm.ModelConfig{
			Models:           models,
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			FrequencyPenalty: req.FrequencyPenalty,
			PresencePenalty:  req.PresencePenalty,
			MaxTokens:        req.MaxTokens,
			Stop:             req.Stop,
			Functions:        req.Functions,
			FunctionCall:     req.FunctionCall,
			Handle:           handle,
		})
		if err != nil {
			finishError(w, r, lvl, handle, start, err)
			return
		}
		setRouteHeaders(w, res.Deployment, res.Attempts)
		writeJSON(w, http.StatusOK, res.Response)
		logEnd(r, lvl, handle, http.StatusOK, start, nil)
	})

	// @Summary      Embeddings
	// @Tags         tasks
	// @Accept       json
	// @Produce      json
	// @Param        X-Task-Handle header string false "Caller-chosen abort handle"
	// @Param        request body types.EmbeddingRequest true "Embedding request"
	// @Success      200 {object} types.EmbeddingResponse
	// @Failure      400,404,409,413,429,502,503,504 {object} types.ErrorResponse
	// @Router       /v1/embeddings [post]
	r.Post("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req types.EmbeddingRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Input) == 0 {
			writeJSONError(w, http.StatusBadRequest, "input is required")
			return
		}
		handle, models := requestHandle(r), routeModels(req.Model, req.Models)
		w.Header().Set(HandleHeader, handle)
		lvl := requestLogLevel(r)
		start := time.Now()
		logStart(r, lvl, handle, models)

		ctx, cancel := taskContext(r)
		defer cancel()
		res, err := svc.Embed(ctx, req.Input, llm.EmbedConfig{Models: models, Handle: handle})
		if err != nil {
			finishError(w, r, lvl, handle, start, err)
			return
		}
		setRouteHeaders(w, res.Deployment, res.Attempts)
		writeJSON(w, http.StatusOK, res.Response)
		logEnd(r, lvl, handle, http.StatusOK, start, nil)
	})

	// @Summary      Abort a task
	// @Tags         tasks
	// @Param        handle path string true "Task handle"
	// @Success      204
	// @Failure      404 {object} types.ErrorResponse
	// @Router       /v1/tasks/{handle} [delete]
	r.Delete("/v1/tasks/{handle}", func(w http.ResponseWriter, r *http.Request) {
		handle := chi.URLParam(r, "handle")
		if err := svc.Abort(handle); err != nil {
			writeServiceError(w, err)
			return
		}
		if requestLogLevel(r) >= LevelInfo {
			zlog.Info().Str("handle", handle).Msg("task abort requested")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeJSONBody enforces Content-Type and the body limit. It writes the
// error response itself and reports whether decoding succeeded.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; report 400 without size details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// requestHandle returns the caller's handle or a fresh one.
func requestHandle(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(HandleHeader)); h != "" {
		return h
	}
	return uuid.NewString()
}

// routeModels merges the single-model alias into the eligible list.
func routeModels(model string, models []string) []string {
	if model == "" {
		return models
	}
	out := []string{model}
	for _, m := range models {
		if m != model {
			out = append(out, m)
		}
	}
	return out
}

func setRouteHeaders(w http.ResponseWriter, deployment string, attempts int) {
	w.Header().Set("X-Deployment", deployment)
	w.Header().Set("X-Attempts", strconv.Itoa(attempts))
}

// finishError writes the mapped error unless the client is already gone.
func finishError(w http.ResponseWriter, r *http.Request, lvl LogLevel, handle string, start time.Time, err error) {
	if r.Context().Err() != nil {
		logEnd(r, lvl, handle, 499, start, err)
		return
	}
	if serverBaseCtx.Err() != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
		logEnd(r, lvl, handle, http.StatusServiceUnavailable, start, err)
		return
	}
	if err == context.DeadlineExceeded {
		writeJSONError(w, http.StatusGatewayTimeout, "request timed out waiting for a deployment")
		logEnd(r, lvl, handle, http.StatusGatewayTimeout, start, err)
		return
	}
	status := writeServiceError(w, err)
	logEnd(r, lvl, handle, status, start, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
