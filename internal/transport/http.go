// Package transport sends scheduled calls to OpenAI-compatible and Azure
// OpenAI deployments over HTTP. It performs exactly one attempt per call;
// retries and deadlines belong to the scheduler.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"routerd/internal/manager"
	"routerd/pkg/types"
)

const (
	defaultConnectTimeout = 10 * time.Second
	maxErrorBody          = 4096
	// DefaultMaxResponseBytes caps how much of a successful response is read.
	DefaultMaxResponseBytes = 32 << 20
)

// StatusError reports a non-2xx response from a deployment.
type StatusError struct {
	Code       int
	Deployment string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deployment %s: http %d: %s", e.Deployment, e.Code, e.Body)
}

// StatusCode exposes the provider status for outcome classification.
func (e *StatusError) StatusCode() int { return e.Code }

// Options tunes the HTTP client.
type Options struct {
	ConnectTimeout   time.Duration
	MaxResponseBytes int64
	// Client overrides the constructed client (tests).
	Client *http.Client
}

// HTTP implements manager.Transport.
type HTTP struct {
	client   *http.Client
	maxBytes int64
}

var _ manager.Transport = (*HTTP)(nil)

// New constructs an HTTP transport.
func New(opts Options) *HTTP {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = DefaultMaxResponseBytes
	}
	cli := opts.Client
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Timeout=0: every call carries the scheduler's deadline via context.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	return &HTTP{client: cli, maxBytes: opts.MaxResponseBytes}
}

// Send posts call.Body to the deployment and returns the raw response body.
func (h *HTTP) Send(ctx context.Context, call manager.Call) ([]byte, error) {
	target, body, err := buildRequest(call)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setAuth(req, call.Deployment)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := h.client.Do(req)
	if err != nil {
		// Translate context timeouts/cancels
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(err, "deployment %s", call.Deployment.Name)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Deployment: call.Deployment.Name, Body: strings.TrimSpace(string(b))}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(err, "read response from %s", call.Deployment.Name)
	}
	return b, nil
}

// buildRequest selects the wire style. Azure deployments (APIVersion set)
// address the deployment in the path; OpenAI-compatible endpoints take the
// model in the body.
func buildRequest(call manager.Call) (string, []byte, error) {
	d := call.Deployment
	base := strings.TrimRight(d.Endpoint, "/")
	if base == "" {
		return "", nil, errors.Errorf("deployment %s: empty endpoint", d.Name)
	}
	op := string(call.Op)
	if d.APIVersion != "" {
		target := fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
			base, url.PathEscape(d.DeploymentName), op, url.QueryEscape(d.APIVersion))
		return target, call.Body, nil
	}
	model := d.DeploymentName
	if model == "" {
		model = call.Model
	}
	body, err := withModel(call.Body, model)
	if err != nil {
		return "", nil, err
	}
	return base + "/v1/" + op, body, nil
}

// withModel sets the top-level "model" field of a JSON object body.
func withModel(body []byte, model string) ([]byte, error) {
	if model == "" {
		return body, nil
	}
	obj := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, errors.Wrap(err, "request body must be a JSON object")
		}
	}
	m, _ := json.Marshal(model)
	obj["model"] = m
	return json.Marshal(obj)
}

func setAuth(req *http.Request, d types.Deployment) {
	if d.Credential == "" {
		return
	}
	if d.APIVersion != "" {
		req.Header.Set("api-key", d.Credential)
		return
	}
	req.Header.Set("Authorization", "Bearer "+d.Credential)
}
