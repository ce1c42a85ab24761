package types

// Endpoint is one entry of the deployment manifest: a provider endpoint with a
// shared credential and concurrency budget serving one or more model deployments.
type Endpoint struct {
	// Optional display name; defaults to the endpoint host.
	// example: eastus
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty" example:"eastus"`
	// Base URL of the provider endpoint.
	// example: https://eastus.openai.azure.com
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint" example:"https://eastus.openai.azure.com"`
	// API key or bearer token. Environment references like ${AZURE_KEY} are expanded.
	Credential string `json:"credential" yaml:"credential" toml:"credential"`
	// Model deployments served by this endpoint.
	Models []ModelDeployment `json:"models" yaml:"models" toml:"models"`
	// Maximum concurrent calls per model deployment (0 = unlimited).
	// example: 5
	Concurrency int `json:"concurrency" yaml:"concurrency" toml:"concurrency" example:"5"`
	// Lower bound for the per-call timeout in milliseconds.
	// example: 10000
	MinTimeoutMs int `json:"min_timeout_ms" yaml:"min_timeout_ms" toml:"min_timeout_ms" example:"10000"`
	// Timeout budget per token of demand in milliseconds.
	// example: 20
	TimeoutMsPerToken int `json:"timeout_ms_per_token" yaml:"timeout_ms_per_token" toml:"timeout_ms_per_token" example:"20"`
}

// ModelDeployment describes a single model deployed on an Endpoint.
type ModelDeployment struct {
	// Provider-side deployment name (Azure) or model id (OpenAI-compatible).
	// example: gpt-4o-eastus
	DeploymentName string `json:"deployment_name" yaml:"deployment_name" toml:"deployment_name" example:"gpt-4o-eastus"`
	// Model name callers route by.
	// example: gpt-4o
	ModelName string `json:"model_name" yaml:"model_name" toml:"model_name" example:"gpt-4o"`
	// Context window in tokens (0 = unchecked).
	// example: 128000
	ContextWindow int `json:"context_window" yaml:"context_window" toml:"context_window" example:"128000"`
	// Requests per minute (0 = unlimited).
	// example: 60
	RPM int `json:"rpm" yaml:"rpm" toml:"rpm" example:"60"`
	// Tokens per minute (0 = unlimited).
	// example: 100000
	TPM int `json:"tpm" yaml:"tpm" toml:"tpm" example:"100000"`
	// Azure API version; empty selects the OpenAI-compatible wire style.
	// example: 2024-02-01
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty" toml:"api_version,omitempty" example:"2024-02-01"`
}

// Deployment is the flattened, read-only descriptor of one rate-limited model
// deployment. The scheduler runs one worker per Deployment.
type Deployment struct {
	Name              string   `json:"name"`
	Endpoint          string   `json:"endpoint"`
	Credential        string   `json:"-"`
	DeploymentName    string   `json:"deployment_name"`
	APIVersion        string   `json:"api_version,omitempty"`
	Models            []string `json:"models"`
	RPM               int      `json:"rpm"`
	TPM               int      `json:"tpm"`
	Concurrency       int      `json:"concurrency"`
	ContextWindow     int      `json:"context_window"`
	MinTimeoutMs      int      `json:"min_timeout_ms"`
	TimeoutMsPerToken int      `json:"timeout_ms_per_token"`
}

// Supports reports whether the deployment serves model.
func (d Deployment) Supports(model string) bool {
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}
