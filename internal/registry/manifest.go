package registry

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/multierr"

	"routerd/pkg/types"
)

// Flatten expands the endpoint manifest into one Deployment per model entry,
// preserving manifest order. Endpoint-level concurrency and timeouts apply to
// each of the endpoint's deployments. Credentials are expanded from the
// environment (${VAR}).
func Flatten(endpoints []types.Endpoint) ([]types.Deployment, error) {
	var (
		out  []types.Deployment
		errs error
		seen = map[string]bool{}
	)
	for i, ep := range endpoints {
		base := strings.TrimRight(strings.TrimSpace(ep.Endpoint), "/")
		if base == "" {
			errs = multierr.Append(errs, fmt.Errorf("deployments[%d]: endpoint is required", i))
			continue
		}
		name := ep.Name
		if name == "" {
			name = hostOf(base)
		}
		if len(ep.Models) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("deployments[%d] (%s): no models", i, name))
		}
		if ep.Concurrency < 0 || ep.MinTimeoutMs < 0 || ep.TimeoutMsPerToken < 0 {
			errs = multierr.Append(errs, fmt.Errorf("deployments[%d] (%s): negative limit", i, name))
		}
		for j, md := range ep.Models {
			if md.DeploymentName == "" || md.ModelName == "" {
				errs = multierr.Append(errs, fmt.Errorf("deployments[%d].models[%d] (%s): deployment_name and model_name are required", i, j, name))
				continue
			}
			if md.RPM < 0 || md.TPM < 0 || md.ContextWindow < 0 {
				errs = multierr.Append(errs, fmt.Errorf("deployments[%d].models[%d] (%s): negative limit", i, j, name))
				continue
			}
			id := name + "/" + md.DeploymentName
			if seen[id] {
				errs = multierr.Append(errs, fmt.Errorf("duplicate deployment %s", id))
				continue
			}
			seen[id] = true
			out = append(out, types.Deployment{
				Name:              id,
				Endpoint:          base,
				Credential:        os.ExpandEnv(ep.Credential),
				DeploymentName:    md.DeploymentName,
				APIVersion:        md.APIVersion,
				Models:            []string{md.ModelName},
				RPM:               md.RPM,
				TPM:               md.TPM,
				// Each model deployment gets the endpoint's limit as its own budget.
				Concurrency:       ep.Concurrency,
				ContextWindow:     md.ContextWindow,
				MinTimeoutMs:      ep.MinTimeoutMs,
				TimeoutMsPerToken: ep.TimeoutMsPerToken,
			})
		}
	}
	return out, errs
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Hostname()
}
