package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"airsight/internal/config"
	"airsight/internal/types"
)

// managementAPIBase is the Azure management-plane root from which the
// workspace endpoint URL is derived. Overridable in tests via
// AzureConfig.EndpointURL.
const managementAPIBase = "https://management.azure.com"

// modelNames maps model kinds to their deployed endpoint names in the
// workspace.
var modelNames = map[types.ModelKind]string{
	types.ModelAQIForecast:  "aqi-forecast-model",
	types.ModelHealthImpact: "health-impact-model",
}

// defaultInvokeTimeout bounds a single model invocation when the config
// does not specify one.
const defaultInvokeTimeout = 30 * time.Second

// AzureMLClient invokes hosted model endpoints in an Azure ML workspace.
// Each invocation is a single bounded-timeout scoring call; failures of any
// kind resolve to a remote_* AppError that the orchestrator treats as a
// signal to fall back to the local simulator.
type AzureMLClient struct {
	base          *BaseClient
	tokens        TokenSource
	endpointURL   string
	invokeTimeout time.Duration
	logger        *slog.Logger
}

// NewAzureMLClient creates an AzureMLClient backed by the given token
// source. The endpoint URL derives from the subscription, resource group
// and workspace identifiers unless overridden.
func NewAzureMLClient(httpClient *http.Client, tokens TokenSource, cfg config.AzureConfig, logger *slog.Logger) *AzureMLClient {
	if logger == nil {
		logger = slog.Default()
	}

	endpointURL := cfg.EndpointURL
	if endpointURL == "" {
		endpointURL = fmt.Sprintf(
			"%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.MachineLearningServices/workspaces/%s",
			managementAPIBase, cfg.SubscriptionID, cfg.ResourceGroup, cfg.Workspace,
		)
	}

	invokeTimeout := cfg.InvokeTimeout
	if invokeTimeout <= 0 {
		invokeTimeout = defaultInvokeTimeout
	}

	return &AzureMLClient{
		base:          NewBaseClient(httpClient, "azure-ml"),
		tokens:        tokens,
		endpointURL:   strings.TrimSuffix(endpointURL, "/"),
		invokeTimeout: invokeTimeout,
		logger:        logger,
	}
}

// Models returns the deployed model name per model kind, for status
// introspection.
func (c *AzureMLClient) Models() map[types.ModelKind]string {
	out := make(map[types.ModelKind]string, len(modelNames))
	for k, v := range modelNames {
		out[k] = v
	}
	return out
}

// Invoke scores the given model with payload and decodes the response body
// into out. The call is bounded by the configured invoke timeout and is
// never retried.
//
// Failure classes, all resolving to an error the caller falls back on:
//   - no token available           -> remote_unavailable (no log noise; this
//     is the expected state when credentials are not configured)
//   - endpoint not found (404)     -> remote_not_deployed, logged at info:
//     a model that has not been deployed yet is an expected transitional
//     state, not an incident
//   - timeout / network / non-2xx  -> remote_failed, logged at error
func (c *AzureMLClient) Invoke(ctx context.Context, model types.ModelKind, payload any, out any) error {
	token, ok := c.tokens.Token(ctx)
	if !ok {
		return types.NewAppError(
			types.ErrCodeRemoteUnavailable,
			"remote model credentials not configured",
			nil,
		)
	}

	name, ok := modelNames[model]
	if !ok {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unknown model kind %q", model),
			nil,
		)
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize model payload",
			err,
		)
	}

	ctx, cancel := context.WithTimeout(ctx, c.invokeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/onlineEndpoints/%s/score", c.endpointURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create model invocation request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.base.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "model invocation failed",
			"model", name,
			"error", err,
		)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.InfoContext(ctx, "model not deployed; using local forecast path",
			"model", name,
		)
		return types.NewAppError(
			types.ErrCodeRemoteNotDeployed,
			fmt.Sprintf("model %q is not deployed", name),
			nil,
		)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		// Token rejected mid-lifetime; drop it so the next call re-exchanges.
		if invalidator, ok := c.tokens.(interface{ Invalidate() }); ok {
			invalidator.Invalidate()
		}
		c.logger.WarnContext(ctx, "model endpoint rejected credentials",
			"model", name,
			"status", resp.StatusCode,
		)
		return types.NewAppError(
			types.ErrCodeRemoteAuthFailed,
			fmt.Sprintf("model endpoint rejected credentials (%d)", resp.StatusCode),
			nil,
		)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.ErrorContext(ctx, "model invocation returned unexpected status",
			"model", name,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return types.NewAppError(
			types.ErrCodeRemoteFailed,
			fmt.Sprintf("model invocation returned %d", resp.StatusCode),
			nil,
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode model response",
			"model", name,
			"error", err,
		)
		return types.NewAppError(
			types.ErrCodeRemoteFailed,
			"failed to decode model response",
			err,
		)
	}

	return nil
}

// Compile-time interface compliance check.
var _ Predictor = (*AzureMLClient)(nil)
