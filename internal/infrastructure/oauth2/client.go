package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/entity"
)

const (
	maxBodyLogLength = 500 // Maximum characters kept from a provider error body

	operationExchangeCode  = "exchange_code"
	operationRefreshToken  = "refresh_token"
	operationFetchIdentity = "fetch_identity"
)

// APILogSaver interface for saving provider call audit entries
type APILogSaver interface {
	Save(ctx context.Context, log *entity.APILog) error
}

// Client performs the HTTP calls shared by every provider: form-encoded token
// requests and bearer-authenticated identity lookups.
type Client struct {
	httpClient  *http.Client
	apiLogSaver APILogSaver
	logger      *zap.Logger
}

func NewClient(cfg *config.Config, apiLogSaver APILogSaver, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.OAuth.HTTPTimeout,
		},
		apiLogSaver: apiLogSaver,
		logger:      logger,
	}
}

// tokenRequest describes one call to a token endpoint
type tokenRequest struct {
	provider     entity.Provider
	operation    string
	failure      error // ErrTokenExchangeFailed or ErrRefreshFailed
	tokenURL     string
	clientID     string
	clientSecret string
	clientAuth   ClientAuthMethod
	form         url.Values
}

func (c *Client) requestToken(ctx context.Context, tr tokenRequest) (*entity.TokenResult, error) {
	form := url.Values{}
	for k, v := range tr.form {
		form[k] = v
	}
	form.Set("client_id", tr.clientID)
	if tr.clientAuth == ClientAuthBody {
		form.Set("client_secret", tr.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tr.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if tr.clientAuth != ClientAuthBody {
		req.SetBasicAuth(tr.clientID, tr.clientSecret)
	}

	c.logger.Info(">>> [OAUTH2-TOKEN-REQ]",
		zap.String("provider", tr.provider.String()),
		zap.String("operation", tr.operation),
		zap.String("url", tr.tokenURL),
		zap.String("grant_type", form.Get("grant_type")),
	)

	status, body, err := c.do(req, tr.provider, tr.operation)
	if err != nil {
		return nil, c.transportError(err, tr.provider, tr.failure)
	}

	if status < 200 || status >= 300 {
		return nil, &entity.ProviderError{
			Kind:       tr.failure,
			Provider:   tr.provider,
			StatusCode: status,
			Body:       truncateString(string(body), maxBodyLogLength),
		}
	}

	var tokenResp entity.TokenResult
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return nil, &entity.ProviderError{
			Kind:       tr.failure,
			Provider:   tr.provider,
			StatusCode: status,
			Body:       truncateString(string(body), maxBodyLogLength),
		}
	}

	c.logger.Info(">>> [OAUTH2-TOKEN-RESPONSE]",
		zap.String("provider", tr.provider.String()),
		zap.String("operation", tr.operation),
		zap.Int("status", status),
		zap.Int64("expires_in", tokenResp.ExpiresIn),
		zap.Bool("has_refresh_token", tokenResp.RefreshToken != ""),
	)

	return &tokenResp, nil
}

// getJSON performs a bearer-authenticated GET and returns the raw body
func (c *Client) getJSON(ctx context.Context, provider entity.Provider, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, provider, operationFetchIdentity)
	if err != nil {
		return nil, c.transportError(err, provider, entity.ErrIdentityFetchFailed)
	}

	if status < 200 || status >= 300 {
		return nil, &entity.ProviderError{
			Kind:       entity.ErrIdentityFetchFailed,
			Provider:   provider,
			StatusCode: status,
			Body:       truncateString(string(body), maxBodyLogLength),
		}
	}

	return body, nil
}

func (c *Client) do(req *http.Request, provider entity.Provider, operation string) (int, []byte, error) {
	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.saveAPILog(provider, operation, req, 0, nil, time.Since(startTime))
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(startTime)
	if err != nil {
		c.saveAPILog(provider, operation, req, resp.StatusCode, nil, duration)
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.saveAPILog(provider, operation, req, resp.StatusCode, body, duration)

	return resp.StatusCode, body, nil
}

// transportError separates timeouts from other failures so callers can tell
// a slow provider from a rejecting one
func (c *Client) transportError(err error, provider entity.Provider, failure error) error {
	if isTimeout(err) {
		c.logger.Warn("Provider request timed out",
			zap.String("provider", provider.String()),
			zap.Duration("timeout", c.httpClient.Timeout),
		)
		return fmt.Errorf("%w: %s: %v", entity.ErrNetworkTimeout, provider, err)
	}

	return &entity.ProviderError{
		Kind:     failure,
		Provider: provider,
		Body:     truncateString(err.Error(), maxBodyLogLength),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// saveAPILog records the call asynchronously. Bodies are only kept for
// failed requests, since successful ones carry tokens.
func (c *Client) saveAPILog(provider entity.Provider, operation string, req *http.Request, statusCode int, body []byte, duration time.Duration) {
	if c.apiLogSaver == nil {
		return
	}

	respBody := ""
	if statusCode < 200 || statusCode >= 300 {
		respBody = truncateString(string(body), maxBodyLogLength)
	}

	apiLog := &entity.APILog{
		Provider:     provider,
		Operation:    operation,
		Endpoint:     endpointWithoutQuery(req.URL),
		Method:       req.Method,
		ResponseBody: respBody,
		StatusCode:   statusCode,
		Duration:     duration.Milliseconds(),
		CreatedAt:    time.Now(),
	}

	// Save asynchronously to not block the request
	go func() {
		if err := c.apiLogSaver.Save(context.Background(), apiLog); err != nil {
			c.logger.Warn("Failed to save API log to database",
				zap.String("endpoint", apiLog.Endpoint),
				zap.Error(err),
			)
		}
	}()
}

func endpointWithoutQuery(u *url.URL) string {
	stripped := *u
	stripped.RawQuery = ""
	stripped.User = nil
	return stripped.String()
}

// truncateString truncates a string if it exceeds maxLength
func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + fmt.Sprintf("... [truncated, total %d chars]", len(s))
}
