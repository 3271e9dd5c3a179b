// Package platform talks to the external marketing platform's asset API.
// Stub mode short-circuits the network calls and returns deterministic asset
// IDs so deployments can be exercised without credentials.
package platform

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emailgen-labs/emailgen-api/pkg/config"
)

// Asset identifies a deployed email asset on the platform.
type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client pushes email assets to the marketing platform.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	stubMode   bool

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient constructs a platform client from configuration.
func NewClient(cfg config.DeploymentsConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.PlatformBaseURL, "/"),
		clientID:   cfg.PlatformClientID,
		secret:     cfg.PlatformSecret,
		stubMode:   cfg.StubMode,
	}
}

// CreateEmailAsset uploads HTML content as a named email asset and returns
// the platform's asset reference.
func (c *Client) CreateEmailAsset(ctx context.Context, name, subject, html string) (*Asset, error) {
	if c.stubMode {
		sum := sha256.Sum256([]byte(name + html))
		return &Asset{ID: "stub-" + hex.EncodeToString(sum[:8]), Name: name}, nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"name":    name,
		"subject": subject,
		"views":   map[string]interface{}{"html": map[string]string{"content": html}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal asset payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/asset/v1/content/assets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read asset response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("platform returned %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var asset Asset
	if err := json.Unmarshal(body, &asset); err != nil {
		return nil, fmt.Errorf("decode asset response: %w", err)
	}
	if asset.ID == "" {
		return nil, fmt.Errorf("platform response missing asset id")
	}
	return &asset, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.secret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
