// Package wordpress implements the publisher and asset-store capabilities
// against the WordPress REST API using application-password authentication.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/article-engine/internal/types"
)

const apiBase = "/wp-json/wp/v2"

// Decrypter opens vault-sealed secrets. Satisfied by *vault.Vault.
type Decrypter interface {
	Open(sealed string) (string, error)
}

// Client is a thin WordPress REST API client shared by the publisher and the
// asset store.
type Client struct {
	httpClient *http.Client
	vault      Decrypter
}

// NewClient creates a Client that decrypts site credentials with the given
// vault.
func NewClient(vault Decrypter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		vault:      vault,
	}
}

// credentials resolves the basic-auth pair for a configuration, decrypting
// the application password at call time only.
func (c *Client) credentials(cfg *types.Configuration) (string, string, error) {
	if cfg.SiteURL == "" || cfg.SiteUsername == "" || cfg.SitePasswordEncrypted == "" {
		return "", "", &types.ErrCredential{Message: "configuration has no publishing credentials"}
	}
	password, err := c.vault.Open(cfg.SitePasswordEncrypted)
	if err != nil {
		return "", "", err
	}
	return cfg.SiteUsername, password, nil
}

// doJSON sends a JSON request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, cfg *types.Configuration, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(cfg.SiteURL, "/")+apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	username, password, err := c.credentials(cfg)
	if err != nil {
		return err
	}
	req.SetBasicAuth(username, password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.ErrPublish{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &types.ErrPublish{Message: "failed to decode response", Cause: err}
		}
	}
	return nil
}

// checkStatus maps non-2xx responses onto the engine's error taxonomy.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &types.ErrRateLimited{API: "wordpress"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &types.ErrPublish{
			Message:    fmt.Sprintf("authentication rejected: %s", strings.TrimSpace(string(detail))),
			StatusCode: resp.StatusCode,
		}
	default:
		return &types.ErrPublish{
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
			StatusCode: resp.StatusCode,
		}
	}
}
