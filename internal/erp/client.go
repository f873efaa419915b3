// Package erp adapts the Sankhya gateway API to the repository interface
// the collection run consumes. All positional field decoding happens at
// this boundary, nothing above it sees f0-style keys.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
)

// tokenSlack renews the access token this long before it expires.
const tokenSlack = 30 * time.Second

// Client speaks OAuth2 client credentials against the Sankhya gateway.
// Every service call ensures a live token first.
type Client struct {
	http  *http.Client
	cfg   config.SankhyaConfig
	clk   clock.Clock
	log   *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.Config, clk clock.Clock, log *zap.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		cfg:  cfg.Sankhya,
		clk:  clk,
		log:  log.Named("sankhya"),
	}
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/authenticate", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("erp: build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Token", c.cfg.XToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("erp: authenticate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("erp: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("erp: authenticate: status %d: %s", resp.StatusCode, body)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("erp: decode auth response: %w", err)
	}

	c.accessToken = auth.AccessToken
	c.tokenExpiry = c.clk.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	c.log.Debug("authenticated", zap.Time("token_expiry", c.tokenExpiry))
	return nil
}

// ensureToken returns a bearer token, renewing when the cached one is
// missing or within tokenSlack of expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.clk.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.accessToken, nil
	}
	if err := c.authenticate(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

// CallService posts one gateway service invocation and decodes the JSON
// response into out.
func (c *Client) CallService(ctx context.Context, serviceName string, payload, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("erp: marshal %s request: %w", serviceName, err)
	}

	endpoint := fmt.Sprintf("%s/gateway/v1/mge/service.sbr?serviceName=%s&outputType=json",
		c.cfg.BaseURL, url.QueryEscape(serviceName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("erp: build %s request: %w", serviceName, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("erp: call %s: %w", serviceName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("erp: read %s response: %w", serviceName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("erp: call %s: status %d: %s", serviceName, resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("erp: decode %s response: %w", serviceName, err)
	}
	return nil
}
