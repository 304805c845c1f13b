// Package pterodactyl implements the ControlPanel port against the
// Pterodactyl panel client API.
package pterodactyl

import (
	"bytes"
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

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ControlPanel = (*Client)(nil)

const (
	// DefaultTimeout bounds every control API call.
	DefaultTimeout = 15 * time.Second

	// maxErrorBody caps how much of an error response is kept for diagnostics.
	maxErrorBody = 4 << 10
)

// Client is a Pterodactyl client API wrapper authenticated with one
// operator's client key. It never retries.
type Client struct {
	http    *http.Client
	baseURL string
	secret  string
	timeout time.Duration
}

// NewClient creates a Client for the panel at panelURL using the given client
// key. GET requests go through an in-memory HTTP cache transport that only
// serves responses the panel marks as fresh and revalidates the rest.
func NewClient(panelURL, secret string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	return NewClientWithHTTPClient(&http.Client{Transport: cacheTransport, Timeout: DefaultTimeout}, panelURL, secret)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, panelURL, secret string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(panelURL, "/") + "/api/client",
		secret:  secret,
		timeout: DefaultTimeout,
	}
}

// WithTimeout overrides the per-call bound and returns c.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// NewFactory returns a driven.ControlPanelFactory building Clients for panelURL.
func NewFactory(panelURL string) driven.ControlPanelFactory {
	return func(secret string) driven.ControlPanel {
		return NewClient(panelURL, secret)
	}
}

// resourcesResponse is the shape of GET /servers/{id}/resources.
type resourcesResponse struct {
	Attributes struct {
		CurrentState string `json:"current_state"`
		Resources    struct {
			MemoryBytes *int64   `json:"memory_bytes"`
			CPUAbsolute *float64 `json:"cpu_absolute"`
			DiskBytes   *int64   `json:"disk_bytes"`
			Uptime      *int64   `json:"uptime"`
		} `json:"resources"`
	} `json:"attributes"`
}

// accountResponse is the shape of GET /account.
type accountResponse struct {
	Attributes struct {
		ID        int64  `json:"id"`
		Admin     bool   `json:"admin"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"attributes"`
}

// GetResources returns the server's lifecycle state and resource usage.
func (c *Client) GetResources(ctx context.Context, serverID string) (model.ServerResources, error) {
	var resp resourcesResponse
	if err := c.do(ctx, http.MethodGet, "/servers/"+url.PathEscape(serverID)+"/resources", nil, &resp); err != nil {
		return model.ServerResources{}, err
	}

	state := resp.Attributes.CurrentState
	if state == "" {
		state = "unknown"
	}
	r := resp.Attributes.Resources
	return model.ServerResources{
		State:        state,
		CPUAbsolute:  r.CPUAbsolute,
		MemoryBytes:  r.MemoryBytes,
		DiskBytes:    r.DiskBytes,
		UptimeMillis: r.Uptime,
	}, nil
}

// SendCommand sends a console command to the server.
func (c *Client) SendCommand(ctx context.Context, serverID, command string) error {
	body := map[string]string{"command": command}
	return c.do(ctx, http.MethodPost, "/servers/"+url.PathEscape(serverID)+"/command", body, nil)
}

// SetPower sends a power signal to the server.
func (c *Client) SetPower(ctx context.Context, serverID string, signal model.PowerSignal) error {
	if !signal.Valid() {
		return model.ValidationError("INVALID_POWER_SIGNAL", "unknown power signal %q", signal)
	}
	body := map[string]string{"signal": string(signal)}
	return c.do(ctx, http.MethodPost, "/servers/"+url.PathEscape(serverID)+"/power", body, nil)
}

// VerifyAccount returns the panel account that owns the client key.
func (c *Client) VerifyAccount(ctx context.Context) (model.Account, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, "/account", nil, &resp); err != nil {
		return model.Account{}, err
	}
	a := resp.Attributes
	return model.Account{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Admin:     a.Admin,
	}, nil
}

// do performs one bounded request. Non-2xx responses become Upstream errors
// carrying the status and body; deadline expiry becomes a Timeout error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return model.TimeoutError(fmt.Sprintf("control API %s %s timed out", method, path), err)
		}
		return model.UpstreamError(fmt.Sprintf("control API %s %s failed", method, path), 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return model.UpstreamError(
			fmt.Sprintf("control API %s %s returned %s", method, path, resp.Status),
			resp.StatusCode, string(data), nil,
		)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return model.TimeoutError(fmt.Sprintf("control API %s %s timed out", method, path), err)
		}
		return model.UpstreamError(fmt.Sprintf("control API %s %s: malformed response", method, path), resp.StatusCode, "", err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
