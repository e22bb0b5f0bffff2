package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/logging"
	"github.com/muurk/castscan/internal/version"
)

const (
	// DefaultPort is the remote-control HTTP port
	DefaultPort = 8080

	// Endpoint is the JSON-RPC path on the player
	Endpoint = "/jsonrpc"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	maxResponseSize = 1 << 20
)

// Client talks JSON-RPC 2.0 over HTTP to one remote-control player
type Client struct {
	// BaseURL is the player's base URL (e.g., "http://192.168.1.20:8080")
	BaseURL string

	// Username and Password enable HTTP Basic Auth when Username is set
	Username string
	Password string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	UseExponentialBackoff bool

	nextID atomic.Int64
}

// NewClient creates a client for the player at address:port
func NewClient(address string, port int) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	return NewClientWithURL("http://" + net.JoinHostPort(address, strconv.Itoa(port)))
}

// NewClientForDevice creates a client for a discovered device. Only
// remote-control players accept JSON-RPC; other kinds get ErrUnsupportedDevice.
func NewClientForDevice(d *discovery.Device) (*Client, error) {
	if d == nil {
		return nil, fmt.Errorf("no device")
	}
	if d.Kind != discovery.KindRemoteControl {
		return nil, fmt.Errorf("%s (%s): %w", d.Name(), d.Kind, ErrUnsupportedDevice)
	}
	return NewClient(d.Address, d.Port), nil
}

// NewClientWithURL creates a client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:               baseURL,
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetAuth sets HTTP Basic Auth credentials
func (c *Client) SetAuth(username, password string) {
	c.Username = username
	c.Password = password
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Call invokes method with params and decodes the result into result
// (which may be nil). Retryable failures are retried with backoff.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(currentDelay):
			case <-ctx.Done():
				return NewNetworkError("request cancelled", ctx.Err())
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if c.MaxRetryDelay > 0 && currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}

			logging.Debug("Retrying JSON-RPC call",
				zap.String("method", method),
				zap.String("url", c.BaseURL),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
		}

		err := c.callAttempt(ctx, method, params, result)
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}

	return lastErr
}

// callAttempt performs a single JSON-RPC round trip
func (c *Client) callAttempt(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(Request{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return NewParseError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+Endpoint, bytes.NewReader(body))
	if err != nil {
		return NewNetworkError("failed to create POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError("POST request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return NewNetworkError("failed to read response body", err)
	}

	var envelope Response
	if err := json.Unmarshal(data, &envelope); err != nil {
		return NewParseError("failed to parse JSON-RPC response", err)
	}
	if envelope.Error != nil {
		return NewRemoteError(envelope.Error.Code, envelope.Error.Message)
	}

	if result == nil {
		return nil
	}
	if len(envelope.Result) == 0 {
		return NewParseError("response has no result", nil)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return NewParseError("failed to parse result", err)
	}
	return nil
}

// Ping sends JSONRPC.Ping and returns the result. Players answer "pong".
func (c *Client) Ping(ctx context.Context) (string, error) {
	var result string
	if err := c.Call(ctx, MethodPing, nil, &result); err != nil {
		return "", err
	}
	return result, nil
}

// PlayURL asks the player to open and play mediaURL
func (c *Client) PlayURL(ctx context.Context, mediaURL string) error {
	if mediaURL == "" {
		return fmt.Errorf("media URL is empty")
	}

	logging.Info("Opening media on player",
		zap.String("player", c.BaseURL),
		zap.String("url", mediaURL),
	)
	return c.Call(ctx, MethodPlayerOpen, openParams{Item: openItem{File: mediaURL}}, nil)
}

// GetActivePlayers lists the player's active players
func (c *Client) GetActivePlayers(ctx context.Context) ([]Player, error) {
	players := make([]Player, 0)
	if err := c.Call(ctx, MethodGetActivePlayers, nil, &players); err != nil {
		return nil, err
	}
	return players, nil
}

// Stop stops the first active player
func (c *Client) Stop(ctx context.Context) error {
	player, err := c.activePlayer(ctx)
	if err != nil {
		return err
	}
	return c.Call(ctx, MethodPlayerStop, playerParams{PlayerID: player.PlayerID}, nil)
}

// Pause toggles pause on the first active player and returns the new speed
// (0 when paused).
func (c *Client) Pause(ctx context.Context) (int, error) {
	player, err := c.activePlayer(ctx)
	if err != nil {
		return 0, err
	}

	var speed PlayerSpeed
	if err := c.Call(ctx, MethodPlayerPlayPause, playerParams{PlayerID: player.PlayerID}, &speed); err != nil {
		return 0, err
	}
	return speed.Speed, nil
}

func (c *Client) activePlayer(ctx context.Context) (Player, error) {
	players, err := c.GetActivePlayers(ctx)
	if err != nil {
		return Player{}, err
	}
	if len(players) == 0 {
		return Player{}, ErrNoActivePlayer
	}
	return players[0], nil
}
