// Package client talks to a running mobilecv server over its WebSocket
// JSON-RPC endpoint.
package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mobile-next/mobilecv/utils"
)

type Client struct {
	httpURL    string
	wsURL      string
	httpClient *http.Client
	requestID  atomic.Int64

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[int64]chan jsonRPCResponse
	closeErr error
}

// NewClient accepts host:port, :port or a bare port, which means localhost.
func NewClient(addr string) *Client {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "ws://")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "" {
		addr = net.JoinHostPort("localhost", port)
	}

	return &Client{
		httpURL: "http://" + addr,
		wsURL:   "ws://" + addr,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		pending: make(map[int64]chan jsonRPCResponse),
	}
}

func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL+"/ws", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server at %s: %w", c.wsURL, err)
	}

	c.conn = conn
	c.closeErr = nil
	go c.readLoop(conn)

	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var resp jsonRPCResponse
		err := conn.ReadJSON(&resp)
		if err != nil {
			c.mu.Lock()
			c.closeErr = err
			if c.conn == conn {
				c.conn = nil
			}
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = make(map[int64]chan jsonRPCResponse)
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan jsonRPCResponse)
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// HealthCheck fetches the server banner.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for server at %s", c.httpURL)
		case <-ticker.C:
			if err := c.HealthCheck(ctx); err != nil {
				utils.Verbose("server not ready yet: %v", err)
				continue
			}
			return nil
		}
	}
}
