package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mobile-next/mobilecv/server"
)

const defaultCallTimeout = 5 * time.Second

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int64       `json:"id"`
}

type jsonRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// RPCError is an error reply from the server.
type RPCError struct {
	Code    int
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s: %s", e.Code, e.Message, e.Data)
}

func newRPCError(e *jsonRPCError) *RPCError {
	rpcErr := &RPCError{Code: e.Code, Message: e.Message}
	if len(e.Data) > 0 && string(e.Data) != "null" {
		var text string
		if err := json.Unmarshal(e.Data, &text); err == nil {
			rpcErr.Data = text
		} else {
			rpcErr.Data = string(e.Data)
		}
	}
	return rpcErr
}

// Call sends one request and decodes the result into result, which may be
// nil. Without a deadline on ctx the call gives up after five seconds.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()
	}

	if err := c.connect(ctx); err != nil {
		return err
	}

	id := c.requestID.Add(1)
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}

	ch := make(chan jsonRPCResponse, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("WebSocket connection closed")
	}
	c.pending[id] = ch
	err := c.conn.WriteJSON(req)
	c.mu.Unlock()

	if err != nil {
		c.forget(id)
		return fmt.Errorf("failed to send request to %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("WebSocket connection closed while waiting for %s", method)
		}
		if resp.Error != nil {
			return newRPCError(resp.Error)
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil

	case <-ctx.Done():
		c.forget(id)
		return fmt.Errorf("timeout waiting for response to %s: %w", method, ctx.Err())
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) Status(ctx context.Context) (*server.StatusResult, error) {
	var status server.StatusResult
	if err := c.Call(ctx, "server.status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Shutdown asks the server to stop; it replies before it goes away.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.Call(ctx, "server.shutdown", nil, nil)
}
