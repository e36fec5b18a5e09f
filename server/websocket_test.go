package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, enableCORS bool) string {
	t.Helper()
	server := httptest.NewServer(NewWebSocketHandler(enableCORS))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func connectWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "should connect to WebSocket")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// roundTrip writes one raw text message and reads one response.
func roundTrip(t *testing.T, conn *websocket.Conn, message string) JSONRPCResponse {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(message)))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp JSONRPCResponse
	require.NoError(t, conn.ReadJSON(&resp), "should read response")
	return resp
}

func TestWebSocket_Status(t *testing.T) {
	conn := connectWebSocket(t, setupTestServer(t, false))

	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"server.status","id":1}`)

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, float64(1), resp.ID)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "ok", result["status"])
	assert.Contains(t, result, "uptimeSeconds")
	assert.Contains(t, result, "cachedTemplates")
}

func TestWebSocket_ErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantID  interface{}
		code    int
		title   string
		data    string
	}{
		{
			name:    "invalid json",
			message: `{"jsonrpc":"2.0",`,
			wantID:  nil,
			code:    ErrCodeParseError,
			title:   errTitleParseError,
			data:    errMsgParseError,
		},
		{
			name:    "wrong version",
			message: `{"jsonrpc":"1.0","method":"server.status","id":1}`,
			wantID:  float64(1),
			code:    ErrCodeInvalidRequest,
			title:   errTitleInvalidReq,
			data:    errMsgInvalidJSONRPC,
		},
		{
			name:    "missing id",
			message: `{"jsonrpc":"2.0","method":"server.status"}`,
			wantID:  nil,
			code:    ErrCodeInvalidRequest,
			title:   errTitleInvalidReq,
			data:    errMsgIDRequired,
		},
		{
			name:    "missing method",
			message: `{"jsonrpc":"2.0","id":"a"}`,
			wantID:  "a",
			code:    ErrCodeInvalidRequest,
			title:   errTitleInvalidReq,
			data:    errMsgMethodRequired,
		},
		{
			name:    "frames over rpc",
			message: `{"jsonrpc":"2.0","method":"frames","id":2}`,
			wantID:  float64(2),
			code:    ErrCodeMethodNotFound,
			title:   errTitleMethodNotSupp,
			data:    errMsgFrames,
		},
		{
			name:    "unknown method",
			message: `{"jsonrpc":"2.0","method":"device.reboot","id":3}`,
			wantID:  float64(3),
			code:    ErrCodeMethodNotFound,
			title:   errTitleMethodNotFound,
			data:    "device.reboot not found",
		},
		{
			name:    "handler error keeps id",
			message: `{"jsonrpc":"2.0","method":"io_tap","params":{"x":-5,"y":3},"id":"tap-1"}`,
			wantID:  "tap-1",
			code:    ErrCodeServerError,
			title:   errTitleServerError,
			data:    "x and y coordinates must be non-negative, got x=-5, y=3",
		},
		{
			name:    "missing params",
			message: `{"jsonrpc":"2.0","method":"io_key","id":4}`,
			wantID:  float64(4),
			code:    ErrCodeServerError,
			title:   errTitleServerError,
			data:    "'params' is required with fields: deviceId, key",
		},
	}

	conn := connectWebSocket(t, setupTestServer(t, false))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := roundTrip(t, conn, tt.message)

			assert.Equal(t, tt.wantID, resp.ID)
			assert.Nil(t, resp.Result)
			require.NotNil(t, resp.Error)

			errorMap := resp.Error.(map[string]interface{})
			assert.Equal(t, float64(tt.code), errorMap["code"])
			assert.Equal(t, tt.title, errorMap["message"])
			assert.Equal(t, tt.data, errorMap["data"])
		})
	}
}

func TestWebSocket_BinaryMessageRejected(t *testing.T) {
	conn := connectWebSocket(t, setupTestServer(t, false))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"jsonrpc":"2.0"}`)))

	var resp JSONRPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	errorMap := resp.Error.(map[string]interface{})
	assert.Equal(t, float64(ErrCodeInvalidRequest), errorMap["code"])
	assert.Equal(t, errMsgTextOnly, errorMap["data"])
}

func TestWebSocket_PipelinedRequests(t *testing.T) {
	conn := connectWebSocket(t, setupTestServer(t, false))

	const n = 20
	for i := 1; i <= n; i++ {
		require.NoError(t, conn.WriteJSON(JSONRPCRequest{JSONRPC: "2.0", Method: "server.status", ID: i}))
	}

	// requests run concurrently, so responses may arrive in any order
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var resp JSONRPCResponse
		require.NoError(t, conn.ReadJSON(&resp))
		require.Nil(t, resp.Error)
		seen[int(resp.ID.(float64))] = true
	}
	assert.Len(t, seen, n)
}

func TestWebSocket_PingPong(t *testing.T) {
	conn := connectWebSocket(t, setupTestServer(t, false))

	pongReceived := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		pongReceived <- struct{}{}
		return nil
	})

	require.NoError(t, conn.WriteMessage(websocket.PingMessage, nil))

	// reading processes the pong
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pongReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive pong response")
	}
}

func TestWebSocket_Origin(t *testing.T) {
	tests := []struct {
		name       string
		enableCORS bool
		origin     string
		wantErr    bool
	}{
		{"cors allows foreign origin", true, "http://different-origin.com", false},
		{"same origin only rejects foreign origin", false, "http://different-origin.com", true},
		{"no origin header", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wsURL := setupTestServer(t, tt.enableCORS)

			headers := http.Header{}
			if tt.origin != "" {
				headers.Set("Origin", tt.origin)
			}

			conn, _, err := websocket.DefaultDialer.Dial(wsURL, headers)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer conn.Close()

			resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"server.status","id":1}`)
			assert.Nil(t, resp.Error)
		})
	}
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		host     string
		expected bool
	}{
		{"no origin header", "", "localhost:8080", true},
		{"same origin", "http://localhost:8080", "localhost:8080", true},
		{"different port", "http://localhost:9090", "localhost:8080", false},
		{"different origin", "http://other.com", "localhost:8080", false},
		{"invalid origin url", "://invalid", "localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{Header: http.Header{}, Host: tt.host}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, isSameOrigin(req))
		})
	}
}

func TestValidateJSONRPCRequest_Valid(t *testing.T) {
	for _, id := range []interface{}{1, "abc", 0} {
		req := JSONRPCRequest{JSONRPC: "2.0", Method: "find", ID: id, Params: json.RawMessage(`{}`)}
		assert.Nil(t, validateJSONRPCRequest(req))
	}
}

func TestNewUpgrader(t *testing.T) {
	foreign := &http.Request{Header: http.Header{"Origin": []string{"http://evil.example"}}, Host: "localhost:12000"}

	assert.True(t, newUpgrader(true).CheckOrigin(foreign))
	assert.False(t, newUpgrader(false).CheckOrigin(foreign))
}

func TestWebSocket_ConnectionLifecycle(t *testing.T) {
	conn := connectWebSocket(t, setupTestServer(t, false))

	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"server.status","id":1}`)
	assert.Nil(t, resp.Error)

	require.NoError(t, conn.Close())
	assert.Error(t, conn.WriteJSON(JSONRPCRequest{JSONRPC: "2.0", Method: "server.status", ID: 2}))
}

func TestWebSocket_StatusCountsConnections(t *testing.T) {
	wsURL := setupTestServer(t, false)

	connectWebSocket(t, wsURL)
	second := connectWebSocket(t, wsURL)

	resp := roundTrip(t, second, `{"jsonrpc":"2.0","method":"server.status","id":1}`)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]interface{})
	assert.GreaterOrEqual(t, result["connections"], float64(2))
}
