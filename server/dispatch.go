package server

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandlerFunc is the signature for non-streaming JSON-RPC method handlers
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// longRunningMethods may outlive the HTTP write timeout.
var longRunningMethods = map[string]bool{
	"find":     true,
	"wait":     true,
	"io_swipe": true,
	"io_pinch": true,
	"io_text":  true,
}

// GetMethodRegistry returns a map of method names to handler functions
// This is used by both the HTTP and the WebSocket transport
func GetMethodRegistry() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"devices":         handleDevicesList,
		"device_info":     handleDeviceInfo,
		"screenshot":      handleScreenshot,
		"find":            handleFind,
		"wait":            handleWait,
		"io_tap":          handleIoTap,
		"io_swipe":        handleIoSwipe,
		"io_pinch":        handleIoPinch,
		"io_text":         handleIoText,
		"io_key":          handleIoKey,
		"io_reset":        handleIoReset,
		"server.status":   handleServerStatus,
		"server.shutdown": handleServerShutdown,
	}
}

// Execute dispatches a method call using the registry
func Execute(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	registry := GetMethodRegistry()

	handler, exists := registry[method]
	if !exists {
		return nil, fmt.Errorf("method not found: %s", method)
	}

	return handler(ctx, params)
}
