package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mobile-next/mobilecv/commands"
	"github.com/mobile-next/mobilecv/types"
)

var (
	startedAt   = time.Now()
	connections atomic.Int64
)

// ScreenshotParams represents the parameters for the screenshot request
type ScreenshotParams struct {
	DeviceID string      `json:"deviceId"`
	Display  int         `json:"display,omitempty"`
	Format   string      `json:"format,omitempty"`  // "png" or "jpeg"
	Quality  int         `json:"quality,omitempty"` // 1-100, only used for JPEG
	Region   *types.Rect `json:"region,omitempty"`
}

type InfoParams struct {
	DeviceID string `json:"deviceId"`
}

// StatusResult is returned by server.status.
type StatusResult struct {
	Status          string  `json:"status"`
	PID             int     `json:"pid"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
	Devices         int     `json:"devices"`
	ShutdownHooks   int     `json:"shutdownHooks"`
	CachedTemplates int     `json:"cachedTemplates"`
	Connections     int64   `json:"connections"`
}

// decodeParams unmarshals required params, naming the expected fields on
// failure.
func decodeParams(params json.RawMessage, v interface{}, fields ...string) error {
	expected := strings.Join(fields, ", ")
	if len(params) == 0 {
		return fmt.Errorf("'params' is required with fields: %s", expected)
	}

	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid parameters: %v. Expected fields: %s", err, expected)
	}

	var rawParams map[string]interface{}
	if err := json.Unmarshal(params, &rawParams); err != nil {
		return fmt.Errorf("invalid parameters format")
	}

	for _, field := range fields {
		if field == "deviceId" {
			// empty selects the only connected device
			continue
		}
		if _, exists := rawParams[field]; !exists {
			return fmt.Errorf("'%s' is required", field)
		}
	}
	return nil
}

func responseData(response *commands.CommandResponse) (interface{}, error) {
	if response.Status == "error" {
		return nil, fmt.Errorf("%s", response.Error)
	}
	return response.Data, nil
}

func handleDevicesList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return responseData(commands.DevicesCommand(ctx))
}

func handleDeviceInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var infoParams InfoParams
	if err := decodeParams(params, &infoParams, "deviceId"); err != nil {
		return nil, err
	}

	info, err := commands.InfoCommand(ctx, infoParams.DeviceID)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func handleScreenshot(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var screenshotParams ScreenshotParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &screenshotParams); err != nil {
			return nil, fmt.Errorf("invalid parameters: %v", err)
		}
	}

	req := commands.ScreenshotRequest{
		DeviceID:   screenshotParams.DeviceID,
		Display:    screenshotParams.Display,
		Format:     screenshotParams.Format,
		Quality:    screenshotParams.Quality,
		Region:     screenshotParams.Region,
		OutputPath: "-", // Always return base64 data for server
	}

	response := commands.ScreenshotCommand(ctx, req)
	if response.Status == "error" {
		return nil, fmt.Errorf("%s", response.Error)
	}

	// Convert the response data to the expected server format
	if screenshotResp, ok := response.Data.(*commands.ScreenshotResponse); ok {
		return map[string]interface{}{
			"format":    screenshotResp.Format,
			"width":     screenshotResp.Width,
			"height":    screenshotResp.Height,
			"timestamp": screenshotResp.Timestamp,
			"data":      fmt.Sprintf("data:image/%s;base64,%s", screenshotResp.Format, screenshotResp.Data),
		}, nil
	}

	return nil, fmt.Errorf("unexpected response format")
}

func handleFind(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req commands.FindRequest
	if err := decodeParams(params, &req, "deviceId", "template"); err != nil {
		return nil, err
	}
	return responseData(commands.FindCommand(ctx, req))
}

func handleWait(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req commands.WaitRequest
	if err := decodeParams(params, &req, "deviceId", "template", "timeoutMs"); err != nil {
		return nil, err
	}
	return responseData(commands.WaitCommand(ctx, req))
}

func handleIoTap(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req commands.TapRequest
	if err := decodeParams(params, &req, "deviceId", "x", "y"); err != nil {
		return nil, err
	}
	return okOrError(commands.TapCommand(ctx, req))
}

func handleIoSwipe(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req commands.SwipeRequest
	if err := decodeParams(params, &req, "deviceId", "x1", "y1", "x2", "y2"); err != nil {
		return nil, err
	}
	return okOrError(commands.SwipeCommand(ctx, req))
}

func handleIoPinch(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req commands.PinchRequest
	if err := decodeParams(params, &req, "deviceId", "x", "y", "r1", "r2"); err != nil {
		return nil, err
	}
	return okOrError(commands.PinchCommand(ctx, req))
}

func handleIoText(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req commands.TextRequest
	if err := decodeParams(params, &req, "deviceId", "text"); err != nil {
		return nil, err
	}
	return okOrError(commands.TextCommand(ctx, req))
}

func handleIoKey(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req commands.KeyRequest
	if err := decodeParams(params, &req, "deviceId", "key"); err != nil {
		return nil, err
	}
	return okOrError(commands.KeyCommand(ctx, req))
}

func handleIoReset(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var infoParams InfoParams
	if err := decodeParams(params, &infoParams, "deviceId"); err != nil {
		return nil, err
	}
	return okOrError(commands.ResetInputCommand(ctx, infoParams.DeviceID))
}

func okOrError(response *commands.CommandResponse) (interface{}, error) {
	if _, err := responseData(response); err != nil {
		return nil, err
	}
	return okResponse, nil
}

func handleServerStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	deviceCount, hookCount := commands.GetRegistry().Count()

	status := StatusResult{
		Status:        "ok",
		PID:           os.Getpid(),
		UptimeSeconds: time.Since(startedAt).Seconds(),
		Devices:       deviceCount,
		ShutdownHooks: hookCount,
		Connections:   connections.Load(),
	}

	if m, err := commands.SharedMatcher(); err == nil {
		status.CachedTemplates = m.CachedTemplates()
	}

	return status, nil
}

func handleServerShutdown(ctx context.Context, params json.RawMessage) (interface{}, error) {
	select {
	case shutdownRequests <- struct{}{}:
	default:
		// already pending
	}
	return okResponse, nil
}
