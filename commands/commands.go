package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mobile-next/mobilecv/config"
	"github.com/mobile-next/mobilecv/devices"
	"github.com/mobile-next/mobilecv/matcher"
	"github.com/mobile-next/mobilecv/region"
	"github.com/mobile-next/mobilecv/types"
)

// CommandResponse represents a standardized response format for all commands
type CommandResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *CommandResponse {
	return &CommandResponse{
		Status: "ok",
		Data:   data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *CommandResponse {
	return &CommandResponse{
		Status: "error",
		Error:  err.Error(),
	}
}

var (
	mu             sync.Mutex
	deviceRegistry *devices.DeviceRegistry
	sharedMatcher  *matcher.Matcher
)

// SetRegistry sets the registry devices are opened through. It carries the
// configuration every command uses. Call it once at startup.
func SetRegistry(registry *devices.DeviceRegistry) {
	mu.Lock()
	defer mu.Unlock()
	deviceRegistry = registry
	sharedMatcher = nil
}

// GetRegistry returns the current device registry, creating one with the
// default configuration if SetRegistry was never called.
func GetRegistry() *devices.DeviceRegistry {
	mu.Lock()
	defer mu.Unlock()
	if deviceRegistry == nil {
		deviceRegistry = devices.NewDeviceRegistry(config.Default())
	}
	return deviceRegistry
}

// Config returns the configuration of the current registry.
func Config() *config.Config {
	return GetRegistry().Config()
}

// SharedMatcher returns the matcher used by every command, so prepared
// templates stay cached across server requests.
func SharedMatcher() (*matcher.Matcher, error) {
	cfg := Config().Matcher

	mu.Lock()
	defer mu.Unlock()

	if sharedMatcher != nil {
		return sharedMatcher, nil
	}

	m, err := matcher.New(
		matcher.WithWorkingWidth(cfg.WorkingWidth),
		matcher.WithDefaultThreshold(cfg.DefaultThreshold),
		matcher.WithRefineMargin(cfg.RefineMargin),
		matcher.WithCacheSize(cfg.CacheSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}
	sharedMatcher = m
	return m, nil
}

// FindDevice connects to the device with the given serial, reusing a
// previous connection when possible
func FindDevice(ctx context.Context, deviceID string) (*devices.AndroidDevice, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}
	return GetRegistry().Get(ctx, deviceID)
}

// FindDeviceOrAutoSelect finds a device by ID, or auto-selects if deviceID is empty
func FindDeviceOrAutoSelect(ctx context.Context, deviceID string) (*devices.AndroidDevice, error) {
	if deviceID != "" {
		return FindDevice(ctx, deviceID)
	}

	serials, err := devices.ListSerials(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting devices: %w", err)
	}

	if len(serials) == 0 {
		return nil, fmt.Errorf("no online devices found")
	}

	if len(serials) > 1 {
		return nil, fmt.Errorf("multiple devices found (%d), please specify --device with one of: [%s]", len(serials), strings.Join(serials, ", "))
	}

	return FindDevice(ctx, serials[0])
}

// deviceRegion resolves the region a command works on: a display of the
// device, optionally narrowed to rect.
func deviceRegion(ctx context.Context, deviceID string, display int, rect *types.Rect) (*devices.AndroidDevice, *region.Region, error) {
	device, err := FindDeviceOrAutoSelect(ctx, deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("error finding device: %w", err)
	}

	m, err := SharedMatcher()
	if err != nil {
		return nil, nil, err
	}

	r, err := device.Region(display, m)
	if err != nil {
		return nil, nil, err
	}

	if rect != nil {
		r, err = r.WithRect(*rect)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid region %s: %w", rect, err)
		}
	}

	return device, r, nil
}
