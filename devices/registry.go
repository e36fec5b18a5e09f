package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mobile-next/mobilecv/config"
	"github.com/mobile-next/mobilecv/utils"
)

// DeviceRegistry keeps one connected AndroidDevice per serial and the cleanup
// hooks that must run when the process exits.
type DeviceRegistry struct {
	cfg  *config.Config
	open func(ctx context.Context, serial string, cfg *config.Config) (*AndroidDevice, error)

	mu      sync.Mutex
	devices map[string]*AndroidDevice
	hooks   []namedHook
}

type namedHook struct {
	name string
	fn   func() error
}

// NewDeviceRegistry creates a new device registry instance
func NewDeviceRegistry(cfg *config.Config) *DeviceRegistry {
	if cfg == nil {
		cfg = config.Default()
	}
	return &DeviceRegistry{
		cfg:     cfg,
		open:    NewAndroidDevice,
		devices: make(map[string]*AndroidDevice),
	}
}

func (r *DeviceRegistry) Config() *config.Config {
	return r.cfg
}

// Get returns the registered device for serial, connecting to it on first use.
func (r *DeviceRegistry) Get(ctx context.Context, serial string) (*AndroidDevice, error) {
	if serial == "" {
		return nil, fmt.Errorf("device ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if device, ok := r.devices[serial]; ok {
		return device, nil
	}

	device, err := r.open(ctx, serial, r.cfg)
	if err != nil {
		return nil, err
	}
	r.devices[serial] = device
	return device, nil
}

// Register adds a device to the registry for cleanup tracking
func (r *DeviceRegistry) Register(device *AndroidDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[device.ID()] = device
}

// OnShutdown adds a cleanup function that runs after the devices were
// cleaned up, in registration order.
func (r *DeviceRegistry) OnShutdown(name string, fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, namedHook{name: name, fn: fn})
	utils.Verbose("Registered shutdown hook: %s", name)
}

// Count returns the number of connected devices and pending hooks.
func (r *DeviceRegistry) Count() (devices, hooks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices), len(r.hooks)
}

// CleanupAll releases every device and runs the shutdown hooks. Failures are
// collected and the remaining cleanups still run.
func (r *DeviceRegistry) CleanupAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for serial, device := range r.devices {
		if err := device.Cleanup(); err != nil {
			utils.Verbose("Error cleaning up device %s: %v", serial, err)
			errs = append(errs, fmt.Errorf("%s: %w", serial, err))
		}
	}

	for _, hook := range r.hooks {
		utils.Verbose("Running shutdown hook: %s", hook.name)
		if err := hook.fn(); err != nil {
			utils.Verbose("Shutdown hook %s failed: %v", hook.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
		}
	}

	// clear the registry
	r.devices = make(map[string]*AndroidDevice)
	r.hooks = nil

	return errors.Join(errs...)
}
