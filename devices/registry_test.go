package devices

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mobile-next/mobilecv/config"
)

func fakeDevice(serial string) *AndroidDevice {
	return &AndroidDevice{adb: NewAdb(serial), cfg: config.Default()}
}

func TestDeviceRegistry_GetOpensOnce(t *testing.T) {
	registry := NewDeviceRegistry(nil)

	opened := 0
	registry.open = func(ctx context.Context, serial string, cfg *config.Config) (*AndroidDevice, error) {
		opened++
		return fakeDevice(serial), nil
	}

	first, err := registry.Get(context.Background(), "emulator-5554")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := registry.Get(context.Background(), "emulator-5554")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first != second {
		t.Error("Expected the cached device to be returned")
	}
	if opened != 1 {
		t.Errorf("Expected 1 open, got %d", opened)
	}

	if _, err := registry.Get(context.Background(), ""); err == nil {
		t.Error("Expected error for empty serial")
	}
}

func TestDeviceRegistry_GetOpenError(t *testing.T) {
	registry := NewDeviceRegistry(nil)
	registry.open = func(ctx context.Context, serial string, cfg *config.Config) (*AndroidDevice, error) {
		return nil, errors.New("offline")
	}

	if _, err := registry.Get(context.Background(), "abc"); err == nil {
		t.Error("Expected error from failed open")
	}
	if devices, _ := registry.Count(); devices != 0 {
		t.Errorf("Expected failed device not to be registered, got %d", devices)
	}
}

func TestDeviceRegistry_CleanupAll(t *testing.T) {
	registry := NewDeviceRegistry(nil)
	registry.Register(fakeDevice("one"))
	registry.Register(fakeDevice("two"))

	var order []string
	registry.OnShutdown("first", func() error {
		order = append(order, "first")
		return nil
	})
	registry.OnShutdown("failure", func() error {
		order = append(order, "failure")
		return errors.New("cleanup failed")
	})
	registry.OnShutdown("last", func() error {
		order = append(order, "last")
		return nil
	})

	err := registry.CleanupAll()
	if err == nil {
		t.Error("Expected error from failed hook")
	}

	if fmt.Sprint(order) != "[first failure last]" {
		t.Errorf("Expected hooks in registration order, got %v", order)
	}

	// everything is cleared even after an error
	devices, hooks := registry.Count()
	if devices != 0 || hooks != 0 {
		t.Errorf("Expected registry to be cleared, got %d devices and %d hooks", devices, hooks)
	}

	if err := registry.CleanupAll(); err != nil {
		t.Errorf("Empty cleanup should not error: %v", err)
	}
}

func TestDeviceRegistry_ConcurrentOnShutdown(t *testing.T) {
	registry := NewDeviceRegistry(nil)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			registry.OnShutdown(fmt.Sprintf("hook-%d", n), func() error { return nil })
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if _, hooks := registry.Count(); hooks != 10 {
		t.Errorf("Expected 10 hooks, got %d", hooks)
	}
}
