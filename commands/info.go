package commands

import (
	"context"
	"fmt"

	"github.com/mobile-next/mobilecv/devices"
)

func InfoCommand(ctx context.Context, deviceID string) (*devices.FullDeviceInfo, error) {
	targetDevice, err := FindDeviceOrAutoSelect(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("error finding device: %w", err)
	}

	info, err := targetDevice.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting device info: %w", err)
	}

	return info, nil
}
