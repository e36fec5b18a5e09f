package devices

import (
	"context"
	"fmt"
	"strings"

	"github.com/mobile-next/mobilecv/utils"
)

// DeviceInfo represents the JSON-friendly device information
type DeviceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Type     string `json:"type"`
	// AVD and Version are only known for emulators.
	AVD      string `json:"avd,omitempty"`
	Version  string `json:"version,omitempty"`
}

type DisplayInfo struct {
	Index  int `json:"index"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type FullDeviceInfo struct {
	DeviceInfo
	Properties Properties    `json:"properties"`
	Displays   []DisplayInfo `json:"displays"`
	Rotation   int           `json:"rotation"`
}

// Info describes the device, its displays and its current rotation.
func (d *AndroidDevice) Info(ctx context.Context) (*FullDeviceInfo, error) {
	rotation, err := d.Orientation(ctx)
	if err != nil {
		utils.Verbose("failed to read orientation of %s: %v", d.ID(), err)
	}

	info := &FullDeviceInfo{
		DeviceInfo: DeviceInfo{
			ID:       d.ID(),
			Name:     d.Name(),
			Platform: d.Platform(),
			Type:     d.DeviceType(),
		},
		Properties: d.props,
		Rotation:   int(rotation),
	}

	for _, display := range d.displays {
		size := display.Size()
		info.Displays = append(info.Displays, DisplayInfo{Index: display.Index(), Width: size.Width, Height: size.Height})
	}

	return info, nil
}

func deviceType(serial string) string {
	if strings.HasPrefix(serial, "emulator-") {
		return "emulator"
	}
	return "real"
}

func getAndroidDeviceName(ctx context.Context, serial string) string {
	output, err := NewAdb(serial).Shell(ctx, "getprop ro.product.model")
	if err == nil && strings.TrimSpace(output) != "" {
		return strings.TrimSpace(output)
	}
	return serial
}

// GetDeviceInfoList returns a list of DeviceInfo for all connected devices
func GetDeviceInfoList(ctx context.Context) ([]DeviceInfo, error) {
	serials, err := ListSerials(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting devices: %w", err)
	}

	var avds map[string]AVDInfo

	deviceInfoList := make([]DeviceInfo, len(serials))
	for i, serial := range serials {
		info := DeviceInfo{
			ID:       serial,
			Name:     getAndroidDeviceName(ctx, serial),
			Platform: "android",
			Type:     deviceType(serial),
		}

		if info.Type == "emulator" {
			if avds == nil {
				avds, err = loadAVDs(defaultAVDDir())
				if err != nil {
					utils.Verbose("Failed to list AVDs: %v", err)
				}
			}
			if avd, ok := emulatorAVD(ctx, serial, avds); ok {
				info.AVD = avd.ID
				info.Version = avd.Version()
			}
		}

		deviceInfoList[i] = info
	}

	return deviceInfoList, nil
}
