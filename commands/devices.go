package commands

import (
	"context"

	"github.com/mobile-next/mobilecv/devices"
)

// DevicesCommand lists all connected devices
func DevicesCommand(ctx context.Context) *CommandResponse {
	deviceInfoList, err := devices.GetDeviceInfoList(ctx)
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(map[string]interface{}{
		"devices": deviceInfoList,
	})
}
