package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/types"
	"github.com/mobile-next/mobilecv/utils"
)

// ScreenshotRequest represents the parameters for taking a screenshot
type ScreenshotRequest struct {
	DeviceID   string      `json:"deviceId"`
	Display    int         `json:"display,omitempty"`
	Format     string      `json:"format,omitempty"`     // "png" or "jpeg"
	Quality    int         `json:"quality,omitempty"`    // 1-100, only used for JPEG
	OutputPath string      `json:"outputPath,omitempty"` // file path, "-" for stdout, or empty for default naming
	Region     *types.Rect `json:"region,omitempty"`
}

// ScreenshotResponse represents the response for a screenshot command
type ScreenshotResponse struct {
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data,omitempty"`     // base64 encoded image data
	FilePath  string    `json:"filePath,omitempty"` // path where file was saved
}

// ScreenshotCommand captures a display, or part of it, of the specified device
func ScreenshotCommand(ctx context.Context, req ScreenshotRequest) *CommandResponse {
	if err := normalizeImageFormat(&req.Format, &req.Quality); err != nil {
		return NewErrorResponse(err)
	}

	device, r, err := deviceRegion(ctx, req.DeviceID, req.Display, req.Region)
	if err != nil {
		return NewErrorResponse(err)
	}

	frozen, err := r.Freeze(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error taking screenshot: %w", err))
	}

	raster, err := frozen.Capture(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error taking screenshot: %w", err))
	}

	display, err := device.Display(req.Display)
	if err != nil {
		return NewErrorResponse(err)
	}

	var timestamp time.Time
	if last := display.LastCapture(); last != nil {
		timestamp = last.Timestamp
	}

	response, err := writeScreenshot(raster, timestamp, req, device.ID())
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(response)
}

func normalizeImageFormat(format *string, quality *int) error {
	if *format == "" {
		*format = "png"
	}

	*format = strings.ToLower(*format)
	if *format == "jpg" {
		*format = "jpeg"
	}
	if *format != "png" && *format != "jpeg" {
		return fmt.Errorf("invalid format '%s'. Supported formats are 'png' and 'jpeg'", *format)
	}

	if *format == "jpeg" && (*quality < 1 || *quality > 100) {
		*quality = 90
	}
	return nil
}

func writeScreenshot(raster *capture.Raster, timestamp time.Time, req ScreenshotRequest, deviceID string) (*ScreenshotResponse, error) {
	imageBytes, err := utils.EncodeImage(raster, req.Format, req.Quality)
	if err != nil {
		return nil, err
	}

	response := &ScreenshotResponse{
		Format:    req.Format,
		Width:     raster.Width,
		Height:    raster.Height,
		Timestamp: timestamp,
	}

	if req.OutputPath == "-" {
		response.Data = base64.StdEncoding.EncodeToString(imageBytes)
		return response, nil
	}

	var finalPath string
	if req.OutputPath != "" {
		finalPath, err = filepath.Abs(req.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("invalid output path: %w", err)
		}
	} else {
		safeDeviceID := strings.ReplaceAll(deviceID, ":", "_")
		extension := "png"
		if req.Format == "jpeg" {
			extension = "jpg"
		}
		fileName := fmt.Sprintf("screenshot-%s-%s.%s", safeDeviceID, time.Now().Format("20060102150405"), extension)
		finalPath, err = filepath.Abs("./" + fileName)
		if err != nil {
			return nil, fmt.Errorf("error creating default path: %w", err)
		}
	}

	if err := os.WriteFile(finalPath, imageBytes, 0o600); err != nil {
		return nil, fmt.Errorf("error writing file: %w", err)
	}

	response.FilePath = finalPath
	return response, nil
}
