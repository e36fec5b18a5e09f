package cli

import (
	"github.com/mobile-next/mobilecv/commands"
	"github.com/spf13/cobra"
)

var ioCmd = &cobra.Command{
	Use:   "io",
	Short: "Input operations on devices",
	Long:  `Taps, swipes, pinches, key presses and text input on a device.`,
}

var ioTapCmd = &cobra.Command{
	Use:   "tap [x,y]",
	Short: "Tap on a device screen at the given coordinates",
	Long:  `Sends a tap to the device at x,y. Coordinates should be provided as a single string "x,y".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseInts(args[0], "x", "y")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.TapRequest{
			DeviceID: deviceId,
			X:        v[0],
			Y:        v[1],
			Slot:     gestureSlot,
		}
		return printResponse(commands.TapCommand(cmd.Context(), req))
	},
}

var ioSwipeCmd = &cobra.Command{
	Use:   "swipe [x1,y1,x2,y2]",
	Short: "Swipe on a device screen from one point to another",
	Long:  `Drags one finger from x1,y1 to x2,y2 with an eased motion. Coordinates should be provided as a single string "x1,y1,x2,y2".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseInts(args[0], "x1", "y1", "x2", "y2")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.SwipeRequest{
			DeviceID:   deviceId,
			X1:         v[0],
			Y1:         v[1],
			X2:         v[2],
			Y2:         v[3],
			Slot:       gestureSlot,
			DurationMs: gestureDurationMs,
		}
		return printResponse(commands.SwipeCommand(cmd.Context(), req))
	},
}

var ioPinchCmd = &cobra.Command{
	Use:   "pinch [x,y] [r1] [r2]",
	Short: "Pinch two fingers around a center point",
	Long:  `Moves two fingers on opposite sides of x,y from radius r1 to radius r2. r2 > r1 zooms in.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		center, err := parseInts(args[0], "x", "y")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}
		r1, err := parseInts(args[1], "r1")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}
		r2, err := parseInts(args[2], "r2")
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.PinchRequest{
			DeviceID:   deviceId,
			X:          center[0],
			Y:          center[1],
			R1:         r1[0],
			R2:         r2[0],
			Angle:      pinchAngle,
			DurationMs: gestureDurationMs,
		}
		return printResponse(commands.PinchCommand(cmd.Context(), req))
	},
}

var ioTextCmd = &cobra.Command{
	Use:   "text [text]",
	Short: "Type text on a device",
	Long:  `Types text key by key into the focused element. Characters without a key are skipped.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.TextRequest{
			DeviceID: deviceId,
			Text:     args[0],
		}
		return printResponse(commands.TextCommand(cmd.Context(), req))
	},
}

var ioKeyCmd = &cobra.Command{
	Use:   "key [KEY_NAME]",
	Short: "Press a key on a device",
	Long:  `Presses, holds or releases a named key (e.g. "HOME", "BACK", "ENTER", "A"). Key names are case-insensitive.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.KeyRequest{
			DeviceID: deviceId,
			Key:      args[0],
			Action:   keyAction,
		}
		return printResponse(commands.KeyCommand(cmd.Context(), req))
	},
}

var ioResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Release every held touch and key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.ResetInputCommand(cmd.Context(), deviceId))
	},
}

func init() {
	rootCmd.AddCommand(ioCmd)

	for _, cmd := range []*cobra.Command{ioTapCmd, ioSwipeCmd, ioPinchCmd, ioTextCmd, ioKeyCmd, ioResetCmd} {
		ioCmd.AddCommand(cmd)
		cmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to send input to")
	}

	ioTapCmd.Flags().IntVar(&gestureSlot, "slot", 0, "touch slot")
	ioSwipeCmd.Flags().IntVar(&gestureSlot, "slot", 0, "touch slot")
	ioSwipeCmd.Flags().IntVar(&gestureDurationMs, "duration", 0, "gesture duration in milliseconds (default 300)")
	ioPinchCmd.Flags().IntVar(&gestureDurationMs, "duration", 0, "gesture duration in milliseconds (default 300)")
	ioPinchCmd.Flags().Float64Var(&pinchAngle, "angle", 0, "angle of the finger axis in degrees")
	ioKeyCmd.Flags().StringVar(&keyAction, "action", "press", "press, down or up")
}
