package cli

import (
	"fmt"

	"github.com/mobile-next/mobilecv/commands"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices",
	Long:  `Lists the Android devices adb reports as online.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.DevicesCommand(cmd.Context()))
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Get device info",
	Long:  `Prints the model, OS version and the size of every display of a device.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := commands.InfoCommand(cmd.Context(), deviceId)
		if err != nil {
			return printResponse(commands.NewErrorResponse(fmt.Errorf("failed to get device info: %w", err)))
		}
		return printResponse(commands.NewSuccessResponse(info))
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to get info from")
}
