package cli

import (
	"github.com/mobile-next/mobilecv/commands"
	"github.com/spf13/cobra"
)

func templateRef(arg string) commands.TemplateRef {
	return commands.TemplateRef{
		Template:    arg,
		TemplateSet: templateSet,
		Threshold:   threshold,
	}
}

var findCmd = &cobra.Command{
	Use:   "find <template.png>",
	Short: "Find a template image on the device screen",
	Long:  `Searches the display for a template image and prints every match above the threshold, best first. With --template-set the argument is a template id from that YAML file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rect, err := parseRegion(region)
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.FindRequest{
			DeviceID:    deviceId,
			Display:     display,
			TemplateRef: templateRef(args[0]),
			Count:       findCount,
			Region:      rect,
		}
		return printResponse(commands.FindCommand(cmd.Context(), req))
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait <template.png>",
	Short: "Wait for a template image to appear or vanish",
	Long:  `Polls the display until the template appears, or with --vanish until it is gone. --timeout -1 waits until interrupted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rect, err := parseRegion(region)
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.WaitRequest{
			DeviceID:    deviceId,
			Display:     display,
			TemplateRef: templateRef(args[0]),
			Region:      rect,
			Vanish:      waitVanish,
			TimeoutMs:   waitTimeout,
		}
		return printResponse(commands.WaitCommand(cmd.Context(), req))
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(waitCmd)

	for _, cmd := range []*cobra.Command{findCmd, waitCmd} {
		cmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to search")
		cmd.Flags().IntVar(&display, "display", 0, "display index")
		cmd.Flags().StringVar(&region, "region", "", "restrict the search to x,y,w,h")
		cmd.Flags().StringVar(&templateSet, "template-set", "", "YAML file that defines templates by id")
		cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum match score (default from config)")
	}

	findCmd.Flags().IntVar(&findCount, "count", 0, "maximum number of matches, 0 for all")
	waitCmd.Flags().BoolVar(&waitVanish, "vanish", false, "wait for the template to disappear instead")
	waitCmd.Flags().IntVar(&waitTimeout, "timeout", 10000, "timeout in milliseconds, -1 for none")
}
