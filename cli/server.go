package cli

import (
	"fmt"

	"github.com/mobile-next/mobilecv/client"
	"github.com/mobile-next/mobilecv/commands"
	"github.com/mobile-next/mobilecv/daemon"
	"github.com/mobile-next/mobilecv/server"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server management commands",
	Long:  `Commands for managing the mobilecv server.`,
}

// serverAddress prefers --listen over the configured address.
func serverAddress(cmd *cobra.Command) string {
	// GetString cannot fail for defined flags
	addr, _ := cmd.Flags().GetString("listen")
	if addr == "" {
		addr = commands.Config().Server.Listen
	}
	return addr
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mobilecv server",
	Long:  `Serves JSON-RPC on /rpc and /ws and JPEG frames on /frames.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr := serverAddress(cmd)

		// GetBool cannot fail for defined flags
		enableCORS, _ := cmd.Flags().GetBool("cors")
		isDaemon, _ := cmd.Flags().GetBool("daemon")

		if isDaemon && !daemon.IsChild() {
			_, err := daemon.Daemonize()
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			fmt.Printf("Server daemon spawned, attempting to listen on %s\n", listenAddr)
			return nil
		}

		return server.StartServer(cmd.Context(), listenAddr, enableCORS)
	},
}

var serverKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop a running mobilecv server",
	Long:  `Connects to the server and sends a shutdown command via JSON-RPC.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.KillServer(cmd.Context(), serverAddress(cmd)); err != nil {
			return err
		}

		fmt.Printf("Server shutdown command sent successfully\n")
		return nil
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running mobilecv server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(serverAddress(cmd))
		defer c.Close()

		status, err := c.Status(cmd.Context())
		if err != nil {
			return printResponse(commands.NewErrorResponse(fmt.Errorf("failed to query server: %w", err)))
		}
		return printResponse(commands.NewSuccessResponse(status))
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverKillCmd)
	serverCmd.AddCommand(serverStatusCmd)

	serverStartCmd.Flags().String("listen", "", "Address to listen on (e.g., 'localhost:12000' or '0.0.0.0:13000')")
	serverStartCmd.Flags().Bool("cors", false, "Enable CORS support")
	serverStartCmd.Flags().BoolP("daemon", "d", false, "Run server in daemon mode (background)")

	serverKillCmd.Flags().String("listen", "", "Address of the server to stop (default from config)")
	serverStatusCmd.Flags().String("listen", "", "Address of the server to query (default from config)")
}
