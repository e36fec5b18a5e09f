package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/mobile-next/mobilecv/client"
	"github.com/sevlyar/go-daemon"
)

// DaemonEnvVar is the environment variable that marks a daemon child process
const DaemonEnvVar = "MOBILECV_DAEMON_CHILD"

// Daemonize detaches the process and returns the child process handle
// If the returned process is nil, this is the child process
// If the returned process is non-nil, this is the parent process
func Daemonize() (*os.Process, error) {
	// no PID file needed
	// we don't want log file, server handles its own logging
	ctx := &daemon.Context{
		PidFileName: "",
		PidFilePerm: 0,
		LogFileName: "",
		LogFilePerm: 0,
		WorkDir:     "/",
		Umask:       027,
		Args:        os.Args,
		Env:         append(os.Environ(), fmt.Sprintf("%s=1", DaemonEnvVar)),
	}

	child, err := ctx.Reborn()
	if err != nil {
		return nil, fmt.Errorf("failed to daemonize: %w", err)
	}

	return child, nil
}

// IsChild returns true if this is the daemon child process
func IsChild() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// KillServer asks the server at addr to shut down via server.shutdown.
func KillServer(ctx context.Context, addr string) error {
	c := client.NewClient(addr)
	defer c.Close()

	if err := c.Shutdown(ctx); err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("server is not running on %s", addr)
		}
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
