package devices

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// AdbBinary is the adb executable used for every device command.
var AdbBinary = "adb"

// Adb runs adb commands against a single device serial.
type Adb struct {
	serial string
}

func NewAdb(serial string) *Adb {
	return &Adb{serial: serial}
}

func (a *Adb) Serial() string {
	return a.serial
}

func (a *Adb) command(ctx context.Context, args ...string) *exec.Cmd {
	cmdArgs := append([]string{"-s", a.serial}, args...)
	return exec.CommandContext(ctx, AdbBinary, cmdArgs...)
}

// Run executes adb with args and returns the combined output.
func (a *Adb) Run(ctx context.Context, args ...string) ([]byte, error) {
	output, err := a.command(ctx, args...).CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("adb %s failed: %w\nOutput: %s", strings.Join(args, " "), err, string(output))
	}
	return output, nil
}

// Shell runs command through `adb shell` and returns its output.
func (a *Adb) Shell(ctx context.Context, command string) (string, error) {
	output, err := a.Run(ctx, "shell", command)
	return string(output), err
}

// ExecOut starts command through `adb exec-out` and streams its stdout. The
// process is killed when the returned reader is closed.
func (a *Adb) ExecOut(ctx context.Context, command string) (io.ReadCloser, error) {
	cmd := a.command(ctx, "exec-out", command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open exec-out pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start adb exec-out: %w", err)
	}

	return &processReader{ReadCloser: stdout, cmd: cmd}, nil
}

// Push copies a local file to the device.
func (a *Adb) Push(ctx context.Context, local, remote string) error {
	_, err := a.Run(ctx, "push", local, remote)
	return err
}

// Forward forwards a local tcp port to a device socket.
func (a *Adb) Forward(ctx context.Context, port int, remote string) error {
	_, err := a.Run(ctx, "forward", "tcp:"+strconv.Itoa(port), remote)
	return err
}

func (a *Adb) RemoveForward(port int) error {
	_, err := a.Run(context.Background(), "forward", "--remove", "tcp:"+strconv.Itoa(port))
	return err
}

// IsConnected reports whether the serial is still listed by `adb devices`.
func (a *Adb) IsConnected() bool {
	serials, err := ListSerials(context.Background())
	if err != nil {
		return false
	}
	for _, serial := range serials {
		if serial == a.serial {
			return true
		}
	}
	return false
}

// OpenShell starts an interactive `adb shell` that accepts one command per line.
func (a *Adb) OpenShell(ctx context.Context) (*ShellSession, error) {
	cmd := a.command(context.Background(), "shell")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open shell stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start adb shell: %w", err)
	}

	session := &ShellSession{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(session.done)
	}()

	return session, nil
}

// ShellSession is a long lived `adb shell` fed through stdin.
type ShellSession struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// WriteLine sends one command line to the shell.
func (s *ShellSession) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return fmt.Errorf("adb shell exited")
	default:
	}

	w := bufio.NewWriter(s.stdin)
	if _, err := w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write to adb shell: %w", err)
	}
	return w.Flush()
}

func (s *ShellSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	<-s.done
	return nil
}

type processReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *processReader) Close() error {
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	return nil
}

// parseAdbDevicesOutput returns the serials of devices in the "device" state.
func parseAdbDevicesOutput(output string) []string {
	var serials []string

	lines := strings.Split(output, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			serials = append(serials, parts[0])
		}
	}

	return serials
}

// ListSerials lists the serials of every online device.
func ListSerials(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, AdbBinary, "devices").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to run 'adb devices': %w", err)
	}
	return parseAdbDevicesOutput(string(output)), nil
}
