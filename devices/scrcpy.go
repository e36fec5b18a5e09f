package devices

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/mobile-next/mobilecv/config"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
)

const (
	scrcpyRemotePath  = "/data/local/tmp/scrcpy-server.jar"
	scrcpySocket      = "localabstract:scrcpy"
	scrcpyServerClass = "com.genymobile.scrcpy.Server"

	scrcpyConnectAttempts = 10
	scrcpyConnectDelay    = 200 * time.Millisecond
	scrcpyGreetingTimeout = 2 * time.Second
	scrcpyRestartDelay    = 200 * time.Millisecond
)

// Scrcpy manages the mirroring companion running on a device. One server
// process serves a video socket and a control socket; restarting it replaces
// both.
type Scrcpy struct {
	adb  *Adb
	cfg  config.ScrcpyConfig
	dial func(ctx context.Context, address string) (net.Conn, error)
	log  *logrus.Entry

	mu         sync.Mutex
	session    *scrcpySession
	generation int
}

type scrcpySession struct {
	id      string
	port    int
	cmd     *exec.Cmd
	dummy   []byte
	video   net.Conn
	control net.Conn

	videoClaimed bool
}

func NewScrcpy(adb *Adb, cfg config.ScrcpyConfig) *Scrcpy {
	dialer := &net.Dialer{}
	return &Scrcpy{
		adb: adb,
		cfg: cfg,
		dial: func(ctx context.Context, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", address)
		},
		log: utils.WithFields(logrus.Fields{"device": adb.Serial(), "component": "scrcpy"}),
	}
}

// serverCommand is the shell line launching the companion in forward tunnel
// mode.
func serverCommand(cfg config.ScrcpyConfig) string {
	return shellquote.Join(
		"CLASSPATH="+scrcpyRemotePath,
		"app_process",
		"/",
		scrcpyServerClass,
		cfg.Version,
		"log_level=info",
		"tunnel_forward=true",
		"control=true",
		"bit_rate="+strconv.Itoa(cfg.Bitrate),
		"max_fps="+strconv.Itoa(cfg.MaxFPS),
	)
}

// Start launches the companion if it is not running.
func (s *Scrcpy) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return nil
	}
	return s.start(ctx)
}

// Running reports whether a companion session is up.
func (s *Scrcpy) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// DialVideo hands out the video socket of the current session. Once it was
// handed out, the next call restarts the companion. The greeting byte
// consumed while connecting is replayed to the caller.
func (s *Scrcpy) DialVideo(ctx context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.videoClaimed {
		if err := s.restart(ctx); err != nil {
			return nil, err
		}
	}

	session := s.session
	session.videoClaimed = true
	return &replayReader{
		Reader: io.MultiReader(bytes.NewReader(session.dummy), session.video),
		Closer: session.video,
	}, nil
}

// Control returns the control socket and the session generation it belongs to.
func (s *Scrcpy) Control(ctx context.Context) (io.ReadWriter, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		if err := s.start(ctx); err != nil {
			return nil, 0, err
		}
	}
	return s.session.control, s.generation, nil
}

// Reconnect restarts the companion unless it was already restarted since
// generation, in which case the newer control socket is returned.
func (s *Scrcpy) Reconnect(ctx context.Context, generation int) (io.ReadWriter, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.generation == generation {
		if err := s.restart(ctx); err != nil {
			return nil, 0, err
		}
	}
	return s.session.control, s.generation, nil
}

func (s *Scrcpy) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return nil
}

func (s *Scrcpy) restart(ctx context.Context) error {
	if s.session != nil {
		s.log.Info("restarting scrcpy server")
		s.stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(scrcpyRestartDelay):
		}
	}
	return s.start(ctx)
}

func (s *Scrcpy) start(ctx context.Context) error {
	if err := s.adb.Push(ctx, s.cfg.ServerPath, scrcpyRemotePath); err != nil {
		return fmt.Errorf("failed to push scrcpy server: %w", err)
	}

	port, err := utils.FindAvailablePort("127.0.0.1", s.cfg.PortStart, s.cfg.PortEnd)
	if err != nil {
		return fmt.Errorf("failed to find a port for scrcpy: %w", err)
	}

	if err := s.adb.Forward(ctx, port, scrcpySocket); err != nil {
		return fmt.Errorf("failed to forward scrcpy port: %w", err)
	}

	cmd := s.adb.command(context.Background(), "shell", serverCommand(s.cfg))
	utils.ConfigureDetachedProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		_ = s.adb.RemoveForward(port)
		return fmt.Errorf("failed to start scrcpy server: %w", err)
	}
	go func() {
		_ = cmd.Wait()
	}()

	session := &scrcpySession{id: uuid.New().String(), port: port, cmd: cmd}
	log := s.log.WithFields(logrus.Fields{"session": session.id, "port": port})

	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	err = retry.Do(
		func() error {
			return s.connect(ctx, address, session)
		},
		retry.Attempts(scrcpyConnectAttempts),
		retry.Delay(scrcpyConnectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithField("attempt", n+1).Debugf("scrcpy server not ready: %v", err)
		}),
	)
	if err != nil {
		s.teardown(session)
		return fmt.Errorf("failed to connect to scrcpy server: %w", err)
	}

	s.session = session
	s.generation++
	log.Info("scrcpy server connected")
	return nil
}

// connect opens the video then the control socket. adb accepts forwarded
// connections before the server listens, so the video socket only counts once
// the greeting byte arrives.
func (s *Scrcpy) connect(ctx context.Context, address string, session *scrcpySession) error {
	video, err := s.dial(ctx, address)
	if err != nil {
		return err
	}

	_ = video.SetReadDeadline(time.Now().Add(scrcpyGreetingTimeout))
	dummy := make([]byte, 1)
	if _, err := io.ReadFull(video, dummy); err != nil {
		_ = video.Close()
		return fmt.Errorf("failed to read greeting: %w", err)
	}
	_ = video.SetReadDeadline(time.Time{})

	control, err := s.dial(ctx, address)
	if err != nil {
		_ = video.Close()
		return err
	}

	session.dummy = dummy
	session.video = video
	session.control = control
	return nil
}

func (s *Scrcpy) stop() {
	if s.session == nil {
		return
	}
	s.teardown(s.session)
	s.session = nil
}

func (s *Scrcpy) teardown(session *scrcpySession) {
	if session.control != nil {
		_ = session.control.Close()
	}
	if session.video != nil {
		_ = session.video.Close()
	}
	if err := utils.KillProcessGroup(session.cmd); err != nil {
		s.log.Debugf("failed to kill scrcpy server: %v", err)
	}
	if err := s.adb.RemoveForward(session.port); err != nil {
		s.log.Debugf("failed to remove forward: %v", err)
	}
}

type replayReader struct {
	io.Reader
	io.Closer
}
