package devices

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/config"
	"github.com/mobile-next/mobilecv/control"
	"github.com/mobile-next/mobilecv/input"
	"github.com/mobile-next/mobilecv/matcher"
	"github.com/mobile-next/mobilecv/region"
	"github.com/mobile-next/mobilecv/types"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
)

const unknownProperty = "Unknown"

var (
	getpropRegex            = regexp.MustCompile(`^\[(.*?)]: \[(.*?)]$`)
	physicalSizeRegex       = regexp.MustCompile(`Physical size: (\d+)x(\d+)`)
	overrideSizeRegex       = regexp.MustCompile(`Override size: (\d+)x(\d+)`)
	displayDeviceRegex      = regexp.MustCompile(`DisplayDeviceInfo.*uniqueId=".*:(\d+)", (\d+) x (\d+)`)
	surfaceOrientationRegex = regexp.MustCompile(`SurfaceOrientation: (\d)`)
	windowSizeRegex         = regexp.MustCompile(`init=(\d+)x(\d+) \d+dpi cur=(\d+)x(\d+)`)
)

// Properties are the basic facts read from an Android device at connect time.
type Properties struct {
	AndroidVersion string `json:"androidVersion"`
	SDK            string `json:"sdk"`
	Brand          string `json:"brand"`
	Manufacturer   string `json:"manufacturer"`
	Model          string `json:"model"`
	Name           string `json:"name"`
	DisplayWidth   int    `json:"displayWidth"`
	DisplayHeight  int    `json:"displayHeight"`
}

type displayInfo struct {
	Index  int
	Width  int
	Height int
}

// AndroidDevice is an adb reachable phone or emulator with its displays and
// input channel.
type AndroidDevice struct {
	adb   *Adb
	cfg   *config.Config
	props Properties
	log   *logrus.Entry

	compression string
	displays    []*AndroidDisplay

	mu     sync.Mutex
	scrcpy *Scrcpy
	sink   input.Sink
	synth  *input.Synthesizer
}

// NewAndroidDevice reads the device properties and displays of serial.
func NewAndroidDevice(ctx context.Context, serial string, cfg *config.Config) (*AndroidDevice, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	d := &AndroidDevice{
		adb: NewAdb(serial),
		cfg: cfg,
		log: utils.WithFields(logrus.Fields{"device": serial}),
	}

	getprop, err := d.adb.Shell(ctx, "getprop")
	if err != nil {
		return nil, fmt.Errorf("failed to read properties of %s: %w", serial, err)
	}

	wmSize, err := d.adb.Shell(ctx, "wm size")
	if err != nil {
		return nil, fmt.Errorf("failed to read display size of %s: %w", serial, err)
	}
	size, err := parseWmSize(wmSize)
	if err != nil {
		return nil, fmt.Errorf("could not detect display dimensions for device %s: %w", serial, err)
	}

	d.props = newProperties(parseGetprop(getprop), size)

	var infos []displayInfo
	if dumpsys, err := d.adb.Shell(ctx, "dumpsys display"); err == nil {
		infos = parseDisplays(dumpsys)
	} else {
		d.log.Debugf("dumpsys display failed: %v", err)
	}
	if len(infos) == 0 {
		infos = []displayInfo{{Index: 0, Width: size.Width, Height: size.Height}}
	}

	d.compression = d.resolveCompression(ctx)

	for _, info := range infos {
		displaySize := types.Size{Width: info.Width, Height: info.Height}
		d.displays = append(d.displays, newAndroidDisplay(serial, info.Index, displaySize, d.newSource(info.Index, displaySize), cfg.Capture))
	}

	d.log.Infof("connected to %s %s (android %s), %d display(s)", d.props.Brand, d.props.Model, d.props.AndroidVersion, len(d.displays))
	return d, nil
}

func newProperties(props map[string]string, size types.Size) Properties {
	get := func(key string) string {
		if v, ok := props[key]; ok && v != "" {
			return v
		}
		return unknownProperty
	}

	return Properties{
		AndroidVersion: get("ro.build.version.release"),
		SDK:            get("ro.build.version.sdk"),
		Brand:          get("ro.product.brand"),
		Manufacturer:   get("ro.product.manufacturer"),
		Model:          get("ro.product.model"),
		Name:           get("ro.product.name"),
		DisplayWidth:   size.Width,
		DisplayHeight:  size.Height,
	}
}

func (d *AndroidDevice) ID() string {
	return d.adb.Serial()
}

func (d *AndroidDevice) Name() string {
	if d.props.Model != unknownProperty {
		return d.props.Model
	}
	return d.ID()
}

func (d *AndroidDevice) Platform() string {
	return "android"
}

func (d *AndroidDevice) DeviceType() string {
	return deviceType(d.ID())
}

func (d *AndroidDevice) Properties() Properties {
	return d.props
}

func (d *AndroidDevice) Adb() *Adb {
	return d.adb
}

func (d *AndroidDevice) Displays() []*AndroidDisplay {
	return d.displays
}

// Display returns the display with the given index.
func (d *AndroidDevice) Display(index int) (*AndroidDisplay, error) {
	for _, display := range d.displays {
		if display.Index() == index {
			return display, nil
		}
	}
	return nil, fmt.Errorf("device %s has no display %d", d.ID(), index)
}

// DisplaySize is the current size of the primary display.
func (d *AndroidDevice) DisplaySize() types.Size {
	return d.displays[0].Size()
}

func (d *AndroidDevice) IsConnected() bool {
	return d.adb.IsConnected()
}

// Orientation reads the display rotation, falling back to comparing the
// initial and current window sizes on builds without SurfaceOrientation.
func (d *AndroidDevice) Orientation(ctx context.Context) (input.Rotation, error) {
	if out, err := d.adb.Shell(ctx, "dumpsys input"); err == nil {
		if rotation, ok := parseSurfaceOrientation(out); ok {
			return rotation, nil
		}
	}

	out, err := d.adb.Shell(ctx, "dumpsys window")
	if err != nil {
		return input.Rotation0, fmt.Errorf("failed to read orientation: %w", err)
	}
	return parseWindowOrientation(out)
}

// InputDevices lists the kernel input devices reported by getevent.
func (d *AndroidDevice) InputDevices(ctx context.Context) ([]control.InputDevice, error) {
	out, err := d.adb.Shell(ctx, "getevent -p")
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}
	return control.ParseGeteventCapabilities(out)
}

// OpenShell starts the persistent shell used for sendevent injection.
func (d *AndroidDevice) OpenShell(ctx context.Context) (LineWriter, error) {
	session, err := d.adb.OpenShell(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Scrcpy returns the companion server of this device. It is started on
// first use.
func (d *AndroidDevice) Scrcpy() *Scrcpy {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scrcpy == nil {
		d.scrcpy = NewScrcpy(d.adb, d.cfg.Scrcpy)
	}
	return d.scrcpy
}

// Input returns the synthesizer for this device, creating the sink for the
// configured backend on first use.
func (d *AndroidDevice) Input() *input.Synthesizer {
	scrcpy := d.Scrcpy()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.synth != nil {
		return d.synth
	}

	switch d.cfg.Input.Backend {
	case config.InputBackendSendevent:
		d.sink = NewSendeventSink(d)
	default:
		d.sink = NewScrcpySink(scrcpy, d.DisplaySize)
	}

	opts := input.DefaultOptions()
	opts.MidTapDelay = d.cfg.Input.MidTapDelay
	opts.PostTapDelay = d.cfg.Input.PostTapDelay
	opts.TypingSpeed = d.cfg.Input.TypingSpeed
	opts.TypingVariance = d.cfg.Input.TypingVariance

	d.synth = input.NewSynthesizer(d.sink, opts)
	return d.synth
}

// Region returns the full screen region of a display wired to this device's
// input.
func (d *AndroidDevice) Region(index int, m *matcher.Matcher) (*region.Region, error) {
	display, err := d.Display(index)
	if err != nil {
		return nil, err
	}

	return region.New(display, m,
		region.WithInput(d.Input()),
		region.WithPollInterval(d.cfg.Matcher.PollInterval),
	), nil
}

// ShowTouches toggles the on-screen touch indicator.
func (d *AndroidDevice) ShowTouches(ctx context.Context, show bool) error {
	return d.putSystemSetting(ctx, "show_touches", show)
}

// ShowPointerLocation toggles the pointer location overlay.
func (d *AndroidDevice) ShowPointerLocation(ctx context.Context, show bool) error {
	return d.putSystemSetting(ctx, "pointer_location", show)
}

func (d *AndroidDevice) putSystemSetting(ctx context.Context, name string, on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	_, err := d.adb.Shell(ctx, fmt.Sprintf("settings put system %s %s", name, value))
	return err
}

// Cleanup releases the input channel, the capture workers and the companion.
func (d *AndroidDevice) Cleanup() error {
	d.mu.Lock()
	sink, scrcpy := d.sink, d.scrcpy
	d.sink, d.synth = nil, nil
	d.mu.Unlock()

	var err error
	if sink != nil {
		if cerr := sink.Close(); cerr != nil {
			err = cerr
		}
	}
	for _, display := range d.displays {
		display.Close()
	}
	if scrcpy != nil {
		if cerr := scrcpy.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}

// newSource picks the capture strategy of a display. The companion only
// mirrors the default display, other displays always use screencap.
func (d *AndroidDevice) newSource(index int, size types.Size) capture.Source {
	if d.cfg.Capture.Method == config.CaptureMethodScrcpy && index == 0 {
		return capture.NewStreamSource(
			d.Scrcpy().DialVideo,
			capture.NewFFmpegDecoderFactory(d.cfg.Scrcpy.FFmpegPath),
			capture.StreamOptions{CodecMeta: true, Width: size.Width, Height: size.Height},
		)
	}

	displayID := ""
	if index != 0 {
		displayID = strconv.Itoa(index)
	}

	return capture.NewDumpSource(d.adb, d.adb, capture.DumpOptions{
		Compression: d.compression,
		Padding:     capture.HeaderPadding(d.props.AndroidVersion),
		Attempts:    d.cfg.Capture.Attempts,
		LZ4Path:     d.cfg.Capture.LZ4Path,
		DisplayID:   displayID,
	})
}

// resolveCompression falls back to uncompressed dumps when the lz4 binary is
// missing on the device.
func (d *AndroidDevice) resolveCompression(ctx context.Context) string {
	compression := d.cfg.Capture.Compression
	if compression != config.CompressionLZ4 {
		return compression
	}

	out, err := d.adb.Shell(ctx, fmt.Sprintf("[ -x %s ] && echo ok", d.cfg.Capture.LZ4Path))
	if err != nil || !strings.Contains(out, "ok") {
		d.log.Warnf("%s not found on device, capturing without compression", d.cfg.Capture.LZ4Path)
		return config.CompressionNone
	}
	return compression
}

func parseGetprop(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		matches := getpropRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches != nil {
			props[matches[1]] = matches[2]
		}
	}
	return props
}

// parseWmSize returns the override size when one is set, else the physical size.
func parseWmSize(output string) (types.Size, error) {
	if matches := overrideSizeRegex.FindStringSubmatch(output); matches != nil {
		return sizeFromMatches(matches), nil
	}
	if matches := physicalSizeRegex.FindStringSubmatch(output); matches != nil {
		return sizeFromMatches(matches), nil
	}
	return types.Size{}, fmt.Errorf("unexpected wm size output: %q", strings.TrimSpace(output))
}

func sizeFromMatches(matches []string) types.Size {
	width, _ := strconv.Atoi(matches[1])
	height, _ := strconv.Atoi(matches[2])
	return types.Size{Width: width, Height: height}
}

func parseDisplays(output string) []displayInfo {
	var displays []displayInfo
	seen := make(map[int]bool)

	for _, line := range strings.Split(output, "\n") {
		matches := displayDeviceRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		index, _ := strconv.Atoi(matches[1])
		if seen[index] {
			continue
		}
		seen[index] = true

		width, _ := strconv.Atoi(matches[2])
		height, _ := strconv.Atoi(matches[3])
		displays = append(displays, displayInfo{Index: index, Width: width, Height: height})
	}

	return displays
}

func parseSurfaceOrientation(output string) (input.Rotation, bool) {
	matches := surfaceOrientationRegex.FindStringSubmatch(output)
	if matches == nil {
		return input.Rotation0, false
	}
	value, _ := strconv.Atoi(matches[1])
	rotation, err := input.ParseRotation(value)
	if err != nil {
		return input.Rotation0, false
	}
	return rotation, true
}

// parseWindowOrientation can only tell natural from sideways.
func parseWindowOrientation(output string) (input.Rotation, error) {
	matches := windowSizeRegex.FindStringSubmatch(output)
	if matches == nil {
		return input.Rotation0, fmt.Errorf("could not read orientation from dumpsys window")
	}

	w0, h0, w1, h1 := matches[1], matches[2], matches[3], matches[4]
	switch {
	case w0 == w1 && h0 == h1:
		return input.Rotation0, nil
	case w0 == h1 && h0 == w1:
		return input.Rotation90, nil
	default:
		return input.Rotation0, fmt.Errorf("could not determine orientation from window size %sx%s -> %sx%s", w0, h0, w1, h1)
	}
}
