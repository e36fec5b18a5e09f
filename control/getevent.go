package control

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	absInfoRegex    = regexp.MustCompile(`.*?(\w{4})\s+:\s+value (-?\d+), min (-?\d+), max (-?\d+), fuzz (-?\d+), flat (-?\d+), resolution (-?\d+).*?`)
	deviceNameRegex = regexp.MustCompile(`^\s*name:\s+"(.*)"`)
	sectionRegex    = regexp.MustCompile(`^\s*([A-Z]+) \(([0-9a-f]{4})\):(.*)$`)
)

// AbsInfo is the reported range of one absolute axis.
type AbsInfo struct {
	Value      int `json:"value"`
	Min        int `json:"min"`
	Max        int `json:"max"`
	Fuzz       int `json:"fuzz"`
	Flat       int `json:"flat"`
	Resolution int `json:"resolution"`
}

// Scale maps a pixel coordinate in [0, extent) into the axis range.
func (a AbsInfo) Scale(coord, extent int) int32 {
	if extent <= 1 || a.Max <= a.Min {
		return int32(coord)
	}
	v := float64(a.Min) + float64(coord)/float64(extent-1)*float64(a.Max-a.Min)
	v = math.Round(v)
	return int32(math.Max(float64(a.Min), math.Min(float64(a.Max), v)))
}

// Unscale is the inverse of Scale.
func (a AbsInfo) Unscale(value int32, extent int) int {
	if extent <= 1 || a.Max <= a.Min {
		return int(value)
	}
	return int(math.Round(float64(int(value)-a.Min) / float64(a.Max-a.Min) * float64(extent-1)))
}

// InputDevice describes one /dev/input node as reported by getevent -p.
type InputDevice struct {
	Path string             `json:"path"`
	Name string             `json:"name"`
	Abs  map[uint16]AbsInfo `json:"abs,omitempty"`
	Keys []uint16           `json:"keys,omitempty"`
}

func (d InputDevice) IsTouchscreen() bool {
	_, hasX := d.Abs[ABS_MT_POSITION_X]
	_, hasY := d.Abs[ABS_MT_POSITION_Y]
	return hasX && hasY
}

func (d InputDevice) HasKey(code uint16) bool {
	for _, k := range d.Keys {
		if k == code {
			return true
		}
	}
	return false
}

// MaxSlots returns the number of touch slots the device tracks.
func (d InputDevice) MaxSlots() int {
	if info, ok := d.Abs[ABS_MT_SLOT]; ok {
		return info.Max + 1
	}
	return 1
}

// ParseGeteventCapabilities parses the output of `getevent -p`.
func ParseGeteventCapabilities(output string) ([]InputDevice, error) {
	var devices []InputDevice
	for _, block := range strings.Split(output, "add device")[1:] {
		lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
		header := strings.Fields(lines[0])
		if len(header) == 0 {
			continue
		}

		dev := InputDevice{
			Path: header[len(header)-1],
			Abs:  make(map[uint16]AbsInfo),
		}

		section := ""
		for _, line := range lines[1:] {
			if m := deviceNameRegex.FindStringSubmatch(line); m != nil {
				dev.Name = m[1]
				continue
			}

			rest := line
			if m := sectionRegex.FindStringSubmatch(line); m != nil {
				section = m[1]
				rest = m[3]
			} else if !strings.HasPrefix(line, "    ") {
				// "input props:" and friends end the events list
				section = ""
				continue
			}

			switch section {
			case "ABS":
				m := absInfoRegex.FindStringSubmatch(rest)
				if m == nil {
					continue
				}
				code, err := strconv.ParseUint(m[1], 16, 16)
				if err != nil {
					return nil, fmt.Errorf("invalid ABS code %q on %s: %w", m[1], dev.Path, err)
				}
				dev.Abs[uint16(code)] = AbsInfo{
					Value:      atoi(m[2]),
					Min:        atoi(m[3]),
					Max:        atoi(m[4]),
					Fuzz:       atoi(m[5]),
					Flat:       atoi(m[6]),
					Resolution: atoi(m[7]),
				}
			case "KEY":
				for _, field := range strings.Fields(rest) {
					code, err := strconv.ParseUint(strings.TrimSuffix(field, "*"), 16, 16)
					if err != nil {
						continue
					}
					dev.Keys = append(dev.Keys, uint16(code))
				}
			}
		}

		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no input devices in getevent output")
	}
	return devices, nil
}

// FindTouchscreen returns the first device reporting multi-touch positions.
func FindTouchscreen(devices []InputDevice) (InputDevice, bool) {
	for _, d := range devices {
		if d.IsTouchscreen() {
			return d, true
		}
	}
	return InputDevice{}, false
}

// FindKeyDevice returns the first device able to emit code.
func FindKeyDevice(devices []InputDevice, code uint16) (InputDevice, bool) {
	for _, d := range devices {
		if d.HasKey(code) {
			return d, true
		}
	}
	return InputDevice{}, false
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
