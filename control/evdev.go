package control

import (
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Linux input event types and codes used for touch and key synthesis.
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03
)

const (
	SYN_REPORT = 0x00
	BTN_TOUCH  = 0x14a
)

const (
	ABS_MT_SLOT        = 0x2f
	ABS_MT_TOUCH_MAJOR = 0x30
	ABS_MT_POSITION_X  = 0x35
	ABS_MT_POSITION_Y  = 0x36
	ABS_MT_TRACKING_ID = 0x39
	ABS_MT_PRESSURE    = 0x3a
)

const (
	KeyValueUp   = 0
	KeyValueDown = 1
)

// RawEvent is one kernel input event.
type RawEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

func Abs(code uint16, value int32) RawEvent {
	return RawEvent{Type: EV_ABS, Code: code, Value: value}
}

func Key(code uint16, down bool) RawEvent {
	value := int32(KeyValueUp)
	if down {
		value = KeyValueDown
	}
	return RawEvent{Type: EV_KEY, Code: code, Value: value}
}

func Sync() RawEvent {
	return RawEvent{Type: EV_SYN, Code: SYN_REPORT}
}

// Command renders the sendevent invocation for device.
func (e RawEvent) Command(device string) string {
	return shellquote.Join(
		"sendevent",
		device,
		strconv.Itoa(int(e.Type)),
		strconv.Itoa(int(e.Code)),
		strconv.Itoa(int(e.Value)),
	)
}

// Script joins several events into one shell line so a whole report is
// delivered in a single round trip.
func Script(device string, events []RawEvent) string {
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.Command(device)
	}
	return strings.Join(lines, "; ")
}
