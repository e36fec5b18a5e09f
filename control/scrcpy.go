package control

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var (
	ErrShortWrite = errors.New("control message partially written")
	ErrBadAck     = errors.New("companion rejected control message")
)

// MessageType identifies a scrcpy control message.
type MessageType uint8

const (
	TypeInjectKeycode MessageType = iota
	TypeInjectText
	TypeInjectTouchEvent
	TypeInjectScrollEvent
	TypeBackOrScreenOn
	TypeExpandNotificationPanel
	TypeCollapseNotificationPanel
	TypeGetClipboard
	TypeSetClipboard
	TypeSetScreenPowerMode
	TypeRotateDevice
)

// Action is shared by key and motion events.
type Action uint8

const (
	ActionDown Action = 0
	ActionUp   Action = 1
	ActionMove Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionDown:
		return "down"
	case ActionUp:
		return "up"
	case ActionMove:
		return "move"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

const (
	ButtonPrimary   uint32 = 1 << 0
	ButtonSecondary uint32 = 1 << 1
	ButtonTertiary  uint32 = 1 << 2
)

const (
	PowerModeOff    uint8 = 0
	PowerModeNormal uint8 = 2
)

const (
	TouchMessageSize  = 32
	KeyMessageSize    = 14
	ScrollMessageSize = 21

	// the companion truncates longer text payloads
	MaxTextLength = 300
	// keeps clipboard messages within the companion read buffer
	MaxClipboardLength = 1<<18 - 6
)

// Message is an outbound control message.
type Message interface {
	Type() MessageType
	MarshalBinary() ([]byte, error)
}

// TouchMessage injects a motion event for one pointer.
type TouchMessage struct {
	Action       Action
	PointerID    uint64
	X            int32
	Y            int32
	ScreenWidth  uint16
	ScreenHeight uint16
	Pressure     uint16
	ActionButton uint32
	Buttons      uint32
}

func (m TouchMessage) Type() MessageType { return TypeInjectTouchEvent }

func (m TouchMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, TouchMessageSize)
	buf[0] = byte(TypeInjectTouchEvent)
	buf[1] = byte(m.Action)
	binary.BigEndian.PutUint64(buf[2:], m.PointerID)
	binary.BigEndian.PutUint32(buf[10:], uint32(m.X))
	binary.BigEndian.PutUint32(buf[14:], uint32(m.Y))
	binary.BigEndian.PutUint16(buf[18:], m.ScreenWidth)
	binary.BigEndian.PutUint16(buf[20:], m.ScreenHeight)
	binary.BigEndian.PutUint16(buf[22:], m.Pressure)
	binary.BigEndian.PutUint32(buf[24:], m.ActionButton)
	binary.BigEndian.PutUint32(buf[28:], m.Buttons)
	return buf, nil
}

// KeyMessage injects an Android key event.
type KeyMessage struct {
	Action  Action
	KeyCode int32
	Repeat  int32
	Meta    int32
}

func (m KeyMessage) Type() MessageType { return TypeInjectKeycode }

func (m KeyMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, KeyMessageSize)
	buf[0] = byte(TypeInjectKeycode)
	buf[1] = byte(m.Action)
	binary.BigEndian.PutUint32(buf[2:], uint32(m.KeyCode))
	binary.BigEndian.PutUint32(buf[6:], uint32(m.Repeat))
	binary.BigEndian.PutUint32(buf[10:], uint32(m.Meta))
	return buf, nil
}

// TextMessage injects text through the companion's key character map.
type TextMessage struct {
	Text string
}

func (m TextMessage) Type() MessageType { return TypeInjectText }

func (m TextMessage) MarshalBinary() ([]byte, error) {
	return appendString([]byte{byte(TypeInjectText)}, m.Text, MaxTextLength)
}

// ScrollMessage injects a scroll at a position.
type ScrollMessage struct {
	X            int32
	Y            int32
	ScreenWidth  uint16
	ScreenHeight uint16
	Horizontal   int32
	Vertical     int32
}

func (m ScrollMessage) Type() MessageType { return TypeInjectScrollEvent }

func (m ScrollMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ScrollMessageSize)
	buf[0] = byte(TypeInjectScrollEvent)
	binary.BigEndian.PutUint32(buf[1:], uint32(m.X))
	binary.BigEndian.PutUint32(buf[5:], uint32(m.Y))
	binary.BigEndian.PutUint16(buf[9:], m.ScreenWidth)
	binary.BigEndian.PutUint16(buf[11:], m.ScreenHeight)
	binary.BigEndian.PutUint32(buf[13:], uint32(m.Horizontal))
	binary.BigEndian.PutUint32(buf[17:], uint32(m.Vertical))
	return buf, nil
}

// BackOrScreenOnMessage presses back, or turns the screen on when it is off.
type BackOrScreenOnMessage struct {
	Action Action
}

func (m BackOrScreenOnMessage) Type() MessageType { return TypeBackOrScreenOn }

func (m BackOrScreenOnMessage) MarshalBinary() ([]byte, error) {
	return []byte{byte(TypeBackOrScreenOn), byte(m.Action)}, nil
}

// SetClipboardMessage replaces the device clipboard, optionally pasting it.
type SetClipboardMessage struct {
	Text  string
	Paste bool
}

func (m SetClipboardMessage) Type() MessageType { return TypeSetClipboard }

func (m SetClipboardMessage) MarshalBinary() ([]byte, error) {
	paste := byte(0)
	if m.Paste {
		paste = 1
	}
	return appendString([]byte{byte(TypeSetClipboard), paste}, m.Text, MaxClipboardLength)
}

type SetScreenPowerModeMessage struct {
	Mode uint8
}

func (m SetScreenPowerModeMessage) Type() MessageType { return TypeSetScreenPowerMode }

func (m SetScreenPowerModeMessage) MarshalBinary() ([]byte, error) {
	return []byte{byte(TypeSetScreenPowerMode), m.Mode}, nil
}

// SimpleMessage covers the messages without a payload.
type SimpleMessage MessageType

const (
	ExpandNotificationPanel   = SimpleMessage(TypeExpandNotificationPanel)
	CollapseNotificationPanel = SimpleMessage(TypeCollapseNotificationPanel)
	GetClipboard              = SimpleMessage(TypeGetClipboard)
	RotateDevice              = SimpleMessage(TypeRotateDevice)
)

func (m SimpleMessage) Type() MessageType { return MessageType(m) }

func (m SimpleMessage) MarshalBinary() ([]byte, error) {
	return []byte{byte(m)}, nil
}

// appendString writes a u32 length prefixed UTF-8 string, truncated to
// limit bytes on a rune boundary.
func appendString(buf []byte, s string, limit int) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("text is not valid utf-8")
	}
	if len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...), nil
}

// WriteMessage encodes msg and writes it in a single call.
func WriteMessage(w io.Writer, msg Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode control message %d: %w", msg.Type(), err)
	}

	n, err := w.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write control message %d: %w", msg.Type(), err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(data))
	}
	return nil
}

// ReadAck reads a one byte status. Zero means the message was accepted.
func ReadAck(r io.Reader) error {
	var status [1]byte
	if _, err := io.ReadFull(r, status[:]); err != nil {
		return fmt.Errorf("failed to read ack: %w", err)
	}
	if status[0] != 0 {
		return fmt.Errorf("%w: status %d", ErrBadAck, status[0])
	}
	return nil
}

const deviceMessageClipboard = 0

// ReadClipboard reads the device message sent in reply to GetClipboard.
func ReadClipboard(r io.Reader) (string, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", fmt.Errorf("failed to read device message: %w", err)
	}
	if header[0] != deviceMessageClipboard {
		return "", fmt.Errorf("unexpected device message type %d", header[0])
	}

	size := binary.BigEndian.Uint32(header[1:])
	if size > MaxClipboardLength {
		return "", fmt.Errorf("clipboard payload too large: %d bytes", size)
	}
	text := make([]byte, size)
	if _, err := io.ReadFull(r, text); err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return string(text), nil
}
