package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	deviceNameLength = 64
	maxPacketSize    = 16 * 1024 * 1024

	packetFlagConfig   = uint64(1) << 63
	packetFlagKeyFrame = uint64(1) << 62
)

// DeviceInfo is the greeting sent by the mirroring server on the video socket.
type DeviceInfo struct {
	Name   string
	Width  int
	Height int
}

// CodecMeta is sent by newer mirroring servers right after the greeting.
type CodecMeta struct {
	CodecID uint32
	Width   int
	Height  int
}

// Packet is one encoded chunk of the video stream.
type Packet struct {
	PTS      int64
	Config   bool
	KeyFrame bool
	Data     []byte
}

// ReadDeviceInfo reads the dummy byte followed by the device name and size.
func ReadDeviceInfo(r io.Reader) (DeviceInfo, error) {
	var dummy [1]byte
	if _, err := io.ReadFull(r, dummy[:]); err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to read connection byte: %w", err)
	}
	if dummy[0] != 0 {
		return DeviceInfo{}, fmt.Errorf("could not connect to mirroring server, got 0x%02x", dummy[0])
	}

	var buf [deviceNameLength + 4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to read device info: %w", err)
	}

	name := buf[:deviceNameLength]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return DeviceInfo{
		Name:   string(name),
		Width:  int(binary.BigEndian.Uint16(buf[64:66])),
		Height: int(binary.BigEndian.Uint16(buf[66:68])),
	}, nil
}

func ReadCodecMeta(r io.Reader) (CodecMeta, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return CodecMeta{}, fmt.Errorf("failed to read codec meta: %w", err)
	}
	return CodecMeta{
		CodecID: binary.BigEndian.Uint32(buf[0:4]),
		Width:   int(int32(binary.BigEndian.Uint32(buf[4:8]))),
		Height:  int(int32(binary.BigEndian.Uint32(buf[8:12]))),
	}, nil
}

// ReadPacket reads a 12 byte packet header and its payload.
func ReadPacket(r io.Reader) (Packet, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Packet{}, err
	}

	ptsAndFlags := binary.BigEndian.Uint64(header[0:8])
	size := binary.BigEndian.Uint32(header[8:12])
	if size == 0 || size > maxPacketSize {
		return Packet{}, fmt.Errorf("invalid packet size %d", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, fmt.Errorf("failed to read packet payload: %w", err)
	}

	return Packet{
		PTS:      int64(ptsAndFlags &^ (packetFlagConfig | packetFlagKeyFrame)),
		Config:   ptsAndFlags&packetFlagConfig != 0,
		KeyFrame: ptsAndFlags&packetFlagKeyFrame != 0,
		Data:     data,
	}, nil
}

// WritePacket is the inverse of ReadPacket.
func WritePacket(w io.Writer, p Packet) error {
	flags := uint64(p.PTS)
	if p.Config {
		flags |= packetFlagConfig
	}
	if p.KeyFrame {
		flags |= packetFlagKeyFrame
	}

	var header [12]byte
	binary.BigEndian.PutUint64(header[0:8], flags)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(p.Data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(p.Data)
	return err
}

// WriteDeviceInfo is the inverse of ReadDeviceInfo.
func WriteDeviceInfo(w io.Writer, info DeviceInfo) error {
	buf := make([]byte, 1+deviceNameLength+4)
	copy(buf[1:1+deviceNameLength], info.Name)
	binary.BigEndian.PutUint16(buf[65:67], uint16(info.Width))
	binary.BigEndian.PutUint16(buf[67:69], uint16(info.Height))
	_, err := w.Write(buf)
	return err
}
