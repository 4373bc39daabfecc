// Package rtpout sends the device's frames as RFC 4175 uncompressed video
// over RTP, with periodic RTCP sender reports.
package rtpout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/rtp"
	"github.com/smazurov/smartcam/internal/device"
	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

// ClockRate is the RTP clock of RFC 4175 video.
const ClockRate = 90000

// DefaultMTU is used when no MTU is configured.
const DefaultMTU = 1400

const (
	rtpHeaderSize  = 12
	extSeqSize     = 2
	lineHeaderSize = 6
)

// ErrUnsupportedFormat is returned for pixel formats with no RFC 4175 mapping.
var ErrUnsupportedFormat = errors.New("no RFC 4175 sampling for pixel format")

// Sampling describes an RFC 4175 pixel group.
type Sampling struct {
	Name         string // SDP sampling parameter
	PgroupBytes  int
	PgroupPixels int
}

// Samplings for the formats the device produces.
var (
	SamplingYCbCr422 = Sampling{Name: "YCbCr-4:2:2", PgroupBytes: 4, PgroupPixels: 2}
	SamplingRGB      = Sampling{Name: "RGB", PgroupBytes: 3, PgroupPixels: 1}
)

// SamplingFor maps a device pixel format to its RFC 4175 sampling.
func SamplingFor(pixelFormat uint32) (Sampling, error) {
	switch pixelFormat {
	case v4l2.PixFmtYUYV:
		return SamplingYCbCr422, nil
	case v4l2.PixFmtRGB24:
		return SamplingRGB, nil
	default:
		return Sampling{}, fmt.Errorf("%s: %w", v4l2.FormatFourCC(pixelFormat), ErrUnsupportedFormat)
	}
}

// Packetizer splits frames into RFC 4175 packets: one line segment per
// packet, each as long as the MTU allows, with the marker bit on the last
// packet of a frame.
type Packetizer struct {
	PayloadType uint8
	SSRC        uint32
	MTU         int

	// seq is the 32-bit extended sequence number. The low half goes in the
	// RTP header, the high half in the payload header.
	seq uint32
}

// NewPacketizer creates a packetizer starting at sequence initialSeq.
func NewPacketizer(payloadType uint8, ssrc uint32, mtu int, initialSeq uint32) *Packetizer {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &Packetizer{PayloadType: payloadType, SSRC: ssrc, MTU: mtu, seq: initialSeq}
}

// Packetize splits one frame into packets stamped with timestamp.
func (p *Packetizer) Packetize(frame []byte, pix device.PixFormat, timestamp uint32) ([]*rtp.Packet, error) {
	sampling, err := SamplingFor(pix.PixelFormat)
	if err != nil {
		return nil, err
	}
	lineBytes := int(pix.BytesPerLine)
	if len(frame) < lineBytes*int(pix.Height) {
		return nil, fmt.Errorf("frame is %d bytes, need %d", len(frame), lineBytes*int(pix.Height))
	}

	room := p.MTU - rtpHeaderSize - extSeqSize - lineHeaderSize
	segment := room / sampling.PgroupBytes * sampling.PgroupBytes
	if segment <= 0 {
		return nil, fmt.Errorf("mtu %d too small for one pixel group", p.MTU)
	}

	var packets []*rtp.Packet
	for line := range int(pix.Height) {
		row := frame[line*lineBytes : (line+1)*lineBytes]
		for off := 0; off < len(row); off += segment {
			chunk := row[off:min(off+segment, len(row))]
			pixelOffset := off / sampling.PgroupBytes * sampling.PgroupPixels
			packets = append(packets, p.packet(chunk, pix.PixelFormat, line, pixelOffset, timestamp))
		}
	}
	packets[len(packets)-1].Marker = true
	return packets, nil
}

func (p *Packetizer) packet(chunk []byte, pixelFormat uint32, line, pixelOffset int, timestamp uint32) *rtp.Packet {
	payload := make([]byte, extSeqSize+lineHeaderSize+len(chunk))
	binary.BigEndian.PutUint16(payload[0:], uint16(p.seq>>16))
	binary.BigEndian.PutUint16(payload[2:], uint16(len(chunk)))
	binary.BigEndian.PutUint16(payload[4:], uint16(line)&0x7fff)
	binary.BigEndian.PutUint16(payload[6:], uint16(pixelOffset)&0x7fff)

	data := payload[extSeqSize+lineHeaderSize:]
	if pixelFormat == v4l2.PixFmtYUYV {
		yuyvToUYVY(data, chunk)
	} else {
		copy(data, chunk)
	}

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    p.PayloadType,
			SequenceNumber: uint16(p.seq),
			Timestamp:      timestamp,
			SSRC:           p.SSRC,
		},
		Payload: payload,
	}
	p.seq++
	return pkt
}

// yuyvToUYVY reorders Y0 Cb Y1 Cr into the RFC 4175 Cb Y0 Cr Y1 pgroup.
func yuyvToUYVY(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i] = src[i+1]
		dst[i+1] = src[i]
		dst[i+2] = src[i+3]
		dst[i+3] = src[i+2]
	}
}

// LineSegment is one parsed RFC 4175 line header with its data.
type LineSegment struct {
	Line   int
	Offset int
	Data   []byte
}

// ParsePayload decodes a single-segment RFC 4175 payload.
func ParsePayload(payload []byte) (extSeq uint16, seg LineSegment, err error) {
	if len(payload) < extSeqSize+lineHeaderSize {
		return 0, seg, errors.New("payload shorter than headers")
	}
	extSeq = binary.BigEndian.Uint16(payload[0:])
	length := int(binary.BigEndian.Uint16(payload[2:]))
	seg.Line = int(binary.BigEndian.Uint16(payload[4:]) & 0x7fff)
	seg.Offset = int(binary.BigEndian.Uint16(payload[6:]) & 0x7fff)
	data := payload[extSeqSize+lineHeaderSize:]
	if len(data) < length {
		return 0, seg, fmt.Errorf("segment length %d exceeds payload %d", length, len(data))
	}
	seg.Data = data[:length]
	return extSeq, seg, nil
}
