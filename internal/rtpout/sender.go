package rtpout

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/pion/rtcp"
	"github.com/smazurov/smartcam/internal/device"
	"github.com/smazurov/smartcam/internal/metrics"
	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

// DefaultReportInterval is the RTCP sender report period.
const DefaultReportInterval = 5 * time.Second

// FrameSource is the part of a device the sender reads from.
type FrameSource interface {
	Name() string
	BufferSize() int
	FrameInfo() device.FrameInfo
	Snapshot(dst []byte) (int, device.PixFormat, device.FrameInfo, error)
	GetParm(p *device.StreamParm) error
}

// Options configures a Sender.
type Options struct {
	// Destination is host:port for RTP. RTCP goes to port+1 unless
	// RTCPDestination is set.
	Destination     string
	RTCPDestination string
	PayloadType     uint8
	MTU             int
	// FrameInterval overrides the polling period taken from the device's
	// stream parameters.
	FrameInterval  time.Duration
	ReportInterval time.Duration
	Logger         *slog.Logger
}

// Sender polls a FrameSource and sends each new frame as RTP.
type Sender struct {
	src      FrameSource
	opts     Options
	logger   *slog.Logger
	rtpConn  net.Conn
	rtcpConn net.Conn
	pk       *Packetizer

	frame       []byte
	lastSeq     uint32
	started     bool
	epoch       time.Time
	tsBase      uint32
	lastRTPTime uint32
	packets     uint32
	octets      uint32
}

// NewSender dials the RTP and RTCP destinations.
func NewSender(src FrameSource, opts Options) (*Sender, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = DefaultReportInterval
	}
	if opts.PayloadType == 0 {
		opts.PayloadType = 96
	}

	rtcpDest := opts.RTCPDestination
	if rtcpDest == "" {
		var err error
		if rtcpDest, err = nextPort(opts.Destination); err != nil {
			return nil, err
		}
	}

	rtpConn, err := net.Dial("udp", opts.Destination)
	if err != nil {
		return nil, fmt.Errorf("dial rtp %s: %w", opts.Destination, err)
	}
	rtcpConn, err := net.Dial("udp", rtcpDest)
	if err != nil {
		rtpConn.Close()
		return nil, fmt.Errorf("dial rtcp %s: %w", rtcpDest, err)
	}

	var seed [10]byte
	if _, err := rand.Read(seed[:]); err != nil {
		rtpConn.Close()
		rtcpConn.Close()
		return nil, fmt.Errorf("seed rtp state: %w", err)
	}
	ssrc := binary.BigEndian.Uint32(seed[0:4])
	initialSeq := uint32(binary.BigEndian.Uint16(seed[4:6]))

	return &Sender{
		src:      src,
		opts:     opts,
		logger:   opts.Logger.With("device", src.Name(), "destination", opts.Destination),
		rtpConn:  rtpConn,
		rtcpConn: rtcpConn,
		pk:       NewPacketizer(opts.PayloadType, ssrc, opts.MTU, initialSeq),
		frame:    make([]byte, src.BufferSize()),
		tsBase:   binary.BigEndian.Uint32(seed[6:10]),
	}, nil
}

// SSRC returns the stream's synchronization source.
func (s *Sender) SSRC() uint32 {
	return s.pk.SSRC
}

// Run sends frames until ctx is done, then closes the sockets.
func (s *Sender) Run(ctx context.Context) error {
	defer s.rtpConn.Close()
	defer s.rtcpConn.Close()

	interval := s.frameInterval()
	s.logger.Info("RTP egress started",
		"rtcp", s.rtcpConn.RemoteAddr().String(),
		"ssrc", s.pk.SSRC,
		"payload_type", s.pk.PayloadType,
		"mtu", s.pk.MTU,
		"interval", interval)

	frames := time.NewTicker(interval)
	defer frames.Stop()
	reports := time.NewTicker(s.opts.ReportInterval)
	defer reports.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("RTP egress stopped", "packets", s.packets, "octets", s.octets)
			return nil
		case <-frames.C:
			if err := s.SendIfNew(); err != nil {
				s.logger.Warn("RTP send failed", "error", err)
			}
		case now := <-reports.C:
			if err := s.SendReport(now); err != nil {
				s.logger.Warn("RTCP send failed", "error", err)
			}
		}
	}
}

func (s *Sender) frameInterval() time.Duration {
	if s.opts.FrameInterval > 0 {
		return s.opts.FrameInterval
	}
	p := device.StreamParm{Type: v4l2.BufTypeVideoCapture}
	if err := s.src.GetParm(&p); err == nil {
		if d := p.Capture.TimePerFrame.Interval(); d > 0 {
			return d
		}
	}
	return 100 * time.Millisecond
}

// SendIfNew sends the held frame when its sequence differs from the last
// one sent. The first call always sends.
func (s *Sender) SendIfNew() error {
	if s.started && s.src.FrameInfo().Sequence == s.lastSeq {
		return nil
	}

	n, pix, info, err := s.src.Snapshot(s.frame)
	if err != nil {
		return err
	}
	if s.started && info.Sequence == s.lastSeq {
		return nil
	}

	ts := s.rtpTimestamp(info.Timestamp)
	packets, err := s.pk.Packetize(s.frame[:n], pix, ts)
	if err != nil {
		return err
	}

	payload := 0
	for _, pkt := range packets {
		raw, err := pkt.Marshal()
		if err != nil {
			return err
		}
		if _, err := s.rtpConn.Write(raw); err != nil {
			metrics.RecordRTPError(s.src.Name(), "rtp")
			return fmt.Errorf("write rtp: %w", err)
		}
		payload += len(pkt.Payload)
	}

	s.started = true
	s.lastSeq = info.Sequence
	s.lastRTPTime = ts
	s.packets += uint32(len(packets))
	s.octets += uint32(payload)
	metrics.RecordRTPFrame(s.src.Name(), len(packets), payload)
	s.logger.Debug("Frame sent", "sequence", info.Sequence, "packets", len(packets), "rtp_ts", ts)
	return nil
}

// rtpTimestamp maps a frame timestamp onto the 90 kHz clock, anchored at
// the first frame sent.
func (s *Sender) rtpTimestamp(t time.Time) uint32 {
	if s.epoch.IsZero() {
		s.epoch = t
	}
	elapsed := max(t.Sub(s.epoch), 0)
	ticks := int64(elapsed/time.Second)*ClockRate + int64(elapsed%time.Second)*ClockRate/int64(time.Second)
	return s.tsBase + uint32(ticks)
}

// SendReport writes one RTCP sender report stamped with now.
func (s *Sender) SendReport(now time.Time) error {
	sr := &rtcp.SenderReport{
		SSRC:        s.pk.SSRC,
		NTPTime:     ntpTime(now),
		RTPTime:     s.lastRTPTime,
		PacketCount: s.packets,
		OctetCount:  s.octets,
	}
	raw, err := sr.Marshal()
	if err != nil {
		return err
	}
	if _, err := s.rtcpConn.Write(raw); err != nil {
		metrics.RecordRTPError(s.src.Name(), "rtcp")
		return fmt.Errorf("write rtcp: %w", err)
	}
	metrics.RecordSenderReport(s.src.Name())
	return nil
}

// ntpEpochOffset is the seconds between 1900-01-01 and 1970-01-01.
const ntpEpochOffset = 2208988800

func ntpTime(t time.Time) uint64 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / uint64(time.Second)
	return secs<<32 | frac
}

func nextPort(hostport string) (string, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", fmt.Errorf("rtp destination %q: %w", hostport, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n >= 65535 {
		return "", fmt.Errorf("rtp destination %q: invalid port", hostport)
	}
	return net.JoinHostPort(host, strconv.Itoa(n+1)), nil
}
