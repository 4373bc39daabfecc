package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rtpPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rtp",
		Name:      "packets_sent_total",
		Help:      "RTP packets written to the destination",
	}, []string{"device"})

	rtpBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rtp",
		Name:      "payload_bytes_sent_total",
		Help:      "RTP payload bytes written",
	}, []string{"device"})

	rtpFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rtp",
		Name:      "frames_sent_total",
		Help:      "Frames packetized and sent",
	}, []string{"device"})

	rtpSenderReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rtp",
		Name:      "sender_reports_total",
		Help:      "RTCP sender reports written",
	}, []string{"device"})

	rtpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rtp",
		Name:      "send_errors_total",
		Help:      "Failed RTP or RTCP writes",
	}, []string{"device", "kind"})
)

// RecordRTPFrame counts one frame sent as packets carrying payload bytes.
func RecordRTPFrame(device string, packets, payload int) {
	rtpFrames.WithLabelValues(device).Inc()
	rtpPackets.WithLabelValues(device).Add(float64(packets))
	rtpBytes.WithLabelValues(device).Add(float64(payload))
}

// RecordSenderReport counts one RTCP sender report.
func RecordSenderReport(device string) {
	rtpSenderReports.WithLabelValues(device).Inc()
}

// RecordRTPError counts a failed write; kind is "rtp" or "rtcp".
func RecordRTPError(device, kind string) {
	rtpErrors.WithLabelValues(device, kind).Inc()
}
