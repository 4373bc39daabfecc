// Package metrics provides Prometheus metrics for capture endpoints and
// RTP egress.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smartcam"

var (
	framesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "frames_submitted_total",
		Help:      "Frames ingested from producers",
	}, []string{"device", "fourcc"})

	bytesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "bytes_submitted_total",
		Help:      "Producer bytes accepted after truncation",
	}, []string{"device"})

	frameSequence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "frame_sequence",
		Help:      "Sequence number of the held frame",
	}, []string{"device"})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "deliveries_total",
		Help:      "Frames handed to consumers by path and freshness",
	}, []string{"device", "path", "fresh"})

	activeFormat = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "active_format",
		Help:      "1 for the active pixel format, 0 otherwise",
	}, []string{"device", "fourcc"})

	openSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "sessions",
		Help:      "Open sessions",
	}, []string{"device"})

	statsCache   = make(map[string]*DeviceStats)
	statsCacheMu sync.RWMutex
)

// DeviceStats mirrors the Prometheus series of one device for the stats
// endpoint and the SSE exporter.
type DeviceStats struct {
	FourCC          string
	Sequence        uint32
	FramesSubmitted uint64
	BytesSubmitted  uint64
	FreshDeliveries uint64
	StaleDeliveries uint64
	Sessions        int
}

// RecordFrameSubmitted counts one ingested frame.
func RecordFrameSubmitted(device, fourcc string, bytes int, sequence uint32) {
	framesSubmitted.WithLabelValues(device, fourcc).Inc()
	bytesSubmitted.WithLabelValues(device).Add(float64(bytes))
	frameSequence.WithLabelValues(device).Set(float64(sequence))
	updateStats(device, func(s *DeviceStats) {
		s.FramesSubmitted++
		s.BytesSubmitted += uint64(bytes)
		s.Sequence = sequence
		s.FourCC = fourcc
	})
}

// RecordDelivery counts one frame handed to a consumer.
func RecordDelivery(device, path string, fresh bool) {
	label := "false"
	if fresh {
		label = "true"
	}
	deliveries.WithLabelValues(device, path, label).Inc()
	updateStats(device, func(s *DeviceStats) {
		if fresh {
			s.FreshDeliveries++
		} else {
			s.StaleDeliveries++
		}
	})
}

// SetActiveFormat marks fourcc active among formats.
func SetActiveFormat(device, fourcc string, formats []string) {
	for _, f := range formats {
		v := 0.0
		if f == fourcc {
			v = 1
		}
		activeFormat.WithLabelValues(device, f).Set(v)
	}
	updateStats(device, func(s *DeviceStats) { s.FourCC = fourcc })
}

// AddSessions adjusts the open session gauge by delta.
func AddSessions(device string, delta int) {
	openSessions.WithLabelValues(device).Add(float64(delta))
	updateStats(device, func(s *DeviceStats) { s.Sessions = max(0, s.Sessions+delta) })
}

// DeleteDeviceMetrics removes every series and the cached stats of device.
func DeleteDeviceMetrics(device string) {
	labels := prometheus.Labels{"device": device}
	framesSubmitted.DeletePartialMatch(labels)
	bytesSubmitted.DeletePartialMatch(labels)
	frameSequence.DeletePartialMatch(labels)
	deliveries.DeletePartialMatch(labels)
	activeFormat.DeletePartialMatch(labels)
	openSessions.DeletePartialMatch(labels)

	statsCacheMu.Lock()
	delete(statsCache, device)
	statsCacheMu.Unlock()
}

// GetDeviceStats returns a copy of the cached stats for device, or nil.
func GetDeviceStats(device string) *DeviceStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	if s, ok := statsCache[device]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// GetAllDeviceStats returns copies of the cached stats of every device.
func GetAllDeviceStats() map[string]*DeviceStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	result := make(map[string]*DeviceStats, len(statsCache))
	for name, s := range statsCache {
		dup := *s
		result[name] = &dup
	}
	return result
}

func updateStats(device string, update func(*DeviceStats)) {
	statsCacheMu.Lock()
	defer statsCacheMu.Unlock()
	s, ok := statsCache[device]
	if !ok {
		s = &DeviceStats{}
		statsCache[device] = s
	}
	update(s)
}
