// Package collectors feeds device metrics from the event bus.
package collectors

import (
	"log/slog"
	"sync"

	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/internal/metrics"
)

// EventCollector turns device events into Prometheus series.
type EventCollector struct {
	bus     *events.Bus
	formats []string
	logger  *slog.Logger

	mu     sync.Mutex
	unsubs []func()
}

// NewEventCollector creates a collector. formats lists every fourcc the
// devices can activate, for the active_format gauge.
func NewEventCollector(bus *events.Bus, formats []string, logger *slog.Logger) *EventCollector {
	return &EventCollector{bus: bus, formats: formats, logger: logger}
}

// Start subscribes to the bus.
func (c *EventCollector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubs != nil {
		return
	}

	c.unsubs = []func(){
		c.bus.Subscribe(func(e events.FrameSubmittedEvent) {
			metrics.RecordFrameSubmitted(e.Device, e.FourCC, e.Bytes, e.Sequence)
		}),
		c.bus.Subscribe(func(e events.FrameDeliveredEvent) {
			metrics.RecordDelivery(e.Device, e.Path, e.Fresh)
		}),
		c.bus.Subscribe(func(e events.FormatChangedEvent) {
			metrics.SetActiveFormat(e.Device, e.FourCC, c.formats)
		}),
		c.bus.Subscribe(func(e events.SessionOpenedEvent) {
			metrics.AddSessions(e.Device, 1)
		}),
		c.bus.Subscribe(func(e events.SessionClosedEvent) {
			metrics.AddSessions(e.Device, -1)
		}),
	}
	c.logger.Debug("Event collector started", "formats", c.formats)
}

// Stop unsubscribes from the bus.
func (c *EventCollector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}
