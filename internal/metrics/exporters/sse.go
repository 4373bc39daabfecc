package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/internal/metrics"
)

// DefaultStatsInterval is how often device stats are published.
const DefaultStatsInterval = 2 * time.Second

// EventPublisher publishes events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes a DeviceStatsEvent per device so the
// event stream carries live counters.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates an exporter publishing every DefaultStatsInterval.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{eventBus: eventBus, interval: DefaultStatsInterval}
}

// Start begins the publish loop.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the loop and waits for it to exit.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishStats()
		}
	}
}

func (s *SSEExporter) publishStats() {
	for device, st := range metrics.GetAllDeviceStats() {
		s.eventBus.Publish(events.DeviceStatsEvent{
			Device:          device,
			FourCC:          st.FourCC,
			Sequence:        st.Sequence,
			FramesSubmitted: st.FramesSubmitted,
			BytesSubmitted:  st.BytesSubmitted,
			FreshDeliveries: st.FreshDeliveries,
			StaleDeliveries: st.StaleDeliveries,
			Sessions:        st.Sessions,
		})
	}
}

// EventTypes returns the SSE event names this exporter contributes.
func EventTypes() map[string]any {
	return map[string]any{
		"device-stats": events.DeviceStatsEvent{},
	}
}
