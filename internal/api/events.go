package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/internal/metrics/exporters"
)

// EventTypes maps SSE event names to their payloads.
func EventTypes() map[string]any {
	eventTypes := map[string]any{
		"frame-submitted": events.FrameSubmittedEvent{},
		"frame-delivered": events.FrameDeliveredEvent{},
		"format-changed":  events.FormatChangedEvent{},
		"session-opened":  events.SessionOpenedEvent{},
		"session-closed":  events.SessionClosedEvent{},
	}
	maps.Copy(eventTypes, exporters.EventTypes())
	return eventTypes
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of frame, format, session and stats events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, EventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.FrameSubmittedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameDeliveredEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FormatChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionOpenedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionClosedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
