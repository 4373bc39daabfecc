package events

// Event type constants for kelindar/event.
const (
	TypeFrameSubmitted uint32 = iota + 1
	TypeFrameDelivered
	TypeFormatChanged
	TypeSessionOpened
	TypeSessionClosed
	TypeDeviceStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameSubmittedEvent is published after a producer frame lands in the
// frame buffer.
type FrameSubmittedEvent struct {
	Device    string `json:"device" example:"video0" doc:"Endpoint name"`
	Sequence  uint32 `json:"sequence" example:"42" doc:"Frame sequence after ingestion"`
	Bytes     int    `json:"bytes" example:"230400" doc:"Bytes accepted from the producer"`
	FourCC    string `json:"fourcc" example:"YUYV" doc:"Active pixel format"`
	Converted bool   `json:"converted" doc:"Whether RGB input was converted to YUYV"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Frame timestamp"`
}

// Type returns the event type identifier for FrameSubmittedEvent.
func (e FrameSubmittedEvent) Type() uint32 { return TypeFrameSubmitted }

// FrameDeliveredEvent is published when a consumer obtains the current frame
// through the read or dequeue path.
type FrameDeliveredEvent struct {
	Device   string `json:"device" example:"video0" doc:"Endpoint name"`
	Session  string `json:"session,omitempty" doc:"Session identifier, empty for sessionless calls"`
	Path     string `json:"path" example:"dequeue" doc:"Data path: read or dequeue"`
	Sequence uint32 `json:"sequence" example:"42" doc:"Delivered frame sequence"`
	Fresh    bool   `json:"fresh" doc:"False when the frame was already delivered before"`
	Blocking bool   `json:"blocking" doc:"Whether the caller waited for a frame"`
}

// Type returns the event type identifier for FrameDeliveredEvent.
func (e FrameDeliveredEvent) Type() uint32 { return TypeFrameDelivered }

// FormatChangedEvent is published when a format commit succeeds.
type FormatChangedEvent struct {
	Device string `json:"device" example:"video0" doc:"Endpoint name"`
	FourCC string `json:"fourcc" example:"RGB3" doc:"New pixel format"`
	Width  uint32 `json:"width" example:"320" doc:"Frame width"`
	Height uint32 `json:"height" example:"240" doc:"Frame height"`
}

// Type returns the event type identifier for FormatChangedEvent.
func (e FormatChangedEvent) Type() uint32 { return TypeFormatChanged }

// SessionOpenedEvent is published when a consumer or producer opens the endpoint.
type SessionOpenedEvent struct {
	Device      string `json:"device"`
	Session     string `json:"session"`
	NonBlocking bool   `json:"non_blocking"`
}

// Type returns the event type identifier for SessionOpenedEvent.
func (e SessionOpenedEvent) Type() uint32 { return TypeSessionOpened }

// SessionClosedEvent is published when a session is closed.
type SessionClosedEvent struct {
	Device  string `json:"device"`
	Session string `json:"session"`
}

// Type returns the event type identifier for SessionClosedEvent.
func (e SessionClosedEvent) Type() uint32 { return TypeSessionClosed }

// DeviceStatsEvent is a periodic summary of a device's counters.
type DeviceStatsEvent struct {
	Device          string `json:"device" example:"video0" doc:"Endpoint name"`
	FourCC          string `json:"fourcc" example:"YUYV" doc:"Active pixel format"`
	Sequence        uint32 `json:"sequence" doc:"Latest frame sequence"`
	FramesSubmitted uint64 `json:"frames_submitted" doc:"Frames ingested since start"`
	BytesSubmitted  uint64 `json:"bytes_submitted" doc:"Bytes ingested since start"`
	FreshDeliveries uint64 `json:"fresh_deliveries" doc:"Deliveries of a new frame"`
	StaleDeliveries uint64 `json:"stale_deliveries" doc:"Deliveries of an already delivered frame"`
	Sessions        int    `json:"sessions" doc:"Open sessions"`
}

// Type returns the event type identifier for DeviceStatsEvent.
func (e DeviceStatsEvent) Type() uint32 { return TypeDeviceStats }
