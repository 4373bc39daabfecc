package models

// Session models
type SessionData struct {
	ID          string `json:"id" example:"6f1c2a9e-3b47-4d0e-9a61-2f8b5c7d4e10" doc:"Session identifier"`
	NonBlocking bool   `json:"non_blocking" doc:"Whether reads and dequeues return immediately"`
	Position    int64  `json:"position" doc:"Sequential read position"`
}

type SessionResponse struct {
	Body SessionData
}

type OpenSessionData struct {
	NonBlocking bool `json:"non_blocking,omitempty" doc:"Open in non-blocking mode"`
}

type FrameWriteData struct {
	Bytes    int    `json:"bytes" example:"153600" doc:"Bytes accepted"`
	Sequence uint32 `json:"sequence" example:"42" doc:"Frame sequence after the write"`
}

type FrameWriteResponse struct {
	Body FrameWriteData
}

// FrameReadResponse carries raw frame bytes.
type FrameReadResponse struct {
	ContentType string `header:"Content-Type"`
	Position    string `header:"X-Frame-Position" doc:"Read position after this call"`
	EndOfFrame  string `header:"X-End-Of-Frame" doc:"true once the position reached the frame size"`
	Body        []byte
}

type SeekData struct {
	Offset int64  `json:"offset" example:"0" doc:"Offset relative to whence"`
	Whence string `json:"whence,omitempty" enum:"start,current,end" example:"start" doc:"Reference point, start when omitted"`
}

type PositionData struct {
	Position int64 `json:"position" example:"0" doc:"New read position"`
}

type PositionResponse struct {
	Body PositionData
}

type ReadinessData struct {
	Readable bool `json:"readable" doc:"An undelivered frame is available"`
	Writable bool `json:"writable" doc:"A frame may be submitted"`
}

type ReadinessResponse struct {
	Body ReadinessData
}

// MappingResponse carries the bytes visible through a shared mapping.
type MappingResponse struct {
	ContentType string `header:"Content-Type"`
	Pages       string `header:"X-Mapping-Pages" doc:"Number of pages mapped"`
	Body        []byte
}
