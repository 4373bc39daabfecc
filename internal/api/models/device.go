package models

// Capability models
type CapabilityData struct {
	Driver          string   `json:"driver" example:"smartcam" doc:"Driver name"`
	Card            string   `json:"card" example:"smartcam" doc:"Device name"`
	BusInfo         string   `json:"bus_info" example:"platform:video0" doc:"Bus location"`
	Version         string   `json:"version" example:"0.1.0" doc:"Driver version"`
	Capabilities    uint32   `json:"capabilities" doc:"Capability flags including the device-caps bit"`
	DeviceCaps      uint32   `json:"device_caps" doc:"Capability flags of this endpoint"`
	CapabilityNames []string `json:"capability_names" example:"[\"Video Capture\",\"Streaming I/O\"]" doc:"Readable device capabilities"`
}

type CapabilityResponse struct {
	Body CapabilityData
}

// Format models
type FormatDescData struct {
	Index       uint32 `json:"index" example:"0" doc:"Catalog index"`
	Type        uint32 `json:"type" example:"1" doc:"Buffer type"`
	Description string `json:"description" example:"4:2:2, packed, YUYV" doc:"Format description"`
	PixelFormat uint32 `json:"pixel_format" doc:"Pixel format code"`
	FourCC      string `json:"fourcc" example:"YUYV" doc:"Pixel format as four characters"`
}

type FormatDescResponse struct {
	Body FormatDescData
}

type PixFormatData struct {
	Width        uint32 `json:"width" example:"320" doc:"Frame width"`
	Height       uint32 `json:"height" example:"240" doc:"Frame height"`
	FourCC       string `json:"fourcc" example:"YUYV" doc:"Pixel format"`
	Field        uint32 `json:"field" example:"1" doc:"Interlacing order"`
	BytesPerLine uint32 `json:"bytes_per_line" example:"640" doc:"Line stride in bytes"`
	SizeImage    uint32 `json:"size_image" example:"153600" doc:"Frame size in bytes"`
	Colorspace   uint32 `json:"colorspace" example:"1" doc:"Colorspace tag"`
}

type FormatData struct {
	Type uint32        `json:"type" example:"1" doc:"Buffer type"`
	Pix  PixFormatData `json:"pix"`
}

type FormatResponse struct {
	Body FormatData
}

// FormatRequestData is the body of negotiate and commit requests.
type FormatRequestData struct {
	Type   uint32 `json:"type,omitempty" example:"1" doc:"Buffer type, capture when omitted"`
	FourCC string `json:"fourcc" example:"RGB3" minLength:"4" maxLength:"4" doc:"Requested pixel format"`
	Width  uint32 `json:"width,omitempty" example:"320" doc:"Requested width, ignored by negotiate"`
	Height uint32 `json:"height,omitempty" example:"240" doc:"Requested height, ignored by negotiate"`
}

// Buffer models
type RequestBuffersData struct {
	Count  uint32 `json:"count" example:"4" doc:"Number of buffers"`
	Type   uint32 `json:"type,omitempty" example:"1" doc:"Buffer type"`
	Memory uint32 `json:"memory,omitempty" example:"1" doc:"Memory mode"`
}

type RequestBuffersResponse struct {
	Body RequestBuffersData
}

type BufferData struct {
	Index     uint32 `json:"index" example:"0" doc:"Buffer index"`
	Type      uint32 `json:"type" example:"1" doc:"Buffer type"`
	Memory    uint32 `json:"memory" example:"1" doc:"Memory mode"`
	Length    uint32 `json:"length" example:"233472" doc:"Buffer length in bytes"`
	BytesUsed uint32 `json:"bytes_used" example:"153600" doc:"Bytes of the active format"`
	Flags     uint32 `json:"flags" doc:"Buffer flags"`
	Offset    uint32 `json:"offset" doc:"Mapping offset"`
	Timestamp string `json:"timestamp,omitempty" example:"2025-01-27T10:30:00.000000000Z" doc:"Frame timestamp, dequeue only"`
	Sequence  uint32 `json:"sequence" doc:"Frame sequence, dequeue only"`
	Fresh     bool   `json:"fresh" doc:"Whether the dequeue returned a frame not seen before"`
}

type BufferResponse struct {
	Body BufferData
}

// BufferRequestData is the body of enqueue and dequeue requests.
type BufferRequestData struct {
	Type        uint32 `json:"type,omitempty" example:"1" doc:"Buffer type, capture when omitted"`
	Memory      uint32 `json:"memory,omitempty" example:"1" doc:"Memory mode, mmap when omitted"`
	Session     string `json:"session,omitempty" doc:"Session whose blocking mode and cursor apply (dequeue)"`
	NonBlocking bool   `json:"non_blocking,omitempty" doc:"Return immediately (dequeue without session)"`
}

// Input and standard models
type InputData struct {
	Index uint32 `json:"index" example:"0" doc:"Input index"`
	Name  string `json:"name" example:"smartcam input" doc:"Input name"`
	Type  uint32 `json:"type" example:"2" doc:"Input type"`
	Std   uint64 `json:"std" doc:"Supported standards"`
}

type InputResponse struct {
	Body InputData
}

type InputSelectionData struct {
	Input uint32 `json:"input" example:"0" doc:"Selected input"`
}

type InputSelectionResponse struct {
	Body InputSelectionData
}

type StandardData struct {
	Std  uint64 `json:"std" example:"4096" doc:"Standard bitmask"`
	Name string `json:"name,omitempty" example:"NTSC-M" doc:"Standard name"`
}

type StandardResponse struct {
	Body StandardData
}

// Streaming parameter models
type FramerateData struct {
	Numerator   uint32 `json:"numerator" example:"1"`
	Denominator uint32 `json:"denominator" example:"10"`
}

type ParmData struct {
	Type         uint32        `json:"type,omitempty" example:"1" doc:"Buffer type"`
	Capability   uint32        `json:"capability,omitempty" doc:"Parameter capability flags"`
	CaptureMode  uint32        `json:"capture_mode,omitempty"`
	TimePerFrame FramerateData `json:"time_per_frame" doc:"Frame interval"`
	ExtendedMode uint32        `json:"extended_mode,omitempty"`
	ReadBuffers  uint32        `json:"read_buffers,omitempty" example:"3"`
}

type ParmResponse struct {
	Body ParmData
}

// Control models
type ControlData struct {
	ID    uint32 `json:"id"`
	Name  string `json:"name,omitempty"`
	Value int32  `json:"value"`
}

type ControlResponse struct {
	Body ControlData
}

// Selection and crop models
type RectData struct {
	Left   int32  `json:"left"`
	Top    int32  `json:"top"`
	Width  uint32 `json:"width" example:"320"`
	Height uint32 `json:"height" example:"240"`
}

type SelectionData struct {
	Type   uint32   `json:"type" example:"1"`
	Target uint32   `json:"target" example:"2"`
	Rect   RectData `json:"rect"`
}

type SelectionResponse struct {
	Body SelectionData
}

type CropCapData struct {
	Type    uint32   `json:"type" example:"1"`
	Bounds  RectData `json:"bounds"`
	DefRect RectData `json:"defrect"`
}

type CropCapResponse struct {
	Body CropCapData
}

type CropData struct {
	Type uint32   `json:"type,omitempty" example:"1"`
	Rect RectData `json:"rect"`
}

type CropResponse struct {
	Body CropData
}

// Stats models
type DeviceStatsData struct {
	Device          string `json:"device" example:"video0"`
	FourCC          string `json:"fourcc" example:"YUYV"`
	Sequence        uint32 `json:"sequence" doc:"Latest frame sequence"`
	FramesSubmitted uint64 `json:"frames_submitted"`
	BytesSubmitted  uint64 `json:"bytes_submitted"`
	FreshDeliveries uint64 `json:"fresh_deliveries"`
	StaleDeliveries uint64 `json:"stale_deliveries"`
	Sessions        int    `json:"sessions"`
}

type DeviceStatsResponse struct {
	Body DeviceStatsData
}
