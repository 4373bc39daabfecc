package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/smartcam/internal/api/models"
	"github.com/smazurov/smartcam/internal/device"
	"github.com/smazurov/smartcam/internal/metrics"
	"github.com/smazurov/smartcam/internal/version"
	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

// DeviceInput selects the endpoint by name.
type DeviceInput struct {
	Name string `path:"name" example:"video0" doc:"Endpoint name"`
}

// DeviceIndexInput selects an indexed item of the endpoint.
type DeviceIndexInput struct {
	DeviceInput
	Index uint32 `path:"index" example:"0" doc:"Zero-based index"`
}

// DeviceTypeInput carries the buffer type as a query parameter.
type DeviceTypeInput struct {
	DeviceInput
	Type uint32 `query:"type" default:"1" doc:"Buffer type"`
}

type FormatRequestInput struct {
	DeviceInput
	Body models.FormatRequestData
}

type InputSelectionInput struct {
	DeviceInput
	Body models.InputSelectionData
}

type StandardInput struct {
	DeviceInput
	Body models.StandardData
}

type ParmInput struct {
	DeviceInput
	Body models.ParmData
}

type ControlInput struct {
	DeviceInput
	ID uint32 `path:"id" doc:"Control identifier"`
}

type SetControlInput struct {
	ControlInput
	Body struct {
		Value int32 `json:"value" doc:"New control value"`
	}
}

type SelectionInput struct {
	DeviceTypeInput
	Target uint32 `query:"target" default:"2" doc:"Selection target"`
}

type CropInput struct {
	DeviceInput
	Body models.CropData
}

var capabilityNames = []struct {
	flag uint32
	name string
}{
	{v4l2.CapVideoCapture, "Video Capture"},
	{v4l2.CapVideoOutput, "Video Output"},
	{v4l2.CapReadWrite, "Read/Write I/O"},
	{v4l2.CapStreaming, "Streaming I/O"},
}

// translateCapabilities converts capability flags to readable strings
func translateCapabilities(caps uint32) []string {
	names := []string{}
	for _, c := range capabilityNames {
		if caps&c.flag != 0 {
			names = append(names, c.name)
		}
	}
	return names
}

func stdName(std v4l2.StdID) string {
	if std == v4l2.StdNTSCM {
		return "NTSC-M"
	}
	return ""
}

// bufType returns t, defaulting an omitted type to capture.
func bufType(t uint32) v4l2.BufType {
	if t == 0 {
		return v4l2.BufTypeVideoCapture
	}
	return v4l2.BufType(t)
}

func toRectData(r v4l2.Rect) models.RectData {
	return models.RectData{Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height}
}

func toPixFormatData(p device.PixFormat) models.PixFormatData {
	return models.PixFormatData{
		Width:        p.Width,
		Height:       p.Height,
		FourCC:       p.FourCC(),
		Field:        uint32(p.Field),
		BytesPerLine: p.BytesPerLine,
		SizeImage:    p.SizeImage,
		Colorspace:   uint32(p.Colorspace),
	}
}

func toFormatResponse(f device.Format) *models.FormatResponse {
	return &models.FormatResponse{Body: models.FormatData{Type: uint32(f.Type), Pix: toPixFormatData(f.Pix)}}
}

func toFormat(req models.FormatRequestData) device.Format {
	return device.Format{
		Type: bufType(req.Type),
		Pix: device.PixFormat{
			Width:       req.Width,
			Height:      req.Height,
			PixelFormat: v4l2.ParseFourCC(req.FourCC),
		},
	}
}

// checkDevice rejects requests addressed to another endpoint.
func (s *Server) checkDevice(name string) error {
	if name != s.device.Name() {
		return errDeviceNotFound(name)
	}
	return nil
}

// registerDeviceRoutes registers the capture control endpoints.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "query-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/capabilities",
		Summary:     "Query Capabilities",
		Description: "Report the driver identity and capability flags",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceInput) (*models.CapabilityResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		caps := s.device.QueryCapabilities()
		return &models.CapabilityResponse{
			Body: models.CapabilityData{
				Driver:          caps.Driver,
				Card:            caps.Card,
				BusInfo:         caps.BusInfo,
				Version:         version.FormatDriverVersion(caps.Version),
				Capabilities:    caps.Capabilities,
				DeviceCaps:      caps.DeviceCaps,
				CapabilityNames: translateCapabilities(caps.DeviceCaps),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "enumerate-format",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/formats/{index}",
		Summary:     "Enumerate Format",
		Description: "Describe the catalog format at the given index",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *DeviceIndexInput) (*models.FormatDescResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		desc := device.FormatDesc{Index: input.Index, Type: v4l2.BufTypeVideoCapture}
		if err := s.device.EnumFormat(&desc); err != nil {
			return nil, deviceError(err)
		}
		return &models.FormatDescResponse{
			Body: models.FormatDescData{
				Index:       desc.Index,
				Type:        uint32(desc.Type),
				Description: desc.Description,
				PixelFormat: desc.PixelFormat,
				FourCC:      v4l2.FormatFourCC(desc.PixelFormat),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-format",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/format",
		Summary:     "Get Format",
		Description: "Report the active format",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceInput) (*models.FormatResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		var f device.Format
		if err := s.device.GetFormat(&f); err != nil {
			return nil, deviceError(err)
		}
		return toFormatResponse(f), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-format",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/format",
		Summary:     "Set Format",
		Description: "Activate the catalog format matching pixel format, width and height exactly",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *FormatRequestInput) (*models.FormatResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		f := toFormat(input.Body)
		if err := s.device.SetFormat(&f); err != nil {
			return nil, deviceError(err)
		}
		return toFormatResponse(f), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "try-format",
		Method:      http.MethodPost,
		Path:        "/api/devices/{name}/format/try",
		Summary:     "Try Format",
		Description: "Negotiate a format by pixel format without changing the active one",
		Tags:        []string{"formats"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *FormatRequestInput) (*models.FormatResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		f := toFormat(input.Body)
		if err := s.device.TryFormat(&f); err != nil {
			return nil, deviceError(err)
		}
		return toFormatResponse(f), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stream-on",
		Method:        http.MethodPost,
		Path:          "/api/devices/{name}/stream/on",
		Summary:       "Stream On",
		Description:   "Start streaming. Streaming is always active, so this only acknowledges.",
		Tags:          []string{"streaming"},
		DefaultStatus: http.StatusNoContent,
		Security:      withAuth(),
		Errors:        []int{401, 404},
	}, func(ctx context.Context, input *DeviceTypeInput) (*struct{}, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		return nil, s.wrap(s.device.StreamOn(v4l2.BufType(input.Type)))
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stream-off",
		Method:        http.MethodPost,
		Path:          "/api/devices/{name}/stream/off",
		Summary:       "Stream Off",
		Description:   "Stop streaming. Accepted unconditionally.",
		Tags:          []string{"streaming"},
		DefaultStatus: http.StatusNoContent,
		Security:      withAuth(),
		Errors:        []int{401, 404},
	}, func(ctx context.Context, input *DeviceTypeInput) (*struct{}, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		return nil, s.wrap(s.device.StreamOff(v4l2.BufType(input.Type)))
	})

	s.registerInputRoutes()
	s.registerControlRoutes()
	s.registerCropRoutes()

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-stats",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/stats",
		Summary:     "Device Stats",
		Description: "Frame and delivery counters collected from device events",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceInput) (*models.DeviceStatsResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		var f device.Format
		_ = s.device.GetFormat(&f)
		data := models.DeviceStatsData{
			Device:   input.Name,
			FourCC:   f.Pix.FourCC(),
			Sequence: s.device.FrameInfo().Sequence,
			Sessions: s.device.SessionCount(),
		}
		if st := metrics.GetDeviceStats(input.Name); st != nil {
			data.FramesSubmitted = st.FramesSubmitted
			data.BytesSubmitted = st.BytesSubmitted
			data.FreshDeliveries = st.FreshDeliveries
			data.StaleDeliveries = st.StaleDeliveries
		}
		return &models.DeviceStatsResponse{Body: data}, nil
	})
}

func (s *Server) registerInputRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "enumerate-input",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/inputs/{index}",
		Summary:     "Enumerate Input",
		Description: "Describe the input at the given index. Only input 0 exists.",
		Tags:        []string{"inputs"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *DeviceIndexInput) (*models.InputResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		in := device.Input{Index: input.Index}
		if err := s.device.EnumInput(&in); err != nil {
			return nil, deviceError(err)
		}
		return &models.InputResponse{
			Body: models.InputData{Index: in.Index, Name: in.Name, Type: in.Type, Std: uint64(in.Std)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-input",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/input",
		Summary:     "Get Input",
		Tags:        []string{"inputs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceInput) (*models.InputSelectionResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		return &models.InputSelectionResponse{Body: models.InputSelectionData{Input: s.device.GetInput()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-input",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/input",
		Summary:     "Set Input",
		Tags:        []string{"inputs"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *InputSelectionInput) (*models.InputSelectionResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		if err := s.device.SetInput(input.Body.Input); err != nil {
			return nil, deviceError(err)
		}
		return &models.InputSelectionResponse{Body: input.Body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-standard",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/standard",
		Summary:     "Get Standard",
		Tags:        []string{"inputs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceInput) (*models.StandardResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		std := s.device.GetStd()
		return &models.StandardResponse{Body: models.StandardData{Std: uint64(std), Name: stdName(std)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-standard",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/standard",
		Summary:     "Set Standard",
		Description: "Accepted unconditionally; the reported standard does not change",
		Tags:        []string{"inputs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *StandardInput) (*models.StandardResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		std := v4l2.StdID(input.Body.Std)
		if err := s.device.SetStd(std); err != nil {
			return nil, deviceError(err)
		}
		return &models.StandardResponse{Body: models.StandardData{Std: uint64(std), Name: stdName(std)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-params",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/params",
		Summary:     "Get Streaming Parameters",
		Tags:        []string{"streaming"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *DeviceTypeInput) (*models.ParmResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		p := device.StreamParm{Type: v4l2.BufType(input.Type)}
		if err := s.device.GetParm(&p); err != nil {
			return nil, deviceError(err)
		}
		return &models.ParmResponse{Body: toParmData(p)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-params",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/params",
		Summary:     "Set Streaming Parameters",
		Description: "Accepted and echoed back; the frame interval does not change",
		Tags:        []string{"streaming"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *ParmInput) (*models.ParmResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		b := input.Body
		p := device.StreamParm{
			Type: bufType(b.Type),
			Capture: device.CaptureParm{
				Capability:   b.Capability,
				CaptureMode:  b.CaptureMode,
				TimePerFrame: v4l2.Framerate{Numerator: b.TimePerFrame.Numerator, Denominator: b.TimePerFrame.Denominator},
				ExtendedMode: b.ExtendedMode,
				ReadBuffers:  b.ReadBuffers,
			},
		}
		if err := s.device.SetParm(&p); err != nil {
			return nil, deviceError(err)
		}
		return &models.ParmResponse{Body: toParmData(p)}, nil
	})
}

func toParmData(p device.StreamParm) models.ParmData {
	return models.ParmData{
		Type:        uint32(p.Type),
		Capability:  p.Capture.Capability,
		CaptureMode: p.Capture.CaptureMode,
		TimePerFrame: models.FramerateData{
			Numerator:   p.Capture.TimePerFrame.Numerator,
			Denominator: p.Capture.TimePerFrame.Denominator,
		},
		ExtendedMode: p.Capture.ExtendedMode,
		ReadBuffers:  p.Capture.ReadBuffers,
	}
}

func (s *Server) registerControlRoutes() {
	notImplemented := []int{401, 404, 501}

	huma.Register(s.api, huma.Operation{
		OperationID: "query-control",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/controls/{id}",
		Summary:     "Query Control",
		Description: "The endpoint has no controls; this always fails with 501",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      notImplemented,
	}, func(ctx context.Context, input *ControlInput) (*models.ControlResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		q := device.QueryCtrl{ID: input.ID}
		if err := s.device.QueryControl(&q); err != nil {
			return nil, deviceError(err)
		}
		return &models.ControlResponse{Body: models.ControlData{ID: q.ID, Name: q.Name}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-control",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/controls/{id}/value",
		Summary:     "Get Control",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      notImplemented,
	}, func(ctx context.Context, input *ControlInput) (*models.ControlResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		c := device.Control{ID: input.ID}
		if err := s.device.GetControl(&c); err != nil {
			return nil, deviceError(err)
		}
		return &models.ControlResponse{Body: models.ControlData{ID: c.ID, Value: c.Value}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-control",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/controls/{id}/value",
		Summary:     "Set Control",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      notImplemented,
	}, func(ctx context.Context, input *SetControlInput) (*models.ControlResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		c := device.Control{ID: input.ID, Value: input.Body.Value}
		if err := s.device.SetControl(&c); err != nil {
			return nil, deviceError(err)
		}
		return &models.ControlResponse{Body: models.ControlData{ID: c.ID, Value: c.Value}}, nil
	})
}

func (s *Server) registerCropRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-selection",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/selection",
		Summary:     "Get Selection",
		Description: "Report the crop bounds (target 2) or default crop (target 1)",
		Tags:        []string{"crop"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *SelectionInput) (*models.SelectionResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		sel := device.Selection{Type: v4l2.BufType(input.Type), Target: input.Target}
		if err := s.device.GetSelection(&sel); err != nil {
			return nil, deviceError(err)
		}
		return &models.SelectionResponse{
			Body: models.SelectionData{Type: uint32(sel.Type), Target: sel.Target, Rect: toRectData(sel.Rect)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "crop-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/cropcap",
		Summary:     "Crop Capabilities",
		Tags:        []string{"crop"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceInput) (*models.CropCapResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		var c device.CropCap
		if err := s.device.CropCapabilities(&c); err != nil {
			return nil, deviceError(err)
		}
		return &models.CropCapResponse{
			Body: models.CropCapData{Type: uint32(c.Type), Bounds: toRectData(c.Bounds), DefRect: toRectData(c.DefRect)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-crop",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/crop",
		Summary:     "Get Crop",
		Description: "Cropping is not supported; this always fails with 501",
		Tags:        []string{"crop"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 501},
	}, func(ctx context.Context, input *DeviceInput) (*models.CropResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		var c device.Crop
		if err := s.device.GetCrop(&c); err != nil {
			return nil, deviceError(err)
		}
		return &models.CropResponse{Body: models.CropData{Type: uint32(c.Type), Rect: toRectData(c.Rect)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-crop",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/crop",
		Summary:     "Set Crop",
		Description: "Accepted and ignored",
		Tags:        []string{"crop"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *CropInput) (*models.CropResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		r := input.Body.Rect
		c := device.Crop{
			Type: bufType(input.Body.Type),
			Rect: v4l2.Rect{Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height},
		}
		if err := s.device.SetCrop(&c); err != nil {
			return nil, deviceError(err)
		}
		return &models.CropResponse{Body: models.CropData{Type: uint32(c.Type), Rect: toRectData(c.Rect)}}, nil
	})
}

// wrap converts a device error for return from a handler.
func (s *Server) wrap(err error) error {
	if err == nil {
		return nil
	}
	return deviceError(err)
}
