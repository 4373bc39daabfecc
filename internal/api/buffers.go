package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/smartcam/internal/api/models"
	"github.com/smazurov/smartcam/internal/device"
	"github.com/smazurov/smartcam/pkg/linuxav/v4l2"
)

type RequestBuffersInput struct {
	DeviceInput
	Body models.RequestBuffersData
}

type QueryBufferInput struct {
	DeviceIndexInput
	Type uint32 `query:"type" default:"1" doc:"Buffer type"`
}

type BufferRequestInput struct {
	DeviceIndexInput
	Body models.BufferRequestData
}

type MappingInput struct {
	DeviceInput
	Length int `query:"length" minimum:"1" doc:"Bytes to map, the whole buffer when omitted"`
}

func toBufferData(b device.Buffer) models.BufferData {
	data := models.BufferData{
		Index:     b.Index,
		Type:      uint32(b.Type),
		Memory:    uint32(b.Memory),
		Length:    b.Length,
		BytesUsed: b.BytesUsed,
		Flags:     b.Flags,
		Offset:    b.Offset,
		Sequence:  b.Sequence,
		Fresh:     b.Fresh,
	}
	if !b.Timestamp.IsZero() {
		data.Timestamp = b.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return data
}

func toBuffer(index uint32, req models.BufferRequestData) device.Buffer {
	b := device.Buffer{Index: index, Type: bufType(req.Type), Memory: v4l2.Memory(req.Memory)}
	if b.Memory == 0 {
		b.Memory = v4l2.MemoryMMAP
	}
	return b
}

// registerBufferRoutes registers the streaming buffer endpoints.
func (s *Server) registerBufferRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "request-buffers",
		Method:      http.MethodPost,
		Path:        "/api/devices/{name}/buffers",
		Summary:     "Request Buffers",
		Description: "Negotiate the buffer count, clamped to 1..7. Every buffer aliases the same frame.",
		Tags:        []string{"buffers"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *RequestBuffersInput) (*models.RequestBuffersResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		r := device.RequestBuffers{
			Count:  input.Body.Count,
			Type:   bufType(input.Body.Type),
			Memory: v4l2.Memory(input.Body.Memory),
		}
		if err := s.device.RequestBuffers(&r); err != nil {
			return nil, deviceError(err)
		}
		return &models.RequestBuffersResponse{
			Body: models.RequestBuffersData{Count: r.Count, Type: uint32(r.Type), Memory: uint32(r.Memory)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "query-buffer",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/buffers/{index}",
		Summary:     "Query Buffer",
		Description: "Describe a buffer, including its mapping offset",
		Tags:        []string{"buffers"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *QueryBufferInput) (*models.BufferResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		b := device.Buffer{Index: input.Index, Type: v4l2.BufType(input.Type)}
		if err := s.device.QueryBuffer(&b); err != nil {
			return nil, deviceError(err)
		}
		return &models.BufferResponse{Body: toBufferData(b)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "queue-buffer",
		Method:      http.MethodPost,
		Path:        "/api/devices/{name}/buffers/{index}/queue",
		Summary:     "Queue Buffer",
		Description: "Hand a buffer back to the device. Nothing is retained.",
		Tags:        []string{"buffers"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *BufferRequestInput) (*models.BufferResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		b := toBuffer(input.Index, input.Body)
		if err := s.device.QueueBuffer(&b); err != nil {
			return nil, deviceError(err)
		}
		return &models.BufferResponse{Body: toBufferData(b)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "dequeue-buffer",
		Method:      http.MethodPost,
		Path:        "/api/devices/{name}/buffers/{index}/dequeue",
		Summary:     "Dequeue Buffer",
		Description: "Take the current frame. A blocking dequeue waits up to the dequeue timeout for a new frame, " +
			"then returns whatever frame is held. With a session, the session's blocking mode and cursor apply.",
		Tags:     []string{"buffers"},
		Security: withAuth(),
		Errors:   []int{400, 401, 404},
	}, func(ctx context.Context, input *BufferRequestInput) (*models.BufferResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		b := toBuffer(input.Index, input.Body)
		var err error
		if id := input.Body.Session; id != "" {
			sess, ok := s.device.Session(id)
			if !ok {
				return nil, errSessionNotFound(id)
			}
			err = sess.DequeueBufferContext(ctx, &b)
		} else {
			err = s.device.DequeueBuffer(ctx, &b, !input.Body.NonBlocking)
		}
		if err != nil {
			return nil, deviceError(err)
		}
		return &models.BufferResponse{Body: toBufferData(b)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "map-buffer",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/mmap",
		Summary:     "Map Buffer",
		Description: "Map the frame buffer and return the mapped bytes. Lengths are rounded up to whole pages.",
		Tags:        []string{"buffers"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 507},
	}, func(ctx context.Context, input *MappingInput) (*models.MappingResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		length := input.Length
		if length == 0 {
			length = s.device.BufferSize()
		}
		m, err := s.device.Map(length)
		if err != nil {
			return nil, deviceError(err)
		}
		defer m.Close()

		body := make([]byte, m.Len())
		copy(body, m.Bytes())
		return &models.MappingResponse{
			ContentType: "application/octet-stream",
			Pages:       strconv.Itoa(m.NumPages()),
			Body:        body,
		}, nil
	})
}
