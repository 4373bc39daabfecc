package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/smartcam/internal/api/models"
	"github.com/smazurov/smartcam/internal/device"
)

type OpenSessionInput struct {
	DeviceInput
	Body models.OpenSessionData
}

type SessionInput struct {
	DeviceInput
	ID string `path:"id" doc:"Session identifier"`
}

type FrameWriteInput struct {
	SessionInput
	RawBody []byte `contentType:"application/octet-stream" doc:"Frame bytes in the active pixel format, or RGB24 to convert"`
}

type FrameReadInput struct {
	SessionInput
	Count int `query:"count" minimum:"0" doc:"Maximum bytes to read, the rest of the frame when omitted. Larger values give a short read."`
}

type SeekInput struct {
	SessionInput
	Body models.SeekData
}

var whences = map[string]int{
	"":        io.SeekStart,
	"start":   io.SeekStart,
	"current": io.SeekCurrent,
	"end":     io.SeekEnd,
}

func (s *Server) session(input SessionInput) (*device.Session, error) {
	if err := s.checkDevice(input.Name); err != nil {
		return nil, err
	}
	sess, ok := s.device.Session(input.ID)
	if !ok {
		return nil, errSessionNotFound(input.ID)
	}
	return sess, nil
}

func toSessionData(sess *device.Session) models.SessionData {
	return models.SessionData{ID: sess.ID(), NonBlocking: sess.NonBlocking(), Position: sess.Position()}
}

// registerSessionRoutes registers session lifecycle and the sequential data path.
func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "open-session",
		Method:        http.MethodPost,
		Path:          "/api/devices/{name}/sessions",
		Summary:       "Open Session",
		Description:   "Open a session with its own read position",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
		Security:      withAuth(),
		Errors:        []int{401, 404},
	}, func(ctx context.Context, input *OpenSessionInput) (*models.SessionResponse, error) {
		if err := s.checkDevice(input.Name); err != nil {
			return nil, err
		}
		sess, err := s.device.Open(device.OpenOptions{NonBlocking: input.Body.NonBlocking})
		if err != nil {
			return nil, deviceError(err)
		}
		return &models.SessionResponse{Body: toSessionData(sess)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "close-session",
		Method:        http.MethodDelete,
		Path:          "/api/devices/{name}/sessions/{id}",
		Summary:       "Close Session",
		Description:   "Close a session and release any call blocked on it",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusNoContent,
		Security:      withAuth(),
		Errors:        []int{401, 404},
	}, func(ctx context.Context, input *SessionInput) (*struct{}, error) {
		sess, err := s.session(*input)
		if err != nil {
			return nil, err
		}
		return nil, s.wrap(sess.Close())
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "write-frame",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/sessions/{id}/frame",
		Summary:     "Write Frame",
		Description: "Submit a producer frame. RGB24 input is converted to YUYV while YUYV is active.",
		Tags:        []string{"frames"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *FrameWriteInput) (*models.FrameWriteResponse, error) {
		sess, err := s.session(input.SessionInput)
		if err != nil {
			return nil, err
		}
		n, info, err := sess.WriteFrame(input.RawBody)
		if err != nil {
			return nil, deviceError(err)
		}
		return &models.FrameWriteResponse{
			Body: models.FrameWriteData{Bytes: n, Sequence: info.Sequence},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "read-frame",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/sessions/{id}/frame",
		Summary:     "Read Frame",
		Description: "Read frame bytes from the session's position. An empty body with X-End-Of-Frame: true " +
			"means the position reached the frame size; seek back to read again.",
		Tags:     []string{"frames"},
		Security: withAuth(),
		Errors:   []int{401, 404, 500},
	}, func(ctx context.Context, input *FrameReadInput) (*models.FrameReadResponse, error) {
		sess, err := s.session(input.SessionInput)
		if err != nil {
			return nil, err
		}
		// A read never returns more than one buffer's worth.
		count := s.device.BufferSize()
		if input.Count > 0 {
			count = min(input.Count, count)
		}
		buf := make([]byte, count)
		n, err := sess.Read(buf)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return nil, deviceError(err)
		}
		return &models.FrameReadResponse{
			ContentType: "application/octet-stream",
			Position:    strconv.FormatInt(sess.Position(), 10),
			EndOfFrame:  strconv.FormatBool(eof),
			Body:        buf[:n],
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "seek-session",
		Method:      http.MethodPut,
		Path:        "/api/devices/{name}/sessions/{id}/position",
		Summary:     "Seek",
		Description: "Move the session's read position",
		Tags:        []string{"frames"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *SeekInput) (*models.PositionResponse, error) {
		sess, err := s.session(input.SessionInput)
		if err != nil {
			return nil, err
		}
		pos, err := sess.Seek(input.Body.Offset, whences[input.Body.Whence])
		if err != nil {
			return nil, deviceError(err)
		}
		return &models.PositionResponse{Body: models.PositionData{Position: pos}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "poll-session",
		Method:      http.MethodGet,
		Path:        "/api/devices/{name}/sessions/{id}/poll",
		Summary:     "Poll",
		Description: "Report whether an undelivered frame is available to this session",
		Tags:        []string{"frames"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *SessionInput) (*models.ReadinessResponse, error) {
		sess, err := s.session(*input)
		if err != nil {
			return nil, err
		}
		r := sess.Poll()
		return &models.ReadinessResponse{Body: models.ReadinessData{Readable: r.Readable, Writable: r.Writable}}, nil
	})
}
