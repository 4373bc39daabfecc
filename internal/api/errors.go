package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/smartcam/internal/device"
)

// statusForCode maps device error codes onto HTTP statuses.
func statusForCode(code device.ErrorCode) int {
	switch code {
	case device.CodeInvalidArgument:
		return http.StatusBadRequest
	case device.CodeNotSupported:
		return http.StatusNotImplemented
	case device.CodeOutOfMemory:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// deviceError converts a device failure into a problem response whose
// detail carries the failing operation and error code.
func deviceError(err error) error {
	detail := &huma.ErrorDetail{Message: err.Error()}
	var de *device.Error
	if errors.As(err, &de) {
		detail.Location = de.Op
		detail.Value = string(de.Code)
		return huma.NewError(statusForCode(de.Code), de.Message, detail)
	}
	return huma.NewError(http.StatusInternalServerError, "device operation failed", detail)
}

func errDeviceNotFound(name string) error {
	return huma.Error404NotFound("device not found", &huma.ErrorDetail{
		Message:  "no endpoint named " + name,
		Location: "path.name",
		Value:    name,
	})
}

func errSessionNotFound(id string) error {
	return huma.Error404NotFound("session not found", &huma.ErrorDetail{
		Message:  "no open session " + id,
		Location: "path.id",
		Value:    id,
	})
}
