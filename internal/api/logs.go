package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/smartcam/internal/api/models"
	"github.com/smazurov/smartcam/internal/logging"
)

type LogsInput struct {
	Lines int `query:"lines" default:"100" minimum:"1" maximum:"500" doc:"Number of recent entries to return"`
}

// registerLogRoutes registers the log history endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Return the most recent log entries held in memory",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *LogsInput) (*models.LogsResponse, error) {
		entries := logging.History().Last(input.Lines)
		if entries == nil {
			entries = []logging.LogEntry{}
		}
		return &models.LogsResponse{Body: models.LogsData{Entries: entries, Count: len(entries)}}, nil
	})
}
