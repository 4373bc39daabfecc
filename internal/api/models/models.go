package models

import "github.com/smazurov/smartcam/internal/logging"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Device  string `json:"device" example:"video0" doc:"Served endpoint name"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version       string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit     string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate     string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	Driver        string `json:"driver" example:"smartcam" doc:"Reported driver name"`
	DriverVersion string `json:"driver_version" example:"0.1.0" doc:"Reported driver version"`
	GoVersion     string `json:"go_version" example:"go1.24.4" doc:"Go runtime version"`
	Platform      string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Log models
type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Most recent log entries, oldest first"`
	Count   int                `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
