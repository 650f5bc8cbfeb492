package dto

import "liedar/internal/pipeline"

// StatusResponse is served by GET /api/status.
type StatusResponse struct {
	Session    pipeline.Status  `json:"session"`
	QueueDepth int              `json:"queue_depth"`
	Latest     *pipeline.Record `json:"latest,omitempty"`
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}
