package serving

import "time"

// Method is the value reported in every OCR response envelope.
const Method = "Handler Pipeline OCR"

// Request is one inference request: the raw image bytes plus the
// declared media type, if the caller sent one.
type Request struct {
	Image []byte
	// ContentType is advisory; the pipeline never sniffs content.
	ContentType string
}

// Details carries the diagnostic block of a successful response.
type Details struct {
	CharacterCount       int               `json:"character_count"`
	HandlerInfo          map[string]string `json:"handler_info"`
	Warnings             []string          `json:"warnings"`
	MetadataCompleteness string            `json:"metadata_completeness"`
}

// Response is the envelope returned for every inference request.
// Status, ProcessingTime, Timestamp, Method, and CoreVersion are
// always present; Data/Confidence/HandlerVersions/Details only on
// success, Message only on failure.
type Response struct {
	Status          bool              `json:"status"`
	Data            string            `json:"data,omitempty"`
	Confidence      *float64          `json:"confidence,omitempty"`
	Message         string            `json:"message,omitempty"`
	ProcessingTime  float64           `json:"processing_time"`
	Timestamp       string            `json:"timestamp"`
	Method          string            `json:"method"`
	CoreVersion     string            `json:"core_version"`
	HandlerVersions map[string]string `json:"handler_versions,omitempty"`
	Details         *Details          `json:"details,omitempty"`

	// HTTPStatus is the HTTP-equivalent status for the transport
	// layer: 200 for business outcomes, 400 for malformed input,
	// 503 when the pipeline is not ready.
	HTTPStatus int `json:"-"`
}

// Health is the read-only health report.
type Health struct {
	Status          string            `json:"status"`
	ModelLoaded     bool              `json:"model_loaded"`
	Version         string            `json:"version"`
	Uptime          float64           `json:"uptime"`
	HandlerVersions map[string]string `json:"handler_versions"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
