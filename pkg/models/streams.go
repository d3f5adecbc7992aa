package models

// StreamData is one recording session of a user.
// Timestamps are kept as the upstream's RFC 3339 strings.
type StreamData struct {
	ID          string  `json:"id"`
	StartTime   string  `json:"start_time"`
	EndTime     *string `json:"end_time"`
	EventLogURL *string `json:"event_log_url"`
	VideoURL    *string `json:"video_url"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// IsLive reports whether the stream has not ended yet.
func (s StreamData) IsLive() bool {
	return s.EndTime == nil
}

// StreamsResponse is the body of GET /user/streams.
type StreamsResponse struct {
	Streams []StreamData `json:"streams"`
}
