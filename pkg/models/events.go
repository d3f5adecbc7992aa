package models

import "encoding/json"

// Event is an upstream event record. Its schema is owned by the upstream
// and passed through unchanged.
type Event = json.RawMessage

// EventsResponse is the body of GET /user/events.
type EventsResponse struct {
	Events []Event `json:"events"`
}
