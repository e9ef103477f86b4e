package model

import "encoding/json"

// Dashboard is kept raw: its metric set is decided server-side.
type Dashboard map[string]json.RawMessage

type TrackEventRequest struct {
	EventType string         `json:"event_type"`
	Metadata  map[string]any `json:"metadata"`
}
