package types

import (
	"encoding/json"
	"time"
)

// RegisterRequest enrolls an account with the credentials obtained by the
// OAuth login.
type RegisterRequest struct {
	ID          int64  `json:"id"`
	Token       string `json:"token"`
	TokenSecret string `json:"token_secret"`
}

// ModeRequest switches the mode of an account. Mode is a name or a number.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// PostRequest confirms an archived tweet. A nil Content keeps the stored text.
type PostRequest struct {
	Content *string `json:"content,omitempty"`
}

type PostResponse struct {
	StatusID int64 `json:"status_id"`
}

// StatsResponse is served on /stats. Workers holds the per worker counters
// of the collector as it serializes them.
type StatsResponse struct {
	Stats
	LastSweep *time.Time      `json:"last_sweep,omitempty"`
	Counters  map[string]uint `json:"counters"`
	Workers   json.RawMessage `json:"workers,omitempty"`
}

type APIError struct {
	Error string `json:"error"`
}
