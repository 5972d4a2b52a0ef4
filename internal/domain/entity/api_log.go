package entity

import "time"

// APILog represents an audit entry for a request made to a provider.
// Token values are never recorded.
type APILog struct {
	ID           int64     `json:"id"`
	Provider     Provider  `json:"provider"`
	Operation    string    `json:"operation"` // exchange_code, refresh_token, fetch_identity
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	ResponseBody string    `json:"response_body,omitempty"` // only kept for failed requests
	StatusCode   int       `json:"status_code"`
	Duration     int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
