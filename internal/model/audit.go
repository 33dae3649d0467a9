package model

import (
	"time"
)

// AuditLog is one settlement API call: who asked, what they asked for, and
// what the engine did about it. Signatures are redacted before the body is
// recorded.
type AuditLog struct {
	ID        string `json:"id"`         // request ID (UUID)
	Method    string `json:"method"`     // HTTP method
	Path      string `json:"path"`       // request path
	IP        string `json:"ip"`         // client IP
	UserAgent string `json:"user_agent"` // client UA

	RequestBody  string `json:"request_body"` // redacted request body
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context: order hashes, execution counts, engine errors.
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
