// Package api provides the HTTP handlers of the chat backend.
package api

// API capability levels reported on the status endpoint. Versioning refers
// to capability levels, not URL prefixes; every endpoint lives under /api.
const (
	// APIVersion1 is the original API version
	APIVersion1 = 1

	// CurrentAPIVersion is the highest API version supported by this server
	CurrentAPIVersion = APIVersion1
)

// APICapabilities describes the features available at each API version
var APICapabilities = map[int][]string{
	APIVersion1: {
		"auth-cookie",
		"direct-messages",
		"realtime",
	},
}

// StatusResponse is the response from the status endpoint
type StatusResponse struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	State        string   `json:"state"`
	Environment  string   `json:"environment"`
	Storage      string   `json:"storage"`
	APIVersion   int      `json:"api_version"`
	Capabilities []string `json:"capabilities,omitempty"`
}
