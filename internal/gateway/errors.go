package gateway

import "fmt"

// ConfigError means the embedding site's proxy refused to hand out the
// backend configuration (missing URL/secret, failed nonce check, or the proxy
// itself was unreachable). Fatal for the current run; shown once.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "portal configuration: " + e.Message
}

// APIError is a remote-reported failure: any HTTP status >= 400, or a proxied
// envelope with success=false. The message comes from the JSON error body
// when present, else it is synthesized from the status code.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// NetworkError is a transport-level failure raised before any HTTP status was
// known. Callers show a generic fallback message for these.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
