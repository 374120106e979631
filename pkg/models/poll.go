package models

import "time"

// ProbeError is the structured failure carried in probe results.
type ProbeError struct {
	ID      string `json:"Id"`
	Message string `json:"Message"`
}

func (e *ProbeError) Error() string {
	return e.ID + ": " + e.Message
}

// Structured failure identifiers reported by probes.
const (
	ErrIDNoResponses          = "NO_RESPONSES_RECEIVED"
	ErrIDAddressDisabled      = "ADDRESS_DISABLED"
	ErrIDUnsupportedVersion   = "UNSUPPORTED_ADDRESS_VERSION"
	ErrIDInvalidAddressIndex  = "INVALID_ADDRESS_INDEX"
	ErrIDNoIPAddresses        = "NO_IP_ADDRESSES"
	ErrIDSNMP                 = "SNMP_ERROR"
	ErrIDInvalidConfiguration = "INVALID_CONFIGURATION"
)

// ProbeResult is what a probe returns for one device. Device-side failures
// (unreachable host, SNMP timeout) are expressed as Success=false with an
// Error, never as a Go error.
type ProbeResult struct {
	Success bool        `json:"Success"`
	Error   *ProbeError `json:"Error,omitempty"`
	Data    any         `json:"Data,omitempty"`
}

// Failure builds an unsuccessful ProbeResult.
func Failure(id, message string) ProbeResult {
	return ProbeResult{Error: &ProbeError{ID: id, Message: message}}
}

// ProbeOutcome is the per-probe entry of a poll record.
type ProbeOutcome struct {
	Success   bool         `json:"success"`
	ElapsedMs float64      `json:"elapsed_ms"`
	Error     string       `json:"error,omitempty"`
	Result    *ProbeResult `json:"result,omitempty"`
}

// PollStats is the finalized content of a poll record.
type PollStats struct {
	TotalTime time.Duration           `json:"total_time"`
	Probes    map[string]ProbeOutcome `json:"probes"`
}

// PollRecord is one execution of all enabled probes for one device.
type PollRecord struct {
	ID          string                  `json:"id"`
	DeviceID    string                  `json:"device_id"`
	StartedAt   time.Time               `json:"started_at"`
	FinalizedAt *time.Time              `json:"finalized_at,omitempty"`
	PollTimeMs  *float64                `json:"poll_time_ms,omitempty"`
	Probes      map[string]ProbeOutcome `json:"probes,omitempty"`
}

// LastResult is the most recent poll snapshot for a device.
type LastResult struct {
	DeviceID   string                  `json:"device_id"`
	PollTimeMs float64                 `json:"poll_time_ms"`
	Probes     map[string]ProbeOutcome `json:"probes"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
