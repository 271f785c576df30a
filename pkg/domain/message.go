package domain

import "fmt"

// Severity ranks diagnostic messages.
type Severity int

// Message severities, lowest first.
const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Message is a diagnostic queued during request processing for display in the
// render phase. ClientID is empty for view-level messages.
type Message struct {
	ClientID string   `json:"client_id,omitempty"`
	Severity Severity `json:"severity"`
	Summary  string   `json:"summary"`
	Detail   string   `json:"detail,omitempty"`
}

func (m Message) String() string {
	if m.ClientID == "" {
		return fmt.Sprintf("[%s] %s", m.Severity, m.Summary)
	}
	return fmt.Sprintf("[%s] %s: %s", m.Severity, m.ClientID, m.Summary)
}
