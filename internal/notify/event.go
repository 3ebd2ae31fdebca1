// Package notify reports scheduler progress. Every event is logged; final
// success and fatal session failures are also pushed to an optional channel.
package notify

import "time"

type Severity int

const (
	Info Severity = iota
	Warning
	Success
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Success:
		return "success"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Pushed reports whether events of this severity leave the process.
func (s Severity) Pushed() bool { return s == Success || s == Fatal }

type Event struct {
	Severity  Severity
	Message   string
	Timestamp time.Time
}

func (e Event) title() string {
	switch e.Severity {
	case Success:
		return "Appointment rescheduled"
	case Fatal:
		return "Appointment scheduler failure"
	default:
		return "Appointment scheduler"
	}
}
