package app

import (
	"strings"
	"time"

	"reportdesk/internal/reports"
)

const missing = "-"

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return missing
	}
	return t.Format("Jan 2, 2006")
}

func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return missing
	}
	return t.Format("Jan 2, 2006, 03:04 PM")
}

// FormatStatus renders PROCESSING as "processing".
func FormatStatus(s reports.Status) string {
	if s == "" {
		return missing
	}
	return strings.ReplaceAll(strings.ToLower(string(s)), "_", " ")
}

func OrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}

// ActionLabel names the button that moves s forward.
func ActionLabel(s reports.Status) string {
	switch s {
	case reports.StatusUploaded:
		return "Start Processing"
	case reports.StatusProcessing:
		return "Mark Complete"
	default:
		return missing
	}
}
