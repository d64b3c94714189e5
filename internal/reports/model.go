// Package reports is the client for the /reports resource.
package reports

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeLabReport        Type = "LAB_REPORT"
	TypeImaging          Type = "IMAGING"
	TypePathology        Type = "PATHOLOGY"
	TypePrescription     Type = "PRESCRIPTION"
	TypeDischargeSummary Type = "DISCHARGE_SUMMARY"
	TypeOther            Type = "OTHER"
)

var Types = []Type{
	TypeLabReport,
	TypeImaging,
	TypePathology,
	TypePrescription,
	TypeDischargeSummary,
	TypeOther,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Label is the human form, e.g. "Lab Report".
func (t Type) Label() string {
	words := strings.Split(strings.ToLower(string(t)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

type Status string

const (
	StatusUploaded   Status = "UPLOADED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses is the workflow in order.
var Statuses = []Status{StatusUploaded, StatusProcessing, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus accepts any case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

type Report struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Type       Type      `json:"type"`
	ReportDate Date      `json:"reportDate"`
	Status     Status    `json:"status"`
	Summary    string    `json:"summary,omitempty"`
	FilePath   string    `json:"filePath,omitempty"`
	CreatedAt  Timestamp `json:"createdAt"`
	UpdatedAt  Timestamp `json:"updatedAt"`
}

const DateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("report date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Some servers send a full timestamp here.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("report date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// timestampLayouts covers RFC 3339 and zone-less local date-times.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp is a server time. Zone-less values are read as local time.
type Timestamp struct {
	time.Time
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
