// Package fakeapi is an in-memory implementation of the report API used for
// tests and local demos. It keeps nothing on disk.
package fakeapi

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    localTime `json:"createdAt"`
	UpdatedAt    localTime `json:"updatedAt"`
}

type ReportStatus string

const (
	StatusUploaded   ReportStatus = "UPLOADED"
	StatusProcessing ReportStatus = "PROCESSING"
	StatusCompleted  ReportStatus = "COMPLETED"
)

// validTransition is the server-side half of the workflow check.
func validTransition(from, to ReportStatus) bool {
	switch from {
	case StatusUploaded:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted
	default:
		return false
	}
}

var reportTypes = map[string]bool{
	"LAB_REPORT":        true,
	"IMAGING":           true,
	"PATHOLOGY":         true,
	"PRESCRIPTION":      true,
	"DISCHARGE_SUMMARY": true,
	"OTHER":             true,
}

type Report struct {
	ID         int64        `json:"id"`
	OwnerID    int64        `json:"-"`
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	FilePath   string       `json:"filePath"`
	Status     ReportStatus `json:"status"`
	Summary    *string      `json:"summary"`
	ReportDate string       `json:"reportDate"`
	CreatedAt  localTime    `json:"createdAt"`
	UpdatedAt  localTime    `json:"updatedAt"`

	content []byte
}

// localTime serializes without a zone, like the production backend does.
type localTime time.Time

const localTimeLayout = "2006-01-02T15:04:05"

func (t localTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(time.Time(t).Format(localTimeLayout))
}

func (t *localTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		*t = localTime{}
		return err
	}
	parsed, err := time.ParseInLocation(localTimeLayout, s, time.Local)
	if err != nil {
		return err
	}
	*t = localTime(parsed)
	return nil
}

type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}
