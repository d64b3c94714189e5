package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"reportdesk/internal/apierr"
	"reportdesk/internal/httpclient"
	"reportdesk/internal/logging"
)

// Limits bounds what Create accepts before anything is sent.
type Limits struct {
	MaxFileSize  int64
	AllowedTypes []string
}

func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:  10 << 20,
		AllowedTypes: []string{".pdf", ".jpg", ".jpeg", ".png", ".doc", ".docx"},
	}
}

// Allowed reports whether name has one of the permitted extensions.
func (l Limits) Allowed(name string) bool {
	if len(l.AllowedTypes) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range l.AllowedTypes {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

// CreateInput is the upload form. Name and ReportDate may be left empty.
type CreateInput struct {
	Name       string
	Type       Type
	ReportDate string
	FileName   string
	File       io.Reader
}

type statusRequest struct {
	Status  Status  `json:"status"`
	Summary *string `json:"summary,omitempty"`
}

type Service struct {
	client *httpclient.Client
	limits Limits
	logger *slog.Logger
	now    func() time.Time
}

func NewService(c *httpclient.Client, limits Limits, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{client: c, limits: limits, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Report, error) {
	resp, err := s.client.Get(ctx, "/reports")
	if err != nil {
		return nil, apierr.Normalize(err, "Failed to load reports")
	}
	var out []Report
	if err := resp.DecodeData(&out); err != nil {
		return nil, apierr.Normalize(err, "Failed to load reports")
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Report, error) {
	if id <= 0 {
		return nil, apierr.Validationf("Invalid report id %d", id)
	}
	resp, err := s.client.Get(ctx, fmt.Sprintf("/reports/%d", id))
	if err != nil {
		return nil, apierr.Normalize(err, "Failed to load report")
	}
	return decodeReport(resp, "Failed to load report")
}

// Create validates in and uploads it. Validation failures never reach the
// network.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Report, error) {
	body, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Post(ctx, "/reports", body)
	if err != nil {
		return nil, apierr.Normalize(err, "Failed to upload report")
	}
	r, err := decodeReport(resp, "Failed to upload report")
	if err != nil {
		return nil, err
	}
	s.logger.Info("report uploaded", "id", r.ID, "name", r.Name, "type", r.Type)
	return r, nil
}

func (s *Service) prepare(in CreateInput) (*httpclient.Multipart, error) {
	if in.File == nil || strings.TrimSpace(in.FileName) == "" {
		return nil, apierr.Validation("Please select a file to upload")
	}
	fileName := filepath.Base(in.FileName)
	if !s.limits.Allowed(fileName) {
		return nil, apierr.Validationf("File type not allowed. Allowed types: %s", strings.Join(s.limits.AllowedTypes, ", "))
	}

	content, err := s.readLimited(in.File)
	if err != nil {
		return nil, err
	}

	if in.Type == "" {
		return nil, apierr.Validation("Please select a report type")
	}
	if !in.Type.Valid() {
		return nil, apierr.Validationf("Unknown report type %q", in.Type)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	if len(name) > 255 {
		return nil, apierr.Validation("Report name must not exceed 255 characters")
	}

	date := strings.TrimSpace(in.ReportDate)
	if date == "" {
		date = s.now().Format(DateLayout)
	} else if _, err := ParseDate(date); err != nil {
		return nil, apierr.Validationf("Report date must be YYYY-MM-DD, got %q", date)
	}

	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if ct == "" {
		ct = http.DetectContentType(content)
	}
	m := &httpclient.Multipart{
		FileField:   "file",
		FileName:    fileName,
		FileType:    ct,
		FileContent: bytes.NewReader(content),
	}
	m.AddField("name", name)
	m.AddField("type", string(in.Type))
	m.AddField("reportDate", date)
	return m, nil
}

func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	limit := s.limits.MaxFileSize
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, apierr.Validationf("File size exceeds the %s limit", formatSize(limit))
	}
	if len(data) == 0 {
		return nil, apierr.Validation("The selected file is empty")
	}
	return data, nil
}

// UpdateStatus sets the status directly. The server checks the edge; the
// client only refuses statuses nothing can move to.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status, summary *string) (*Report, error) {
	if !status.Valid() {
		return nil, apierr.Validationf("Unknown status %q", status)
	}
	if !Reachable(status) {
		return nil, apierr.Validationf("Reports cannot be moved to %s", status)
	}
	resp, err := s.client.Patch(ctx, fmt.Sprintf("/reports/%d/status", id), statusRequest{Status: status, Summary: summary})
	if err != nil {
		return nil, apierr.Normalize(err, "Failed to update status")
	}
	r, err := decodeReport(resp, "Failed to update status")
	if err != nil {
		return nil, err
	}
	s.logger.Info("report status updated", "id", id, "status", status)
	return r, nil
}

// Transition moves r to the given status after checking the edge locally.
func (s *Service) Transition(ctx context.Context, r *Report, to Status, summary *string) (*Report, error) {
	if !CanTransition(r.Status, to) {
		return nil, apierr.Validationf("Cannot transition from %s to %s", r.Status, to)
	}
	return s.UpdateStatus(ctx, r.ID, to, summary)
}

// Advance moves r to its next status.
func (s *Service) Advance(ctx context.Context, r *Report, summary *string) (*Report, error) {
	next, ok := Next(r.Status)
	if !ok {
		return nil, apierr.Validationf("Report %d is already %s", r.ID, r.Status)
	}
	return s.Transition(ctx, r, next, summary)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.client.Delete(ctx, fmt.Sprintf("/reports/%d", id)); err != nil {
		return apierr.Normalize(err, "Failed to delete report")
	}
	s.logger.Info("report deleted", "id", id)
	return nil
}

func decodeReport(resp *httpclient.Response, fallback string) (*Report, error) {
	var r Report
	if err := resp.DecodeData(&r, "report"); err != nil {
		return nil, apierr.Normalize(err, fallback)
	}
	return &r, nil
}

func formatSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	if n >= 1<<10 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d bytes", n)
}
