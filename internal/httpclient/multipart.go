package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

// Multipart is a multipart/form-data body with plain fields and at most one file.
type Multipart struct {
	Fields      [][2]string
	FileField   string
	FileName    string
	FileType    string
	FileContent io.Reader
}

func (m *Multipart) AddField(name, value string) {
	m.Fields = append(m.Fields, [2]string{name, value})
}

func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if m.FileContent != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, m.FileField, m.FileName))
		ct := m.FileType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, m.FileContent); err != nil {
			return nil, "", fmt.Errorf("copy file part: %w", err)
		}
	}
	for _, f := range m.Fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
