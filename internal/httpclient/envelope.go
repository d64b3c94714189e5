package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the server's standard response wrapper.
type Envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// DecodeData decodes the payload of r into v. A wrapping object is unwrapped
// under "data" first and then under each of keys; anything else is decoded
// as-is.
func (r *Response) DecodeData(v any, keys ...string) error {
	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 {
		return nil
	}
	if body[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		for _, k := range append([]string{"data"}, keys...) {
			raw, ok := fields[k]
			if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				continue
			}
			if err := json.Unmarshal(raw, v); err != nil {
				return fmt.Errorf("decode response %s: %w", k, err)
			}
			return nil
		}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
