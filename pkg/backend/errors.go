package backend

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// BoundaryError is returned when a backend call fails at the transport level,
// answers with a non-2xx status, or answers with a body that cannot be interpreted.
type BoundaryError struct {
	Err        error
	Op         string
	Detail     string
	StatusCode int
}

func (e *BoundaryError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": backend error"
}

func (e *BoundaryError) Unwrap() error {
	return e.Err
}

// Message returns the backend-provided detail, or fallback when there is none.
func (e *BoundaryError) Message(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	return fallback
}

// errorBody is the error envelope used by the backend.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// parseDetail extracts a human-readable message from an error body.
// detail may be a plain string or a list of validation errors carrying "msg".
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	raw := bytes.TrimSpace(eb.Detail)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
