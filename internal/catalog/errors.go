package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed catalog call.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindBackend    Kind = "backend"
	KindValidation Kind = "validation"
)

// Error is returned by every Client method. Message is safe to show to an
// operator as-is.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("catalog: %s: %s (status=%d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("catalog: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConnectivity reports whether err means the backend could not be reached.
func IsConnectivity(err error) bool {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return false
	}
	return cerr.Kind == KindNetwork || cerr.Kind == KindTimeout
}

// Message extracts the operator-facing message from err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Message
	}
	return err.Error()
}

type backendBody struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// backendMessage pulls a human message out of an error body.
func backendMessage(status int, body []byte) string {
	var parsed backendBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg := strings.TrimSpace(parsed.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(parsed.Error); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP error %d", status)
}

// reportedFailure detects a 2xx body that still carries success:false.
func reportedFailure(body []byte) (string, bool) {
	var parsed backendBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}
	if parsed.Success == nil || *parsed.Success {
		return "", false
	}
	msg := strings.TrimSpace(parsed.Message)
	if msg == "" {
		msg = strings.TrimSpace(parsed.Error)
	}
	if msg == "" {
		msg = "Backend reported failure"
	}
	return msg, true
}
