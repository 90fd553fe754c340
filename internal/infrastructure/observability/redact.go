package observability

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind tags the source of an inbound event and selects its redaction policy.
type Kind string

const (
	KindHTTP  Kind = "http"
	KindQueue Kind = "queue"
	KindBatch Kind = "batch"
)

// Redaction constants.
const (
	RedactedPlaceholder = "[REDACTED]"
	MaxBodyLength       = 500
	TruncationMarker    = "...[truncated]"
)

// SensitiveHeaders are masked in HTTP events, compared case-insensitively.
var SensitiveHeaders = []string{
	"authorization",
	"x-api-key",
	"x-telegram-bot-api-secret-token",
}

// Redactor rewrites the JSON object form of an event before it is logged.
// It receives a private copy and may modify it in place.
type Redactor func(event map[string]any) map[string]any

// RedactorFor returns the default policy for kind. Queue events and unknown
// kinds are logged as they are.
func RedactorFor(kind Kind) Redactor {
	switch kind {
	case KindHTTP:
		return RedactHTTP
	case KindBatch:
		return RedactArray("records")
	default:
		return nil
	}
}

// RedactHTTP masks sensitive headers and truncates a body longer than
// MaxBodyLength characters.
func RedactHTTP(event map[string]any) map[string]any {
	for _, field := range []string{"headers", "multiValueHeaders"} {
		headers, ok := event[field].(map[string]any)
		if !ok {
			continue
		}
		for name := range headers {
			if isSensitiveHeader(name) {
				headers[name] = RedactedPlaceholder
			}
		}
	}
	if body, ok := event["body"].(string); ok {
		event["body"] = truncate(body, MaxBodyLength)
	}
	return event
}

// truncate keeps the first n characters of s, never splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + TruncationMarker
		}
		count++
	}
	return s
}

// RedactArray replaces the array stored at field with a count marker.
func RedactArray(field string) Redactor {
	return func(event map[string]any) map[string]any {
		if items, ok := event[field].([]any); ok {
			event[field] = fmt.Sprintf("[%d %s redacted]", len(items), field)
		}
		return event
	}
}

func isSensitiveHeader(name string) bool {
	for _, h := range SensitiveHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// Redact applies r to a copy of event. Events that do not encode to a JSON
// object are returned as they are when r is nil and replaced by a marker
// otherwise, so a redacting policy never leaks an event it cannot inspect.
func Redact(r Redactor, event any) any {
	if r == nil {
		return event
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Sprintf("[unloggable %T]", event)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return fmt.Sprintf("[unloggable %T]", event)
	}
	return r(obj)
}
