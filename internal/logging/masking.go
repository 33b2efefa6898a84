// Package logging redacts credentials from HTTP traffic and websocket frames
// before they reach the debug log.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Redacted replaces values that must never be logged.
const Redacted = "[REDACTED]"

// FrameAllowlist lists the inbound frame fields that are logged verbatim.
// Tokens and device secrets are not on it.
var FrameAllowlist = []string{"type", "admin_id", "location", "enabled", "rfid_tag"}

// MaskHeader returns a header value safe to log.
// Secret-like headers are fully redacted, bearer credentials keep their
// last four characters and everything else passes through.
func MaskHeader(name, value string) string {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "secret"),
		strings.Contains(lower, "password"),
		lower == "cookie",
		lower == "set-cookie":
		return Redacted
	case lower == "authorization",
		lower == "sec-websocket-protocol",
		lower == "x-api-key":
		return lastFour(value)
	}
	return value
}

func lastFour(value string) string {
	if len(value) < 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

// MaskFrame masks an inbound websocket frame with FrameAllowlist.
// Frames that are not valid JSON are replaced by a size placeholder.
func MaskFrame(frame []byte) []byte {
	if !json.Valid(frame) {
		return []byte(fmt.Sprintf("[MALFORMED FRAME: %d bytes]", len(frame)))
	}
	return MaskJSONBody(frame, FrameAllowlist)
}

// MaskJSONBody replaces every scalar whose key is not in allowlist with
// Redacted. Objects and arrays are walked regardless of their key.
// A nil allowlist disables masking; bodies that are not JSON are returned as-is.
func MaskJSONBody(body []byte, allowlist []string) []byte {
	if allowlist == nil || len(body) == 0 {
		return body
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}

	allowed := make(map[string]struct{}, len(allowlist))
	for _, k := range allowlist {
		allowed[k] = struct{}{}
	}

	out, err := json.Marshal(mask(doc, allowed))
	if err != nil {
		return body
	}
	return out
}

func mask(v any, allowed map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			switch child.(type) {
			case map[string]any, []any:
				val[k] = mask(child, allowed)
			default:
				if _, ok := allowed[k]; !ok {
					val[k] = Redacted
				}
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = mask(val[i], allowed)
		}
		return val
	}
	return v
}

// FormatBinaryData describes a non-text payload by size.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("[BINARY: %d bytes]", len(data))
}
