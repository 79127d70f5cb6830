package serialmux

import (
	"encoding/json"
	"strings"
)

const (
	EventTypeModule  = "module"
	EventTypeGyro    = "gyro"
	EventTypeLog     = "log"
	EventTypeUnknown = "unknown"
)

// ClassifyLine returns the "type" field of a JSON line, EventTypeLog for
// any other text the device prints, and EventTypeUnknown for blank lines
// or JSON without a type.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return EventTypeUnknown
	}
	if !strings.HasPrefix(line, "{") {
		return EventTypeLog
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &envelope); err != nil || envelope.Type == "" {
		return EventTypeUnknown
	}
	return envelope.Type
}
