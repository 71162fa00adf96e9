package serialmux

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	EventTypeAck     = "ack"
	EventTypeError   = "error"
	EventTypeGimbal  = "gimbal"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload returns the event type of an inbound controller line.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case p == "OK" || strings.HasPrefix(p, "OK,"):
		return EventTypeAck
	case p == "ERR" || strings.HasPrefix(p, "ERR,"):
		return EventTypeError
	case strings.HasPrefix(p, "G,"):
		return EventTypeGimbal
	default:
		return EventTypeUnknown
	}
}

// Feedback accumulates what the controller has reported.
type Feedback struct {
	Yaw       float64 `json:"yaw_deg"`
	Pitch     float64 `json:"pitch_deg"`
	HasAngles bool    `json:"has_angles"`
	Acks      int     `json:"acks"`
	Errors    int     `json:"errors"`
	LastError string  `json:"last_error,omitempty"`
}

// Apply folds one inbound line into f. Malformed and unknown lines return
// an error and leave f unchanged.
func (f *Feedback) Apply(line string) error {
	p := strings.TrimSpace(line)
	switch ClassifyPayload(p) {
	case EventTypeAck:
		f.Acks++
	case EventTypeError:
		f.Errors++
		f.LastError = strings.TrimPrefix(strings.TrimPrefix(p, "ERR"), ",")
	case EventTypeGimbal:
		fields := strings.Split(p, ",")
		if len(fields) != 3 {
			return fmt.Errorf("gimbal line %q: want 3 fields, got %d", p, len(fields))
		}
		yaw, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("gimbal line %q: yaw: %w", p, err)
		}
		pitch, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("gimbal line %q: pitch: %w", p, err)
		}
		f.Yaw, f.Pitch, f.HasAngles = yaw, pitch, true
	default:
		return fmt.Errorf("unrecognised line %q", p)
	}
	return nil
}
