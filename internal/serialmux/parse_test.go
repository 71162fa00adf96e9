package serialmux

import "testing"

func TestClassifyPayload(t *testing.T) {
	tests := map[string]string{
		"OK":          EventTypeAck,
		"OK,17":       EventTypeAck,
		" ERR,stall ": EventTypeError,
		"ERR":         EventTypeError,
		"G,1,2":       EventTypeGimbal,
		"OKAY":        EventTypeUnknown,
		"":            EventTypeUnknown,
	}
	for in, want := range tests {
		if got := ClassifyPayload(in); got != want {
			t.Errorf("ClassifyPayload(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeedbackApplyRejectsMalformed(t *testing.T) {
	var f Feedback
	for _, line := range []string{"G,1", "G,x,2", "G,1,y", "hello"} {
		if err := f.Apply(line); err == nil {
			t.Errorf("Apply(%q) expected error", line)
		}
	}
	if f != (Feedback{}) {
		t.Errorf("malformed lines changed feedback: %+v", f)
	}
}
