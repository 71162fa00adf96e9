package pipeline

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxFrameLine caps one JSON line in a frame file.
const maxFrameLine = 4 << 20

// Frame is one camera frame's worth of light observations.
type Frame struct {
	Number    uint64
	Timestamp time.Time // zero means "use the pipeline clock"
	Lights    []l1lights.Light
}

// FrameSource yields frames in order. Next returns io.EOF when exhausted.
type FrameSource interface {
	Next() (Frame, error)
}

type frameRecord struct {
	Frame       uint64        `json:"frame"`
	TimestampNs int64         `json:"timestamp_ns,omitempty"`
	Lights      []lightRecord `json:"lights"`
}

// lightRecord is the detector's per-light output. When length is absent
// the light is rebuilt from its endpoints.
type lightRecord struct {
	Center *l1lights.Point `json:"center,omitempty"`
	Top    l1lights.Point  `json:"top"`
	Bottom l1lights.Point  `json:"bottom"`
	Length float64         `json:"length,omitempty"`
	Width  float64         `json:"width"`
	Tilt   *float64        `json:"tilt,omitempty"`
	Color  l1lights.Color  `json:"color"`
}

func (r lightRecord) light() l1lights.Light {
	if r.Length <= 0 {
		return l1lights.NewLight(r.Top, r.Bottom, r.Width, r.Color)
	}
	l := l1lights.Light{
		Top:    r.Top,
		Bottom: r.Bottom,
		Length: r.Length,
		Width:  r.Width,
		Color:  r.Color,
	}
	if r.Center != nil {
		l.Center = *r.Center
	} else {
		l.Center = l1lights.Midpoint(r.Top, r.Bottom)
	}
	if r.Tilt != nil {
		l.Tilt = *r.Tilt
	} else {
		d := r.Bottom.Sub(r.Top)
		l.Tilt = l1lights.TiltDegrees(d.X, d.Y)
	}
	return l
}

func recordFromLight(l l1lights.Light) lightRecord {
	center := l.Center
	tilt := l.Tilt
	return lightRecord{
		Center: &center,
		Top:    l.Top,
		Bottom: l.Bottom,
		Length: l.Length,
		Width:  l.Width,
		Tilt:   &tilt,
		Color:  l.Color,
	}
}

// FrameReader decodes a JSON Lines frame file. Blank lines are skipped.
type FrameReader struct {
	sc   *bufio.Scanner
	line int
}

// NewFrameReader reads frames from r.
func NewFrameReader(r io.Reader) *FrameReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameLine)
	return &FrameReader{sc: sc}
}

// Next returns the next frame or io.EOF.
func (fr *FrameReader) Next() (Frame, error) {
	for fr.sc.Scan() {
		fr.line++
		raw := bytes.TrimSpace(fr.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec frameRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Frame{}, fmt.Errorf("frame file line %d: %w", fr.line, err)
		}
		f := Frame{Number: rec.Frame, Lights: make([]l1lights.Light, 0, len(rec.Lights))}
		if rec.TimestampNs != 0 {
			f.Timestamp = time.Unix(0, rec.TimestampNs)
		}
		for _, lr := range rec.Lights {
			f.Lights = append(f.Lights, lr.light())
		}
		return f, nil
	}
	if err := fr.sc.Err(); err != nil {
		return Frame{}, fmt.Errorf("frame file line %d: %w", fr.line+1, err)
	}
	return Frame{}, io.EOF
}

// ReadFrames decodes every frame in r.
func ReadFrames(r io.Reader) ([]Frame, error) {
	fr := NewFrameReader(r)
	var frames []Frame
	for {
		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

// WriteFrame appends f to w as one JSON line.
func WriteFrame(w io.Writer, f Frame) error {
	rec := frameRecord{Frame: f.Number, Lights: make([]lightRecord, 0, len(f.Lights))}
	if !f.Timestamp.IsZero() {
		rec.TimestampNs = f.Timestamp.UnixNano()
	}
	for _, l := range f.Lights {
		rec.Lights = append(rec.Lights, recordFromLight(l))
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Number, err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Number, err)
	}
	return nil
}

// SliceSource replays an in-memory list of frames.
type SliceSource struct {
	frames []Frame
	next   int
}

// NewSliceSource returns a FrameSource over frames.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next() (Frame, error) {
	if s.next >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}
