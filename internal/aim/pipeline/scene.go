package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
)

// sceneFile is the YAML form of a SyntheticScene. Unset fields keep the
// DefaultSyntheticScene values.
type sceneFile struct {
	Frames      *int            `yaml:"frames"`
	Start       *l1lights.Point `yaml:"start"`
	Velocity    *l1lights.Point `yaml:"velocity"`
	LightLength *float64        `yaml:"light_length"`
	LightWidth  *float64        `yaml:"light_width"`
	Spacing     *float64        `yaml:"spacing"`
	Color       string          `yaml:"color"`
	IntervalMs  *float64        `yaml:"interval_ms"`
	StartUnixNs *int64          `yaml:"start_unix_ns"`
	Dropped     []int           `yaml:"dropped"`
	DropRanges  [][2]int        `yaml:"drop_ranges"`
	Distractor  *bool           `yaml:"distractor"`
}

// LoadSyntheticScene decodes a YAML scene description.
func LoadSyntheticScene(r io.Reader) (SyntheticScene, error) {
	s := DefaultSyntheticScene()

	var f sceneFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return s, fmt.Errorf("decode scene: %w", err)
	}

	if f.Frames != nil {
		if *f.Frames < 0 {
			return s, fmt.Errorf("scene frames must be >= 0, got %d", *f.Frames)
		}
		s.Frames = *f.Frames
	}
	if f.Start != nil {
		s.Start = *f.Start
	}
	if f.Velocity != nil {
		s.Velocity = *f.Velocity
	}
	if f.LightLength != nil {
		s.LightLength = *f.LightLength
	}
	if f.LightWidth != nil {
		s.LightWidth = *f.LightWidth
	}
	if f.Spacing != nil {
		s.Spacing = *f.Spacing
	}
	if f.Color != "" {
		c, err := l1lights.ParseColor(f.Color)
		if err != nil {
			return s, fmt.Errorf("scene color: %w", err)
		}
		s.Color = c
	}
	if f.IntervalMs != nil {
		if *f.IntervalMs <= 0 {
			return s, fmt.Errorf("scene interval_ms must be > 0, got %v", *f.IntervalMs)
		}
		s.Interval = time.Duration(*f.IntervalMs * float64(time.Millisecond))
	}
	if f.StartUnixNs != nil {
		if *f.StartUnixNs == 0 {
			s.StartTime = time.Time{}
		} else {
			s.StartTime = time.Unix(0, *f.StartUnixNs)
		}
	}
	if f.Distractor != nil {
		s.Distractor = *f.Distractor
	}

	if len(f.Dropped) > 0 || len(f.DropRanges) > 0 {
		s.Dropped = make(map[int]bool)
		for _, i := range f.Dropped {
			s.Dropped[i] = true
		}
		for _, rg := range f.DropRanges {
			if rg[1] < rg[0] {
				return s, fmt.Errorf("scene drop range %v is reversed", rg)
			}
			for i := rg[0]; i <= rg[1]; i++ {
				s.Dropped[i] = true
			}
		}
	}
	return s, nil
}

// LoadSyntheticSceneFile reads a YAML scene from path.
func LoadSyntheticSceneFile(path string) (SyntheticScene, error) {
	fh, err := os.Open(path)
	if err != nil {
		return SyntheticScene{}, err
	}
	defer fh.Close()
	return LoadSyntheticScene(fh)
}
