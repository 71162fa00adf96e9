package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/banshee-data/autoaim/internal/aim/debug"
	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l2plates"
	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/timeutil"
)

// FrameResult is the read-only outcome of one frame.
type FrameResult struct {
	Frame     uint64
	Timestamp time.Time
	Lights    int // observations received
	Plates    int // plate candidates produced by the matcher
	Snapshot  l4tracker.Snapshot
	Debug     *debug.Frame // nil unless debug collection is enabled
}

// PersistenceSink stores frame results. It is an adapter; implementations
// live outside the aim layers (e.g. internal/storage/sqlite).
type PersistenceSink interface {
	PersistFrame(ctx context.Context, r *FrameResult) error
}

// PublishSink sends frame results to an external consumer such as the
// serial aim link.
type PublishSink interface {
	PublishFrame(r *FrameResult) error
}

// PoseConsumer receives frames where the tracker matched a plate this
// frame. The 3D pose solver lives behind this interface.
type PoseConsumer interface {
	ConsumePose(r *FrameResult)
}

// Config holds the pipeline's collaborators. Matcher and Tracker are
// required; everything else is optional.
type Config struct {
	Source  FrameSource
	Matcher *l2plates.Matcher
	Tracker *l4tracker.Tracker
	Color   l1lights.Color

	// Clock stamps frames that carry no timestamp and paces playback.
	Clock timeutil.Clock
	// Pace, when > 0, releases at most one frame per interval. Untimestamped
	// frames are then timed by the clock; otherwise each counts as one
	// nominal tracker step.
	Pace time.Duration

	Persistence PersistenceSink
	Publishers  []PublishSink
	Pose        PoseConsumer
	Debug       *debug.Collector
}

// Stats summarises a run.
type Stats struct {
	Frames        int
	Matched       int
	Dropped       int
	PersistErrors int
	PublishErrors int
	StateFrames   map[l4tracker.TrackerState]int
}

// Pipeline runs frames through the matcher and tracker.
type Pipeline struct {
	cfg  Config
	last atomic.Pointer[FrameResult]
}

// New validates cfg and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Matcher == nil {
		return nil, errors.New("pipeline: matcher is required")
	}
	if cfg.Tracker == nil {
		return nil, errors.New("pipeline: tracker is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Debug != nil {
		cfg.Matcher.DebugCollector = cfg.Debug
		cfg.Tracker.DebugCollector = cfg.Debug
	}
	return &Pipeline{cfg: cfg}, nil
}

// Last returns the most recent frame result, or nil before the first frame.
// Safe to call from other goroutines.
func (p *Pipeline) Last() *FrameResult {
	return p.last.Load()
}

// Run reads frames from the source until it is exhausted or ctx is
// cancelled. Sink failures are logged and counted, not fatal.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	stats := Stats{StateFrames: make(map[l4tracker.TrackerState]int)}
	if p.cfg.Source == nil {
		return stats, errors.New("pipeline: no frame source")
	}

	var tick <-chan time.Time
	if p.cfg.Pace > 0 {
		t := p.cfg.Clock.NewTicker(p.cfg.Pace)
		defer t.Stop()
		tick = t.C()
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		f, err := p.cfg.Source.Next()
		if errors.Is(err, io.EOF) {
			diagf("run complete: %d frames, %d matched, %d dropped", stats.Frames, stats.Matched, stats.Dropped)
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read frame: %w", err)
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-tick:
			}
		}

		res, err := p.ProcessFrame(ctx, f)
		if errors.Is(err, l4tracker.ErrReentrantUpdate) {
			stats.Dropped++
			continue
		}
		if err != nil {
			return stats, err
		}

		stats.Frames++
		stats.StateFrames[res.Snapshot.State]++
		if res.Snapshot.Matched {
			stats.Matched++
		}
		stats.PersistErrors += p.persist(ctx, res)
		stats.PublishErrors += p.publish(res)
	}
}

// ProcessFrame runs a single frame through the matcher and tracker and
// hands the result to the pose consumer. Sinks are not called.
func (p *Pipeline) ProcessFrame(ctx context.Context, f Frame) (*FrameResult, error) {
	ts := f.Timestamp
	trackTS := ts
	if ts.IsZero() {
		ts = p.cfg.Clock.Now()
		if p.cfg.Pace > 0 {
			trackTS = ts
		}
	}

	if p.cfg.Debug != nil {
		p.cfg.Debug.BeginFrame(f.Number)
	}

	plates := p.cfg.Matcher.Match(f.Lights, p.cfg.Color)
	if err := p.cfg.Tracker.UpdateAt(plates, trackTS); err != nil {
		opsf("frame %d dropped: %v", f.Number, err)
		if p.cfg.Debug != nil {
			p.cfg.Debug.Reset()
		}
		return nil, err
	}

	res := &FrameResult{
		Frame:     f.Number,
		Timestamp: ts,
		Lights:    len(f.Lights),
		Plates:    len(plates),
		Snapshot:  p.cfg.Tracker.Snapshot(),
	}
	if p.cfg.Debug != nil {
		res.Debug = p.cfg.Debug.Emit()
	}
	p.last.Store(res)

	tracef("frame %d: lights=%d plates=%d state=%s confirm=%d miss=%d",
		res.Frame, res.Lights, res.Plates, res.Snapshot.State, res.Snapshot.Confirm, res.Snapshot.Miss)

	if p.cfg.Pose != nil && res.Snapshot.Matched {
		p.cfg.Pose.ConsumePose(res)
	}
	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, res *FrameResult) int {
	if p.cfg.Persistence == nil {
		return 0
	}
	if err := p.cfg.Persistence.PersistFrame(ctx, res); err != nil {
		opsf("persist frame %d: %v", res.Frame, err)
		return 1
	}
	return 0
}

func (p *Pipeline) publish(res *FrameResult) int {
	failed := 0
	for _, pub := range p.cfg.Publishers {
		if pub == nil {
			continue
		}
		if err := pub.PublishFrame(res); err != nil {
			opsf("publish frame %d: %v", res.Frame, err)
			failed++
		}
	}
	return failed
}
