package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/banshee-data/autoaim/internal/admin"
	"github.com/banshee-data/autoaim/internal/aim/debug"
	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l2plates"
	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/config"
	"github.com/banshee-data/autoaim/internal/monitoring"
	"github.com/banshee-data/autoaim/internal/redisbus"
	"github.com/banshee-data/autoaim/internal/report"
	"github.com/banshee-data/autoaim/internal/serialmux"
	"github.com/banshee-data/autoaim/internal/storage/sqlite"
	"github.com/banshee-data/autoaim/internal/timeutil"
)

// loopbackPort selects the in-process gimbal simulator instead of a device.
const loopbackPort = "loopback"

// Options is everything one run needs. Flags and environment fill it in
// main; tests build it directly.
type Options struct {
	Tuning       string `validate:"omitempty,endswith=.json"`
	Frames       string `validate:"omitempty,excluded_with=Scene"`
	Scene        string `validate:"omitempty"`
	ExportFrames string `validate:"omitempty,nefield=Frames"`
	Color        string `validate:"omitempty,oneof=red blue"`

	DB        string `validate:"omitempty"`
	BatchSize int    `validate:"gte=0"`

	SerialPort string `validate:"omitempty"`
	Baud       int    `validate:"gte=0"`
	DataBits   int    `validate:"omitempty,oneof=5 6 7 8"`
	StopBits   int    `validate:"omitempty,oneof=1 2"`
	Parity     string `validate:"omitempty,oneof=N E O n e o none even odd"`

	RedisAddr     string `validate:"omitempty,hostname_port"`
	RedisPassword string
	RedisDB       int    `validate:"gte=0,lte=15"`
	RedisChannel  string `validate:"omitempty,printascii"`

	ReportPNG  string `validate:"omitempty,endswith=.png"`
	ReportHTML string `validate:"omitempty,endswith=.html"`

	AdminListen string `validate:"omitempty,hostname_port"`
	GRPCListen  string `validate:"omitempty,hostname_port"`

	Realtime bool
	Debug    bool
	// Hold keeps the admin servers up after the replay until ctx ends.
	Hold bool
}

var validate = validator.New()

// Validate checks option combinations before anything is opened.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid option %s=%v (%s %s)", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
		}
		return err
	}
	if o.Hold && o.AdminListen == "" && o.GRPCListen == "" {
		return errors.New("hold needs an admin or gRPC listener")
	}
	return nil
}

// Result is what a run produced.
type Result struct {
	SessionID string
	Stats     pipeline.Stats
	Summary   report.Summary
	Link      serialmux.LinkStatus
}

// app holds the collaborators built from Options.
type app struct {
	opts    Options
	tuning  *config.TuningConfig
	tracker *l4tracker.Tracker
	pipe    *pipeline.Pipeline
	health  *admin.Health
	db      *sqlite.DB
	sink    *sqlite.FrameSink
	link    serialmux.SerialMuxInterface
	redis   *redis.Client
	rec     *recorder
	closers []func() error
}

// recorder keeps results in memory for reports when there is no frame log.
type recorder struct {
	mu      sync.Mutex
	results []*pipeline.FrameResult
}

func (r *recorder) PublishFrame(res *pipeline.FrameResult) error {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	return nil
}

func (r *recorder) samples() []report.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return report.SamplesFromResults(r.results)
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	cfg, err := config.LoadTuningConfig(config.DefaultConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		monitoring.Logf("%s not found, using built-in tuning defaults", config.DefaultConfigPath)
		return config.EmptyTuningConfig(), nil
	}
	return cfg, err
}

func frameSource(opts Options) (pipeline.FrameSource, func() error, error) {
	if opts.Frames != "" {
		f, err := os.Open(opts.Frames)
		if err != nil {
			return nil, nil, fmt.Errorf("open frames: %w", err)
		}
		return pipeline.NewFrameReader(f), f.Close, nil
	}

	scene := pipeline.DefaultSyntheticScene()
	if opts.Scene != "" {
		var err error
		if scene, err = pipeline.LoadSyntheticSceneFile(opts.Scene); err != nil {
			return nil, nil, fmt.Errorf("load scene: %w", err)
		}
	}
	frames := scene.Generate()
	if opts.ExportFrames != "" {
		if err := exportFrames(opts.ExportFrames, frames); err != nil {
			return nil, nil, err
		}
	}
	return pipeline.NewSliceSource(frames), nil, nil
}

func exportFrames(path string, frames []pipeline.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export frames: %w", err)
	}
	for _, fr := range frames {
		if err := pipeline.WriteFrame(f, fr); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export frames: %w", err)
	}
	monitoring.Logf("wrote %d synthetic frames to %s", len(frames), path)
	return nil
}

func openLink(opts Options) (serialmux.SerialMuxInterface, error) {
	portOpts := serialmux.PortOptions{
		BaudRate: opts.Baud,
		DataBits: opts.DataBits,
		StopBits: opts.StopBits,
		Parity:   opts.Parity,
	}
	switch opts.SerialPort {
	case "":
		return serialmux.NewDisabledSerialMux(), nil
	case loopbackPort:
		return serialmux.OpenSerialMux(serialmux.OpenLoopback, loopbackPort, portOpts)
	default:
		return serialmux.NewRealSerialMux(opts.SerialPort, portOpts)
	}
}

func newApp(ctx context.Context, opts Options) (*app, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	a := &app{opts: opts, health: admin.NewHealth()}

	tuning, err := loadTuning(opts.Tuning)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}
	a.tuning = tuning

	colorName := opts.Color
	if colorName == "" {
		colorName = tuning.GetDetectColor()
	}
	color, err := l1lights.ParseColor(colorName)
	if err != nil {
		return nil, err
	}

	src, closeSrc, err := frameSource(opts)
	if err != nil {
		return nil, err
	}
	if closeSrc != nil {
		a.closers = append(a.closers, closeSrc)
	}

	var publishers []pipeline.PublishSink
	publishers = append(publishers, a.health)

	if a.link, err = openLink(opts); err != nil {
		a.close()
		return nil, fmt.Errorf("open aim link: %w", err)
	}
	a.closers = append(a.closers, a.link.Close)
	if a.link.Status().Enabled {
		publishers = append(publishers, serialmux.NewAimPublisher(a.link, serialmux.CameraFromTuning(tuning)))
	}

	if opts.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		a.redis, err = redisbus.Dial(dialCtx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		cancel()
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, a.redis.Close)
		publishers = append(publishers, redisbus.NewPublisher(a.redis, redisbus.Options{Channel: opts.RedisChannel}))
	}

	var persistence pipeline.PersistenceSink
	if opts.DB != "" {
		if a.db, err = sqlite.Open(opts.DB); err != nil {
			a.close()
			return nil, fmt.Errorf("open frame log: %w", err)
		}
		a.closers = append(a.closers, a.db.Close)
		cfgJSON, err := json.Marshal(tuning)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("encode tuning: %w", err)
		}
		sess, err := a.db.StartSession(ctx, sqlite.Session{
			Source:     sourceName(opts),
			Color:      color.String(),
			ConfigJSON: string(cfgJSON),
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("start session: %w", err)
		}
		a.sink = sqlite.NewFrameSink(a.db, sess.ID, opts.BatchSize)
		persistence = a.sink
		monitoring.Logf("session %s started, logging frames to %s", sess.ID, opts.DB)
	} else if opts.ReportPNG != "" || opts.ReportHTML != "" {
		a.rec = &recorder{}
		publishers = append(publishers, a.rec)
	}

	var col *debug.Collector
	if opts.Debug {
		col = debug.NewCollector()
		col.SetEnabled(true)
	}

	pace := time.Duration(0)
	if opts.Realtime {
		pace = tuning.GetFrameInterval()
	}

	a.tracker = l4tracker.NewTracker(l4tracker.TrackerConfigFromTuning(tuning))
	a.pipe, err = pipeline.New(pipeline.Config{
		Source:      src,
		Matcher:     l2plates.NewMatcher(l2plates.MatcherConfigFromTuning(tuning)),
		Tracker:     a.tracker,
		Color:       color,
		Clock:       timeutil.RealClock{},
		Pace:        pace,
		Persistence: persistence,
		Publishers:  publishers,
		Debug:       col,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func sourceName(opts Options) string {
	switch {
	case opts.Frames != "":
		return opts.Frames
	case opts.Scene != "":
		return "scene:" + opts.Scene
	default:
		return "synthetic"
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			monitoring.Logf("close: %v", err)
		}
	}
	a.closers = nil
}

// serve starts the admin listeners. The returned wait blocks until they
// have shut down after ctx ends.
func (a *app) serve(ctx context.Context) (wait func(), err error) {
	var wg sync.WaitGroup
	var grpcSrv *admin.GRPCServer

	if a.opts.GRPCListen != "" {
		grpcSrv = admin.NewGRPCServer(a.opts.GRPCListen, a.health)
		if err := grpcSrv.Start(); err != nil {
			return nil, err
		}
	}

	if a.opts.AdminListen != "" {
		mux := http.NewServeMux()
		rt := admin.Routes{
			Tracker:  a.tracker,
			Pipeline: a.pipe,
			Tuning:   a.tuning,
			Health:   a.health,
			DB:       a.db,
			Link:     a.link,
		}
		if _, err := rt.Attach(mux); err != nil {
			if grpcSrv != nil {
				grpcSrv.Stop()
			}
			return nil, err
		}
		lis, err := net.Listen("tcp", a.opts.AdminListen)
		if err != nil {
			if grpcSrv != nil {
				grpcSrv.Stop()
			}
			return nil, fmt.Errorf("admin listen: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := admin.ServeHTTP(ctx, lis, mux); err != nil {
				monitoring.Logf("%v", err)
			}
		}()
	}

	return func() {
		<-ctx.Done()
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		wg.Wait()
	}, nil
}

// run replays the configured source once and writes the reports.
func run(ctx context.Context, opts Options) (Result, error) {
	a, err := newApp(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	defer a.close()

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	waitServe, err := a.serve(serveCtx)
	if err != nil {
		return Result{}, err
	}

	var wg sync.WaitGroup
	shutdown := func() {
		stopServe()
		waitServe()
		wg.Wait()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.link.Monitor(serveCtx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("aim link monitor: %v", err)
		}
	}()

	a.health.SetRunning(true)
	stats, runErr := a.pipe.Run(ctx)
	a.health.SetRunning(false)

	res := Result{Stats: stats}
	if a.sink != nil {
		res.SessionID = a.sink.SessionID()
		if err := a.sink.Flush(context.Background()); err != nil {
			monitoring.Logf("flush frame log: %v", err)
		}
		if err := a.db.EndSession(context.Background(), res.SessionID, time.Now(), stats.Frames, stats.Matched); err != nil {
			monitoring.Logf("end session: %v", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		shutdown()
		return res, fmt.Errorf("pipeline: %w", runErr)
	}

	samples, err := a.samples(context.Background())
	if err != nil {
		monitoring.Logf("load samples: %v", err)
	}
	res.Summary = report.Summarise(samples)
	if err := writeReports(opts, samples); err != nil {
		shutdown()
		return res, err
	}
	monitoring.Logf("replay done: %d frames, %d matched, %d episodes, mean residual %.2f px",
		res.Summary.Frames, res.Summary.Matched, res.Summary.Episodes, res.Summary.MeanResidual)

	if opts.Hold && ctx.Err() == nil {
		monitoring.Logf("holding admin servers open; interrupt to exit")
		<-ctx.Done()
	}
	shutdown()
	res.Link = a.link.Status()
	return res, nil
}

func (a *app) samples(ctx context.Context) ([]report.Sample, error) {
	switch {
	case a.sink != nil:
		rows, err := a.db.ListFrames(ctx, a.sink.SessionID())
		if err != nil {
			return nil, err
		}
		return report.SamplesFromRows(rows), nil
	case a.rec != nil:
		return a.rec.samples(), nil
	default:
		return nil, nil
	}
}

func writeReports(opts Options, samples []report.Sample) error {
	title := "autoaim " + sourceName(opts)
	if opts.ReportPNG != "" {
		if err := report.WriteTrajectoryPNG(opts.ReportPNG, samples, title); err != nil {
			return fmt.Errorf("trajectory report: %w", err)
		}
		monitoring.Logf("wrote trajectory plot %s", opts.ReportPNG)
	}
	if opts.ReportHTML != "" {
		if err := report.WriteTimelineFile(opts.ReportHTML, samples, title); err != nil {
			return fmt.Errorf("timeline report: %w", err)
		}
		monitoring.Logf("wrote state timeline %s", opts.ReportHTML)
	}
	return nil
}
