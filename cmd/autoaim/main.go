// Command autoaim replays detector frames through the plate matcher and
// tracker, streams aim commands to the gimbal link and logs every frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/monitoring"
	"github.com/banshee-data/autoaim/internal/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	tuningPath       = flag.String("config", "", "Path to tuning JSON (default: config/tuning.defaults.json)")
	framesPath       = flag.String("frames", "", "JSON Lines frame file to replay (default: synthetic scene)")
	scenePath        = flag.String("scene", "", "YAML synthetic scene description")
	exportFramesPath = flag.String("export-frames", "", "Write the synthetic frames to this JSON Lines file")
	color            = flag.String("color", "", "Enemy light colour, red or blue (default: from tuning)")

	dbPath    = flag.String("db", "", "SQLite frame log path (empty disables the frame log)")
	batchSize = flag.Int("db-batch", 32, "Frames per frame-log transaction")

	serialPort = flag.String("serial", "", "Gimbal serial device, or \"loopback\" (empty disables the aim link)")
	baud       = flag.Int("baud", 0, "Serial baud rate (default 115200)")
	dataBits   = flag.Int("data-bits", 0, "Serial data bits (default 8)")
	stopBits   = flag.Int("stop-bits", 0, "Serial stop bits (default 1)")
	parity     = flag.String("parity", "", "Serial parity N, E or O (default N)")

	redisAddr    = flag.String("redis", "", "Redis address for snapshot publishing (empty disables)")
	redisChannel = flag.String("redis-channel", "", "Redis channel for frame snapshots")

	reportPNG  = flag.String("report-png", "", "Write a trajectory plot to this PNG")
	reportHTML = flag.String("report-html", "", "Write a state timeline to this HTML file")

	adminListen = flag.String("listen", "", "Admin HTTP listen address, e.g. 127.0.0.1:8081")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address, e.g. 127.0.0.1:50051")

	realtime = flag.Bool("realtime", false, "Pace playback at the tuned frame interval")
	debugOn  = flag.Bool("debug", false, "Collect matcher and tracker internals per frame")
	hold     = flag.Bool("hold", false, "Keep admin servers running after the replay")

	logLevel = flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	logFile  = flag.String("log-file", "", "Also write logs to this rotating file")
	envFile  = flag.String("env", ".env", "Environment file to load if present")
	showVer  = flag.Bool("version", false, "Print the build version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.Current())
		return
	}

	if err := loadEnv(*envFile); err != nil {
		log.Fatalf("load env: %v", err)
	}

	logger, err := monitoring.NewLogger(monitoring.LoggerOptions{Level: *logLevel, File: *logFile})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	closeLogs := installLogger(logger)
	defer closeLogs()
	logger.Infof("%s starting", version.Current())

	opts := optionsFromFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, opts)
	if err != nil {
		logger.Errorf("autoaim: %v", err)
		closeLogs()
		os.Exit(1)
	}
	if res.SessionID != "" {
		logger.Infof("session %s: %d frames, %d matched", res.SessionID, res.Stats.Frames, res.Stats.Matched)
	}
}

func optionsFromFlags() Options {
	opts := Options{
		Tuning:       *tuningPath,
		Frames:       *framesPath,
		Scene:        *scenePath,
		ExportFrames: *exportFramesPath,
		Color:        *color,
		DB:           *dbPath,
		BatchSize:    *batchSize,
		SerialPort:   *serialPort,
		Baud:         *baud,
		DataBits:     *dataBits,
		StopBits:     *stopBits,
		Parity:       *parity,
		RedisAddr:    *redisAddr,
		RedisChannel: *redisChannel,
		ReportPNG:    *reportPNG,
		ReportHTML:   *reportHTML,
		AdminListen:  *adminListen,
		GRPCListen:   *grpcListen,
		Realtime:     *realtime,
		Debug:        *debugOn,
		Hold:         *hold,
	}
	applyEnv(&opts)
	return opts
}

// loadEnv reads KEY=value pairs from path. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// applyEnv fills settings that are kept out of flags. Secrets only come
// from the environment.
func applyEnv(opts *Options) {
	opts.RedisPassword = os.Getenv("AUTOAIM_REDIS_PASSWORD")
	if opts.RedisAddr == "" {
		opts.RedisAddr = os.Getenv("AUTOAIM_REDIS_ADDR")
	}
	if v := os.Getenv("AUTOAIM_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.RedisDB = n
		} else {
			opts.RedisDB = -1 // rejected by Validate
		}
	}
	if opts.SerialPort == "" {
		opts.SerialPort = os.Getenv("AUTOAIM_SERIAL")
	}
}

// installLogger routes monitoring.Logf and the pipeline streams through
// logger. The returned func closes the level writers.
func installLogger(logger *logrus.Logger) func() {
	monitoring.SetLogger(logger.Infof)

	ops := logger.WriterLevel(logrus.WarnLevel)
	diag := logger.WriterLevel(logrus.InfoLevel)
	writers := []*io.PipeWriter{ops, diag}
	var trace io.Writer
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		tw := logger.WriterLevel(logrus.TraceLevel)
		writers = append(writers, tw)
		trace = tw
	}
	pipeline.SetLogWriters(ops, diag, trace)

	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		pipeline.SetLogWriters(nil, nil, nil)
		for _, w := range writers {
			w.Close()
		}
	}
}
