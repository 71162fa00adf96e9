package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/serialmux"
	"github.com/banshee-data/autoaim/internal/storage/sqlite"
)

const tuningFile = "../../config/tuning.defaults.json"

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "zero value", opts: Options{}},
		{name: "full", opts: Options{
			Tuning: "tuning.json", Frames: "f.jsonl", DB: "aim.db", SerialPort: "/dev/ttyUSB0",
			Baud: 115200, DataBits: 8, StopBits: 1, Parity: "N",
			RedisAddr: "localhost:6379", ReportPNG: "t.png", ReportHTML: "t.html",
			AdminListen: "127.0.0.1:8081", GRPCListen: ":50051", Hold: true,
		}},
		{name: "tuning must be json", opts: Options{Tuning: "tuning.yaml"}, wantErr: "Tuning"},
		{name: "frames and scene", opts: Options{Frames: "a.jsonl", Scene: "s.yaml"}, wantErr: "Frames"},
		{name: "export over input", opts: Options{Frames: "a.jsonl", ExportFrames: "a.jsonl"}, wantErr: "ExportFrames"},
		{name: "colour", opts: Options{Color: "green"}, wantErr: "Color"},
		{name: "data bits", opts: Options{DataBits: 9}, wantErr: "DataBits"},
		{name: "parity", opts: Options{Parity: "mark"}, wantErr: "Parity"},
		{name: "redis address", opts: Options{RedisAddr: "localhost"}, wantErr: "RedisAddr"},
		{name: "redis db", opts: Options{RedisDB: -1}, wantErr: "RedisDB"},
		{name: "report extension", opts: Options{ReportPNG: "plot.jpg"}, wantErr: "ReportPNG"},
		{name: "listen address", opts: Options{AdminListen: "8081"}, wantErr: "AdminListen"},
		{name: "hold without listener", opts: Options{Hold: true}, wantErr: "hold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunSyntheticWithFrameLogAndReports(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Tuning:     tuningFile,
		DB:         filepath.Join(dir, "aim.db"),
		BatchSize:  16,
		SerialPort: loopbackPort,
		ReportPNG:  filepath.Join(dir, "trajectory.png"),
		ReportHTML: filepath.Join(dir, "timeline.html"),
	}

	res, err := run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 120, res.Stats.Frames)
	assert.Equal(t, 120, res.Stats.Matched)
	assert.Equal(t, 118, res.Stats.StateFrames[l4tracker.Tracking])
	assert.Zero(t, res.Stats.PublishErrors)
	assert.Zero(t, res.Stats.PersistErrors)
	assert.Equal(t, 120, res.Summary.Frames)
	assert.Equal(t, 1, res.Summary.Episodes)

	require.True(t, res.Link.Enabled)
	cmd, err := serialmux.ParseAimCommand(res.Link.LastCommand)
	require.NoError(t, err)
	assert.Equal(t, "TRACKING", cmd.State)

	db, err := sqlite.Open(opts.DB)
	require.NoError(t, err)
	defer db.Close()
	sess, err := db.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "synthetic", sess.Source)
	assert.Equal(t, "red", sess.Color)
	assert.Equal(t, 120, sess.Frames)
	assert.NotNil(t, sess.EndedAt)
	assert.Contains(t, sess.ConfigJSON, "confirm_threshold")

	png, err := os.ReadFile(opts.ReportPNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	html, err := os.ReadFile(opts.ReportHTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "TRACKING")
}

func TestRunReplaysExportedFrames(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(scene, []byte("frames: 30\ndrop_ranges: [[10, 11]]\n"), 0o644))
	exported := filepath.Join(dir, "frames.jsonl")

	first, err := run(context.Background(), Options{Tuning: tuningFile, Scene: scene, ExportFrames: exported})
	require.NoError(t, err)
	assert.Equal(t, 30, first.Stats.Frames)
	assert.Equal(t, 28, first.Stats.Matched)

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, 30, strings.Count(string(data), "\n"))

	second, err := run(context.Background(), Options{Tuning: tuningFile, Frames: exported})
	require.NoError(t, err)
	assert.Equal(t, first.Stats, second.Stats, "a replayed export tracks identically")
	assert.False(t, second.Link.Enabled)
}

func TestRunInMemoryReports(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Tuning: tuningFile, ReportHTML: filepath.Join(dir, "timeline.html")}

	res, err := run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, 120, res.Summary.Frames, "reports fall back to recorded results")
	assert.FileExists(t, opts.ReportHTML)
}

func TestRunSetupErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := run(context.Background(), Options{Tuning: filepath.Join(dir, "missing.json")})
	assert.ErrorContains(t, err, "load tuning")

	_, err = run(context.Background(), Options{Tuning: tuningFile, Frames: filepath.Join(dir, "missing.jsonl")})
	assert.ErrorContains(t, err, "open frames")

	_, err = run(context.Background(), Options{Tuning: tuningFile, Color: "green"})
	assert.ErrorContains(t, err, "Color")

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{oops}\n"), 0o644))
	_, err = run(context.Background(), Options{Tuning: tuningFile, Frames: bad})
	assert.ErrorContains(t, err, "pipeline")
}

func TestRunFailureStopsLinkAndEndsSession(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{oops}\n"), 0o644))

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "pipeline error",
			opts: Options{Frames: bad},
			want: "pipeline",
		},
		{
			name: "report error",
			opts: Options{ReportPNG: filepath.Join(dir, "missing", "trajectory.png")},
			want: "trajectory report",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Tuning = tuningFile
			opts.SerialPort = loopbackPort
			opts.DB = filepath.Join(t.TempDir(), "aim.db")

			res, err := run(context.Background(), opts)
			require.ErrorContains(t, err, tt.want)
			require.NotEmpty(t, res.SessionID)

			db, err := sqlite.Open(opts.DB)
			require.NoError(t, err)
			defer db.Close()
			sess, err := db.GetSession(context.Background(), res.SessionID)
			require.NoError(t, err)
			assert.NotNil(t, sess.EndedAt)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := run(ctx, Options{Tuning: tuningFile})
	require.NoError(t, err, "cancellation is a clean stop")
	assert.Zero(t, res.Stats.Frames)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("AUTOAIM_REDIS_PASSWORD", "s3cret")
	t.Setenv("AUTOAIM_REDIS_ADDR", "redis:6379")
	t.Setenv("AUTOAIM_REDIS_DB", "2")
	t.Setenv("AUTOAIM_SERIAL", loopbackPort)

	opts := Options{SerialPort: "/dev/ttyACM0"}
	applyEnv(&opts)
	assert.Equal(t, "s3cret", opts.RedisPassword)
	assert.Equal(t, "redis:6379", opts.RedisAddr)
	assert.Equal(t, 2, opts.RedisDB)
	assert.Equal(t, "/dev/ttyACM0", opts.SerialPort, "flags win over the environment")

	t.Setenv("AUTOAIM_REDIS_DB", "two")
	applyEnv(&opts)
	assert.Error(t, opts.Validate())
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadEnv(filepath.Join(dir, "absent.env")))
	assert.NoError(t, loadEnv(""))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AUTOAIM_TEST_LOADENV=from-file\n"), 0o600))
	t.Setenv("AUTOAIM_TEST_LOADENV", "")
	os.Unsetenv("AUTOAIM_TEST_LOADENV")
	require.NoError(t, loadEnv(path))
	assert.Equal(t, "from-file", os.Getenv("AUTOAIM_TEST_LOADENV"))
}

func TestRecorderSamples(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	scene := pipeline.DefaultSyntheticScene()
	scene.Frames = 3
	for _, f := range scene.Generate() {
		require.NoError(t, rec.PublishFrame(&pipeline.FrameResult{Frame: f.Number}))
	}
	assert.Len(t, rec.samples(), 3)
}
