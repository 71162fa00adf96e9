package redisbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/monitoring"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultChannel   = "autoaim:frames"
	DefaultLatestKey = "autoaim:latest"
	DefaultTimeout   = 250 * time.Millisecond
	DefaultLatestTTL = 10 * time.Second
)

// Client is the subset of *redis.Client the publisher uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Options configures a Publisher. Zero fields take the defaults above.
type Options struct {
	Channel   string
	LatestKey string
	Timeout   time.Duration
	LatestTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Channel == "" {
		o.Channel = DefaultChannel
	}
	if o.LatestKey == "" {
		o.LatestKey = DefaultLatestKey
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.LatestTTL <= 0 {
		o.LatestTTL = DefaultLatestTTL
	}
	return o
}

// Message is the JSON document published for every frame.
type Message struct {
	Frame       uint64             `json:"frame"`
	TimestampNs int64              `json:"timestamp_ns"`
	Lights      int                `json:"lights"`
	Plates      int                `json:"plates"`
	Snapshot    l4tracker.Snapshot `json:"snapshot"`
}

// MessageFromResult converts a frame result to its wire form.
func MessageFromResult(r *pipeline.FrameResult) Message {
	return Message{
		Frame:       r.Frame,
		TimestampNs: r.Timestamp.UnixNano(),
		Lights:      r.Lights,
		Plates:      r.Plates,
		Snapshot:    r.Snapshot,
	}
}

// Publisher is a pipeline.PublishSink that PUBLISHes each frame and keeps
// the newest one under a short-lived key.
type Publisher struct {
	client Client
	opts   Options
}

var _ pipeline.PublishSink = (*Publisher)(nil)

// NewPublisher wraps client.
func NewPublisher(client Client, opts Options) *Publisher {
	return &Publisher{client: client, opts: opts.withDefaults()}
}

// Dial connects to addr and checks the server answers PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	monitoring.Logf("redis connected at %s (db %d)", addr, db)
	return client, nil
}

// PublishFrame implements pipeline.PublishSink.
func (p *Publisher) PublishFrame(r *pipeline.FrameResult) error {
	if r == nil {
		return errors.New("redisbus: nil frame result")
	}
	payload, err := json.Marshal(MessageFromResult(r))
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", r.Frame, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.opts.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish frame %d: %w", r.Frame, err)
	}
	if err := p.client.Set(ctx, p.opts.LatestKey, payload, p.opts.LatestTTL).Err(); err != nil {
		return fmt.Errorf("store latest frame %d: %w", r.Frame, err)
	}
	return nil
}
