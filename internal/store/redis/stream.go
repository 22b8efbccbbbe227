// Package redis carries inbound deliveries over Redis Streams. Each local
// endpoint reads one stream; producers append the JSON-encoded delivery
// carrier and consumers track their position through a checkpoint key.
// An in-process variant backs tests and single-binary deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	payloadField = "payload"

	// readBlockInterval bounds one XREAD so the consumer can notice
	// context cancellation between blocks.
	readBlockInterval = 5 * time.Second

	// checkpointTTL keeps consumer positions alive across restarts but
	// lets abandoned deployments expire.
	checkpointTTL = 7 * 24 * time.Hour

	// maxStreamLength caps each inbound stream with approximate
	// trimming so a stalled consumer cannot grow Redis unboundedly.
	maxStreamLength = 1_000_000
)

// InboundStream names the per-endpoint inbound delivery stream.
func InboundStream(eid uint32) string {
	return fmt.Sprintf("composer:eid:%d:inbound", eid)
}

// CheckpointKey names the consumer position key for an endpoint's
// inbound stream.
func CheckpointKey(eid uint32) string {
	return fmt.Sprintf("composer:eid:%d:checkpoint", eid)
}

// MessageTransport is the delivery transport contract shared by the
// Redis-backed and in-process streams. Producers publish JSON carriers,
// consumers read them back and persist their position between reads.
type MessageTransport interface {
	PublishJSON(ctx context.Context, stream string, v any) (string, error)
	ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error)
	PersistStreamCheckpoint(ctx context.Context, key, id string) error
	LoadStreamCheckpoint(ctx context.Context, key string) (string, error)
	Len(ctx context.Context, stream string) (int64, error)
	Close() error
}

// Stream is the Redis-backed delivery transport.
type Stream struct {
	client *redis.Client
}

func NewStream(url string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Stream{client: client}, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

func (s *Stream) Client() *redis.Client {
	return s.client
}

// PublishJSON appends the JSON encoding of v to the stream and returns the
// assigned entry id.
func (s *Stream) PublishJSON(ctx context.Context, stream string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal delivery: %w", err)
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLength,
		Approx: true,
		Values: map[string]any{payloadField: data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// ReadJSON blocks until an entry after lastID arrives, unmarshals it into
// dst and returns the entry id to resume from. It returns the context
// error when ctx ends first.
func (s *Stream) ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error) {
	if lastID == "" {
		lastID = "0"
	}
	for {
		res, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   1,
			Block:   readBlockInterval,
		}).Result()
		if errors.Is(err, redis.Nil) {
			// Block interval elapsed with no entries.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("xread %s: %w", stream, err)
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}
		msg := res[0].Messages[0]
		raw, err := streamPayload(msg.Values[payloadField])
		if err != nil {
			return "", fmt.Errorf("stream %s entry %s: %w", stream, msg.ID, err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return "", fmt.Errorf("unmarshal delivery %s: %w", msg.ID, err)
		}
		return msg.ID, nil
	}
}

// PersistStreamCheckpoint stores the consumer position under key. An empty
// key disables checkpointing and is a no-op.
func (s *Stream) PersistStreamCheckpoint(ctx context.Context, key, id string) error {
	if key == "" {
		return nil
	}
	if err := validateStreamOffset(id); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, id, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("persist checkpoint %s: %w", key, err)
	}
	return nil
}

// LoadStreamCheckpoint returns the stored consumer position, or an empty
// string when none exists.
func (s *Stream) LoadStreamCheckpoint(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load checkpoint %s: %w", key, err)
	}
	return v, nil
}

// Len reports the current stream length, used as the backlog gauge.
func (s *Stream) Len(ctx context.Context, stream string) (int64, error) {
	n, err := s.client.XLen(ctx, stream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("xlen %s: %w", stream, err)
	}
	return n, nil
}

// parseStreamOffset extracts the millisecond part of a stream entry id as
// an int64 cursor. Empty input and negative values clamp to zero.
func parseStreamOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if idx := strings.Index(s, "-"); idx > 0 {
		s = s[:idx]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse stream offset %q: %w", s, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// validateStreamOffset rejects checkpoint values that XREAD would refuse.
// The empty string is allowed and means "from the beginning".
func validateStreamOffset(s string) error {
	if s == "" {
		return nil
	}
	base := s
	if idx := strings.Index(s, "-"); idx > 0 {
		base = s[:idx]
		seq := s[idx+1:]
		if seq == "" {
			return fmt.Errorf("stream offset %q: empty sequence part", s)
		}
		if _, err := strconv.ParseUint(seq, 10, 64); err != nil {
			return fmt.Errorf("stream offset %q: %w", s, err)
		}
	}
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return fmt.Errorf("stream offset %q: %w", s, err)
	}
	if n < 0 {
		return fmt.Errorf("stream offset %q: negative", s)
	}
	return nil
}

// streamPayload coerces the raw payload field from a stream entry into
// bytes. go-redis hands values back as strings; producers may also hand
// bytes or Stringers straight to the in-process variant.
func streamPayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case fmt.Stringer:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("payload type %T is not supported", v)
	}
}
