package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type streamEntry struct {
	id     string
	offset int64
	data   []byte
}

// InMemoryStream mirrors the Stream API over process-local slices. It
// backs TRANSPORT_BACKEND=memory and the engine tests; semantics match
// the Redis implementation, including blocking reads.
type InMemoryStream struct {
	mu          sync.Mutex
	streams     map[string][]streamEntry
	checkpoints map[string]string
	wake        chan struct{}
	nextOffset  int64
}

func NewInMemoryStream() *InMemoryStream {
	return &InMemoryStream{
		streams:     make(map[string][]streamEntry),
		checkpoints: make(map[string]string),
		wake:        make(chan struct{}),
	}
}

// Close drops all streams and checkpoints.
func (s *InMemoryStream) Close() error {
	s.mu.Lock()
	s.streams = make(map[string][]streamEntry)
	s.checkpoints = make(map[string]string)
	s.mu.Unlock()
	return nil
}

// PublishJSON appends the JSON encoding of v and wakes blocked readers.
func (s *InMemoryStream) PublishJSON(ctx context.Context, stream string, v any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal delivery: %w", err)
	}
	s.mu.Lock()
	s.nextOffset++
	id := fmt.Sprintf("%d-0", s.nextOffset)
	s.streams[stream] = append(s.streams[stream], streamEntry{id: id, offset: s.nextOffset, data: data})
	close(s.wake)
	s.wake = make(chan struct{})
	s.mu.Unlock()
	return id, nil
}

// ReadJSON returns the first entry after lastID, blocking until one
// arrives or ctx ends.
func (s *InMemoryStream) ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error) {
	after, err := parseStreamOffset(lastID)
	if err != nil {
		return "", err
	}
	for {
		s.mu.Lock()
		var found *streamEntry
		for i := range s.streams[stream] {
			if s.streams[stream][i].offset > after {
				found = &s.streams[stream][i]
				break
			}
		}
		wake := s.wake
		s.mu.Unlock()

		if found != nil {
			if err := json.Unmarshal(found.data, dst); err != nil {
				return "", fmt.Errorf("unmarshal delivery %s: %w", found.id, err)
			}
			return found.id, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wake:
		}
	}
}

// PersistStreamCheckpoint stores the consumer position. An empty key is a
// no-op, matching the Redis implementation.
func (s *InMemoryStream) PersistStreamCheckpoint(ctx context.Context, key, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	if err := validateStreamOffset(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.checkpoints[key] = id
	s.mu.Unlock()
	return nil
}

// LoadStreamCheckpoint returns the stored position, or an empty string
// when none exists.
func (s *InMemoryStream) LoadStreamCheckpoint(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	v := s.checkpoints[key]
	s.mu.Unlock()
	return v, nil
}

// Len reports the current stream length.
func (s *InMemoryStream) Len(ctx context.Context, stream string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.streams[stream])), nil
}
