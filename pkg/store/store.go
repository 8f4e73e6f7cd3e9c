// Package store is the persistent key-value collaborator shared by the engine
// and the settings surface. Every backend reports changes from any writer,
// its own writes included, for keys whose value actually changed.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/b/procrastabs/pkg/config"
)

var ErrClosed = errors.New("store closed")

// Change is one key's transition. A nil NewValue means the key was removed.
type Change struct {
	OldValue any `json:"oldValue,omitempty"`
	NewValue any `json:"newValue,omitempty"`
}

// Changes maps store keys to their transitions.
type Changes map[string]Change

type Store interface {
	// Get returns the values of keys, or every key when none are given.
	// Missing keys are absent from the result. Numbers decode as float64.
	Get(ctx context.Context, keys ...string) (map[string]any, error)
	// Set writes values. A nil value removes the key.
	Set(ctx context.Context, values map[string]any) error
	// Changes delivers change sets in commit order. It is closed by Close.
	Changes() <-chan Changes
	Close() error
}

// Open creates the backend named by driver.
func Open(driver, path string, poll time.Duration, logger *slog.Logger) (Store, error) {
	switch driver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		return NewSQLiteStore(path, poll, logger)
	case config.DriverFile, "":
		return NewFileStore(path, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// Decode converts a value returned by Get into a typed destination.
func Decode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// persistFunc writes a pending update before it is committed in memory.
// snapshot is the full next state; changed holds only changed keys, nil
// meaning deleted.
type persistFunc func(ctx context.Context, snapshot, changed map[string][]byte) error

// base holds values as canonical JSON so equality is byte equality across
// backends, and queues change sets for an ordered, non-blocking delivery.
type base struct {
	mu      sync.Mutex
	data    map[string][]byte
	closed  bool
	pending []Changes

	notify    chan struct{}
	out       chan Changes
	done      chan struct{}
	closeOnce sync.Once
}

func newBase() *base {
	b := &base{
		data:   make(map[string][]byte),
		notify: make(chan struct{}, 1),
		out:    make(chan Changes, 16),
		done:   make(chan struct{}),
	}
	go b.pump()
	return b
}

func (b *base) Changes() <-chan Changes {
	return b.out
}

func (b *base) get(keys []string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	out := make(map[string]any)
	if len(keys) == 0 {
		for k, raw := range b.data {
			out[k] = decodeRaw(raw)
		}
		return out, nil
	}
	for _, k := range keys {
		if raw, ok := b.data[k]; ok {
			out[k] = decodeRaw(raw)
		}
	}
	return out, nil
}

// set encodes values, persists them and commits the keys that changed.
func (b *base) set(ctx context.Context, values map[string]any, persist persistFunc) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		if v == nil {
			encoded[k] = nil
			continue
		}
		raw, err := encode(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		encoded[k] = raw
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	next := maps.Clone(b.data)
	changed := make(map[string][]byte)
	for k, raw := range encoded {
		old, had := b.data[k]
		switch {
		case raw == nil && had:
			delete(next, k)
			changed[k] = nil
		case raw != nil && (!had || !bytes.Equal(old, raw)):
			next[k] = raw
			changed[k] = raw
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if persist != nil {
		if err := persist(ctx, next, changed); err != nil {
			return err
		}
	}
	b.commit(next)
	return nil
}

// replace adopts a full snapshot read back from the backend, e.g. after
// another process wrote it.
func (b *base) replace(next map[string][]byte) Changes {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.commit(next)
}

// commit must be called with mu held.
func (b *base) commit(next map[string][]byte) Changes {
	ch := diff(b.data, next)
	b.data = next
	if len(ch) > 0 {
		b.pending = append(b.pending, ch)
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
	return ch
}

func (b *base) pump() {
	defer close(b.out)
	for {
		select {
		case <-b.done:
			return
		case <-b.notify:
		}
		for {
			b.mu.Lock()
			if len(b.pending) == 0 {
				b.mu.Unlock()
				break
			}
			next := b.pending[0]
			b.pending = b.pending[1:]
			b.mu.Unlock()

			select {
			case b.out <- next:
			case <-b.done:
				return
			}
		}
	}
}

func (b *base) close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.done)
	})
}

func diff(prev, next map[string][]byte) Changes {
	ch := make(Changes)
	for k, raw := range next {
		old, had := prev[k]
		if had && bytes.Equal(old, raw) {
			continue
		}
		c := Change{NewValue: decodeRaw(raw)}
		if had {
			c.OldValue = decodeRaw(old)
		}
		ch[k] = c
	}
	for k, old := range prev {
		if _, ok := next[k]; !ok {
			ch[k] = Change{OldValue: decodeRaw(old)}
		}
	}
	return ch
}

func decodeRaw(raw []byte) any {
	if raw == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// encode produces canonical JSON: struct values go through a generic decode
// first so field order cannot differ from a map read back from disk.
func encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
