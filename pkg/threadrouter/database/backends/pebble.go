package backends

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// docPrefix namespaces document keys inside the Pebble keyspace.
const docPrefix = "doc/"

// PebbleBackend is an embedded key/value backend for single-node setups
// that do not want a SQL engine.
type PebbleBackend struct {
	DB     *pebble.DB
	Config PebbleConfig

	// Health checker
	Health *PebbleHealthChecker

	// Documents is the key/value document store
	Documents *PebbleDocuments

	closed atomic.Bool
}

// PebbleConfig holds Pebble-specific configuration.
type PebbleConfig struct {
	// Dir is the data directory (default: "./data/threadrouter.pebble").
	Dir string
}

// OpenPebble opens or creates the Pebble store in config.Dir.
func OpenPebble(config PebbleConfig) (*PebbleBackend, error) {
	if config.Dir == "" {
		config.Dir = "./data/threadrouter.pebble"
	}
	if err := os.MkdirAll(filepath.Dir(config.Dir), 0755); err != nil {
		return nil, fmt.Errorf("create pebble directory: %w", err)
	}

	db, err := pebble.Open(config.Dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %q: %w", config.Dir, err)
	}

	b := &PebbleBackend{DB: db, Config: config}
	b.Documents = &PebbleDocuments{backend: b}
	b.Health = &PebbleHealthChecker{backend: b}
	return b, nil
}

// Close flushes and closes the store. Closing twice is a no-op.
func (b *PebbleBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.DB.Close()
}

var errPebbleClosed = errors.New("pebble store is closed")

// PebbleDocuments stores documents under the "doc/" prefix.
type PebbleDocuments struct {
	backend *PebbleBackend
}

// Get returns the document stored under key.
func (d *PebbleDocuments) Get(ctx context.Context, key string) ([]byte, error) {
	if d.backend.closed.Load() {
		return nil, errPebbleClosed
	}
	v, closer, err := d.backend.DB.Get([]byte(docPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put writes the document synchronously.
func (d *PebbleDocuments) Put(ctx context.Context, key string, body []byte) error {
	if d.backend.closed.Load() {
		return errPebbleClosed
	}
	if err := d.backend.DB.Set([]byte(docPrefix+key), body, pebble.Sync); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes the document stored under key.
func (d *PebbleDocuments) Delete(ctx context.Context, key string) error {
	if d.backend.closed.Load() {
		return errPebbleClosed
	}
	if err := d.backend.DB.Delete([]byte(docPrefix+key), pebble.Sync); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys with the given prefix in order.
func (d *PebbleDocuments) Keys(ctx context.Context, prefix string) ([]string, error) {
	if d.backend.closed.Load() {
		return nil, errPebbleClosed
	}
	it, err := d.backend.DB.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	full := []byte(docPrefix + prefix)
	var keys []string
	for ok := it.SeekGE(full); ok; ok = it.Next() {
		k := it.Key()
		if !bytes.HasPrefix(k, full) {
			break
		}
		keys = append(keys, string(k[len(docPrefix):]))
	}
	return keys, it.Error()
}

// PebbleHealthChecker reports the state of the store.
type PebbleHealthChecker struct {
	backend *PebbleBackend
}

// Ping fails once the store is closed.
func (h *PebbleHealthChecker) Ping(ctx context.Context) error {
	if h.backend.closed.Load() {
		return errPebbleClosed
	}
	return nil
}

// Status returns detailed health status.
func (h *PebbleHealthChecker) Status(ctx context.Context) (map[string]any, error) {
	if err := h.Ping(ctx); err != nil {
		return map[string]any{"healthy": false, "error": err.Error()}, nil
	}
	m := h.backend.DB.Metrics()
	return map[string]any{
		"healthy":    true,
		"version":    "pebble",
		"disk_usage": int64(m.DiskSpaceUsage()),
	}, nil
}
