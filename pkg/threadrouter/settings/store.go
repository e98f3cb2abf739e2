package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ConfigDocumentKey is the key under which the configuration document lives.
const ConfigDocumentKey = "categorymover/config"

// ErrDocumentNotFound is returned by Documents.Get for a missing key.
var ErrDocumentNotFound = errors.New("document not found")

// Store persists the configuration document.
type Store interface {
	// Load returns the stored configuration. found is false when nothing
	// has been stored yet.
	Load(ctx context.Context) (cfg Configuration, found bool, err error)

	// Save replaces the stored configuration.
	Save(ctx context.Context, cfg Configuration) error

	// Delete removes the stored configuration. Deleting nothing is not an error.
	Delete(ctx context.Context) error
}

// Documents is a key/value document backend.
type Documents interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
}

// DocumentStore stores the configuration as a JSON document.
type DocumentStore struct {
	docs Documents
	key  string
}

// NewDocumentStore creates a Store over docs. An empty key uses ConfigDocumentKey.
func NewDocumentStore(docs Documents, key string) *DocumentStore {
	if key == "" {
		key = ConfigDocumentKey
	}
	return &DocumentStore{docs: docs, key: key}
}

// Load reads and decodes the document.
func (s *DocumentStore) Load(ctx context.Context) (Configuration, bool, error) {
	body, err := s.docs.Get(ctx, s.key)
	if errors.Is(err, ErrDocumentNotFound) {
		return Configuration{}, false, nil
	}
	if err != nil {
		return Configuration{}, false, fmt.Errorf("reading %s: %w", s.key, err)
	}

	// Start from defaults so documents written by older versions keep
	// enabled=true when the field is absent.
	cfg := Default()
	if err := json.Unmarshal(body, &cfg); err != nil {
		return Configuration{}, false, fmt.Errorf("decoding %s: %w", s.key, err)
	}
	cfg.normalize()
	return cfg, true, nil
}

// Save encodes and writes the document.
func (s *DocumentStore) Save(ctx context.Context, cfg Configuration) error {
	cfg.normalize()
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.key, err)
	}
	if err := s.docs.Put(ctx, s.key, body); err != nil {
		return fmt.Errorf("writing %s: %w", s.key, err)
	}
	return nil
}

// Delete removes the document.
func (s *DocumentStore) Delete(ctx context.Context) error {
	if err := s.docs.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("deleting %s: %w", s.key, err)
	}
	return nil
}
