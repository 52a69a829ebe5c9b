package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"ytsummarize/internal/fileutil"
	"ytsummarize/internal/logging"
	"ytsummarize/internal/services"
)

const (
	envelopeVersion   = 1
	lockRetryInterval = 25 * time.Millisecond
)

// Entry is a decoded cache entry.
type Entry struct {
	Key       Key
	Kind      Kind
	WrittenAt time.Time
	Payload   []byte
}

// Labels annotate an entry in the index for listing.
type Labels struct {
	Source string
	Title  string
	Method string
	Model  string
}

type envelope struct {
	Version   int             `json:"version"`
	Kind      Kind            `json:"kind"`
	Key       Key             `json:"key"`
	WrittenAt time.Time       `json:"written_at"`
	Checksum  string          `json:"checksum"`
	Payload   json.RawMessage `json:"payload"`
}

// Store is the file-backed cache.
type Store struct {
	dir    string
	logger *slog.Logger
	index  *index
	now    func() time.Time
}

// Open prepares dir for use and opens the listing index.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "open", "cache directory is empty", nil)
	}
	for _, sub := range []string{string(KindTranscript), string(KindChunkMap), string(KindSummary), "locks"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	logger = logging.NewComponentLogger(logger, "cache")
	store := &Store{dir: dir, logger: logger, now: time.Now}

	idx, err := openIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		logging.WarnWithContext(logger, "cache index unavailable", "cache_index_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete index.db in the cache directory to rebuild it"),
			logging.String(logging.FieldImpact, "cache list and stats will be incomplete"))
	} else {
		store.index = idx
	}
	return store, nil
}

// Close releases the index connection.
func (s *Store) Close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.close()
}

// Dir returns the cache root.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key Key, kind Kind) string {
	return filepath.Join(s.dir, string(kind), string(key)+".json")
}

func (s *Store) lockPath(key Key, kind Kind) string {
	return filepath.Join(s.dir, "locks", string(kind)+"-"+string(key)+".lock")
}

// Get returns the entry for key, or ok=false on a miss. Corrupt entries are
// removed and reported as misses.
func (s *Store) Get(ctx context.Context, key Key, kind Kind) (Entry, bool, error) {
	data, err := os.ReadFile(s.path(key, kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("read cache entry %s/%s: %w", kind, key, err)
	}
	entry, err := decodeEnvelope(data, key, kind)
	if err != nil {
		s.discardCorrupt(ctx, key, kind, err, func(current []byte) bool {
			_, err := decodeEnvelope(current, key, kind)
			return err != nil
		})
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put atomically replaces the entry for key with payload, which must be valid
// JSON. The payload is stored compacted. The entry is visible to subsequent Gets when Put returns.
func (s *Store) Put(ctx context.Context, key Key, kind Kind, payload []byte, labels Labels) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return services.Wrap(services.ErrValidation, "cache", "put", fmt.Sprintf("payload for %s/%s is not valid JSON", kind, key), err)
	}
	payload = compact.Bytes()
	sum := sha256.Sum256(payload)
	env := envelope{
		Version:   envelopeVersion,
		Kind:      kind,
		Key:       key,
		WrittenAt: s.now().UTC(),
		Checksum:  hex.EncodeToString(sum[:]),
		Payload:   json.RawMessage(payload),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cache envelope: %w", err)
	}

	unlock, err := s.lock(ctx, key, kind)
	if err != nil {
		return err
	}
	defer unlock()

	if err := fileutil.WriteFileAtomic(s.path(key, kind), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry %s/%s: %w", kind, key, err)
	}
	s.indexPut(ctx, indexRow{
		Key:       key,
		Kind:      kind,
		Source:    labels.Source,
		Title:     labels.Title,
		Method:    labels.Method,
		Model:     labels.Model,
		Size:      int64(len(data)),
		WrittenAt: env.WrittenAt,
	})
	s.logger.Debug("cache entry written",
		logging.String("kind", string(kind)),
		logging.CacheKey(key),
		logging.Int("bytes", len(data)))
	return nil
}

// Invalidate removes the entry for key. Missing entries are not an error.
func (s *Store) Invalidate(ctx context.Context, key Key, kind Kind) error {
	unlock, err := s.lock(ctx, key, kind)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(s.path(key, kind)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache entry %s/%s: %w", kind, key, err)
	}
	s.indexDelete(ctx, key, kind)
	return nil
}

// GetJSON decodes the entry for key into a T. A payload that does not decode
// is treated as corruption: the entry is removed and a miss is returned.
func GetJSON[T any](ctx context.Context, s *Store, key Key, kind Kind) (T, bool, error) {
	var value T
	entry, ok, err := s.Get(ctx, key, kind)
	if err != nil || !ok {
		return value, false, err
	}
	if err := json.Unmarshal(entry.Payload, &value); err != nil {
		s.discardCorrupt(ctx, key, kind, fmt.Errorf("decode payload: %w", err), func(current []byte) bool {
			fresh, err := decodeEnvelope(current, key, kind)
			return err != nil || bytes.Equal(fresh.Payload, entry.Payload)
		})
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

// PutJSON encodes value and stores it under key.
func PutJSON[T any](ctx context.Context, s *Store, key Key, kind Kind, value T, labels Labels) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return s.Put(ctx, key, kind, payload, labels)
}

func (s *Store) lock(ctx context.Context, key Key, kind Kind) (func(), error) {
	fl := flock.New(s.lockPath(key, kind))
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("lock cache entry %s/%s: %w", kind, key, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock cache entry %s/%s: not acquired", kind, key)
	}
	return func() { _ = fl.Unlock() }, nil
}

// discardCorrupt removes the entry for key if, re-read under the entry lock,
// it is still corrupt. A concurrent Put that replaced the entry after the
// unlocked read keeps its entry.
func (s *Store) discardCorrupt(ctx context.Context, key Key, kind Kind, cause error, stillCorrupt func(current []byte) bool) {
	err := services.Wrap(services.ErrCacheCorruption, "cache", string(kind), string(key), cause)
	logger := logging.WithContext(ctx, s.logger)
	logging.WarnWithContext(logger, "cache entry corrupt; recomputing", "cache_corruption",
		logging.String("kind", string(kind)),
		logging.CacheKey(key),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "no action needed; the entry is rebuilt on this run"),
		logging.String(logging.FieldImpact, "cached work for this entry is repeated"))

	unlock, lockErr := s.lock(ctx, key, kind)
	if lockErr != nil {
		logger.Debug("lock corrupt cache entry failed", logging.Error(lockErr))
		return
	}
	defer unlock()
	current, readErr := os.ReadFile(s.path(key, kind))
	if readErr != nil {
		return
	}
	if !stillCorrupt(current) {
		logger.Debug("corrupt cache entry replaced concurrently; keeping it", logging.CacheKey(key))
		return
	}
	if rmErr := os.Remove(s.path(key, kind)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		logger.Debug("remove corrupt cache entry failed", logging.Error(rmErr))
		return
	}
	s.indexDelete(ctx, key, kind)
}

func decodeEnvelope(data []byte, key Key, kind Kind) (Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Entry{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return Entry{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if env.Kind != kind || env.Key != key {
		return Entry{}, fmt.Errorf("envelope addresses %s/%s", env.Kind, env.Key)
	}
	sum := sha256.Sum256(env.Payload)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return Entry{}, errors.New("checksum mismatch")
	}
	return Entry{Key: env.Key, Kind: env.Kind, WrittenAt: env.WrittenAt, Payload: []byte(env.Payload)}, nil
}
