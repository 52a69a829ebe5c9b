package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ytsummarize/internal/logging"
)

// Listing describes one cached entry for display.
type Listing struct {
	Key       Key
	Kind      Kind
	Source    string
	Title     string
	Method    string
	Model     string
	Size      int64
	WrittenAt time.Time
}

// KindStats aggregates the entries of one kind.
type KindStats struct {
	Kind    Kind
	Entries int
	Bytes   int64
}

// Stats summarizes the cache contents.
type Stats struct {
	Kinds []KindStats
}

// TotalEntries sums entries across kinds.
func (s Stats) TotalEntries() int {
	total := 0
	for _, k := range s.Kinds {
		total += k.Entries
	}
	return total
}

// TotalBytes sums entry sizes across kinds.
func (s Stats) TotalBytes() int64 {
	var total int64
	for _, k := range s.Kinds {
		total += k.Bytes
	}
	return total
}

// List returns entries of kind (all kinds when empty), newest first. Labels
// come from the index; when the index is unavailable entries are listed from
// the filesystem without labels.
func (s *Store) List(ctx context.Context, kind Kind) ([]Listing, error) {
	if s.index != nil {
		rows, err := s.index.list(ctx, kind)
		if err == nil {
			listings := make([]Listing, 0, len(rows))
			for _, row := range rows {
				listings = append(listings, Listing(row))
			}
			return listings, nil
		}
		logging.WarnWithContext(s.logger, "cache index list failed; scanning files", "cache_index_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "titles and methods are omitted from the listing"))
	}
	return s.scan(kind)
}

// Stats counts entries and bytes per kind from the filesystem.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	listings, err := s.scan("")
	if err != nil {
		return Stats{}, err
	}
	byKind := make(map[Kind]*KindStats, len(Kinds))
	for _, k := range Kinds {
		byKind[k] = &KindStats{Kind: k}
	}
	for _, l := range listings {
		ks := byKind[l.Kind]
		ks.Entries++
		ks.Bytes += l.Size
	}
	stats := Stats{Kinds: make([]KindStats, 0, len(Kinds))}
	for _, k := range Kinds {
		stats.Kinds = append(stats.Kinds, *byKind[k])
	}
	return stats, nil
}

// Clear removes entries matching kind and key prefix (both optional) and
// returns the number removed.
func (s *Store) Clear(ctx context.Context, kind Kind, keyPrefix string) (int, error) {
	listings, err := s.scan(kind)
	if err != nil {
		return 0, err
	}
	keyPrefix = strings.TrimSpace(keyPrefix)
	removed := 0
	for _, l := range listings {
		if keyPrefix != "" && !strings.HasPrefix(string(l.Key), keyPrefix) {
			continue
		}
		if err := s.Invalidate(ctx, l.Key, l.Kind); err != nil {
			return removed, err
		}
		removed++
	}
	if keyPrefix == "" && s.index != nil {
		kinds := Kinds
		if kind != "" {
			kinds = []Kind{kind}
		}
		for _, k := range kinds {
			if err := s.index.removeKind(ctx, k); err != nil {
				s.logger.Debug("clear cache index failed", logging.String("kind", string(k)), logging.Error(err))
			}
		}
	}
	s.logger.Info("cache cleared",
		logging.String("kind", string(kind)),
		logging.String("key_prefix", keyPrefix),
		logging.Int("removed", removed))
	return removed, nil
}

func (s *Store) scan(kind Kind) ([]Listing, error) {
	kinds := Kinds
	if kind != "" {
		kinds = []Kind{kind}
	}
	var listings []Listing
	for _, k := range kinds {
		dir := filepath.Join(s.dir, string(k))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("scan cache %s: %w", k, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || filepath.Ext(name) != ".json" {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			listings = append(listings, Listing{
				Key:       Key(strings.TrimSuffix(name, ".json")),
				Kind:      k,
				Size:      info.Size(),
				WrittenAt: info.ModTime().UTC(),
			})
		}
	}
	sort.SliceStable(listings, func(i, j int) bool {
		if !listings[i].WrittenAt.Equal(listings[j].WrittenAt) {
			return listings[i].WrittenAt.After(listings[j].WrittenAt)
		}
		return listings[i].Key < listings[j].Key
	})
	return listings, nil
}

func (s *Store) indexPut(ctx context.Context, row indexRow) {
	if s.index == nil {
		return
	}
	if err := s.index.upsert(ctx, row); err != nil {
		logging.WarnWithContext(s.logger, "cache index update failed", "cache_index_unavailable",
			logging.CacheKey(row.Key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry is cached but missing from cache list"))
	}
}

func (s *Store) indexDelete(ctx context.Context, key Key, kind Kind) {
	if s.index == nil {
		return
	}
	if err := s.index.remove(ctx, key, kind); err != nil {
		s.logger.Debug("cache index delete failed", logging.CacheKey(key), logging.Error(err))
	}
}
