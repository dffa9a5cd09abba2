package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/nicktill/galileo-metrics/pkg/config"
	"github.com/nicktill/galileo-metrics/pkg/storage"
)

const keyLen = 16

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using BadgerDB (LSM tree)
type Store struct {
	db       *badger.DB
	inMemory bool
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = config.DefaultMaxMemoryMB)
	MaxMemoryMB int64
}

// New creates a BadgerDB snapshot store
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	// Keep badger's INFO chatter off stderr.
	opts = opts.WithLoggingLevel(badger.WARNING)

	maxMemoryMB := cfg.MaxMemoryMB
	if maxMemoryMB <= 0 {
		maxMemoryMB = config.DefaultMaxMemoryMB
	}
	memTableSize := maxMemoryMB * 1024 * 1024 / 2

	// Conservative memory limits: a few large writes per run.
	// BadgerDB defaults are 64 MB memtables x 5 and 2 GB value logs.
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(2).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, inMemory: cfg.InMemory}, nil
}

// Put stores a snapshot under its project, log stream and fetch time.
// A second snapshot with the same three values replaces the first.
func (s *Store) Put(ctx context.Context, snap *storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	storage.Prepare(snap)

	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	key := makeKey(snap.Project, snap.LogStream, snap.FetchedAt)

	_, err = withContext(ctx, "put", func() (struct{}, error) {
		return struct{}{}, s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			return nil
		})
	})
	return err
}

// Latest returns the newest snapshot of a log stream, or storage.ErrNotFound.
func (s *Store) Latest(ctx context.Context, project, logStream string) (*storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := streamPrefix(project, logStream)
	return withContext(ctx, "latest", func() (*storage.Snapshot, error) {
		var found *storage.Snapshot
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Reverse = true
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			// Reverse iteration starts at the largest key <= seek.
			seek := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xff}, keyLen-len(prefix))...)
			for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
				snap, err := decodeItem(it.Item())
				if err != nil {
					return err
				}
				// Different streams can share a hash prefix.
				if snap.Project == project && snap.LogStream == logStream {
					found = snap
					return nil
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, project, logStream)
		}
		return found, nil
	})
}

// List returns snapshots matching the request, newest first.
func (s *Store) List(ctx context.Context, req storage.ListRequest) ([]*storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return withContext(ctx, "list", func() ([]*storage.Snapshot, error) {
		results := make([]*storage.Snapshot, 0)
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchSize = 10
			if req.Project != "" && req.LogStream != "" {
				opts.Prefix = streamPrefix(req.Project, req.LogStream)
			}

			it := txn.NewIterator(opts)
			defer it.Close()

			var iterCount int
			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++
				if iterCount%100 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}

				// Time filters can be checked on the key alone.
				_, ts := parseKey(it.Item().Key())
				if (!req.Since.IsZero() && ts.Before(req.Since)) || (!req.Until.IsZero() && ts.After(req.Until)) {
					continue
				}

				snap, err := decodeItem(it.Item())
				if err != nil {
					return err
				}
				if req.Matches(snap) {
					results = append(results, snap)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		sort.SliceStable(results, func(i, j int) bool {
			return results[i].FetchedAt.After(results[j].FetchedAt)
		})
		if req.Limit > 0 && len(results) > req.Limit {
			results = results[:req.Limit]
		}
		return results, nil
	})
}

// Delete removes snapshots fetched before the cutoff.
func (s *Store) Delete(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return withContext(ctx, "delete", func() (int, error) {
		var deleted int
		err := s.db.Update(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			var keysToDelete [][]byte
			for it.Rewind(); it.Valid(); it.Next() {
				_, ts := parseKey(it.Item().Key())
				if ts.Before(before) {
					keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
				}
			}
			it.Close()

			for _, key := range keysToDelete {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := txn.Delete(key); err != nil {
					return fmt.Errorf("failed to delete snapshot: %w", err)
				}
			}
			deleted = len(keysToDelete)
			return nil
		})
		if err != nil {
			return 0, err
		}
		return deleted, nil
	})
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return withContext(ctx, "stats", func() (*storage.Stats, error) {
		stats := &storage.Stats{}
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			streams := make(map[uint64]struct{})
			for it.Rewind(); it.Valid(); it.Next() {
				hash, ts := parseKey(it.Item().Key())
				streams[hash] = struct{}{}
				stats.TotalSnapshots++

				if stats.OldestSnapshot.IsZero() || ts.Before(stats.OldestSnapshot) {
					stats.OldestSnapshot = ts
				}
				if ts.After(stats.NewestSnapshot) {
					stats.NewestSnapshot = ts
				}
			}
			stats.TotalStreams = uint64(len(streams))
			return nil
		})
		if err != nil {
			return nil, err
		}

		lsmSize, vlogSize := s.db.Size()
		stats.SizeBytes = uint64(lsmSize + vlogSize)
		return stats, nil
	})
}

// RunGC runs BadgerDB's value log garbage collection until there is nothing
// left to rewrite. discardRatio: rewrite a file if this fraction of it can be
// discarded (0.5 = 50%).
func (s *Store) RunGC(discardRatio float64) error {
	if s.inMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to run value log gc: %w", err)
		}
	}
}

// Close shuts down BadgerDB cleanly
func (s *Store) Close() error {
	return s.db.Close()
}

// withContext runs op on its own goroutine so that a cancelled context
// returns promptly even while badger holds a transaction open.
func withContext[T any](ctx context.Context, name string, op func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op()
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%s operation cancelled: %w", name, ctx.Err())
	}
}

// streamPrefix is the hash of the project and log stream names.
func streamPrefix(project, logStream string) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(project+"\x00"+logStream))
	return prefix
}

// makeKey creates a sortable key: stream_hash + fetched_at
// Format: [stream_hash (8 bytes)][unix nanos (8 bytes)]
func makeKey(project, logStream string, ts time.Time) []byte {
	key := make([]byte, keyLen)
	copy(key, streamPrefix(project, logStream))
	binary.BigEndian.PutUint64(key[8:], uint64(ts.UnixNano()))
	return key
}

// parseKey extracts the stream hash and timestamp from a storage key
func parseKey(key []byte) (uint64, time.Time) {
	hash := binary.BigEndian.Uint64(key[0:8])
	ts := time.Unix(0, int64(binary.BigEndian.Uint64(key[8:keyLen]))).UTC()
	return hash, ts
}

func decodeItem(item *badger.Item) (*storage.Snapshot, error) {
	var snap storage.Snapshot
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &snap)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
