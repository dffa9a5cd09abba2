/*
Package storage provides the pluggable snapshot store for galileo-metrics.

A snapshot is one aggregated fetch of a log stream: the session, trace and
span tree together with the names and ids it was fetched for. Keeping
snapshots lets later runs list or compare what a log stream looked like at
earlier points in time.

# Backends

  - memory: in-process, for tests and runs without a store directory
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

All backends implement the Store interface:

	type Store interface {
	    Put(ctx context.Context, snap *Snapshot) error
	    Latest(ctx context.Context, project, logStream string) (*Snapshot, error)
	    List(ctx context.Context, req ListRequest) ([]*Snapshot, error)
	    Delete(ctx context.Context, before time.Time) (int, error)
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

# Usage Example

	store, err := badger.New(badger.Config{Path: "./snapshots"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	res, err := fetcher.Fetch(ctx, "Legal Assistant", "production")
	if err != nil {
	    log.Fatal(err)
	}
	if err := store.Put(ctx, storage.NewSnapshot(res)); err != nil {
	    log.Fatal(err)
	}

	latest, err := store.Latest(ctx, "Legal Assistant", "production")

Snapshots are keyed by the project and log stream names as given on the
command line, so lookups are exact and case-sensitive.
*/
package storage
