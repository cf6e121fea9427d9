// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "ckpt:"

// BadgerStore keeps checkpoints in an embedded Badger database. Entries get
// a native TTL when the checkpoint has an expiry.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadgerStore opens (or creates) the database at path. An empty path
// opens an in-memory instance.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func (s *BadgerStore) Save(_ context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	buf, err := encode(cp)
	if err != nil {
		return err
	}
	entry := badger.NewEntry([]byte(badgerPrefix+key(cp.Tenant, cp.Platform)), buf)
	if !cp.ExpiresAt.IsZero() {
		if ttl := cp.ExpiresAt.Sub(s.now()); ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

func getBadger(txn *badger.Txn, k []byte) (Checkpoint, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, err
	}
	var cp Checkpoint
	err = item.Value(func(val []byte) error {
		var derr error
		cp, derr = decode(val)
		return derr
	})
	return cp, err
}

func (s *BadgerStore) Load(_ context.Context, tenant, platform string) (Checkpoint, error) {
	var cp Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		cp, err = getBadger(txn, []byte(badgerPrefix+key(tenant, platform)))
		return err
	})
	if err != nil {
		return Checkpoint{}, err
	}
	return checkLoad(cp, tenant, s.now())
}

func (s *BadgerStore) Take(_ context.Context, tenant, platform, token string) (Checkpoint, error) {
	k := []byte(badgerPrefix + key(tenant, platform))
	var cp Checkpoint
	var checkErr error
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		cp, err = getBadger(txn, k)
		if err != nil {
			return err
		}
		var remove bool
		remove, checkErr = checkTake(cp, tenant, token, s.now())
		if remove {
			return txn.Delete(k)
		}
		return nil
	})
	if err != nil {
		return Checkpoint{}, err
	}
	if checkErr != nil {
		return Checkpoint{}, checkErr
	}
	return cp, nil
}

func (s *BadgerStore) Delete(_ context.Context, tenant, platform string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerPrefix + key(tenant, platform)))
	})
}

func (s *BadgerStore) List(ctx context.Context) ([]Checkpoint, error) {
	var out []Checkpoint
	prefix := []byte(badgerPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var cp Checkpoint
			if err := it.Item().Value(func(val []byte) error {
				var derr error
				cp, derr = decode(val)
				return derr
			}); err != nil {
				continue
			}
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortCheckpoints(out)
	return out, nil
}

func (s *BadgerStore) Backend() string { return "badger" }
func (s *BadgerStore) Degraded() bool  { return false }
func (s *BadgerStore) Close() error    { return s.db.Close() }
