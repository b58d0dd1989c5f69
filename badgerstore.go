package fgblock

import (
	"bytes"
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/scraperwall/fgblock/store"
	log "github.com/sirupsen/logrus"
)

const (
	// discard ratio for the value log GC.
	//
	// Ref: https://godoc.org/github.com/dgraph-io/badger#DB.RunValueLogGC
	badgerDiscardRatio = 0.5

	badgerGCInterval = 10 * time.Minute
)

var namespaceSeparator = []byte("/")

// BadgerDB is a wrapper around a BadgerDB backend database that implements
// the store.KVStore interface. It keeps looked up registry data across runs.
type BadgerDB struct {
	db  *badger.DB
	ctx context.Context
}

// NewBadgerDB opens (or creates) the badger database in dataDir.
// The value log GC runs until ctx is done.
func NewBadgerDB(ctx context.Context, dataDir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dataDir)
	opts.SyncWrites = true
	opts.Dir, opts.ValueDir = dataDir, dataDir
	opts.Logger = nil

	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	bdb := &BadgerDB{
		db:  badgerDB,
		ctx: ctx,
	}

	go bdb.runGC()
	return bdb, nil
}

var _ store.KVStore = (*BadgerDB)(nil)

// Get returns the value for key in namespace. If the key does not exist
// badger.ErrKeyNotFound is returned.
func (bdb *BadgerDB) Get(namespace, key []byte) ([]byte, error) {
	var value []byte

	err := bdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bdb.namespaceKey(namespace, key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set stores a value for key in namespace without expiry
func (bdb *BadgerDB) Set(namespace, key, value []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bdb.namespaceKey(namespace, key), value)
	})
}

// SetEx stores the given key and value for the time given by ttl
func (bdb *BadgerDB) SetEx(namespace, key, value []byte, ttl time.Duration) error {
	err := bdb.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(bdb.namespaceKey(namespace, key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})

	if err != nil {
		log.Warnf("badger: failed to write %s%s%s: %s", namespace, namespaceSeparator, key, err)
		return err
	}

	return nil
}

// Remove removes a single entry from the database
func (bdb *BadgerDB) Remove(namespace, key []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(bdb.namespaceKey(namespace, key))
	})
}

// Each calls callback for every item in namespace whose key starts with prefix
func (bdb *BadgerDB) Each(namespace, prefix []byte, callback store.EachFunc) error {
	nsPrefix := bdb.namespaceKey(namespace, nil)

	return bdb.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := bdb.namespaceKey(namespace, prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := bytes.TrimPrefix(item.KeyCopy(nil), nsPrefix)
			err := item.Value(func(v []byte) error {
				callback(key, v)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of entries that match namespace and prefix
func (bdb *BadgerDB) Count(namespace, prefix []byte) (int, error) {
	c := 0

	err := bdb.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := bdb.namespaceKey(namespace, prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			c++
		}
		return nil
	})

	return c, err
}

// ErrNotFound is the error badger returns when it can't find a key in the database
func (bdb *BadgerDB) ErrNotFound() error {
	return badger.ErrKeyNotFound
}

// Close closes the underlying badger database
func (bdb *BadgerDB) Close() error {
	return bdb.db.Close()
}

// runGC triggers the garbage collection for the BadgerDB backend database. It
// should be run in a goroutine.
func (bdb *BadgerDB) runGC() {
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := bdb.db.RunValueLogGC(badgerDiscardRatio)
			if err != nil {
				// don't report error when GC didn't result in any cleanup
				if errors.Is(err, badger.ErrNoRewrite) {
					log.Debugf("no BadgerDB GC occurred: %v", err)
				} else {
					log.Errorf("failed to GC BadgerDB: %v", err)
				}
			}

		case <-bdb.ctx.Done():
			return
		}
	}
}

// namespaceKey returns the composite key namespace/key used for lookup and storage
func (bdb *BadgerDB) namespaceKey(namespace, key []byte) []byte {
	k := make([]byte, 0, len(namespace)+len(namespaceSeparator)+len(key))
	k = append(k, namespace...)
	k = append(k, namespaceSeparator...)
	return append(k, key...)
}
