package store

import (
	"time"
)

// EachFunc gets called with the key (without namespace) and value of every item visited by Each
type EachFunc func(key, value []byte)

// KVStore defines an embedded key/value store database interface.
type KVStore interface {
	Get(namespace, key []byte) (value []byte, err error)
	Set(namespace, key, value []byte) error
	SetEx(namespace, key, value []byte, ttl time.Duration) error
	Count(namespace, prefix []byte) (int, error)
	Remove(namespace, key []byte) error
	Each(namespace, prefix []byte, callback EachFunc) error
	ErrNotFound() error
	Close() error
}
