package fgblock

import (
	"bytes"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/scraperwall/fgblock/store"
)

var errMemNotFound = errors.New("not found")

// memStore is an in-memory store.KVStore for tests
type memStore struct {
	mutex sync.Mutex
	data  map[string][]byte
}

var _ store.KVStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) key(namespace, key []byte) string {
	return string(namespace) + "/" + string(key)
}

func (m *memStore) Get(namespace, key []byte) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	v, ok := m.data[m.key(namespace, key)]
	if !ok {
		return nil, errMemNotFound
	}
	return v, nil
}

func (m *memStore) Set(namespace, key, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data[m.key(namespace, key)] = value
	return nil
}

func (m *memStore) SetEx(namespace, key, value []byte, ttl time.Duration) error {
	return m.Set(namespace, key, value)
}

func (m *memStore) Count(namespace, prefix []byte) (int, error) {
	c := 0
	err := m.Each(namespace, prefix, func(key, value []byte) { c++ })
	return c, err
}

func (m *memStore) Remove(namespace, key []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.data, m.key(namespace, key))
	return nil
}

func (m *memStore) Each(namespace, prefix []byte, callback store.EachFunc) error {
	m.mutex.Lock()
	ns := []byte(m.key(namespace, nil))
	p := []byte(m.key(namespace, prefix))

	keys := make([]string, 0)
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = m.data[k]
	}
	m.mutex.Unlock()

	for i, k := range keys {
		callback(bytes.TrimPrefix([]byte(k), ns), values[i])
	}
	return nil
}

func (m *memStore) ErrNotFound() error {
	return errMemNotFound
}

func (m *memStore) Close() error {
	return nil
}
