package storage

import (
	"context"
	"strconv"
	"sync"
)

// Memory keeps objects in process. Used for local development and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	seq     int64
	// FailPut and FailDelete inject errors for tests.
	FailPut    error
	FailDelete error
}

type memoryObject struct {
	data    []byte
	version string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if key == "" {
		return Object{}, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return Object{}, m.FailPut
	}
	m.seq++
	obj := memoryObject{data: append([]byte(nil), data...), version: strconv.FormatInt(m.seq, 10)}
	m.objects[key] = obj
	return Object{Key: key, Version: obj.version, Size: int64(len(data))}, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) URL(key, version string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", ErrNotFound
	}
	return "memory://" + key + "?v=" + version, nil
}

// Get returns the stored bytes and version for key.
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.version, true
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// SetFailures swaps the injected errors under the store lock.
func (m *Memory) SetFailures(put, del error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailPut = put
	m.FailDelete = del
}
