// Package store caches precompiled templates.
//
// A Store maps keys to serialized templates, as produced by
// bytecode.Marshal. Keys derived with Key change whenever the template
// source, the compile options or the compiler revision change, so stale
// artifacts are never returned for a newer build.
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"

	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/compiler"
)

// ErrNotFound is returned by Get when no artifact exists for a key.
var ErrNotFound = stderrors.New("artifact not found")

// Store holds precompiled template artifacts.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

var keyNamespace = uuid.Must(uuid.FromString("7d1c33a4-52f1-4b8e-9d0a-6f3e8f0b2c55"))

// Key returns the cache key of source compiled with opts.
func Key(source string, opts *compiler.Options) (string, error) {
	if opts == nil {
		opts = &compiler.Options{}
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("store: encoding options: %w", err)
	}
	name := fmt.Sprintf("%d\x00%s\x00%s", bytecode.CompilerRevision, optsJSON, source)
	return uuid.NewV5(keyNamespace, name).String(), nil
}

// Memory is a Store backed by a map.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{items: map[string][]byte{}}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored artifacts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
