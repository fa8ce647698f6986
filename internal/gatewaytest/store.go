// Package gatewaytest contains shared test doubles for the gateway:
// an in-memory key-value store and an upstream HTTP stub.
package gatewaytest

import (
	"context"
	"sync"
)

// FakeStore is an in-memory store.Store. Session keys are a plain set;
// script evaluation is delegated to EvalFunc so each test controls the
// limiter's answers.
type FakeStore struct {
	mu   sync.Mutex
	keys map[string]struct{}

	// EvalFunc answers Eval calls. Nil means every evaluation returns
	// []interface{}{int64(1), int64(0)} (allowed, none remaining).
	EvalFunc func(script string, keys []string, args ...interface{}) (interface{}, error)

	// EvalCalls records the keys of each Eval invocation.
	EvalCalls [][]string

	// Err, when set, is returned from every operation.
	Err error
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{keys: make(map[string]struct{})}
}

// SetKey marks a key as present.
func (f *FakeStore) SetKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = struct{}{}
}

// Exists reports whether the key was set.
func (f *FakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	_, ok := f.keys[key]
	return ok, nil
}

// Eval answers via EvalFunc.
func (f *FakeStore) Eval(_ context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	f.EvalCalls = append(f.EvalCalls, keys)
	fn := f.EvalFunc
	err := f.Err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(script, keys, args...)
	}
	return []interface{}{int64(1), int64(0)}, nil
}

// CountingBucket returns an EvalFunc implementing a fixed-budget bucket:
// the first capacity evaluations are allowed, the rest denied. It mimics
// the server-side script with a zero refill rate.
func CountingBucket(capacity int64) func(string, []string, ...interface{}) (interface{}, error) {
	var mu sync.Mutex
	remaining := capacity
	return func(string, []string, ...interface{}) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		if remaining > 0 {
			remaining--
			return []interface{}{int64(1), remaining}, nil
		}
		return []interface{}{int64(0), int64(0)}, nil
	}
}
