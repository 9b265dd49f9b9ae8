package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/Benny93/irfacts/internal/facts"
)

// MemoryBackend is an in-memory implementation of FactStore for testing and
// one-shot runs.
type MemoryBackend struct {
	mu     sync.RWMutex
	labels map[string]facts.Label
	keys   map[facts.Label]string
	facts  []facts.Fact
	byKind map[string][]int
	hashes map[uint64]struct{}
	runs   []*Run
}

// NewMemoryBackend creates a new in-memory fact store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		labels: make(map[string]facts.Label),
		keys:   make(map[facts.Label]string),
		byKind: make(map[string][]int),
		hashes: make(map[uint64]struct{}),
	}
}

// Initialize implements FactStore.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	return nil
}

// Close implements FactStore.
func (m *MemoryBackend) Close() error {
	return nil
}

// GetLabelFor implements facts.Sink.
func (m *MemoryBackend) GetLabelFor(ctx context.Context, key string) (facts.Label, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.labels[key]; ok {
		return l, false, nil
	}
	l := facts.Label(len(m.labels) + 1)
	m.labels[key] = l
	m.keys[l] = key
	return l, true, nil
}

// Append implements facts.Sink.
func (m *MemoryBackend) Append(ctx context.Context, fs ...facts.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range fs {
		h := f.Hash()
		if _, dup := m.hashes[h]; dup {
			continue
		}
		m.hashes[h] = struct{}{}
		m.byKind[f.Kind] = append(m.byKind[f.Kind], len(m.facts))
		m.facts = append(m.facts, f)
	}
	return nil
}

// LookupLabel implements FactStore.
func (m *MemoryBackend) LookupLabel(ctx context.Context, key string) (facts.Label, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.labels[key]
	return l, ok, nil
}

// KeyOf implements FactStore.
func (m *MemoryBackend) KeyOf(ctx context.Context, label facts.Label) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[label]
	return k, ok, nil
}

// Facts implements FactStore.
func (m *MemoryBackend) Facts(ctx context.Context, kind string) ([]facts.Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.byKind[kind]
	out := make([]facts.Fact, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.facts[i])
	}
	return out, nil
}

// AllFacts implements FactStore.
func (m *MemoryBackend) AllFacts(ctx context.Context) ([]facts.Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]facts.Fact(nil), m.facts...), nil
}

// Stats implements FactStore.
func (m *MemoryBackend) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Stats{Labels: len(m.labels), Facts: len(m.facts), ByKind: make(map[string]int)}
	for k, idx := range m.byKind {
		s.ByKind[k] = len(idx)
	}
	return s, nil
}

// RecordRun implements FactStore.
func (m *MemoryBackend) RecordRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *run
	m.runs = append(m.runs, &r)
	return nil
}

// Runs implements FactStore.
func (m *MemoryBackend) Runs(ctx context.Context) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]*Run(nil), m.runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// FactCount returns the number of stored facts.
func (m *MemoryBackend) FactCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.facts)
}
