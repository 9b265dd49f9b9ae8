package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/irfacts/internal/facts"
)

// Key prefixes for different data types
const (
	prefixKey   = "k:" // key -> label
	prefixLabel = "l:" // label -> key
	prefixFact  = "f:" // f:<kind>:<seq> -> fact args
	prefixHash  = "x:" // fact content hash marks
	prefixRun   = "r:" // run metadata

	seqLabels = "s:labels"
	seqFacts  = "s:facts"

	// appendChunk bounds the facts written per transaction.
	appendChunk = 2000

	maxConflictRetries = 8
)

// BadgerBackend is a BadgerDB-backed fact store.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	readOnly    bool
	mu          sync.RWMutex
	labelSeq    *badger.Sequence
	factSeq     *badger.Sequence
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	if !readOnly {
		if b.labelSeq, err = b.db.GetSequence([]byte(seqLabels), 1000); err != nil {
			b.db.Close()
			return fmt.Errorf("opening label sequence: %w", err)
		}
		if b.factSeq, err = b.db.GetSequence([]byte(seqFacts), 1000); err != nil {
			b.labelSeq.Release()
			b.db.Close()
			return fmt.Errorf("opening fact sequence: %w", err)
		}
	}

	b.readOnly = readOnly
	b.initialized = true
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	if b.labelSeq != nil {
		_ = b.labelSeq.Release()
		b.labelSeq = nil
	}
	if b.factSeq != nil {
		_ = b.factSeq.Release()
		b.factSeq = nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

func labelBytes(l facts.Label) []byte {
	return binary.BigEndian.AppendUint64([]byte(prefixLabel), uint64(l))
}

func factKey(kind string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(prefixFact+kind+":"), seq)
}

func hashKey(h uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(prefixHash), h)
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (b *BadgerBackend) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// GetLabelFor implements facts.Sink.
func (b *BadgerBackend) GetLabelFor(ctx context.Context, key string) (facts.Label, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.readOnly {
		l, ok, err := b.lookup(key)
		if err == nil && !ok {
			err = fmt.Errorf("label %q not found in read-only store", key)
		}
		return l, false, err
	}

	var label facts.Label
	var created bool
	err := b.update(func(txn *badger.Txn) error {
		created = false
		item, err := txn.Get([]byte(prefixKey + key))
		if err == nil {
			return item.Value(func(val []byte) error {
				label = facts.Label(binary.BigEndian.Uint64(val))
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		n, err := b.labelSeq.Next()
		if err != nil {
			return fmt.Errorf("allocating label: %w", err)
		}
		label = facts.Label(n + 1)
		created = true
		if err := txn.Set([]byte(prefixKey+key), binary.BigEndian.AppendUint64(nil, uint64(label))); err != nil {
			return err
		}
		return txn.Set(labelBytes(label), []byte(key))
	})
	if err != nil {
		return 0, false, fmt.Errorf("getting label: %w", err)
	}
	return label, created, nil
}

// Append implements facts.Sink.
func (b *BadgerBackend) Append(ctx context.Context, fs ...facts.Fact) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.readOnly {
		return errors.New("append to read-only store")
	}

	for start := 0; start < len(fs); start += appendChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+appendChunk, len(fs))
		chunk := fs[start:end]
		err := b.update(func(txn *badger.Txn) error {
			for _, f := range chunk {
				hk := hashKey(f.Hash())
				if _, err := txn.Get(hk); err == nil {
					continue
				} else if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				data, err := json.Marshal(f.Args)
				if err != nil {
					return fmt.Errorf("marshaling fact: %w", err)
				}
				seq, err := b.factSeq.Next()
				if err != nil {
					return fmt.Errorf("allocating fact sequence: %w", err)
				}
				if err := txn.Set(factKey(f.Kind, seq), data); err != nil {
					return fmt.Errorf("setting fact: %w", err)
				}
				if err := txn.Set(hk, nil); err != nil {
					return fmt.Errorf("setting fact hash: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *BadgerBackend) lookup(key string) (facts.Label, bool, error) {
	var label facts.Label
	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixKey + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			label = facts.Label(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	return label, found, err
}

// LookupLabel implements FactStore.
func (b *BadgerBackend) LookupLabel(ctx context.Context, key string) (facts.Label, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lookup(key)
}

// KeyOf implements FactStore.
func (b *BadgerBackend) KeyOf(ctx context.Context, label facts.Label) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var key string
	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(labelBytes(label))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		val, err := item.ValueCopy(nil)
		key = string(val)
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("getting key of %s: %w", label, err)
	}
	return key, found, nil
}

// scanFacts iterates the facts under prefix in key order.
func (b *BadgerBackend) scanFacts(prefix string, fn func(f facts.Fact)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.Key()
			// f:<kind>:<8-byte seq>
			kind := string(k[len(prefixFact) : len(k)-9])
			var args []facts.Arg
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &args)
			}); err != nil {
				return fmt.Errorf("unmarshaling fact: %w", err)
			}
			fn(facts.Fact{Kind: kind, Args: args})
		}
		return nil
	})
}

// Facts implements FactStore.
func (b *BadgerBackend) Facts(ctx context.Context, kind string) ([]facts.Fact, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []facts.Fact
	err := b.scanFacts(prefixFact+kind+":", func(f facts.Fact) {
		if f.Kind == kind {
			out = append(out, f)
		}
	})
	return out, err
}

// AllFacts implements FactStore.
func (b *BadgerBackend) AllFacts(ctx context.Context) ([]facts.Fact, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []facts.Fact
	err := b.scanFacts(prefixFact, func(f facts.Fact) {
		out = append(out, f)
	})
	return out, err
}

// Stats implements FactStore.
func (b *BadgerBackend) Stats(ctx context.Context) (*Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := &Stats{ByKind: make(map[string]int)}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := string(it.Item().Key())
			switch {
			case strings.HasPrefix(k, prefixKey):
				s.Labels++
			case strings.HasPrefix(k, prefixFact):
				s.Facts++
				s.ByKind[k[len(prefixFact):len(k)-9]]++
			}
		}
		return nil
	})
	return s, err
}

// RecordRun implements FactStore.
func (b *BadgerBackend) RecordRun(ctx context.Context, run *Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	return b.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixRun+run.ID), data)
	})
}

// Runs implements FactStore.
func (b *BadgerBackend) Runs(ctx context.Context) ([]*Run, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var runs []*Run
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRun)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var r Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("unmarshaling run: %w", err)
			}
			runs = append(runs, &r)
		}
		return nil
	})
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs, err
}
