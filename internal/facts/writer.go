package facts

import (
	"context"
	"fmt"
	"strconv"
)

// Writer buffers the facts of one extraction session in front of a Sink.
//
// Labels are resolved through the sink immediately and cached. Facts are held
// until Flush so a failed subtree can be rolled back with Mark and Rollback
// before anything reaches the sink. The first sink error is sticky: after it,
// label requests return 0, emits are dropped, and Err reports the error.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	ctx   context.Context
	sink  Sink
	runID string

	labels  map[string]Label
	created map[string]bool
	fresh   int

	pending []Fact
	hashes  []uint64
	seen    map[uint64]int

	err error
}

// NewWriter returns a writer over sink. Fresh labels are keyed by runID so
// they never collide with canonical keys or with other runs.
func NewWriter(ctx context.Context, sink Sink, runID string) *Writer {
	return &Writer{
		ctx:     ctx,
		sink:    sink,
		runID:   runID,
		labels:  make(map[string]Label),
		created: make(map[string]bool),
		seen:    make(map[uint64]int),
	}
}

// Label returns the canonical label for key.
func (w *Writer) Label(key string) Label {
	l, _ := w.LabelCreated(key)
	return l
}

// LabelCreated returns the canonical label for key, and whether this writer
// was the one that created it in the sink.
func (w *Writer) LabelCreated(key string) (Label, bool) {
	if l, ok := w.labels[key]; ok {
		return l, w.created[key]
	}
	if w.err != nil {
		return 0, false
	}
	l, created, err := w.sink.GetLabelFor(w.ctx, key)
	if err != nil {
		w.err = fmt.Errorf("labelling %q: %w", key, err)
		return 0, false
	}
	w.labels[key] = l
	if created {
		w.created[key] = true
	}
	return l, created
}

// Fresh returns a new label that is never handed out again.
func (w *Writer) Fresh() Label {
	w.fresh++
	return w.Label("fresh;" + w.runID + ";" + strconv.Itoa(w.fresh))
}

// Emit buffers a fact. A fact equal to one already buffered is dropped.
func (w *Writer) Emit(kind string, args ...Arg) {
	if w.err != nil {
		return
	}
	f := Fact{Kind: kind, Args: args}
	h := f.Hash()
	if _, dup := w.seen[h]; dup {
		return
	}
	w.seen[h] = len(w.pending)
	w.pending = append(w.pending, f)
	w.hashes = append(w.hashes, h)
}

// Mark returns a position that Rollback can return to.
func (w *Writer) Mark() int {
	return len(w.pending)
}

// Rollback discards every fact buffered since mark. Labels stay allocated;
// they are never retracted.
func (w *Writer) Rollback(mark int) {
	if mark < 0 || mark > len(w.pending) {
		return
	}
	for _, h := range w.hashes[mark:] {
		delete(w.seen, h)
	}
	w.pending = w.pending[:mark]
	w.hashes = w.hashes[:mark]
}

// Pending returns the buffered facts.
func (w *Writer) Pending() []Fact {
	return w.pending
}

// Flush appends the buffered facts to the sink and clears the buffer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.sink.Append(w.ctx, w.pending...); err != nil {
		w.err = fmt.Errorf("appending %d facts: %w", len(w.pending), err)
		return w.err
	}
	w.pending = nil
	w.hashes = nil
	w.seen = make(map[uint64]int)
	return nil
}

// Err returns the first sink error, if any.
func (w *Writer) Err() error {
	return w.err
}
