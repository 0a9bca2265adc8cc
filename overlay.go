package jtrie

import "fmt"

// Checkpoint is an opaque marker returned by Overlay.Checkpoint, capturing
// the journal and log-buffer lengths at creation time.
type Checkpoint struct {
	journalLength int
	logsLength    int
}

// LogRecord is one emitted event log, staged alongside state writes and
// drained on commit.
type LogRecord struct {
	Address Address
	Topics  [][32]byte
	Data    []byte
}

// Overlay is the journaled trie overlay (components D through H): it
// stages updates, removals and logs produced during one transaction (or
// nested sub-transaction) against a backing TrieStorage, and either
// commits them atomically or rolls them back to any checkpoint taken
// during the transaction's lifetime.
//
// An Overlay is not safe for concurrent use; callers synchronize access to
// a single transaction's overlay themselves.
type Overlay struct {
	storage   TrieStorage
	state     *stateIndex
	journal   journal
	logs      []LogRecord
	root      [32]byte
	committed int
}

// NewOverlay wraps storage in a fresh Overlay, priming the root from the
// storage's current state.
func NewOverlay(storage TrieStorage) *Overlay {
	return &Overlay{
		storage: storage,
		state:   newStateIndex(),
		root:    storage.ComputeRoot(),
	}
}

// Checkpoint returns an opaque marker for the overlay's current journal and
// log-buffer lengths. O(1), no allocation.
func (o *Overlay) Checkpoint() Checkpoint {
	return Checkpoint{journalLength: o.journal.len(), logsLength: len(o.logs)}
}

// Get returns the value staged or committed for key, and whether it was
// served cold (resolved from the backing trie rather than the overlay).
func (o *Overlay) Get(key [32]byte) (Value, bool, bool) {
	if idx, ok := o.state.get(key); ok {
		e := o.journal.at(idx)
		if e.removed {
			return Value{}, false, false
		}
		return e.value, false, true
	}
	v, ok := o.storage.Get(key)
	if !ok {
		return Value{}, false, false
	}
	return v, true, true
}

// Update stages key to hold value, appending to the journal and advancing
// the state index to the new entry.
func (o *Overlay) Update(key [32]byte, value Value) {
	prev := -1
	if idx, ok := o.state.get(key); ok {
		prev = idx
	}
	idx := o.journal.push(journalEvent{key: key, value: value, prevState: prev})
	o.state.set(key, idx)
}

// Remove stages key for deletion.
func (o *Overlay) Remove(key [32]byte) {
	prev := -1
	if idx, ok := o.state.get(key); ok {
		prev = idx
	}
	idx := o.journal.push(journalEvent{key: key, removed: true, prevState: prev})
	o.state.set(key, idx)
}

// Store is the EVM-flavored convenience wrapper over Update: it derives the
// trie key from (address, slot) and stages a single-word value.
func (o *Overlay) Store(address Address, slot, value Word) error {
	key, err := StorageKey(address, slot)
	if err != nil {
		return fmt.Errorf("jtrie: store: %w", err)
	}
	o.Update(key, Value{Flags: 1, Words: []Word{value}})
	return nil
}

// Load is the EVM-flavored convenience wrapper over Get: it derives the
// trie key from (address, slot) and returns the single staged or
// committed word, along with whether it was cold.
func (o *Overlay) Load(address Address, slot Word) (value Word, isCold bool, found bool, err error) {
	key, kerr := StorageKey(address, slot)
	if kerr != nil {
		return Word{}, false, false, fmt.Errorf("jtrie: load: %w", kerr)
	}
	v, cold, ok := o.Get(key)
	if !ok {
		return Word{}, false, false, nil
	}
	Assert(len(v.Words) == 1, "jtrie: load: storage key %x holds %d words, want 1", key, len(v.Words))
	return v.Words[0], cold, true, nil
}

// ComputeRoot returns the cached root of the underlying trie (spec.md §3):
// refreshed on construction and after every successful commit, unaffected
// by any uncommitted staged writes in between.
func (o *Overlay) ComputeRoot() [32]byte {
	return o.root
}

// EmitLog appends a log record to the buffer. Logs are truncated by
// rollback and drained by commit, just like staged writes.
func (o *Overlay) EmitLog(address Address, topics [][32]byte, data []byte) {
	o.logs = append(o.logs, LogRecord{Address: address, Topics: topics, Data: data})
}

// Commit coalesces every journal entry since the last commit by key
// (latest write wins), flushes the result to the backing TrieStorage,
// recomputes the root, drains the log buffer and returns both.
//
// Commit panics if there is nothing uncommitted to flush; callers must
// check for staged work themselves (e.g. compare a checkpoint taken before
// and after the work in question) before calling it speculatively. A trie
// failure, by contrast, is not fatal: it is returned to the caller
// unchanged, per spec.md §4.G/§7's distinction between the two error
// categories. Per §4.G step 2, commit aborts on the first such failure;
// writes already flushed to the trie in this commit are permitted to
// remain (the caller's policy, not the overlay's, governs recovery).
func (o *Overlay) Commit() ([32]byte, []LogRecord, error) {
	Assert(o.committed < o.journal.len(), "jtrie: commit: nothing to commit")

	type coalesced struct {
		removed bool
		value   Value
	}
	byKey := make(map[[32]byte]coalesced)
	for i := o.committed; i < o.journal.len(); i++ {
		e := o.journal.at(i)
		byKey[e.key] = coalesced{removed: e.removed, value: e.value}
	}
	for key, c := range byKey {
		var err error
		if c.removed {
			err = o.storage.Remove(key)
		} else {
			err = o.storage.Update(key, c.value)
		}
		if err != nil {
			return [32]byte{}, nil, fmt.Errorf("jtrie: commit: %w", err)
		}
	}

	o.journal.truncate(0)
	o.state.clear()
	logs := o.logs
	o.logs = nil
	o.committed = 0
	o.root = o.storage.ComputeRoot()
	return o.root, logs, nil
}

// Rollback reverses the overlay to cp, undoing every update, removal and
// log emitted since. It panics if cp predates the last commit (invariant
// J3): committed history can never be unwound.
func (o *Overlay) Rollback(cp Checkpoint) {
	Assert(cp.journalLength >= o.committed, "jtrie: rollback: checkpoint predates last commit")

	for i := o.journal.len() - 1; i >= cp.journalLength; i-- {
		e := o.journal.at(i)
		if e.prevState >= 0 {
			o.state.set(e.key, e.prevState)
		} else {
			o.state.remove(e.key)
		}
	}
	o.journal.truncate(cp.journalLength)
	o.logs = o.logs[:cp.logsLength]
}
