package jtrie

// journalEvent is one entry of the append-only journal: either a key being
// set to a value (possibly with caller-defined flags) or a key being
// removed. prevState links back to the journal index that held the same
// key's previous entry, or -1 if the key had no prior entry this
// transaction. Rollback walks this chain to restore the state index.
type journalEvent struct {
	key       [32]byte
	removed   bool
	value     Value
	prevState int // -1 means "no earlier entry for this key"
}

// journal is the append-order log of staged writes (component D). Entries
// are never mutated once appended; rollback only truncates the tail.
type journal struct {
	events []journalEvent
}

func (j *journal) len() int {
	return len(j.events)
}

func (j *journal) push(e journalEvent) int {
	idx := len(j.events)
	j.events = append(j.events, e)
	return idx
}

func (j *journal) at(idx int) journalEvent {
	return j.events[idx]
}

func (j *journal) truncate(length int) {
	j.events = j.events[:length]
}

// stateIndex maps a key to the journal index holding its latest entry
// (component E). It gives O(1) reads without scanning the journal.
type stateIndex struct {
	m map[[32]byte]int
}

func newStateIndex() *stateIndex {
	return &stateIndex{m: make(map[[32]byte]int)}
}

func (s *stateIndex) get(key [32]byte) (int, bool) {
	idx, ok := s.m[key]
	return idx, ok
}

func (s *stateIndex) set(key [32]byte, idx int) {
	s.m[key] = idx
}

func (s *stateIndex) remove(key [32]byte) {
	delete(s.m, key)
}

func (s *stateIndex) len() int {
	return len(s.m)
}

func (s *stateIndex) clear() {
	s.m = make(map[[32]byte]int)
}
