package runtime

import (
	stderrors "errors"
	"sync"
)

// ErrTableClosed is returned by Park after Close.
var ErrTableClosed = stderrors.New("continuation table closed")

// Handle identifies a parked continuation. Zero is never a valid handle.
type Handle uint32

// Table holds continuations that are waiting for a result. Handles of
// removed entries are reused.
type Table struct {
	entries  []*Continuation
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]*Continuation, 0, 16),
		freeList: make([]Handle, 0, 8),
	}
}

// Park stores c and returns its handle.
func (t *Table) Park(c *Continuation) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrTableClosed
	}

	if n := len(t.freeList); n > 0 {
		h := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = c
		return h, nil
	}

	t.entries = append(t.entries, c)
	return Handle(len(t.entries)), nil
}

// Get returns the continuation parked under h.
func (t *Table) Get(h Handle) (*Continuation, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(h) > len(t.entries) {
		return nil, false
	}
	c := t.entries[h-1]
	return c, c != nil
}

// Take removes and returns the continuation parked under h.
func (t *Table) Take(h Handle) (*Continuation, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(h) > len(t.entries) {
		return nil, false
	}
	c := t.entries[h-1]
	if c == nil {
		return nil, false
	}
	t.entries[h-1] = nil
	t.freeList = append(t.freeList, h)
	return c, true
}

// Len returns the number of parked continuations.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Close drops every parked continuation and returns them. Later calls to
// Park fail.
func (t *Table) Close() []*Continuation {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var out []*Continuation
	for _, c := range t.entries {
		if c != nil {
			out = append(out, c)
		}
	}
	t.entries = nil
	t.freeList = nil
	return out
}
