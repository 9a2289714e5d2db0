package odata

import (
	"sync"
	"sync/atomic"
)

// ID is a stable identifier for a schema element. Two schema elements with
// the same qualified name always receive the same ID within a process, so
// identity checks in the comparer and hasher are plain integer equality.
type ID uint32

// IdentifierIntern assigns IDs to qualified names.
// Uses sync.Map for lock-free concurrent reads
type IdentifierIntern struct {
	cache sync.Map // map[string]ID
	next  atomic.Uint32
}

// Global identifier intern instance
var identifierIntern = &IdentifierIntern{}

// InternIdentifier returns the interned ID for a qualified name
func InternIdentifier(name string) ID {
	return identifierIntern.Intern(name)
}

// Intern returns the ID for name, assigning the next free one on first use
func (in *IdentifierIntern) Intern(name string) ID {
	// Fast path: load existing (lock-free)
	if val, ok := in.cache.Load(name); ok {
		return val.(ID)
	}

	// Slow path: reserve an ID and race to store it. A losing goroutine
	// burns one ID, which only leaves a gap in the sequence.
	id := ID(in.next.Add(1))
	actual, _ := in.cache.LoadOrStore(name, id)
	return actual.(ID)
}

// Lookup returns the ID for name if it has been interned
func (in *IdentifierIntern) Lookup(name string) (ID, bool) {
	val, ok := in.cache.Load(name)
	if !ok {
		return 0, false
	}
	return val.(ID), true
}

// Len returns the number of interned names
func (in *IdentifierIntern) Len() int {
	n := 0
	in.cache.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
