package storage

import (
	"github.com/wbrown/janus-odata/odata"
)

// Store is the interface for entity storage
type Store interface {
	// Write operations
	Put(set *odata.EntitySet, entities []odata.Entity) error
	Delete(set *odata.EntitySet, key interface{}) error

	// Read operations
	Get(set *odata.EntitySet, key interface{}) (odata.Entity, error)
	Scan(set *odata.EntitySet) (Iterator, error)
	Count(set *odata.EntitySet) (int64, error)

	// Lifecycle
	Close() error
}

// Iterator provides sequential access to the entities of one set, in key
// order
type Iterator interface {
	Next() bool
	Entity() (odata.Entity, error)
	Close() error
}
