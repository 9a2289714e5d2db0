package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-odata/odata"
)

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db      *badger.DB
	encoder *KeyEncoder
}

// NewBadgerStore opens a BadgerDB-backed store at path. An empty path
// opens an in-memory store.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logs

	// Small documents stay in the LSM tree
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &BadgerStore{
		db:      db,
		encoder: NewKeyEncoder(),
	}, nil
}

// Put writes entities to set, replacing entities with the same key
func (s *BadgerStore) Put(set *odata.EntitySet, entities []odata.Entity) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	keyProp := set.Type.Key
	if keyProp == nil {
		return fmt.Errorf("entity type %s has no key", set.Type.QualifiedName())
	}
	for i, e := range entities {
		key, err := s.encoder.EncodeKey(set, e[keyProp.Name])
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		doc, err := EncodeDocument(e)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		if err := wb.Set(key, doc); err != nil {
			return fmt.Errorf("failed to write entity %d of %s: %w", i, set.Name, err)
		}
	}
	return wb.Flush()
}

// Delete removes the entity with the given key
func (s *BadgerStore) Delete(set *odata.EntitySet, key interface{}) error {
	k, err := s.encoder.EncodeKey(set, key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete from %s: %w", set.Name, err)
		}
		return nil
	})
}

// Get retrieves a single entity by key. A missing entity is nil, not an
// error.
func (s *BadgerStore) Get(set *odata.EntitySet, key interface{}) (odata.Entity, error) {
	k, err := s.encoder.EncodeKey(set, key)
	if err != nil {
		return nil, err
	}

	var result odata.Entity
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			result, err = DecodeDocument(set.Type, val)
			return err
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return result, err
}

// Scan returns an iterator over the entities of set. The iterator holds a
// read transaction until it is closed.
func (s *BadgerStore) Scan(set *odata.EntitySet) (Iterator, error) {
	txn := s.db.NewTransaction(false)

	prefix := s.encoder.EncodePrefix(set)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchSize = 1000
	opts.PrefetchValues = true

	return &BadgerIterator{
		txn:    txn,
		it:     txn.NewIterator(opts),
		prefix: prefix,
		typ:    set.Type,
	}, nil
}

// Count counts the entities of set without fetching values
func (s *BadgerStore) Count(set *odata.EntitySet) (int64, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	prefix := s.encoder.EncodePrefix(set)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false // KEY ONLY - no values!

	it := txn.NewIterator(opts)
	defer it.Close()

	var count int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count, nil
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// BadgerIterator implements Iterator for BadgerDB
type BadgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	typ     *odata.EntityType
	started bool
}

// Next advances the iterator
func (i *BadgerIterator) Next() bool {
	if !i.started {
		// First call - seek to start
		i.it.Seek(i.prefix)
		i.started = true
	} else {
		i.it.Next()
	}
	return i.it.ValidForPrefix(i.prefix)
}

// Entity decodes the current entity
func (i *BadgerIterator) Entity() (odata.Entity, error) {
	var result odata.Entity
	err := i.it.Item().Value(func(val []byte) error {
		var err error
		result, err = DecodeDocument(i.typ, val)
		return err
	})
	return result, err
}

// Close closes the iterator
func (i *BadgerIterator) Close() error {
	i.it.Close()
	i.txn.Discard()
	return nil
}
