package badger

import (
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/dgraph-io/badger/v4"
)

var (
	ErrOpen  = errors.New("failed to open badger database")
	ErrRead  = errors.New("failed to read from badger database")
	ErrWrite = errors.New("failed to write to badger database")
)

// Database is a badger store shared by the repositories of one process.
type Database struct {
	db *badger.DB
}

func NewDatabase(path string) (*Database, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: %w", ErrOpen, pkgerrors.ErrEmptyKey)
	}

	return open(badger.DefaultOptions(path))
}

// NewInMemoryDatabase opens a database that is never written to disk.
func NewInMemoryDatabase() (*Database, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Database, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// insert writes val under key. Existing keys are never overwritten.
func (d *Database) insert(key, val []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		switch _, err := txn.Get(key); {
		case err == nil:
			return pkgerrors.ErrEntityExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		return txn.Set(key, val)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pkgerrors.ErrEntityExists):
		return fmt.Errorf("%w: %s", err, key)
	default:
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
}

func (d *Database) lookup(key []byte) ([]byte, error) {
	var val []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)

		return err
	})
	switch {
	case err == nil:
		return val, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, pkgerrors.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
}

// page returns up to limit values under prefix after skipping offset keys,
// together with the number of keys under prefix. Both come from one
// read transaction.
func (d *Database) page(prefix []byte, offset, limit uint64) ([][]byte, uint64, error) {
	var (
		values [][]byte
		total  uint64
	)
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			pos := total
			total++
			if pos < offset || pos-offset >= limit {
				continue
			}

			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, val)
		}

		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrRead, err)
	}

	return values, total, nil
}

func (d *Database) count(prefix []byte) (uint64, error) {
	_, total, err := d.page(prefix, 0, 0)

	return total, err
}
