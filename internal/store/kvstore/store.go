// Package kvstore implements the domain repositories on an embedded badger
// database. Values are JSON documents keyed by entity prefix and zero padded id.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tournevent/carrierhub/internal/domain"
)

// Key prefixes.
const (
	prefixCarrier      = "carrier/"
	prefixTypeShipment = "typeshipment/"
	prefixInfoPackage  = "infopackage/"
	prefixShipment     = "shipment/"
	prefixByPackage    = "shipment-by-package/"
	prefixLabel        = "label/"
	prefixRule         = "rule/"
	prefixLog          = "log/"
	prefixSeq          = "seq/"
)

// Store is a badger backed domain.Store. The zero value is not usable.
type Store struct {
	db   *badger.DB
	txn  *badger.Txn
	seqs *sequences
	now  func() time.Time
}

var _ domain.Store = (*Store)(nil)

// Open opens (or creates) a database directory.
func Open(path string) (*Store, error) {
	return open(badger.DefaultOptions(path).WithLogger(nil))
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{
		db:   db,
		seqs: &sequences{db: db, leased: make(map[string]*badger.Sequence)},
		now:  time.Now,
	}, nil
}

// Close releases id leases and closes the database.
func (s *Store) Close() error {
	s.seqs.release()
	return s.db.Close()
}

// Migrate is a no-op. Documents carry their own shape.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping reports whether the database is open.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database is closed")
	}
	return nil
}

func (s *Store) Carriers() domain.CarrierRepository { return carriers{s} }
func (s *Store) TypeShipments() domain.TypeShipmentRepository { return typeShipments{s} }
func (s *Store) InfoPackages() domain.InfoPackageRepository { return infoPackages{s} }
func (s *Store) Shipments() domain.ShipmentRepository { return shipments{s} }
func (s *Store) Labels() domain.LabelRepository { return labels{s} }
func (s *Store) Rules() domain.RuleRepository { return ruleRepo{s} }
func (s *Store) Logs() domain.LogRepository { return logs{s} }

// WithinTx runs fn in one read-write badger transaction. Nested calls join the
// outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if s.txn != nil {
		return fn(ctx, s)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(ctx, &Store{db: s.db, txn: txn, seqs: s.seqs, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return commitErr(txn.Commit())
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.txn != nil {
		return fn(s.txn)
	}
	return commitErr(s.db.Update(fn))
}

func (s *Store) nextID(name string) (int64, error) {
	return s.seqs.next(name)
}

func commitErr(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrConcurrentUpdate.WithCause(err).WithTransient(true)
	}
	return err
}

// sequences hands out ids from badger sequences, one per entity.
type sequences struct {
	db     *badger.DB
	mu     sync.Mutex
	leased map[string]*badger.Sequence
}

func (q *sequences) next(name string) (int64, error) {
	q.mu.Lock()
	seq, ok := q.leased[name]
	if !ok {
		var err error
		seq, err = q.db.GetSequence([]byte(prefixSeq+name), 64)
		if err != nil {
			q.mu.Unlock()
			return 0, fmt.Errorf("lease %s sequence: %w", name, err)
		}
		q.leased[name] = seq
	}
	q.mu.Unlock()

	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at zero; ids start at one.
	return int64(n) + 1, nil
}

func (q *sequences) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for name, seq := range q.leased {
		_ = seq.Release()
		delete(q.leased, name)
	}
}

func idKey(prefix string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, id))
}

func labelKey(shipmentID, labelID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d", prefixLabel, shipmentID, labelID))
}

func labelPrefix(shipmentID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixLabel, shipmentID))
}

// get decodes the value at key. It returns badger.ErrKeyNotFound when absent.
func get[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func put(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// scan decodes every value under prefix in key order. fn returns false to stop.
func scan[T any](txn *badger.Txn, prefix []byte, reverse bool, fn func(v *T) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = reverse
	it := txn.NewIterator(opts)
	defer it.Close()

	start := prefix
	if reverse {
		start = append(append([]byte{}, prefix...), 0xFF)
	}
	for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
		v := new(T)
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		}); err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		if !fn(v) {
			return nil
		}
	}
	return nil
}

// notFound maps badger.ErrKeyNotFound to the given domain error.
func notFound(err error, nf *domain.Error, id int64) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nf.Withf("%s: %d", nf.Message, id)
	}
	return err
}
