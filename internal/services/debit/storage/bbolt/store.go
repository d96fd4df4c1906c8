// Package bbolt provides a BoltDB-backed transaction store.
//
// Records live in a single bucket keyed by transaction ID, with secondary
// index buckets (company, status, schedule) maintained inside the same update
// transaction. Bolt serializes update transactions, which gives PutExpecting
// its atomic check-and-set semantics without any in-process locking.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/transaction"
	"github.com/louisbranch/debitflow/internal/services/debit/storage"
)

const (
	transactionBucket = "transaction"
	companyIndex      = "idx_company"
	statusIndex       = "idx_status"
	scheduleIndex     = "idx_schedule"
)

// Store provides a BoltDB-backed transaction store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put persists a transaction record unconditionally.
func (s *Store) Put(ctx context.Context, txn transaction.Transaction) error {
	return s.put(ctx, txn, nil)
}

// PutExpecting persists a transaction only if the persisted record's status is
// one of expected. A missing record is allowed only when expected is empty.
func (s *Store) PutExpecting(ctx context.Context, txn transaction.Transaction, expected ...transaction.Status) error {
	if len(expected) == 0 {
		expected = nil
	}
	return s.put(ctx, txn, expected)
}

func (s *Store) put(ctx context.Context, txn transaction.Transaction, expected []transaction.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(txn.ID) == "" {
		return fmt.Errorf("transaction id is required")
	}
	if !txn.Status.IsValid() {
		return fmt.Errorf("transaction status %q is invalid", txn.Status)
	}

	payload, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(transactionBucket))
		if records == nil {
			return fmt.Errorf("transaction bucket is missing")
		}

		var prior *transaction.Transaction
		if existing := records.Get(recordKey(txn.ID)); existing != nil {
			var decoded transaction.Transaction
			if err := json.Unmarshal(existing, &decoded); err != nil {
				return fmt.Errorf("unmarshal existing transaction: %w", err)
			}
			prior = &decoded
		}

		if expected != nil {
			if prior == nil {
				return storage.ErrStatusConflict
			}
			matched := false
			for _, status := range expected {
				if prior.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				return storage.ErrStatusConflict
			}
		}

		if err := records.Put(recordKey(txn.ID), payload); err != nil {
			return fmt.Errorf("put transaction: %w", err)
		}
		if prior != nil {
			if err := dropIndexes(tx, *prior); err != nil {
				return err
			}
		}
		return writeIndexes(tx, txn)
	})
}

// Get fetches a transaction record by ID.
func (s *Store) Get(ctx context.Context, id string) (transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return transaction.Transaction{}, err
	}
	if s == nil || s.db == nil {
		return transaction.Transaction{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return transaction.Transaction{}, fmt.Errorf("transaction id is required")
	}

	var txn transaction.Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(transactionBucket))
		if records == nil {
			return fmt.Errorf("transaction bucket is missing")
		}
		payload := records.Get(recordKey(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &txn); err != nil {
			return fmt.Errorf("unmarshal transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return transaction.Transaction{}, err
	}
	return txn, nil
}

// ListByCompany lists transactions owned by a company, oldest first.
func (s *Store) ListByCompany(ctx context.Context, companyID string) ([]transaction.Transaction, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return nil, fmt.Errorf("company id is required")
	}
	return s.scanIndex(ctx, companyIndex, indexPrefix(companyID), nil)
}

// ListByStatus lists transactions with the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status transaction.Status) ([]transaction.Transaction, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("status %q is invalid", status)
	}
	return s.scanIndex(ctx, statusIndex, indexPrefix(string(status)), nil)
}

// ListScheduledBetween lists transactions scheduled inside [start, end].
func (s *Store) ListScheduledBetween(ctx context.Context, start, end time.Time) ([]transaction.Transaction, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end must not precede start")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	lower := scheduleOrdinal(start)
	upper := scheduleOrdinal(end)

	var results []transaction.Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(scheduleIndex))
		records := tx.Bucket([]byte(transactionBucket))
		if index == nil || records == nil {
			return fmt.Errorf("storage buckets are missing")
		}

		cursor := index.Cursor()
		for key, id := cursor.Seek([]byte(lower)); key != nil; key, id = cursor.Next() {
			ordinal, _, ok := strings.Cut(string(key), "/")
			if !ok || ordinal > upper {
				break
			}
			txn, err := decodeRecord(records, id)
			if err != nil {
				return err
			}
			results = append(results, txn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListFailedEligibleForRetry lists FAILED transactions with retry budget left.
func (s *Store) ListFailedEligibleForRetry(ctx context.Context) ([]transaction.Transaction, error) {
	keep := func(txn transaction.Transaction) bool { return txn.HasRetryBudget() }
	return s.scanIndex(ctx, statusIndex, indexPrefix(string(transaction.StatusFailed)), keep)
}

// CountByCompanyAndStatus counts a company's transactions with the given status.
func (s *Store) CountByCompanyAndStatus(ctx context.Context, companyID string, status transaction.Status) (int64, error) {
	if !status.IsValid() {
		return 0, fmt.Errorf("status %q is invalid", status)
	}
	matches, err := s.scanIndex(ctx, companyIndex, indexPrefix(strings.TrimSpace(companyID)), func(txn transaction.Transaction) bool {
		return txn.Status == status
	})
	if err != nil {
		return 0, err
	}
	return int64(len(matches)), nil
}

// Delete removes a record and its index entries. Administrative operation.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("transaction id is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(transactionBucket))
		if records == nil {
			return fmt.Errorf("transaction bucket is missing")
		}
		payload := records.Get(recordKey(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		var txn transaction.Transaction
		if err := json.Unmarshal(payload, &txn); err != nil {
			return fmt.Errorf("unmarshal transaction: %w", err)
		}
		if err := records.Delete(recordKey(id)); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return dropIndexes(tx, txn)
	})
}

func (s *Store) scanIndex(ctx context.Context, bucket, prefix string, keep func(transaction.Transaction) bool) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var results []transaction.Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(bucket))
		records := tx.Bucket([]byte(transactionBucket))
		if index == nil || records == nil {
			return fmt.Errorf("storage buckets are missing")
		}

		cursor := index.Cursor()
		prefixBytes := []byte(prefix)
		for key, id := cursor.Seek(prefixBytes); key != nil && strings.HasPrefix(string(key), prefix); key, id = cursor.Next() {
			txn, err := decodeRecord(records, id)
			if err != nil {
				return err
			}
			if keep != nil && !keep(txn) {
				continue
			}
			results = append(results, txn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{transactionBucket, companyIndex, statusIndex, scheduleIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func decodeRecord(records *bbolt.Bucket, id []byte) (transaction.Transaction, error) {
	payload := records.Get(id)
	if payload == nil {
		return transaction.Transaction{}, fmt.Errorf("index references missing transaction %s", id)
	}
	var txn transaction.Transaction
	if err := json.Unmarshal(payload, &txn); err != nil {
		return transaction.Transaction{}, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return txn, nil
}

func writeIndexes(tx *bbolt.Tx, txn transaction.Transaction) error {
	entries := indexEntries(txn)
	for bucket, key := range entries {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s bucket is missing", bucket)
		}
		if err := b.Put([]byte(key), recordKey(txn.ID)); err != nil {
			return fmt.Errorf("put %s entry: %w", bucket, err)
		}
	}
	return nil
}

func dropIndexes(tx *bbolt.Tx, txn transaction.Transaction) error {
	entries := indexEntries(txn)
	for bucket, key := range entries {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s bucket is missing", bucket)
		}
		if err := b.Delete([]byte(key)); err != nil {
			return fmt.Errorf("delete %s entry: %w", bucket, err)
		}
	}
	return nil
}

func indexEntries(txn transaction.Transaction) map[string]string {
	return map[string]string{
		companyIndex:  indexPrefix(txn.CompanyID) + txn.ID,
		statusIndex:   indexPrefix(string(txn.Status)) + txn.ID,
		scheduleIndex: scheduleOrdinal(txn.ScheduledFor) + "/" + txn.ID,
	}
}

func recordKey(id string) []byte {
	return []byte(id)
}

func indexPrefix(part string) string {
	return part + "/"
}

// scheduleOrdinal renders a schedule time as a fixed-width, lexically
// sortable key segment.
func scheduleOrdinal(t time.Time) string {
	return fmt.Sprintf("%020d", t.UTC().UnixNano())
}
