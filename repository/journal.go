package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/dgraph-io/badger/v4"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateTransaction = errors.New("transaction already exists")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

const (
	txPrefix        = "tx:"
	statusPrefix    = "status:"
	seqPrefix       = "seq:"
	journalHeight   = "journal_height"
	lastBlockNumber = "last_block_number"
)

// Journal stores ledger transactions in an in-memory badger database.
// Keys:
//
//	tx:<id>           transaction JSON
//	status:<id>       current status
//	seq:<n>           transaction id in append order
//	journal_height    number of appended transactions
//	last_block_number block number of the latest append
type Journal struct {
	db     *badger.DB
	mu     sync.Mutex
	logger cmtlog.Logger
}

// OpenMemoryJournal opens a journal that lives only for the life of the process
func OpenMemoryJournal(logger cmtlog.Logger) (*Journal, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithMemTableSize(16 << 20).
		WithLogger(&badgerLogger{logger: logger.With("module", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// Close releases the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores a transaction at the end of the journal
func (j *Journal) Append(tx models.Transaction) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encoding transaction: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(txPrefix + tx.ID)); err == nil {
			return ErrDuplicateTransaction
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		height, err := readInt64(txn, journalHeight)
		if err != nil {
			return err
		}
		height++

		if err := txn.Set([]byte(txPrefix+tx.ID), raw); err != nil {
			return err
		}
		if err := txn.Set([]byte(statusPrefix+tx.ID), []byte(tx.Status)); err != nil {
			return err
		}
		if err := txn.Set(append([]byte(seqPrefix), int64ToBytes(height)...), []byte(tx.ID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(journalHeight), int64ToBytes(height)); err != nil {
			return err
		}
		return txn.Set([]byte(lastBlockNumber), int64ToBytes(tx.BlockNumber))
	})
}

// SetStatus moves a pending transaction to status. Only one transition is
// ever allowed.
func (j *Journal) SetStatus(id string, status models.TransactionStatus) (models.Transaction, error) {
	var tx models.Transaction

	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.db.Update(func(txn *badger.Txn) error {
		var err error
		tx, err = readTransaction(txn, id)
		if err != nil {
			return err
		}
		if tx.Status != models.TxPending {
			return fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, id, tx.Status)
		}

		tx.Status = status
		raw, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(txPrefix+id), raw); err != nil {
			return err
		}
		return txn.Set([]byte(statusPrefix+id), []byte(status))
	})
	return tx, err
}

// Get returns one transaction
func (j *Journal) Get(id string) (models.Transaction, error) {
	var tx models.Transaction
	err := j.db.View(func(txn *badger.Txn) error {
		var err error
		tx, err = readTransaction(txn, id)
		return err
	})
	return tx, err
}

// List returns every transaction in append order
func (j *Journal) List() ([]models.Transaction, error) {
	var txs []models.Transaction

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(seqPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			tx, err := readTransaction(txn, string(id))
			if err != nil {
				return err
			}
			txs = append(txs, tx)
		}
		return nil
	})
	return txs, err
}

// Count returns the number of appended transactions
func (j *Journal) Count() (int64, error) {
	var height int64
	err := j.db.View(func(txn *badger.Txn) error {
		var err error
		height, err = readInt64(txn, journalHeight)
		return err
	})
	return height, err
}

// LastBlockNumber returns the block number of the latest append
func (j *Journal) LastBlockNumber() (int64, error) {
	var block int64
	err := j.db.View(func(txn *badger.Txn) error {
		var err error
		block, err = readInt64(txn, lastBlockNumber)
		return err
	})
	return block, err
}

func readTransaction(txn *badger.Txn, id string) (models.Transaction, error) {
	var tx models.Transaction

	item, err := txn.Get([]byte(txPrefix + id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return tx, ErrTransactionNotFound
		}
		return tx, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tx)
	})
	return tx, err
}

func readInt64(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var value int64
	err = item.Value(func(val []byte) error {
		value = bytesToInt64(val)
		return nil
	})
	return value, err
}

// int64ToBytes converts an int64 to big-endian bytes so keys sort in order
func int64ToBytes(i int64) []byte {
	buf := make([]byte, 8)
	for n := 0; n < 8; n++ {
		buf[n] = byte(i >> (56 - 8*n))
	}
	return buf
}

// bytesToInt64 converts big-endian bytes to an int64
func bytesToInt64(buf []byte) int64 {
	var i int64
	for _, b := range buf {
		i = i<<8 | int64(b)
	}
	return i
}

// badgerLogger routes badger's printf style logging into a cometbft logger
type badgerLogger struct {
	logger cmtlog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
