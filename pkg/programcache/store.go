package programcache

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fortiblox/X1-Lens/internal/types"
)

// Key prefixes for BadgerDB storage.
var (
	// prefixIDL is the prefix for cached IDL documents.
	// Key format: prefixIDL + program id (32 bytes)
	prefixIDL = []byte{0x01}
)

// storeConfig contains configuration for the backing BadgerDB.
type storeConfig struct {
	// Dir is the database directory. Empty runs the store in memory.
	Dir string

	// TTL expires entries. Zero keeps them until invalidated.
	TTL time.Duration

	Logger *zap.Logger
}

// store persists raw IDL documents keyed by program id.
//
// Value format: fetchedAt (8 bytes, unix nanoseconds LE) + IDL JSON.
type store struct {
	db  *badger.DB
	ttl time.Duration
}

func openStore(cfg storeConfig) (*store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.
		WithNumCompactors(2).
		WithNumMemtables(2).
		WithLogger(badgerLogger{cfg.Logger.Named("badger").WithOptions(zap.IncreaseLevel(zapcore.WarnLevel)).Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &store{db: db, ttl: cfg.TTL}, nil
}

func idlKey(program types.Pubkey) []byte {
	key := make([]byte, 1+types.PubkeySize)
	key[0] = prefixIDL[0]
	copy(key[1:], program[:])
	return key
}

// get returns the cached document and its fetch time. ok is false when the
// program has no live entry.
func (s *store) get(program types.Pubkey) (raw []byte, fetchedAt time.Time, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idlKey(program))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) < 8 {
				return fmt.Errorf("cache entry for %s is %d bytes", program, len(val))
			}
			fetchedAt = time.Unix(0, int64(binary.LittleEndian.Uint64(val[:8])))
			raw = append([]byte(nil), val[8:]...)
			ok = true
			return nil
		})
	})
	return raw, fetchedAt, ok, err
}

func (s *store) put(program types.Pubkey, raw []byte, fetchedAt time.Time) error {
	val := make([]byte, 8+len(raw))
	binary.LittleEndian.PutUint64(val[:8], uint64(fetchedAt.UnixNano()))
	copy(val[8:], raw)

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(idlKey(program), val)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *store) delete(program types.Pubkey) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(idlKey(program))
	})
}

func (s *store) close() error {
	return s.db.Close()
}

// badgerLogger routes badger output through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
