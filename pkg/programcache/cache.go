// Package programcache keeps parsed program interfaces so that repeated tool
// calls against the same program do not refetch its IDL.
//
// Raw IDL documents are held in a BadgerDB store, in memory by default or on
// disk when a directory is configured, and expire after a TTL. Parsed handles
// are kept alongside them. Concurrent loads of the same program share one
// chain round trip.
package programcache

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/idl"
	"github.com/fortiblox/X1-Lens/pkg/rpcfetch"
	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// ChainReader loads single accounts. A nil account means it does not exist.
type ChainReader interface {
	GetAccountInfo(ctx context.Context, address types.Pubkey) (*rpcfetch.AccountInfo, error)
}

// Handle is a resolved program interface.
type Handle struct {
	ProgramID types.Pubkey
	IDL       *idl.IDL

	// StorageKeys maps each declared account type name to its storage key.
	StorageKeys map[string]string

	// Fingerprint is the hex blake3 digest of the raw IDL document.
	Fingerprint string
	FetchedAt   time.Time
}

// StorageKey returns the storage key of a declared account type name.
func (h *Handle) StorageKey(name string) string {
	if key, ok := h.StorageKeys[name]; ok {
		return key
	}
	return idl.ToStorageKey(name)
}

// Options configures a Cache.
type Options struct {
	// Dir persists documents across restarts. Empty keeps them in memory.
	Dir    string
	TTL    time.Duration
	Logger *zap.Logger
}

// Cache resolves program ids to handles.
type Cache struct {
	reader  ChainReader
	fetcher *idl.Fetcher
	store   *store
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	loads singleflight.Group

	mu      sync.RWMutex
	handles map[types.Pubkey]*Handle
}

// New opens a cache reading through reader.
func New(reader ChainReader, opts Options) (*Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	st, err := openStore(storeConfig{Dir: opts.Dir, TTL: opts.TTL, Logger: opts.Logger})
	if err != nil {
		return nil, errors.Wrap(err, "open program cache")
	}

	return &Cache{
		reader:  reader,
		fetcher: idl.NewFetcher(reader),
		store:   st,
		ttl:     opts.TTL,
		logger:  opts.Logger,
		now:     time.Now,
		handles: make(map[types.Pubkey]*Handle),
	}, nil
}

// Close releases the backing store.
func (c *Cache) Close() error {
	return c.store.close()
}

// Get returns the handle for program, loading it from the store or the chain
// when no live handle is held.
//
// It fails with program_not_found when nothing executable is deployed at the
// id, interface_not_found when the program has no published IDL and
// decode_error when the published IDL is malformed.
func (c *Cache) Get(ctx context.Context, program types.Pubkey) (*Handle, error) {
	if h := c.live(program); h != nil {
		return h, nil
	}

	v, err, _ := c.loads.Do(program.String(), func() (interface{}, error) {
		if h := c.live(program); h != nil {
			return h, nil
		}
		if h, err := c.fromStore(program); err != nil || h != nil {
			return h, err
		}
		return c.fromChain(ctx, program)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Refresh drops any cached copy and reloads program from the chain. changed
// reports whether the IDL differs from the previously cached one; a program
// that was not cached counts as changed.
func (c *Cache) Refresh(ctx context.Context, program types.Pubkey) (h *Handle, changed bool, err error) {
	previous := ""
	if old := c.peek(program); old != nil {
		previous = old.Fingerprint
	} else if raw, _, ok, err := c.store.get(program); err == nil && ok {
		previous = fingerprint(raw)
	}

	if err := c.Invalidate(program); err != nil {
		return nil, false, err
	}

	v, err, _ := c.loads.Do(program.String(), func() (interface{}, error) {
		return c.fromChain(ctx, program)
	})
	if err != nil {
		return nil, false, err
	}
	h = v.(*Handle)
	changed = h.Fingerprint != previous

	c.logger.Info("program cache refreshed",
		zap.Stringer("program", program),
		zap.String("fingerprint", h.Fingerprint),
		zap.Bool("changed", changed),
	)
	return h, changed, nil
}

// Invalidate drops program from the cache.
func (c *Cache) Invalidate(program types.Pubkey) error {
	c.mu.Lock()
	delete(c.handles, program)
	c.mu.Unlock()

	if err := c.store.delete(program); err != nil {
		return toolerr.Upstream(err, "invalidate cache entry for %s", program)
	}
	return nil
}

func (c *Cache) peek(program types.Pubkey) *Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handles[program]
}

func (c *Cache) live(program types.Pubkey) *Handle {
	h := c.peek(program)
	if h == nil || c.expired(h.FetchedAt) {
		return nil
	}
	return h
}

func (c *Cache) expired(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) >= c.ttl
}

func (c *Cache) fromStore(program types.Pubkey) (*Handle, error) {
	raw, fetchedAt, ok, err := c.store.get(program)
	if err != nil {
		// a broken entry is dropped and refetched
		c.logger.Warn("program cache read failed", zap.Stringer("program", program), zap.Error(err))
		return nil, nil
	}
	if !ok || c.expired(fetchedAt) {
		return nil, nil
	}

	h, err := c.remember(program, raw, fetchedAt)
	if err != nil {
		return nil, err
	}
	c.logger.Info("program interface loaded",
		zap.Stringer("program", program),
		zap.String("source", "store"),
		zap.String("fingerprint", h.Fingerprint),
	)
	return h, nil
}

func (c *Cache) fromChain(ctx context.Context, program types.Pubkey) (*Handle, error) {
	if err := c.checkProgram(ctx, program); err != nil {
		return nil, err
	}

	raw, err := c.fetcher.FetchRaw(ctx, program)
	if err != nil {
		if errors.Is(err, idl.ErrMalformedIDLAccount) {
			return nil, toolerr.Wrap(err, toolerr.KindDecode, "IDL account of %s is malformed", program)
		}
		return nil, toolerr.Upstream(err, "fetch IDL of %s", program)
	}
	if raw == nil {
		return nil, toolerr.New(toolerr.KindInterfaceNotFound, "program %s has not published an IDL", program)
	}

	fetchedAt := c.now()
	h, err := c.remember(program, raw, fetchedAt)
	if err != nil {
		return nil, err
	}
	if err := c.store.put(program, raw, fetchedAt); err != nil {
		c.logger.Warn("program cache write failed", zap.Stringer("program", program), zap.Error(err))
	}

	c.logger.Info("program interface loaded",
		zap.Stringer("program", program),
		zap.String("source", "chain"),
		zap.String("idl", h.IDL.Name),
		zap.Int("account_types", len(h.IDL.Accounts)),
		zap.String("fingerprint", h.Fingerprint),
	)
	return h, nil
}

// checkProgram tells a missing program apart from one without an IDL.
func (c *Cache) checkProgram(ctx context.Context, program types.Pubkey) error {
	info, err := c.reader.GetAccountInfo(ctx, program)
	if err != nil {
		return toolerr.Upstream(err, "look up program %s", program)
	}
	if info == nil || !info.Executable || !types.IsLoader(info.Owner) {
		return toolerr.New(toolerr.KindProgramNotFound, "no program is deployed at %s", program)
	}
	if name, ok := types.NativeProgramName(program); ok {
		return toolerr.New(toolerr.KindInterfaceNotFound, "%s is the native %s and has no Anchor IDL", program, name)
	}
	return nil
}

func (c *Cache) remember(program types.Pubkey, raw []byte, fetchedAt time.Time) (*Handle, error) {
	doc, err := idl.Parse(raw)
	if err != nil {
		return nil, toolerr.Wrap(err, toolerr.KindDecode, "IDL of %s cannot be parsed", program)
	}

	h := &Handle{
		ProgramID:   program,
		IDL:         doc,
		StorageKeys: doc.StorageKeys(),
		Fingerprint: fingerprint(raw),
		FetchedAt:   fetchedAt,
	}

	c.mu.Lock()
	c.handles[program] = h
	c.mu.Unlock()
	return h, nil
}

func fingerprint(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
